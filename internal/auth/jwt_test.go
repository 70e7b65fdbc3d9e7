package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_UserName(t *testing.T) {
	v := NewVerifier("secret", "taskboard")

	token, err := v.Sign("Alice Doe", time.Hour)
	require.NoError(t, err)

	name, err := v.UserName(token)
	require.NoError(t, err)
	assert.Equal(t, "Alice Doe", name)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("secret", "taskboard")

	expired, err := v.Sign("alice", -time.Minute)
	require.NoError(t, err)

	foreign, err := NewVerifier("other", "taskboard").Sign("alice", time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := NewVerifier("secret", "someone-else").Sign("alice", time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Name: "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "истекший", token: expired, wantErr: ErrExpiredToken},
		{name: "чужой секрет", token: foreign, wantErr: ErrInvalidToken},
		{name: "чужой издатель", token: wrongIssuer, wantErr: ErrInvalidToken},
		{name: "без подписи", token: none, wantErr: ErrInvalidToken},
		{name: "мусор", token: "not-a-token", wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.UserName(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifier_FallsBackToSubject(t *testing.T) {
	v := NewVerifier("secret", "")

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "bob"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	name, err := v.UserName(token)
	require.NoError(t, err)
	assert.Equal(t, "bob", name)

	empty, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = v.UserName(empty)
	assert.ErrorIs(t, err, ErrNoIdentity)
}
