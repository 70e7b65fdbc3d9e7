package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskBoard/internal/logger"

	"github.com/stretchr/testify/assert"
)

type fakeVerifier map[string]string

func (f fakeVerifier) UserName(token string) (string, error) {
	if name, ok := f[token]; ok {
		return name, nil
	}
	return "", errors.New("недействительный токен")
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetUserName(r.Context())))
	})
}

func TestAuthenticate(t *testing.T) {
	logger.InitNop()

	tests := []struct {
		name       string
		verifier   TokenVerifier
		headers    map[string]string
		wantStatus int
		wantUser   string
	}{
		{
			name:       "заголовок прокси",
			headers:    map[string]string{"X-User-Name": " alice "},
			wantStatus: http.StatusOK,
			wantUser:   "alice",
		},
		{
			name:       "без пользователя",
			wantStatus: http.StatusOK,
		},
		{
			name:       "проверенный токен",
			verifier:   fakeVerifier{"good": "bob"},
			headers:    map[string]string{"Authorization": "Bearer good"},
			wantStatus: http.StatusOK,
			wantUser:   "bob",
		},
		{
			name:       "заголовок игнорируется при токенах",
			verifier:   fakeVerifier{"good": "bob"},
			headers:    map[string]string{"X-User-Name": "mallory"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "плохой токен",
			verifier:   fakeVerifier{},
			headers:    map[string]string{"Authorization": "Bearer bad"},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			Authenticate(tt.verifier, "")(echoUser()).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantUser, rec.Body.String())
			}
		})
	}
}

func TestRequireUser(t *testing.T) {
	handler := Authenticate(nil, "")(RequireUser(echoUser()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tasks", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/tasks", nil)
	req.Header.Set("X-User-Name", "carol")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "carol", rec.Body.String())
}

func TestRequestID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetRequestID(r.Context())))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-1", rec.Body.String())
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	handler := RateLimit(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks", nil))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
