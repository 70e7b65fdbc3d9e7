package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"
	"taskBoard/internal/repository"
	"taskBoard/internal/repository/task/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockIdentityRepository struct {
	mock.Mock
}

func (m *MockIdentityRepository) FindByName(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

func (m *MockIdentityRepository) InsertIdentity(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

func (m *MockIdentityRepository) ListIdentities(ctx context.Context) ([]task.Identity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]task.Identity), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, name string) (string, bool, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockCache) Set(ctx context.Context, name, id string) error {
	args := m.Called(ctx, name, id)
	return args.Error(0)
}

func TestResolver_Resolve(t *testing.T) {
	logger.InitNop()
	ctx := context.Background()

	tests := []struct {
		name      string
		input     string
		setupMock func(*MockIdentityRepository)
		wantID    string
		wantErr   bool
	}{
		{
			name:  "найден сразу",
			input: "  alice ",
			setupMock: func(m *MockIdentityRepository) {
				m.On("FindByName", ctx, "alice").Return("u-1", nil).Once()
			},
			wantID: "u-1",
		},
		{
			name:  "создан новый",
			input: "bob",
			setupMock: func(m *MockIdentityRepository) {
				m.On("FindByName", ctx, "bob").Return("", repository.ErrNotFound).Once()
				m.On("InsertIdentity", ctx, "bob").Return("u-2", nil).Once()
			},
			wantID: "u-2",
		},
		{
			name:  "конфликт и повторный поиск",
			input: "carol",
			setupMock: func(m *MockIdentityRepository) {
				m.On("FindByName", ctx, "carol").Return("", repository.ErrNotFound).Once()
				m.On("InsertIdentity", ctx, "carol").Return("", repository.ErrConflict).Once()
				m.On("FindByName", ctx, "carol").Return("u-3", nil).Once()
			},
			wantID: "u-3",
		},
		{
			name:  "вставка упала, повторный поиск тоже",
			input: "dave",
			setupMock: func(m *MockIdentityRepository) {
				m.On("FindByName", ctx, "dave").Return("", repository.ErrNotFound).Twice()
				m.On("InsertIdentity", ctx, "dave").Return("", errors.New("сеть")).Once()
			},
			wantErr: true,
		},
		{
			name:      "пустое имя",
			input:     "   ",
			setupMock: func(m *MockIdentityRepository) {},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockIdentityRepository)
			tt.setupMock(repo)
			r := NewResolver(repo)

			id, err := r.Resolve(ctx, tt.input)

			if tt.wantErr {
				var resErr *IdentityResolutionError
				assert.True(t, errors.As(err, &resErr), "Expected IdentityResolutionError")
				assert.Empty(t, id)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, id)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestResolver_Cache(t *testing.T) {
	logger.InitNop()
	ctx := context.Background()

	t.Run("попадание в кэш", func(t *testing.T) {
		repo := new(MockIdentityRepository)
		cache := new(MockCache)
		cache.On("Get", ctx, "alice").Return("u-1", true, nil).Once()

		id, err := NewResolver(repo, WithCache(cache)).Resolve(ctx, "alice")

		require.NoError(t, err)
		assert.Equal(t, "u-1", id)
		repo.AssertNotCalled(t, "FindByName", mock.Anything, mock.Anything)
		cache.AssertExpectations(t)
	})

	t.Run("ошибка кэша не мешает", func(t *testing.T) {
		repo := new(MockIdentityRepository)
		cache := new(MockCache)
		cache.On("Get", ctx, "bob").Return("", false, errors.New("redis недоступен")).Once()
		cache.On("Set", ctx, "bob", "u-2").Return(errors.New("redis недоступен")).Once()
		repo.On("FindByName", ctx, "bob").Return("u-2", nil).Once()

		id, err := NewResolver(repo, WithCache(cache)).Resolve(ctx, "bob")

		require.NoError(t, err)
		assert.Equal(t, "u-2", id)
		cache.AssertExpectations(t)
		repo.AssertExpectations(t)
	})
}

func TestResolver_ConcurrentSameName(t *testing.T) {
	logger.InitNop()
	ctx := context.Background()
	storage := inmemory.New()
	r := NewResolver(storage)

	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			id, err := r.Resolve(ctx, "новичок")
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	close(start)
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	identities, err := storage.ListIdentities(ctx)
	require.NoError(t, err)
	assert.Len(t, identities, 1)
}

func TestResolver_CaseSensitive(t *testing.T) {
	logger.InitNop()
	ctx := context.Background()
	r := NewResolver(inmemory.New())

	a, err := r.Resolve(ctx, "Alice")
	require.NoError(t, err)
	b, err := r.Resolve(ctx, " Alice ")
	require.NoError(t, err)
	c, err := r.Resolve(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestResolver_List(t *testing.T) {
	ctx := context.Background()
	repo := new(MockIdentityRepository)
	repo.On("ListIdentities", ctx).Return([]task.Identity{
		{ID: "2", Username: "zoe"},
		{ID: "1", Username: "adam"},
	}, nil)

	list, err := NewResolver(repo).List(ctx)

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "adam", list[0].Username)
}
