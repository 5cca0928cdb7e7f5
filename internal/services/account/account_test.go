package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/storage"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *RepoMock) EnsureAccount(ctx context.Context, a models.Account) (bool, error) {
	args := m.Called(ctx, a)
	return args.Bool(0), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

func (m *CacheMock) SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, expiration)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Invalidate(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(repo Repository, cache Cache, now time.Time) *Service {
	s := New(repo, cache, newNoopLogger())
	s.now = func() time.Time { return now }
	return s
}

func TestService_Start(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	id := models.Identity{FullName: "Ali", Username: "ali"}

	tests := []struct {
		name        string
		created     bool
		repoErr     error
		wantCreated bool
		wantErr     bool
	}{
		{name: "new user", created: true, wantCreated: true},
		{name: "existing user", created: false, wantCreated: false},
		{name: "storage error", repoErr: errors.New("db down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			cache := new(CacheMock)
			repo.On("EnsureAccount", mock.Anything, mock.MatchedBy(func(a models.Account) bool {
				return a.UserID == "1" && a.Plan == models.FreePlan && a.UserCount == 1 &&
					a.Status == models.StatusInactive && a.FullName == "Ali" && a.Username == "ali"
			})).Return(tt.created, tt.repoErr).Once()
			if !tt.wantErr {
				cache.On("Invalidate", mock.Anything, "account:1").Return(nil).Once()
			}

			created, err := newTestService(repo, cache, now).Start(context.Background(), "1", id)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCreated, created)
			repo.AssertExpectations(t)
			cache.AssertExpectations(t)
		})
	}
}

func TestService_Status(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	active := &models.Account{
		UserID: "1", Plan: "20 گیگابایت", UserCount: 4, Expiry: now.AddDate(0, 0, 15),
		Status: models.StatusActive,
	}

	t.Run("from repository, then cached", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		cache.On("Get", mock.Anything, "account:1", mock.Anything).Return(false, nil).Once()
		repo.On("GetAccount", mock.Anything, "1").Return(active, nil).Once()
		cache.On("SetNX", mock.Anything, "account:1", active, cacheTTL).Return(true, nil).Once()

		v, err := newTestService(repo, cache, now).Status(context.Background(), "1")
		require.NoError(t, err)
		assert.True(t, v.Active())
		assert.Equal(t, 15, v.RemainingDays)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("not registered", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetAccount", mock.Anything, "2").
			Return(nil, fmt.Errorf("storage.GetAccount: %w", storage.ErrNotFound)).Once()

		v, err := newTestService(repo, nil, now).Status(context.Background(), "2")
		require.NoError(t, err)
		assert.False(t, v.Active())
		assert.Nil(t, v.Account)
	})

	t.Run("cache error falls through to repository", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		cache.On("Get", mock.Anything, "account:1", mock.Anything).Return(false, errors.New("redis down")).Once()
		repo.On("GetAccount", mock.Anything, "1").Return(active, nil).Once()
		cache.On("SetNX", mock.Anything, "account:1", active, cacheTTL).Return(false, errors.New("redis down")).Once()

		v, err := newTestService(repo, cache, now).Status(context.Background(), "1")
		require.NoError(t, err)
		assert.True(t, v.Active())
	})

	t.Run("repository error", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetAccount", mock.Anything, "1").Return(nil, errors.New("db down")).Once()

		_, err := newTestService(repo, nil, now).Status(context.Background(), "1")
		require.Error(t, err)
	})

	t.Run("expired active account shows zero days", func(t *testing.T) {
		expired := *active
		expired.Expiry = now.Add(-time.Hour)
		repo := new(RepoMock)
		repo.On("GetAccount", mock.Anything, "1").Return(&expired, nil).Once()

		v, err := newTestService(repo, nil, now).Status(context.Background(), "1")
		require.NoError(t, err)
		assert.Equal(t, 0, v.RemainingDays)
	})
}

func TestService_Remember(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	acc := models.Account{UserID: "1", Plan: "20 گیگابایت", UserCount: 4,
		Expiry: now.AddDate(0, 0, 15), Status: models.StatusActive}

	t.Run("writes through", func(t *testing.T) {
		cache := new(CacheMock)
		cache.On("Set", mock.Anything, "account:1", &acc, cacheTTL).Return(nil).Once()

		newTestService(new(RepoMock), cache, now).Remember(context.Background(), acc)
		cache.AssertExpectations(t)
	})

	t.Run("failed write drops the key", func(t *testing.T) {
		cache := new(CacheMock)
		cache.On("Set", mock.Anything, "account:1", &acc, cacheTTL).Return(errors.New("redis down")).Once()
		cache.On("Invalidate", mock.Anything, "account:1").Return(nil).Once()

		newTestService(new(RepoMock), cache, now).Remember(context.Background(), acc)
		cache.AssertExpectations(t)
	})

	t.Run("no cache", func(t *testing.T) {
		assert.NotPanics(t, func() {
			newTestService(new(RepoMock), nil, now).Remember(context.Background(), acc)
		})
	})
}

// mapCache кэш в памяти с семантикой redis SET и SET NX.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}}
}

func (c *mapCache) Get(_ context.Context, key string, result any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, result)
}

func (c *mapCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *mapCache) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = raw
	return true, nil
}

func (c *mapCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// pausedRepo отдаёт запись, прочитанную до активации, и ждёт сигнала перед возвратом.
type pausedRepo struct {
	stale   *models.Account
	reading chan struct{}
	resume  chan struct{}
}

func (r *pausedRepo) GetAccount(context.Context, string) (*models.Account, error) {
	acc := *r.stale
	close(r.reading)
	<-r.resume
	return &acc, nil
}

func (r *pausedRepo) EnsureAccount(context.Context, models.Account) (bool, error) {
	return false, nil
}

func TestService_StatusDoesNotOverwriteNewerAccount(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &pausedRepo{
		stale:   &models.Account{UserID: "1", Plan: models.FreePlan, UserCount: 1, Status: models.StatusInactive, Expiry: now},
		reading: make(chan struct{}),
		resume:  make(chan struct{}),
	}
	s := newTestService(repo, newMapCache(), now)
	ctx := context.Background()

	done := make(chan View)
	go func() {
		v, err := s.Status(ctx, "1")
		assert.NoError(t, err)
		done <- v
	}()

	<-repo.reading
	s.Remember(ctx, models.Account{UserID: "1", Plan: "20 گیگابایت", UserCount: 4,
		Expiry: now.AddDate(0, 0, 15), Status: models.StatusActive})
	close(repo.resume)
	<-done

	v, err := s.Status(ctx, "1")
	require.NoError(t, err)
	assert.True(t, v.Active())
	assert.Equal(t, 15, v.RemainingDays)
}
