// Package session хранит незавершённый выбор пользователя в сценарии покупки.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/magabrotheeeer/subscription-bot/internal/cache"
)

// State шаг сценария покупки.
type State string

const (
	StateEmpty           State = ""
	StateUserCountChosen State = "user_count_chosen"
	StatePlanChosen      State = "plan_chosen"
)

// Session выбор пользователя. Поля, не относящиеся к текущему шагу, пустые.
type Session struct {
	State     State   `json:"state"`
	UserCount int     `json:"user_count,omitempty"`
	PlanID    string  `json:"plan_id,omitempty"`
	Price     float64 `json:"price,omitempty"`
}

// Store хранилище сессий по идентификатору пользователя.
// Get для отсутствующей или просроченной сессии возвращает пустую сессию.
type Store interface {
	Get(ctx context.Context, userID string) (Session, error)
	Save(ctx context.Context, userID string, s Session) error
	Delete(ctx context.Context, userID string) error
}

const keyPrefix = "purchase:session:"

// RedisStore хранит сессии в redis с TTL.
type RedisStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewRedisStore создаёт хранилище сессий поверх redis.
func NewRedisStore(c *cache.Cache, ttl time.Duration) *RedisStore {
	return &RedisStore{cache: c, ttl: ttl}
}

// Get читает сессию пользователя.
func (r *RedisStore) Get(ctx context.Context, userID string) (Session, error) {
	const op = "session.RedisStore.Get"
	var s Session
	found, err := r.cache.Get(ctx, keyPrefix+userID, &s)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return Session{}, nil
	}
	return s, nil
}

// Save сохраняет сессию и продлевает её срок.
func (r *RedisStore) Save(ctx context.Context, userID string, s Session) error {
	const op = "session.RedisStore.Save"
	if err := r.cache.Set(ctx, keyPrefix+userID, s, r.ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete удаляет сессию.
func (r *RedisStore) Delete(ctx context.Context, userID string) error {
	const op = "session.RedisStore.Delete"
	if err := r.cache.Invalidate(ctx, keyPrefix+userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type memoryEntry struct {
	session Session
	expires time.Time
}

// MemoryStore хранит сессии в памяти процесса. Используется, когда redis не настроен.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore создаёт хранилище в памяти. Нулевой ttl отключает истечение.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get возвращает сессию, просроченные записи удаляются при чтении.
func (m *MemoryStore) Get(_ context.Context, userID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[userID]
	if !ok {
		return Session{}, nil
	}
	if m.ttl > 0 && !m.now().Before(e.expires) {
		delete(m.entries, userID)
		return Session{}, nil
	}
	return e.session, nil
}

// Save сохраняет сессию.
func (m *MemoryStore) Save(_ context.Context, userID string, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[userID] = memoryEntry{session: s, expires: m.now().Add(m.ttl)}
	return nil
}

// Delete удаляет сессию.
func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, userID)
	return nil
}
