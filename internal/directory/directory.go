// Package directory определяет отображаемое имя и логин пользователя для активации подписки.
// Источники опрашиваются по очереди; если ни один не ответил, используются заглушки.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/storage"
)

// Заглушки для пользователя, о котором ничего не известно.
const (
	UnknownName     = "نام ناشناس"
	UnknownUsername = "نام کاربری ندارد"
)

// ErrLookupFailed источник не смог определить пользователя.
var ErrLookupFailed = errors.New("directory lookup failed")

// Source источник сведений о пользователе.
type Source interface {
	Identity(ctx context.Context, userID string) (models.Identity, error)
}

// Resolver всегда возвращает сведения о пользователе и никогда не завершается ошибкой.
type Resolver interface {
	Resolve(ctx context.Context, userID string) models.Identity
}

// Chain опрашивает источники по порядку.
type Chain struct {
	sources []Source
	log     *slog.Logger
}

// NewChain создаёт Chain. Обычно первым идёт живой источник, затем сохранённые данные.
func NewChain(log *slog.Logger, sources ...Source) *Chain {
	return &Chain{sources: sources, log: log}
}

// Resolve возвращает сведения первого ответившего источника или заглушки.
func (c *Chain) Resolve(ctx context.Context, userID string) models.Identity {
	for _, src := range c.sources {
		id, err := src.Identity(ctx, userID)
		if err == nil {
			return id
		}
		c.log.Debug("identity source failed, falling back", sl.UserID(userID), sl.Err(err))
	}
	c.log.Warn("identity unknown, using placeholders", sl.UserID(userID))
	return models.Identity{FullName: UnknownName, Username: UnknownUsername}
}

// AccountReader читает сохранённую учётную запись.
type AccountReader interface {
	GetAccount(ctx context.Context, userID string) (*models.Account, error)
}

// Stored источник по сохранённой учётной записи.
type Stored struct {
	accounts AccountReader
}

// NewStored создаёт источник поверх хранилища учётных записей.
func NewStored(accounts AccountReader) *Stored {
	return &Stored{accounts: accounts}
}

// Identity возвращает имя и логин из учётной записи.
func (s *Stored) Identity(ctx context.Context, userID string) (models.Identity, error) {
	const op = "directory.Stored.Identity"

	acc, err := s.accounts.GetAccount(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Identity{}, fmt.Errorf("%s: %w", op, ErrLookupFailed)
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("%s: %w: %w", op, ErrLookupFailed, err)
	}
	return models.Identity{FullName: acc.FullName, Username: acc.Username}, nil
}
