// Package account обслуживает первое обращение пользователя и просмотр статуса подписки.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/storage"
)

const cacheTTL = 10 * time.Minute

// Repository хранилище учётных записей.
type Repository interface {
	GetAccount(ctx context.Context, userID string) (*models.Account, error)
	EnsureAccount(ctx context.Context, a models.Account) (bool, error)
}

// Cache кэш JSON-значений.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// View состояние подписки на момент запроса.
type View struct {
	Account       *models.Account
	RemainingDays int
}

// Active сообщает, есть ли у пользователя активная подписка.
func (v View) Active() bool {
	return v.Account != nil && v.Account.IsActive()
}

// Service сервис учётных записей. cache может быть nil.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
	now   func() time.Time
}

// New создаёт Service.
func New(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
		now:   time.Now,
	}
}

func cacheKey(userID string) string {
	return "account:" + userID
}

// Start регистрирует пользователя при первом обращении: создаётся неактивная запись
// с бесплатным шаблоном. У существующей записи обновляются только имя и логин.
func (s *Service) Start(ctx context.Context, userID string, id models.Identity) (bool, error) {
	const op = "account.Start"
	log := s.log.With(slog.String("op", op), sl.UserID(userID))

	created, err := s.repo.EnsureAccount(ctx, models.NewFreeTemplate(userID, id.FullName, id.Username, s.now()))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if created {
		log.Info("account created")
	}
	s.Forget(ctx, userID)
	return created, nil
}

// Status возвращает подписку пользователя. Отсутствие записи не считается ошибкой.
func (s *Service) Status(ctx context.Context, userID string) (View, error) {
	const op = "account.Status"
	log := s.log.With(slog.String("op", op), sl.UserID(userID))

	var acc *models.Account
	if s.cache != nil {
		found, err := s.cache.Get(ctx, cacheKey(userID), &acc)
		if err != nil {
			log.Warn("failed to read account from cache", sl.Err(err))
		} else if found && acc != nil {
			return s.view(acc), nil
		}
	}

	acc, err := s.repo.GetAccount(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return View{}, nil
	}
	if err != nil {
		return View{}, fmt.Errorf("%s: %w", op, err)
	}

	// Запись из базы кладётся в кэш, только если её там нет: значение, записанное
	// после изменения учётной записи, не перетирается прочитанным раньше.
	if s.cache != nil {
		if _, err := s.cache.SetNX(ctx, cacheKey(userID), acc, cacheTTL); err != nil {
			log.Warn("failed to cache account", sl.Err(err))
		}
	}
	return s.view(acc), nil
}

// Remember записывает в кэш учётную запись, только что сохранённую в базе.
// Если записать не удалось, ключ удаляется, чтобы следующее чтение пошло в базу.
func (s *Service) Remember(ctx context.Context, a models.Account) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(a.UserID), &a, cacheTTL); err != nil {
		s.log.Warn("failed to cache account", sl.UserID(a.UserID), sl.Err(err))
		s.Forget(ctx, a.UserID)
	}
}

// Forget сбрасывает закэшированную учётную запись после её изменения.
func (s *Service) Forget(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cacheKey(userID)); err != nil {
		s.log.Warn("failed to invalidate account cache", sl.UserID(userID), sl.Err(err))
	}
}

func (s *Service) view(acc *models.Account) View {
	return View{Account: acc, RemainingDays: acc.RemainingDays(s.now())}
}
