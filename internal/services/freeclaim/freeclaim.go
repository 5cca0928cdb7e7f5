// Package freeclaim выдаёт бесплатную подписку не чаще одного раза за период охлаждения.
package freeclaim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-bot/internal/config"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/qrcode"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/metrics"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

// ErrRateLimited бесплатная подписка уже выдавалась в пределах периода охлаждения.
var ErrRateLimited = errors.New("free claim rate limited")

// RateLimitedError отказ с оставшимся временем ожидания.
type RateLimitedError struct {
	Remaining time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: retry in %s", ErrRateLimited, e.Remaining.Round(time.Second))
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrRateLimited).
func (e *RateLimitedError) Unwrap() error {
	return ErrRateLimited
}

// Repository хранилище отметок выдачи и учётных записей.
type Repository interface {
	LastFreeClaim(ctx context.Context, userID string) (time.Time, bool, error)
	RecordFreeClaim(ctx context.Context, userID string, at time.Time) error
	GrantFree(ctx context.Context, userID string, id models.Identity, now time.Time,
		cooldown time.Duration, expiry time.Time) (models.FreeClaimResult, error)
}

// AccountCache сохраняет в кэш учётную запись после её изменения.
type AccountCache interface {
	Remember(ctx context.Context, a models.Account)
}

// Grant выданная бесплатная подписка.
type Grant struct {
	Title      string
	Traffic    string
	ConfigLink string
	QR         []byte
	Expiry     time.Time
}

// Service сервис бесплатных выдач.
type Service struct {
	repo     Repository
	accounts AccountCache
	cfg      config.FreeGrant
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New создаёт Service.
func New(repo Repository, accounts AccountCache, cfg config.FreeGrant, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:     repo,
		accounts: accounts,
		cfg:      cfg,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

// CanClaim true, если выдач не было или с последней прошло строго больше периода охлаждения.
func (s *Service) CanClaim(ctx context.Context, userID string) (bool, error) {
	const op = "freeclaim.CanClaim"

	last, found, err := s.repo.LastFreeClaim(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return !found || s.now().Sub(last) > s.cfg.Cooldown, nil
}

// RecordClaim отмечает выдачу текущим временем.
func (s *Service) RecordClaim(ctx context.Context, userID string) error {
	const op = "freeclaim.RecordClaim"

	if err := s.repo.RecordFreeClaim(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Claim проверяет интервал, фиксирует выдачу и активирует бесплатную подписку одной
// транзакцией хранилища. Действующая платная подписка не понижается до бесплатной.
func (s *Service) Claim(ctx context.Context, userID string, id models.Identity) (*Grant, error) {
	const op = "freeclaim.Claim"
	log := s.log.With(slog.String("op", op), sl.UserID(userID))

	now := s.now()
	expiry := now.Add(s.cfg.Duration)
	res, err := s.repo.GrantFree(ctx, userID, id, now, s.cfg.Cooldown, expiry)
	if err != nil {
		s.metrics.FreeClaim("error")
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !res.Granted {
		s.metrics.FreeClaim("rate_limited")
		remaining := s.cfg.Cooldown - now.Sub(res.LastClaim)
		if remaining < 0 {
			remaining = 0
		}
		log.Info("free claim refused", slog.Duration("remaining", remaining))
		return nil, &RateLimitedError{Remaining: remaining}
	}
	s.accounts.Remember(ctx, res.Account)

	grant := &Grant{
		Title:      s.cfg.Title,
		Traffic:    s.cfg.Traffic,
		ConfigLink: s.cfg.ConfigLink,
		Expiry:     expiry,
	}
	grant.QR, err = qrcode.Generate(s.cfg.ConfigLink, qrcode.DefaultSize)
	if err != nil {
		log.Warn("failed to render qr code", sl.Err(err))
	}

	s.metrics.FreeClaim("granted")
	log.Info("free subscription granted", slog.Time("expiry", grant.Expiry))
	return grant, nil
}
