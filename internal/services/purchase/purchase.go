// Package purchase ведёт пользователя по сценарию покупки: число пользователей, тариф,
// цена и чек об оплате. Переходы одного пользователя выполняются последовательно.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-bot/internal/catalog"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/metrics"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/session"
)

var (
	// ErrMissingSelectionContext чек прислан без выбранного тарифа.
	ErrMissingSelectionContext = errors.New("missing selection context")
	// ErrInvalidTransition шаг недоступен в текущем состоянии сессии.
	ErrInvalidTransition = errors.New("invalid purchase transition")
)

// Repository очередь чеков.
type Repository interface {
	SaveReceipt(ctx context.Context, r models.Receipt) (int64, error)
}

// ReceiptForwarder пересылает чек администратору с кнопками решения.
type ReceiptForwarder interface {
	ForwardReceipt(ctx context.Context, r models.Receipt) error
}

// Service сервис покупки.
type Service struct {
	catalog   *catalog.Catalog
	sessions  session.Store
	repo      Repository
	forwarder ReceiptForwarder
	log       *slog.Logger
	metrics   *metrics.Metrics
	locks     *keyedMutex
	now       func() time.Time
}

// New создаёт Service.
func New(
	cat *catalog.Catalog,
	sessions session.Store,
	repo Repository,
	forwarder ReceiptForwarder,
	log *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		catalog:   cat,
		sessions:  sessions,
		repo:      repo,
		forwarder: forwarder,
		log:       log,
		metrics:   m,
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

// Begin начинает покупку заново.
func (s *Service) Begin(ctx context.Context, userID string) error {
	const op = "purchase.Begin"
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.sessions.Delete(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Current текущая сессия пользователя.
func (s *Service) Current(ctx context.Context, userID string) (session.Session, error) {
	const op = "purchase.Current"
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return session.Session{}, fmt.Errorf("%s: %w", op, err)
	}
	return sess, nil
}

// ChooseUserCount выбирает число пользователей. Допустимо только из пустой сессии.
func (s *Service) ChooseUserCount(ctx context.Context, userID string, n int) (session.Session, error) {
	const op = "purchase.ChooseUserCount"
	unlock := s.locks.Lock(userID)
	defer unlock()

	if !s.catalog.HasTier(n) {
		return session.Session{}, fmt.Errorf("%s: %w: tier %d", op, catalog.ErrInvalidSelection, n)
	}
	cur, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return session.Session{}, fmt.Errorf("%s: %w", op, err)
	}
	if cur.State != session.StateEmpty {
		return session.Session{}, fmt.Errorf("%s: %w: from %q", op, ErrInvalidTransition, cur.State)
	}

	next := session.Session{State: session.StateUserCountChosen, UserCount: n}
	if err := s.sessions.Save(ctx, userID, next); err != nil {
		return session.Session{}, fmt.Errorf("%s: %w", op, err)
	}
	return next, nil
}

// ChoosePlan выбирает тариф и считает цену. Допустимо только после выбора числа пользователей.
func (s *Service) ChoosePlan(ctx context.Context, userID, planID string) (session.Session, error) {
	const op = "purchase.ChoosePlan"
	unlock := s.locks.Lock(userID)
	defer unlock()

	cur, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return session.Session{}, fmt.Errorf("%s: %w", op, err)
	}
	if cur.State != session.StateUserCountChosen {
		return session.Session{}, fmt.Errorf("%s: %w: from %q", op, ErrInvalidTransition, cur.State)
	}
	price, err := s.catalog.Price(planID, cur.UserCount)
	if err != nil {
		return session.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	next := session.Session{
		State:     session.StatePlanChosen,
		UserCount: cur.UserCount,
		PlanID:    planID,
		Price:     price,
	}
	if err := s.sessions.Save(ctx, userID, next); err != nil {
		return session.Session{}, fmt.Errorf("%s: %w", op, err)
	}
	return next, nil
}

// SubmitReceipt ставит чек в очередь по выбранному тарифу и сбрасывает сессию.
// Без выбранного тарифа возвращается ErrMissingSelectionContext.
func (s *Service) SubmitReceipt(ctx context.Context, userID string, id models.Identity, proofRef string) (models.Receipt, error) {
	const op = "purchase.SubmitReceipt"
	log := s.log.With(slog.String("op", op), sl.UserID(userID))
	unlock := s.locks.Lock(userID)
	defer unlock()

	cur, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return models.Receipt{}, fmt.Errorf("%s: %w", op, err)
	}
	if cur.State != session.StatePlanChosen {
		return models.Receipt{}, fmt.Errorf("%s: %w", op, ErrMissingSelectionContext)
	}

	r := models.Receipt{
		UserID:      userID,
		Username:    id.Username,
		FullName:    id.FullName,
		PlanID:      cur.PlanID,
		UserCount:   cur.UserCount,
		Price:       cur.Price,
		PhotoFileID: proofRef,
		SubmittedAt: s.now(),
	}
	r.ID, err = s.repo.SaveReceipt(ctx, r)
	if err != nil {
		return models.Receipt{}, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.ReceiptSubmitted()
	log.Info("receipt queued", slog.Int64("receipt_id", r.ID), slog.String("plan", r.PlanID))

	if err := s.sessions.Delete(ctx, userID); err != nil {
		log.Warn("failed to reset purchase session", sl.Err(err))
	}

	if err := s.forwarder.ForwardReceipt(ctx, r); err != nil {
		log.Error("failed to forward receipt to admin", slog.Int64("receipt_id", r.ID), sl.Err(err))
	}
	return r, nil
}
