// Package moderation применяет решения администратора по чекам об оплате.
// Повторное решение по пользователю, у которого не осталось чеков, ничего не меняет.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-bot/internal/catalog"
	"github.com/magabrotheeeer/subscription-bot/internal/directory"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/metrics"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/notify"
)

var (
	// ErrUnauthorized решение принимает не администратор.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidDecision решение не удалось разобрать или оно не соответствует каталогу.
	ErrInvalidDecision = errors.New("invalid decision")
)

// Outcome результат решения.
type Outcome string

const (
	// OutcomeApplied решение применено.
	OutcomeApplied Outcome = "applied"
	// OutcomeNoop чеков пользователя уже нет, ничего не изменено.
	OutcomeNoop Outcome = "noop"
)

// Repository хранилище чеков и учётных записей.
type Repository interface {
	ApproveReceipts(ctx context.Context, a models.Account) (int, error)
	RemoveReceiptsByUser(ctx context.Context, userID string) (int, error)
	ListActiveAccounts(ctx context.Context) ([]*models.Account, error)
	ListPendingReceipts(ctx context.Context) ([]*models.Receipt, error)
}

// AccountCache сохраняет в кэш учётную запись после её изменения.
type AccountCache interface {
	Remember(ctx context.Context, a models.Account)
}

// Result результат применения решения.
type Result struct {
	Outcome Outcome
	// Account активированная запись, только для применённого одобрения.
	Account *models.Account
}

// Panel сводка для администратора.
type Panel struct {
	Active  []*models.Account
	Pending []*models.Receipt
}

// Service сервис модерации.
type Service struct {
	adminID  string
	catalog  *catalog.Catalog
	repo     Repository
	resolver directory.Resolver
	notifier notify.Notifier
	accounts AccountCache
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New создаёт Service.
func New(
	adminID string,
	cat *catalog.Catalog,
	repo Repository,
	resolver directory.Resolver,
	notifier notify.Notifier,
	accounts AccountCache,
	log *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		adminID:  adminID,
		catalog:  cat,
		repo:     repo,
		resolver: resolver,
		notifier: notifier,
		accounts: accounts,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

// IsAdmin сообщает, является ли actorID администратором.
func (s *Service) IsAdmin(actorID string) bool {
	return actorID != "" && actorID == s.adminID
}

// Decide применяет решение администратора. Проверка прав выполняется до любых изменений.
func (s *Service) Decide(ctx context.Context, actorID string, d Decision) (Result, error) {
	const op = "moderation.Decide"
	log := s.log.With(slog.String("op", op), sl.UserID(d.UserID), slog.String("action", string(d.Action)))

	if !s.IsAdmin(actorID) {
		log.Warn("decision from non-admin rejected", slog.String("actor_id", actorID))
		return Result{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	if err := d.Validate(s.catalog); err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	var (
		res Result
		err error
	)
	if d.Action == ActionApprove {
		res, err = s.approve(ctx, d, log)
	} else {
		res, err = s.reject(ctx, d, log)
	}
	if err != nil {
		s.metrics.Decision(string(d.Action), "error")
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.Decision(string(d.Action), string(res.Outcome))
	return res, nil
}

func (s *Service) approve(ctx context.Context, d Decision, log *slog.Logger) (Result, error) {
	plan, err := s.catalog.Plan(d.PlanID)
	if err != nil {
		return Result{}, err
	}
	expiry := s.now().Add(time.Duration(plan.Days) * 24 * time.Hour)
	id := s.resolver.Resolve(ctx, d.UserID)

	acc := models.Account{
		UserID:    d.UserID,
		Plan:      plan.Name,
		UserCount: d.UserCount,
		Expiry:    expiry,
		Status:    models.StatusActive,
		FullName:  id.FullName,
		Username:  id.Username,
	}
	removed, err := s.repo.ApproveReceipts(ctx, acc)
	if err != nil {
		return Result{}, err
	}
	if removed == 0 {
		log.Info("no pending receipts, approval ignored")
		return Result{Outcome: OutcomeNoop}, nil
	}
	s.accounts.Remember(ctx, acc)
	log.Info("subscription activated", slog.Int("receipts", removed), slog.Time("expiry", expiry))

	s.notifier.Notify(ctx, d.UserID, notify.KindApproved, ApprovedText(plan.Name, d.UserCount, expiry))
	return Result{Outcome: OutcomeApplied, Account: &acc}, nil
}

func (s *Service) reject(ctx context.Context, d Decision, log *slog.Logger) (Result, error) {
	removed, err := s.repo.RemoveReceiptsByUser(ctx, d.UserID)
	if err != nil {
		return Result{}, err
	}
	if removed == 0 {
		log.Info("no pending receipts, rejection ignored")
		return Result{Outcome: OutcomeNoop}, nil
	}
	log.Info("receipts rejected", slog.Int("receipts", removed))

	s.notifier.Notify(ctx, d.UserID, notify.KindRejected, RejectedText)
	return Result{Outcome: OutcomeApplied}, nil
}

// Panel возвращает активные подписки и чеки в очереди, новые первыми.
func (s *Service) Panel(ctx context.Context, actorID string) (Panel, error) {
	const op = "moderation.Panel"

	if !s.IsAdmin(actorID) {
		return Panel{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	active, err := s.repo.ListActiveAccounts(ctx)
	if err != nil {
		return Panel{}, fmt.Errorf("%s: %w", op, err)
	}
	pending, err := s.repo.ListPendingReceipts(ctx)
	if err != nil {
		return Panel{}, fmt.Errorf("%s: %w", op, err)
	}
	return Panel{Active: active, Pending: pending}, nil
}

// RejectedText уведомление об отклонённой оплате.
const RejectedText = "❌ پرداخت شما تأیید نشد."

// ApprovedText уведомление об активированной подписке.
func ApprovedText(planName string, userCount int, expiry time.Time) string {
	return fmt.Sprintf("🎉 اشتراک شما فعال شد!\n📦 %s\n👥 %d کاربر\n📅 انقضا: %s",
		planName, userCount, expiry.Format("2006/01/02"))
}
