// Package reminder периодически напоминает пользователям о скором окончании подписки.
// Статус учётных записей не меняется: оставшиеся дни по-прежнему считаются при чтении.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/notify"
)

// AccountRepository источник активных учётных записей.
type AccountRepository interface {
	ListActiveAccounts(ctx context.Context) ([]*models.Account, error)
}

// Service сервис напоминаний.
type Service struct {
	repo     AccountRepository
	notifier notify.Notifier
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт Service. Напоминание получают подписки, истекающие в ближайший interval.
func New(repo AccountRepository, notifier notify.Notifier, interval time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Run выполняет проверку сразу и затем раз в interval до отмены ctx.
func (s *Service) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info("expiry reminders are disabled")
		return
	}
	s.RemindExpiring(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RemindExpiring(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RemindExpiring отправляет напоминания и возвращает их количество.
func (s *Service) RemindExpiring(ctx context.Context) int {
	const op = "reminder.RemindExpiring"
	log := s.log.With(slog.String("op", op))

	accounts, err := s.repo.ListActiveAccounts(ctx)
	if err != nil {
		log.Error("failed to list active accounts", sl.Err(err))
		return 0
	}

	now := s.now()
	sent := 0
	for _, a := range accounts {
		left := a.Expiry.Sub(now)
		if left <= 0 || left > s.interval {
			continue
		}
		s.notifier.Notify(ctx, a.UserID, notify.KindReminder, Text(a))
		sent++
	}
	if sent > 0 {
		log.Info("expiry reminders sent", slog.Int("count", sent))
	}
	return sent
}

// Text текст напоминания.
func Text(a *models.Account) string {
	return fmt.Sprintf("⏰ اشتراک «%s» شما در %s به پایان می‌رسد.\n"+
		"برای تمدید از منوی «خرید اشتراک» استفاده کنید.",
		a.Plan, a.Expiry.Format("2006/01/02 15:04"))
}
