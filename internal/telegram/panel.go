package telegram

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/magabrotheeeer/subscription-bot/internal/catalog"
	"github.com/magabrotheeeer/subscription-bot/internal/services/moderation"
)

// maxMessageLen предел длины текстового сообщения Telegram.
const maxMessageLen = 4096

func formatPanel(p moderation.Panel, cat *catalog.Catalog, now time.Time) string {
	lines := []string{"👤 لیست کاربران فعال:\n"}
	if len(p.Active) == 0 {
		lines = append(lines, txtNoActiveAccounts)
	}
	for _, a := range p.Active {
		handle := txtNoHandle
		if a.Username != "" {
			handle = "@" + a.Username
		}
		lines = append(lines, fmt.Sprintf("📄 %s | %s | %s | %d کاربر | ⏳ %d روز",
			a.FullName, handle, a.Plan, a.UserCount, a.RemainingDays(now)))
	}

	lines = append(lines, "\n\n📥 رسیدهای در انتظار تأیید:")
	if len(p.Pending) == 0 {
		lines = append(lines, txtNoPending)
	}
	for _, r := range p.Pending {
		planName := r.PlanID
		if plan, err := cat.Plan(r.PlanID); err == nil {
			planName = plan.Name
		}
		lines = append(lines, fmt.Sprintf("🆔 %s | 📄 %s (@%s) | %s | %d کاربر | 💰 %s$",
			r.UserID, r.FullName, r.Username, planName, r.UserCount, formatPrice(r.Price)))
	}

	return truncate(strings.Join(lines, "\n"), maxMessageLen)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-6]) + "..."
}
