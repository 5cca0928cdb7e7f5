package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/subscription-bot/internal/catalog"
	"github.com/magabrotheeeer/subscription-bot/internal/config"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/services/account"
	"github.com/magabrotheeeer/subscription-bot/internal/services/freeclaim"
	"github.com/magabrotheeeer/subscription-bot/internal/services/moderation"
	"github.com/magabrotheeeer/subscription-bot/internal/services/purchase"
	"github.com/magabrotheeeer/subscription-bot/internal/session"
)

// AccountService регистрация и статус.
type AccountService interface {
	Start(ctx context.Context, userID string, id models.Identity) (bool, error)
	Status(ctx context.Context, userID string) (account.View, error)
}

// FreeService бесплатная выдача.
type FreeService interface {
	Claim(ctx context.Context, userID string, id models.Identity) (*freeclaim.Grant, error)
}

// PurchaseService сценарий покупки.
type PurchaseService interface {
	Begin(ctx context.Context, userID string) error
	ChooseUserCount(ctx context.Context, userID string, n int) (session.Session, error)
	ChoosePlan(ctx context.Context, userID, planID string) (session.Session, error)
	SubmitReceipt(ctx context.Context, userID string, id models.Identity, proofRef string) (models.Receipt, error)
}

// ModerationService решения администратора.
type ModerationService interface {
	IsAdmin(actorID string) bool
	Decide(ctx context.Context, actorID string, d moderation.Decision) (moderation.Result, error)
	Panel(ctx context.Context, actorID string) (moderation.Panel, error)
}

// Bot обработчик обновлений Telegram.
type Bot struct {
	client     Client
	catalog    *catalog.Catalog
	payment    config.Purchase
	accounts   AccountService
	free       FreeService
	purchase   PurchaseService
	moderation ModerationService
	log        *slog.Logger
	workers    int
	now        func() time.Time
}

// New создаёт Bot.
func New(
	client Client,
	cat *catalog.Catalog,
	payment config.Purchase,
	accounts AccountService,
	free FreeService,
	purchase PurchaseService,
	mod ModerationService,
	workers int,
	log *slog.Logger,
) *Bot {
	if workers <= 0 {
		workers = 1
	}
	return &Bot{
		client:     client,
		catalog:    cat,
		payment:    payment,
		accounts:   accounts,
		free:       free,
		purchase:   purchase,
		moderation: mod,
		log:        log,
		workers:    workers,
		now:        time.Now,
	}
}

// Run обрабатывает обновления до закрытия канала или отмены ctx.
// Одновременно обрабатывается не больше workers обновлений.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	sem := make(chan struct{}, b.workers)
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				defer func() { <-sem }()
				b.HandleUpdate(ctx, u)
			}(u)
		case <-ctx.Done():
			return
		}
	}
}

// HandleUpdate разбирает одно обновление.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil:
		b.handleMessage(ctx, u.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	uid := userID(m.From)
	switch {
	case m.IsCommand() && m.Command() == "start":
		b.onStart(ctx, m)
	case len(m.Photo) > 0:
		b.onSubmitProof(ctx, m)
	default:
		switch strings.TrimSpace(m.Text) {
		case BtnStatus:
			b.onRequestStatus(ctx, m)
		case BtnBuy:
			b.onBeginPurchase(ctx, m)
		case BtnFree:
			b.onRequestFreeGrant(ctx, m)
		case BtnAdminPanel:
			if b.moderation.IsAdmin(uid) {
				b.onAdminPanel(ctx, m)
				return
			}
			b.reply(m.Chat.ID, uid, txtUseMenu)
		default:
			b.reply(m.Chat.ID, uid, txtUseMenu)
		}
	}
}

func (b *Bot) onStart(ctx context.Context, m *tgbotapi.Message) {
	uid := userID(m.From)
	if _, err := b.accounts.Start(ctx, uid, identityOf(m.From)); err != nil {
		b.log.Error("failed to register user", sl.UserID(uid), sl.Err(err))
		b.reply(m.Chat.ID, uid, txtTryAgain)
		return
	}
	b.reply(m.Chat.ID, uid, txtWelcome)
}

func (b *Bot) onRequestStatus(ctx context.Context, m *tgbotapi.Message) {
	uid := userID(m.From)
	v, err := b.accounts.Status(ctx, uid)
	if err != nil {
		b.log.Error("failed to read status", sl.UserID(uid), sl.Err(err))
		b.reply(m.Chat.ID, uid, txtTryAgain)
		return
	}
	b.reply(m.Chat.ID, uid, statusText(v))
}

func (b *Bot) onBeginPurchase(ctx context.Context, m *tgbotapi.Message) {
	uid := userID(m.From)
	if err := b.purchase.Begin(ctx, uid); err != nil {
		b.log.Error("failed to begin purchase", sl.UserID(uid), sl.Err(err))
		b.reply(m.Chat.ID, uid, txtTryAgain)
		return
	}
	msg := tgbotapi.NewMessage(m.Chat.ID, txtChooseUsers)
	msg.ReplyMarkup = userCountKeyboard(b.catalog.Tiers())
	b.send(msg)
}

func (b *Bot) onRequestFreeGrant(ctx context.Context, m *tgbotapi.Message) {
	uid := userID(m.From)
	g, err := b.free.Claim(ctx, uid, identityOf(m.From))
	var rl *freeclaim.RateLimitedError
	switch {
	case errors.As(err, &rl):
		b.reply(m.Chat.ID, uid, rateLimitedText(rl.Remaining))
		return
	case err != nil:
		b.log.Error("failed to grant free subscription", sl.UserID(uid), sl.Err(err))
		b.reply(m.Chat.ID, uid, txtTryAgain)
		return
	}

	caption := freeGrantCaption(g, b.now())
	if len(g.QR) == 0 {
		msg := tgbotapi.NewMessage(m.Chat.ID, caption)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyMarkup = mainMenu(b.moderation.IsAdmin(uid))
		b.send(msg)
		return
	}
	photo := tgbotapi.NewPhoto(m.Chat.ID, tgbotapi.FileBytes{Name: "config.png", Bytes: g.QR})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	photo.ReplyMarkup = mainMenu(b.moderation.IsAdmin(uid))
	b.send(photo)
}

func (b *Bot) onSubmitProof(ctx context.Context, m *tgbotapi.Message) {
	uid := userID(m.From)
	largest := m.Photo[len(m.Photo)-1]
	_, err := b.purchase.SubmitReceipt(ctx, uid, identityOf(m.From), largest.FileID)
	switch {
	case errors.Is(err, purchase.ErrMissingSelectionContext):
		b.reply(m.Chat.ID, uid, txtStartPurchase)
	case err != nil:
		b.log.Error("failed to submit receipt", sl.UserID(uid), sl.Err(err))
		b.reply(m.Chat.ID, uid, txtTryAgain)
	default:
		b.reply(m.Chat.ID, uid, txtReceiptSent)
	}
}

func (b *Bot) onAdminPanel(ctx context.Context, m *tgbotapi.Message) {
	uid := userID(m.From)
	p, err := b.moderation.Panel(ctx, uid)
	if err != nil {
		b.log.Error("failed to build admin panel", sl.Err(err))
		b.reply(m.Chat.ID, uid, txtTryAgain)
		return
	}
	b.reply(m.Chat.ID, uid, formatPanel(p, b.catalog, b.now()))
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil || q.Message == nil || q.Message.Chat == nil {
		return
	}
	uid := userID(q.From)
	data := q.Data
	switch {
	case data == cbBackToMenu:
		b.answer(q, "")
		b.reply(q.Message.Chat.ID, uid, txtMainMenu)
	case data == cbUsers:
		b.answer(q, "")
		if err := b.purchase.Begin(ctx, uid); err != nil {
			b.log.Error("failed to restart purchase", sl.UserID(uid), sl.Err(err))
			return
		}
		b.send(tgbotapi.NewEditMessageTextAndMarkup(q.Message.Chat.ID, q.Message.MessageID,
			txtChooseUsers, userCountKeyboard(b.catalog.Tiers())))
	case strings.HasPrefix(data, cbUsersPfx):
		b.onChooseUserCount(ctx, q, strings.TrimPrefix(data, cbUsersPfx))
	case strings.HasPrefix(data, cbPlanPfx):
		b.onChoosePlan(ctx, q, strings.TrimPrefix(data, cbPlanPfx))
	case moderation.IsDecisionCallback(data):
		b.onAdminDecision(ctx, q)
	default:
		b.answer(q, "")
	}
}

func (b *Bot) onChooseUserCount(ctx context.Context, q *tgbotapi.CallbackQuery, raw string) {
	uid := userID(q.From)
	n, err := strconv.Atoi(raw)
	if err != nil {
		b.answer(q, txtStartPurchase)
		return
	}
	if err := b.purchase.Begin(ctx, uid); err != nil {
		b.log.Error("failed to restart purchase", sl.UserID(uid), sl.Err(err))
		b.answer(q, txtTryAgain)
		return
	}
	if _, err := b.purchase.ChooseUserCount(ctx, uid, n); err != nil {
		b.log.Warn("user count rejected", sl.UserID(uid), sl.Err(err))
		b.answer(q, txtStartPurchase)
		return
	}
	kb, err := planKeyboard(b.catalog, n)
	if err != nil {
		b.log.Error("failed to build plan keyboard", sl.Err(err))
		b.answer(q, txtTryAgain)
		return
	}
	b.answer(q, "")
	b.send(tgbotapi.NewEditMessageTextAndMarkup(q.Message.Chat.ID, q.Message.MessageID, txtChoosePlan, kb))
}

func (b *Bot) onChoosePlan(ctx context.Context, q *tgbotapi.CallbackQuery, planID string) {
	uid := userID(q.From)
	sess, err := b.purchase.ChoosePlan(ctx, uid, planID)
	if err != nil {
		b.log.Warn("plan choice rejected", sl.UserID(uid), sl.Err(err))
		b.answer(q, txtStartPurchase)
		return
	}
	plan, err := b.catalog.Plan(sess.PlanID)
	if err != nil {
		b.answer(q, txtTryAgain)
		return
	}
	b.answer(q, "")
	b.send(tgbotapi.NewEditMessageText(q.Message.Chat.ID, q.Message.MessageID,
		paymentText(plan, sess.UserCount, sess.Price, b.payment)))
}

func (b *Bot) onAdminDecision(ctx context.Context, q *tgbotapi.CallbackQuery) {
	actor := userID(q.From)
	d, err := moderation.ParseDecision(q.Data)
	if err != nil {
		b.answer(q, txtInvalidDecision)
		return
	}

	res, err := b.moderation.Decide(ctx, actor, d)
	switch {
	case errors.Is(err, moderation.ErrUnauthorized):
		b.answer(q, txtAccessDenied)
		return
	case errors.Is(err, moderation.ErrInvalidDecision):
		b.answer(q, txtInvalidDecision)
		return
	case err != nil:
		b.log.Error("failed to apply decision", sl.UserID(d.UserID), sl.Err(err))
		b.answer(q, txtDecisionFailed)
		return
	}

	if res.Outcome == moderation.OutcomeNoop {
		b.answer(q, txtAlreadyDecided)
		return
	}
	b.answer(q, "")
	caption := txtRejected
	if d.Action == moderation.ActionApprove {
		caption = txtActivated
	}
	b.send(tgbotapi.NewEditMessageCaption(q.Message.Chat.ID, q.Message.MessageID, caption))
}

func (b *Bot) reply(chat int64, uid, text string) {
	msg := tgbotapi.NewMessage(chat, text)
	msg.ReplyMarkup = mainMenu(b.moderation.IsAdmin(uid))
	b.send(msg)
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.client.Send(c); err != nil {
		b.log.Warn("failed to send message", sl.Err(err))
	}
}

func (b *Bot) answer(q *tgbotapi.CallbackQuery, text string) {
	if _, err := b.client.Request(tgbotapi.NewCallback(q.ID, text)); err != nil {
		b.log.Warn("failed to answer callback", sl.Err(err))
	}
}
