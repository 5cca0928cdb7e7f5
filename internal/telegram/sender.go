package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/subscription-bot/internal/catalog"
	"github.com/magabrotheeeer/subscription-bot/internal/directory"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

// Sender отправляет сообщения от имени бота: уведомления пользователям и чеки администратору.
type Sender struct {
	client  Client
	adminID string
	catalog *catalog.Catalog
}

// NewSender создаёт Sender.
func NewSender(client Client, adminID string, cat *catalog.Catalog) *Sender {
	return &Sender{client: client, adminID: adminID, catalog: cat}
}

// SendText отправляет текст с главным меню.
func (s *Sender) SendText(_ context.Context, userID, text string) error {
	const op = "telegram.SendText"

	id, err := chatID(userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := tgbotapi.NewMessage(id, text)
	msg.ReplyMarkup = mainMenu(userID == s.adminID)
	if _, err := s.client.Send(msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ForwardReceipt отправляет администратору фото чека с кнопками решения.
func (s *Sender) ForwardReceipt(_ context.Context, r models.Receipt) error {
	const op = "telegram.ForwardReceipt"

	admin, err := chatID(s.adminID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	planName := r.PlanID
	if plan, err := s.catalog.Plan(r.PlanID); err == nil {
		planName = plan.Name
	}

	photo := tgbotapi.NewPhoto(admin, tgbotapi.FileID(r.PhotoFileID))
	photo.Caption = receiptCaption(r, planName)
	photo.ReplyMarkup = decisionKeyboard(r.UserID, r.PlanID, r.UserCount)
	if _, err := s.client.Send(photo); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Identity живой источник сведений о пользователе через getChat.
func (s *Sender) Identity(_ context.Context, userID string) (models.Identity, error) {
	const op = "telegram.Identity"

	id, err := chatID(userID)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%s: %w: %w", op, directory.ErrLookupFailed, err)
	}
	chat, err := s.client.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: id}})
	if err != nil {
		return models.Identity{}, fmt.Errorf("%s: %w: %w", op, directory.ErrLookupFailed, err)
	}
	name := strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	if name == "" {
		return models.Identity{}, fmt.Errorf("%s: %w: empty chat name", op, directory.ErrLookupFailed)
	}
	return models.Identity{FullName: name, Username: chat.UserName}, nil
}
