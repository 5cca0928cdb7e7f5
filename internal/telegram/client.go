// Package telegram связывает Bot API с сервисами бота: меню, сценарий покупки,
// бесплатная выдача, пересылка чеков администратору и решения по ним.
package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

// Client часть Bot API, которой пользуется бот. Её реализует *tgbotapi.BotAPI.
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
}

func userID(u *tgbotapi.User) string {
	return strconv.FormatInt(u.ID, 10)
}

func identityOf(u *tgbotapi.User) models.Identity {
	return models.Identity{
		FullName: strings.TrimSpace(u.FirstName + " " + u.LastName),
		Username: u.UserName,
	}
}

func chatID(userID string) (int64, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", userID, err)
	}
	return id, nil
}
