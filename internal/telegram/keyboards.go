package telegram

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/subscription-bot/internal/catalog"
	"github.com/magabrotheeeer/subscription-bot/internal/services/moderation"
)

const tiersPerRow = 3

func mainMenu(isAdmin bool) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(BtnStatus), tgbotapi.NewKeyboardButton(BtnBuy)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(BtnFree)),
	}
	if isAdmin {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(BtnAdminPanel)))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

func userCountKeyboard(tiers []int) tgbotapi.InlineKeyboardMarkup {
	var (
		rows [][]tgbotapi.InlineKeyboardButton
		row  []tgbotapi.InlineKeyboardButton
	)
	for _, n := range tiers {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%d کاربر", n), cbUsersPfx+strconv.Itoa(n)))
		if len(row) == tiersPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(txtBackToMenu, cbBackToMenu)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func planKeyboard(cat *catalog.Catalog, userCount int) (tgbotapi.InlineKeyboardMarkup, error) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range cat.Plans() {
		price, err := cat.Price(p.ID, userCount)
		if err != nil {
			return tgbotapi.InlineKeyboardMarkup{}, err
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%s – $%s", p.Name, formatPrice(price)), cbPlanPfx+p.ID)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(txtBack, cbUsers)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...), nil
}

func decisionKeyboard(userID, planID string, userCount int) tgbotapi.InlineKeyboardMarkup {
	approve := moderation.Decision{Action: moderation.ActionApprove, UserID: userID, PlanID: planID, UserCount: userCount}
	reject := moderation.Decision{Action: moderation.ActionReject, UserID: userID}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ تأیید", approve.CallbackData())),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❌ رد", reject.CallbackData())),
	)
}
