package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/promptcash/paybot/pkg/notify"
)

// TelegramNotifier delivers outbound messages over the Telegram Bot API.
type TelegramNotifier struct {
	api *tgbotapi.BotAPI
}

func NewTelegramNotifier(api *tgbotapi.BotAPI) *TelegramNotifier {
	return &TelegramNotifier{api: api}
}

// Send delivers one message to the user's private chat. Callers treat
// failures as non-fatal; the payment flow never depends on delivery.
func (n *TelegramNotifier) Send(ctx context.Context, platformID int64, out notify.Outbound) error {
	msg := tgbotapi.NewMessage(platformID, out.Text)
	if kb, ok := actionKeyboard(out.Actions); ok {
		msg.ReplyMarkup = kb
	}
	_, err := n.api.Send(msg)
	return err
}

func actionKeyboard(actions [][]notify.Action) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(actions) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range actions {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, a := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(a.Label, a.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}
