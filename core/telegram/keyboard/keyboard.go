// Package keyboard builds inline keyboards whose buttons route through the
// callback registry.
package keyboard

import (
	"context"
	"log/slog"

	"github.com/botmesero/mesero/core/logger"

	tele "gopkg.in/telebot.v4"
)

// MaxCallbackData is the Bot API limit for callback_data, in bytes.
const MaxCallbackData = 64

// InlineBtn is one callback button. Unique is the routing key; Data travels
// as the payload after "|".
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// CallbackData is what Telegram sends back when the button is pressed.
func (b InlineBtn) CallbackData() string {
	if b.Data == "" {
		return "\f" + b.Unique
	}
	return "\f" + b.Unique + "|" + b.Data
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn. Empty
// rows are skipped, and so are buttons whose callback data Telegram would
// reject for length.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	for _, row := range rows {
		var line []tele.InlineButton
		for _, b := range row {
			if n := len(b.CallbackData()); n > MaxCallbackData {
				logger.Warn(context.Background(), "tg", "keyboard.button.skip",
					slog.String("cb_key", b.Unique),
					slog.Int("bytes", n),
				)
				continue
			}
			line = append(line, tele.InlineButton{Text: b.Text, Unique: b.Unique, Data: b.Data})
		}
		if len(line) > 0 {
			markup.InlineKeyboard = append(markup.InlineKeyboard, line)
		}
	}
	return markup
}
