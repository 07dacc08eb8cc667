package middleware

import (
	tghelpers "github.com/botmesero/mesero/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// BotTag marks every update with the name of the bot that received it, so
// logs from several bots sharing one process stay apart.
func BotTag(name string) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			tghelpers.SetBotName(c, name)
			return next(c)
		}
	}
}
