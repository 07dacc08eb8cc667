package router

import (
	tg "github.com/botmesero/mesero/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the handler for plain text. Text that names a registered
// command, such as "start" typed without the slash, runs that command;
// anything else goes to the registry's text fallback, then to UnknownText.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && !cmd.AdminOnly {
				return newSummary(handlerName(key)).run(c, cmd.Handler)
			}
			if fb := reg.TextFallback(); fb != nil {
				return newSummary("fallback").run(c, fb)
			}
		}
		s := newSummary("unknown_text")
		if opts.UnknownText == nil {
			s.skip(c)
			return nil
		}
		return s.run(c, opts.UnknownText)
	}
	return []tg.Route{{Endpoint: tele.OnText, Handler: handler}}
}
