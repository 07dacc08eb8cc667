package router

import (
	"log/slog"

	tg "github.com/botmesero/mesero/core/telegram"
	"github.com/botmesero/mesero/core/telegram/callbacks"
	tghelpers "github.com/botmesero/mesero/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound runs for unknown keys when the registry has no handler for them.
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches callback queries by key through reg. Every query
// is answered exactly once: by the handler's toast, or with an empty answer
// after the handler returned.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler: func(c tele.Context) error {
			cb := c.Callback()
			if cb == nil {
				return nil
			}
			defer func() {
				if !tghelpers.Answered(c) {
					_ = c.Respond()
				}
			}()

			key, _ := callbacks.ParseCallbackData(cb)
			keyAttr := slog.String("cb_key", key)
			if h, ok := reg.GetCallback(key); ok {
				return newSummary("callback."+handlerName(key), keyAttr).run(c, h)
			}

			notFound := reg.CallbackNotFound()
			if notFound == nil {
				notFound = opts.NotFound
			}
			return newSummary("callback.unknown", keyAttr, slog.String("reason", "not_found")).run(c, notFound)
		},
	}
}
