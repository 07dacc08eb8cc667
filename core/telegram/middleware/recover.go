package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/botmesero/mesero/core/logger"
	tghelpers "github.com/botmesero/mesero/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ErrPanic wraps a value recovered from a handler panic.
type ErrPanic struct {
	Value any
}

func (e *ErrPanic) Error() string { return fmt.Sprintf("telegram: handler panic: %v", e.Value) }

// RecoverMiddleware turns a handler panic into an *ErrPanic, which Telebot
// hands to its OnError callback like any other handler error.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err = &ErrPanic{Value: r}
			logger.Error(tghelpers.BuildContext(c), "tg", "tg.panic",
				slog.String("err", err.Error()),
				slog.String("stack", string(debug.Stack())),
			)
		}()
		return next(c)
	}
}
