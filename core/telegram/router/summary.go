package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/botmesero/mesero/core/logger"
	tghelpers "github.com/botmesero/mesero/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// summary writes the single handler.handled line of a routed update.
type summary struct {
	handler string
	start   time.Time
	extras  []slog.Attr
}

func newSummary(handler string, extras ...slog.Attr) *summary {
	return &summary{handler: handler, start: time.Now(), extras: extras}
}

// run calls h with the handler name in the update's log context and logs
// the outcome, including what h queued for delivery.
func (s *summary) run(c tele.Context, h tele.HandlerFunc) error {
	tghelpers.WithHandler(c, s.handler)
	var err error
	if h != nil {
		err = h(c)
	}
	s.write(c, logger.Status(err), err)
	return err
}

// skip logs an update nobody handled.
func (s *summary) skip(c tele.Context) {
	tghelpers.WithHandler(c, s.handler)
	s.write(c, "skip", nil)
}

func (s *summary) write(c tele.Context, status string, err error) {
	ctx := tghelpers.BuildContext(c)
	out := tghelpers.Tally(c)
	attrs := make([]slog.Attr, 0, 11+len(s.extras))
	attrs = append(attrs,
		slog.String("status", status),
		slog.String("handler", s.handler),
		slog.String("outcome", logger.Status(err)),
		slog.Int("messages", out.Messages),
		slog.Int("edits", out.Edits),
		slog.Int("toasts", out.Toasts),
		slog.Bool("kb", out.Keyboard),
		slog.Duration("duration", logger.Took(s.start)),
	)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errCode(err)),
			slog.String("cause", s.handler),
		)
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "handler.handled", append(attrs, s.extras...)...)
}

// handlerName turns a command or callback key into a log friendly name.
func handlerName(key string) string {
	key = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(key), "/"))
	if key == "" {
		return "unknown"
	}
	return strings.Join(strings.Fields(key), "_")
}

// errCode is the upper case type name of the innermost error, or the
// Code() of an error that carries one.
func errCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.Join(strings.Fields(code), "_"))
		}
	}
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}
	name := strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToUpper(name)
}
