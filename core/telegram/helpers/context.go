package helpers

import (
	"context"

	"github.com/botmesero/mesero/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Keys of the per-update values kept in tele.Context.
const (
	contextKey  = "logger_ctx"
	botKey      = "bot_name"
	ridKey      = "rid"
	answeredKey = "cb_answered"
)

// SetBotName tags the update with the name of the bot that received it.
func SetBotName(c tele.Context, name string) {
	if c != nil && name != "" {
		c.Set(botKey, name)
	}
}

// BotName returns the tag set by SetBotName.
func BotName(c tele.Context) string {
	if c == nil {
		return ""
	}
	name, _ := c.Get(botKey).(string)
	return name
}

// BuildContext returns the log context of the current update. The first
// call derives it from the update and caches it in c; later calls, from
// any middleware or handler, get the same context back.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(contextKey).(context.Context); ok {
		return ctx
	}

	u := logger.Update{UpdateID: c.Update().ID, Bot: BotName(c)}
	if chat := c.Chat(); chat != nil {
		u.ChatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		u.UserID = user.ID
	}
	if rid, _ := c.Get(ridKey).(string); rid != "" {
		u.RID = rid
	} else {
		u.RID = logger.BuildRID(u.UpdateID, u.ChatID, u.UserID)
	}

	ctx := logger.WithUpdate(context.Background(), u)
	c.Set(contextKey, ctx)
	return ctx
}

// WithHandler names the handler serving the update in its log context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(contextKey, ctx)
	return ctx
}
