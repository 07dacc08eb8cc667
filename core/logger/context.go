package logger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

type updateKey struct{}

// Update carries the identifiers of the Telegram update being served. Every
// record logged with a context holding an Update gets these fields.
type Update struct {
	RID      string
	UpdateID int
	UserID   int64
	ChatID   int64
	Bot      string
	Handler  string
}

// WithUpdate stores u in ctx, replacing any previous value.
func WithUpdate(ctx context.Context, u Update) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, updateKey{}, u)
}

// UpdateFrom returns the Update stored in ctx, or the zero value.
func UpdateFrom(ctx context.Context) Update {
	if ctx == nil {
		return Update{}
	}
	u, _ := ctx.Value(updateKey{}).(Update)
	return u
}

// WithHandler names the handler serving the update in ctx.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return ctx
	}
	u := UpdateFrom(ctx)
	u.Handler = handler
	return WithUpdate(ctx, u)
}

// BuildRID joins the update, chat and user ids into one correlation id.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID rewrites a BuildRID value as dot separated base36 numbers.
// Anything else is returned trimmed but otherwise untouched.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}

func (u Update) fill(e entry) {
	e.setDefault("rid", u.RID)
	e.setDefault("bot", u.Bot)
	e.setDefault("handler", u.Handler)
	if u.UpdateID != 0 {
		e.setDefault("update_id", int64(u.UpdateID))
	}
	if u.UserID != 0 {
		e.setDefault("user_id", u.UserID)
	}
	if u.ChatID != 0 {
		e.setDefault("chat_id", u.ChatID)
	}
}
