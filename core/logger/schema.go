package logger

import (
	"log/slog"
	"slices"
	"strings"
)

// Outcome values; an unknown outcome is dropped from the record.
var outcomes = []string{"ok", "fail", "cancelled", "rate_limited", "not_found"}

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	}
	return "ERROR"
}

func normalizeEnums(e entry) {
	if s := strings.ToLower(strings.TrimSpace(e.str("status"))); s != "" {
		e["status"] = s
	}
	if o, ok := e["outcome"]; ok {
		s, _ := o.(string)
		s = strings.ToLower(strings.TrimSpace(s))
		if !slices.Contains(outcomes, s) {
			delete(e, "outcome")
		} else {
			e["outcome"] = s
		}
	}
}

// defaultKeyOrder puts correlation fields first, then the fields of handler
// summaries, menu navigation, catalog queries and outbound sends.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"bot", "rid", "rid_full", "ts_unix_nano", "update_id", "user_id", "chat_id",
	// handler summary
	"handler", "cb_key", "outcome", "duration_ms", "messages", "edits", "toasts", "kb",
	// menu
	"action", "screen", "payload",
	// catalog
	"op", "driver", "query_duration_ms", "found", "rows", "category_id", "product_id", "quantity",
	// sender
	"endpoint", "lane", "attempt", "attempts", "delay_ms", "elapsed_ms", "error_kind",
	// transport and database wiring
	"mode", "listen", "public_url", "db", "host", "port",
	"err", "err_code", "cause", "retryable",
}
