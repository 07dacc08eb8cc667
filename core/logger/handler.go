package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

type lineFormat uint8

const (
	lineJSON lineFormat = iota
	lineKV
)

const tsLayout = "2006-01-02T15:04:05.000Z07:00"

// entry collects the flattened fields of one record.
type entry map[string]any

func (e entry) setDefault(key string, val any) {
	if s, ok := val.(string); ok && s == "" {
		return
	}
	if _, ok := e[key]; !ok {
		e[key] = val
	}
}

func (e entry) str(key string) string {
	s, _ := e[key].(string)
	return s
}

// lockedWriter serialises whole lines onto w.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) writeLine(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.w.Write(p)
	return err
}

// lineHandler renders each record as one JSON object or one key=value line.
// Keys listed in order come first; the rest follow alphabetically.
type lineHandler struct {
	out    *lockedWriter
	level  slog.Leveler
	format lineFormat
	order  []string

	preset []field
	prefix string
}

type field struct {
	key string
	val any
}

func newLineHandler(w io.Writer, level slog.Leveler, format lineFormat, order []string) *lineHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	if len(order) == 0 {
		order = defaultKeyOrder
	}
	return &lineHandler{out: &lockedWriter{w: w}, level: level, format: format, order: order}
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	e := make(entry, 16)
	for _, f := range h.preset {
		e[f.key] = f.val
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(h.prefix, a, e)
		return true
	})
	UpdateFrom(ctx).fill(e)

	ts := r.Time.UTC()
	e["ts"] = ts.Truncate(time.Millisecond).Format(tsLayout)
	e["level"] = levelName(r.Level)
	if h.format == lineJSON {
		e["ts_unix_nano"] = ts.UnixNano()
	}
	if rid := e.str("rid"); rid != "" {
		if short := CompactRID(rid); short != rid {
			e["rid"] = short
			if h.format == lineJSON {
				e.setDefault("rid_full", rid)
			}
		}
	}
	if e.str("event") == "" {
		e["event"] = orDefault(r.Message, "unknown")
	}
	if e.str("component") == "" {
		e["component"] = "app"
	}
	normalizeEnums(e)

	line, err := h.render(e)
	if err != nil {
		return err
	}
	return h.out.writeLine(append(line, '\n'))
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	e := entry{}
	for _, a := range attrs {
		flatten(h.prefix, a, e)
	}
	clone := *h
	clone.preset = slices.Clip(h.preset)
	for k, v := range e {
		clone.preset = append(clone.preset, field{k, v})
	}
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

func (h *lineHandler) render(e entry) ([]byte, error) {
	keys := make([]string, 0, len(e))
	for _, k := range h.order {
		if _, ok := e[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range e {
		if !slices.Contains(h.order, k) {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	keys = append(keys, rest...)

	var b strings.Builder
	if h.format == lineKV {
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(kvValue(e[k]))
		}
		return []byte(b.String()), nil
	}
	b.WriteByte('{')
	for i, k := range keys {
		v, err := json.Marshal(e[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// flatten stores a (possibly grouped) attribute under dotted keys.
// Empty strings and nil values are dropped; durations become *_ms integers.
func flatten(prefix string, a slog.Attr, e entry) {
	a.Value = a.Value.Resolve()
	key := joinKey(prefix, a.Key)
	if a.Value.Kind() == slog.KindGroup {
		for _, child := range a.Value.Group() {
			flatten(key, child, e)
		}
		return
	}
	if key == "" {
		return
	}
	var val any
	switch v := a.Value; v.Kind() {
	case slog.KindString:
		val = strings.TrimSpace(v.String())
	case slog.KindDuration:
		key, val = msKey(key), RoundMS(v.Duration()).Milliseconds()
	case slog.KindTime:
		val = v.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindUint64:
		val = v.Uint64()
	case slog.KindAny:
		switch x := v.Any().(type) {
		case nil:
			return
		case error:
			val = x.Error()
		case time.Duration:
			key, val = msKey(key), RoundMS(x).Milliseconds()
		case fmt.Stringer:
			val = x.String()
		default:
			val = fmt.Sprint(x)
		}
	default:
		val = v.Any()
	}
	if s, ok := val.(string); ok && s == "" {
		return
	}
	e[key] = val
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// msKey names a duration field: duration -> duration_ms, backoff -> backoff_ms.
func msKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func kvValue(v any) string {
	s := fmt.Sprint(v)
	if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
