package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/botmesero/mesero/core/buildinfo"
	coreconfig "github.com/botmesero/mesero/core/config"
)

var (
	initOnce sync.Once
	logFile  atomic.Pointer[os.File]
	levelVar slog.LevelVar

	// debugEvery keeps one of every N high-volume debug events.
	debugEvery atomic.Int64
	debugSeen  atomic.Uint64

	// L is the base logger; component loggers below derive from it.
	L *slog.Logger

	// DB logs database connection events.
	DB *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// TWire logs Telegram wiring steps.
	TWire *slog.Logger
	// SVCCatalog logs catalog store activity.
	SVCCatalog *slog.Logger
	// SVCMenu logs menu navigation activity.
	SVCMenu *slog.Logger
)

// Until InitLogger runs, component loggers write through slog's default
// logger so packages stay usable from tests.
func init() {
	debugEvery.Store(50)
	L = slog.Default()
	wireComponents()
}

// InitLogger installs the structured handler described by cfg.Logging.
// Only the first call has any effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		var lc coreconfig.LoggingConfig
		if cfg != nil {
			lc = cfg.Logging
		}
		levelVar.Set(parseLevel(lc.Level))
		debugEvery.Store(int64(parseSample(lc.DebugSample)))

		var out io.Writer = os.Stdout
		if f, ferr := openLogFile(lc); ferr != nil {
			err = ferr
			return
		} else if f != nil {
			logFile.Store(f)
			out = io.MultiWriter(os.Stdout, f)
		}

		L = slog.New(newLineHandler(out, &levelVar, parseFormat(lc), parseOrder(lc.KeysOrder)))
		slog.SetDefault(L)
		wireComponents()

		bots := 0
		if cfg != nil {
			bots = len(cfg.Telegram.Bots)
		}
		Info(context.Background(), "app", "startup",
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("profile", profile(lc)),
			slog.Int("bots", bots),
		)
	})
	return err
}

func wireComponents() {
	DB = L.With("component", "db")
	TG = L.With("component", "tg")
	TWire = L.With("component", "tg.wire")
	SVCCatalog = L.With("component", "service.catalog")
	SVCMenu = L.With("component", "service.menu")
}

// Shutdown closes the log file, if one was opened. Records are written
// synchronously, so there is nothing left to flush.
func Shutdown() error {
	f := logFile.Swap(nil)
	if f == nil {
		return nil
	}
	return errors.Join(f.Sync(), f.Close())
}

func openLogFile(lc coreconfig.LoggingConfig) (*os.File, error) {
	dir := strings.TrimSpace(lc.Dir)
	if dir == "" {
		return nil, nil
	}
	name := strings.TrimSpace(lc.BotFile)
	if name == "" {
		name = "mesero.log"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logger: create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open log file: %w", err)
	}
	return f, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// parseFormat picks kv for an explicit kv/text format or a dev/debug
// profile, json otherwise.
func parseFormat(lc coreconfig.LoggingConfig) lineFormat {
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		return lineKV
	case "json":
		return lineJSON
	}
	switch profile(lc) {
	case "dev", "debug":
		return lineKV
	}
	return lineJSON
}

func parseOrder(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "default" {
		return nil
	}
	var order []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			order = append(order, k)
		}
	}
	return order
}

// parseSample reads "N" or "1/N" as keep one in N. "0" keeps everything;
// anything unparsable falls back to 1/50.
func parseSample(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 50
	}
	_, den, found := strings.Cut(s, "/")
	if !found {
		den = s
	}
	n, err := strconv.Atoi(strings.TrimSpace(den))
	switch {
	case err != nil || n < 0:
		return 50
	case n == 0:
		return 1
	}
	return n
}

func profile(lc coreconfig.LoggingConfig) string {
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		return p
	}
	return "prod"
}

// ShouldSampleDebug reports whether this high-volume debug event is the one
// in N that gets logged.
func ShouldSampleDebug() bool {
	n := uint64(debugEvery.Load())
	if n <= 1 {
		return true
	}
	return debugSeen.Add(1)%n == 1
}

// LogEvent logs an event-keyed record on logg, or on L when logg is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = L
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, event, attrs...)
}

// Component returns L scoped to the named component.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}
