package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	coreconfig "github.com/botmesero/mesero/core/config"
	"github.com/botmesero/mesero/core/logger"
	coretelegram "github.com/botmesero/mesero/core/telegram"
	tghelpers "github.com/botmesero/mesero/core/telegram/helpers"
	"github.com/botmesero/mesero/core/telegram/middleware"
	tgsender "github.com/botmesero/mesero/core/telegram/sender"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run the bots. Apps that
// also implement io.Closer are closed after every bot stopped.
type TelegramApp interface {
	TelegramRunOptions() ([]coretelegram.RunOptions, error)
}

// Options describe how to load configuration, bootstrap the app, and run the bots.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	// Dispatcher configures the outbound sender shared by all bots.
	Dispatcher tgsender.Options

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// Run is RunContext bound to SIGINT and SIGTERM.
func Run(opts Options) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return RunContext(ctx, opts)
}

// RunContext loads configuration, bootstraps the app and runs one Telegram
// runtime per configured bot until ctx is done. The first bot that fails
// stops the others.
func RunContext(ctx context.Context, opts Options) error {
	switch {
	case opts.LoadConfig == nil:
		return errors.New("cmd: LoadConfig is required")
	case opts.Bootstrap == nil:
		return errors.New("cmd: Bootstrap is required")
	}
	path, err := configPath(opts)
	if err != nil {
		return err
	}

	log.Printf("loading config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return errors.New("cmd: loaded config is missing core configuration")
	}

	app, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer shutdown(app, opts.ShutdownLogger)

	runOpts, err := app.TelegramRunOptions()
	switch {
	case err != nil:
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	case len(runOpts) == 0:
		return errors.New("cmd: no bots to run")
	}
	return runBots(ctx, opts, runOpts)
}

func configPath(opts Options) (string, error) {
	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	if p := os.Getenv(env); p != "" {
		return p, nil
	}
	if opts.DefaultConfigPath != "" {
		return opts.DefaultConfigPath, nil
	}
	return "", fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
}

// shutdown closes the app, then the logger.
func shutdown(app TelegramApp, closeLogger func() error) {
	if c, ok := app.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn(context.Background(), "app", "shutdown",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}
	if closeLogger == nil {
		closeLogger = logger.Shutdown
	}
	if err := closeLogger(); err != nil {
		log.Printf("logger shutdown error: %v", err)
	}
}

// runBots starts every bot on one shared dispatcher, logs "ready" once all
// of them started and the outbound totals once all of them stopped.
func runBots(ctx context.Context, opts Options, runOpts []coretelegram.RunOptions) error {
	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	dispatcher := tgsender.NewDispatcher(opts.Dispatcher)
	tghelpers.SetDispatcher(dispatcher)

	begin := time.Now()
	var pending atomic.Int32
	pending.Store(int32(len(runOpts)))

	g, gctx := errgroup.WithContext(ctx)
	for _, ro := range runOpts {
		if ro.Dispatcher == nil {
			ro.Dispatcher = dispatcher
		}
		ro.OnStart = chain(ro.OnStart, func(ctx context.Context, _ coretelegram.Runtime) error {
			if pending.Add(-1) == 0 {
				logger.Info(ctx, "app", "ready",
					slog.Int("bots", len(runOpts)),
					slog.Duration("startup_duration", logger.Took(begin)),
				)
			}
			return nil
		})
		ro.OnStop = chain(func(ctx context.Context, _ coretelegram.Runtime) error {
			logger.Info(ctx, "app", "shutdown")
			return nil
		}, ro.OnStop)

		g.Go(func() error {
			if err := run(gctx, ro); err != nil {
				return fmt.Errorf("bot %s: %w", ro.Bot.Name, err)
			}
			return nil
		})
	}

	err := g.Wait()
	dispatcher.Close()
	tghelpers.SetDispatcher(nil)

	out := middleware.ProcessOutbound.Snapshot()
	logger.Info(context.Background(), "app", "stopped",
		slog.String("status", logger.Status(err)),
		slog.Int64("updates", out.Updates),
		slog.Int64("messages", out.Messages),
		slog.Int64("edits", out.Edits),
		slog.Int64("toasts", out.Toasts),
		slog.Uint64("send_failures", dispatcher.ErrorCount()),
	)
	return err
}

type hook = func(context.Context, coretelegram.Runtime) error

// chain runs first, then second, stopping at the first error.
func chain(first, second hook) hook {
	return func(ctx context.Context, rt coretelegram.Runtime) error {
		for _, h := range []hook{first, second} {
			if h == nil {
				continue
			}
			if err := h(ctx, rt); err != nil {
				return err
			}
		}
		return nil
	}
}
