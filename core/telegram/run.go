package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/botmesero/mesero/core/config"
	"github.com/botmesero/mesero/core/logger"
	tghelpers "github.com/botmesero/mesero/core/telegram/helpers"
	tgsender "github.com/botmesero/mesero/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to a Telebot endpoint: a command such as "/start"
// or one of the tele.On* constants.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram for one bot.
type RunOptions struct {
	Config   *coreconfig.Config
	Bot      coreconfig.BotConfig
	Registry *Registry
	HTTP     HTTPOptions

	// Dispatcher, when set, is shared with other bots and owned by the
	// caller: RunTelegram neither installs it for helpers nor closes it.
	Dispatcher        *tgsender.Dispatcher
	DispatcherOptions tgsender.Options

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup bool
	DisableCommandMenu    bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is what lifecycle hooks get to see of a running bot.
type Runtime struct {
	Name       string
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram serves one bot until ctx is done. Cancellation is a clean
// stop and returns nil.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch {
	case opts.Config == nil:
		return errors.New("telegram: nil config provided")
	case opts.Bot.Token == "":
		return fmt.Errorf("telegram: bot %q has no token", opts.Bot.Name)
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	ctx = logger.WithUpdate(ctx, logger.Update{Bot: opts.Bot.Name})

	bot, poller, err := newBot(ctx, opts)
	if err != nil {
		return err
	}

	rt := Runtime{Name: opts.Bot.Name, Bot: bot, Dispatcher: opts.Dispatcher, Registry: opts.Registry}
	if rt.Dispatcher == nil {
		rt.Dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
		tghelpers.SetDispatcher(rt.Dispatcher)
		defer func() {
			rt.Dispatcher.Close()
			tghelpers.SetDispatcher(nil)
		}()
	}

	if _, webhook := poller.(*tele.Webhook); !webhook && !opts.DisableWebhookCleanup {
		clearWebhook(ctx, bot)
	}
	wire(bot, opts)
	if !opts.DisableCommandMenu {
		InitBotCommands(ctx, bot, opts.Registry)
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}
	runErr := serve(ctx, bot)

	if opts.OnStop != nil {
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); err != nil {
			return err
		}
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// newBot builds the Telebot instance with the poller and HTTP client of
// opts and logs the mode it will run in.
func newBot(ctx context.Context, opts RunOptions) (*tele.Bot, tele.Poller, error) {
	pollerOpts := PollerOptionsFor(opts.Config, opts.Bot)
	poller := BuildPoller(pollerOpts)

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  opts.Bot.Token,
		Poller: poller,
		Client: BuildHTTPClient(opts.HTTP),
		OnError: func(err error, c tele.Context) {
			errCtx := ctx
			if c != nil {
				errCtx = tghelpers.BuildContext(c)
			}
			logger.Error(errCtx, "tg", "handler.error",
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("telegram: bot %q initialization failed: %w", opts.Bot.Name, err)
	}

	attrs := []slog.Attr{
		slog.String("username", bot.Me.Username),
		slog.Duration("duration", logger.Took(start)),
	}
	if wh, ok := poller.(*tele.Webhook); ok {
		attrs = append(attrs,
			slog.String("mode", "webhook"),
			slog.String("listen", wh.Listen),
			slog.String("public_url", wh.Endpoint.PublicURL),
		)
	} else {
		attrs = append(attrs,
			slog.String("mode", "polling"),
			slog.Duration("poll_timeout", longPollTimeout(pollerOpts.LongPollTimeoutSeconds)),
		)
	}
	logger.Info(ctx, "tg", "bot.ready", attrs...)
	return bot, poller, nil
}

// clearWebhook removes a webhook left by an earlier deployment; Telegram
// refuses getUpdates while one is set.
func clearWebhook(ctx context.Context, bot *tele.Bot) {
	if err := bot.RemoveWebhook(); err != nil {
		logger.Warn(ctx, "tg", "webhook.delete",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return
	}
	logger.Debug(ctx, "tg", "webhook.delete", slog.String("status", "ok"))
}

func wire(bot *tele.Bot, opts RunOptions) {
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
}

// serve runs the poller until it stops on its own or ctx is done.
func serve(ctx context.Context, bot *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		bot.Stop()
		<-done
		return ctx.Err()
	}
}
