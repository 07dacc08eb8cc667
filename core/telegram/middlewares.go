package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/botmesero/mesero/core/config"
	"github.com/botmesero/mesero/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares returns the chain of the bot named botName, outermost
// first: bot tag, panic recovery, per user rate limit when configured,
// update logging and outbound totals. onLimited answers dropped updates.
func DefaultMiddlewares(cfg *coreconfig.Config, botName string, onLimited tele.HandlerFunc) []Middleware {
	chain := []Middleware{
		{Name: "bot", Use: middleware.BotTag(botName)},
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}
	if opts, ok := rateLimitOptions(cfg, onLimited); ok {
		chain = append(chain, Middleware{Name: "rate_limit", Use: middleware.RateLimitMiddleware(opts)})
	}
	return append(chain,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.OutboundMetrics(middleware.ProcessOutbound)},
	)
}

// rateLimitOptions maps the rate_limit section; a zero interval disables it.
func rateLimitOptions(cfg *coreconfig.Config, onLimited tele.HandlerFunc) (middleware.RateLimitOptions, bool) {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return middleware.RateLimitOptions{}, false
	}
	exclude := map[string]struct{}{}
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		exclude[strings.ToLower(kind)] = struct{}{}
	}
	return middleware.RateLimitOptions{
		Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Burst:     cfg.RateLimit.Burst,
		Exclude:   exclude,
		OnLimited: onLimited,
	}, true
}
