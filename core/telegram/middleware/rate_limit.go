package middleware

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/botmesero/mesero/core/logger"
	tghelpers "github.com/botmesero/mesero/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	// Interval is the steady time between two accepted updates of one user.
	Interval time.Duration
	// Burst is how many updates may arrive back to back; values < 1 mean 1.
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc

	// Now overrides the clock in tests.
	Now func() time.Time
}

type userLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// pruneEvery bounds how often idle limiters are swept.
const pruneEvery = time.Minute

// UpdateKind classifies an update for rate limit exclusions.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

// RateLimitMiddleware returns a middleware that applies a token bucket per
// user. Limited updates are dropped after calling OnLimited.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var (
		mu        sync.Mutex
		limiters  = make(map[int64]*userLimiter)
		lastPrune = now()
	)

	allow := func(userID int64, at time.Time) bool {
		mu.Lock()
		defer mu.Unlock()
		if at.Sub(lastPrune) >= pruneEvery {
			// A limiter idle for Interval*Burst is full again; dropping it is lossless.
			idle := opts.Interval * time.Duration(opts.Burst)
			for id, ul := range limiters {
				if at.Sub(ul.lastSeen) > idle {
					delete(limiters, id)
				}
			}
			lastPrune = at
		}
		ul, ok := limiters[userID]
		if !ok {
			ul = &userLimiter{lim: rate.NewLimiter(rate.Every(opts.Interval), opts.Burst)}
			limiters[userID] = ul
		}
		ul.lastSeen = at
		return ul.lim.AllowN(at, 1)
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}

			kind := UpdateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}

			if allow(user.ID, now()) {
				return next(c)
			}

			ctx := tghelpers.BuildContext(c)
			logger.Warn(ctx, "tg", "tg.rate_limit",
				slog.String("kind", kind),
				slog.Int64("user_id", user.ID),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
