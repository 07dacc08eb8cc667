package middleware

import (
	"sync/atomic"

	tghelpers "github.com/botmesero/mesero/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// OutboundTotals sums the per-update outbound tallies of every bot.
type OutboundTotals struct {
	updates   atomic.Int64
	messages  atomic.Int64
	edits     atomic.Int64
	toasts    atomic.Int64
	keyboards atomic.Int64
}

// OutboundSnapshot is a point-in-time copy of OutboundTotals.
type OutboundSnapshot struct {
	Updates   int64
	Messages  int64
	Edits     int64
	Toasts    int64
	Keyboards int64
}

// ProcessOutbound collects the totals of the default middleware chain.
var ProcessOutbound = &OutboundTotals{}

// Snapshot reads the current totals.
func (t *OutboundTotals) Snapshot() OutboundSnapshot {
	return OutboundSnapshot{
		Updates:   t.updates.Load(),
		Messages:  t.messages.Load(),
		Edits:     t.edits.Load(),
		Toasts:    t.toasts.Load(),
		Keyboards: t.keyboards.Load(),
	}
}

func (t *OutboundTotals) add(o tghelpers.Outbound) {
	t.updates.Add(1)
	t.messages.Add(int64(o.Messages))
	t.edits.Add(int64(o.Edits))
	t.toasts.Add(int64(o.Toasts))
	if o.Keyboard {
		t.keyboards.Add(1)
	}
}

// OutboundMetrics adds the tally of each handled update to totals, whether
// or not the handler failed.
func OutboundMetrics(totals *OutboundTotals) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			err := next(c)
			totals.add(tghelpers.Tally(c))
			return err
		}
	}
}
