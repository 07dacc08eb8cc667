package helpers

import tele "gopkg.in/telebot.v4"

const outboundKey = "outbound"

// Outbound tallies what the handler of one update asked to send. Counting
// happens when the call is made, before the dispatcher delivers anything,
// so the tally is complete as soon as the handler returns.
type Outbound struct {
	Messages int
	Edits    int
	Toasts   int
	Keyboard bool
}

// Tally returns the outbound tally of the current update.
func Tally(c tele.Context) Outbound {
	if o, ok := c.Get(outboundKey).(*Outbound); ok {
		return *o
	}
	return Outbound{}
}

func count(c tele.Context, fn func(*Outbound)) {
	o, ok := c.Get(outboundKey).(*Outbound)
	if !ok {
		o = &Outbound{}
		c.Set(outboundKey, o)
	}
	fn(o)
}

func hasKeyboard(opts *tele.SendOptions) bool {
	return opts != nil && opts.ReplyMarkup != nil
}
