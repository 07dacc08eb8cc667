package helpers

import (
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/botmesero/mesero/core/logger"
	"github.com/botmesero/mesero/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	job := sender.Job{
		Chat:     logger.UpdateFrom(ctx).ChatID,
		Action:   action,
		Endpoint: endpoint,
		Run:      run,
	}
	if err := disp.Enqueue(ctx, job); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// Outgoing is a single message of a chain sent by SendChain.
type Outgoing struct {
	Text    string
	Options *tele.SendOptions
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	count(c, func(o *Outbound) {
		o.Messages++
		o.Keyboard = o.Keyboard || hasKeyboard(sendOpts)
	})
	return sendAsync(c, "send.text", "sendMessage", func() error {
		return send(c, Outgoing{Text: text, Options: sendOpts})
	})
}

// SendChain sends msgs to the current chat in order as one job. A retried
// job resumes at the first message that was not delivered.
func SendChain(c tele.Context, msgs ...Outgoing) error {
	if len(msgs) == 0 {
		return nil
	}
	count(c, func(o *Outbound) {
		o.Messages += len(msgs)
		for _, m := range msgs {
			o.Keyboard = o.Keyboard || hasKeyboard(m.Options)
		}
	})
	next := 0
	return sendAsync(c, "send.chain", "sendMessage", func() error {
		for next < len(msgs) {
			if err := send(c, msgs[next]); err != nil {
				return err
			}
			next++
		}
		return nil
	})
}

// EditScreen replaces the text and inline keyboard of the message the
// current callback belongs to. An identical edit is not an error.
func EditScreen(c tele.Context, text string, opts *tele.SendOptions) error {
	count(c, func(o *Outbound) {
		o.Edits++
		o.Keyboard = o.Keyboard || hasKeyboard(opts)
	})
	return sendAsync(c, "edit.text", "editMessageText", func() error {
		var err error
		if opts != nil {
			err = c.Edit(text, opts)
		} else {
			err = c.Edit(text)
		}
		if IsNotModified(err) {
			return nil
		}
		return err
	})
}

// Answer responds to the current callback query with a toast and marks it
// answered so the router does not respond twice.
func Answer(c tele.Context, text string) error {
	if c.Callback() == nil {
		return nil
	}
	c.Set(answeredKey, true)
	count(c, func(o *Outbound) { o.Toasts++ })
	return c.Respond(&tele.CallbackResponse{Text: text})
}

// Answered reports whether Answer was called for the current update.
func Answered(c tele.Context) bool {
	v, _ := c.Get(answeredKey).(bool)
	return v
}

// IsNotModified reports the Bot API refusal to apply an edit that changes nothing.
func IsNotModified(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, tele.ErrSameMessageContent) {
		return true
	}
	return strings.Contains(err.Error(), "message is not modified")
}

func send(c tele.Context, m Outgoing) error {
	if m.Options != nil {
		return c.Send(m.Text, m.Options)
	}
	return c.Send(m.Text)
}
