// Package bot adapts the menu navigator to Telegram: it registers the
// commands and callbacks and turns screens into messages and edits.
package bot

import (
	"errors"

	"github.com/botmesero/mesero/core/buildinfo"
	tg "github.com/botmesero/mesero/core/telegram"
	"github.com/botmesero/mesero/core/telegram/callbacks"
	"github.com/botmesero/mesero/core/telegram/commands"
	tghelpers "github.com/botmesero/mesero/core/telegram/helpers"
	"github.com/botmesero/mesero/core/telegram/keyboard"
	"github.com/botmesero/mesero/internal/menu"
	"github.com/botmesero/mesero/internal/texts"

	tele "gopkg.in/telebot.v4"
)

// Handlers serves one navigator to any number of bots.
type Handlers struct {
	nav   *menu.Navigator
	texts *texts.Texts
}

// NewHandlers returns handlers drawing screens from nav.
func NewHandlers(nav *menu.Navigator, tx *texts.Texts) *Handlers {
	if tx == nil {
		tx = texts.Default()
	}
	return &Handlers{nav: nav, texts: tx}
}

// Register wires the commands, one callback per menu action and the
// fallbacks into reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	if err := reg.RegisterCommand("/start", commands.Command{
		Handler:     h.Start,
		Description: h.texts.Get(texts.CmdStartDescription),
	}); err != nil {
		return err
	}
	if err := reg.RegisterCommand("/version", commands.Command{
		Handler:     h.Version,
		Description: h.texts.Get(texts.CmdVersionDescription),
		AdminOnly:   true,
		Hidden:      true,
	}); err != nil {
		return err
	}
	for _, action := range h.nav.Actions() {
		if err := reg.RegisterCallback(action, h.Callback); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(h.Unsupported)
	reg.SetTextFallback(h.Hint)
	return nil
}

// Start sends the greeting and the home screen as two messages, in order.
func (h *Handlers) Start(c tele.Context) error {
	v := menu.Visitor{}
	if u := c.Sender(); u != nil {
		v.FirstName = u.FirstName
	}
	if chat := c.Chat(); chat != nil {
		v.ChatID = chat.ID
	}
	screens := h.nav.Start(v)
	msgs := make([]tghelpers.Outgoing, 0, len(screens))
	for _, s := range screens {
		msgs = append(msgs, tghelpers.Outgoing{Text: s.Text, Options: SendOptions(s)})
	}
	return tghelpers.SendChain(c, msgs...)
}

// Callback draws the screen for the pressed button over the current message.
func (h *Handlers) Callback(c tele.Context) error {
	action, payload := callbacks.ParseCallbackData(c.Callback())
	ctx := tghelpers.BuildContext(c)

	screen, err := h.nav.Navigate(ctx, action, payload)
	switch {
	case errors.Is(err, menu.ErrUnknownAction), errors.Is(err, menu.ErrBadPayload):
		return h.Unsupported(c)
	case err != nil:
		_ = tghelpers.Answer(c, h.texts.Get(texts.ServiceUnavailable))
		return err
	}

	if screen.Text == "" {
		return tghelpers.Answer(c, screen.Toast)
	}
	return tghelpers.EditScreen(c, screen.Text, SendOptions(screen))
}

// Unsupported answers callbacks that no screen serves, keeping the message.
func (h *Handlers) Unsupported(c tele.Context) error {
	return tghelpers.Answer(c, h.nav.Unsupported().Toast)
}

// Hint points users who type free text to /start.
func (h *Handlers) Hint(c tele.Context) error {
	return tghelpers.SendText(c, h.texts.Get(texts.TextHint))
}

// Version reports the build to the admin.
func (h *Handlers) Version(c tele.Context) error {
	return tghelpers.SendText(c, "mesero "+buildinfo.Summary())
}

// Limited tells a user pressing buttons too fast to slow down. Limited text
// messages are dropped silently.
func (h *Handlers) Limited(c tele.Context) error {
	if c.Callback() == nil {
		return nil
	}
	return tghelpers.Answer(c, h.texts.Get(texts.RateLimited))
}

// SendOptions returns the parse mode and inline keyboard of s.
func SendOptions(s menu.Screen) *tele.SendOptions {
	opts := &tele.SendOptions{}
	if s.Markdown {
		opts.ParseMode = tele.ModeMarkdown
	}
	if len(s.Keyboard) > 0 {
		opts.ReplyMarkup = Keyboard(s.Keyboard)
	}
	return opts
}

// Keyboard converts menu rows into an inline keyboard. Button data uses
// telebot's "\f<action>|<payload>" form.
func Keyboard(rows [][]menu.Button) *tele.ReplyMarkup {
	kb := make([][]keyboard.InlineBtn, 0, len(rows))
	for _, row := range rows {
		r := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			r = append(r, keyboard.InlineBtn{Text: b.Label, Unique: b.Action, Data: b.Payload})
		}
		kb = append(kb, r)
	}
	return keyboard.InlineButtonsRows(kb...)
}
