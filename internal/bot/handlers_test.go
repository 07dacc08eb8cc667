package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tg "github.com/botmesero/mesero/core/telegram"
	"github.com/botmesero/mesero/core/telegram/router"
	"github.com/botmesero/mesero/internal/catalog"
	"github.com/botmesero/mesero/internal/menu"
	"github.com/botmesero/mesero/internal/texts"

	tele "gopkg.in/telebot.v4"
)

type sent struct {
	text string
	opts *tele.SendOptions
}

// fakeContext records what handlers send, edit and answer.
type fakeContext struct {
	tele.Context
	upd       tele.Update
	store     map[string]any
	sent      []sent
	edits     []sent
	responses []string
	editErr   error
}

func messageContext(text string) *fakeContext {
	return &fakeContext{
		upd: tele.Update{ID: 1, Message: &tele.Message{
			Sender: &tele.User{ID: 5, FirstName: "Ana"},
			Chat:   &tele.Chat{ID: 555},
			Text:   text,
		}},
		store: map[string]any{},
	}
}

func callbackContext(data string) *fakeContext {
	return &fakeContext{
		upd: tele.Update{ID: 2, Callback: &tele.Callback{
			Sender:  &tele.User{ID: 5, FirstName: "Ana"},
			Data:    data,
			Message: &tele.Message{ID: 77, Chat: &tele.Chat{ID: 555}},
		}},
		store: map[string]any{},
	}
}

func (f *fakeContext) Update() tele.Update      { return f.upd }
func (f *fakeContext) Callback() *tele.Callback { return f.upd.Callback }
func (f *fakeContext) Text() string {
	if f.upd.Message != nil {
		return f.upd.Message.Text
	}
	return ""
}
func (f *fakeContext) Sender() *tele.User {
	if f.upd.Callback != nil {
		return f.upd.Callback.Sender
	}
	return f.upd.Message.Sender
}
func (f *fakeContext) Chat() *tele.Chat {
	if f.upd.Callback != nil {
		return f.upd.Callback.Message.Chat
	}
	return f.upd.Message.Chat
}
func (f *fakeContext) Get(key string) any        { return f.store[key] }
func (f *fakeContext) Set(key string, value any) { f.store[key] = value }

func (f *fakeContext) Send(what any, opts ...any) error {
	f.sent = append(f.sent, sent{text: what.(string), opts: firstOpts(opts)})
	return nil
}

func (f *fakeContext) Edit(what any, opts ...any) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, sent{text: what.(string), opts: firstOpts(opts)})
	return nil
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	text := ""
	if len(resp) > 0 && resp[0] != nil {
		text = resp[0].Text
	}
	f.responses = append(f.responses, text)
	return nil
}

func firstOpts(opts []any) *tele.SendOptions {
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			return so
		}
	}
	return nil
}

type stubCatalog struct{ err error }

func (s stubCatalog) ListCategories(context.Context) ([]catalog.Category, error) {
	return []catalog.Category{{ID: 1, Name: "Bebidas"}}, s.err
}

func (s stubCatalog) ListProductsByCategory(_ context.Context, id int64) ([]catalog.Product, error) {
	if id != 1 {
		return nil, s.err
	}
	return []catalog.Product{{ID: 3, Name: "Café", Price: "2.5", CategoryID: 1}}, s.err
}

func (s stubCatalog) GetProduct(_ context.Context, id int64) (catalog.Product, error) {
	if s.err != nil {
		return catalog.Product{}, s.err
	}
	if id != 3 {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return catalog.Product{ID: 3, Name: "Café", Price: "2.5", CategoryID: 1}, nil
}

func (s stubCatalog) MostOrderedProduct(context.Context) (catalog.Ranked, error) {
	return catalog.Ranked{}, catalog.ErrNotFound
}

func newHandlers(cat menu.Catalog) *Handlers {
	tx := texts.Default()
	nav := menu.New(cat, tx, menu.Options{
		BotName: "BotMesero",
		Now:     func() time.Time { return time.Date(2024, 5, 1, 20, 0, 0, 0, time.Local) },
	})
	return NewHandlers(nav, tx)
}

func TestStartSendsGreetingThenHome(t *testing.T) {
	h := newHandlers(stubCatalog{})
	c := messageContext("/start")
	if err := h.Start(c); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(c.sent) != 2 {
		t.Fatalf("sent %d messages", len(c.sent))
	}
	greet, home := c.sent[0], c.sent[1]
	if !strings.HasPrefix(greet.text, "Buenas noches, Ana.") || !strings.Contains(greet.text, "555") {
		t.Fatalf("greeting = %q", greet.text)
	}
	if greet.opts == nil || greet.opts.ParseMode != tele.ModeMarkdown || greet.opts.ReplyMarkup != nil {
		t.Fatalf("greeting options = %+v", greet.opts)
	}
	if home.opts == nil || home.opts.ReplyMarkup == nil || len(home.opts.ReplyMarkup.InlineKeyboard) != 3 {
		t.Fatalf("home options = %+v", home.opts)
	}
	if got := home.opts.ReplyMarkup.InlineKeyboard[0][0].Unique; got != menu.ActionMenu {
		t.Fatalf("first button = %q", got)
	}
}

func TestCallbackEditsScreen(t *testing.T) {
	h := newHandlers(stubCatalog{})
	c := callbackContext("\fcategory|1")
	if err := h.Callback(c); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if len(c.edits) != 1 || c.edits[0].text != "Selecciona un producto ⬇️:" {
		t.Fatalf("edits = %+v", c.edits)
	}
	rows := c.edits[0].opts.ReplyMarkup.InlineKeyboard
	if len(rows) != 2 || rows[0][0].Text != "Café - $2.50" || rows[0][0].Unique != "product" || rows[0][0].Data != "3" {
		t.Fatalf("rows = %+v", rows)
	}
	if len(c.responses) != 0 {
		t.Fatal("plain screens leave the answer to the router")
	}
}

func TestCallbackAcceptsPlainIDs(t *testing.T) {
	h := newHandlers(stubCatalog{})
	c := callbackContext("category_1")
	if err := h.Callback(c); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if len(c.edits) != 1 {
		t.Fatalf("edits = %+v", c.edits)
	}
}

func TestCallbackProductToast(t *testing.T) {
	h := newHandlers(stubCatalog{})
	c := callbackContext("\fproduct|3")
	if err := h.Callback(c); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if len(c.edits) != 0 || len(c.responses) != 1 || c.responses[0] != "Café - $2.50" {
		t.Fatalf("edits=%+v responses=%v", c.edits, c.responses)
	}
}

func TestCallbackUnsupported(t *testing.T) {
	h := newHandlers(stubCatalog{})
	for _, data := range []string{"\fnope", "category_abc", "\fproduct|99"} {
		c := callbackContext(data)
		if err := h.Callback(c); err != nil {
			t.Fatalf("%q: %v", data, err)
		}
		if len(c.edits) != 0 || len(c.responses) != 1 || c.responses[0] != "Acción no soportada" {
			t.Fatalf("%q: edits=%+v responses=%v", data, c.edits, c.responses)
		}
	}
}

func TestCallbackDatabaseFailure(t *testing.T) {
	boom := errors.New("connection refused")
	h := newHandlers(stubCatalog{err: boom})
	c := callbackContext("\fmenu")
	if err := h.Callback(c); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(c.responses) != 1 || c.responses[0] != texts.Default().Get(texts.ServiceUnavailable) {
		t.Fatalf("responses = %v", c.responses)
	}
}

func TestCallbackIgnoresNotModified(t *testing.T) {
	h := newHandlers(stubCatalog{})
	c := callbackContext("\freturn_start")
	c.editErr = tele.ErrSameMessageContent
	if err := h.Callback(c); err != nil {
		t.Fatalf("identical edit must not fail: %v", err)
	}
}

func TestLimitedOnlyAnswersCallbacks(t *testing.T) {
	h := newHandlers(stubCatalog{})
	msg := messageContext("hola")
	_ = h.Limited(msg)
	if len(msg.sent) != 0 {
		t.Fatal("limited text must be dropped silently")
	}
	cb := callbackContext("\fmenu")
	_ = h.Limited(cb)
	if len(cb.responses) != 1 || cb.responses[0] != texts.Default().Get(texts.RateLimited) {
		t.Fatalf("responses = %v", cb.responses)
	}
}

func TestRegisterThroughRouter(t *testing.T) {
	h := newHandlers(stubCatalog{})
	reg := tg.NewRegistry()
	if err := h.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(reg.ListCallbacks()) != 12 {
		t.Fatalf("callbacks = %v", reg.ListCallbacks())
	}
	if visible := reg.ListCommands(true); len(visible) != 1 || visible[0].Text != "/start" {
		t.Fatalf("visible commands = %+v", visible)
	}

	route := router.CallbackRoute(reg, router.CallbackOptions{})
	c := callbackContext("\fotros")
	if err := route.Handler(c); err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(c.edits) != 1 || len(c.responses) != 1 || c.responses[0] != "" {
		t.Fatalf("edits=%d responses=%v", len(c.edits), c.responses)
	}

	unknown := callbackContext("\fnope")
	_ = route.Handler(unknown)
	if len(unknown.responses) != 1 || unknown.responses[0] != "Acción no soportada" {
		t.Fatalf("unknown responses = %v", unknown.responses)
	}

	text := router.TextRoutes(reg, router.TextOptions{})[0].Handler
	hint := messageContext("hola")
	_ = text(hint)
	if len(hint.sent) != 1 || hint.sent[0].text != texts.Default().Get(texts.TextHint) {
		t.Fatalf("hint = %+v", hint.sent)
	}
}
