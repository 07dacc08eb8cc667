// Package menu is the navigation graph of the bot: a static table from
// callback action to screen. It keeps no per-user state; every button carries
// the action and payload needed to draw the next screen.
package menu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/botmesero/mesero/core/logger"
	"github.com/botmesero/mesero/core/telegram/format"
	"github.com/botmesero/mesero/internal/catalog"
	"github.com/botmesero/mesero/internal/texts"
)

// Callback actions. Buttons carry one of these as routing key.
const (
	ActionHome        = "return_start"
	ActionMenu        = "menu"
	ActionCategory    = "category"
	ActionProduct     = "product"
	ActionPedido      = "pedido"
	ActionFAQ         = "otros"
	ActionBackFAQ     = "return_otros"
	ActionDeliveryFAQ = "tiempo_pedido"
	ActionMostOrdered = "producto_mas_pedido"
	ActionWrongOrder  = "orden_mal"
	ActionAppFAQ      = "app_no_abre"
	ActionInfoFAQ     = "info_proporcionada"
)

// ToastLimit is the longest callback answer the Bot API accepts, in characters.
const ToastLimit = 200

var (
	// ErrUnknownAction is returned for actions missing from the table.
	ErrUnknownAction = errors.New("menu: unknown action")
	// ErrBadPayload is returned when an action's payload is not a valid id.
	ErrBadPayload = errors.New("menu: bad payload")
)

// Catalog is the read side of the menu data.
type Catalog interface {
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	ListProductsByCategory(ctx context.Context, categoryID int64) ([]catalog.Product, error)
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
	MostOrderedProduct(ctx context.Context) (catalog.Ranked, error)
}

// Button is one inline button. Payload is empty for static screens.
type Button struct {
	Label   string
	Action  string
	Payload string
}

// Screen is what a callback produces. A screen with only Toast set leaves
// the message as it is and answers the callback with a short notice.
type Screen struct {
	Name     string
	Text     string
	Markdown bool
	Keyboard [][]Button
	Toast    string
}

// Visitor identifies who opened the bot, for the greeting.
type Visitor struct {
	FirstName string
	ChatID    int64
}

// Options configures a Navigator.
type Options struct {
	BotName  string
	Location *time.Location
	// Now overrides the clock in tests.
	Now func() time.Time
}

type route func(ctx context.Context, payload string) (Screen, error)

// Navigator renders screens for actions.
type Navigator struct {
	catalog Catalog
	texts   *texts.Texts
	botName string
	loc     *time.Location
	now     func() time.Time
	routes  map[string]route
}

// New builds the transition table.
func New(cat Catalog, tx *texts.Texts, opts Options) *Navigator {
	if tx == nil {
		tx = texts.Default()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	n := &Navigator{
		catalog: cat,
		texts:   tx,
		botName: opts.BotName,
		loc:     opts.Location,
		now:     opts.Now,
	}
	n.routes = map[string]route{
		ActionHome:        n.static(n.Home),
		ActionMenu:        n.categories,
		ActionCategory:    n.products,
		ActionProduct:     n.product,
		ActionPedido:      n.static(n.howToOrder),
		ActionFAQ:         n.static(n.FAQ),
		ActionBackFAQ:     n.static(n.FAQ),
		ActionDeliveryFAQ: n.static(n.faqAnswer("faq.delivery", texts.TiempoPedidoText)),
		ActionWrongOrder:  n.static(n.faqAnswer("faq.wrong_order", texts.OrdenMalText)),
		ActionAppFAQ:      n.static(n.faqAnswer("faq.app", texts.AppNoAbreText)),
		ActionInfoFAQ:     n.static(n.faqAnswer("faq.info", texts.InfoProporcionadaText)),
		ActionMostOrdered: n.mostOrdered,
	}
	return n
}

// Actions lists every action the table knows.
func (n *Navigator) Actions() []string {
	out := make([]string, 0, len(n.routes))
	for a := range n.routes {
		out = append(out, a)
	}
	return out
}

// Navigate resolves action and payload to the next screen.
func (n *Navigator) Navigate(ctx context.Context, action, payload string) (Screen, error) {
	r, ok := n.routes[action]
	if !ok {
		return Screen{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	start := time.Now()
	s, err := r(ctx, payload)
	attrs := []slog.Attr{
		slog.String("action", action),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	}
	if s.Name != "" {
		attrs = append(attrs, slog.String("screen", s.Name))
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
	}
	logger.LogEvent(ctx, logger.SVCMenu, slog.LevelDebug, "menu.navigate", attrs...)
	return s, err
}

// Greeting picks the salutation for the hour in the configured zone:
// 05:00-11:59 morning, 12:00-17:59 afternoon, evening otherwise.
func (n *Navigator) Greeting() string {
	h := n.now().In(n.loc).Hour()
	switch {
	case h >= 5 && h < 12:
		return n.texts.Get(texts.GreetingMorning)
	case h >= 12 && h < 18:
		return n.texts.Get(texts.GreetingAfternoon)
	default:
		return n.texts.Get(texts.GreetingEvening)
	}
}

// Start returns the two messages sent for /start: the Markdown greeting with
// the chat id and the home prompt with its keyboard.
func (n *Navigator) Start(v Visitor) []Screen {
	greeting := Screen{
		Name: "greeting",
		Text: n.texts.Format(texts.StartGreeting, map[string]string{
			"greeting": n.Greeting(),
			"name":     format.EscapeV1(v.FirstName),
			"bot":      format.EscapeV1(n.botName),
			"chat_id":  strconv.FormatInt(v.ChatID, 10),
		}),
		Markdown: true,
	}
	home := n.Home()
	home.Text = n.texts.Get(texts.StartPrompt)
	return []Screen{greeting, home}
}

// Home is the main screen reached through the back buttons.
func (n *Navigator) Home() Screen {
	return Screen{
		Name: "home",
		Text: n.texts.Get(texts.HomePrompt),
		Keyboard: [][]Button{
			{{Label: n.texts.Get(texts.BtnMenu), Action: ActionMenu}},
			{{Label: n.texts.Get(texts.BtnPedido), Action: ActionPedido}},
			{{Label: n.texts.Get(texts.BtnOtros), Action: ActionFAQ}},
		},
	}
}

// FAQ lists the questions about the bot.
func (n *Navigator) FAQ() Screen {
	return Screen{
		Name: "faq",
		Text: n.texts.Get(texts.FAQPrompt),
		Keyboard: [][]Button{
			{{Label: n.texts.Get(texts.BtnTiempoPedido), Action: ActionDeliveryFAQ}},
			{{Label: n.texts.Get(texts.BtnProductoMasPedido), Action: ActionMostOrdered}},
			{{Label: n.texts.Get(texts.BtnOrdenMal), Action: ActionWrongOrder}},
			{{Label: n.texts.Get(texts.BtnAppNoAbre), Action: ActionAppFAQ}},
			{{Label: n.texts.Get(texts.BtnInfoProporcionada), Action: ActionInfoFAQ}},
			{n.backHome()},
		},
	}
}

// Unsupported is the toast for callbacks the table cannot serve.
func (n *Navigator) Unsupported() Screen {
	return Screen{Name: "unsupported", Toast: n.texts.Get(texts.UnsupportedAction)}
}

func (n *Navigator) static(build func() Screen) route {
	return func(context.Context, string) (Screen, error) {
		return build(), nil
	}
}

func (n *Navigator) howToOrder() Screen {
	return Screen{
		Name:     "pedido",
		Text:     n.texts.Get(texts.PedidoText),
		Keyboard: [][]Button{{n.backHome()}},
	}
}

func (n *Navigator) faqAnswer(name, key string) func() Screen {
	return func() Screen {
		return Screen{
			Name:     name,
			Text:     n.texts.Get(key),
			Keyboard: [][]Button{{n.backFAQ()}},
		}
	}
}

func (n *Navigator) categories(ctx context.Context, _ string) (Screen, error) {
	cats, err := n.catalog.ListCategories(ctx)
	if err != nil {
		return Screen{}, err
	}
	s := Screen{Name: "categories", Text: n.texts.Get(texts.CategoriesPrompt)}
	if len(cats) == 0 {
		s.Text = n.texts.Get(texts.CategoriesEmpty)
	}
	for _, c := range cats {
		s.Keyboard = append(s.Keyboard, []Button{{
			Label:   c.Name,
			Action:  ActionCategory,
			Payload: strconv.FormatInt(c.ID, 10),
		}})
	}
	s.Keyboard = append(s.Keyboard, []Button{n.backHome()})
	return s, nil
}

func (n *Navigator) products(ctx context.Context, payload string) (Screen, error) {
	id, err := parseID(payload)
	if err != nil {
		return Screen{}, err
	}
	products, err := n.catalog.ListProductsByCategory(ctx, id)
	if err != nil {
		return Screen{}, err
	}
	// Back from products leads home, as the ordering mini-app expects.
	back := Button{Label: n.texts.Get(texts.BtnBackCategories), Action: ActionHome}
	if len(products) == 0 {
		return Screen{
			Name:     "products.empty",
			Text:     n.texts.Get(texts.ProductsEmpty),
			Keyboard: [][]Button{{back}},
		}, nil
	}
	s := Screen{Name: "products", Text: n.texts.Get(texts.ProductsPrompt)}
	for _, p := range products {
		s.Keyboard = append(s.Keyboard, []Button{{
			Label:   n.productText(texts.ProductLabel, p),
			Action:  ActionProduct,
			Payload: strconv.FormatInt(p.ID, 10),
		}})
	}
	s.Keyboard = append(s.Keyboard, []Button{back})
	return s, nil
}

func (n *Navigator) product(ctx context.Context, payload string) (Screen, error) {
	id, err := parseID(payload)
	if err != nil {
		return Screen{}, err
	}
	p, err := n.catalog.GetProduct(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return Screen{}, fmt.Errorf("%w: product %d", ErrBadPayload, id)
	}
	if err != nil {
		return Screen{}, err
	}
	return Screen{Name: "product", Toast: n.productToast(p)}, nil
}

// productToast renders the product toast within ToastLimit, shortening the
// name first so the price stays visible.
func (n *Navigator) productToast(p catalog.Product) string {
	toast := n.productText(texts.ProductToast, p)
	over := utf8.RuneCountInString(toast) - ToastLimit
	if over <= 0 {
		return toast
	}
	p.Name = format.Truncate(p.Name, max(utf8.RuneCountInString(p.Name)-over, 1))
	return format.Truncate(n.productText(texts.ProductToast, p), ToastLimit)
}

func (n *Navigator) mostOrdered(ctx context.Context, _ string) (Screen, error) {
	s := Screen{Name: "most_ordered", Keyboard: [][]Button{{n.backFAQ()}}}
	top, err := n.catalog.MostOrderedProduct(ctx)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		s.Text = n.texts.Get(texts.MostOrderedEmpty)
		return s, nil
	case err != nil:
		return Screen{}, err
	}
	s.Text = n.texts.Format(texts.MostOrderedText, map[string]string{
		"name":     top.Name,
		"price":    catalog.FormatPrice(top.Price),
		"quantity": strconv.FormatInt(top.Quantity, 10),
	})
	return s, nil
}

func (n *Navigator) productText(key string, p catalog.Product) string {
	return n.texts.Format(key, map[string]string{
		"name":  p.Name,
		"price": catalog.FormatPrice(p.Price),
	})
}

func (n *Navigator) backHome() Button {
	return Button{Label: n.texts.Get(texts.BtnBackHome), Action: ActionHome}
}

func (n *Navigator) backFAQ() Button {
	return Button{Label: n.texts.Get(texts.BtnBackFAQ), Action: ActionBackFAQ}
}

func parseID(payload string) (int64, error) {
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadPayload, payload)
	}
	return id, nil
}
