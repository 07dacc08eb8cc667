package menu

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/botmesero/mesero/internal/catalog"
	"github.com/botmesero/mesero/internal/texts"
)

type fakeCatalog struct {
	categories []catalog.Category
	products   map[int64][]catalog.Product
	top        *catalog.Ranked
	err        error
}

func (f *fakeCatalog) ListCategories(context.Context) ([]catalog.Category, error) {
	return f.categories, f.err
}

func (f *fakeCatalog) ListProductsByCategory(_ context.Context, id int64) ([]catalog.Product, error) {
	return f.products[id], f.err
}

func (f *fakeCatalog) GetProduct(_ context.Context, id int64) (catalog.Product, error) {
	if f.err != nil {
		return catalog.Product{}, f.err
	}
	for _, ps := range f.products {
		for _, p := range ps {
			if p.ID == id {
				return p, nil
			}
		}
	}
	return catalog.Product{}, catalog.ErrNotFound
}

func (f *fakeCatalog) MostOrderedProduct(context.Context) (catalog.Ranked, error) {
	if f.err != nil {
		return catalog.Ranked{}, f.err
	}
	if f.top == nil {
		return catalog.Ranked{}, catalog.ErrNotFound
	}
	return *f.top, nil
}

func sampleCatalog() *fakeCatalog {
	return &fakeCatalog{
		categories: []catalog.Category{{ID: 1, Name: "Platos"}, {ID: 2, Name: "Bebidas"}},
		products: map[int64][]catalog.Product{
			2: {{ID: 10, Name: "Café", Price: "2.5", CategoryID: 2}, {ID: 11, Name: "Jugo", Price: "3", CategoryID: 2}},
		},
	}
}

func newNavigator(cat Catalog, hour int) *Navigator {
	loc := time.FixedZone("ECT", -5*3600)
	return New(cat, texts.Default(), Options{
		BotName:  "BotMesero",
		Location: loc,
		Now:      func() time.Time { return time.Date(2024, 5, 1, hour, 30, 0, 0, loc) },
	})
}

func actions(s Screen) []string {
	var out []string
	for _, row := range s.Keyboard {
		for _, b := range row {
			a := b.Action
			if b.Payload != "" {
				a += ":" + b.Payload
			}
			out = append(out, a)
		}
	}
	return out
}

func TestGreetingByHour(t *testing.T) {
	cases := map[int]string{
		4: "Buenas noches", 5: "Buenos días", 11: "Buenos días",
		12: "Buenas tardes", 17: "Buenas tardes", 18: "Buenas noches", 23: "Buenas noches",
	}
	for hour, want := range cases {
		if got := newNavigator(sampleCatalog(), hour).Greeting(); got != want {
			t.Fatalf("hour %d: greeting = %q, want %q", hour, got, want)
		}
	}
}

func TestGreetingUsesConfiguredZone(t *testing.T) {
	loc := time.FixedZone("ECT", -5*3600)
	n := New(sampleCatalog(), nil, Options{
		Location: loc,
		// 15:00 UTC is 10:00 in ECT.
		Now: func() time.Time { return time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC) },
	})
	if got := n.Greeting(); got != "Buenos días" {
		t.Fatalf("greeting = %q", got)
	}
}

func TestStart(t *testing.T) {
	n := newNavigator(sampleCatalog(), 9)
	msgs := n.Start(Visitor{FirstName: "Ana_María", ChatID: 987654})
	if len(msgs) != 2 {
		t.Fatalf("messages = %d", len(msgs))
	}
	greet := msgs[0]
	if !greet.Markdown || len(greet.Keyboard) != 0 {
		t.Fatalf("greeting = %+v", greet)
	}
	if !strings.HasPrefix(greet.Text, `Buenos días, Ana\_María. Me llamo BotMesero`) || !strings.Contains(greet.Text, "987654") {
		t.Fatalf("greeting text = %q", greet.Text)
	}
	home := msgs[1]
	if home.Text != "Para poder avanzar, elige una opción ⬇️:" {
		t.Fatalf("prompt = %q", home.Text)
	}
	if got := strings.Join(actions(home), ","); got != "menu,pedido,otros" {
		t.Fatalf("home actions = %s", got)
	}
}

func TestNavigateStaticScreens(t *testing.T) {
	n := newNavigator(sampleCatalog(), 9)
	ctx := context.Background()
	cases := []struct {
		action  string
		text    string
		actions string
	}{
		{ActionHome, "Para poder avanzar, elige una opción:", "menu,pedido,otros"},
		{ActionPedido, texts.Default().Get(texts.PedidoText), "return_start"},
		{ActionFAQ, "Preguntas acerca del Bot 🤖⁉️:", "tiempo_pedido,producto_mas_pedido,orden_mal,app_no_abre,info_proporcionada,return_start"},
		{ActionBackFAQ, "Preguntas acerca del Bot 🤖⁉️:", "tiempo_pedido,producto_mas_pedido,orden_mal,app_no_abre,info_proporcionada,return_start"},
		{ActionDeliveryFAQ, texts.Default().Get(texts.TiempoPedidoText), "return_otros"},
		{ActionWrongOrder, texts.Default().Get(texts.OrdenMalText), "return_otros"},
		{ActionAppFAQ, texts.Default().Get(texts.AppNoAbreText), "return_otros"},
		{ActionInfoFAQ, texts.Default().Get(texts.InfoProporcionadaText), "return_otros"},
	}
	for _, tc := range cases {
		s, err := n.Navigate(ctx, tc.action, "")
		if err != nil {
			t.Fatalf("%s: %v", tc.action, err)
		}
		if s.Text != tc.text {
			t.Fatalf("%s: text = %q", tc.action, s.Text)
		}
		if got := strings.Join(actions(s), ","); got != tc.actions {
			t.Fatalf("%s: actions = %s, want %s", tc.action, got, tc.actions)
		}
	}
}

func TestNavigateCategoriesAndProducts(t *testing.T) {
	n := newNavigator(sampleCatalog(), 9)
	ctx := context.Background()

	s, err := n.Navigate(ctx, ActionMenu, "")
	if err != nil {
		t.Fatalf("menu: %v", err)
	}
	if got := strings.Join(actions(s), ","); got != "category:1,category:2,return_start" {
		t.Fatalf("categories = %s", got)
	}
	if s.Keyboard[1][0].Label != "Bebidas" {
		t.Fatalf("label = %q", s.Keyboard[1][0].Label)
	}

	s, err = n.Navigate(ctx, ActionCategory, "2")
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	if s.Text != "Selecciona un producto ⬇️:" {
		t.Fatalf("text = %q", s.Text)
	}
	if got := strings.Join(actions(s), ","); got != "product:10,product:11,return_start" {
		t.Fatalf("products = %s", got)
	}
	if s.Keyboard[0][0].Label != "Café - $2.50" || s.Keyboard[1][0].Label != "Jugo - $3.00" {
		t.Fatalf("labels = %q %q", s.Keyboard[0][0].Label, s.Keyboard[1][0].Label)
	}

	s, err = n.Navigate(ctx, ActionCategory, "1")
	if err != nil {
		t.Fatalf("empty category: %v", err)
	}
	if s.Text != "No se encontraron productos para esta categoría. 😔" || len(s.Keyboard) != 1 {
		t.Fatalf("empty category screen = %+v", s)
	}
}

func TestNavigateProductToast(t *testing.T) {
	n := newNavigator(sampleCatalog(), 9)
	s, err := n.Navigate(context.Background(), ActionProduct, "11")
	if err != nil {
		t.Fatalf("product: %v", err)
	}
	if s.Toast != "Jugo - $3.00" || s.Text != "" {
		t.Fatalf("screen = %+v", s)
	}
	if _, err := n.Navigate(context.Background(), ActionProduct, "99"); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("missing product err = %v", err)
	}
}

func TestNavigateProductToastFitsLimit(t *testing.T) {
	cat := sampleCatalog()
	long := strings.Repeat("Empanada de verde ", 20)
	cat.products[3] = []catalog.Product{{ID: 30, Name: long, Price: "1.75", CategoryID: 3}}
	n := newNavigator(cat, 9)

	s, err := n.Navigate(context.Background(), ActionProduct, "30")
	if err != nil {
		t.Fatalf("product: %v", err)
	}
	if got := utf8.RuneCountInString(s.Toast); got != ToastLimit {
		t.Fatalf("toast is %d runes, want %d: %q", got, ToastLimit, s.Toast)
	}
	if !strings.HasSuffix(s.Toast, "… - $1.75") || !strings.HasPrefix(s.Toast, "Empanada de verde") {
		t.Fatalf("toast = %q", s.Toast)
	}
}

func TestNavigateMostOrdered(t *testing.T) {
	cat := sampleCatalog()
	n := newNavigator(cat, 9)
	ctx := context.Background()

	s, err := n.Navigate(ctx, ActionMostOrdered, "")
	if err != nil {
		t.Fatalf("no orders: %v", err)
	}
	if s.Text != texts.Default().Get(texts.MostOrderedEmpty) {
		t.Fatalf("empty text = %q", s.Text)
	}

	cat.top = &catalog.Ranked{Product: catalog.Product{ID: 10, Name: "Café", Price: "2.5"}, Quantity: 14}
	s, err = n.Navigate(ctx, ActionMostOrdered, "")
	if err != nil {
		t.Fatalf("most ordered: %v", err)
	}
	if !strings.Contains(s.Text, "Café") || !strings.Contains(s.Text, "14") || !strings.Contains(s.Text, "$2.50") {
		t.Fatalf("text = %q", s.Text)
	}
	if got := strings.Join(actions(s), ","); got != "return_otros" {
		t.Fatalf("actions = %s", got)
	}
}

func TestNavigateErrors(t *testing.T) {
	n := newNavigator(sampleCatalog(), 9)
	ctx := context.Background()

	if _, err := n.Navigate(ctx, "nope", ""); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("unknown err = %v", err)
	}
	for _, payload := range []string{"", "abc", "-1", "0"} {
		if _, err := n.Navigate(ctx, ActionCategory, payload); !errors.Is(err, ErrBadPayload) {
			t.Fatalf("payload %q err = %v", payload, err)
		}
	}

	boom := errors.New("connection refused")
	broken := newNavigator(&fakeCatalog{err: boom}, 9)
	if _, err := broken.Navigate(ctx, ActionMenu, ""); !errors.Is(err, boom) {
		t.Fatalf("db err = %v", err)
	}
	if _, err := broken.Navigate(ctx, ActionMostOrdered, ""); !errors.Is(err, boom) {
		t.Fatalf("db err = %v", err)
	}
}

func TestEveryActionIsRoutable(t *testing.T) {
	n := newNavigator(sampleCatalog(), 9)
	if len(n.Actions()) != 12 {
		t.Fatalf("actions = %v", n.Actions())
	}
}
