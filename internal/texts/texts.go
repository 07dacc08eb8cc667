// Package texts holds every user-facing string of the bot. Built-in Spanish
// texts are embedded; a JSON file may override any of them.
package texts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

//go:embed default.json
var defaultJSON []byte

// Keys of the built-in texts.
const (
	GreetingMorning   = "greeting_morning"
	GreetingAfternoon = "greeting_afternoon"
	GreetingEvening   = "greeting_evening"
	StartGreeting     = "start_greeting"
	StartPrompt       = "start_prompt"
	HomePrompt        = "home_prompt"

	BtnMenu           = "btn_menu"
	BtnPedido         = "btn_pedido"
	BtnOtros          = "btn_otros"
	BtnBackHome       = "btn_back_home"
	BtnBackCategories = "btn_back_categories"
	BtnBackFAQ        = "btn_back_faq"

	CategoriesPrompt = "categories_prompt"
	CategoriesEmpty  = "categories_empty"
	ProductsPrompt   = "products_prompt"
	ProductsEmpty    = "products_empty"
	ProductLabel     = "product_label"
	ProductToast     = "product_toast"

	PedidoText = "pedido_text"
	FAQPrompt  = "faq_prompt"

	BtnTiempoPedido       = "btn_tiempo_pedido"
	BtnProductoMasPedido  = "btn_producto_mas_pedido"
	BtnOrdenMal           = "btn_orden_mal"
	BtnAppNoAbre          = "btn_app_no_abre"
	BtnInfoProporcionada  = "btn_info_proporcionada"
	TiempoPedidoText      = "tiempo_pedido_text"
	OrdenMalText          = "orden_mal_text"
	AppNoAbreText         = "app_no_abre_text"
	InfoProporcionadaText = "info_proporcionada_text"
	MostOrderedText       = "most_ordered_text"
	MostOrderedEmpty      = "most_ordered_empty"

	UnsupportedAction  = "unsupported_action"
	ServiceUnavailable = "service_unavailable"
	RateLimited        = "rate_limited"
	TextHint           = "text_hint"

	CmdStartDescription   = "cmd_start_description"
	CmdVersionDescription = "cmd_version_description"
)

// Texts is an immutable set of templates keyed by name.
type Texts struct {
	m map[string]string
}

// Default returns the embedded texts.
func Default() *Texts {
	t, err := parse(defaultJSON)
	if err != nil {
		panic(fmt.Sprintf("texts: embedded defaults: %v", err))
	}
	return t
}

// Load returns the embedded texts with the overrides from the JSON object at
// path applied. An empty path returns the defaults. Override keys must exist
// in the defaults and values must not be empty.
func Load(path string) (*Texts, error) {
	t := Default()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("texts: read %s: %w", path, err)
	}
	over, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("texts: %s: %w", path, err)
	}
	var unknown []string
	for k, v := range over.m {
		if _, ok := t.m[k]; !ok {
			unknown = append(unknown, k)
			continue
		}
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("texts: %s: key %q is empty", path, k)
		}
		t.m[k] = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("texts: %s: unknown keys %s", path, strings.Join(unknown, ", "))
	}
	return t, nil
}

func parse(data []byte) (*Texts, error) {
	m := make(map[string]string)
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return &Texts{m: m}, nil
}

// Get returns the template stored under key, or the key itself when missing
// so a typo shows up in the chat instead of an empty message.
func (t *Texts) Get(key string) string {
	if v, ok := t.m[key]; ok {
		return v
	}
	return key
}

// Format returns the template under key with every {name} placeholder
// replaced by vars[name]. Unknown placeholders are left as is.
func (t *Texts) Format(key string, vars map[string]string) string {
	tmpl := t.Get(key)
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
