package keyboard

import (
	"strings"
	"testing"
)

func TestInlineButtonsRows(t *testing.T) {
	markup := InlineButtonsRows(
		[]InlineBtn{{Text: "Bebidas", Unique: "category", Data: "2"}},
		nil,
		[]InlineBtn{{Text: "Inicio", Unique: "return_start"}, {Text: "FAQ", Unique: "otros"}},
	)
	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(markup.InlineKeyboard))
	}
	first := markup.InlineKeyboard[0][0]
	if first.Text != "Bebidas" || first.Unique != "category" || first.Data != "2" {
		t.Fatalf("first button = %+v", first)
	}
	second := markup.InlineKeyboard[1]
	if len(second) != 2 || second[0].Unique != "return_start" || second[0].Data != "" {
		t.Fatalf("second row = %+v", second)
	}
}

func TestInlineButtonsRowsSkipsOversizedData(t *testing.T) {
	long := InlineBtn{Text: "x", Unique: "category", Data: strings.Repeat("9", MaxCallbackData)}
	markup := InlineButtonsRows([]InlineBtn{long}, []InlineBtn{long, {Text: "Inicio", Unique: "return_start"}})
	if len(markup.InlineKeyboard) != 1 || len(markup.InlineKeyboard[0]) != 1 {
		t.Fatalf("keyboard = %+v", markup.InlineKeyboard)
	}
	if got := markup.InlineKeyboard[0][0].Unique; got != "return_start" {
		t.Fatalf("kept button = %s", got)
	}
}

func TestCallbackData(t *testing.T) {
	if got := (InlineBtn{Unique: "category", Data: "2"}).CallbackData(); got != "\fcategory|2" {
		t.Fatalf("data = %q", got)
	}
	if got := (InlineBtn{Unique: "otros"}).CallbackData(); got != "\fotros" {
		t.Fatalf("data = %q", got)
	}
}
