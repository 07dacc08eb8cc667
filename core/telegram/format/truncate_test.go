package format

import (
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{"Café", 10, "Café"},
		{"Café", 4, "Café"},
		{"Café con leche", 5, "Café…"},
		{"ñandú", 1, "…"},
		{"x", 0, ""},
	}
	for _, tc := range cases {
		got := Truncate(tc.in, tc.limit)
		if got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
		if utf8.RuneCountInString(got) > tc.limit {
			t.Errorf("Truncate(%q, %d) is %d runes", tc.in, tc.limit, utf8.RuneCountInString(got))
		}
	}
}
