package format

import "unicode/utf8"

// Ellipsis marks text cut by Truncate.
const Ellipsis = "…"

// Truncate shortens s to at most limit runes, ending it with Ellipsis when
// anything was cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + Ellipsis
}
