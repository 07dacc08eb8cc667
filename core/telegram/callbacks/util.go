package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Decode splits raw callback data into a key and payload. It understands
// Telebot's "\f<unique>|<payload>" encoding and plain "<key>_<digits>" data
// such as "category_3"; anything else is returned as a bare key.
func Decode(data string) (string, string) {
	if rest, ok := strings.CutPrefix(data, "\f"); ok {
		key, payload, _ := strings.Cut(rest, "|")
		return strings.TrimSpace(key), payload
	}
	data = strings.TrimSpace(data)
	if i := strings.LastIndexByte(data, '_'); i > 0 && i < len(data)-1 && isDigits(data[i+1:]) {
		return data[:i], data[i+1:]
	}
	return data, ""
}

// ParseCallbackData returns key and payload for cb. Telebot fills Unique and
// strips the prefix from Data when it routed the callback itself.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	return Decode(cb.Data)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
