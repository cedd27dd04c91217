package textlayer

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeLegacy repairs strings carrying Windows-1252 bytes, the encoding of
// WinAnsi PDF literals and most legacy spreadsheet exports. Valid UTF-8
// passes through untouched.
func decodeLegacy(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	decoded, err := charmap.Windows1252.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return decoded
}
