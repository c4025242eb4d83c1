package domain

import "strings"

// IsSpace reports whether c is whitespace in the sense used for receipt text:
// ASCII controls \t \n \v \f \r, the Unicode space separators, the line and
// paragraph separators and the byte order mark. U+0085 is not whitespace here.
func IsSpace(c rune) bool {
	switch c {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		'\u00A0', '\u1680', '\u2028', '\u2029', '\u202F', '\u205F', '\u3000', '\uFEFF':
		return true
	}
	return c >= '\u2000' && c <= '\u200A'
}

// TrimSpace removes leading and trailing IsSpace runes.
func TrimSpace(s string) string {
	return strings.TrimFunc(s, IsSpace)
}
