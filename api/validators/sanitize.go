package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims input, drops control characters and caps it at maxLen
// runes. Customer names are often multi-byte.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' {
			return -1
		}
		return r
	}, strings.TrimSpace(input))
	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}

// SanitizePhone keeps digits and the separators customers type (+, -, space,
// parentheses) so lookups match what was stored at placement.
func SanitizePhone(input string) string {
	kept := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '+', r == '-', r == '(', r == ')':
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, input)
	return SanitizeString(strings.Join(strings.Fields(kept), " "), 32)
}
