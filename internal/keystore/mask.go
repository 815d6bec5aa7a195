package keystore

import "strings"

// maskVisiblePrefix is how many leading characters Mask leaves readable.
const maskVisiblePrefix = 8

// Mask returns a redacted form of key for logs and error messages.
//
// Keys longer than 8 characters keep their first 8 characters; every other
// character is replaced. Shorter keys are replaced entirely:
//
//	Mask("sk-1234567890abcdef") // "sk-12345***********"
//	Mask("short")               // "*****"
//
// The result never equals a non-empty key: if the hidden part already
// consists only of '*', '#' is used instead.
func Mask(key string) string {
	runes := []rune(key)
	visible := 0
	if len(runes) > maskVisiblePrefix {
		visible = maskVisiblePrefix
	}

	hidden := runes[visible:]
	fill := "*"
	if len(hidden) > 0 && strings.Trim(string(hidden), "*") == "" {
		fill = "#"
	}

	return string(runes[:visible]) + strings.Repeat(fill, len(hidden))
}
