package library

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeText normalizes a string for matching (lowercase, no diacritics).
func NormalizeText(s string) string {
	return strings.ToLower(RemoveDiacritics(s))
}

// Slug converts a directory name into a stable album ID: lowercase, no
// diacritics, runs of non-alphanumeric characters collapsed to single
// dashes (e.g., "Výlet na Sněžku 2024" -> "vylet-na-snezku-2024").
func Slug(s string) string {
	s = NormalizeText(s)

	var b strings.Builder
	lastDash := true // suppress leading dash
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}
