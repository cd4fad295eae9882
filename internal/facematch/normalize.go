package facematch

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

// NormalizePersonID canonicalizes a person-id before it is stored: NFC form,
// trimmed, with inner whitespace runs collapsed to one space. Case is kept.
func NormalizePersonID(id string) string {
	id = norm.NFC.String(id)
	return strings.Join(strings.Fields(id), " ")
}

// FoldPersonID returns a comparison key that ignores case and diacritics,
// used to warn about near-duplicate registrations ("Jiří" vs "jiri").
func FoldPersonID(id string) string {
	return strings.ToLower(RemoveDiacritics(NormalizePersonID(id)))
}
