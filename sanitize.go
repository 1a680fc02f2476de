package elf

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"unicode"
)

var nameSanitizer = transform.Chain(
	norm.NFC,
	runes.Remove(runes.Predicate(func(r rune) bool { return !unicode.IsGraphic(r) && r != ' ' })),
)

// sanitizeName strips non-graphic runes from a name read out of a
// string table before it is interpolated into an error, a log field,
// or terminal output. The wire format guarantees nothing about a
// string table's contents beyond NUL-termination (§6.1); a corrupted
// or adversarial file can otherwise smuggle control characters into
// whatever consumes these names.
func sanitizeName(raw string) string {
	out, _, err := transform.String(nameSanitizer, raw)
	if err != nil {
		return ""
	}
	return out
}
