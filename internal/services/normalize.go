package services

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// NormalizeCode trims, collapses inner whitespace and upper-cases identifiers
// typed or scanned by users (chassis numbers, catalog codes) so lookups do
// not depend on how the barcode reader or keyboard cased them.
func NormalizeCode(s string) string {
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	return cases.Upper(language.Und).String(s)
}

// normalizeText trims and collapses whitespace in free text.
func normalizeText(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}
