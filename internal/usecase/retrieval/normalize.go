package retrieval

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// punctuationStripper drops question marks, including the inverted Spanish
// form and its UTF-8-read-as-Latin-1 mojibake variant that upstream chat
// frontends occasionally produce.
var punctuationStripper = strings.NewReplacer("Â¿", "", "¿", "", "?", "")

// NormalizeQuery prepares query text for the embedding service: strips
// question marks, lower-cases, and removes diacritics so accented and
// unaccented spellings land on the same vector. The result is only ever
// sent to the embedder. The augmented prompt keeps the original text.
// Applying NormalizeQuery to its own output is a no-op.
func NormalizeQuery(text string) string {
	cleaned := strings.ToLower(punctuationStripper.Replace(text))

	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	stripped, _, err := transform.String(stripper, cleaned)
	if err != nil {
		return strings.TrimSpace(cleaned)
	}
	return strings.TrimSpace(stripped)
}
