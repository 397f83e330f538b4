package retrieval

import "strings"

// DefaultGateKeywords matches the weather corpus the default deployment
// indexes. Substring match against the lower-cased query, so accented
// keywords catch accented queries directly.
var DefaultGateKeywords = []string{
	"tiempo", "weather", "temperatura", "climate", "climático",
	"madrid", "barcelona", "valencia", "españa", "spain",
	"lluvia", "rain", "nublado", "cloudy", "soleado", "sunny",
}

// KeywordGate short-circuits retrieval for queries that mention none of
// its keywords.
type KeywordGate struct {
	keywords []string
}

// NewKeywordGate builds a gate over the given keyword list. An empty list
// falls back to DefaultGateKeywords.
func NewKeywordGate(keywords []string) *KeywordGate {
	if len(keywords) == 0 {
		keywords = DefaultGateKeywords
	}
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	return &KeywordGate{keywords: lowered}
}

// Relevant reports whether the query mentions any gate keyword.
func (g *KeywordGate) Relevant(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range g.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
