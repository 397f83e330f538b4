package domain

// ScoredDocument is one retrieval hit: the indexed payload content together
// with its similarity score. Hits arrive ordered by descending score.
type ScoredDocument struct {
	content string
	score   float64
}

// NewScoredDocument creates a retrieval hit.
func NewScoredDocument(content string, score float64) ScoredDocument {
	return ScoredDocument{content: content, score: score}
}

// Content returns the indexed payload text.
func (d ScoredDocument) Content() string { return d.content }

// Score returns the similarity score reported by the index.
func (d ScoredDocument) Score() float64 { return d.score }
