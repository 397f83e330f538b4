package retrieval

import "testing"

func TestKeywordGate_DefaultKeywords(t *testing.T) {
	g := NewKeywordGate(nil)

	tests := []struct {
		query string
		want  bool
	}{
		{"What's the weather in Madrid?", true},
		{"¿Qué TIEMPO hace hoy?", true},
		{"Is it cloudy in Barcelona today?", true},
		{"¿Lloverá? Dicen que hay lluvia", true},
		{"Explain quicksort in Go", false},
		{"Tell me a joke", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := g.Relevant(tt.query); got != tt.want {
			t.Errorf("Relevant(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestKeywordGate_AccentedKeywordMatchesAccentedQuery(t *testing.T) {
	g := NewKeywordGate(nil)
	if !g.Relevant("háblame del cambio climático") {
		t.Error("expected accented keyword to match accented query")
	}
}

func TestKeywordGate_CustomKeywords(t *testing.T) {
	g := NewKeywordGate([]string{"Kubernetes", "deployment"})

	if !g.Relevant("how do I scale a kubernetes cluster") {
		t.Error("expected custom keyword match")
	}
	if g.Relevant("what's the weather in Madrid") {
		t.Error("default keywords must not apply when a custom list is set")
	}
}
