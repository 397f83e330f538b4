package retrieval

import (
	"strings"

	"github.com/crolopez/enterprise-rag-system/internal/domain"
)

const (
	contextHeader   = "Relevant information:"
	contextDivider  = "---"
	answerDirective = "Answer using the information above."
)

// BuildAugmentedPrompt wraps the original question with retrieved context.
// Documents appear in ranked order separated by blank lines, then a fixed
// divider, then the question verbatim. The question always comes last so
// the model treats the context as background, not as the instruction.
func BuildAugmentedPrompt(docs []domain.ScoredDocument, question string) string {
	var b strings.Builder
	b.WriteString(contextHeader)
	b.WriteString("\n\n")
	for _, doc := range docs {
		b.WriteString(doc.Content())
		b.WriteString("\n\n")
	}
	b.WriteString(contextDivider)
	b.WriteString("\n\n")
	b.WriteString(answerDirective)
	b.WriteString("\n")
	b.WriteString(question)
	return b.String()
}
