// Package retrieve builds generation context from knowledge-base hits.
package retrieve

import (
	"context"
	"fmt"
	"strings"

	"testforge/internal/embed"
	"testforge/internal/vecstore"
)

// Separator prefixes every retrieved chunk in the joined context so the
// backend can tell retrieved material from the instruction.
const Separator = "\n--- context ---\n"

// Querier is the read side of the vector store.
type Querier interface {
	Query(ctx context.Context, vector []float32, k int) ([]vecstore.Hit, error)
}

// Augmented pairs a query with its retrieved context. Retrieved holds the
// full ranked result; JoinedContext is the budget-bounded concatenation
// actually handed to the backend.
type Augmented struct {
	QueryText     string
	Retrieved     []vecstore.Hit
	JoinedContext string
}

// Augment embeds the query, retrieves the top k chunks, and joins them in
// descending similarity order under budgetChars (0 = unlimited). Truncation
// drops whole lowest-similarity entries, never a partial chunk. An empty
// store yields an empty JoinedContext; generation proceeds on the query
// alone.
func Augment(ctx context.Context, queryText string, emb embed.Embedder, store Querier, k, budgetChars int) (*Augmented, error) {
	vec, err := emb.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := store.Query(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	return &Augmented{
		QueryText:     queryText,
		Retrieved:     hits,
		JoinedContext: join(hits, budgetChars),
	}, nil
}

// join concatenates hit texts, highest similarity first, stopping before
// the entry that would exceed the budget.
func join(hits []vecstore.Hit, budgetChars int) string {
	var b strings.Builder
	used := 0
	for _, h := range hits {
		entry := Separator + h.Text
		n := len([]rune(entry))
		if budgetChars > 0 && used+n > budgetChars {
			break
		}
		b.WriteString(entry)
		used += n
	}
	return b.String()
}
