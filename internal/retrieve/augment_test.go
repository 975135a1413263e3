package retrieve

import (
	"context"
	"errors"
	"strings"
	"testing"

	"testforge/internal/embed"
	"testforge/internal/vecstore"
)

// fixedQuerier returns a canned ranked result.
type fixedQuerier struct {
	hits []vecstore.Hit
	err  error
}

func (q fixedQuerier) Query(_ context.Context, _ []float32, k int) ([]vecstore.Hit, error) {
	if q.err != nil {
		return nil, q.err
	}
	if len(q.hits) > k {
		return q.hits[:k], nil
	}
	return q.hits, nil
}

func TestAugment_JoinsInSimilarityOrder(t *testing.T) {
	store := fixedQuerier{hits: []vecstore.Hit{
		{ChunkID: "a", Text: "most relevant", Similarity: 0.9},
		{ChunkID: "b", Text: "less relevant", Similarity: 0.5},
	}}

	aug, err := Augment(context.Background(), "login requirements", embed.NewHash(16), store, 5, 0)
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if aug.QueryText != "login requirements" {
		t.Errorf("query text lost: %q", aug.QueryText)
	}
	if len(aug.Retrieved) != 2 {
		t.Fatalf("expected 2 retrieved, got %d", len(aug.Retrieved))
	}

	first := strings.Index(aug.JoinedContext, "most relevant")
	second := strings.Index(aug.JoinedContext, "less relevant")
	if first < 0 || second < 0 || first > second {
		t.Errorf("joined context out of order: %q", aug.JoinedContext)
	}
	if !strings.HasPrefix(aug.JoinedContext, Separator) {
		t.Error("each entry must be prefixed with the separator")
	}
	if got := strings.Count(aug.JoinedContext, Separator); got != 2 {
		t.Errorf("expected 2 separators, got %d", got)
	}
}

func TestAugment_BudgetDropsLowestSimilarityWhole(t *testing.T) {
	store := fixedQuerier{hits: []vecstore.Hit{
		{ChunkID: "a", Text: strings.Repeat("x", 50), Similarity: 0.9},
		{ChunkID: "b", Text: strings.Repeat("y", 50), Similarity: 0.8},
		{ChunkID: "c", Text: strings.Repeat("z", 50), Similarity: 0.1},
	}}
	sepLen := len([]rune(Separator))
	budget := 2*(sepLen+50) + 10 // room for two entries, not three

	aug, err := Augment(context.Background(), "q", embed.NewHash(8), store, 5, budget)
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if strings.Contains(aug.JoinedContext, "z") {
		t.Error("lowest-similarity entry should be dropped first")
	}
	if !strings.Contains(aug.JoinedContext, "x") || !strings.Contains(aug.JoinedContext, "y") {
		t.Error("higher-similarity entries should survive truncation")
	}
	// Never a partial chunk: lengths are whole multiples of entry size.
	if got := len([]rune(aug.JoinedContext)); got != 2*(sepLen+50) {
		t.Errorf("context length %d suggests a mid-chunk cut", got)
	}
	// Retrieved keeps the full ranked result regardless of the budget.
	if len(aug.Retrieved) != 3 {
		t.Errorf("retrieved should be unaffected by budget, got %d", len(aug.Retrieved))
	}
}

func TestAugment_EmptyStoreIsNotAnError(t *testing.T) {
	aug, err := Augment(context.Background(), "anything", embed.NewHash(8), fixedQuerier{}, 5, 1000)
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if aug.JoinedContext != "" {
		t.Errorf("empty store should produce empty context, got %q", aug.JoinedContext)
	}
	if len(aug.Retrieved) != 0 {
		t.Errorf("expected no hits, got %d", len(aug.Retrieved))
	}
}

func TestAugment_PropagatesStoreError(t *testing.T) {
	want := errors.New("store exploded")
	_, err := Augment(context.Background(), "q", embed.NewHash(8), fixedQuerier{err: want}, 5, 0)
	if err == nil || !errors.Is(err, want) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}

func TestAugment_EndToEndWithRealStore(t *testing.T) {
	dir := t.TempDir()
	s, err := vecstore.Open(dir+"/kb.db", 32)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	e := embed.NewHash(32)
	ctx := context.Background()
	texts := map[string]string{
		"req#0000": "the login page must validate the user password",
		"req#0001": "reporting dashboard exports quarterly figures",
	}
	for id, text := range texts {
		vec, _ := e.Embed(ctx, text)
		if err := s.Insert(ctx, id, vec, text, nil); err != nil {
			t.Fatal(err)
		}
	}

	aug, err := Augment(ctx, "how should login validate a password", e, s, 1, 0)
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if len(aug.Retrieved) != 1 || aug.Retrieved[0].ChunkID != "req#0000" {
		t.Errorf("expected the login chunk to rank first, got %+v", aug.Retrieved)
	}
}
