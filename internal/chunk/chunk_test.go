package chunk

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplit_EmptyText(t *testing.T) {
	chunks, err := Split("doc", "", 1000, 100)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty text, got %d", len(chunks))
	}
}

func TestSplit_ShortText(t *testing.T) {
	chunks, err := Split("doc", "a short requirement", 1000, 100)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	want := Chunk{
		ChunkID:  "doc#0000",
		SourceID: "doc",
		Ordinal:  0,
		Text:     "a short requirement",
		Span:     Span{Start: 0, End: 19},
	}
	if diff := cmp.Diff(want, chunks[0]); diff != "" {
		t.Errorf("chunk mismatch (-want +got):\n%s", diff)
	}
}

func TestSplit_BadParams(t *testing.T) {
	if _, err := Split("doc", "text", 0, 0); err == nil {
		t.Error("expected error for max_chars=0")
	}
	if _, err := Split("doc", "text", 100, 100); err == nil {
		t.Error("expected error for overlap == max")
	}
	if _, err := Split("doc", "text", 100, -1); err == nil {
		t.Error("expected error for negative overlap")
	}
}

func TestSplit_ReconstructExact(t *testing.T) {
	texts := []string{
		strings.Repeat("abcdefghij", 537),
		"First sentence. Second sentence! Third?\n\nNew paragraph here. " + strings.Repeat("More filler text. ", 200),
		"unicode: ввод данных проверка — 結果の確認。" + strings.Repeat("padding ", 300),
	}
	for i, text := range texts {
		chunks, err := Split("doc", text, 300, 40)
		if err != nil {
			t.Fatalf("text %d: Split: %v", i, err)
		}
		got := Reconstruct(chunks, 40)
		if got != text {
			t.Errorf("text %d: reconstruction diverged (got %d runes, want %d)", i, len([]rune(got)), len([]rune(text)))
		}
	}
}

func TestSplit_TenThousandCharDocument(t *testing.T) {
	text := strings.Repeat("abcdefghij", 1000) // no break characters: hard cuts only
	chunks, err := Split("doc", text, 1000, 100)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 11 || len(chunks) > 12 {
		t.Fatalf("expected 11-12 chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		tail := string(prev[len(prev)-100:])
		if !strings.HasPrefix(chunks[i].Text, tail) {
			t.Errorf("chunk %d does not start with previous chunk's last 100 chars", i)
		}
	}

	if Reconstruct(chunks, 100) != text {
		t.Error("reconstruction diverged")
	}
}

func TestSplit_SpansContiguous(t *testing.T) {
	text := strings.Repeat("sentence one. sentence two. ", 100)
	chunks, err := Split("spec", text, 250, 30)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if chunks[0].Span.Start != 0 {
		t.Errorf("first span starts at %d, want 0", chunks[0].Span.Start)
	}
	if last := chunks[len(chunks)-1].Span; last.End != len([]rune(text)) {
		t.Errorf("last span ends at %d, want %d", last.End, len([]rune(text)))
	}
	for i := 1; i < len(chunks); i++ {
		if got, want := chunks[i].Span.Start, chunks[i-1].Span.End-30; got != want {
			t.Errorf("chunk %d span start %d, want %d (prev end minus overlap)", i, got, want)
		}
		if chunks[i].Ordinal != i {
			t.Errorf("chunk %d has ordinal %d", i, chunks[i].Ordinal)
		}
	}
}

func TestSplit_PrefersSentenceBoundary(t *testing.T) {
	text := strings.Repeat("a", 950) + ". " + strings.Repeat("b", 500)
	chunks, err := Split("doc", text, 1000, 100)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if !strings.HasSuffix(chunks[0].Text, ".") {
		t.Errorf("first chunk should cut after the sentence ender, ends with %q",
			chunks[0].Text[len(chunks[0].Text)-5:])
	}
}

func TestSplit_PrefersParagraphBreak(t *testing.T) {
	text := strings.Repeat("a", 900) + "\n\n" + strings.Repeat("b. ", 400)
	chunks, err := Split("doc", text, 1000, 100)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if !strings.HasSuffix(chunks[0].Text, "\n\n") {
		t.Error("first chunk should cut after the paragraph break")
	}
}
