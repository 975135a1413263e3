package chunk

import (
	"fmt"
)

// Chunk is one bounded segment of a source document's text. Immutable once
// created. Spans are rune offsets into the source; chunks from one source
// are contiguous and ordinal-ordered, and adjacent spans overlap by exactly
// the configured overlap.
type Chunk struct {
	ChunkID  string `json:"chunk_id"`
	SourceID string `json:"source_id"`
	Ordinal  int    `json:"ordinal"`
	Text     string `json:"text"`
	Span     Span   `json:"span"`
}

// Span is a half-open [Start, End) rune range into the source text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// boundary characters, in preference order: paragraph break, then sentence
// enders, then any newline.
var sentenceEnders = []rune{'.', '!', '?'}

// Split cuts text into chunks of at most maxChars runes, carrying
// overlapChars runes of trailing context into each subsequent chunk. Cuts
// prefer sentence or paragraph boundaries within a tolerance zone at the
// window end. Empty text yields an empty slice and no error.
func Split(sourceID, text string, maxChars, overlapChars int) ([]Chunk, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("chunk: max_chars must be > 0, got %d", maxChars)
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		return nil, fmt.Errorf("chunk: overlap_chars must be in [0, max_chars), got %d", overlapChars)
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	// Boundary cuts may shrink a window by at most this many runes.
	tolerance := maxChars / 5

	var chunks []Chunk
	start := 0
	for ordinal := 0; ; ordinal++ {
		end := start + maxChars
		if end >= n {
			end = n
		} else if cut := boundaryCut(runes, start+overlapChars+1, end, tolerance); cut > 0 {
			end = cut
		}

		chunks = append(chunks, Chunk{
			ChunkID:  ID(sourceID, ordinal),
			SourceID: sourceID,
			Ordinal:  ordinal,
			Text:     string(runes[start:end]),
			Span:     Span{Start: start, End: end},
		})

		if end == n {
			return chunks, nil
		}
		start = end - overlapChars
	}
}

// ID returns the stable chunk identifier for a source and ordinal.
func ID(sourceID string, ordinal int) string {
	return fmt.Sprintf("%s#%04d", sourceID, ordinal)
}

// boundaryCut searches backwards from end (exclusive) for a natural break
// within the tolerance zone, returning the cut position just after the
// boundary, or 0 if none qualifies. floor is the minimum acceptable cut;
// a cut at or below it would stall the window walk.
func boundaryCut(runes []rune, floor, end, tolerance int) int {
	low := end - tolerance
	if low < floor {
		low = floor
	}

	// Paragraph break wins over any sentence ender.
	for i := end - 1; i >= low; i-- {
		if runes[i] == '\n' && i > 0 && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i >= low; i-- {
		if isSentenceEnd(runes, i) {
			return i + 1
		}
	}
	for i := end - 1; i >= low; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	return 0
}

// isSentenceEnd reports whether the rune at i ends a sentence: an ender
// followed by whitespace (or nothing).
func isSentenceEnd(runes []rune, i int) bool {
	ender := false
	for _, e := range sentenceEnders {
		if runes[i] == e {
			ender = true
			break
		}
	}
	if !ender {
		return false
	}
	if i+1 >= len(runes) {
		return true
	}
	next := runes[i+1]
	return next == ' ' || next == '\n' || next == '\t'
}

// Reconstruct joins chunk texts back into the original source text by
// stripping each non-first chunk's leading overlap. Inverse of Split for
// the same overlap value.
func Reconstruct(chunks []Chunk, overlapChars int) string {
	if len(chunks) == 0 {
		return ""
	}
	out := []rune(chunks[0].Text)
	for _, c := range chunks[1:] {
		r := []rune(c.Text)
		if len(r) > overlapChars {
			out = append(out, r[overlapChars:]...)
		}
	}
	return string(out)
}
