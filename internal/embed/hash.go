package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic, fully offline embedder: tokens are
// hashed into a fixed number of buckets and the bucket counts are
// L2-normalized. Crude compared to a model, but it preserves bag-of-words
// similarity, needs no server, and makes retrieval reproducible in tests.
type HashEmbedder struct {
	dims int
}

// NewHash returns a hash embedder with the given dimension.
func NewHash(dims int) *HashEmbedder {
	return &HashEmbedder{dims: dims}
}

// Embed never fails and ignores ctx; it exists to satisfy Embedder.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	for _, tok := range tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		vec[h.Sum64()%uint64(e.dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := 1 / math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) * inv)
		}
	}
	return vec, nil
}

// Dimensions returns the configured vector dimension.
func (e *HashEmbedder) Dimensions() int { return e.dims }

// Name identifies the embedder for logging.
func (e *HashEmbedder) Name() string { return "hash" }

// tokenize lowercases and splits on any non-letter, non-digit rune.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
