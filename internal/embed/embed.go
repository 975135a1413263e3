// Package embed maps text to fixed-dimension vectors for similarity
// retrieval. The store enforces the dimension invariant; embedders declare
// theirs up front so stores can be opened to match.
package embed

import (
	"context"
	"fmt"
	"math"
)

// Embedder maps text to a fixed-length numeric vector. D is fixed for the
// lifetime of the paired vector store.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Name() string
}

// Cosine returns the cosine similarity of two equal-length vectors.
// A zero vector yields similarity 0 rather than NaN.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine: vector lengths differ: %d vs %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// New builds an embedder for the given provider. "ollama" requires a
// non-nil remote; "hash" is fully local and deterministic.
func New(provider string, remote RemoteEmbedFunc, model string, dims int) (Embedder, error) {
	switch provider {
	case "ollama":
		if remote == nil {
			return nil, fmt.Errorf("embed: ollama provider requires a backend client")
		}
		return NewOllama(remote, model, dims), nil
	case "hash":
		return NewHash(dims), nil
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", provider)
	}
}
