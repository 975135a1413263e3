package embed

import (
	"context"
	"fmt"
)

// RemoteEmbedFunc is the embedding call exposed by the backend client:
// (model, text) to vector.
type RemoteEmbedFunc func(ctx context.Context, model, text string) ([]float32, error)

// OllamaEmbedder embeds text through a local model server.
type OllamaEmbedder struct {
	remote RemoteEmbedFunc
	model  string
	dims   int
}

// NewOllama wraps a backend embed call with a fixed model and expected
// dimension.
func NewOllama(remote RemoteEmbedFunc, model string, dims int) *OllamaEmbedder {
	return &OllamaEmbedder{remote: remote, model: model, dims: dims}
}

// Embed requests a vector for text. A vector whose length disagrees with
// the configured dimension means the model and store are misconfigured
// relative to each other; that is structural and aborts the call.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.remote(ctx, e.model, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != e.dims {
		return nil, fmt.Errorf("embed: model %s returned dimension %d, store expects %d", e.model, len(vec), e.dims)
	}
	return vec, nil
}

// Dimensions returns the configured vector dimension.
func (e *OllamaEmbedder) Dimensions() int { return e.dims }

// Name identifies the embedder for logging.
func (e *OllamaEmbedder) Name() string { return "ollama:" + e.model }
