// Package backend is the HTTP client for the local model server (Ollama
// wire format). The embedding and generation packages consume it; the
// validate/repair loop above it is the only defense against malformed
// model output.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// clientConfig holds options applied during New.
type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
}

// Option configures the client.
type Option func(*clientConfig) error

// WithHTTPClient supplies a custom HTTP client (e.g. a test server's).
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		cfg.timeout = d
		return nil
	}
}

// Client talks to a local model server over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client for the given base URL (e.g. http://localhost:11434).
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("backend: base URL is required")
	}

	cfg := &clientConfig{
		httpClient: &http.Client{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.timeout > 0 {
		cfg.httpClient.Timeout = cfg.timeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: cfg.httpClient,
		logger:     cfg.logger,
	}, nil
}

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string { return c.baseURL }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Generate sends a single non-streaming completion request and returns the
// raw model output. Output is untrusted text: callers must validate.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	var resp generateResponse
	err := c.doJSON(ctx, "POST", c.baseURL+"/api/generate", "generate",
		generateRequest{Model: model, Prompt: prompt, Stream: false}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}

// Embed maps text to the model's embedding vector.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	var resp embedResponse
	err := c.doJSON(ctx, "POST", c.baseURL+"/api/embeddings", "embed",
		embedRequest{Model: model, Prompt: text}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Embedding, nil
}

// Health checks server reachability and returns the available model names.
func (c *Client) Health(ctx context.Context) ([]string, error) {
	var resp tagsResponse
	if err := c.doJSON(ctx, "GET", c.baseURL+"/api/tags", "health", nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// doJSON executes an HTTP request and decodes the JSON response into dst.
// Transport-level failures surface as *UnavailableError.
func (c *Client) doJSON(ctx context.Context, method, url, operation string, body, dst any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", operation, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.DebugContext(ctx, "backend request", "operation", operation, "method", method, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UnavailableError{Endpoint: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("%s: server returned %d: %s", operation, resp.StatusCode, msg)
	}

	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("%s: decode response: %w", operation, err)
		}
	}
	return nil
}
