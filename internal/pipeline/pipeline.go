// Package pipeline wires the stages end to end: documents into the
// knowledge base, queries into generated artifacts, scripts into
// recorded outcomes and reports. The CLI and the MCP server both drive
// this package; neither reaches around it.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"testforge/internal/backend"
	"testforge/internal/config"
	"testforge/internal/embed"
	"testforge/internal/generate"
	"testforge/internal/logging"
	"testforge/internal/track"
	"testforge/internal/vecstore"
)

// Pipeline holds the opened components for one configuration.
type Pipeline struct {
	Cfg      *config.Config
	Backend  *backend.Client
	Embedder embed.Embedder
	Store    *vecstore.Store
	Tracker  *track.Tracker
	Engine   *generate.Engine

	logger *slog.Logger
}

// New opens every component the configuration names. The pipeline owns
// the store and tracker handles; Close releases them.
func New(cfg *config.Config) (*Pipeline, error) {
	client, err := backend.New(cfg.Backend.BaseURL,
		backend.WithTimeout(time.Duration(cfg.Backend.TimeoutSeconds)*time.Second))
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}

	emb, err := embed.New(cfg.Backend.EmbedProvider, client.Embed, cfg.Backend.EmbedModel, cfg.Store.Dimension)
	if err != nil {
		return nil, err
	}

	store, err := vecstore.Open(cfg.Store.KBPath, cfg.Store.Dimension)
	if err != nil {
		return nil, fmt.Errorf("open knowledge base: %w", err)
	}

	tracker, err := track.Open(cfg.Store.OutcomesPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open outcome log: %w", err)
	}

	engine := generate.NewEngine(
		backend.NewGenerator(client, cfg.Backend.GenerateModel),
		backend.NewGenerator(client, cfg.Backend.ScriptModel),
		cfg.Generation.MaxRepairs,
	)

	return &Pipeline{
		Cfg:      cfg,
		Backend:  client,
		Embedder: emb,
		Store:    store,
		Tracker:  tracker,
		Engine:   engine,
		logger:   logging.New("pipeline"),
	}, nil
}

// Close releases the durable handles.
func (p *Pipeline) Close() error {
	return errors.Join(p.Store.Close(), p.Tracker.Close())
}
