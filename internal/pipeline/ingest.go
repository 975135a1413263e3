package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"testforge/internal/backend"
	"testforge/internal/chunk"
	"testforge/internal/extract"
)

// IngestResult summarizes one document's trip through the ingest stage.
// Err is set when the document was skipped.
type IngestResult struct {
	Path     string
	SourceID string
	Chunks   int
	Err      error
}

// Ingest runs extract, chunk, embed, insert for each path with bounded
// parallelism across documents. A failing document is skipped and
// reported in its result; store errors and an unreachable backend abort
// the whole batch.
func (p *Pipeline) Ingest(ctx context.Context, paths []string, parallel int) ([]IngestResult, error) {
	if parallel < 1 {
		parallel = 1
	}
	results := make([]IngestResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, path := range paths {
		g.Go(func() error {
			res, err := p.ingestOne(gctx, path)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	for _, r := range results {
		if r.Err != nil {
			p.logger.Warn("document skipped", "path", r.Path, "err", r.Err)
		}
	}
	return results, nil
}

// ingestOne processes a single document. A non-nil second return value
// is structural and cancels the sibling goroutines.
func (p *Pipeline) ingestOne(ctx context.Context, path string) (IngestResult, error) {
	res := IngestResult{Path: path, SourceID: SourceID(path)}

	text, err := extract.Extract(path)
	if err != nil {
		res.Err = err
		return res, nil
	}

	chunks, err := chunk.Split(res.SourceID, text, p.Cfg.Chunking.MaxChars, p.Cfg.Chunking.OverlapChars)
	if err != nil {
		res.Err = err
		return res, nil
	}

	for _, ch := range chunks {
		vec, err := p.Embedder.Embed(ctx, ch.Text)
		if err != nil {
			if backend.IsUnavailable(err) || ctx.Err() != nil {
				return res, err
			}
			res.Err = fmt.Errorf("embed %s: %w", ch.ChunkID, err)
			return res, nil
		}
		meta := map[string]string{"source_id": res.SourceID, "path": path}
		if err := p.Store.Insert(ctx, ch.ChunkID, vec, ch.Text, meta); err != nil {
			return res, err
		}
		res.Chunks++
	}

	p.logger.Info("document ingested", "source", res.SourceID, "chunks", res.Chunks)
	return res, nil
}

// SourceID derives the stable source identifier for a document path:
// the base name without its extension.
func SourceID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
