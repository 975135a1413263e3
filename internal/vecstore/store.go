// Package vecstore is the durable knowledge base: (vector, text, metadata)
// triples keyed by chunk_id, queried by cosine similarity. Contents survive
// restarts; every mutation is written through before the call returns.
package vecstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"testforge/internal/embed"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// Hit is one retrieval result: a stored chunk with its similarity to the
// query vector. Never persisted.
type Hit struct {
	ChunkID    string  `json:"chunk_id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// SourceStat summarizes one ingested source for knowledge-base inspection.
type SourceStat struct {
	SourceID string `json:"source_id"`
	Chunks   int    `json:"chunks"`
}

// Store is a SQLite-backed vector store with a fixed dimension.
type Store struct {
	db  *sql.DB
	dim int
}

// Open opens or creates the store at path with the given dimension.
// Creates the parent directory if it does not exist. Reopening an existing
// store with a different dimension is a structural error.
func Open(path string, dim int) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("open vector store: dimension must be > 0, got %d", dim)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers; concurrent upserts queue at the
	// pool instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db, dim: dim}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.checkDimension(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		if _, err := s.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersionV1); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	if err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != schemaVersionV1 {
		return fmt.Errorf("unknown knowledge base schema version %d", v)
	}
	return nil
}

// checkDimension pins the store's dimension on first open and rejects
// reopening with a different one.
func (s *Store) checkDimension() error {
	var stored string
	err := s.db.QueryRow("SELECT value FROM store_meta WHERE key = 'dimension'").Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		_, err := s.db.Exec("INSERT INTO store_meta(key, value) VALUES('dimension', ?)", strconv.Itoa(s.dim))
		if err != nil {
			return fmt.Errorf("record dimension: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read dimension: %w", err)
	}
	got, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("parse stored dimension %q: %w", stored, err)
	}
	if got != s.dim {
		return fmt.Errorf("store at dimension %d cannot be opened with dimension %d", got, s.dim)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Dimension returns the store's fixed vector dimension.
func (s *Store) Dimension() int { return s.dim }

// Insert upserts one chunk. Re-inserting an existing chunk_id overwrites
// its vector, text, and metadata but keeps its original insertion sequence
// so similarity ties stay stable across re-ingestion. The write is durable
// when Insert returns.
func (s *Store) Insert(ctx context.Context, chunkID string, vector []float32, text string, meta map[string]string) error {
	if len(vector) != s.dim {
		return &DimensionMismatchError{Want: s.dim, Got: len(vector)}
	}
	if chunkID == "" {
		return fmt.Errorf("insert: chunk_id is required")
	}

	var metaJSON []byte
	if len(meta) > 0 {
		raw, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("insert %s: marshal metadata: %w", chunkID, err)
		}
		metaJSON = raw
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks(chunk_id, source_id, text, vector, metadata, created_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			source_id = excluded.source_id,
			text      = excluded.text,
			vector    = excluded.vector,
			metadata  = excluded.metadata`,
		chunkID, meta["source_id"], text, encodeVector(vector), nullBytes(metaJSON), nowUTC())
	if err != nil {
		return fmt.Errorf("insert %s: %w", chunkID, err)
	}
	return nil
}

// Query returns up to k stored chunks ranked by cosine similarity to the
// query vector, highest first. Ties break by insertion order, earlier
// wins. Fewer than k stored is not an error; an empty store returns an
// empty result.
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if len(vector) != s.dim {
		return nil, &DimensionMismatchError{Want: s.dim, Got: len(vector)}
	}
	if k <= 0 {
		return nil, fmt.Errorf("query: k must be > 0, got %d", k)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT chunk_id, text, vector, seq FROM chunks ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	type scored struct {
		hit Hit
		seq int64
	}
	var all []scored
	for rows.Next() {
		var (
			chunkID string
			text    string
			blob    []byte
			seq     int64
		)
		if err := rows.Scan(&chunkID, &text, &blob, &seq); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		stored, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decode vector for %s: %w", chunkID, err)
		}
		sim, err := embed.Cosine(vector, stored)
		if err != nil {
			return nil, fmt.Errorf("similarity for %s: %w", chunkID, err)
		}
		all = append(all, scored{hit: Hit{ChunkID: chunkID, Text: text, Similarity: sim}, seq: seq})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].hit.Similarity != all[j].hit.Similarity {
			return all[i].hit.Similarity > all[j].hit.Similarity
		}
		return all[i].seq < all[j].seq
	})

	if len(all) > k {
		all = all[:k]
	}
	hits := make([]Hit, len(all))
	for i, sc := range all {
		hits[i] = sc.hit
	}
	return hits, nil
}

// Delete removes a chunk. Deleting a non-existent id is a no-op.
func (s *Store) Delete(ctx context.Context, chunkID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE chunk_id = ?", chunkID); err != nil {
		return fmt.Errorf("delete %s: %w", chunkID, err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Sources returns per-source chunk counts, ordered by source id.
func (s *Store) Sources(ctx context.Context) ([]SourceStat, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT source_id, COUNT(*) FROM chunks GROUP BY source_id ORDER BY source_id")
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var stats []SourceStat
	for rows.Next() {
		var st SourceStat
		if err := rows.Scan(&st.SourceID, &st.Chunks); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// nullBytes converts an empty slice to NULL for storage.
func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
