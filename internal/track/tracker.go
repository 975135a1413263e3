// Package track is the append-only execution outcome log: the single
// source of truth consumed by reporting. Outcomes are never mutated or
// removed through this component, and the log survives restarts.
package track

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// schemaVersionV1 is the current outcome-log schema.
const schemaVersionV1 = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS outcomes (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	test_case_id  TEXT NOT NULL,
	attempt       INTEGER NOT NULL,
	status        TEXT NOT NULL,
	error_message TEXT,
	logs          TEXT,
	artifact_refs TEXT,
	recorded_at   TEXT NOT NULL,
	UNIQUE(test_case_id, attempt)
);

CREATE INDEX IF NOT EXISTS idx_outcomes_case ON outcomes(test_case_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(status);
`

// Tracker is the SQLite-backed outcome log.
type Tracker struct {
	db *sql.DB
}

// Open opens or creates the outcome log at path. Creates the parent
// directory if it does not exist.
func Open(path string) (*Tracker, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create tracker dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers; concurrent Record calls queue at
	// the pool instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	t := &Tracker{db: db}
	if err := t.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return t, nil
}

func (t *Tracker) migrate() error {
	var tableCount int
	err := t.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		if _, err := t.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := t.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersionV1); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	if err := t.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != schemaVersionV1 {
		return fmt.Errorf("unknown outcome log schema version %d", v)
	}
	return nil
}

// Close closes the database connection.
func (t *Tracker) Close() error { return t.db.Close() }

// Record appends one outcome in a single transaction: fully committed or
// not committed at all, never partial. A duplicate (test_case_id, attempt)
// key is rejected with *DuplicateOutcomeError.
func (t *Tracker) Record(ctx context.Context, o Outcome) error {
	if o.TestCaseID == "" {
		return fmt.Errorf("record: test_case_id is required")
	}
	if o.Attempt < 1 {
		return fmt.Errorf("record: attempt must be >= 1, got %d", o.Attempt)
	}
	if _, err := ParseStatus(string(o.Status)); err != nil {
		return fmt.Errorf("record %s: %w", o.TestCaseID, err)
	}

	logsJSON, err := marshalOrNil(o.Logs)
	if err != nil {
		return fmt.Errorf("record %s: marshal logs: %w", o.TestCaseID, err)
	}
	refsJSON, err := marshalOrNil(o.ArtifactRefs)
	if err != nil {
		return fmt.Errorf("record %s: marshal artifact refs: %w", o.TestCaseID, err)
	}

	recordedAt := o.RecordedAt
	if recordedAt == "" {
		recordedAt = nowUTC()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record %s: begin tx: %w", o.TestCaseID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM outcomes WHERE test_case_id = ? AND attempt = ?",
		o.TestCaseID, o.Attempt,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("record %s: check duplicate: %w", o.TestCaseID, err)
	}
	if exists > 0 {
		return &DuplicateOutcomeError{TestCaseID: o.TestCaseID, Attempt: o.Attempt}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outcomes(test_case_id, attempt, status, error_message, logs, artifact_refs, recorded_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		o.TestCaseID, o.Attempt, string(o.Status), nullIfEmpty(o.ErrorMessage), logsJSON, refsJSON, recordedAt)
	if err != nil {
		return fmt.Errorf("record %s: %w", o.TestCaseID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record %s: commit: %w", o.TestCaseID, err)
	}
	return nil
}

// NextAttempt returns the attempt number a new execution of testCaseID
// should record under: 1 for the first run, max+1 after that.
func (t *Tracker) NextAttempt(ctx context.Context, testCaseID string) (int, error) {
	var max sql.NullInt64
	err := t.db.QueryRowContext(ctx,
		"SELECT MAX(attempt) FROM outcomes WHERE test_case_id = ?", testCaseID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("next attempt for %s: %w", testCaseID, err)
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

// Outcomes returns outcomes matching the filter, in recording order.
func (t *Tracker) Outcomes(ctx context.Context, f Filter) ([]Outcome, error) {
	query := `SELECT test_case_id, attempt, status, error_message, logs, artifact_refs, recorded_at
	          FROM outcomes`
	var conds []string
	var args []any
	if f.TestCaseID != "" {
		conds = append(conds, "test_case_id = ?")
		args = append(args, f.TestCaseID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY seq"

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var list []Outcome
	for rows.Next() {
		var (
			o          Outcome
			status     string
			errMsg     sql.NullString
			logsJSON   sql.NullString
			refsJSON   sql.NullString
		)
		if err := rows.Scan(&o.TestCaseID, &o.Attempt, &status, &errMsg, &logsJSON, &refsJSON, &o.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = Status(status)
		if errMsg.Valid {
			o.ErrorMessage = errMsg.String
		}
		if logsJSON.Valid {
			if err := json.Unmarshal([]byte(logsJSON.String), &o.Logs); err != nil {
				return nil, fmt.Errorf("parse logs for %s/%d: %w", o.TestCaseID, o.Attempt, err)
			}
		}
		if refsJSON.Valid {
			if err := json.Unmarshal([]byte(refsJSON.String), &o.ArtifactRefs); err != nil {
				return nil, fmt.Errorf("parse artifact refs for %s/%d: %w", o.TestCaseID, o.Attempt, err)
			}
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return list, nil
}

// Count returns the number of recorded outcomes.
func (t *Tracker) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outcomes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count outcomes: %w", err)
	}
	return n, nil
}

// IsDuplicateOutcome reports whether err wraps a DuplicateOutcomeError.
func IsDuplicateOutcome(err error) bool {
	var de *DuplicateOutcomeError
	return errors.As(err, &de)
}

// marshalOrNil JSON-encodes v, or returns nil for an empty slice so the
// column stays NULL.
func marshalOrNil[T any](v []T) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// nullIfEmpty converts "" to NULL for storage.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
