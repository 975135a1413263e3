package vecstore

// schemaVersionV1 is the current knowledge-base schema.
const schemaVersionV1 = 1

// Insertion order is the similarity tie-break, so chunks carry a
// monotonic seq that upserts must not disturb.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS store_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	chunk_id   TEXT NOT NULL UNIQUE,
	source_id  TEXT NOT NULL DEFAULT '',
	text       TEXT NOT NULL,
	vector     BLOB NOT NULL,
	metadata   TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_id);
`
