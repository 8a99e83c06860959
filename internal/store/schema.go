package store

import (
	"database/sql"
	"fmt"
	"time"
)

// createSchema creates every table, index, and trigger the store needs, in
// one transaction per spec §4.D, generalizing the teacher's CreateSchema
// (internal/storage/schema.go) table set from its Go-specific
// types/type_fields/functions/function_parameters shape to the spec's
// language-neutral files/chunks/symbols/calls entities.
func createSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin schema tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("store: enable foreign keys: %w", err)
	}

	tables := []struct {
		name string
		ddl  string
	}{
		{"files", createFilesTable},
		{"chunks", createChunksTable},
		{"symbols", createSymbolsTable},
		{"calls", createCallsTable},
		{"embeddings", createEmbeddingsTable},
		{"project_config", createProjectConfigTable},
	}
	for _, t := range tables {
		if _, err := tx.Exec(t.ddl); err != nil {
			return fmt.Errorf("store: create %s table: %w", t.name, err)
		}
	}

	for i, idx := range schemaIndexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("store: create index %d: %w", i, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO project_config (key, value, updated_at) VALUES ('schema_version', ?, ?)`,
		schemaVersion, now,
	); err != nil {
		return fmt.Errorf("store: bootstrap project_config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit schema tx: %w", err)
	}

	// FTS5 virtual table and its sync triggers must be created outside the
	// transaction, matching the teacher's CreateSchema ordering.
	if _, err := db.Exec(createChunksFTSTable); err != nil {
		return fmt.Errorf("store: create chunks_fts: %w", err)
	}
	if err := createFTSTriggers(db); err != nil {
		return fmt.Errorf("store: create FTS triggers: %w", err)
	}
	return nil
}

const schemaVersion = "1"

const createFilesTable = `
CREATE TABLE IF NOT EXISTS files (
	id TEXT PRIMARY KEY,
	path TEXT NOT NULL UNIQUE,
	content_hash TEXT NOT NULL,
	language TEXT NOT NULL,
	size INTEGER NOT NULL DEFAULT 0,
	last_indexed_at TEXT NOT NULL
)`

const createChunksTable = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	chunk_hash TEXT NOT NULL,
	file_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	signature TEXT NOT NULL DEFAULT '',
	documentation TEXT NOT NULL DEFAULT '',
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	start_byte INTEGER NOT NULL DEFAULT 0,
	end_byte INTEGER NOT NULL DEFAULT 0,
	language TEXT NOT NULL,
	context_json TEXT NOT NULL DEFAULT '{}',
	content TEXT NOT NULL DEFAULT '',
	deleted_at TEXT,
	FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
)`

const createChunksFTSTable = `
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	chunk_id UNINDEXED,
	name,
	signature,
	documentation,
	content,
	tokenize = "unicode61 separators '._'"
)`

const createSymbolsTable = `
CREATE TABLE IF NOT EXISTS symbols (
	id TEXT PRIMARY KEY,
	file_id TEXT NOT NULL,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	signature TEXT NOT NULL DEFAULT '',
	parents_json TEXT NOT NULL DEFAULT '[]',
	metadata_json TEXT NOT NULL DEFAULT '{}',
	FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
)`

const createCallsTable = `
CREATE TABLE IF NOT EXISTS calls (
	id TEXT PRIMARY KEY,
	file_id TEXT NOT NULL,
	caller_start_line INTEGER NOT NULL,
	caller_end_line INTEGER NOT NULL,
	callee_name TEXT NOT NULL,
	kind TEXT NOT NULL,
	receiver TEXT NOT NULL DEFAULT '',
	argument_count INTEGER NOT NULL DEFAULT 0,
	chain_json TEXT,
	FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
)`

const createEmbeddingsTable = `
CREATE TABLE IF NOT EXISTS embeddings (
	chunk_hash TEXT NOT NULL,
	model_id TEXT NOT NULL,
	model_version TEXT NOT NULL,
	dimensions INTEGER NOT NULL,
	vector BLOB NOT NULL,
	PRIMARY KEY (chunk_hash, model_id, model_version, dimensions)
)`

const createProjectConfigTable = `
CREATE TABLE IF NOT EXISTS project_config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

var schemaIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_hash ON chunks(chunk_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name)`,
	`CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_calls_callee ON calls(callee_name)`,
	`CREATE INDEX IF NOT EXISTS idx_calls_file ON calls(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_embeddings_dims ON embeddings(model_id, model_version, dimensions)`,
}

// createFTSTriggers keeps chunks_fts synchronized with chunks, the same
// sync-via-trigger approach the teacher uses for files_fts
// (internal/storage/schema.go's createFTSTriggers, not shown here but
// referenced by CreateSchema's comment on trigger-based sync).
func createFTSTriggers(db *sql.DB) error {
	stmts := []string{
		`CREATE TRIGGER IF NOT EXISTS chunks_fts_insert AFTER INSERT ON chunks BEGIN
			INSERT INTO chunks_fts(chunk_id, name, signature, documentation, content)
			VALUES (new.id, new.name, new.signature, new.documentation, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS chunks_fts_update AFTER UPDATE ON chunks BEGIN
			UPDATE chunks_fts SET name = new.name, signature = new.signature,
				documentation = new.documentation, content = new.content
				WHERE chunk_id = new.id;
		END`,
		`CREATE TRIGGER IF NOT EXISTS chunks_fts_delete AFTER DELETE ON chunks BEGIN
			DELETE FROM chunks_fts WHERE chunk_id = old.id;
		END`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
