// Package store is the durable content/chunk store spec §4.D names: files,
// chunks, symbols, calls, and per-model-version-dimension embeddings,
// backed by sqlite. It generalizes the teacher's internal/storage package
// (schema.go, vector_index.go, query_helpers.go) from a Go-call-graph
// schema to the spec's language-neutral entities.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codeindex-dev/codeindex/internal/cerr"
)

// Store wraps a single project's sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and ensures
// its schema exists. Callers must call InitVectorExtension once per process
// before Open, matching the teacher's documented CreateSchema precondition.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, cerr.New("store.Open", cerr.StoreCorrupt, err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// FileRecord is a row of the files table.
type FileRecord struct {
	ID            string
	Path          string
	ContentHash   string
	Language      string
	Size          int64
	LastIndexedAt time.Time
}

// ChunkRecord is a row of the chunks table.
type ChunkRecord struct {
	ID            string
	ChunkHash     string
	Kind          string
	Name          string
	Signature     string
	Documentation string
	StartLine     int
	EndLine       int
	StartByte     int
	EndByte       int
	Language      string
	ContextJSON   string
	Content       string
}

// SymbolRecord is a row of the symbols table.
type SymbolRecord struct {
	ID           string
	Name         string
	Kind         string
	StartLine    int
	EndLine      int
	Signature    string
	ParentsJSON  string
	MetadataJSON string
}

// CallRecord is a row of the calls table.
type CallRecord struct {
	ID              string
	CallerStartLine int
	CallerEndLine   int
	CalleeName      string
	Kind            string
	Receiver        string
	ArgumentCount   int
	ChainJSON       sql.NullString
}

// WriteFile atomically replaces file, chunks, symbols, and calls for one
// path in a single transaction, matching spec §4.D's "writes happen under a
// transaction per file" invariant and the teacher's per-file-transaction
// pattern in indexer_v2.go's processing loop.
func (s *Store) WriteFile(file FileRecord, chunks []ChunkRecord, symbols []SymbolRecord, calls []CallRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return cerr.New("store.WriteFile", cerr.TransientIO, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO files (id, path, content_hash, language, size, last_indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			language = excluded.language,
			size = excluded.size,
			last_indexed_at = excluded.last_indexed_at`,
		file.ID, file.Path, file.ContentHash, file.Language, file.Size,
		file.LastIndexedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return cerr.New("store.WriteFile", cerr.StoreCorrupt, err)
	}

	// Resolve the stable file id (may predate this call if the path already existed).
	var fileID string
	if err := tx.QueryRow(`SELECT id FROM files WHERE path = ?`, file.Path).Scan(&fileID); err != nil {
		return cerr.New("store.WriteFile", cerr.StoreCorrupt, err)
	}

	for _, table := range []string{"chunks", "symbols", "calls"} {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE file_id = ?`, table), fileID); err != nil {
			return cerr.New("store.WriteFile", cerr.StoreCorrupt, err)
		}
	}

	chunkStmt, err := tx.Prepare(`
		INSERT INTO chunks (id, chunk_hash, file_id, kind, name, signature, documentation,
			start_line, end_line, start_byte, end_byte, language, context_json, content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return cerr.New("store.WriteFile", cerr.StoreCorrupt, err)
	}
	defer chunkStmt.Close()
	for _, c := range chunks {
		if _, err := chunkStmt.Exec(
			c.ID, c.ChunkHash, fileID, c.Kind, c.Name, c.Signature, c.Documentation,
			c.StartLine, c.EndLine, c.StartByte, c.EndByte, c.Language, c.ContextJSON, c.Content,
		); err != nil {
			return cerr.New("store.WriteFile", cerr.StoreCorrupt, err)
		}
	}

	symStmt, err := tx.Prepare(`
		INSERT INTO symbols (id, file_id, name, kind, start_line, end_line, signature, parents_json, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return cerr.New("store.WriteFile", cerr.StoreCorrupt, err)
	}
	defer symStmt.Close()
	for _, sym := range symbols {
		if _, err := symStmt.Exec(
			sym.ID, fileID, sym.Name, sym.Kind, sym.StartLine, sym.EndLine,
			sym.Signature, sym.ParentsJSON, sym.MetadataJSON,
		); err != nil {
			return cerr.New("store.WriteFile", cerr.StoreCorrupt, err)
		}
	}

	callStmt, err := tx.Prepare(`
		INSERT INTO calls (id, file_id, caller_start_line, caller_end_line, callee_name, kind, receiver, argument_count, chain_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return cerr.New("store.WriteFile", cerr.StoreCorrupt, err)
	}
	defer callStmt.Close()
	for _, c := range calls {
		if _, err := callStmt.Exec(
			c.ID, fileID, c.CallerStartLine, c.CallerEndLine, c.CalleeName, c.Kind,
			c.Receiver, c.ArgumentCount, c.ChainJSON,
		); err != nil {
			return cerr.New("store.WriteFile", cerr.StoreCorrupt, err)
		}
	}

	return tx.Commit()
}

// AllFiles returns every file row, used by the indexer's change-detection
// pass to compare disk state to stored content hashes.
func (s *Store) AllFiles() ([]FileRecord, error) {
	rows, err := s.db.Query(`SELECT id, path, content_hash, language, size, last_indexed_at FROM files`)
	if err != nil {
		return nil, cerr.New("store.AllFiles", cerr.StoreCorrupt, err)
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		var f FileRecord
		var lastIndexed string
		if err := rows.Scan(&f.ID, &f.Path, &f.ContentHash, &f.Language, &f.Size, &lastIndexed); err != nil {
			return nil, cerr.New("store.AllFiles", cerr.StoreCorrupt, err)
		}
		f.LastIndexedAt, _ = time.Parse(time.RFC3339, lastIndexed)
		out = append(out, f)
	}
	return out, rows.Err()
}

// ChunksMissingEmbedding returns every chunk with no embedding row for the
// given (model_id, model_version, dimensions) triple, the set §4.H's
// embed() operation must generate vectors for. When force is true every
// chunk is returned regardless of existing embedding rows.
func (s *Store) ChunksMissingEmbedding(modelID, modelVersion string, dimensions int, force bool) ([]ChunkEntry, error) {
	query := `
		SELECT c.id, c.chunk_hash, c.kind, c.name, c.signature, c.documentation,
			c.start_line, c.end_line, c.start_byte, c.end_byte, c.language, c.context_json, c.content,
			f.path
		FROM chunks c
		JOIN files f ON f.id = c.file_id`
	args := []any{}
	if !force {
		query += `
		WHERE NOT EXISTS (
			SELECT 1 FROM embeddings e
			WHERE e.chunk_hash = c.chunk_hash
			  AND e.model_id = ? AND e.model_version = ? AND e.dimensions = ?)`
		args = append(args, modelID, modelVersion, dimensions)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, cerr.New("store.ChunksMissingEmbedding", cerr.StoreCorrupt, err)
	}
	defer rows.Close()

	var out []ChunkEntry
	for rows.Next() {
		var e ChunkEntry
		if err := rows.Scan(
			&e.ID, &e.ChunkHash, &e.Kind, &e.Name, &e.Signature, &e.Documentation,
			&e.StartLine, &e.EndLine, &e.StartByte, &e.EndByte, &e.Language, &e.ContextJSON, &e.Content,
			&e.FilePath,
		); err != nil {
			return nil, cerr.New("store.ChunksMissingEmbedding", cerr.StoreCorrupt, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ChunksForPath returns every chunk currently stored for one file path,
// the lookup the indexer needs to evict a deleted file's entries from the
// lexical index before the cascade delete removes their store rows.
func (s *Store) ChunksForPath(path string) ([]ChunkEntry, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.chunk_hash, c.kind, c.name, c.signature, c.documentation,
			c.start_line, c.end_line, c.start_byte, c.end_byte, c.language, c.context_json, c.content,
			f.path
		FROM chunks c
		JOIN files f ON f.id = c.file_id
		WHERE f.path = ?`, path)
	if err != nil {
		return nil, cerr.New("store.ChunksForPath", cerr.StoreCorrupt, err)
	}
	defer rows.Close()

	var out []ChunkEntry
	for rows.Next() {
		var e ChunkEntry
		if err := rows.Scan(
			&e.ID, &e.ChunkHash, &e.Kind, &e.Name, &e.Signature, &e.Documentation,
			&e.StartLine, &e.EndLine, &e.StartByte, &e.EndByte, &e.Language, &e.ContextJSON, &e.Content,
			&e.FilePath,
		); err != nil {
			return nil, cerr.New("store.ChunksForPath", cerr.StoreCorrupt, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteFile removes a file and (via ON DELETE CASCADE) its chunks,
// symbols, and calls. Embedding rows for chunks that no longer exist are
// swept separately by OrphanSweep, per spec §3's ownership/lifecycle rule.
func (s *Store) DeleteFile(path string) error {
	_, err := s.db.Exec(`DELETE FROM files WHERE path = ?`, path)
	if err != nil {
		return cerr.New("store.DeleteFile", cerr.StoreCorrupt, err)
	}
	return nil
}

// OrphanSweep removes embedding rows whose chunk_hash no longer appears in
// chunks, per spec §3: "Orphan sweep removes embeddings whose chunk no
// longer exists." Run on startup and after any index pass.
func (s *Store) OrphanSweep() (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM embeddings
		WHERE chunk_hash NOT IN (SELECT chunk_hash FROM chunks)`)
	if err != nil {
		return 0, cerr.New("store.OrphanSweep", cerr.StoreCorrupt, err)
	}
	return res.RowsAffected()
}

// HealthReport is the result of HealthCheck.
type HealthReport struct {
	OK         bool
	FileCount  int
	ChunkCount int
	WALSizeKB  int64
	Corruption string
}

// HealthCheck reports corruption, entry counts, and WAL size, per spec
// §4.D's "store exposes a health_check()".
func (s *Store) HealthCheck() (HealthReport, error) {
	var report HealthReport

	var integrity string
	if err := s.db.QueryRow(`PRAGMA integrity_check`).Scan(&integrity); err != nil {
		return report, cerr.New("store.HealthCheck", cerr.StoreCorrupt, err)
	}
	report.OK = integrity == "ok"
	report.Corruption = integrity

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&report.FileCount); err != nil {
		return report, cerr.New("store.HealthCheck", cerr.StoreCorrupt, err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&report.ChunkCount); err != nil {
		return report, cerr.New("store.HealthCheck", cerr.StoreCorrupt, err)
	}

	// wal_checkpoint's second column is the number of frames (pages) in
	// the write-ahead log.
	var busy, walFrames, checkpointed, pageSize int64
	_ = s.db.QueryRow(`PRAGMA wal_checkpoint`).Scan(&busy, &walFrames, &checkpointed)
	if err := s.db.QueryRow(`PRAGMA page_size`).Scan(&pageSize); err == nil && walFrames > 0 {
		report.WALSizeKB = (walFrames * pageSize) / 1024
	}

	return report, nil
}

// SearchByPrefix matches chunk names by prefix via the FTS5 secondary
// index, the substring-navigation leg the teacher keeps alongside bleve
// (internal/storage/fts_index.go) — this is a distinct caller from the
// primary §4.G lexical search leg, which uses bleve directly over the
// chunk corpus instead.
func (s *Store) SearchByPrefix(prefix string, limit int) ([]ChunkRecord, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.chunk_hash, c.kind, c.name, c.signature, c.documentation,
			c.start_line, c.end_line, c.start_byte, c.end_byte, c.language, c.context_json, c.content
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.chunk_id
		WHERE chunks_fts.name MATCH ?
		LIMIT ?`, prefix+"*", limit)
	if err != nil {
		return nil, cerr.New("store.SearchByPrefix", cerr.StoreCorrupt, err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// ChunkEntry is a chunk joined with its owning file's path, the shape the
// lexical search leg needs to build its index (spec §4.G) and filter by
// directory/language.
type ChunkEntry struct {
	ChunkRecord
	FilePath string
}

// AllChunks returns every chunk currently stored, joined to its file path,
// for bulk (re)population of an external lexical index.
func (s *Store) AllChunks() ([]ChunkEntry, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.chunk_hash, c.kind, c.name, c.signature, c.documentation,
			c.start_line, c.end_line, c.start_byte, c.end_byte, c.language, c.context_json, c.content,
			f.path
		FROM chunks c
		JOIN files f ON f.id = c.file_id`)
	if err != nil {
		return nil, cerr.New("store.AllChunks", cerr.StoreCorrupt, err)
	}
	defer rows.Close()

	var out []ChunkEntry
	for rows.Next() {
		var e ChunkEntry
		if err := rows.Scan(
			&e.ID, &e.ChunkHash, &e.Kind, &e.Name, &e.Signature, &e.Documentation,
			&e.StartLine, &e.EndLine, &e.StartByte, &e.EndByte, &e.Language, &e.ContextJSON, &e.Content,
			&e.FilePath,
		); err != nil {
			return nil, cerr.New("store.AllChunks", cerr.StoreCorrupt, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ChunkByHash looks up a single chunk (joined to its file's path) by
// content hash, the lookup the hybrid search engine (§4.G) needs to fill
// in display fields for vector-only hits the lexical leg never touched.
func (s *Store) ChunkByHash(hash string) (ChunkEntry, bool, error) {
	row := s.db.QueryRow(`
		SELECT c.id, c.chunk_hash, c.kind, c.name, c.signature, c.documentation,
			c.start_line, c.end_line, c.start_byte, c.end_byte, c.language, c.context_json, c.content,
			f.path
		FROM chunks c
		JOIN files f ON f.id = c.file_id
		WHERE c.chunk_hash = ?`, hash)

	var e ChunkEntry
	err := row.Scan(
		&e.ID, &e.ChunkHash, &e.Kind, &e.Name, &e.Signature, &e.Documentation,
		&e.StartLine, &e.EndLine, &e.StartByte, &e.EndByte, &e.Language, &e.ContextJSON, &e.Content,
		&e.FilePath,
	)
	if err == sql.ErrNoRows {
		return ChunkEntry{}, false, nil
	}
	if err != nil {
		return ChunkEntry{}, false, cerr.New("store.ChunkByHash", cerr.StoreCorrupt, err)
	}
	return e, true, nil
}

func scanChunks(rows *sql.Rows) ([]ChunkRecord, error) {
	var out []ChunkRecord
	for rows.Next() {
		var c ChunkRecord
		if err := rows.Scan(
			&c.ID, &c.ChunkHash, &c.Kind, &c.Name, &c.Signature, &c.Documentation,
			&c.StartLine, &c.EndLine, &c.StartByte, &c.EndByte, &c.Language, &c.ContextJSON, &c.Content,
		); err != nil {
			return nil, cerr.New("store.scanChunks", cerr.StoreCorrupt, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
