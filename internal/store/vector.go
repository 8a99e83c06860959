package store

import (
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/codeindex-dev/codeindex/internal/cerr"
)

// InitVectorExtension registers sqlite-vec globally. Must run once before
// opening any database the store will query, mirroring the teacher's
// InitVectorExtension (internal/storage/vector_index.go).
func InitVectorExtension() {
	sqlite_vec.Auto()
}

// vectorTableName derives the vec0 virtual table name for one
// (model_id, model_version, dimensions) triple. Spec §4.D keys embeddings
// by this triple; the teacher has a single chunks_vec table sized for one
// model, so this generalizes CreateVectorIndex to create one table per
// triple on demand instead of once at schema-creation time.
func vectorTableName(modelID, modelVersion string, dimensions int) string {
	return fmt.Sprintf("vec_%s_%s_%d", sanitizeIdent(modelID), sanitizeIdent(modelVersion), dimensions)
}

func sanitizeIdent(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// ensureVectorTable creates the vec0 table for a triple if it doesn't
// already exist, generalizing CreateVectorIndex.
func ensureVectorTable(db *sql.DB, modelID, modelVersion string, dimensions int) (string, error) {
	name := vectorTableName(modelID, modelVersion, dimensions)
	ddl := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(chunk_hash TEXT PRIMARY KEY, embedding float[%d])`,
		name, dimensions,
	)
	if _, err := db.Exec(ddl); err != nil {
		return "", cerr.New("store.ensureVectorTable", cerr.StoreCorrupt, err)
	}
	return name, nil
}

// UpsertVector replaces the stored dense vector for chunkHash in the table
// for (modelID, modelVersion, dimensions). vec0 virtual tables don't support
// INSERT OR REPLACE, so this deletes then inserts, exactly the upsert
// pattern in the teacher's UpdateVectorIndex.
func (s *Store) UpsertVector(modelID, modelVersion string, dimensions int, chunkHash string, vector []float32) error {
	if len(vector) != dimensions {
		return cerr.New("store.UpsertVector", cerr.InputInvalid,
			fmt.Errorf("vector has %d dims, want %d", len(vector), dimensions))
	}
	table, err := ensureVectorTable(s.db, modelID, modelVersion, dimensions)
	if err != nil {
		return err
	}
	embBytes, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return cerr.New("store.UpsertVector", cerr.Internal, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return cerr.New("store.UpsertVector", cerr.TransientIO, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE chunk_hash = ?`, table), chunkHash); err != nil {
		return cerr.New("store.UpsertVector", cerr.StoreCorrupt, err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s (chunk_hash, embedding) VALUES (?, ?)`, table), chunkHash, embBytes); err != nil {
		return cerr.New("store.UpsertVector", cerr.StoreCorrupt, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO embeddings (chunk_hash, model_id, model_version, dimensions, vector) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(chunk_hash, model_id, model_version, dimensions) DO UPDATE SET vector = excluded.vector`,
		chunkHash, modelID, modelVersion, dimensions, embBytes,
	); err != nil {
		return cerr.New("store.UpsertVector", cerr.StoreCorrupt, err)
	}
	return tx.Commit()
}

// VectorMatch is one nearest-neighbor result.
type VectorMatch struct {
	ChunkHash string
	Distance  float64
}

// QueryVectorSimilarity runs cosine-distance KNN against the table for
// (modelID, modelVersion, dimensions), generalizing the teacher's
// QueryVectorSimilarity to be per-model/version/dimension keyed instead of
// hard-wired to a single chunks_vec table.
func (s *Store) QueryVectorSimilarity(modelID, modelVersion string, dimensions int, query []float32, limit int) ([]VectorMatch, error) {
	table := vectorTableName(modelID, modelVersion, dimensions)

	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = ?`, table).Scan(&exists)
	if err != nil {
		return nil, cerr.New("store.QueryVectorSimilarity", cerr.StoreCorrupt, err)
	}
	if exists == 0 {
		return nil, nil
	}

	queryBytes, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, cerr.New("store.QueryVectorSimilarity", cerr.Internal, err)
	}

	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT chunk_hash, vec_distance_cosine(embedding, ?) AS distance FROM %s ORDER BY distance LIMIT ?`, table),
		queryBytes, limit,
	)
	if err != nil {
		return nil, cerr.New("store.QueryVectorSimilarity", cerr.StoreCorrupt, err)
	}
	defer rows.Close()

	var out []VectorMatch
	for rows.Next() {
		var m VectorMatch
		if err := rows.Scan(&m.ChunkHash, &m.Distance); err != nil {
			return nil, cerr.New("store.QueryVectorSimilarity", cerr.StoreCorrupt, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// InvalidateByDimensions deletes every embedding row (and leaves the
// corresponding vec0 tables for GC by their own lifecycle) for a dimension
// count, used when an embedding profile switch changes the active model's
// dimensions per spec §4.E/§4.F.
func (s *Store) InvalidateByDimensions(dimensions int) error {
	_, err := s.db.Exec(`DELETE FROM embeddings WHERE dimensions = ?`, dimensions)
	if err != nil {
		return cerr.New("store.InvalidateByDimensions", cerr.StoreCorrupt, err)
	}
	return nil
}
