package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/codeindex-dev/codeindex/internal/cerr"
	"github.com/codeindex-dev/codeindex/internal/store"
)

// ChangeSet is the result of comparing disk state to the store, the
// shape spec §4.H's refresh_index/refresh_files operations act on.
// Generalizes the teacher's ChangeDetector (internal/indexer/change_detector.go)
// from an mtime-then-hash two-step to a direct content-hash comparison,
// since the store records indexing time rather than source file mtime.
type ChangeSet struct {
	Added     []string
	Modified  []string
	Deleted   []string
	Unchanged []string
}

// detectChanges compares the files named by relPaths (or, if relPaths is
// empty, every file the discoverer finds) against the store's recorded
// content hashes. When scoped (relPaths non-empty, spec's refresh_files),
// only supplied paths that are stored but no longer on disk are reported
// deleted; files outside that set are never inferred deleted.
func detectChanges(ctx context.Context, rootDir string, s *store.Store, ig *discovery, relPaths []string) (*ChangeSet, error) {
	scoped := len(relPaths) > 0

	var err error
	if !scoped {
		relPaths, err = ig.files()
		if err != nil {
			return nil, err
		}
	}

	dbFiles, err := s.AllFiles()
	if err != nil {
		return nil, err
	}
	dbByPath := make(map[string]store.FileRecord, len(dbFiles))
	for _, f := range dbFiles {
		dbByPath[f.Path] = f
	}

	changes := &ChangeSet{}
	for _, relPath := range relPaths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		absPath := filepath.Join(rootDir, relPath)
		data, readErr := os.ReadFile(absPath)
		if readErr != nil {
			if os.IsNotExist(readErr) {
				if _, stored := dbByPath[relPath]; scoped && stored {
					changes.Deleted = append(changes.Deleted, relPath)
				}
				continue
			}
			return nil, cerr.New("indexer.detectChanges", cerr.TransientIO, readErr)
		}

		diskHash := contentHash(data)
		dbFile, existsInDB := dbByPath[relPath]
		delete(dbByPath, relPath)

		switch {
		case !existsInDB:
			changes.Added = append(changes.Added, relPath)
		case dbFile.ContentHash == diskHash:
			changes.Unchanged = append(changes.Unchanged, relPath)
		default:
			changes.Modified = append(changes.Modified, relPath)
		}
	}

	if !scoped {
		for path := range dbByPath {
			changes.Deleted = append(changes.Deleted, path)
		}
	}

	return changes, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
