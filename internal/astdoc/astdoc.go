// Package astdoc is the per-file AST fact persistence layer spec §4.L
// names: one structured fact document per source file, stored under a
// path-derived key, read/written whole-document, with per-key
// serialization for concurrent writers. Grounded on the teacher's
// internal/indexer/daemon/registry.go, which persists a JSON document to
// disk via a temp-file-then-rename write and per-key locking, generalized
// here from one registry file to one file per indexed source path.
package astdoc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/codeindex-dev/codeindex/internal/cerr"
	"github.com/codeindex-dev/codeindex/internal/extractor"
)

// Store persists one extractor.FileFacts document per indexed source
// file under dir, keyed by a hash of the file's project-relative path.
type Store struct {
	dir string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Open ensures dir exists and returns a Store rooted there.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, cerr.New("astdoc.Open", cerr.StoreCorrupt, err)
	}
	return &Store{dir: dir, locks: map[string]*sync.Mutex{}}, nil
}

// keyFor derives the on-disk filename for a project-relative source path.
// Hashing avoids path-separator and length issues that would otherwise
// leak from arbitrary repository layouts into the filesystem.
func keyFor(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:]) + ".json"
}

func (s *Store) pathFor(key string) string {
	return filepath.Join(s.dir, key)
}

func (s *Store) lockFor(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Write persists facts for sourcePath, replacing any prior document for
// that path. Concurrent writers to the same path serialize; writers to
// different paths proceed independently.
func (s *Store) Write(sourcePath string, facts *extractor.FileFacts) error {
	key := keyFor(sourcePath)
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	data, err := json.Marshal(facts)
	if err != nil {
		return cerr.New("astdoc.Write", cerr.Internal, err)
	}

	target := s.pathFor(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return cerr.New("astdoc.Write", cerr.StoreCorrupt, fmt.Errorf("write temp file: %w", err))
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return cerr.New("astdoc.Write", cerr.StoreCorrupt, fmt.Errorf("rename: %w", err))
	}
	return nil
}

// Read loads the persisted facts for sourcePath, returning (nil, false,
// nil) if no document has been written for it yet.
func (s *Store) Read(sourcePath string) (*extractor.FileFacts, bool, error) {
	key := keyFor(sourcePath)
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, cerr.New("astdoc.Read", cerr.StoreCorrupt, err)
	}

	var facts extractor.FileFacts
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, false, cerr.New("astdoc.Read", cerr.StoreCorrupt, fmt.Errorf("unmarshal %s: %w", sourcePath, err))
	}
	return &facts, true, nil
}

// Delete removes the persisted document for sourcePath, if any.
func (s *Store) Delete(sourcePath string) error {
	key := keyFor(sourcePath)
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return cerr.New("astdoc.Delete", cerr.StoreCorrupt, err)
	}
	return nil
}

// All loads every persisted document, used to rehydrate the in-memory
// symbol/call graph at startup (spec §4.L, consumed by internal/graphindex).
func (s *Store) All() ([]*extractor.FileFacts, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, cerr.New("astdoc.All", cerr.StoreCorrupt, err)
	}

	var out []*extractor.FileFacts
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, cerr.New("astdoc.All", cerr.StoreCorrupt, err)
		}
		var facts extractor.FileFacts
		if err := json.Unmarshal(data, &facts); err != nil {
			return nil, cerr.New("astdoc.All", cerr.StoreCorrupt, fmt.Errorf("unmarshal %s: %w", entry.Name(), err))
		}
		out = append(out, &facts)
	}
	return out, nil
}
