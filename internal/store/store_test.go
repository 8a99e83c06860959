package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	InitVectorExtension()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_WriteFileAndFindDef(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	err := s.WriteFile(
		FileRecord{ID: "f1", Path: "a.ts", ContentHash: "h1", Language: "typescript", Size: 10, LastIndexedAt: time.Now()},
		[]ChunkRecord{{ID: "c1", ChunkHash: "ch1", Kind: "function", Name: "fetchUser", StartLine: 1, EndLine: 3, Language: "typescript", Content: "function fetchUser() {}"}},
		[]SymbolRecord{{ID: "s1", Name: "fetchUser", Kind: "function", StartLine: 1, EndLine: 3}},
		nil,
	)
	require.NoError(t, err)

	matches, err := s.FindDef("fetchUser")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a.ts", matches[0].FilePath)
}

func TestStore_SymbolsInFileReturnsOrderedByStartLine(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	err := s.WriteFile(
		FileRecord{ID: "f1", Path: "a.ts", ContentHash: "h1", Language: "typescript", LastIndexedAt: time.Now()},
		nil,
		[]SymbolRecord{
			{ID: "s2", Name: "b", Kind: "function", StartLine: 10, EndLine: 12},
			{ID: "s1", Name: "a", Kind: "function", StartLine: 1, EndLine: 3},
		},
		nil,
	)
	require.NoError(t, err)

	matches, err := s.SymbolsInFile("a.ts")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].Name)
	assert.Equal(t, "b", matches[1].Name)
}

func TestStore_WriteFileReplacesPriorContent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	write := func(name string) {
		require.NoError(t, s.WriteFile(
			FileRecord{ID: "f1", Path: "a.ts", ContentHash: "h", Language: "typescript", LastIndexedAt: time.Now()},
			[]ChunkRecord{{ID: "c1", ChunkHash: "ch1", Kind: "function", Name: name, StartLine: 1, EndLine: 1, Language: "typescript"}},
			nil, nil,
		))
	}
	write("first")
	write("second")

	report, err := s.HealthCheck()
	require.NoError(t, err)
	assert.Equal(t, 1, report.ChunkCount)
}

func TestStore_DeleteFileCascades(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	require.NoError(t, s.WriteFile(
		FileRecord{ID: "f1", Path: "a.ts", ContentHash: "h", Language: "typescript", LastIndexedAt: time.Now()},
		[]ChunkRecord{{ID: "c1", ChunkHash: "ch1", Kind: "function", Name: "fn", StartLine: 1, EndLine: 1, Language: "typescript"}},
		nil, nil,
	))
	require.NoError(t, s.DeleteFile("a.ts"))

	report, err := s.HealthCheck()
	require.NoError(t, err)
	assert.Equal(t, 0, report.FileCount)
	assert.Equal(t, 0, report.ChunkCount)
}

func TestStore_OrphanSweepRemovesDanglingEmbeddings(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, err := s.db.Exec(`INSERT INTO embeddings (chunk_hash, model_id, model_version, dimensions, vector) VALUES (?, ?, ?, ?, ?)`,
		"dangling", "m1", "v1", 4, []byte{0, 0, 0, 0})
	require.NoError(t, err)

	removed, err := s.OrphanSweep()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestStore_HealthCheckReportsOK(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	report, err := s.HealthCheck()
	require.NoError(t, err)
	assert.True(t, report.OK)
}
