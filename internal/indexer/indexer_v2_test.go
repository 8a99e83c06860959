package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeindex-dev/codeindex/internal/astdoc"
	"github.com/codeindex-dev/codeindex/internal/graphindex"
	"github.com/codeindex-dev/codeindex/internal/store"
)

func newTestIndexer(t *testing.T, rootDir string) *Indexer {
	t.Helper()
	store.InitVectorExtension()

	s, err := store.Open(filepath.Join(t.TempDir(), "project.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ad, err := astdoc.Open(t.TempDir())
	require.NoError(t, err)

	g, err := graphindex.New()
	require.NoError(t, err)
	t.Cleanup(g.Close)

	return New(rootDir, DefaultIgnorePatterns, s, ad, g, nil, nil, nil)
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestIndexer_FullIndex_ProcessesDiscoveredFiles(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.ts", "export function hello() {\n  return 1\n}\n")
	writeFile(t, root, "node_modules/dep/index.js", "module.exports = {}\n")

	idx := newTestIndexer(t, root)
	stats, err := idx.FullIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesAdded)
	assert.Equal(t, 1, stats.FilesProcessed)
	assert.GreaterOrEqual(t, stats.TotalChunks, 1)
}

func TestIndexer_RefreshIndex_IsIdempotent(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.ts", "export function hello() {\n  return 1\n}\n")

	idx := newTestIndexer(t, root)
	_, err := idx.RefreshIndex(context.Background())
	require.NoError(t, err)

	stats, err := idx.RefreshIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesAdded)
	assert.Equal(t, 0, stats.FilesModified)
	assert.Equal(t, 1, stats.FilesUnchanged)
}

func TestIndexer_RefreshIndex_DetectsModificationAndDeletion(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.ts", "export function hello() {\n  return 1\n}\n")

	idx := newTestIndexer(t, root)
	_, err := idx.RefreshIndex(context.Background())
	require.NoError(t, err)

	writeFile(t, root, "a.ts", "export function hello() {\n  return 2\n}\n")
	stats, err := idx.RefreshIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesModified)

	require.NoError(t, os.Remove(filepath.Join(root, "a.ts")))
	stats, err = idx.RefreshIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesDeleted)
}

func TestIndexer_RefreshFiles_ScopesToSuppliedPaths(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.ts", "export function a() {}\n")
	writeFile(t, root, "b.ts", "export function b() {}\n")

	idx := newTestIndexer(t, root)
	_, err := idx.FullIndex(context.Background())
	require.NoError(t, err)

	writeFile(t, root, "a.ts", "export function a() { return 1 }\n")
	stats, err := idx.RefreshFiles(context.Background(), []string{"a.ts"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesModified)
	assert.Equal(t, 0, stats.FilesDeleted)
}

func TestIndexer_RefreshIndex_EmptyDirectoryIsANoOp(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	idx := newTestIndexer(t, root)
	stats, err := idx.RefreshIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesAdded)
	assert.Equal(t, 0, stats.FilesProcessed)
}
