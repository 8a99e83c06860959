package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_BatchesModifiedFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("export const a = 1\n"), 0644))

	w, err := New(root, nil, WithMaxAge(50*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, os.WriteFile(path, []byte("export const a = 2\n"), 0644))

	select {
	case batch := <-w.Batches():
		require.Len(t, batch, 1)
		assert.Equal(t, "a.ts", batch[0].Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
	}
}

func TestWatcher_IgnoresMatchedPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0755))

	w, err := New(root, nil, WithMaxAge(50*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "dep.js"), []byte("x"), 0644))

	select {
	case batch := <-w.Batches():
		t.Fatalf("expected no batch for ignored path, got %v", batch)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_StatsReportReceivedAndProcessed(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	w, err := New(root, nil, WithMaxAge(50*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, os.WriteFile(path, []byte("y"), 0644))
	<-w.Batches()

	stats := w.Stats()
	assert.GreaterOrEqual(t, stats.EventsProcessed, int64(1))
	assert.GreaterOrEqual(t, stats.BatchesFlushed, int64(1))
}
