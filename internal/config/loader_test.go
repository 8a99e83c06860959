package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_LoadWithoutFileReturnsDefaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, cfg.Version)
	assert.False(t, Exists(root))
}

func TestLoader_SaveThenLoadRoundTrips(t *testing.T) {
	root := t.TempDir()
	loader := NewLoader(root)

	cfg := Default()
	cfg.Profile.Name = "performance"
	cfg.Profile.Model = "BAAI/bge-small-en-v1.5"
	require.NoError(t, loader.Save(cfg))

	assert.True(t, Exists(root))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "performance", loaded.Profile.Name)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestLoader_SaveRejectsInvalidConfig(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Profile.Dimensions = 0

	err := NewLoader(root).Save(cfg)
	require.Error(t, err)
}

func TestLoader_SaveWritesAtomically(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, NewLoader(root).Save(Default()))

	entries, err := os.ReadDir(filepath.Join(root, Dir))
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, FileName)
	assert.NotContains(t, names, FileName+".tmp")
}
