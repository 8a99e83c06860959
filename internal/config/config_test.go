package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeindex-dev/codeindex/internal/embedding"
)

func TestDefault_ReturnsValidConfig(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, SchemaVersion, cfg.Version)
	assert.Equal(t, string(embedding.PresetBalanced), cfg.Profile.Name)
}

func TestConfig_UpsertCustomProfile_AddsThenReplaces(t *testing.T) {
	cfg := Default()
	cfg.UpsertCustomProfile(embedding.Profile{Name: "custom-a", Model: "m", Dimensions: 384, BatchSize: 8})
	require.Len(t, cfg.CustomProfiles, 1)

	cfg.UpsertCustomProfile(embedding.Profile{Name: "custom-a", Model: "m2", Dimensions: 512, BatchSize: 16})
	require.Len(t, cfg.CustomProfiles, 1)
	assert.Equal(t, "m2", cfg.CustomProfiles[0].Model)
}

func TestConfig_FindCustomProfile(t *testing.T) {
	cfg := Default()
	cfg.UpsertCustomProfile(embedding.Profile{Name: "custom-a", Model: "m", Dimensions: 384, BatchSize: 8})

	p, ok := cfg.FindCustomProfile("custom-a")
	require.True(t, ok)
	assert.Equal(t, "m", p.Model)

	_, ok = cfg.FindCustomProfile("missing")
	assert.False(t, ok)
}

func TestConfig_DeleteCustomProfile(t *testing.T) {
	cfg := Default()
	cfg.UpsertCustomProfile(embedding.Profile{Name: "custom-a", Model: "m", Dimensions: 384, BatchSize: 8})

	assert.True(t, cfg.DeleteCustomProfile("custom-a"))
	assert.Empty(t, cfg.CustomProfiles)
	assert.False(t, cfg.DeleteCustomProfile("custom-a"))
}
