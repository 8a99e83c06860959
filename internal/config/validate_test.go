package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeindex-dev/codeindex/internal/embedding"
)

func TestValidate_RejectsEmptyModel(t *testing.T) {
	cfg := Default()
	cfg.Profile.Model = ""
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyModel)
}

func TestValidate_RejectsNonPositiveDimensions(t *testing.T) {
	cfg := Default()
	cfg.Profile.Dimensions = 0
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestValidate_RejectsDuplicateCustomProfileNames(t *testing.T) {
	cfg := Default()
	cfg.CustomProfiles = []embedding.Profile{
		{Name: "dup", Model: "m", Dimensions: 384, BatchSize: 8},
		{Name: "dup", Model: "m2", Dimensions: 384, BatchSize: 8},
	}
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateProfile)
}

func TestValidate_AcceptsWellFormedCustomProfile(t *testing.T) {
	cfg := Default()
	cfg.CustomProfiles = []embedding.Profile{
		{Name: "custom-a", Model: "m", Dimensions: 384, BatchSize: 8},
	}
	assert.NoError(t, Validate(cfg))
}
