package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetByName_KnownPresets(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"light", "balanced", "performance"} {
		p, err := PresetByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name)
		assert.Greater(t, p.Dimensions, 0)
	}
}

func TestPresetByName_UnknownReturnsError(t *testing.T) {
	t.Parallel()
	_, err := PresetByName("nonexistent")
	assert.Error(t, err)
}

func TestResolveProfile_NoGPUFallsBackToCPU(t *testing.T) {
	t.Parallel()
	p := builtinProfile(PresetBalanced)
	caps := HardwareCapabilities{FreeRAM: 8 << 30}

	resolved := ResolveProfile(p, caps)
	assert.Equal(t, DeviceCPU, resolved.Device)
	assert.Equal(t, QuantInt8, resolved.Quantization)
}

func TestResolveProfile_LowMemoryDownscalesBatch(t *testing.T) {
	t.Parallel()
	p := builtinProfile(PresetPerformance)
	caps := HardwareCapabilities{FreeRAM: 512 << 20}

	resolved := ResolveProfile(p, caps)
	assert.Less(t, resolved.BatchSize, p.BatchSize)
	assert.GreaterOrEqual(t, resolved.BatchSize, 1)
}

func TestResolveProfile_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	p := builtinProfile(PresetLight)
	original := p.BatchSize

	_ = ResolveProfile(p, HardwareCapabilities{FreeRAM: 256 << 20})
	assert.Equal(t, original, p.BatchSize)
}
