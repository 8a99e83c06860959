package embedding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStage_WalksChainThenStops(t *testing.T) {
	t.Parallel()
	stage, ok := nextStage(0)
	require.True(t, ok)
	assert.Equal(t, ActionReduceBatch, stage)

	stage, ok = nextStage(1)
	require.True(t, ok)
	assert.Equal(t, ActionSwitchQuantization, stage)

	_, ok = nextStage(MaxFallbackAttempts)
	assert.False(t, ok)
}

func TestApplyStage_ReduceBatchHalves(t *testing.T) {
	t.Parallel()
	p := Profile{BatchSize: 32}
	next, event := applyStage(p, ActionReduceBatch, "oom", time.Now)
	assert.Equal(t, 16, next.BatchSize)
	assert.Equal(t, ActionReduceBatch, event.Action)
	assert.Equal(t, "oom", event.Reason)
}

func TestApplyStage_ReduceBatchNeverGoesBelowOne(t *testing.T) {
	t.Parallel()
	p := Profile{BatchSize: 1}
	next, _ := applyStage(p, ActionReduceBatch, "oom", time.Now)
	assert.Equal(t, 1, next.BatchSize)
}

func TestApplyStage_SwitchDeviceGoesToCPU(t *testing.T) {
	t.Parallel()
	p := Profile{Device: DeviceCUDA}
	next, event := applyStage(p, ActionSwitchDevice, "cuda oom", time.Now)
	assert.Equal(t, DeviceCPU, next.Device)
	assert.Equal(t, "cuda", event.From)
	assert.Equal(t, "cpu", event.To)
}

func TestApplyStage_SwitchModelPicksSmaller(t *testing.T) {
	t.Parallel()
	p := Profile{Model: "bge-large-en-v1.5"}
	next, _ := applyStage(p, ActionSwitchModel, "repeated failure", time.Now)
	assert.Equal(t, "bge-base-en-v1.5", next.Model)
}
