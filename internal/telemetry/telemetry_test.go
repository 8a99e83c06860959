package telemetry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeindex-dev/codeindex/internal/embedding"
	"github.com/codeindex-dev/codeindex/internal/search"
)

func TestRecorder_WritesSearchPerformanceAndAggregates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search_perf.jsonl")
	sink, err := OpenSink(path)
	require.NoError(t, err)

	rec := NewRecorder(sink, nil)
	rec.RecordSearchPerformance(search.PerformanceEntry{TotalTimeMs: 10, FallbackMode: search.FallbackNone})
	rec.RecordSearchPerformance(search.PerformanceEntry{TotalTimeMs: 20, FallbackMode: search.FallbackLexical})
	rec.RecordSearchPerformance(search.PerformanceEntry{TotalTimeMs: 30, SLAViolation: true, FallbackMode: search.FallbackVector})
	require.NoError(t, sink.Close())

	summary, err := SummarizeSearchPerformance(path)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Count)
	assert.InDelta(t, 1.0/3, summary.SLAViolationRate, 1e-9)
	assert.InDelta(t, 1.0/3, summary.LexicalOnlyRate, 1e-9)
	assert.InDelta(t, 1.0/3, summary.VectorOnlyRate, 1e-9)
	assert.InDelta(t, 1.0/3, summary.HybridRate, 1e-9)
	assert.Equal(t, 30.0, summary.P99TotalMs)
}

func TestRecorder_WritesFallbackEventsAndAggregates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallbacks.jsonl")
	sink, err := OpenSink(path)
	require.NoError(t, err)

	rec := NewRecorder(nil, sink)
	rec.RecordFallback(embedding.FallbackEvent{Action: embedding.ActionReduceBatch, Success: true})
	rec.RecordFallback(embedding.FallbackEvent{Action: embedding.ActionSwitchDevice, Success: false})
	require.NoError(t, sink.Close())

	summary, err := SummarizeFallbacks(path)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count)
	assert.InDelta(t, 0.5, summary.SuccessRate, 1e-9)
	assert.Equal(t, 1, summary.ByAction["reduce_batch"])
}

func TestSummarizeSearchPerformance_MissingFileIsZeroValue(t *testing.T) {
	summary, err := SummarizeSearchPerformance(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Count)
}
