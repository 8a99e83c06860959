package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeindex-dev/codeindex/internal/store"
)

func openTestStoreWithChunk(t *testing.T) *store.Store {
	t.Helper()
	store.InitVectorExtension()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.WriteFile(
		store.FileRecord{ID: "f1", Path: "auth/login.ts", ContentHash: "h1", Language: "typescript", LastIndexedAt: time.Now()},
		[]store.ChunkRecord{{
			ID: "c1", ChunkHash: "ch1", Kind: "function", Name: "calculateTotal",
			Signature: "function calculateTotal(items)", Content: "function calculateTotal(items) { return 0 }",
			StartLine: 1, EndLine: 3, Language: "typescript",
		}},
		nil, nil,
	))
	return s
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

type fakeVectorStore struct {
	matches []store.VectorMatch
	err     error
}

func (f *fakeVectorStore) QueryVectorSimilarity(modelID, modelVersion string, dimensions int, query []float32, limit int) ([]store.VectorMatch, error) {
	return f.matches, f.err
}

type fakeRecorder struct {
	entries []PerformanceEntry
}

func (f *fakeRecorder) RecordSearchPerformance(e PerformanceEntry) {
	f.entries = append(f.entries, e)
}

func TestEngine_BothLegsSucceedFusesScores(t *testing.T) {
	t.Parallel()
	s := openTestStoreWithChunk(t)
	lex, err := NewLexicalIndex(context.Background(), s)
	require.NoError(t, err)
	defer lex.Close()

	vecs := &fakeVectorStore{matches: []store.VectorMatch{{ChunkHash: "ch1", Distance: 0.1}}}
	emb := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	rec := &fakeRecorder{}

	eng := NewEngine(lex, vecs, emb, s, "model1", "v1", 2, rec)
	resp, err := eng.Search(context.Background(), Query{Text: "calculateTotal", Limit: 10})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "ch1", resp.Results[0].ChunkHash)
	assert.Equal(t, FallbackNone, resp.FallbackMode)
	require.Len(t, rec.entries, 1)
}

func TestEngine_VectorLegFailsFallsBackToLexical(t *testing.T) {
	t.Parallel()
	s := openTestStoreWithChunk(t)
	lex, err := NewLexicalIndex(context.Background(), s)
	require.NoError(t, err)
	defer lex.Close()

	emb := &fakeEmbedder{err: errors.New("sidecar down")}
	rec := &fakeRecorder{}

	eng := NewEngine(lex, &fakeVectorStore{}, emb, s, "model1", "v1", 2, rec)
	resp, err := eng.Search(context.Background(), Query{Text: "calculateTotal", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, FallbackVector, resp.FallbackMode)
	require.Len(t, resp.Results, 1)
}

func TestEngine_VectorLegAndStoreFailFallsBackToLexical(t *testing.T) {
	t.Parallel()
	s := openTestStoreWithChunk(t)
	lex, err := NewLexicalIndex(context.Background(), s)
	require.NoError(t, err)
	defer lex.Close()

	// An empty query string still matches in bleve's query-string parser in
	// some configurations; force a lexical failure path is hard to trigger
	// without mocking bleve, so this exercises the vector-only failure case
	// instead and confirms fallback_mode reflects it.
	emb := &fakeEmbedder{err: errors.New("down")}
	vecs := &fakeVectorStore{err: errors.New("down")}
	rec := &fakeRecorder{}

	eng := NewEngine(lex, vecs, emb, s, "model1", "v1", 2, rec)
	resp, err := eng.Search(context.Background(), Query{Text: "calculateTotal", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, FallbackVector, resp.FallbackMode)
}

func TestEngine_RespectsLimit(t *testing.T) {
	t.Parallel()
	s := openTestStoreWithChunk(t)
	lex, err := NewLexicalIndex(context.Background(), s)
	require.NoError(t, err)
	defer lex.Close()

	emb := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	vecs := &fakeVectorStore{matches: []store.VectorMatch{{ChunkHash: "ch1", Distance: 0.1}}}
	rec := &fakeRecorder{}

	eng := NewEngine(lex, vecs, emb, s, "model1", "v1", 2, rec)
	resp, err := eng.Search(context.Background(), Query{Text: "calculateTotal", Limit: 0})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
}
