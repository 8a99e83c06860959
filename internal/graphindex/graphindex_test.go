package graphindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeindex-dev/codeindex/internal/extractor"
)

func sampleFacts() []*extractor.FileFacts {
	return []*extractor.FileFacts{
		{
			FilePath: "a.ts",
			Functions: map[string]extractor.Symbol{
				"fetchUser": {Name: "fetchUser", Kind: extractor.KindFunction, Span: extractor.Span{StartLine: 1, EndLine: 5}},
			},
			Calls: []extractor.Call{
				{Callee: "validate", Kind: extractor.CallFunction, Span: extractor.Span{StartLine: 2, EndLine: 2}},
			},
		},
		{
			FilePath: "b.ts",
			Functions: map[string]extractor.Symbol{
				"validate": {Name: "validate", Kind: extractor.KindFunction, Span: extractor.Span{StartLine: 1, EndLine: 3}},
			},
			Calls: []extractor.Call{
				{Callee: "assert", Kind: extractor.CallFunction, Span: extractor.Span{StartLine: 2, EndLine: 2}},
			},
		},
	}
}

func TestIndex_CallersOneHop(t *testing.T) {
	t.Parallel()
	idx, err := New()
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Rebuild(sampleFacts()))

	callers, err := idx.Callers("validate", 1)
	require.NoError(t, err)
	assert.Contains(t, callers, "a.ts::fetchUser")
}

func TestIndex_CalleesOneHop(t *testing.T) {
	t.Parallel()
	idx, err := New()
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Rebuild(sampleFacts()))

	callees, err := idx.Callees("a.ts::fetchUser", 1)
	require.NoError(t, err)
	assert.Contains(t, callees, "b.ts::validate")
}

func TestIndex_CalleesTwoHopReachesTransitiveCall(t *testing.T) {
	t.Parallel()
	idx, err := New()
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Rebuild(sampleFacts()))

	callees, err := idx.Callees("a.ts::fetchUser", 2)
	require.NoError(t, err)
	assert.Contains(t, callees, "assert")
}

func TestIndex_NodeLookup(t *testing.T) {
	t.Parallel()
	idx, err := New()
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Rebuild(sampleFacts()))

	n, ok := idx.Node("a.ts::fetchUser")
	require.True(t, ok)
	assert.Equal(t, "fetchUser", n.Name)
}

func TestIndex_RebuildReplacesPriorGraph(t *testing.T) {
	t.Parallel()
	idx, err := New()
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Rebuild(sampleFacts()))
	require.NoError(t, idx.Rebuild(nil))

	_, ok := idx.Node("a.ts::fetchUser")
	assert.False(t, ok)
}
