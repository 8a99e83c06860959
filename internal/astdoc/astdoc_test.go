package astdoc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeindex-dev/codeindex/internal/extractor"
)

func TestStore_WriteThenRead(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	facts := &extractor.FileFacts{FilePath: "a.ts", Language: "typescript", Functions: map[string]extractor.Symbol{
		"fetchUser": {Name: "fetchUser", Kind: extractor.KindFunction},
	}}
	require.NoError(t, s.Write("a.ts", facts))

	got, found, err := s.Read("a.ts")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "typescript", got.Language)
	assert.Contains(t, got.Functions, "fetchUser")
}

func TestStore_ReadMissingReturnsNotFound(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, found, err := s.Read("nope.ts")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_WriteReplacesPriorDocument(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Write("a.ts", &extractor.FileFacts{FilePath: "a.ts", Language: "typescript"}))
	require.NoError(t, s.Write("a.ts", &extractor.FileFacts{FilePath: "a.ts", Language: "javascript"}))

	got, found, err := s.Read("a.ts")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "javascript", got.Language)
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Write("a.ts", &extractor.FileFacts{FilePath: "a.ts"}))
	require.NoError(t, s.Delete("a.ts"))

	_, found, err := s.Read("a.ts")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_AllReturnsEveryDocument(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Write("a.ts", &extractor.FileFacts{FilePath: "a.ts"}))
	require.NoError(t, s.Write("b.py", &extractor.FileFacts{FilePath: "b.py"}))

	all, err := s.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_ConcurrentWritesToSamePathSerialize(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = s.Write("a.ts", &extractor.FileFacts{FilePath: "a.ts", Language: "typescript"})
		}(i)
	}
	wg.Wait()

	_, found, err := s.Read("a.ts")
	require.NoError(t, err)
	assert.True(t, found)
}
