package toolserver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeindex-dev/codeindex/internal/store"
)

func TestExtractPreview_ReturnsWindowAroundSpan(t *testing.T) {
	root := t.TempDir()
	lines := ""
	for i := 1; i <= 20; i++ {
		lines += "line " + string(rune('0'+i%10)) + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte(lines), 0644))

	text, start, end, ok, err := extractPreview(root, "a.ts", 10, 10, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 8, start)
	assert.Equal(t, 12, end)
	assert.NotEmpty(t, text)
}

func TestExtractPreview_MissingFileReportsNotExists(t *testing.T) {
	root := t.TempDir()
	_, _, _, ok, err := extractPreview(root, "missing.ts", 1, 1, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExtractPreview_ContextCappedAtMax(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("x\n"), 0644))

	_, start, end, ok, err := extractPreview(root, "a.ts", 1, 1, 1000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, start)
	assert.Equal(t, 1, end)
}

func TestArgHelpers(t *testing.T) {
	args := map[string]interface{}{
		"name":  "hello",
		"limit": float64(5),
		"paths": []interface{}{"a.ts", "b.ts", 42},
	}

	assert.Equal(t, "hello", stringArg(args, "name"))
	assert.Equal(t, 5, intArg(args, "limit", 1))
	assert.Equal(t, 1, intArg(args, "missing", 1))
	assert.Equal(t, []string{"a.ts", "b.ts"}, stringSliceArg(args, "paths"))
}

func TestWithPreviews_AttachesSourceTextWhenFileExists(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("function a() {}\n"), 0644))

	matches := []store.SymbolMatch{
		{FilePath: "a.ts", Name: "a", Kind: "function", StartLine: 1, EndLine: 1, Signature: "a()"},
	}
	out := withPreviews(root, matches)
	require.Len(t, out, 1)
	assert.NotEmpty(t, out[0].Preview)
	assert.Equal(t, "a", out[0].Name)
}

func TestServer_AuthorizeRejectsWrongToken(t *testing.T) {
	s := &Server{authToken: "secret"}
	err := s.authorize(map[string]interface{}{"auth_token": "wrong"})
	require.Error(t, err)
	te, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, CodeUnauthorized, te.Code)
}

func TestServer_AuthorizeAcceptsCorrectToken(t *testing.T) {
	s := &Server{authToken: "secret"}
	err := s.authorize(map[string]interface{}{"auth_token": "secret"})
	assert.NoError(t, err)
}

func TestServer_AuthorizeDisabledWhenTokenEmpty(t *testing.T) {
	s := &Server{authToken: ""}
	err := s.authorize(map[string]interface{}{})
	assert.NoError(t, err)
}
