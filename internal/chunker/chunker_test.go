package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeindex-dev/codeindex/internal/extractor"
	"github.com/codeindex-dev/codeindex/internal/parser"
)

func chunkSource(t *testing.T, lang parser.Language, path, src string) []Chunk {
	t.Helper()
	tree, err := parser.Parse(path, lang, []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	facts, err := extractor.Extract(tree)
	require.NoError(t, err)
	chunks, _ := Chunk(tree, facts, "pkg")
	return chunks
}

func TestChunk_EmptyFileProducesEmptyList(t *testing.T) {
	t.Parallel()
	chunks := chunkSource(t, parser.LangTypeScript, "empty.ts", "// just a comment\nconst x = 1;\n")
	// a top-level const is a Variable, not a chunkable kind
	assert.Empty(t, chunks)
}

func TestChunk_HashStableAcrossWhitespaceOnlyEdit(t *testing.T) {
	t.Parallel()
	a := chunkSource(t, parser.LangTypeScript, "a.ts", "function add(a: number, b: number): number {\n  return a + b;\n}\n")
	b := chunkSource(t, parser.LangTypeScript, "b.ts", "function add(a: number, b: number): number {\n\n  return   a + b;\n\n}\n")

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].ChunkHash, b[0].ChunkHash)
}

func TestChunk_HashChangesOnCodeEdit(t *testing.T) {
	t.Parallel()
	a := chunkSource(t, parser.LangTypeScript, "a.ts", "function add(a: number, b: number): number {\n  return a + b;\n}\n")
	b := chunkSource(t, parser.LangTypeScript, "b.ts", "function add(a: number, b: number): number {\n  return a - b;\n}\n")

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.NotEqual(t, a[0].ChunkHash, b[0].ChunkHash)
}

func TestChunk_HashChangesOnDocumentationEdit(t *testing.T) {
	t.Parallel()
	a := chunkSource(t, parser.LangTypeScript, "a.ts", "// adds two numbers\nfunction add(a: number, b: number): number {\n  return a + b;\n}\n")
	b := chunkSource(t, parser.LangTypeScript, "b.ts", "// subtracts two numbers\nfunction add(a: number, b: number): number {\n  return a + b;\n}\n")

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.NotEqual(t, a[0].Documentation, b[0].Documentation)
	assert.NotEqual(t, a[0].ChunkHash, b[0].ChunkHash)
}

func TestChunk_ClassWithoutMethodsGetsSingleChunk(t *testing.T) {
	t.Parallel()
	chunks := chunkSource(t, parser.LangTypeScript, "marker.ts", "class Marker {}\n")
	require.Len(t, chunks, 1)
	assert.Equal(t, extractor.KindClass, chunks[0].Kind)
	assert.Equal(t, "Marker", chunks[0].Name)
}

func TestChunk_ClassWithMethodsYieldsOneChunkPerMember(t *testing.T) {
	t.Parallel()
	chunks := chunkSource(t, parser.LangTypeScript, "dog.ts", `class Dog {
	bark(): void {
		console.log("woof");
	}
	fetch(): void {
		console.log("fetch");
	}
}
`)
	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.Equal(t, "Dog", c.Context.ClassName)
	}
}

func TestChunk_PythonClassDocstringBecomesDocumentation(t *testing.T) {
	t.Parallel()
	chunks := chunkSource(t, parser.LangPython, "empty.py", "x = 1\n")
	assert.Empty(t, chunks)

	withClass := chunkSource(t, parser.LangPython, "doc.py", `class Empty:
    """Marker class."""
`)
	require.Len(t, withClass, 1)
	assert.Contains(t, withClass[0].Documentation, "Marker class")
}
