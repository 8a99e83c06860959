package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatternStore_DefaultPatternsMatchCommonDirs(t *testing.T) {
	ps := NewPatternStore(DefaultIgnorePatterns)

	assert.True(t, ps.Match(".git/HEAD"))
	assert.True(t, ps.Match("node_modules/foo/index.js"))
	assert.True(t, ps.Match("dist/bundle.js"))
	assert.False(t, ps.Match("src/index.ts"))
}

func TestPatternStore_DirectoryGlobMatchesNestedPath(t *testing.T) {
	ps := NewPatternStore([]IgnorePattern{
		{Glob: "vendor/**", Priority: PriorityDefault},
	})
	assert.True(t, ps.Match("vendor/lib/a.go"))
}

func TestPatternStore_SetPatternsClearsCache(t *testing.T) {
	ps := NewPatternStore([]IgnorePattern{{Glob: "build/**", Priority: PriorityDefault}})
	assert.True(t, ps.Match("build/out.js"))

	ps.SetPatterns([]IgnorePattern{{Glob: "dist/**", Priority: PriorityDefault}})
	assert.False(t, ps.Match("build/out.js"))
	assert.True(t, ps.Match("dist/out.js"))
}
