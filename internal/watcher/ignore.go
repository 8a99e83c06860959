package watcher

import (
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/maypok86/otter"
)

// Pattern tiers per spec §4.I/§6: defaults always win over a project's own
// gitignore, which in turn wins over per-project config overrides, mirroring
// the teacher's simpler directory skip-list (file_watcher.go's
// addDirectoriesRecursively hardcoding .git/node_modules/.cortex) but
// generalized to an ordered, overridable tier system.
const (
	PriorityDefault   = 1000
	PriorityGitignore = 800
	PriorityConfig    = 500
)

// IgnorePattern is one glob rule at a given precedence tier.
type IgnorePattern struct {
	Glob     string
	Priority int
}

// DefaultIgnorePatterns ship at PriorityDefault and are always present.
var DefaultIgnorePatterns = []IgnorePattern{
	{Glob: ".git/**", Priority: PriorityDefault},
	{Glob: "node_modules/**", Priority: PriorityDefault},
	{Glob: ".codeindex/**", Priority: PriorityDefault},
	{Glob: "dist/**", Priority: PriorityDefault},
	{Glob: "build/**", Priority: PriorityDefault},
	{Glob: "vendor/**", Priority: PriorityDefault},
	{Glob: "**/*.min.js", Priority: PriorityDefault},
}

type compiledPattern struct {
	g        glob.Glob
	priority int
}

// PatternStore holds the full ignore-pattern list sorted by descending
// priority (highest-priority match wins first), with an LRU cache over
// match results so a hot watcher loop doesn't re-evaluate every glob on
// every event for paths it has already classified.
type PatternStore struct {
	mu       sync.RWMutex
	patterns []compiledPattern
	cache    otter.Cache[string, bool]
}

// NewPatternStore compiles patterns and builds the match cache. Invalid
// glob syntax is skipped rather than failing the whole store, since one bad
// user-supplied config pattern should not disable ignore matching entirely.
func NewPatternStore(patterns []IgnorePattern) *PatternStore {
	ps := &PatternStore{}
	cache, err := otter.MustBuilder[string, bool](4096).Build()
	if err == nil {
		ps.cache = cache
	}
	ps.SetPatterns(patterns)
	return ps
}

// SetPatterns replaces the pattern list and clears the match cache, the
// same invalidation spec §5 requires ("updates rebuild the sorted pattern
// list and clear the match cache").
func (ps *PatternStore) SetPatterns(patterns []IgnorePattern) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p.Glob, '/')
		if err != nil {
			continue
		}
		compiled = append(compiled, compiledPattern{g: g, priority: p.Priority})
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].priority > compiled[j].priority
	})

	ps.mu.Lock()
	ps.patterns = compiled
	ps.mu.Unlock()

	if ps.cache != nil {
		ps.cache.Clear()
	}
}

// Match reports whether relPath (forward-slash, project-root-relative)
// should be ignored, trying the cache before falling back to a linear
// walk of the priority-sorted pattern list.
func (ps *PatternStore) Match(relPath string) bool {
	relPath = strings.TrimPrefix(relPath, "/")

	if ps.cache != nil {
		if v, ok := ps.cache.Get(relPath); ok {
			return v
		}
	}

	ps.mu.RLock()
	patterns := ps.patterns
	ps.mu.RUnlock()

	matched := false
	for _, p := range patterns {
		if p.g.Match(relPath) {
			matched = true
			break
		}
	}

	if ps.cache != nil {
		ps.cache.Set(relPath, matched)
	}
	return matched
}
