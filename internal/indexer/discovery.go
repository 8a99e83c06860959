// Package indexer orchestrates the pipeline spec §4.H names: discover →
// parse → extract → chunk → embed → persist, across the store, embedding
// engine, embedding cache, AST fact store, and graph index. It
// generalizes the teacher's internal/indexer/indexer_v2.go (IndexerV2.Index:
// detect → delete → mtime-correct → process → graph-update) into the
// spec's four named operations, keeping the same atomic-per-file-write,
// cascade-delete, orphan-sweep ordering.
package indexer

import (
	"os"
	"path/filepath"

	"github.com/gobwas/glob"

	"github.com/codeindex-dev/codeindex/internal/cerr"
	"github.com/codeindex-dev/codeindex/internal/parser"
)

// DefaultIgnorePatterns mirrors the teacher's FileDiscovery default ignore
// set (internal/indexer/discovery.go), with the project's own data
// directory added so re-indexing never walks its own store.
var DefaultIgnorePatterns = []string{
	".git/**",
	"node_modules/**",
	".codeindex/**",
	"dist/**",
	"build/**",
	"vendor/**",
	"**/*.min.js",
}

// discovery compiles ignore glob patterns once and discovers parseable
// source files under a root, generalizing the teacher's FileDiscovery
// from separate code/docs glob sets to a single parseable-language test,
// since spec §4.A restricts parsing to TypeScript/JavaScript/Python.
type discovery struct {
	rootDir  string
	ignore   []glob.Glob
}

func newDiscovery(rootDir string, ignorePatterns []string) (*discovery, error) {
	compiled := make([]glob.Glob, 0, len(ignorePatterns))
	for _, pattern := range ignorePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, cerr.New("indexer.newDiscovery", cerr.InputInvalid, err)
		}
		compiled = append(compiled, g)
	}
	return &discovery{rootDir: rootDir, ignore: compiled}, nil
}

// files walks the root and returns the project-relative paths of every
// file parser.DetectLanguage recognizes, skipping anything matched by an
// ignore pattern.
func (d *discovery) files() ([]string, error) {
	var out []string
	err := filepath.Walk(d.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relPath, relErr := filepath.Rel(d.rootDir, path)
		if relErr != nil {
			return relErr
		}
		if relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if d.shouldIgnore(relPath) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.shouldIgnore(relPath) {
			return nil
		}
		if _, ok := parser.DetectLanguage(relPath); !ok {
			return nil
		}
		out = append(out, relPath)
		return nil
	})
	if err != nil {
		return nil, cerr.New("indexer.discovery.files", cerr.TransientIO, err)
	}
	return out, nil
}

func (d *discovery) shouldIgnore(relPath string) bool {
	for _, g := range d.ignore {
		if g.Match(relPath) || g.Match(relPath+"/**") {
			return true
		}
	}
	return false
}
