package main

import (
	"fmt"
	"path/filepath"

	"github.com/codeindex-dev/codeindex/internal/astdoc"
	"github.com/codeindex-dev/codeindex/internal/cerr"
	"github.com/codeindex-dev/codeindex/internal/config"
	"github.com/codeindex-dev/codeindex/internal/embedcache"
	"github.com/codeindex-dev/codeindex/internal/embedding"
	"github.com/codeindex-dev/codeindex/internal/git"
	"github.com/codeindex-dev/codeindex/internal/graphindex"
	"github.com/codeindex-dev/codeindex/internal/indexer"
	"github.com/codeindex-dev/codeindex/internal/store"
)

var gitOps = git.NewOperations()

// app bundles the collaborators every subcommand wires together,
// mirroring the teacher's per-command manual construction (index.go,
// mcp.go) but collected into one constructor so each subcommand doesn't
// repeat the open/close sequence.
type app struct {
	rootDir string
	cfg     *config.Config
	store   *store.Store
	astdoc  *astdoc.Store
	graph   *graphindex.Index
	cache   *embedcache.Cache
	engine  *embedding.Engine
}

// openApp opens the store/astdoc/graph collaborators and loads config.
// withEmbedding also constructs and initializes the embedding engine;
// callers that don't need it (doctor's lightweight checks, metrics) pass
// false to skip the sidecar's subprocess startup cost.
func openApp(rootDir string, withEmbedding bool) (*app, error) {
	if !config.Exists(rootDir) {
		return nil, cerr.New("app.open", cerr.NotInitialized, fmt.Errorf("%s not initialized: run 'codeindex init' first", rootDir))
	}

	cfg, err := config.LoadConfigFromDir(rootDir)
	if err != nil {
		return nil, err
	}

	store.InitVectorExtension()
	s, err := store.Open(filepath.Join(rootDir, config.Dir, "index.db"))
	if err != nil {
		return nil, err
	}

	ad, err := astdoc.Open(filepath.Join(rootDir, config.Dir, "ast"))
	if err != nil {
		s.Close()
		return nil, err
	}

	g, err := graphindex.New()
	if err != nil {
		s.Close()
		return nil, err
	}
	if facts, err := ad.All(); err == nil {
		_ = g.Rebuild(facts)
	}

	a := &app{rootDir: rootDir, cfg: cfg, store: s, astdoc: ad, graph: g}

	if withEmbedding {
		// cache/embeddings.db is a chromem-go persistence directory, not a
		// single database file.
		cache, err := embedcache.Open(filepath.Join(rootDir, config.Dir, "cache", "embeddings.db"))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.cache = cache
		a.engine = embedding.NewEngine(cache)
	}

	return a, nil
}

func (a *app) Close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.graph != nil {
		a.graph.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// newIndexer builds an Indexer bound to a's collaborators. lexical may be
// nil: one-shot CLI passes (index/refresh/embed) don't need the lexical
// index kept live, since the tool server rebuilds it fresh at startup.
func (a *app) newIndexer(progress indexer.ProgressReporter) *indexer.Indexer {
	return indexer.New(a.rootDir, indexer.DefaultIgnorePatterns, a.store, a.astdoc, a.graph, a.engine, nil, progress)
}

// embeddingPreset resolves a stored profile name back to a Preset for
// Initialize's preset argument; the override profile value supplies the
// actual fields, so an unrecognized name (a custom profile) safely falls
// back to "balanced" as the base to override.
func embeddingPreset(name string) embedding.Preset {
	switch embedding.Preset(name) {
	case embedding.PresetLight, embedding.PresetBalanced, embedding.PresetPerformance:
		return embedding.Preset(name)
	default:
		return embedding.PresetBalanced
	}
}

// exitCodeFor maps a cerr.Kind to spec §6's exit codes: 0 healthy
// (unreachable here, errors only reach this path on failure), 1 for
// issues a retry or operator look might fix, 2 for a hard precondition
// failure like a missing .codeindex/.
func exitCodeFor(err error) int {
	switch cerr.KindOf(err) {
	case cerr.NotInitialized, cerr.InputInvalid:
		return ExitPrecondition
	case "":
		return ExitIssues
	default:
		return ExitIssues
	}
}
