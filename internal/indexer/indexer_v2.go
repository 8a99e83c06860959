package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/codeindex-dev/codeindex/internal/astdoc"
	"github.com/codeindex-dev/codeindex/internal/cerr"
	"github.com/codeindex-dev/codeindex/internal/chunker"
	"github.com/codeindex-dev/codeindex/internal/embedding"
	"github.com/codeindex-dev/codeindex/internal/extractor"
	"github.com/codeindex-dev/codeindex/internal/graphindex"
	"github.com/codeindex-dev/codeindex/internal/parser"
	"github.com/codeindex-dev/codeindex/internal/search"
	"github.com/codeindex-dev/codeindex/internal/store"
)

// Stats reports the outcome of one indexing pass, generalizing the
// teacher's IndexerV2Stats from a code/docs split to the spec's single
// code-chunk model.
type Stats struct {
	FilesAdded     int
	FilesModified  int
	FilesDeleted   int
	FilesUnchanged int
	FilesProcessed int
	TotalChunks    int
	Duration       time.Duration
}

// EmbedOptions controls the embed() operation spec §4.H names.
type EmbedOptions struct {
	Force  bool // re-embed every chunk regardless of existing rows
	DryRun bool // report counts without writing vectors
}

// EmbedStats reports the outcome of an embed() pass.
type EmbedStats struct {
	ChunksEmbedded int
	ChunksSkipped  int
	ChunksFailed   int
	OrphansSwept   int64
}

// Indexer orchestrates the full pipeline: discover → parse → extract →
// chunk → persist → embed → graph-update, generalizing the teacher's
// IndexerV2 (internal/indexer/indexer_v2.go) from its Go-call-graph
// change-detect/process/graph-update ordering to the spec's four named
// operations over the TypeScript/JavaScript/Python pipeline.
type Indexer struct {
	rootDir  string
	ignore   []string
	store    *store.Store
	astdoc   *astdoc.Store
	graph    *graphindex.Index
	embedder *embedding.Engine
	lexical  *search.LexicalIndex
	progress ProgressReporter
}

// New builds an Indexer bound to one project's collaborators. lexical may
// be nil if the caller does not need the lexical index kept live across
// writes (e.g. a one-shot CLI index pass that rebuilds it afterward).
func New(rootDir string, ignorePatterns []string, s *store.Store, ad *astdoc.Store, g *graphindex.Index, embedder *embedding.Engine, lexical *search.LexicalIndex, progress ProgressReporter) *Indexer {
	if progress == nil {
		progress = &NoOpProgressReporter{}
	}
	return &Indexer{
		rootDir:  rootDir,
		ignore:   ignorePatterns,
		store:    s,
		astdoc:   ad,
		graph:    g,
		embedder: embedder,
		lexical:  lexical,
		progress: progress,
	}
}

// FullIndex enumerates every file under the project root, respecting
// ignore patterns, and processes each: parse → extract → chunk → upsert.
func (idx *Indexer) FullIndex(ctx context.Context) (*Stats, error) {
	return idx.index(ctx, nil, true)
}

// RefreshIndex recomputes content hashes for every discovered file,
// skipping files whose hash matches the stored hash, re-indexing the
// rest, and deleting rows for files that have vanished from disk.
func (idx *Indexer) RefreshIndex(ctx context.Context) (*Stats, error) {
	return idx.index(ctx, nil, false)
}

// RefreshFiles is RefreshIndex restricted to the supplied project-relative
// paths; it never infers deletions for files outside that set.
func (idx *Indexer) RefreshFiles(ctx context.Context, paths []string) (*Stats, error) {
	return idx.index(ctx, paths, false)
}

func (idx *Indexer) index(ctx context.Context, hint []string, full bool) (*Stats, error) {
	start := time.Now()
	idx.progress.OnDiscoveryStart()

	disc, err := newDiscovery(idx.rootDir, idx.ignore)
	if err != nil {
		return nil, err
	}

	var changes *ChangeSet
	if full {
		// full_index enumerates every discovered file and (re)processes it
		// unconditionally, regardless of any stored content hash — the
		// brute-force pass spec §4.H names, distinct from refresh_index's
		// hash-comparison skip.
		relPaths, err := disc.files()
		if err != nil {
			return nil, err
		}
		changes = &ChangeSet{Added: relPaths}
	} else {
		changes, err = detectChanges(ctx, idx.rootDir, idx.store, disc, hint)
		if err != nil {
			return nil, cerr.New("indexer.index", cerr.Internal, fmt.Errorf("change detection: %w", err))
		}
	}
	idx.progress.OnDiscoveryComplete(len(changes.Added)+len(changes.Modified)+len(changes.Unchanged), 0)

	stats := &Stats{
		FilesAdded:     len(changes.Added),
		FilesModified:  len(changes.Modified),
		FilesDeleted:   len(changes.Deleted),
		FilesUnchanged: len(changes.Unchanged),
	}

	for _, path := range changes.Deleted {
		if idx.lexical != nil {
			existing, err := idx.store.ChunksForPath(path)
			if err != nil {
				return nil, cerr.New("indexer.index", cerr.Internal, fmt.Errorf("load chunks for %s: %w", path, err))
			}
			for _, e := range existing {
				if err := idx.lexical.Delete(e.ChunkHash); err != nil {
					return nil, cerr.New("indexer.index", cerr.Internal, fmt.Errorf("evict lexical entry for %s: %w", path, err))
				}
			}
		}
		if err := idx.store.DeleteFile(path); err != nil {
			return nil, cerr.New("indexer.index", cerr.Internal, fmt.Errorf("delete %s: %w", path, err))
		}
		if err := idx.astdoc.Delete(path); err != nil {
			return nil, cerr.New("indexer.index", cerr.Internal, fmt.Errorf("delete astdoc %s: %w", path, err))
		}
	}

	toProcess := append(append([]string{}, changes.Added...), changes.Modified...)
	idx.progress.OnFileProcessingStart(len(toProcess))

	for _, relPath := range toProcess {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		chunkCount, err := idx.processFile(ctx, relPath)
		if err != nil {
			return nil, cerr.New("indexer.index", cerr.Internal, fmt.Errorf("process %s: %w", relPath, err))
		}
		stats.TotalChunks += chunkCount
		stats.FilesProcessed++
		idx.progress.OnFileProcessed(relPath)
	}

	if len(changes.Added) > 0 || len(changes.Modified) > 0 || len(changes.Deleted) > 0 {
		if err := idx.rebuildGraph(); err != nil {
			return nil, err
		}
	}

	stats.Duration = time.Since(start)
	idx.progress.OnComplete(stats)
	return stats, nil
}

// processFile parses, extracts, chunks, and atomically persists one file
// to the store and the AST fact store. A file that fails partway through
// leaves the previous state intact: the store write is one transaction
// (internal/store.WriteFile) and the astdoc write is a separate
// temp-then-rename. The astdoc document is written first, so a crash
// between the two can only ever leave astdoc ahead of the store; the store
// then still holds the old content hash, so a subsequent refresh_index
// sees the file as changed and safely repeats both writes.
func (idx *Indexer) processFile(ctx context.Context, relPath string) (int, error) {
	absPath := filepath.Join(idx.rootDir, relPath)
	lang, ok := parser.DetectLanguage(relPath)
	if !ok {
		return 0, nil
	}

	source, err := os.ReadFile(absPath)
	if err != nil {
		return 0, err
	}

	tree, err := parser.Parse(relPath, lang, source)
	if err != nil {
		return 0, err
	}
	defer tree.Close()

	facts, err := extractor.Extract(tree)
	if err != nil {
		return 0, err
	}
	facts.FilePath = relPath

	chunks, _ := chunker.Chunk(tree, facts, filepath.Dir(relPath))

	var priorChunks []store.ChunkEntry
	if idx.lexical != nil {
		priorChunks, err = idx.store.ChunksForPath(relPath)
		if err != nil {
			return 0, err
		}
	}

	fileRecord := store.FileRecord{
		ID:            uuid.NewString(),
		Path:          relPath,
		ContentHash:   contentHash(source),
		Language:      string(lang),
		Size:          int64(len(source)),
		LastIndexedAt: time.Now(),
	}

	chunkRecords := make([]store.ChunkRecord, 0, len(chunks))
	for _, c := range chunks {
		chunkRecords = append(chunkRecords, store.ChunkRecord{
			ID:            uuid.NewString(),
			ChunkHash:     c.ChunkHash,
			Kind:          string(c.Kind),
			Name:          c.Name,
			Signature:     c.Signature,
			Documentation: c.Documentation,
			StartLine:     c.StartLine,
			EndLine:       c.EndLine,
			Language:      c.Language,
			Content:       c.Content,
		})
	}

	symbolRecords := symbolsOf(facts)
	callRecords := callsOf(facts)

	if err := idx.astdoc.Write(relPath, facts); err != nil {
		return 0, err
	}
	if err := idx.store.WriteFile(fileRecord, chunkRecords, symbolRecords, callRecords); err != nil {
		return 0, err
	}

	if idx.lexical != nil {
		fresh := make(map[string]bool, len(chunkRecords))
		for _, e := range entriesOf(relPath, chunkRecords) {
			fresh[e.ChunkHash] = true
			if err := idx.lexical.Upsert(e); err != nil {
				return 0, err
			}
		}
		for _, prior := range priorChunks {
			if !fresh[prior.ChunkHash] {
				if err := idx.lexical.Delete(prior.ChunkHash); err != nil {
					return 0, err
				}
			}
		}
	}

	return len(chunks), nil
}

func entriesOf(filePath string, chunks []store.ChunkRecord) []store.ChunkEntry {
	out := make([]store.ChunkEntry, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, store.ChunkEntry{ChunkRecord: c, FilePath: filePath})
	}
	return out
}

// rebuildGraph rehydrates the in-memory symbol/call graph from every
// persisted AST fact document, the pattern spec §4.L names for startup
// and post-reindex consistency.
func (idx *Indexer) rebuildGraph() error {
	if idx.graph == nil {
		return nil
	}
	all, err := idx.astdoc.All()
	if err != nil {
		return cerr.New("indexer.rebuildGraph", cerr.Internal, err)
	}
	return idx.graph.Rebuild(all)
}

// Embed drives the embedding engine over chunks missing or stale for the
// active model, per spec §4.H's embed(options) operation.
func (idx *Indexer) Embed(ctx context.Context, opts EmbedOptions) (*EmbedStats, error) {
	profile := idx.embedder.Profile()

	missing, err := idx.store.ChunksMissingEmbedding(profile.Model, profile.ModelVersion, profile.Dimensions, opts.Force)
	if err != nil {
		return nil, cerr.New("indexer.Embed", cerr.Internal, err)
	}

	stats := &EmbedStats{}
	if opts.DryRun {
		stats.ChunksSkipped = len(missing)
		return stats, nil
	}

	idx.progress.OnEmbeddingStart(len(missing))

	reqs := make([]embedding.TextRequest, len(missing))
	for i, c := range missing {
		reqs[i] = embedding.TextRequest{ContentHash: c.ChunkHash, Text: c.Content}
	}

	progressCh := make(chan embedding.BatchProgress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progressCh {
			idx.progress.OnEmbeddingProgress(p.ProcessedChunks)
		}
	}()

	results, summary, err := idx.embedder.EmbedTexts(ctx, reqs, embedding.ModePassage, progressCh)
	close(progressCh)
	<-done
	if err != nil {
		return nil, cerr.New("indexer.Embed", cerr.EmbeddingFailure, err)
	}

	for i, r := range results {
		if r.Err != nil {
			stats.ChunksFailed++
			continue
		}
		if err := idx.store.UpsertVector(profile.Model, profile.ModelVersion, profile.Dimensions, missing[i].ChunkHash, r.Vector); err != nil {
			return nil, cerr.New("indexer.Embed", cerr.Internal, err)
		}
		stats.ChunksEmbedded++
	}
	stats.ChunksSkipped = summary.Cached

	swept, err := idx.store.OrphanSweep()
	if err != nil {
		return nil, cerr.New("indexer.Embed", cerr.Internal, err)
	}
	stats.OrphansSwept = swept

	return stats, nil
}

func symbolsOf(facts *extractor.FileFacts) []store.SymbolRecord {
	var out []store.SymbolRecord
	add := func(sym extractor.Symbol) {
		out = append(out, store.SymbolRecord{
			ID:        uuid.NewString(),
			Name:      sym.Name,
			Kind:      string(sym.Kind),
			StartLine: sym.Span.StartLine,
			EndLine:   sym.Span.EndLine,
			Signature: sym.Signature,
		})
	}
	for _, s := range facts.Functions {
		add(s)
	}
	for _, s := range facts.Interfaces {
		add(s)
	}
	for _, s := range facts.Types {
		add(s)
	}
	for _, s := range facts.Enums {
		add(s)
	}
	for _, s := range facts.Variables {
		add(s)
	}
	for _, cf := range facts.Classes {
		add(cf.Symbol)
		for _, m := range cf.Methods {
			add(m)
		}
		for _, p := range cf.Properties {
			add(p)
		}
	}
	return out
}

func callsOf(facts *extractor.FileFacts) []store.CallRecord {
	out := make([]store.CallRecord, 0, len(facts.Calls))
	for _, c := range facts.Calls {
		out = append(out, store.CallRecord{
			ID:              uuid.NewString(),
			CallerStartLine: c.Span.StartLine,
			CallerEndLine:   c.Span.EndLine,
			CalleeName:      c.Callee,
			Kind:            string(c.Kind),
			Receiver:        c.Receiver,
			ArgumentCount:   c.ArgumentCount,
		})
	}
	return out
}

// Close releases the astdoc and graph resources the indexer owns the
// lifecycle of when embedded in a longer-lived process (the store and
// embedder are owned by the caller).
func (idx *Indexer) Close() {
	if idx.graph != nil {
		idx.graph.Close()
	}
}
