package search

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/codeindex-dev/codeindex/internal/store"
)

// DefaultLexicalCandidates and DefaultVectorCandidates are N_lex/N_vec
// from spec §4.G.
const (
	DefaultLexicalCandidates = 50
	DefaultVectorCandidates  = 50
	DefaultSLA               = 300 * time.Millisecond
)

// DefaultDenseWeight and DefaultLexicalWeight are the fusion weights spec §4.G fixes at
// 0.6/0.4 by default; they must sum to 1.0.
const (
	DefaultDenseWeight    = 0.6
	DefaultLexicalWeight  = 0.4
)

// VectorStore is the subset of *store.Store the vector leg needs.
type VectorStore interface {
	QueryVectorSimilarity(modelID, modelVersion string, dimensions int, query []float32, limit int) ([]store.VectorMatch, error)
}

// Embedder is the subset of *embedding.Engine the vector leg needs to
// turn a query string into a vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkLookup resolves a chunk_hash to its display fields, backing fusion
// of vector-only hits (which otherwise carry only a hash and distance).
type ChunkLookup interface {
	ChunkByHash(hash string) (store.ChunkEntry, bool, error)
}

// Engine runs the hybrid lexical+dense pipeline spec §4.G defines.
type Engine struct {
	lexical  *LexicalIndex
	vectors  VectorStore
	embedder Embedder
	lookup   ChunkLookup

	modelID      string
	modelVersion string
	dimensions   int

	sla           time.Duration
	denseWeight   float64
	lexicalWeight float64

	recorder PerformanceRecorder
}

// PerformanceRecorder receives one PerformanceEntry per query, the sink
// spec §4.K names.
type PerformanceRecorder interface {
	RecordSearchPerformance(PerformanceEntry)
}

// NewEngine builds a hybrid search engine. modelID/modelVersion/dimensions
// identify the active embedding profile's vector table.
func NewEngine(lexical *LexicalIndex, vectors VectorStore, embedder Embedder, lookup ChunkLookup, modelID, modelVersion string, dimensions int, recorder PerformanceRecorder) *Engine {
	return &Engine{
		lexical:       lexical,
		vectors:       vectors,
		embedder:      embedder,
		lookup:        lookup,
		modelID:       modelID,
		modelVersion:  modelVersion,
		dimensions:    dimensions,
		sla:           DefaultSLA,
		denseWeight:   DefaultDenseWeight,
		lexicalWeight: DefaultLexicalWeight,
		recorder:      recorder,
	}
}

// SetWeights overrides the fusion weights. Panics if they do not sum to
// 1.0, matching spec §4.G's "must sum to 1.0" invariant.
func (e *Engine) SetWeights(dense, lexical float64) {
	if math.Abs((dense+lexical)-1.0) > 1e-9 {
		panic("search: fusion weights must sum to 1.0")
	}
	e.denseWeight = dense
	e.lexicalWeight = lexical
}

type legResult struct {
	lexHits []lexicalHit
	lexErr  error
	lexMs   float64

	vecHits []store.VectorMatch
	vecErr  error
	vecMs   float64
}

// Search runs both legs concurrently under the SLA deadline, fuses their
// scores, and records a performance entry.
func (e *Engine) Search(ctx context.Context, q Query) (Response, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}

	ctx, cancel := context.WithTimeout(ctx, e.sla)
	defer cancel()

	start := time.Now()
	leg := e.runLegs(ctx, q)

	rankingStart := time.Now()
	results, fallback := e.fuse(q, leg)
	rankingMs := msSince(rankingStart)
	totalMs := msSince(start)

	if leg.lexErr != nil && leg.vecErr != nil {
		entry := PerformanceEntry{
			LexicalTimeMs: leg.lexMs, VectorTimeMs: leg.vecMs, RankingTimeMs: rankingMs, TotalTimeMs: totalMs,
			SLAViolation: totalMs > float64(e.sla.Milliseconds()),
			FallbackMode: FallbackMode("both"),
		}
		e.record(entry)
		return Response{}, leg.vecErr
	}

	if len(results) > q.Limit {
		results = results[:q.Limit]
	}

	entry := PerformanceEntry{
		LexicalTimeMs:     leg.lexMs,
		VectorTimeMs:      leg.vecMs,
		RankingTimeMs:     rankingMs,
		TotalTimeMs:       totalMs,
		LexicalCandidates: len(leg.lexHits),
		VectorCandidates:  len(leg.vecHits),
		UniqueCandidates:  len(results),
		SLAViolation:      totalMs > float64(e.sla.Milliseconds()),
		FallbackMode:      fallback,
	}
	e.record(entry)

	return Response{Results: results, FallbackMode: fallback, Performance: entry}, nil
}

func (e *Engine) runLegs(ctx context.Context, q Query) legResult {
	var leg legResult
	done := make(chan struct{}, 2)

	go func() {
		t0 := time.Now()
		hits, err := e.lexical.search(q.Text, q.Filter, DefaultLexicalCandidates)
		leg.lexHits, leg.lexErr = hits, err
		leg.lexMs = msSince(t0)
		done <- struct{}{}
	}()

	go func() {
		t0 := time.Now()
		vec, err := e.embedder.EmbedQuery(ctx, q.Text)
		if err != nil {
			leg.vecErr = err
			leg.vecMs = msSince(t0)
			done <- struct{}{}
			return
		}
		matches, err := e.vectors.QueryVectorSimilarity(e.modelID, e.modelVersion, e.dimensions, vec, DefaultVectorCandidates)
		leg.vecHits, leg.vecErr = matches, err
		leg.vecMs = msSince(t0)
		done <- struct{}{}
	}()

	timeout := time.After(e.sla)
	remaining := 2
	for remaining > 0 {
		select {
		case <-done:
			remaining--
		case <-timeout:
			if leg.lexHits == nil && leg.lexErr == nil {
				leg.lexErr = context.DeadlineExceeded
			}
			if leg.vecHits == nil && leg.vecErr == nil {
				leg.vecErr = context.DeadlineExceeded
			}
			return leg
		}
	}
	return leg
}

func (e *Engine) fuse(q Query, leg legResult) ([]Result, FallbackMode) {
	lexOK := leg.lexErr == nil
	vecOK := leg.vecErr == nil

	lexScores := normalizeLex(leg.lexHits)
	vecScores := normalizeVec(leg.vecHits)

	type candidate struct {
		hash       string
		lex, vec   float64
		doc        lexicalDoc
		haveDoc    bool
		startByte  int
	}
	byHash := map[string]*candidate{}

	if lexOK {
		for _, h := range leg.lexHits {
			byHash[h.ChunkHash] = &candidate{hash: h.ChunkHash, lex: lexScores[h.ChunkHash], doc: h.Doc, haveDoc: true}
		}
	}
	if vecOK {
		for _, m := range leg.vecHits {
			c, ok := byHash[m.ChunkHash]
			if !ok {
				c = &candidate{hash: m.ChunkHash}
				byHash[m.ChunkHash] = c
			}
			c.vec = vecScores[m.ChunkHash]
		}
	}

	out := make([]Result, 0, len(byHash))
	for hash, c := range byHash {
		if !c.haveDoc && e.lookup != nil {
			if rec, found, err := e.lookup.ChunkByHash(hash); err == nil && found {
				c.doc = lexicalDoc{
					Name: rec.Name, Signature: rec.Signature, Documentation: rec.Documentation,
					Content: rec.Content, Kind: rec.Kind, Language: rec.Language, FilePath: rec.FilePath,
				}
				c.startByte = rec.StartByte
				c.haveDoc = true
			}
		}
		if q.Filter.Language != "" && c.doc.Language != q.Filter.Language {
			continue
		}
		if q.Filter.DirectoryPrefix != "" && !hasDirPrefix(c.doc.FilePath, q.Filter.DirectoryPrefix) {
			continue
		}
		score := e.denseWeight*c.vec + e.lexicalWeight*c.lex
		out = append(out, Result{
			ChunkHash:     hash,
			FilePath:      c.doc.FilePath,
			Kind:          c.doc.Kind,
			Name:          c.doc.Name,
			Signature:     c.doc.Signature,
			Documentation: c.doc.Documentation,
			Language:      c.doc.Language,
			StartByte:     c.startByte,
			Score:         score,
			LexicalScore:  c.lex,
			DenseScore:    c.vec,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].StartByte != out[j].StartByte {
			return out[i].StartByte < out[j].StartByte
		}
		return out[i].ChunkHash < out[j].ChunkHash
	})

	switch {
	case !lexOK && !vecOK:
		return nil, FallbackMode("both")
	case !vecOK:
		return out, FallbackVector
	case !lexOK:
		return out, FallbackLexical
	default:
		return out, FallbackNone
	}
}

func normalizeLex(hits []lexicalHit) map[string]float64 {
	scores := map[string]float64{}
	if len(hits) == 0 {
		return scores
	}
	min, max := hits[0].Score, hits[0].Score
	for _, h := range hits {
		if h.Score < min {
			min = h.Score
		}
		if h.Score > max {
			max = h.Score
		}
	}
	for _, h := range hits {
		scores[h.ChunkHash] = minMaxNormalize(h.Score, min, max)
	}
	return scores
}

func normalizeVec(matches []store.VectorMatch) map[string]float64 {
	scores := map[string]float64{}
	if len(matches) == 0 {
		return scores
	}
	// Distance is cosine distance (lower is better); convert to a
	// similarity before normalizing so higher is better, matching the
	// lexical leg's orientation.
	min, max := matches[0].Distance, matches[0].Distance
	for _, m := range matches {
		if m.Distance < min {
			min = m.Distance
		}
		if m.Distance > max {
			max = m.Distance
		}
	}
	for _, m := range matches {
		similarity := max - m.Distance // inverts so closer = higher
		scores[m.ChunkHash] = minMaxNormalize(similarity, 0, max-min)
	}
	return scores
}

func minMaxNormalize(v, min, max float64) float64 {
	if max-min == 0 {
		return 0
	}
	return (v - min) / (max - min)
}

func (e *Engine) record(entry PerformanceEntry) {
	if e.recorder != nil {
		e.recorder.RecordSearchPerformance(entry)
	}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
