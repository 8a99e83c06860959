package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/codeindex-dev/codeindex/internal/cerr"
	"github.com/codeindex-dev/codeindex/internal/embedcache"
)

// BatchProgress reports embedding progress for real-time feedback, same
// shape as the teacher's embed.BatchProgress.
type BatchProgress struct {
	BatchIndex      int
	TotalBatches    int
	ProcessedChunks int
	TotalChunks     int
}

// TextRequest is one text to embed, keyed by a content hash the caller
// computes (normally the chunk hash) so results can be cached.
type TextRequest struct {
	ContentHash string
	Text        string
}

// Engine is the public embedding operation surface spec §4.E names:
// initialize, embed_texts, embed_files (via repeated embed_texts calls
// upstream), switch_profile, clear_cache, get_fallback_history, close.
type Engine struct {
	mu      sync.Mutex
	profile Profile
	caps    HardwareCapabilities
	cache   *embedcache.Cache
	sidecar *Sidecar
	breaker *Breaker

	history []FallbackEvent
}

// NewEngine constructs an engine bound to a persistent cache. Initialize
// must be called before Embed.
func NewEngine(cache *embedcache.Cache) *Engine {
	return &Engine{
		cache:   cache,
		breaker: NewBreaker(),
	}
}

// Initialize detects hardware, resolves the requested preset (or profile
// override) against it, and starts the sidecar.
func (e *Engine) Initialize(ctx context.Context, preset Preset, override *Profile) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := builtinProfile(preset)
	if override != nil {
		base = *override
	}
	e.caps = DetectHardware()
	e.profile = ResolveProfile(base, e.caps)

	sidecar, err := NewSidecar(e.profile)
	if err != nil {
		return err
	}
	if err := sidecar.Start(ctx); err != nil {
		return err
	}
	e.sidecar = sidecar
	return nil
}

// SwitchProfile tears down the current sidecar and starts a new one on
// profile, invalidating cached vectors whose dimensionality no longer
// matches.
func (e *Engine) SwitchProfile(ctx context.Context, preset Preset) error {
	e.mu.Lock()
	prevDims := e.profile.Dimensions
	e.mu.Unlock()

	if e.sidecar != nil {
		_ = e.sidecar.Close()
	}

	if err := e.Initialize(ctx, preset, nil); err != nil {
		return err
	}

	e.mu.Lock()
	newDims := e.profile.Dimensions
	e.mu.Unlock()

	if newDims != prevDims {
		if err := e.cache.InvalidateByDimensions(prevDims); err != nil {
			return err
		}
	}
	return nil
}

// EmbedTexts embeds a set of (contentHash, text) requests, serving cache
// hits without touching the sidecar and batching the remainder in
// length-sorted order to keep batches evenly sized, then restoring the
// caller's original order. Progress, when progressCh is non-nil, mirrors
// the teacher's EmbedWithProgress reporting shape.
func (e *Engine) EmbedTexts(ctx context.Context, reqs []TextRequest, mode EmbedMode, progressCh chan<- BatchProgress) ([]Result, Summary, error) {
	results := make([]Result, len(reqs))
	summary := Summary{Requested: len(reqs)}
	if len(reqs) == 0 {
		return results, summary, nil
	}

	e.mu.Lock()
	profile := e.profile
	modelID, modelVersion, dims := profile.Model, profile.ModelVersion, profile.Dimensions
	e.mu.Unlock()

	var pending []int
	for i, r := range reqs {
		vec, ok, err := e.cache.Get(ctx, r.ContentHash, modelID, modelVersion, dims)
		if err != nil {
			return nil, summary, err
		}
		if ok {
			results[i] = Result{Vector: vec, FromCache: true}
			summary.Cached++
			continue
		}
		pending = append(pending, i)
	}

	if len(pending) == 0 {
		return results, summary, nil
	}

	if !memoryHeadroomOK(e.caps) {
		return nil, summary, cerr.New("embedding.Engine.EmbedTexts", cerr.SLAViolation, fmt.Errorf("insufficient free memory for inference"))
	}

	// Sort pending indices by text length so batches are evenly sized,
	// then restore original order before returning.
	sort.Slice(pending, func(a, b int) bool {
		return len(reqs[pending[a]].Text) < len(reqs[pending[b]].Text)
	})

	batchSize := profile.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	numBatches := (len(pending) + batchSize - 1) / batchSize
	processed := 0

	for b := 0; b < numBatches; b++ {
		select {
		case <-ctx.Done():
			return nil, summary, ctx.Err()
		default:
		}

		start := b * batchSize
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batchIdxs := pending[start:end]

		vectors, fallbacks, err := e.embedBatchWithFallback(ctx, reqs, batchIdxs, mode)
		summary.Fallbacks = append(summary.Fallbacks, fallbacks...)
		if err != nil {
			for _, idx := range batchIdxs {
				results[idx] = Result{Err: err}
				summary.Failed++
			}
			processed += len(batchIdxs)
			if progressCh != nil {
				progressCh <- BatchProgress{BatchIndex: b + 1, TotalBatches: numBatches, ProcessedChunks: processed, TotalChunks: len(pending)}
			}
			continue
		}

		for i, idx := range batchIdxs {
			results[idx] = Result{Vector: vectors[i]}
			summary.Generated++
			if err := e.cache.Set(ctx, reqs[idx].ContentHash, modelID, modelVersion, dims, vectors[i]); err != nil {
				return nil, summary, err
			}
		}

		processed += len(batchIdxs)
		if progressCh != nil {
			progressCh <- BatchProgress{BatchIndex: b + 1, TotalBatches: numBatches, ProcessedChunks: processed, TotalChunks: len(pending)}
		}
	}

	return results, summary, nil
}

// EmbedQuery embeds a single piece of free text in query mode, the shape
// the hybrid search vector leg (§4.G) needs. It is a thin wrapper over
// EmbedTexts keyed by the text's own content hash, so repeated identical
// queries hit the cache.
func (e *Engine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	hash := hex.EncodeToString(sum[:])

	results, _, err := e.EmbedTexts(ctx, []TextRequest{{ContentHash: hash, Text: text}}, ModeQuery, nil)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 || results[0].Err != nil {
		if len(results) > 0 {
			return nil, results[0].Err
		}
		return nil, fmt.Errorf("embedding: no result for query")
	}
	return results[0].Vector, nil
}

// embedBatchWithFallback attempts one batch against the sidecar, walking
// the fallback chain on failure up to MaxFallbackAttempts stages. The
// circuit breaker short-circuits to a cache-only failure when open.
func (e *Engine) embedBatchWithFallback(ctx context.Context, reqs []TextRequest, idxs []int, mode EmbedMode) ([][]float32, []FallbackEvent, error) {
	texts := make([]string, len(idxs))
	for i, idx := range idxs {
		texts[i] = reqs[idx].Text
	}

	var events []FallbackEvent
	attempt := 0

	for {
		now := time.Now()
		if !e.breaker.Allow(now) {
			return nil, events, cerr.New("embedding.embedBatchWithFallback", cerr.EmbeddingFailure, fmt.Errorf("circuit breaker open"))
		}

		vectors, err := e.sidecar.Embed(ctx, texts, mode)
		if err == nil {
			e.breaker.RecordSuccess(time.Now())
			return vectors, events, nil
		}
		e.breaker.RecordFailure(time.Now())

		stage, ok := nextStage(attempt)
		if !ok {
			return nil, events, err
		}

		e.mu.Lock()
		newProfile, event := applyStage(e.profile, stage, err.Error(), time.Now)
		e.profile = newProfile
		e.mu.Unlock()

		if restartErr := e.restartSidecar(ctx, newProfile); restartErr != nil {
			event.Success = false
			events = append(events, event)
			return nil, events, err
		}
		event.Success = true
		events = append(events, event)
		e.mu.Lock()
		e.history = append(e.history, event)
		e.mu.Unlock()

		attempt++
	}
}

func (e *Engine) restartSidecar(ctx context.Context, profile Profile) error {
	if e.sidecar != nil {
		_ = e.sidecar.Close()
	}
	sidecar, err := NewSidecar(profile)
	if err != nil {
		return err
	}
	if err := sidecar.Start(ctx); err != nil {
		return err
	}
	e.sidecar = sidecar
	return nil
}

// GetFallbackHistory returns every fallback event recorded since the
// engine was created, oldest first.
func (e *Engine) GetFallbackHistory() []FallbackEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]FallbackEvent, len(e.history))
	copy(out, e.history)
	return out
}

// ClearCache drops every cached vector.
func (e *Engine) ClearCache() error {
	return e.cache.Clear()
}

// Profile returns the currently active embedding profile, the
// (model, model_version, dimensions) triple callers need to key
// per-model embedding rows (§4.D/§4.H).
func (e *Engine) Profile() Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile
}

// Close stops the sidecar process.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sidecar == nil {
		return nil
	}
	return e.sidecar.Close()
}

// memoryHeadroomOK reports whether there is enough free memory to start
// an inference batch, per spec §4.E's pre-inference memory-pressure
// check. Platforms where FreeRAM could not be detected are assumed OK.
func memoryHeadroomOK(caps HardwareCapabilities) bool {
	if caps.FreeRAM <= 0 {
		return true
	}
	const minHeadroom = int64(256) << 20 // 256MiB
	return caps.FreeRAM > minHeadroom
}
