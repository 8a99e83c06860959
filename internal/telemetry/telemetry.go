// Package telemetry persists the two append-only JSONL sinks spec §4.K
// names — embedding fallbacks and search performance — and aggregates them
// into P50/P95/P99 latencies, SLA violation rates, and fallback-mode
// proportions. It generalizes the teacher's inline `[EMBED]`/`[TIMING]`
// log-line discipline (internal/embed/daemon/server.go's
// `log.Printf("[EMBED] Completed in %dms ...")`) from free-text logs into
// structured, queryable JSONL records.
package telemetry

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/codeindex-dev/codeindex/internal/embedding"
	"github.com/codeindex-dev/codeindex/internal/search"
)

// SearchPerformanceRecord is one JSONL row in the search-performance sink,
// a timestamped copy of search.PerformanceEntry.
type SearchPerformanceRecord struct {
	Timestamp time.Time `json:"timestamp"`
	search.PerformanceEntry
}

// FallbackRecord is one JSONL row in the embedding-fallback sink.
type FallbackRecord struct {
	Timestamp time.Time                `json:"timestamp"`
	Event     embedding.FallbackEvent  `json:"event"`
}

// Sink is an append-only JSONL writer serialized by a mutex, one file
// handle held open for the process lifetime. Both telemetry streams use
// the same shape; only the record type differs.
type Sink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// OpenSink appends to (or creates) the JSONL file at path.
func OpenSink(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &Sink{file: f, enc: json.NewEncoder(f)}, nil
}

func (s *Sink) write(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(v)
}

// Close releases the underlying file handle.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// Recorder implements search.PerformanceRecorder over a JSONL sink, the
// collaborator internal/search.Engine is constructed with.
type Recorder struct {
	searchSink   *Sink
	fallbackSink *Sink
}

// NewRecorder binds both sinks. Either may be nil to disable that stream.
func NewRecorder(searchSink, fallbackSink *Sink) *Recorder {
	return &Recorder{searchSink: searchSink, fallbackSink: fallbackSink}
}

// RecordSearchPerformance implements search.PerformanceRecorder.
func (r *Recorder) RecordSearchPerformance(entry search.PerformanceEntry) {
	if r.searchSink == nil {
		return
	}
	_ = r.searchSink.write(SearchPerformanceRecord{Timestamp: time.Now(), PerformanceEntry: entry})
}

// RecordFallback appends one embedding fallback event.
func (r *Recorder) RecordFallback(event embedding.FallbackEvent) {
	if r.fallbackSink == nil {
		return
	}
	_ = r.fallbackSink.write(FallbackRecord{Timestamp: time.Now(), Event: event})
}
