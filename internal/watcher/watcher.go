// Package watcher normalizes filesystem change notifications into the
// debounced, coalesced batches spec §4.I describes, generalizing the
// teacher's internal/watcher/file_watcher.go (one global debounce timer,
// a hardcoded directory skip-list) into a per-path coalescing state
// machine with an overridable, priority-tiered ignore-pattern store.
package watcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Stats is a point-in-time snapshot of watcher activity, the shape spec
// §4.I's "uptime, events received/processed, average batch size,
// compression ratio, pending count" enumerates.
type Stats struct {
	Uptime          time.Duration
	EventsReceived  int64
	EventsProcessed int64
	BatchesFlushed  int64
	AverageBatch    float64
	CompressionRate float64
	Pending         int
}

// Watcher watches a project root recursively, subject to an ignore
// pattern store, and exposes both an individual change stream and a
// coalesced batch stream.
type Watcher struct {
	rootDir  string
	patterns *PatternStore
	maxDepth int

	fsw    *fsnotify.Watcher
	buffer *debounceBuffer
	maxAge time.Duration

	changes chan FileChangeEvent
	batches chan []FileChangeEvent

	mu              sync.Mutex
	startedAt       time.Time
	eventsReceived  int64
	eventsProcessed int64
	batchesFlushed  int64

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option configures optional Watcher behavior.
type Option func(*Watcher)

// WithMinBatchSize sets the coalesced-count threshold that forces an
// early flush, in addition to the age timer and MAX_BUFFER_SIZE.
func WithMinBatchSize(n int) Option {
	return func(w *Watcher) { w.buffer = newDebounceBuffer(n) }
}

// WithMaxAge overrides the default 500ms maximum age of the oldest pending
// event before a flush.
func WithMaxAge(d time.Duration) Option {
	return func(w *Watcher) { w.maxAge = d }
}

// WithMaxDepth bounds recursive directory registration depth.
func WithMaxDepth(depth int) Option {
	return func(w *Watcher) { w.maxDepth = depth }
}

// New builds a Watcher rooted at rootDir. Patterns may be nil, in which
// case only DefaultIgnorePatterns apply.
func New(rootDir string, patterns *PatternStore, opts ...Option) (*Watcher, error) {
	if patterns == nil {
		patterns = NewPatternStore(DefaultIgnorePatterns)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		rootDir:  rootDir,
		patterns: patterns,
		maxDepth: 64,
		fsw:      fsw,
		buffer:   newDebounceBuffer(0),
		maxAge:   DefaultMaxAge,
		changes:  make(chan FileChangeEvent, 256),
		batches:  make(chan []FileChangeEvent, 16),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addTree(rootDir, 0); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Changes returns the per-event stream, for observers that want raw
// normalized events ahead of coalescing (e.g. telemetry).
func (w *Watcher) Changes() <-chan FileChangeEvent { return w.changes }

// Batches returns the coalesced batch stream the indexer consumes.
func (w *Watcher) Batches() <-chan []FileChangeEvent { return w.batches }

// Start begins watching. It returns once the event loop goroutine has
// launched; Stop or ctx cancellation ends it.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Lock()
	w.startedAt = time.Now()
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop ends the watch loop and closes the underlying fsnotify watcher.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
			<-w.done
		} else {
			close(w.done)
		}
		err = w.fsw.Close()
		close(w.changes)
		close(w.batches)
	})
	return err
}

// Stats returns a snapshot of current watcher activity.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Stats{
		Uptime:          time.Since(w.startedAt),
		EventsReceived:  w.eventsReceived,
		EventsProcessed: w.eventsProcessed,
		BatchesFlushed:  w.batchesFlushed,
		Pending:         w.buffer.pendingCount(),
	}
	if w.batchesFlushed > 0 {
		s.AverageBatch = float64(w.eventsProcessed) / float64(w.batchesFlushed)
	}
	if w.eventsReceived > 0 {
		s.CompressionRate = 1 - float64(w.eventsProcessed)/float64(w.eventsReceived)
	}
	return s
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.maxAge / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleRaw(ev)

		case <-ticker.C:
			if w.buffer.age(time.Now()) >= w.maxAge {
				w.flush()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: fsnotify error: %v", err)
		}
	}
}

func (w *Watcher) handleRaw(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name, 0); err != nil {
				log.Printf("watcher: failed to watch new directory %s: %v", ev.Name, err)
			}
		}
	}

	relPath, err := filepath.Rel(w.rootDir, ev.Name)
	if err != nil {
		relPath = ev.Name
	}
	relPath = filepath.ToSlash(relPath)
	if w.patterns.Match(relPath) {
		return
	}

	op, ok := normalizeOp(ev.Op)
	if !ok {
		return
	}

	now := time.Now()
	change := FileChangeEvent{Path: relPath, Op: op, Time: now}

	w.mu.Lock()
	w.eventsReceived++
	w.mu.Unlock()

	select {
	case w.changes <- change:
	default:
	}

	if w.buffer.add(change) {
		w.flush()
	}
}

func (w *Watcher) flush() {
	batch := w.buffer.flush()
	if len(batch) == 0 {
		return
	}

	w.mu.Lock()
	w.eventsProcessed += int64(len(batch))
	w.batchesFlushed++
	w.mu.Unlock()

	select {
	case w.batches <- batch:
	default:
		// A slow consumer should never block the watch loop; drop the
		// oldest unread batch rather than stall event normalization.
		select {
		case <-w.batches:
		default:
		}
		w.batches <- batch
	}
}

func normalizeOp(op fsnotify.Op) (Op, bool) {
	switch {
	case op&fsnotify.Remove != 0:
		return OpDelete, true
	case op&fsnotify.Rename != 0:
		return OpRename, true
	case op&fsnotify.Create != 0:
		return OpCreate, true
	case op&fsnotify.Write != 0 || op&fsnotify.Chmod != 0:
		return OpModify, true
	default:
		return 0, false
	}
}

func (w *Watcher) addTree(rootPath string, depth int) error {
	if depth > w.maxDepth {
		return nil
	}

	rel, err := filepath.Rel(w.rootDir, rootPath)
	if err == nil && w.patterns.Match(filepath.ToSlash(rel)) {
		return nil
	}

	entries, err := os.ReadDir(rootPath)
	if err != nil {
		return err
	}

	if err := w.fsw.Add(rootPath); err != nil {
		return fmt.Errorf("watcher: add %s: %w", rootPath, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := w.addTree(filepath.Join(rootPath, entry.Name()), depth+1); err != nil {
			log.Printf("watcher: %v", err)
		}
	}
	return nil
}
