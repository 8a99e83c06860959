package watcher

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Op is a normalized change kind, generalizing the raw fsnotify op bits the
// teacher's file_watcher.go filtered directly (Write|Create|Remove) into
// the named kinds spec §4.I's coalescing table operates over.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpDelete
	OpRename
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// opOrder is the processing order a flushed batch is sorted into:
// DELETE, RENAME, CREATE, MODIFY (spec §4.I.4, §5 ordering guarantee (a)).
var opOrder = map[Op]int{OpDelete: 0, OpRename: 1, OpCreate: 2, OpModify: 3}

// FileChangeEvent is one normalized, canonical-path change, the unit both
// the individual `change` stream and the coalesced `batch` stream carry.
type FileChangeEvent struct {
	Path string
	Op   Op
	Time time.Time
}

// MaxBufferSize forces an immediate flush regardless of the age timer or
// min_batch_size, the backstop spec §4.I names to bound memory under an
// event storm (e.g. a branch checkout touching thousands of files).
const MaxBufferSize = 10000

// DefaultMaxAge is how long the oldest pending event may wait before the
// buffer is flushed (measured from the first buffered event, not from the
// latest one), mirrored from the teacher's single 500ms
// fileWatcher.debounceTime.
const DefaultMaxAge = 500 * time.Millisecond

// coalesce applies spec §4.I.2's per-path merge table. ok is false when the
// pair cancels out (CREATE followed by DELETE before the file was ever
// observed to exist).
func coalesce(prev, next Op) (merged Op, ok bool) {
	switch {
	case prev == OpCreate && next == OpDelete:
		return 0, false
	case prev == OpCreate && next == OpModify:
		return OpCreate, true
	case prev == OpModify && next == OpDelete:
		return OpDelete, true
	case prev == OpDelete && next == OpCreate:
		return OpModify, true
	case prev == OpModify && next == OpModify:
		return OpModify, true
	default:
		return next, true
	}
}

// debounceBuffer accumulates coalesced per-path events between flushes.
// One buffer instance backs one watcher's entire lifetime; Add and
// drain/Flush contend on the same mutex, which is fine at the event rates
// a single project's filesystem produces.
type debounceBuffer struct {
	mu        sync.Mutex
	events    map[string]FileChangeEvent
	firstSeen time.Time
	minBatch  int
}

func newDebounceBuffer(minBatch int) *debounceBuffer {
	return &debounceBuffer{events: make(map[string]FileChangeEvent), minBatch: minBatch}
}

// add merges ev into the buffer and reports whether the buffer should be
// flushed immediately (MAX_BUFFER_SIZE reached or min_batch_size satisfied
// after coalescing).
func (b *debounceBuffer) add(ev FileChangeEvent) (forceFlush bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) == 0 {
		b.firstSeen = ev.Time
	}

	if prior, exists := b.events[ev.Path]; exists {
		merged, ok := coalesce(prior.Op, ev.Op)
		if !ok {
			delete(b.events, ev.Path)
		} else {
			prior.Op = merged
			prior.Time = ev.Time
			b.events[ev.Path] = prior
		}
	} else {
		b.events[ev.Path] = ev
	}

	if len(b.events) >= MaxBufferSize {
		return true
	}
	if b.minBatch > 0 && len(b.events) >= b.minBatch {
		return true
	}
	return false
}

// pendingCount reports how many coalesced events are currently buffered.
func (b *debounceBuffer) pendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// age reports how long the buffer has been accumulating since its first
// (still-pending) event, or zero if empty.
func (b *debounceBuffer) age(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return 0
	}
	return now.Sub(b.firstSeen)
}

// flush drains the buffer and returns its contents ordered per spec
// §4.I.4: by op kind (delete, rename, create, modify), then by path depth
// ascending (parents first), then lexicographically.
func (b *debounceBuffer) flush() []FileChangeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]FileChangeEvent, 0, len(b.events))
	for _, ev := range b.events {
		out = append(out, ev)
	}
	b.events = make(map[string]FileChangeEvent)

	sort.Slice(out, func(i, j int) bool {
		oi, oj := opOrder[out[i].Op], opOrder[out[j].Op]
		if oi != oj {
			return oi < oj
		}
		di, dj := pathDepth(out[i].Path), pathDepth(out[j].Path)
		if di != dj {
			return di < dj
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func pathDepth(p string) int {
	p = strings.Trim(filepath.ToSlash(p), "/")
	if p == "" {
		return 0
	}
	return strings.Count(p, "/")
}
