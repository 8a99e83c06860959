// Package cerr defines the error-kind taxonomy used across the codeindex
// core: every public operation returns a plain error, but operations that
// want callers (in particular the tool server) to branch on failure class
// wrap it in *cerr.Error so the kind survives across component boundaries.
package cerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide whether to retry, surface
// a corrective message, or treat it as a hard stop.
type Kind string

const (
	// InputInvalid covers empty queries, malformed arguments, unknown
	// profiles. Never retried.
	InputInvalid Kind = "input_invalid"
	// NotInitialized covers a missing .codeindex/, database, or model.
	// Never retried; the caller should be pointed at the initializer.
	NotInitialized Kind = "not_initialized"
	// StoreCorrupt covers sqlite/bleve/chromem-level corruption. No
	// automatic repair; the caller is directed to reinitialize.
	StoreCorrupt Kind = "store_corrupt"
	// TransientIO covers parse-buffer growth failures, temporary file
	// locks, network hiccups during model download. Retried with
	// exponential backoff up to a bounded count by the caller.
	TransientIO Kind = "transient_io"
	// EmbeddingFailure covers any inference failure; it is surfaced only
	// after the embedding fallback chain has been exhausted.
	EmbeddingFailure Kind = "embedding_failure"
	// SLAViolation covers a latency budget exceeded where no partial
	// result is defensible.
	SLAViolation Kind = "sla_violation"
	// Internal covers anything else — a bug, not a recognized failure mode.
	Internal Kind = "internal"
)

// Error wraps an underlying error with a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind and op. If err is nil, New returns nil so it is
// safe to call as `return cerr.New(op, kind, err)` at the tail of a function.
func New(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err, walking the unwrap chain. Returns
// the empty Kind if err is nil, and Internal if err carries no *Error in
// its chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
