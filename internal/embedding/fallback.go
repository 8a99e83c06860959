package embedding

import (
	"fmt"
	"time"
)

// MaxFallbackAttempts caps how many stages of the chain run for a single
// failing batch before giving up, per spec §4.E.
const MaxFallbackAttempts = 3

// fallbackChain is the fixed stage order spec §4.E names: shrink the
// batch first (cheapest, most likely transient-memory fix), then trade
// precision for headroom, then move off the failing device, and only as
// a last resort swap to a different model entirely.
var fallbackChain = []FallbackAction{
	ActionReduceBatch,
	ActionSwitchQuantization,
	ActionSwitchDevice,
	ActionSwitchModel,
}

// fallbackModels is consulted only at the ActionSwitchModel stage, to
// name a smaller model than the one currently failing.
var fallbackModels = map[string]string{
	"bge-large-en-v1.5": "bge-base-en-v1.5",
	"bge-base-en-v1.5":  "bge-small-en-v1.5",
}

// nextStage returns the fallback action to attempt given how many
// attempts have already been made for this failure, or false once the
// chain (or MaxFallbackAttempts) is exhausted.
func nextStage(attempt int) (FallbackAction, bool) {
	if attempt >= MaxFallbackAttempts || attempt >= len(fallbackChain) {
		return "", false
	}
	return fallbackChain[attempt], true
}

// applyStage returns a new Profile reflecting one fallback stage, plus the
// FallbackEvent recording the attempt. success is filled in by the caller
// once the stage has actually been tried against the sidecar.
func applyStage(p Profile, stage FallbackAction, reason string, now func() time.Time) (Profile, FallbackEvent) {
	next := p
	var from, to string

	switch stage {
	case ActionReduceBatch:
		from = fmt.Sprintf("%d", p.BatchSize)
		next.BatchSize = p.BatchSize / 2
		if next.BatchSize < 1 {
			next.BatchSize = 1
		}
		to = fmt.Sprintf("%d", next.BatchSize)

	case ActionSwitchQuantization:
		from = string(p.Quantization)
		next.Quantization = downgradeQuantization(p.Quantization)
		to = string(next.Quantization)

	case ActionSwitchDevice:
		from = string(p.Device)
		next.Device = DeviceCPU
		to = string(next.Device)

	case ActionSwitchModel:
		from = p.Model
		if smaller, ok := fallbackModels[p.Model]; ok {
			next.Model = smaller
		}
		to = next.Model
	}

	event := FallbackEvent{
		Timestamp: now(),
		Action:    stage,
		From:      from,
		To:        to,
		Reason:    reason,
	}
	return next, event
}

func downgradeQuantization(q Quantization) Quantization {
	switch q {
	case QuantFP32:
		return QuantFP16
	case QuantFP16:
		return QuantInt8
	default:
		return QuantInt4
	}
}
