package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"sort"

	"github.com/codeindex-dev/codeindex/internal/search"
)

// SearchSummary is the aggregated view over a search-performance JSONL
// file spec §4.K asks for: percentile latencies, SLA violation rate, and
// the proportion of queries that fell back to a single leg.
type SearchSummary struct {
	Count            int
	P50TotalMs       float64
	P95TotalMs       float64
	P99TotalMs       float64
	SLAViolationRate float64
	LexicalOnlyRate  float64
	VectorOnlyRate   float64
	HybridRate       float64
}

// SummarizeSearchPerformance reads every record from path and computes
// SearchSummary. A missing file summarizes as the zero value.
func SummarizeSearchPerformance(path string) (SearchSummary, error) {
	records, err := readJSONL[SearchPerformanceRecord](path)
	if err != nil {
		return SearchSummary{}, err
	}
	if len(records) == 0 {
		return SearchSummary{}, nil
	}

	totals := make([]float64, len(records))
	var violations, lexicalOnly, vectorOnly, hybrid int
	for i, r := range records {
		totals[i] = r.TotalTimeMs
		if r.SLAViolation {
			violations++
		}
		switch r.FallbackMode {
		case search.FallbackLexical:
			lexicalOnly++
		case search.FallbackVector:
			vectorOnly++
		default:
			hybrid++
		}
	}
	sort.Float64s(totals)

	n := float64(len(records))
	return SearchSummary{
		Count:            len(records),
		P50TotalMs:       percentile(totals, 0.50),
		P95TotalMs:       percentile(totals, 0.95),
		P99TotalMs:       percentile(totals, 0.99),
		SLAViolationRate: float64(violations) / n,
		LexicalOnlyRate:  float64(lexicalOnly) / n,
		VectorOnlyRate:   float64(vectorOnly) / n,
		HybridRate:       float64(hybrid) / n,
	}, nil
}

// FallbackSummary aggregates the embedding-fallback sink: counts per
// action and the overall success rate of fallback attempts.
type FallbackSummary struct {
	Count       int
	SuccessRate float64
	ByAction    map[string]int
}

// SummarizeFallbacks reads every record from path and computes
// FallbackSummary.
func SummarizeFallbacks(path string) (FallbackSummary, error) {
	records, err := readJSONL[FallbackRecord](path)
	if err != nil {
		return FallbackSummary{}, err
	}
	if len(records) == 0 {
		return FallbackSummary{ByAction: map[string]int{}}, nil
	}

	byAction := map[string]int{}
	var successes int
	for _, r := range records {
		byAction[string(r.Event.Action)]++
		if r.Event.Success {
			successes++
		}
	}
	return FallbackSummary{
		Count:       len(records),
		SuccessRate: float64(successes) / float64(len(records)),
		ByAction:    byAction,
	}, nil
}

// percentile computes the p-th percentile (0..1) over a sorted slice
// using the nearest-rank method: the value at rank ceil(p*n). sorted must
// already be ascending.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	target := p * float64(len(sorted))
	rank := int(target)
	if float64(rank) < target {
		rank++
	}
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func readJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}
