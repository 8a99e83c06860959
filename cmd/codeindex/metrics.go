package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codeindex-dev/codeindex/internal/config"
	"github.com/codeindex-dev/codeindex/internal/telemetry"
)

var (
	metricsJSONFlag   bool
	metricsLogDirFlag string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Summarize search performance and embedding fallback telemetry",
	Long: `metrics reads the two JSONL sinks under .codeindex/telemetry (search
performance and embedding fallbacks) and prints P50/P95/P99 latencies,
the SLA violation rate, fallback-mode proportions, fallback counts by
action, and the overall fallback success rate.`,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.Flags().BoolVar(&metricsJSONFlag, "json", false, "print machine-readable JSON")
	metricsCmd.Flags().StringVar(&metricsLogDirFlag, "log-dir", "", "directory holding the telemetry JSONL files (default: .codeindex/telemetry)")
}

type metricsReport struct {
	Search   telemetry.SearchSummary   `json:"search"`
	Fallback telemetry.FallbackSummary `json:"fallback"`
}

func runMetrics(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	logDir := metricsLogDirFlag
	if logDir == "" {
		logDir = filepath.Join(root, config.Dir, "telemetry")
	}

	search, err := telemetry.SummarizeSearchPerformance(filepath.Join(logDir, "search.jsonl"))
	if err != nil {
		return fmt.Errorf("summarize search performance: %w", err)
	}
	fallback, err := telemetry.SummarizeFallbacks(filepath.Join(logDir, "fallback.jsonl"))
	if err != nil {
		return fmt.Errorf("summarize fallbacks: %w", err)
	}

	report := metricsReport{Search: search, Fallback: fallback}

	if metricsJSONFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("Search performance (%d queries)\n", search.Count)
	fmt.Printf("  p50 %.1fms  p95 %.1fms  p99 %.1fms\n", search.P50TotalMs, search.P95TotalMs, search.P99TotalMs)
	fmt.Printf("  SLA violations %.1f%%  lexical-only %.1f%%  vector-only %.1f%%  hybrid %.1f%%\n",
		search.SLAViolationRate*100, search.LexicalOnlyRate*100, search.VectorOnlyRate*100, search.HybridRate*100)

	fmt.Printf("Embedding fallbacks (%d events, %.1f%% succeeded)\n", fallback.Count, fallback.SuccessRate*100)
	for action, n := range fallback.ByAction {
		fmt.Printf("  %s: %d\n", action, n)
	}

	return nil
}
