package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codeindex-dev/codeindex/internal/config"
	"github.com/codeindex-dev/codeindex/internal/search"
	"github.com/codeindex-dev/codeindex/internal/telemetry"
	"github.com/codeindex-dev/codeindex/internal/toolserver"
)

var serveAuthTokenFlag string

// serveCmd is the entry point for the JSON-RPC tool protocol spec §4.J
// names but §1 calls a thin, out-of-scope transport shell. It plays the
// same role the teacher's "cortex mcp" subcommand plays for its own
// internal/mcp.NewMCPServer: some command has to actually start the
// process that speaks the protocol over stdio.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON-RPC tool server over stdio",
	Long: `serve builds the hybrid search engine and starts the fixed tool
vocabulary (search, find_def, find_refs, callers, callees, open_at,
refresh, symbols) over stdio, for an editor or agent to drive.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAuthTokenFlag, "auth-token", "", "require this token on every tool call (disabled when empty)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	root, err := projectRoot()
	if err != nil {
		return err
	}

	a, err := openApp(root, true)
	if err != nil {
		return err
	}
	defer a.Close()

	preset := embeddingPreset(a.cfg.Profile.Name)
	if err := a.engine.Initialize(ctx, preset, &a.cfg.Profile); err != nil {
		return fmt.Errorf("initialize embedding engine: %w", err)
	}

	lexical, err := search.NewLexicalIndex(ctx, a.store)
	if err != nil {
		return fmt.Errorf("build lexical index: %w", err)
	}
	defer lexical.Close()

	telemetryDir := filepath.Join(root, config.Dir, "telemetry")
	if err := os.MkdirAll(telemetryDir, 0755); err != nil {
		return fmt.Errorf("create telemetry dir: %w", err)
	}
	searchSink, err := telemetry.OpenSink(filepath.Join(telemetryDir, "search.jsonl"))
	if err != nil {
		return fmt.Errorf("open search telemetry sink: %w", err)
	}
	defer searchSink.Close()
	fallbackSink, err := telemetry.OpenSink(filepath.Join(telemetryDir, "fallback.jsonl"))
	if err != nil {
		return fmt.Errorf("open fallback telemetry sink: %w", err)
	}
	defer fallbackSink.Close()
	recorder := telemetry.NewRecorder(searchSink, fallbackSink)

	engine := search.NewEngine(lexical, a.store, a.engine, a.store,
		a.cfg.Profile.Model, a.cfg.Profile.ModelVersion, a.cfg.Profile.Dimensions, recorder)

	idx := a.newIndexer(newCLIProgressReporter(true))

	srv := toolserver.New(root, a.store, a.graph, engine, idx, serveAuthTokenFlag)
	return srv.Serve(ctx)
}
