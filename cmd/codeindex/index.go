package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var indexQuietFlag bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the initial index (parse, chunk, embed)",
	Long: `index discovers every file under the project root, parses/extracts/
chunks it, persists the result to the content store, rebuilds the
symbol/call graph, and embeds every chunk. Run once after 'init'; use
'refresh' afterward for incremental re-indexing.`,
	RunE: runIndexCmd,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVarP(&indexQuietFlag, "quiet", "q", false, "disable progress bars")
}

func runIndexCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, cancelling...")
		cancel()
	}()

	root, err := projectRoot()
	if err != nil {
		return err
	}

	a, err := openApp(root, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if !indexQuietFlag {
		fmt.Println("Starting embedding engine...")
	}
	preset := embeddingPreset(a.cfg.Profile.Name)
	if err := a.engine.Initialize(ctx, preset, &a.cfg.Profile); err != nil {
		return fmt.Errorf("initialize embedding engine: %w", err)
	}

	progress := newCLIProgressReporter(indexQuietFlag)
	idx := a.newIndexer(progress)

	stats, err := idx.FullIndex(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("indexing cancelled")
		}
		return fmt.Errorf("indexing failed: %w", err)
	}
	progress.OnComplete(stats)

	embedStats, err := idx.Embed(ctx, indexerEmbedDefaults())
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	if !indexQuietFlag {
		fmt.Printf("Embedded %d chunks (%d skipped, %d failed, %d orphans swept)\n",
			embedStats.ChunksEmbedded, embedStats.ChunksSkipped, embedStats.ChunksFailed, embedStats.OrphansSwept)
	}

	return nil
}
