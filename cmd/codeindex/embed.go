package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codeindex-dev/codeindex/internal/embedding"
	"github.com/codeindex-dev/codeindex/internal/indexer"
)

var (
	embedRebuildFlag bool
	embedFilesFlag   []string
	embedProfileFlag string
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "(Re-)embed chunks without re-parsing the working tree",
	Long: `embed generates or refreshes dense vectors for chunks already in the
content store. With --rebuild every chunk is re-embedded regardless of
existing vectors. With --files, those paths are first re-indexed; the
embedding pass that follows is not limited to them and still covers every
chunk that lacks a vector (every chunk with --rebuild). --profile switches the active
embedding profile for this run before embedding begins.`,
	RunE: runEmbedCmd,
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedCmd.Flags().BoolVar(&embedRebuildFlag, "rebuild", false, "re-embed every chunk regardless of existing vectors")
	embedCmd.Flags().StringSliceVar(&embedFilesFlag, "files", nil, "re-index these file paths before embedding")
	embedCmd.Flags().StringVar(&embedProfileFlag, "profile", "", "switch to this embedding profile/preset before running")
}

func indexerEmbedDefaults() indexer.EmbedOptions {
	return indexer.EmbedOptions{}
}

func runEmbedCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
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

	preset := embedding.Preset(a.cfg.Profile.Name)
	override := &a.cfg.Profile
	if embedProfileFlag != "" {
		if p, ok := a.cfg.FindCustomProfile(embedProfileFlag); ok {
			override = &p
		} else if p, err := embedding.PresetByName(embedProfileFlag); err == nil {
			preset = embedding.Preset(embedProfileFlag)
			override = &p
		} else {
			return fmt.Errorf("unknown profile %q", embedProfileFlag)
		}
	}

	if err := a.engine.Initialize(ctx, preset, override); err != nil {
		return fmt.Errorf("initialize embedding engine: %w", err)
	}

	idx := a.newIndexer(newCLIProgressReporter(false))

	opts := indexer.EmbedOptions{Force: embedRebuildFlag}
	if len(embedFilesFlag) > 0 {
		if _, err := idx.RefreshFiles(ctx, embedFilesFlag); err != nil {
			return fmt.Errorf("refresh scoped files: %w", err)
		}
	}

	stats, err := idx.Embed(ctx, opts)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	fmt.Printf("Embedded %d chunks (%d skipped, %d failed, %d orphans swept)\n",
		stats.ChunksEmbedded, stats.ChunksSkipped, stats.ChunksFailed, stats.OrphansSwept)
	return nil
}
