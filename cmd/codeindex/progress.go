package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/codeindex-dev/codeindex/internal/indexer"
)

// cliProgressReporter implements indexer.ProgressReporter with
// progress bars, generalizing the teacher's CLIProgressReporter
// (internal/cli/progress.go) from its code/docs split to the spec's
// single-chunk-stream model.
type cliProgressReporter struct {
	quiet        bool
	fileBar      *progressbar.ProgressBar
	embeddingBar *progressbar.ProgressBar
}

func newCLIProgressReporter(quiet bool) *cliProgressReporter {
	return &cliProgressReporter{quiet: quiet}
}

func (c *cliProgressReporter) OnDiscoveryStart() {
	if !c.quiet {
		fmt.Println("Discovering files...")
	}
}

func (c *cliProgressReporter) OnDiscoveryComplete(filesFound, _ int) {
	if !c.quiet {
		fmt.Printf("Processing %d files\n", filesFound)
	}
}

func (c *cliProgressReporter) OnFileProcessingStart(totalFiles int) {
	if c.quiet {
		return
	}
	c.fileBar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetDescription("Indexing files"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)
}

func (c *cliProgressReporter) OnFileProcessed(fileName string) {
	if c.fileBar != nil {
		c.fileBar.Add(1)
	}
}

func (c *cliProgressReporter) OnEmbeddingStart(totalChunks int) {
	if c.quiet {
		return
	}
	c.embeddingBar = progressbar.NewOptions(totalChunks,
		progressbar.OptionSetDescription("Generating embeddings"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("emb/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)
}

func (c *cliProgressReporter) OnEmbeddingProgress(processedChunks int) {
	if c.embeddingBar != nil {
		c.embeddingBar.Set(processedChunks)
	}
}

func (c *cliProgressReporter) OnComplete(stats *indexer.Stats) {
	if c.quiet {
		return
	}
	fmt.Println()
	fmt.Printf("Indexed %d files (%d added, %d modified, %d deleted, %d unchanged), %d chunks, took %v\n",
		stats.FilesProcessed, stats.FilesAdded, stats.FilesModified, stats.FilesDeleted,
		stats.FilesUnchanged, stats.TotalChunks, stats.Duration)
}
