package indexer

// ProgressReporter is the opaque progress callback spec §4.H's "progress
// is reported via an opaque callback" names. Implementations can display
// progress bars, log messages, or remain silent, generalizing the
// teacher's CLIProgressReporter (internal/cli/progress.go) interface from
// its code/docs file split to the spec's single discovered-file count.
type ProgressReporter interface {
	OnDiscoveryStart()
	OnDiscoveryComplete(filesFound int, _ int)
	OnFileProcessingStart(totalFiles int)
	OnFileProcessed(fileName string)
	OnEmbeddingStart(totalChunks int)
	OnEmbeddingProgress(processedChunks int)
	OnComplete(stats *Stats)
}

// NoOpProgressReporter reports nothing, used when progress reporting is
// disabled (e.g. a --quiet CLI flag, or a headless tool-server caller).
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) OnDiscoveryStart()                    {}
func (n *NoOpProgressReporter) OnDiscoveryComplete(int, int)         {}
func (n *NoOpProgressReporter) OnFileProcessingStart(int)            {}
func (n *NoOpProgressReporter) OnFileProcessed(string)               {}
func (n *NoOpProgressReporter) OnEmbeddingStart(int)                 {}
func (n *NoOpProgressReporter) OnEmbeddingProgress(int)              {}
func (n *NoOpProgressReporter) OnComplete(stats *Stats)              {}
