package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes spec §6 names: 0 healthy, 1 detected issues, 2 pre-condition
// failure (not initialized, bad arguments).
const (
	ExitOK          = 0
	ExitIssues      = 1
	ExitPrecondition = 2
)

var (
	rootDirFlag string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "codeindex",
	Short: "A local, project-scoped code intelligence index",
	Long: `codeindex maintains a persistent on-disk index of a source repository
(lexical postings, dense embeddings, and a structural symbol/call graph)
and serves semantic/lexical queries and symbol navigation over a JSON-RPC
tool protocol, keeping the index coherent with a file watcher.`,
}

// Execute adds all child commands to the root command and runs it. It is
// called by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDirFlag, "root", "", "project root directory (default: git worktree root, else current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "verbose output")
}

// projectRoot resolves the working directory for the invoked subcommand:
// the --root flag if given, otherwise the nearest git worktree root
// (internal/git.GetWorktreeRoot), falling back to the process's current
// directory when the project isn't a git worktree.
func projectRoot() (string, error) {
	if rootDirFlag != "" {
		return rootDirFlag, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	if root := gitOps.GetWorktreeRoot(wd); root != "" {
		return root, nil
	}
	return wd, nil
}
