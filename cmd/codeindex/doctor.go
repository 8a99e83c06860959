package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeindex-dev/codeindex/internal/cerr"
	"github.com/codeindex-dev/codeindex/internal/config"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check project health",
	Long: `doctor verifies the project is initialized, its config.json parses and
validates, its sqlite store opens cleanly, and its configured embedding
profile's sidecar can start. Exit codes: 0 healthy, 1 issues detected,
2 not initialized.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type doctorCheck struct {
	name string
	err  error
}

func runDoctor(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	if !config.Exists(root) {
		return cerr.New("doctor", cerr.NotInitialized, fmt.Errorf("%s has no .codeindex/config.json, run 'codeindex init'", root))
	}

	var checks []doctorCheck

	cfg, err := config.LoadConfigFromDir(root)
	checks = append(checks, doctorCheck{"config.json valid", err})
	if err != nil {
		printDoctorReport(checks)
		return cerr.New("doctor", cerr.NotInitialized, err)
	}

	a, err := openApp(root, true)
	checks = append(checks, doctorCheck{"sqlite store opens", err})
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		sidecarErr := a.engine.Initialize(ctx, embeddingPreset(cfg.Profile.Name), &cfg.Profile)
		checks = append(checks, doctorCheck{fmt.Sprintf("embedding sidecar starts (%s)", cfg.Profile.Model), sidecarErr})
		if sidecarErr == nil {
			a.engine.Close()
		}
		cancel()
		a.Close()
	}

	printDoctorReport(checks)

	for _, c := range checks {
		if c.err != nil {
			return fmt.Errorf("doctor: one or more checks failed")
		}
	}
	return nil
}

func printDoctorReport(checks []doctorCheck) {
	for _, c := range checks {
		if c.err == nil {
			fmt.Printf("ok   %s\n", c.name)
		} else {
			fmt.Printf("FAIL %s: %v\n", c.name, c.err)
		}
	}
}
