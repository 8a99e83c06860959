package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeindex-dev/codeindex/internal/cerr"
	"github.com/codeindex-dev/codeindex/internal/config"
	"github.com/codeindex-dev/codeindex/internal/embedding"
)

var initProfileFlag string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up project state under .codeindex/",
	Long: `init creates the .codeindex/ directory, probes the machine's hardware
capabilities, resolves a starting embedding profile against them, and
writes config.json. It does not download parser grammars or model
weights itself (spec names that download machinery out of scope); it
only records which profile a later 'index'/'embed' run should use.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initProfileFlag, "profile", string(embedding.PresetBalanced), "starting embedding preset (light, balanced, performance)")
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	if config.Exists(root) {
		fmt.Printf("%s is already initialized\n", root)
		return nil
	}

	profile, err := embedding.PresetByName(initProfileFlag)
	if err != nil {
		return cerr.New("init", cerr.InputInvalid, fmt.Errorf("unknown profile %q: %w", initProfileFlag, err))
	}

	caps := embedding.DetectHardware()
	cfg := config.Default()
	cfg.Profile = embedding.ResolveProfile(profile, caps)
	cfg.HardwareCapabilities = caps

	if err := config.NewLoader(root).Save(cfg); err != nil {
		return err
	}

	fmt.Printf("Initialized %s with profile %q (model %s, device %s)\n",
		root, cfg.Profile.Name, cfg.Profile.Model, cfg.Profile.Device)
	return nil
}
