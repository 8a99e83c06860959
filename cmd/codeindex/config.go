package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/codeindex-dev/codeindex/internal/config"
	"github.com/codeindex-dev/codeindex/internal/embedding"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit .codeindex/config.json",
	Long: `config reads and writes the active embedding profile and the custom
profiles registered under .codeindex/config.json.

Available commands:
  get             - Print one field of the active profile
  set             - Set one field of the active profile
  list            - Print the full config
  profile list    - List registered custom profiles
  profile delete  - Remove a custom profile`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <field>",
	Short: "Print one field of the active profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <field> <value>",
	Short: "Set one field of the active profile",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the full config",
	RunE:  runConfigList,
}

var configProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage custom embedding profiles",
}

var configProfileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered custom profiles",
	RunE:  runConfigProfileList,
}

var configProfileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a custom profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigProfileDelete,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configProfileCmd)
	configProfileCmd.AddCommand(configProfileListCmd)
	configProfileCmd.AddCommand(configProfileDeleteCmd)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return err
	}
	v, err := profileField(&cfg.Profile, args[0])
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	loader := config.NewLoader(root)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if err := setProfileField(&cfg.Profile, args[0], args[1]); err != nil {
		return err
	}
	if err := loader.Save(cfg); err != nil {
		return err
	}
	fmt.Printf("%s = %s\n", args[0], args[1])
	return nil
}

func runConfigList(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return err
	}
	fmt.Printf("version: %s\n", cfg.Version)
	fmt.Printf("updatedAt: %s\n", cfg.UpdatedAt)
	fmt.Println("profile:")
	printProfile(cfg.Profile, "  ")
	fmt.Printf("customProfiles: %d\n", len(cfg.CustomProfiles))
	fmt.Printf("fallbackHistory: %d events\n", len(cfg.FallbackHistory))
	if cfg.HardwareCapabilities.Platform != "" {
		fmt.Printf("hardware: %s/%s, %d cores, %d MB RAM\n",
			cfg.HardwareCapabilities.Platform, cfg.HardwareCapabilities.Arch,
			cfg.HardwareCapabilities.CPUCores, cfg.HardwareCapabilities.TotalRAM/(1024*1024))
	}
	return nil
}

func runConfigProfileList(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return err
	}
	if len(cfg.CustomProfiles) == 0 {
		fmt.Println("No custom profiles registered")
		return nil
	}
	fmt.Printf("%-20s %-30s %-10s %-6s\n", "Name", "Model", "Device", "Batch")
	for _, p := range cfg.CustomProfiles {
		fmt.Printf("%-20s %-30s %-10s %-6d\n", p.Name, p.Model, p.Device, p.BatchSize)
	}
	return nil
}

func runConfigProfileDelete(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	loader := config.NewLoader(root)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if !cfg.DeleteCustomProfile(args[0]) {
		return fmt.Errorf("no custom profile named %q", args[0])
	}
	if err := loader.Save(cfg); err != nil {
		return err
	}
	fmt.Printf("deleted profile %q\n", args[0])
	return nil
}

func printProfile(p embedding.Profile, indent string) {
	fmt.Printf("%sname: %s\n", indent, p.Name)
	fmt.Printf("%smodel: %s\n", indent, p.Model)
	fmt.Printf("%smodelVersion: %s\n", indent, p.ModelVersion)
	fmt.Printf("%sbackend: %s\n", indent, p.Backend)
	fmt.Printf("%sdevice: %s\n", indent, p.Device)
	fmt.Printf("%squantization: %s\n", indent, p.Quantization)
	fmt.Printf("%sbatchSize: %d\n", indent, p.BatchSize)
	fmt.Printf("%sdimensions: %d\n", indent, p.Dimensions)
	fmt.Printf("%scacheDir: %s\n", indent, p.CacheDir)
}

func profileField(p *embedding.Profile, field string) (string, error) {
	switch field {
	case "name":
		return p.Name, nil
	case "model":
		return p.Model, nil
	case "modelVersion":
		return p.ModelVersion, nil
	case "backend":
		return string(p.Backend), nil
	case "device":
		return string(p.Device), nil
	case "quantization":
		return string(p.Quantization), nil
	case "batchSize":
		return strconv.Itoa(p.BatchSize), nil
	case "dimensions":
		return strconv.Itoa(p.Dimensions), nil
	case "cacheDir":
		return p.CacheDir, nil
	default:
		return "", fmt.Errorf("unknown profile field %q", field)
	}
}

func setProfileField(p *embedding.Profile, field, value string) error {
	switch field {
	case "name":
		p.Name = value
	case "model":
		p.Model = value
	case "modelVersion":
		p.ModelVersion = value
	case "backend":
		p.Backend = embedding.Backend(value)
	case "device":
		p.Device = embedding.Device(value)
	case "quantization":
		p.Quantization = embedding.Quantization(value)
	case "cacheDir":
		p.CacheDir = value
	case "batchSize":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("batchSize must be an integer: %w", err)
		}
		p.BatchSize = n
	case "dimensions":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("dimensions must be an integer: %w", err)
		}
		p.Dimensions = n
	default:
		return fmt.Errorf("unknown profile field %q", field)
	}
	return nil
}
