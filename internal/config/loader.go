package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/codeindex-dev/codeindex/internal/cerr"
)

// Dir is the name of the project-local state directory spec §6 names:
// ".codeindex/" holds config.json alongside the store, AST cache, and
// embedding cache.
const Dir = ".codeindex"

// FileName is config.json's name within Dir.
const FileName = "config.json"

// Loader loads and persists the project's config.json, generalizing the
// teacher's Loader interface (config/loader.go) from a YAML project file
// to spec §6's JSON schema. Priority: defaults -> config file -> env vars.
type Loader interface {
	Load() (*Config, error)
	Save(cfg *Config) error
}

type loader struct {
	rootDir string
}

// NewLoader creates a configuration loader rooted at rootDir. Config is
// read from and written to rootDir/.codeindex/config.json.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

func (l *loader) configDir() string  { return filepath.Join(l.rootDir, Dir) }
func (l *loader) configPath() string { return filepath.Join(l.configDir(), FileName) }

// Load reads config.json if present, applying CODEINDEX_* environment
// overrides and falling back to Default() for any field the file and
// environment leave unset. A missing file is not an error: the caller is
// expected to be a not-yet-initialized project (spec §6's NotInitialized
// condition is raised by the caller, not here).
func (l *loader) Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(l.configDir())

	v.SetEnvPrefix("CODEINDEX")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("profile.name")
	v.BindEnv("profile.model")
	v.BindEnv("profile.device")
	v.BindEnv("profile.quantization")
	v.BindEnv("profile.batchsize")

	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, cerr.New("config.Load", cerr.InputInvalid, fmt.Errorf("read config file: %w", err))
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, cerr.New("config.Load", cerr.InputInvalid, fmt.Errorf("unmarshal config: %w", err))
	}

	if err := Validate(cfg); err != nil {
		return nil, cerr.New("config.Load", cerr.InputInvalid, err)
	}

	return cfg, nil
}

// Save stamps UpdatedAt and writes cfg to config.json atomically (write
// to a temp file in the same directory, then rename), mirroring the
// astdoc store's Write (internal/astdoc/astdoc.go).
func (l *loader) Save(cfg *Config) error {
	if err := os.MkdirAll(l.configDir(), 0755); err != nil {
		return cerr.New("config.Save", cerr.InputInvalid, fmt.Errorf("create config dir: %w", err))
	}

	cfg.UpdatedAt = time.Now()
	if err := Validate(cfg); err != nil {
		return cerr.New("config.Save", cerr.InputInvalid, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return cerr.New("config.Save", cerr.Internal, err)
	}

	target := l.configPath()
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return cerr.New("config.Save", cerr.InputInvalid, fmt.Errorf("write temp file: %w", err))
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return cerr.New("config.Save", cerr.InputInvalid, fmt.Errorf("rename: %w", err))
	}
	return nil
}

// setDefaults seeds viper with defaults' values so an absent config file
// or absent field still unmarshals to a usable Config.
func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("version", defaults.Version)
	v.SetDefault("profile.name", defaults.Profile.Name)
	v.SetDefault("profile.model", defaults.Profile.Model)
	v.SetDefault("profile.modelversion", defaults.Profile.ModelVersion)
	v.SetDefault("profile.backend", defaults.Profile.Backend)
	v.SetDefault("profile.device", defaults.Profile.Device)
	v.SetDefault("profile.quantization", defaults.Profile.Quantization)
	v.SetDefault("profile.batchsize", defaults.Profile.BatchSize)
	v.SetDefault("profile.dimensions", defaults.Profile.Dimensions)
	v.SetDefault("profile.cachedir", defaults.Profile.CacheDir)
}

// LoadConfig is a convenience function using the current working
// directory as the project root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, cerr.New("config.LoadConfig", cerr.Internal, fmt.Errorf("get working directory: %w", err))
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration rooted at rootDir.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}

// Exists reports whether rootDir has been initialized (config.json
// present under .codeindex/).
func Exists(rootDir string) bool {
	_, err := os.Stat(filepath.Join(rootDir, Dir, FileName))
	return err == nil
}
