// Package config loads and persists the project's .codeindex/config.json
// state (spec §6): the active embedding profile, any custom profiles the
// user registered, the last-probed hardware capabilities, and the
// fallback-event history. It generalizes the teacher's internal/config
// package (config.go/loader.go: spf13/viper + YAML + mapstructure tags)
// to the JSON schema spec §6 names, keeping viper as the loader since it
// reads JSON through the same API the teacher already uses.
package config

import (
	"time"

	"github.com/codeindex-dev/codeindex/internal/embedding"
)

// Config is spec §6's "Config JSON schema": { version, profile, customProfiles[],
// hardwareCapabilities, fallbackHistory[], updatedAt }.
type Config struct {
	Version               string                       `json:"version" mapstructure:"version"`
	Profile               embedding.Profile            `json:"profile" mapstructure:"profile"`
	CustomProfiles        []embedding.Profile          `json:"customProfiles" mapstructure:"customProfiles"`
	HardwareCapabilities  embedding.HardwareCapabilities `json:"hardwareCapabilities" mapstructure:"hardwareCapabilities"`
	FallbackHistory       []embedding.FallbackEvent    `json:"fallbackHistory" mapstructure:"fallbackHistory"`
	UpdatedAt             time.Time                    `json:"updatedAt" mapstructure:"updatedAt"`
}

// SchemaVersion is the current on-disk schema version stamped into new
// config files.
const SchemaVersion = "1"

// Default returns a fresh configuration built around the "balanced"
// preset profile, matching the teacher's Default() constructor pattern
// (config.go) of returning a ready-to-use value rather than a zero Config.
func Default() *Config {
	profile, err := embedding.PresetByName(string(embedding.PresetBalanced))
	if err != nil {
		profile = embedding.Profile{Name: string(embedding.PresetBalanced)}
	}
	return &Config{
		Version:        SchemaVersion,
		Profile:        profile,
		CustomProfiles: nil,
		FallbackHistory: nil,
	}
}

// FindCustomProfile returns the named custom profile, if registered.
func (c *Config) FindCustomProfile(name string) (embedding.Profile, bool) {
	for _, p := range c.CustomProfiles {
		if p.Name == name {
			return p, true
		}
	}
	return embedding.Profile{}, false
}

// UpsertCustomProfile adds or replaces a custom profile by name.
func (c *Config) UpsertCustomProfile(p embedding.Profile) {
	for i, existing := range c.CustomProfiles {
		if existing.Name == p.Name {
			c.CustomProfiles[i] = p
			return
		}
	}
	c.CustomProfiles = append(c.CustomProfiles, p)
}

// DeleteCustomProfile removes a custom profile by name, reporting whether
// anything was removed.
func (c *Config) DeleteCustomProfile(name string) bool {
	for i, existing := range c.CustomProfiles {
		if existing.Name == name {
			c.CustomProfiles = append(c.CustomProfiles[:i], c.CustomProfiles[i+1:]...)
			return true
		}
	}
	return false
}
