// Package config provides configuration management for the leapseed CLI.
//
// Settings are layered from defaults, leapseed.yaml, LEAPSEED_ environment
// variables and explicitly set command-line flags, in increasing order of
// precedence.
package config

import (
	"github.com/leapstack-labs/leapseed/internal/engine"
	"github.com/leapstack-labs/leapseed/internal/export"
)

// TargetConfig is an alias for the export target configuration.
type TargetConfig = export.Config

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`

	Schema            []string             `koanf:"schema"`
	Seed              int64                `koanf:"seed"`
	MaxDepth          int                  `koanf:"max_depth"`
	MaxUniqueAttempts int                  `koanf:"max_unique_attempts"`
	Sampling          string               `koanf:"sampling"`
	Environment       string               `koanf:"env"`
	Verbose           bool                 `koanf:"verbose"`
	OutputFormat      string               `koanf:"output"`
	Targets           []TargetConfig       `koanf:"targets"`
	SnapshotPath      string               `koanf:"snapshot_path"`
	Environments      map[string]EnvConfig `koanf:"environments"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	Schema  []string       `koanf:"schema"`
	Seed    int64          `koanf:"seed"`
	Targets []TargetConfig `koanf:"targets"`
}

// Default configuration values.
const (
	DefaultSchemaFile = "schema.yaml"
	DefaultSampling   = "without-replacement"
	DefaultOutput     = "auto" // Auto-detect: TTY=styled, non-TTY=plain
)

// Output formats.
const (
	OutputAuto  = "auto"
	OutputText  = "text"
	OutputPlain = "plain"
)

// EngineConfig returns the engine settings of c. Sampling must have been
// validated.
func (c *Config) EngineConfig() engine.Config {
	sampling, _ := engine.ParseSampling(c.Sampling)
	return engine.Config{
		Seed:              c.Seed,
		MaxDepth:          c.MaxDepth,
		MaxUniqueAttempts: c.MaxUniqueAttempts,
		Sampling:          sampling,
	}
}
