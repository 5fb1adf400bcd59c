package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/leapseed/internal/engine"
	"github.com/leapstack-labs/leapseed/internal/export"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := engine.ParseSampling(c.Sampling); err != nil {
		return fmt.Errorf("invalid sampling: %w", err)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", c.MaxDepth)
	}
	if c.MaxUniqueAttempts < 0 {
		return fmt.Errorf("max_unique_attempts must not be negative, got %d", c.MaxUniqueAttempts)
	}
	switch c.OutputFormat {
	case OutputAuto, OutputText, OutputPlain:
	default:
		return fmt.Errorf("unknown output format %q (auto|text|plain)", c.OutputFormat)
	}
	for i := range c.Targets {
		if err := ValidateTarget(&c.Targets[i]); err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
	}
	return nil
}

// ValidateTarget checks that a target names a registered exporter.
func ValidateTarget(t *TargetConfig) error {
	if t.Type == "" {
		return errors.New("target type is required")
	}
	t.Type = strings.ToLower(t.Type)
	if !export.IsRegistered(t.Type) {
		return &export.UnknownExporterError{Type: t.Type, Available: export.List()}
	}
	return nil
}

// ValidateSchemaFiles checks that schema files are configured and exist.
func (c *Config) ValidateSchemaFiles() error {
	if len(c.Schema) == 0 {
		return errors.New("no schema files configured\nHint: Set schema in leapseed.yaml or pass --schema")
	}
	for _, path := range c.Schema {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("schema file does not exist: %s\nHint: Create the file or use --schema to specify a different path", path)
		}
	}
	return nil
}
