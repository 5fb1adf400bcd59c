package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// configKey is used to store the loaded config in context.
type configKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// EnvPrefix prefixes environment variables read into the configuration.
const EnvPrefix = "LEAPSEED_"

var configNames = []string{"leapseed.yaml", "leapseed.yml"}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// configExistsIn returns the config file in dir, if any.
func configExistsIn(dir string) string {
	for _, name := range configNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a leapseed config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for range maxUpwardSearchLevels {
		if configExistsIn(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root.
// Priority:
//  1. Directory of an explicit config file
//  2. Nearest ancestor of CWD holding leapseed.yaml
//  3. Current working directory
func inferProjectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}
	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	if root := findProjectRootUpward(cwd); root != "" {
		return root
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, in-memory or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// The environment named by the env setting overrides schema, seed and
// targets.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	configFileUsed = ""

	projectRoot := inferProjectRoot(cfgFile)

	// Schema paths given as flags are relative to CWD, not the project root.
	var flagSchema []string
	if flags != nil && flags.Changed("schema") {
		paths, _ := flags.GetStringSlice("schema")
		for _, p := range paths {
			abs, err := filepath.Abs(p)
			if err != nil {
				abs = p
			}
			flagSchema = append(flagSchema, abs)
		}
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"schema":   []string{DefaultSchemaFile},
		"sampling": DefaultSampling,
		"verbose":  false,
		"output":   DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	if cfgFile == "" {
		cfgFile = configExistsIn(projectRoot)
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		configFileUsed = cfgFile
	}

	// 3. Load environment variables (LEAPSEED_ prefix)
	// Transform: LEAPSEED_MAX_DEPTH -> max_depth
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	// 6. Apply the selected environment
	if cfg.Environment != "" {
		envCfg, ok := cfg.Environments[cfg.Environment]
		if !ok {
			return nil, fmt.Errorf("unknown environment %q\nAvailable environments: %v", cfg.Environment, environmentNames(cfg.Environments))
		}
		applyEnvironment(&cfg, envCfg, flags)
	}

	// 7. Resolve relative paths
	if flagSchema != nil {
		cfg.Schema = flagSchema
	} else {
		for i, p := range cfg.Schema {
			cfg.Schema[i] = resolvePathRelativeTo(p, projectRoot)
		}
	}
	cfg.SnapshotPath = resolvePathRelativeTo(cfg.SnapshotPath, projectRoot)
	for i := range cfg.Targets {
		t := &cfg.Targets[i]
		expandTargetEnvVars(t)
		t.Path = resolvePathRelativeTo(t.Path, projectRoot)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// applyEnvironment overrides cfg with the settings of envCfg. Explicit flags
// keep precedence.
func applyEnvironment(cfg *Config, envCfg EnvConfig, flags *pflag.FlagSet) {
	changed := func(name string) bool { return flags != nil && flags.Changed(name) }
	if len(envCfg.Schema) > 0 && !changed("schema") {
		cfg.Schema = slices.Clone(envCfg.Schema)
	}
	if envCfg.Seed != 0 && !changed("seed") {
		cfg.Seed = envCfg.Seed
	}
	if len(envCfg.Targets) > 0 {
		cfg.Targets = MergeTargets(cfg.Targets, envCfg.Targets)
	}
}

func environmentNames(envs map[string]EnvConfig) []string {
	names := make([]string, 0, len(envs))
	for name := range envs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() any {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// WithConfig returns a copy of ctx carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from the command context, falling back
// to the last loaded config and then to defaults.
func FromContext(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	if currentConfig != nil {
		return currentConfig
	}
	return &Config{
		Sampling:     DefaultSampling,
		OutputFormat: DefaultOutput,
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// expandTargetEnvVars expands environment variables in sensitive target fields.
func expandTargetEnvVars(t *TargetConfig) {
	t.Password = expandEnvVars(t.Password)
	t.Username = expandEnvVars(t.Username)
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
	t.Path = expandEnvVars(t.Path)
}

// MergeTargets overlays override onto base. Targets are matched by type;
// unmatched override targets are appended.
func MergeTargets(base, override []TargetConfig) []TargetConfig {
	merged := slices.Clone(base)
	for _, o := range override {
		i := slices.IndexFunc(merged, func(t TargetConfig) bool { return strings.EqualFold(t.Type, o.Type) })
		if i < 0 {
			merged = append(merged, o)
			continue
		}
		merged[i] = MergeTargetConfig(merged[i], o)
	}
	return merged
}

// MergeTargetConfig merges two target configs, with override taking precedence.
func MergeTargetConfig(base, override TargetConfig) TargetConfig {
	merged := base
	merged.Options = make(map[string]string, len(base.Options)+len(override.Options))
	for k, v := range base.Options {
		merged.Options[k] = v
	}

	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Path != "" {
		merged.Path = override.Path
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.Username != "" {
		merged.Username = override.Username
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.Schema != "" {
		merged.Schema = override.Schema
	}
	if override.BatchSize != 0 {
		merged.BatchSize = override.BatchSize
	}
	for k, v := range override.Options {
		merged.Options[k] = v
	}
	return merged
}
