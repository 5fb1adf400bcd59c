package commands

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapseed/internal/cli/config"
	"github.com/leapstack-labs/leapseed/internal/engine"
	"github.com/leapstack-labs/leapseed/internal/export"
	"github.com/leapstack-labs/leapseed/internal/loader"
)

// loadSchema reads the configured schema files.
func loadSchema(cfg *config.Config, logger *slog.Logger) (*loader.Result, error) {
	if err := cfg.ValidateSchemaFiles(); err != nil {
		return nil, err
	}
	res, err := loader.New(logger).Load(cfg.Schema...)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	logger.Debug("schema loaded", "files", len(res.Files), "entities", len(res.Schema.Entities))
	return res, nil
}

// createEngine loads the schema and prepares an engine for it.
func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, *loader.Result, error) {
	res, err := loadSchema(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	ec := cfg.EngineConfig()
	ec.Logger = logger
	eng, err := engine.New(res.Schema, ec)
	if err != nil {
		return nil, nil, err
	}
	return eng, res, nil
}

// selectTargets returns the configured targets whose type is listed in
// names, or every target when names is empty.
func selectTargets(targets []config.TargetConfig, names []string) ([]config.TargetConfig, error) {
	if len(names) == 0 {
		return targets, nil
	}
	var out []config.TargetConfig
	for _, name := range names {
		i := slices.IndexFunc(targets, func(t config.TargetConfig) bool { return strings.EqualFold(t.Type, name) })
		if i < 0 {
			configured := make([]string, len(targets))
			for j, t := range targets {
				configured[j] = t.Type
			}
			return nil, fmt.Errorf("target %q is not configured\nConfigured targets: %v", name, configured)
		}
		out = append(out, targets[i])
	}
	return out, nil
}

// exportTargets writes src to every target concurrently.
func exportTargets(ctx context.Context, targets []config.TargetConfig, src export.Source, logger *slog.Logger) error {
	if len(targets) == 0 {
		return nil
	}
	// Fill on-demand tables before exporters read src concurrently.
	if _, err := export.Plan(src); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		g.Go(func() error {
			if err := export.Run(gctx, t, src, logger); err != nil {
				return fmt.Errorf("export to %s failed: %w", t.Type, err)
			}
			return nil
		})
	}
	return g.Wait()
}
