package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapseed/internal/cli/config"
	"github.com/leapstack-labs/leapseed/internal/snapshot"
)

// GenerateOptions holds options for the generate command.
type GenerateOptions struct {
	Targets  []string
	Snapshot string
	NoExport bool
	Watch    bool
}

// watchDebounce is the quiet period after a schema change before regenerating.
const watchDebounce = 100 * time.Millisecond

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate data and export it to the configured targets",
		Long: `Generate a dataset from the schema files and export it.

Every configured target receives the same dataset. Use --target to export to a
subset of targets and --watch to regenerate whenever a schema file changes.`,
		Example: `  # Generate and export to every target in leapseed.yaml
  leapseed generate

  # Reproduce a run and export only to sqlite
  leapseed generate --seed 42 --target sqlite

  # Keep a snapshot of the generated dataset
  leapseed generate --snapshot out/seed.json

  # Regenerate on every schema change
  leapseed generate --watch`,
		Aliases: []string{"gen"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())
			logger := config.GetLogger(cmd.Context())
			if opts.Watch {
				return watchGenerate(cmd.Context(), cmd.OutOrStdout(), cfg, opts, logger)
			}
			_, err := runGenerate(cmd.Context(), cmd.OutOrStdout(), cfg, opts, logger)
			return err
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Targets, "target", "t", nil, "Export only to these target types")
	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "", "Write a snapshot of the dataset to this file")
	cmd.Flags().BoolVar(&opts.NoExport, "no-export", false, "Generate without exporting")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Regenerate when schema files change")

	return cmd
}

// runGenerate runs one generation and returns the schema files it read.
func runGenerate(ctx context.Context, w io.Writer, cfg *config.Config, opts *GenerateOptions, logger *slog.Logger) ([]string, error) {
	start := time.Now()

	eng, res, err := createEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	if _, err := eng.Generate(ctx); err != nil {
		return res.Files, fmt.Errorf("generation failed: %w", err)
	}

	if !opts.NoExport {
		targets, err := selectTargets(cfg.Targets, opts.Targets)
		if err != nil {
			return res.Files, err
		}
		if err := exportTargets(ctx, targets, eng, logger); err != nil {
			return res.Files, err
		}
	}

	snapshotPath := cfg.SnapshotPath
	if opts.Snapshot != "" {
		snapshotPath = opts.Snapshot
	}
	if snapshotPath != "" {
		if err := snapshot.WriteFile(snapshotPath, eng, eng.Seed()); err != nil {
			return res.Files, err
		}
		logger.Info("snapshot written", "path", snapshotPath)
	}

	renderDataset(w, cfg.OutputFormat, eng.Tables())
	_, _ = fmt.Fprintf(w, "Seed %d, completed in %s\n", eng.Seed(), time.Since(start).Round(time.Millisecond))
	return res.Files, nil
}

// watchGenerate runs generate, then reruns it whenever one of the schema
// files changes until ctx is cancelled. Failed reruns are reported and
// watching continues.
func watchGenerate(ctx context.Context, w io.Writer, cfg *config.Config, opts *GenerateOptions, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	tracked := make(map[string]bool)
	dirs := make(map[string]bool)
	track := func(files []string) error {
		for _, f := range files {
			tracked[f] = true
			// Watch directories so editors that replace files are seen.
			dir := filepath.Dir(f)
			if dirs[dir] {
				continue
			}
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			dirs[dir] = true
		}
		return nil
	}

	rerun := func() error {
		files, err := runGenerate(ctx, w, cfg, opts, logger)
		if err != nil {
			logger.Error("generate failed", "error", err.Error())
		}
		if files == nil {
			files = cfg.Schema
		}
		return track(files)
	}

	if err := rerun(); err != nil {
		return err
	}
	logger.Info("watching schema files", "files", len(tracked))

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !tracked[filepath.Clean(event.Name)] {
				continue
			}
			logger.Debug("schema changed", "file", event.Name)
			debounce = time.After(watchDebounce)
		case <-debounce:
			debounce = nil
			if err := rerun(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err.Error())
		}
	}
}
