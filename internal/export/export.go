// Package export writes a generated dataset to external targets.
//
// Exporters are registered by name and created from a Config. SQL targets
// share BaseSQLExporter, which creates one table per entity and inserts rows
// in dependency order inside a single transaction. Reference columns hold
// the key of the referenced row.
package export

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leapseed/internal/dataset"
	"github.com/leapstack-labs/leapseed/pkg/core"
)

// Source is a generated dataset ready for export.
type Source interface {
	Tables() []*dataset.Table
	Resolve(ref core.InstanceRef) (*dataset.Instance, error)
	// EnsureTable returns the named table, filling it first if it is
	// generated on demand.
	EnsureTable(name string) (*dataset.Table, error)
}

// Config holds the settings of one export target.
type Config struct {
	// Type selects the exporter (e.g., "sqlite", "postgres", "json").
	Type string `koanf:"type"`

	// Path is the output file for file-based targets. Empty means in-memory
	// for databases and stdout for documents.
	Path string `koanf:"path"`

	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	Username string `koanf:"user"`
	Password string `koanf:"password"`
	Schema   string `koanf:"schema"`

	// BatchSize is the number of rows per INSERT statement.
	BatchSize int `koanf:"batch_size"`

	// Options holds target-specific settings such as sslmode or drop.
	Options map[string]string `koanf:"options"`
}

// DefaultBatchSize is used when Config.BatchSize is not set.
const DefaultBatchSize = 500

// Exporter writes a dataset to one target.
type Exporter interface {
	// Open connects to the target.
	Open(ctx context.Context, cfg Config) error

	// Export writes every table of src.
	Export(ctx context.Context, src Source) error

	// Close releases the target.
	Close() error
}

// Run opens an exporter for cfg, writes src and closes it.
func Run(ctx context.Context, cfg Config, src Source, logger *slog.Logger) (err error) {
	exp, err := New(cfg, logger)
	if err != nil {
		return err
	}
	if err := exp.Open(ctx, cfg); err != nil {
		return err
	}
	defer func() {
		if cerr := exp.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return exp.Export(ctx, src)
}
