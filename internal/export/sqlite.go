package export

import (
	"context"
	"log/slog"

	"github.com/Masterminds/squirrel"

	"github.com/leapstack-labs/leapseed/internal/model"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

func init() {
	Register("sqlite", func(logger *slog.Logger) Exporter { return NewSQLite(logger) })
}

// SQLiteDialect is the SQLite column mapping.
var SQLiteDialect = &Dialect{
	Name:        "sqlite",
	Placeholder: squirrel.Question,
	Quote:       `"`,
	Types: map[model.FieldType]string{
		model.TypeInteger: "INTEGER",
		model.TypeNumber:  "NUMERIC",
		model.TypeFloat:   "REAL",
		model.TypeBoolean: "INTEGER",
	},
	TextType: "TEXT",
}

// SQLiteExporter writes to a SQLite database file.
type SQLiteExporter struct {
	BaseSQLExporter
}

// NewSQLite creates a SQLite exporter.
func NewSQLite(logger *slog.Logger) *SQLiteExporter {
	return &SQLiteExporter{BaseSQLExporter: newBase(SQLiteDialect, logger)}
}

// Open connects to cfg.Path. An empty path uses an in-memory database.
func (e *SQLiteExporter) Open(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	e.Logger.Debug("connecting to sqlite", "path", path)
	if err := e.Connect(ctx, "sqlite", path, cfg); err != nil {
		return err
	}
	// an in-memory database lives on one connection
	e.DB.SetMaxOpenConns(1)
	return nil
}
