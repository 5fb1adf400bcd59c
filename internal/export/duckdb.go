package export

import (
	"context"
	"log/slog"

	"github.com/Masterminds/squirrel"

	"github.com/leapstack-labs/leapseed/internal/model"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

func init() {
	Register("duckdb", func(logger *slog.Logger) Exporter { return NewDuckDB(logger) })
}

// DuckDBDialect is the DuckDB column mapping.
var DuckDBDialect = &Dialect{
	Name:        "duckdb",
	Placeholder: squirrel.Question,
	Quote:       `"`,
	Types: map[model.FieldType]string{
		model.TypeInteger:  "BIGINT",
		model.TypeNumber:   "DOUBLE",
		model.TypeFloat:    "DOUBLE",
		model.TypeBoolean:  "BOOLEAN",
		model.TypeUUID:     "UUID",
		model.TypeDate:     "DATE",
		model.TypeDatetime: "TIMESTAMP",
		model.TypeJSON:     "JSON",
	},
	TextType: "VARCHAR",
}

// DuckDBExporter writes to a DuckDB database file.
type DuckDBExporter struct {
	BaseSQLExporter
}

// NewDuckDB creates a DuckDB exporter.
func NewDuckDB(logger *slog.Logger) *DuckDBExporter {
	return &DuckDBExporter{BaseSQLExporter: newBase(DuckDBDialect, logger)}
}

// Open connects to cfg.Path.
// Use ":memory:" or an empty path for an in-memory database.
func (e *DuckDBExporter) Open(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == ":memory:" {
		path = ""
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	e.Logger.Debug("connecting to duckdb", "path", path)
	if err := e.Connect(ctx, "duckdb", path, cfg); err != nil {
		return err
	}
	e.DB.SetMaxOpenConns(1)
	return nil
}
