package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/leapstack-labs/leapseed/internal/model"
)

func init() {
	Register("postgres", func(logger *slog.Logger) Exporter { return NewPostgres(logger) })
}

// PostgresDialect is the PostgreSQL column mapping.
var PostgresDialect = &Dialect{
	Name:        "postgres",
	Placeholder: squirrel.Dollar,
	Quote:       `"`,
	Types: map[model.FieldType]string{
		model.TypeInteger:  "BIGINT",
		model.TypeNumber:   "NUMERIC",
		model.TypeFloat:    "DOUBLE PRECISION",
		model.TypeBoolean:  "BOOLEAN",
		model.TypeUUID:     "UUID",
		model.TypeDate:     "DATE",
		model.TypeDatetime: "TIMESTAMP",
		model.TypeJSON:     "JSONB",
	},
	TextType: "TEXT",
}

// PostgresExporter writes to a PostgreSQL database.
type PostgresExporter struct {
	BaseSQLExporter
}

// NewPostgres creates a PostgreSQL exporter.
func NewPostgres(logger *slog.Logger) *PostgresExporter {
	return &PostgresExporter{BaseSQLExporter: newBase(PostgresDialect, logger)}
}

// Open connects to PostgreSQL through the pgx stdlib driver.
func (e *PostgresExporter) Open(ctx context.Context, cfg Config) error {
	e.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	connCfg, err := pgx.ParseConfig(buildPostgresDSN(cfg))
	if err != nil {
		return fmt.Errorf("invalid postgres connection settings: %w", err)
	}
	return e.attach(ctx, stdlib.OpenDB(*connCfg), cfg)
}

// buildPostgresDSN constructs a key=value PostgreSQL connection string.
func buildPostgresDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslmode)
	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}
