package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/leapstack-labs/leapseed/internal/model"
)

// Dialect describes how a SQL target names, types and parameterises columns.
type Dialect struct {
	Name        string
	Placeholder squirrel.PlaceholderFormat
	// Quote is the identifier quote character.
	Quote string
	// Types maps field types to column types. Unmapped types use TextType.
	Types    map[model.FieldType]string
	TextType string
}

// QuoteIdent quotes an identifier, doubling embedded quote characters.
func (d *Dialect) QuoteIdent(name string) string {
	return d.Quote + strings.ReplaceAll(name, d.Quote, d.Quote+d.Quote) + d.Quote
}

// ColumnType returns the column type for a field type.
func (d *Dialect) ColumnType(t model.FieldType) string {
	if ct, ok := d.Types[t]; ok {
		return ct
	}
	return d.TextType
}

// BaseSQLExporter provides the database/sql export shared by SQL targets.
// Embed it in concrete exporters and set DB in Open.
type BaseSQLExporter struct {
	DB      *sql.DB
	Cfg     Config
	Logger  *slog.Logger
	Dialect *Dialect
}

func newBase(d *Dialect, logger *slog.Logger) BaseSQLExporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return BaseSQLExporter{Dialect: d, Logger: logger}
}

// Connect opens driver with dsn and pings it.
func (b *BaseSQLExporter) Connect(ctx context.Context, driver, dsn string, cfg Config) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", b.Dialect.Name, err)
	}
	return b.attach(ctx, db, cfg)
}

func (b *BaseSQLExporter) attach(ctx context.Context, db *sql.DB, cfg Config) error {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping %s: %w", b.Dialect.Name, err)
	}
	b.DB = db
	b.Cfg = cfg
	return nil
}

// ensureDir creates the parent directory of a database file.
func ensureDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (b *BaseSQLExporter) Close() error {
	if b.DB != nil {
		b.Logger.Debug("closing database connection")
		return b.DB.Close()
	}
	return nil
}

// TableName returns the quoted, schema-qualified name of a table.
func (b *BaseSQLExporter) TableName(name string) string {
	if b.Cfg.Schema != "" {
		return b.Dialect.QuoteIdent(b.Cfg.Schema) + "." + b.Dialect.QuoteIdent(name)
	}
	return b.Dialect.QuoteIdent(name)
}

// CreateTableSQL returns the DDL for a table.
func (b *BaseSQLExporter) CreateTableSQL(l *Layout) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE IF NOT EXISTS ")
	sb.WriteString(b.TableName(l.Table.Name))
	sb.WriteString(" (\n")

	fields := make(map[string]*model.FieldDefinition, len(l.Table.Entity.Fields))
	for _, f := range l.Table.Entity.Fields {
		fields[f.Name] = f
	}
	for _, c := range l.Columns {
		sb.WriteString("  ")
		sb.WriteString(b.Dialect.QuoteIdent(c.Name))
		sb.WriteString(" ")
		sb.WriteString(b.Dialect.ColumnType(c.Type))
		if f, ok := fields[c.Name]; ok && c.Ref == nil {
			if f.Required || f.Key {
				sb.WriteString(" NOT NULL")
			}
			if f.Unique && !f.Key {
				sb.WriteString(" UNIQUE")
			}
		} else if c.Name == RowColumn {
			sb.WriteString(" NOT NULL")
		}
		sb.WriteString(",\n")
	}
	sb.WriteString("  PRIMARY KEY (")
	sb.WriteString(b.Dialect.QuoteIdent(l.Key().Name))
	sb.WriteString(")\n)")
	return sb.String()
}

// Export creates every table of src and inserts its rows in one
// transaction. With the "drop" option set, existing tables are dropped
// first.
func (b *BaseSQLExporter) Export(ctx context.Context, src Source) (err error) {
	if b.DB == nil {
		return errors.New("database connection not established")
	}
	layouts, err := Plan(src)
	if err != nil {
		return err
	}

	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if drop, _ := strconv.ParseBool(b.Cfg.Options["drop"]); drop {
		for i := len(layouts) - 1; i >= 0; i-- {
			stmt := "DROP TABLE IF EXISTS " + b.TableName(layouts[i].Table.Name)
			if _, err = tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to drop %s: %w", layouts[i].Table.Name, err)
			}
		}
	}

	for _, l := range layouts {
		if _, err = tx.ExecContext(ctx, b.CreateTableSQL(l)); err != nil {
			return fmt.Errorf("failed to create %s: %w", l.Table.Name, err)
		}
	}

	total := 0
	for _, l := range layouts {
		var n int
		if n, err = b.insert(ctx, tx, src, l); err != nil {
			return err
		}
		total += n
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}
	b.Logger.Info("export complete", "tables", len(layouts), "rows", total)
	return nil
}

// insert writes the rows of one table in batches.
func (b *BaseSQLExporter) insert(ctx context.Context, tx *sql.Tx, src Source, l *Layout) (int, error) {
	rows := l.Table.Rows
	if len(rows) == 0 {
		return 0, nil
	}
	cols := make([]string, len(l.Columns))
	for i, c := range l.Columns {
		cols[i] = b.Dialect.QuoteIdent(c.Name)
	}
	batch := b.Cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	for start := 0; start < len(rows); start += batch {
		end := min(start+batch, len(rows))
		q := squirrel.Insert(b.TableName(l.Table.Name)).
			Columns(cols...).
			PlaceholderFormat(b.Dialect.Placeholder)
		for _, inst := range rows[start:end] {
			vals, err := l.Values(src, inst)
			if err != nil {
				return 0, err
			}
			q = q.Values(vals...)
		}
		stmt, args, err := q.ToSql()
		if err != nil {
			return 0, fmt.Errorf("failed to build insert for %s: %w", l.Table.Name, err)
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return 0, fmt.Errorf("failed to insert into %s: %w", l.Table.Name, err)
		}
	}
	b.Logger.Debug("table exported", "table", l.Table.Name, "rows", len(rows))
	return len(rows), nil
}
