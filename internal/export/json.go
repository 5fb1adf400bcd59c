package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapseed/pkg/core"
)

func init() {
	Register("json", func(logger *slog.Logger) Exporter { return NewJSON(logger) })
}

// JSONExporter writes one document holding a collection per table.
// References are written as the referenced row's key, back-references as
// arrays of keys.
type JSONExporter struct {
	Logger *slog.Logger
	// Out receives the document when no path is configured.
	Out io.Writer

	file *os.File
}

// NewJSON creates a JSON exporter writing to stdout by default.
func NewJSON(logger *slog.Logger) *JSONExporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &JSONExporter{Logger: logger, Out: os.Stdout}
}

// Open creates cfg.Path, or keeps Out when the path is empty.
func (e *JSONExporter) Open(_ context.Context, cfg Config) error {
	if cfg.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(cfg.Path) //nolint:gosec // output path comes from the user
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", cfg.Path, err)
	}
	e.file = f
	e.Out = f
	return nil
}

// Export writes the document.
func (e *JSONExporter) Export(ctx context.Context, src Source) error {
	layouts, err := Plan(src)
	if err != nil {
		return err
	}

	backRefs := backReferenceColumns(layouts)
	doc := make(map[string][]map[string]any, len(layouts))
	for _, l := range layouts {
		if err := ctx.Err(); err != nil {
			return err
		}
		backRefs := backRefs[l.Table.Entity.Name]
		rows := make([]map[string]any, 0, l.Table.Len())
		for _, inst := range l.Table.Rows {
			vals, err := l.Values(src, inst)
			if err != nil {
				return err
			}
			row := make(map[string]any, len(vals)+len(backRefs))
			for i, c := range l.Columns {
				row[c.Name] = vals[i]
			}
			for _, col := range backRefs {
				keys, err := referenceKeys(src, inst.References(col))
				if err != nil {
					return fmt.Errorf("%s.%s: %w", inst.Ref, col, err)
				}
				row[col] = keys
			}
			rows = append(rows, row)
		}
		doc[l.Table.Name] = rows
	}

	enc := json.NewEncoder(e.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to write JSON export: %w", err)
	}
	e.Logger.Info("export complete", "tables", len(layouts))
	return nil
}

// Close closes the output file, if any.
func (e *JSONExporter) Close() error {
	if e.file == nil {
		return nil
	}
	err := e.file.Close()
	e.file = nil
	return err
}

// backReferenceColumns returns, per parent entity, the columns in which it
// collects the children of the exported one relationships.
func backReferenceColumns(layouts []*Layout) map[string][]string {
	cols := make(map[string][]string)
	for _, l := range layouts {
		for _, c := range l.Columns {
			if c.Ref != nil && c.Ref.ToColumn != "" {
				cols[c.Ref.To] = append(cols[c.Ref.To], c.Ref.ToColumn)
			}
		}
	}
	return cols
}

func referenceKeys(src Source, refs []core.InstanceRef) ([]any, error) {
	keys := make([]any, 0, len(refs))
	for _, ref := range refs {
		inst, err := src.Resolve(ref)
		if err != nil {
			return nil, err
		}
		keys = append(keys, KeyOf(inst))
	}
	return keys, nil
}
