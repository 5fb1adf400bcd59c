package commands

import (
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"

	"github.com/leapstack-labs/leapseed/internal/cli/config"
	"github.com/leapstack-labs/leapseed/internal/dataset"
)

// isTTY reports whether w is a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// tableStyle picks the table style for an output format. Auto uses a
// coloured style on terminals and plain ASCII otherwise.
func tableStyle(w io.Writer, format string) table.Style {
	switch format {
	case config.OutputText:
		return table.StyleLight
	case config.OutputPlain:
		return table.StyleDefault
	default:
		if isTTY(w) {
			return table.StyleColoredBright
		}
		return table.StyleDefault
	}
}

func renderTable(w io.Writer, format string, header table.Row, rows []table.Row, footer table.Row) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(tableStyle(w, format))
	t.AppendHeader(header)
	t.AppendRows(rows)
	if footer != nil {
		t.AppendFooter(footer)
	}
	t.Render()
}

// renderDataset prints one line per table with its row count.
func renderDataset(w io.Writer, format string, tables []*dataset.Table) {
	rows := make([]table.Row, 0, len(tables))
	total := 0
	for _, t := range tables {
		kind := "entity"
		if t.Entity.Join {
			kind = "join"
		}
		rows = append(rows, table.Row{t.Name, kind, t.Len()})
		total += t.Len()
	}
	renderTable(w, format, table.Row{"Table", "Kind", "Rows"}, rows, table.Row{"Total", "", total})
}
