package commands

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapseed/internal/cli/config"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	Generate bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the schema files without exporting",
		Long: `Load the schema files, build the entity model and register every
generator, then print the entities and relationships.

With --generate the full pipeline also runs, which catches errors that only
show up while data is generated (for example exhausted unique values).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			logger := config.GetLogger(ctx)
			w := cmd.OutOrStdout()

			eng, res, err := createEngine(cfg, logger)
			if err != nil {
				return err
			}

			var entityRows []table.Row
			for _, e := range eng.Model().Entities() {
				if e.Join {
					continue
				}
				rows := strconv.Itoa(e.RowCount)
				switch {
				case e.Abstract:
					rows = "abstract"
				case e.RowCountFrom != "":
					rows = "@" + e.RowCountFrom
				}
				entityRows = append(entityRows, table.Row{e.Name, e.TableName, rows, len(e.Fields), e.Inherits})
			}
			renderTable(w, cfg.OutputFormat, table.Row{"Entity", "Table", "Rows", "Fields", "Inherits"}, entityRows, nil)

			var relRows []table.Row
			for _, r := range eng.Model().Relationships() {
				if r.Endpoint {
					continue
				}
				relRows = append(relRows, table.Row{r.From, r.To, r.Type, r.FromColumn, r.ToColumn})
			}
			if len(relRows) > 0 {
				renderTable(w, cfg.OutputFormat, table.Row{"From", "To", "Type", "Column", "Back column"}, relRows, nil)
			}

			if opts.Generate {
				if _, err := eng.Generate(ctx); err != nil {
					return fmt.Errorf("generation failed: %w", err)
				}
				renderDataset(w, cfg.OutputFormat, eng.Tables())
			}

			_, _ = fmt.Fprintf(w, "Schema is valid (%d files, %d generators)\n", len(res.Files), len(res.Schema.Generators))
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Generate, "generate", false, "Also run generation")

	return cmd
}
