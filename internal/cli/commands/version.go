package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// BuildInfo identifies a leapseed build.
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the leapseed version, commit and build date.`,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			if short {
				_, _ = fmt.Fprintln(w, info.Version)
				return
			}
			_, _ = fmt.Fprintf(w, "leapseed v%s\n", info.Version)
			_, _ = fmt.Fprintf(w, "  commit: %s\n  built:  %s\n  go:     %s %s/%s\n",
				info.GitCommit, info.BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")

	return cmd
}
