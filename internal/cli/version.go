package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// String returns the version with defaults for unset build values
func (v VersionInfo) String() string {
	return orDefault(v.Version, "dev")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// NewVersionCmd creates the version command
func NewVersionCmd(app *App) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := app.versionInfo
			out := cmd.OutOrStdout()

			if short {
				fmt.Fprintln(out, info)
				return nil
			}

			fmt.Fprintf(out, "dmaker version %s\n", info)
			fmt.Fprintf(out, "commit: %s\n", orDefault(info.Commit, "unknown"))
			fmt.Fprintf(out, "built: %s\n", orDefault(info.Date, "unknown"))
			fmt.Fprintf(out, "go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print only the version")

	return cmd
}
