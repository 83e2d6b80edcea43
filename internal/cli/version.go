package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information, set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "abiscan %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
