package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/sushi-rag/internal/version"
)

// NewVersionCmd constructs the `sushi-rag version` subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sushi-rag version, git commit, and build date",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "sushi-rag "+version.String())
		},
	}
}
