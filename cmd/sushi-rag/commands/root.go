// Package commands defines all Cobra CLI commands for the sushi-rag binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/sushi-rag/internal/audit"
	"github.com/54b3r/sushi-rag/internal/config"
	"github.com/54b3r/sushi-rag/internal/logging"
)

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	var (
		configPath string
		envFiles   []string
	)

	root := &cobra.Command{
		Use:   "sushi-rag",
		Short: "Sushi knowledge base served over the Model Context Protocol",
		Long: `sushi-rag answers questions about sushi (preparation, ingredients, etiquette,
restaurant menus) from a Qdrant-backed knowledge base, exposed as MCP tools.

Run 'sushi-rag ingest' to populate the collection, then 'sushi-rag serve' to
expose it over stdio (default) or streamable HTTP (--http).

Configuration comes from environment variables, a .env file and an optional
YAML file (~/.sushi-rag/config.yaml). Environment variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Logging env may itself come from the files, so resolve them with
			// a bootstrap logger first.
			boot := logging.New()

			loadedEnv, err := config.LoadDotEnv(boot, envFiles...)
			if err != nil {
				return err
			}
			path, err := config.Load(configPath, boot)
			if err != nil {
				return err
			}

			log := logging.New()
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))
			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), path, loadedEnv)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.sushi-rag/config.yaml)")
	root.PersistentFlags().StringArrayVar(&envFiles, "env-file", nil, "Dotenv file to load (repeatable, default: .env)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
