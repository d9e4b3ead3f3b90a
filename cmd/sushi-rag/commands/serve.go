package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/sushi-rag/internal/app"
	"github.com/54b3r/sushi-rag/internal/logging"
	"github.com/54b3r/sushi-rag/internal/mcpserver"
	"github.com/54b3r/sushi-rag/internal/server"
	"github.com/54b3r/sushi-rag/internal/tracing"
)

// NewServeCmd constructs the `sushi-rag serve` command, which exposes the
// knowledge-base tools over stdio or streamable HTTP.
func NewServeCmd() *cobra.Command {
	var (
		useHTTP bool
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sushi knowledge base as an MCP server",
		Long: `Serve the sushi knowledge base to MCP clients.

By default the server speaks MCP over stdin/stdout, which is what desktop
clients expect when they launch the binary themselves. With --http it serves
the streamable HTTP transport at /mcp, plus /api/health, /api/ready and
/metrics, with permissive CORS for browser-based clients.

Environment:
  QDRANT_HOST / QDRANT_PORT / QDRANT_COLLECTION   vector store (localhost:6334, sushi_menu)
  MODEL_PROVIDER / OPENAI_MODEL                   chat model (openai, gpt-4o-mini)
  EMBEDDING_PROVIDER / EMBEDDING_MODEL            embeddings (text-embedding-3-small)
  SUSHI_API_KEY                                   optional bearer token for /mcp
  SUSHI_RATE_LIMIT / SUSHI_RATE_BURST             per-client limits on /mcp (10/s, 20)

Examples:
  sushi-rag serve
  sushi-rag serve --http --port 8000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)

			flush := tracing.Enable(log, tracing.ConfigFromEnv())
			defer flush()

			a, err := app.New(ctx, app.SettingsFromEnv())
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = a.Close() }()

			mcpSrv, err := mcpserver.New(a.Service, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			if !useHTTP {
				log.Info("starting sushi rag mcp server", slog.String("transport", "stdio"))
				return mcpSrv.Run(ctx)
			}

			srv, err := server.New(mcpSrv.Handler(), &server.Config{
				Host:   host,
				Port:   port,
				Logger: log,
				Pingers: []server.Pinger{
					server.NewQdrantPinger(a.Store),
					server.NewCollectionPinger(a.Store),
				},
				RateLimit: getEnvFloat("SUSHI_RATE_LIMIT", 0),
				RateBurst: getEnvInt("SUSHI_RATE_BURST", 0),
				APIKey:    strings.TrimSpace(os.Getenv("SUSHI_API_KEY")),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			log.Info("starting sushi rag mcp server", slog.String("transport", "http"), slog.String("addr", srv.Addr()))
			return srv.Start(ctx)
		},
	}

	cmd.Flags().BoolVar(&useHTTP, "http", false, "Serve streamable HTTP instead of stdio")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "Host address to bind to (with --http)")
	cmd.Flags().IntVarP(&port, "port", "p", 8000, "TCP port to listen on (with --http)")

	return cmd
}
