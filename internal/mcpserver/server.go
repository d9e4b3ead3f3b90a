// Package mcpserver exposes the knowledge-base service as MCP tools and a
// stats resource, over stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/54b3r/sushi-rag/internal/params"
	"github.com/54b3r/sushi-rag/internal/version"
)

// Name is the MCP implementation name reported to clients.
const Name = "sushi_rag_mcp"

// Service is the knowledge-base surface the tools call into. Every method
// returns the final result text, failures included.
type Service interface {
	Query(ctx context.Context, in params.QueryInput, progress Progress) string
	Search(ctx context.Context, in params.SearchInput, progress Progress) string
	ListTopics(ctx context.Context, in params.TopicsInput) string
	Stats(ctx context.Context) string
}

// Server is the MCP server for the sushi knowledge base.
type Server struct {
	svc    Service
	logger *slog.Logger
	server *mcp.Server
}

// New creates the MCP server and registers its tools and resources.
func New(svc Service, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("mcpserver: service must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	impl := &mcp.Implementation{
		Name:    Name,
		Title:   "Sushi Knowledge Base",
		Version: version.Version,
	}

	s := &Server{
		svc:    svc,
		logger: logger,
		server: mcp.NewServer(impl, &mcp.ServerOptions{Logger: logger}),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the streamable HTTP handler for mounting under /mcp.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{Logger: s.logger})
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server {
	return s.server
}
