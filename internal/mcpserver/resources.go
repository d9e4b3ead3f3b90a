package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatsURI addresses the knowledge-base stats resource.
const StatsURI = "sushi://knowledge-base/stats"

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         StatsURI,
		Name:        "knowledge-base-stats",
		Description: "Basic statistics about the sushi knowledge base collection",
		MIMEType:    "application/json",
	}, s.handleStats)
}

func (s *Server) handleStats(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     s.svc.Stats(ctx),
		}},
	}, nil
}
