package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/54b3r/sushi-rag/internal/kb"
	"github.com/54b3r/sushi-rag/internal/params"
)

const queryDescription = `Answer any question about sushi using the RAG knowledge base.

Performs semantic retrieval over the vector store and generates a grounded
answer via the configured LLM. Returns the answer with optional source
passages. JSON format: {"question": str, "answer": str, "sources": [...]}`

const searchDescription = `Search the sushi knowledge base by semantic similarity without LLM synthesis.

Useful when you want to browse raw passages rather than a generated answer.
Returns ranked chunks with similarity scores.
JSON format: [{"rank": int, "score": float, "content": str, "metadata": dict}]`

const topicsDescription = `List the unique topics and sources indexed in the sushi knowledge base.

Useful for understanding what the knowledge base covers before querying.
Returns a JSON object with the total count and the sorted topic/source labels.`

// readOnly marks a tool as a side-effect free lookup over the local knowledge base.
func readOnly(title string) *mcp.ToolAnnotations {
	no := false
	closed := false
	return &mcp.ToolAnnotations{
		Title:           title,
		ReadOnlyHint:    true,
		DestructiveHint: &no,
		IdempotentHint:  true,
		OpenWorldHint:   &closed,
	}
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        kb.ToolQuery,
		Description: queryDescription,
		InputSchema: params.QuerySchema(),
		Annotations: readOnly("Ask the Sushi Knowledge Base"),
	}, s.handleQuery)

	s.server.AddTool(&mcp.Tool{
		Name:        kb.ToolSearch,
		Description: searchDescription,
		InputSchema: params.SearchSchema(),
		Annotations: readOnly("Semantic Search: Sushi Knowledge Base"),
	}, s.handleSearch)

	s.server.AddTool(&mcp.Tool{
		Name:        kb.ToolTopics,
		Description: topicsDescription,
		InputSchema: params.TopicsSchema(),
		Annotations: readOnly("List Knowledge Base Topics"),
	}, s.handleTopics)
}

func (s *Server) handleQuery(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := params.Decode[params.QueryInput](req.Params.Arguments)
	if err != nil {
		return nil, err
	}
	return text(s.svc.Query(ctx, in, s.progressFor(req))), nil
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := params.Decode[params.SearchInput](req.Params.Arguments)
	if err != nil {
		return nil, err
	}
	return text(s.svc.Search(ctx, in, s.progressFor(req))), nil
}

func (s *Server) handleTopics(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := params.Decode[params.TopicsInput](req.Params.Arguments)
	if err != nil {
		return nil, err
	}
	return text(s.svc.ListTopics(ctx, in)), nil
}

func text(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}
