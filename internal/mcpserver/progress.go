package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/54b3r/sushi-rag/internal/kb"
)

// Progress is the progress sink handed to long-running tools.
type Progress = kb.Progress

// notifier forwards progress to the calling session. Updates are dropped
// when the client did not send a progress token.
type notifier struct {
	session *mcp.ServerSession
	token   any
	logger  *slog.Logger
}

func (s *Server) progressFor(req *mcp.CallToolRequest) Progress {
	if req == nil || req.Session == nil || req.Params == nil {
		return kb.NopProgress{}
	}
	token := req.Params.GetProgressToken()
	if token == nil {
		return kb.NopProgress{}
	}
	return &notifier{session: req.Session, token: token, logger: s.logger}
}

// Report implements Progress.
func (n *notifier) Report(ctx context.Context, progress float64, message string) {
	err := n.session.NotifyProgress(ctx, &mcp.ProgressNotificationParams{
		ProgressToken: n.token,
		Progress:      progress,
		Total:         1.0,
		Message:       message,
	})
	if err != nil {
		n.logger.Debug("mcpserver: progress notification failed", slog.Any("error", err))
	}
}
