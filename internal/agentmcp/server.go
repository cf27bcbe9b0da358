// Package agentmcp exposes warden's registered tools over the Model Context
// Protocol (stdio transport). Every tools/call goes through the approval
// gate: auto-approved tools return their output inline, gated tools return
// the pending-action ID so the caller can report that approval is underway.
package agentmcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/arenvik/warden/internal/gate"
	"github.com/arenvik/warden/internal/tool"
	"github.com/arenvik/warden/pkg/message"
)

// Decider is the subset of the gate used by the MCP server.
type Decider interface {
	Decide(ctx context.Context, req gate.Request) (gate.Result, error)
}

// Config configures the MCP server.
type Config struct {
	// UserID attributes every tool call made through this server. Policy
	// overrides and pending actions are scoped to it. Required.
	UserID string

	// Version reported to clients during initialize.
	Version string

	// Logger defaults to slog.Default(). Must not write to stdout: the
	// stdio transport owns it.
	Logger *slog.Logger
}

// Server bridges the tool registry and the approval gate onto MCP.
type Server struct {
	gate      Decider
	userID    string
	sessionID string
	logger    *slog.Logger
	mcp       *server.MCPServer
}

// New builds an MCP server exposing every tool in the registry. Each server
// instance is one session: pending actions it queues carry a fresh session ID.
func New(registry *tool.Registry, decider Decider, cfg Config) (*Server, error) {
	if cfg.UserID == "" {
		return nil, errors.New("agentmcp: user id is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &Server{
		gate:      decider,
		userID:    cfg.UserID,
		sessionID: "mcp-" + uuid.NewString(),
		logger:    cfg.Logger,
	}

	s.mcp = server.NewMCPServer("warden", cfg.Version,
		server.WithToolCapabilities(false),
		server.WithInstructions(
			"Tools exposed here pass through warden's approval gate. "+
				"A result naming a pending-action ID means the action awaits "+
				"human approval and has not run yet."),
	)

	for _, d := range registry.Descriptors() {
		s.mcp.AddTool(
			mcp.NewToolWithRawSchema(d.Name, d.Description, d.Schema),
			s.handleCall(d.Name),
		)
	}

	return s, nil
}

// ServeStdio blocks serving MCP over stdin/stdout until the client closes
// the stream or ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio",
		"user", s.userID,
		"session_id", s.sessionID,
	)
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// handleCall adapts one registered tool into an MCP tool handler. The tool
// name is bound at registration; the request's own name field is ignored.
func (s *Server) handleCall(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argMap := req.GetArguments()
		if argMap == nil {
			argMap = map[string]any{}
		}
		args, err := json.Marshal(argMap)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := s.gate.Decide(ctx, gate.Request{
			UserID:    s.userID,
			SessionID: s.sessionID,
			ToolName:  name,
			Arguments: args,
		})
		if err != nil {
			switch {
			case errors.Is(err, tool.ErrUnknownTool),
				errors.Is(err, tool.ErrInvalidArguments):
				return mcp.NewToolResultError(err.Error()), nil
			default:
				return nil, err
			}
		}

		switch result.Kind {
		case gate.KindExecuted:
			if result.Output.IsError {
				return mcp.NewToolResultError(result.Output.Content), nil
			}
			return toCallResult(message.FromToolOutput(result.Output.Content)), nil

		case gate.KindDeferred:
			return mcp.NewToolResultText(fmt.Sprintf(
				"Queued for human approval (pending-action ID %s). "+
					"The action has not run yet.", result.PendingID)), nil

		case gate.KindRejected:
			return mcp.NewToolResultError("rejected: " + result.Reason), nil

		default:
			return nil, fmt.Errorf("agentmcp: unexpected gate result kind %q", result.Kind)
		}
	}
}

// toCallResult maps the normalized content union onto MCP content blocks.
// Structured tool output becomes one MCP block per content block; plain text
// stays a single text block.
func toCallResult(result message.Result) *mcp.CallToolResult {
	blocks := result.Flatten()
	contents := make([]mcp.Content, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case message.BlockText:
			contents = append(contents, mcp.NewTextContent(b.Text))
		case message.BlockImage:
			contents = append(contents, mcp.NewEmbeddedResource(mcp.TextResourceContents{
				URI:      b.URL,
				MIMEType: b.MIMEType,
			}))
		case message.BlockJSON:
			contents = append(contents, mcp.NewTextContent(string(b.Data)))
		}
	}
	return &mcp.CallToolResult{Content: contents}
}
