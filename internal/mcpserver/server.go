// Package mcpserver exposes materialization as an MCP tool over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/scaffold/api"
	"github.com/agentic-research/scaffold/internal/engine"
	"github.com/agentic-research/scaffold/internal/payload"
)

// ToolName is the name clients call.
const ToolName = "materialize_project"

// Factory builds the engine for one call. outputDir is "" when the caller
// did not override it.
type Factory func(outputDir string) *engine.Engine

// Server wraps an MCP server with the materialize tool registered.
type Server struct {
	mcp     *server.MCPServer
	factory Factory
	// mu serializes calls: two runs on one session would race on its files.
	mu sync.Mutex
}

func New(version string, factory Factory) *Server {
	s := &Server{
		mcp:     server.NewMCPServer("scaffold", version, server.WithToolCapabilities(false)),
		factory: factory,
	}

	tool := mcp.NewTool(ToolName,
		mcp.WithDescription("Create or update a project tree from a JSON project structure. "+
			"Returns the run result (logs, errors, created directories and files) as JSON."),
		mcp.WithString("structure",
			mcp.Required(),
			mcp.Description("Project structure JSON: {sessionId?, language, runtime, folderStructure, code}"),
		),
		mcp.WithString("session_id",
			mcp.Description("Overrides the sessionId inside structure"),
		),
		mcp.WithString("output_dir",
			mcp.Description("Output root for this call"),
		),
	)
	s.mcp.AddTool(tool, s.HandleMaterialize)
	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio blocks serving JSON-RPC on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// HandleMaterialize is the materialize_project tool handler.
func (s *Server) HandleMaterialize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("structure")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sessionOverride := req.GetString("session_id", "")
	outputDir := req.GetString("output_dir", "")

	s.mu.Lock()
	defer s.mu.Unlock()

	eng := s.factory(outputDir)

	structure, err := payload.Parse([]byte(raw))
	var verr *engine.ValidationError
	switch {
	case errors.As(err, &verr):
		sessionID := sessionOverride
		if sessionID == "" && structure != nil {
			sessionID = structure.SessionID
		}
		return resultJSON(eng.Reject(sessionID, verr.Problems))
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}

	if sessionOverride != "" {
		structure.SessionID = sessionOverride
	}
	return resultJSON(eng.Materialize(ctx, structure))
}

func resultJSON(res api.Result) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, err
	}
	out := mcp.NewToolResultText(string(data))
	out.IsError = !res.Success
	return out, nil
}
