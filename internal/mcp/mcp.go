// Package mcp implements the Model Context Protocol server for Sekkei.
//
// The MCP server exposes the same capabilities as the HTTP API through MCP
// tools, resources and prompts, so MCP-compatible agents can explore a design
// and read the graphs derived from it.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/sekkei/internal/ctxutil"
	"github.com/ashita-ai/sekkei/internal/graph"
	"github.com/ashita-ai/sekkei/internal/knowledge"
	"github.com/ashita-ai/sekkei/internal/service/exploration"
	"github.com/ashita-ai/sekkei/internal/service/graphs"
)

// Server wraps the MCP server with Sekkei's service layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	session   *exploration.Session
	graphSvc  *graphs.Service
	kb        knowledge.Base
	newIDs    func() graph.IDGenerator
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all tools, resources and
// prompts. newIDs may be nil; documents then get counter IDs.
func New(session *exploration.Session, graphSvc *graphs.Service, kb knowledge.Base, newIDs func() graph.IDGenerator, logger *slog.Logger, version string) *Server {
	if newIDs == nil {
		newIDs = func() graph.IDGenerator { return graph.NewCounter() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		session:  session,
		graphSvc: graphSvc,
		kb:       kb,
		newIDs:   newIDs,
		logger:   logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"sekkei",
		version,
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(true),
		mcpserver.WithRecovery(),
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("encode result: " + err.Error()), nil
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

// logged wraps a tool handler so every call is logged with the HTTP request ID
// it arrived on. Failed calls log at warn level with the error text.
func (s *Server) logged(tool string, h mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		start := time.Now()
		result, err := h(ctx, request)
		attrs := []any{
			"tool", tool,
			"request_id", ctxutil.RequestIDFromContext(ctx),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case err != nil:
			s.logger.Warn("mcp: tool failed", append(attrs, "error", err)...)
		case result != nil && result.IsError:
			s.logger.Warn("mcp: tool failed", append(attrs, "error", toolErrorText(result))...)
		default:
			s.logger.Debug("mcp: tool called", attrs...)
		}
		return result, err
	}
}

func toolErrorText(result *mcplib.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
