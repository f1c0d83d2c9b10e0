// Package mcp exposes the index to AI agents over the Model Context
// Protocol.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/semlink/semlink/internal/index"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes vault similarity tools.
type Server struct {
	ranker  *index.Ranker
	builder *index.Builder
	topK    int
	mcp     *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies. topK
// is the default result count for related_notes.
func NewServer(ranker *index.Ranker, builder *index.Builder, topK int) *Server {
	if topK <= 0 {
		topK = index.DefaultTopK
	}
	s := &Server{
		ranker:  ranker,
		builder: builder,
		topK:    topK,
	}

	s.mcp = server.NewMCPServer(
		"semlink",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(relatedNotesTool, s.handleRelatedNotes)
	s.mcp.AddTool(reindexNoteTool, s.handleReindexNote)
	s.mcp.AddTool(rebuildIndexTool, s.handleRebuildIndex)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
