// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the catalog to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/catalog"
	"github.com/starford/ansuz/internal/match"
)

// Server wraps the MCP server with catalog tools.
type Server struct {
	mcp     *server.MCPServer
	store   *catalog.Store
	matcher *match.Matcher
}

// New creates a new MCP server with all catalog tools registered.
func New(store *catalog.Store, matcher *match.Matcher) *Server {
	s := &Server{store: store, matcher: matcher}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_catalog",
		mcp.WithDescription("Rank catalog entries against a free-text query. "+
			"Uses the same tiered substring + fuzzy matching the chat bot uses."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string (at least 2 characters)")),
	), s.searchCatalog)

	s.mcp.AddTool(mcp.NewTool("get_entry",
		mcp.WithDescription("Look up a single catalog entry by its exact title."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Entry title (case-insensitive)")),
	), s.getEntry)

	s.mcp.AddTool(mcp.NewTool("list_catalog",
		mcp.WithDescription("List every catalog entry in insertion order."),
	), s.listCatalog)

	s.mcp.AddTool(mcp.NewTool("catalog_stats",
		mcp.WithDescription("Return the total number of catalog entries."),
	), s.catalogStats)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchCatalog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cands := s.matcher.Match(query)
	if len(cands) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	out, _ := json.MarshalIndent(cands, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, ok := s.store.Get(title)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", title)), nil
	}
	out, _ := json.MarshalIndent(rec, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listCatalog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries := s.store.All()
	if len(entries) == 0 {
		return mcp.NewToolResultText("catalog is empty"), nil
	}
	var lines []string
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s - %s", e.Title, e.Record.Link))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) catalogStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(fmt.Sprintf("catalog entries: %d", s.store.Len())), nil
}
