// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes Ansuz tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/veleth/ansuz/internal/anki"
	"github.com/veleth/ansuz/internal/api"
	"github.com/veleth/ansuz/internal/source"
)

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp    *server.MCPServer
	runner api.Runner
	store  anki.Store
}

// New creates a new MCP server with all Ansuz tools registered.
func New(runner api.Runner, store anki.Store) *Server {
	s := &Server{runner: runner, store: store}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("extract_cards",
		mcp.WithDescription("Preview the flashcards a piece of note text would produce. "+
			"Performs no remote calls."),
		mcp.WithString("name", mcp.Description("Display name for the note (used in card context)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text to extract cards from")),
	), s.extractCards)

	s.mcp.AddTool(mcp.NewTool("sync_decks",
		mcp.WithDescription("Run a full synchronization of the configured vault folders "+
			"into Anki decks. Returns the sync report."),
	), s.syncDecks)

	s.mcp.AddTool(mcp.NewTool("list_decks",
		mcp.WithDescription("List the deck names currently present in the flashcard store."),
	), s.listDecks)

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

func (s *Server) extractCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := "untitled"
	if n, nerr := req.RequireString("name"); nerr == nil && n != "" {
		name = n
	}
	items := s.runner.ExtractPreview(source.InlineSource{Name: name, Content: content})
	if len(items) == 0 {
		return mcp.NewToolResultText("no cards found"), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) syncDecks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.runner.Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sync failed: %v", err)), nil
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listDecks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.store.DeckNames(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(names) == 0 {
		return mcp.NewToolResultText("no decks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}
