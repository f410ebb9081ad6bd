// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the publisher's tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/converter"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/syncer"
)

// Server wraps the MCP server with publishing tools.
type Server struct {
	mcp   *server.MCPServer
	store storage.Provider
	sync  *syncer.Syncer
}

// New creates a new MCP server with all tools registered.
func New(store storage.Provider, sync *syncer.Syncer) *Server {
	s := &Server{store: store, sync: sync}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("convert_markdown",
		mcp.WithDescription("Convert Markdown text to Confluence storage-format markup. "+
			"Local image references are resolved against the docs root."),
		mcp.WithString("markdown", mcp.Required(), mcp.Description("Markdown source text")),
	), s.convertMarkdown)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List the Markdown documents available for publishing."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("sync_document",
		mcp.WithDescription("Publish a single Markdown document to the wiki: "+
			"converts it and creates or updates the matching page."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (e.g. guides/intro.md)")),
	), s.syncDocument)

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

func (s *Server) convertMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	md, err := req.RequireString("markdown")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := converter.Render(md, s.store.Root())
	return mcp.NewToolResultText(res.Markup), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := ""
	if f, err := req.RequireString("folder"); err == nil {
		folder = f
	}

	metas, err := s.store.List(folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var paths []string
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) syncDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := s.sync.SyncFile(ctx, path)
	if res.Outcome == syncer.OutcomeFailed {
		return mcp.NewToolResultError(fmt.Sprintf("sync %s failed: %v", path, res.Err)), nil
	}

	out, _ := json.MarshalIndent(map[string]any{
		"path":    res.Path,
		"title":   res.Title,
		"outcome": res.Outcome,
		"page_id": res.PageID,
		"version": res.Version,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
