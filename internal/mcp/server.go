// Package mcp exposes post search to MCP clients over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mfenderov/postseek/internal/cache"
	"github.com/mfenderov/postseek/pkg/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
	TopK    int // upper bound for the search limit
}

// Searcher answers a query.
type Searcher interface {
	Search(ctx context.Context, query string) (*models.QueryResponse, error)
}

// Server wraps the MCP server with the search service and the processed post cache.
type Server struct {
	mcpServer *server.MCPServer
	searcher  Searcher
	processed *cache.Store
	topK      int
}

// NewServer creates a new MCP server with search tools.
func NewServer(config Config, searcher Searcher, processed *cache.Store) *Server {
	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	topK := config.TopK
	if topK <= 0 {
		topK = 20
	}
	s := &Server{
		mcpServer: mcpServer,
		searcher:  searcher,
		processed: processed,
		topK:      topK,
	}

	searchTool := mcp.NewTool("search_posts",
		mcp.WithDescription("Semantic search over the archived forum posts. Returns the closest posts with title, forum, date and HTML content."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of results to return (default and maximum: %d)", topK)),
		),
	)
	mcpServer.AddTool(searchTool, s.searchHandler)

	getPostTool := mcp.NewTool("get_post",
		mcp.WithDescription("Get a processed post by its numeric ID"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Post ID to retrieve"),
		),
	)
	mcpServer.AddTool(getPostTool, s.getPostHandler)

	return s
}

// searchHandler handles the search_posts tool call.
func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	limit := req.GetInt("limit", s.topK)
	if limit <= 0 || limit > s.topK {
		limit = s.topK
	}

	resp, err := s.searcher.Search(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	matches := resp.Matches
	if len(matches) > limit {
		matches = matches[:limit]
	}

	result, err := json.Marshal(matches)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}

	return mcp.NewToolResultText(string(result)), nil
}

// getPostHandler handles the get_post tool call.
func (s *Server) getPostHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid post id: %s", raw)), nil
	}

	var post models.Post
	ok, err := s.processed.Get(ctx, cache.ProcessedPosts.Key(id), &post)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get post failed: %v", err)), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("post not found: %d", id)), nil
	}

	result, err := json.Marshal(post)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal post: %v", err)), nil
	}

	return mcp.NewToolResultText(string(result)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
