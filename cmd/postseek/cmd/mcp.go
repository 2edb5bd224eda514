package cmd

import (
	"fmt"

	"github.com/mfenderov/postseek/internal/cache"
	"github.com/mfenderov/postseek/internal/config"
	"github.com/mfenderov/postseek/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for post retrieval.

The server communicates via stdio and provides two tools:
  - search_posts: Semantic search over the published posts
  - get_post: Get a processed post by ID

Example:
  postseek mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg := GetConfig()
	if err := cfg.Require(config.NeedEmbeddings, config.NeedIndex); err != nil {
		return err
	}

	stores, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	svc, err := newSearchService(ctx, cfg, stores)
	if err != nil {
		return err
	}

	server := mcp.NewServer(mcp.Config{
		Name:    cfg.MCP.Name,
		Version: cfg.MCP.Version,
		TopK:    cfg.Search.TopK,
	}, svc, stores.Processed)

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
