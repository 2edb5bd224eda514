package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mfenderov/postseek/internal/cache"
	"github.com/mfenderov/postseek/internal/config"
	"github.com/mfenderov/postseek/internal/markdown"
	"github.com/spf13/cobra"
)

var (
	searchLocal  bool
	searchFormat string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search published posts",
	Long: `Embed the query and return the closest posts from the vector index.

Examples:
  # Search the configured index
  postseek search "storage of spore syringes"

  # Search the local embedding cache without an index server
  postseek search "agar recipes" --local

  # JSON output for scripting
  postseek search "grain spawn" --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().BoolVar(&searchLocal, "local", false, "Score the local embedding cache instead of the index")
	searchCmd.Flags().StringVar(&searchFormat, "format", "text", "Output format: text or json")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg := GetConfig()
	if searchLocal {
		cfg.Index.Backend = "local"
	}
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

	resp, err := svc.Search(ctx, args[0])
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchFormat == "json" {
		output, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	if len(resp.Matches) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(resp.Matches))
	for i, m := range resp.Matches {
		fmt.Printf("─── Result %d ───\n", i+1)
		fmt.Printf("ID:      %s\n", m.ID)
		fmt.Printf("Score:   %.4f\n", m.Score)
		if m.Metadata == nil {
			fmt.Println()
			continue
		}
		fmt.Printf("Title:   %s\n", m.Metadata.Title)
		fmt.Printf("Forum:   %s\n", m.Metadata.Forum)
		fmt.Printf("Date:    %s\n", time.Unix(m.Metadata.When, 0).UTC().Format(time.DateOnly))

		content, err := markdown.Convert(m.Metadata.Content)
		if err != nil {
			content = m.Metadata.Content
		}
		if m.Metadata.RemovedContent {
			content = "(content too large for the index)"
		}
		// Truncate content for display
		if runes := []rune(content); len(runes) > 500 {
			content = string(runes[:500]) + "..."
		}
		fmt.Printf("Content:\n%s\n\n", content)
	}
	return nil
}
