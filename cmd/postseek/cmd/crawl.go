package cmd

import (
	"github.com/spf13/cobra"
)

var crawlPagesCmd = &cobra.Command{
	Use:   "crawl-pages",
	Short: "Cache the author's search-results pages",
	Long: `Fetch search-results pages from page 0 until the configured maximum or the
first page that is not a results page. Pages already cached are skipped, so an
interrupted crawl resumes where it stopped. Without a maximum, a run of failed
fetches also ends the crawl.`,
	RunE: runCrawlPages,
}

var crawlPostsCmd = &cobra.Command{
	Use:   "crawl-posts",
	Short: "Cache every post listed on the cached pages",
	RunE:  runCrawlPosts,
}

func init() {
	rootCmd.AddCommand(crawlPagesCmd)
	rootCmd.AddCommand(crawlPostsCmd)
}

func runCrawlPages(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	deps, err := buildDeps(ctx, GetConfig())
	if err != nil {
		return err
	}
	return runStages(ctx, deps.CrawlPages())
}

func runCrawlPosts(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	deps, err := buildDeps(ctx, GetConfig())
	if err != nil {
		return err
	}
	return runStages(ctx, deps.CrawlPosts())
}
