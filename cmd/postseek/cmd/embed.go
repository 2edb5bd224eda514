package cmd

import (
	"github.com/mfenderov/postseek/internal/config"
	"github.com/spf13/cobra"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed processed posts that have no embedding yet",
	Long: `Send processed posts to the embedding provider in batches and cache the
vectors. A batch that still fails after retries stops the command; batches
already embedded stay cached, so rerunning resumes with the rest.`,
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	deps, err := buildDeps(ctx, GetConfig(), config.NeedEmbeddings)
	if err != nil {
		return err
	}
	return runStages(ctx, deps.Embed())
}
