package cmd

import (
	"github.com/mfenderov/postseek/internal/config"
	"github.com/spf13/cobra"
)

var onlyTruncated bool

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upsert cached embeddings into the vector index",
	Long: `Upsert every cached embedding into the vector index namespace. Posts whose
metadata is too large are published without their content and flagged.

Failed batches are listed by their index range and make the command exit
non-zero; rerunning publish upserts everything again.

Examples:
  # Publish everything
  postseek publish

  # Publish only the posts that need truncation
  postseek publish --only-truncated`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().BoolVar(&onlyTruncated, "only-truncated", false, "publish only posts whose content had to be removed")
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	deps, err := buildDeps(ctx, GetConfig(), config.NeedIndex)
	if err != nil {
		return err
	}
	return runStages(ctx, deps.Publish(onlyTruncated))
}
