package cmd

import (
	"github.com/mfenderov/postseek/internal/config"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole pipeline: crawl, process, embed and publish",
	Long: `Run crawl-pages, crawl-posts, process, embed and publish in order, stopping
at the first stage that fails. Every stage skips work cached by an earlier run.`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	deps, err := buildDeps(ctx, GetConfig(), config.NeedEmbeddings, config.NeedIndex)
	if err != nil {
		return err
	}
	return runStages(ctx, deps.Stages()...)
}
