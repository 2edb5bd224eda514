package cmd

import (
	"fmt"
	"strconv"

	"github.com/mfenderov/postseek/internal/processor"
	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Normalize cached posts into processed records",
	RunE:  runProcess,
}

var healTitlesCmd = &cobra.Command{
	Use:   "heal-titles",
	Short: "Fill missing titles on processed posts and embeddings from the page listings",
	RunE:  runHealTitles,
}

var viewPostCmd = &cobra.Command{
	Use:   "view-post <id>",
	Short: "Print the raw content of a cached post",
	Args:  cobra.ExactArgs(1),
	RunE:  runViewPost,
}

func init() {
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(healTitlesCmd)
	rootCmd.AddCommand(viewPostCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	deps, err := buildDeps(ctx, GetConfig())
	if err != nil {
		return err
	}
	return runStages(ctx, deps.Process())
}

func runHealTitles(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	deps, err := buildDeps(ctx, GetConfig())
	if err != nil {
		return err
	}

	healed, err := processor.New(deps.Stores).HealTitles(ctx)
	if err != nil {
		return fmt.Errorf("heal titles: %w", err)
	}
	fmt.Printf("Healed %d entries\n", healed)
	return nil
}

func runViewPost(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid post id %q: %w", args[0], err)
	}

	deps, err := buildDeps(ctx, GetConfig())
	if err != nil {
		return err
	}

	content, err := processor.New(deps.Stores).View(ctx, id)
	if err != nil {
		return err
	}
	fmt.Println(content)
	return nil
}
