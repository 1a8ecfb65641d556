package main

import (
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [path...]",
	Short: "Run diagnostics without writing artifacts",
	Long: "Compile each input module for diagnostics only. Unchanged modules replay " +
		"their cached diagnostics instead of recompiling.",
	RunE: checkExecution,
}

func checkExecution(cmd *cobra.Command, args []string) error {
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	sequential, err := cmd.Flags().GetBool("sequential")
	if err != nil {
		return err
	}
	return runPipeline(cmd, args, pipelineConfig{
		check:      true,
		noCache:    noCache,
		sequential: sequential,
	})
}

func init() {
	checkCmd.Flags().Bool("no-cache", false, "ignore the on-disk diagnostics cache")
	checkCmd.Flags().Bool("sequential", false, "compile member bodies one at a time")
}
