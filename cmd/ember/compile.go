// Package main implements the ember CLI.
package main

import (
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] [path...]",
	Short: "Compile bound programs into module artifacts",
	Long: "Compile each input module's method bodies and write the object artifact " +
		"declared by its ember.toml. Paths may name manifests, bound-program files, " +
		"or directories; with no path the enclosing ember.toml is used.",
	RunE: compileExecution,
}

func compileExecution(cmd *cobra.Command, args []string) error {
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return err
	}
	coverage, err := cmd.Flags().GetBool("coverage")
	if err != nil {
		return err
	}
	sequential, err := cmd.Flags().GetBool("sequential")
	if err != nil {
		return err
	}
	return runPipeline(cmd, args, pipelineConfig{
		debug:      debug,
		coverage:   coverage,
		sequential: sequential,
	})
}

func init() {
	compileCmd.Flags().Bool("debug", false, "record debug side tables in the artifact")
	compileCmd.Flags().Bool("coverage", false, "instrument emitted bodies with block counters")
	compileCmd.Flags().Bool("sequential", false, "compile member bodies one at a time")
}
