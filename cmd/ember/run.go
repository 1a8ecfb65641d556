package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ember/internal/buildpipeline"
	"ember/internal/diag"
	"ember/internal/driver"
	"ember/internal/emit"
	"ember/internal/observ"
	"ember/internal/ui"
)

type pipelineConfig struct {
	check      bool
	debug      bool
	coverage   bool
	noCache    bool
	sequential bool
}

// runPipeline is the shared body of `ember compile` and `ember check`.
func runPipeline(cmd *cobra.Command, args []string, cfg pipelineConfig) error {
	colorValue, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	timingsFlag, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}
	jobs, err := cmd.Root().PersistentFlags().GetInt("jobs")
	if err != nil {
		return err
	}
	uiValue, err := cmd.Root().PersistentFlags().GetString("ui")
	if err != nil {
		return err
	}
	uiModeValue, err := readUIMode(uiValue)
	if err != nil {
		return err
	}

	inputs := args
	if len(inputs) == 0 {
		inputs = []string{"."}
	}

	opts := driver.Options{
		Check:         cfg.check,
		Jobs:          jobs,
		Concurrent:    !cfg.sequential,
		EmitDebugInfo: cfg.debug,
		Coverage:      cfg.coverage,
		EnableTimings: timingsFlag,
	}
	if cfg.check && !cfg.noCache {
		// Best effort: a missing cache dir never blocks a check run.
		if cache, cacheErr := emit.OpenDiagCache("ember"); cacheErr == nil {
			opts.Cache = cache
		}
	}

	title := "ember compile"
	if cfg.check {
		title = "ember check"
	}

	var results []driver.Result
	if shouldUseTUI(uiModeValue) && len(inputs) > 0 {
		results, err = runCompileAllWithUI(cmd.Context(), title, inputs, opts)
	} else {
		results, err = driver.CompileAll(cmd.Context(), inputs, opts)
	}
	if err != nil {
		return err
	}

	renderer := diag.Renderer{Color: useColor(colorValue)}
	failed := 0
	for i := range results {
		res := &results[i]
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", res.Input, res.Err)
			failed++
			continue
		}
		renderer.Files = res.Compile.Files
		renderer.Render(os.Stdout, res.Compile.Diagnostics)
		if timingsFlag && res.Timings != nil {
			printTimings(os.Stdout, res.Manifest.Name, res.Timings)
		}
		if res.HasErrors() {
			failed++
			continue
		}
		switch {
		case cfg.check && res.Compile.FromCache:
			fmt.Fprintf(os.Stdout, "checked %s (cached)\n", res.Manifest.Name)
		case cfg.check:
			fmt.Fprintf(os.Stdout, "checked %s\n", res.Manifest.Name)
		case res.Manifest.Output != "":
			fmt.Fprintf(os.Stdout, "built %s\n", res.Manifest.Output)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d module(s) failed", failed, len(results))
	}
	return nil
}

type compileAllOutcome struct {
	results []driver.Result
	err     error
}

func runCompileAllWithUI(ctx context.Context, title string, inputs []string, opts driver.Options) ([]driver.Result, error) {
	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan compileAllOutcome, 1)

	go func() {
		optsCopy := opts
		optsCopy.Progress = buildpipeline.ChannelSink{Ch: events}
		results, err := driver.CompileAll(ctx, inputs, optsCopy)
		outcomeCh <- compileAllOutcome{results: results, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, moduleNames(inputs), events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}

// moduleNames resolves display names up front so progress rows exist
// before the first event arrives. Resolution failures fall back to the
// raw input and surface later as per-module errors.
func moduleNames(inputs []string) []string {
	names := make([]string, len(inputs))
	for i, input := range inputs {
		manifest, err := driver.ResolveInput(input)
		if err != nil || manifest.Name == "" {
			names[i] = input
			continue
		}
		names[i] = manifest.Name
	}
	return names
}

func printTimings(out io.Writer, name string, report *observ.Report) {
	fmt.Fprintf(out, "%s timings:\n", name)
	for _, p := range report.Phases {
		fmt.Fprintf(out, "  %-20s %7.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			fmt.Fprintf(out, "  // %s", p.Note)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "  %-20s %7.2f ms\n", "total", report.TotalMS)
}
