package driver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"ember/internal/buildpipeline"
	"ember/internal/diag"
	"ember/internal/emit"
	"ember/internal/observ"
	"ember/internal/project"
)

// Options configures a multi-module compile.
type Options struct {
	// Check runs diagnostics only across all inputs.
	Check bool
	// Jobs caps concurrently compiled modules; <=0 uses GOMAXPROCS.
	Jobs int
	// Concurrent fans out member compilation inside each module too.
	Concurrent bool
	// EmitDebugInfo includes debug side tables in artifacts.
	EmitDebugInfo bool
	// Coverage instruments emitted bodies with block counters.
	Coverage bool
	// Cache is the shared on-disk diagnostics cache, optional.
	Cache *emit.DiagCache
	// Progress receives events from every module, optional. The sink
	// must be safe for concurrent use.
	Progress buildpipeline.ProgressSink
	// EnableTimings collects per-module phase timings.
	EnableTimings bool
}

// Result is the outcome for one input module.
type Result struct {
	Input    string
	Manifest project.Manifest
	Compile  buildpipeline.CompileResult
	Timings  *observ.Report
	Err      error
}

// HasErrors reports whether the module failed or diagnosed errors.
func (r *Result) HasErrors() bool {
	if r.Err != nil {
		return true
	}
	return r.Compile.Diagnostics != nil && r.Compile.Diagnostics.HasErrors()
}

// ListManifests returns every ember.toml under dir, sorted for
// deterministic ordering.
func ListManifests(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Base(path) == "ember.toml" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ResolveInput turns a CLI argument into a manifest. A directory means
// "the ember.toml at or above it"; a .toml path is the manifest
// itself; anything else is treated as a bare bound-program file.
func ResolveInput(arg string) (project.Manifest, error) {
	switch {
	case strings.HasSuffix(arg, ".toml"):
		return project.LoadManifest(arg)
	case strings.HasSuffix(arg, ".emp"):
		name := strings.TrimSuffix(filepath.Base(arg), ".emp")
		return project.Manifest{
			Name:    name,
			Program: arg,
			Output:  filepath.Join(filepath.Dir(arg), name+".embo"),
		}, nil
	default:
		manifestPath, ok, err := project.FindEmberToml(arg)
		if err != nil {
			return project.Manifest{}, err
		}
		if !ok {
			return project.Manifest{}, fmt.Errorf("%s: no ember.toml found", arg)
		}
		return project.LoadManifest(manifestPath)
	}
}

// CompileAll compiles every input module in parallel. The returned
// slice is index-aligned with inputs regardless of completion order;
// per-module failures land in their Result, and only cancellation or
// an internal failure aborts the group.
func CompileAll(ctx context.Context, inputs []string, opts Options) ([]Result, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(inputs)))

	for i, input := range inputs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			res := &results[i]
			res.Input = input

			manifest, err := ResolveInput(input)
			if err != nil {
				res.Err = err
				return nil
			}
			res.Manifest = manifest

			var timer *observ.Timer
			if opts.EnableTimings {
				timer = observ.NewTimer()
			}
			req := &buildpipeline.CompileRequest{
				ProgramPath:   manifest.Program,
				ModuleName:    manifest.Name,
				OutputPath:    manifest.Output,
				Check:         opts.Check,
				Executable:    manifest.Executable,
				Concurrent:    opts.Concurrent,
				EmitDebugInfo: opts.EmitDebugInfo,
				Coverage:      opts.Coverage,
				Cache:         opts.Cache,
				Progress:      opts.Progress,
				Timer:         timer,
			}
			res.Compile, res.Err = buildpipeline.Compile(gctx, req)
			if timer != nil {
				report := timer.Report()
				res.Timings = &report
			}
			if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
				return res.Err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// MergeDiagnostics folds every module's diagnostics into one bag, in
// input order.
func MergeDiagnostics(results []Result) *diag.Bag {
	out := diag.NewBag(0)
	for i := range results {
		if results[i].Compile.Diagnostics != nil {
			out.Merge(results[i].Compile.Diagnostics)
		}
	}
	return out
}
