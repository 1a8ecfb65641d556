package buildpipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"ember/internal/compile"
	"ember/internal/diag"
	"ember/internal/emit"
	"ember/internal/observ"
	"ember/internal/program"
	"ember/internal/source"
)

// CompileRequest configures the shared compilation pipeline for one
// module.
type CompileRequest struct {
	// ProgramPath is the bound-program input file.
	ProgramPath string
	// ModuleName names the artifact; defaults to the input base name.
	ModuleName string
	// OutputPath receives the object artifact; empty means no artifact
	// even when Check is false.
	OutputPath string
	// Check runs diagnostics only: no module is built, no artifact is
	// written, and cached diagnostics are reused when available.
	Check bool
	// Executable requires an entry point.
	Executable bool
	// Concurrent fans member compilation out over goroutines.
	Concurrent bool
	// EmitDebugInfo includes debug side tables in the artifact.
	EmitDebugInfo bool
	// Coverage instruments emitted bodies with block counters.
	Coverage bool
	// Cache is the optional on-disk diagnostics cache for Check runs.
	Cache *emit.DiagCache
	// Progress receives stage events; may be nil.
	Progress ProgressSink
	// Timer collects phase timings; may be nil.
	Timer *observ.Timer
}

// CompileResult captures compilation outputs and stage timings.
type CompileResult struct {
	Module      *emit.ModuleBuilder // nil for check runs
	Diagnostics *diag.Bag
	// Files resolves diagnostic spans to paths; nil when cached
	// diagnostics were replayed without decoding the program.
	Files *source.FileSet
	// FromCache reports that a check run replayed cached diagnostics.
	FromCache bool
	Timings   Timings
}

// Compile loads a bound program, compiles every member body, and
// writes the object artifact unless the request is check-only.
func Compile(ctx context.Context, req *CompileRequest) (CompileResult, error) {
	result := CompileResult{Diagnostics: diag.NewBag(0)}
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing compile request")
	}
	if req.ProgramPath == "" {
		return result, fmt.Errorf("missing program path")
	}
	name := req.ModuleName
	if name == "" {
		name = req.ProgramPath
	}

	// Load.
	emitEvent(req.Progress, name, StageLoad, StatusWorking, nil, 0)
	loadStart := time.Now()
	data, err := os.ReadFile(req.ProgramPath)
	if err != nil {
		emitEvent(req.Progress, name, StageLoad, StatusError, err, time.Since(loadStart))
		return result, err
	}
	digest := emit.DigestBytes(data)

	// An unchanged module in a check run replays its cached
	// diagnostics without decoding, let alone recompiling.
	if req.Check && req.Cache != nil {
		hit, cacheErr := req.Cache.Get(digest, result.Diagnostics)
		if cacheErr == nil && hit {
			result.FromCache = true
			result.Timings.Set(StageLoad, time.Since(loadStart))
			emitEvent(req.Progress, name, StageLoad, StatusDone, nil, time.Since(loadStart))
			recordTimer(req.Timer, "load", time.Since(loadStart), "cached")
			return result, nil
		}
	}

	prog, err := program.Decode(data)
	if err != nil {
		emitEvent(req.Progress, name, StageLoad, StatusError, err, time.Since(loadStart))
		return result, err
	}
	result.Files = prog.Files
	loadDur := time.Since(loadStart)
	result.Timings.Set(StageLoad, loadDur)
	recordTimer(req.Timer, "load", loadDur, fmt.Sprintf("%d symbols", prog.Table.Len()))
	emitEvent(req.Progress, name, StageLoad, StatusDone, nil, loadDur)

	// Compile.
	emitEvent(req.Progress, name, StageCompile, StatusWorking, nil, 0)
	compileStart := time.Now()
	c := compile.NewCompilation(prog)
	var module *emit.ModuleBuilder
	if !req.Check {
		module = emit.NewModuleBuilder(name, prog.Table)
	}
	opts := compile.Options{
		Concurrent:        req.Concurrent,
		EmitDebugInfo:     req.EmitDebugInfo,
		Coverage:          req.Coverage,
		RequireEntryPoint: req.Executable,
	}
	if err := compile.CompileBodies(ctx, c, module, opts, result.Diagnostics); err != nil {
		emitEvent(req.Progress, name, StageCompile, StatusError, err, time.Since(compileStart))
		return result, err
	}
	result.Diagnostics.Sort()
	result.Diagnostics.Dedup()
	result.Module = module
	compileDur := time.Since(compileStart)
	result.Timings.Set(StageCompile, compileDur)
	recordTimer(req.Timer, "compile", compileDur, fmt.Sprintf("%d diagnostics", result.Diagnostics.Len()))
	emitEvent(req.Progress, name, StageCompile, StatusDone, nil, compileDur)

	if req.Check {
		if req.Cache != nil {
			// Best effort; a failed cache write never fails the run.
			_ = req.Cache.Put(digest, name, result.Diagnostics.Items())
		}
		return result, nil
	}

	// Emit.
	if result.Diagnostics.HasErrors() || req.OutputPath == "" {
		return result, nil
	}
	emitEvent(req.Progress, name, StageEmit, StatusWorking, nil, 0)
	emitStart := time.Now()
	artifact, err := emit.BuildArtifact(module)
	if err == nil {
		err = emit.SaveArtifact(artifact, req.OutputPath)
	}
	emitDur := time.Since(emitStart)
	if err != nil {
		emitEvent(req.Progress, name, StageEmit, StatusError, err, emitDur)
		return result, err
	}
	result.Timings.Set(StageEmit, emitDur)
	recordTimer(req.Timer, "emit", emitDur, req.OutputPath)
	emitEvent(req.Progress, name, StageEmit, StatusDone, nil, emitDur)
	return result, nil
}

func emitEvent(sink ProgressSink, module string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Module: module, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}

func recordTimer(t *observ.Timer, name string, dur time.Duration, note string) {
	if t == nil {
		return
	}
	t.Record(name, dur, note)
}
