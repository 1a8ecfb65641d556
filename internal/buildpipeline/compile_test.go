package buildpipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ember/internal/emit"
	"ember/internal/program"
	"ember/internal/symbols"
	"ember/internal/testkit"
)

// writeProgram builds a small valid program and saves it to disk.
func writeProgram(t *testing.T, dir string) string {
	t.Helper()
	b := testkit.NewProgram()
	ty := b.AddType("Widget", 0)
	m := b.AddMethod(ty, "Run", symbols.FlagStatic, "")
	b.SetBody(m, nil, b.Return(nil))
	path := filepath.Join(dir, "widget.emp")
	if err := program.Save(b.Prog, path); err != nil {
		t.Fatalf("save program: %v", err)
	}
	return path
}

// collectSink remembers every event it sees.
type collectSink struct {
	events []Event
}

func (s *collectSink) OnEvent(e Event) { s.events = append(s.events, e) }

func TestCompileWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	progPath := writeProgram(t, dir)
	outPath := filepath.Join(dir, "widget.embo")
	sink := &collectSink{}

	res, err := Compile(context.Background(), &CompileRequest{
		ProgramPath: progPath,
		ModuleName:  "widget",
		OutputPath:  outPath,
		Progress:    sink,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.Diagnostics.HasErrors() {
		t.Fatalf("unexpected errors: %v", res.Diagnostics.Items())
	}
	if res.Module == nil || !res.Module.Frozen() {
		t.Fatalf("module missing or not frozen")
	}
	if res.Files == nil {
		t.Fatalf("file set not surfaced for rendering")
	}

	a, err := emit.LoadArtifact(outPath)
	if err != nil {
		t.Fatalf("LoadArtifact: %v", err)
	}
	if a.Module != "widget" || len(a.Methods) != 1 {
		t.Fatalf("artifact = %q with %d methods", a.Module, len(a.Methods))
	}

	if !res.Timings.Has(StageLoad) || !res.Timings.Has(StageCompile) || !res.Timings.Has(StageEmit) {
		t.Fatalf("missing stage timings")
	}
	var stages []Stage
	for _, e := range sink.events {
		if e.Status == StatusDone {
			stages = append(stages, e.Stage)
		}
	}
	if len(stages) != 3 || stages[0] != StageLoad || stages[1] != StageCompile || stages[2] != StageEmit {
		t.Fatalf("done events = %v", stages)
	}
}

func TestCompileCheckSkipsArtifact(t *testing.T) {
	dir := t.TempDir()
	progPath := writeProgram(t, dir)
	outPath := filepath.Join(dir, "widget.embo")

	res, err := Compile(context.Background(), &CompileRequest{
		ProgramPath: progPath,
		ModuleName:  "widget",
		OutputPath:  outPath,
		Check:       true,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.Module != nil {
		t.Fatalf("check run built a module")
	}
	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Fatalf("check run wrote an artifact")
	}
}

func TestCompileCheckUsesDiagCache(t *testing.T) {
	dir := t.TempDir()
	progPath := writeProgram(t, dir)
	cache, err := emit.OpenDiagCacheAt(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("OpenDiagCacheAt: %v", err)
	}
	req := &CompileRequest{
		ProgramPath: progPath,
		ModuleName:  "widget",
		Check:       true,
		Cache:       cache,
	}

	first, err := Compile(context.Background(), req)
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	if first.FromCache {
		t.Fatalf("cold cache reported a hit")
	}

	second, err := Compile(context.Background(), req)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if !second.FromCache {
		t.Fatalf("unchanged module missed the cache")
	}
	if second.Diagnostics.Len() != first.Diagnostics.Len() {
		t.Fatalf("cached replay produced %d diagnostics, fresh run %d",
			second.Diagnostics.Len(), first.Diagnostics.Len())
	}
}

func TestCompileMissingProgramPath(t *testing.T) {
	if _, err := Compile(context.Background(), &CompileRequest{}); err == nil {
		t.Fatalf("empty request accepted")
	}
	if _, err := Compile(context.Background(), nil); err == nil {
		t.Fatalf("nil request accepted")
	}
}

func TestCompileMissingFile(t *testing.T) {
	_, err := Compile(context.Background(), &CompileRequest{
		ProgramPath: filepath.Join(t.TempDir(), "nope.emp"),
	})
	if err == nil {
		t.Fatalf("missing input accepted")
	}
}

func TestCompileRejectsGarbageInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.emp")
	if err := os.WriteFile(path, []byte("not a program"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Compile(context.Background(), &CompileRequest{ProgramPath: path}); err == nil {
		t.Fatalf("garbage input accepted")
	}
}
