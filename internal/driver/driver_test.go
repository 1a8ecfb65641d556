package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ember/internal/diag"
	"ember/internal/program"
	"ember/internal/symbols"
	"ember/internal/testkit"
)

func writeProgram(t *testing.T, path string) {
	t.Helper()
	b := testkit.NewProgram()
	ty := b.AddType("Widget", 0)
	m := b.AddMethod(ty, "Run", symbols.FlagStatic, "")
	b.SetBody(m, nil, b.Return(nil))
	if err := program.Save(b.Prog, path); err != nil {
		t.Fatalf("save program: %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestResolveInputBareProgram(t *testing.T) {
	m, err := ResolveInput("/tmp/mods/core.emp")
	if err != nil {
		t.Fatalf("ResolveInput: %v", err)
	}
	if m.Name != "core" {
		t.Fatalf("name = %q", m.Name)
	}
	if m.Output != filepath.Join("/tmp/mods", "core.embo") {
		t.Fatalf("output = %q", m.Output)
	}
}

func TestResolveInputManifestPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ember.toml")
	writeFile(t, path, "[module]\nname = \"app\"\nprogram = \"app.emp\"\n")

	m, err := ResolveInput(path)
	if err != nil {
		t.Fatalf("ResolveInput: %v", err)
	}
	if m.Name != "app" || m.Program != filepath.Join(dir, "app.emp") {
		t.Fatalf("manifest = %+v", m)
	}
}

func TestResolveInputDirectoryWalksUp(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ember.toml"), "[module]\nprogram = \"app.emp\"\n")
	nested := filepath.Join(dir, "src")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	m, err := ResolveInput(nested)
	if err != nil {
		t.Fatalf("ResolveInput: %v", err)
	}
	if m.Name != "app" {
		t.Fatalf("manifest = %+v", m)
	}
}

func TestResolveInputNoManifest(t *testing.T) {
	if _, err := ResolveInput(t.TempDir()); err == nil {
		t.Fatalf("directory without a manifest accepted")
	}
}

func TestListManifestsSorted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b", "ember.toml"), "[module]\nprogram = \"b.emp\"\n")
	writeFile(t, filepath.Join(dir, "a", "ember.toml"), "[module]\nprogram = \"a.emp\"\n")
	writeFile(t, filepath.Join(dir, "a", "notes.txt"), "not a manifest")

	got, err := ListManifests(dir)
	if err != nil {
		t.Fatalf("ListManifests: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a", "ember.toml"),
		filepath.Join(dir, "b", "ember.toml"),
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("ListManifests = %v, want %v", got, want)
	}
}

func TestCompileAllIndexAligned(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.emp")
	writeProgram(t, good)
	missing := filepath.Join(dir, "missing.emp")

	results, err := CompileAll(context.Background(), []string{good, missing}, Options{Jobs: 2})
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Input != good || results[0].Err != nil || results[0].HasErrors() {
		t.Fatalf("good module failed: %+v", results[0])
	}
	if results[1].Input != missing || results[1].Err == nil {
		t.Fatalf("missing module did not fail: %+v", results[1])
	}
	if !results[1].HasErrors() {
		t.Fatalf("HasErrors() = false for a failed module")
	}
}

func TestCompileAllEmptyInputs(t *testing.T) {
	results, err := CompileAll(context.Background(), nil, Options{})
	if err != nil || results != nil {
		t.Fatalf("CompileAll(nil) = %v, %v", results, err)
	}
}

func TestCompileAllRecordsTimings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.emp")
	writeProgram(t, path)

	results, err := CompileAll(context.Background(), []string{path}, Options{EnableTimings: true})
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	if results[0].Timings == nil || len(results[0].Timings.Phases) == 0 {
		t.Fatalf("timings not collected: %+v", results[0].Timings)
	}
}

func TestMergeDiagnostics(t *testing.T) {
	mk := func(code diag.Code) Result {
		bag := diag.NewBag(0)
		bag.Add(diag.Diagnostic{Severity: diag.SevWarning, Code: code, Message: "w"})
		var r Result
		r.Compile.Diagnostics = bag
		return r
	}
	merged := MergeDiagnostics([]Result{mk(diag.CompileUnusedField), mk(diag.FlowUnreachableCode), {}})
	if merged.Len() != 2 {
		t.Fatalf("merged %d diagnostics, want 2", merged.Len())
	}
}
