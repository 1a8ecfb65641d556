package emit

import (
	"path/filepath"
	"testing"

	"ember/internal/bound"
	"ember/internal/source"
	"ember/internal/symbols"
)

func TestBuildArtifactRequiresFrozen(t *testing.T) {
	m, _, _, _ := newTestModule()
	if _, err := BuildArtifact(m); err == nil {
		t.Fatalf("artifact built from a live module")
	}
}

func TestArtifactRoundtrip(t *testing.T) {
	m, table, run, _ := newTestModule()
	body := &bound.Body{Block: &bound.Block{Stmts: []*bound.Stmt{
		{Kind: bound.StmtReturn, Data: bound.ReturnData{}},
	}}}
	if err := m.SetMethodBody(run, body, DebugInfo{HoistedSlots: []string{"n"}}); err != nil {
		t.Fatalf("SetMethodBody: %v", err)
	}
	if err := m.SetEntryPoint(run); err != nil {
		t.Fatalf("SetEntryPoint: %v", err)
	}
	if err := m.PrivateImplementation().Add(HelperField{Name: "str#0", Type: "string", Data: []byte("hi")}); err != nil {
		t.Fatalf("Add helper: %v", err)
	}
	m.Freeze()

	a, err := BuildArtifact(m)
	if err != nil {
		t.Fatalf("BuildArtifact: %v", err)
	}
	path := filepath.Join(t.TempDir(), "app.embo")
	if err := SaveArtifact(a, path); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}
	got, err := LoadArtifact(path)
	if err != nil {
		t.Fatalf("LoadArtifact: %v", err)
	}

	if got.Module != "app" || got.Schema != artifactSchemaVersion {
		t.Fatalf("header = %q schema %d", got.Module, got.Schema)
	}
	if got.EntryPoint != table.FullName(run) {
		t.Fatalf("entry point = %q, want %q", got.EntryPoint, table.FullName(run))
	}
	if len(got.Methods) != 1 {
		t.Fatalf("artifact has %d methods", len(got.Methods))
	}
	am := got.Methods[0]
	if am.FullName != "Widget.Run" || am.Symbol != uint32(run) {
		t.Fatalf("method = %q symbol %d", am.FullName, am.Symbol)
	}
	if len(am.HoistedSlots) != 1 || am.HoistedSlots[0] != "n" {
		t.Fatalf("hoisted slots = %v", am.HoistedSlots)
	}
	if len(am.Body) == 0 {
		t.Fatalf("method body payload empty")
	}
	if len(got.Helpers) != 1 || got.Helpers[0].Name != "str#0" {
		t.Fatalf("helpers = %v", got.Helpers)
	}
}

func TestArtifactRecordsStateMachine(t *testing.T) {
	table := symbols.NewTable()
	ty := table.NewType(table.Root(), "Gen", 0, source.Span{})
	items := table.NewMethod(ty, "Items", symbols.FlagIterator, source.Span{}, symbols.MethodInfo{Kind: symbols.MethodOrdinary})
	machine := table.NewType(ty, "<Items>d__0", symbols.FlagSynthesized, source.Span{})
	m := NewModuleBuilder("app", table)

	if err := m.SetMethodBody(items, emptyBody(), DebugInfo{StateMachineType: machine}); err != nil {
		t.Fatalf("SetMethodBody: %v", err)
	}
	m.Freeze()
	a, err := BuildArtifact(m)
	if err != nil {
		t.Fatalf("BuildArtifact: %v", err)
	}
	if a.Methods[0].StateMachine != table.FullName(machine) {
		t.Fatalf("state machine = %q", a.Methods[0].StateMachine)
	}
}

func TestLoadArtifactRejectsOtherSchema(t *testing.T) {
	a := &Artifact{Schema: artifactSchemaVersion + 1, Module: "old"}
	path := filepath.Join(t.TempDir(), "old.embo")
	if err := SaveArtifact(a, path); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}
	if _, err := LoadArtifact(path); err == nil {
		t.Fatalf("stale schema accepted")
	}
}

func TestArtifactListsSynthesizedTypes(t *testing.T) {
	m, table, _, _ := newTestModule()
	machine := table.NewType(table.Root(), "<Run>d__0", symbols.FlagSynthesized, source.Span{})
	if err := m.RegisterSynthesizedType(machine); err != nil {
		t.Fatalf("RegisterSynthesizedType: %v", err)
	}
	m.Freeze()

	a, err := BuildArtifact(m)
	if err != nil {
		t.Fatalf("BuildArtifact: %v", err)
	}
	if len(a.Types) != 1 || a.Types[0] != table.FullName(machine) {
		t.Fatalf("Types = %v, want the machine full name", a.Types)
	}
}
