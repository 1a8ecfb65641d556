package emit

import (
	"testing"

	"ember/internal/bound"
	"ember/internal/source"
	"ember/internal/symbols"
)

func newTestModule() (*ModuleBuilder, *symbols.Table, symbols.ID, symbols.ID) {
	table := symbols.NewTable()
	ty := table.NewType(table.Root(), "Widget", 0, source.Span{})
	run := table.NewMethod(ty, "Run", 0, source.Span{}, symbols.MethodInfo{Kind: symbols.MethodOrdinary})
	stop := table.NewMethod(ty, "Stop", 0, source.Span{}, symbols.MethodInfo{Kind: symbols.MethodOrdinary})
	return NewModuleBuilder("app", table), table, run, stop
}

func emptyBody() *bound.Body {
	return &bound.Body{Block: &bound.Block{}}
}

func TestModuleBuilderRoundtrip(t *testing.T) {
	m, _, run, _ := newTestModule()
	want := emptyBody()
	if err := m.SetMethodBody(run, want, DebugInfo{HoistedSlots: []string{"x"}}); err != nil {
		t.Fatalf("SetMethodBody: %v", err)
	}
	body, debug, ok := m.MethodBody(run)
	if !ok || body != want {
		t.Fatalf("emitted body not returned")
	}
	if len(debug.HoistedSlots) != 1 || debug.HoistedSlots[0] != "x" {
		t.Fatalf("debug info lost: %+v", debug)
	}
}

func TestModuleBuilderMethodsSorted(t *testing.T) {
	m, _, run, stop := newTestModule()
	// Emit in reverse declaration order.
	if err := m.SetMethodBody(stop, emptyBody(), DebugInfo{}); err != nil {
		t.Fatalf("SetMethodBody: %v", err)
	}
	if err := m.SetMethodBody(run, emptyBody(), DebugInfo{}); err != nil {
		t.Fatalf("SetMethodBody: %v", err)
	}
	got := m.Methods()
	if len(got) != 2 || got[0] != run || got[1] != stop {
		t.Fatalf("Methods() = %v, want declaration order", got)
	}
}

func TestPartialMethodKeyedByDefinition(t *testing.T) {
	table := symbols.NewTable()
	ty := table.NewType(table.Root(), "Widget", 0, source.Span{})
	def := table.NewMethod(ty, "Part", symbols.FlagPartial, source.Span{}, symbols.MethodInfo{Kind: symbols.MethodOrdinary})
	impl := table.NewMethod(ty, "Part", symbols.FlagPartial, source.Span{}, symbols.MethodInfo{
		Kind:       symbols.MethodOrdinary,
		Definition: def,
	})
	m := NewModuleBuilder("app", table)

	want := emptyBody()
	if err := m.SetMethodBody(impl, want, DebugInfo{}); err != nil {
		t.Fatalf("SetMethodBody: %v", err)
	}
	// The body lands on the definition part, reachable through either.
	if body, _, ok := m.MethodBody(def); !ok || body != want {
		t.Fatalf("definition lookup failed")
	}
	if got := m.Methods(); len(got) != 1 || got[0] != def {
		t.Fatalf("Methods() = %v, want the definition only", got)
	}
}

func TestFreezeBlocksLateWrites(t *testing.T) {
	m, _, run, _ := newTestModule()
	m.Freeze()
	if err := m.SetMethodBody(run, emptyBody(), DebugInfo{}); err == nil {
		t.Fatalf("SetMethodBody succeeded on a frozen module")
	}
	if err := m.SetEntryPoint(run); err == nil {
		t.Fatalf("SetEntryPoint succeeded on a frozen module")
	}
	if !m.Frozen() {
		t.Fatalf("Frozen() = false after Freeze")
	}
}

func TestEntryPointDefaultsToNone(t *testing.T) {
	m, _, run, _ := newTestModule()
	if m.EntryPoint().IsValid() {
		t.Fatalf("fresh module already has an entry point")
	}
	if err := m.SetEntryPoint(run); err != nil {
		t.Fatalf("SetEntryPoint: %v", err)
	}
	if m.EntryPoint() != run {
		t.Fatalf("entry point not recorded")
	}
}

func TestRegisterSynthesizedTypeSortedAndFrozen(t *testing.T) {
	m, table, _, _ := newTestModule()
	a := table.NewType(table.Root(), "<Run>d__0", symbols.FlagSynthesized, source.Span{})
	b := table.NewType(table.Root(), "<Stop>d__1", symbols.FlagSynthesized, source.Span{})

	// Register out of declaration order.
	if err := m.RegisterSynthesizedType(b); err != nil {
		t.Fatalf("RegisterSynthesizedType: %v", err)
	}
	if err := m.RegisterSynthesizedType(a); err != nil {
		t.Fatalf("RegisterSynthesizedType: %v", err)
	}
	got := m.SynthesizedTypes()
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("SynthesizedTypes() = %v, want ID order", got)
	}

	m.Freeze()
	if err := m.RegisterSynthesizedType(a); err == nil {
		t.Fatalf("registration accepted after freeze")
	}
}
