package lower

import (
	"testing"

	"ember/internal/bound"
	"ember/internal/symbols"
	"ember/internal/testkit"
)

func TestNullChecksGuardInDeclarationOrder(t *testing.T) {
	b := testkit.NewProgram()
	ty := b.AddType("Svc", 0)
	m := b.AddMethod(ty, "Handle", 0, "",
		symbols.Param{Name: "req", Type: "Request", NullCheck: true},
		symbols.Param{Name: "count", Type: "int"},
		symbols.Param{Name: "sink", Type: "Sink", NullCheck: true},
	)
	ctx, _ := newContext(b, m)

	marker := b.Return(nil)
	out := SynthesizeNullChecks(ctx, &bound.Body{Block: &bound.Block{Stmts: []*bound.Stmt{marker}}})

	if len(out.Block.Stmts) != 3 {
		t.Fatalf("body has %d statements, want 2 guards + original", len(out.Block.Stmts))
	}
	wantIdx := []uint32{0, 2}
	wantName := []string{"req", "sink"}
	for i := 0; i < 2; i++ {
		g, ok := out.Block.Stmts[i].Data.(bound.IfData)
		if !ok {
			t.Fatalf("statement %d is not a guard: %+v", i, out.Block.Stmts[i])
		}
		cond := g.Cond.Data.(bound.BinaryData)
		if cond.Op != "==" {
			t.Fatalf("guard %d op = %q", i, cond.Op)
		}
		if ref := cond.Left.Data.(bound.ParamRefData); ref.Index != wantIdx[i] {
			t.Fatalf("guard %d checks parameter %d, want %d", i, ref.Index, wantIdx[i])
		}
		throw, ok := g.Then.Stmts[0].Data.(bound.ThrowData)
		if !ok {
			t.Fatalf("guard %d does not throw", i)
		}
		nw := throw.Value.Data.(bound.NewData)
		if throw.Value.Type != "ArgumentNullException" {
			t.Fatalf("guard %d throws %q", i, throw.Value.Type)
		}
		arg := nw.Args[0].Data.(bound.LiteralData)
		if arg.Text != wantName[i] {
			t.Fatalf("guard %d names %q, want %q", i, arg.Text, wantName[i])
		}
	}
	if out.Block.Stmts[2] != marker {
		t.Fatalf("original body displaced by the guards")
	}
}

func TestNullChecksNoOpWithoutAnnotations(t *testing.T) {
	b := testkit.NewProgram()
	ty := b.AddType("Svc", 0)
	m := b.AddMethod(ty, "Handle", 0, "", symbols.Param{Name: "count", Type: "int"})
	ctx, _ := newContext(b, m)

	body := &bound.Body{Block: &bound.Block{Stmts: []*bound.Stmt{b.Return(nil)}}}
	if out := SynthesizeNullChecks(ctx, body); out != body {
		t.Fatalf("body without null-checked parameters was rewritten")
	}
}
