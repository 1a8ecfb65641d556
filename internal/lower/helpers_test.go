package lower

import (
	"encoding/binary"
	"strings"
	"testing"

	"ember/internal/bound"
	"ember/internal/symbols"
	"ember/internal/testkit"
)

// helperRecorder collects module helpers the stages produce.
type helperRecorder struct {
	helpers []Helper
}

func (r *helperRecorder) AddHelper(h Helper) error {
	r.helpers = append(r.helpers, h)
	return nil
}

func unaryOp(t *testing.T, s *bound.Stmt) string {
	t.Helper()
	es, ok := s.Data.(bound.ExprStmtData)
	if !ok {
		t.Fatalf("stmt = %T, want expression statement", s.Data)
	}
	u, ok := es.Expr.Data.(bound.UnaryData)
	if !ok {
		t.Fatalf("expr = %T, want unary", es.Expr.Data)
	}
	return u.Op
}

func TestCoverageCountsEveryBlock(t *testing.T) {
	b := testkit.NewProgram()
	ty := b.AddType("T", 0)
	m := b.AddMethod(ty, "Run", 0, "")
	ctx, _ := newContext(b, m)
	rec := &helperRecorder{}
	ctx.Helpers = rec

	body := &bound.Body{Block: &bound.Block{Stmts: []*bound.Stmt{
		b.If(b.Lit("1"),
			[]*bound.Stmt{b.ExprStmt(b.Lit("2"))},
			[]*bound.Stmt{b.ExprStmt(b.Lit("3"))},
		),
	}, Span: b.Span()}}

	out := InstrumentCoverage(ctx, body)
	if out == body {
		t.Fatalf("body was not instrumented")
	}
	if got := unaryOp(t, out.Block.Stmts[0]); got != "covhit:0" {
		t.Fatalf("method entry counter = %q, want covhit:0", got)
	}
	ifData := out.Block.Stmts[1].Data.(bound.IfData)
	if got := unaryOp(t, ifData.Then.Stmts[0]); got != "covhit:1" {
		t.Fatalf("then counter = %q, want covhit:1", got)
	}
	if got := unaryOp(t, ifData.Else.Stmts[0]); got != "covhit:2" {
		t.Fatalf("else counter = %q, want covhit:2", got)
	}

	if len(rec.helpers) != 1 {
		t.Fatalf("helpers = %d, want 1", len(rec.helpers))
	}
	h := rec.helpers[0]
	if !strings.HasPrefix(h.Name, "<Cov>") || h.Type != "int[]" {
		t.Fatalf("helper = %q type %q", h.Name, h.Type)
	}
	if n := binary.LittleEndian.Uint32(h.Data); n != 3 {
		t.Fatalf("counter table size = %d, want 3", n)
	}
}

func TestCoverageNeedsASink(t *testing.T) {
	b := testkit.NewProgram()
	ty := b.AddType("T", 0)
	m := b.AddMethod(ty, "Run", 0, "")
	ctx, _ := newContext(b, m)

	body := &bound.Body{Block: &bound.Block{Stmts: []*bound.Stmt{b.Return(nil)}, Span: b.Span()}}
	if out := InstrumentCoverage(ctx, body); out != body {
		t.Fatalf("instrumented without a helper sink")
	}
}

func TestCoverageStageFiresOnlyWhenRequested(t *testing.T) {
	b := testkit.NewProgram()
	ty := b.AddType("T", 0)
	m := b.AddMethod(ty, "Run", 0, "")
	ctx, _ := newContext(b, m)
	ctx.Helpers = &helperRecorder{}
	ctx.Coverage = true

	var fired []Stage
	ctx.Hook = func(stage Stage, _ symbols.ID, _ *bound.Body) {
		fired = append(fired, stage)
	}

	Run(ctx, &bound.Body{Block: &bound.Block{Stmts: []*bound.Stmt{b.Return(nil)}, Span: b.Span()}})
	want := []Stage{StageDesugar, StageCoverage, StageNullChecks}
	if len(fired) != len(want) {
		t.Fatalf("stages = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("stage %d = %v, want %v", i, fired[i], want[i])
		}
	}
}

func TestLongStringLiteralCached(t *testing.T) {
	b := testkit.NewProgram()
	ty := b.AddType("T", 0)
	m := b.AddMethod(ty, "Run", 0, "")
	ctx, _ := newContext(b, m)
	rec := &helperRecorder{}
	ctx.Helpers = rec

	long := strings.Repeat("x", cachedStringMin)
	body := &bound.Body{Block: &bound.Block{Stmts: []*bound.Stmt{
		b.ExprStmt(b.Str(long)),
		b.ExprStmt(b.Str("short")),
	}, Span: b.Span()}}

	out, _ := Desugar(ctx, body)

	if got := unaryOp(t, out.Block.Stmts[0]); !strings.HasPrefix(got, "cached:<S>") {
		t.Fatalf("long literal op = %q, want cached:<S> prefix", got)
	}
	if _, ok := out.Block.Stmts[1].Data.(bound.ExprStmtData).Expr.Data.(bound.LiteralData); !ok {
		t.Fatalf("short literal was interned")
	}
	if len(rec.helpers) != 1 {
		t.Fatalf("helpers = %d, want 1", len(rec.helpers))
	}
	if h := rec.helpers[0]; h.Type != "string" || string(h.Data) != long {
		t.Fatalf("helper = %q payload %d bytes", h.Type, len(h.Data))
	}
}

func TestSameStringSharesOneHelperName(t *testing.T) {
	b := testkit.NewProgram()
	ty := b.AddType("T", 0)
	m1 := b.AddMethod(ty, "A", 0, "")
	m2 := b.AddMethod(ty, "B", 0, "")

	long := strings.Repeat("y", cachedStringMin+10)
	rec := &helperRecorder{}
	for _, m := range []symbols.ID{m1, m2} {
		ctx, _ := newContext(b, m)
		ctx.Helpers = rec
		Desugar(ctx, &bound.Body{Block: &bound.Block{Stmts: []*bound.Stmt{
			b.ExprStmt(b.Str(long)),
		}, Span: b.Span()}})
	}
	if len(rec.helpers) != 2 || rec.helpers[0].Name != rec.helpers[1].Name {
		t.Fatalf("helper names differ for identical content: %v", rec.helpers)
	}
}
