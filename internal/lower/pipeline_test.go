package lower

import (
	"testing"

	"ember/internal/bound"
	"ember/internal/diag"
	"ember/internal/symbols"
	"ember/internal/testkit"
)

// synthRecorder collects everything the stages synthesize.
type synthRecorder struct {
	types   []symbols.ID
	methods []SynthesizedMethod
}

func (r *synthRecorder) AddSynthesizedType(id symbols.ID) { r.types = append(r.types, id) }
func (r *synthRecorder) AddSynthesizedMethod(m SynthesizedMethod) {
	r.methods = append(r.methods, m)
}

func (r *synthRecorder) methodBody(id symbols.ID) *bound.Body {
	for _, m := range r.methods {
		if m.Method == id {
			return m.Body
		}
	}
	return nil
}

func newContext(b *testkit.ProgramBuilder, method symbols.ID) (*Context, *synthRecorder) {
	rec := &synthRecorder{}
	return &Context{
		Table:  b.Table,
		Method: method,
		Diags:  diag.NewBag(0),
		Synth:  rec,
	}, rec
}

func TestErrorBodySkipsAllStages(t *testing.T) {
	b := testkit.NewProgram()
	ty := b.AddType("T", 0)
	m := b.AddMethod(ty, "Run", 0, "")
	ctx, _ := newContext(b, m)

	var fired []Stage
	ctx.Hook = func(stage Stage, _ symbols.ID, _ *bound.Body) {
		fired = append(fired, stage)
	}

	body := (&bound.Body{Block: &bound.Block{}}).MarkError()
	res := Run(ctx, body)
	if res.Body != body {
		t.Fatalf("error-marked body was rewritten")
	}
	if len(fired) != 0 {
		t.Fatalf("stages ran on an error body: %v", fired)
	}
	if res.StateMachineType.IsValid() {
		t.Fatalf("machine synthesized for an error body")
	}
}

func TestStageOrderPlainMethod(t *testing.T) {
	b := testkit.NewProgram()
	ty := b.AddType("T", 0)
	m := b.AddMethod(ty, "Run", 0, "")
	ctx, _ := newContext(b, m)

	var fired []Stage
	ctx.Hook = func(stage Stage, _ symbols.ID, _ *bound.Body) {
		fired = append(fired, stage)
	}

	Run(ctx, &bound.Body{Block: &bound.Block{Stmts: []*bound.Stmt{b.Return(nil)}}})
	want := []Stage{StageDesugar, StageNullChecks}
	if len(fired) != len(want) {
		t.Fatalf("stages = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("stage %d = %v, want %v", i, fired[i], want[i])
		}
	}
}

func TestLambdaTriggersClosureStage(t *testing.T) {
	b := testkit.NewProgram()
	ty := b.AddType("T", 0)
	m := b.AddMethod(ty, "Run", 0, "")
	ctx, _ := newContext(b, m)

	var fired []Stage
	ctx.Hook = func(stage Stage, _ symbols.ID, _ *bound.Body) {
		fired = append(fired, stage)
	}

	lambda := &bound.Expr{Kind: bound.ExprLambda, Span: b.Span(), Data: bound.LambdaData{
		Result: "int",
		Body:   &bound.Block{Stmts: []*bound.Stmt{b.Return(b.Lit("1"))}},
	}}
	Run(ctx, &bound.Body{Block: &bound.Block{Stmts: []*bound.Stmt{b.ExprStmt(lambda)}}})

	want := []Stage{StageDesugar, StageClosures, StageNullChecks}
	if len(fired) != len(want) {
		t.Fatalf("stages = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("stage %d = %v, want %v", i, fired[i], want[i])
		}
	}
}

func TestDepthGuard(t *testing.T) {
	b := testkit.NewProgram()
	ty := b.AddType("T", 0)
	m := b.AddMethod(ty, "Deep", 0, "")
	ctx, _ := newContext(b, m)
	ctx.MaxDepth = 4

	inner := &bound.Block{Stmts: []*bound.Stmt{b.Return(nil)}}
	for i := 0; i < 16; i++ {
		inner = &bound.Block{Stmts: []*bound.Stmt{
			{Kind: bound.StmtBlock, Span: b.Span(), Data: bound.BlockStmtData{Block: inner}},
		}}
	}
	res := Run(ctx, &bound.Body{Block: inner})

	if !res.Body.HasErrors() {
		t.Fatalf("over-deep body not error-marked")
	}
	if !ctx.Diags.HasErrors() {
		t.Fatalf("no diagnostic for over-deep body")
	}
	found := false
	for _, d := range ctx.Diags.Items() {
		if d.Code == diag.LowerTooDeep {
			found = true
		}
	}
	if !found {
		t.Fatalf("depth diagnostic missing, got %v", ctx.Diags.Items())
	}
	if res.StateMachineType.IsValid() {
		t.Fatalf("machine synthesized despite depth failure")
	}
}

func TestDesugarInterpolatedString(t *testing.T) {
	b := testkit.NewProgram()
	ty := b.AddType("T", 0)
	m := b.AddMethod(ty, "Fmt", 0, "string")
	ctx, _ := newContext(b, m)

	interp := &bound.Expr{Kind: bound.ExprInterpolated, Type: "string", Span: b.Span(), Data: bound.InterpolatedData{
		Parts: []bound.InterpolatedPart{
			{Text: "n="},
			{Expr: b.Lit("42")},
		},
	}}
	body, flags := Desugar(ctx, &bound.Body{Block: &bound.Block{Stmts: []*bound.Stmt{b.Return(interp)}}})
	if flags.SeenLambda || flags.AwaitInHandler {
		t.Fatalf("unexpected flags %+v", flags)
	}

	ret := body.Block.Stmts[0].Data.(bound.ReturnData)
	bin, ok := ret.Value.Data.(bound.BinaryData)
	if !ok || bin.Op != "concat" {
		t.Fatalf("interpolation not lowered to concat: %+v", ret.Value.Data)
	}
	if lit, ok := bin.Left.Data.(bound.LiteralData); !ok || lit.Text != "n=" {
		t.Fatalf("left part = %+v", bin.Left.Data)
	}
	if lit, ok := bin.Right.Data.(bound.LiteralData); !ok || lit.Text != "42" {
		t.Fatalf("right part = %+v", bin.Right.Data)
	}
}

func TestDesugarFlagsAwaitInHandler(t *testing.T) {
	b := testkit.NewProgram()
	ty := b.AddType("T", 0)
	m := b.AddMethod(ty, "Cleanup", symbols.FlagAsync, "Task")
	ctx, _ := newContext(b, m)

	try := &bound.Stmt{Kind: bound.StmtTry, Span: b.Span(), Data: bound.TryData{
		Body: &bound.Block{},
		Finally: &bound.Block{Stmts: []*bound.Stmt{
			b.ExprStmt(b.Await(b.Lit("0"))),
		}},
	}}
	_, flags := Desugar(ctx, &bound.Body{Block: &bound.Block{Stmts: []*bound.Stmt{try}}})
	if !flags.AwaitInHandler {
		t.Fatalf("await inside finally not flagged")
	}
}
