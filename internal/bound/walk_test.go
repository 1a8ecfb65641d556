package bound

import (
	"testing"

	"ember/internal/source"
)

func lit(text string) *Expr {
	return &Expr{Kind: ExprLiteral, Data: LiteralData{Text: text}}
}

func TestInspectVisitsNestedExprs(t *testing.T) {
	inner := lit("1")
	cond := &Expr{Kind: ExprBinary, Data: BinaryData{Op: "==", Left: inner, Right: lit("2")}}
	body := &Block{Stmts: []*Stmt{
		{Kind: StmtIf, Data: IfData{
			Cond: cond,
			Then: &Block{Stmts: []*Stmt{
				{Kind: StmtExpr, Data: ExprStmtData{Expr: lit("3")}},
			}},
		}},
	}}

	var texts []string
	Inspect(body, nil, func(e *Expr) bool {
		if d, ok := e.Data.(LiteralData); ok {
			texts = append(texts, d.Text)
		}
		return true
	})
	if len(texts) != 3 {
		t.Fatalf("visited %d literals, want 3: %v", len(texts), texts)
	}
}

func TestInspectVisitsLambdaBodies(t *testing.T) {
	lambda := &Expr{Kind: ExprLambda, Data: LambdaData{
		Body: &Block{Stmts: []*Stmt{
			{Kind: StmtReturn, Data: ReturnData{Value: lit("inside")}},
		}},
	}}
	body := &Block{Stmts: []*Stmt{{Kind: StmtExpr, Data: ExprStmtData{Expr: lambda}}}}

	found := false
	Inspect(body, nil, func(e *Expr) bool {
		if d, ok := e.Data.(LiteralData); ok && d.Text == "inside" {
			found = true
		}
		return true
	})
	if !found {
		t.Fatalf("lambda body not visited")
	}
}

func TestInspectSkipsChildrenOnFalse(t *testing.T) {
	body := &Block{Stmts: []*Stmt{
		{Kind: StmtIf, Data: IfData{
			Cond: lit("c"),
			Then: &Block{Stmts: []*Stmt{{Kind: StmtExpr, Data: ExprStmtData{Expr: lit("skipped")}}}},
		}},
	}}
	var visited int
	Inspect(body, func(s *Stmt) bool { return s.Kind != StmtIf }, func(e *Expr) bool {
		visited++
		return true
	})
	if visited != 0 {
		t.Fatalf("children of pruned statement still visited %d exprs", visited)
	}
}

func TestBlockPrependDoesNotMutate(t *testing.T) {
	orig := &Block{Stmts: []*Stmt{{Kind: StmtReturn, Data: ReturnData{}}}, Span: source.Span{File: 1, Start: 5, End: 9}}
	guard := &Stmt{Kind: StmtThrow, Data: ThrowData{}}
	out := orig.Prepend(guard)

	if len(orig.Stmts) != 1 {
		t.Fatalf("original block mutated")
	}
	if len(out.Stmts) != 2 || out.Stmts[0] != guard {
		t.Fatalf("prepend misplaced the new statement")
	}
	if out.Span != orig.Span {
		t.Fatalf("prepend lost the span")
	}
	if orig.Prepend() != orig {
		t.Fatalf("empty prepend should return the receiver")
	}
}

func TestBlockAppendOnNil(t *testing.T) {
	var b *Block
	s := &Stmt{Kind: StmtReturn, Data: ReturnData{}}
	out := b.Append(s)
	if len(out.Stmts) != 1 || out.Stmts[0] != s {
		t.Fatalf("append on nil block lost the statement")
	}
}

func TestBodyAppendLocals(t *testing.T) {
	b := &Body{Locals: []Local{{Name: "x"}}}
	out, first := b.AppendLocals(Local{Name: "tmp"}, Local{Name: "tmp2"})
	if first != 1 {
		t.Fatalf("first appended id = %d, want 1", first)
	}
	if len(out.Locals) != 3 || len(b.Locals) != 1 {
		t.Fatalf("AppendLocals must copy, got %d new / %d old", len(out.Locals), len(b.Locals))
	}
}

func TestBodyErrorMarker(t *testing.T) {
	var nilBody *Body
	if !nilBody.HasErrors() {
		t.Fatalf("nil body must read as erroring")
	}
	b := &Body{}
	if b.HasErrors() {
		t.Fatalf("fresh body has no errors")
	}
	marked := b.MarkError()
	if !marked.HasErrors() || b.HasErrors() {
		t.Fatalf("MarkError must not mutate the receiver")
	}
	if marked.MarkError() != marked {
		t.Fatalf("marking twice should be a no-op")
	}
}
