package flow

import (
	"testing"

	"ember/internal/bound"
	"ember/internal/diag"
	"ember/internal/program"
	"ember/internal/source"
	"ember/internal/symbols"
)

func TestInitialFieldStates(t *testing.T) {
	table := symbols.NewTable()
	ty := table.NewType(table.Root(), "T", 0, source.Span{})
	initialized := table.NewField(ty, "a", 0, source.Span{}, symbols.FieldInfo{Type: "string", Nullable: true})
	nullInit := table.NewField(ty, "b", 0, source.Span{}, symbols.FieldInfo{Type: "string"})
	untouched := table.NewField(ty, "c", 0, source.Span{}, symbols.FieldInfo{Type: "string", Nullable: true})

	inits := []program.FieldInit{
		{Field: initialized, Value: &bound.Expr{Kind: bound.ExprLiteral, Data: bound.LiteralData{Text: "hi"}}},
		{Field: nullInit, Value: &bound.Expr{Kind: bound.ExprLiteral, Data: bound.LiteralData{Text: "null"}}},
	}
	states := InitialFieldStates(table, ty, inits)

	if states[initialized] {
		t.Fatalf("field with non-null initializer should start non-null")
	}
	if !states[nullInit] {
		t.Fatalf("field initialized to null should start maybe-null")
	}
	if !states[untouched] {
		t.Fatalf("uninitialized nullable field should keep declared nullability")
	}
}

func TestAnalyzeNullabilityWarnsOnMaybeNullReceiver(t *testing.T) {
	table := symbols.NewTable()
	ty := table.NewType(table.Root(), "T", 0, source.Span{})
	f := table.NewField(ty, "inner", 0, source.Span{}, symbols.FieldInfo{Type: "Inner", Nullable: true})
	g := table.NewField(ty, "leaf", 0, source.Span{}, symbols.FieldInfo{Type: "int"})

	recv := &bound.Expr{Kind: bound.ExprFieldRef, Span: source.Span{File: 1, Start: 5, End: 9},
		Data: bound.FieldRefData{Field: f}}
	deref := &bound.Expr{Kind: bound.ExprFieldRef, Data: bound.FieldRefData{Field: g, Receiver: recv}}
	body := &bound.Body{Block: &bound.Block{Stmts: []*bound.Stmt{
		{Kind: bound.StmtExpr, Data: bound.ExprStmtData{Expr: deref}},
	}}}

	entry := FieldNullState{f: true, g: false}
	bag := diag.NewBag(0)
	AnalyzeNullability(entry, body, table, bag)
	if !bag.HasWarnings() {
		t.Fatalf("maybe-null receiver not flagged")
	}
}

func TestAnalyzeNullabilityAssignmentClears(t *testing.T) {
	table := symbols.NewTable()
	ty := table.NewType(table.Root(), "T", 0, source.Span{})
	f := table.NewField(ty, "inner", 0, source.Span{}, symbols.FieldInfo{Type: "Inner", Nullable: true})
	g := table.NewField(ty, "leaf", 0, source.Span{}, symbols.FieldInfo{Type: "int"})

	assign := &bound.Stmt{Kind: bound.StmtAssign, Data: bound.AssignData{
		Target: &bound.Expr{Kind: bound.ExprFieldRef, Data: bound.FieldRefData{Field: f}},
		Value:  &bound.Expr{Kind: bound.ExprNew, Type: "Inner", Data: bound.NewData{}},
	}}
	deref := &bound.Stmt{Kind: bound.StmtExpr, Data: bound.ExprStmtData{Expr: &bound.Expr{
		Kind: bound.ExprFieldRef,
		Data: bound.FieldRefData{Field: g, Receiver: &bound.Expr{Kind: bound.ExprFieldRef, Data: bound.FieldRefData{Field: f}}},
	}}}
	body := &bound.Body{Block: &bound.Block{Stmts: []*bound.Stmt{assign, deref}}}

	entry := FieldNullState{f: true, g: false}
	bag := diag.NewBag(0)
	final := AnalyzeNullability(entry, body, table, bag)
	if bag.HasWarnings() {
		t.Fatalf("dereference after assignment still flagged: %v", bag.Items())
	}
	if final[f] {
		t.Fatalf("assignment of non-null value should clear the maybe-null state")
	}
}
