package testkit

import (
	"ember/internal/bound"
	"ember/internal/program"
	"ember/internal/source"
	"ember/internal/symbols"
)

// ProgramBuilder assembles small bound programs for tests: a symbol
// table, one source file, and per-method bodies. Spans advance
// monotonically so every node gets a distinct location.
type ProgramBuilder struct {
	Table *symbols.Table
	Files *source.FileSet
	Prog  *program.Program

	File source.FileID
	Ns   symbols.ID

	off uint32
}

// NewProgram builds an empty program with one file and one namespace.
func NewProgram() *ProgramBuilder {
	table := symbols.NewTable()
	files := source.NewFileSet()
	fid := files.Add("test.em")
	b := &ProgramBuilder{
		Table: table,
		Files: files,
		File:  fid,
	}
	b.Prog = program.New(table, files)
	b.Ns = table.Root()
	return b
}

// Span returns a fresh non-empty span.
func (b *ProgramBuilder) Span() source.Span {
	b.off += 10
	return source.Span{File: b.File, Start: b.off, End: b.off + 5}
}

// AddType declares a type in the root namespace.
func (b *ProgramBuilder) AddType(name string, flags symbols.Flags) symbols.ID {
	return b.Table.NewType(b.Ns, name, flags, b.Span())
}

// AddMethod declares a method with a result type.
func (b *ProgramBuilder) AddMethod(t symbols.ID, name string, flags symbols.Flags, result string, params ...symbols.Param) symbols.ID {
	return b.Table.NewMethod(t, name, flags, b.Span(), symbols.MethodInfo{
		Kind:   symbols.MethodOrdinary,
		Params: params,
		Result: result,
	})
}

// AddCtor declares a constructor.
func (b *ProgramBuilder) AddCtor(t symbols.ID, flags symbols.Flags, params ...symbols.Param) symbols.ID {
	return b.Table.NewMethod(t, ".ctor", flags, b.Span(), symbols.MethodInfo{
		Kind:   symbols.MethodConstructor,
		Params: params,
	})
}

// AddField declares a field.
func (b *ProgramBuilder) AddField(t symbols.ID, name string, flags symbols.Flags, info symbols.FieldInfo) symbols.ID {
	return b.Table.NewField(t, name, flags, b.Span(), info)
}

// SetBody attaches a body built from stmts, with the given locals.
func (b *ProgramBuilder) SetBody(m symbols.ID, locals []bound.Local, stmts ...*bound.Stmt) {
	b.Prog.SetBody(m, &bound.Body{
		Locals: locals,
		Block:  &bound.Block{Stmts: stmts, Span: b.Span()},
	})
}

// Lit builds an integer literal expression.
func (b *ProgramBuilder) Lit(text string) *bound.Expr {
	return &bound.Expr{Kind: bound.ExprLiteral, Type: "int", Span: b.Span(), Data: bound.LiteralData{Text: text}}
}

// Str builds a string literal expression.
func (b *ProgramBuilder) Str(text string) *bound.Expr {
	return &bound.Expr{Kind: bound.ExprLiteral, Type: "string", Span: b.Span(), Data: bound.LiteralData{Text: text}}
}

// Null builds a null literal.
func (b *ProgramBuilder) Null() *bound.Expr {
	return &bound.Expr{Kind: bound.ExprLiteral, Span: b.Span(), Data: bound.LiteralData{Text: "null"}}
}

// LocalRef builds a reference to a local.
func (b *ProgramBuilder) LocalRef(id bound.LocalID) *bound.Expr {
	return &bound.Expr{Kind: bound.ExprLocalRef, Span: b.Span(), Data: bound.LocalRefData{Local: id}}
}

// ParamRef builds a reference to a parameter.
func (b *ProgramBuilder) ParamRef(index uint32) *bound.Expr {
	return &bound.Expr{Kind: bound.ExprParamRef, Span: b.Span(), Data: bound.ParamRefData{Index: index}}
}

// FieldRef builds an implicit-this field reference.
func (b *ProgramBuilder) FieldRef(f symbols.ID) *bound.Expr {
	return &bound.Expr{Kind: bound.ExprFieldRef, Span: b.Span(), Data: bound.FieldRefData{Field: f}}
}

// DeclLocal builds a local declaration statement.
func (b *ProgramBuilder) DeclLocal(id bound.LocalID, init *bound.Expr) *bound.Stmt {
	return &bound.Stmt{Kind: bound.StmtLocalDecl, Span: b.Span(), Data: bound.LocalDeclData{Local: id, Init: init}}
}

// Assign builds an assignment statement.
func (b *ProgramBuilder) Assign(target, value *bound.Expr) *bound.Stmt {
	return &bound.Stmt{Kind: bound.StmtAssign, Span: b.Span(), Data: bound.AssignData{Target: target, Value: value}}
}

// ExprStmt wraps an expression in a statement.
func (b *ProgramBuilder) ExprStmt(e *bound.Expr) *bound.Stmt {
	return &bound.Stmt{Kind: bound.StmtExpr, Span: b.Span(), Data: bound.ExprStmtData{Expr: e}}
}

// Return builds a return statement; v may be nil.
func (b *ProgramBuilder) Return(v *bound.Expr) *bound.Stmt {
	return &bound.Stmt{Kind: bound.StmtReturn, Span: b.Span(), Data: bound.ReturnData{Value: v}}
}

// Yield builds a yield statement; v nil ends the iterator.
func (b *ProgramBuilder) Yield(v *bound.Expr) *bound.Stmt {
	return &bound.Stmt{Kind: bound.StmtYield, Span: b.Span(), Data: bound.YieldData{Value: v}}
}

// Await builds an await expression over operand.
func (b *ProgramBuilder) Await(operand *bound.Expr) *bound.Expr {
	return &bound.Expr{Kind: bound.ExprAwait, Span: b.Span(), Data: bound.AwaitData{Operand: operand}}
}

// If builds an if statement; els may be nil.
func (b *ProgramBuilder) If(cond *bound.Expr, then []*bound.Stmt, els []*bound.Stmt) *bound.Stmt {
	d := bound.IfData{Cond: cond, Then: &bound.Block{Stmts: then, Span: b.Span()}}
	if els != nil {
		d.Else = &bound.Block{Stmts: els, Span: b.Span()}
	}
	return &bound.Stmt{Kind: bound.StmtIf, Span: b.Span(), Data: d}
}

// Local describes a body local for SetBody.
func Local(name, typ string) bound.Local {
	return bound.Local{Name: name, Type: typ}
}
