package lower

import (
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"

	"ember/internal/bound"
	"ember/internal/diag"
	"ember/internal/source"
)

// InstrumentCoverage prefixes every statement block with a counter
// increment and registers the method's counter table as a module
// helper. Counter indices are assigned in tree order, so the
// instrumented body is a function of the input body alone. Lambda
// bodies are untouched here; they are instrumented when their
// synthesized invoke methods run through the pipeline themselves.
func InstrumentCoverage(ctx *Context, body *bound.Body) *bound.Body {
	if body.HasErrors() || ctx.Helpers == nil {
		return body
	}
	in := &instrumenter{}
	block := in.block(body.Block)
	if in.next == 0 {
		return body
	}
	count, err := safecast.Conv[uint32](in.next)
	if err != nil {
		return body
	}
	table := make([]byte, 4)
	binary.LittleEndian.PutUint32(table, count)
	name := "<Cov>" + ctx.Table.FullName(ctx.Method)
	if err := ctx.Helpers.AddHelper(Helper{Name: name, Type: "int[]", Data: table}); err != nil {
		ctx.Diags.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.LowerHelperConflict,
			Message:  err.Error(),
			Primary:  body.Block.Span,
		})
		return body
	}
	return body.WithBlock(block)
}

type instrumenter struct {
	next int
}

// counter builds the hit statement for one block. The index is encoded
// in the operator so the back-end can address the table slot without a
// side channel.
func (in *instrumenter) counter(span source.Span) *bound.Stmt {
	idx := in.next
	in.next++
	return &bound.Stmt{Kind: bound.StmtExpr, Span: span, Data: bound.ExprStmtData{Expr: &bound.Expr{
		Kind: bound.ExprUnary,
		Type: "void",
		Span: span,
		Data: bound.UnaryData{Op: fmt.Sprintf("covhit:%d", idx)},
	}}}
}

func (in *instrumenter) block(b *bound.Block) *bound.Block {
	if b == nil {
		return nil
	}
	stmts := make([]*bound.Stmt, 0, len(b.Stmts)+1)
	stmts = append(stmts, in.counter(b.Span))
	for _, s := range b.Stmts {
		stmts = append(stmts, in.stmt(s))
	}
	return &bound.Block{Stmts: stmts, Span: b.Span}
}

func (in *instrumenter) stmt(s *bound.Stmt) *bound.Stmt {
	if s == nil || s.Err {
		return s
	}
	switch d := s.Data.(type) {
	case bound.IfData:
		return &bound.Stmt{Kind: s.Kind, Span: s.Span, Data: bound.IfData{
			Cond: d.Cond, Then: in.block(d.Then), Else: in.block(d.Else),
		}}
	case bound.WhileData:
		return &bound.Stmt{Kind: s.Kind, Span: s.Span, Data: bound.WhileData{
			Cond: d.Cond, Body: in.block(d.Body),
		}}
	case bound.BlockStmtData:
		return &bound.Stmt{Kind: s.Kind, Span: s.Span, Data: bound.BlockStmtData{Block: in.block(d.Block)}}
	case bound.TryData:
		catches := make([]bound.CatchClause, 0, len(d.Catches))
		for _, c := range d.Catches {
			catches = append(catches, bound.CatchClause{Local: c.Local, Type: c.Type, Body: in.block(c.Body)})
		}
		return &bound.Stmt{Kind: s.Kind, Span: s.Span, Data: bound.TryData{
			Body: in.block(d.Body), Catches: catches, Finally: in.block(d.Finally),
		}}
	case bound.SwitchData:
		cases := make([]bound.SwitchCase, 0, len(d.Cases))
		for _, c := range d.Cases {
			cases = append(cases, bound.SwitchCase{Match: c.Match, Body: in.block(c.Body)})
		}
		return &bound.Stmt{Kind: s.Kind, Span: s.Span, Data: bound.SwitchData{
			Value: d.Value, Cases: cases, Default: in.block(d.Default),
		}}
	default:
		return s
	}
}
