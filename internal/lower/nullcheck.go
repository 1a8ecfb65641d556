package lower

import (
	"fortio.org/safecast"

	"ember/internal/bound"
	"ember/internal/source"
	"ember/internal/symbols"
)

// SynthesizeNullChecks prepends a guard for every parameter the method
// declared a null check on: if the argument is null, the body throws
// before running. Guards keep declaration order so failures report the
// leftmost offending parameter. Iterator methods never reach this
// stage; their machines validate arguments eagerly elsewhere.
func SynthesizeNullChecks(ctx *Context, body *bound.Body) *bound.Body {
	method := ctx.Table.MustGet(ctx.Method)
	if method.Method == nil {
		return body
	}

	var guards []*bound.Stmt
	for i, p := range method.Method.Params {
		if !p.NullCheck {
			continue
		}
		idx, err := safecast.Conv[uint32](i)
		if err != nil {
			continue
		}
		guards = append(guards, nullGuard(method.Span, idx, p))
	}
	if len(guards) == 0 {
		return body
	}

	block := body.Block
	if block == nil {
		block = &bound.Block{Span: method.Span}
	}
	return body.WithBlock(block.Prepend(guards...))
}

func nullGuard(span source.Span, index uint32, p symbols.Param) *bound.Stmt {
	cond := &bound.Expr{
		Kind: bound.ExprBinary,
		Type: "bool",
		Span: span,
		Data: bound.BinaryData{
			Op:    "==",
			Left:  &bound.Expr{Kind: bound.ExprParamRef, Type: p.Type, Span: span, Data: bound.ParamRefData{Index: index}},
			Right: &bound.Expr{Kind: bound.ExprLiteral, Span: span, Data: bound.LiteralData{Text: "null"}},
		},
	}
	throw := &bound.Stmt{
		Kind: bound.StmtThrow,
		Span: span,
		Data: bound.ThrowData{Value: &bound.Expr{
			Kind: bound.ExprNew,
			Type: "ArgumentNullException",
			Span: span,
			Data: bound.NewData{Args: []*bound.Expr{{
				Kind: bound.ExprLiteral,
				Type: "string",
				Span: span,
				Data: bound.LiteralData{Text: p.Name},
			}}},
		}},
	}
	return &bound.Stmt{
		Kind: bound.StmtIf,
		Span: span,
		Data: bound.IfData{
			Cond: cond,
			Then: &bound.Block{Stmts: []*bound.Stmt{throw}, Span: span},
		},
	}
}
