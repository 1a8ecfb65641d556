package lower

import (
	"ember/internal/bound"
)

// mapBlockExprs rebuilds a block with fn applied to every expression,
// bottom-up. fn receives an expression whose children were already
// mapped and returns the replacement (often the same pointer).
// Statements and blocks are copied, never mutated.
func mapBlockExprs(b *bound.Block, fn func(*bound.Expr) *bound.Expr) *bound.Block {
	if b == nil {
		return nil
	}
	stmts := make([]*bound.Stmt, 0, len(b.Stmts))
	for _, s := range b.Stmts {
		stmts = append(stmts, mapStmtExprs(s, fn))
	}
	return &bound.Block{Stmts: stmts, Span: b.Span}
}

func mapStmtExprs(s *bound.Stmt, fn func(*bound.Expr) *bound.Expr) *bound.Stmt {
	if s == nil || s.Err {
		return s
	}
	out := &bound.Stmt{Kind: s.Kind, Span: s.Span}
	switch d := s.Data.(type) {
	case bound.LocalDeclData:
		out.Data = bound.LocalDeclData{Local: d.Local, Init: mapExpr(d.Init, fn)}
	case bound.ExprStmtData:
		out.Data = bound.ExprStmtData{Expr: mapExpr(d.Expr, fn)}
	case bound.AssignData:
		out.Data = bound.AssignData{Target: mapExpr(d.Target, fn), Value: mapExpr(d.Value, fn)}
	case bound.ReturnData:
		out.Data = bound.ReturnData{Value: mapExpr(d.Value, fn), Implicit: d.Implicit}
	case bound.IfData:
		out.Data = bound.IfData{Cond: mapExpr(d.Cond, fn), Then: mapBlockExprs(d.Then, fn), Else: mapBlockExprs(d.Else, fn)}
	case bound.WhileData:
		out.Data = bound.WhileData{Cond: mapExpr(d.Cond, fn), Body: mapBlockExprs(d.Body, fn)}
	case bound.BlockStmtData:
		out.Data = bound.BlockStmtData{Block: mapBlockExprs(d.Block, fn)}
	case bound.TryData:
		catches := make([]bound.CatchClause, 0, len(d.Catches))
		for _, c := range d.Catches {
			catches = append(catches, bound.CatchClause{Local: c.Local, Type: c.Type, Body: mapBlockExprs(c.Body, fn)})
		}
		out.Data = bound.TryData{Body: mapBlockExprs(d.Body, fn), Catches: catches, Finally: mapBlockExprs(d.Finally, fn)}
	case bound.ThrowData:
		out.Data = bound.ThrowData{Value: mapExpr(d.Value, fn)}
	case bound.YieldData:
		out.Data = bound.YieldData{Value: mapExpr(d.Value, fn)}
	case bound.SwitchData:
		cases := make([]bound.SwitchCase, 0, len(d.Cases))
		for _, c := range d.Cases {
			cases = append(cases, bound.SwitchCase{Match: c.Match, Body: mapBlockExprs(c.Body, fn)})
		}
		out.Data = bound.SwitchData{Value: mapExpr(d.Value, fn), Cases: cases, Default: mapBlockExprs(d.Default, fn)}
	default:
		out.Data = s.Data
	}
	return out
}

func mapExpr(e *bound.Expr, fn func(*bound.Expr) *bound.Expr) *bound.Expr {
	if e == nil || e.Err {
		return e
	}
	mapped := &bound.Expr{Kind: e.Kind, Type: e.Type, Span: e.Span}
	switch d := e.Data.(type) {
	case bound.FieldRefData:
		mapped.Data = bound.FieldRefData{Field: d.Field, Receiver: mapExpr(d.Receiver, fn)}
	case bound.UnaryData:
		mapped.Data = bound.UnaryData{Op: d.Op, Operand: mapExpr(d.Operand, fn)}
	case bound.BinaryData:
		mapped.Data = bound.BinaryData{Op: d.Op, Left: mapExpr(d.Left, fn), Right: mapExpr(d.Right, fn)}
	case bound.CallData:
		args := make([]*bound.Expr, len(d.Args))
		for i, a := range d.Args {
			args[i] = mapExpr(a, fn)
		}
		mapped.Data = bound.CallData{Method: d.Method, Receiver: mapExpr(d.Receiver, fn), Args: args}
	case bound.NewData:
		args := make([]*bound.Expr, len(d.Args))
		for i, a := range d.Args {
			args[i] = mapExpr(a, fn)
		}
		mapped.Data = bound.NewData{Ctor: d.Ctor, Args: args}
	case bound.LambdaData:
		mapped.Data = bound.LambdaData{
			Params:        d.Params,
			Result:        d.Result,
			Body:          mapBlockExprs(d.Body, fn),
			Captures:      d.Captures,
			ParamCaptures: d.ParamCaptures,
			Target:        d.Target,
		}
	case bound.AwaitData:
		mapped.Data = bound.AwaitData{Operand: mapExpr(d.Operand, fn)}
	case bound.InterpolatedData:
		parts := make([]bound.InterpolatedPart, 0, len(d.Parts))
		for _, p := range d.Parts {
			parts = append(parts, bound.InterpolatedPart{Text: p.Text, Expr: mapExpr(p.Expr, fn)})
		}
		mapped.Data = bound.InterpolatedData{Parts: parts}
	case bound.IsPatternData:
		mapped.Data = bound.IsPatternData{Operand: mapExpr(d.Operand, fn), Type: d.Type, Local: d.Local}
	default:
		mapped.Data = e.Data
	}
	return fn(mapped)
}

// substituteStmt replaces references to one local with another.
func substituteStmt(s *bound.Stmt, from, to bound.LocalID) *bound.Stmt {
	return mapStmtExprs(s, func(e *bound.Expr) *bound.Expr {
		if d, ok := e.Data.(bound.LocalRefData); ok && d.Local == from {
			return &bound.Expr{Kind: e.Kind, Type: e.Type, Span: e.Span, Data: bound.LocalRefData{Local: to}}
		}
		return e
	})
}
