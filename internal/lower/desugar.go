package lower

import (
	"crypto/sha256"
	"fmt"

	"ember/internal/bound"
	"ember/internal/diag"
)

// BodyFlags are side observations desugaring makes while it walks the
// tree; later stages consult them instead of re-scanning.
type BodyFlags struct {
	// SeenLambda is true when the body contains a lambda or local
	// function, which makes closure conversion necessary.
	SeenLambda bool
	// AwaitInHandler is true when an await occurs inside a catch or
	// finally block; handler normalization must then run before
	// closure conversion so it can still reach the handler locals.
	AwaitInHandler bool
}

// Desugar resolves high-level constructs into simpler bound-tree
// equivalents: interpolated strings become concatenation chains, type
// patterns become explicit tests plus casts. It leaves suspension
// points and lambdas alone, only recording them in the returned flags.
func Desugar(ctx *Context, body *bound.Body) (*bound.Body, BodyFlags) {
	if body.HasErrors() {
		return body, BodyFlags{}
	}
	d := &desugarer{ctx: ctx}
	block := d.block(body.Block, 0, false)
	out := body.WithBlock(block)
	if d.budgetBlown {
		out = out.MarkError()
	}
	return out, d.flags
}

type desugarer struct {
	ctx         *Context
	flags       BodyFlags
	budgetBlown bool
}

// overBudget reports (once) when rewrite recursion exceeds the budget.
func (d *desugarer) overBudget() {
	if !d.budgetBlown {
		d.budgetBlown = true
		d.ctx.Diags.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.LowerTooDeep,
			Message:  "expression nesting is too deep to compile",
		})
	}
}

func (d *desugarer) block(b *bound.Block, depth int, inHandler bool) *bound.Block {
	if b == nil {
		return nil
	}
	if depth > d.ctx.MaxDepth {
		d.overBudget()
		return &bound.Block{Stmts: []*bound.Stmt{bound.Bad(b.Span, "rewrite budget exceeded")}, Span: b.Span}
	}
	stmts := make([]*bound.Stmt, 0, len(b.Stmts))
	for _, s := range b.Stmts {
		stmts = append(stmts, d.stmt(s, depth+1, inHandler)...)
	}
	return &bound.Block{Stmts: stmts, Span: b.Span}
}

func (d *desugarer) stmt(s *bound.Stmt, depth int, inHandler bool) []*bound.Stmt {
	if s == nil {
		return nil
	}
	if s.Err {
		return []*bound.Stmt{s}
	}
	if depth > d.ctx.MaxDepth {
		d.overBudget()
		return []*bound.Stmt{bound.Bad(s.Span, "rewrite budget exceeded")}
	}
	switch data := s.Data.(type) {
	case bound.LocalDeclData:
		init := d.expr(data.Init, depth+1, inHandler)
		return []*bound.Stmt{{Kind: s.Kind, Span: s.Span, Data: bound.LocalDeclData{Local: data.Local, Init: init}}}
	case bound.ExprStmtData:
		return []*bound.Stmt{{Kind: s.Kind, Span: s.Span, Data: bound.ExprStmtData{Expr: d.expr(data.Expr, depth+1, inHandler)}}}
	case bound.AssignData:
		return []*bound.Stmt{{Kind: s.Kind, Span: s.Span, Data: bound.AssignData{
			Target: d.expr(data.Target, depth+1, inHandler),
			Value:  d.expr(data.Value, depth+1, inHandler),
		}}}
	case bound.ReturnData:
		return []*bound.Stmt{{Kind: s.Kind, Span: s.Span, Data: bound.ReturnData{
			Value:    d.expr(data.Value, depth+1, inHandler),
			Implicit: data.Implicit,
		}}}
	case bound.ThrowData:
		return []*bound.Stmt{{Kind: s.Kind, Span: s.Span, Data: bound.ThrowData{Value: d.expr(data.Value, depth+1, inHandler)}}}
	case bound.YieldData:
		return []*bound.Stmt{{Kind: s.Kind, Span: s.Span, Data: bound.YieldData{Value: d.expr(data.Value, depth+1, inHandler)}}}
	case bound.IfData:
		cond := d.expr(data.Cond, depth+1, inHandler)
		then := d.block(data.Then, depth+1, inHandler)
		// A type pattern with a designation binds its local at the top
		// of the matched branch.
		if data.Cond != nil {
			if pat, ok := data.Cond.Data.(bound.IsPatternData); ok && pat.Local != bound.NoLocalID {
				cast := &bound.Stmt{
					Kind: bound.StmtLocalDecl,
					Span: data.Cond.Span,
					Data: bound.LocalDeclData{
						Local: pat.Local,
						Init: &bound.Expr{
							Kind: bound.ExprUnary,
							Type: pat.Type,
							Span: data.Cond.Span,
							Data: bound.UnaryData{Op: "cast:" + pat.Type, Operand: d.expr(pat.Operand, depth+1, inHandler)},
						},
					},
				}
				then = then.Prepend(cast)
			}
		}
		return []*bound.Stmt{{Kind: s.Kind, Span: s.Span, Data: bound.IfData{
			Cond: cond,
			Then: then,
			Else: d.block(data.Else, depth+1, inHandler),
		}}}
	case bound.WhileData:
		return []*bound.Stmt{{Kind: s.Kind, Span: s.Span, Data: bound.WhileData{
			Cond: d.expr(data.Cond, depth+1, inHandler),
			Body: d.block(data.Body, depth+1, inHandler),
		}}}
	case bound.BlockStmtData:
		return []*bound.Stmt{{Kind: s.Kind, Span: s.Span, Data: bound.BlockStmtData{Block: d.block(data.Block, depth+1, inHandler)}}}
	case bound.TryData:
		body := d.block(data.Body, depth+1, inHandler)
		catches := make([]bound.CatchClause, 0, len(data.Catches))
		for _, c := range data.Catches {
			catches = append(catches, bound.CatchClause{
				Local: c.Local,
				Type:  c.Type,
				Body:  d.block(c.Body, depth+1, true),
			})
		}
		return []*bound.Stmt{{Kind: s.Kind, Span: s.Span, Data: bound.TryData{
			Body:    body,
			Catches: catches,
			Finally: d.block(data.Finally, depth+1, true),
		}}}
	case bound.SwitchData:
		value := d.expr(data.Value, depth+1, inHandler)
		cases := make([]bound.SwitchCase, 0, len(data.Cases))
		for _, c := range data.Cases {
			cases = append(cases, bound.SwitchCase{Match: c.Match, Body: d.block(c.Body, depth+1, inHandler)})
		}
		return []*bound.Stmt{{Kind: s.Kind, Span: s.Span, Data: bound.SwitchData{
			Value: value, Cases: cases, Default: d.block(data.Default, depth+1, inHandler),
		}}}
	default:
		return []*bound.Stmt{s}
	}
}

func (d *desugarer) expr(e *bound.Expr, depth int, inHandler bool) *bound.Expr {
	if e == nil || e.Err {
		return e
	}
	if depth > d.ctx.MaxDepth {
		d.overBudget()
		return bound.BadExpr(e.Span, "rewrite budget exceeded")
	}
	switch data := e.Data.(type) {
	case bound.FieldRefData:
		return &bound.Expr{Kind: e.Kind, Type: e.Type, Span: e.Span, Data: bound.FieldRefData{
			Field: data.Field, Receiver: d.expr(data.Receiver, depth+1, inHandler),
		}}
	case bound.UnaryData:
		return &bound.Expr{Kind: e.Kind, Type: e.Type, Span: e.Span, Data: bound.UnaryData{
			Op: data.Op, Operand: d.expr(data.Operand, depth+1, inHandler),
		}}
	case bound.BinaryData:
		return &bound.Expr{Kind: e.Kind, Type: e.Type, Span: e.Span, Data: bound.BinaryData{
			Op:    data.Op,
			Left:  d.expr(data.Left, depth+1, inHandler),
			Right: d.expr(data.Right, depth+1, inHandler),
		}}
	case bound.CallData:
		args := make([]*bound.Expr, len(data.Args))
		for i, a := range data.Args {
			args[i] = d.expr(a, depth+1, inHandler)
		}
		return &bound.Expr{Kind: e.Kind, Type: e.Type, Span: e.Span, Data: bound.CallData{
			Method: data.Method, Receiver: d.expr(data.Receiver, depth+1, inHandler), Args: args,
		}}
	case bound.NewData:
		args := make([]*bound.Expr, len(data.Args))
		for i, a := range data.Args {
			args[i] = d.expr(a, depth+1, inHandler)
		}
		return &bound.Expr{Kind: e.Kind, Type: e.Type, Span: e.Span, Data: bound.NewData{Ctor: data.Ctor, Args: args}}
	case bound.LambdaData:
		d.flags.SeenLambda = true
		return &bound.Expr{Kind: e.Kind, Type: e.Type, Span: e.Span, Data: bound.LambdaData{
			Params:        data.Params,
			Result:        data.Result,
			Body:          d.block(data.Body, depth+1, inHandler),
			Captures:      data.Captures,
			ParamCaptures: data.ParamCaptures,
			Target:        data.Target,
		}}
	case bound.AwaitData:
		if inHandler {
			d.flags.AwaitInHandler = true
		}
		return &bound.Expr{Kind: e.Kind, Type: e.Type, Span: e.Span, Data: bound.AwaitData{
			Operand: d.expr(data.Operand, depth+1, inHandler),
		}}
	case bound.LiteralData:
		return d.cachedLiteral(e, data)
	case bound.InterpolatedData:
		return d.interpolated(e, data, depth, inHandler)
	case bound.IsPatternData:
		// Outside an if-condition the designation (if any) was already
		// rejected by the binder; the bare test remains.
		return &bound.Expr{
			Kind: bound.ExprBinary,
			Type: "bool",
			Span: e.Span,
			Data: bound.BinaryData{
				Op:   "is:" + data.Type,
				Left: d.expr(data.Operand, depth+1, inHandler),
				Right: &bound.Expr{
					Kind: bound.ExprLiteral,
					Type: "string",
					Span: e.Span,
					Data: bound.LiteralData{Text: data.Type},
				},
			},
		}
	default:
		return e
	}
}

// interpolated turns an interpolated string into a left-associated
// concatenation chain of its parts.
func (d *desugarer) interpolated(e *bound.Expr, data bound.InterpolatedData, depth int, inHandler bool) *bound.Expr {
	var out *bound.Expr
	appendPart := func(part *bound.Expr) {
		if out == nil {
			out = part
			return
		}
		out = &bound.Expr{
			Kind: bound.ExprBinary,
			Type: "string",
			Span: e.Span,
			Data: bound.BinaryData{Op: "concat", Left: out, Right: part},
		}
	}
	for _, p := range data.Parts {
		if p.Expr != nil {
			appendPart(d.expr(p.Expr, depth+1, inHandler))
			continue
		}
		lit := bound.LiteralData{Text: p.Text}
		appendPart(d.cachedLiteral(&bound.Expr{
			Kind: bound.ExprLiteral,
			Type: "string",
			Span: e.Span,
			Data: lit,
		}, lit))
	}
	if out == nil {
		out = &bound.Expr{Kind: bound.ExprLiteral, Type: "string", Span: e.Span, Data: bound.LiteralData{Text: ""}}
	}
	return out
}

// cachedStringMin is the length from which a string constant is worth
// sharing module-wide instead of repeating at each use site.
const cachedStringMin = 64

// cachedLiteral interns long string constants in the module's private
// implementation container. The helper name is derived from the
// content, so every method caching the same string lands on one field.
func (d *desugarer) cachedLiteral(e *bound.Expr, data bound.LiteralData) *bound.Expr {
	if d.ctx.Helpers == nil || e.Type != "string" || len(data.Text) < cachedStringMin {
		return e
	}
	sum := sha256.Sum256([]byte(data.Text))
	name := fmt.Sprintf("<S>%x", sum[:8])
	if err := d.ctx.Helpers.AddHelper(Helper{Name: name, Type: "string", Data: []byte(data.Text)}); err != nil {
		d.ctx.Diags.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.LowerHelperConflict,
			Message:  err.Error(),
			Primary:  e.Span,
		})
		return e
	}
	return &bound.Expr{
		Kind: bound.ExprUnary,
		Type: "string",
		Span: e.Span,
		Data: bound.UnaryData{Op: "cached:" + name},
	}
}
