package lower

import (
	"ember/internal/bound"
)

// NormalizeHandlers prepares exception handlers that contain awaits for
// the conversions that follow. The caught exception moves out of the
// handler-scoped slot into an ordinary body local at handler entry, so
// closure conversion and the async rewrite can hoist it like any other
// local. Runs only when desugaring flagged an await inside a handler,
// and must run before closure conversion.
func NormalizeHandlers(ctx *Context, body *bound.Body) *bound.Body {
	if body.HasErrors() {
		return body
	}
	n := &handlerNormalizer{body: body}
	block := n.block(body.Block)
	out := n.body.WithBlock(block)
	return out
}

type handlerNormalizer struct {
	body *bound.Body
}

func (n *handlerNormalizer) block(b *bound.Block) *bound.Block {
	if b == nil {
		return nil
	}
	stmts := make([]*bound.Stmt, 0, len(b.Stmts))
	for _, s := range b.Stmts {
		stmts = append(stmts, n.stmt(s))
	}
	return &bound.Block{Stmts: stmts, Span: b.Span}
}

func (n *handlerNormalizer) stmt(s *bound.Stmt) *bound.Stmt {
	if s == nil || s.Err {
		return s
	}
	switch data := s.Data.(type) {
	case bound.IfData:
		return &bound.Stmt{Kind: s.Kind, Span: s.Span, Data: bound.IfData{
			Cond: data.Cond,
			Then: n.block(data.Then),
			Else: n.block(data.Else),
		}}
	case bound.WhileData:
		return &bound.Stmt{Kind: s.Kind, Span: s.Span, Data: bound.WhileData{
			Cond: data.Cond,
			Body: n.block(data.Body),
		}}
	case bound.BlockStmtData:
		return &bound.Stmt{Kind: s.Kind, Span: s.Span, Data: bound.BlockStmtData{Block: n.block(data.Block)}}
	case bound.TryData:
		return n.try(s, data)
	default:
		return s
	}
}

func (n *handlerNormalizer) try(s *bound.Stmt, data bound.TryData) *bound.Stmt {
	catches := make([]bound.CatchClause, 0, len(data.Catches))
	for _, c := range data.Catches {
		catchBody := n.block(c.Body)
		if c.Local != bound.NoLocalID && blockAwaits(catchBody) {
			// Re-home the exception into a fresh ordinary local; the
			// original handler slot stays write-once at entry.
			name := "exc"
			if int(c.Local) < len(n.body.Locals) {
				name = n.body.Locals[c.Local].Name
			}
			var hoisted bound.LocalID
			n.body, hoisted = n.body.AppendLocals(bound.Local{
				Name: "<" + name + ">handler",
				Type: c.Type,
				Span: s.Span,
			})
			relay := &bound.Stmt{
				Kind: bound.StmtLocalDecl,
				Span: s.Span,
				Data: bound.LocalDeclData{
					Local: hoisted,
					Init: &bound.Expr{
						Kind: bound.ExprLocalRef,
						Type: c.Type,
						Span: s.Span,
						Data: bound.LocalRefData{Local: c.Local},
					},
				},
			}
			catchBody = rewriteLocalRefs(catchBody.Prepend(relay), c.Local, hoisted, 1)
		}
		catches = append(catches, bound.CatchClause{Local: c.Local, Type: c.Type, Body: catchBody})
	}
	return &bound.Stmt{Kind: s.Kind, Span: s.Span, Data: bound.TryData{
		Body:    n.block(data.Body),
		Catches: catches,
		Finally: n.block(data.Finally),
	}}
}

// blockAwaits reports whether any await occurs in the block, nested
// lambdas included.
func blockAwaits(b *bound.Block) bool {
	found := false
	bound.Inspect(b, nil, func(e *bound.Expr) bool {
		if e.Kind == bound.ExprAwait {
			found = true
			return false
		}
		return !found
	})
	return found
}

// rewriteLocalRefs replaces reads of one local with another, skipping
// the first skip statements of the block (the relay declaration).
func rewriteLocalRefs(b *bound.Block, from, to bound.LocalID, skip int) *bound.Block {
	if b == nil {
		return nil
	}
	stmts := make([]*bound.Stmt, 0, len(b.Stmts))
	for i, s := range b.Stmts {
		if i < skip {
			stmts = append(stmts, s)
			continue
		}
		stmts = append(stmts, substituteStmt(s, from, to))
	}
	return &bound.Block{Stmts: stmts, Span: b.Span}
}
