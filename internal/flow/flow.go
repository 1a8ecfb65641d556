// Package flow validates a bound body before lowering: definite
// assignment of locals, reachability, and insertion of the implicit
// return that codegen expects at the end of void bodies.
package flow

import (
	"fmt"

	"ember/internal/bound"
	"ember/internal/diag"
	"ember/internal/source"
)

// Shape carries the few facts about the enclosing method that flow
// analysis needs.
type Shape struct {
	// RequiresValue is true when falling off the end of the body is an
	// error (non-void, non-iterator methods).
	RequiresValue bool
	// IsIterator suppresses implicit-return handling; running off the
	// end of an iterator simply ends the sequence.
	IsIterator bool
}

// Analyze runs definite assignment and reachability over body and
// returns the body with an implicit return appended where the end of a
// void body is reachable. Diagnostics go into bag; callers gate
// lowering on bag.HasErrors().
func Analyze(shape Shape, body *bound.Body, bag *diag.Bag) *bound.Body {
	if body == nil || body.HasErrors() {
		return body
	}
	a := &analyzer{body: body, bag: bag}
	state := newAssignSet(len(body.Locals))
	endState, terminated := a.block(body.Block, state)
	_ = endState

	if terminated || shape.IsIterator {
		return body
	}
	if shape.RequiresValue {
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.FlowMissingReturn,
			Message:  "not all code paths return a value",
			Primary:  blockSpan(body.Block),
		})
		return body
	}
	implicit := &bound.Stmt{
		Kind: bound.StmtReturn,
		Span: blockSpan(body.Block),
		Data: bound.ReturnData{Implicit: true},
	}
	return body.WithBlock(body.Block.Append(implicit))
}

type analyzer struct {
	body *bound.Body
	bag  *diag.Bag
}

func (a *analyzer) localName(id bound.LocalID) string {
	if int(id) < len(a.body.Locals) {
		return a.body.Locals[id].Name
	}
	return fmt.Sprintf("local#%d", id)
}

func blockSpan(b *bound.Block) source.Span {
	if b == nil {
		return source.Span{}
	}
	return b.Span
}
