package flow

import (
	"fmt"

	"ember/internal/bound"
	"ember/internal/diag"
)

// assignSet tracks which locals are definitely assigned on the current
// path. Merging at join points intersects; a terminated path does not
// constrain the merge.
type assignSet []bool

func newAssignSet(n int) assignSet {
	return make(assignSet, n)
}

func (s assignSet) clone() assignSet {
	out := make(assignSet, len(s))
	copy(out, s)
	return out
}

func (s assignSet) mark(id bound.LocalID) assignSet {
	if int(id) >= len(s) {
		// Locals appended by later stages are out of scope here.
		return s
	}
	s[id] = true
	return s
}

func (s assignSet) has(id bound.LocalID) bool {
	return int(id) < len(s) && s[id]
}

// intersect merges two branch end states in place.
func (s assignSet) intersect(other assignSet) assignSet {
	for i := range s {
		s[i] = s[i] && i < len(other) && other[i]
	}
	return s
}

// block runs the transfer function over a block. The returned flag is
// true when the end of the block is unreachable.
func (a *analyzer) block(b *bound.Block, state assignSet) (assignSet, bool) {
	if b == nil {
		return state, false
	}
	terminated := false
	for _, s := range b.Stmts {
		if terminated {
			a.bag.Add(diag.Diagnostic{
				Severity: diag.SevWarning,
				Code:     diag.FlowUnreachableCode,
				Message:  "unreachable code detected",
				Primary:  s.Span,
			})
			break
		}
		state, terminated = a.stmt(s, state)
	}
	return state, terminated
}

func (a *analyzer) stmt(s *bound.Stmt, state assignSet) (assignSet, bool) {
	if s == nil {
		return state, false
	}
	switch d := s.Data.(type) {
	case bound.LocalDeclData:
		if d.Init != nil {
			state = a.expr(d.Init, state)
			state = state.mark(d.Local)
		}
		return state, false
	case bound.ExprStmtData:
		return a.expr(d.Expr, state), false
	case bound.AssignData:
		state = a.expr(d.Value, state)
		if d.Target != nil {
			if ref, ok := d.Target.Data.(bound.LocalRefData); ok {
				return state.mark(ref.Local), false
			}
			// Field/param targets: evaluate any receiver reads.
			state = a.expr(d.Target, state)
		}
		return state, false
	case bound.ReturnData:
		return a.expr(d.Value, state), true
	case bound.ThrowData:
		return a.expr(d.Value, state), true
	case bound.YieldData:
		return a.expr(d.Value, state), false
	case bound.IfData:
		state = a.expr(d.Cond, state)
		thenEntry := state.clone()
		// A type pattern with a designation binds its local in the
		// matched branch; lowering materializes that binding later.
		if d.Cond != nil {
			if pat, ok := d.Cond.Data.(bound.IsPatternData); ok && pat.Local != bound.NoLocalID {
				thenEntry = thenEntry.mark(pat.Local)
			}
		}
		thenState, thenDone := a.block(d.Then, thenEntry)
		elseState, elseDone := a.block(d.Else, state.clone())
		switch {
		case thenDone && elseDone:
			return state, true
		case thenDone:
			return elseState, false
		case elseDone:
			return thenState, false
		default:
			return thenState.intersect(elseState), false
		}
	case bound.WhileData:
		state = a.expr(d.Cond, state)
		// The body may not run; its assignments do not flow out.
		a.block(d.Body, state.clone())
		// A constant-true loop with no way out never falls through.
		if lit, ok := condLiteral(d.Cond); ok && lit == "true" {
			return state, true
		}
		return state, false
	case bound.BlockStmtData:
		return a.block(d.Block, state)
	case bound.TryData:
		entry := state.clone()
		bodyState, bodyDone := a.block(d.Body, state)
		merged := bodyState
		allDone := bodyDone
		for _, c := range d.Catches {
			// Handlers can run after any prefix of the body; start
			// from the try entry state.
			catchEntry := entry.clone()
			if c.Local != bound.NoLocalID {
				catchEntry = catchEntry.mark(c.Local)
			}
			catchState, catchDone := a.block(c.Body, catchEntry)
			if !catchDone {
				if allDone {
					merged = catchState
					allDone = false
				} else {
					merged = merged.intersect(catchState)
				}
			}
		}
		if d.Finally != nil {
			finallyEntry := entry.clone()
			finallyState, finallyDone := a.block(d.Finally, finallyEntry)
			if finallyDone {
				return finallyState, true
			}
			// Assignments in the finalizer are definite afterwards.
			for i := range merged {
				merged[i] = merged[i] || finallyState[i]
			}
		}
		return merged, allDone
	case bound.SwitchData:
		// Only lowering produces switches, so flow rarely sees one;
		// treat arms like independent branches without a guarantee any
		// arm runs.
		state = a.expr(d.Value, state)
		for _, c := range d.Cases {
			a.block(c.Body, state.clone())
		}
		a.block(d.Default, state.clone())
		return state, false
	case bound.BadStmtData:
		return state, false
	default:
		return state, false
	}
}

func (a *analyzer) expr(e *bound.Expr, state assignSet) assignSet {
	if e == nil {
		return state
	}
	switch d := e.Data.(type) {
	case bound.LocalRefData:
		if !state.has(d.Local) {
			a.bag.Add(diag.Diagnostic{
				Severity: diag.SevError,
				Code:     diag.FlowUseBeforeAssign,
				Message:  fmt.Sprintf("use of unassigned local '%s'", a.localName(d.Local)),
				Primary:  e.Span,
			})
			// Report once per local per path.
			state = state.mark(d.Local)
		}
		return state
	case bound.FieldRefData:
		return a.expr(d.Receiver, state)
	case bound.UnaryData:
		return a.expr(d.Operand, state)
	case bound.BinaryData:
		state = a.expr(d.Left, state)
		return a.expr(d.Right, state)
	case bound.CallData:
		state = a.expr(d.Receiver, state)
		for _, arg := range d.Args {
			state = a.expr(arg, state)
		}
		return state
	case bound.NewData:
		for _, arg := range d.Args {
			state = a.expr(arg, state)
		}
		return state
	case bound.LambdaData:
		// A lambda captures at creation; every captured local must be
		// assigned here, whatever the lambda body later does with it.
		for _, c := range d.Captures {
			if !state.has(c) {
				a.bag.Add(diag.Diagnostic{
					Severity: diag.SevError,
					Code:     diag.FlowUseBeforeAssign,
					Message:  fmt.Sprintf("use of unassigned local '%s' in lambda capture", a.localName(c)),
					Primary:  e.Span,
				})
				state = state.mark(c)
			}
		}
		return state
	case bound.AwaitData:
		return a.expr(d.Operand, state)
	case bound.InterpolatedData:
		for _, p := range d.Parts {
			state = a.expr(p.Expr, state)
		}
		return state
	case bound.IsPatternData:
		state = a.expr(d.Operand, state)
		// The designation is assigned only inside the matched branch;
		// conservatively leave it unassigned here.
		return state
	default:
		return state
	}
}

func condLiteral(e *bound.Expr) (string, bool) {
	if e == nil {
		return "", false
	}
	if d, ok := e.Data.(bound.LiteralData); ok {
		return d.Text, true
	}
	return "", false
}
