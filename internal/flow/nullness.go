package flow

import (
	"fmt"

	"ember/internal/bound"
	"ember/internal/diag"
	"ember/internal/program"
	"ember/internal/symbols"
)

// FieldNullState maps fields of one type to "may be null here".
type FieldNullState map[symbols.ID]bool

func (s FieldNullState) clone() FieldNullState {
	out := make(FieldNullState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// InitialFieldStates computes per-field nullability right after the
// field initializers run. Fields with a non-null initializer start
// non-null; fields without one keep their declared nullability. This
// is the entry state for constructor bodies that do not delegate.
func InitialFieldStates(table *symbols.Table, typeID symbols.ID, inits []program.FieldInit) FieldNullState {
	states := make(FieldNullState)
	for _, member := range table.Members(typeID) {
		s, ok := table.Get(member)
		if !ok || s.Kind != symbols.KindField || s.Field == nil {
			continue
		}
		states[member] = s.Field.Nullable
	}
	for _, fi := range inits {
		states[fi.Field] = isNullExpr(fi.Value)
	}
	return states
}

// AnalyzeNullability walks a constructor (or ordinary) body, warns on
// dereferences of maybe-null fields, and returns the final field
// states. A constructor delegating via this(...) should seed its entry
// state with the target constructor's final states so chained
// constructors observe accurate nullability.
func AnalyzeNullability(entry FieldNullState, body *bound.Body, table *symbols.Table, bag *diag.Bag) FieldNullState {
	if body == nil || body.HasErrors() {
		return entry
	}
	states := entry.clone()
	n := &nullWalker{states: states, table: table, bag: bag}
	bound.Inspect(body.Block, n.stmt, n.expr)
	return n.states
}

type nullWalker struct {
	states FieldNullState
	table  *symbols.Table
	bag    *diag.Bag
}

func (n *nullWalker) stmt(s *bound.Stmt) bool {
	if d, ok := s.Data.(bound.AssignData); ok && d.Target != nil {
		if ref, ok := d.Target.Data.(bound.FieldRefData); ok {
			if _, tracked := n.states[ref.Field]; tracked {
				n.states[ref.Field] = isNullExpr(d.Value)
			}
		}
	}
	return true
}

func (n *nullWalker) expr(e *bound.Expr) bool {
	// A maybe-null field used as a receiver is a possible null
	// dereference.
	switch d := e.Data.(type) {
	case bound.FieldRefData:
		n.warnIfMaybeNull(d.Receiver)
	case bound.CallData:
		n.warnIfMaybeNull(d.Receiver)
	}
	return true
}

func (n *nullWalker) warnIfMaybeNull(receiver *bound.Expr) {
	if receiver == nil {
		return
	}
	ref, ok := receiver.Data.(bound.FieldRefData)
	if !ok {
		return
	}
	if maybeNull, tracked := n.states[ref.Field]; tracked && maybeNull {
		name := "field"
		if s, ok := n.table.Get(ref.Field); ok {
			name = s.Name
		}
		n.bag.Add(diag.Diagnostic{
			Severity: diag.SevWarning,
			Code:     diag.FlowInfo,
			Message:  fmt.Sprintf("'%s' may be null here", name),
			Primary:  receiver.Span,
		})
	}
}

func isNullExpr(e *bound.Expr) bool {
	if e == nil {
		return true
	}
	if d, ok := e.Data.(bound.LiteralData); ok {
		return d.Text == "null"
	}
	if e.Kind == bound.ExprDefault {
		// default of a reference type is null; the middle-end cannot
		// tell value types apart reliably, so stay conservative.
		return true
	}
	return false
}
