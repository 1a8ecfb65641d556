// Package bound models the type-checked bound tree a member body
// arrives in from the front-end. Trees are persistent: rewrite stages
// never mutate nodes in place, they build new ones and share unchanged
// subtrees.
package bound

import (
	"ember/internal/source"
)

// LocalID indexes into a Body's local table.
type LocalID uint32

// NoLocalID marks the absence of a local.
const NoLocalID LocalID = ^LocalID(0)

// Local is one local variable slot of a body. Rewrite stages may append
// new slots (temporaries, hoisted captures) but never change existing
// ones.
type Local struct {
	Name     string
	Type     string
	Nullable bool
	Span     source.Span
	// Hoisted is set by closure or state-machine conversion when the
	// local moved into a synthesized environment.
	Hoisted bool
}

// Body is the root of one member's bound tree.
type Body struct {
	Locals []Local
	Block  *Block
	// Err marks the whole tree as error-bearing. Once set, no rewrite
	// stage may assume the tree is semantically complete; stages return
	// it unchanged.
	Err bool
}

// HasErrors reports whether the tree carries the error marker.
func (b *Body) HasErrors() bool {
	return b == nil || b.Err
}

// WithBlock returns a copy of the body with a replacement block. Local
// slots are shared; callers appending locals must use AppendLocals.
func (b *Body) WithBlock(block *Block) *Body {
	if b == nil {
		return &Body{Block: block}
	}
	return &Body{Locals: b.Locals, Block: block, Err: b.Err}
}

// AppendLocals returns the body with extra local slots and the ID of
// the first appended slot.
func (b *Body) AppendLocals(extra ...Local) (*Body, LocalID) {
	first := LocalID(len(b.Locals))
	locals := make([]Local, len(b.Locals), len(b.Locals)+len(extra))
	copy(locals, b.Locals)
	locals = append(locals, extra...)
	return &Body{Locals: locals, Block: b.Block, Err: b.Err}, first
}

// MarkError returns the body with the error marker set.
func (b *Body) MarkError() *Body {
	if b == nil {
		return &Body{Err: true}
	}
	if b.Err {
		return b
	}
	return &Body{Locals: b.Locals, Block: b.Block, Err: true}
}
