package lower

import (
	"ember/internal/bound"
	"ember/internal/symbols"
)

// RewriteIterator converts an iterator method into a state machine.
// Locals and parameters move to machine fields, each yield becomes a
// current-value store plus a suspend, and the original body is
// replaced by construction of the machine. Returns the rewritten body
// and the synthesized machine type.
func RewriteIterator(ctx *Context, body *bound.Body) (*bound.Body, symbols.ID) {
	return buildStateMachine(ctx, body, machineIterator)
}
