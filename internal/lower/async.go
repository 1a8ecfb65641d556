package lower

import (
	"ember/internal/bound"
	"ember/internal/symbols"
)

// RewriteAsync converts an async method into a state machine. The body
// is split at its top-level awaits; each boundary stores the awaited
// operand in an awaiter field, records the resume state, and leaves
// MoveNext. Returns inside the body become result stores. The original
// body is replaced by construction of the machine.
func RewriteAsync(ctx *Context, body *bound.Body) (*bound.Body, symbols.ID) {
	return buildStateMachine(ctx, body, machineAsync)
}
