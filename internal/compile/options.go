package compile

import "ember/internal/symbols"

// Options controls one CompileBodies run.
type Options struct {
	// Concurrent fans type compilation out over goroutines. Off, the
	// whole run stays on the calling goroutine; useful for debugging
	// and for reproducing scheduling-independent behavior in tests.
	Concurrent bool

	// EmitDebugInfo includes lexical scopes, hoisted slot names, and
	// import chains in the emitted debug side tables.
	EmitDebugInfo bool

	// Coverage instruments emitted bodies for test coverage.
	Coverage bool

	// HasDeclarationErrors reports that earlier phases already found
	// declaration-level errors; lowering is skipped for everyone but
	// members are still diagnosed best-effort.
	HasDeclarationErrors bool

	// RequireEntryPoint makes the run resolve and link an entry point;
	// off for library modules.
	RequireEntryPoint bool

	// Filter restricts compilation to members it accepts. Nil means
	// compile everything.
	Filter func(symbols.ID) bool

	// MaxLowerDepth bounds rewrite recursion; zero uses the default.
	MaxLowerDepth int
}

func (o Options) accepts(id symbols.ID) bool {
	return o.Filter == nil || o.Filter(id)
}
