// Package lower rewrites a flow-checked bound body into its emittable
// form. Stages run in a fixed order; every stage passes error-marked
// trees through untouched so malformed input can never cascade into a
// crash deeper in the pipeline.
package lower

import (
	"ember/internal/bound"
	"ember/internal/diag"
	"ember/internal/program"
	"ember/internal/source"
	"ember/internal/symbols"
)

// Stage identifies one rewrite stage, mostly for test instrumentation.
type Stage uint8

const (
	StageDesugar Stage = iota
	StageCoverage
	StageHandlers
	StageClosures
	StageIterator
	StageAsync
	StageNullChecks
)

func (s Stage) String() string {
	switch s {
	case StageDesugar:
		return "desugar"
	case StageCoverage:
		return "coverage"
	case StageHandlers:
		return "handlers"
	case StageClosures:
		return "closures"
	case StageIterator:
		return "iterator"
	case StageAsync:
		return "async"
	case StageNullChecks:
		return "nullchecks"
	default:
		return "unknown"
	}
}

// StageHook observes each stage invocation. Tests use it to assert
// stages are skipped for erroring members.
type StageHook func(stage Stage, method symbols.ID, body *bound.Body)

// SynthesizedMethod is a method produced incidentally by a rewrite
// stage, together with everything needed to compile and emit it later.
type SynthesizedMethod struct {
	// Owner is the synthesized or containing type the method lives on.
	Owner  symbols.ID
	Method symbols.ID
	Body   *bound.Body
	// Imports reproduces the using-scope chain of the member the
	// method was synthesized from, for debug info.
	Imports *program.ImportChain
	// LexicalScope is the source span of the scope the synthesized
	// method was lifted out of.
	LexicalScope source.Span
}

// Synthesizer receives types and methods synthesized during lowering.
// The per-type compilation state implements it; it is never shared
// across goroutines.
type Synthesizer interface {
	AddSynthesizedType(id symbols.ID)
	AddSynthesizedMethod(m SynthesizedMethod)
}

// Helper is a module-level synthesized datum: a cached string constant,
// a coverage counter table. Helpers with the same name must carry the
// same payload; the sink deduplicates by name.
type Helper struct {
	Name string
	Type string
	Data []byte
}

// HelperSink receives helpers produced during lowering. The module's
// private implementation container backs it; it is safe for concurrent
// use.
type HelperSink interface {
	AddHelper(h Helper) error
}

// Context carries everything one member's lowering needs. A Context
// belongs to a single goroutine.
type Context struct {
	Table   *symbols.Table
	Method  symbols.ID
	Diags   *diag.Bag
	Imports *program.ImportChain
	Synth   Synthesizer
	Hook    StageHook
	// Helpers receives module-level cached data synthesized while
	// lowering; nil in diagnostics-only runs, which disables caching.
	Helpers HelperSink
	// Coverage turns on block counter instrumentation.
	Coverage bool
	// MaxDepth bounds rewrite recursion; pathological nesting becomes
	// a diagnostic plus a bad-statement placeholder instead of a stack
	// overflow. Zero means DefaultMaxDepth.
	MaxDepth int
}

// DefaultMaxDepth is the rewrite recursion budget.
const DefaultMaxDepth = 2048

// Result is the outcome of the full pipeline for one member.
type Result struct {
	Body *bound.Body
	// StateMachineType is the synthesized iterator or async state
	// machine type, if any. At most one of the two conversions
	// produces it.
	StateMachineType symbols.ID
}

// Run applies the rewrite stages in order:
//
//	desugar → coverage counters → handler normalization →
//	closure conversion → iterator conversion → async conversion →
//	parameter null checks
//
// Coverage instrumentation runs only when the context asks for it.
// Handler normalization runs only when desugaring saw an await inside
// an exception handler; closure conversion only when it saw a lambda.
// A stage that reports an error aborts the stages after it; the
// diagnostics collected so far stay in ctx.Diags.
func Run(ctx *Context, body *bound.Body) Result {
	if body.HasErrors() {
		return Result{Body: body}
	}
	if ctx.MaxDepth <= 0 {
		ctx.MaxDepth = DefaultMaxDepth
	}
	method := ctx.Table.MustGet(ctx.Method)

	hook := func(stage Stage, b *bound.Body) {
		if ctx.Hook != nil {
			ctx.Hook(stage, ctx.Method, b)
		}
	}

	hook(StageDesugar, body)
	body, flags := Desugar(ctx, body)
	if body.HasErrors() || ctx.Diags.HasErrors() {
		return Result{Body: body}
	}

	// Counters go in right after desugaring so they track the user's
	// control flow, before machine conversion redistributes it.
	if ctx.Coverage {
		hook(StageCoverage, body)
		body = InstrumentCoverage(ctx, body)
		if body.HasErrors() || ctx.Diags.HasErrors() {
			return Result{Body: body}
		}
	}

	if flags.AwaitInHandler {
		hook(StageHandlers, body)
		body = NormalizeHandlers(ctx, body)
		if body.HasErrors() || ctx.Diags.HasErrors() {
			return Result{Body: body}
		}
	}

	if flags.SeenLambda {
		hook(StageClosures, body)
		body = ConvertClosures(ctx, body)
		if body.HasErrors() || ctx.Diags.HasErrors() {
			return Result{Body: body}
		}
	}

	var machine symbols.ID
	if method.Flags.Has(symbols.FlagIterator) {
		hook(StageIterator, body)
		body, machine = RewriteIterator(ctx, body)
		if body.HasErrors() || ctx.Diags.HasErrors() {
			return Result{Body: body}
		}
	}
	if method.Flags.Has(symbols.FlagAsync) && !machine.IsValid() {
		hook(StageAsync, body)
		body, machine = RewriteAsync(ctx, body)
		if body.HasErrors() || ctx.Diags.HasErrors() {
			return Result{Body: body}
		}
	}

	// Entry guards go in last, after every other rewrite, and never
	// into iterator methods: the iterator's synthesized constructor
	// captures parameters itself.
	if !method.Flags.Has(symbols.FlagIterator) {
		hook(StageNullChecks, body)
		body = SynthesizeNullChecks(ctx, body)
	}
	return Result{Body: body, StateMachineType: machine}
}
