package compile

import (
	"context"
	"fmt"

	"ember/internal/bound"
	"ember/internal/diag"
	"ember/internal/emit"
	"ember/internal/flow"
	"ember/internal/lower"
	"ember/internal/program"
	"ember/internal/symbols"
)

// memberCompiler compiles the members of one type. It lives on a
// single worker goroutine together with its TypeState.
type memberCompiler struct {
	c      *Compilation
	opts   Options
	module *emit.ModuleBuilder // nil for diagnostics-only runs
	state  *TypeState
	hook   lower.StageHook
}

func (mc *memberCompiler) emitting() bool {
	return mc.module != nil
}

// compileMethod runs one member through the full policy pipeline and
// records its diagnostics into bag.
func (mc *memberCompiler) compileMethod(ctx context.Context, id symbols.ID, bag *diag.Bag) {
	if ctx.Err() != nil {
		return
	}
	sym, ok := mc.c.Table().Get(id)
	if !ok || sym.Kind != symbols.KindMethod {
		return
	}

	// Bodiless members are skipped outright, but still raise the
	// processed event the first time around.
	if sym.IsAbstractOrExtern() || sym.Flags.Has(symbols.FlagDelegate) {
		if sym.Flags.Has(symbols.FlagExtern) && mc.c.Program.HasBody(id) {
			bag.Add(diag.Diagnostic{
				Severity: diag.SevError,
				Code:     diag.BindExternHasBody,
				Message:  fmt.Sprintf("extern method %s cannot declare a body", sym.Name),
				Primary:  sym.Span,
			})
			mc.c.SetGlobalError()
		}
		mc.c.noteProcessed(id)
		return
	}

	// A diagnostics-only pass reuses the member's cached set verbatim
	// instead of recompiling the body.
	if !mc.emitting() {
		if items, ok := mc.c.cachedDiagnostics(id); ok {
			for _, d := range items {
				bag.Add(d)
			}
			mc.c.noteProcessed(id)
			return
		}
	}

	// Default value-type constructors have no observable body.
	if mc.isDefaultValueCtor(sym, id) {
		mc.c.noteProcessed(id)
		return
	}

	memberBag := diag.NewBag(0)
	body := mc.bindAndAnalyze(id, sym, memberBag)

	// Binding and flow diagnostics are cached on the member so future
	// no-emit passes replay them without rebinding.
	mc.c.cacheDiagnostics(id, memberBag.Items())
	bag.Merge(memberBag)

	// Error gate: a member with binding errors, or living in a
	// declaration-broken type, is never lowered. The global flag feeds
	// whole-program decisions only; the member's own diagnostics were
	// already reported above regardless of any other worker's state.
	if memberBag.HasErrors() || mc.declarationBroken(sym) {
		mc.c.SetGlobalError()
		mc.c.noteProcessed(id)
		return
	}
	if body == nil {
		mc.c.noteProcessed(id)
		return
	}

	// Lowering runs only when a module is actually being built.
	if mc.emitting() {
		mc.lowerAndEmit(ctx, id, sym, body, bag)
	}
	mc.c.noteProcessed(id)
}

// bindAndAnalyze produces the analyzed bound body, or nil when the
// member has nothing to compile.
func (mc *memberCompiler) bindAndAnalyze(id symbols.ID, sym symbols.Symbol, bag *diag.Bag) *bound.Body {
	p := mc.c.Program

	body := p.BindBody(id, bag)
	if body == nil {
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.BindBodyMissing,
			Message:  fmt.Sprintf("method %s has no bound body", sym.Name),
			Primary:  sym.Span,
		})
		return nil
	}

	if sym.Flags.Has(symbols.FlagIterator) && sym.Flags.Has(symbols.FlagAsync) {
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.BindIteratorAndAsync,
			Message:  fmt.Sprintf("method %s cannot be both an iterator and async", sym.Name),
			Primary:  sym.Span,
		})
		return body
	}

	mc.state.CurrentImports = p.Imports(id)

	if sym.Method != nil && (sym.Method.Kind == symbols.MethodConstructor || sym.Method.Kind == symbols.MethodStaticConstructor) {
		body = mc.prepareConstructor(id, sym, body, bag)
	}

	shape := flow.Shape{
		RequiresValue: sym.Method != nil && sym.Method.Result != "" && !sym.Flags.Has(symbols.FlagIterator),
		IsIterator:    sym.Flags.Has(symbols.FlagIterator),
	}
	return flow.Analyze(shape, body, bag)
}

// prepareConstructor merges field initializers into the constructor
// body and records the delegation edge for cycle detection. A
// constructor delegating via this(...) omits the initializers: the
// delegation target already ran them.
func (mc *memberCompiler) prepareConstructor(id symbols.ID, sym symbols.Symbol, body *bound.Body, bag *diag.Bag) *bound.Body {
	p := mc.c.Program
	init, hasInit := p.CtorInitializer(id)
	if hasInit && init.Kind == program.InitThis {
		mc.state.ctors.addEdge(id, init.Target, init.Span)
		return body
	}

	static := sym.Flags.Has(symbols.FlagStatic)
	var prefix []*bound.Stmt
	for _, fi := range p.FieldInitializers(sym.Parent) {
		fieldSym, ok := mc.c.Table().Get(fi.Field)
		if !ok || fieldSym.Flags.Has(symbols.FlagStatic) != static {
			continue
		}
		prefix = append(prefix, &bound.Stmt{
			Kind: bound.StmtAssign,
			Span: fi.Span,
			Data: bound.AssignData{
				Target: &bound.Expr{
					Kind: bound.ExprFieldRef,
					Span: fi.Span,
					Data: bound.FieldRefData{Field: fi.Field},
				},
				Value: fi.Value,
			},
		})
	}
	if len(prefix) > 0 {
		block := body.Block
		if block == nil {
			block = &bound.Block{Span: sym.Span}
		}
		body = body.WithBlock(block.Prepend(prefix...))
	}

	// Nullability: the field states established by initializers feed
	// the constructor body analysis, so later reads see accurate
	// starting state.
	if !static {
		entry := flow.InitialFieldStates(mc.c.Table(), sym.Parent, p.FieldInitializers(sym.Parent))
		flow.AnalyzeNullability(entry, body, mc.c.Table(), bag)
	}
	return body
}

// lowerAndEmit drives the rewrite stages and hands the result to the
// module builder.
func (mc *memberCompiler) lowerAndEmit(ctx context.Context, id symbols.ID, sym symbols.Symbol, body *bound.Body, bag *diag.Bag) {
	if ctx.Err() != nil {
		return
	}
	lowerBag := diag.NewBag(0)
	lctx := &lower.Context{
		Table:    mc.c.Table(),
		Method:   id,
		Diags:    lowerBag,
		Imports:  mc.state.CurrentImports,
		Synth:    mc.state,
		Hook:     mc.hook,
		Helpers:  mc.helperSink(),
		Coverage: mc.opts.Coverage,
		MaxDepth: mc.opts.MaxLowerDepth,
	}
	result := lower.Run(lctx, body)
	bag.Merge(lowerBag)
	if lowerBag.HasErrors() || result.Body == nil || result.Body.HasErrors() {
		// Lowering failed: keep the diagnostics, emit nothing.
		mc.c.SetGlobalError()
		return
	}

	debug := emit.DebugInfo{StateMachineType: result.StateMachineType}
	if mc.opts.EmitDebugInfo {
		debug.Imports = mc.state.CurrentImports
		debug.HoistedSlots = hoistedSlotNames(result.Body)
		debug.LexicalScope = sym.Span
	}
	if err := mc.module.SetMethodBody(id, result.Body, debug); err != nil {
		mc.c.SetGlobalError()
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.CompileModuleFailure,
			Message:  err.Error(),
			Primary:  sym.Span,
		})
	}
}

// compileSynthesized drains the type's synthesized-method queue,
// running each through the same rewrite pipeline as ordinary members.
// Every method gets a fresh bag merged back afterward so one failing
// synthesized body cannot corrupt a sibling's diagnostics.
func (mc *memberCompiler) compileSynthesized(ctx context.Context, bag *diag.Bag) {
	for {
		batch := mc.state.takeSynthesized()
		if len(batch) == 0 {
			return
		}
		for _, sm := range batch {
			if ctx.Err() != nil {
				return
			}
			mc.compileOneSynthesized(ctx, sm, bag)
		}
	}
}

func (mc *memberCompiler) compileOneSynthesized(ctx context.Context, sm lower.SynthesizedMethod, bag *diag.Bag) {
	sym := mc.c.Table().MustGet(sm.Method)
	methodBag := diag.NewBag(0)
	defer bag.Merge(methodBag)

	body := sm.Body
	if body == nil || body.HasErrors() {
		mc.c.SetGlobalError()
		return
	}
	if !mc.emitting() {
		return
	}

	mc.state.CurrentImports = sm.Imports
	lctx := &lower.Context{
		Table:    mc.c.Table(),
		Method:   sm.Method,
		Diags:    methodBag,
		Imports:  sm.Imports,
		Synth:    mc.state,
		Hook:     mc.hook,
		Helpers:  mc.helperSink(),
		Coverage: mc.opts.Coverage,
		MaxDepth: mc.opts.MaxLowerDepth,
	}
	result := lower.Run(lctx, body)
	if methodBag.HasErrors() || result.Body == nil || result.Body.HasErrors() {
		mc.c.SetGlobalError()
		return
	}
	debug := emit.DebugInfo{StateMachineType: result.StateMachineType}
	if mc.opts.EmitDebugInfo {
		debug.Imports = sm.Imports
		debug.HoistedSlots = hoistedSlotNames(result.Body)
		debug.LexicalScope = sm.LexicalScope
	}
	if err := mc.module.SetMethodBody(sm.Method, result.Body, debug); err != nil {
		mc.c.SetGlobalError()
		methodBag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.CompileModuleFailure,
			Message:  err.Error(),
			Primary:  sym.Span,
		})
	}
}

// moduleHelpers forwards helper fields synthesized during lowering to
// the module's private implementation container.
type moduleHelpers struct {
	impl *emit.PrivateImplementationDetails
}

func (h moduleHelpers) AddHelper(x lower.Helper) error {
	return h.impl.Add(emit.HelperField{Name: x.Name, Type: x.Type, Data: x.Data})
}

func (mc *memberCompiler) helperSink() lower.HelperSink {
	if mc.module == nil {
		return nil
	}
	return moduleHelpers{impl: mc.module.PrivateImplementation()}
}

// reportCtorCycles surfaces constructor delegation cycles found while
// binding the type's constructors. One diagnostic per cycle.
func (mc *memberCompiler) reportCtorCycles(bag *diag.Bag) {
	span, found := mc.state.ctors.cycleSpan()
	if !found {
		return
	}
	typeName := mc.c.Table().FullName(mc.state.Type)
	bag.Add(diag.Diagnostic{
		Severity: diag.SevError,
		Code:     diag.BindCtorInitializerCycle,
		Message:  fmt.Sprintf("constructors of %s delegate to each other in a cycle", typeName),
		Primary:  span,
	})
	mc.c.SetGlobalError()
}

// isDefaultValueCtor recognizes the implicit parameterless constructor
// of a value type, which is never emitted.
func (mc *memberCompiler) isDefaultValueCtor(sym symbols.Symbol, id symbols.ID) bool {
	if sym.Method == nil || sym.Method.Kind != symbols.MethodConstructor {
		return false
	}
	if len(sym.Method.Params) > 0 || mc.c.Program.HasBody(id) {
		return false
	}
	parent := mc.c.Table().MustGet(sym.Parent)
	return parent.Flags.Has(symbols.FlagValueType)
}

func (mc *memberCompiler) declarationBroken(sym symbols.Symbol) bool {
	if mc.opts.HasDeclarationErrors {
		return true
	}
	if sym.Flags.Has(symbols.FlagDeclErrors) {
		return true
	}
	parent := mc.c.Table().MustGet(sym.Parent)
	return parent.Flags.Has(symbols.FlagDeclErrors)
}

// hoistedSlotNames collects the names of locals lowered onto closure
// environments or state machines, for debug side tables.
func hoistedSlotNames(body *bound.Body) []string {
	var out []string
	for _, l := range body.Locals {
		if l.Hoisted {
			out = append(out, l.Name)
		}
	}
	return out
}
