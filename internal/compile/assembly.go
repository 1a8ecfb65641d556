package compile

import (
	"context"
	"fmt"

	"ember/internal/bound"
	"ember/internal/diag"
	"ember/internal/symbols"
)

// assembleGlobal runs the phases that need whole-program knowledge,
// after every worker has joined: unused-field warnings, synthesized
// static constructors, the module-failure fallback, and freezing the
// module. Everything here stays on the calling goroutine.
func (o *orchestrator) assembleGlobal(ctx context.Context, bag *diag.Bag) {
	o.reportUnusedFields(bag)
	if o.module != nil {
		o.synthesizeStaticCtors(ctx, bag)
		// Static constructor bodies were the last producers of helper
		// fields; the set is final from here on.
		o.module.SealHelpers()
	}

	// A global error with no diagnostic anywhere means some dependency
	// failed without telling us which. Surface one explicit fallback
	// rather than silently producing a broken artifact.
	if o.c.GlobalErrorsExist() && !bag.HasErrors() {
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.CompileModuleFailure,
			Message:  "module failed to compile; a dependency of this module may itself have errors",
		})
	}

	if o.module != nil {
		o.module.Freeze()
	}
}

// reportUnusedFields warns about declared fields no bound body ever
// touches. Field initializers count as uses of the fields they read,
// not of the field they assign.
func (o *orchestrator) reportUnusedFields(bag *diag.Bag) {
	table := o.c.Table()
	used := make(map[symbols.ID]struct{})
	markExpr := func(e *bound.Expr) bool {
		if d, ok := e.Data.(bound.FieldRefData); ok {
			used[table.Definition(d.Field)] = struct{}{}
		}
		return true
	}
	mark := func(body *bound.Body) {
		if body == nil {
			return
		}
		bound.Inspect(body.Block, nil, markExpr)
	}

	n := table.Len()
	for i := 2; i < n; i++ {
		id := symbols.ID(i)
		sym := table.MustGet(id)
		if sym.Kind != symbols.KindMethod {
			continue
		}
		mark(o.c.Program.BindBody(id, diag.NewBag(1)))
	}
	for i := 2; i < n; i++ {
		id := symbols.ID(i)
		sym := table.MustGet(id)
		if sym.Kind != symbols.KindType {
			continue
		}
		for _, fi := range o.c.Program.FieldInitializers(id) {
			used[table.Definition(fi.Field)] = struct{}{}
			if fi.Value != nil {
				init := &bound.Stmt{Kind: bound.StmtExpr, Data: bound.ExprStmtData{Expr: fi.Value}}
				bound.Inspect(&bound.Block{Stmts: []*bound.Stmt{init}}, nil, markExpr)
			}
		}
	}

	for i := 2; i < n; i++ {
		id := symbols.ID(i)
		sym := table.MustGet(id)
		if sym.Kind != symbols.KindField || sym.Flags.Has(symbols.FlagSynthesized) {
			continue
		}
		if _, ok := used[id]; ok {
			continue
		}
		bag.Add(diag.Diagnostic{
			Severity: diag.SevWarning,
			Code:     diag.CompileUnusedField,
			Message:  fmt.Sprintf("field %s is never used", table.FullName(id)),
			Primary:  sym.Span,
		})
	}
}

// synthesizeStaticCtors gives every type with static field
// initializers but no static constructor a synthesized one, compiled
// inline through the ordinary member pipeline.
func (o *orchestrator) synthesizeStaticCtors(ctx context.Context, bag *diag.Bag) {
	table := o.c.Table()
	n := table.Len()
	for i := 2; i < n; i++ {
		t := symbols.ID(i)
		sym := table.MustGet(t)
		if sym.Kind != symbols.KindType || sym.Flags.Has(symbols.FlagSynthesized) {
			continue
		}
		if !o.hasStaticInitializers(t) || o.hasStaticCtor(sym) {
			continue
		}

		cctor := table.NewMethod(t, ".cctor", symbols.FlagStatic|symbols.FlagSynthesized, sym.Span, symbols.MethodInfo{
			Kind: symbols.MethodStaticConstructor,
		})
		// An empty body: the constructor pipeline prepends the static
		// initializers itself.
		o.c.Program.SetBody(cctor, &bound.Body{Block: &bound.Block{Span: sym.Span}})

		state := newTypeState(t)
		mc := &memberCompiler{c: o.c, opts: o.opts, module: o.module, state: state, hook: o.hook}
		mc.compileMethod(ctx, cctor, bag)
		mc.compileSynthesized(ctx, bag)
	}
}

func (o *orchestrator) hasStaticInitializers(t symbols.ID) bool {
	table := o.c.Table()
	for _, fi := range o.c.Program.FieldInitializers(t) {
		if table.MustGet(fi.Field).Flags.Has(symbols.FlagStatic) {
			return true
		}
	}
	return false
}

func (o *orchestrator) hasStaticCtor(sym symbols.Symbol) bool {
	table := o.c.Table()
	for _, m := range sym.Members {
		child := table.MustGet(m)
		if child.Kind == symbols.KindMethod && child.Method != nil && child.Method.Kind == symbols.MethodStaticConstructor {
			return true
		}
	}
	return false
}
