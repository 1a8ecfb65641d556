package compile

import (
	"fmt"
	"strings"

	"ember/internal/bound"
	"ember/internal/diag"
	"ember/internal/emit"
	"ember/internal/symbols"
)

// resolveEntryPoint selects and links the module entry point. It runs
// once, before the compilation fans out, because an async main needs
// its synchronous forwarder to exist as a symbol before ordinary
// member compilation starts.
func resolveEntryPoint(c *Compilation, module *emit.ModuleBuilder, bag *diag.Bag) {
	table := c.Table()
	candidates := entryCandidates(table)

	switch len(candidates) {
	case 0:
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.CompileEntryMissing,
			Message:  "no entry point: the module declares no Main method",
		})
		c.SetGlobalError()
		return
	case 1:
	default:
		names := make([]string, 0, len(candidates))
		for _, id := range candidates {
			names = append(names, table.FullName(id))
		}
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.CompileEntryAmbiguous,
			Message:  fmt.Sprintf("ambiguous entry point: %s", strings.Join(names, ", ")),
			Primary:  table.MustGet(candidates[0]).Span,
		})
		c.SetGlobalError()
		return
	}

	main := candidates[0]
	sym := table.MustGet(main)
	if !validEntrySignature(sym) {
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.CompileEntrySignature,
			Message:  fmt.Sprintf("%s is not a valid entry point: must be static with no parameters or a single argument list", table.FullName(main)),
			Primary:  sym.Span,
		})
		c.SetGlobalError()
		return
	}

	entry := main
	if sym.Flags.Has(symbols.FlagAsync) {
		entry = synthesizeMainForwarder(c, main, sym)
	}
	if err := module.SetEntryPoint(entry); err != nil {
		c.SetGlobalError()
	}
}

func entryCandidates(table *symbols.Table) []symbols.ID {
	var out []symbols.ID
	n := table.Len()
	for i := 2; i < n; i++ {
		id := symbols.ID(i)
		sym := table.MustGet(id)
		if sym.Kind != symbols.KindMethod || sym.Flags.Has(symbols.FlagSynthesized) {
			continue
		}
		if sym.Flags.Has(symbols.FlagEntrypoint) || sym.Name == "Main" {
			out = append(out, id)
		}
	}
	return out
}

func validEntrySignature(sym symbols.Symbol) bool {
	if !sym.Flags.Has(symbols.FlagStatic) || sym.Method == nil {
		return false
	}
	return len(sym.Method.Params) <= 1
}

// synthesizeMainForwarder declares the synchronous wrapper that awaits
// an async main. The forwarder gets a bound body immediately so the
// ordinary fan-out compiles it like any other member.
func synthesizeMainForwarder(c *Compilation, main symbols.ID, sym symbols.Symbol) symbols.ID {
	table := c.Table()
	params := sym.Method.Params
	fwd := table.NewMethod(sym.Parent, "<Main>", symbols.FlagStatic|symbols.FlagSynthesized, sym.Span, symbols.MethodInfo{
		Kind:   symbols.MethodForwarder,
		Params: params,
		Result: "",
	})

	var args []*bound.Expr
	for i := range params {
		args = append(args, &bound.Expr{
			Kind: bound.ExprParamRef,
			Type: params[i].Type,
			Span: sym.Span,
			Data: bound.ParamRefData{Index: uint32(i)},
		})
	}
	call := &bound.Expr{
		Kind: bound.ExprCall,
		Type: sym.Method.Result,
		Span: sym.Span,
		Data: bound.CallData{Method: main, Args: args},
	}
	// The forwarder blocks on the task synchronously; it is not itself
	// async, so this is a wait intrinsic, not an await.
	stmt := &bound.Stmt{
		Kind: bound.StmtExpr,
		Span: sym.Span,
		Data: bound.ExprStmtData{Expr: &bound.Expr{
			Kind: bound.ExprUnary,
			Span: sym.Span,
			Data: bound.UnaryData{Op: "blockwait", Operand: call},
		}},
	}
	c.Program.SetBody(fwd, &bound.Body{Block: &bound.Block{Stmts: []*bound.Stmt{stmt}, Span: sym.Span}})
	return fwd
}
