package lower

import (
	"fmt"

	"fortio.org/safecast"

	"ember/internal/bound"
	"ember/internal/source"
	"ember/internal/symbols"
)

// machineKind selects between the two state-machine conversions.
type machineKind uint8

const (
	machineIterator machineKind = iota
	machineAsync
)

// machineBuilder synthesizes a state machine type for one method:
// a state field, a current/result field, one field per hoisted local
// and parameter, a constructor, and a move-next method whose body is a
// resume dispatch over the method's suspension points.
type machineBuilder struct {
	ctx     *Context
	kind    machineKind
	method  symbols.Symbol
	span    source.Span
	machine symbols.ID

	stateField   symbols.ID
	valueField   symbols.ID // <>current for iterators, <>result for async
	localFields  []symbols.ID
	paramFields  []symbols.ID
	awaiterField map[int]symbols.ID
}

func buildStateMachine(ctx *Context, body *bound.Body, kind machineKind) (*bound.Body, symbols.ID) {
	method := ctx.Table.MustGet(ctx.Method)
	ordinal := int32(0)
	if method.Method != nil {
		ordinal = method.Method.Ordinal
	}
	span := method.Span

	b := &machineBuilder{
		ctx:          ctx,
		kind:         kind,
		method:       method,
		span:         span,
		awaiterField: make(map[int]symbols.ID),
	}

	name := fmt.Sprintf("<%s>d__%d", method.Name, ordinal)
	b.machine = ctx.Table.NewType(method.Parent, name, symbols.FlagSynthesized, span)
	ctx.Synth.AddSynthesizedType(b.machine)

	b.stateField = ctx.Table.NewField(b.machine, "<>state", symbols.FlagSynthesized, span, symbols.FieldInfo{Type: "int"})
	switch kind {
	case machineIterator:
		b.valueField = ctx.Table.NewField(b.machine, "<>current", symbols.FlagSynthesized, span, symbols.FieldInfo{Type: elementType(method)})
	case machineAsync:
		b.valueField = ctx.Table.NewField(b.machine, "<>result", symbols.FlagSynthesized, span, symbols.FieldInfo{Type: resultPayload(method)})
	}

	// Every local and parameter survives suspension by living on the
	// machine.
	for i, l := range body.Locals {
		fname := fmt.Sprintf("<%s>5__%d", nonEmpty(l.Name, "local"), i)
		b.localFields = append(b.localFields, ctx.Table.NewField(b.machine, fname, symbols.FlagSynthesized, span, symbols.FieldInfo{Type: l.Type}))
	}
	if method.Method != nil {
		for i, p := range method.Method.Params {
			fname := fmt.Sprintf("<>p__%s", nonEmpty(p.Name, fmt.Sprintf("%d", i)))
			b.paramFields = append(b.paramFields, ctx.Table.NewField(b.machine, fname, symbols.FlagSynthesized, span, symbols.FieldInfo{Type: p.Type}))
		}
	}

	hoisted := b.hoistBlock(body.Block)
	if kind == machineAsync {
		hoisted = b.rewriteAsyncReturns(hoisted)
	}
	dispatch := b.buildDispatch(hoisted)

	moveNextResult := ""
	if kind == machineIterator {
		moveNextResult = "bool"
	}
	moveNext := ctx.Table.NewMethod(b.machine, "MoveNext", symbols.FlagSynthesized, span, symbols.MethodInfo{
		Kind:   symbols.MethodMoveNext,
		Result: moveNextResult,
	})
	ctx.Synth.AddSynthesizedMethod(SynthesizedMethod{
		Owner:        b.machine,
		Method:       moveNext,
		Body:         &bound.Body{Block: dispatch},
		Imports:      ctx.Imports,
		LexicalScope: span,
	})

	ctor := b.synthesizeCtor()

	// The original method now just instantiates the machine.
	var args []*bound.Expr
	if method.Method != nil {
		for i, p := range method.Method.Params {
			idx, err := safecast.Conv[uint32](i)
			if err != nil {
				continue
			}
			args = append(args, &bound.Expr{Kind: bound.ExprParamRef, Type: p.Type, Span: span, Data: bound.ParamRefData{Index: idx}})
		}
	}
	replacement := &bound.Body{Block: &bound.Block{
		Span: span,
		Stmts: []*bound.Stmt{{
			Kind: bound.StmtReturn,
			Span: span,
			Data: bound.ReturnData{Value: &bound.Expr{
				Kind: bound.ExprNew,
				Type: name,
				Span: span,
				Data: bound.NewData{Ctor: ctor, Args: args},
			}},
		}},
	}}
	return replacement, b.machine
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// elementType guesses the yielded element type from an iterator's
// declared result. The middle-end treats type names opaquely, so a
// best-effort strip of one generic layer is all this does.
func elementType(method symbols.Symbol) string {
	if method.Method == nil {
		return ""
	}
	r := method.Method.Result
	if open := indexByte(r, '<'); open >= 0 && len(r) > open+1 && r[len(r)-1] == '>' {
		return r[open+1 : len(r)-1]
	}
	return r
}

// resultPayload is the awaited payload of an async method's task type.
func resultPayload(method symbols.Symbol) string {
	return elementType(method)
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

func (b *machineBuilder) this() *bound.Expr {
	return &bound.Expr{Kind: bound.ExprThis, Span: b.span, Data: bound.ThisData{}}
}

func (b *machineBuilder) fieldRef(field symbols.ID, typ string, span source.Span) *bound.Expr {
	return &bound.Expr{Kind: bound.ExprFieldRef, Type: typ, Span: span, Data: bound.FieldRefData{Field: field, Receiver: b.this()}}
}

func (b *machineBuilder) assignField(field symbols.ID, value *bound.Expr, span source.Span) *bound.Stmt {
	return &bound.Stmt{Kind: bound.StmtAssign, Span: span, Data: bound.AssignData{
		Target: b.fieldRef(field, "", span),
		Value:  value,
	}}
}

func (b *machineBuilder) intLit(v int32, span source.Span) *bound.Expr {
	return &bound.Expr{Kind: bound.ExprLiteral, Type: "int", Span: span, Data: bound.LiteralData{Text: fmt.Sprintf("%d", v)}}
}

func (b *machineBuilder) setState(v int32, span source.Span) *bound.Stmt {
	return b.assignField(b.stateField, b.intLit(v, span), span)
}

// hoistBlock rewrites local and parameter references to machine fields
// and turns local declarations into field assignments.
func (b *machineBuilder) hoistBlock(block *bound.Block) *bound.Block {
	if block == nil {
		return nil
	}
	refRewrite := func(e *bound.Expr) *bound.Expr {
		switch d := e.Data.(type) {
		case bound.LocalRefData:
			if int(d.Local) < len(b.localFields) {
				return b.fieldRef(b.localFields[d.Local], e.Type, e.Span)
			}
		case bound.ParamRefData:
			if int(d.Index) < len(b.paramFields) {
				return b.fieldRef(b.paramFields[d.Index], e.Type, e.Span)
			}
		}
		return e
	}
	mapped := mapBlockExprs(block, refRewrite)
	return b.declsToAssigns(mapped)
}

func (b *machineBuilder) declsToAssigns(block *bound.Block) *bound.Block {
	if block == nil {
		return nil
	}
	stmts := make([]*bound.Stmt, 0, len(block.Stmts))
	for _, s := range block.Stmts {
		if t := b.declToAssign(s); t != nil {
			stmts = append(stmts, t)
		}
	}
	return &bound.Block{Stmts: stmts, Span: block.Span}
}

func (b *machineBuilder) declToAssign(s *bound.Stmt) *bound.Stmt {
	if s == nil || s.Err {
		return s
	}
	switch d := s.Data.(type) {
	case bound.LocalDeclData:
		if d.Init == nil {
			// Bare declaration; the field already exists.
			return nil
		}
		if int(d.Local) < len(b.localFields) {
			return b.assignField(b.localFields[d.Local], d.Init, s.Span)
		}
		return s
	case bound.IfData:
		return &bound.Stmt{Kind: s.Kind, Span: s.Span, Data: bound.IfData{Cond: d.Cond, Then: b.declsToAssigns(d.Then), Else: b.declsToAssigns(d.Else)}}
	case bound.WhileData:
		return &bound.Stmt{Kind: s.Kind, Span: s.Span, Data: bound.WhileData{Cond: d.Cond, Body: b.declsToAssigns(d.Body)}}
	case bound.BlockStmtData:
		return &bound.Stmt{Kind: s.Kind, Span: s.Span, Data: bound.BlockStmtData{Block: b.declsToAssigns(d.Block)}}
	case bound.TryData:
		catches := make([]bound.CatchClause, 0, len(d.Catches))
		for _, c := range d.Catches {
			catches = append(catches, bound.CatchClause{Local: c.Local, Type: c.Type, Body: b.declsToAssigns(c.Body)})
		}
		return &bound.Stmt{Kind: s.Kind, Span: s.Span, Data: bound.TryData{Body: b.declsToAssigns(d.Body), Catches: catches, Finally: b.declsToAssigns(d.Finally)}}
	case bound.SwitchData:
		cases := make([]bound.SwitchCase, 0, len(d.Cases))
		for _, c := range d.Cases {
			cases = append(cases, bound.SwitchCase{Match: c.Match, Body: b.declsToAssigns(c.Body)})
		}
		return &bound.Stmt{Kind: s.Kind, Span: s.Span, Data: bound.SwitchData{Value: d.Value, Cases: cases, Default: b.declsToAssigns(d.Default)}}
	default:
		return s
	}
}

// rewriteAsyncReturns turns every return of the async body into a
// result store followed by a final-state return, so the dispatch only
// ever sees bare returns.
func (b *machineBuilder) rewriteAsyncReturns(block *bound.Block) *bound.Block {
	if block == nil {
		return nil
	}
	stmts := make([]*bound.Stmt, 0, len(block.Stmts))
	for _, s := range block.Stmts {
		stmts = append(stmts, b.rewriteAsyncReturnStmt(s)...)
	}
	return &bound.Block{Stmts: stmts, Span: block.Span}
}

func (b *machineBuilder) rewriteAsyncReturnStmt(s *bound.Stmt) []*bound.Stmt {
	if s == nil || s.Err {
		return []*bound.Stmt{s}
	}
	switch d := s.Data.(type) {
	case bound.ReturnData:
		out := make([]*bound.Stmt, 0, 3)
		if d.Value != nil {
			out = append(out, b.assignField(b.valueField, d.Value, s.Span))
		}
		out = append(out, b.setState(-1, s.Span))
		out = append(out, &bound.Stmt{Kind: bound.StmtReturn, Span: s.Span, Data: bound.ReturnData{Implicit: d.Implicit}})
		return out
	case bound.IfData:
		return []*bound.Stmt{{Kind: s.Kind, Span: s.Span, Data: bound.IfData{Cond: d.Cond, Then: b.rewriteAsyncReturns(d.Then), Else: b.rewriteAsyncReturns(d.Else)}}}
	case bound.WhileData:
		return []*bound.Stmt{{Kind: s.Kind, Span: s.Span, Data: bound.WhileData{Cond: d.Cond, Body: b.rewriteAsyncReturns(d.Body)}}}
	case bound.BlockStmtData:
		return []*bound.Stmt{{Kind: s.Kind, Span: s.Span, Data: bound.BlockStmtData{Block: b.rewriteAsyncReturns(d.Block)}}}
	case bound.TryData:
		catches := make([]bound.CatchClause, 0, len(d.Catches))
		for _, c := range d.Catches {
			catches = append(catches, bound.CatchClause{Local: c.Local, Type: c.Type, Body: b.rewriteAsyncReturns(c.Body)})
		}
		return []*bound.Stmt{{Kind: s.Kind, Span: s.Span, Data: bound.TryData{Body: b.rewriteAsyncReturns(d.Body), Catches: catches, Finally: b.rewriteAsyncReturns(d.Finally)}}}
	default:
		return []*bound.Stmt{s}
	}
}

// suspensionBoundary reports whether a top-level statement suspends the
// machine. Suspension points nested inside control flow stay within
// their containing statement; the dispatch resumes after it.
func (b *machineBuilder) suspensionBoundary(s *bound.Stmt) bool {
	if s == nil {
		return false
	}
	switch b.kind {
	case machineIterator:
		return s.Kind == bound.StmtYield
	case machineAsync:
		_, _, ok := splitTopAwait(s)
		return ok
	}
	return false
}

// splitTopAwait recognizes `await e;` and `x = await e;` statement
// forms, returning the operand and a builder for the resume statement.
func splitTopAwait(s *bound.Stmt) (*bound.Expr, func(result *bound.Expr) *bound.Stmt, bool) {
	switch d := s.Data.(type) {
	case bound.ExprStmtData:
		if d.Expr != nil {
			if aw, ok := d.Expr.Data.(bound.AwaitData); ok {
				return aw.Operand, func(result *bound.Expr) *bound.Stmt {
					return &bound.Stmt{Kind: bound.StmtExpr, Span: s.Span, Data: bound.ExprStmtData{Expr: result}}
				}, true
			}
		}
	case bound.AssignData:
		if d.Value != nil {
			if aw, ok := d.Value.Data.(bound.AwaitData); ok {
				target := d.Target
				return aw.Operand, func(result *bound.Expr) *bound.Stmt {
					return &bound.Stmt{Kind: bound.StmtAssign, Span: s.Span, Data: bound.AssignData{Target: target, Value: result}}
				}, true
			}
		}
	}
	return nil, nil, false
}

// buildDispatch splits the hoisted body into segments at suspension
// boundaries and builds the resume switch. Each case replays from its
// resume point to the end of the body, so a machine entered in state k
// runs segment k onward until the next suspension.
func (b *machineBuilder) buildDispatch(block *bound.Block) *bound.Block {
	var segments [][]*bound.Stmt
	var boundaries []*bound.Stmt
	current := []*bound.Stmt{}
	if block != nil {
		for _, s := range block.Stmts {
			if b.suspensionBoundary(s) {
				segments = append(segments, current)
				boundaries = append(boundaries, s)
				current = nil
				continue
			}
			current = append(current, s)
		}
	}
	segments = append(segments, current)

	span := b.span
	cases := make([]bound.SwitchCase, 0, len(segments))
	for k := range segments {
		caseStmts := []*bound.Stmt{}
		if k > 0 {
			caseStmts = append(caseStmts, b.resumePrologue(boundaries[k-1], k-1)...)
		}
		for j := k; j < len(segments); j++ {
			caseStmts = append(caseStmts, segments[j]...)
			if j < len(boundaries) {
				caseStmts = append(caseStmts, b.suspend(boundaries[j], j)...)
			}
		}
		caseStmts = append(caseStmts, b.epilogue(span)...)
		match, err := safecast.Conv[int32](k)
		if err != nil {
			continue
		}
		cases = append(cases, bound.SwitchCase{Match: match, Body: &bound.Block{Stmts: caseStmts, Span: span}})
	}

	dispatch := &bound.Stmt{Kind: bound.StmtSwitch, Span: span, Data: bound.SwitchData{
		Value:   b.fieldRef(b.stateField, "int", span),
		Cases:   cases,
		Default: &bound.Block{Stmts: b.epilogue(span), Span: span},
	}}
	return &bound.Block{Stmts: []*bound.Stmt{dispatch}, Span: span}
}

// suspend emits the statements that park the machine at boundary k and
// leave MoveNext.
func (b *machineBuilder) suspend(boundary *bound.Stmt, k int) []*bound.Stmt {
	span := boundary.Span
	next, err := safecast.Conv[int32](k + 1)
	if err != nil {
		next = -1
	}
	switch b.kind {
	case machineIterator:
		d := boundary.Data.(bound.YieldData)
		if d.Value == nil {
			// yield break: the sequence ends here.
			return []*bound.Stmt{
				b.setState(-1, span),
				b.returnBool(false, span),
			}
		}
		return []*bound.Stmt{
			b.assignField(b.valueField, d.Value, span),
			b.setState(next, span),
			b.returnBool(true, span),
		}
	case machineAsync:
		operand, _, _ := splitTopAwait(boundary)
		awaiter := b.awaiterFor(k, span)
		return []*bound.Stmt{
			b.assignField(awaiter, operand, span),
			b.setState(next, span),
			{Kind: bound.StmtReturn, Span: span, Data: bound.ReturnData{}},
		}
	}
	return nil
}

// resumePrologue emits the statements that complete boundary k when
// the machine re-enters in state k+1.
func (b *machineBuilder) resumePrologue(boundary *bound.Stmt, k int) []*bound.Stmt {
	if b.kind != machineAsync {
		return nil
	}
	span := boundary.Span
	_, rebuild, ok := splitTopAwait(boundary)
	if !ok {
		return nil
	}
	awaiter := b.awaiterFor(k, span)
	result := &bound.Expr{
		Kind: bound.ExprUnary,
		Span: span,
		Data: bound.UnaryData{Op: "awaitresult", Operand: b.fieldRef(awaiter, "", span)},
	}
	return []*bound.Stmt{rebuild(result)}
}

func (b *machineBuilder) awaiterFor(k int, span source.Span) symbols.ID {
	if f, ok := b.awaiterField[k]; ok {
		return f
	}
	f := b.ctx.Table.NewField(b.machine, fmt.Sprintf("<>awaiter_%d", k), symbols.FlagSynthesized, span, symbols.FieldInfo{})
	b.awaiterField[k] = f
	return f
}

func (b *machineBuilder) epilogue(span source.Span) []*bound.Stmt {
	switch b.kind {
	case machineIterator:
		return []*bound.Stmt{
			b.setState(-1, span),
			b.returnBool(false, span),
		}
	default:
		return []*bound.Stmt{
			b.setState(-1, span),
			{Kind: bound.StmtReturn, Span: span, Data: bound.ReturnData{}},
		}
	}
}

func (b *machineBuilder) returnBool(v bool, span source.Span) *bound.Stmt {
	text := "false"
	if v {
		text = "true"
	}
	return &bound.Stmt{Kind: bound.StmtReturn, Span: span, Data: bound.ReturnData{
		Value: &bound.Expr{Kind: bound.ExprLiteral, Type: "bool", Span: span, Data: bound.LiteralData{Text: text}},
	}}
}

// synthesizeCtor builds the machine constructor: parameters mirror the
// original method's and land in their fields, and the machine starts
// in state 0.
func (b *machineBuilder) synthesizeCtor() symbols.ID {
	var params []symbols.Param
	if b.method.Method != nil {
		params = b.method.Method.Params
	}
	ctor := b.ctx.Table.NewMethod(b.machine, ".ctor", symbols.FlagSynthesized, b.span, symbols.MethodInfo{
		Kind:   symbols.MethodConstructor,
		Params: params,
	})
	stmts := []*bound.Stmt{b.setState(0, b.span)}
	for i := range params {
		idx, err := safecast.Conv[uint32](i)
		if err != nil {
			continue
		}
		stmts = append(stmts, b.assignField(b.paramFields[i], &bound.Expr{
			Kind: bound.ExprParamRef,
			Type: params[i].Type,
			Span: b.span,
			Data: bound.ParamRefData{Index: idx},
		}, b.span))
	}
	b.ctx.Synth.AddSynthesizedMethod(SynthesizedMethod{
		Owner:        b.machine,
		Method:       ctor,
		Body:         &bound.Body{Block: &bound.Block{Stmts: stmts, Span: b.span}},
		Imports:      b.ctx.Imports,
		LexicalScope: b.span,
	})
	return ctor
}
