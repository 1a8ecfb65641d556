package lower

import (
	"fmt"

	"ember/internal/bound"
	"ember/internal/symbols"
)

// ConvertClosures rewrites every lambda in the body into a synthesized
// environment type plus an invoke method. Captured locals and
// parameters become fields of the environment; the lambda node shrinks
// to a reference to the synthesized method. Runs only when desugaring
// saw a lambda.
//
// Synthesized names derive from the enclosing method's ordinal and the
// lambda's position in source order, so they are stable across runs
// and thread schedules.
func ConvertClosures(ctx *Context, body *bound.Body) *bound.Body {
	if body.HasErrors() {
		return body
	}
	method := ctx.Table.MustGet(ctx.Method)
	owner := method.Parent
	ordinal := int32(0)
	if method.Method != nil {
		ordinal = method.Method.Ordinal
	}

	cc := &closureConverter{
		ctx:     ctx,
		body:    body,
		owner:   owner,
		ordinal: ordinal,
		method:  method,
	}
	block := mapBlockExprs(body.Block, cc.rewrite)
	out := cc.body.WithBlock(block)

	// Locals that escaped into an environment live there now.
	if len(cc.hoisted) > 0 {
		locals := make([]bound.Local, len(out.Locals))
		copy(locals, out.Locals)
		for id := range cc.hoisted {
			if int(id) < len(locals) {
				locals[id].Hoisted = true
			}
		}
		out = &bound.Body{Locals: locals, Block: out.Block, Err: out.Err}
	}
	return out
}

type closureConverter struct {
	ctx     *Context
	body    *bound.Body
	owner   symbols.ID
	ordinal int32
	method  symbols.Symbol
	index   int
	hoisted map[bound.LocalID]struct{}
}

func (cc *closureConverter) rewrite(e *bound.Expr) *bound.Expr {
	d, ok := e.Data.(bound.LambdaData)
	if !ok || d.Target.IsValid() {
		return e
	}
	idx := cc.index
	cc.index++

	envName := fmt.Sprintf("<%s>Closure_%d_%d", cc.method.Name, cc.ordinal, idx)
	envType := cc.ctx.Table.NewType(cc.owner, envName, symbols.FlagSynthesized, e.Span)
	cc.ctx.Synth.AddSynthesizedType(envType)

	// One field per captured local/parameter, in capture order.
	localFields := make(map[bound.LocalID]symbols.ID, len(d.Captures))
	for _, c := range d.Captures {
		name := fmt.Sprintf("local#%d", c)
		typ := ""
		if int(c) < len(cc.body.Locals) {
			name = cc.body.Locals[c].Name
			typ = cc.body.Locals[c].Type
		}
		localFields[c] = cc.ctx.Table.NewField(envType, name, symbols.FlagSynthesized, e.Span, symbols.FieldInfo{Type: typ})
		if cc.hoisted == nil {
			cc.hoisted = make(map[bound.LocalID]struct{})
		}
		cc.hoisted[c] = struct{}{}
	}
	paramFields := make(map[uint32]symbols.ID, len(d.ParamCaptures))
	for _, pi := range d.ParamCaptures {
		name := fmt.Sprintf("param#%d", pi)
		typ := ""
		if cc.method.Method != nil && int(pi) < len(cc.method.Method.Params) {
			name = cc.method.Method.Params[pi].Name
			typ = cc.method.Method.Params[pi].Type
		}
		paramFields[pi] = cc.ctx.Table.NewField(envType, name, symbols.FlagSynthesized, e.Span, symbols.FieldInfo{Type: typ})
	}

	invoke := cc.ctx.Table.NewMethod(envType, "Invoke", symbols.FlagSynthesized, e.Span, symbols.MethodInfo{
		Kind:    symbols.MethodClosureBody,
		Params:  d.Params,
		Result:  d.Result,
		Ordinal: int32(idx),
	})

	// Captured references inside the lambda body now go through the
	// environment's fields.
	receiver := func() *bound.Expr {
		return &bound.Expr{Kind: bound.ExprThis, Type: envName, Span: e.Span, Data: bound.ThisData{}}
	}
	invokeBlock := mapBlockExprs(d.Body, func(inner *bound.Expr) *bound.Expr {
		switch id := inner.Data.(type) {
		case bound.LocalRefData:
			if f, ok := localFields[id.Local]; ok {
				return &bound.Expr{Kind: bound.ExprFieldRef, Type: inner.Type, Span: inner.Span,
					Data: bound.FieldRefData{Field: f, Receiver: receiver()}}
			}
		case bound.ParamRefData:
			if f, ok := paramFields[id.Index]; ok {
				return &bound.Expr{Kind: bound.ExprFieldRef, Type: inner.Type, Span: inner.Span,
					Data: bound.FieldRefData{Field: f, Receiver: receiver()}}
			}
		}
		return inner
	})

	cc.ctx.Synth.AddSynthesizedMethod(SynthesizedMethod{
		Owner:        envType,
		Method:       invoke,
		Body:         &bound.Body{Block: invokeBlock},
		Imports:      cc.ctx.Imports,
		LexicalScope: e.Span,
	})

	return &bound.Expr{Kind: e.Kind, Type: e.Type, Span: e.Span, Data: bound.LambdaData{
		Params:        d.Params,
		Result:        d.Result,
		Captures:      d.Captures,
		ParamCaptures: d.ParamCaptures,
		Target:        invoke,
	}}
}
