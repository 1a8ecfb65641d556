package program

import (
	"fmt"

	"fortio.org/safecast"

	"ember/internal/bound"
	"ember/internal/diag"
	"ember/internal/source"
	"ember/internal/symbols"
)

// Schema version for the bound-program interchange format. Bump when
// the wire layout changes.
const wireSchemaVersion uint16 = 1

type wireSpan struct {
	File  uint32
	Start uint32
	End   uint32
}

func spanToWire(s source.Span) wireSpan {
	return wireSpan{File: uint32(s.File), Start: s.Start, End: s.End}
}

func spanFromWire(w wireSpan) source.Span {
	return source.Span{File: source.FileID(w.File), Start: w.Start, End: w.End}
}

type wireFile struct {
	ID   uint32
	Path string
}

type wireParam struct {
	Name      string
	Type      string
	NullCheck bool
}

type wireMethodInfo struct {
	Kind       uint8
	Params     []wireParam
	Result     string
	Ordinal    int32
	Definition uint32
}

type wireFieldInfo struct {
	Type           string
	HasInitializer bool
	Nullable       bool
}

type wirePropertyInfo struct {
	Getter uint32
	Setter uint32
}

type wireEventInfo struct {
	Adder   uint32
	Remover uint32
}

type wireSymbol struct {
	Name     string
	Kind     uint8
	Parent   uint32
	Flags    uint16
	Span     wireSpan
	Method   *wireMethodInfo
	Field    *wireFieldInfo
	Property *wirePropertyInfo
	Event    *wireEventInfo
}

type wireLocal struct {
	Name     string
	Type     string
	Nullable bool
	Span     wireSpan
	Hoisted  bool
}

type wireBlock struct {
	Span  wireSpan
	Stmts []*wireStmt
}

type wireCatch struct {
	Local uint32
	Type  string
	Body  *wireBlock
}

type wireStmt struct {
	Kind uint8
	Span wireSpan
	Err  bool

	Local    uint32
	Init     *wireExpr
	Target   *wireExpr
	Value    *wireExpr
	Cond     *wireExpr
	Then     *wireBlock
	Else     *wireBlock
	Body     *wireBlock
	Catches  []wireCatch
	Finally  *wireBlock
	Cases    []wireSwitchCase
	Implicit bool
	Reason   string
}

type wireSwitchCase struct {
	Match int32
	Body  *wireBlock
}

type wirePart struct {
	Text string
	Expr *wireExpr
}

type wireExpr struct {
	Kind uint8
	Type string
	Span wireSpan
	Err  bool

	Text          string
	Sym           uint32
	Index         uint32
	Op            string
	A             *wireExpr
	B             *wireExpr
	Args          []*wireExpr
	Params        []wireParam
	Result        string
	Body          *wireBlock
	Captures      []uint32
	ParamCaptures []uint32
	Local         uint32
	Parts         []wirePart
	Reason        string
}

type wireBody struct {
	Locals []wireLocal
	Err    bool
	Block  *wireBlock
}

type wireFieldInit struct {
	Field uint32
	Value *wireExpr
	Span  wireSpan
}

type wireCtorInit struct {
	Kind   uint8
	Target uint32
	Span   wireSpan
}

type wireImportChain struct {
	Usings []string
	Parent *wireImportChain
}

type wireNote struct {
	Span wireSpan
	Msg  string
}

type wireDiagnostic struct {
	Severity uint8
	Code     uint16
	Message  string
	Span     wireSpan
	Notes    []wireNote
}

type wireProgram struct {
	Schema    uint16
	Files     []wireFile
	Symbols   []wireSymbol
	Bodies    map[uint32]*wireBody
	Inits     map[uint32][]wireFieldInit
	CtorInits map[uint32]wireCtorInit
	Imports   map[uint32]*wireImportChain
	BindDiags map[uint32][]wireDiagnostic
}

func paramsToWire(params []symbols.Param) []wireParam {
	if len(params) == 0 {
		return nil
	}
	out := make([]wireParam, len(params))
	for i, p := range params {
		out[i] = wireParam{Name: p.Name, Type: p.Type, NullCheck: p.NullCheck}
	}
	return out
}

func paramsFromWire(params []wireParam) []symbols.Param {
	if len(params) == 0 {
		return nil
	}
	out := make([]symbols.Param, len(params))
	for i, p := range params {
		out[i] = symbols.Param{Name: p.Name, Type: p.Type, NullCheck: p.NullCheck}
	}
	return out
}

func toWire(p *Program) (*wireProgram, error) {
	w := &wireProgram{
		Schema:    wireSchemaVersion,
		Bodies:    make(map[uint32]*wireBody, len(p.bodies)),
		Inits:     make(map[uint32][]wireFieldInit, len(p.inits)),
		CtorInits: make(map[uint32]wireCtorInit, len(p.ctorInits)),
		Imports:   make(map[uint32]*wireImportChain, len(p.imports)),
		BindDiags: make(map[uint32][]wireDiagnostic, len(p.bindDiags)),
	}

	for _, f := range p.Files.All() {
		w.Files = append(w.Files, wireFile{ID: uint32(f.ID), Path: f.Path})
	}

	// Symbols stream out in ID order so the loader can rebuild the
	// table with identical IDs and member ordering. ID 1 is the root
	// namespace every table starts with.
	total, err := safecast.Conv[uint32](p.Table.Len())
	if err != nil {
		return nil, fmt.Errorf("program: symbol table too large: %w", err)
	}
	for id := uint32(2); id < total; id++ {
		s, ok := p.Table.Get(symbols.ID(id))
		if !ok {
			return nil, fmt.Errorf("program: missing symbol %d", id)
		}
		ws := wireSymbol{
			Name:   s.Name,
			Kind:   uint8(s.Kind),
			Parent: uint32(s.Parent),
			Flags:  uint16(s.Flags),
			Span:   spanToWire(s.Span),
		}
		if s.Method != nil {
			ws.Method = &wireMethodInfo{
				Kind:       uint8(s.Method.Kind),
				Params:     paramsToWire(s.Method.Params),
				Result:     s.Method.Result,
				Ordinal:    s.Method.Ordinal,
				Definition: uint32(s.Method.Definition),
			}
		}
		if s.Field != nil {
			ws.Field = &wireFieldInfo{
				Type:           s.Field.Type,
				HasInitializer: s.Field.HasInitializer,
				Nullable:       s.Field.Nullable,
			}
		}
		if s.Property != nil {
			ws.Property = &wirePropertyInfo{Getter: uint32(s.Property.Getter), Setter: uint32(s.Property.Setter)}
		}
		if s.Event != nil {
			ws.Event = &wireEventInfo{Adder: uint32(s.Event.Adder), Remover: uint32(s.Event.Remover)}
		}
		w.Symbols = append(w.Symbols, ws)
	}

	for m, b := range p.bodies {
		w.Bodies[uint32(m)] = bodyToWire(b)
	}
	for t, inits := range p.inits {
		ws := make([]wireFieldInit, len(inits))
		for i, fi := range inits {
			ws[i] = wireFieldInit{Field: uint32(fi.Field), Value: exprToWire(fi.Value), Span: spanToWire(fi.Span)}
		}
		w.Inits[uint32(t)] = ws
	}
	for c, ci := range p.ctorInits {
		w.CtorInits[uint32(c)] = wireCtorInit{Kind: uint8(ci.Kind), Target: uint32(ci.Target), Span: spanToWire(ci.Span)}
	}
	for m, chain := range p.imports {
		w.Imports[uint32(m)] = importsToWire(chain)
	}
	for m, diags := range p.bindDiags {
		ws := make([]wireDiagnostic, len(diags))
		for i, d := range diags {
			ws[i] = diagToWire(d)
		}
		w.BindDiags[uint32(m)] = ws
	}
	return w, nil
}

func fromWire(w *wireProgram) (*Program, error) {
	if w.Schema != wireSchemaVersion {
		return nil, fmt.Errorf("program: unsupported schema %d (want %d)", w.Schema, wireSchemaVersion)
	}
	files := source.NewFileSet()
	for _, f := range w.Files {
		if err := files.AddWithID(source.FileID(f.ID), f.Path); err != nil {
			return nil, err
		}
	}
	table := symbols.NewTable()
	for i, ws := range w.Symbols {
		want := symbols.ID(i + 2)
		parent := symbols.ID(ws.Parent)
		flags := symbols.Flags(ws.Flags)
		span := spanFromWire(ws.Span)
		var got symbols.ID
		switch symbols.Kind(ws.Kind) {
		case symbols.KindNamespace:
			got = table.NewNamespace(parent, ws.Name)
		case symbols.KindType:
			got = table.NewType(parent, ws.Name, flags, span)
		case symbols.KindMethod:
			if ws.Method == nil {
				return nil, fmt.Errorf("program: method symbol %d without method info", want)
			}
			got = table.NewMethod(parent, ws.Name, flags, span, symbols.MethodInfo{
				Kind:       symbols.MethodKind(ws.Method.Kind),
				Params:     paramsFromWire(ws.Method.Params),
				Result:     ws.Method.Result,
				Ordinal:    ws.Method.Ordinal,
				Definition: symbols.ID(ws.Method.Definition),
			})
		case symbols.KindField:
			if ws.Field == nil {
				return nil, fmt.Errorf("program: field symbol %d without field info", want)
			}
			got = table.NewField(parent, ws.Name, flags, span, symbols.FieldInfo{
				Type:           ws.Field.Type,
				HasInitializer: ws.Field.HasInitializer,
				Nullable:       ws.Field.Nullable,
			})
		case symbols.KindProperty:
			info := symbols.PropertyInfo{}
			if ws.Property != nil {
				info.Getter = symbols.ID(ws.Property.Getter)
				info.Setter = symbols.ID(ws.Property.Setter)
			}
			got = table.NewProperty(parent, ws.Name, flags, span, info)
		case symbols.KindEvent:
			info := symbols.EventInfo{}
			if ws.Event != nil {
				info.Adder = symbols.ID(ws.Event.Adder)
				info.Remover = symbols.ID(ws.Event.Remover)
			}
			got = table.NewEvent(parent, ws.Name, flags, span, info)
		default:
			return nil, fmt.Errorf("program: symbol %d has unknown kind %d", want, ws.Kind)
		}
		if got != want {
			return nil, fmt.Errorf("program: symbol id drifted: got %d want %d", got, want)
		}
	}

	p := New(table, files)
	for m, wb := range w.Bodies {
		p.bodies[symbols.ID(m)] = bodyFromWire(wb)
	}
	for t, inits := range w.Inits {
		out := make([]FieldInit, len(inits))
		for i, fi := range inits {
			out[i] = FieldInit{Field: symbols.ID(fi.Field), Value: exprFromWire(fi.Value), Span: spanFromWire(fi.Span)}
		}
		p.inits[symbols.ID(t)] = out
	}
	for c, ci := range w.CtorInits {
		p.ctorInits[symbols.ID(c)] = CtorInitializer{
			Kind:   InitializerKind(ci.Kind),
			Target: symbols.ID(ci.Target),
			Span:   spanFromWire(ci.Span),
		}
	}
	for m, chain := range w.Imports {
		p.imports[symbols.ID(m)] = importsFromWire(chain)
	}
	for m, diags := range w.BindDiags {
		out := make([]diag.Diagnostic, len(diags))
		for i, d := range diags {
			out[i] = diagFromWire(d)
		}
		p.bindDiags[symbols.ID(m)] = out
	}
	return p, nil
}

func importsToWire(c *ImportChain) *wireImportChain {
	if c == nil {
		return nil
	}
	return &wireImportChain{Usings: c.Usings, Parent: importsToWire(c.Parent)}
}

func importsFromWire(w *wireImportChain) *ImportChain {
	if w == nil {
		return nil
	}
	return &ImportChain{Usings: w.Usings, Parent: importsFromWire(w.Parent)}
}

func diagToWire(d diag.Diagnostic) wireDiagnostic {
	out := wireDiagnostic{
		Severity: uint8(d.Severity),
		Code:     uint16(d.Code),
		Message:  d.Message,
		Span:     spanToWire(d.Primary),
	}
	for _, n := range d.Notes {
		out.Notes = append(out.Notes, wireNote{Span: spanToWire(n.Span), Msg: n.Msg})
	}
	return out
}

func diagFromWire(w wireDiagnostic) diag.Diagnostic {
	out := diag.Diagnostic{
		Severity: diag.Severity(w.Severity),
		Code:     diag.Code(w.Code),
		Message:  w.Message,
		Primary:  spanFromWire(w.Span),
	}
	for _, n := range w.Notes {
		out.Notes = append(out.Notes, diag.Note{Span: spanFromWire(n.Span), Msg: n.Msg})
	}
	return out
}

func bodyToWire(b *bound.Body) *wireBody {
	if b == nil {
		return nil
	}
	out := &wireBody{Err: b.Err, Block: blockToWire(b.Block)}
	for _, l := range b.Locals {
		out.Locals = append(out.Locals, wireLocal{
			Name: l.Name, Type: l.Type, Nullable: l.Nullable,
			Span: spanToWire(l.Span), Hoisted: l.Hoisted,
		})
	}
	return out
}

func bodyFromWire(w *wireBody) *bound.Body {
	if w == nil {
		return nil
	}
	out := &bound.Body{Err: w.Err, Block: blockFromWire(w.Block)}
	for _, l := range w.Locals {
		out.Locals = append(out.Locals, bound.Local{
			Name: l.Name, Type: l.Type, Nullable: l.Nullable,
			Span: spanFromWire(l.Span), Hoisted: l.Hoisted,
		})
	}
	return out
}

func blockToWire(b *bound.Block) *wireBlock {
	if b == nil {
		return nil
	}
	out := &wireBlock{Span: spanToWire(b.Span)}
	for _, s := range b.Stmts {
		out.Stmts = append(out.Stmts, stmtToWire(s))
	}
	return out
}

func blockFromWire(w *wireBlock) *bound.Block {
	if w == nil {
		return nil
	}
	out := &bound.Block{Span: spanFromWire(w.Span)}
	for _, s := range w.Stmts {
		out.Stmts = append(out.Stmts, stmtFromWire(s))
	}
	return out
}

func stmtToWire(s *bound.Stmt) *wireStmt {
	if s == nil {
		return nil
	}
	out := &wireStmt{Kind: uint8(s.Kind), Span: spanToWire(s.Span), Err: s.Err}
	switch d := s.Data.(type) {
	case bound.LocalDeclData:
		out.Local = uint32(d.Local)
		out.Init = exprToWire(d.Init)
	case bound.ExprStmtData:
		out.Value = exprToWire(d.Expr)
	case bound.AssignData:
		out.Target = exprToWire(d.Target)
		out.Value = exprToWire(d.Value)
	case bound.ReturnData:
		out.Value = exprToWire(d.Value)
		out.Implicit = d.Implicit
	case bound.IfData:
		out.Cond = exprToWire(d.Cond)
		out.Then = blockToWire(d.Then)
		out.Else = blockToWire(d.Else)
	case bound.WhileData:
		out.Cond = exprToWire(d.Cond)
		out.Body = blockToWire(d.Body)
	case bound.BlockStmtData:
		out.Body = blockToWire(d.Block)
	case bound.TryData:
		out.Body = blockToWire(d.Body)
		for _, c := range d.Catches {
			out.Catches = append(out.Catches, wireCatch{
				Local: uint32(c.Local), Type: c.Type, Body: blockToWire(c.Body),
			})
		}
		out.Finally = blockToWire(d.Finally)
	case bound.ThrowData:
		out.Value = exprToWire(d.Value)
	case bound.YieldData:
		out.Value = exprToWire(d.Value)
	case bound.SwitchData:
		out.Value = exprToWire(d.Value)
		for _, c := range d.Cases {
			out.Cases = append(out.Cases, wireSwitchCase{Match: c.Match, Body: blockToWire(c.Body)})
		}
		out.Else = blockToWire(d.Default)
	case bound.BadStmtData:
		out.Reason = d.Reason
	}
	return out
}

func stmtFromWire(w *wireStmt) *bound.Stmt {
	if w == nil {
		return nil
	}
	out := &bound.Stmt{Kind: bound.StmtKind(w.Kind), Span: spanFromWire(w.Span), Err: w.Err}
	switch out.Kind {
	case bound.StmtLocalDecl:
		out.Data = bound.LocalDeclData{Local: bound.LocalID(w.Local), Init: exprFromWire(w.Init)}
	case bound.StmtExpr:
		out.Data = bound.ExprStmtData{Expr: exprFromWire(w.Value)}
	case bound.StmtAssign:
		out.Data = bound.AssignData{Target: exprFromWire(w.Target), Value: exprFromWire(w.Value)}
	case bound.StmtReturn:
		out.Data = bound.ReturnData{Value: exprFromWire(w.Value), Implicit: w.Implicit}
	case bound.StmtIf:
		out.Data = bound.IfData{Cond: exprFromWire(w.Cond), Then: blockFromWire(w.Then), Else: blockFromWire(w.Else)}
	case bound.StmtWhile:
		out.Data = bound.WhileData{Cond: exprFromWire(w.Cond), Body: blockFromWire(w.Body)}
	case bound.StmtBlock:
		out.Data = bound.BlockStmtData{Block: blockFromWire(w.Body)}
	case bound.StmtTry:
		var catches []bound.CatchClause
		for _, c := range w.Catches {
			catches = append(catches, bound.CatchClause{
				Local: bound.LocalID(c.Local), Type: c.Type, Body: blockFromWire(c.Body),
			})
		}
		out.Data = bound.TryData{Body: blockFromWire(w.Body), Catches: catches, Finally: blockFromWire(w.Finally)}
	case bound.StmtThrow:
		out.Data = bound.ThrowData{Value: exprFromWire(w.Value)}
	case bound.StmtYield:
		out.Data = bound.YieldData{Value: exprFromWire(w.Value)}
	case bound.StmtSwitch:
		var cases []bound.SwitchCase
		for _, c := range w.Cases {
			cases = append(cases, bound.SwitchCase{Match: c.Match, Body: blockFromWire(c.Body)})
		}
		out.Data = bound.SwitchData{Value: exprFromWire(w.Value), Cases: cases, Default: blockFromWire(w.Else)}
	case bound.StmtBad:
		out.Data = bound.BadStmtData{Reason: w.Reason}
	}
	return out
}

func exprToWire(e *bound.Expr) *wireExpr {
	if e == nil {
		return nil
	}
	out := &wireExpr{Kind: uint8(e.Kind), Type: e.Type, Span: spanToWire(e.Span), Err: e.Err}
	switch d := e.Data.(type) {
	case bound.LiteralData:
		out.Text = d.Text
	case bound.LocalRefData:
		out.Local = uint32(d.Local)
	case bound.ParamRefData:
		out.Index = d.Index
	case bound.FieldRefData:
		out.Sym = uint32(d.Field)
		out.A = exprToWire(d.Receiver)
	case bound.ThisData:
	case bound.UnaryData:
		out.Op = d.Op
		out.A = exprToWire(d.Operand)
	case bound.BinaryData:
		out.Op = d.Op
		out.A = exprToWire(d.Left)
		out.B = exprToWire(d.Right)
	case bound.CallData:
		out.Sym = uint32(d.Method)
		out.A = exprToWire(d.Receiver)
		for _, a := range d.Args {
			out.Args = append(out.Args, exprToWire(a))
		}
	case bound.NewData:
		out.Sym = uint32(d.Ctor)
		for _, a := range d.Args {
			out.Args = append(out.Args, exprToWire(a))
		}
	case bound.LambdaData:
		out.Params = paramsToWire(d.Params)
		out.Result = d.Result
		out.Body = blockToWire(d.Body)
		for _, c := range d.Captures {
			out.Captures = append(out.Captures, uint32(c))
		}
		out.ParamCaptures = d.ParamCaptures
		out.Sym = uint32(d.Target)
	case bound.AwaitData:
		out.A = exprToWire(d.Operand)
	case bound.InterpolatedData:
		for _, p := range d.Parts {
			out.Parts = append(out.Parts, wirePart{Text: p.Text, Expr: exprToWire(p.Expr)})
		}
	case bound.IsPatternData:
		out.A = exprToWire(d.Operand)
		out.Text = d.Type
		out.Local = uint32(d.Local)
	case bound.DefaultData:
	case bound.BadExprData:
		out.Reason = d.Reason
	}
	return out
}

func exprFromWire(w *wireExpr) *bound.Expr {
	if w == nil {
		return nil
	}
	out := &bound.Expr{Kind: bound.ExprKind(w.Kind), Type: w.Type, Span: spanFromWire(w.Span), Err: w.Err}
	switch out.Kind {
	case bound.ExprLiteral:
		out.Data = bound.LiteralData{Text: w.Text}
	case bound.ExprLocalRef:
		out.Data = bound.LocalRefData{Local: bound.LocalID(w.Local)}
	case bound.ExprParamRef:
		out.Data = bound.ParamRefData{Index: w.Index}
	case bound.ExprFieldRef:
		out.Data = bound.FieldRefData{Field: symbols.ID(w.Sym), Receiver: exprFromWire(w.A)}
	case bound.ExprThis:
		out.Data = bound.ThisData{}
	case bound.ExprUnary:
		out.Data = bound.UnaryData{Op: w.Op, Operand: exprFromWire(w.A)}
	case bound.ExprBinary:
		out.Data = bound.BinaryData{Op: w.Op, Left: exprFromWire(w.A), Right: exprFromWire(w.B)}
	case bound.ExprCall:
		var args []*bound.Expr
		for _, a := range w.Args {
			args = append(args, exprFromWire(a))
		}
		out.Data = bound.CallData{Method: symbols.ID(w.Sym), Receiver: exprFromWire(w.A), Args: args}
	case bound.ExprNew:
		var args []*bound.Expr
		for _, a := range w.Args {
			args = append(args, exprFromWire(a))
		}
		out.Data = bound.NewData{Ctor: symbols.ID(w.Sym), Args: args}
	case bound.ExprLambda:
		var captures []bound.LocalID
		for _, c := range w.Captures {
			captures = append(captures, bound.LocalID(c))
		}
		out.Data = bound.LambdaData{
			Params:        paramsFromWire(w.Params),
			Result:        w.Result,
			Body:          blockFromWire(w.Body),
			Captures:      captures,
			ParamCaptures: w.ParamCaptures,
			Target:        symbols.ID(w.Sym),
		}
	case bound.ExprAwait:
		out.Data = bound.AwaitData{Operand: exprFromWire(w.A)}
	case bound.ExprInterpolated:
		var parts []bound.InterpolatedPart
		for _, p := range w.Parts {
			parts = append(parts, bound.InterpolatedPart{Text: p.Text, Expr: exprFromWire(p.Expr)})
		}
		out.Data = bound.InterpolatedData{Parts: parts}
	case bound.ExprIsPattern:
		out.Data = bound.IsPatternData{Operand: exprFromWire(w.A), Type: w.Text, Local: bound.LocalID(w.Local)}
	case bound.ExprDefault:
		out.Data = bound.DefaultData{}
	case bound.ExprBad:
		out.Data = bound.BadExprData{Reason: w.Reason}
	}
	return out
}
