package bound

import (
	"ember/internal/source"
)

// StmtKind enumerates bound statement kinds.
type StmtKind uint8

const (
	// StmtLocalDecl declares a local, optionally with an initializer.
	StmtLocalDecl StmtKind = iota
	// StmtExpr evaluates an expression for its effect.
	StmtExpr
	// StmtAssign stores into a local, parameter, or field.
	StmtAssign
	// StmtReturn leaves the method, optionally with a value.
	StmtReturn
	// StmtIf branches on a condition.
	StmtIf
	// StmtWhile loops on a condition.
	StmtWhile
	// StmtBlock nests a block as a statement.
	StmtBlock
	// StmtTry guards a block with handlers and/or a finalizer.
	StmtTry
	// StmtThrow raises an exception.
	StmtThrow
	// StmtYield produces one iterator element; a nil value ends the
	// sequence.
	StmtYield
	// StmtSwitch dispatches on an integer value. Lowering uses it for
	// state-machine resume dispatch; the front-end never produces it.
	StmtSwitch
	// StmtBad stands in for a statement that could not be compiled.
	// Always error-marked.
	StmtBad
)

func (k StmtKind) String() string {
	switch k {
	case StmtLocalDecl:
		return "LocalDecl"
	case StmtExpr:
		return "Expr"
	case StmtAssign:
		return "Assign"
	case StmtReturn:
		return "Return"
	case StmtIf:
		return "If"
	case StmtWhile:
		return "While"
	case StmtBlock:
		return "Block"
	case StmtTry:
		return "Try"
	case StmtThrow:
		return "Throw"
	case StmtYield:
		return "Yield"
	case StmtSwitch:
		return "Switch"
	case StmtBad:
		return "Bad"
	default:
		return "Unknown"
	}
}

// Stmt represents one bound statement.
type Stmt struct {
	Kind StmtKind
	Span source.Span
	// Err marks this statement (and its subtree) as error-bearing.
	Err  bool
	Data StmtData
}

// StmtData is the interface for statement-specific payloads.
type StmtData interface {
	stmtData()
}

// LocalDeclData holds data for StmtLocalDecl.
type LocalDeclData struct {
	Local LocalID
	Init  *Expr // nil when declared without initializer
}

func (LocalDeclData) stmtData() {}

// ExprStmtData holds data for StmtExpr.
type ExprStmtData struct {
	Expr *Expr
}

func (ExprStmtData) stmtData() {}

// AssignData holds data for StmtAssign.
type AssignData struct {
	Target *Expr
	Value  *Expr
}

func (AssignData) stmtData() {}

// ReturnData holds data for StmtReturn.
type ReturnData struct {
	Value *Expr // nil for bare return
	// Implicit marks a return inserted by flow analysis at the end of
	// a void body.
	Implicit bool
}

func (ReturnData) stmtData() {}

// IfData holds data for StmtIf.
type IfData struct {
	Cond *Expr
	Then *Block
	Else *Block // nil if no else branch
}

func (IfData) stmtData() {}

// WhileData holds data for StmtWhile.
type WhileData struct {
	Cond *Expr
	Body *Block
}

func (WhileData) stmtData() {}

// BlockStmtData holds data for StmtBlock.
type BlockStmtData struct {
	Block *Block
}

func (BlockStmtData) stmtData() {}

// CatchClause is one handler of a try statement.
type CatchClause struct {
	// Local receives the caught exception; NoLocalID for catch-all
	// without a binding.
	Local LocalID
	Type  string // "" catches everything
	Body  *Block
}

// TryData holds data for StmtTry.
type TryData struct {
	Body    *Block
	Catches []CatchClause
	Finally *Block // nil if no finalizer
}

func (TryData) stmtData() {}

// ThrowData holds data for StmtThrow.
type ThrowData struct {
	Value *Expr
}

func (ThrowData) stmtData() {}

// YieldData holds data for StmtYield.
type YieldData struct {
	Value *Expr // nil ends the iterator
}

func (YieldData) stmtData() {}

// SwitchCase is one arm of a StmtSwitch.
type SwitchCase struct {
	// Match is the integer value selecting this arm.
	Match int32
	Body  *Block
}

// SwitchData holds data for StmtSwitch.
type SwitchData struct {
	Value   *Expr
	Cases   []SwitchCase
	Default *Block // nil falls through
}

func (SwitchData) stmtData() {}

// BadStmtData holds data for StmtBad.
type BadStmtData struct {
	// Reason records why the statement was replaced, for debugging
	// dumps only; diagnostics carry the user-facing message.
	Reason string
}

func (BadStmtData) stmtData() {}

// Bad builds an error-marked placeholder statement.
func Bad(span source.Span, reason string) *Stmt {
	return &Stmt{Kind: StmtBad, Span: span, Err: true, Data: BadStmtData{Reason: reason}}
}
