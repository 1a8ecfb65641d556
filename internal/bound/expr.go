package bound

import (
	"ember/internal/source"

	"ember/internal/symbols"
)

// ExprKind enumerates bound expression kinds.
type ExprKind uint8

const (
	// ExprLiteral represents literals (int, float, bool, string, null).
	ExprLiteral ExprKind = iota
	// ExprLocalRef reads a local variable.
	ExprLocalRef
	// ExprParamRef reads a parameter.
	ExprParamRef
	// ExprFieldRef reads a field.
	ExprFieldRef
	// ExprThis reads the receiver.
	ExprThis
	// ExprUnary applies a unary operator.
	ExprUnary
	// ExprBinary applies a binary operator.
	ExprBinary
	// ExprCall invokes a method.
	ExprCall
	// ExprNew allocates and constructs an instance.
	ExprNew
	// ExprLambda is a lambda or local function value. Closure
	// conversion replaces it with a reference to a synthesized method.
	ExprLambda
	// ExprAwait suspends until an awaitable completes.
	ExprAwait
	// ExprInterpolated is an interpolated string; desugaring rewrites
	// it into concat/format calls.
	ExprInterpolated
	// ExprIsPattern tests a value against a pattern; desugaring
	// rewrites it into type tests and comparisons.
	ExprIsPattern
	// ExprDefault is the default value of a type.
	ExprDefault
	// ExprBad stands in for an expression that could not be compiled.
	ExprBad
)

func (k ExprKind) String() string {
	switch k {
	case ExprLiteral:
		return "Literal"
	case ExprLocalRef:
		return "LocalRef"
	case ExprParamRef:
		return "ParamRef"
	case ExprFieldRef:
		return "FieldRef"
	case ExprThis:
		return "This"
	case ExprUnary:
		return "Unary"
	case ExprBinary:
		return "Binary"
	case ExprCall:
		return "Call"
	case ExprNew:
		return "New"
	case ExprLambda:
		return "Lambda"
	case ExprAwait:
		return "Await"
	case ExprInterpolated:
		return "Interpolated"
	case ExprIsPattern:
		return "IsPattern"
	case ExprDefault:
		return "Default"
	case ExprBad:
		return "Bad"
	default:
		return "Unknown"
	}
}

// Expr represents one bound expression.
type Expr struct {
	Kind ExprKind
	Type string // "" when the type is unknown or void
	Span source.Span
	Err  bool
	Data ExprData
}

// ExprData is the interface for expression-specific payloads.
type ExprData interface {
	exprData()
}

// LiteralData holds data for ExprLiteral. Text keeps the canonical
// spelling; the middle-end never folds constants itself.
type LiteralData struct {
	Text string
}

func (LiteralData) exprData() {}

// LocalRefData holds data for ExprLocalRef.
type LocalRefData struct {
	Local LocalID
}

func (LocalRefData) exprData() {}

// ParamRefData holds data for ExprParamRef.
type ParamRefData struct {
	Index uint32
}

func (ParamRefData) exprData() {}

// FieldRefData holds data for ExprFieldRef.
type FieldRefData struct {
	Field    symbols.ID
	Receiver *Expr // nil for static fields or implicit this
}

func (FieldRefData) exprData() {}

// ThisData holds data for ExprThis.
type ThisData struct{}

func (ThisData) exprData() {}

// UnaryData holds data for ExprUnary.
type UnaryData struct {
	Op      string
	Operand *Expr
}

func (UnaryData) exprData() {}

// BinaryData holds data for ExprBinary.
type BinaryData struct {
	Op    string
	Left  *Expr
	Right *Expr
}

func (BinaryData) exprData() {}

// CallData holds data for ExprCall.
type CallData struct {
	Method   symbols.ID
	Receiver *Expr // nil for static calls
	Args     []*Expr
}

func (CallData) exprData() {}

// NewData holds data for ExprNew.
type NewData struct {
	Ctor symbols.ID
	Args []*Expr
}

func (NewData) exprData() {}

// LambdaData holds data for ExprLambda. Captures lists the enclosing
// body's locals the lambda reads or writes; parameters of the
// enclosing method are captured via ParamCaptures.
type LambdaData struct {
	Params        []symbols.Param
	Result        string
	Body          *Block
	Captures      []LocalID
	ParamCaptures []uint32
	// Target is filled by closure conversion with the synthesized
	// method the lambda now refers to.
	Target symbols.ID
}

func (LambdaData) exprData() {}

// AwaitData holds data for ExprAwait.
type AwaitData struct {
	Operand *Expr
}

func (AwaitData) exprData() {}

// InterpolatedData holds data for ExprInterpolated. Parts alternate
// literal text (Expr nil) and interpolations.
type InterpolatedData struct {
	Parts []InterpolatedPart
}

// InterpolatedPart is one segment of an interpolated string.
type InterpolatedPart struct {
	Text string
	Expr *Expr
}

func (InterpolatedData) exprData() {}

// IsPatternData holds data for ExprIsPattern.
type IsPatternData struct {
	Operand *Expr
	Type    string
	// Local receives the narrowed value when the pattern matches;
	// NoLocalID when the pattern has no designation.
	Local LocalID
}

func (IsPatternData) exprData() {}

// DefaultData holds data for ExprDefault.
type DefaultData struct{}

func (DefaultData) exprData() {}

// BadExprData holds data for ExprBad.
type BadExprData struct {
	Reason string
}

func (BadExprData) exprData() {}

// BadExpr builds an error-marked placeholder expression.
func BadExpr(span source.Span, reason string) *Expr {
	return &Expr{Kind: ExprBad, Span: span, Err: true, Data: BadExprData{Reason: reason}}
}
