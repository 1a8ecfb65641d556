package symbols

import (
	"ember/internal/source"
)

// Kind classifies the semantic meaning of a symbol. The body compiler
// dispatches on this tag in exactly one place (the tree walk), so the
// set is closed on purpose.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNamespace
	KindType
	KindMethod
	KindProperty
	KindEvent
	KindField
)

func (k Kind) String() string {
	switch k {
	case KindNamespace:
		return "namespace"
	case KindType:
		return "type"
	case KindMethod:
		return "method"
	case KindProperty:
		return "property"
	case KindEvent:
		return "event"
	case KindField:
		return "field"
	default:
		return "invalid"
	}
}

// MethodKind distinguishes how a method body comes into existence.
type MethodKind uint8

const (
	MethodOrdinary MethodKind = iota
	// MethodConstructor is an instance constructor; field initializers
	// fold into its body unless it delegates via this(...).
	MethodConstructor
	// MethodStaticConstructor runs type initialization.
	MethodStaticConstructor
	// MethodAccessor is a property or event accessor.
	MethodAccessor
	// MethodClosureBody is a synthesized lambda/local-function body.
	MethodClosureBody
	// MethodMoveNext is the synthesized resume method of a state machine.
	MethodMoveNext
	// MethodForwarder is a synthesized wrapper (async entry point).
	MethodForwarder
)

func (k MethodKind) String() string {
	switch k {
	case MethodOrdinary:
		return "ordinary"
	case MethodConstructor:
		return "constructor"
	case MethodStaticConstructor:
		return "static constructor"
	case MethodAccessor:
		return "accessor"
	case MethodClosureBody:
		return "closure body"
	case MethodMoveNext:
		return "move-next"
	case MethodForwarder:
		return "forwarder"
	default:
		return "unknown"
	}
}

// Flags encode misc attributes for quick checks.
type Flags uint16

const (
	FlagStatic Flags = 1 << iota
	FlagAbstract
	FlagExtern
	FlagPartial
	FlagAsync
	FlagIterator
	FlagSynthesized
	// FlagValueType marks value types; their default constructors are
	// never emitted.
	FlagValueType
	// FlagDelegate marks delegate types; their "methods" carry no body.
	FlagDelegate
	// FlagDeclErrors marks a symbol whose declaration phase reported
	// errors. Members of such types are diagnosed but never lowered.
	FlagDeclErrors
	// FlagEntrypoint marks a method eligible as program entry point.
	FlagEntrypoint
)

func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

// Param describes one method parameter.
type Param struct {
	Name string
	Type string
	// NullCheck requests a synthesized guard at method entry.
	NullCheck bool
}

// MethodInfo is the method-specific payload of a Symbol.
type MethodInfo struct {
	Kind   MethodKind
	Params []Param
	Result string // "" means void
	// Ordinal is the member's position among its type's members, used
	// for deterministic synthesized naming.
	Ordinal int32
	// Definition points at the canonical (non-partial) definition when
	// this symbol is a partial implementation part. NoID means self.
	Definition ID
}

// FieldInfo is the field-specific payload of a Symbol.
type FieldInfo struct {
	Type           string
	HasInitializer bool
	// Nullable records the declared nullability, consumed by the
	// constructor-facing final-state propagation.
	Nullable bool
}

// PropertyInfo links a property to its accessor methods.
type PropertyInfo struct {
	Getter ID
	Setter ID
}

// EventInfo links an event to its accessor methods.
type EventInfo struct {
	Adder   ID
	Remover ID
}

// Symbol describes one declared or synthesized program entity.
// Symbols are immutable once published to the compiler; concurrent
// workers share them read-only.
type Symbol struct {
	Name   string
	Kind   Kind
	Parent ID
	Flags  Flags
	Span   source.Span
	// Members lists children in declaration order (namespaces, types).
	Members []ID

	Method   *MethodInfo
	Field    *FieldInfo
	Property *PropertyInfo
	Event    *EventInfo
}

// IsAbstractOrExtern reports whether the symbol can never have a body
// compiled for it.
func (s *Symbol) IsAbstractOrExtern() bool {
	return s.Flags.Has(FlagAbstract) || s.Flags.Has(FlagExtern)
}
