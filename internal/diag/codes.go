package diag

import (
	"fmt"
)

type Code uint16

// Code space is partitioned by compiler area. The front-end owns codes
// below 3000; the middle-end starts at binding follow-ups.
const (
	UnknownCode Code = 0

	// Binding follow-ups discovered while compiling bodies.
	BindInfo                 Code = 3000
	BindBodyMissing          Code = 3001
	BindCtorInitializerCycle Code = 3002
	BindIteratorAndAsync     Code = 3003
	BindExternHasBody        Code = 3004

	// Flow analysis.
	FlowInfo               Code = 4000
	FlowUseBeforeAssign    Code = 4001
	FlowMissingReturn      Code = 4002
	FlowUnreachableCode    Code = 4003
	FlowFieldNeverAssigned Code = 4004

	// Lowering.
	LowerInfo           Code = 5000
	LowerTooDeep        Code = 5001
	LowerHelperConflict Code = 5002

	// Whole-compilation.
	CompileInfo           Code = 6000
	CompileEntryMissing   Code = 6001
	CompileEntryAmbiguous Code = 6002
	CompileEntrySignature Code = 6003
	CompileUnusedField    Code = 6004
	CompileModuleFailure  Code = 6005
)

func (c Code) String() string {
	return fmt.Sprintf("EMB%04d", uint16(c))
}
