// Package bytecode defines the restricted Dalvik-style instruction model
// that the symbolic evaluator (package evalx) consumes. It mirrors the
// register-machine instruction shape used by register-based bytecode
// formats generally: an opcode, an ordered register list, and an optional
// operand.
package bytecode

import (
	"fmt"
	"strings"
)

// Instruction is an ordered tuple (mnemonic, registers, parameter) as
// described in spec §3. Registers is a possibly empty ordered list of
// register names ("v0", "v1", ...). Parameter is an opaque operand: a
// method reference, a string literal, a class reference, or a numeric
// literal, depending on Mnemonic.
type Instruction struct {
	Mnemonic  string
	Registers []string
	Parameter any
}

func (i Instruction) String() string {
	return fmt.Sprintf("%s %v %v", i.Mnemonic, i.Registers, i.Parameter)
}

// Family classifies a mnemonic into the opcode families the evaluator
// handles, per spec §4.2. Families not in this set are left unclassified
// and the evaluator skips them (EvaluatorSkip, spec §7) without raising.
type Family int

const (
	// FamilyUnknown covers any mnemonic the evaluator does not model.
	// Its destination register, if any, is left unchanged.
	FamilyUnknown Family = iota

	// FamilyNewInstance: `new-instance v, T` — writes a fresh placeholder
	// representing an uninitialized instance of T to v.
	FamilyNewInstance

	// FamilyConst: `const*` / `const-string` — writes a literal to the
	// destination register.
	FamilyConst

	// FamilyMove: `move*` — copies a source register's expression into
	// the destination register.
	FamilyMove

	// FamilyMoveResult: `move-result*` — pulls from the implicit result
	// slot set by the previous invoke-* instruction.
	FamilyMoveResult

	// FamilyInvoke: `invoke-*` (direct, virtual, static, interface,
	// super, and their /range variants) — forms a call node.
	FamilyInvoke

	// FamilyFieldPut: `iput*` / `sput*` — ignored for scoring, tolerated.
	FamilyFieldPut

	// FamilyArrayGet: `aget*` — destination receives the (flattened)
	// array register's expression verbatim.
	FamilyArrayGet

	// FamilyArrayPut: `aput*` — the array register receives the source
	// register's expression verbatim (arrays are flattened).
	FamilyArrayPut
)

// classifiedPrefixes lists mnemonic prefixes recognized for each family, in
// the order they are probed. Built once so Classify stays a simple lookup,
// never reflection, per the opcode-handler-dispatch design note.
var classifiedPrefixes = []struct {
	prefix string
	family Family
}{
	{"new-instance", FamilyNewInstance},
	{"move-result", FamilyMoveResult}, // must precede "move" below
	{"move", FamilyMove},
	{"const-string", FamilyConst},
	{"const", FamilyConst},
	{"invoke-", FamilyInvoke},
	{"iput", FamilyFieldPut},
	{"sput", FamilyFieldPut},
	{"aget", FamilyArrayGet},
	{"aput", FamilyArrayPut},
}

// Classify maps an instruction mnemonic to its opcode family. Unknown
// mnemonics classify as FamilyUnknown and are skipped by the evaluator.
func Classify(mnemonic string) Family {
	for _, c := range classifiedPrefixes {
		if strings.HasPrefix(mnemonic, c.prefix) {
			return c.family
		}
	}
	return FamilyUnknown
}

// IsConstructorInvoke reports whether an invoke-* instruction targets a
// constructor (Dalvik's `<init>` convention), used by the evaluator to
// mirror invoke-direct's receiver-mutation semantics.
func IsConstructorInvoke(mnemonic, methodName string) bool {
	return Classify(mnemonic) == FamilyInvoke && methodName == "<init>"
}
