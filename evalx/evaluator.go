package evalx

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/open-quark/quark-engine-go/apkmodel"
	"github.com/open-quark/quark-engine-go/bytecode"
)

// handler interprets one instruction against the running register table
// and the implicit result slot set by the previous invoke-*. Handlers
// never return an error to the evaluator's caller — any trouble is an
// EvaluatorSkip (spec §7) and the instruction is simply a no-op.
type handler func(table RegisterTable, resultSlot *ValueExpr, instr bytecode.Instruction)

// handlers is a static mnemonic-family -> handler table, built once at
// init time rather than dispatched via reflection (spec §9, "Opcode
// handler dispatch").
var handlers = map[bytecode.Family]handler{
	bytecode.FamilyNewInstance: handleNewInstance,
	bytecode.FamilyConst:       handleConst,
	bytecode.FamilyMove:        handleMove,
	bytecode.FamilyMoveResult:  handleMoveResult,
	bytecode.FamilyInvoke:      handleInvoke,
	bytecode.FamilyFieldPut:    handleFieldPut,
	bytecode.FamilyArrayGet:    handleArrayGet,
	bytecode.FamilyArrayPut:    handleArrayPut,
}

// Evaluator produces register tables for methods, per spec §4.2. It caches
// results with a bounded LRU so that stage 5 (spec §4.4), which may
// evaluate the same common ancestor once per candidate (m1, m2) pair and
// once per rule, does not re-walk the same bytecode repeatedly — this is
// the one unbounded-looking cost spec §5 calls out to bound.
type Evaluator struct {
	cache *lru.Cache[string, RegisterTable]
}

// DefaultCacheSize bounds the number of per-method register tables kept
// warm across rule evaluations.
const DefaultCacheSize = 256

// NewEvaluator creates an Evaluator with an LRU cache of the given size.
// A non-positive size disables caching (every call re-evaluates).
func NewEvaluator(cacheSize int) *Evaluator {
	e := &Evaluator{}
	if cacheSize > 0 {
		c, err := lru.New[string, RegisterTable](cacheSize)
		if err == nil {
			e.cache = c
		}
	}
	return e
}

// Evaluate returns the register table produced by running m's bytecode
// sequentially through the handler table. It never raises: unrecognized
// opcodes are skipped, and reads of uninitialized registers fabricate a
// named placeholder so evaluation stays total (spec §4.2).
func (e *Evaluator) Evaluate(apk apkmodel.ApkInfo, m *apkmodel.Method) RegisterTable {
	if e.cache != nil {
		if table, ok := e.cache.Get(m.Key()); ok {
			return table
		}
	}

	table := RegisterTable{}
	var resultSlot ValueExpr
	for _, instr := range apk.GetMethodBytecode(m) {
		fn, ok := handlers[bytecode.Classify(instr.Mnemonic)]
		if !ok {
			continue // EvaluatorSkip: unclassified mnemonic
		}
		fn(table, &resultSlot, instr)
	}

	if e.cache != nil {
		e.cache.Add(m.Key(), table)
	}
	return table
}

// getOrPlaceholder reads reg's current expression, fabricating and
// persisting a named placeholder ("p<N>" for "v<N>") if reg has not been
// written yet within this evaluation.
func getOrPlaceholder(table RegisterTable, reg string) ValueExpr {
	if v, ok := table[reg]; ok {
		return v
	}
	ph := Placeholder{Name: "p" + strings.TrimPrefix(reg, "v")}
	table[reg] = ph
	return ph
}

func handleNewInstance(table RegisterTable, _ *ValueExpr, instr bytecode.Instruction) {
	if len(instr.Registers) == 0 {
		return
	}
	className, _ := instr.Parameter.(string)
	table[instr.Registers[0]] = Literal{Kind: "new-instance", Value: className}
}

func handleConst(table RegisterTable, _ *ValueExpr, instr bytecode.Instruction) {
	if len(instr.Registers) == 0 {
		return
	}
	kind := "number"
	var value string
	switch v := instr.Parameter.(type) {
	case string:
		kind = "string"
		value = v
	case int64:
		value = strconv.FormatInt(v, 10)
	case int:
		value = strconv.Itoa(v)
	case float64:
		value = strconv.FormatFloat(v, 'g', -1, 64)
	default:
		value = "?"
	}
	table[instr.Registers[0]] = Literal{Kind: kind, Value: value}
}

func handleMove(table RegisterTable, _ *ValueExpr, instr bytecode.Instruction) {
	if len(instr.Registers) < 2 {
		return
	}
	dst, src := instr.Registers[0], instr.Registers[1]
	table[dst] = getOrPlaceholder(table, src)
}

func handleMoveResult(table RegisterTable, resultSlot *ValueExpr, instr bytecode.Instruction) {
	if len(instr.Registers) == 0 {
		return
	}
	dst := instr.Registers[0]
	if *resultSlot == nil {
		table[dst] = getOrPlaceholder(table, dst)
		return
	}
	table[dst] = *resultSlot
}

// handleInvoke forms a call node whose method is the instruction's
// parameter and whose args are the expressions currently held in the
// listed registers, in order (spec §4.2). The node is stored in the
// implicit result slot; for constructor-like invokes it is also written
// back to the first register, mirroring Dalvik's invoke-direct <init>
// convention of mutating its receiver.
func handleInvoke(table RegisterTable, resultSlot *ValueExpr, instr bytecode.Instruction) {
	method, ok := instr.Parameter.(*apkmodel.Method)
	if !ok || method == nil {
		return
	}

	args := make([]ValueExpr, len(instr.Registers))
	for i, reg := range instr.Registers {
		args[i] = getOrPlaceholder(table, reg)
	}

	node := &Call{Method: method, Args: args}
	node.CalledByFunc = []string{node.Trace()}
	for _, a := range args {
		if child, ok := a.(*Call); ok {
			child.CalledByFunc = append(child.CalledByFunc, node.Trace())
		}
	}

	*resultSlot = node

	if bytecode.IsConstructorInvoke(instr.Mnemonic, method.MethodName) && len(instr.Registers) > 0 {
		table[instr.Registers[0]] = node
	}
}

func handleFieldPut(_ RegisterTable, _ *ValueExpr, _ bytecode.Instruction) {
	// No field model; tolerated no-op (spec §4.2).
}

func handleArrayGet(table RegisterTable, _ *ValueExpr, instr bytecode.Instruction) {
	if len(instr.Registers) < 2 {
		return
	}
	dst, arraySrc := instr.Registers[0], instr.Registers[1]
	table[dst] = getOrPlaceholder(table, arraySrc)
}

func handleArrayPut(table RegisterTable, _ *ValueExpr, instr bytecode.Instruction) {
	if len(instr.Registers) < 2 {
		return
	}
	valueSrc, arrayDst := instr.Registers[0], instr.Registers[1]
	table[arrayDst] = getOrPlaceholder(table, valueSrc)
}
