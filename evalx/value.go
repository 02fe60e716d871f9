// Package evalx implements the lightweight symbolic bytecode evaluator
// (spec §4.2, component C2): it interprets a restricted set of opcode
// families to produce a per-register table of value-expression trees,
// recording call compositions as textual traces.
//
// This is a deliberate, widely effective approximation: instructions run
// linearly in program order with no branching or joins, so a value killed
// by a conditional overwrite is silently dropped from the final table
// (spec §9, "Ambiguities observed in source"). Fidelity is traded for
// linear-time, total evaluation — the evaluator never raises.
package evalx

import (
	"sort"
	"strconv"
	"strings"

	"github.com/open-quark/quark-engine-go/apkmodel"
)

// ValueExpr is a value expression: a tagged variant with exactly three
// cases (spec §3): Literal, Placeholder, and Call. Modeling it as an
// interface with an unexported marker method keeps the variant closed to
// this package, mirroring a tagged union without reflection.
type ValueExpr interface {
	isValueExpr()
	// Trace returns the textual form of this expression, as it would
	// appear nested inside an enclosing call's trace.
	Trace() string
}

// Literal is a constant value written by const*/const-string, or the
// placeholder instance written by new-instance.
type Literal struct {
	Kind  string // "string", "number", "new-instance"
	Value string
}

func (Literal) isValueExpr()    {}
func (l Literal) Trace() string { return l.Value }

// Placeholder is a register placeholder established at method entry — a
// parameter to the evaluated method, or a fabricated stand-in for a
// register read before any write reached it (spec §4.2, "Failure
// semantics").
type Placeholder struct {
	Name string // e.g. "p1" for v1
}

func (Placeholder) isValueExpr()    {}
func (p Placeholder) Trace() string { return p.Name }

// Call is a call node produced by an invoke-* instruction: the method
// being invoked, the argument expressions in the order the instruction
// listed its registers, and CalledByFunc — every full trace string in
// which this node participates, starting with its own (spec §3).
//
// Call nodes are built strictly forward from already-computed
// expressions, so the tree is cycle-free by construction (spec §5).
type Call struct {
	Method       *apkmodel.Method
	Args         []ValueExpr
	CalledByFunc []string
}

func (*Call) isValueExpr() {}

// Trace renders "method_pattern(arg1_trace, arg2_trace, ...)" (spec §4.2).
// Because each argument's Trace is embedded verbatim, the invariant "every
// call node's textual trace contains each of its arguments' traces as
// substrings" holds by construction.
func (c *Call) Trace() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.Trace()
	}
	return c.Method.Pattern() + "(" + strings.Join(parts, ",") + ")"
}

// RegisterTable maps register name to the value expression currently held
// there (spec §3), reflecting the state after executing a method's
// instruction stream in program order with no branching.
type RegisterTable map[string]ValueExpr

// CallNodes walks every register's expression tree and returns the set of
// reachable *Call nodes, each exactly once. Stage 5 (spec §4.4) flattens
// these into textual traces via each node's CalledByFunc list.
func (t RegisterTable) CallNodes() []*Call {
	seen := map[*Call]bool{}
	var out []*Call
	var walk func(ValueExpr)
	walk = func(v ValueExpr) {
		c, ok := v.(*Call)
		if !ok || c == nil || seen[c] {
			return
		}
		seen[c] = true
		out = append(out, c)
		for _, arg := range c.Args {
			walk(arg)
		}
	}
	for _, reg := range sortedKeys(t) {
		walk(t[reg])
	}
	return out
}

// Traces returns every trace string reachable from the table: for each
// call node, its full CalledByFunc list (spec §4.4 step 2). Strings are not
// de-duplicated: a trace recorded by several reachable nodes appears once
// per node. Order is
// stable (register name, then append order) so stage-5 evidence selection
// is reproducible across runs.
func (t RegisterTable) Traces() []string {
	var out []string
	for _, c := range t.CallNodes() {
		out = append(out, c.CalledByFunc...)
	}
	return out
}

func sortedKeys(t RegisterTable) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	// Registers are named "v<N>"; sort numerically where possible so
	// iteration order is deterministic and human-sensible.
	sort.Slice(keys, func(i, j int) bool { return regLess(keys[i], keys[j]) })
	return keys
}

func regLess(a, b string) bool {
	an, aok := regNum(a)
	bn, bok := regNum(b)
	if aok && bok {
		return an < bn
	}
	return a < b
}

func regNum(reg string) (int, bool) {
	if len(reg) < 2 || reg[0] != 'v' {
		return 0, false
	}
	n, err := strconv.Atoi(reg[1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
