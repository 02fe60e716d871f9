// Package fixtureapk provides a small, deterministic in-memory ApkInfo
// implementation. Real APK/DEX parsing is an out-of-scope external
// collaborator (spec §1); this package exists so the core — the matcher,
// the evaluator, and the call-graph search — can be exercised and tested
// without one. It is also what quark-lint's --dry-run flag runs
// against.
package fixtureapk

import (
	"sort"

	"github.com/open-quark/quark-engine-go/apkmodel"
	"github.com/open-quark/quark-engine-go/bytecode"
)

// Apk is a hand-built application: a set of methods, each with optional
// bytecode, plus caller edges and a class hierarchy. All query methods
// return results in a stable, deterministic order (insertion order for
// methods and caller edges, sorted order for superclass edges), satisfying the ApkInfo
// contract (spec §4.1).
type Apk struct {
	order      []string // method keys in insertion order
	methods    map[string]*apkmodel.Method
	bytecode   map[string][]bytecode.Instruction
	callers    map[string][]string // callee key -> caller keys, insertion order
	superclass map[string][]string
	wrappers   map[string]apkmodel.WrapperSmali
}

// New creates an empty fixture application.
func New() *Apk {
	return &Apk{
		methods:    map[string]*apkmodel.Method{},
		bytecode:   map[string][]bytecode.Instruction{},
		callers:    map[string][]string{},
		superclass: map[string][]string{},
		wrappers:   map[string]apkmodel.WrapperSmali{},
	}
}

// AddMethod registers a method, with optional bytecode. A method with no
// bytecode argument (or an empty one) behaves like a native/abstract
// method: GetMethodBytecode returns an empty slice.
func (a *Apk) AddMethod(m *apkmodel.Method, instrs ...[]bytecode.Instruction) *Apk {
	key := m.Key()
	if _, exists := a.methods[key]; !exists {
		a.order = append(a.order, key)
	}
	a.methods[key] = m
	if len(instrs) > 0 {
		a.bytecode[key] = instrs[0]
	}
	return a
}

// AddCall records that caller invokes callee somewhere in its body. This
// is how the fixture builds both the forward relationship (implied by
// caller's bytecode) and the reverse UpperFunc edge the matcher and
// call-graph search actually query.
func (a *Apk) AddCall(caller, callee *apkmodel.Method) *Apk {
	a.AddMethod(caller)
	a.AddMethod(callee)
	ck := callee.Key()
	for _, existing := range a.callers[ck] {
		if existing == caller.Key() {
			return a
		}
	}
	a.callers[ck] = append(a.callers[ck], caller.Key())
	return a
}

// AddSuperclass records a direct superclass/interface edge for class.
func (a *Apk) AddSuperclass(class, super string) *Apk {
	a.superclass[class] = append(a.superclass[class], super)
	return a
}

// SetWrapperSmali registers a canned smali snippet returned by
// GetWrapperSmali for the given (parent, first, second) triple.
func (a *Apk) SetWrapperSmali(parent, first, second *apkmodel.Method, snippet apkmodel.WrapperSmali) *Apk {
	a.wrappers[wrapperKey(parent, first, second)] = snippet
	return a
}

func wrapperKey(parent, first, second *apkmodel.Method) string {
	return parent.Key() + "|" + first.Key() + "|" + second.Key()
}

// FindMethod implements apkmodel.ApkInfo.
func (a *Apk) FindMethod(class, name, descriptor string) (*apkmodel.Method, bool) {
	m := apkmodel.New(class, name, descriptor)
	found, ok := a.methods[m.Key()]
	return found, ok
}

// AllMethods implements apkmodel.ApkInfo, in insertion order.
func (a *Apk) AllMethods() []*apkmodel.Method {
	out := make([]*apkmodel.Method, 0, len(a.order))
	for _, k := range a.order {
		out = append(out, a.methods[k])
	}
	return out
}

// GetMethodBytecode implements apkmodel.ApkInfo.
func (a *Apk) GetMethodBytecode(m *apkmodel.Method) []bytecode.Instruction {
	return a.bytecode[m.Key()]
}

// UpperFunc implements apkmodel.ApkInfo, in the order calls were added.
func (a *Apk) UpperFunc(m *apkmodel.Method) []*apkmodel.Method {
	keys := a.callers[m.Key()]
	out := make([]*apkmodel.Method, 0, len(keys))
	for _, k := range keys {
		out = append(out, a.methods[k])
	}
	return out
}

// SuperclassRelationships implements apkmodel.ApkInfo, sorted for stable
// iteration regardless of the order edges were added.
func (a *Apk) SuperclassRelationships(class string) []string {
	supers := append([]string(nil), a.superclass[class]...)
	sort.Strings(supers)
	return supers
}

// GetWrapperSmali implements apkmodel.ApkInfo.
func (a *Apk) GetWrapperSmali(parent, first, second *apkmodel.Method) (apkmodel.WrapperSmali, bool) {
	snippet, ok := a.wrappers[wrapperKey(parent, first, second)]
	return snippet, ok
}
