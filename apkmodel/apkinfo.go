package apkmodel

import "github.com/open-quark/quark-engine-go/bytecode"

// ApkInfo is the uniform query surface over a parsed application (spec
// §4.1, component C1): method lookup, bytecode iteration, caller lookup,
// and class hierarchy. Implementations must be deterministic — the same
// call in the same state must yield the same iteration order — because the
// matcher's tie-breaking and the reproducibility property (spec §8,
// invariant 7) depend on stable ordering. Implementations must also be
// referentially transparent and read-only after construction (spec §5), so
// that callers may parallelize per-rule matching safely.
type ApkInfo interface {
	// FindMethod performs an exact (class, name, descriptor) lookup.
	FindMethod(class, name, descriptor string) (*Method, bool)

	// AllMethods returns the full method set, in a stable order.
	AllMethods() []*Method

	// GetMethodBytecode returns a method's bytecode in program order; it
	// is empty if the method is native, abstract, or otherwise has no
	// body (spec §4.4, stage-1 subclass fallback relies on this).
	GetMethodBytecode(m *Method) []bytecode.Instruction

	// UpperFunc returns m's direct callers (reverse call edges), in a
	// stable order.
	UpperFunc(m *Method) []*Method

	// SuperclassRelationships returns a class's direct superclasses and
	// implemented interfaces.
	SuperclassRelationships(class string) []string

	// GetWrapperSmali returns a source snippet describing how parent
	// reaches first and second, for reporting only; ok is false if no
	// such snippet is available.
	GetWrapperSmali(parent, first, second *Method) (snippet WrapperSmali, ok bool)
}

// ObjectClass is the root of every Dalvik class hierarchy; subclass climbs
// in stage 1 (spec §4.4) stop here.
const ObjectClass = "Ljava/lang/Object;"

// IsSubclass reports whether class is class itself or a transitive
// subclass of ancestor, per ApkInfo.SuperclassRelationships, stopping the
// climb at ObjectClass. It never visits the same class twice, so a
// malformed (cyclic) hierarchy still terminates.
func IsSubclass(apk ApkInfo, class, ancestor string) bool {
	if class == ancestor {
		return true
	}
	visited := map[string]bool{}
	queue := []string{class}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] || cur == ObjectClass {
			continue
		}
		visited[cur] = true
		for _, super := range apk.SuperclassRelationships(cur) {
			if super == ancestor {
				return true
			}
			queue = append(queue, super)
		}
	}
	return false
}
