// Package callgraph implements the call-graph search that underlies
// stages 3 and 4 of the matcher (spec §4.3, component C3): finding the
// wrapper methods between a caller and a reachable target, and finding a
// common ancestor of two method sets by bidirectional upward expansion.
package callgraph

import (
	"errors"
	"sort"

	"github.com/open-quark/quark-engine-go/apkmodel"
)

// ErrEmptyInput is returned by FindIntersection when either input set is
// empty (spec §4.3.2, §7).
var ErrEmptyInput = errors.New("callgraph: empty input set")

// MaxSearchLayer is the default maximum upward expansion depth for
// FindIntersection (spec §6, Tunables).
const MaxSearchLayer = 3

// FindPreviousMethod performs a depth-first traversal upward from base
// following UpperFunc edges (spec §4.3.1). Whenever the traversal reaches
// a node directly called by parent, that node — one hop below parent, on
// the path back down to base — is added to the result. The result is the
// set of entry points parent uses to transitively reach base: the
// "wrapper methods" reported to the user.
//
// Implemented as an explicit work-stack rather than recursion (spec §9,
// "Recursion -> iteration") so a pathological call graph cannot overflow
// the native stack.
func FindPreviousMethod(apk apkmodel.ApkInfo, base, parent *apkmodel.Method) []*apkmodel.Method {
	visited := map[string]bool{}
	var out []*apkmodel.Method
	seenOut := map[string]bool{}

	type frame struct{ node *apkmodel.Method }
	stack := []frame{{base}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		key := top.node.Key()
		if visited[key] {
			continue
		}
		visited[key] = true

		for _, caller := range apk.UpperFunc(top.node) {
			if caller.Equals(parent) {
				if !seenOut[top.node.Key()] {
					seenOut[top.node.Key()] = true
					out = append(out, top.node)
				}
				continue
			}
			stack = append(stack, frame{caller})
		}
	}

	return out
}

// FindIntersection returns any non-empty overlap between two method sets,
// widened layer by layer by unioning in callers (spec §4.3.2):
//
//  1. If either input is empty, ErrEmptyInput.
//  2. If the direct set intersection is non-empty, return it.
//  3. Otherwise expand both sets by unioning in every element's direct
//     callers (monotone growth: the seed layer stays in the set) and
//     retry, until depth exceeds maxLayer.
//  4. If no common ancestor is found within maxLayer hops, return (nil,
//     nil) — absent, not an error.
//
// FindIntersection is symmetric: FindIntersection(apk, a, b, n) and
// FindIntersection(apk, b, a, n) describe the same set (spec §8,
// invariant 4), in the same slice order, since the result is sorted by
// Key().
func FindIntersection(apk apkmodel.ApkInfo, a, b []*apkmodel.Method, maxLayer int) ([]*apkmodel.Method, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, ErrEmptyInput
	}

	setA := toSet(a)
	setB := toSet(b)

	for depth := 0; ; depth++ {
		if inter := intersect(setA, setB); len(inter) > 0 {
			return fromSet(inter), nil
		}
		if depth >= maxLayer {
			return nil, nil
		}
		setA = expand(apk, setA)
		setB = expand(apk, setB)
	}
}

type methodSet map[string]*apkmodel.Method

func toSet(ms []*apkmodel.Method) methodSet {
	s := methodSet{}
	for _, m := range ms {
		s[m.Key()] = m
	}
	return s
}

// fromSet returns s's methods sorted by Key(), so that callers iterating
// the result — including the matcher's evidence appends at stage 5 — see
// a stable, run-to-run reproducible order (spec §5, §8 invariant 7), not
// Go's randomized map iteration order.
func fromSet(s methodSet) []*apkmodel.Method {
	out := make([]*apkmodel.Method, 0, len(s))
	for _, m := range s {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func intersect(a, b methodSet) methodSet {
	small, big := a, b
	if len(b) < len(a) {
		small, big = b, a
	}
	out := methodSet{}
	for k, m := range small {
		if _, ok := big[k]; ok {
			out[k] = m
		}
	}
	return out
}

// expand unions in every element's direct callers, keeping the original
// layer (monotone growth per spec §4.3.2) so a common ancestor found at
// any depth up to maxLayer is guaranteed to still be present at the final
// depth.
func expand(apk apkmodel.ApkInfo, s methodSet) methodSet {
	out := methodSet{}
	for k, m := range s {
		out[k] = m
	}
	for _, m := range s {
		for _, caller := range apk.UpperFunc(m) {
			out[caller.Key()] = caller
		}
	}
	return out
}
