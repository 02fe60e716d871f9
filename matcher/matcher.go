// Package matcher implements the five-stage rule matcher (spec §4.4,
// component C4): for each rule, decide whether the two target methods
// exist, are invoked, co-occur in a caller, are reachable from a common
// ancestor, and share a register-derived parameter at that ancestor.
package matcher

import (
	"errors"
	"strings"

	"github.com/open-quark/quark-engine-go/analysis"
	"github.com/open-quark/quark-engine-go/apkmodel"
	"github.com/open-quark/quark-engine-go/callgraph"
	"github.com/open-quark/quark-engine-go/evalx"
	"github.com/open-quark/quark-engine-go/rule"
)

// Confidence is one of the five monotone stages (spec §4.4).
type Confidence int

const (
	ConfidenceNone         Confidence = 0
	ConfidenceAPIExists    Confidence = 20
	ConfidenceAPIInvoked   Confidence = 40
	ConfidenceCoOccurrence Confidence = 60
	ConfidenceCommonParent Confidence = 80
	ConfidenceFull         Confidence = 100
)

// Error taxonomy (spec §7). EmptyInput and InternalInvariantBroken are
// handled here; MalformedRule and ApkInfoMiss are not errors by the time
// they reach the matcher (a malformed rule never gets this far — see
// rule.Registry; ApkInfoMiss is stage 0, confidence 0, not an error).
var (
	// ErrEmptyInput surfaces callgraph.ErrEmptyInput to matcher callers.
	ErrEmptyInput = callgraph.ErrEmptyInput
)

// invariantBroken panics, per spec §7: "Programming errors (invariant
// breaks) are fatal." Stage 5 succeeding without a stage-4 ancestor would
// be exactly such a bug.
func invariantBroken(msg string) {
	panic("matcher: internal invariant broken: " + msg)
}

// Matcher drives the five checks per rule against one application.
type Matcher struct {
	Apk            apkmodel.ApkInfo
	Evaluator      *evalx.Evaluator
	MaxSearchLayer int
}

// New creates a Matcher with the default search depth and a freshly
// allocated evaluator cache.
func New(apk apkmodel.ApkInfo) *Matcher {
	return &Matcher{
		Apk:            apk,
		Evaluator:      evalx.NewEvaluator(evalx.DefaultCacheSize),
		MaxSearchLayer: callgraph.MaxSearchLayer,
	}
}

// MatchRule evaluates one rule to completion, mutating qa with any
// evidence it finds, and returns the confidence reached (spec §4.4).
// Confidence is the highest stage reached; score contribution is recorded
// once, at that stage, via qa.AddResult.
func (m *Matcher) MatchRule(r *rule.Rule, qa *analysis.QuarkAnalysis) Confidence {
	qa.FirstAPI, qa.SecondAPI = nil, nil

	// Stage 1: both rule APIs resolve via find_api_usage.
	candidates1 := FindAPIUsage(m.Apk, r.API[0])
	candidates2 := FindAPIUsage(m.Apk, r.API[1])
	if len(candidates1) == 0 || len(candidates2) == 0 {
		return m.finish(qa, r, ConfidenceNone, nil)
	}
	confidence := ConfidenceAPIExists

	// Stage 2: either API is actually invoked somewhere.
	invoked1 := anyInvoked(m.Apk, candidates1)
	invoked2 := anyInvoked(m.Apk, candidates2)
	if !invoked1 && !invoked2 {
		return m.finish(qa, r, confidence, nil)
	}
	confidence = ConfidenceAPIInvoked

	callers1 := unionUpperFunc(m.Apk, candidates1)
	callers2 := unionUpperFunc(m.Apk, candidates2)

	var ancestors []*apkmodel.Method
	if len(callers1) > 0 && len(callers2) > 0 {
		// Stage 3: a method calls both directly (depth 0 — no upward
		// expansion). See DESIGN.md for why stage 3 is deliberately the
		// depth-0 case of the same search stage 4 generalizes.
		direct, err := callgraph.FindIntersection(m.Apk, callers1, callers2, 0)
		if err != nil && !errors.Is(err, callgraph.ErrEmptyInput) {
			panic(err)
		}
		if len(direct) > 0 {
			confidence = ConfidenceCoOccurrence
			ancestors = direct
		}

		// Stage 4: a common ancestor exists within MaxSearchLayer hops.
		if confidence < ConfidenceCommonParent {
			wide, err := callgraph.FindIntersection(m.Apk, callers1, callers2, m.MaxSearchLayer)
			if err != nil && !errors.Is(err, callgraph.ErrEmptyInput) {
				panic(err)
			}
			if len(wide) > 0 {
				confidence = ConfidenceCommonParent
				ancestors = wide
			}
		} else {
			confidence = ConfidenceCommonParent
		}
	}

	if confidence < ConfidenceCommonParent {
		return m.finish(qa, r, confidence, nil)
	}

	// Stage 5: a shared parameter/register lineage at some ancestor.
	qa.FirstAPI, qa.SecondAPI = pickAPIMethods(candidates1, candidates2)
	evidence := m.checkParameter(r, candidates1, candidates2, ancestors, qa)
	if len(evidence) > 0 {
		confidence = ConfidenceFull
	}

	return m.finish(qa, r, confidence, evidence)
}

func (m *Matcher) finish(qa *analysis.QuarkAnalysis, r *rule.Rule, c Confidence, evidence []analysis.Evidence) Confidence {
	if c == ConfidenceFull && len(evidence) == 0 {
		invariantBroken("stage 5 succeeded without evidence")
	}
	qa.AddResult(analysis.RuleResult{
		RuleID:     r.ID(),
		Crime:      r.Crime,
		Confidence: int(c),
		Score:      r.Score,
		Evidence:   evidence,
	})
	qa.AddPermissions(r.Permission)
	return c
}

func anyInvoked(apk apkmodel.ApkInfo, candidates []*apkmodel.Method) bool {
	for _, c := range candidates {
		if len(apk.UpperFunc(c)) > 0 {
			return true
		}
	}
	return false
}

func unionUpperFunc(apk apkmodel.ApkInfo, candidates []*apkmodel.Method) []*apkmodel.Method {
	seen := map[string]bool{}
	var out []*apkmodel.Method
	for _, c := range candidates {
		for _, caller := range apk.UpperFunc(c) {
			if !seen[caller.Key()] {
				seen[caller.Key()] = true
				out = append(out, caller)
			}
		}
	}
	return out
}

func pickAPIMethods(candidates1, candidates2 []*apkmodel.Method) (*apkmodel.Method, *apkmodel.Method) {
	var a, b *apkmodel.Method
	if len(candidates1) > 0 {
		a = candidates1[0]
	}
	if len(candidates2) > 0 {
		b = candidates2[0]
	}
	return a, b
}

// FindAPIUsage resolves a rule's method spec to concrete methods (spec
// §4.4, "Stage-1 detail"). It returns the exact match if present.
// Otherwise it returns every method with a matching (name, descriptor)
// and empty bytecode (abstract/interface/native shim) whose declaring
// class is a subclass of spec.Class, per apkmodel.IsSubclass, stopping at
// java.lang.Object. Rationale: Android apps commonly invoke framework
// APIs via a subclass override whose concrete class is not written
// explicitly in the rule.
func FindAPIUsage(apk apkmodel.ApkInfo, spec rule.MethodSpec) []*apkmodel.Method {
	if exact, ok := apk.FindMethod(spec.Class, spec.Method, spec.Descriptor); ok {
		return []*apkmodel.Method{exact}
	}

	var out []*apkmodel.Method
	for _, cand := range apk.AllMethods() {
		if cand.MethodName != spec.Method || cand.Descriptor != spec.Descriptor {
			continue
		}
		if len(apk.GetMethodBytecode(cand)) != 0 {
			continue
		}
		if apkmodel.IsSubclass(apk, cand.ClassName, spec.Class) {
			out = append(out, cand)
		}
	}
	return out
}

// checkParameter implements spec §4.4's "Stage-5 detail". An ancestor P
// found by stage 4 may not invoke m1/m2 directly — it commonly reaches
// them through a wrapper method one level down (spec Glossary, "Wrapper
// method"). So for each pair (m1, m2) from the two stage-1 candidate
// lists and each common ancestor P, this first asks
// callgraph.FindPreviousMethod for the entry points P directly invokes on
// its way to m1 and to m2 (when P calls an API directly, that API is its
// own single-element wrapper set), then evaluates P and retains any trace
// in which both wrappers' patterns co-occur — the shared register/
// parameter lineage the stage requires "at the ancestor". If the rule has
// keywords, the retained trace must additionally satisfy the keyword
// constraint, extracted from wherever the real API call's argument block
// actually appears: directly in P's trace when P calls the API itself, or
// in the wrapper's own evaluation otherwise. Every success appends an
// evidence record and records the ancestor's wrapper smali.
func (m *Matcher) checkParameter(
	r *rule.Rule,
	candidates1, candidates2, ancestors []*apkmodel.Method,
	qa *analysis.QuarkAnalysis,
) []analysis.Evidence {
	if len(ancestors) == 0 {
		invariantBroken("checkParameter called with no stage-4 ancestor")
	}

	var evidence []analysis.Evidence
	for _, ancestor := range ancestors {
		parentTraces := m.Evaluator.Evaluate(m.Apk, ancestor).Traces()

		for _, m1 := range candidates1 {
			wrappers1 := callgraph.FindPreviousMethod(m.Apk, m1, ancestor)
			for _, m2 := range candidates2 {
				wrappers2 := callgraph.FindPreviousMethod(m.Apk, m2, ancestor)

				for _, w1 := range wrappers1 {
					for _, w2 := range wrappers2 {
						if !m.wrapperPairMatches(r, parentTraces, w1, m1, w2, m2) {
							continue
						}
						evidence = append(evidence, analysis.Evidence{
							Parent:     ancestor,
							FirstCall:  m1,
							SecondCall: m2,
							Crime:      r.Crime,
						})
						qa.AddEvidence(evidence[len(evidence)-1])
						if snippet, ok := m.Apk.GetWrapperSmali(ancestor, m1, m2); ok {
							qa.SetWrapperSmali(ancestor.Pattern(), snippet)
						}
					}
				}
			}
		}
	}
	return evidence
}

// wrapperPairMatches reports whether ancestor's traces (parentTraces) show
// w1 and w2 — the wrapper methods ancestor directly invokes on its way to
// api1 and api2 — co-occurring, and, if the rule declares keywords,
// whether the real API calls' argument blocks satisfy them.
func (m *Matcher) wrapperPairMatches(
	r *rule.Rule,
	parentTraces []string,
	w1, api1, w2, api2 *apkmodel.Method,
) bool {
	p1, p2 := w1.Pattern(), w2.Pattern()
	for _, tr := range parentTraces {
		if !strings.Contains(tr, p1) || !strings.Contains(tr, p2) {
			continue
		}
		if r.Keywords[0] == nil && r.Keywords[1] == nil {
			return true
		}
		if r.Keywords[0] != nil {
			block, ok := m.apiArgBlock(tr, w1, api1)
			if !ok || !keywordMatch(block, r.Keywords[0]) {
				continue
			}
		}
		if r.Keywords[1] != nil {
			block, ok := m.apiArgBlock(tr, w2, api2)
			if !ok || !keywordMatch(block, r.Keywords[1]) {
				continue
			}
		}
		return true
	}
	return false
}

// apiArgBlock returns the argument block for api's call: extracted
// directly from parentTrace when wrapper is the API itself, or from the
// wrapper's own evaluation otherwise (spec §4.4 step 5's balanced-paren
// argument-block extraction).
func (m *Matcher) apiArgBlock(parentTrace string, wrapper, api *apkmodel.Method) (string, bool) {
	if wrapper.Equals(api) {
		return ExtractArgBlock(parentTrace, api.Pattern())
	}
	for _, tr := range m.Evaluator.Evaluate(m.Apk, wrapper).Traces() {
		if block, ok := ExtractArgBlock(tr, api.Pattern()); ok {
			return block, true
		}
	}
	return "", false
}

// keywordMatch implements spec §4.4 step 5: every configured keyword is
// tested against argBlock per the rule's regex flag; a match on any one
// keyword is sufficient.
func keywordMatch(argBlock string, kw *rule.Keywords) bool {
	for _, k := range kw.Values {
		if kw.Regex {
			if re := compileCached(k); re != nil && re.MatchString(argBlock) {
				return true
			}
			continue
		}
		if strings.Contains(argBlock, k) {
			return true
		}
	}
	return false
}

// ExtractArgBlock finds pattern within trace and returns the substring
// enclosed by pattern's immediately following balanced parentheses (spec
// §4.4, "Auxiliary: balanced-paren extraction").
func ExtractArgBlock(trace, pattern string) (string, bool) {
	idx := strings.Index(trace, pattern)
	if idx < 0 {
		return "", false
	}
	open := idx + len(pattern)
	if open >= len(trace) || trace[open] != '(' {
		return "", false
	}
	depth := 0
	for i := open; i < len(trace); i++ {
		switch trace[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return trace[open+1 : i], true
			}
		}
	}
	return "", false
}
