// Package analysis implements the analysis state accumulator (spec §3,
// §4.6, component C6): per-run evidence, wrapper smali snippets,
// encountered permissions, and the weighted risk score.
package analysis

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/open-quark/quark-engine-go/apkmodel"
)

// Evidence is one concrete call-site match (spec §3): the ancestor method
// in which two target API calls were found to share data flow, the two
// calls themselves, and the crime the matching rule described.
type Evidence struct {
	Parent     *apkmodel.Method
	FirstCall  *apkmodel.Method
	SecondCall *apkmodel.Method
	Crime      string
}

// RuleResult is what a completed rule evaluation contributes to the
// analysis: the confidence it reached and the evidence gathered at that
// confidence (evidence is only non-empty when confidence reached 100,
// spec §4.4 stage 5).
type RuleResult struct {
	RuleID     string
	Crime      string
	Confidence int
	Score      int
	Evidence   []Evidence
}

// QuarkAnalysis accumulates results across all rules evaluated against one
// application (spec §4.6). A single QuarkAnalysis is owned per (apk,
// ruleset) run; it is mutated by the matcher and consumed by reporters.
//
// Per spec §5, concurrent per-rule evaluation is permitted provided
// mutations are serialized; QuarkAnalysis guards its own state with a
// mutex so a host may call AddResult from multiple goroutines, one per
// rule, without its own locking.
type QuarkAnalysis struct {
	// RunID identifies this analysis run, for log correlation.
	RunID string

	mu                    sync.Mutex
	callGraphAnalysisList []Evidence
	parentWrapperMapping  map[string]apkmodel.WrapperSmali
	permissions           map[string]struct{}
	weightedSum           float64
	results               []RuleResult

	// FirstAPI and SecondAPI are transient fields describing the rule
	// currently being evaluated, used only for evidence construction
	// (spec §4.6). A host inspecting a QuarkAnalysis mid-run should treat
	// them as informational only.
	FirstAPI  *apkmodel.Method
	SecondAPI *apkmodel.Method
}

// New creates an empty analysis state, stamped with a fresh run ID.
func New() *QuarkAnalysis {
	return &QuarkAnalysis{
		RunID:                uuid.New().String(),
		parentWrapperMapping: map[string]apkmodel.WrapperSmali{},
		permissions:          map[string]struct{}{},
	}
}

// AddEvidence appends one evidence record (spec §3, §5: "Evidence within a
// single rule is appended in the order (m1, m2, ancestor) iterates").
func (a *QuarkAnalysis) AddEvidence(e Evidence) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callGraphAnalysisList = append(a.callGraphAnalysisList, e)
}

// SetWrapperSmali records (or overwrites) the smali snippet for an
// ancestor's full name. Last-write-wins under a fixed, deterministic rule
// evaluation order (spec §4.6, §5).
func (a *QuarkAnalysis) SetWrapperSmali(parentFullName string, snippet apkmodel.WrapperSmali) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.parentWrapperMapping[parentFullName] = snippet
}

// AddPermissions merges a rule's declared permissions into the
// accumulated permission set.
func (a *QuarkAnalysis) AddPermissions(perms []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range perms {
		a.permissions[p] = struct{}{}
	}
}

// AddResult records one rule's final confidence and contributes
// score*(confidence/100) to the weighted sum (spec §4.6). confidence must
// be one of {0, 20, 40, 60, 80, 100} (spec §8, invariant 1); callers pass
// the matcher.Confidence value.
func (a *QuarkAnalysis) AddResult(r RuleResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, r)
	a.weightedSum += float64(r.Score) * (float64(r.Confidence) / 100.0)
}

// Evidence returns every evidence record accumulated so far, in the order
// appended.
func (a *QuarkAnalysis) Evidence() []Evidence {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Evidence, len(a.callGraphAnalysisList))
	copy(out, a.callGraphAnalysisList)
	return out
}

// WrapperSmaliFor returns the last-recorded smali snippet for an
// ancestor's full name.
func (a *QuarkAnalysis) WrapperSmaliFor(parentFullName string) (apkmodel.WrapperSmali, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.parentWrapperMapping[parentFullName]
	return s, ok
}

// Permissions returns the accumulated permission set as a sorted slice.
func (a *QuarkAnalysis) Permissions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.permissions))
	for p := range a.permissions {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// WeightedSum returns the accumulated sum of score*(confidence/100) over
// every rule evaluated (spec §4.6). Mapping this sum to a categorical risk
// level is left to reporters (spec §9).
func (a *QuarkAnalysis) WeightedSum() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.weightedSum
}

// Results returns every rule's recorded result, in the order AddResult was
// called — the reporter interface's "list of matched rules with their
// final confidence" (spec §6), before any CONFIDENCE_THRESHOLD filtering.
func (a *QuarkAnalysis) Results() []RuleResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]RuleResult, len(a.results))
	copy(out, a.results)
	return out
}

// AboveThreshold filters Results to those at or above threshold, one of
// {20, 40, 60, 80, 100} (spec §6, Tunables: CONFIDENCE_THRESHOLD).
func (a *QuarkAnalysis) AboveThreshold(threshold int) []RuleResult {
	var out []RuleResult
	for _, r := range a.Results() {
		if r.Confidence >= threshold {
			out = append(out, r)
		}
	}
	return out
}
