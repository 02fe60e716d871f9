// Package rule implements the rule model and registry (spec §4.5, §6,
// component C5): loading and validating rule documents from a directory,
// and grouping them by crime/label.
package rule

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedRule categorizes a rule document that fails validation
// (spec §7). The offending rule is skipped; the caller decides whether to
// surface the warning.
var ErrMalformedRule = errors.New("rule: malformed rule")

// MethodSpec names one of a rule's two target APIs (spec §6).
type MethodSpec struct {
	Class      string `json:"class"`
	Method     string `json:"method"`
	Descriptor string `json:"descriptor"`
}

func (s MethodSpec) validate() error {
	if s.Class == "" || s.Method == "" || s.Descriptor == "" {
		return fmt.Errorf("%w: incomplete api entry %+v", ErrMalformedRule, s)
	}
	return nil
}

// Keywords constrains what textual content must appear among a target
// API's parameters (spec §4.4 stage-5 detail, §6). A nil entry for either
// API means "no constraint"; Regex selects substring vs. regex matching.
type Keywords struct {
	Values []string
	Regex  bool
}

// Rule is a self-contained behavior-matching document (spec §3, §4.5,
// §6). The two API entries are target method 1 and target method 2.
type Rule struct {
	Crime      string
	Permission []string
	API        [2]MethodSpec
	Score      int
	Label      []string
	Keywords   [2]*Keywords

	// SourcePath is the file the rule was loaded from, used only in
	// diagnostics; it has no bearing on matching.
	SourcePath string
}

// wireRule mirrors the bit-exact JSON schema from spec §6, where keywords
// is a length-2 array of either null or a plain string list (no regex
// flag travels over the wire — see DESIGN.md's Open Question decision on
// Keywords.Regex).
type wireRule struct {
	Crime      string         `json:"crime"`
	Permission []string       `json:"permission"`
	API        [2]MethodSpec  `json:"api"`
	Score      int            `json:"score"`
	Label      []string       `json:"label"`
	Keywords   *[2]*[]string  `json:"keywords,omitempty"`
}

// UnmarshalJSON implements the bit-exact rule-file schema from spec §6.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var w wireRule
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}
	r.Crime = w.Crime
	r.Permission = w.Permission
	r.API = w.API
	r.Score = w.Score
	r.Label = w.Label
	if w.Keywords != nil {
		for i, kw := range w.Keywords {
			if kw != nil {
				r.Keywords[i] = &Keywords{Values: *kw}
			}
		}
	}
	return nil
}

// MarshalJSON round-trips a Rule back to the bit-exact wire schema.
func (r *Rule) MarshalJSON() ([]byte, error) {
	w := wireRule{
		Crime:      r.Crime,
		Permission: r.Permission,
		API:        r.API,
		Score:      r.Score,
		Label:      r.Label,
	}
	if r.Keywords[0] != nil || r.Keywords[1] != nil {
		var kw [2]*[]string
		for i, k := range r.Keywords {
			if k != nil {
				kw[i] = &k.Values
			}
		}
		w.Keywords = &kw
	}
	return json.Marshal(w)
}

// Validate enforces spec §4.5's mandatory-field and shape constraints.
// Each api entry must be a complete signature triple, score must be a
// positive integer, and label may be an empty (but present) list.
func (r *Rule) Validate() error {
	if r.Crime == "" {
		return fmt.Errorf("%w: missing crime", ErrMalformedRule)
	}
	for i := range r.API {
		if err := r.API[i].validate(); err != nil {
			return err
		}
	}
	if r.Score <= 0 {
		return fmt.Errorf("%w: score must be a positive integer, got %d", ErrMalformedRule, r.Score)
	}
	if r.Label == nil {
		return fmt.Errorf("%w: label must be present (may be empty)", ErrMalformedRule)
	}
	return nil
}

// ID returns a stable identifier for the rule, derived from its two
// target API patterns and crime, suitable as a cache key.
func (r *Rule) ID() string {
	return fmt.Sprintf("%s|%s->%s%s|%s->%s%s",
		r.Crime,
		r.API[0].Class, r.API[0].Method, r.API[0].Descriptor,
		r.API[1].Class, r.API[1].Method, r.API[1].Descriptor,
	)
}
