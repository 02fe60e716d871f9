package rule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Registry is a directory of rule documents (spec §4.5): "a registry is a
// directory of such documents." Loading is deliberately tolerant per the
// error taxonomy (spec §7, MalformedRule): one bad file is skipped with a
// warning, the rest of the directory still loads.
type Registry struct {
	rules    []*Rule
	Warnings []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Load reads every *.json file directly under dir (non-recursive — a rule
// registry is a flat directory of documents, spec §4.5) and validates
// each. Malformed documents are recorded in Warnings and skipped; Load
// itself only fails if dir cannot be read at all.
func (reg *Registry) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("rule: read registry dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names) // deterministic load order

	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := reg.loadFile(path); err != nil {
			reg.Warnings = append(reg.Warnings, fmt.Sprintf("%s: %v", path, err))
		}
	}
	return nil
}

func (reg *Registry) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}
	r := &Rule{}
	if err := json.Unmarshal(data, r); err != nil {
		return err
	}
	r.SourcePath = path
	if err := r.Validate(); err != nil {
		return err
	}
	reg.rules = append(reg.rules, r)
	return nil
}

// Add registers an already-constructed rule directly, validating it
// first. Used by callers that build rules programmatically instead of
// loading a directory (and by rulecache when replaying a cached parse).
func (reg *Registry) Add(r *Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	reg.rules = append(reg.rules, r)
	return nil
}

// All returns every successfully loaded rule, in load order.
func (reg *Registry) All() []*Rule {
	out := make([]*Rule, len(reg.rules))
	copy(out, reg.rules)
	return out
}

// GroupByCrime groups rules by their Crime field (spec §2: "Load and
// validate rule definitions; group by crime/label").
func (reg *Registry) GroupByCrime() map[string][]*Rule {
	out := map[string][]*Rule{}
	for _, r := range reg.rules {
		out[r.Crime] = append(out[r.Crime], r)
	}
	return out
}

// GroupByLabel groups rules by each of their labels; a rule with multiple
// labels appears under every one of them.
func (reg *Registry) GroupByLabel() map[string][]*Rule {
	out := map[string][]*Rule{}
	for _, r := range reg.rules {
		for _, label := range r.Label {
			out[label] = append(out[label], r)
		}
	}
	return out
}
