package matcher

import (
	"regexp"
	"sync"
)

// regexCache memoizes compiled keyword patterns across rules; the same
// literal keyword commonly recurs across many rule documents (spec §4.4,
// "Auxiliary: keyword matching").
var (
	regexCacheMu sync.Mutex
	regexCache   = map[string]*regexp.Regexp{}
)

// compileCached compiles pattern once and reuses it thereafter. An
// invalid pattern is treated as a non-match (spec §7, EvaluatorSkip-style
// tolerance) rather than propagated as an error — keyword matching never
// aborts a rule evaluation.
func compileCached(pattern string) *regexp.Regexp {
	regexCacheMu.Lock()
	defer regexCacheMu.Unlock()
	if re, ok := regexCache[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		regexCache[pattern] = nil
		return nil
	}
	regexCache[pattern] = re
	return re
}
