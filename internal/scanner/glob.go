package scanner

import (
	"fmt"
	"path"
	"strings"
)

// Matcher evaluates include/exclude glob patterns against volume-relative
// slash paths. Patterns are matched against both the full relative path and
// the base name, and patterns of the form "*/name/*" additionally match any
// single path segment, so the common exclude idioms ("*.tmp", "*/.*",
// "*/node_modules/*") behave as expected.
type Matcher struct {
	includes []string
	excludes []string
}

// NewMatcher validates the given patterns and returns a Matcher.
// An empty include list matches every file.
func NewMatcher(includes, excludes []string) (*Matcher, error) {
	for _, p := range append(append([]string{}, includes...), excludes...) {
		if p == "" {
			return nil, fmt.Errorf("empty glob pattern")
		}
		if _, err := path.Match(p, "probe"); err != nil {
			return nil, fmt.Errorf("bad glob pattern %q: %w", p, err)
		}
	}
	return &Matcher{includes: includes, excludes: excludes}, nil
}

// ExcludedDir reports whether a directory should be pruned: the whole subtree
// is skipped without descending.
func (m *Matcher) ExcludedDir(rel string) bool {
	return matchAny(m.excludes, rel)
}

// Match reports whether a file should be emitted as a candidate: not excluded,
// and matched by at least one include pattern (or the include list is empty).
func (m *Matcher) Match(rel string) bool {
	if matchAny(m.excludes, rel) {
		return false
	}
	if len(m.includes) == 0 {
		return true
	}
	return matchAny(m.includes, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if matchPattern(p, rel) {
			return true
		}
	}
	return false
}

// matchPattern matches one glob pattern against a relative path. path.Match
// semantics apply per attempt ('*' does not cross '/'), tried against the full
// path, the base name, and (for "*/core/*"-style patterns) each segment.
func matchPattern(pattern, rel string) bool {
	if ok, _ := path.Match(pattern, rel); ok {
		return true
	}
	if ok, _ := path.Match(pattern, path.Base(rel)); ok {
		return true
	}

	core := strings.TrimSuffix(strings.TrimPrefix(pattern, "*/"), "/*")
	if core == pattern || core == "" {
		return false
	}
	for _, seg := range strings.Split(rel, "/") {
		if ok, _ := path.Match(core, seg); ok {
			return true
		}
	}
	return false
}
