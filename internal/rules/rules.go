// Package rules compiles declarative (pattern, replacement) tables into ordered
// regular-expression rewrites.
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Entry is one configurable rewrite rule.
type Entry struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern" validate:"required"`
	Replacement string `yaml:"replacement"`
	Disabled    bool   `yaml:"disabled,omitempty"`
}

// label returns the name used in diagnostics, falling back to the pattern.
func (e Entry) label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Pattern
}

type compiled struct {
	name        string
	re          *regexp.Regexp
	replacement string
}

// Table is an ordered, compiled list of rewrite rules. The zero value is an
// empty table that leaves text unchanged.
type Table struct {
	rules []compiled
}

// CompileError reports a rule whose pattern failed to compile.
type CompileError struct {
	Rule  string
	Cause error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiling rule %q: %v", e.Rule, e.Cause)
}

func (e *CompileError) Unwrap() error {
	return e.Cause
}

// Compile compiles entries in order. Disabled entries are skipped.
func Compile(entries []Entry) (Table, error) {
	t := Table{rules: make([]compiled, 0, len(entries))}
	for _, e := range entries {
		if e.Disabled {
			continue
		}
		if strings.TrimSpace(e.Pattern) == "" {
			return Table{}, &CompileError{Rule: e.label(), Cause: fmt.Errorf("empty pattern")}
		}
		re, err := regexp.Compile(e.Pattern)
		if err != nil {
			return Table{}, &CompileError{Rule: e.label(), Cause: err}
		}
		t.rules = append(t.rules, compiled{name: e.label(), re: re, replacement: e.Replacement})
	}
	return t, nil
}

// MustCompile is like Compile but panics on error. Intended for package-level
// tables built from literals.
func MustCompile(entries []Entry) Table {
	t, err := Compile(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of active rules.
func (t Table) Len() int {
	return len(t.rules)
}

// Apply runs every rule over the output of the previous one.
func (t Table) Apply(text string) string {
	for _, r := range t.rules {
		text = r.re.ReplaceAllString(text, r.replacement)
	}
	return text
}

// Count returns the number of matches per rule name. Rules without matches
// are omitted.
func (t Table) Count(text string) map[string]int {
	counts := make(map[string]int)
	for _, r := range t.rules {
		if n := len(r.re.FindAllStringIndex(text, -1)); n > 0 {
			counts[r.name] += n
		}
	}
	return counts
}

// Total returns the number of matches across all rules.
func (t Table) Total(text string) int {
	var n int
	for _, r := range t.rules {
		n += len(r.re.FindAllStringIndex(text, -1))
	}
	return n
}

// Matches returns the matched substrings in rule order.
func (t Table) Matches(text string) []string {
	var out []string
	for _, r := range t.rules {
		out = append(out, r.re.FindAllString(text, -1)...)
	}
	return out
}

// Literal builds entries that match each word verbatim and replace it with
// the empty string. Callers usually set Replacement afterwards.
func Literal(words ...string) []Entry {
	entries := make([]Entry, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		entries = append(entries, Entry{Name: w, Pattern: regexp.QuoteMeta(w)})
	}
	return entries
}

// Alternation returns a non-capturing group matching any of the words
// literally, longest first so that prefixes do not shadow longer words.
// It returns "" for an empty list.
func Alternation(words []string) string {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	if len(quoted) == 0 {
		return ""
	}
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return "(?:" + strings.Join(quoted, "|") + ")"
}
