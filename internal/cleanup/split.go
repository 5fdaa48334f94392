package cleanup

import (
	"regexp"
	"strings"

	"github.com/TobiSchelling/summaryqc/internal/segment"
)

// SplitFinder locates a split point in a single sentence unit. On success the
// left part is returned terminated so that it segments as its own unit.
type SplitFinder interface {
	Find(unit string) (left, right string, ok bool)
}

// ConnectiveFinder splits at the first occurrence of the first connective, in
// list order, that appears as a whole word inside the unit. The connective is
// removed.
type ConnectiveFinder struct {
	Connectives []string
}

func (f ConnectiveFinder) Find(unit string) (string, string, bool) {
	for _, c := range f.Connectives {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		sep := " " + c + " "
		idx := strings.Index(unit, sep)
		if idx < 0 {
			continue
		}
		left := strings.TrimSpace(unit[:idx])
		right := strings.TrimSpace(unit[idx+len(sep):])
		if left == "" || right == "" {
			continue
		}
		return terminate(left), right, true
	}
	return "", "", false
}

// CommaFinder splits at the last comma in the first half of the unit, counted
// in runes, and only for units with more than MinWords words. The comma
// becomes a full stop.
type CommaFinder struct {
	MinWords int
}

func (f CommaFinder) Find(unit string) (string, string, bool) {
	if segment.WordCount(unit) <= f.MinWords {
		return "", "", false
	}
	runes := []rune(unit)
	for i := len(runes)/2 - 1; i > 0; i-- {
		if runes[i] != ',' {
			continue
		}
		left := strings.TrimSpace(string(runes[:i]))
		right := strings.TrimSpace(string(runes[i+1:]))
		if left == "" || right == "" {
			return "", "", false
		}
		return terminate(left), right, true
	}
	return "", "", false
}

// Chain tries each finder in order and returns the first split found.
type Chain []SplitFinder

func (c Chain) Find(unit string) (string, string, bool) {
	for _, f := range c {
		if left, right, ok := f.Find(unit); ok {
			return left, right, true
		}
	}
	return "", "", false
}

// splitUnit breaks unit until no piece exceeds limit words or no split point
// remains. Both pieces of a split are shorter than the unit, so the recursion
// ends. lead, when set, strips connectives from the start of every right-hand
// piece before it is measured, since the piece now opens a sentence.
func splitUnit(finder SplitFinder, lead *regexp.Regexp, unit string, limit int) []string {
	if segment.WordCount(unit) <= limit {
		return []string{unit}
	}
	left, right, ok := finder.Find(unit)
	if !ok {
		return []string{unit}
	}
	if lead != nil {
		right = lead.ReplaceAllString(right, "")
	}
	out := splitUnit(finder, lead, left, limit)
	return append(out, splitUnit(finder, lead, right, limit)...)
}

// firstClause returns the text before the first comma, terminated with a full
// stop. A unit without a comma is returned unchanged.
func firstClause(unit string) string {
	cut := strings.IndexByte(unit, ',')
	if cut < 0 {
		return unit
	}
	return terminate(strings.TrimSpace(unit[:cut]))
}

// terminate strips trailing commas and appends a full stop unless s already
// ends with a terminal mark.
func terminate(s string) string {
	s = strings.TrimRight(s, ", ")
	if s == "" || segment.Terminated(s) {
		return s
	}
	return s + "."
}
