// Package segment splits normalized text into sentence units.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsTerminal reports whether r ends a sentence.
func IsTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// Segment splits text after every terminal mark that is followed by
// whitespace. The mark stays with the preceding unit, an unterminated trailing
// fragment is kept as the last unit, and units that are empty after trimming
// are dropped.
func Segment(text string) []string {
	var units []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			units = append(units, s)
		}
	}

	start := 0
	for i, r := range text {
		if !IsTerminal(r) {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next >= len(text) {
			break
		}
		if nr, _ := utf8.DecodeRuneInString(text[next:]); unicode.IsSpace(nr) {
			add(text[start:next])
			start = next
		}
	}
	add(text[start:])
	return units
}

// Join reconstructs text from units with single-space separators.
func Join(units []string) string {
	return strings.Join(units, " ")
}

// Words splits s into whitespace-delimited words.
func Words(s string) []string {
	return strings.Fields(s)
}

// WordCount returns the number of whitespace-delimited words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Terminated reports whether s ends with a terminal mark.
func Terminated(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return IsTerminal(r)
}

// EndsWithForm reports whether s ends with one of the given sentence-final
// forms, such as the Korean endings "다" or "요".
func EndsWithForm(s string, forms []string) bool {
	s = strings.TrimSpace(s)
	for _, f := range forms {
		if f != "" && strings.HasSuffix(s, f) {
			return true
		}
	}
	return false
}
