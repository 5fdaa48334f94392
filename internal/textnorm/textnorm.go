// Package textnorm normalizes whitespace, punctuation and duplicated tokens in
// generated summaries.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/TobiSchelling/summaryqc/internal/rules"
)

// maxPasses bounds the fixpoint loop in Normalize.
const maxPasses = 4

// trailingPunct is stripped from a token before comparing it with its
// predecessor.
const trailingPunct = ".,!?;:"

var (
	spaceBeforePunct = regexp.MustCompile(`\s+([,.!?])`)
	repeatedTerminal = regexp.MustCompile(`([.!?])[.!?]+`)
)

// DefaultDuplicates collapses doubled Korean particles and sentence-final verb
// endings that survive token-level deduplication because the first copy is
// attached to a word ("친구에게 에게").
var DefaultDuplicates = []rules.Entry{
	{Name: "particle-ege", Pattern: `에게\s+에게`, Replacement: "에게"},
	{Name: "particle-eseo", Pattern: `에서\s+에서`, Replacement: "에서"},
	{Name: "particle-e", Pattern: `에\s+에(\s)`, Replacement: "에${1}"},
	{Name: "ending-hamnida", Pattern: `합니다\s+합니다`, Replacement: "합니다"},
	{Name: "ending-handa", Pattern: `한다\s+한다`, Replacement: "한다"},
	{Name: "ending-hago", Pattern: `하고\s+하고`, Replacement: "하고"},
	{Name: "ending-imnida", Pattern: `입니다\s+입니다`, Replacement: "입니다"},
}

// Normalizer applies whitespace, punctuation and duplicate collapsing rules.
// A nil *Normalizer behaves like one with an empty duplicate table.
type Normalizer struct {
	duplicates rules.Table
}

// New compiles a normalizer with the given duplicate table.
func New(duplicates []rules.Entry) (*Normalizer, error) {
	table, err := rules.Compile(duplicates)
	if err != nil {
		return nil, err
	}
	return &Normalizer{duplicates: table}, nil
}

// Default returns a normalizer using DefaultDuplicates.
func Default() *Normalizer {
	return &Normalizer{duplicates: rules.MustCompile(DefaultDuplicates)}
}

// Normalize returns the normalized form of text. Passes are repeated until the
// text stops changing, so Normalize(Normalize(s)) == Normalize(s).
func (n *Normalizer) Normalize(text string) string {
	text = Coerce(text)
	for range maxPasses {
		next := n.pass(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func (n *Normalizer) pass(text string) string {
	text = CollapseSpace(text)
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	text = repeatedTerminal.ReplaceAllString(text, "$1")
	text = CollapseRepeatedTokens(text)
	if n != nil {
		text = n.duplicates.Apply(text)
	}
	return CollapseSpace(text)
}

// Coerce drops invalid UTF-8 and non-whitespace control characters and
// converts the result to NFC.
func Coerce(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	return norm.NFC.String(text)
}

// CollapseSpace replaces every whitespace run with a single space and trims
// both ends.
func CollapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// CollapseRepeatedTokens removes immediately repeated tokens. A token repeats
// its predecessor when it equals the predecessor after trailing punctuation is
// stripped and the predecessor has none; the later token is kept so sentence
// punctuation survives ("기뻐했다 기뻐했다." -> "기뻐했다.").
func CollapseRepeatedTokens(text string) string {
	tokens := strings.Fields(text)
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if k := len(out); k > 0 && repeats(out[k-1], tok) {
			out[k-1] = tok
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

func repeats(prev, next string) bool {
	if prev != strings.TrimRight(prev, trailingPunct) {
		return false
	}
	return prev == strings.TrimRight(next, trailingPunct)
}
