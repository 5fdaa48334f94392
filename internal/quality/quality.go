// Package quality scores summaries for surface signs of fabricated or
// padded content.
//
// The score is a heuristic ranking signal for comparing variants of the same
// summaries. It is not a hallucination detector and carries no absolute
// meaning.
package quality

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/TobiSchelling/summaryqc/internal/rules"
	"github.com/TobiSchelling/summaryqc/internal/segment"
	"github.com/TobiSchelling/summaryqc/internal/textnorm"
)

// Category names a defect class.
type Category string

const (
	Numerals           Category = "excessive_numerals"
	LongSentences      Category = "long_sentences"
	Speculation        Category = "speculation"
	ConnectiveOverload Category = "connective_overload"
)

// Penalties subtracted from the maximum score.
const (
	MaxScore           = 100
	detailPenalty      = 10
	speculationPenalty = 15
	unsupportedPenalty = 10
)

var digitRun = regexp.MustCompile(`[0-9]+`)

// DefaultHedges match speculative phrasing.
var DefaultHedges = []rules.Entry{
	{Name: "seems", Pattern: `것으로\s*보입니다`},
	{Name: "thought", Pattern: `것으로\s*생각됩니다`},
	{Name: "estimated", Pattern: `것으로\s*추정됩니다`},
	{Name: "like", Pattern: `인\s*것\s*같습니다`},
	{Name: "apparently", Pattern: `듯\s*합니다`},
	{Name: "perhaps", Pattern: `아마도`},
	{Name: "guess", Pattern: `추측`},
}

// DefaultConnectives are counted for connective overload.
var DefaultConnectives = []string{"그리고", "또한", "하지만", "그러나", "따라서", "그래서"}

// Config holds the detection thresholds and tables.
type Config struct {
	NumeralLimit      int           `yaml:"numeral_limit" validate:"gte=0"`
	LongSentenceWords int           `yaml:"long_sentence_words" validate:"gte=1"`
	ConnectiveLimit   int           `yaml:"connective_limit" validate:"gte=0"`
	Hedges            []rules.Entry `yaml:"hedges" validate:"dive"`
	Connectives       []string      `yaml:"connectives"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		NumeralLimit:      5,
		LongSentenceWords: 30,
		ConnectiveLimit:   3,
		Hedges:            append([]rules.Entry(nil), DefaultHedges...),
		Connectives:       append([]string(nil), DefaultConnectives...),
	}
}

// Result is the outcome of scoring one text.
type Result struct {
	// Counts holds the raw count per category, including categories that did
	// not trigger a penalty.
	Counts map[Category]int
	// Triggered lists the penalised categories in a fixed order.
	Triggered []Category
	// Matches are the speculative phrases found.
	Matches []string
	Score   int
}

// Has reports whether category c was penalised.
func (r Result) Has(c Category) bool {
	for _, t := range r.Triggered {
		if t == c {
			return true
		}
	}
	return false
}

// ExcessiveDetail reports whether either detail category was penalised.
func (r Result) ExcessiveDetail() bool {
	return r.Has(Numerals) || r.Has(LongSentences)
}

// Scorer applies a compiled Config. It is safe for concurrent use.
type Scorer struct {
	cfg         Config
	hedges      rules.Table
	connectives rules.Table
}

// New compiles cfg.
func New(cfg Config) (*Scorer, error) {
	hedges, err := rules.Compile(cfg.Hedges)
	if err != nil {
		return nil, fmt.Errorf("hedge patterns: %w", err)
	}
	connectives, err := rules.Compile(rules.Literal(cfg.Connectives...))
	if err != nil {
		return nil, fmt.Errorf("connectives: %w", err)
	}
	return &Scorer{cfg: cfg, hedges: hedges, connectives: connectives}, nil
}

// Default returns a scorer with DefaultConfig.
func Default() *Scorer {
	s, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return s
}

// Score evaluates text.
func (s *Scorer) Score(text string) Result {
	text = textnorm.Coerce(text)
	r := Result{Counts: make(map[Category]int, 4)}

	numerals := len(digitRun.FindAllStringIndex(text, -1))
	r.Counts[Numerals] = numerals
	if numerals > s.cfg.NumeralLimit {
		r.Triggered = append(r.Triggered, Numerals)
	}

	var long int
	for _, u := range segment.Segment(text) {
		if segment.WordCount(u) > s.cfg.LongSentenceWords {
			long++
		}
	}
	r.Counts[LongSentences] = long
	if long > 0 {
		r.Triggered = append(r.Triggered, LongSentences)
	}

	r.Matches = s.hedges.Matches(text)
	r.Counts[Speculation] = len(r.Matches)
	if len(r.Matches) > 0 {
		r.Triggered = append(r.Triggered, Speculation)
	}

	connectives := s.connectives.Total(text)
	r.Counts[ConnectiveOverload] = connectives
	if connectives > s.cfg.ConnectiveLimit {
		r.Triggered = append(r.Triggered, ConnectiveOverload)
	}

	score := MaxScore
	for _, c := range r.Triggered {
		switch c {
		case Numerals, LongSentences:
			score -= detailPenalty
		case ConnectiveOverload:
			score -= unsupportedPenalty
		}
	}
	score -= speculationPenalty * len(r.Matches)
	r.Score = max(0, score)
	return r
}

// Lowest returns the indexes of the n lowest-scoring results, lowest first.
// Ties keep input order.
func Lowest(results []Result, n int) []int {
	idx := make([]int, len(results))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return results[idx[a]].Score < results[idx[b]].Score
	})
	if n >= 0 && n < len(idx) {
		idx = idx[:n]
	}
	return idx
}
