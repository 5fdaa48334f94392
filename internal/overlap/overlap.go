// Package overlap evaluates candidate summaries against references with
// n-gram overlap metrics and ranks named variants.
package overlap

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/TobiSchelling/summaryqc/internal/segment"
)

// ErrLengthMismatch is matched by every *InputShapeError.
var ErrLengthMismatch = errors.New("candidate and reference counts differ")

// ErrZeroBaseline is returned by Project when the baseline mean is zero.
var ErrZeroBaseline = errors.New("baseline mean is zero")

// InputShapeError reports candidate and reference sequences of different
// lengths.
type InputShapeError struct {
	Candidates int
	References int
}

func (e *InputShapeError) Error() string {
	return fmt.Sprintf("%d candidates vs %d references: %v", e.Candidates, e.References, ErrLengthMismatch)
}

func (e *InputShapeError) Unwrap() error {
	return ErrLengthMismatch
}

// Scores are the raw ratios returned by a Scorer, each in [0,1].
type Scores struct {
	Unigram float64
	Bigram  float64
	LCS     float64
}

// Scorer computes overlap between positionally paired predictions and
// references. Implementations may be slow; callers do not retry.
type Scorer interface {
	Score(ctx context.Context, predictions, references []string) (Scores, error)
}

// Metrics are aggregate overlap ratios. Mean is the arithmetic mean of the
// other three.
type Metrics struct {
	Unigram float64 `json:"unigram"`
	Bigram  float64 `json:"bigram"`
	LCS     float64 `json:"lcs"`
	Mean    float64 `json:"mean"`
}

// NewMetrics derives Metrics from collaborator scores.
func NewMetrics(s Scores) Metrics {
	return Metrics{
		Unigram: s.Unigram,
		Bigram:  s.Bigram,
		LCS:     s.LCS,
		Mean:    (s.Unigram + s.Bigram + s.LCS) / 3,
	}
}

// Percent returns m scaled to percentages.
func (m Metrics) Percent() Metrics {
	return Metrics{
		Unigram: m.Unigram * 100,
		Bigram:  m.Bigram * 100,
		LCS:     m.LCS * 100,
		Mean:    m.Mean * 100,
	}
}

func (m Metrics) String() string {
	p := m.Percent()
	return fmt.Sprintf("R1 %.2f  R2 %.2f  RL %.2f  mean %.4f", p.Unigram, p.Bigram, p.LCS, p.Mean)
}

// Evaluator pairs candidates with references and aggregates the scores.
type Evaluator struct {
	scorer Scorer
}

// NewEvaluator returns an Evaluator using s, or ROUGE when s is nil.
func NewEvaluator(s Scorer) *Evaluator {
	if s == nil {
		s = ROUGE{}
	}
	return &Evaluator{scorer: s}
}

// Evaluate scores candidates against references paired by index.
func (e *Evaluator) Evaluate(ctx context.Context, candidates, references []string) (Metrics, error) {
	if len(candidates) != len(references) {
		return Metrics{}, &InputShapeError{Candidates: len(candidates), References: len(references)}
	}
	s, err := e.scorer.Score(ctx, candidates, references)
	if err != nil {
		return Metrics{}, fmt.Errorf("scoring overlap: %w", err)
	}
	return NewMetrics(s), nil
}

// Candidate is a named set of summaries aligned with the references.
type Candidate struct {
	Name  string
	Texts []string
}

// Ranking is one evaluated candidate.
type Ranking struct {
	Name    string
	Metrics Metrics
	// MeanWords is the average candidate length in words.
	MeanWords float64
	// Density is ROUGE-2 in percentage points per candidate word.
	Density float64
}

// Rank evaluates every candidate and returns them best first.
func (e *Evaluator) Rank(ctx context.Context, candidates []Candidate, references []string) ([]Ranking, error) {
	out := make([]Ranking, 0, len(candidates))
	for _, c := range candidates {
		r, err := e.RankOne(ctx, c, references)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	SortRankings(out)
	return out, nil
}

// RankOne evaluates a single candidate.
func (e *Evaluator) RankOne(ctx context.Context, c Candidate, references []string) (Ranking, error) {
	m, err := e.Evaluate(ctx, c.Texts, references)
	if err != nil {
		return Ranking{}, fmt.Errorf("evaluating %s: %w", c.Name, err)
	}
	r := Ranking{Name: c.Name, Metrics: m, MeanWords: meanWords(c.Texts)}
	r.Density = Density(m, r.MeanWords)
	return r, nil
}

// SortRankings orders rankings by Mean descending, then by name.
func SortRankings(rs []Ranking) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Metrics.Mean != rs[j].Metrics.Mean {
			return rs[i].Metrics.Mean > rs[j].Metrics.Mean
		}
		return rs[i].Name < rs[j].Name
	})
}

// Density returns ROUGE-2 percentage points per word. It is zero when
// meanWords is zero.
func Density(m Metrics, meanWords float64) float64 {
	if meanWords == 0 {
		return 0
	}
	return m.Bigram * 100 / meanWords
}

// Project estimates a leaderboard score for candidate from a baseline whose
// development-set metrics and leaderboard score are both known, assuming the
// two scale linearly. It is an estimate only.
func Project(baseline Metrics, baselineLeaderboard float64, candidate Metrics) (float64, error) {
	if baseline.Mean == 0 {
		return 0, ErrZeroBaseline
	}
	return candidate.Mean * baselineLeaderboard / baseline.Mean, nil
}

func meanWords(texts []string) float64 {
	if len(texts) == 0 {
		return 0
	}
	var total int
	for _, t := range texts {
		total += segment.WordCount(t)
	}
	return float64(total) / float64(len(texts))
}
