// Package report holds the structured record of a comparison run and the
// sinks that render or persist it.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/TobiSchelling/summaryqc/internal/overlap"
	"github.com/TobiSchelling/summaryqc/internal/quality"
)

// Report is the outcome of one comparison run.
type Report struct {
	RunID      string
	CreatedAt  time.Time
	References string
	Baseline   string
	// Best is the selected variant. Selected by overlap mean when references
	// are available, otherwise by mean quality score.
	Best       string
	OutputPath string
	Variants   []Variant
	Suspicious []Defect
	Changes    []Change
	Warnings   []Warning
}

// Variant summarises one candidate set.
type Variant struct {
	Name    string
	Source  string
	Profile string
	Rows    int
	Changed int
	// Metrics is nil when the run had no references.
	Metrics   *overlap.Metrics
	DeltaMean float64
	MeanWords float64
	Density   float64
	// Projected is the estimated leaderboard score, when a baseline score is
	// configured.
	Projected   *float64
	Diagnostics quality.Diagnostics
	TopBigrams  []quality.BigramCount
}

// Defect is a low-scoring summary.
type Defect struct {
	Variant   string
	ID        string
	Score     int
	Triggered []quality.Category
	Matches   []string
	Text      string
}

// Change is a row the clean-up pipeline modified.
type Change struct {
	Variant   string
	ID        string
	Before    string
	After     string
	Stages    []string
	WordDelta int
}

// Warning is a non-fatal condition recorded during a run.
type Warning struct {
	Kind    string
	Variant string
	ID      string
	Message string
}

// Variant returns the variant with the given name.
func (r *Report) Variant(name string) (Variant, bool) {
	for _, v := range r.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// Sink consumes finished reports.
type Sink interface {
	Write(ctx context.Context, r *Report) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r *Report) error

func (f SinkFunc) Write(ctx context.Context, r *Report) error {
	return f(ctx, r)
}

// Multi writes to every sink and joins their errors.
type Multi []Sink

func (m Multi) Write(ctx context.Context, r *Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
