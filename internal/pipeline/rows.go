package pipeline

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/summaryqc/internal/cleanup"
	"github.com/TobiSchelling/summaryqc/internal/dataset"
	"github.com/TobiSchelling/summaryqc/internal/quality"
	"github.com/TobiSchelling/summaryqc/internal/report"
	"github.com/TobiSchelling/summaryqc/internal/segment"
)

// Warning kinds recorded in reports.
const (
	// MissingReference marks a row a source-aware profile passed through
	// because its source document is unknown.
	MissingReference = "missing_reference"
	// MissingGold marks a candidate id with no reference summary. It is
	// scored against the empty string.
	MissingGold = "missing_gold"
	// DuplicateID marks an id that occurs more than once in an input file.
	DuplicateID = "duplicate_id"
)

// Warning is a non-fatal condition. Rows are never dropped because of one.
type Warning = report.Warning

// CleanedRow is the outcome of cleaning one candidate summary.
type CleanedRow struct {
	ID     string
	Before string
	After  string
	// Stages lists the clean-up stages that changed the text.
	Stages []string
	// Skipped is set when the row was passed through unchanged for lack of a
	// source document.
	Skipped bool
}

// Changed reports whether cleaning modified the text.
func (c CleanedRow) Changed() bool {
	return c.Before != c.After
}

// WordDelta is the change in word count.
func (c CleanedRow) WordDelta() int {
	return segment.WordCount(c.After) - segment.WordCount(c.Before)
}

// CleanRows cleans every row with p using up to workers goroutines. Results
// keep the input order. When p requires sources, rows whose id has no
// non-blank source text in sources are passed through unchanged.
func CleanRows(ctx context.Context, p *cleanup.Pipeline, rows []dataset.Row, sources *dataset.Table, workers int) ([]CleanedRow, error) {
	out := make([]CleanedRow, len(rows))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, row := range rows {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = cleanRow(p, row, sources)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func cleanRow(p *cleanup.Pipeline, row dataset.Row, sources *dataset.Table) CleanedRow {
	c := CleanedRow{ID: row.ID, Before: row.Text}
	if p.RequiresSource() && !hasSource(sources, row.ID) {
		c.After = row.Text
		c.Skipped = true
		return c
	}
	trace := p.Trace(row.Text)
	c.After = trace.Output()
	c.Stages = trace.Changed()
	return c
}

func hasSource(sources *dataset.Table, id string) bool {
	if sources == nil {
		return false
	}
	text, ok := sources.Lookup(id)
	return ok && strings.TrimSpace(text) != ""
}

// ScoreRows scores every text using up to workers goroutines.
func ScoreRows(ctx context.Context, s *quality.Scorer, texts []string, workers int) ([]quality.Result, error) {
	out := make([]quality.Result, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, text := range texts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = s.Score(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
