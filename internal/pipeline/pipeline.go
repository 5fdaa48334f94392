// Package pipeline drives a comparison run: it loads candidate summary
// sets, derives cleaned variants from the configured profiles, scores and
// evaluates every variant, writes the best one and hands a report to the
// configured sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/summaryqc/internal/cleanup"
	"github.com/TobiSchelling/summaryqc/internal/config"
	"github.com/TobiSchelling/summaryqc/internal/dataset"
	"github.com/TobiSchelling/summaryqc/internal/overlap"
	"github.com/TobiSchelling/summaryqc/internal/quality"
	"github.com/TobiSchelling/summaryqc/internal/report"
	"github.com/TobiSchelling/summaryqc/internal/textnorm"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full comparison run.
type Result struct {
	RunID  string
	Steps  []StepResult
	Report *report.Report
}

// Err returns the first step error.
func (r *Result) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return fmt.Errorf("%s: %w", strings.ToLower(s.Name), s.Err)
		}
	}
	return nil
}

// Variant is a named candidate set. Cleaned variants name the raw variant
// they were derived from in Source and the clean-up profile in Profile.
type Variant struct {
	Name    string
	Source  string
	Profile string
	Rows    []dataset.Row
}

// Texts returns the variant's summaries in row order.
func (v Variant) Texts() []string {
	texts := make([]string, len(v.Rows))
	for i, r := range v.Rows {
		texts[i] = r.Text
	}
	return texts
}

// IDs returns the variant's document ids in row order.
func (v Variant) IDs() []string {
	ids := make([]string, len(v.Rows))
	for i, r := range v.Rows {
		ids[i] = r.ID
	}
	return ids
}

// VariantName names the variant derived from raw with profile.
func VariantName(raw, profile string) string {
	return raw + "+" + profile
}

// Input selects the files and settings of one run. Empty fields fall back
// to the configuration.
type Input struct {
	// Candidates are CSV files of raw summaries. Each becomes a variant
	// named after the file.
	Candidates []string
	Profiles   []string
	Sources    string
	References string
	// Baseline names the variant deltas are computed against. Defaults to
	// the first candidate.
	Baseline            string
	BaselineLeaderboard float64
	// Output receives the best variant. Nothing is written when empty.
	Output string
}

// ErrNoCandidates is returned when a run has no candidate files.
var ErrNoCandidates = errors.New("no candidate files")

// Comparer runs comparisons.
type Comparer struct {
	cfg    *config.Config
	norm   *textnorm.Normalizer
	scorer *quality.Scorer
	eval   *overlap.Evaluator
	sink   report.Sink
	log    *zap.Logger

	now   func() time.Time
	newID func() string
}

// New creates a Comparer. A nil overlap scorer selects the built-in ROUGE
// scorer; a nil sink discards reports; a nil logger discards logs.
func New(cfg *config.Config, scorer overlap.Scorer, sink report.Sink, log *zap.Logger) (*Comparer, error) {
	norm, err := textnorm.New(cfg.Normalizer.Duplicates)
	if err != nil {
		return nil, fmt.Errorf("normalizer: %w", err)
	}
	qs, err := quality.New(cfg.Quality)
	if err != nil {
		return nil, fmt.Errorf("quality scorer: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Comparer{
		cfg:    cfg,
		norm:   norm,
		scorer: qs,
		eval:   overlap.NewEvaluator(scorer),
		sink:   sink,
		log:    log,
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// Normalizer returns the configured normalizer.
func (c *Comparer) Normalizer() *textnorm.Normalizer {
	return c.norm
}

// Scorer returns the configured quality scorer.
func (c *Comparer) Scorer() *quality.Scorer {
	return c.scorer
}

// Evaluator returns the overlap evaluator.
func (c *Comparer) Evaluator() *overlap.Evaluator {
	return c.eval
}

// Cleaner builds the clean-up pipeline for a configured profile.
func (c *Comparer) Cleaner(profile string) (*cleanup.Pipeline, error) {
	opts, err := c.cfg.Profile(profile)
	if err != nil {
		return nil, err
	}
	p, err := cleanup.New(opts, c.norm)
	if err != nil {
		return nil, &config.ProfileError{Profile: profile, Cause: err}
	}
	return p, nil
}

func (c *Comparer) withDefaults(in Input) Input {
	if in.Profiles == nil {
		in.Profiles = c.cfg.Compare.Profiles
	}
	if in.Sources == "" {
		in.Sources = c.cfg.Data.Sources
	}
	if in.References == "" {
		in.References = c.cfg.Data.References
	}
	if in.Baseline == "" {
		in.Baseline = c.cfg.Compare.Baseline
	}
	if in.BaselineLeaderboard == 0 {
		in.BaselineLeaderboard = c.cfg.Compare.BaselineLeaderboard
	}
	return in
}

// state carries data between the steps of one run.
type state struct {
	in       Input
	raws     []Variant
	sources  *dataset.Table
	refs     *dataset.Table
	variants []*scored
	warnings []Warning
	best     *scored
	baseline *scored
}

type scored struct {
	Variant
	cleaned     []CleanedRow
	results     []quality.Result
	diagnostics quality.Diagnostics
	metrics     *overlap.Metrics
	meanWords   float64
	density     float64
}

// Run executes the full comparison.
func (c *Comparer) Run(ctx context.Context, in Input) *Result {
	r := &Result{RunID: c.newID()}
	st := &state{in: c.withDefaults(in)}
	log := c.log.With(zap.String("run", r.RunID))

	steps := []struct {
		name string
		fn   func(context.Context, *state) (string, error)
	}{
		{"Load", c.load},
		{"Clean", c.clean},
		{"Score", c.score},
		{"Evaluate", c.evaluate},
		{"Select", c.selectBest},
	}
	for i, s := range steps {
		log.Info(fmt.Sprintf("Step %d/%d: %s", i+1, len(steps)+1, s.name))
		summary, err := s.fn(ctx, st)
		r.Steps = append(r.Steps, StepResult{Name: s.name, Summary: summary, Err: err})
		if err != nil {
			log.Error("step failed", zap.String("step", s.name), zap.Error(err))
			return r
		}
	}

	log.Info(fmt.Sprintf("Step %d/%d: Report", len(steps)+1, len(steps)+1))
	r.Report = c.buildReport(r.RunID, st)
	step := StepResult{Name: "Report"}
	if c.sink != nil {
		if err := c.sink.Write(ctx, r.Report); err != nil {
			step.Err = err
		}
	}
	step.Summary = fmt.Sprintf("Selected %s, %d warnings", r.Report.Best, len(r.Report.Warnings))
	r.Steps = append(r.Steps, step)
	return r
}

// DryRun loads the inputs and shows what would be done without cleaning,
// scoring or writing anything.
func (c *Comparer) DryRun(ctx context.Context, in Input) *Result {
	r := &Result{}
	st := &state{in: c.withDefaults(in)}

	summary, err := c.load(ctx, st)
	r.Steps = append(r.Steps, StepResult{Name: "Load", Summary: "[dry-run] " + summary, Err: err})
	if err != nil {
		return r
	}

	r.Steps = append(r.Steps, StepResult{
		Name: "Clean",
		Summary: fmt.Sprintf("[dry-run] Would build %d cleaned variants from profiles %s",
			len(st.raws)*len(st.in.Profiles), strings.Join(st.in.Profiles, ", ")),
	})
	r.Steps = append(r.Steps, StepResult{
		Name:    "Score",
		Summary: fmt.Sprintf("[dry-run] Would score %d variants", len(st.raws)*(1+len(st.in.Profiles))),
	})
	if st.refs != nil {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Evaluate",
			Summary: fmt.Sprintf("[dry-run] Would evaluate against %d references from %s", st.refs.Len(), st.refs.Name),
		})
	} else {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Evaluate",
			Summary: "[dry-run] No references; variants would be ranked by mean quality score",
		})
	}
	if st.in.Output != "" {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Select",
			Summary: fmt.Sprintf("[dry-run] Would write the best variant to %s", st.in.Output),
		})
	}
	return r
}

func (c *Comparer) load(_ context.Context, st *state) (string, error) {
	if len(st.in.Candidates) == 0 {
		return "", ErrNoCandidates
	}
	cols := c.cfg.Data.Columns
	seen := make(map[string]bool)
	total := 0
	for _, path := range st.in.Candidates {
		t, err := dataset.Load(path, cols)
		if err != nil {
			return "", err
		}
		if seen[t.Name] {
			return "", fmt.Errorf("two candidate files are named %q", t.Name)
		}
		seen[t.Name] = true
		st.addDuplicates(t, t.Name)
		rows := t.Unique()
		st.raws = append(st.raws, Variant{Name: t.Name, Rows: rows})
		total += len(rows)
	}

	var extra []string
	if st.in.Sources != "" {
		t, err := dataset.Load(st.in.Sources, c.cfg.Data.SourceColumns)
		if err != nil {
			return "", fmt.Errorf("sources: %w", err)
		}
		st.sources = t
		st.addDuplicates(t, "")
		extra = append(extra, fmt.Sprintf("%d sources", t.Len()))
	}
	if st.in.References != "" {
		t, err := dataset.Load(st.in.References, cols)
		if err != nil {
			return "", fmt.Errorf("references: %w", err)
		}
		st.refs = t
		st.addDuplicates(t, "")
		extra = append(extra, fmt.Sprintf("%d references", t.Len()))
	}

	if st.in.Baseline == "" {
		st.in.Baseline = st.raws[0].Name
	}
	if !seen[st.in.Baseline] && !st.derives(st.in.Baseline) {
		return "", fmt.Errorf("baseline %q is not a candidate or derived variant", st.in.Baseline)
	}

	summary := fmt.Sprintf("Loaded %d candidate sets (%d rows)", len(st.raws), total)
	if len(extra) > 0 {
		summary += ", " + strings.Join(extra, ", ")
	}
	return summary, nil
}

func (st *state) addDuplicates(t *dataset.Table, variant string) {
	for _, id := range t.Duplicates {
		st.warnings = append(st.warnings, Warning{
			Kind: DuplicateID, Variant: variant, ID: id,
			Message: "duplicate id in " + t.Name + ", later rows dropped",
		})
	}
}

func (st *state) derives(name string) bool {
	for _, raw := range st.raws {
		for _, p := range st.in.Profiles {
			if VariantName(raw.Name, p) == name {
				return true
			}
		}
	}
	return false
}

func (c *Comparer) clean(ctx context.Context, st *state) (string, error) {
	cleaners := make([]*cleanup.Pipeline, len(st.in.Profiles))
	for i, name := range st.in.Profiles {
		p, err := c.Cleaner(name)
		if err != nil {
			return "", err
		}
		cleaners[i] = p
	}

	for _, raw := range st.raws {
		st.variants = append(st.variants, &scored{Variant: raw})
	}

	var changed, skipped int
	for _, raw := range st.raws {
		for i, p := range cleaners {
			rows, err := CleanRows(ctx, p, raw.Rows, st.sources, c.cfg.Compare.Workers)
			if err != nil {
				return "", err
			}
			v := &scored{
				Variant: Variant{
					Name:    VariantName(raw.Name, st.in.Profiles[i]),
					Source:  raw.Name,
					Profile: st.in.Profiles[i],
					Rows:    make([]dataset.Row, len(rows)),
				},
				cleaned: rows,
			}
			for j, row := range rows {
				v.Rows[j] = dataset.Row{ID: row.ID, Text: row.After}
				if row.Changed() {
					changed++
				}
				if row.Skipped {
					skipped++
					st.warnings = append(st.warnings, Warning{
						Kind: MissingReference, Variant: v.Name, ID: row.ID,
						Message: "no source document, passed through unchanged",
					})
				}
			}
			st.variants = append(st.variants, v)
		}
	}

	summary := fmt.Sprintf("Built %d cleaned variants, %d rows changed", len(st.variants)-len(st.raws), changed)
	if skipped > 0 {
		summary += fmt.Sprintf(", %d rows passed through", skipped)
	}
	return summary, nil
}

func (c *Comparer) score(ctx context.Context, st *state) (string, error) {
	for _, v := range st.variants {
		texts := v.Texts()
		results, err := ScoreRows(ctx, c.scorer, texts, c.cfg.Compare.Workers)
		if err != nil {
			return "", err
		}
		v.results = results
		v.diagnostics = c.scorer.Summarize(texts)
		v.meanWords = v.diagnostics.MeanWords
	}
	return fmt.Sprintf("Scored %d variants", len(st.variants)), nil
}

func (c *Comparer) evaluate(ctx context.Context, st *state) (string, error) {
	if st.refs == nil {
		sort.SliceStable(st.variants, func(i, j int) bool {
			a, b := st.variants[i].diagnostics.MeanQuality, st.variants[j].diagnostics.MeanQuality
			if a != b {
				return a > b
			}
			return st.variants[i].Name < st.variants[j].Name
		})
		st.pickBaseline()
		return fmt.Sprintf("No references; ranked %d variants by mean quality", len(st.variants)), nil
	}

	reported := make(map[string]bool)
	for _, raw := range st.raws {
		_, missing := st.refs.Align(raw.IDs())
		for _, id := range missing {
			if reported[id] {
				continue
			}
			reported[id] = true
			st.warnings = append(st.warnings, Warning{
				Kind: MissingGold, Variant: raw.Name, ID: id,
				Message: "no reference summary, scored against empty text",
			})
		}
	}

	rankings := make([]overlap.Ranking, len(st.variants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.cfg.Compare.Workers, 1))
	for i, v := range st.variants {
		g.Go(func() error {
			refs, _ := st.refs.Align(v.IDs())
			r, err := c.eval.RankOne(gctx, overlap.Candidate{Name: v.Name, Texts: v.Texts()}, refs)
			if err != nil {
				return err
			}
			rankings[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	byName := make(map[string]*scored, len(st.variants))
	for i, v := range st.variants {
		m := rankings[i].Metrics
		v.metrics = &m
		v.meanWords = rankings[i].MeanWords
		v.density = rankings[i].Density
		byName[v.Name] = v
	}
	overlap.SortRankings(rankings)
	for i, r := range rankings {
		st.variants[i] = byName[r.Name]
	}
	st.pickBaseline()

	best := st.variants[0]
	return fmt.Sprintf("Evaluated %d variants against %d references; best %s (mean %.4f)",
		len(st.variants), st.refs.Len(), best.Name, best.metrics.Percent().Mean), nil
}

func (st *state) pickBaseline() {
	st.best = st.variants[0]
	for _, v := range st.variants {
		if v.Name == st.in.Baseline {
			st.baseline = v
		}
	}
}

func (c *Comparer) selectBest(_ context.Context, st *state) (string, error) {
	if st.in.Output == "" {
		return fmt.Sprintf("Best variant %s (not written)", st.best.Name), nil
	}
	if err := dataset.Save(st.in.Output, c.cfg.Data.Columns, st.best.Rows); err != nil {
		return "", err
	}
	return fmt.Sprintf("Wrote %s (%d rows) to %s", st.best.Name, len(st.best.Rows), st.in.Output), nil
}

func (c *Comparer) buildReport(runID string, st *state) *report.Report {
	rep := &report.Report{
		RunID:      runID,
		CreatedAt:  c.now(),
		Baseline:   st.in.Baseline,
		Best:       st.best.Name,
		OutputPath: st.in.Output,
		Warnings:   st.warnings,
	}
	if st.refs != nil {
		rep.References = st.refs.Name
	}

	for _, v := range st.variants {
		rv := report.Variant{
			Name:        v.Name,
			Source:      v.Source,
			Profile:     v.Profile,
			Rows:        len(v.Rows),
			Metrics:     v.metrics,
			MeanWords:   v.meanWords,
			Density:     v.density,
			Diagnostics: v.diagnostics,
			TopBigrams:  quality.TopRepeatedBigrams(v.Texts(), 5),
		}
		for _, row := range v.cleaned {
			if row.Changed() {
				rv.Changed++
			}
		}
		if v.metrics != nil && st.baseline != nil {
			rv.DeltaMean = v.metrics.Mean - st.baseline.metrics.Mean
			if st.in.BaselineLeaderboard > 0 {
				if p, err := overlap.Project(*st.baseline.metrics, st.in.BaselineLeaderboard, *v.metrics); err == nil {
					rv.Projected = &p
				}
			}
		}
		rep.Variants = append(rep.Variants, rv)
	}

	topN := c.cfg.Compare.TopN
	for _, i := range quality.Lowest(st.best.results, topN) {
		res := st.best.results[i]
		if res.Score >= quality.MaxScore {
			break
		}
		rep.Suspicious = append(rep.Suspicious, report.Defect{
			Variant:   st.best.Name,
			ID:        st.best.Rows[i].ID,
			Score:     res.Score,
			Triggered: res.Triggered,
			Matches:   res.Matches,
			Text:      st.best.Rows[i].Text,
		})
	}

	rep.Changes = largestChanges(st.variants, topN)
	return rep
}

// largestChanges returns the n cleaned rows with the largest absolute word
// delta across all derived variants. A non-positive n returns all of them.
func largestChanges(variants []*scored, n int) []report.Change {
	var changes []report.Change
	for _, v := range variants {
		for _, row := range v.cleaned {
			if !row.Changed() {
				continue
			}
			changes = append(changes, report.Change{
				Variant:   v.Name,
				ID:        row.ID,
				Before:    row.Before,
				After:     row.After,
				Stages:    row.Stages,
				WordDelta: row.WordDelta(),
			})
		}
	}
	sort.SliceStable(changes, func(i, j int) bool {
		a, b := math.Abs(float64(changes[i].WordDelta)), math.Abs(float64(changes[j].WordDelta))
		if a != b {
			return a > b
		}
		if changes[i].Variant != changes[j].Variant {
			return changes[i].Variant < changes[j].Variant
		}
		return changes[i].ID < changes[j].ID
	})
	if n > 0 && len(changes) > n {
		changes = changes[:n]
	}
	return changes
}

// DefaultOutput returns the submission path used when none is given.
func DefaultOutput(cfg *config.Config) string {
	return filepath.Join(cfg.Data.OutputDir, "submission.csv")
}
