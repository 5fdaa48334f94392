// Package cleanup implements the ordered rewrite pipeline applied to generated
// summaries: normalization, verbosity and hedge rewriting, sentence splitting,
// sentence capping and trailing-fragment repair.
package cleanup

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/TobiSchelling/summaryqc/internal/rules"
	"github.com/TobiSchelling/summaryqc/internal/segment"
	"github.com/TobiSchelling/summaryqc/internal/textnorm"
)

// Stage names, in execution order.
const (
	StageNormalize      = "normalize"
	StageVerbosity      = "verbosity"
	StageSpeculation    = "speculation"
	StageLeading        = "leading-connectives"
	StageSplit          = "split"
	StageCap            = "cap"
	StageRepair         = "repair"
	StageFinalNormalize = "final-normalize"
	StageFallback       = "fallback"
	// StageSettle records a further pass over the output of the first one.
	StageSettle = "settle"
)

// maxPasses bounds the passes run repeats over its own output.
const maxPasses = 4

// Pipeline is a compiled clean-up configuration. It is immutable and safe for
// concurrent use.
type Pipeline struct {
	opts      Options
	norm      *textnorm.Normalizer
	verbosity rules.Table
	softeners rules.Table
	leading   *regexp.Regexp
	lead      *regexp.Regexp
	splitter  SplitFinder
}

// New compiles opts. A nil normalizer uses textnorm.Default. Errors are
// configuration errors: invalid rule patterns or an unknown policy.
func New(opts Options, norm *textnorm.Normalizer) (*Pipeline, error) {
	opts = opts.withDefaults()
	if norm == nil {
		norm = textnorm.Default()
	}

	switch opts.LongSentencePolicy {
	case PolicySplit, PolicyTruncate:
	default:
		return nil, fmt.Errorf("unknown long sentence policy %q", opts.LongSentencePolicy)
	}

	verbosity, err := rules.Compile(opts.VerbosityRules)
	if err != nil {
		return nil, fmt.Errorf("verbosity rules: %w", err)
	}
	softeners, err := rules.Compile(opts.SpeculationSofteners)
	if err != nil {
		return nil, fmt.Errorf("speculation softeners: %w", err)
	}

	p := &Pipeline{
		opts:      opts,
		norm:      norm,
		verbosity: verbosity,
		softeners: softeners,
		splitter: Chain{
			ConnectiveFinder{Connectives: opts.SplitConnectives},
			CommaFinder{MinWords: opts.CommaSplitWordLimit},
		},
	}
	if opts.DropLeadingConnectives {
		if alt := rules.Alternation(opts.LeadingConnectives); alt != "" {
			p.leading = regexp.MustCompile(`([.!?])\s+(?:` + alt + `\s+)+`)
			p.lead = regexp.MustCompile(`^(?:` + alt + `\s+)+`)
		}
	}
	return p, nil
}

// Options returns the effective options, with defaults applied.
func (p *Pipeline) Options() Options {
	return p.opts
}

// RequiresSource reports whether rows without a source document should be
// passed through untouched.
func (p *Pipeline) RequiresSource() bool {
	return p.opts.RequireSource
}

// Clean returns the cleaned form of text. It never fails; malformed input is
// coerced by the normalizer.
func (p *Pipeline) Clean(text string) string {
	return p.run(text, nil)
}

// StageOutput is the text after one stage.
type StageOutput struct {
	Stage  string
	Output string
}

// Trace records the intermediate output of every stage of one Clean call.
type Trace struct {
	Input  string
	Stages []StageOutput
}

// Output returns the final text.
func (t Trace) Output() string {
	if len(t.Stages) == 0 {
		return t.Input
	}
	return t.Stages[len(t.Stages)-1].Output
}

// Changed returns the names of the stages that modified their input.
func (t Trace) Changed() []string {
	var names []string
	prev := t.Input
	for _, s := range t.Stages {
		if s.Output != prev {
			names = append(names, s.Stage)
		}
		prev = s.Output
	}
	return names
}

// Trace runs Clean and records every stage.
func (p *Pipeline) Trace(text string) Trace {
	t := Trace{Input: text}
	p.run(text, func(stage, out string) {
		t.Stages = append(t.Stages, StageOutput{Stage: stage, Output: out})
	})
	return t
}

// run applies the stages and repeats them over their own output until the
// text stops changing, so Clean(Clean(s)) == Clean(s).
func (p *Pipeline) run(text string, record func(stage, out string)) string {
	text = p.pass(text, record)
	for range maxPasses - 1 {
		next := p.pass(text, nil)
		if next == text {
			break
		}
		text = next
		if record != nil {
			record(StageSettle, text)
		}
	}
	return text
}

func (p *Pipeline) pass(text string, record func(stage, out string)) string {
	step := func(stage string, fn func(string) string) {
		text = fn(text)
		if record != nil {
			record(stage, text)
		}
	}

	step(StageNormalize, p.norm.Normalize)
	normalized := text
	if normalized == "" {
		return ""
	}

	step(StageVerbosity, p.verbosity.Apply)
	step(StageSpeculation, p.softeners.Apply)
	step(StageLeading, p.dropLeading)
	step(StageSplit, p.shortenLong)
	step(StageCap, p.capSentences)
	step(StageRepair, p.repair)
	step(StageFinalNormalize, p.norm.Normalize)

	if segment.WordCount(text) == 0 {
		step(StageFallback, func(string) string {
			return segment.Segment(normalized)[0]
		})
	}
	return text
}

func (p *Pipeline) dropLeading(text string) string {
	if p.leading == nil {
		return text
	}
	return p.leading.ReplaceAllString(text, "$1 ")
}

func (p *Pipeline) shortenLong(text string) string {
	if p.opts.LongSentenceWordLimit <= 0 {
		return text
	}
	units := segment.Segment(text)
	out := make([]string, 0, len(units))
	for _, u := range units {
		out = append(out, p.shorten(u)...)
	}
	return segment.Join(out)
}

// shorten applies the long-sentence policy to a single unit.
func (p *Pipeline) shorten(unit string) []string {
	limit := p.opts.LongSentenceWordLimit
	if limit <= 0 || segment.WordCount(unit) <= limit {
		return []string{unit}
	}
	if p.opts.LongSentencePolicy == PolicyTruncate {
		if clause := firstClause(unit); segment.WordCount(clause) >= p.opts.MinClauseWords {
			return []string{clause}
		}
		return []string{unit}
	}
	return splitUnit(p.splitter, p.lead, unit, limit)
}

// settled reports whether the long-sentence stage leaves unit as it is.
func (p *Pipeline) settled(unit string) bool {
	out := p.shorten(unit)
	return len(out) == 1 && out[0] == unit
}

// capSentences keeps at most MaxSentenceCount units. Units shorter than
// MinSentenceWords are merged into the preceding unit; short units before the
// first standalone unit are merged into it. A merge that the long-sentence
// stage would undo is skipped and the short unit stays on its own. When no
// unit is long enough the first unit is kept on its own.
func (p *Pipeline) capSentences(text string) string {
	limit := p.opts.MaxSentenceCount
	if limit <= 0 {
		return text
	}
	units := segment.Segment(text)
	if len(units) == 0 {
		return text
	}

	var kept, pending []string
	for _, u := range units {
		short := segment.WordCount(u) < p.opts.MinSentenceWords
		switch {
		case len(kept) == 0 && short:
			pending = append(pending, u)
		case len(kept) == 0:
			if m := merge(append(pending, u)); p.settled(m) {
				kept = append(kept, m)
			} else {
				kept = append(append(kept, pending...), u)
			}
			pending = nil
		case !short:
			kept = append(kept, u)
		default:
			last := len(kept) - 1
			if m := merge([]string{kept[last], u}); p.settled(m) {
				kept[last] = m
			} else {
				kept = append(kept, u)
			}
		}
	}
	if len(kept) == 0 {
		return units[0]
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return segment.Join(kept)
}

// merge joins units into a single unit by turning every terminal mark but the
// last into a comma.
func merge(units []string) string {
	if len(units) == 1 {
		return units[0]
	}
	var b strings.Builder
	for i, u := range units {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i < len(units)-1 {
			u = strings.TrimRight(u, ".!?") + ","
		}
		b.WriteString(u)
	}
	return b.String()
}

// repair drops an unterminated trailing fragment when the last complete unit
// ends past RepairThreshold of the text, measured in runes.
func (p *Pipeline) repair(text string) string {
	if !p.opts.RepairTrailingFragment || text == "" {
		return text
	}
	if segment.Terminated(text) || segment.EndsWithForm(text, p.opts.SentenceFinalForms) {
		return text
	}
	units := segment.Segment(text)
	if len(units) < 2 {
		return text
	}
	complete := segment.Join(units[:len(units)-1])
	mark := utf8.RuneCountInString(complete) - 1
	if float64(mark) > p.opts.RepairThreshold*float64(utf8.RuneCountInString(text)) {
		return complete
	}
	return text
}
