package cleanup

import "github.com/TobiSchelling/summaryqc/internal/rules"

// Policy selects how over-long sentence units are shortened.
type Policy string

const (
	// PolicySplit breaks a long unit into several units at connectives or
	// commas.
	PolicySplit Policy = "split"
	// PolicyTruncate keeps only the first clause of a long unit.
	PolicyTruncate Policy = "truncate"
)

// Options configures a Pipeline. Zero numeric fields fall back to the
// defaults noted per field, except LongSentenceWordLimit and
// MaxSentenceCount, where zero disables the stage.
type Options struct {
	MaxSentenceCount int `yaml:"max_sentence_count" validate:"gte=0"`
	// MinSentenceWords defaults to 5.
	MinSentenceWords int `yaml:"min_sentence_words" validate:"gte=0"`

	LongSentenceWordLimit int `yaml:"long_sentence_word_limit" validate:"gte=0"`
	// CommaSplitWordLimit defaults to LongSentenceWordLimit.
	CommaSplitWordLimit int    `yaml:"comma_split_word_limit" validate:"gte=0"`
	LongSentencePolicy  Policy `yaml:"long_sentence_policy" validate:"omitempty,oneof=split truncate"`
	// MinClauseWords defaults to 10.
	MinClauseWords   int      `yaml:"min_clause_words" validate:"gte=0"`
	SplitConnectives []string `yaml:"split_connectives"`

	VerbosityRules       []rules.Entry `yaml:"verbosity_rules" validate:"dive"`
	SpeculationSofteners []rules.Entry `yaml:"speculation_softeners" validate:"dive"`

	DropLeadingConnectives bool     `yaml:"drop_leading_connectives"`
	LeadingConnectives     []string `yaml:"leading_connectives"`

	RepairTrailingFragment bool `yaml:"repair_trailing_fragment"`
	// RepairThreshold defaults to 0.7.
	RepairThreshold    float64  `yaml:"repair_threshold" validate:"gte=0,lte=1"`
	SentenceFinalForms []string `yaml:"sentence_final_forms"`

	// RequireSource marks profiles that only make sense when the source
	// document is known. The pipeline itself does not read sources; callers
	// check RequiresSource and pass rows without one through unchanged.
	RequireSource bool `yaml:"require_source"`
}

const (
	defaultMinSentenceWords = 5
	defaultMinClauseWords   = 10
	defaultRepairThreshold  = 0.7
)

// DefaultVerbosity collapses progressive constructions and stacked
// intensifiers into their simple form.
var DefaultVerbosity = []rules.Entry{
	{Name: "progressive-formal", Pattern: `하고\s+있습니다`, Replacement: "합니다"},
	{Name: "progressive-plain", Pattern: `하고\s+있다`, Replacement: "한다"},
	{Name: "progressive-connective", Pattern: `하고\s+있으며`, Replacement: "하며"},
	{Name: "progressive-and", Pattern: `하고\s+있고`, Replacement: "하고"},
	{Name: "intensifier-many", Pattern: `(?:매우|정말|아주|너무)\s+많이`, Replacement: "많이"},
	{Name: "quote-say", Pattern: `(이?라고)\s+말합니다`, Replacement: "$1 합니다"},
}

// DefaultSofteners rewrite hedged endings into assertive ones.
var DefaultSofteners = []rules.Entry{
	{Name: "seems", Pattern: `것으로\s*보입니다`, Replacement: "것입니다"},
	{Name: "like", Pattern: `것\s*같습니다`, Replacement: "것입니다"},
	{Name: "apparently", Pattern: `인\s*듯\s*합니다`, Replacement: "입니다"},
	{Name: "thought", Pattern: `것으로\s*생각됩니다`, Replacement: "것입니다"},
}

// DefaultSplitConnectives are tried in order when splitting long units.
var DefaultSplitConnectives = []string{"그리고", "하지만"}

// DefaultLeadingConnectives are dropped from the start of a sentence.
var DefaultLeadingConnectives = []string{"그리고", "또한", "하지만"}

// DefaultSentenceFinalForms are endings that count as a complete sentence
// even without terminal punctuation.
var DefaultSentenceFinalForms = []string{"다", "요"}

// DefaultOptions returns the moderate profile: duplicate and verbosity
// collapsing, softening, splitting of long units and trailing repair, with
// no sentence cap.
func DefaultOptions() Options {
	return Options{
		MinSentenceWords:       defaultMinSentenceWords,
		LongSentenceWordLimit:  30,
		CommaSplitWordLimit:    35,
		LongSentencePolicy:     PolicySplit,
		MinClauseWords:         defaultMinClauseWords,
		SplitConnectives:       append([]string(nil), DefaultSplitConnectives...),
		VerbosityRules:         append([]rules.Entry(nil), DefaultVerbosity...),
		SpeculationSofteners:   append([]rules.Entry(nil), DefaultSofteners...),
		DropLeadingConnectives: true,
		LeadingConnectives:     append([]string(nil), DefaultLeadingConnectives...),
		RepairTrailingFragment: true,
		RepairThreshold:        defaultRepairThreshold,
		SentenceFinalForms:     append([]string(nil), DefaultSentenceFinalForms...),
	}
}

func (o Options) withDefaults() Options {
	if o.MinSentenceWords == 0 {
		o.MinSentenceWords = defaultMinSentenceWords
	}
	if o.CommaSplitWordLimit == 0 {
		o.CommaSplitWordLimit = o.LongSentenceWordLimit
	}
	if o.MinClauseWords == 0 {
		o.MinClauseWords = defaultMinClauseWords
	}
	if o.RepairThreshold == 0 {
		o.RepairThreshold = defaultRepairThreshold
	}
	if o.LongSentencePolicy == "" {
		o.LongSentencePolicy = PolicySplit
	}
	return o
}
