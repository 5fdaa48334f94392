package database

// Run is a stored comparison run.
type Run struct {
	ID             string
	CreatedAt      string
	References     *string
	Baseline       *string
	Best           *string
	RowCount       int
	WarningCount   int
	ReportMarkdown string
	OutputPath     *string
}

// VariantScore is one row of a run's ranking. Overlap columns are nil when
// the run had no references.
type VariantScore struct {
	RunID       string
	Name        string
	Source      *string
	Profile     *string
	Rows        int
	Changed     int
	Unigram     *float64
	Bigram      *float64
	LCS         *float64
	Mean        *float64
	MeanQuality float64
	MeanWords   float64
	Density     float64
	Projected   *float64
	Rank        int
}

// RowChange is a document the clean-up pipeline rewrote.
type RowChange struct {
	ID        int64
	RunID     string
	Variant   string
	DocID     string
	Before    string
	After     string
	Stages    []string
	WordDelta int
}

// RowDefect is a low-scoring summary flagged in a run.
type RowDefect struct {
	ID         int64
	RunID      string
	Variant    string
	DocID      string
	Score      int
	Categories []string
	Summary    string
}

// Stats contains aggregate database statistics.
type Stats struct {
	Runs          int
	VariantScores int
	RowChanges    int
	RowDefects    int
	LastRunAt     string
}
