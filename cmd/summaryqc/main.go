package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/summaryqc/internal/config"
	"github.com/TobiSchelling/summaryqc/internal/database"
	"github.com/TobiSchelling/summaryqc/internal/dataset"
	"github.com/TobiSchelling/summaryqc/internal/logging"
	"github.com/TobiSchelling/summaryqc/internal/overlap"
	"github.com/TobiSchelling/summaryqc/internal/pipeline"
	"github.com/TobiSchelling/summaryqc/internal/quality"
	"github.com/TobiSchelling/summaryqc/internal/report"
	"github.com/TobiSchelling/summaryqc/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     = zap.NewNop()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "summaryqc",
	Short:   "Clean up and compare generated summaries",
	Long:    "summaryqc normalizes and cleans generated dialogue summaries, scores them for surface defects and ranks cleaned variants by overlap with reference summaries.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		opts := cfg.Logging
		if verbose {
			opts.Level = "debug"
		}
		logger, err = logging.New(opts)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		logger.Debug("loaded config", zap.String("path", path))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (or $"+config.EnvConfigPath+")")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("summaryqc", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/summaryqc/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set data columns, reference files and clean-up profiles.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and run history status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Data:")
		fmt.Printf("  Database: %s\n", db.Path())
		fmt.Printf("  Reports: %s\n", cfg.ReportsDir())
		fmt.Printf("  References: %s\n", orNone(cfg.Data.References))
		fmt.Printf("  Sources: %s\n", orNone(cfg.Data.Sources))
		fmt.Println("\nProfiles:")
		for _, name := range cfg.ProfileNames() {
			fmt.Printf("  %s\n", name)
		}
		fmt.Println("\nRuns:")
		fmt.Printf("  Stored: %d\n", stats.Runs)
		fmt.Printf("  Last run: %s\n", orNone(stats.LastRunAt))
		fmt.Printf("  Recorded changes: %d\n", stats.RowChanges)
		fmt.Printf("  Flagged summaries: %d\n", stats.RowDefects)
		return nil
	},
}

// --- clean command ---

var (
	cleanProfile string
	cleanSources string
	cleanOutput  string
	cleanShow    int
)

var cleanCmd = &cobra.Command{
	Use:   "clean [candidates.csv]",
	Short: "Clean one candidate file with a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmp, err := newComparer(nil)
		if err != nil {
			return err
		}
		p, err := cmp.Cleaner(cleanProfile)
		if err != nil {
			return err
		}

		table, err := loadCandidates(args[0])
		if err != nil {
			return err
		}

		var sources *dataset.Table
		if path := firstNonEmpty(cleanSources, cfg.Data.Sources); path != "" {
			if sources, err = dataset.Load(path, cfg.Data.SourceColumns); err != nil {
				return fmt.Errorf("sources: %w", err)
			}
		}

		rows, err := pipeline.CleanRows(cmd.Context(), p, table.Rows, sources, cfg.Compare.Workers)
		if err != nil {
			return err
		}

		out := make([]dataset.Row, len(rows))
		changed, skipped := 0, 0
		for i, r := range rows {
			out[i] = dataset.Row{ID: r.ID, Text: r.After}
			if r.Changed() {
				changed++
				if changed <= cleanShow {
					fmt.Printf("\n[%s] %s\n  - %s\n  + %s\n", r.ID, strings.Join(r.Stages, ", "), r.Before, r.After)
				}
			}
			if r.Skipped {
				skipped++
				logger.Warn("no source document, passed through", zap.String("id", r.ID))
			}
		}

		target := cleanOutput
		if target == "" {
			target = filepath.Join(cfg.Data.OutputDir, table.Name+"_"+cleanProfile+".csv")
		}
		if err := dataset.Save(target, cfg.Data.Columns, out); err != nil {
			return err
		}

		fmt.Printf("\nCleaned %d rows with %s: %d changed, %d passed through\n", len(rows), cleanProfile, changed, skipped)
		fmt.Printf("Wrote %s\n", target)
		return nil
	},
}

func init() {
	cleanCmd.Flags().StringVarP(&cleanProfile, "profile", "p", "moderate", "Clean-up profile")
	cleanCmd.Flags().StringVar(&cleanSources, "sources", "", "Source documents CSV (overrides config)")
	cleanCmd.Flags().StringVarP(&cleanOutput, "output", "o", "", "Output CSV (default <output_dir>/<name>_<profile>.csv)")
	cleanCmd.Flags().IntVar(&cleanShow, "show", 5, "Number of changed rows to print")
}

// --- score command ---

var scoreTop int

var scoreCmd = &cobra.Command{
	Use:   "score [candidates.csv]",
	Short: "Score summaries for surface defects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmp, err := newComparer(nil)
		if err != nil {
			return err
		}
		table, err := loadCandidates(args[0])
		if err != nil {
			return err
		}

		texts := table.Texts()
		results, err := pipeline.ScoreRows(cmd.Context(), cmp.Scorer(), texts, cfg.Compare.Workers)
		if err != nil {
			return err
		}
		d := cmp.Scorer().Summarize(texts)

		fmt.Printf("%s: %d summaries\n\n", table.Name, d.Count)
		fmt.Printf("  Words: mean %.1f, median %.0f, std %.1f, range %d-%d\n", d.MeanWords, d.MedianWords, d.StdWords, d.MinWords, d.MaxWords)
		fmt.Printf("  Sentences per summary: %.2f\n", d.MeanSentences)
		fmt.Printf("  Lexical diversity: %.4f\n", d.LexicalDiversity)
		fmt.Printf("  Repeated bigrams: %d\n", d.RepeatedBigrams)
		fmt.Printf("  Mean quality: %.1f (heuristic)\n", d.MeanQuality)
		fmt.Printf("  With speculation: %d\n", d.WithSpeculation)
		fmt.Printf("  With excessive detail: %d\n", d.WithExcessiveDetail)

		lowest := quality.Lowest(results, scoreTop)
		if len(lowest) > 0 && results[lowest[0]].Score < quality.MaxScore {
			fmt.Println("\nLowest scores:")
		}
		for _, i := range lowest {
			r := results[i]
			if r.Score >= quality.MaxScore {
				break
			}
			cats := make([]string, len(r.Triggered))
			for j, c := range r.Triggered {
				cats[j] = string(c)
			}
			fmt.Printf("  [%s] %d %s\n    %s\n", table.Rows[i].ID, r.Score, strings.Join(cats, ", "), table.Rows[i].Text)
		}
		return nil
	},
}

func init() {
	scoreCmd.Flags().IntVarP(&scoreTop, "top", "n", 10, "Number of lowest-scoring summaries to print")
}

// --- evaluate command ---

var evalReferences string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [candidates.csv...]",
	Short: "Rank candidate files by overlap with reference summaries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := firstNonEmpty(evalReferences, cfg.Data.References)
		if path == "" {
			return errors.New("no references: pass --references or set data.references")
		}
		refs, err := dataset.Load(path, cfg.Data.Columns)
		if err != nil {
			return fmt.Errorf("references: %w", err)
		}
		eval := overlap.NewEvaluator(nil)

		var rankings []overlap.Ranking
		for _, arg := range args {
			table, err := loadCandidates(arg)
			if err != nil {
				return err
			}
			aligned, missing := refs.Align(table.IDs())
			if len(missing) > 0 {
				logger.Warn("candidate ids without reference", zap.String("file", arg), zap.Int("count", len(missing)))
			}
			r, err := eval.RankOne(cmd.Context(), overlap.Candidate{Name: table.Name, Texts: table.Texts()}, aligned)
			if err != nil {
				return err
			}
			rankings = append(rankings, r)
		}
		overlap.SortRankings(rankings)

		fmt.Printf("References: %s (%d)\n\n", refs.Name, refs.Len())
		for i, r := range rankings {
			fmt.Printf("%2d. %-24s %s  words %.1f  density %.4f\n", i+1, r.Name, r.Metrics, r.MeanWords, r.Density)
		}
		return nil
	},
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalReferences, "references", "r", "", "Reference summaries CSV (overrides config)")
}

// --- compare command ---

var (
	compareIn      pipeline.Input
	compareDryRun  bool
	compareNoStore bool
)

var compareCmd = &cobra.Command{
	Use:   "compare [candidates.csv...]",
	Short: "Clean, score and rank every profile variant of the candidate files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := compareIn
		in.Candidates = args
		if !compareDryRun && in.Output == "" {
			in.Output = pipeline.DefaultOutput(cfg)
		}

		sinks := report.Multi{
			report.Terminal{W: os.Stdout},
			report.SinkFunc(func(ctx context.Context, r *report.Report) error {
				path := filepath.Join(cfg.ReportsDir(), r.RunID+".md")
				if err := (report.Markdown{Path: path, HTML: cfg.Compare.HTML}).Write(ctx, r); err != nil {
					return err
				}
				fmt.Printf("Report: %s\n", path)
				return nil
			}),
		}
		if !compareNoStore && !compareDryRun {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			sinks = append(sinks, db)
		}

		cmp, err := newComparer(sinks)
		if err != nil {
			return err
		}

		var result *pipeline.Result
		if compareDryRun {
			result = cmp.DryRun(cmd.Context(), in)
		} else {
			result = cmp.Run(cmd.Context(), in)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}
		if err := result.Err(); err != nil {
			return err
		}

		if !compareDryRun && !compareNoStore {
			fmt.Println("\nComparison complete! Run 'summaryqc serve' to browse runs.")
		}
		return nil
	},
}

func init() {
	f := compareCmd.Flags()
	f.StringSliceVarP(&compareIn.Profiles, "profiles", "p", nil, "Clean-up profiles to apply (default from config)")
	f.StringVarP(&compareIn.References, "references", "r", "", "Reference summaries CSV (overrides config)")
	f.StringVar(&compareIn.Sources, "sources", "", "Source documents CSV (overrides config)")
	f.StringVar(&compareIn.Baseline, "baseline", "", "Variant to compute deltas against (default first candidate)")
	f.Float64Var(&compareIn.BaselineLeaderboard, "leaderboard", 0, "Known leaderboard score of the baseline, enables projection")
	f.StringVarP(&compareIn.Output, "output", "o", "", "Where to write the best variant (default <output_dir>/submission.csv)")
	f.BoolVar(&compareDryRun, "dry-run", false, "Show what would be done without executing")
	f.BoolVar(&compareNoStore, "no-store", false, "Do not record the run in the database")
}

// --- runs command ---

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored comparison runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs stored. Create one with: summaryqc compare")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("  %s  %s  best %s  rows %d  warnings %d\n",
				r.ID, r.CreatedAt, deref(r.Best), r.RowCount, r.WarningCount)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a stored run's report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := db.GetRun(args[0])
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %s not found", args[0])
		}
		fmt.Print(run.ReportMarkdown)
		return nil
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := db.GetRun(args[0])
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %s not found", args[0])
		}
		if err := db.DeleteRun(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted run %s\n", args[0])
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local run viewer",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port, logger)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func newComparer(sink report.Sink) (*pipeline.Comparer, error) {
	return pipeline.New(cfg, nil, sink, logger)
}

func openDB() (*database.DB, error) {
	return database.Open(cfg.DBPath(), logger)
}

// loadCandidates reads a summary file and keeps the first row of each id.
func loadCandidates(path string) (*dataset.Table, error) {
	t, err := dataset.Load(path, cfg.Data.Columns)
	if err != nil {
		return nil, err
	}
	if len(t.Duplicates) == 0 {
		return t, nil
	}
	for _, id := range t.Duplicates {
		logger.Warn("duplicate id, later rows dropped", zap.String("file", t.Name), zap.String("id", id))
	}
	return dataset.NewTable(t.Name, t.Unique()), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
