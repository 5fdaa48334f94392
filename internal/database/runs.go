package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/summaryqc/internal/report"
)

// Write stores a finished report with its ranking, changes and defects. It
// makes *DB a report.Sink. Writing the same run id twice replaces the run.
func (db *DB) Write(ctx context.Context, r *report.Report) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", r.RunID, err)
	}
	defer tx.Rollback()

	if err := deleteRun(ctx, tx, r.RunID); err != nil {
		return fmt.Errorf("replacing run %s: %w", r.RunID, err)
	}

	rowCount := 0
	for _, v := range r.Variants {
		rowCount = max(rowCount, v.Rows)
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs
		(id, created_at, references_name, baseline, best_variant, row_count, warning_count, report_markdown, output_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, created.UTC().Format(time.RFC3339), nullable(r.References), nullable(r.Baseline),
		nullable(r.Best), rowCount, len(r.Warnings), report.RenderMarkdown(r), nullable(r.OutputPath),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", r.RunID, err)
	}

	for i, v := range r.Variants {
		var uni, bi, lcs, mean *float64
		if v.Metrics != nil {
			uni, bi, lcs, mean = &v.Metrics.Unigram, &v.Metrics.Bigram, &v.Metrics.LCS, &v.Metrics.Mean
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO variant_scores
			(run_id, name, source, profile, row_count, changed, unigram, bigram, lcs, mean,
			 mean_quality, mean_words, density, projected, rank)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, v.Name, nullable(v.Source), nullable(v.Profile), v.Rows, v.Changed,
			uni, bi, lcs, mean, v.Diagnostics.MeanQuality, v.MeanWords, v.Density, v.Projected, i+1,
		)
		if err != nil {
			return fmt.Errorf("inserting variant %s: %w", v.Name, err)
		}
	}

	for _, c := range r.Changes {
		stages, err := json.Marshal(c.Stages)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO row_changes (run_id, variant, doc_id, before_text, after_text, stages, word_delta)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, c.Variant, c.ID, c.Before, c.After, string(stages), c.WordDelta,
		)
		if err != nil {
			return fmt.Errorf("inserting change %s/%s: %w", c.Variant, c.ID, err)
		}
	}

	for _, d := range r.Suspicious {
		cats := make([]string, len(d.Triggered))
		for i, c := range d.Triggered {
			cats[i] = string(c)
		}
		encoded, err := json.Marshal(cats)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO row_defects (run_id, variant, doc_id, score, categories, summary)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.RunID, d.Variant, d.ID, d.Score, string(encoded), d.Text,
		)
		if err != nil {
			return fmt.Errorf("inserting defect %s/%s: %w", d.Variant, d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", r.RunID, err)
	}
	db.log.Debug("stored run", zap.String("run", r.RunID), zap.Int("variants", len(r.Variants)))
	return nil
}

const runColumns = `id, created_at, references_name, baseline, best_variant, row_count,
	warning_count, report_markdown, output_path`

func scanRun(s interface{ Scan(...any) error }) (Run, error) {
	var r Run
	err := s.Scan(&r.ID, &r.CreatedAt, &r.References, &r.Baseline, &r.Best, &r.RowCount,
		&r.WarningCount, &r.ReportMarkdown, &r.OutputPath)
	return r, err
}

// GetRun returns the run with the given id, or nil if there is none.
func (db *DB) GetRun(id string) (*Run, error) {
	r, err := scanRun(db.conn.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns
// every run.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetVariantScores returns a run's ranking in rank order.
func (db *DB) GetVariantScores(runID string) ([]VariantScore, error) {
	rows, err := db.conn.Query(
		`SELECT run_id, name, source, profile, row_count, changed, unigram, bigram, lcs, mean,
		mean_quality, mean_words, density, projected, rank
		FROM variant_scores WHERE run_id = ? ORDER BY rank`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []VariantScore
	for rows.Next() {
		var v VariantScore
		if err := rows.Scan(&v.RunID, &v.Name, &v.Source, &v.Profile, &v.Rows, &v.Changed,
			&v.Unigram, &v.Bigram, &v.LCS, &v.Mean, &v.MeanQuality, &v.MeanWords, &v.Density,
			&v.Projected, &v.Rank); err != nil {
			return nil, err
		}
		scores = append(scores, v)
	}
	return scores, rows.Err()
}

// GetRowChanges returns a run's recorded changes in insertion order.
func (db *DB) GetRowChanges(runID string) ([]RowChange, error) {
	rows, err := db.conn.Query(
		`SELECT id, run_id, variant, doc_id, before_text, after_text, stages, word_delta
		FROM row_changes WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []RowChange
	for rows.Next() {
		var c RowChange
		var stages *string
		if err := rows.Scan(&c.ID, &c.RunID, &c.Variant, &c.DocID, &c.Before, &c.After, &stages, &c.WordDelta); err != nil {
			return nil, err
		}
		if stages != nil && *stages != "" {
			if err := json.Unmarshal([]byte(*stages), &c.Stages); err != nil {
				return nil, fmt.Errorf("decoding stages of change %d: %w", c.ID, err)
			}
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// GetRowDefects returns a run's flagged summaries, lowest score first.
func (db *DB) GetRowDefects(runID string) ([]RowDefect, error) {
	rows, err := db.conn.Query(
		`SELECT id, run_id, variant, doc_id, score, categories, summary
		FROM row_defects WHERE run_id = ? ORDER BY score, id`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defects []RowDefect
	for rows.Next() {
		var d RowDefect
		var cats *string
		if err := rows.Scan(&d.ID, &d.RunID, &d.Variant, &d.DocID, &d.Score, &cats, &d.Summary); err != nil {
			return nil, err
		}
		if cats != nil && *cats != "" {
			if err := json.Unmarshal([]byte(*cats), &d.Categories); err != nil {
				return nil, fmt.Errorf("decoding categories of defect %d: %w", d.ID, err)
			}
		}
		defects = append(defects, d)
	}
	return defects, rows.Err()
}

// DeleteRun removes a run and everything recorded for it.
func (db *DB) DeleteRun(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := deleteRun(context.Background(), tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

// deleteRun clears child tables explicitly: foreign_keys is a
// per-connection pragma and pooled connections may not have it set.
func deleteRun(ctx context.Context, tx *sql.Tx, id string) error {
	for _, table := range []string{"row_defects", "row_changes", "variant_scores", "runs"} {
		col := "run_id"
		if table == "runs" {
			col = "id"
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+col+" = ?", id); err != nil {
			return err
		}
	}
	return nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM runs", &s.Runs},
		{"SELECT COUNT(*) FROM variant_scores", &s.VariantScores},
		{"SELECT COUNT(*) FROM row_changes", &s.RowChanges},
		{"SELECT COUNT(*) FROM row_defects", &s.RowDefects},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	if err := db.conn.QueryRow("SELECT COALESCE(MAX(created_at), '') FROM runs").Scan(&s.LastRunAt); err != nil {
		return nil, err
	}

	return s, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
