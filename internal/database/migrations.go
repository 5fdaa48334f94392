package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    references_name TEXT,
    baseline TEXT,
    best_variant TEXT,
    row_count INTEGER DEFAULT 0,
    warning_count INTEGER DEFAULT 0,
    report_markdown TEXT NOT NULL,
    output_path TEXT
);

CREATE TABLE IF NOT EXISTS variant_scores (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    source TEXT,
    profile TEXT,
    row_count INTEGER DEFAULT 0,
    changed INTEGER DEFAULT 0,
    unigram REAL,
    bigram REAL,
    lcs REAL,
    mean REAL,
    mean_quality REAL DEFAULT 0,
    mean_words REAL DEFAULT 0,
    density REAL DEFAULT 0,
    rank INTEGER NOT NULL,
    PRIMARY KEY (run_id, name)
);

CREATE TABLE IF NOT EXISTS row_changes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    variant TEXT NOT NULL,
    doc_id TEXT NOT NULL,
    before_text TEXT NOT NULL,
    after_text TEXT NOT NULL,
    stages TEXT,
    word_delta INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_row_changes_run ON row_changes(run_id);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "row defects and leaderboard projection",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS row_defects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    variant TEXT NOT NULL,
    doc_id TEXT NOT NULL,
    score INTEGER NOT NULL,
    categories TEXT,
    summary TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_row_defects_run ON row_defects(run_id);
`); err != nil {
				return err
			}
			has, err := hasColumn(tx, "variant_scores", "projected")
			if err != nil || has {
				return err
			}
			_, err = tx.Exec("ALTER TABLE variant_scores ADD COLUMN projected REAL")
			return err
		},
	},
}

// hasColumn reports whether table has the named column. ALTER TABLE ADD
// COLUMN is not idempotent, so migrations check first.
func hasColumn(tx *sql.Tx, table, column string) (bool, error) {
	var count int
	err := tx.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column,
	).Scan(&count)
	return count > 0, err
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
