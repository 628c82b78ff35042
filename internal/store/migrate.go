package store

import "database/sql"

// Migrate brings the schema up to the current version. All DDL for one
// version runs inside a single transaction so a crash mid-migration
// leaves user_version untouched.
func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}

	if v >= 1 {
		return tx.Commit()
	}

	// ---- Schema v1: tables ----

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS matches (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  job_url TEXT NOT NULL,
  search_term TEXT NOT NULL,
  cv_fingerprint TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  company TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  posted_at TEXT NOT NULL DEFAULT '',
  salary TEXT NOT NULL DEFAULT '',
  score_skills INTEGER NOT NULL DEFAULT 0,
  score_experience INTEGER NOT NULL DEFAULT 0,
  score_education INTEGER NOT NULL DEFAULT 0,
  score_location_fit INTEGER NOT NULL DEFAULT 0,
  score_overall INTEGER NOT NULL DEFAULT 0,
  reasoning TEXT NOT NULL DEFAULT '',
  raw_payload BLOB NOT NULL DEFAULT '',
  scraped_at TEXT NOT NULL,
  matched_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS cv_versions (
  fingerprint TEXT PRIMARY KEY,
  display_name TEXT NOT NULL,
  path TEXT NOT NULL,
  summary TEXT NOT NULL DEFAULT '',
  first_seen TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS scrape_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  search_term TEXT NOT NULL,
  page INTEGER NOT NULL,
  found INTEGER NOT NULL,
  new_count INTEGER NOT NULL,
  duplicate_count INTEGER NOT NULL,
  run_at TEXT NOT NULL,
  duration_ms INTEGER NOT NULL DEFAULT 0
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS company_domains (
  company TEXT PRIMARY KEY,
  domain TEXT NOT NULL,
  fetched_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	// ---- Schema v1: indexes ----

	// the composite key is the dedup source of truth
	if _, err := tx.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_key
ON matches(job_url, search_term, cv_fingerprint);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_matches_search_term
ON matches(search_term);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_matches_cv_fingerprint
ON matches(cv_fingerprint);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_matches_score_overall
ON matches(score_overall DESC);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_scrape_history_term
ON scrape_history(search_term, run_at);
`); err != nil {
		return err
	}

	// Mark schema v1
	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}

	return tx.Commit()
}
