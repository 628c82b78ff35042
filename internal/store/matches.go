package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobmatch-engine/internal/domain"
)

// ErrNotFound is returned by GetMatch when the composite key is absent.
// Callers are expected to fall back to a live fetch, not crash.
var ErrNotFound = errors.New("match not found")

// InsertOutcome reports what InsertIfAbsent did. Duplicate is an
// expected outcome, not an error.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	Duplicate
)

// MatchRecord is one row of the matches table: a single evaluated
// (job, search-context, CV-version) combination. Rows are never
// updated in place; a changed CV or search term is a new row.
type MatchRecord struct {
	ID            int64             `json:"id"`
	JobURL        string            `json:"job_url"`
	SearchTerm    string            `json:"search_term"`
	CVFingerprint string            `json:"cv_fingerprint"`
	Title         string            `json:"title"`
	Company       string            `json:"company"`
	Location      string            `json:"location"`
	PostedAt      string            `json:"posted_at,omitempty"`
	Salary        string            `json:"salary,omitempty"`
	Scores        domain.Evaluation `json:"scores"`
	RawPayload    json.RawMessage   `json:"raw_payload,omitempty"`
	ScrapedAt     time.Time         `json:"scraped_at"`
	MatchedAt     time.Time         `json:"matched_at"`
}

func (m MatchRecord) Key() domain.MatchKey {
	return domain.MatchKey{
		JobURL:        m.JobURL,
		SearchTerm:    m.SearchTerm,
		CVFingerprint: m.CVFingerprint,
	}
}

// Exists is the cheap indexed lookup callers run before spending an
// evaluator call on a listing.
func Exists(ctx context.Context, db *sql.DB, url, term, cvFP string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `
SELECT 1 FROM matches
WHERE job_url = ? AND search_term = ? AND cv_fingerprint = ?
LIMIT 1;`, url, term, cvFP).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists lookup: %w", err)
	}
	return true, nil
}

// InsertIfAbsent inserts the record unless its composite key already
// exists. The unique index is the single source of truth for conflict
// resolution; the INSERT OR IGNORE closes the check-then-act window
// between concurrent callers. Any error other than a uniqueness hit
// propagates to the caller.
func InsertIfAbsent(ctx context.Context, db *sql.DB, m MatchRecord) (InsertOutcome, error) {
	if m.JobURL == "" || m.SearchTerm == "" || m.CVFingerprint == "" {
		return Duplicate, errors.New("insert match: incomplete composite key")
	}
	if m.ScrapedAt.IsZero() {
		m.ScrapedAt = time.Now().UTC()
	}
	if m.MatchedAt.IsZero() {
		m.MatchedAt = time.Now().UTC()
	}
	raw := []byte(m.RawPayload)
	if raw == nil {
		raw = []byte{}
	}

	res, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO matches(
  job_url, search_term, cv_fingerprint,
  title, company, location, posted_at, salary,
  score_skills, score_experience, score_education, score_location_fit, score_overall,
  reasoning, raw_payload, scraped_at, matched_at)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		m.JobURL, m.SearchTerm, m.CVFingerprint,
		m.Title, m.Company, m.Location, m.PostedAt, m.Salary,
		m.Scores.Skills, m.Scores.Experience, m.Scores.Education, m.Scores.LocationFit, m.Scores.Overall,
		m.Scores.Reasoning, raw,
		m.ScrapedAt.UTC().Format(time.RFC3339),
		m.MatchedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return Duplicate, fmt.Errorf("insert match: %w", err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return Duplicate, nil
	}
	return Inserted, nil
}

// Filters narrows a Query. Zero values mean "no filter".
type Filters struct {
	SearchTerm       string
	CVFingerprint    string
	MinOverall       int
	MatchedAfter     time.Time
	MatchedBefore    time.Time
	LocationContains string
	Limit            int
}

// Query returns matches ordered by overall score descending, then by
// match timestamp descending.
func Query(ctx context.Context, db *sql.DB, f Filters) ([]MatchRecord, error) {
	var where []string
	var args []any

	if f.SearchTerm != "" {
		where = append(where, "search_term = ?")
		args = append(args, f.SearchTerm)
	}
	if f.CVFingerprint != "" {
		where = append(where, "cv_fingerprint = ?")
		args = append(args, f.CVFingerprint)
	}
	if f.MinOverall > 0 {
		where = append(where, "score_overall >= ?")
		args = append(args, f.MinOverall)
	}
	if !f.MatchedAfter.IsZero() {
		where = append(where, "matched_at >= ?")
		args = append(args, f.MatchedAfter.UTC().Format(time.RFC3339))
	}
	if !f.MatchedBefore.IsZero() {
		where = append(where, "matched_at < ?")
		args = append(args, f.MatchedBefore.UTC().Format(time.RFC3339))
	}
	if f.LocationContains != "" {
		where = append(where, "location LIKE ?")
		args = append(args, "%"+f.LocationContains+"%")
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 50000 {
		limit = 50000
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT id, job_url, search_term, cv_fingerprint,
       title, company, location, posted_at, salary,
       score_skills, score_experience, score_education, score_location_fit, score_overall,
       reasoning, raw_payload, scraped_at, matched_at
FROM matches
%s
ORDER BY score_overall DESC, matched_at DESC
LIMIT ?;`, clause)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []MatchRecord
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	return out, nil
}

// GetMatch fetches a single record by composite key, raw payload
// included (the letter generator needs it verbatim).
func GetMatch(ctx context.Context, db *sql.DB, url, term, cvFP string) (MatchRecord, error) {
	row := db.QueryRowContext(ctx, `
SELECT id, job_url, search_term, cv_fingerprint,
       title, company, location, posted_at, salary,
       score_skills, score_experience, score_education, score_location_fit, score_overall,
       reasoning, raw_payload, scraped_at, matched_at
FROM matches
WHERE job_url = ? AND search_term = ? AND cv_fingerprint = ?
LIMIT 1;`, url, term, cvFP)

	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return MatchRecord{}, ErrNotFound
	}
	if err != nil {
		return MatchRecord{}, err
	}
	return m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(r rowScanner) (MatchRecord, error) {
	var m MatchRecord
	var raw []byte
	var scrapedAt, matchedAt string
	err := r.Scan(
		&m.ID, &m.JobURL, &m.SearchTerm, &m.CVFingerprint,
		&m.Title, &m.Company, &m.Location, &m.PostedAt, &m.Salary,
		&m.Scores.Skills, &m.Scores.Experience, &m.Scores.Education, &m.Scores.LocationFit, &m.Scores.Overall,
		&m.Scores.Reasoning, &raw, &scrapedAt, &matchedAt,
	)
	if err != nil {
		return MatchRecord{}, err
	}
	if len(raw) > 0 {
		m.RawPayload = json.RawMessage(raw)
	}
	m.ScrapedAt, _ = time.Parse(time.RFC3339, scrapedAt)
	m.MatchedAt, _ = time.Parse(time.RFC3339, matchedAt)
	return m, nil
}

// CleanupOldMatches deletes rows older than the retention window.
func CleanupOldMatches(db *sql.DB, olderThan time.Duration) (deleted int64, err error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	res, err := db.Exec(`DELETE FROM matches WHERE matched_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old matches: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
