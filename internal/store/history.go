package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"
)

// ScrapeHistoryEntry is one append-only audit row per page-scrape
// attempt, including pages that came back empty.
type ScrapeHistoryEntry struct {
	ID             int64         `json:"id"`
	SearchTerm     string        `json:"search_term"`
	Page           int           `json:"page"`
	Found          int           `json:"found"`
	NewCount       int           `json:"new_count"`
	DuplicateCount int           `json:"duplicate_count"`
	RunAt          time.Time     `json:"run_at"`
	Duration       time.Duration `json:"duration_ms"`
}

// RecordScrapeHistory appends an audit row. Advisory telemetry only: a
// failure here is logged and swallowed so it never fails the scrape
// that produced it.
func RecordScrapeHistory(ctx context.Context, db *sql.DB, e ScrapeHistoryEntry) {
	if e.RunAt.IsZero() {
		e.RunAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
INSERT INTO scrape_history(search_term, page, found, new_count, duplicate_count, run_at, duration_ms)
VALUES(?,?,?,?,?,?,?);`,
		e.SearchTerm, e.Page, e.Found, e.NewCount, e.DuplicateCount,
		e.RunAt.UTC().Format(time.RFC3339), e.Duration.Milliseconds(),
	)
	if err != nil {
		log.Printf("[store] scrape history insert failed term=%q page=%d err=%v", e.SearchTerm, e.Page, err)
	}
}

// ListScrapeHistory returns the most recent entries, newest first.
func ListScrapeHistory(ctx context.Context, db *sql.DB, term string, limit int) ([]ScrapeHistoryEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	query := `
SELECT id, search_term, page, found, new_count, duplicate_count, run_at, duration_ms
FROM scrape_history
ORDER BY run_at DESC, id DESC
LIMIT ?;`
	args := []any{limit}
	if term != "" {
		query = `
SELECT id, search_term, page, found, new_count, duplicate_count, run_at, duration_ms
FROM scrape_history
WHERE search_term = ?
ORDER BY run_at DESC, id DESC
LIMIT ?;`
		args = []any{term, limit}
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scrape history: %w", err)
	}
	defer rows.Close()

	var out []ScrapeHistoryEntry
	for rows.Next() {
		var e ScrapeHistoryEntry
		var runAt string
		var durMS int64
		if err := rows.Scan(&e.ID, &e.SearchTerm, &e.Page, &e.Found, &e.NewCount, &e.DuplicateCount, &runAt, &durMS); err != nil {
			return nil, err
		}
		e.RunAt, _ = time.Parse(time.RFC3339, runAt)
		e.Duration = time.Duration(durMS) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}
