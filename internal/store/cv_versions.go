package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CVVersion identifies one revision of a CV by content fingerprint.
// Rows are immutable; changed content means a new row.
type CVVersion struct {
	Fingerprint string    `json:"fingerprint"`
	DisplayName string    `json:"display_name"`
	Path        string    `json:"path"`
	Summary     string    `json:"summary,omitempty"`
	FirstSeen   time.Time `json:"first_seen"`
}

// EnsureCVVersion creates the version row the first time this content
// fingerprint is seen. Re-registering identical content is a no-op:
// the existing row wins and created is false.
func EnsureCVVersion(ctx context.Context, db *sql.DB, cv CVVersion) (created bool, err error) {
	if cv.Fingerprint == "" {
		return false, fmt.Errorf("ensure cv version: empty fingerprint")
	}
	if cv.FirstSeen.IsZero() {
		cv.FirstSeen = time.Now().UTC()
	}

	res, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO cv_versions(fingerprint, display_name, path, summary, first_seen)
VALUES(?,?,?,?,?);`,
		cv.Fingerprint, cv.DisplayName, cv.Path, cv.Summary,
		cv.FirstSeen.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("ensure cv version: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetCVVersion looks a version up by fingerprint.
func GetCVVersion(ctx context.Context, db *sql.DB, fingerprint string) (CVVersion, error) {
	var cv CVVersion
	var firstSeen string
	err := db.QueryRowContext(ctx, `
SELECT fingerprint, display_name, path, summary, first_seen
FROM cv_versions
WHERE fingerprint = ?
LIMIT 1;`, fingerprint).Scan(&cv.Fingerprint, &cv.DisplayName, &cv.Path, &cv.Summary, &firstSeen)
	if err == sql.ErrNoRows {
		return CVVersion{}, ErrNotFound
	}
	if err != nil {
		return CVVersion{}, fmt.Errorf("get cv version: %w", err)
	}
	cv.FirstSeen, _ = time.Parse(time.RFC3339, firstSeen)
	return cv, nil
}

// ListCVVersions returns all known versions, newest first.
func ListCVVersions(ctx context.Context, db *sql.DB) ([]CVVersion, error) {
	rows, err := db.QueryContext(ctx, `
SELECT fingerprint, display_name, path, summary, first_seen
FROM cv_versions
ORDER BY first_seen DESC;`)
	if err != nil {
		return nil, fmt.Errorf("list cv versions: %w", err)
	}
	defer rows.Close()

	var out []CVVersion
	for rows.Next() {
		var cv CVVersion
		var firstSeen string
		if err := rows.Scan(&cv.Fingerprint, &cv.DisplayName, &cv.Path, &cv.Summary, &firstSeen); err != nil {
			return nil, err
		}
		cv.FirstSeen, _ = time.Parse(time.RFC3339, firstSeen)
		out = append(out, cv)
	}
	return out, rows.Err()
}
