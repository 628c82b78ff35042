package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GetCompanyDomain returns the cached mail domain for a company, or ""
// if none is known yet. Company names are matched case-insensitively
// with collapsed whitespace.
func GetCompanyDomain(ctx context.Context, db *sql.DB, company string) (string, error) {
	key := normalizeCompanyKey(company)
	if key == "" {
		return "", nil
	}

	var domain string
	err := db.QueryRowContext(ctx,
		`SELECT domain FROM company_domains WHERE company = ? LIMIT 1;`,
		key,
	).Scan(&domain)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("company domain lookup: %w", err)
	}
	return strings.TrimSpace(domain), nil
}

// UpsertCompanyDomain caches the domain a recipient was derived from,
// so later applications to the same company skip the derivation.
// Empty inputs are ignored rather than cached.
func UpsertCompanyDomain(ctx context.Context, db *sql.DB, company, domain string) error {
	key := normalizeCompanyKey(company)
	domain = strings.ToLower(strings.TrimSpace(domain))
	if key == "" || domain == "" {
		return nil
	}

	_, err := db.ExecContext(ctx, `
INSERT INTO company_domains(company, domain, fetched_at)
VALUES(?,?,?)
ON CONFLICT(company) DO UPDATE SET
  domain = excluded.domain,
  fetched_at = excluded.fetched_at;
`, key, domain, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("company domain upsert: %w", err)
	}
	return nil
}

func normalizeCompanyKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
