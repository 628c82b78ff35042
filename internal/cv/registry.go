// Package cv registers CV revisions by content identity. The file name
// is cosmetic; the fingerprint is the version.
package cv

import (
	"context"
	"database/sql"
	"path/filepath"

	"jobmatch-engine/internal/fingerprint"
	"jobmatch-engine/internal/store"
)

// Register fingerprints the file at path and ensures a version row
// exists for that content. Uploading identical bytes again, under any
// name, returns the already-known version.
func Register(ctx context.Context, db *sql.DB, path, displayName, summary string) (store.CVVersion, bool, error) {
	fp, err := fingerprint.FingerprintFile(path)
	if err != nil {
		return store.CVVersion{}, false, err
	}

	if displayName == "" {
		displayName = filepath.Base(path)
	}

	created, err := store.EnsureCVVersion(ctx, db, store.CVVersion{
		Fingerprint: fp,
		DisplayName: displayName,
		Path:        path,
		Summary:     summary,
	})
	if err != nil {
		return store.CVVersion{}, false, err
	}

	cv, err := store.GetCVVersion(ctx, db, fp)
	if err != nil {
		return store.CVVersion{}, false, err
	}
	return cv, created, nil
}
