package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmatch-engine/internal/domain"
)

// setupTestDB opens a migrated SQLite store in a temp directory.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	d, err := Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(d.Pool))

	t.Cleanup(func() { assert.NoError(t, d.Close()) })
	return d.Pool
}

func testMatch(url, term, cvFP string, overall int) MatchRecord {
	return MatchRecord{
		JobURL:        url,
		SearchTerm:    term,
		CVFingerprint: cvFP,
		Title:         "Platform Engineer",
		Company:       "SeedCo",
		Location:      "Zurich",
		Scores:        domain.Evaluation{Skills: 8, Experience: 7, Overall: overall, Reasoning: "good overlap"},
		RawPayload:    []byte(`{"title":"Platform Engineer"}`),
	}
}

func TestInsertIfAbsentDedup(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	m := testMatch("https://site.ch/job/42", "IT", "abc123", 7)

	out, err := InsertIfAbsent(ctx, db, m)
	require.NoError(t, err)
	assert.Equal(t, Inserted, out)

	// same triple again: exactly one row survives
	out, err = InsertIfAbsent(ctx, db, m)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, out)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM matches;`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestInsertIfAbsentDistinctContexts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// same url, different search term -> distinct row
	out, err := InsertIfAbsent(ctx, db, testMatch("https://site.ch/job/42", "IT", "abc123", 7))
	require.NoError(t, err)
	assert.Equal(t, Inserted, out)

	out, err = InsertIfAbsent(ctx, db, testMatch("https://site.ch/job/42", "DevOps", "abc123", 6))
	require.NoError(t, err)
	assert.Equal(t, Inserted, out)

	// same url, different CV fingerprint -> distinct row
	out, err = InsertIfAbsent(ctx, db, testMatch("https://site.ch/job/42", "IT", "def456", 8))
	require.NoError(t, err)
	assert.Equal(t, Inserted, out)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM matches;`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestInsertIfAbsentIncompleteKey(t *testing.T) {
	db := setupTestDB(t)
	_, err := InsertIfAbsent(context.Background(), db, testMatch("", "IT", "abc123", 7))
	assert.Error(t, err)
}

func TestInsertIfAbsentConcurrent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	m := testMatch("https://site.ch/job/99", "IT", "abc123", 9)

	const callers = 16
	outcomes := make([]InsertOutcome, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = InsertIfAbsent(ctx, db, m)
		}(i)
	}
	wg.Wait()

	inserted := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		if outcomes[i] == Inserted {
			inserted++
		}
	}
	assert.Equal(t, 1, inserted, "exactly one caller must win")

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM matches;`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestExists(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ok, err := Exists(ctx, db, "https://site.ch/job/42", "IT", "abc123")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = InsertIfAbsent(ctx, db, testMatch("https://site.ch/job/42", "IT", "abc123", 7))
	require.NoError(t, err)

	ok, err = Exists(ctx, db, "https://site.ch/job/42", "IT", "abc123")
	require.NoError(t, err)
	assert.True(t, ok)

	// a different context is a different key
	ok, err = Exists(ctx, db, "https://site.ch/job/42", "DevOps", "abc123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueryOrderingAndFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seed := []MatchRecord{
		testMatch("https://site.ch/job/1", "IT", "abc123", 5),
		testMatch("https://site.ch/job/2", "IT", "abc123", 9),
		testMatch("https://site.ch/job/3", "IT", "def456", 7),
		testMatch("https://site.ch/job/4", "DevOps", "abc123", 8),
	}
	for _, m := range seed {
		out, err := InsertIfAbsent(ctx, db, m)
		require.NoError(t, err)
		require.Equal(t, Inserted, out)
	}

	got, err := Query(ctx, db, Filters{SearchTerm: "IT"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 9, got[0].Scores.Overall)
	assert.Equal(t, 7, got[1].Scores.Overall)
	assert.Equal(t, 5, got[2].Scores.Overall)

	got, err = Query(ctx, db, Filters{SearchTerm: "IT", CVFingerprint: "abc123", MinOverall: 6})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://site.ch/job/2", got[0].JobURL)

	got, err = Query(ctx, db, Filters{LocationContains: "urich"})
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = Query(ctx, db, Filters{MatchedBefore: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetMatchNotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := GetMatch(ctx, db, "https://site.ch/job/404", "IT", "abc123")
	assert.ErrorIs(t, err, ErrNotFound)

	m := testMatch("https://site.ch/job/42", "IT", "abc123", 7)
	_, err = InsertIfAbsent(ctx, db, m)
	require.NoError(t, err)

	got, err := GetMatch(ctx, db, "https://site.ch/job/42", "IT", "abc123")
	require.NoError(t, err)
	assert.Equal(t, m.Key(), got.Key())
	assert.JSONEq(t, `{"title":"Platform Engineer"}`, string(got.RawPayload), "raw payload preserved verbatim")
}
