package queue

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmatch-engine/internal/domain"
	"jobmatch-engine/internal/store"
)

func setupBridge(t *testing.T) (*Bridge, *sql.DB, string) {
	t.Helper()

	dir := t.TempDir()
	d, err := store.Open(filepath.Join(dir, "engine.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(d.Pool))
	t.Cleanup(func() { assert.NoError(t, d.Close()) })

	qdir := filepath.Join(dir, "queue")
	b, err := NewBridge(d.Pool, qdir)
	require.NoError(t, err)
	return b, d.Pool, qdir
}

func seedMatch(t *testing.T, db *sql.DB) domain.MatchKey {
	t.Helper()
	rec := store.MatchRecord{
		JobURL:        "https://site.ch/job/42",
		SearchTerm:    "IT",
		CVFingerprint: "abc123",
		Title:         "Platform Engineer",
		Company:       "SeedCo",
		Scores:        domain.Evaluation{Overall: 7},
	}
	out, err := store.InsertIfAbsent(context.Background(), db, rec)
	require.NoError(t, err)
	require.Equal(t, store.Inserted, out)
	return rec.Key()
}

func goodLetter() Letter {
	return Letter{Subject: "Application: Platform Engineer", Body: "Dear hiring team, ..."}
}

func goodRecipient() Recipient {
	return Recipient{Email: "hr@seedco.ch", Name: "HR"}
}

func pendingFiles(t *testing.T, qdir string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(qdir, "pending"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestEnqueueCommitsOneRecord(t *testing.T) {
	b, db, qdir := setupBridge(t)
	key := seedMatch(t, db)

	app, err := b.Enqueue(context.Background(), key, goodLetter(), goodRecipient())
	require.NoError(t, err)
	assert.NotEmpty(t, app.ID)
	assert.Equal(t, StatusPending, app.Status)
	assert.Equal(t, "SeedCo", app.Company)
	assert.Len(t, pendingFiles(t, qdir), 1)

	// no leftover temp files
	for _, name := range pendingFiles(t, qdir) {
		assert.NotContains(t, name, ".tmp")
	}
}

func TestEnqueueValidationWritesNothing(t *testing.T) {
	b, db, qdir := setupBridge(t)
	key := seedMatch(t, db)

	before := pendingFiles(t, qdir)

	_, err := b.Enqueue(context.Background(), key, Letter{Body: "text"}, Recipient{})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	// all failures reported at once
	assert.Len(t, verr.Fields, 2)

	assert.Equal(t, before, pendingFiles(t, qdir), "failed validation must leave zero artifacts")
}

func TestEnqueueValidationListsAttachmentProblems(t *testing.T) {
	b, db, _ := setupBridge(t)
	key := seedMatch(t, db)

	letter := goodLetter()
	letter.Attachments = []string{filepath.Join(t.TempDir(), "missing_cv.pdf")}

	_, err := b.Enqueue(context.Background(), key, letter, Recipient{Email: "not-an-email"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
}

func TestEnqueueUnknownMatchKey(t *testing.T) {
	b, _, _ := setupBridge(t)

	key := domain.MatchKey{JobURL: "https://site.ch/job/404", SearchTerm: "IT", CVFingerprint: "abc123"}
	_, err := b.Enqueue(context.Background(), key, goodLetter(), goodRecipient())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEnqueueDuplicateGuard(t *testing.T) {
	b, db, _ := setupBridge(t)
	key := seedMatch(t, db)
	ctx := context.Background()

	first, err := b.Enqueue(ctx, key, goodLetter(), goodRecipient())
	require.NoError(t, err)

	_, err = b.Enqueue(ctx, key, goodLetter(), goodRecipient())
	var derr *DuplicateError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, first.ID, derr.ExistingID)
	assert.Equal(t, StatusPending, derr.Status)
}

func TestEnqueueDuplicateGuardCoversSent(t *testing.T) {
	b, db, _ := setupBridge(t)
	key := seedMatch(t, db)
	ctx := context.Background()

	first, err := b.Enqueue(ctx, key, goodLetter(), goodRecipient())
	require.NoError(t, err)
	require.NoError(t, b.MarkSent(ctx, first.ID))

	// already sent to this employer: still a duplicate
	_, err = b.Enqueue(ctx, key, goodLetter(), goodRecipient())
	var derr *DuplicateError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, StatusSent, derr.Status)
}

func TestEnqueueAfterFailureIsAllowed(t *testing.T) {
	b, db, _ := setupBridge(t)
	key := seedMatch(t, db)
	ctx := context.Background()

	first, err := b.Enqueue(ctx, key, goodLetter(), goodRecipient())
	require.NoError(t, err)
	require.NoError(t, b.MarkFailed(ctx, first.ID, "smtp rejected"))

	// a failed send must not block the retry
	second, err := b.Enqueue(ctx, key, goodLetter(), goodRecipient())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEnqueueConcurrentExactlyOnce(t *testing.T) {
	b, db, qdir := setupBridge(t)
	key := seedMatch(t, db)
	ctx := context.Background()

	const callers = 12
	apps := make([]*QueuedApplication, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			apps[i], errs[i] = b.Enqueue(ctx, key, goodLetter(), goodRecipient())
		}(i)
	}
	wg.Wait()

	var winner *QueuedApplication
	dupes := 0
	for i := 0; i < callers; i++ {
		if errs[i] == nil {
			require.Nil(t, winner, "only one caller may commit")
			winner = apps[i]
			continue
		}
		var derr *DuplicateError
		require.ErrorAs(t, errs[i], &derr)
		dupes++
	}
	require.NotNil(t, winner)
	assert.Equal(t, callers-1, dupes)

	// losers reference the winner
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			var derr *DuplicateError
			require.ErrorAs(t, errs[i], &derr)
			assert.Equal(t, winner.ID, derr.ExistingID)
		}
	}

	assert.Len(t, pendingFiles(t, qdir), 1)
}

func TestMarkSentMovesRecord(t *testing.T) {
	b, db, qdir := setupBridge(t)
	key := seedMatch(t, db)
	ctx := context.Background()

	app, err := b.Enqueue(ctx, key, goodLetter(), goodRecipient())
	require.NoError(t, err)
	require.NoError(t, b.MarkSent(ctx, app.ID))

	assert.Empty(t, pendingFiles(t, qdir))

	got, err := b.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, got.Status)
	require.NotNil(t, got.ResolvedAt)

	// resolving twice is an error: sent records are immutable history
	assert.ErrorIs(t, b.MarkSent(ctx, app.ID), store.ErrNotFound)
}

func TestLowConfidenceFlagSurvivesCommit(t *testing.T) {
	b, db, _ := setupBridge(t)
	key := seedMatch(t, db)
	ctx := context.Background()

	rcpt := Recipient{Email: "jobs@seedco.ch", LowConfidence: true}
	app, err := b.Enqueue(ctx, key, goodLetter(), rcpt)
	require.NoError(t, err)
	assert.True(t, app.Recipient.LowConfidence)

	pending, err := b.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Recipient.LowConfidence, "flag must survive the round trip")
}
