package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"jobmatch-engine/internal/domain"
	"jobmatch-engine/internal/store"
)

const lockRetryDelay = 25 * time.Millisecond

// Bridge owns the file-based pending area. One record per file, file
// name "<fingerprint>-<uuid>.json", so the duplicate guard is a
// directory scan and the commit is a rename. Every check-and-write
// sequence runs under an advisory lock on queue.lock; the lock is
// released on all exit paths.
type Bridge struct {
	db  *sql.DB
	dir string

	// OnQueued fires after a successful commit. Optional.
	OnQueued func(QueuedApplication)
}

func NewBridge(db *sql.DB, dir string) (*Bridge, error) {
	for _, sub := range []string{"pending", "sent", "failed"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("queue dir: %w", err)
		}
	}
	return &Bridge{db: db, dir: dir}, nil
}

func (b *Bridge) pendingDir() string { return filepath.Join(b.dir, "pending") }
func (b *Bridge) sentDir() string    { return filepath.Join(b.dir, "sent") }
func (b *Bridge) failedDir() string  { return filepath.Join(b.dir, "failed") }

// Enqueue validates, guards against a second application to the same
// employer target, and commits the record atomically. Expected
// non-success outcomes come back as *ValidationError and
// *DuplicateError; anything else is a real fault.
func (b *Bridge) Enqueue(ctx context.Context, key domain.MatchKey, letter Letter, rcpt Recipient) (*QueuedApplication, error) {
	// validate before anything touches disk
	if err := validate(letter, rcpt); err != nil {
		return nil, err
	}

	m, err := store.GetMatch(ctx, b.db, key.JobURL, key.SearchTerm, key.CVFingerprint)
	if err != nil {
		return nil, err
	}

	app := QueuedApplication{
		ID:          uuid.NewString(),
		Fingerprint: applicationFingerprint(m.Company, m.Title, m.CVFingerprint),
		Source:      key,
		Company:     m.Company,
		JobTitle:    m.Title,
		Recipient:   rcpt,
		Letter:      letter,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	unlock, err := b.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// duplicate guard across pending and sent, under the lock
	if id, st, ok, err := b.findByFingerprint(app.Fingerprint); err != nil {
		return nil, err
	} else if ok {
		return nil, &DuplicateError{ExistingID: id, Status: st}
	}

	if err := b.writeAtomic(b.pendingDir(), app); err != nil {
		return nil, err
	}

	if b.OnQueued != nil {
		b.OnQueued(app)
	}
	return &app, nil
}

// MarkSent moves a pending record into immutable sent history.
func (b *Bridge) MarkSent(ctx context.Context, id string) error {
	return b.resolve(ctx, id, StatusSent, "")
}

// MarkFailed moves a pending record into the failed area.
func (b *Bridge) MarkFailed(ctx context.Context, id string, reason string) error {
	return b.resolve(ctx, id, StatusFailed, reason)
}

func (b *Bridge) resolve(ctx context.Context, id string, st Status, reason string) error {
	unlock, err := b.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	path, app, err := b.findPendingByID(id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	app.Status = st
	app.ResolvedAt = &now
	app.FailReason = reason

	destDir := b.sentDir()
	if st == StatusFailed {
		destDir = b.failedDir()
	}
	if err := b.writeAtomic(destDir, app); err != nil {
		return err
	}
	return os.Remove(path)
}

// ListPending returns all uncommitted applications, oldest first.
func (b *Bridge) ListPending(ctx context.Context) ([]QueuedApplication, error) {
	unlock, err := b.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	apps, err := b.readDir(b.pendingDir())
	if err != nil {
		return nil, err
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.Before(apps[j].CreatedAt) })
	return apps, nil
}

// Get returns one application by ID from any area.
func (b *Bridge) Get(ctx context.Context, id string) (QueuedApplication, error) {
	unlock, err := b.lock(ctx)
	if err != nil {
		return QueuedApplication{}, err
	}
	defer unlock()

	for _, dir := range []string{b.pendingDir(), b.sentDir(), b.failedDir()} {
		apps, err := b.readDir(dir)
		if err != nil {
			return QueuedApplication{}, err
		}
		for _, a := range apps {
			if a.ID == id {
				return a, nil
			}
		}
	}
	return QueuedApplication{}, store.ErrNotFound
}

// lock takes the advisory queue lock, waiting until the context gives
// up. The returned func must run on every exit path.
func (b *Bridge) lock(ctx context.Context) (func(), error) {
	fl := flock.New(filepath.Join(b.dir, "queue.lock"))
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("queue lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("queue lock: not acquired")
	}
	return func() { _ = fl.Unlock() }, nil
}

// writeAtomic commits one record as temp-write-then-rename so a crash
// mid-write never leaves a half-written file visible in the area.
func (b *Bridge) writeAtomic(dir string, app QueuedApplication) error {
	data, err := json.MarshalIndent(app, "", "  ")
	if err != nil {
		return fmt.Errorf("queue encode: %w", err)
	}

	final := filepath.Join(dir, app.Fingerprint+"-"+app.ID+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("queue write: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("queue commit: %w", err)
	}
	return nil
}

// findByFingerprint scans pending and sent for an application to the
// same employer target. Failed applications don't block a retry.
func (b *Bridge) findByFingerprint(fp string) (id string, st Status, ok bool, err error) {
	for _, probe := range []struct {
		dir string
		st  Status
	}{
		{b.pendingDir(), StatusPending},
		{b.sentDir(), StatusSent},
	} {
		entries, err := os.ReadDir(probe.dir)
		if err != nil {
			return "", "", false, fmt.Errorf("queue scan: %w", err)
		}
		for _, e := range entries {
			name := e.Name()
			if strings.HasPrefix(name, fp+"-") && strings.HasSuffix(name, ".json") {
				id := strings.TrimSuffix(strings.TrimPrefix(name, fp+"-"), ".json")
				return id, probe.st, true, nil
			}
		}
	}
	return "", "", false, nil
}

func (b *Bridge) findPendingByID(id string) (string, QueuedApplication, error) {
	entries, err := os.ReadDir(b.pendingDir())
	if err != nil {
		return "", QueuedApplication{}, fmt.Errorf("queue scan: %w", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "-"+id+".json") {
			path := filepath.Join(b.pendingDir(), e.Name())
			app, err := readApp(path)
			if err != nil {
				return "", QueuedApplication{}, err
			}
			return path, app, nil
		}
	}
	return "", QueuedApplication{}, store.ErrNotFound
}

func (b *Bridge) readDir(dir string) ([]QueuedApplication, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("queue scan: %w", err)
	}

	var out []QueuedApplication
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		app, err := readApp(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, nil
}

func readApp(path string) (QueuedApplication, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return QueuedApplication{}, fmt.Errorf("queue read %s: %w", filepath.Base(path), err)
	}
	var app QueuedApplication
	if err := json.Unmarshal(data, &app); err != nil {
		return QueuedApplication{}, fmt.Errorf("queue decode %s: %w", filepath.Base(path), err)
	}
	return app, nil
}
