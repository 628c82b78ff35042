package match

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"jobmatch-engine/internal/domain"
	"jobmatch-engine/internal/store"
)

// Recorder persists evaluated listings. Safe under concurrent callers:
// the existence check is advisory, the store's unique index decides.
type Recorder struct {
	db *sql.DB

	// OnRecorded fires after a successful first insert. Optional.
	OnRecorded func(store.MatchRecord)

	// Backoff is the base wait between transient-failure retries.
	Backoff time.Duration
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db, Backoff: defaultBackoff}
}

// Record performs the idempotent insert-or-skip for one evaluated
// listing. A Duplicate outcome from the store is success: another
// caller got there first and exactly one row exists either way.
func (r *Recorder) Record(ctx context.Context, l domain.Listing, eval domain.Evaluation, term, cvFingerprint string) (store.InsertOutcome, error) {
	known, err := store.Exists(ctx, r.db, l.URL, term, cvFingerprint)
	if err != nil {
		return store.Duplicate, err
	}
	if known {
		return store.Duplicate, nil
	}

	rec := store.MatchRecord{
		JobURL:        l.URL,
		SearchTerm:    term,
		CVFingerprint: cvFingerprint,
		Title:         l.Title,
		Company:       l.Company,
		Location:      l.Location,
		Salary:        l.Salary,
		Scores:        eval,
		RawPayload:    l.Raw,
		MatchedAt:     time.Now().UTC(),
	}
	if l.PostedAt != nil {
		rec.PostedAt = l.PostedAt.UTC().Format(time.RFC3339)
	}

	out, err := store.InsertIfAbsent(ctx, r.db, rec)
	if err != nil {
		return out, err
	}
	if out == store.Inserted && r.OnRecorded != nil {
		r.OnRecorded(rec)
	}
	return out, nil
}

// RunReport summarizes one evaluate-and-record batch.
type RunReport struct {
	Evaluated int `json:"evaluated"`
	Recorded  int `json:"recorded"`
	Skipped   int `json:"skipped"` // already known, evaluator never called
	Failed    int `json:"failed"`
}

const (
	transientRetries = 2
	defaultBackoff   = 3 * time.Second
)

// EvaluateAndRecord runs the full bridge for a batch of new listings:
// existence check first (so a known key never costs an evaluator
// call), then evaluate, then insert-or-skip. Transient evaluator
// failures are retried with backoff; permanent ones skip the item and
// the batch continues. A failed evaluation never produces a row, so a
// later retry behaves exactly like a first attempt.
func (r *Recorder) EvaluateAndRecord(ctx context.Context, ev Evaluator, cvSummary string, listings []domain.Listing, term, cvFingerprint string) (RunReport, error) {
	var rep RunReport

	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		known, err := store.Exists(ctx, r.db, l.URL, term, cvFingerprint)
		if err != nil {
			return rep, err
		}
		if known {
			rep.Skipped++
			continue
		}

		eval, err := r.evaluateWithRetry(ctx, ev, cvSummary, l)
		if err != nil {
			rep.Failed++
			log.Printf("[match] evaluation failed url=%q term=%q err=%v", l.URL, term, err)
			continue
		}
		rep.Evaluated++

		out, err := r.Record(ctx, l, eval, term, cvFingerprint)
		if err != nil {
			return rep, fmt.Errorf("record %q: %w", l.URL, err)
		}
		if out == store.Inserted {
			rep.Recorded++
		} else {
			rep.Skipped++
		}
	}

	return rep, nil
}

func (r *Recorder) evaluateWithRetry(ctx context.Context, ev Evaluator, cvSummary string, l domain.Listing) (domain.Evaluation, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		eval, err := ev.Evaluate(ctx, cvSummary, l)
		if err == nil {
			return eval, nil
		}
		lastErr = err
		if !IsTransient(err) || attempt >= transientRetries {
			return domain.Evaluation{}, lastErr
		}

		backoff := r.Backoff
		if backoff <= 0 {
			backoff = defaultBackoff
		}
		log.Printf("[match] transient evaluator error url=%q attempt=%d err=%v", l.URL, attempt+1, err)
		select {
		case <-ctx.Done():
			return domain.Evaluation{}, ctx.Err()
		case <-time.After(backoff << attempt):
		}
	}
}
