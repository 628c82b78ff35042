package scrape

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"jobmatch-engine/internal/domain"
	"jobmatch-engine/internal/fingerprint"
	"jobmatch-engine/internal/store"
)

// Options configures one coordinator. Passed in explicitly at
// construction; there is no package-level state.
type Options struct {
	// MaxPages caps one run. <=0 means the default.
	MaxPages int

	// DuplicatePageLimit is how many consecutive non-empty pages may
	// come back all-duplicate before the run stops early. A page with
	// even one new listing resets the streak. <=0 means 1.
	DuplicatePageLimit int

	// MaxPageFailures aborts the run after this many failed page
	// fetches. <=0 means 3.
	MaxPageFailures int
}

func (o Options) withDefaults() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = 10
	}
	if o.DuplicatePageLimit <= 0 {
		o.DuplicatePageLimit = 1
	}
	if o.MaxPageFailures <= 0 {
		o.MaxPageFailures = 3
	}
	return o
}

// RunReport summarizes one paginated run.
type RunReport struct {
	SearchTerm   string `json:"search_term"`
	PagesFetched int    `json:"pages_fetched"`
	Found        int    `json:"found"`
	New          int    `json:"new"`
	Duplicates   int    `json:"duplicates"`
	Skipped      int    `json:"skipped"` // listings dropped for bad URLs
	PageFailures int    `json:"page_failures"`
	StoppedEarly bool   `json:"stopped_early"`
}

// Coordinator drives paginated retrieval from the external source and
// filters out listings the store already knows for this exact
// (search term, CV version) context, so the expensive evaluator never
// sees a known job twice.
type Coordinator struct {
	db   *sql.DB
	src  Source
	opts Options
}

func NewCoordinator(db *sql.DB, src Source, opts Options) *Coordinator {
	return &Coordinator{db: db, src: src, opts: opts.withDefaults()}
}

// Run pages through the source until it hits MaxPages, an empty page,
// the all-duplicate early exit, or the failure cap. Returned listings
// carry normalized URLs. Partial results already recorded stay valid
// when the context is cancelled mid-run.
func (c *Coordinator) Run(ctx context.Context, term, cvFingerprint string) ([]domain.Listing, RunReport, error) {
	rep := RunReport{SearchTerm: term}
	var newListings []domain.Listing

	dupStreak := 0
	for page := 1; page <= c.opts.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return newListings, rep, err
		}

		start := time.Now()
		listings, err := c.src.FetchPage(ctx, term, page)
		if err != nil {
			rep.PageFailures++
			log.Printf("[scrape:%s] page %d failed term=%q err=%v", c.src.Name(), page, term, err)
			if rep.PageFailures >= c.opts.MaxPageFailures {
				return newListings, rep, fmt.Errorf("scrape %q: %d page failures, giving up: %w", term, rep.PageFailures, err)
			}
			continue
		}
		rep.PagesFetched++

		pageNew, pageDup, pageSkipped, err := c.partitionPage(ctx, listings, term, cvFingerprint)
		if err != nil {
			// storage failure, not a scrape hiccup: surface it
			return newListings, rep, err
		}

		rep.Found += len(listings)
		rep.New += len(pageNew)
		rep.Duplicates += pageDup
		rep.Skipped += pageSkipped
		newListings = append(newListings, pageNew...)

		store.RecordScrapeHistory(ctx, c.db, store.ScrapeHistoryEntry{
			SearchTerm:     term,
			Page:           page,
			Found:          len(listings),
			NewCount:       len(pageNew),
			DuplicateCount: pageDup,
			Duration:       time.Since(start),
		})

		// empty page means end of results
		if len(listings) == 0 {
			log.Printf("[scrape:%s] page %d empty term=%q, stopping", c.src.Name(), page, term)
			break
		}

		// Early exit only on fully-duplicate pages. A mixed page resets
		// the streak: result ordering is a heuristic, not a guarantee.
		if len(pageNew) == 0 && pageDup > 0 {
			dupStreak++
			if dupStreak >= c.opts.DuplicatePageLimit {
				log.Printf("[scrape:%s] term=%q page %d all-duplicate (streak=%d), stopping early",
					c.src.Name(), term, page, dupStreak)
				rep.StoppedEarly = true
				break
			}
		} else {
			dupStreak = 0
		}
	}

	return newListings, rep, nil
}

// partitionPage normalizes every listing URL and splits the page into
// new listings and known duplicates. Listings whose URL cannot be
// normalized are counted and dropped, never inserted with a guessed
// identity.
func (c *Coordinator) partitionPage(ctx context.Context, listings []domain.Listing, term, cvFP string) (pageNew []domain.Listing, dup, skipped int, err error) {
	for _, l := range listings {
		canonical, nerr := fingerprint.NormalizeURL(l.URL)
		if nerr != nil {
			skipped++
			log.Printf("[scrape:%s] skipping listing with bad url %q title=%q: %v", c.src.Name(), l.URL, l.Title, nerr)
			continue
		}
		l.URL = canonical

		known, err := store.Exists(ctx, c.db, canonical, term, cvFP)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("duplicate check %q: %w", canonical, err)
		}
		if known {
			dup++
			continue
		}
		pageNew = append(pageNew, l)
	}
	return pageNew, dup, skipped, nil
}
