package poll

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"jobmatch-engine/internal/config"
	"jobmatch-engine/internal/cv"
	"jobmatch-engine/internal/events"
	"jobmatch-engine/internal/extract"
	"jobmatch-engine/internal/match"
	"jobmatch-engine/internal/scrape"
	"jobmatch-engine/internal/store"
)

// perTermTimeout bounds one search term's scrape plus evaluation.
const perTermTimeout = 5 * time.Minute

// Status is the last-known poller state, kept in an atomic.Value so
// HTTP handlers can read it without locks.
type Status struct {
	Running      bool   `json:"running"`
	LastRunAt    string `json:"last_run_at,omitempty"`
	LastOkAt     string `json:"last_ok_at,omitempty"`
	LastError    string `json:"last_error,omitempty"`
	LastFound    int    `json:"last_found"`
	LastNew      int    `json:"last_new"`
	LastRecorded int    `json:"last_recorded"`
}

// Poller runs every configured search on a timer. Each run registers
// the current CV, pages the extractor per term, evaluates fresh
// listings and records the survivors.
type Poller struct {
	DB     *sql.DB
	CfgVal *atomic.Value // holds config.Config
	Status *atomic.Value // holds Status
	Hub    *events.Hub

	// NewEvaluator builds the scoring client for the current config.
	// A nil evaluator (or a constructor error) downgrades the run to
	// scrape-only; listings are still deduplicated but not recorded.
	NewEvaluator func(cfg config.Config) (match.Evaluator, error)

	// Trigger wakes the loop ahead of the timer. Buffered size 1 so
	// repeated kicks coalesce.
	Trigger chan struct{}

	runMu sync.Mutex
}

func New(db *sql.DB, cfgVal, status *atomic.Value, hub *events.Hub) *Poller {
	return &Poller{
		DB:      db,
		CfgVal:  cfgVal,
		Status:  status,
		Hub:     hub,
		Trigger: make(chan struct{}, 1),
	}
}

// Kick requests an immediate run without blocking the caller.
func (p *Poller) Kick() {
	select {
	case p.Trigger <- struct{}{}:
	default:
	}
}

// Start launches the loop. It returns immediately; the loop stops
// when ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	go func() {
		for {
			interval := 3600 * time.Second
			if cfg, ok := p.loadConfig(); ok && cfg.Polling.ScrapeSeconds > 0 {
				interval = time.Duration(cfg.Polling.ScrapeSeconds) * time.Second
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			case <-p.Trigger:
			}

			if err := p.RunOnce(ctx); err != nil {
				log.Printf("[poll] error: %v", err)
			}
		}
	}()
}

func (p *Poller) loadConfig() (config.Config, bool) {
	v := p.CfgVal.Load()
	if v == nil {
		return config.Config{}, false
	}
	return v.(config.Config), true
}

// RunOnce runs all configured searches now. Only one run executes at
// a time; a second caller waits for the first to finish and then runs.
func (p *Poller) RunOnce(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	cfg, ok := p.loadConfig()
	if !ok {
		return fmt.Errorf("poller has no config yet")
	}
	if len(cfg.Searches) == 0 {
		return nil
	}
	if strings.TrimSpace(cfg.CV.Path) == "" {
		return fmt.Errorf("no CV configured")
	}

	p.setStatus(func(st *Status) {
		st.Running = true
		st.LastRunAt = time.Now().UTC().Format(time.RFC3339)
	})
	p.Hub.Publish(events.MakeEvent("", events.TypeScrapeStarted, 1, map[string]any{
		"searches": cfg.Searches,
	}))

	found, fresh, recorded, runErr := p.runSearches(ctx, cfg)

	p.setStatus(func(st *Status) {
		st.Running = false
		st.LastFound = found
		st.LastNew = fresh
		st.LastRecorded = recorded
		if runErr != nil {
			st.LastError = runErr.Error()
		} else {
			st.LastError = ""
			st.LastOkAt = time.Now().UTC().Format(time.RFC3339)
		}
	})
	p.Hub.Publish(events.MakeEvent("", events.TypeScrapeFinished, 1, map[string]any{
		"found":    found,
		"new":      fresh,
		"recorded": recorded,
	}))

	if deleted, err := p.cleanupRetention(cfg); err != nil {
		log.Printf("[poll] retention cleanup: %v", err)
	} else if deleted > 0 {
		log.Printf("[poll] retention cleanup removed %d old matches", deleted)
	}

	return runErr
}

func (p *Poller) runSearches(ctx context.Context, cfg config.Config) (found, fresh, recorded int, err error) {
	version, created, err := cv.Register(ctx, p.DB, cfg.CV.Path, cfg.CV.DisplayName, readSummary(cfg.CV.SummaryPath))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("register cv: %w", err)
	}
	if created {
		log.Printf("[poll] new CV version %s (%s)", version.Fingerprint, version.DisplayName)
	}

	src := extract.New(extract.Config{
		BaseURL:        cfg.Extractor.BaseURL,
		RequestsPerSec: cfg.Scrape.RequestsPerSec,
		Burst:          cfg.Scrape.Burst,
		Timeout:        time.Duration(cfg.Extractor.TimeoutSeconds) * time.Second,
	})
	coord := scrape.NewCoordinator(p.DB, src, scrape.Options{
		MaxPages:           cfg.Scrape.MaxPages,
		DuplicatePageLimit: cfg.Scrape.DuplicatePageLimit,
		MaxPageFailures:    cfg.Scrape.MaxPageFailures,
	})

	var ev match.Evaluator
	if p.NewEvaluator != nil {
		if ev, err = p.NewEvaluator(cfg); err != nil {
			log.Printf("[poll] evaluator unavailable, scrape-only run: %v", err)
			ev = nil
			err = nil
		}
	}

	rec := match.NewRecorder(p.DB)
	rec.OnRecorded = func(m store.MatchRecord) {
		p.Hub.Publish(events.MakeEvent("", events.TypeMatchRecorded, 1, m.Key()))
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, term := range cfg.Searches {
		term := term
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(gctx, perTermTimeout)
			defer cancel()

			listings, rep, err := coord.Run(tctx, term, version.Fingerprint)
			if err != nil {
				log.Printf("[poll:%s] scrape: %v", term, err)
				return nil
			}
			log.Printf("[poll:%s] pages=%d found=%d new=%d dup=%d",
				term, rep.PagesFetched, rep.Found, rep.New, rep.Duplicates)

			var matchRep match.RunReport
			if ev != nil && len(listings) > 0 {
				matchRep, err = rec.EvaluateAndRecord(tctx, ev, version.Summary, listings, term, version.Fingerprint)
				if err != nil {
					log.Printf("[poll:%s] record: %v", term, err)
				}
			}

			mu.Lock()
			found += rep.Found
			fresh += rep.New
			recorded += matchRep.Recorded
			mu.Unlock()
			return nil
		})
	}

	err = g.Wait()
	return found, fresh, recorded, err
}

func (p *Poller) cleanupRetention(cfg config.Config) (int64, error) {
	days := cfg.Retention.MatchMaxAgeDays
	if days <= 0 {
		return 0, nil
	}
	return store.CleanupOldMatches(p.DB, time.Duration(days)*24*time.Hour)
}

func (p *Poller) setStatus(mut func(*Status)) {
	st := Status{}
	if v := p.Status.Load(); v != nil {
		st = v.(Status)
	}
	mut(&st)
	p.Status.Store(st)
}

func readSummary(path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[poll] cv summary unreadable: %v", err)
		return ""
	}
	return string(b)
}
