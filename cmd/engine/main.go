package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"jobmatch-engine/internal/config"
	"jobmatch-engine/internal/events"
	"jobmatch-engine/internal/httpapi"
	"jobmatch-engine/internal/match"
	"jobmatch-engine/internal/poll"
	"jobmatch-engine/internal/queue"
	"jobmatch-engine/internal/scheduler"
	"jobmatch-engine/internal/secrets"
	"jobmatch-engine/internal/store"
)

func main() {
	// Engine data dir: use env if provided, else local folder.
	dataDir := os.Getenv("JOBMATCH_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	// Load config and keep it reloadable
	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		return config.Load(userCfgPath)
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	cfg, vr := config.NormalizeAndValidate(cfg)
	for _, warning := range vr.Warnings {
		log.Printf("[config] warning: %s", warning)
	}
	if !vr.OK() {
		log.Fatalf("config invalid (%s):\n- %s", userCfgPath, strings.Join(vr.Errors, "\n- "))
	}
	cfgVal.Store(cfg)

	db, err := store.Open(filepath.Join(dataDir, "jobmatch.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := store.Migrate(db.Pool); err != nil {
		log.Fatal(err)
	}

	hub := events.NewHub()

	bridge, err := queue.NewBridge(db.Pool, filepath.Join(dataDir, "queue"))
	if err != nil {
		log.Fatal(err)
	}
	bridge.OnQueued = func(app queue.QueuedApplication) {
		hub.Publish(events.MakeEvent("", events.TypeQueueEnqueued, 1, app))
	}

	var scrapeStatus atomic.Value
	scrapeStatus.Store(poll.Status{})

	poller := poll.New(db.Pool, &cfgVal, &scrapeStatus, hub)
	poller.NewEvaluator = func(cfg config.Config) (match.Evaluator, error) {
		base := strings.TrimSpace(cfg.Evaluator.BaseURL)
		if base == "" {
			return nil, errors.New("evaluator.base_url is empty")
		}
		key, err := secrets.GetEvaluatorAPIKey()
		if err != nil {
			return nil, err
		}
		return match.NewClient(base, key), nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller.Start(ctx)

	// Periodic WAL checkpoint keeps the db file compact for backups.
	go scheduler.Every(ctx, time.Hour, "wal-checkpoint", func(ctx context.Context) error {
		_, err := db.Pool.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE);`)
		return err
	})

	mux := httpapi.NewMux(httpapi.Deps{
		DB:           db.Pool,
		Hub:          hub,
		CfgVal:       &cfgVal,
		ScrapeStatus: &scrapeStatus,
		UserCfgPath:  userCfgPath,
		LoadCfg:      loadCfg,
		Bridge:       bridge,
		StartScrape:  poller.Kick,
	})

	srv := &http.Server{
		Handler: httpapi.Chain(mux,
			httpapi.Recover,
			httpapi.RequestID,
			httpapi.AccessLog,
			httpapi.Cors,
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	token, err := randomToken(16)
	if err != nil {
		log.Fatal(err)
	}
	mux.HandleFunc("/shutdown", shutdownHandler(&token, srv))

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("engine listening on http://%s (data=%s)", addr, dataDir)
	log.Printf("shutdown token: %s", token)

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
