package httpapi

import (
	"database/sql"
	"sync/atomic"

	"jobmatch-engine/internal/config"
	"jobmatch-engine/internal/events"
	"jobmatch-engine/internal/queue"
)

type Deps struct {
	DB *sql.DB

	Hub *events.Hub

	// Atomic stores
	CfgVal       *atomic.Value // stores config.Config
	ScrapeStatus *atomic.Value // stores poll.Status

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Hand-off queue
	Bridge *queue.Bridge

	// StartScrape kicks one background poll run (inject for testability)
	StartScrape func()
}
