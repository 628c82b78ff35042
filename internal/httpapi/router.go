package httpapi

import "net/http"

// NewMux returns the raw mux so main() can still attach /shutdown (needs srv+token).
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Health
	hh := HealthHandler{DB: d.DB}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	// Matches
	mh := MatchesHandler{DB: d.DB}
	mux.HandleFunc("/matches", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: mh.List,
	}))
	mux.HandleFunc("/matches/one", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: mh.GetOne,
	}))

	// Scrape
	sch := ScrapeHandler{
		DB:           d.DB,
		ScrapeStatus: d.ScrapeStatus,
		StartScrape:  d.StartScrape,
	}
	mux.HandleFunc("/scrape/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sch.Status,
	}))
	mux.HandleFunc("/scrape/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sch.Run,
	}))
	mux.HandleFunc("/scrape/history", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sch.History,
	}))

	// Application queue
	qh := QueueHandler{DB: d.DB, Bridge: d.Bridge, Hub: d.Hub}
	mux.HandleFunc("/queue", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  qh.ListPending,
		http.MethodPost: qh.Enqueue,
	}))
	mux.HandleFunc("/queue/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  qh.GetByPath,  // /queue/{id}
		http.MethodPost: qh.PostByPath, // /queue/{id}/sent, /queue/{id}/failed
	}))

	// CV versions
	cvh := CVHandler{DB: d.DB}
	mux.HandleFunc("/cv", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: cvh.List,
	}))
	mux.HandleFunc("/cv/register", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: cvh.Register,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
		Hub:         d.Hub,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets
	sh := SecretsHandler{}
	mux.HandleFunc("/api/secrets/evaluator", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.SetEvaluatorKey,
	}))
	mux.HandleFunc("/api/secrets/smtp", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.SetSMTPPassword,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	// Maintenance
	dbh := DBHandler{DB: d.DB}
	mux.HandleFunc("/db/checkpoint", dbh.Checkpoint)

	return mux
}
