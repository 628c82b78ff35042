package httpapi

import (
	"database/sql"
	"net/http"
	"strconv"
	"sync/atomic"

	"jobmatch-engine/internal/poll"
	"jobmatch-engine/internal/store"
)

type ScrapeHandler struct {
	DB           *sql.DB
	ScrapeStatus *atomic.Value // poll.Status
	StartScrape  func()
}

func (h ScrapeHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := poll.Status{}
	if v := h.ScrapeStatus.Load(); v != nil {
		st = v.(poll.Status)
	}
	writeJSON(w, st)
}

func (h ScrapeHandler) Run(w http.ResponseWriter, r *http.Request) {
	st := poll.Status{}
	if v := h.ScrapeStatus.Load(); v != nil {
		st = v.(poll.Status)
	}
	if st.Running {
		writeJSON(w, map[string]any{"ok": false, "msg": "already running"})
		return
	}

	h.StartScrape()
	writeJSON(w, map[string]any{"ok": true})
}

// History serves GET /scrape/history?search_term=&limit=. Entries come
// back newest first.
func (h ScrapeHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 50
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			WriteError(w, r, http.StatusBadRequest, "bad_filter", "limit must be a positive integer")
			return
		}
		limit = n
	}

	out, err := store.ListScrapeHistory(r.Context(), h.DB, q.Get("search_term"), limit)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	if out == nil {
		out = []store.ScrapeHistoryEntry{}
	}
	writeJSON(w, out)
}
