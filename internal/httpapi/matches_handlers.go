package httpapi

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"jobmatch-engine/internal/fingerprint"
	"jobmatch-engine/internal/store"
)

type MatchesHandler struct {
	DB *sql.DB
}

// List serves GET /matches. Filters come from query parameters;
// anything absent means "no filter".
func (h MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := store.Filters{
		SearchTerm:       q.Get("search_term"),
		CVFingerprint:    q.Get("cv"),
		LocationContains: q.Get("location"),
	}

	if s := q.Get("min_overall"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, "bad_filter", "min_overall must be an integer")
			return
		}
		f.MinOverall = n
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			WriteError(w, r, http.StatusBadRequest, "bad_filter", "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	for param, dst := range map[string]*time.Time{
		"matched_after":  &f.MatchedAfter,
		"matched_before": &f.MatchedBefore,
	} {
		s := q.Get(param)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, "bad_filter", param+" must be RFC3339")
			return
		}
		*dst = t
	}

	out, err := store.Query(r.Context(), h.DB, f)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	if out == nil {
		out = []store.MatchRecord{}
	}
	writeJSON(w, out)
}

// GetOne serves GET /matches/one?url=&search_term=&cv=. All three key
// parts are required; a missing row is a plain 404.
func (h MatchesHandler) GetOne(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	url := q.Get("url")
	term := q.Get("search_term")
	cvFP := q.Get("cv")
	if url == "" || term == "" || cvFP == "" {
		WriteError(w, r, http.StatusBadRequest, "bad_key", "url, search_term and cv are all required")
		return
	}

	// stored keys always carry the normalized URL form
	if norm, err := fingerprint.NormalizeURL(url); err == nil {
		url = norm
	}

	m, err := store.GetMatch(r.Context(), h.DB, url, term, cvFP)
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no such match")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, m)
}
