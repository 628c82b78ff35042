package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmatch-engine/internal/config"
	"jobmatch-engine/internal/domain"
	"jobmatch-engine/internal/events"
	"jobmatch-engine/internal/poll"
	"jobmatch-engine/internal/queue"
	"jobmatch-engine/internal/store"
)

// setupServer runs the mux behind the same middleware chain the
// binary deploys.
func setupServer(t *testing.T) (*httptest.Server, *sql.DB, *events.Hub) {
	t.Helper()

	dir := t.TempDir()
	d, err := store.Open(filepath.Join(dir, "engine.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(d.Pool))
	t.Cleanup(func() { assert.NoError(t, d.Close()) })

	bridge, err := queue.NewBridge(d.Pool, filepath.Join(dir, "queue"))
	require.NoError(t, err)

	var cfgVal, scrapeStatus atomic.Value
	cfgVal.Store(config.Config{})
	scrapeStatus.Store(poll.Status{})

	hub := events.NewHub()
	mux := NewMux(Deps{
		DB:           d.Pool,
		Hub:          hub,
		CfgVal:       &cfgVal,
		ScrapeStatus: &scrapeStatus,
		UserCfgPath:  filepath.Join(dir, "config.yml"),
		LoadCfg:      func() (config.Config, error) { return config.Config{}, nil },
		Bridge:       bridge,
		StartScrape:  func() {},
	})

	srv := httptest.NewServer(Chain(mux, Recover, RequestID, AccessLog, Cors))
	t.Cleanup(srv.Close)
	return srv, d.Pool, hub
}

func seedMatch(t *testing.T, db *sql.DB, url, term, cvFP string, overall int) {
	t.Helper()
	out, err := store.InsertIfAbsent(context.Background(), db, store.MatchRecord{
		JobURL:        url,
		SearchTerm:    term,
		CVFingerprint: cvFP,
		Title:         "Platform Engineer",
		Company:       "SeedCo",
		Location:      "Zurich",
		Scores:        domain.Evaluation{Skills: 8, Overall: overall, Reasoning: "good overlap"},
		RawPayload:    []byte(`{"title":"Platform Engineer"}`),
	})
	require.NoError(t, err)
	require.Equal(t, store.Inserted, out)
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) (*http.Response, []byte) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestMatchesListFilters(t *testing.T) {
	srv, db, _ := setupServer(t)
	seedMatch(t, db, "https://site.ch/job/1", "IT", "cv1", 9)
	seedMatch(t, db, "https://site.ch/job/2", "IT", "cv1", 4)
	seedMatch(t, db, "https://site.ch/job/3", "DevOps", "cv1", 8)

	var all []store.MatchRecord
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/matches", &all))
	assert.Len(t, all, 3)
	assert.Equal(t, 9, all[0].Scores.Overall, "best score first")

	var filtered []store.MatchRecord
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/matches?search_term=IT&min_overall=5", &filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "https://site.ch/job/1", filtered[0].JobURL)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv, "/matches?min_overall=lots", nil))
}

func TestMatchesGetOne(t *testing.T) {
	srv, db, _ := setupServer(t)
	seedMatch(t, db, "https://site.ch/job/1", "IT", "cv1", 9)

	var m store.MatchRecord
	status := getJSON(t, srv, "/matches/one?url=https%3A%2F%2Fsite.ch%2Fjob%2F1&search_term=IT&cv=cv1", &m)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SeedCo", m.Company)

	// URL variants hit the same stored row
	status = getJSON(t, srv, "/matches/one?url=http%3A%2F%2Fwww.site.ch%2Fjob%2F1%2F&search_term=IT&cv=cv1", &m)
	assert.Equal(t, http.StatusOK, status)

	assert.Equal(t, http.StatusNotFound,
		getJSON(t, srv, "/matches/one?url=https%3A%2F%2Fsite.ch%2Fjob%2F99&search_term=IT&cv=cv1", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv, "/matches/one?url=https%3A%2F%2Fsite.ch%2Fjob%2F1", nil))
}

func TestQueueEnqueueAndResolve(t *testing.T) {
	srv, db, _ := setupServer(t)
	seedMatch(t, db, "https://site.ch/job/1", "IT", "cv1", 9)

	body := map[string]any{
		"job_url":        "https://site.ch/job/1",
		"search_term":    "IT",
		"cv_fingerprint": "cv1",
		"letter":         map[string]any{"subject": "Application", "body": "Dear team"},
		"recipient":      map[string]any{"email": "jobs@seedco.ch"},
	}

	resp, raw := postJSON(t, srv, "/queue", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var app queue.QueuedApplication
	require.NoError(t, json.Unmarshal(raw, &app))
	assert.NotEmpty(t, app.ID)
	assert.Equal(t, queue.StatusPending, app.Status)

	// same employer target again is a conflict
	resp, raw = postJSON(t, srv, "/queue", body)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var dup struct {
		ExistingID string `json:"existing_id"`
	}
	require.NoError(t, json.Unmarshal(raw, &dup))
	assert.Equal(t, app.ID, dup.ExistingID)

	var pending []queue.QueuedApplication
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/queue", &pending))
	require.Len(t, pending, 1)

	resp, _ = postJSON(t, srv, "/queue/"+app.ID+"/sent", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.Equal(t, http.StatusOK, getJSON(t, srv, "/queue", &pending))
	assert.Empty(t, pending)

	var got queue.QueuedApplication
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/queue/"+app.ID, &got))
	assert.Equal(t, queue.StatusSent, got.Status)
}

func TestQueueEnqueueValidation(t *testing.T) {
	srv, db, _ := setupServer(t)
	seedMatch(t, db, "https://site.ch/job/1", "IT", "cv1", 9)

	resp, raw := postJSON(t, srv, "/queue", map[string]any{
		"job_url":        "https://site.ch/job/1",
		"search_term":    "IT",
		"cv_fingerprint": "cv1",
		"letter":         map[string]any{"subject": "", "body": ""},
		"recipient":      map[string]any{"email": "not-an-email"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var out struct {
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.NotEmpty(t, out.Fields)
}

func TestQueueEnqueueUnknownMatch(t *testing.T) {
	srv, _, _ := setupServer(t)

	resp, _ := postJSON(t, srv, "/queue", map[string]any{
		"job_url":        "https://site.ch/job/404",
		"search_term":    "IT",
		"cv_fingerprint": "cv1",
		"letter":         map[string]any{"subject": "Application", "body": "Dear team"},
		"recipient":      map[string]any{"email": "jobs@seedco.ch"},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestScrapeStatusAndHistory(t *testing.T) {
	srv, db, _ := setupServer(t)

	var st poll.Status
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/scrape/status", &st))
	assert.False(t, st.Running)

	store.RecordScrapeHistory(context.Background(), db, store.ScrapeHistoryEntry{
		SearchTerm: "IT", Page: 1, Found: 5, NewCount: 2, DuplicateCount: 3,
	})

	var hist []store.ScrapeHistoryEntry
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/scrape/history?search_term=IT", &hist))
	require.Len(t, hist, 1)
	assert.Equal(t, 5, hist[0].Found)
}

func TestHealth(t *testing.T) {
	srv, _, _ := setupServer(t)
	assert.Equal(t, http.StatusOK, getJSON(t, srv, "/health", nil))
}

// The SSE stream must survive the full middleware chain; the access
// log wrapper has to pass Flush through to the underlying writer.
func TestEventsStreamThroughMiddleware(t *testing.T) {
	srv, _, hub := setupServer(t)

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	readData := func() string {
		for sc.Scan() {
			if line := sc.Text(); strings.HasPrefix(line, "data: ") {
				return strings.TrimPrefix(line, "data: ")
			}
		}
		t.Fatalf("stream ended early: %v", sc.Err())
		return ""
	}

	var ping events.Event
	require.NoError(t, json.Unmarshal([]byte(readData()), &ping))
	assert.Equal(t, "ping", ping.Type)

	// the ping arrived, so the subscription is live; published events
	// must reach the client too
	hub.Publish(events.MakeEvent("", events.TypeMatchRecorded, 1, map[string]string{"job_url": "https://site.ch/job/1"}))

	var evt events.Event
	require.NoError(t, json.Unmarshal([]byte(readData()), &evt))
	assert.Equal(t, events.TypeMatchRecorded, evt.Type)
}
