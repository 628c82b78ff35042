package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"jobmatch-engine/internal/contact"
	"jobmatch-engine/internal/domain"
	"jobmatch-engine/internal/events"
	"jobmatch-engine/internal/fingerprint"
	"jobmatch-engine/internal/queue"
	"jobmatch-engine/internal/store"
)

type QueueHandler struct {
	DB     *sql.DB
	Bridge *queue.Bridge
	Hub    *events.Hub
}

type enqueueReq struct {
	JobURL        string          `json:"job_url"`
	SearchTerm    string          `json:"search_term"`
	CVFingerprint string          `json:"cv_fingerprint"`
	Letter        queue.Letter    `json:"letter"`
	Recipient     queue.Recipient `json:"recipient"`
}

// Enqueue serves POST /queue. When the recipient email is omitted the
// engine derives one from the stored match, flagged low confidence if
// it had to fall back to a guessed company address.
func (h QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req enqueueReq
	if err := dec.Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_json", "invalid JSON: "+err.Error())
		return
	}

	if norm, err := fingerprint.NormalizeURL(req.JobURL); err == nil {
		req.JobURL = norm
	}
	key := domain.MatchKey{
		JobURL:        req.JobURL,
		SearchTerm:    req.SearchTerm,
		CVFingerprint: req.CVFingerprint,
	}

	if strings.TrimSpace(req.Recipient.Email) == "" {
		m, err := store.GetMatch(r.Context(), h.DB, key.JobURL, key.SearchTerm, key.CVFingerprint)
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, r, http.StatusNotFound, "match_not_found", "no recorded match for that key")
			return
		}
		if err != nil {
			WriteError(w, r, http.StatusInternalServerError, "queue_failed", err.Error())
			return
		}
		rcpt, err := contact.Derive(r.Context(), h.DB, m)
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, r, http.StatusUnprocessableEntity, "no_recipient",
				"no recipient given and none could be derived from the listing")
			return
		}
		if err != nil {
			WriteError(w, r, http.StatusInternalServerError, "queue_failed", err.Error())
			return
		}
		if req.Recipient.Name != "" {
			rcpt.Name = req.Recipient.Name
		}
		req.Recipient = rcpt
	}

	app, err := h.Bridge.Enqueue(r.Context(), key, req.Letter, req.Recipient)
	if err != nil {
		h.writeEnqueueError(w, r, err)
		return
	}

	// the bridge's OnQueued hook publishes the queue.enqueued event
	WriteJSON(w, http.StatusCreated, app)
}

func (h QueueHandler) writeEnqueueError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *queue.ValidationError
	if errors.As(err, &verr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":  map[string]string{"code": "invalid_application", "message": verr.Error()},
			"fields": verr.Fields,
		})
		return
	}
	var derr *queue.DuplicateError
	if errors.As(err, &derr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":       map[string]string{"code": "duplicate_application", "message": derr.Error()},
			"existing_id": derr.ExistingID,
			"status":      derr.Status,
		})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, "match_not_found", "no recorded match for that key")
		return
	}
	WriteError(w, r, http.StatusInternalServerError, "queue_failed", err.Error())
}

func (h QueueHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	apps, err := h.Bridge.ListPending(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "queue_failed", err.Error())
		return
	}
	if apps == nil {
		apps = []queue.QueuedApplication{}
	}
	writeJSON(w, apps)
}

// GetByPath serves GET /queue/{id}.
func (h QueueHandler) GetByPath(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/queue/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, r, http.StatusBadRequest, "bad_id", "expected /queue/{id}")
		return
	}

	app, err := h.Bridge.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no such queued application")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "queue_failed", err.Error())
		return
	}
	writeJSON(w, app)
}

type markFailedReq struct {
	Reason string `json:"reason"`
}

// PostByPath serves POST /queue/{id}/sent and POST /queue/{id}/failed,
// reporting the external sender's outcome back to the queue.
func (h QueueHandler) PostByPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/queue/")
	id, action, ok := strings.Cut(rest, "/")
	if !ok || id == "" {
		WriteError(w, r, http.StatusBadRequest, "bad_id", "expected /queue/{id}/sent or /queue/{id}/failed")
		return
	}

	var err error
	switch action {
	case "sent":
		err = h.Bridge.MarkSent(r.Context(), id)
	case "failed":
		var req markFailedReq
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		err = h.Bridge.MarkFailed(r.Context(), id, req.Reason)
	default:
		WriteError(w, r, http.StatusBadRequest, "bad_action", "unknown action "+action)
		return
	}

	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no pending application with that id")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "queue_failed", err.Error())
		return
	}

	h.Hub.Publish(events.MakeEvent(RequestIDFrom(r.Context()), events.TypeQueueResolved, 1, map[string]string{
		"id": id, "action": action,
	}))
	w.WriteHeader(http.StatusNoContent)
}
