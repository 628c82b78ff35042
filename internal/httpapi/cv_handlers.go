package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"jobmatch-engine/internal/cv"
	"jobmatch-engine/internal/fingerprint"
	"jobmatch-engine/internal/store"
)

type CVHandler struct {
	DB *sql.DB
}

type registerCVReq struct {
	Path        string `json:"path"`
	DisplayName string `json:"display_name"`
	SummaryPath string `json:"summary_path"`
}

type registerCVResp struct {
	store.CVVersion
	Created bool `json:"created"`
}

// Register serves POST /cv/register. Identical content under a new
// name returns the existing version with created=false.
func (h CVHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerCVReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_json", "invalid JSON: "+err.Error())
		return
	}

	summary := ""
	if req.SummaryPath != "" {
		b, err := os.ReadFile(req.SummaryPath)
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, "summary_unreadable", err.Error())
			return
		}
		summary = string(b)
	}

	version, created, err := cv.Register(r.Context(), h.DB, req.Path, req.DisplayName, summary)
	if errors.Is(err, fingerprint.ErrSourceUnreadable) {
		WriteError(w, r, http.StatusBadRequest, "cv_unreadable", err.Error())
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "register_failed", err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, registerCVResp{CVVersion: version, Created: created})
}

func (h CVHandler) List(w http.ResponseWriter, r *http.Request) {
	out, err := store.ListCVVersions(r.Context(), h.DB)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	if out == nil {
		out = []store.CVVersion{}
	}
	writeJSON(w, out)
}
