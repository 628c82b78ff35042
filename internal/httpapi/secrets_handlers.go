package httpapi

import (
	"encoding/json"
	"net/http"

	"jobmatch-engine/internal/secrets"
)

type SecretsHandler struct{}

type setEvaluatorKeyReq struct {
	APIKey string `json:"api_key"`
}

func (h SecretsHandler) SetEvaluatorKey(w http.ResponseWriter, r *http.Request) {
	var req setEvaluatorKeyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	if err := secrets.SetEvaluatorAPIKey(req.APIKey); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keyring_failed", "failed to store key: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setSMTPPasswordReq struct {
	Account  string `json:"account"`
	Password string `json:"password"`
}

func (h SecretsHandler) SetSMTPPassword(w http.ResponseWriter, r *http.Request) {
	var req setSMTPPasswordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	if err := secrets.SetSMTPPassword(req.Account, req.Password); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keyring_failed", "failed to store password: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
