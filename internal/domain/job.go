package domain

import (
	"encoding/json"
	"time"
)

// Listing is one raw job posting as handed over by the external
// extractor, structured at the boundary. Raw keeps the original payload
// verbatim for downstream consumers that need fields we don't model.
type Listing struct {
	URL         string
	Title       string
	Company     string
	Location    string
	Salary      string // display only, never parsed
	Description string
	PostedAt    *time.Time
	Raw         json.RawMessage
}

// MatchKey identifies one evaluated (job, search-context, CV-version)
// combination. JobURL must already be normalized.
type MatchKey struct {
	JobURL        string `json:"job_url"`
	SearchTerm    string `json:"search_term"`
	CVFingerprint string `json:"cv_fingerprint"`
}
