// Package queue converts a reviewed job match into a finalized,
// send-ready application record, exactly once, even when the user
// double-clicks or two tabs act on the same match.
package queue

import (
	"fmt"
	"strings"
	"time"

	"jobmatch-engine/internal/domain"
	"jobmatch-engine/internal/fingerprint"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Recipient is where the application goes. LowConfidence marks an
// address derived by fallback heuristic instead of extracted from the
// posting; the UI must force explicit confirmation before sending.
type Recipient struct {
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	LowConfidence bool   `json:"low_confidence,omitempty"`
}

// Letter is the externally generated application content.
type Letter struct {
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments,omitempty"` // file paths, must resolve
}

// QueuedApplication is one committed record in the pending area.
// Once sent it is immutable history.
type QueuedApplication struct {
	ID          string          `json:"id"`
	Fingerprint string          `json:"fingerprint"`
	Source      domain.MatchKey `json:"source"`
	Company     string          `json:"company"`
	JobTitle    string          `json:"job_title"`
	Recipient   Recipient       `json:"recipient"`
	Letter      Letter          `json:"letter"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
	FailReason  string          `json:"fail_reason,omitempty"`
}

// applicationFingerprint identifies the employer-facing target of an
// application: the same company and title with the same CV must never
// be applied to twice, whatever URL or search term found it.
func applicationFingerprint(company, title, cvFingerprint string) string {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), " ")
	}
	return fingerprint.Fingerprint([]byte(norm(company) + "|" + norm(title) + "|" + cvFingerprint))
}

// ValidationError enumerates every missing or invalid field at once so
// the caller can present all of them, not just the first.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "application validation failed: " + strings.Join(e.Fields, "; ")
}

// DuplicateError reports that this employer target is already queued or
// sent, with a reference to the existing record.
type DuplicateError struct {
	ExistingID string
	Status     Status
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("application already %s (id=%s)", e.Status, e.ExistingID)
}
