// Package match bridges external evaluation results into persisted,
// deduplicated match rows.
package match

import (
	"context"
	"errors"

	"jobmatch-engine/internal/domain"
)

// Evaluator is the external LLM-backed scoring service. It either
// returns a complete structured evaluation or an error; there is no
// partial result and no default score.
type Evaluator interface {
	Evaluate(ctx context.Context, cvSummary string, l domain.Listing) (domain.Evaluation, error)
}

// ErrTransient marks evaluator failures worth retrying (timeouts, rate
// limits). Anything else is permanent for the current item.
var ErrTransient = errors.New("transient evaluator failure")

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
