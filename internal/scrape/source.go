package scrape

import (
	"context"

	"jobmatch-engine/internal/domain"
)

// Source is the external listing provider. A page may be empty (end of
// results) and a page fetch may fail without failing the whole run.
type Source interface {
	Name() string
	FetchPage(ctx context.Context, term string, page int) ([]domain.Listing, error)
}
