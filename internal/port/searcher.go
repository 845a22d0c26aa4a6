package port

import (
	"context"

	"itemsearch/internal/domain"
)

// Searcher ranks catalog items against a natural-language query.
type Searcher interface {
	// Search returns at most k results sorted by descending score, ties
	// broken by ascending item id. k == 0 returns an empty result without
	// touching the embedding model.
	Search(ctx context.Context, query string, k int, filters domain.SearchFilters) ([]domain.ScoredItem, error)
}
