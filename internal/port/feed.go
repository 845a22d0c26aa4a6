package port

import (
	"context"

	"itemsearch/internal/domain"
)

// FeedClient talks to the external catalog/price feed. Both endpoints
// return full snapshots; there is no delta API.
type FeedClient interface {
	// FetchMapping retrieves the full item-mapping snapshot.
	FetchMapping(ctx context.Context) ([]domain.MappingEntry, error)

	// FetchLatestPrices retrieves the full latest-price snapshot, keyed by
	// item id. Entries with neither price present are dropped.
	FetchLatestPrices(ctx context.Context) (map[int64]domain.PriceQuote, error)
}
