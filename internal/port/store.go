package port

import "itemsearch/internal/domain"

// ItemDistance is one nearest-neighbor candidate. Distance is cosine
// distance (1 - similarity), ascending is better.
type ItemDistance struct {
	Item     domain.Item
	Distance float64
}

// ItemStore persists catalog items and their embeddings. Items are only
// ever added or updated, never deleted by the sync path.
type ItemStore interface {
	// Upsert inserts or updates an item by its id. Updating preserves
	// CreatedAt and refreshes UpdatedAt. The write is atomic per item.
	Upsert(item domain.Item) error

	// Get returns the item with the given id, or domain.ErrItemNotFound.
	Get(itemID int64) (domain.Item, error)

	// List returns up to limit items after skipping offset, restricted by
	// filters, in ascending id order.
	List(limit, offset int, filters domain.SearchFilters) ([]domain.Item, error)

	// Nearest returns at most k items ordered by ascending cosine distance
	// to the query vector. Items failing a filter never appear.
	Nearest(query []float32, k int, filters domain.SearchFilters) ([]ItemDistance, error)

	// LexicalMatch returns up to limit items whose name contains every
	// word, case-insensitively, restricted by filters.
	LexicalMatch(words []string, limit int, filters domain.SearchFilters) ([]domain.Item, error)

	// Count returns the number of stored items.
	Count() (int, error)

	Close() error
}

// PriceStore is an append-only time series of price observations.
type PriceStore interface {
	// Append stores one tick. Ticks are never updated or deleted.
	Append(tick domain.PriceTick) error

	// Latest returns the most recent tick for the item that carries at
	// least one price, or domain.ErrNoPriceData.
	Latest(itemID int64) (domain.PriceTick, error)

	// Recent returns up to n most recent ticks for the item, newest first,
	// including partial-data ticks.
	Recent(itemID int64, n int) ([]domain.PriceTick, error)

	Close() error
}
