package domain

import "time"

// Item is one catalog entry. Only tradeable items (those the feed reports a
// price for) are ever stored.
type Item struct {
	ItemID    int64     `json:"item_id"`
	Name      string    `json:"name"`
	Examine   string    `json:"examine,omitempty"`
	Members   bool      `json:"members"`
	LowAlch   *int64    `json:"lowalch,omitempty"`
	HighAlch  *int64    `json:"highalch,omitempty"`
	BuyLimit  *int64    `json:"limit,omitempty"`
	Value     *int64    `json:"value,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	Embedding []float32 `json:"-"`
	TextHash  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PriceTick is one timestamped price observation. Either price may be
// absent when the feed reports partial data.
type PriceTick struct {
	ID         int64     `json:"id"`
	ItemID     int64     `json:"item_id"`
	ObservedAt time.Time `json:"timestamp"`
	HighPrice  *int64    `json:"high_price,omitempty"`
	LowPrice   *int64    `json:"low_price,omitempty"`
}

// HasPrice reports whether the tick carries at least one usable price.
func (t PriceTick) HasPrice() bool {
	return t.HighPrice != nil || t.LowPrice != nil
}

// SearchFilters are exact-match predicates applied to candidates. A nil
// field means no restriction.
type SearchFilters struct {
	Members *bool
}

// Match reports whether the item passes every set predicate.
func (f SearchFilters) Match(item Item) bool {
	if f.Members != nil && item.Members != *f.Members {
		return false
	}
	return true
}

// ScoredItem is one ranked search result.
type ScoredItem struct {
	Item  Item    `json:"item"`
	Score float64 `json:"similarity"`
}

// MappingEntry is one record from the feed's item-mapping endpoint.
type MappingEntry struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Examine  string `json:"examine"`
	Members  bool   `json:"members"`
	LowAlch  *int64 `json:"lowalch"`
	HighAlch *int64 `json:"highalch"`
	BuyLimit *int64 `json:"limit"`
	Value    *int64 `json:"value"`
	Icon     string `json:"icon"`
}

// PriceQuote is one entry from the feed's latest-price endpoint.
type PriceQuote struct {
	High *int64 `json:"high"`
	Low  *int64 `json:"low"`
}

// SyncStats summarizes one completed sync cycle.
type SyncStats struct {
	Created   int
	Updated   int
	Ticks     int
	Embedded  int
	Skipped   int
	Failed    int
	FetchedAt time.Time
	Elapsed   time.Duration
}
