// Package store provides the persistent item catalog (bbolt) and price
// history (sqlite) stores.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"itemsearch/internal/domain"
	"itemsearch/internal/port"
	"itemsearch/internal/vector"
)

var (
	bucketItems   = []byte("items")
	bucketVectors = []byte("vectors")
)

// ItemStore keeps catalog items in BoltDB with an in-memory copy for
// search. Nearest-neighbor lookup is a brute-force cosine scan; the cache
// is updated inside the upsert lock, so a reader never observes a
// half-written record and never misses an item upserted before its call.
type ItemStore struct {
	db        *bbolt.DB
	dimension int

	mu    sync.RWMutex
	items map[int64]domain.Item
}

// itemMeta is the persisted representation, without the vector.
type itemMeta struct {
	Name      string `json:"name"`
	Examine   string `json:"examine,omitempty"`
	Members   bool   `json:"members"`
	LowAlch   *int64 `json:"lowalch,omitempty"`
	HighAlch  *int64 `json:"highalch,omitempty"`
	BuyLimit  *int64 `json:"limit,omitempty"`
	Value     *int64 `json:"value,omitempty"`
	Icon      string `json:"icon,omitempty"`
	TextHash  string `json:"text_hash,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// NewItemStore opens (or creates) the item database. All stored vectors
// must have the given dimension; changing the embedding model requires a
// full re-embed into a fresh store.
func NewItemStore(path string, dimension int) (*ItemStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open item db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketItems, bucketVectors} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &ItemStore{
		db:        db,
		dimension: dimension,
		items:     make(map[int64]domain.Item),
	}

	if err := s.loadAll(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	return s, nil
}

func (s *ItemStore) loadAll() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		items := tx.Bucket(bucketItems)
		vectors := tx.Bucket(bucketVectors)

		return items.ForEach(func(k, v []byte) error {
			var meta itemMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return nil // skip corrupted entries
			}

			item := metaToItem(btoi(k), meta)
			if blob := vectors.Get(k); blob != nil {
				if vec, err := vector.Decode(blob); err == nil {
					item.Embedding = vec
				}
			}

			s.items[item.ItemID] = item
			return nil
		})
	})
}

// Upsert inserts or updates an item. CreatedAt is preserved for existing
// items; UpdatedAt is always refreshed.
func (s *ItemStore) Upsert(item domain.Item) error {
	if len(item.Embedding) != 0 && len(item.Embedding) != s.dimension {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(item.Embedding))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.items[item.ItemID]; ok {
		item.CreatedAt = existing.CreatedAt
	} else if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	err := s.db.Update(func(tx *bbolt.Tx) error {
		key := itob(item.ItemID)

		data, err := json.Marshal(itemToMeta(item))
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketItems).Put(key, data); err != nil {
			return err
		}

		if len(item.Embedding) > 0 {
			blob, err := vector.Encode(item.Embedding)
			if err != nil {
				return err
			}
			return tx.Bucket(bucketVectors).Put(key, blob)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert item %d: %w", item.ItemID, err)
	}

	s.items[item.ItemID] = item
	return nil
}

// Get returns the item with the given id.
func (s *ItemStore) Get(itemID int64) (domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return domain.Item{}, domain.ErrItemNotFound
	}
	return item, nil
}

// List returns items in ascending id order, restricted by filters.
func (s *ItemStore) List(limit, offset int, filters domain.SearchFilters) ([]domain.Item, error) {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.items))
	for id, item := range s.items {
		if filters.Match(item) {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.items[id])
	}
	return out, nil
}

// Nearest returns at most k items by ascending cosine distance to the
// query vector. Items failing a filter or lacking an embedding never
// appear. Ties are broken by ascending item id for determinism.
func (s *ItemStore) Nearest(query []float32, k int, filters domain.SearchFilters) ([]port.ItemDistance, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(query))
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]port.ItemDistance, 0, len(s.items))
	for _, item := range s.items {
		if len(item.Embedding) == 0 || !filters.Match(item) {
			continue
		}
		candidates = append(candidates, port.ItemDistance{
			Item:     item,
			Distance: vector.CosineDistance(query, item.Embedding),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].Item.ItemID < candidates[j].Item.ItemID
	})

	if k < len(candidates) {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// LexicalMatch returns up to limit items whose name contains every word,
// case-insensitively, in ascending id order.
func (s *ItemStore) LexicalMatch(words []string, limit int, filters domain.SearchFilters) ([]domain.Item, error) {
	if len(words) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.Item
	for _, item := range s.items {
		if !filters.Match(item) {
			continue
		}
		name := strings.ToLower(item.Name)
		ok := true
		for _, w := range words {
			if !strings.Contains(name, strings.ToLower(w)) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, item)
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ItemID < matched[j].ItemID })
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// Count returns the number of stored items.
func (s *ItemStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

// Dimension returns the store's fixed vector dimension.
func (s *ItemStore) Dimension() int {
	return s.dimension
}

// Close closes the underlying database.
func (s *ItemStore) Close() error {
	return s.db.Close()
}

func itemToMeta(item domain.Item) itemMeta {
	return itemMeta{
		Name:      item.Name,
		Examine:   item.Examine,
		Members:   item.Members,
		LowAlch:   item.LowAlch,
		HighAlch:  item.HighAlch,
		BuyLimit:  item.BuyLimit,
		Value:     item.Value,
		Icon:      item.Icon,
		TextHash:  item.TextHash,
		CreatedAt: item.CreatedAt.Unix(),
		UpdatedAt: item.UpdatedAt.Unix(),
	}
}

func metaToItem(id int64, meta itemMeta) domain.Item {
	return domain.Item{
		ItemID:    id,
		Name:      meta.Name,
		Examine:   meta.Examine,
		Members:   meta.Members,
		LowAlch:   meta.LowAlch,
		HighAlch:  meta.HighAlch,
		BuyLimit:  meta.BuyLimit,
		Value:     meta.Value,
		Icon:      meta.Icon,
		TextHash:  meta.TextHash,
		CreatedAt: time.Unix(meta.CreatedAt, 0).UTC(),
		UpdatedAt: time.Unix(meta.UpdatedAt, 0).UTC(),
	}
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}
