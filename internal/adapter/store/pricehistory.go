package store

import (
	"fmt"
	"sync"
	"time"

	"crawshaw.io/sqlite"

	"itemsearch/internal/domain"
)

// PriceHistoryStore is an append-only time series of price observations
// backed by SQLite. Ticks are never updated or deleted; the schema still
// declares ON DELETE CASCADE toward items so a manual cleanup behaves
// sanely, but no code path deletes items.
type PriceHistoryStore struct {
	mu   sync.Mutex // sqlite conn is single-owner
	conn *sqlite.Conn
}

// NewPriceHistoryStore opens (or creates) the price database.
func NewPriceHistoryStore(path string) (*PriceHistoryStore, error) {
	conn, err := sqlite.OpenConn(path, sqlite.SQLITE_OPEN_CREATE|sqlite.SQLITE_OPEN_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open price db: %w", err)
	}

	s := &PriceHistoryStore{conn: conn}
	if err := s.createTable(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create price table: %w", err)
	}

	return s, nil
}

func (s *PriceHistoryStore) createTable() error {
	createSQL := `
	CREATE TABLE IF NOT EXISTS price_ticks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL REFERENCES items(item_id) ON DELETE CASCADE,
		observed_at INTEGER NOT NULL,
		high_price INTEGER,
		low_price INTEGER
	);`

	stmt, err := s.conn.Prepare(createSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare create table statement: %w", err)
	}
	defer stmt.Reset()

	if _, err := stmt.Step(); err != nil {
		return fmt.Errorf("failed to execute create table statement: %w", err)
	}

	indexSQL := `CREATE INDEX IF NOT EXISTS idx_price_ticks_item ON price_ticks (item_id, observed_at DESC);`
	idx, err := s.conn.Prepare(indexSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare index statement: %w", err)
	}
	defer idx.Reset()

	if _, err := idx.Step(); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Append stores one tick. Ticks with both prices absent are retained for
// lifecycle debugging; Latest skips them.
func (s *PriceHistoryStore) Append(tick domain.PriceTick) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	insertSQL := `
	INSERT INTO price_ticks (item_id, observed_at, high_price, low_price)
	VALUES (?, ?, ?, ?);`

	stmt, err := s.conn.Prepare(insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Reset()

	stmt.BindInt64(1, tick.ItemID)
	stmt.BindInt64(2, tick.ObservedAt.Unix())
	if tick.HighPrice != nil {
		stmt.BindInt64(3, *tick.HighPrice)
	} else {
		stmt.BindNull(3)
	}
	if tick.LowPrice != nil {
		stmt.BindInt64(4, *tick.LowPrice)
	} else {
		stmt.BindNull(4)
	}

	if _, err := stmt.Step(); err != nil {
		return fmt.Errorf("failed to insert tick for item %d: %w", tick.ItemID, err)
	}

	return nil
}

// Latest returns the most recent tick for the item that carries at least
// one price.
func (s *PriceHistoryStore) Latest(itemID int64) (domain.PriceTick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	selectSQL := `
	SELECT id, item_id, observed_at, high_price, low_price
	FROM price_ticks
	WHERE item_id = ? AND (high_price IS NOT NULL OR low_price IS NOT NULL)
	ORDER BY observed_at DESC, id DESC
	LIMIT 1;`

	stmt, err := s.conn.Prepare(selectSQL)
	if err != nil {
		return domain.PriceTick{}, fmt.Errorf("failed to prepare select statement: %w", err)
	}
	defer stmt.Reset()

	stmt.BindInt64(1, itemID)

	hasRow, err := stmt.Step()
	if err != nil {
		return domain.PriceTick{}, fmt.Errorf("failed to query latest tick: %w", err)
	}
	if !hasRow {
		return domain.PriceTick{}, domain.ErrNoPriceData
	}

	return scanTick(stmt), nil
}

// Recent returns up to n most recent ticks for the item, newest first.
// Partial-data ticks are included.
func (s *PriceHistoryStore) Recent(itemID int64, n int) ([]domain.PriceTick, error) {
	if n <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	selectSQL := `
	SELECT id, item_id, observed_at, high_price, low_price
	FROM price_ticks
	WHERE item_id = ?
	ORDER BY observed_at DESC, id DESC
	LIMIT ?;`

	stmt, err := s.conn.Prepare(selectSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare select statement: %w", err)
	}
	defer stmt.Reset()

	stmt.BindInt64(1, itemID)
	stmt.BindInt64(2, int64(n))

	var ticks []domain.PriceTick
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticks: %w", err)
		}
		if !hasRow {
			break
		}
		ticks = append(ticks, scanTick(stmt))
	}

	return ticks, nil
}

func scanTick(stmt *sqlite.Stmt) domain.PriceTick {
	tick := domain.PriceTick{
		ID:         stmt.ColumnInt64(0),
		ItemID:     stmt.ColumnInt64(1),
		ObservedAt: time.Unix(stmt.ColumnInt64(2), 0).UTC(),
	}
	if stmt.ColumnType(3) != sqlite.SQLITE_NULL {
		v := stmt.ColumnInt64(3)
		tick.HighPrice = &v
	}
	if stmt.ColumnType(4) != sqlite.SQLITE_NULL {
		v := stmt.ColumnInt64(4)
		tick.LowPrice = &v
	}
	return tick
}

// Close closes the store and releases the connection.
func (s *PriceHistoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
