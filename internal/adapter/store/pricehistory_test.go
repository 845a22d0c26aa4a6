package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"itemsearch/internal/domain"
)

func newTestPriceStore(t *testing.T) *PriceHistoryStore {
	t.Helper()
	s, err := NewPriceHistoryStore(filepath.Join(t.TempDir(), "prices.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func int64Ptr(v int64) *int64 { return &v }

func TestAppendAndLatest(t *testing.T) {
	s := newTestPriceStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ticks := []domain.PriceTick{
		{ItemID: 1305, ObservedAt: base, HighPrice: int64Ptr(59000), LowPrice: int64Ptr(57000)},
		{ItemID: 1305, ObservedAt: base.Add(time.Minute), HighPrice: int64Ptr(60000), LowPrice: int64Ptr(58000)},
		{ItemID: 4151, ObservedAt: base, HighPrice: int64Ptr(2500000)},
	}
	for _, tick := range ticks {
		if err := s.Append(tick); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := s.Latest(1305)
	if err != nil {
		t.Fatal(err)
	}
	if latest.HighPrice == nil || *latest.HighPrice != 60000 {
		t.Errorf("expected newest high 60000, got %v", latest.HighPrice)
	}
	if latest.LowPrice == nil || *latest.LowPrice != 58000 {
		t.Errorf("expected newest low 58000, got %v", latest.LowPrice)
	}
	if !latest.ObservedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("wrong observation time: %v", latest.ObservedAt)
	}

	// Partial tick: low absent stays nil.
	whip, err := s.Latest(4151)
	if err != nil {
		t.Fatal(err)
	}
	if whip.LowPrice != nil {
		t.Errorf("expected nil low price, got %v", whip.LowPrice)
	}
}

func TestLatestSkipsEmptyTicks(t *testing.T) {
	s := newTestPriceStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := s.Append(domain.PriceTick{ItemID: 7, ObservedAt: base, HighPrice: int64Ptr(100)}); err != nil {
		t.Fatal(err)
	}
	// A newer tick with both prices absent is retained but must not win.
	if err := s.Append(domain.PriceTick{ItemID: 7, ObservedAt: base.Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}

	latest, err := s.Latest(7)
	if err != nil {
		t.Fatal(err)
	}
	if latest.HighPrice == nil || *latest.HighPrice != 100 {
		t.Errorf("latest should skip the empty tick, got %+v", latest)
	}

	// Recent still includes the empty tick.
	recent, err := s.Recent(7, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 ticks, got %d", len(recent))
	}
	if recent[0].HasPrice() {
		t.Error("newest tick should be the empty one")
	}
}

func TestLatestNoData(t *testing.T) {
	s := newTestPriceStore(t)
	if _, err := s.Latest(12345); !errors.Is(err, domain.ErrNoPriceData) {
		t.Errorf("expected ErrNoPriceData, got %v", err)
	}
}

func TestRecentOrderAndLimit(t *testing.T) {
	s := newTestPriceStore(t)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := s.Append(domain.PriceTick{
			ItemID:     9,
			ObservedAt: base.Add(time.Duration(i) * time.Minute),
			HighPrice:  int64Ptr(int64(1000 + i)),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	recent, err := s.Recent(9, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 ticks, got %d", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].ObservedAt.After(recent[i-1].ObservedAt) {
			t.Error("ticks not newest-first")
		}
	}
	if *recent[0].HighPrice != 1004 {
		t.Errorf("expected newest tick first, got %d", *recent[0].HighPrice)
	}

	if got, _ := s.Recent(9, 0); got != nil {
		t.Errorf("n=0 should return nothing, got %v", got)
	}
}

func TestIDsMonotonicallyIncrease(t *testing.T) {
	s := newTestPriceStore(t)

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if err := s.Append(domain.PriceTick{ItemID: 2, ObservedAt: base, HighPrice: int64Ptr(1)}); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := s.Recent(2, 10)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].ID >= recent[i-1].ID {
			t.Error("ids should descend in newest-first order")
		}
	}
}
