// Package sync implements the catalog synchronization service: a single
// background loop that polls the external feed, diffs it against stored
// state, re-embeds only what changed and persists items and price ticks.
package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"itemsearch/internal/adapter/search"
	"itemsearch/internal/domain"
	"itemsearch/internal/logger"
	"itemsearch/internal/port"
)

const (
	defaultInterval  = 60 * time.Second
	defaultBatchSize = 500
)

// Options tune the service. Zero values mean the defaults.
type Options struct {
	// Interval is the idle sleep between cycles.
	Interval time.Duration

	// BatchSize bounds each embedding request.
	BatchSize int

	// OnCycleDone, when set, is invoked after every cycle that persisted
	// data (used to invalidate the search cache).
	OnCycleDone func(domain.SyncStats)

	// Progress, when set, receives embedding progress (done, total).
	Progress func(done, total int)
}

// Service drives the Fetching -> Diffing -> Embedding -> Persisting cycle.
// Items are only ever added or updated; nothing is deleted when an item
// drops out of a later feed snapshot.
type Service struct {
	feed     port.FeedClient
	embedder port.Embedder
	items    port.ItemStore
	prices   port.PriceStore
	log      *logger.Logger
	opts     Options
}

// New creates a sync service. All collaborators are required; the logger
// may not be nil.
func New(feed port.FeedClient, embedder port.Embedder, items port.ItemStore, prices port.PriceStore, log *logger.Logger, opts Options) *Service {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &Service{
		feed:     feed,
		embedder: embedder,
		items:    items,
		prices:   prices,
		log:      log.With("component", "sync"),
		opts:     opts,
	}
}

// Run executes cycles until ctx is cancelled. The first cycle runs
// immediately; after that the full interval elapses between the end of one
// cycle and the start of the next, so a slow cycle delays the schedule
// instead of backing it up. A failed cycle is logged and absorbed, never
// terminating the loop.
func (s *Service) Run(ctx context.Context) {
	s.log.Info("sync loop starting (interval %s, batch size %d)", s.opts.Interval, s.opts.BatchSize)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sync loop stopping: %v", ctx.Err())
			return
		case <-timer.C:
			s.cycle(ctx)
			timer.Reset(s.opts.Interval)
		}
	}
}

func (s *Service) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	log := s.log.With("cycle", uuid.NewString()[:8])

	stats, err := s.RunCycle(ctx)
	if err != nil {
		log.Error("cycle aborted: %v", err)
		return
	}

	log.Info("cycle complete: %d created, %d updated, %d ticks, %d embedded, %d skipped, %d failed in %s",
		stats.Created, stats.Updated, stats.Ticks, stats.Embedded, stats.Skipped, stats.Failed,
		stats.Elapsed.Round(time.Millisecond))
}

// pendingEntry is one tradeable mapping entry staged for persistence.
type pendingEntry struct {
	entry    domain.MappingEntry
	quote    domain.PriceQuote
	hash     string
	text     string
	existing domain.Item
	isNew    bool
	vector   []float32
}

// RunCycle performs one full fetch-diff-embed-persist pass. Fetch failures
// abort the cycle before any write; per-item persistence failures are
// logged and skipped without aborting the rest.
func (s *Service) RunCycle(ctx context.Context) (domain.SyncStats, error) {
	start := time.Now()
	stats := domain.SyncStats{FetchedAt: start.UTC()}

	// Fetching: both snapshots must arrive before anything is written.
	mapping, err := s.feed.FetchMapping(ctx)
	if err != nil {
		return stats, err
	}
	prices, err := s.feed.FetchLatestPrices(ctx)
	if err != nil {
		return stats, err
	}

	// Diffing: untradeable entries (no price) are excluded entirely; the
	// stored text hash decides whether an entry needs re-embedding.
	var pending []pendingEntry
	var embedIdx []int
	var embedTexts []string

	for _, entry := range mapping {
		if entry.ID == 0 {
			stats.Skipped++
			continue
		}
		quote, tradeable := prices[entry.ID]
		if !tradeable {
			stats.Skipped++
			continue
		}

		text := search.SearchableTextForEntry(entry)
		p := pendingEntry{
			entry: entry,
			quote: quote,
			text:  text,
			hash:  search.TextHash(text),
		}

		existing, err := s.items.Get(entry.ID)
		switch {
		case errors.Is(err, domain.ErrItemNotFound):
			p.isNew = true
		case err != nil:
			s.log.Warn("lookup failed for item %d: %v", entry.ID, err)
			stats.Failed++
			continue
		default:
			p.existing = existing
		}

		if p.isNew || p.existing.TextHash != p.hash || len(p.existing.Embedding) == 0 {
			embedIdx = append(embedIdx, len(pending))
			embedTexts = append(embedTexts, text)
		}
		pending = append(pending, p)
	}

	// Embedding: sequential batches bound model memory use. A failed batch
	// is logged and its entries are persisted without a vector; the missing
	// embedding puts them back in the needs-embedding set next cycle.
	if len(embedTexts) > 0 {
		s.log.Debug("embedding %d of %d entries", len(embedTexts), len(pending))

		batch := s.opts.BatchSize
		for from := 0; from < len(embedTexts); from += batch {
			to := from + batch
			if to > len(embedTexts) {
				to = len(embedTexts)
			}

			vectors, err := s.embedder.EmbedMany(ctx, embedTexts[from:to], batch)
			if err != nil {
				s.log.Error("embedding batch %d-%d failed: %v", from, to, err)
				continue
			}
			for i, vec := range vectors {
				pending[embedIdx[from+i]].vector = vec
				stats.Embedded++
			}

			if s.opts.Progress != nil {
				s.opts.Progress(to, len(embedTexts))
			}
		}
	}

	// Persisting: every retained entry is upserted so scalar fields stay
	// fresh even without re-embedding; one bad record never aborts the
	// rest of the cycle's writes.
	for _, p := range pending {
		item := domain.Item{
			ItemID:   p.entry.ID,
			Name:     p.entry.Name,
			Examine:  p.entry.Examine,
			Members:  p.entry.Members,
			LowAlch:  p.entry.LowAlch,
			HighAlch: p.entry.HighAlch,
			BuyLimit: p.entry.BuyLimit,
			Value:    p.entry.Value,
			Icon:     p.entry.Icon,
			TextHash: p.hash,
		}
		if p.vector != nil {
			item.Embedding = p.vector
		} else if !p.isNew {
			item.Embedding = p.existing.Embedding
		}

		if err := s.items.Upsert(item); err != nil {
			s.log.Warn("upsert failed for item %d: %v", item.ItemID, err)
			stats.Failed++
			continue
		}
		if p.isNew {
			stats.Created++
		} else {
			stats.Updated++
		}

		tick := domain.PriceTick{
			ItemID:     p.entry.ID,
			ObservedAt: stats.FetchedAt,
			HighPrice:  p.quote.High,
			LowPrice:   p.quote.Low,
		}
		if err := s.prices.Append(tick); err != nil {
			s.log.Warn("tick append failed for item %d: %v", item.ItemID, err)
			stats.Failed++
			continue
		}
		stats.Ticks++
	}

	stats.Elapsed = time.Since(start)

	if s.opts.OnCycleDone != nil {
		s.opts.OnCycleDone(stats)
	}

	return stats, nil
}
