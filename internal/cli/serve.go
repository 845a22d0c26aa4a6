package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"itemsearch/internal/adapter/cache"
	"itemsearch/internal/adapter/embedding"
	"itemsearch/internal/adapter/feed"
	"itemsearch/internal/adapter/search"
	"itemsearch/internal/adapter/store"
	"itemsearch/internal/domain"
	"itemsearch/internal/port"
	"itemsearch/internal/server"
	syncsvc "itemsearch/internal/sync"
)

var (
	serveAddr   string
	serveNoSync bool
	serveMock   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the background sync loop",
	Long: `Start the search API. The embedding model is loaded before the server
accepts traffic; a model that fails to load aborts startup. Unless --no-sync
is given, a background loop keeps the catalog and price history fresh.

Examples:
  itemsearch serve
  itemsearch serve --addr :9000 --no-sync`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveNoSync, "no-sync", false, "disable the background sync loop")
	serveCmd.Flags().BoolVar(&serveMock, "mock-embedder", false, "use the deterministic mock embedder (development only)")
}

// newEmbedder returns the configured embedding backend. The mock backend
// never needs loading and is only meant for local development.
func newEmbedder() port.Embedder {
	if serveMock {
		return embedding.NewMockEmbedder(embedding.LookupDimension(cfg.Embedding.Model))
	}
	return embedding.NewEngine(cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.APIKeyEnv)
}

func rankingPolicy() search.Policy {
	return search.Policy{
		Oversample:     cfg.Search.Oversample,
		LexicalLimit:   cfg.Search.LexicalLimit,
		SemanticWeight: cfg.Search.SemanticWeight,
		KeywordWeight:  cfg.Search.KeywordWeight,
		PhraseBoost:    cfg.Search.PhraseBoost,
		TokenBoost:     cfg.Search.TokenBoost,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder := newEmbedder()

	// Fail closed: a server that cannot embed queries cannot search.
	if engine, ok := embedder.(*embedding.Engine); ok {
		log.Info("loading embedding model %s", cfg.Embedding.Model)
		if err := engine.Load(ctx); err != nil {
			return fmt.Errorf("embedding model failed to load: %w", err)
		}
	}
	log.Info("model %s ready (%d dimensions)", embedder.ModelName(), embedder.Dimension())

	if err := cfg.EnsureDataDirs(); err != nil {
		return fmt.Errorf("failed to create data directories: %w", err)
	}

	items, err := store.NewItemStore(cfg.Storage.ItemDBPath, embedder.Dimension())
	if err != nil {
		return fmt.Errorf("failed to open item store: %w", err)
	}
	defer items.Close()

	prices, err := store.NewPriceHistoryStore(cfg.Storage.PriceDBPath)
	if err != nil {
		return fmt.Errorf("failed to open price store: %w", err)
	}
	defer prices.Close()

	qc := cache.NewQueryCache(cfg.Search.CacheSize, time.Duration(cfg.Search.CacheTTLSecs)*time.Second)

	if !serveNoSync {
		feedClient := feed.NewClient(cfg.Sync.MappingURL, cfg.Sync.LatestURL, cfg.Sync.UserAgent,
			time.Duration(cfg.Sync.TimeoutSeconds)*time.Second)
		svc := syncsvc.New(feedClient, embedder, items, prices, log, syncsvc.Options{
			Interval:  time.Duration(cfg.Sync.IntervalSeconds) * time.Second,
			BatchSize: cfg.Sync.EmbedBatchSize,
			OnCycleDone: func(domain.SyncStats) {
				qc.Invalidate()
			},
		})
		go svc.Run(ctx)
	}

	ranker := search.NewRanker(embedder, items, rankingPolicy())

	srv := server.New(ranker, embedder, items, prices, qc, log, server.Limits{
		MaxQueryChars: cfg.Server.MaxQueryChars,
		MaxSearchK:    cfg.Server.MaxSearchK,
		DefaultK:      cfg.Server.DefaultK,
	})

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	return srv.Serve(ctx, addr)
}
