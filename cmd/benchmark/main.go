// Command benchmark measures search latency and similarity quality against
// a locally synced catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"itemsearch/config"
	"itemsearch/internal/adapter/embedding"
	"itemsearch/internal/adapter/search"
	"itemsearch/internal/adapter/store"
	"itemsearch/internal/domain"
	"itemsearch/internal/port"
)

func main() {
	cfgPath := flag.String("config", "", "config file (default is ./itemsearch.yaml)")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	rounds := flag.Int("rounds", 20, "Timed search repetitions")
	mock := flag.Bool("mock-embedder", false, "Use the deterministic mock embedder")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -q \"query\"")
		fmt.Println("\nTests:")
		fmt.Println("  1. Embedding infrastructure (model connection, item store)")
		fmt.Println("  2. Ranking quality (semantic vs keyword contribution)")
		fmt.Println("  3. Search latency over repeated queries")
		os.Exit(1)
	}

	var cfg *config.Config
	var err error
	if *cfgPath != "" {
		cfg, err = config.Load(*cfgPath)
	} else {
		wd, _ := os.Getwd()
		cfg, err = config.LoadFromDir(wd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var embedder port.Embedder
	if *mock {
		embedder = embedding.NewMockEmbedder(embedding.LookupDimension(cfg.Embedding.Model))
	} else {
		engine := embedding.NewEngine(cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.APIKeyEnv)
		if err := engine.Load(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Embedding model not available: %v\n", err)
			os.Exit(1)
		}
		embedder = engine
	}

	items, err := store.NewItemStore(cfg.Storage.ItemDBPath, embedder.Dimension())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening item store: %v\n", err)
		os.Exit(1)
	}
	defer items.Close()

	fmt.Println("HYBRID SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))

	count, _ := items.Count()
	fmt.Printf("Items indexed: %d\n", count)
	fmt.Printf("Model: %s\n", embedder.ModelName())
	fmt.Printf("Dimension: %d\n", embedder.Dimension())
	fmt.Println()

	ranker := search.NewRanker(embedder, items, search.Policy{
		Oversample:     cfg.Search.Oversample,
		LexicalLimit:   cfg.Search.LexicalLimit,
		SemanticWeight: cfg.Search.SemanticWeight,
		KeywordWeight:  cfg.Search.KeywordWeight,
		PhraseBoost:    cfg.Search.PhraseBoost,
		TokenBoost:     cfg.Search.TokenBoost,
	})

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	results, err := ranker.Search(ctx, *query, *topK, domain.SearchFilters{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Top %d matches:\n\n", len(results))
	for i, r := range results {
		rating := "LOW"
		if r.Score > 0.7 {
			rating = "HIGH"
		} else if r.Score > 0.5 {
			rating = "GOOD"
		} else if r.Score > 0.3 {
			rating = "OK"
		}
		fmt.Printf("%d. [%s %.3f] %s (#%d)\n", i+1, rating, r.Score, r.Item.Name, r.Item.ItemID)
	}
	fmt.Println()

	// Latency distribution over repeated identical searches.
	latencies := make([]time.Duration, 0, *rounds)
	for i := 0; i < *rounds; i++ {
		start := time.Now()
		if _, err := ranker.Search(ctx, *query, *topK, domain.SearchFilters{}); err != nil {
			fmt.Fprintf(os.Stderr, "Search error on round %d: %v\n", i+1, err)
			os.Exit(1)
		}
		latencies = append(latencies, time.Since(start))
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var total time.Duration
	for _, l := range latencies {
		total += l
	}

	fmt.Println("LATENCY")
	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("Rounds: %d\n", *rounds)
	fmt.Printf("Mean:   %s\n", (total / time.Duration(len(latencies))).Round(time.Microsecond))
	fmt.Printf("P50:    %s\n", latencies[len(latencies)/2].Round(time.Microsecond))
	fmt.Printf("P95:    %s\n", latencies[len(latencies)*95/100].Round(time.Microsecond))
	fmt.Printf("Max:    %s\n", latencies[len(latencies)-1].Round(time.Microsecond))
}
