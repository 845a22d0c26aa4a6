package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"itemsearch/internal/adapter/analyzer"
	"itemsearch/internal/adapter/embedding"
	"itemsearch/internal/adapter/search"
	"itemsearch/internal/adapter/store"
	"itemsearch/internal/domain"
)

var (
	searchTopK    int
	searchJSON    bool
	searchMembers bool
	searchF2P     bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the local catalog from the command line",
	Long: `Run a hybrid semantic plus keyword search against the locally synced
catalog. Requires a prior sync.

Examples:
  itemsearch search "dragon scimitar"
  itemsearch search "red party hat" -k 5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.Flags().BoolVar(&searchMembers, "members", false, "only members items")
	searchCmd.Flags().BoolVar(&searchF2P, "f2p", false, "only free-to-play items")
	searchCmd.Flags().BoolVar(&serveMock, "mock-embedder", false, "use the deterministic mock embedder (development only)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]
	if len(analyzer.Tokenize(query)) == 0 {
		return fmt.Errorf("query contains no searchable tokens")
	}

	if _, err := os.Stat(cfg.Storage.ItemDBPath); os.IsNotExist(err) {
		return fmt.Errorf("no local catalog found. Run 'itemsearch sync' first")
	}

	embedder := newEmbedder()
	if engine, ok := embedder.(*embedding.Engine); ok {
		if err := engine.Load(context.Background()); err != nil {
			return fmt.Errorf("embedding model failed to load: %w", err)
		}
	}

	items, err := store.NewItemStore(cfg.Storage.ItemDBPath, embedder.Dimension())
	if err != nil {
		return fmt.Errorf("failed to open item store: %w", err)
	}
	defer items.Close()

	var filters domain.SearchFilters
	if searchMembers && searchF2P {
		return fmt.Errorf("--members and --f2p are mutually exclusive")
	}
	if searchMembers {
		v := true
		filters.Members = &v
	}
	if searchF2P {
		v := false
		filters.Members = &v
	}

	topK := cfg.Server.DefaultK
	if searchTopK > 0 {
		topK = searchTopK
	}

	ranker := search.NewRanker(embedder, items, rankingPolicy())
	results, err := ranker.Search(context.Background(), query, topK, filters)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), query)
	for i, r := range results {
		tag := "F2P"
		if r.Item.Members {
			tag = "Members"
		}
		fmt.Printf("%d. [%.3f] %s (#%d, %s)\n", i+1, r.Score, r.Item.Name, r.Item.ItemID, tag)
		if r.Item.Examine != "" {
			fmt.Printf("   %s\n", r.Item.Examine)
		}
	}

	return nil
}
