package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"itemsearch/internal/adapter/feed"
	"itemsearch/internal/adapter/store"
	syncsvc "itemsearch/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one catalog sync cycle",
	Long: `Fetch the item mapping and latest price snapshots, embed new or
changed items and persist everything locally. This is the same cycle the
serve command runs in the background, executed once.

Examples:
  itemsearch sync
  itemsearch sync --mock-embedder`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVar(&serveMock, "mock-embedder", false, "use the deterministic mock embedder (development only)")
}

func runSync(cmd *cobra.Command, args []string) error {
	log := newLogger()

	if err := cfg.EnsureDataDirs(); err != nil {
		return fmt.Errorf("failed to create data directories: %w", err)
	}

	embedder := newEmbedder()

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

	feedClient := feed.NewClient(cfg.Sync.MappingURL, cfg.Sync.LatestURL, cfg.Sync.UserAgent,
		time.Duration(cfg.Sync.TimeoutSeconds)*time.Second)

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)
	}

	svc := syncsvc.New(feedClient, embedder, items, prices, log, syncsvc.Options{
		BatchSize: cfg.Sync.EmbedBatchSize,
		Progress:  progress,
	})

	fmt.Println("Syncing catalog...")
	stats, err := svc.RunCycle(context.Background())
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("\nSync complete in %s:\n", stats.Elapsed.Round(time.Millisecond))
	fmt.Printf("  Items created:  %d\n", stats.Created)
	fmt.Printf("  Items updated:  %d\n", stats.Updated)
	fmt.Printf("  Items embedded: %d\n", stats.Embedded)
	fmt.Printf("  Items skipped:  %d (untradeable)\n", stats.Skipped)
	fmt.Printf("  Price ticks:    %d\n", stats.Ticks)
	if stats.Failed > 0 {
		fmt.Printf("  Failures:       %d\n", stats.Failed)
	}

	return nil
}
