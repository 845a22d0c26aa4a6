package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"itemsearch/config"
	"itemsearch/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "itemsearch",
	Short: "Semantic item search - sync, embed and search a game item catalog",
	Long: `itemsearch keeps a local copy of the game item catalog, embeds every
item's searchable text and serves hybrid semantic plus keyword search.

Example usage:
  itemsearch sync                # Run one catalog sync cycle
  itemsearch serve               # Start the HTTP API and the sync loop
  itemsearch search "rune sword" # Search from the command line`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			wd, werr := os.Getwd()
			if werr != nil {
				return fmt.Errorf("failed to get working directory: %w", werr)
			}
			cfg, err = config.LoadFromDir(wd)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./itemsearch.yaml)")
}

func GetConfig() *config.Config {
	return cfg
}

func newLogger() *logger.Logger {
	return logger.New(logger.ParseLevel(cfg.Logging.Level), cfg.Logging.Format == "json", nil)
}
