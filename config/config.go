package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the item search service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Sync      SyncConfig      `yaml:"sync"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP boundary configuration.
type ServerConfig struct {
	Addr          string `yaml:"addr"`
	MaxQueryChars int    `yaml:"max_query_chars"`
	MaxSearchK    int    `yaml:"max_search_k"`
	DefaultK      int    `yaml:"default_k"`
}

// StorageConfig holds file paths for the embedded stores.
type StorageConfig struct {
	ItemDBPath  string `yaml:"item_db_path"`
	PriceDBPath string `yaml:"price_db_path"`
}

// EmbeddingConfig holds embedding model configuration.
type EmbeddingConfig struct {
	Model     string `yaml:"model"`       // e.g. "all-MiniLM-L6-v2"
	BaseURL   string `yaml:"base_url"`    // OpenAI-compatible endpoint
	APIKeyEnv string `yaml:"api_key_env"` // Environment variable for API key
	BatchSize int    `yaml:"batch_size"`
}

// SyncConfig holds catalog synchronization configuration.
type SyncConfig struct {
	MappingURL      string `yaml:"mapping_url"`
	LatestURL       string `yaml:"latest_url"`
	UserAgent       string `yaml:"user_agent"`
	IntervalSeconds int    `yaml:"interval_seconds"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	EmbedBatchSize  int    `yaml:"embed_batch_size"`
}

// SearchConfig holds the hybrid ranking policy. The defaults match the
// observed production behavior; they are tunable, not re-derived.
type SearchConfig struct {
	Oversample     int     `yaml:"oversample"`      // candidate multiplier for the vector path
	LexicalLimit   int     `yaml:"lexical_limit"`   // cap on lexical candidates
	SemanticWeight float64 `yaml:"semantic_weight"` // weight of cosine similarity
	KeywordWeight  float64 `yaml:"keyword_weight"`  // weight of lexical presence
	PhraseBoost    float64 `yaml:"phrase_boost"`    // name contains full query
	TokenBoost     float64 `yaml:"token_boost"`     // name contains every token
	CacheSize      int     `yaml:"cache_size"`
	CacheTTLSecs   int     `yaml:"cache_ttl_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8000",
			MaxQueryChars: 500,
			MaxSearchK:    100,
			DefaultK:      10,
		},
		Storage: StorageConfig{
			ItemDBPath:  "data/items.db",
			PriceDBPath: "data/prices.db",
		},
		Embedding: EmbeddingConfig{
			Model:     "all-MiniLM-L6-v2",
			BaseURL:   "http://localhost:11434/v1",
			APIKeyEnv: "EMBEDDING_API_KEY",
			BatchSize: 100,
		},
		Sync: SyncConfig{
			MappingURL:      "https://prices.runescape.wiki/api/v1/osrs/mapping",
			LatestURL:       "https://prices.runescape.wiki/api/v1/osrs/latest",
			UserAgent:       "itemsearch/1.0",
			IntervalSeconds: 60,
			TimeoutSeconds:  30,
			EmbedBatchSize:  500,
		},
		Search: SearchConfig{
			Oversample:     3,
			LexicalLimit:   50,
			SemanticWeight: 0.7,
			KeywordWeight:  0.3,
			PhraseBoost:    0.15,
			TokenBoost:     0.10,
			CacheSize:      100,
			CacheTTLSecs:   300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for itemsearch.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "itemsearch.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".itemsearch", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// EnsureDataDirs creates the parent directories of the store paths.
func (c *Config) EnsureDataDirs() error {
	for _, p := range []string{c.Storage.ItemDBPath, c.Storage.PriceDBPath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
	}
	return nil
}
