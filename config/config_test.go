package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Sync.IntervalSeconds != 60 {
		t.Errorf("expected IntervalSeconds=60, got %d", cfg.Sync.IntervalSeconds)
	}
	if cfg.Sync.EmbedBatchSize != 500 {
		t.Errorf("expected EmbedBatchSize=500, got %d", cfg.Sync.EmbedBatchSize)
	}
	if cfg.Search.SemanticWeight != 0.7 {
		t.Errorf("expected SemanticWeight=0.7, got %f", cfg.Search.SemanticWeight)
	}
	if cfg.Search.KeywordWeight != 0.3 {
		t.Errorf("expected KeywordWeight=0.3, got %f", cfg.Search.KeywordWeight)
	}
	if cfg.Search.Oversample != 3 {
		t.Errorf("expected Oversample=3, got %d", cfg.Search.Oversample)
	}
	if cfg.Server.MaxQueryChars != 500 {
		t.Errorf("expected MaxQueryChars=500, got %d", cfg.Server.MaxQueryChars)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "itemsearch.yaml")

	content := `
sync:
  interval_seconds: 300
  embed_batch_size: 100
search:
  phrase_boost: 0.2
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Sync.IntervalSeconds != 300 {
		t.Errorf("expected IntervalSeconds=300, got %d", cfg.Sync.IntervalSeconds)
	}
	if cfg.Sync.EmbedBatchSize != 100 {
		t.Errorf("expected EmbedBatchSize=100, got %d", cfg.Sync.EmbedBatchSize)
	}
	if cfg.Search.PhraseBoost != 0.2 {
		t.Errorf("expected PhraseBoost=0.2, got %f", cfg.Search.PhraseBoost)
	}
	// Untouched sections keep their defaults.
	if cfg.Search.SemanticWeight != 0.7 {
		t.Errorf("expected SemanticWeight default 0.7, got %f", cfg.Search.SemanticWeight)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "itemsearch.yaml")

	content := `
server:
  addr: ":9000"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("expected addr :9000, got %s", cfg.Server.Addr)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "out.yaml")

	cfg := DefaultConfig()
	cfg.Embedding.Model = "all-mpnet-base-v2"
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Embedding.Model != "all-mpnet-base-v2" {
		t.Errorf("expected saved model name, got %s", loaded.Embedding.Model)
	}
}
