// Package embedding provides the process-wide embedding engine. One engine
// instance is constructed at startup and shared by the sync loop and the
// search path; the underlying model is loaded at most once per process.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"itemsearch/internal/domain"
)

// knownModels maps embedding model families to their output dimension.
// The table is a hint: once the model actually responds, the observed
// dimension wins.
var knownModels = map[string]int{
	"all-minilm-l6-v2":       384,
	"all-minilm":             384,
	"all-mpnet-base-v2":      768,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// defaultDimension is used for completely unknown model identifiers.
const defaultDimension = 384

const defaultBatchSize = 100

// LookupDimension resolves a vector dimension from a model identifier.
// Versioned or variant names match their base family by substring.
func LookupDimension(model string) int {
	key := strings.ToLower(strings.TrimSpace(model))
	if dim, ok := knownModels[key]; ok {
		return dim
	}
	for family, dim := range knownModels {
		if strings.Contains(key, family) {
			return dim
		}
	}
	return defaultDimension
}

// Engine converts text into fixed-dimension vectors through an
// OpenAI-compatible embeddings endpoint. The model is loaded lazily on
// first use and the load is attempted exactly once.
type Engine struct {
	model   string
	baseURL string
	apiKey  string
	client  *http.Client

	once    sync.Once
	loadErr error

	mu        sync.RWMutex
	dimension int
	loaded    bool
}

// NewEngine creates an engine for the given model. The API key is read
// from the environment variable named by apiKeyEnv; a missing key is
// allowed for local endpoints that do not authenticate.
func NewEngine(model, baseURL, apiKeyEnv string) *Engine {
	return &Engine{
		model:     model,
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    os.Getenv(apiKeyEnv),
		dimension: LookupDimension(model),
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Load loads the model by probing the endpoint with a single request.
// Repeated calls return the first outcome; a failed load is not retried
// internally, retry policy belongs to the caller.
func (e *Engine) Load(ctx context.Context) error {
	e.once.Do(func() {
		vectors, err := e.embedBatch(ctx, []string{"warmup"})
		if err != nil {
			e.loadErr = fmt.Errorf("%w: %v", domain.ErrModelLoadFailed, err)
			return
		}
		if len(vectors) != 1 || len(vectors[0]) == 0 {
			e.loadErr = fmt.Errorf("%w: probe returned no vector", domain.ErrModelLoadFailed)
			return
		}

		e.mu.Lock()
		// The lookup table is a hint; the loaded model is ground truth.
		if observed := len(vectors[0]); observed != e.dimension {
			e.dimension = observed
		}
		e.loaded = true
		e.mu.Unlock()
	})
	return e.loadErr
}

// Ready reports the model state without triggering a load: nil once the
// model is loaded, domain.ErrModelNotLoaded before the first load attempt,
// the load failure after an unsuccessful one.
func (e *Engine) Ready() error {
	if e.loadErr != nil {
		return e.loadErr
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.loaded {
		return domain.ErrModelNotLoaded
	}
	return nil
}

// EmbedOne generates an embedding for a single text.
func (e *Engine) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if err := e.Load(ctx); err != nil {
		return nil, err
	}

	vectors, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}

// EmbedMany generates embeddings for the given texts in sequential batches
// of at most batchSize. Output order matches input order.
func (e *Engine) EmbedMany(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	if err := e.Load(ctx); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, vectors...)
	}

	return all, nil
}

// Dimension returns the embedding vector dimension. Before load this is
// the lookup-table value; after load, the observed value.
func (e *Engine) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

// ModelName returns the configured model identifier.
func (e *Engine) ModelName() string {
	return e.model
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *Engine) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Input: texts,
		Model: e.model,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}

	// Index-aligned output regardless of response ordering.
	vectors := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index >= 0 && data.Index < len(vectors) {
			vectors[data.Index] = data.Embedding
		}
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}

	return vectors, nil
}
