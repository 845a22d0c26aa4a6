package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"itemsearch/internal/domain"
)

func TestLookupDimension(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"all-MiniLM-L6-v2", 384},
		{"all-mpnet-base-v2", 768},
		{"text-embedding-3-large", 3072},
		// Versioned variant matches its base family.
		{"all-minilm-l6-v2-finetuned", 384},
		{"custom/text-embedding-3-small-2024", 1536},
		// Completely unknown falls back to the default.
		{"some-future-model", 384},
	}

	for _, tt := range tests {
		if got := LookupDimension(tt.model); got != tt.want {
			t.Errorf("LookupDimension(%q) = %d, want %d", tt.model, got, tt.want)
		}
	}
}

// fakeEmbeddingServer answers the OpenAI-compatible embeddings endpoint
// with vectors of the given dimension.
func fakeEmbeddingServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp := embeddingResponse{}
		for i, text := range req.Input {
			vec := make([]float32, dim)
			for j, r := range text {
				vec[j%dim] += float32(r) / 1000
			}
			resp.Data = append(resp.Data, embeddingData{Embedding: vec, Index: i})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestEngineLazyLoadAndObservedDimension(t *testing.T) {
	srv := fakeEmbeddingServer(t, 512)
	defer srv.Close()

	// Lookup says 384 for an unknown model; the server answers with 512.
	eng := NewEngine("unknown-model", srv.URL, "ITEMSEARCH_TEST_NO_KEY")
	if eng.Dimension() != 384 {
		t.Fatalf("pre-load dimension: expected lookup default 384, got %d", eng.Dimension())
	}

	vec, err := eng.EmbedOne(context.Background(), "dragon longsword")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(vec) != 512 {
		t.Errorf("expected 512-dim vector, got %d", len(vec))
	}
	if eng.Dimension() != 512 {
		t.Errorf("observed dimension should win: expected 512, got %d", eng.Dimension())
	}
}

func TestEngineBatchOfOneEqualsSingle(t *testing.T) {
	srv := fakeEmbeddingServer(t, 64)
	defer srv.Close()

	eng := NewEngine("all-minilm", srv.URL, "ITEMSEARCH_TEST_NO_KEY")
	ctx := context.Background()

	one, err := eng.EmbedOne(ctx, "abyssal whip")
	if err != nil {
		t.Fatal(err)
	}
	many, err := eng.EmbedMany(ctx, []string{"abyssal whip"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(many) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(many))
	}
	if !reflect.DeepEqual(one, many[0]) {
		t.Error("embed_many([t]) != [embed_one(t)]")
	}
}

func TestEngineEmbedManyOrderAndBatching(t *testing.T) {
	srv := fakeEmbeddingServer(t, 32)
	defer srv.Close()

	eng := NewEngine("all-minilm", srv.URL, "ITEMSEARCH_TEST_NO_KEY")
	ctx := context.Background()

	texts := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	// Batch size 2 forces three sequential requests.
	got, err := eng.EmbedMany(ctx, texts, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(got))
	}

	for i, text := range texts {
		want, err := eng.EmbedOne(ctx, text)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got[i], want) {
			t.Errorf("vector %d not index-aligned with input", i)
		}
	}
}

func TestEngineLoadFailureIsDistinct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	eng := NewEngine("all-minilm", srv.URL, "ITEMSEARCH_TEST_NO_KEY")

	err := eng.Load(context.Background())
	if !errors.Is(err, domain.ErrModelLoadFailed) {
		t.Fatalf("expected ErrModelLoadFailed, got %v", err)
	}

	// The failed load is not retried; embeds keep reporting the failure.
	if _, err := eng.EmbedOne(context.Background(), "whip"); !errors.Is(err, domain.ErrModelLoadFailed) {
		t.Errorf("expected ErrModelLoadFailed from embed, got %v", err)
	}
}

func TestEngineReadyLifecycle(t *testing.T) {
	srv := fakeEmbeddingServer(t, 64)
	defer srv.Close()

	eng := NewEngine("all-minilm", srv.URL, "ITEMSEARCH_TEST_NO_KEY")

	if err := eng.Ready(); !errors.Is(err, domain.ErrModelNotLoaded) {
		t.Fatalf("expected ErrModelNotLoaded before load, got %v", err)
	}

	if err := eng.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := eng.Ready(); err != nil {
		t.Errorf("expected ready after load, got %v", err)
	}
}

func TestEngineReadyAfterFailedLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	eng := NewEngine("all-minilm", srv.URL, "ITEMSEARCH_TEST_NO_KEY")
	eng.Load(context.Background())

	if err := eng.Ready(); !errors.Is(err, domain.ErrModelLoadFailed) {
		t.Errorf("expected ErrModelLoadFailed, got %v", err)
	}
}

func TestEngineEmptyInput(t *testing.T) {
	srv := fakeEmbeddingServer(t, 8)
	defer srv.Close()

	eng := NewEngine("all-minilm", srv.URL, "ITEMSEARCH_TEST_NO_KEY")
	got, err := eng.EmbedMany(context.Background(), nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}
