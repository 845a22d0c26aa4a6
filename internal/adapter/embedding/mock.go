package embedding

import (
	"context"
	"hash/fnv"

	"itemsearch/internal/adapter/analyzer"
)

// MockEmbedder produces deterministic bag-of-words vectors for tests: each
// token is hashed into a bucket, so texts sharing words are cosine-similar.
type MockEmbedder struct {
	dimension int
}

// NewMockEmbedder creates a mock embedder with the given dimension.
func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dimension)
	for _, token := range analyzer.Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32())%e.dimension]++
	}
	return vec
}

func (e *MockEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e *MockEmbedder) EmbedMany(_ context.Context, texts []string, _ int) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
