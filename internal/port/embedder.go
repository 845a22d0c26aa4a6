package port

import "context"

// Embedder generates vector embeddings for text. Implementations must be
// safe for concurrent calls from the sync loop and the search path.
type Embedder interface {
	// EmbedOne generates an embedding for a single text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedMany generates embeddings for the given texts, processed
	// sequentially in batches of at most batchSize (implementation default
	// when batchSize <= 0). Output is index-aligned with the input.
	EmbedMany(ctx context.Context, texts []string, batchSize int) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
