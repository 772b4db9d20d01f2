// Package embedder provides text embedding clients for vector
// representations used throughout clipgraph: node identity, appearance
// merging, and search scoring.
//
// # Supported providers
//
//   - OpenAI: text-embedding-3-small and compatible models, via
//     github.com/sashabaranov/go-openai.
//   - EmbedEverything: local/offline embedding, via
//     github.com/soundprediction/go-embedeverything.
//
// # Resilience
//
// CachedClient wraps any Client with a process-wide content cache.
// CircuitBreakerClient wraps any Client with circuit breaking so a failing
// provider degrades to ErrEmbeddingUnavailable instead of blocking every
// subsequent call.
package embedder

import (
	"context"
	"errors"
)

// Errors returned by Client implementations and their decorators.
var (
	// ErrEmbeddingUnavailable is returned when the embedding provider
	// cannot service a request. Callers treat this as a recoverable
	// degradation: store a nil embedding and fall back to exact string
	// match for that component.
	ErrEmbeddingUnavailable = errors.New("embedder: embedding unavailable")

	// ErrDimensionMismatch names the case of two vectors of different
	// lengths. No function in this module returns it:
	// vecmath.CosineSimilarity reports that case as similarity 0.
	ErrDimensionMismatch = errors.New("embedder: dimension mismatch")
)

// Client embeds text into fixed-dimension vectors. Implementations must be
// deterministic for identical input within a process.
type Client interface {
	// Embed returns the embedding of text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns the embeddings of texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns F, the fixed embedding width for this client.
	Dimensions() int
}
