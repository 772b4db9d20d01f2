package embedder

import (
	"context"
	"fmt"

	goembed "github.com/soundprediction/go-embedeverything/pkg/embedder"
)

// EmbedEverythingClient implements Client for local/offline embedding via
// go-embedeverything, for deployments without an external embedding
// provider.
type EmbedEverythingClient struct {
	client     *goembed.Embedder
	dimensions int
}

// EmbedEverythingConfig configures an EmbedEverythingClient.
type EmbedEverythingConfig struct {
	Model      string
	Dimensions int
}

// NewEmbedEverythingClient creates an EmbedEverythingClient.
func NewEmbedEverythingClient(cfg EmbedEverythingConfig) (*EmbedEverythingClient, error) {
	client, err := goembed.NewEmbedder(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("embedder: failed to create embed-everything client: %w", err)
	}

	return &EmbedEverythingClient{
		client:     client,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed implements Client.
func (e *EmbedEverythingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrEmbeddingUnavailable)
	}
	return embeddings[0], nil
}

// EmbedBatch implements Client. go-embedeverything does not take a
// context; cancellation is best-effort via an early check.
func (e *EmbedEverythingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	embeddings, err := e.client.Embed(texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return embeddings, nil
}

// Dimensions implements Client.
func (e *EmbedEverythingClient) Dimensions() int {
	return e.dimensions
}

// Close releases resources held by the underlying embedder.
func (e *EmbedEverythingClient) Close() error {
	return e.client.Close()
}
