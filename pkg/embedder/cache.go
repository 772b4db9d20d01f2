package embedder

import (
	"context"
	"sync"
)

// CachedClient decorates a Client with a process-wide content cache keyed
// by exact text, so repeated scoring of the same string is a map lookup
// rather than a remote call. The cache is not persisted across processes.
type CachedClient struct {
	client Client
	cache  *sync.Map // string -> []float32
}

// NewCachedClient wraps client with a fresh content cache.
func NewCachedClient(client Client) *CachedClient {
	return &CachedClient{client: client, cache: &sync.Map{}}
}

// Embed implements Client.
func (c *CachedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := c.cache.Load(text); ok {
		return cached.([]float32), nil
	}

	embedding, err := c.client.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Store(text, embedding)
	return embedding, nil
}

// EmbedBatch implements Client, serving cached entries directly and
// batching only the misses to the wrapped client.
func (c *CachedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if cached, ok := c.cache.Load(text); ok {
			out[i] = cached.([]float32)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	embeddings, err := c.client.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		out[idx] = embeddings[j]
		c.cache.Store(missTexts[j], embeddings[j])
	}
	return out, nil
}

// Dimensions implements Client.
func (c *CachedClient) Dimensions() int {
	return c.client.Dimensions()
}
