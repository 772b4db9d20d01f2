package llm

import "context"

// RetryOnceClient wraps a Client so a failing GenerateText call is retried
// exactly once before giving up, matching this domain's one-shot retry
// policy for LLM calls (try, on failure retry once, then surface the
// error so the caller can leave state unchanged).
type RetryOnceClient struct {
	client Client
}

// NewRetryOnceClient wraps client with the one-shot retry policy.
func NewRetryOnceClient(client Client) *RetryOnceClient {
	return &RetryOnceClient{client: client}
}

// GenerateText implements Client.
func (r *RetryOnceClient) GenerateText(ctx context.Context, prompt string) (string, int, error) {
	text, tokens, err := r.client.GenerateText(ctx, prompt)
	if err == nil {
		return text, tokens, nil
	}
	return r.client.GenerateText(ctx, prompt)
}
