// Package llm provides text-generation clients used for conversation
// summarization and character/relationship synthesis, plus the
// code-fence-stripping and JSON-repair helpers those callers need to parse
// LLM-shaped output.
package llm

import (
	"context"
	"errors"
)

// Errors returned by Client implementations and the parse helpers.
var (
	// ErrUnavailable is returned when the text-generation provider cannot
	// service a request after the retry policy is exhausted.
	ErrUnavailable = errors.New("llm: provider unavailable")

	// ErrParse is returned when LLM output cannot be parsed as JSON even
	// after repair is attempted.
	ErrParse = errors.New("llm: could not parse response")
)

// Client generates text from a prompt. The core never interprets the
// returned token count; it is surfaced for callers that want to budget.
type Client interface {
	GenerateText(ctx context.Context, prompt string) (text string, tokens int, err error)
}

// MultimodalClient is an opaque collaborator used only by the
// (out-of-scope) ingestion driver to analyze video frames. The core never
// calls it; it is declared here purely as the external-interface contract
// an ingestion driver would implement against.
type MultimodalClient interface {
	GenerateOverImages(ctx context.Context, images [][]byte, prompt string) (string, error)
}
