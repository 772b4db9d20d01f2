package search

import "github.com/soundprediction/clipgraph/pkg/graph"

// QueryTriple is one weighted (source, content, target) query element. A
// field holding "" or the literal "?" is a wildcard: it never contributes
// to the score. Source/Target use the same bracket convention as graph
// node names ("<Alice>" for a character).
type QueryTriple struct {
	Source  string
	Content string
	Target  string

	WeightSource  float64
	WeightContent float64
	WeightTarget  float64
}

// isWildcard reports whether s is an empty or "?" query token.
func isWildcard(s string) bool {
	return s == "" || s == "?"
}

// Allocation splits a query's result budget across the three searchers.
type Allocation struct {
	HighLevel     int
	LowLevel      int
	Conversations int
}

// MaxAllocation is the facade's configured maximum total result budget
// (HighLevel + LowLevel + Conversations), per §6.
const MaxAllocation = 50

// ConversationHit is one scored message from SearchConversations.
type ConversationHit struct {
	ConversationID int64
	MessageIndex   int
	Score          float64
}

// ScoredEdge pairs an edge with the score it achieved against a query, kept
// around so callers (formatting, tests) don't need to recompute it.
type ScoredEdge struct {
	Edge  *graph.Edge
	Score float64
}

func isCharacterToken(s string) bool {
	return len(s) >= 2 && s[0] == '<' && s[len(s)-1] == '>'
}

func unbracketToken(s string) string {
	if isCharacterToken(s) {
		return s[1 : len(s)-1]
	}
	return s
}
