package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/soundprediction/clipgraph/pkg/embedder"
	"github.com/soundprediction/clipgraph/pkg/graph"
	"github.com/soundprediction/clipgraph/pkg/vecmath"
)

// Searcher runs weighted-triple queries over a *graph.Graph. It never
// mutates the graph; see the concurrency notes on graph.Graph and on the
// search package itself.
type Searcher struct {
	g     *graph.Graph
	embed embedder.Client
}

// NewSearcher returns a Searcher over g, using embed to resolve query and
// (where needed) on-the-fly candidate embeddings. embed may be nil: content
// then scores by exact string match and character endpoints by exact name
// match, while object endpoints, spatial constraints and conversation
// messages score 0.
func NewSearcher(g *graph.Graph, embed embedder.Client) *Searcher {
	return &Searcher{g: g, embed: embed}
}

// SearchHighLevel scores every clip_id==0 edge against triples and returns
// the top k by (score desc, edge id asc), per §4.7.1. A confidence bonus of
// confidence/100*0.3 is added after the cross-triple max when the edge
// carries a confidence value.
func (s *Searcher) SearchHighLevel(ctx context.Context, triples []QueryTriple, k int) []ScoredEdge {
	resolved := resolveTriples(ctx, s.embed, triples)

	var candidates []*graph.Edge
	for _, e := range s.g.Edges() {
		if e.IsHighLevel() {
			candidates = append(candidates, e)
		}
	}

	scored := make([]ScoredEdge, 0, len(candidates))
	for _, e := range candidates {
		score := queryScore(s.g, resolved, e)
		if e.HasConfidence {
			score += float64(e.Confidence) / 100 * 0.3
		}
		scored = append(scored, ScoredEdge{Edge: e, Score: score})
	}

	sortScoredEdges(scored)
	return topK(scored, k)
}

// SearchLowLevel scores every clip_id>0 edge that has a scene against
// triples, then modulates the base score by scene similarity to
// spatialConstraint (1.0 if spatialConstraint is empty), per §4.7.2.
func (s *Searcher) SearchLowLevel(ctx context.Context, triples []QueryTriple, spatialConstraint string, k int) []ScoredEdge {
	resolved := resolveTriples(ctx, s.embed, triples)

	var constraintEmb []float32
	hasConstraint := spatialConstraint != ""
	if hasConstraint && s.embed != nil {
		if e, err := s.embed.Embed(ctx, spatialConstraint); err == nil {
			constraintEmb = e
		}
	}

	var candidates []*graph.Edge
	for _, e := range s.g.Edges() {
		if !e.IsHighLevel() && e.HasScene {
			candidates = append(candidates, e)
		}
	}

	scored := make([]ScoredEdge, 0, len(candidates))
	for _, e := range candidates {
		base := queryScore(s.g, resolved, e)

		sceneSim := 1.0
		if hasConstraint {
			sceneEmb := e.SceneEmbedding
			if len(sceneEmb) == 0 && s.embed != nil {
				if emb, err := s.embed.Embed(ctx, e.Scene); err == nil {
					sceneEmb = emb
				}
			}
			if len(constraintEmb) == 0 || len(sceneEmb) == 0 {
				sceneSim = 0
			} else {
				sceneSim = vecmath.CosineSimilarity(constraintEmb, sceneEmb)
			}
		}

		scored = append(scored, ScoredEdge{Edge: e, Score: base * sceneSim})
	}

	sortScoredEdges(scored)
	return topK(scored, k)
}

// SearchConversations embeds query once and scores every message in every
// conversation whose speaker set is a superset of speakerStrict (when
// non-empty), keeping only positive-similarity hits, per §4.7.3.
func (s *Searcher) SearchConversations(ctx context.Context, query string, speakerStrict []string, k int) []ConversationHit {
	var queryEmb []float32
	if s.embed != nil {
		if e, err := s.embed.Embed(ctx, query); err == nil {
			queryEmb = e
		}
	}

	var hits []ConversationHit
	for _, conv := range s.g.Conversations() {
		if !hasAllSpeakers(conv, speakerStrict) {
			continue
		}
		for i, m := range conv.Messages {
			emb := m.Embedding
			if len(emb) == 0 && s.embed != nil {
				display := fmt.Sprintf("%s: %s", stripBrackets(m.Speaker), m.Content)
				if e, err := s.embed.Embed(ctx, display); err == nil {
					emb = e
				}
			}
			if len(queryEmb) == 0 || len(emb) == 0 {
				continue
			}
			score := vecmath.CosineSimilarity(queryEmb, emb)
			if score > 0 {
				hits = append(hits, ConversationHit{ConversationID: conv.ID, MessageIndex: i, Score: score})
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].ConversationID != hits[j].ConversationID {
			return hits[i].ConversationID < hits[j].ConversationID
		}
		return hits[i].MessageIndex < hits[j].MessageIndex
	})

	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func hasAllSpeakers(conv *graph.Conversation, required []string) bool {
	if len(required) == 0 {
		return true
	}
	present := make(map[string]struct{}, len(conv.Speakers))
	for _, sp := range conv.Speakers {
		present[sp] = struct{}{}
	}
	for _, r := range required {
		if _, ok := present[r]; !ok {
			return false
		}
	}
	return true
}

func sortScoredEdges(scored []ScoredEdge) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Edge.ID < scored[j].Edge.ID
	})
}

func topK(scored []ScoredEdge, k int) []ScoredEdge {
	if k < 0 || len(scored) <= k {
		return scored
	}
	return scored[:k]
}

func stripBrackets(s string) string {
	if isCharacterToken(s) {
		return s[1 : len(s)-1]
	}
	return s
}

type interval struct{ lo, hi int } // [lo, hi)

// GetConversationMessagesWithContext groups hits by conversation, expands
// each hit index to a [i-window, i+window] interval, merges overlapping
// intervals, and renders the covered messages in temporal order, per
// §4.7.3's context-merging rule.
func (s *Searcher) GetConversationMessagesWithContext(hits []ConversationHit, window int) string {
	byConv := map[int64][]int{}
	order := []int64{}
	for _, h := range hits {
		if _, ok := byConv[h.ConversationID]; !ok {
			order = append(order, h.ConversationID)
		}
		byConv[h.ConversationID] = append(byConv[h.ConversationID], h.MessageIndex)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	var blocks []string
	for _, convID := range order {
		conv := s.g.GetConversation(convID)
		if conv == nil {
			continue
		}
		indices := byConv[convID]
		intervals := make([]interval, 0, len(indices))
		for _, i := range indices {
			lo := i - window
			if lo < 0 {
				lo = 0
			}
			hi := i + window + 1
			if hi > len(conv.Messages) {
				hi = len(conv.Messages)
			}
			intervals = append(intervals, interval{lo, hi})
		}
		merged := mergeIntervals(intervals)

		var lines []string
		if conv.Summary != "" {
			lines = append(lines, fmt.Sprintf("Conversation %d: %s", conv.ID, conv.Summary))
		} else {
			lines = append(lines, fmt.Sprintf("Conversation %d:", conv.ID))
		}
		for _, iv := range merged {
			for i := iv.lo; i < iv.hi; i++ {
				m := conv.Messages[i]
				lines = append(lines, fmt.Sprintf("[%d] %s: %s", m.ClipID, stripBrackets(m.Speaker), m.Content))
			}
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	return strings.Join(blocks, "\n\n")
}

func mergeIntervals(intervals []interval) []interval {
	if len(intervals) == 0 {
		return nil
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].lo < intervals[j].lo })
	merged := []interval{intervals[0]}
	for _, cur := range intervals[1:] {
		last := &merged[len(merged)-1]
		if cur.lo <= last.hi {
			if cur.hi > last.hi {
				last.hi = cur.hi
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}
