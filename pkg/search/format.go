package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/soundprediction/clipgraph/pkg/graph"
)

// FormatHighLevel renders scored high-level edges grouped by character:
// attribute edges (null target) as "- <Name> is: attr1 (conf), attr2
// (conf), ...", relationship edges as "- <Name1> relation <Name2> (conf)",
// grounded on edge_to_string.py's high_level_edges_to_string.
func FormatHighLevel(scored []ScoredEdge) string {
	type attr struct {
		text string
		conf int
	}
	attrsByChar := map[string][]attr{}
	var charOrder []string
	var relLines []string

	for _, se := range scored {
		e := se.Edge
		if e.HasTarget {
			relLines = append(relLines, fmt.Sprintf("- %s %s %s (%d)",
				graph.FormatNodeForNaturalLanguage(e.Source),
				e.Content,
				graph.FormatNodeForNaturalLanguage(e.Target),
				e.Confidence))
			continue
		}
		if _, ok := attrsByChar[e.Source]; !ok {
			charOrder = append(charOrder, e.Source)
		}
		attrsByChar[e.Source] = append(attrsByChar[e.Source], attr{text: e.Content, conf: e.Confidence})
	}

	var lines []string
	for _, src := range charOrder {
		parts := make([]string, 0, len(attrsByChar[src]))
		for _, a := range attrsByChar[src] {
			parts = append(parts, fmt.Sprintf("%s (%d)", a.text, a.conf))
		}
		lines = append(lines, fmt.Sprintf("- %s is: %s", graph.FormatNodeForNaturalLanguage(src), strings.Join(parts, ", ")))
	}
	lines = append(lines, relLines...)

	return strings.Join(lines, "\n")
}

// FormatLowLevel renders scored low-level edges sorted by edge id, one per
// line: "[clip_id] source content target. (scene)", or "[clip_id] source
// content. (scene)" when the edge has no target, grounded on
// edge_to_string.py's low_level_edge_to_string, which omits the target
// token entirely rather than printing a literal "null" when target is
// None.
func FormatLowLevel(scored []ScoredEdge) string {
	edges := make([]*graph.Edge, 0, len(scored))
	for _, se := range scored {
		edges = append(edges, se.Edge)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })

	lines := make([]string, 0, len(edges))
	for _, e := range edges {
		source := graph.FormatNodeForNaturalLanguage(e.Source)
		if !e.HasTarget {
			lines = append(lines, fmt.Sprintf("[%d] %s %s. (%s)", e.ClipID, source, e.Content, e.Scene))
			continue
		}
		lines = append(lines, fmt.Sprintf("[%d] %s %s %s. (%s)",
			e.ClipID, source, e.Content, graph.FormatNodeForNaturalLanguage(e.Target), e.Scene))
	}
	return strings.Join(lines, "\n")
}

// StructuredQuery is the decoded form of the §6 structured-query JSON
// object the search facade accepts.
type StructuredQuery struct {
	QueryTriples      []QueryTriple
	SpatialConstraint string
	SpeakerStrict     []string
	Allocation        Allocation
}

// Search runs queryText/triples against g through high-level, low-level,
// and conversation search, then fuses the results into the single labeled
// string §4.7.4/§6 specify. A section is omitted when empty; if every
// section is empty the result is the fixed "no results" sentinel.
func (s *Searcher) Search(ctx context.Context, queryText string, triples []QueryTriple, alloc Allocation, spatialConstraint string, speakerStrict []string) (string, error) {
	highLevel := s.SearchHighLevel(ctx, triples, alloc.HighLevel)
	lowLevel := s.SearchLowLevel(ctx, triples, spatialConstraint, alloc.LowLevel)
	convHits := s.SearchConversations(ctx, queryText, speakerStrict, alloc.Conversations)

	var sections []string

	if highLevelText := FormatHighLevel(highLevel); highLevelText != "" {
		sections = append(sections, "**High-Level Information (Character Attributes and Relationships): **\n"+highLevelText)
	}
	if lowLevelText := FormatLowLevel(lowLevel); lowLevelText != "" {
		sections = append(sections, "**Low-Level Information (Actions and Events): **\n"+lowLevelText)
	}
	if len(convHits) > 0 {
		convText := s.GetConversationMessagesWithContext(convHits, 2)
		sections = append(sections, "**Conversations: **\n"+convText)
	}

	if len(sections) == 0 {
		return "No relevant information found for this query.", nil
	}
	return strings.Join(sections, "\n\n"), nil
}
