// Package synth implements the abstract-information synthesizer: driving
// the text LLM to turn a character's low-level edges into high-level
// attribute edges, turn two characters' connected edges into relationship
// edges, and delegate conversation summarization, then applying the
// results to the graph through the same high-level-edge dedup path as any
// other caller.
//
// Grounded on original_source/classes/hetero_graph.py's
// character_attributes (edge-to-prompt formatting, one-shot retry) and
// original_source/utils/prompts.py's prompt_character_relationships.
package synth

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/soundprediction/clipgraph/pkg/graph"
	"github.com/soundprediction/clipgraph/pkg/llm"
)

// DegreeThreshold is the minimum node degree RunSelectionHeuristic requires
// before spending an LLM call synthesizing a character's attributes, per
// spec §4.8's "select characters with degree > 10" heuristic.
const DegreeThreshold = 10

// MinConnectedEdgesForRelationship is the minimum number of edges
// GetConnectedEdges must return before CharacterRelationships asks the LLM
// for anything; below this there isn't enough evidence, per §4.8.
const MinConnectedEdgesForRelationship = 3

// confidenceFloor is the minimum confidence score synthesized attributes
// and relationships must meet to be applied to the graph, per §4.5/§4.8.
const confidenceFloor = 50

const characterAttributesPrompt = `You are analyzing a character's actions and attributes revealed through a video.

Extract abstract personality traits, roles, and characteristics this character displays through their behaviors below. Avoid restating visual facts or one-off actions verbatim - focus on identity construction: personality, role, habits, disposition.

For each attribute, provide a confidence score between 0 and 100. Only attributes with confidence >= 50 will be applied.

Output a JSON object mapping attribute to confidence score, e.g. {"curious": 80, "impatient": 60}.

Character: %s

Behaviors:
%s
`

const characterRelationshipsPrompt = `You are given a list of interactions between two characters, in chronological order.

Extract the abstract relationship between %s and %s:
- Roles (friends, colleagues, host-guest, teacher-student, parent-child, etc.)
- Attitudes/emotions (respect, dislike, friendliness, etc.)
- Power dynamics (who leads, equal footing, etc.)
- Cooperation, conflict, or competition

Do not restate specific actions or events. Provide a confidence score 0-100 per relationship; only relationships with confidence >= 50 will be applied.

Output a JSON array of [character1, relationship, character2, confidence_score] tuples, e.g.
[["%s", "is friend with", "%s", 90]]

Interactions:
%s
`

// Synthesizer drives an llm.Client to produce high-level edges from a
// *graph.Graph's existing low-level edges and conversations, then applies
// them via the graph's own dedup/confidence-merge mutation path.
type Synthesizer struct {
	g   *graph.Graph
	llm llm.Client
}

// New returns a Synthesizer over g, using llmClient for every generation
// call. llmClient should already carry the one-shot retry policy
// (llm.NewRetryOnceClient) the domain requires; Synthesizer does not retry
// on its own beyond what llm.Client already promises.
func New(g *graph.Graph, llmClient llm.Client) *Synthesizer {
	return &Synthesizer{g: g, llm: llmClient}
}

type attributeScores map[string]int

// CharacterAttributes gathers every edge touching name, formats it one
// line per edge, asks the LLM for a {attribute: confidence} mapping, and
// emits a high-level attribute edge for every entry with confidence >= 50.
// Returns the applied attributes. If the character has no edges yet, it
// returns an empty slice without calling the LLM.
func (s *Synthesizer) CharacterAttributes(ctx context.Context, name string) ([]graph.AppliedAttribute, error) {
	character := s.g.GetCharacter(name)
	if character == nil {
		return nil, fmt.Errorf("%w: %q", graph.ErrUnknownCharacter, name)
	}

	edgeIDs := s.g.EdgesOf(character.Name)
	if len(edgeIDs) == 0 {
		return nil, nil
	}

	lines := formatEdgeLines(s.g, edgeIDs)
	prompt := fmt.Sprintf(characterAttributesPrompt, character.Name, strings.Join(lines, "\n"))

	text, _, err := s.llm.GenerateText(ctx, prompt)
	if err != nil {
		return nil, nil
	}

	var scores attributeScores
	if err := llm.ParseJSONWithRepair(text, &scores); err != nil {
		return nil, nil
	}

	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var applied []graph.AppliedAttribute
	for _, attr := range keys {
		conf := scores[attr]
		if conf < confidenceFloor {
			continue
		}
		s.g.AddHighLevelEdge(&graph.Edge{
			Source:        character.Name,
			Content:       attr,
			HasConfidence: true,
			Confidence:    conf,
		})
		applied = append(applied, graph.AppliedAttribute{Character: character.Name, Attribute: attr, Confidence: conf})
	}
	return applied, nil
}

type relationshipTuple [4]interface{}

// CharacterRelationships gathers c1 and c2's connected edges (§4.6). If
// fewer than MinConnectedEdgesForRelationship are found there isn't enough
// evidence and it returns empty without calling the LLM. Otherwise it asks
// the LLM for relationship tuples, verifies each tuple's pair matches the
// request (order may be swapped), and emits a high-level relationship edge
// for every entry with confidence >= 50.
func (s *Synthesizer) CharacterRelationships(ctx context.Context, c1, c2 string) ([]graph.AppliedRelationship, error) {
	edges, err := s.g.GetConnectedEdges(c1, c2)
	if err != nil {
		return nil, err
	}
	if len(edges) < MinConnectedEdgesForRelationship {
		return nil, nil
	}

	ids := make([]int64, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.ID)
	}
	lines := formatEdgeLines(s.g, ids)

	name1 := canonicalCharacterName(c1)
	name2 := canonicalCharacterName(c2)
	prompt := fmt.Sprintf(characterRelationshipsPrompt, name1, name2, name1, name2, strings.Join(lines, "\n"))

	text, _, err := s.llm.GenerateText(ctx, prompt)
	if err != nil {
		return nil, nil
	}

	var tuples []relationshipTuple
	if err := llm.ParseJSONWithRepair(text, &tuples); err != nil {
		return nil, nil
	}

	var applied []graph.AppliedRelationship
	for _, tup := range tuples {
		char1, _ := tup[0].(string)
		rel, _ := tup[1].(string)
		char2, _ := tup[2].(string)
		conf := toInt(tup[3])

		if !pairMatches(char1, char2, name1, name2) {
			continue
		}
		if conf < confidenceFloor {
			continue
		}

		s.g.AddCharacter(char1)
		s.g.AddCharacter(char2)
		s.g.AddHighLevelEdge(&graph.Edge{
			Source:        canonicalCharacterName(char1),
			Content:       rel,
			Target:        canonicalCharacterName(char2),
			HasTarget:     true,
			HasConfidence: true,
			Confidence:    conf,
		})
		applied = append(applied, graph.AppliedRelationship{
			Character1: canonicalCharacterName(char1), Relationship: rel, Character2: canonicalCharacterName(char2), Confidence: conf,
		})
	}
	return applied, nil
}

// ExtractConversationSummary delegates to graph.Graph.ExtractConversationSummary,
// the thin wrapper §4.8 describes so callers can drive summarization and
// synthesis through one Synthesizer handle.
func (s *Synthesizer) ExtractConversationSummary(ctx context.Context, convID int64) (*graph.ConversationSummaryResult, error) {
	return s.g.ExtractConversationSummary(ctx, convID, s.llm)
}

// RunSelectionHeuristic implements the §4.8 post-ingestion heuristic:
// compute every node's degree, run CharacterAttributes on every character
// whose degree exceeds DegreeThreshold, then run CharacterRelationships on
// every unordered pair among those selected characters.
func (s *Synthesizer) RunSelectionHeuristic(ctx context.Context) error {
	degrees := s.g.NodeDegrees()

	var selected []string
	for _, name := range s.g.Characters() {
		if degrees[name] > DegreeThreshold {
			selected = append(selected, name)
		}
	}
	sort.Strings(selected)

	for _, name := range selected {
		if _, err := s.CharacterAttributes(ctx, name); err != nil {
			return fmt.Errorf("synth: character attributes for %q: %w", name, err)
		}
	}

	for i := 0; i < len(selected); i++ {
		for j := i + 1; j < len(selected); j++ {
			if _, err := s.CharacterRelationships(ctx, selected[i], selected[j]); err != nil {
				return fmt.Errorf("synth: character relationships for %q/%q: %w", selected[i], selected[j], err)
			}
		}
	}
	return nil
}

// formatEdgeLines renders each edge id as "source -> target: content
// [scene: scene, clip: clip_id]" (or "[clip: clip_id]" when there is no
// scene), sorted by edge id for reproducible prompts, grounded on
// hetero_graph.py's character_attributes edge formatting.
func formatEdgeLines(g *graph.Graph, ids []int64) []string {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	lines := make([]string, 0, len(sorted))
	for _, id := range sorted {
		e := g.GetEdge(id)
		if e == nil {
			continue
		}
		target := "null"
		if e.HasTarget {
			target = e.Target
		}
		line := fmt.Sprintf("%s -> %s: %s", e.Source, target, e.Content)
		if e.HasScene {
			line += fmt.Sprintf(" [scene: %s, clip: %d]", e.Scene, e.ClipID)
		} else {
			line += fmt.Sprintf(" [clip: %d]", e.ClipID)
		}
		lines = append(lines, line)
	}
	return lines
}

func canonicalCharacterName(name string) string {
	if len(name) >= 2 && name[0] == '<' && name[len(name)-1] == '>' {
		return name
	}
	return fmt.Sprintf("<%s>", name)
}

// pairMatches reports whether {char1, char2} equals {name1, name2} in
// either order, per §4.8's "verify the pair matches the request (order may
// be swapped)".
func pairMatches(char1, char2, name1, name2 string) bool {
	c1, c2 := canonicalCharacterName(char1), canonicalCharacterName(char2)
	return (c1 == name1 && c2 == name2) || (c1 == name2 && c2 == name1)
}

func toInt(v interface{}) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return 0
}
