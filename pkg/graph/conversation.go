package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soundprediction/clipgraph/pkg/embedder"
	"github.com/soundprediction/clipgraph/pkg/llm"
)

// RawMessage is one [speaker, content] pair as produced by the (external)
// ingestion driver, before an embedding has been attached.
type RawMessage struct {
	Speaker string
	Content string
}

// UpdateConversation appends messages to the active conversation when
// isContinuation is true and a conversation is open, or starts a new one
// otherwise. It returns the id of the conversation that now holds the
// messages. Each newly appended message is embedded on its displayed form
// "{speaker without brackets}: {content}"; duplicate (speaker, content)
// pairs within the conversation are skipped without an embedding call.
func (g *Graph) UpdateConversation(ctx context.Context, embedClient embedder.Client, clipID int, messages []RawMessage, isContinuation bool) int64 {
	if len(messages) == 0 {
		return 0
	}

	var conv *Conversation
	if isContinuation && g.activeConversationID != 0 {
		conv = g.conversations[g.activeConversationID]
	}
	if conv == nil {
		conv = newConversation(g.ctx.nextConversationID(), clipID)
		g.conversations[conv.ID] = conv
		g.activeConversationID = conv.ID
	}

	conv.addClip(clipID)
	for _, rm := range messages {
		if conv.hasMessage(rm.Speaker, rm.Content) {
			continue
		}
		msg := Message{Speaker: rm.Speaker, Content: rm.Content, ClipID: clipID}
		display := fmt.Sprintf("%s: %s", unbracket(rm.Speaker), rm.Content)
		if embedClient != nil {
			if emb, err := embedClient.Embed(ctx, display); err == nil {
				msg.Embedding = emb
			}
		}
		conv.addMessage(msg)
	}

	return conv.ID
}

// ConversationSummaryResult is the outcome of ExtractConversationSummary:
// the fields the driver needs to know were applied to the graph.
type ConversationSummaryResult struct {
	Summary           string
	Attributes        []AppliedAttribute
	Relationships     []AppliedRelationship
	RenamedCharacters map[string]string // old generic name -> new name, only entries that actually renamed
}

// AppliedAttribute is one character-attribute edge emitted by summary
// extraction (confidence >= 50 per §4.5 step 6).
type AppliedAttribute struct {
	Character  string
	Attribute  string
	Confidence int
}

// AppliedRelationship is one character-relationship edge emitted by
// summary extraction (confidence >= 50 per §4.5 step 7).
type AppliedRelationship struct {
	Character1   string
	Relationship string
	Character2   string
	Confidence   int
}

// conversationSummaryPrompt instructs the text LLM to analyze a formatted
// conversation transcript and return the four-key JSON object §4.5 step 3
// parses. Grounded on original_source/utils/prompts.py's
// prompt_conversation_summary, extended with the name_equivalences key
// spec.md requires.
const conversationSummaryPrompt = `You are given a transcript of a conversation between one or more characters, one "Speaker: content" line per turn.

Your tasks:

1. **Name Equivalences**
- If any speaker is a placeholder like "character_1" and the dialogue reveals their real name (someone addresses them by name, or they introduce themselves), record the mapping.
- Output format: JSON array of [placeholder_name, real_name] pairs. Empty array if none.

2. **Summary**
- Summarize the key topics, decisions, or outcomes discussed, in 2-4 concise sentences.

3. **Character Attributes**
- Extract each character's attributes revealed through dialogue and interaction style: personality, role/profession, interests, background.
- Do not include physical appearance, concrete actions, or temporary emotional states.
- Output format: JSON array of [character, attribute, confidence_score] with confidence 0-100. Only attributes with confidence >= 50 will be applied.

4. **Character Relationships**
- Extract abstract relationships between characters: roles, attitudes, power dynamics, cooperation/conflict.
- Do not include specific actions, events, or dialogue topics.
- Output format: JSON array of [character1, relationship, character2, confidence_score] with confidence 0-100. Only relationships with confidence >= 50 will be applied.

Return a JSON object with exactly four keys: "name_equivalences", "summary", "character_attributes", "characters_relationships".

Now summarize the following conversation:
`

type nameEquivalence [2]string

func (n *nameEquivalence) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) < 2 {
		return fmt.Errorf("name_equivalences entry needs 2 elements, got %d", len(arr))
	}
	n[0], n[1] = arr[0], arr[1]
	return nil
}

type attributeTriple struct {
	Character  string
	Attribute  string
	Confidence int
}

func (t *attributeTriple) UnmarshalJSON(data []byte) error {
	var arr []interface{}
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) < 3 {
		return fmt.Errorf("character_attributes entry needs 3 elements, got %d", len(arr))
	}
	t.Character, _ = arr[0].(string)
	t.Attribute, _ = arr[1].(string)
	t.Confidence = toInt(arr[2])
	return nil
}

type relationshipQuad struct {
	Character1   string
	Relationship string
	Character2   string
	Confidence   int
}

func (r *relationshipQuad) UnmarshalJSON(data []byte) error {
	var arr []interface{}
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) < 4 {
		return fmt.Errorf("characters_relationships entry needs 4 elements, got %d", len(arr))
	}
	r.Character1, _ = arr[0].(string)
	r.Relationship, _ = arr[1].(string)
	r.Character2, _ = arr[2].(string)
	r.Confidence = toInt(arr[3])
	return nil
}

func toInt(v interface{}) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return 0
}

type conversationSummaryResponse struct {
	NameEquivalences        []nameEquivalence  `json:"name_equivalences"`
	Summary                 string             `json:"summary"`
	CharacterAttributes     []attributeTriple  `json:"character_attributes"`
	CharactersRelationships []relationshipQuad `json:"characters_relationships"`
}

// ExtractConversationSummary formats the conversation's messages as
// "Speaker: content" lines, asks llmClient for a name-equivalence/summary/
// attribute/relationship analysis, and applies the result to the graph:
// renames are attempted via RenameCharacter (silently skipped on
// failure — e.g. the speaker name isn't a generic placeholder), attributes
// and relationships with confidence >= 50 are added as high-level edges.
// On an unparseable LLM response the graph is left unchanged and an empty
// result is returned, per the ParseError failure policy.
func (g *Graph) ExtractConversationSummary(ctx context.Context, convID int64, llmClient llm.Client) (*ConversationSummaryResult, error) {
	conv, ok := g.conversations[convID]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %d", ErrUnknownCharacter, convID)
	}

	transcript := formatTranscript(conv)

	text, _, err := llmClient.GenerateText(ctx, conversationSummaryPrompt+transcript)
	if err != nil {
		return &ConversationSummaryResult{RenamedCharacters: map[string]string{}}, nil
	}

	var resp conversationSummaryResponse
	if err := llm.ParseJSONWithRepair(text, &resp); err != nil {
		return &ConversationSummaryResult{RenamedCharacters: map[string]string{}}, nil
	}

	result := &ConversationSummaryResult{
		Summary:           resp.Summary,
		RenamedCharacters: map[string]string{},
	}

	for _, eq := range resp.NameEquivalences {
		old, new := eq[0], eq[1]
		if err := g.RenameCharacter(old, new); err == nil {
			result.RenamedCharacters[old] = new
		}
	}

	conv.Summary = resp.Summary

	for _, attr := range resp.CharacterAttributes {
		if attr.Confidence < 50 {
			continue
		}
		char := g.AddCharacter(attr.Character)
		g.AddHighLevelEdge(&Edge{
			Source:        char,
			Content:       attr.Attribute,
			HasTarget:     false,
			Confidence:    attr.Confidence,
			HasConfidence: true,
		})
		result.Attributes = append(result.Attributes, AppliedAttribute{
			Character: char, Attribute: attr.Attribute, Confidence: attr.Confidence,
		})
	}

	for _, rel := range resp.CharactersRelationships {
		if rel.Confidence < 50 {
			continue
		}
		c1 := g.AddCharacter(rel.Character1)
		c2 := g.AddCharacter(rel.Character2)
		g.AddHighLevelEdge(&Edge{
			Source:        c1,
			Content:       rel.Relationship,
			Target:        c2,
			HasTarget:     true,
			Confidence:    rel.Confidence,
			HasConfidence: true,
		})
		result.Relationships = append(result.Relationships, AppliedRelationship{
			Character1: c1, Relationship: rel.Relationship, Character2: c2, Confidence: rel.Confidence,
		})
	}

	return result, nil
}

// formatTranscript renders a conversation as one "Speaker: content" line
// per message, brackets stripped from the speaker, per §4.5 step 1.
func formatTranscript(conv *Conversation) string {
	lines := make([]string, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		lines = append(lines, fmt.Sprintf("%s: %s", unbracket(m.Speaker), m.Content))
	}
	return strings.Join(lines, "\n")
}

// GetConnectedEdges returns, deduplicated by edge id, every edge relating
// c1 and c2: direct edges between them, plus indirect pairs (e1, e2) that
// share an object endpoint o (e1 touches c1 and o, e2 touches o and c2)
// within a 4-clip window. Both characters must already exist.
func (g *Graph) GetConnectedEdges(c1, c2 string) ([]*Edge, error) {
	name1, name2 := bracketName(c1), bracketName(c2)
	if _, ok := g.characters[name1]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCharacter, name1)
	}
	if _, ok := g.characters[name2]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCharacter, name2)
	}

	seen := make(map[int64]struct{})
	var result []*Edge
	add := func(e *Edge) {
		if e == nil {
			return
		}
		if _, ok := seen[e.ID]; ok {
			return
		}
		seen[e.ID] = struct{}{}
		result = append(result, e)
	}

	for _, id := range g.EdgesOf(name1) {
		e := g.edges[id]
		if e == nil {
			continue
		}
		other := otherEndpoint(e, name1)
		if other == name2 {
			add(e)
		}
	}

	for _, id1 := range g.EdgesOf(name1) {
		e1 := g.edges[id1]
		if e1 == nil {
			continue
		}
		obj := otherEndpoint(e1, name1)
		if obj == "" || isBracketed(obj) {
			continue // only object-mediated indirection counts
		}
		for _, id2 := range g.EdgesOf(obj) {
			if id2 == id1 {
				continue
			}
			e2 := g.edges[id2]
			if e2 == nil {
				continue
			}
			other := otherEndpoint(e2, obj)
			if other != name2 {
				continue
			}
			if abs(e1.ClipID-e2.ClipID) >= 4 {
				continue
			}
			add(e1)
			add(e2)
		}
	}

	return result, nil
}

// otherEndpoint returns the endpoint of e that is not name: if e.Source ==
// name, returns e.Target (or "" for a null target); if e.Target == name,
// returns e.Source. Returns "" if name isn't an endpoint of e.
func otherEndpoint(e *Edge, name string) string {
	if e.Source == name {
		if !e.HasTarget {
			return ""
		}
		return e.Target
	}
	if e.HasTarget && e.Target == name {
		return e.Source
	}
	return ""
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
