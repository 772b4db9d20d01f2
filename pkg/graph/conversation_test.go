package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	text string
	err  error
}

func (f *fakeLLM) GenerateText(ctx context.Context, prompt string) (string, int, error) {
	if f.err != nil {
		return "", 0, f.err
	}
	return f.text, 0, nil
}

func TestUpdateConversation_AppendsAndDedupsAcrossClips(t *testing.T) {
	g := New(NewContext())

	convID := g.UpdateConversation(context.Background(), nil, 1, []RawMessage{
		{Speaker: "<Alice>", Content: "hello"},
	}, false)
	require.NotZero(t, convID)

	sameID := g.UpdateConversation(context.Background(), nil, 2, []RawMessage{
		{Speaker: "<Alice>", Content: "hello"}, // duplicate, skipped
		{Speaker: "<Bob>", Content: "hi there"},
	}, true)

	assert.Equal(t, convID, sameID)

	conv := g.GetConversation(convID)
	require.NotNil(t, conv)
	assert.Len(t, conv.Messages, 2)
	assert.ElementsMatch(t, []string{"<Alice>", "<Bob>"}, conv.Speakers)
	assert.ElementsMatch(t, []int{1, 2}, conv.Clips)
}

func TestUpdateConversation_NonContinuationStartsNew(t *testing.T) {
	g := New(NewContext())

	first := g.UpdateConversation(context.Background(), nil, 1, []RawMessage{{Speaker: "<Alice>", Content: "a"}}, false)
	second := g.UpdateConversation(context.Background(), nil, 2, []RawMessage{{Speaker: "<Alice>", Content: "b"}}, false)

	assert.NotEqual(t, first, second)
}

func TestCloseActiveConversation_StopsContinuation(t *testing.T) {
	g := New(NewContext())

	first := g.UpdateConversation(context.Background(), nil, 1, []RawMessage{{Speaker: "<Alice>", Content: "a"}}, false)
	g.CloseActiveConversation()
	second := g.UpdateConversation(context.Background(), nil, 2, []RawMessage{{Speaker: "<Alice>", Content: "b"}}, true)

	assert.NotEqual(t, first, second)
}

func TestExtractConversationSummary_AppliesRenamesAttributesRelationships(t *testing.T) {
	g := New(NewContext())
	g.AddCharacter("character_1")
	g.AddCharacter("Bob")

	g.UpdateConversation(context.Background(), nil, 1, []RawMessage{
		{Speaker: "<character_1>", Content: "I'm Alice, nice to meet you"},
		{Speaker: "<Bob>", Content: "Likewise"},
	}, false)
	convID := g.ActiveConversationID()

	llmResp := `{
		"name_equivalences": [["character_1", "Alice"]],
		"summary": "Alice introduces herself to Bob.",
		"character_attributes": [["<Alice>", "friendly", 80], ["<Bob>", "shy", 30]],
		"characters_relationships": [["<Alice>", "just met", "<Bob>", 70]]
	}`

	result, err := g.ExtractConversationSummary(context.Background(), convID, &fakeLLM{text: llmResp})
	require.NoError(t, err)

	assert.Equal(t, "Alice", result.RenamedCharacters["character_1"])
	assert.Nil(t, g.GetCharacter("<character_1>"))
	require.NotNil(t, g.GetCharacter("<Alice>"))

	require.Len(t, result.Attributes, 1)
	assert.Equal(t, "friendly", result.Attributes[0].Attribute)

	require.Len(t, result.Relationships, 1)
	assert.Equal(t, "just met", result.Relationships[0].Relationship)

	assert.Equal(t, "Alice introduces herself to Bob.", g.GetConversation(convID).Summary)
}

func TestExtractConversationSummary_UnparsableResponseLeavesGraphUnchanged(t *testing.T) {
	g := New(NewContext())
	g.UpdateConversation(context.Background(), nil, 1, []RawMessage{{Speaker: "<Bob>", Content: "hi"}}, false)
	convID := g.ActiveConversationID()

	before := len(g.Characters())

	result, err := g.ExtractConversationSummary(context.Background(), convID, &fakeLLM{text: "not json at all {{{"})
	require.NoError(t, err)
	assert.Empty(t, result.Summary)
	assert.Empty(t, result.Attributes)
	assert.Len(t, g.Characters(), before)
}

func TestExtractConversationSummary_UnknownConversationFails(t *testing.T) {
	g := New(NewContext())
	_, err := g.ExtractConversationSummary(context.Background(), 99, &fakeLLM{text: "{}"})
	assert.Error(t, err)
}
