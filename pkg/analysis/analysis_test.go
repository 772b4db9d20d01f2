package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/clipgraph/pkg/graph"
)

func TestCharacterProfile_CountsActionsObjectsAndPartners(t *testing.T) {
	g := graph.New(graph.NewContext())
	g.AddCharacter("Alice")
	g.AddCharacter("Bob")

	g.InsertTriples(context.Background(), nil, nil, []graph.Triple{
		{Source: "<Alice>", Content: "picks up", Target: "coffee"},
	}, 1, "kitchen", nil)
	g.InsertTriples(context.Background(), nil, nil, []graph.Triple{
		{Source: "<Alice>", Content: "picks up", Target: "cup"},
	}, 2, "kitchen", nil)
	g.InsertTriples(context.Background(), nil, nil, []graph.Triple{
		{Source: "<Alice>", Content: "greets", Target: "<Bob>"},
	}, 3, "hall", nil)
	g.InsertTriples(context.Background(), nil, nil, []graph.Triple{
		{Source: "<Bob>", Content: "waves at", Target: "<Alice>"},
	}, 4, "hall", nil)

	profile, err := CharacterProfile(g, "Alice")
	require.NoError(t, err)

	assert.Equal(t, 2, profile.ActionCounts["picks up"])
	assert.Equal(t, 1, profile.ObjectInteractions["coffee"])
	assert.Equal(t, 1, profile.ObjectInteractions["cup"])
	assert.Equal(t, 2, profile.InteractionPartners["<Bob>"]) // one as source, one as target
	require.NotEmpty(t, profile.FrequentActions)
	assert.Equal(t, "picks up", profile.FrequentActions[0].Action)
	assert.Equal(t, 2, profile.FrequentActions[0].Count)
}

func TestCharacterProfile_UnknownCharacterFails(t *testing.T) {
	g := graph.New(graph.NewContext())
	_, err := CharacterProfile(g, "Ghost")
	assert.ErrorIs(t, err, graph.ErrUnknownCharacter)
}

func TestPlotSummary_RendersClipOrderedTimeline(t *testing.T) {
	g := graph.New(graph.NewContext())
	g.AddCharacter("Alice")

	g.InsertTriples(context.Background(), nil, nil, []graph.Triple{
		{Source: "<Alice>", Content: "enters", Target: "null"},
	}, 2, "kitchen", nil)
	g.InsertTriples(context.Background(), nil, nil, []graph.Triple{
		{Source: "<Alice>", Content: "sits down", Target: "chair"},
	}, 1, "kitchen", nil)

	summary := PlotSummary(g)
	assert.Contains(t, summary, "Video Plot Summary:")
	idxClip1 := indexOf(summary, "Clip 1:")
	idxClip2 := indexOf(summary, "Clip 2:")
	require.GreaterOrEqual(t, idxClip1, 0)
	require.GreaterOrEqual(t, idxClip2, 0)
	assert.Less(t, idxClip1, idxClip2)
	assert.Contains(t, summary, "Most common actions:")
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
