package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns the vector registered for a text in vectors, or
// {1, 0, 0} for any other text, good enough to exercise embedding plumbing
// without depending on a real provider.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

// TestInsertTriples_BasicIngestionAndAdjacency covers S1.
func TestInsertTriples_BasicIngestionAndAdjacency(t *testing.T) {
	g := New(NewContext())
	g.AddCharacter("Alice")

	inserted := g.InsertTriples(context.Background(), nil, nil, []Triple{
		{Source: "<Alice>", Content: "picks up", Target: "coffee"},
		{Source: "coffee", Content: "is on", Target: "table"},
	}, 1, "kitchen", nil)

	require.Equal(t, 2, inserted)

	require.NotNil(t, g.GetCharacter("<robot>"))
	require.NotNil(t, g.GetCharacter("<Alice>"))
	require.NotNil(t, g.GetObject("coffee"))
	require.NotNil(t, g.GetObject("table"))

	for _, e := range g.Edges() {
		assert.Equal(t, 1, e.ClipID)
		assert.Equal(t, "kitchen", e.Scene)
	}

	assert.Equal(t, 1, g.Degree("<Alice>"))
	assert.Equal(t, 2, g.Degree("coffee"))
	assert.Equal(t, 1, g.Degree("table"))

	pickupIDs := g.EdgesFrom("<Alice>")
	require.Len(t, pickupIDs, 1)
	assert.Equal(t, "picks up", g.GetEdge(pickupIDs[0]).Content)

	isOnIDs := g.EdgesTo("table")
	require.Len(t, isOnIDs, 1)
	assert.Equal(t, "is on", g.GetEdge(isOnIDs[0]).Content)
}

// TestInsertTriples_DuplicateWithinBatchIsNoOp checks the idempotence law
// that a batch with a repeated triple only inserts it once.
func TestInsertTriples_DuplicateWithinBatchIsNoOp(t *testing.T) {
	g := New(NewContext())
	g.AddCharacter("Alice")

	inserted := g.InsertTriples(context.Background(), nil, nil, []Triple{
		{Source: "<Alice>", Content: "waves at", Target: "null"},
		{Source: "<Alice>", Content: "waves at", Target: "null"},
	}, 1, "hall", nil)

	assert.Equal(t, 1, inserted)
	assert.Len(t, g.Edges(), 1)
}

// TestRenameCharacter_RewritesReferences covers S2.
func TestRenameCharacter_RewritesReferences(t *testing.T) {
	g := New(NewContext())
	g.AddCharacter("Alice")
	g.InsertTriples(context.Background(), nil, nil, []Triple{
		{Source: "<Alice>", Content: "picks up", Target: "coffee"},
	}, 1, "kitchen", nil)

	g.AddCharacter("character_1")
	g.InsertTriples(context.Background(), nil, nil, []Triple{
		{Source: "<character_1>", Content: "waves at", Target: "<Alice>"},
	}, 2, "kitchen", nil)

	require.NoError(t, g.RenameCharacter("character_1", "Bob"))

	assert.Nil(t, g.GetCharacter("<character_1>"))
	require.NotNil(t, g.GetCharacter("<Bob>"))

	wavesIDs := g.EdgesFrom("<Bob>")
	require.Len(t, wavesIDs, 1)
	waveEdge := g.GetEdge(wavesIDs[0])
	assert.Equal(t, "<Bob>", waveEdge.Source)
	assert.Equal(t, "waves at", waveEdge.Content)

	assert.Empty(t, g.EdgesOf("<character_1>"))

	pickupIDs := g.EdgesFrom("<Alice>")
	require.Len(t, pickupIDs, 1)
	assert.Equal(t, "picks up", g.GetEdge(pickupIDs[0]).Content)
}

func TestRenameCharacter_RejectsNonGenericNames(t *testing.T) {
	g := New(NewContext())
	g.AddCharacter("Alice")
	err := g.RenameCharacter("Alice", "Alicia")
	assert.ErrorIs(t, err, ErrRenameNotAllowed)
}

func TestRenameCharacter_RejectsUnknownCharacter(t *testing.T) {
	g := New(NewContext())
	err := g.RenameCharacter("character_7", "Bob")
	assert.ErrorIs(t, err, ErrUnknownCharacter)
}

func TestRenameCharacter_RejectsCollision(t *testing.T) {
	g := New(NewContext())
	g.AddCharacter("character_1")
	g.AddCharacter("Bob")
	err := g.RenameCharacter("character_1", "Bob")
	assert.ErrorIs(t, err, ErrRenameCollision)
}

// TestAddHighLevelEdge_DedupAndConfidenceMerge covers S3.
func TestAddHighLevelEdge_DedupAndConfidenceMerge(t *testing.T) {
	g := New(NewContext())
	alice := g.AddCharacter("Alice")

	id1, created1, err := g.AddHighLevelEdge(&Edge{Source: alice, Content: "kind", HasConfidence: true, Confidence: 60})
	require.NoError(t, err)
	assert.True(t, created1)

	id2, created2, err := g.AddHighLevelEdge(&Edge{Source: alice, Content: "kind", HasConfidence: true, Confidence: 80})
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, id1, id2)

	id3, created3, err := g.AddHighLevelEdge(&Edge{Source: alice, Content: "kind", HasConfidence: true, Confidence: 70})
	require.NoError(t, err)
	assert.False(t, created3)
	assert.Equal(t, id1, id3)

	var highLevel []*Edge
	for _, e := range g.Edges() {
		if e.IsHighLevel() {
			highLevel = append(highLevel, e)
		}
	}
	require.Len(t, highLevel, 1)
	assert.Equal(t, 80, highLevel[0].Confidence)
}

func TestAddHighLevelEdge_NonIncreasingConfidenceIsNoOp(t *testing.T) {
	g := New(NewContext())
	alice := g.AddCharacter("Alice")

	_, _, err := g.AddHighLevelEdge(&Edge{Source: alice, Content: "brave", HasConfidence: true, Confidence: 90})
	require.NoError(t, err)
	_, created, err := g.AddHighLevelEdge(&Edge{Source: alice, Content: "brave", HasConfidence: true, Confidence: 90})
	require.NoError(t, err)
	assert.False(t, created)

	for _, e := range g.Edges() {
		assert.Equal(t, 90, e.Confidence)
	}
}

// TestAppearanceBasedMerge covers S4, driving the real ingestion path both
// times a character's appearance is observed: once while it is still
// unnamed (so InsertTriples/createCharacter embeds its appearance
// description into AppearanceEmbedding), and once when it is later named
// with a matching appearance description (so mergeByAppearance has a real
// AppearanceEmbedding to compare against, not a manually patched one).
func TestAppearanceBasedMerge(t *testing.T) {
	embed := &fakeEmbedder{vectors: map[string][]float32{
		"tall with a red scarf": {1, 0, 0},
	}}
	g := New(NewContext())

	// Clip 1: an unnamed character appears; its appearance is described but
	// it has no name yet.
	clip1Appearances := map[string]string{
		"character_1": "tall with a red scarf",
	}
	inserted := g.InsertTriples(context.Background(), embed, nil, []Triple{
		{Source: "<character_1>", Content: "enters", Target: "null"},
	}, 1, "hall", clip1Appearances)
	require.Equal(t, 1, inserted)
	require.NotNil(t, g.GetCharacter("<character_1>"))
	require.NotEmpty(t, g.characters["<character_1>"].AppearanceEmbedding)

	// Clip 2: the same character is now named "Alice", with a matching
	// appearance description.
	clip2Appearances := map[string]string{
		"Alice": "tall with a red scarf",
	}
	inserted = g.InsertTriples(context.Background(), embed, nil, []Triple{
		{Source: "<Alice>", Content: "picks up", Target: "coffee"},
	}, 2, "kitchen", clip2Appearances)

	require.Equal(t, 1, inserted)
	assert.Nil(t, g.GetCharacter("<character_1>"))
	require.NotNil(t, g.GetCharacter("<Alice>"))
	_, stillPresent := clip2Appearances["Alice"]
	assert.False(t, stillPresent)
}

func TestAddEdge_UnknownEndpointFails(t *testing.T) {
	g := New(NewContext())
	err := g.AddEdge(&Edge{Source: "<nobody>", Content: "waves"})
	assert.ErrorIs(t, err, ErrUnknownEndpoint)
	assert.Empty(t, g.Edges())
}

func TestInsertCharacterAppearances_SplitsOnCommas(t *testing.T) {
	g := New(NewContext())
	g.AddCharacter("Alice")

	g.InsertCharacterAppearances(map[string]string{
		"Alice": "tall, wears glasses, carries a satchel",
	})

	var attrs []string
	for _, e := range g.Edges() {
		require.True(t, e.IsHighLevel())
		assert.Equal(t, 100, e.Confidence)
		attrs = append(attrs, e.Content)
	}
	assert.ElementsMatch(t, []string{"tall", "wears glasses", "carries a satchel"}, attrs)
}

func TestGetConnectedEdges_DirectAndIndirect(t *testing.T) {
	g := New(NewContext())
	g.AddCharacter("Alice")
	g.AddCharacter("Bob")

	g.InsertTriples(context.Background(), nil, nil, []Triple{
		{Source: "<Alice>", Content: "greets", Target: "<Bob>"},
	}, 1, "hall", nil)
	g.InsertTriples(context.Background(), nil, nil, []Triple{
		{Source: "<Alice>", Content: "holds", Target: "cup"},
	}, 2, "kitchen", nil)
	g.InsertTriples(context.Background(), nil, nil, []Triple{
		{Source: "cup", Content: "given to", Target: "<Bob>"},
	}, 3, "kitchen", nil)

	edges, err := g.GetConnectedEdges("Alice", "Bob")
	require.NoError(t, err)
	assert.Len(t, edges, 3)
}

func TestGetConnectedEdges_RespectsClipWindow(t *testing.T) {
	g := New(NewContext())
	g.AddCharacter("Alice")
	g.AddCharacter("Bob")

	g.InsertTriples(context.Background(), nil, nil, []Triple{
		{Source: "<Alice>", Content: "holds", Target: "cup"},
	}, 1, "kitchen", nil)
	g.InsertTriples(context.Background(), nil, nil, []Triple{
		{Source: "cup", Content: "given to", Target: "<Bob>"},
	}, 10, "kitchen", nil)

	edges, err := g.GetConnectedEdges("Alice", "Bob")
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestGetConnectedEdges_UnknownCharacterFails(t *testing.T) {
	g := New(NewContext())
	g.AddCharacter("Alice")
	_, err := g.GetConnectedEdges("Alice", "Ghost")
	assert.ErrorIs(t, err, ErrUnknownCharacter)
}

func TestNodeDegrees(t *testing.T) {
	g := New(NewContext())
	g.AddCharacter("Alice")
	g.InsertTriples(context.Background(), nil, nil, []Triple{
		{Source: "<Alice>", Content: "picks up", Target: "coffee"},
	}, 1, "kitchen", nil)

	degrees := g.NodeDegrees()
	assert.Equal(t, 1, degrees["<Alice>"])
	assert.Equal(t, 1, degrees["coffee"])
}
