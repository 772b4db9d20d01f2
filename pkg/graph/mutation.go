package graph

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/soundprediction/clipgraph/pkg/embedder"
	"github.com/soundprediction/clipgraph/pkg/vecmath"
)

// genericCharacterPattern matches the auto-generated placeholder names
// assigned to characters discovered before they can be named, e.g.
// "<character_1>". Only names matching this pattern are eligible targets
// for RenameCharacter or appearance-based merging.
var genericCharacterPattern = regexp.MustCompile(`^<character_\d+>$`)

// Triple is one (source, content, target) assertion to insert via
// InsertTriples. Target == "" (or the case-insensitive literal "null")
// means no target.
type Triple struct {
	Source  string
	Content string
	Target  string
}

type edgeKey struct {
	source, target, content string
}

// AddEdge validates that e.Source exists and e.Target exists or is absent,
// assigns e.ID, inserts it into the edge table, and updates both adjacency
// indices. On failure it returns ErrUnknownEndpoint and leaves the graph
// unchanged.
func (g *Graph) AddEdge(e *Edge) error {
	if !g.nodeExists(e.Source) {
		return fmt.Errorf("%w: source %q", ErrUnknownEndpoint, e.Source)
	}
	if e.HasTarget && !g.nodeExists(e.Target) {
		return fmt.Errorf("%w: target %q", ErrUnknownEndpoint, e.Target)
	}

	e.ID = g.ctx.nextEdgeID()
	g.edges[e.ID] = e

	g.adjacencyOut[e.Source] = append(g.adjacencyOut[e.Source], e.ID)
	targetKey := e.Target
	if !e.HasTarget {
		targetKey = "null"
	}
	g.adjacencyIn[targetKey] = append(g.adjacencyIn[targetKey], e.ID)

	if e.IsHighLevel() {
		g.highLevelIndex[highLevelKey{e.Source, e.Content, targetKey}] = e.ID
	}

	return nil
}

// AddHighLevelEdge inserts a high-level (ClipID == 0) edge, deduplicating
// on the (source, content, target) triple: if an identical triple already
// exists, its confidence is raised to max(old, new) in place and no new
// edge is created. Returns the id of the edge that now holds the
// assertion (new or updated) and whether a new edge was created.
func (g *Graph) AddHighLevelEdge(e *Edge) (id int64, created bool, err error) {
	e.ClipID = 0
	e.HasScene = false
	e.Scene = ""

	targetKey := e.Target
	if !e.HasTarget {
		targetKey = "null"
	}
	key := highLevelKey{e.Source, e.Content, targetKey}

	if existingID, ok := g.highLevelIndex[key]; ok {
		existing := g.edges[existingID]
		if e.HasConfidence && (!existing.HasConfidence || e.Confidence > existing.Confidence) {
			existing.Confidence = e.Confidence
			existing.HasConfidence = true
		}
		return existingID, false, nil
	}

	if err := g.AddEdge(e); err != nil {
		return 0, false, err
	}
	return e.ID, true, nil
}

// InsertTriples resolves and inserts a batch of (source, content, target)
// triples produced for a single clip/scene. Per triple: malformed or
// null-content entries are skipped; characters are resolved via
// appearance-based merge-or-create; objects are get-or-created; duplicate
// edges within the same batch are skipped; scene embeddings are computed
// once per distinct scene string. A single bad triple never aborts the
// batch — failures are logged and the triple is skipped.
func (g *Graph) InsertTriples(ctx context.Context, embedClient embedder.Client, log *slog.Logger, triples []Triple, clipID int, scene string, appearances map[string]string) int {
	if len(triples) == 0 {
		return 0
	}
	if log == nil {
		log = slog.Default()
	}

	sceneEmbedding, _ := embedScene(ctx, embedClient, scene)

	seen := make(map[edgeKey]struct{}, len(triples))
	inserted := 0

	for _, t := range triples {
		if strings.TrimSpace(t.Source) == "" || strings.TrimSpace(t.Content) == "" {
			continue
		}

		sourceName, ok := g.resolveEndpoint(ctx, embedClient, t.Source, appearances)
		if !ok {
			log.Warn("skipping triple with unresolved source", "source", t.Source)
			continue
		}

		var targetName string
		hasTarget := true
		if t.Target == "" || strings.EqualFold(t.Target, "null") {
			hasTarget = false
		} else {
			targetName, ok = g.resolveEndpoint(ctx, embedClient, t.Target, appearances)
			if !ok {
				log.Warn("skipping triple with unresolved target", "target", t.Target)
				continue
			}
		}

		tk := targetName
		if !hasTarget {
			tk = "null"
		}
		ek := edgeKey{source: sourceName, target: tk, content: t.Content}
		if _, dup := seen[ek]; dup {
			continue
		}
		seen[ek] = struct{}{}

		edge := &Edge{
			ClipID:         clipID,
			Source:         sourceName,
			Target:         targetName,
			HasTarget:      hasTarget,
			Content:        t.Content,
			Scene:          scene,
			HasScene:       scene != "",
			SceneEmbedding: sceneEmbedding,
		}
		if embedClient != nil {
			if emb, err := embedClient.Embed(ctx, t.Content); err == nil {
				edge.Embedding = emb
			}
		}

		if err := g.AddEdge(edge); err != nil {
			log.Warn("skipping invalid triple", "error", err, "source", t.Source, "target", t.Target)
			continue
		}
		inserted++
	}

	return inserted
}

// resolveEndpoint resolves a raw triple endpoint string to its canonical
// node name, creating object nodes on demand and merging or creating
// character nodes via appearance-based resolution.
func (g *Graph) resolveEndpoint(ctx context.Context, embedClient embedder.Client, raw string, appearances map[string]string) (string, bool) {
	if isBracketed(raw) {
		name := raw
		if _, ok := g.characters[name]; ok {
			return name, true
		}
		merged := g.mergeByAppearance(ctx, embedClient, name, appearances)
		if merged != "" {
			return merged, true
		}
		g.createCharacter(name, ctx, embedClient, appearances)
		return name, true
	}

	name, _, _ := parseObjectAffixes(raw)
	obj := g.getOrCreateObject(name)
	if obj.Embedding == nil && embedClient != nil {
		if emb, err := embedClient.Embed(ctx, name); err == nil {
			obj.Embedding = emb
		}
	}
	return name, true
}

// createCharacter creates bracketedName, embedding the name token itself
// into Embedding for search matching. If bracketedName is a generic
// <character_N> placeholder and appearances holds a description for it,
// that description is also embedded into AppearanceEmbedding, so a later
// mergeByAppearance call has something to compare a newly named
// character's appearance against.
func (g *Graph) createCharacter(bracketedName string, ctx context.Context, embedClient embedder.Client, appearances map[string]string) *Character {
	c := &Character{ID: g.ctx.nextNodeID(), Name: bracketedName}
	if embedClient != nil {
		if emb, err := embedClient.Embed(ctx, unbracket(bracketedName)); err == nil {
			c.Embedding = emb
		}
		if genericCharacterPattern.MatchString(bracketedName) {
			if desc, ok := appearances[unbracket(bracketedName)]; ok && strings.TrimSpace(desc) != "" {
				if emb, err := embedClient.Embed(ctx, desc); err == nil {
					c.AppearanceEmbedding = emb
				}
			}
		}
	}
	g.characters[bracketedName] = c
	return c
}

// mergeByAppearance compares the embedding of appearances[newName] against
// every existing generic <character_N> character's AppearanceEmbedding (the
// embedding of that character's own appearance description, captured when
// it was first created). If the best cosine similarity meets
// AppearanceMergeThreshold, the matched character is renamed to newName,
// the matched entry is removed from appearances, and the canonical
// bracketed newName is returned. Otherwise returns "".
func (g *Graph) mergeByAppearance(ctx context.Context, embedClient embedder.Client, newName string, appearances map[string]string) string {
	if embedClient == nil || len(appearances) == 0 {
		return ""
	}
	desc, ok := appearances[unbracket(newName)]
	if !ok {
		desc, ok = appearances[newName]
	}
	if !ok || strings.TrimSpace(desc) == "" {
		return ""
	}

	descEmbedding, err := embedClient.Embed(ctx, desc)
	if err != nil || descEmbedding == nil {
		return ""
	}

	var bestName string
	var bestScore float64
	for name, character := range g.characters {
		if name == RobotCharacterName || !genericCharacterPattern.MatchString(name) {
			continue
		}
		if character.AppearanceEmbedding == nil {
			continue
		}
		score := vecmath.CosineSimilarity(descEmbedding, character.AppearanceEmbedding)
		if score > bestScore {
			bestScore = score
			bestName = name
		}
	}

	if bestName == "" || bestScore < AppearanceMergeThreshold {
		return ""
	}

	if err := g.RenameCharacter(bestName, unbracket(newName)); err != nil {
		return ""
	}

	delete(appearances, unbracket(newName))
	delete(appearances, newName)

	return bracketName(newName)
}

// RenameCharacter renames old (which must match the generic <character_N>
// pattern) to new, rewriting every edge reference and moving the
// adjacency lists. Either every reference is rewritten or none: the first
// validation failure leaves the graph untouched.
func (g *Graph) RenameCharacter(old, new string) error {
	oldName := bracketName(old)
	newName := bracketName(new)

	if !genericCharacterPattern.MatchString(oldName) {
		return fmt.Errorf("%w: %q", ErrRenameNotAllowed, oldName)
	}

	character, ok := g.characters[oldName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCharacter, oldName)
	}

	if existing, ok := g.characters[newName]; ok && newName != oldName && existing != character {
		return fmt.Errorf("%w: %q", ErrRenameCollision, newName)
	}
	if newName == oldName {
		return nil
	}

	character.Name = newName
	delete(g.characters, oldName)
	g.characters[newName] = character

	affected := g.EdgesOf(oldName)
	for _, id := range affected {
		e := g.edges[id]
		if e == nil {
			continue
		}
		if e.Source == oldName {
			e.Source = newName
		}
		if e.HasTarget && e.Target == oldName {
			e.Target = newName
		}
		if e.IsHighLevel() {
			g.reindexHighLevelEdge(e)
		}
	}

	if out, ok := g.adjacencyOut[oldName]; ok {
		g.adjacencyOut[newName] = append(g.adjacencyOut[newName], out...)
		delete(g.adjacencyOut, oldName)
	}
	if in, ok := g.adjacencyIn[oldName]; ok {
		g.adjacencyIn[newName] = append(g.adjacencyIn[newName], in...)
		delete(g.adjacencyIn, oldName)
	}

	return nil
}

// reindexHighLevelEdge rebuilds the dedup index entry for a high-level edge
// whose source/target name just changed underneath it.
func (g *Graph) reindexHighLevelEdge(e *Edge) {
	for key, id := range g.highLevelIndex {
		if id == e.ID {
			delete(g.highLevelIndex, key)
			break
		}
	}
	targetKey := e.Target
	if !e.HasTarget {
		targetKey = "null"
	}
	g.highLevelIndex[highLevelKey{e.Source, e.Content, targetKey}] = e.ID
}

// InsertCharacterAppearances consumes the remainder of an appearance map
// after ingestion: for each character with a description, splits the
// description on commas and emits a high-level attribute edge
// (character, feature, null) with confidence 100 for each non-empty,
// trimmed feature.
func (g *Graph) InsertCharacterAppearances(appearances map[string]string) {
	for name, desc := range appearances {
		bracketed := bracketName(name)
		if _, ok := g.characters[bracketed]; !ok {
			continue
		}
		for _, feature := range strings.Split(desc, ",") {
			feature = strings.TrimSpace(feature)
			if feature == "" {
				continue
			}
			g.AddHighLevelEdge(&Edge{
				Source:        bracketed,
				Content:       feature,
				HasTarget:     false,
				Confidence:    100,
				HasConfidence: true,
			})
		}
	}
}

func embedScene(ctx context.Context, embedClient embedder.Client, scene string) ([]float32, error) {
	if embedClient == nil || scene == "" {
		return nil, nil
	}
	return embedClient.Embed(ctx, scene)
}
