// Package graph implements the heterogeneous character/object knowledge
// graph: arena-style node and edge storage, adjacency indices, the mutation
// API (triple insertion, high-level edge dedup, appearance-based character
// merging, renames), the conversation store, and connectivity queries.
//
// A Graph is single-owner (see the concurrency notes on Graph) and holds no
// package-level state; callers construct a GraphContext once per graph and
// pass it to New.
package graph

import "fmt"

const (
	// AppearanceMergeThreshold is the cosine-similarity threshold at which
	// a newly mentioned character is merged into an existing generic
	// <character_N> node rather than created fresh. This is a fixed
	// constant, not a per-call parameter: no repo-wide alternative value
	// is authoritative for this domain.
	AppearanceMergeThreshold = 0.85

	// RobotCharacterName is the distinguished character present in every
	// graph from construction.
	RobotCharacterName = "<robot>"
)

// Graph is the arena holding all nodes, edges, and conversations for one
// video's knowledge graph. It is single-owner: a build/query session is
// owned by exactly one logical task at a time. There is no internal
// locking — mutation and search on the same Graph must not overlap.
// Read-only callers (search.Searcher) take a *Graph and never mutate it.
type Graph struct {
	ctx *GraphContext

	characters map[string]*Character
	objects    map[string]*Object
	edges      map[int64]*Edge

	adjacencyOut map[string][]int64
	adjacencyIn  map[string][]int64

	conversations       map[int64]*Conversation
	activeConversationID int64 // 0 = none

	// highLevelIndex speeds up the add_high_level_edge dedup check: it
	// maps (source, content, target) to the edge id already asserting it.
	highLevelIndex map[highLevelKey]int64
}

type highLevelKey struct {
	source, content, target string
}

// New returns an empty Graph seeded with the distinguished <robot>
// character, using ctx for identifier allocation.
func New(ctx *GraphContext) *Graph {
	g := &Graph{
		ctx:            ctx,
		characters:     map[string]*Character{},
		objects:        map[string]*Object{},
		edges:          map[int64]*Edge{},
		adjacencyOut:   map[string][]int64{},
		adjacencyIn:    map[string][]int64{},
		conversations:  map[int64]*Conversation{},
		highLevelIndex: map[highLevelKey]int64{},
	}
	g.characters[RobotCharacterName] = &Character{
		ID:   ctx.nextNodeID(),
		Name: RobotCharacterName,
	}
	return g
}

// AddCharacter normalizes name to bracketed form and adds it if absent.
// Returns the canonical bracketed name. Idempotent: calling it again for an
// existing character is a no-op that returns the same name.
func (g *Graph) AddCharacter(name string) string {
	bracketed := bracketName(name)
	if _, ok := g.characters[bracketed]; !ok {
		g.characters[bracketed] = &Character{
			ID:   g.ctx.nextNodeID(),
			Name: bracketed,
		}
	}
	return bracketed
}

// GetCharacter returns the character named name (accepting either bracketed
// or plain form), or nil if absent.
func (g *Graph) GetCharacter(name string) *Character {
	return g.characters[bracketName(name)]
}

// GetObject returns the object named name, or nil if absent.
func (g *Graph) GetObject(name string) *Object {
	return g.objects[name]
}

func (g *Graph) getOrCreateObject(name string) *Object {
	if obj, ok := g.objects[name]; ok {
		return obj
	}
	obj := &Object{ID: g.ctx.nextNodeID(), Name: name}
	g.objects[name] = obj
	return obj
}

// nodeExists reports whether name resolves to a character or object.
func (g *Graph) nodeExists(name string) bool {
	if isBracketed(name) {
		_, ok := g.characters[name]
		return ok
	}
	_, ok := g.objects[name]
	return ok
}

// EdgesFrom returns the ids of edges where node is the source.
func (g *Graph) EdgesFrom(node string) []int64 {
	return append([]int64(nil), g.adjacencyOut[node]...)
}

// EdgesTo returns the ids of edges where node is the target (including the
// "null" sentinel target).
func (g *Graph) EdgesTo(node string) []int64 {
	return append([]int64(nil), g.adjacencyIn[node]...)
}

// EdgesOf returns the union, deduplicated, of EdgesFrom and EdgesTo.
func (g *Graph) EdgesOf(node string) []int64 {
	seen := make(map[int64]struct{}, len(g.adjacencyOut[node])+len(g.adjacencyIn[node]))
	var out []int64
	for _, id := range g.adjacencyOut[node] {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range g.adjacencyIn[node] {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Degree returns |EdgesFrom(node)| + |EdgesTo(node)|.
func (g *Graph) Degree(node string) int {
	return len(g.adjacencyOut[node]) + len(g.adjacencyIn[node])
}

// NodeDegrees returns the degree of every node that appears in either
// adjacency list, character or object alike.
func (g *Graph) NodeDegrees() map[string]int {
	degrees := make(map[string]int)
	for node := range g.adjacencyOut {
		degrees[node] += len(g.adjacencyOut[node])
	}
	for node := range g.adjacencyIn {
		degrees[node] += len(g.adjacencyIn[node])
	}
	return degrees
}

// GetEdge returns the edge with the given id, or nil if absent.
func (g *Graph) GetEdge(id int64) *Edge {
	return g.edges[id]
}

// Edges returns every edge in the graph. Order is unspecified; callers that
// need a stable order (search, formatting) sort by ID themselves.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	return out
}

// GetConversation returns the conversation with the given id, or nil if
// absent.
func (g *Graph) GetConversation(id int64) *Conversation {
	return g.conversations[id]
}

// Conversations returns every conversation in the graph. Order is
// unspecified.
func (g *Graph) Conversations() []*Conversation {
	out := make([]*Conversation, 0, len(g.conversations))
	for _, c := range g.conversations {
		out = append(out, c)
	}
	return out
}

// ActiveConversationID returns the id of the conversation currently open
// for continuation, or 0 if none is active.
func (g *Graph) ActiveConversationID() int64 {
	return g.activeConversationID
}

// CloseActiveConversation marks the active conversation (if any) as
// closed: subsequent UpdateConversation calls with isContinuation=true
// will not extend it. The ingester calls this once a clip without dialogue
// is processed, per the conversation lifecycle in the data model.
func (g *Graph) CloseActiveConversation() {
	g.activeConversationID = 0
}

// Characters returns every character name currently in the graph. Order is
// unspecified.
func (g *Graph) Characters() []string {
	names := make([]string, 0, len(g.characters))
	for name := range g.characters {
		names = append(names, name)
	}
	return names
}

// RestoreCharacter inserts c verbatim (including its ID), for use only by
// snapshot.Load when rebuilding a Graph from persisted state. It bypasses
// the normal AddCharacter allocation path entirely.
func (g *Graph) RestoreCharacter(c Character) {
	g.characters[c.Name] = &c
}

// RestoreObject inserts o verbatim (including its ID), for use only by
// snapshot.Load.
func (g *Graph) RestoreObject(o Object) {
	g.objects[o.Name] = &o
}

// RestoreEdge inserts e verbatim (including its ID) and rebuilds the
// adjacency and high-level-dedup indices for it, for use only by
// snapshot.Load. The edge's endpoints are assumed to already exist (nodes
// are restored before edges).
func (g *Graph) RestoreEdge(e Edge) {
	g.edges[e.ID] = &e
	g.adjacencyOut[e.Source] = append(g.adjacencyOut[e.Source], e.ID)
	targetKey := e.Target
	if !e.HasTarget {
		targetKey = "null"
	}
	g.adjacencyIn[targetKey] = append(g.adjacencyIn[targetKey], e.ID)
	if e.IsHighLevel() {
		g.highLevelIndex[highLevelKey{source: e.Source, content: e.Content, target: targetKey}] = e.ID
	}
}

// RestoreConversation inserts a conversation rebuilt from persisted
// slices, reconstructing the dedup-bookkeeping sets that
// encoding/gob cannot carry across its unexported fields, for use only by
// snapshot.Load.
func (g *Graph) RestoreConversation(id int64, clips []int, messages []Message, speakers []string, summary string) {
	conv := newConversation(id, 0)
	conv.Summary = summary
	for _, c := range clips {
		conv.addClip(c)
	}
	for _, sp := range speakers {
		if _, ok := conv.speakerSet[sp]; !ok {
			conv.speakerSet[sp] = struct{}{}
			conv.Speakers = append(conv.Speakers, sp)
		}
	}
	for _, m := range messages {
		key := messageKey{speaker: m.Speaker, content: m.Content}
		conv.msgSeen[key] = struct{}{}
		conv.Messages = append(conv.Messages, m)
	}
	g.conversations[id] = conv
}

// SetActiveConversationID restores which conversation (if any) was open
// for continuation when the snapshot was taken, for use only by
// snapshot.Load.
func (g *Graph) SetActiveConversationID(id int64) {
	g.activeConversationID = id
}

func bracketName(name string) string {
	if isBracketed(name) {
		return name
	}
	return fmt.Sprintf("<%s>", name)
}

func isBracketed(name string) bool {
	return len(name) >= 2 && name[0] == '<' && name[len(name)-1] == '>'
}

func unbracket(name string) string {
	if isBracketed(name) {
		return name[1 : len(name)-1]
	}
	return name
}
