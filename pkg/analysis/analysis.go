// Package analysis provides read-only, LLM-free analytics over a
// *graph.Graph: per-character behavioral profiles and a plot summary
// rendered from the temporal sequence of low-level edges. Nothing here
// mutates the graph or calls an external service.
//
// Grounded on original_source/utils/graph_analysis.py's
// extract_character_profile and extract_video_plot/generate_plot_summary.
package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/soundprediction/clipgraph/pkg/graph"
)

// Profile summarizes one character's actions, the objects they
// interacted with, and who they interacted with (as source or target of a
// character-to-character edge), grounded on extract_character_profile.
type Profile struct {
	Character           string
	ActionCounts        map[string]int
	ObjectInteractions  map[string]int
	FrequentActions     []ActionCount
	InteractionPartners map[string]int
}

// ActionCount pairs an action with how many times it was observed,
// ordered most frequent first (ties broken lexically for reproducibility).
type ActionCount struct {
	Action string
	Count  int
}

func isCharacterToken(s string) bool {
	return len(s) >= 2 && s[0] == '<' && s[len(s)-1] == '>'
}

// CharacterProfile builds a Profile for name from every edge touching it,
// per extract_character_profile. name may be given with or without the
// bracketed form; it is resolved against the graph's character table.
func CharacterProfile(g *graph.Graph, name string) (*Profile, error) {
	character := g.GetCharacter(name)
	if character == nil {
		return nil, fmt.Errorf("%w: %q", graph.ErrUnknownCharacter, name)
	}

	profile := &Profile{
		Character:           character.Name,
		ActionCounts:        map[string]int{},
		ObjectInteractions:  map[string]int{},
		InteractionPartners: map[string]int{},
	}

	for _, id := range g.EdgesFrom(character.Name) {
		e := g.GetEdge(id)
		if e == nil {
			continue
		}
		profile.ActionCounts[e.Content]++
		if !e.HasTarget {
			continue
		}
		if isCharacterToken(e.Target) {
			if e.Target != character.Name {
				profile.InteractionPartners[e.Target]++
			}
			continue
		}
		profile.ObjectInteractions[e.Target]++
	}

	// Passive interactions: edges where this character is the target of
	// another character's action, per extract_character_profile's second
	// pass over graph.edges.
	for _, id := range g.EdgesTo(character.Name) {
		e := g.GetEdge(id)
		if e == nil || e.Source == character.Name {
			continue
		}
		if isCharacterToken(e.Source) {
			profile.InteractionPartners[e.Source]++
		}
	}

	profile.FrequentActions = topCounts(profile.ActionCounts, 10)
	return profile, nil
}

func topCounts(counts map[string]int, limit int) []ActionCount {
	out := make([]ActionCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, ActionCount{Action: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Action < out[j].Action
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// PlotSummary renders a clip-ordered timeline listing the first three
// low-level edges (by edge id) of each clip, plus the ten most common
// actions over all low-level edges, grounded on extract_video_plot and
// generate_plot_summary's text rendering.
func PlotSummary(g *graph.Graph) string {
	byClip := map[int][]*graph.Edge{}
	actionFreq := map[string]int{}

	for _, e := range g.Edges() {
		if e.IsHighLevel() {
			continue
		}
		byClip[e.ClipID] = append(byClip[e.ClipID], e)
		actionFreq[e.Content]++
	}

	clips := make([]int, 0, len(byClip))
	for clip := range byClip {
		clips = append(clips, clip)
	}
	sort.Ints(clips)

	var lines []string
	lines = append(lines, "Video Plot Summary:", "", "Timeline:")
	for _, clip := range clips {
		edges := byClip[clip]
		sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
		limit := edges
		if len(limit) > 3 {
			limit = limit[:3]
		}
		var events []string
		for _, e := range limit {
			events = append(events, eventString(e))
		}
		lines = append(lines, fmt.Sprintf("  Clip %d: %s", clip, strings.Join(events, "; ")))
	}

	topActions := topCounts(actionFreq, 10)
	if len(topActions) > 0 {
		var parts []string
		for _, a := range topActions {
			parts = append(parts, fmt.Sprintf("%s (%dx)", a.Action, a.Count))
		}
		lines = append(lines, "", "Most common actions:", "  "+strings.Join(parts, ", "))
	}

	return strings.Join(lines, "\n")
}

func eventString(e *graph.Edge) string {
	target := "null"
	if e.HasTarget {
		target = e.Target
	}
	return fmt.Sprintf("%s %s %s", e.Source, e.Content, target)
}
