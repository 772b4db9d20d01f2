package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/clipgraph/pkg/graph"
)

// ParquetExporter writes a one-way analytical copy of a *graph.Graph's
// characters, objects, edges, and conversations to Parquet files under a
// base directory, one subdirectory per entity kind. It never reads these
// files back; BadgerStore is the sole restoration path.
//
// Grounded on the teacher's pkg/utils.ParquetGraphWriter: per-kind row
// schema structs with parquet tags, one parquet.WriteFile call per export.
// Each kind is written to one fixed file name (e.g. edges/edges.parquet),
// so a later export overwrites the previous one.
type ParquetExporter struct {
	baseDir string
}

// NewParquetExporter creates the export subdirectories under baseDir and
// returns a ParquetExporter that writes into them.
func NewParquetExporter(baseDir string) (*ParquetExporter, error) {
	dirs := []string{"characters", "objects", "edges", "conversations"}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(baseDir, d), 0o755); err != nil {
			return nil, fmt.Errorf("snapshot: create directory %s: %w", d, err)
		}
	}
	return &ParquetExporter{baseDir: baseDir}, nil
}

// ParquetCharacter is the Parquet row schema for a character node.
type ParquetCharacter struct {
	ID        int64     `parquet:"id"`
	Name      string    `parquet:"name"`
	Embedding []float32 `parquet:"embedding"`
}

// ParquetObject is the Parquet row schema for an object node.
type ParquetObject struct {
	ID        int64     `parquet:"id"`
	Name      string    `parquet:"name"`
	Embedding []float32 `parquet:"embedding"`
}

// ParquetEdge is the Parquet row schema for a directed edge, high-level or
// low-level alike.
type ParquetEdge struct {
	ID             int64     `parquet:"id"`
	ClipID         int       `parquet:"clip_id"`
	Source         string    `parquet:"source"`
	Target         string    `parquet:"target"`
	HasTarget      bool      `parquet:"has_target"`
	Content        string    `parquet:"content"`
	Scene          string    `parquet:"scene"`
	Confidence     int       `parquet:"confidence"`
	HasConfidence  bool      `parquet:"has_confidence"`
	Embedding      []float32 `parquet:"embedding"`
	SceneEmbedding []float32 `parquet:"scene_embedding"`
}

// ParquetConversation is the Parquet row schema for a conversation, with
// messages flattened into parallel columns since Parquet has no native
// notion of this package's Message struct.
type ParquetConversation struct {
	ID              int64    `parquet:"id"`
	Clips           []int32  `parquet:"clips"`
	Speakers        []string `parquet:"speakers"`
	Summary         string   `parquet:"summary"`
	MessageSpeakers []string `parquet:"message_speakers"`
	MessageContents []string `parquet:"message_contents"`
	MessageClipIDs  []int32  `parquet:"message_clip_ids"`
}

// WriteCharacters exports every character in g.
func (w *ParquetExporter) WriteCharacters(g *graph.Graph) error {
	var rows []ParquetCharacter
	for _, name := range g.Characters() {
		c := g.GetCharacter(name)
		rows = append(rows, ParquetCharacter{ID: c.ID, Name: c.Name, Embedding: c.Embedding})
	}
	if len(rows) == 0 {
		return nil
	}
	path := filepath.Join(w.baseDir, "characters", "characters.parquet")
	return parquet.WriteFile(path, rows)
}

// WriteObjects exports every object referenced by an edge endpoint in g.
func (w *ParquetExporter) WriteObjects(g *graph.Graph) error {
	seen := map[string]struct{}{}
	var rows []ParquetObject
	for _, e := range g.Edges() {
		for _, name := range []string{e.Source, e.Target} {
			if name == "" || isBracketedName(name) {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			obj := g.GetObject(name)
			if obj == nil {
				continue
			}
			seen[name] = struct{}{}
			rows = append(rows, ParquetObject{ID: obj.ID, Name: obj.Name, Embedding: obj.Embedding})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	path := filepath.Join(w.baseDir, "objects", "objects.parquet")
	return parquet.WriteFile(path, rows)
}

// WriteEdges exports every edge in g.
func (w *ParquetExporter) WriteEdges(g *graph.Graph) error {
	edges := g.Edges()
	if len(edges) == 0 {
		return nil
	}
	rows := make([]ParquetEdge, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, ParquetEdge{
			ID:             e.ID,
			ClipID:         e.ClipID,
			Source:         e.Source,
			Target:         e.Target,
			HasTarget:      e.HasTarget,
			Content:        e.Content,
			Scene:          e.Scene,
			Confidence:     e.Confidence,
			HasConfidence:  e.HasConfidence,
			Embedding:      e.Embedding,
			SceneEmbedding: e.SceneEmbedding,
		})
	}
	path := filepath.Join(w.baseDir, "edges", "edges.parquet")
	return parquet.WriteFile(path, rows)
}

// WriteConversations exports every conversation in g, flattening its
// Messages slice into parallel columns.
func (w *ParquetExporter) WriteConversations(g *graph.Graph) error {
	convs := g.Conversations()
	if len(convs) == 0 {
		return nil
	}
	rows := make([]ParquetConversation, 0, len(convs))
	for _, c := range convs {
		row := ParquetConversation{
			ID:       c.ID,
			Speakers: c.Speakers,
			Summary:  c.Summary,
		}
		for _, clip := range c.Clips {
			row.Clips = append(row.Clips, int32(clip))
		}
		for _, m := range c.Messages {
			row.MessageSpeakers = append(row.MessageSpeakers, m.Speaker)
			row.MessageContents = append(row.MessageContents, m.Content)
			row.MessageClipIDs = append(row.MessageClipIDs, int32(m.ClipID))
		}
		rows = append(rows, row)
	}
	path := filepath.Join(w.baseDir, "conversations", "conversations.parquet")
	return parquet.WriteFile(path, rows)
}

// WriteAll exports every entity kind in one call.
func (w *ParquetExporter) WriteAll(g *graph.Graph) error {
	if err := w.WriteCharacters(g); err != nil {
		return err
	}
	if err := w.WriteObjects(g); err != nil {
		return err
	}
	if err := w.WriteEdges(g); err != nil {
		return err
	}
	return w.WriteConversations(g)
}
