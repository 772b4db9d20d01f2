// Package snapshot persists a *graph.Graph to disk and restores it, and
// exports a one-way analytical copy to Parquet.
//
// BadgerStore is grounded on straga-Mimir_lite's nornicdb/pkg/storage
// BadgerEngine: single-byte-prefixed keys, transactional Update/View
// closures, an RWMutex+closed guard on every public method, and sentinel
// errors. It diverges from that teacher in one respect: encoding uses
// encoding/gob rather than JSON, since the domain structs round-trip
// through Go types exclusively and gob needs no field tags.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/clipgraph/pkg/graph"
)

// Key prefixes for BadgerDB storage organization.
const (
	prefixCharacter   = byte(0x01) // node:<name> (bracketed)    -> gob(characterRecord)
	prefixObject      = byte(0x02) // node:<name> (plain)        -> gob(objectRecord)
	prefixEdge        = byte(0x03) // edge:<id>                  -> gob(graph.Edge)
	prefixConv        = byte(0x04) // conv:<id>                  -> gob(conversationRecord)
	prefixMeta        = byte(0x05) // meta                       -> gob(metaRecord)
)

var (
	// ErrStorageClosed is returned by every method once Close has run.
	ErrStorageClosed = errors.New("snapshot: store is closed")
)

// BadgerOptions configures the BadgerStore.
type BadgerOptions struct {
	// DataDir is the directory BadgerDB stores its files under. Required
	// unless InMemory is set.
	DataDir string

	// InMemory runs BadgerDB with no on-disk footprint, for tests.
	InMemory bool

	// SyncWrites forces fsync after each write; slower, more durable.
	SyncWrites bool
}

// BadgerStore persists a *graph.Graph's nodes, edges, and conversations to
// a BadgerDB instance. Each key is a one-byte kind prefix followed by the
// node name, or by the big-endian edge or conversation id.
type BadgerStore struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if absent) a BadgerStore at opts.DataDir.
func Open(opts BadgerOptions) (*BadgerStore, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir).
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the underlying BadgerDB handle.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type characterRecord struct {
	ID                  int64
	Name                string
	Embedding           []float32
	AppearanceEmbedding []float32
}

type objectRecord struct {
	ID        int64
	Name      string
	Embedding []float32
}

type conversationRecord struct {
	ID       int64
	Clips    []int
	Messages []graph.Message
	Speakers []string
	Summary  string
}

type metaRecord struct {
	MaxNodeID         int64
	MaxEdgeID         int64
	MaxConversationID int64
	ActiveConvID      int64
}

func characterKey(name string) []byte { return append([]byte{prefixCharacter}, []byte(name)...) }
func objectKey(name string) []byte    { return append([]byte{prefixObject}, []byte(name)...) }

func edgeKeyFor(id int64) []byte {
	buf := make([]byte, 9)
	buf[0] = prefixEdge
	binary.BigEndian.PutUint64(buf[1:], uint64(id))
	return buf
}

func convKeyFor(id int64) []byte {
	buf := make([]byte, 9)
	buf[0] = prefixConv
	binary.BigEndian.PutUint64(buf[1:], uint64(id))
	return buf
}

func metaKey() []byte { return []byte{prefixMeta} }

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Save writes every character, object, edge, and conversation in g to the
// store in a single transaction, along with the max allocated IDs needed
// to fast-forward a restored GraphContext's counters.
func (s *BadgerStore) Save(g *graph.Graph) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStorageClosed
	}
	s.mu.RUnlock()

	return s.db.Update(func(txn *badger.Txn) error {
		var maxNode, maxEdge, maxConv int64

		for _, name := range g.Characters() {
			c := g.GetCharacter(name)
			if c.ID > maxNode {
				maxNode = c.ID
			}
			data, err := encodeGob(characterRecord{ID: c.ID, Name: c.Name, Embedding: c.Embedding, AppearanceEmbedding: c.AppearanceEmbedding})
			if err != nil {
				return fmt.Errorf("encode character %q: %w", name, err)
			}
			if err := txn.Set(characterKey(c.Name), data); err != nil {
				return err
			}
		}

		for _, e := range g.Edges() {
			if e.ID > maxEdge {
				maxEdge = e.ID
			}
			data, err := encodeGob(*e)
			if err != nil {
				return fmt.Errorf("encode edge %d: %w", e.ID, err)
			}
			if err := txn.Set(edgeKeyFor(e.ID), data); err != nil {
				return err
			}

			for _, name := range []string{e.Source, e.Target} {
				if name == "" || isBracketedName(name) {
					continue
				}
				if obj := g.GetObject(name); obj != nil {
					data, err := encodeGob(objectRecord{ID: obj.ID, Name: obj.Name, Embedding: obj.Embedding})
					if err != nil {
						return fmt.Errorf("encode object %q: %w", name, err)
					}
					if err := txn.Set(objectKey(obj.Name), data); err != nil {
						return err
					}
					if obj.ID > maxNode {
						maxNode = obj.ID
					}
				}
			}
		}

		for _, conv := range g.Conversations() {
			if conv.ID > maxConv {
				maxConv = conv.ID
			}
			rec := conversationRecord{
				ID:       conv.ID,
				Clips:    conv.Clips,
				Messages: conv.Messages,
				Speakers: conv.Speakers,
				Summary:  conv.Summary,
			}
			data, err := encodeGob(rec)
			if err != nil {
				return fmt.Errorf("encode conversation %d: %w", conv.ID, err)
			}
			if err := txn.Set(convKeyFor(conv.ID), data); err != nil {
				return err
			}
		}

		meta := metaRecord{
			MaxNodeID:         maxNode,
			MaxEdgeID:         maxEdge,
			MaxConversationID: maxConv,
			ActiveConvID:      g.ActiveConversationID(),
		}
		data, err := encodeGob(meta)
		if err != nil {
			return fmt.Errorf("encode meta: %w", err)
		}
		return txn.Set(metaKey(), data)
	})
}

func isBracketedName(name string) bool {
	return len(name) >= 2 && name[0] == '<' && name[len(name)-1] == '>'
}

// Load rebuilds a *graph.Graph from everything persisted in the store.
// Nodes are restored before edges, and the returned graph's GraphContext
// counters are fast-forwarded past every restored ID so subsequent
// mutation never reuses one.
func (s *BadgerStore) Load() (*graph.Graph, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStorageClosed
	}
	s.mu.RUnlock()

	ctx := graph.NewContext()
	g := graph.New(ctx)

	var meta metaRecord
	var edgeRecords []graph.Edge
	var convRecords []conversationRecord

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if len(key) == 0 {
				continue
			}

			switch key[0] {
			case prefixCharacter:
				var rec characterRecord
				if err := item.Value(func(val []byte) error { return decodeGob(val, &rec) }); err != nil {
					return fmt.Errorf("decode character: %w", err)
				}
				g.RestoreCharacter(graph.Character{ID: rec.ID, Name: rec.Name, Embedding: rec.Embedding, AppearanceEmbedding: rec.AppearanceEmbedding})

			case prefixObject:
				var rec objectRecord
				if err := item.Value(func(val []byte) error { return decodeGob(val, &rec) }); err != nil {
					return fmt.Errorf("decode object: %w", err)
				}
				g.RestoreObject(graph.Object{ID: rec.ID, Name: rec.Name, Embedding: rec.Embedding})

			case prefixEdge:
				var e graph.Edge
				if err := item.Value(func(val []byte) error { return decodeGob(val, &e) }); err != nil {
					return fmt.Errorf("decode edge: %w", err)
				}
				edgeRecords = append(edgeRecords, e)

			case prefixConv:
				var rec conversationRecord
				if err := item.Value(func(val []byte) error { return decodeGob(val, &rec) }); err != nil {
					return fmt.Errorf("decode conversation: %w", err)
				}
				convRecords = append(convRecords, rec)

			case prefixMeta:
				if err := item.Value(func(val []byte) error { return decodeGob(val, &meta) }); err != nil {
					return fmt.Errorf("decode meta: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range edgeRecords {
		g.RestoreEdge(e)
	}
	for _, rec := range convRecords {
		g.RestoreConversation(rec.ID, rec.Clips, rec.Messages, rec.Speakers, rec.Summary)
	}
	g.SetActiveConversationID(meta.ActiveConvID)
	ctx.FastForward(meta.MaxNodeID, meta.MaxEdgeID, meta.MaxConversationID)

	return g, nil
}
