package graph

// Character is a node representing a person or agent. Its name is always
// stored in the literal bracketed form "<X>"; the character table is keyed
// by that same string.
type Character struct {
	ID        int64
	Name      string
	Embedding []float32

	// AppearanceEmbedding is the embedding of this character's visual
	// appearance description, set when a generic <character_N> placeholder
	// is created with an appearance available. It is compared against a
	// newly mentioned character's appearance description by
	// mergeByAppearance (§4.4.3) and is distinct from Embedding, which
	// embeds the name token itself for search matching.
	AppearanceEmbedding []float32
}

// Object is a node representing a thing. Its name is plain text with no
// angle brackets; the object table is keyed by that string. There is no
// owner/attribute tuple key in the canonical model — ownership and
// attributes are expressed as edges (see ParseNodeString for the legacy
// input-affix convenience).
type Object struct {
	ID        int64
	Name      string
	Embedding []float32
}

// Edge is a directed, named relation between two node names. A high-level
// edge has ClipID == 0 and Scene == "" (null target is possible for both
// kinds). A low-level edge has ClipID > 0 and a non-empty Scene.
type Edge struct {
	ID             int64
	ClipID         int
	Source         string
	Target         string // "" denotes the null sentinel target
	HasTarget      bool
	Content        string
	Scene          string
	HasScene       bool
	Confidence     int
	HasConfidence  bool
	Embedding      []float32
	SceneEmbedding []float32
}

// IsHighLevel reports whether e is a high-level (abstract) edge.
func (e *Edge) IsHighLevel() bool {
	return e.ClipID == 0
}

// Message is one utterance within a Conversation: [speaker, content,
// clip_id, embedding] per the spec's 4-tuple message shape. Embedding is
// nil, not absent, when the embedding service degraded.
type Message struct {
	Speaker   string
	Content   string
	ClipID    int
	Embedding []float32
}

// Conversation groups dialogue across one or more clips. Speakers and Clips
// are kept as ordered, deduplicated slices so iteration order is
// reproducible without re-sorting on every read.
type Conversation struct {
	ID       int64
	Clips    []int
	Messages []Message
	Speakers []string
	Summary  string

	clipSet    map[int]struct{}
	speakerSet map[string]struct{}
	msgSeen    map[messageKey]struct{}
}

type messageKey struct {
	speaker string
	content string
}

func newConversation(id int64, clipID int) *Conversation {
	return &Conversation{
		ID:         id,
		clipSet:    map[int]struct{}{},
		speakerSet: map[string]struct{}{},
		msgSeen:    map[messageKey]struct{}{},
	}
}

func (c *Conversation) addClip(clipID int) {
	if _, ok := c.clipSet[clipID]; ok {
		return
	}
	c.clipSet[clipID] = struct{}{}
	c.Clips = append(c.Clips, clipID)
}

// hasMessage reports whether (speaker, content) was already appended, so
// callers can skip computing an embedding for a message that will be
// deduplicated anyway.
func (c *Conversation) hasMessage(speaker, content string) bool {
	_, ok := c.msgSeen[messageKey{speaker: speaker, content: content}]
	return ok
}

// addMessage appends msg if its (speaker, content) pair hasn't been seen
// before in this conversation. Returns true if the message was added.
func (c *Conversation) addMessage(msg Message) bool {
	key := messageKey{speaker: msg.Speaker, content: msg.Content}
	if _, ok := c.msgSeen[key]; ok {
		return false
	}
	c.msgSeen[key] = struct{}{}
	c.Messages = append(c.Messages, msg)
	if _, ok := c.speakerSet[msg.Speaker]; !ok {
		c.speakerSet[msg.Speaker] = struct{}{}
		c.Speakers = append(c.Speakers, msg.Speaker)
	}
	return true
}
