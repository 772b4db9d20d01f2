package graph

import "errors"

// Sentinel errors returned by graph mutation and query operations. Callers
// match these with errors.Is; all wrapping elsewhere uses fmt.Errorf's %w.
var (
	// ErrUnknownEndpoint is returned by AddEdge when source or target does
	// not resolve to an existing node.
	ErrUnknownEndpoint = errors.New("graph: unknown edge endpoint")

	// ErrUnknownCharacter is returned by operations that require an
	// existing character (rename, connectivity, synthesis) when the name
	// is absent from the character table.
	ErrUnknownCharacter = errors.New("graph: unknown character")

	// ErrRenameNotAllowed is returned by RenameCharacter when old does not
	// match the generic <character_N> pattern.
	ErrRenameNotAllowed = errors.New("graph: rename only allowed on generic character names")

	// ErrRenameCollision is returned by RenameCharacter when new already
	// names a different existing character.
	ErrRenameCollision = errors.New("graph: rename target already exists")

	// ErrInvalidTriple is returned (and logged, never fatal to the batch)
	// when a single triple in InsertTriples is malformed.
	ErrInvalidTriple = errors.New("graph: invalid triple")
)
