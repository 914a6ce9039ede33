package tree

import (
	"arbor/internal/domain/models/tree"
)

// TurnReader defines read access to the turn arena.
// Implementations return clones; callers never see store-owned pointers.
type TurnReader interface {
	// Get retrieves a turn by id. Returns domain.ErrNotFound if absent.
	Get(id string) (*tree.Turn, error)

	// Root returns the single root turn of the tree.
	// Returns domain.ErrNotFound on an empty store.
	Root() (*tree.Turn, error)

	// ChildrenOf returns all turns whose parent is id, ordered by CreatedAt
	// ascending. Unknown ids yield an empty slice, not an error, so leaf
	// checks stay cheap.
	ChildrenOf(id string) []*tree.Turn

	// SiblingsOf returns the turns sharing id's parent, excluding id itself,
	// ordered by CreatedAt ascending. Returns domain.ErrNotFound if id is
	// unknown. The root has no siblings.
	SiblingsOf(id string) ([]*tree.Turn, error)

	// All returns every turn ordered by CreatedAt ascending. Used by the
	// persistence port: replaying the result through Insert reconstructs an
	// identical tree.
	All() []*tree.Turn

	// Len returns the number of turns in the store.
	Len() int
}

// TurnWriter defines the mutations the engine is allowed to perform.
// Only the tree mutator and the stream scheduler hold this interface.
type TurnWriter interface {
	// Insert adds a turn to the arena. Fails with domain.ErrDuplicateID if
	// the id exists, domain.ErrDanglingParent if ParentID is set but missing,
	// and rejects a second root.
	Insert(turn *tree.Turn) error

	// UpdateText replaces a turn's text in place. Used exclusively by the
	// stream scheduler while the turn is revealing.
	UpdateText(id, text string) error

	// SetStreaming flips the turn's IsStreaming flag.
	SetStreaming(id string, streaming bool) error

	// SetBranchLabel records the registry-assigned label and color.
	SetBranchLabel(id, label, color string) error

	// NextSeq hands out the next CreatedAt sequence value. The counter is
	// owned by the store so live appends and replayed inserts cannot race
	// past each other.
	NextSeq() int64
}

// TurnStore is the full message-store contract: the arena of turns plus the
// parent/child index. No method deletes nodes; branch history is never lost.
type TurnStore interface {
	TurnReader
	TurnWriter
}
