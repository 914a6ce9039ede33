package memory

import (
	"fmt"
	"sort"

	"arbor/internal/domain"
	"arbor/internal/domain/models/tree"
	treeRepo "arbor/internal/domain/repositories/tree"
)

// MessageStore is the in-memory turn arena backing one conversation tree.
//
// Turns are held in a map keyed by id, and "parent" is always a lookup into
// that map, never a raw pointer. That makes the no-dangling-parent and
// no-cycle invariants checkable at insert time: a new turn has no children
// yet, so pointing it at any existing parent can never close a cycle.
//
// The store performs no locking of its own. It is exclusively owned by the
// engine, which serializes every mutator call and scheduler tick behind a
// single mutex.
type MessageStore struct {
	turns    map[string]*tree.Turn
	children map[string][]string // parentID -> child ids, CreatedAt ascending
	rootID   string
	seq      int64 // highest CreatedAt seen; NextSeq hands out seq+1
}

// NewMessageStore creates an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		turns:    make(map[string]*tree.Turn),
		children: make(map[string][]string),
	}
}

// Insert adds a turn to the arena.
// The first insert must be the root (nil ParentID); every later insert must
// reference an existing parent. No method ever removes a turn: abandoned
// branches stay navigable for the lifetime of the tree.
func (s *MessageStore) Insert(turn *tree.Turn) error {
	if turn.ID == "" {
		return fmt.Errorf("%w: turn id is empty", domain.ErrValidation)
	}
	if _, exists := s.turns[turn.ID]; exists {
		return &domain.DuplicateIDError{TurnID: turn.ID}
	}

	if turn.ParentID == nil {
		if s.rootID != "" {
			// A second root would split the forest; reject as a duplicate
			// of the root position.
			return &domain.DuplicateIDError{TurnID: turn.ID}
		}
		s.rootID = turn.ID
	} else {
		if _, ok := s.turns[*turn.ParentID]; !ok {
			return &domain.DanglingParentError{TurnID: turn.ID, ParentID: *turn.ParentID}
		}
		s.insertChild(*turn.ParentID, turn)
	}

	s.turns[turn.ID] = turn.Clone()
	if turn.CreatedAt > s.seq {
		s.seq = turn.CreatedAt
	}
	return nil
}

// insertChild places id into the parent's child list keeping CreatedAt order.
// Live appends always land at the end; sorted insertion only matters when a
// loader replays turns with pre-assigned sequence values.
func (s *MessageStore) insertChild(parentID string, turn *tree.Turn) {
	ids := s.children[parentID]
	pos := sort.Search(len(ids), func(i int) bool {
		return s.turns[ids[i]].CreatedAt > turn.CreatedAt
	})
	ids = append(ids, "")
	copy(ids[pos+1:], ids[pos:])
	ids[pos] = turn.ID
	s.children[parentID] = ids
}

// Get retrieves a turn by id.
func (s *MessageStore) Get(id string) (*tree.Turn, error) {
	turn, ok := s.turns[id]
	if !ok {
		return nil, &domain.NotFoundError{TurnID: id}
	}
	return turn.Clone(), nil
}

// Root returns the root turn.
func (s *MessageStore) Root() (*tree.Turn, error) {
	if s.rootID == "" {
		return nil, &domain.NotFoundError{TurnID: "(root)"}
	}
	return s.turns[s.rootID].Clone(), nil
}

// ChildrenOf returns id's children ordered by CreatedAt ascending.
func (s *MessageStore) ChildrenOf(id string) []*tree.Turn {
	ids := s.children[id]
	out := make([]*tree.Turn, len(ids))
	for i, childID := range ids {
		out[i] = s.turns[childID].Clone()
	}
	return out
}

// SiblingsOf returns the turns sharing id's parent, excluding id itself.
func (s *MessageStore) SiblingsOf(id string) ([]*tree.Turn, error) {
	turn, ok := s.turns[id]
	if !ok {
		return nil, &domain.NotFoundError{TurnID: id}
	}
	if turn.ParentID == nil {
		return nil, nil // the root has no siblings
	}

	var out []*tree.Turn
	for _, childID := range s.children[*turn.ParentID] {
		if childID == id {
			continue
		}
		out = append(out, s.turns[childID].Clone())
	}
	return out, nil
}

// All returns every turn ordered by CreatedAt ascending.
func (s *MessageStore) All() []*tree.Turn {
	out := make([]*tree.Turn, 0, len(s.turns))
	for _, turn := range s.turns {
		out = append(out, turn.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out
}

// Len returns the number of turns in the store.
func (s *MessageStore) Len() int {
	return len(s.turns)
}

// UpdateText replaces a turn's text in place.
func (s *MessageStore) UpdateText(id, text string) error {
	turn, ok := s.turns[id]
	if !ok {
		return &domain.NotFoundError{TurnID: id}
	}
	turn.Text = text
	return nil
}

// SetStreaming flips a turn's IsStreaming flag.
func (s *MessageStore) SetStreaming(id string, streaming bool) error {
	turn, ok := s.turns[id]
	if !ok {
		return &domain.NotFoundError{TurnID: id}
	}
	turn.IsStreaming = streaming
	return nil
}

// SetBranchLabel records the registry-assigned label and color.
func (s *MessageStore) SetBranchLabel(id, label, color string) error {
	turn, ok := s.turns[id]
	if !ok {
		return &domain.NotFoundError{TurnID: id}
	}
	turn.BranchLabel = &label
	turn.BranchColor = color
	return nil
}

// NextSeq hands out the next CreatedAt sequence value.
func (s *MessageStore) NextSeq() int64 {
	s.seq++
	return s.seq
}

var _ treeRepo.TurnStore = (*MessageStore)(nil)
