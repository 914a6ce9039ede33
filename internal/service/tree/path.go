package tree

import (
	"arbor/internal/domain"
	treeModels "arbor/internal/domain/models/tree"
	treeRepo "arbor/internal/domain/repositories/tree"
)

// maxPathDepth bounds parent-chain walks. Store invariants make cycles
// impossible through the public API, so hitting this limit means the arena
// was corrupted externally and is reported as a broken chain.
const maxPathDepth = 10000

// PathResolver computes the visible linear sequence of turns from the tree
// plus a chosen leaf, and implements first-child descent for auto-following
// a branch after a switch.
type PathResolver struct {
	store treeRepo.TurnReader
}

// NewPathResolver creates a resolver over the given store.
func NewPathResolver(store treeRepo.TurnReader) *PathResolver {
	return &PathResolver{store: store}
}

// MaterializePath walks parent pointers from leafID to the root and returns
// the turns in root-first order.
func (p *PathResolver) MaterializePath(leafID string) ([]*treeModels.Turn, error) {
	turn, err := p.store.Get(leafID)
	if err != nil {
		return nil, err
	}

	var reversed []*treeModels.Turn
	for depth := 0; ; depth++ {
		if depth >= maxPathDepth {
			return nil, &domain.BrokenChainError{TurnID: turn.ID, ParentID: derefOr(turn.ParentID, "")}
		}
		reversed = append(reversed, turn)
		if turn.ParentID == nil {
			break
		}
		parent, err := p.store.Get(*turn.ParentID)
		if err != nil {
			// The parent pointer exists but its target does not. This is a
			// consistency fault, not a caller error; no silent repair.
			return nil, &domain.BrokenChainError{TurnID: turn.ID, ParentID: *turn.ParentID}
		}
		turn = parent
	}

	path := make([]*treeModels.Turn, len(reversed))
	for i, t := range reversed {
		path[len(reversed)-1-i] = t
	}
	return path, nil
}

// DescendFrom repeatedly selects the earliest-created child until a turn with
// no children is reached, returning that turn's id.
//
// Oldest-first is a deliberate, tested policy: after a branch switch the
// engine walks forward along whatever continuation already exists for that
// branch, always preferring the oldest child at each fork.
func (p *PathResolver) DescendFrom(startID string) (string, error) {
	if _, err := p.store.Get(startID); err != nil {
		return "", err
	}

	current := startID
	for depth := 0; depth < maxPathDepth; depth++ {
		children := p.store.ChildrenOf(current)
		if len(children) == 0 {
			return current, nil
		}
		current = children[0].ID
	}
	return "", &domain.BrokenChainError{TurnID: current}
}

// SwitchBranch truncates currentPath to [0, position], substitutes newNodeID
// at that position, then extends the path by first-child descent.
//
// position must index into currentPath and newNodeID must be a sibling of
// (or equal to) the turn at that position; anything else is an invalid
// switch, returned to the caller for local handling.
func (p *PathResolver) SwitchBranch(currentPath []string, newNodeID string, position int) ([]*treeModels.Turn, error) {
	if position < 0 || position >= len(currentPath) {
		return nil, &domain.InvalidSwitchError{
			Position: position,
			TurnID:   newNodeID,
			Reason:   "position is outside the current path",
		}
	}

	newNode, err := p.store.Get(newNodeID)
	if err != nil {
		return nil, &domain.InvalidSwitchError{
			Position: position,
			TurnID:   newNodeID,
			Reason:   "target turn does not exist",
		}
	}

	if newNodeID != currentPath[position] {
		occupant, err := p.store.Get(currentPath[position])
		if err != nil {
			return nil, &domain.BrokenChainError{TurnID: currentPath[position]}
		}
		if !sameParent(newNode.ParentID, occupant.ParentID) {
			return nil, &domain.InvalidSwitchError{
				Position: position,
				TurnID:   newNodeID,
				Reason:   "target is not a sibling of the turn at that position",
			}
		}
	}

	leafID, err := p.DescendFrom(newNodeID)
	if err != nil {
		return nil, err
	}
	return p.MaterializePath(leafID)
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
