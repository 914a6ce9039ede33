package tree

import (
	"fmt"
	"log/slog"

	treeModels "arbor/internal/domain/models/tree"
	treeRepo "arbor/internal/domain/repositories/tree"
	"arbor/internal/palette"
)

// BranchRegistry keeps sibling groups human-navigable. When an edit creates a
// branch point, the original turn is labeled "Original" (once) and the new
// sibling gets the next "Branch N" label.
//
// N is a single counter scoped to the whole tree, not per fork: branch
// numbers stay globally sequential across the conversation. Per-fork
// numbering would also be defensible, but global numbering is the observed
// product behavior and is preserved here.
type BranchRegistry struct {
	store   treeRepo.TurnStore
	palette *palette.Palette
	counter int // highest Branch N handed out so far
	logger  *slog.Logger
}

// NewBranchRegistry creates a registry over the given store.
func NewBranchRegistry(store treeRepo.TurnStore, pal *palette.Palette, logger *slog.Logger) *BranchRegistry {
	return &BranchRegistry{
		store:   store,
		palette: pal,
		logger:  logger,
	}
}

// EnsureLabeled is called by the tree mutator at branch-creation time, never
// by any other component. It labels the original turn "Original" if it has no
// label yet and assigns the new sibling the next unused "Branch N".
func (r *BranchRegistry) EnsureLabeled(originalID, newSiblingID string) error {
	original, err := r.store.Get(originalID)
	if err != nil {
		return err
	}

	if original.BranchLabel == nil {
		if err := r.store.SetBranchLabel(originalID, "Original", r.palette.ColorFor(0)); err != nil {
			return err
		}
	}

	r.counter++
	label := fmt.Sprintf("Branch %d", r.counter)
	if err := r.store.SetBranchLabel(newSiblingID, label, r.palette.ColorFor(r.counter)); err != nil {
		return err
	}

	r.logger.Debug("branch labeled",
		"original_id", originalID,
		"sibling_id", newSiblingID,
		"label", label,
	)
	return nil
}

// LabelFor returns a turn's branch label, or nil if it has none.
func (r *BranchRegistry) LabelFor(turnID string) (*string, error) {
	turn, err := r.store.Get(turnID)
	if err != nil {
		return nil, err
	}
	return turn.BranchLabel, nil
}

// Observe resumes the global counter from a replayed turn's label so that
// labels assigned after a reload continue the sequence instead of reusing
// numbers.
func (r *BranchRegistry) Observe(turn *treeModels.Turn) {
	if turn.BranchLabel == nil {
		return
	}
	var n int
	if _, err := fmt.Sscanf(*turn.BranchLabel, "Branch %d", &n); err != nil {
		return // "Original" or a foreign label
	}
	if n > r.counter {
		r.counter = n
	}
}
