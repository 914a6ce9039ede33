package tree

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"arbor/internal/domain"
	treeModels "arbor/internal/domain/models/tree"
	treeRepo "arbor/internal/domain/repositories/tree"
)

// TreeMutator is the only component with write access to the turn arena's
// structure. It implements append and edit-as-fork and keeps the branch
// registry in sync at branch-creation time.
type TreeMutator struct {
	conversationID string
	store          treeRepo.TurnStore
	registry       *BranchRegistry
	logger         *slog.Logger
}

// NewTreeMutator creates a mutator over the given store and registry.
func NewTreeMutator(conversationID string, store treeRepo.TurnStore, registry *BranchRegistry, logger *slog.Logger) *TreeMutator {
	return &TreeMutator{
		conversationID: conversationID,
		store:          store,
		registry:       registry,
		logger:         logger,
	}
}

// Append creates a new turn under parentID and inserts it into the store.
// The branch registry is not consulted here even when the parent already has
// children: sibling labeling only ever happens through Edit.
func (m *TreeMutator) Append(parentID string, sender treeModels.Sender, text string) (*treeModels.Turn, error) {
	if _, err := m.store.Get(parentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.UnknownParentError{ParentID: parentID}
		}
		return nil, err
	}

	turn := &treeModels.Turn{
		ID:             uuid.New().String(),
		ConversationID: m.conversationID,
		ParentID:       &parentID,
		Sender:         sender,
		Text:           text,
		CreatedAt:      m.store.NextSeq(),
	}
	if err := m.store.Insert(turn); err != nil {
		return nil, fmt.Errorf("insert appended turn: %w", err)
	}

	m.logger.Debug("turn appended",
		"turn_id", turn.ID,
		"parent_id", parentID,
		"sender", sender,
	)
	return turn.Clone(), nil
}

// Edit creates a new sibling of originalID carrying newText. The original
// turn's text is never mutated: history is append-only, and "editing" is
// sugar for forking at that point. The registry labels both sides of the new
// branch point.
func (m *TreeMutator) Edit(originalID, newText string) (*treeModels.Turn, error) {
	original, err := m.store.Get(originalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.UnknownParentError{ParentID: originalID}
		}
		return nil, err
	}
	if original.ParentID == nil {
		// A sibling of the root would be a second root. The root greeting is
		// not editable in the product either.
		return nil, fmt.Errorf("%w: root turn cannot be edited", domain.ErrValidation)
	}

	sibling := &treeModels.Turn{
		ID:             uuid.New().String(),
		ConversationID: m.conversationID,
		ParentID:       original.ParentID,
		Sender:         treeModels.SenderUser,
		Text:           newText,
		CreatedAt:      m.store.NextSeq(),
	}
	if err := m.store.Insert(sibling); err != nil {
		return nil, fmt.Errorf("insert edit fork: %w", err)
	}

	if err := m.registry.EnsureLabeled(originalID, sibling.ID); err != nil {
		return nil, fmt.Errorf("label branch point: %w", err)
	}

	m.logger.Info("turn edited as fork",
		"original_id", originalID,
		"sibling_id", sibling.ID,
	)

	// Re-read so the caller sees the assigned label and color.
	return m.store.Get(sibling.ID)
}
