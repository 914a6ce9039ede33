package tree

import (
	"context"

	"arbor/internal/domain/models/tree"
)

// Archive is the optional persistence port. The engine has no native
// serialization format; an archive only needs to hand back turns in
// CreatedAt order so they can be replayed through TurnWriter.Insert.
type Archive interface {
	// CreateConversation records a new conversation and its root turn.
	CreateConversation(ctx context.Context, conv *tree.Conversation, root *tree.Turn) error

	// GetConversation retrieves conversation metadata.
	// Returns domain.ErrNotFound if absent.
	GetConversation(ctx context.Context, conversationID string) (*tree.Conversation, error)

	// ListConversations returns all conversations, newest first.
	ListConversations(ctx context.Context) ([]*tree.Conversation, error)

	// SaveTurn persists one turn. Called by the engine after each mutation
	// and after a reveal stream settles (complete or cancelled).
	SaveTurn(ctx context.Context, conversationID string, turn *tree.Turn) error

	// UpdateTurn rewrites a persisted turn's mutable fields (text, label,
	// color, streaming flag).
	UpdateTurn(ctx context.Context, turn *tree.Turn) error

	// LoadTurns returns every turn of a conversation ordered by CreatedAt
	// ascending, ready for insert replay.
	LoadTurns(ctx context.Context, conversationID string) ([]*tree.Turn, error)

	// FindTurnConversation resolves a turn id to the conversation that owns
	// it, so turn-scoped requests can reload an archived conversation.
	// Returns domain.ErrNotFound if absent.
	FindTurnConversation(ctx context.Context, turnID string) (string, error)
}
