package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"arbor/internal/domain"
	treeModels "arbor/internal/domain/models/tree"
	treeRepo "arbor/internal/domain/repositories/tree"
)

// TurnArchive implements the persistence port on PostgreSQL. The engine
// remains the source of truth while running; the archive only records turns
// so a conversation can be reconstructed later by replaying LoadTurns
// through the in-memory store in CreatedAt order.
type TurnArchive struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewTurnArchive creates an archive over the given pool.
func NewTurnArchive(pool *pgxpool.Pool, tables *TableNames, logger *slog.Logger) *TurnArchive {
	return &TurnArchive{
		pool:   pool,
		tables: tables,
		logger: logger,
	}
}

// EnsureSchema creates the conversation and turn tables if they are absent.
// Turns carry no foreign key to their parent row on purpose: replay order is
// CreatedAt, and the engine validates parent links on insert anyway.
func (a *TurnArchive) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				title TEXT NOT NULL,
				root_id UUID NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)
		`, a.tables.Conversations),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				conversation_id UUID NOT NULL,
				parent_id UUID,
				sender TEXT NOT NULL,
				text TEXT NOT NULL,
				created_at BIGINT NOT NULL,
				branch_label TEXT,
				branch_color TEXT NOT NULL DEFAULT '',
				is_streaming BOOLEAN NOT NULL DEFAULT FALSE,
				collapsed BOOLEAN NOT NULL DEFAULT FALSE
			)
		`, a.tables.Turns),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_conversation_seq_idx
			ON %s (conversation_id, created_at)
		`, a.tables.Turns, a.tables.Turns),
	}

	for _, stmt := range statements {
		if _, err := a.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// CreateConversation records a conversation and its root turn.
func (a *TurnArchive) CreateConversation(ctx context.Context, conv *treeModels.Conversation, root *treeModels.Turn) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, title, root_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, a.tables.Conversations)

	if _, err := a.pool.Exec(ctx, query, conv.ID, conv.Title, conv.RootID, conv.CreatedAt); err != nil {
		if isDuplicateError(err) {
			return &domain.DuplicateIDError{TurnID: conv.ID}
		}
		return fmt.Errorf("insert conversation: %w", err)
	}
	return a.SaveTurn(ctx, conv.ID, root)
}

// GetConversation retrieves conversation metadata.
func (a *TurnArchive) GetConversation(ctx context.Context, conversationID string) (*treeModels.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, title, root_id, created_at
		FROM %s
		WHERE id = $1
	`, a.tables.Conversations)

	var conv treeModels.Conversation
	err := a.pool.QueryRow(ctx, query, conversationID).Scan(
		&conv.ID, &conv.Title, &conv.RootID, &conv.CreatedAt,
	)
	if err != nil {
		if isNoRowsError(err) {
			return nil, &domain.NotFoundError{TurnID: conversationID}
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations returns all conversations, newest first.
func (a *TurnArchive) ListConversations(ctx context.Context) ([]*treeModels.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, title, root_id, created_at
		FROM %s
		ORDER BY created_at DESC
	`, a.tables.Conversations)

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*treeModels.Conversation
	for rows.Next() {
		var conv treeModels.Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.RootID, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, &conv)
	}
	return out, rows.Err()
}

// SaveTurn persists one turn.
func (a *TurnArchive) SaveTurn(ctx context.Context, conversationID string, turn *treeModels.Turn) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, conversation_id, parent_id, sender, text,
			created_at, branch_label, branch_color, is_streaming, collapsed
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.tables.Turns)

	_, err := a.pool.Exec(ctx, query,
		turn.ID, conversationID, turn.ParentID, string(turn.Sender), turn.Text,
		turn.CreatedAt, turn.BranchLabel, turn.BranchColor, turn.IsStreaming, turn.Collapsed,
	)
	if err != nil {
		if isDuplicateError(err) {
			return &domain.DuplicateIDError{TurnID: turn.ID}
		}
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// UpdateTurn rewrites a turn's mutable fields.
func (a *TurnArchive) UpdateTurn(ctx context.Context, turn *treeModels.Turn) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET text = $2, branch_label = $3, branch_color = $4,
		    is_streaming = $5, collapsed = $6
		WHERE id = $1
	`, a.tables.Turns)

	tag, err := a.pool.Exec(ctx, query,
		turn.ID, turn.Text, turn.BranchLabel, turn.BranchColor,
		turn.IsStreaming, turn.Collapsed,
	)
	if err != nil {
		return fmt.Errorf("update turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{TurnID: turn.ID}
	}
	return nil
}

// LoadTurns returns a conversation's turns in CreatedAt order, ready for
// insert replay. Streaming flags are cleared: a process that died mid-reveal
// must not resurrect a phantom stream.
func (a *TurnArchive) LoadTurns(ctx context.Context, conversationID string) ([]*treeModels.Turn, error) {
	query := fmt.Sprintf(`
		SELECT id, parent_id, sender, text, created_at,
		       branch_label, branch_color, is_streaming, collapsed
		FROM %s
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, a.tables.Turns)

	rows, err := a.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	defer rows.Close()

	var out []*treeModels.Turn
	for rows.Next() {
		var turn treeModels.Turn
		var sender string
		if err := rows.Scan(
			&turn.ID, &turn.ParentID, &sender, &turn.Text, &turn.CreatedAt,
			&turn.BranchLabel, &turn.BranchColor, &turn.IsStreaming, &turn.Collapsed,
		); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.ConversationID = conversationID
		turn.Sender = treeModels.Sender(sender)
		turn.IsStreaming = false
		out = append(out, &turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	a.logger.Debug("turns loaded", "conversation_id", conversationID, "count", len(out))
	return out, nil
}

// FindTurnConversation resolves a turn id to its owning conversation.
func (a *TurnArchive) FindTurnConversation(ctx context.Context, turnID string) (string, error) {
	query := fmt.Sprintf(`
		SELECT conversation_id
		FROM %s
		WHERE id = $1
	`, a.tables.Turns)

	var conversationID string
	if err := a.pool.QueryRow(ctx, query, turnID).Scan(&conversationID); err != nil {
		if isNoRowsError(err) {
			return "", &domain.NotFoundError{TurnID: turnID}
		}
		return "", fmt.Errorf("find turn conversation: %w", err)
	}
	return conversationID, nil
}

var _ treeRepo.Archive = (*TurnArchive)(nil)
