package tree

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"arbor/internal/config"
	treeModels "arbor/internal/domain/models/tree"
)

// CreateConversationRequest creates a conversation with its root turn.
type CreateConversationRequest struct {
	Title    string `json:"title"`
	RootText string `json:"root_text"`
}

// Validate implements request validation.
func (r *CreateConversationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, config.MaxConversationTitleLength)),
		validation.Field(&r.RootText, validation.Required, validation.Length(1, config.MaxTurnTextLength)),
	)
}

// AppendTurnRequest appends a turn under a parent. When Generate is set the
// responder is invoked with the new path and the assistant reply is streamed.
type AppendTurnRequest struct {
	ParentID string            `json:"parent_id"`
	Sender   treeModels.Sender `json:"sender"`
	Text     string            `json:"text"`
	Generate bool              `json:"generate"`
}

// Validate implements request validation.
func (r *AppendTurnRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ParentID, validation.Required, is.UUID),
		validation.Field(&r.Sender, validation.Required, validation.In(treeModels.SenderUser, treeModels.SenderAssistant)),
		validation.Field(&r.Text, validation.Required, validation.Length(1, config.MaxTurnTextLength)),
	)
}

// EditTurnRequest forks at an existing turn with replacement text.
type EditTurnRequest struct {
	Text string `json:"text"`
}

// Validate implements request validation.
func (r *EditTurnRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Text, validation.Required, validation.Length(1, config.MaxTurnTextLength)),
	)
}

// SwitchBranchRequest moves the displayed path to a sibling at a position.
type SwitchBranchRequest struct {
	Position int    `json:"position"`
	TurnID   string `json:"turn_id"`
}

// Validate implements request validation.
func (r *SwitchBranchRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Position, validation.Min(0)),
		validation.Field(&r.TurnID, validation.Required, is.UUID),
	)
}
