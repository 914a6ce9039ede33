package tree

// Sender identifies which side of the conversation produced a turn.
// All branching and labeling logic only ever distinguishes these two cases,
// so this is a closed enum rather than a free-form string.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Valid reports whether s is one of the two known senders.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAssistant
}

// StreamState tracks the reveal lifecycle of a turn's text.
// Transitions: pending -> revealing -> {complete, cancelled}
type StreamState string

const (
	StreamPending   StreamState = "pending"
	StreamRevealing StreamState = "revealing"
	StreamComplete  StreamState = "complete"
	StreamCancelled StreamState = "cancelled"
)

// Turn represents a single message node in the conversation tree (user or assistant).
// Turns form a tree via ParentID; siblings are alternative branches created by edits.
type Turn struct {
	ID             string  `json:"id" db:"id"`
	ConversationID string  `json:"conversation_id,omitempty" db:"conversation_id"`
	ParentID       *string `json:"parent_id,omitempty" db:"parent_id"` // nil for the root turn
	Sender         Sender  `json:"sender" db:"sender"`
	Text           string  `json:"text" db:"text"`

	// CreatedAt is a monotonically increasing sequence number assigned by the
	// store on insert. It is the total order for siblings and the tie-break
	// for first-child descent.
	CreatedAt int64 `json:"created_at" db:"created_at"`

	// BranchLabel is assigned by the branch registry when the turn acquires a
	// sibling ("Original", "Branch 1", ...). Nil until then.
	BranchLabel *string `json:"branch_label,omitempty" db:"branch_label"`

	// BranchColor is the display color for the branch selector, derived from
	// the label index against a fixed palette. Empty when unlabeled.
	BranchColor string `json:"branch_color,omitempty" db:"branch_color"`

	IsStreaming bool `json:"is_streaming" db:"is_streaming"`

	// Collapsed is a UI flag carried through for downstream renderers.
	// The engine stores it but never interprets it.
	Collapsed bool `json:"collapsed" db:"collapsed"`
}

// IsRoot reports whether the turn is the conversation root.
func (t *Turn) IsRoot() bool {
	return t.ParentID == nil
}

// Clone returns a copy of the turn safe to hand across the engine boundary.
// Pointer fields are duplicated so callers cannot reach back into the store.
func (t *Turn) Clone() *Turn {
	c := *t
	if t.ParentID != nil {
		parent := *t.ParentID
		c.ParentID = &parent
	}
	if t.BranchLabel != nil {
		label := *t.BranchLabel
		c.BranchLabel = &label
	}
	return &c
}
