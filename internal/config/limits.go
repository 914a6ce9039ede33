package config

const (
	// MaxConversationTitleLength is the maximum length for conversation
	// titles. Limited to 255 so titles stay short and fit comfortably in
	// list views.
	MaxConversationTitleLength = 255

	// MaxTurnTextLength caps the text of a single turn. 64KB is far beyond
	// any realistic message and guards the reveal scheduler against
	// pathological token counts.
	MaxTurnTextLength = 65536
)
