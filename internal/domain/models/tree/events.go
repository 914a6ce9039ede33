package tree

import (
	"encoding/json"
	"fmt"
)

// SSE event type constants for the reveal stream
const (
	SSEEventRevealStart  = "reveal_start"  // Reveal has begun for a turn
	SSEEventRevealDelta  = "reveal_delta"  // One token appended to turn text
	SSEEventRevealDone   = "reveal_done"   // All tokens emitted
	SSEEventRevealCancel = "reveal_cancel" // Reveal cancelled, partial text stands
	SSEEventRevealError  = "reveal_error"  // Stream not available / failed
)

// RevealStartEvent signals that token emission has begun for a turn.
type RevealStartEvent struct {
	TurnID     string `json:"turn_id"`
	TokenCount int    `json:"token_count"`
}

// RevealDeltaEvent carries one emitted token and the running text length.
type RevealDeltaEvent struct {
	TurnID     string `json:"turn_id"`
	Token      string `json:"token"`
	TokenIndex int    `json:"token_index"` // 0-based position in the full token sequence
}

// RevealDoneEvent signals that the turn's full text has been revealed.
type RevealDoneEvent struct {
	TurnID string `json:"turn_id"`
	Text   string `json:"text"`
}

// RevealCancelEvent signals cancellation; Text is the partial text retained.
type RevealCancelEvent struct {
	TurnID string `json:"turn_id"`
	Text   string `json:"text"`
}

// RevealErrorEvent signals a stream-level failure to SSE clients.
type RevealErrorEvent struct {
	TurnID  string `json:"turn_id"`
	Message string `json:"message"`
}

// FormatSSE renders an event in wire format:
//
//	event: reveal_delta
//	data: {"turn_id":"...","token":"...","token_index":3}
func FormatSSE(eventType string, data interface{}) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, payload), nil
}
