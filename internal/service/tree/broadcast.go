package tree

import (
	"log/slog"
	"sync"

	treeModels "arbor/internal/domain/models/tree"
)

// clientBuffer is the per-client event channel depth. Slow SSE clients drop
// events rather than stall the reveal for everyone else.
const clientBuffer = 256

// RevealBroadcaster fans reveal events out to SSE clients. Clients subscribe
// per turn; channels are closed when the turn's stream settles so handlers
// unblock naturally.
type RevealBroadcaster struct {
	mu      sync.RWMutex
	clients map[string]map[string]chan string // turnID -> clientID -> events
	logger  *slog.Logger
}

// NewRevealBroadcaster creates an empty broadcaster.
func NewRevealBroadcaster(logger *slog.Logger) *RevealBroadcaster {
	return &RevealBroadcaster{
		clients: make(map[string]map[string]chan string),
		logger:  logger,
	}
}

// AddClient registers an SSE client for a turn and returns its event channel.
// The channel carries fully formatted SSE frames.
func (b *RevealBroadcaster) AddClient(turnID, clientID string) <-chan string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.clients[turnID] == nil {
		b.clients[turnID] = make(map[string]chan string)
	}
	ch := make(chan string, clientBuffer)
	b.clients[turnID][clientID] = ch
	return ch
}

// RemoveClient unregisters an SSE client. Safe to call after the turn's
// channels were already closed by a settle.
func (b *RevealBroadcaster) RemoveClient(turnID, clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	group, ok := b.clients[turnID]
	if !ok {
		return
	}
	if ch, exists := group[clientID]; exists {
		close(ch)
		delete(group, clientID)
	}
	if len(group) == 0 {
		delete(b.clients, turnID)
	}
}

// Publish formats and delivers a stream event to every client of its turn.
// Sends are non-blocking; a full client buffer drops the frame.
func (b *RevealBroadcaster) Publish(ev StreamEvent) {
	frame, err := formatEvent(ev)
	if err != nil {
		b.logger.Error("format reveal event", "turn_id", ev.TurnID, "error", err)
		return
	}

	b.mu.RLock()
	for clientID, ch := range b.clients[ev.TurnID] {
		select {
		case ch <- frame:
		default:
			b.logger.Warn("dropping reveal event for slow client",
				"turn_id", ev.TurnID,
				"client_id", clientID,
			)
		}
	}
	b.mu.RUnlock()

	// Settling the stream ends every subscription for the turn.
	if ev.Type == treeModels.SSEEventRevealDone || ev.Type == treeModels.SSEEventRevealCancel {
		b.closeTurn(ev.TurnID)
	}
}

func (b *RevealBroadcaster) closeTurn(turnID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.clients[turnID] {
		close(ch)
	}
	delete(b.clients, turnID)
}

// formatEvent renders a StreamEvent as an SSE frame.
func formatEvent(ev StreamEvent) (string, error) {
	switch ev.Type {
	case treeModels.SSEEventRevealStart:
		return treeModels.FormatSSE(ev.Type, treeModels.RevealStartEvent{
			TurnID:     ev.TurnID,
			TokenCount: ev.TokenCount,
		})
	case treeModels.SSEEventRevealDelta:
		return treeModels.FormatSSE(ev.Type, treeModels.RevealDeltaEvent{
			TurnID:     ev.TurnID,
			Token:      ev.Token,
			TokenIndex: ev.Index,
		})
	case treeModels.SSEEventRevealDone:
		return treeModels.FormatSSE(ev.Type, treeModels.RevealDoneEvent{
			TurnID: ev.TurnID,
			Text:   ev.Text,
		})
	case treeModels.SSEEventRevealCancel:
		return treeModels.FormatSSE(ev.Type, treeModels.RevealCancelEvent{
			TurnID: ev.TurnID,
			Text:   ev.Text,
		})
	default:
		return treeModels.FormatSSE(treeModels.SSEEventRevealError, treeModels.RevealErrorEvent{
			TurnID:  ev.TurnID,
			Message: "unknown event type " + ev.Type,
		})
	}
}
