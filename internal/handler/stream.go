package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	treeModels "arbor/internal/domain/models/tree"
	"arbor/internal/handler/sse"
	"arbor/internal/httputil"
	treeSvc "arbor/internal/service/tree"
)

// StreamHandler serves reveal events over Server-Sent Events.
type StreamHandler struct {
	registry *treeSvc.ConversationRegistry
	config   *sse.Config
	logger   *slog.Logger
}

// NewStreamHandler creates a new SSE stream handler.
func NewStreamHandler(registry *treeSvc.ConversationRegistry, config *sse.Config, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		registry: registry,
		config:   config,
		logger:   logger,
	}
}

// StreamTurn streams a turn's reveal via SSE. A client that connects after
// the reveal settled receives a single terminal event with the final text.
// GET /api/turns/{id}/stream
func (h *StreamHandler) StreamTurn(w http.ResponseWriter, r *http.Request) {
	turnID, ok := PathParam(w, r, "id", "Turn ID")
	if !ok {
		return
	}

	engine, err := h.registry.FindTurn(r.Context(), turnID)
	if err != nil {
		handleError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	clientID := uuid.New().String()
	writer := sse.NewStreamWriter(w, flusher)

	// Subscribe before checking state so a settle between the check and the
	// subscription cannot strand the client.
	events := h.registry.Broadcaster().AddClient(turnID, clientID)
	defer h.registry.Broadcaster().RemoveClient(turnID, clientID)

	h.logger.Debug("SSE stream established",
		"turn_id", turnID,
		"client_id", clientID,
	)

	// Already-settled turns get their terminal event immediately.
	if frame, settled := h.settledFrame(engine, turnID); settled {
		if err := writer.WriteFrame(frame); err != nil {
			h.logger.Debug("client disconnected before terminal event",
				"turn_id", turnID,
				"client_id", clientID,
			)
		}
		return
	}

	keepAlive := sse.NewTickerKeepAlive(h.config.KeepAliveInterval)
	keepAliveDone := keepAlive.Start(writer, h.logger)
	defer keepAlive.Stop()

	for {
		select {
		case frame, open := <-events:
			if !open {
				// Reveal settled; terminal event already delivered.
				return
			}
			if err := writer.WriteFrame(frame); err != nil {
				h.logger.Debug("client disconnected during reveal",
					"turn_id", turnID,
					"client_id", clientID,
					"error", err,
				)
				return
			}
		case <-keepAliveDone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// settledFrame builds the terminal SSE frame for a turn whose reveal has
// already completed or been cancelled.
func (h *StreamHandler) settledFrame(engine *treeSvc.Engine, turnID string) (string, bool) {
	turn, err := engine.Turn(turnID)
	if err != nil {
		return "", false
	}

	var frame string
	switch engine.RevealState(turnID) {
	case treeModels.StreamComplete:
		frame, err = treeModels.FormatSSE(treeModels.SSEEventRevealDone, treeModels.RevealDoneEvent{
			TurnID: turnID,
			Text:   turn.Text,
		})
	case treeModels.StreamCancelled:
		frame, err = treeModels.FormatSSE(treeModels.SSEEventRevealCancel, treeModels.RevealCancelEvent{
			TurnID: turnID,
			Text:   turn.Text,
		})
	default:
		return "", false
	}
	if err != nil {
		h.logger.Error("format terminal event", "turn_id", turnID, "error", err)
		return "", false
	}
	return frame, true
}
