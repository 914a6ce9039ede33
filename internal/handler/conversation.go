package handler

import (
	"log/slog"
	"net/http"

	"arbor/internal/httputil"
	treeSvc "arbor/internal/service/tree"
)

// ConversationHandler handles conversation HTTP requests.
// Handlers only communicate with the registry, never with stores directly.
type ConversationHandler struct {
	registry *treeSvc.ConversationRegistry
	logger   *slog.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(registry *treeSvc.ConversationRegistry, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{
		registry: registry,
		logger:   logger,
	}
}

// CreateConversation creates a conversation with its root turn.
// POST /api/conversations
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req treeSvc.CreateConversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conv, err := h.registry.Create(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, conv)
}

// ListConversations returns all conversations, newest first.
// GET /api/conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.registry.List(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": convs,
	})
}

// GetPath returns the currently displayed root-to-leaf path, each entry
// paired with its sibling group.
// GET /api/conversations/{id}/path
func (h *ConversationHandler) GetPath(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	engine, err := h.registry.Get(r.Context(), conversationID)
	if err != nil {
		handleError(w, err)
		return
	}

	view, err := engine.View(engine.CurrentLeafID())
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, view)
}

// GetTree returns every turn in the conversation in insertion order.
// Intended for debugging and full-tree visualizations.
// GET /api/conversations/{id}/turns
func (h *ConversationHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	engine, err := h.registry.Get(r.Context(), conversationID)
	if err != nil {
		handleError(w, err)
		return
	}

	turns := engine.Snapshot()
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"conversation_id": conversationID,
		"turns":           turns,
		"count":           len(turns),
	})
}

// CreateTurn appends a turn under a parent on the current path. When the
// request sets generate, an assistant reply is created and revealed
// token by token; clients follow it on the turn's stream endpoint.
// POST /api/conversations/{id}/turns
func (h *ConversationHandler) CreateTurn(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	var req treeSvc.AppendTurnRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	turn, reply, err := h.registry.Append(r.Context(), conversationID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	resp := map[string]interface{}{"turn": turn}
	if reply != nil {
		resp["assistant_turn"] = reply
	}
	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// SwitchBranch moves the displayed path to a sibling at a position and
// returns the new path view.
// POST /api/conversations/{id}/switch
func (h *ConversationHandler) SwitchBranch(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	var req treeSvc.SwitchBranchRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	engine, err := h.registry.Get(r.Context(), conversationID)
	if err != nil {
		handleError(w, err)
		return
	}

	view, err := engine.SwitchBranch(r.Context(), req.TurnID, req.Position)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, view)
}

// HealthCheck returns service liveness.
// GET /health
func (h *ConversationHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
