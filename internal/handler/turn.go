package handler

import (
	"log/slog"
	"net/http"

	"arbor/internal/httputil"
	treeSvc "arbor/internal/service/tree"
)

// TurnHandler handles turn HTTP requests.
type TurnHandler struct {
	registry *treeSvc.ConversationRegistry
	logger   *slog.Logger
}

// NewTurnHandler creates a new turn handler.
func NewTurnHandler(registry *treeSvc.ConversationRegistry, logger *slog.Logger) *TurnHandler {
	return &TurnHandler{
		registry: registry,
		logger:   logger,
	}
}

type editTurnBody struct {
	Text     string `json:"text"`
	Generate bool   `json:"generate"`
}

// EditTurn forks at an existing turn with replacement text. The original is
// never overwritten; a new sibling is created and the path moves onto it.
// POST /api/turns/{id}/edit
func (h *TurnHandler) EditTurn(w http.ResponseWriter, r *http.Request) {
	turnID, ok := PathParam(w, r, "id", "Turn ID")
	if !ok {
		return
	}

	var body editTurnBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req := treeSvc.EditTurnRequest{Text: body.Text}
	sibling, reply, err := h.registry.Edit(r.Context(), turnID, &req, body.Generate)
	if err != nil {
		handleError(w, err)
		return
	}

	resp := map[string]interface{}{"turn": sibling}
	if reply != nil {
		resp["assistant_turn"] = reply
	}
	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// GetTurn returns a single turn.
// GET /api/turns/{id}
func (h *TurnHandler) GetTurn(w http.ResponseWriter, r *http.Request) {
	turnID, ok := PathParam(w, r, "id", "Turn ID")
	if !ok {
		return
	}

	engine, err := h.registry.FindTurn(r.Context(), turnID)
	if err != nil {
		handleError(w, err)
		return
	}

	turn, err := engine.Turn(turnID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, turn)
}

// GetSiblings returns a turn's sibling group in creation order, the turn
// itself included.
// GET /api/turns/{id}/siblings
func (h *TurnHandler) GetSiblings(w http.ResponseWriter, r *http.Request) {
	turnID, ok := PathParam(w, r, "id", "Turn ID")
	if !ok {
		return
	}

	engine, err := h.registry.FindTurn(r.Context(), turnID)
	if err != nil {
		handleError(w, err)
		return
	}

	siblings, err := engine.Siblings(turnID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"turn_id":  turnID,
		"siblings": siblings,
		"count":    len(siblings),
	})
}

// InterruptTurn cancels an in-progress reveal, keeping the tokens revealed
// so far. Idempotent: interrupting a settled turn succeeds.
// POST /api/turns/{id}/interrupt
func (h *TurnHandler) InterruptTurn(w http.ResponseWriter, r *http.Request) {
	turnID, ok := PathParam(w, r, "id", "Turn ID")
	if !ok {
		return
	}

	engine, err := h.registry.FindTurn(r.Context(), turnID)
	if err != nil {
		handleError(w, err)
		return
	}

	if err := engine.CancelReveal(r.Context(), turnID); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"turn_id": turnID,
		"state":   engine.RevealState(turnID),
	})
}
