package tree

import (
	"fmt"
	"log/slog"
	"strings"

	"arbor/internal/domain"
	treeModels "arbor/internal/domain/models/tree"
	treeRepo "arbor/internal/domain/repositories/tree"
)

// TickResult describes what a single scheduler tick did.
type TickResult struct {
	TurnID string
	Token  string
	Index  int // 0-based position of Token in the full sequence
	Total  int
	Text   string // turn text after this tick
	Done   bool   // true when this tick emitted the final token
}

// activeStream is the scheduler's per-turn reveal state. At most one exists
// at a time (single active stream invariant).
type activeStream struct {
	turnID string
	tokens []string
	next   int
	text   strings.Builder
}

// StreamScheduler reveals a turn's text incrementally, one whitespace token
// per tick. It owns no timer: callers (tests, the reveal runner) invoke
// Tick() themselves, so the core logic runs without wall-clock time.
//
// State machine per turn: pending -> revealing -> {complete, cancelled}.
// Cancellation stops future ticks and leaves the partial text standing;
// it never rewrites tokens that were already emitted.
type StreamScheduler struct {
	store  treeRepo.TurnStore
	logger *slog.Logger

	active *activeStream
	states map[string]treeModels.StreamState
}

// NewStreamScheduler creates a scheduler over the given store.
func NewStreamScheduler(store treeRepo.TurnStore, logger *slog.Logger) *StreamScheduler {
	return &StreamScheduler{
		store:  store,
		logger: logger,
		states: make(map[string]treeModels.StreamState),
	}
}

// StateOf reports a turn's reveal state. Turns the scheduler has never seen
// are pending.
func (s *StreamScheduler) StateOf(turnID string) treeModels.StreamState {
	if state, ok := s.states[turnID]; ok {
		return state
	}
	return treeModels.StreamPending
}

// ActiveTurnID returns the id of the currently revealing turn, or "".
func (s *StreamScheduler) ActiveTurnID() string {
	if s.active == nil {
		return ""
	}
	return s.active.turnID
}

// Start begins revealing fullText on the given turn. The turn's text is
// cleared and rebuilt token by token on subsequent ticks.
//
// Only one turn may be revealing at a time: starting a new stream while
// another is active cancels the prior one first, retaining its partial text.
func (s *StreamScheduler) Start(turnID, fullText string) (int, error) {
	turn, err := s.store.Get(turnID)
	if err != nil {
		return 0, err
	}
	if s.StateOf(turnID) == treeModels.StreamComplete {
		// Completed turns are immutable.
		return 0, fmt.Errorf("%w: turn %s already revealed", domain.ErrValidation, turnID)
	}

	if s.active != nil {
		s.Cancel(s.active.turnID)
	}

	tokens := strings.Fields(fullText)

	if err := s.store.UpdateText(turnID, ""); err != nil {
		return 0, err
	}

	if len(tokens) == 0 {
		// Nothing to reveal; settle immediately.
		s.states[turnID] = treeModels.StreamComplete
		return 0, nil
	}

	if err := s.store.SetStreaming(turnID, true); err != nil {
		return 0, err
	}
	s.active = &activeStream{turnID: turnID, tokens: tokens}
	s.states[turnID] = treeModels.StreamRevealing

	s.logger.Debug("reveal started",
		"turn_id", turn.ID,
		"token_count", len(tokens),
	)
	return len(tokens), nil
}

// Tick appends the next token (plus a separating space) to the revealing
// turn's text. Returns nil when no stream is active. Emission order is
// exactly token order; no token is skipped or duplicated.
func (s *StreamScheduler) Tick() (*TickResult, error) {
	if s.active == nil {
		return nil, nil
	}

	a := s.active
	token := a.tokens[a.next]
	if a.next > 0 {
		a.text.WriteByte(' ')
	}
	a.text.WriteString(token)

	if err := s.store.UpdateText(a.turnID, a.text.String()); err != nil {
		return nil, err
	}

	result := &TickResult{
		TurnID: a.turnID,
		Token:  token,
		Index:  a.next,
		Total:  len(a.tokens),
		Text:   a.text.String(),
	}
	a.next++

	if a.next == len(a.tokens) {
		if err := s.store.SetStreaming(a.turnID, false); err != nil {
			return nil, err
		}
		s.states[a.turnID] = treeModels.StreamComplete
		s.active = nil
		result.Done = true
		s.logger.Debug("reveal complete", "turn_id", result.TurnID)
	}
	return result, nil
}

// Cancel stops emission for turnID, leaving whatever partial text was
// written. Cancelling twice, or cancelling a turn that already completed or
// was never started, is a no-op, not an error.
func (s *StreamScheduler) Cancel(turnID string) {
	if s.active == nil || s.active.turnID != turnID {
		return
	}

	// The streaming flag is engine state; clearing it cannot fail for a turn
	// the scheduler is actively revealing.
	_ = s.store.SetStreaming(turnID, false)
	s.states[turnID] = treeModels.StreamCancelled
	s.active = nil
	s.logger.Debug("reveal cancelled", "turn_id", turnID)
}
