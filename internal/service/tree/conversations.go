package tree

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"arbor/internal/domain"
	treeModels "arbor/internal/domain/models/tree"
	treeRepo "arbor/internal/domain/repositories/tree"
	"arbor/internal/palette"
	"arbor/internal/repository/memory"
	"arbor/internal/service/responder"
)

// ConversationRegistry owns every live engine, one per conversation, plus
// the reveal runners driving their schedulers and the broadcaster feeding
// SSE clients. When an archive is configured, conversations are lazily
// reloaded from it by insert replay.
type ConversationRegistry struct {
	mu      sync.RWMutex
	engines map[string]*Engine
	runners map[string]*RevealRunner

	archive     treeRepo.Archive // nil for memory-only deployments
	palette     *palette.Palette
	responder   responder.Responder
	broadcaster *RevealBroadcaster
	tick        time.Duration
	logger      *slog.Logger
}

// NewConversationRegistry wires a registry.
func NewConversationRegistry(
	archive treeRepo.Archive,
	pal *palette.Palette,
	resp responder.Responder,
	tick time.Duration,
	logger *slog.Logger,
) *ConversationRegistry {
	return &ConversationRegistry{
		engines:     make(map[string]*Engine),
		runners:     make(map[string]*RevealRunner),
		archive:     archive,
		palette:     pal,
		responder:   resp,
		broadcaster: NewRevealBroadcaster(logger),
		tick:        tick,
		logger:      logger,
	}
}

// Broadcaster exposes the SSE fanout for the streaming handler.
func (r *ConversationRegistry) Broadcaster() *RevealBroadcaster {
	return r.broadcaster
}

// Create builds a new conversation with its root turn, registers the engine
// and starts its reveal runner.
func (r *ConversationRegistry) Create(ctx context.Context, req *CreateConversationRequest) (*treeModels.Conversation, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	conversationID := uuid.New().String()
	engine, err := NewEngine(conversationID, req.RootText, memory.NewMessageStore(), r.palette, r.archive, r.logger)
	if err != nil {
		return nil, err
	}

	root := engine.Snapshot()[0]
	conv := &treeModels.Conversation{
		ID:        conversationID,
		Title:     req.Title,
		RootID:    root.ID,
		CreatedAt: time.Now(),
	}
	if r.archive != nil {
		if err := r.archive.CreateConversation(ctx, conv, root); err != nil {
			return nil, fmt.Errorf("archive conversation: %w", err)
		}
	}

	r.register(engine)
	r.logger.Info("conversation created",
		"conversation_id", conversationID,
		"title", conv.Title,
		"root_id", root.ID,
	)
	return conv, nil
}

// Get returns the engine for a conversation, reloading it from the archive
// if it is not in memory.
func (r *ConversationRegistry) Get(ctx context.Context, conversationID string) (*Engine, error) {
	r.mu.RLock()
	engine, ok := r.engines[conversationID]
	r.mu.RUnlock()
	if ok {
		return engine, nil
	}

	if r.archive == nil {
		return nil, &domain.NotFoundError{TurnID: conversationID}
	}

	turns, err := r.archive.LoadTurns(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, &domain.NotFoundError{TurnID: conversationID}
	}

	engine, err = LoadEngine(conversationID, turns, memory.NewMessageStore(), r.palette, r.archive, r.logger)
	if err != nil {
		return nil, err
	}

	// Another request may have replayed the same conversation concurrently;
	// register resolves the race and hands back whichever engine won.
	winner := r.register(engine)
	if winner == engine {
		r.logger.Info("conversation reloaded from archive",
			"conversation_id", conversationID,
			"turns", len(turns),
		)
	}
	return winner, nil
}

// register wires the engine's stream events to the broadcaster, starts its
// reveal runner, and inserts it into the maps. The duplicate check and the
// insertion share one critical section so concurrent loads of the same
// conversation cannot both register; the loser's engine is discarded before
// it gains a runner. The runner outlives the registering request, so it gets
// a background context and is stopped by Close.
func (r *ConversationRegistry) register(engine *Engine) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.engines[engine.ID()]; ok {
		return existing
	}

	engine.SetStreamListener(r.broadcaster.Publish)
	runner := NewRevealRunner(engine, r.tick, r.logger)
	runner.Start(context.Background())

	r.engines[engine.ID()] = engine
	r.runners[engine.ID()] = runner
	return engine
}

// List returns conversation metadata. Archive-backed when configured,
// otherwise synthesized from the live engines.
func (r *ConversationRegistry) List(ctx context.Context) ([]*treeModels.Conversation, error) {
	if r.archive != nil {
		return r.archive.ListConversations(ctx)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*treeModels.Conversation, 0, len(r.engines))
	for id, engine := range r.engines {
		root := engine.Snapshot()[0]
		out = append(out, &treeModels.Conversation{
			ID:     id,
			RootID: root.ID,
		})
	}
	return out, nil
}

// FindTurn locates the engine whose tree contains turnID. Turn-scoped routes
// carry no conversation id, mirroring the page's flat turn namespace. Live
// engines are scanned first; on a miss the archive maps the turn back to its
// conversation so Get can replay it.
func (r *ConversationRegistry) FindTurn(ctx context.Context, turnID string) (*Engine, error) {
	r.mu.RLock()
	for _, engine := range r.engines {
		if engine.HasTurn(turnID) {
			r.mu.RUnlock()
			return engine, nil
		}
	}
	r.mu.RUnlock()

	if r.archive == nil {
		return nil, &domain.NotFoundError{TurnID: turnID}
	}

	conversationID, err := r.archive.FindTurnConversation(ctx, turnID)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, conversationID)
}

// Append appends a turn and, when the request asks for generation, invokes
// the responder with the resulting path and streams the assistant reply.
// Returns the appended user turn and, if generated, the assistant turn.
func (r *ConversationRegistry) Append(ctx context.Context, conversationID string, req *AppendTurnRequest) (*treeModels.Turn, *treeModels.Turn, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	engine, err := r.Get(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}

	turn, err := engine.Append(ctx, req.ParentID, req.Sender, req.Text)
	if err != nil {
		return nil, nil, err
	}
	if !req.Generate {
		return turn, nil, nil
	}

	assistant, err := r.generateReply(ctx, engine, turn)
	if err != nil {
		return turn, nil, err
	}
	return turn, assistant, nil
}

// Edit forks at a turn and generates a fresh assistant reply for the new
// branch, matching the page behavior where editing resubmits the prompt.
func (r *ConversationRegistry) Edit(ctx context.Context, turnID string, req *EditTurnRequest, generate bool) (*treeModels.Turn, *treeModels.Turn, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	engine, err := r.FindTurn(ctx, turnID)
	if err != nil {
		return nil, nil, err
	}

	sibling, err := engine.Edit(ctx, turnID, req.Text)
	if err != nil {
		return nil, nil, err
	}
	if !generate {
		return sibling, nil, nil
	}

	assistant, err := r.generateReply(ctx, engine, sibling)
	if err != nil {
		return sibling, nil, err
	}
	return sibling, assistant, nil
}

// generateReply runs the responder over the path ending at promptTurn,
// appends the assistant turn empty, and starts its reveal stream. The
// responder call happens outside the engine lock; only the append and the
// stream start reacquire it.
func (r *ConversationRegistry) generateReply(ctx context.Context, engine *Engine, promptTurn *treeModels.Turn) (*treeModels.Turn, error) {
	view, err := engine.View(promptTurn.ID)
	if err != nil {
		return nil, err
	}
	path := make([]*treeModels.Turn, len(view.Entries))
	for i, entry := range view.Entries {
		path[i] = entry.Turn
	}

	fullText, err := r.responder.Respond(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("responder: %w", err)
	}

	assistant, err := engine.Append(ctx, promptTurn.ID, treeModels.SenderAssistant, "")
	if err != nil {
		return nil, err
	}
	if err := engine.StartReveal(ctx, assistant.ID, fullText); err != nil {
		return nil, err
	}

	// Hand back the streaming state so the client connects to SSE right away.
	return engine.Turn(assistant.ID)
}

// Close stops every reveal runner. Used on server shutdown.
func (r *ConversationRegistry) Close() {
	r.mu.Lock()
	runners := make([]*RevealRunner, 0, len(r.runners))
	for _, runner := range r.runners {
		runners = append(runners, runner)
	}
	r.mu.Unlock()

	for _, runner := range runners {
		runner.Stop()
	}
}
