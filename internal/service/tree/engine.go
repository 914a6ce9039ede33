package tree

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	treeModels "arbor/internal/domain/models/tree"
	treeRepo "arbor/internal/domain/repositories/tree"
	"arbor/internal/palette"
)

// StreamEvent is the engine's notification to the transport layer that the
// reveal stream changed. Delivered outside the engine lock.
type StreamEvent struct {
	Type       string // tree.SSEEventReveal* constant
	TurnID     string
	Token      string
	Index      int
	TokenCount int
	Text       string
}

// StreamListener receives reveal notifications for SSE fanout.
type StreamListener func(StreamEvent)

// Engine owns one conversation tree: the turn arena plus the resolver,
// branch registry, mutator and stream scheduler over it, and the currently
// displayed leaf.
//
// All public methods serialize behind a single mutex, so the engine is safe
// to drive from HTTP handlers and the reveal runner concurrently. Mutations
// that would make the revealing turn fall off the displayed path cancel that
// stream inside the same critical section.
type Engine struct {
	mu sync.Mutex

	conversationID string
	store          treeRepo.TurnStore
	resolver       *PathResolver
	registry       *BranchRegistry
	mutator        *TreeMutator
	scheduler      *StreamScheduler
	archive        treeRepo.Archive // nil when running memory-only
	logger         *slog.Logger

	currentLeafID string

	// listener is set once at wiring time, before the engine is shared.
	listener StreamListener
}

// NewEngine creates an engine with a fresh tree containing only the root
// turn. The root is created here, once, and never deleted.
func NewEngine(conversationID, rootText string, store treeRepo.TurnStore, pal *palette.Palette, archive treeRepo.Archive, logger *slog.Logger) (*Engine, error) {
	e := newEngine(conversationID, store, pal, archive, logger)

	root := &treeModels.Turn{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Sender:         treeModels.SenderAssistant,
		Text:           rootText,
		CreatedAt:      store.NextSeq(),
	}
	if err := store.Insert(root); err != nil {
		return nil, fmt.Errorf("insert root turn: %w", err)
	}
	e.currentLeafID = root.ID
	return e, nil
}

// LoadEngine reconstructs an engine by replaying archived turns through the
// store in CreatedAt order. The branch counter resumes from the highest
// replayed label, and the displayed path descends from the root by the
// first-child policy.
func LoadEngine(conversationID string, turns []*treeModels.Turn, store treeRepo.TurnStore, pal *palette.Palette, archive treeRepo.Archive, logger *slog.Logger) (*Engine, error) {
	e := newEngine(conversationID, store, pal, archive, logger)

	for _, turn := range turns {
		if err := store.Insert(turn); err != nil {
			return nil, fmt.Errorf("replay turn %s: %w", turn.ID, err)
		}
		e.registry.Observe(turn)
	}

	root, err := store.Root()
	if err != nil {
		return nil, fmt.Errorf("replayed conversation %s has no root: %w", conversationID, err)
	}
	leafID, err := e.resolver.DescendFrom(root.ID)
	if err != nil {
		return nil, err
	}
	e.currentLeafID = leafID
	return e, nil
}

func newEngine(conversationID string, store treeRepo.TurnStore, pal *palette.Palette, archive treeRepo.Archive, logger *slog.Logger) *Engine {
	registry := NewBranchRegistry(store, pal, logger)
	return &Engine{
		conversationID: conversationID,
		store:          store,
		resolver:       NewPathResolver(store),
		registry:       registry,
		mutator:        NewTreeMutator(conversationID, store, registry, logger),
		scheduler:      NewStreamScheduler(store, logger),
		archive:        archive,
		logger:         logger,
	}
}

// ID returns the conversation id this engine owns.
func (e *Engine) ID() string { return e.conversationID }

// SetStreamListener installs the reveal-event listener. Must be called
// before the engine is shared across goroutines.
func (e *Engine) SetStreamListener(l StreamListener) { e.listener = l }

func (e *Engine) emit(events []StreamEvent) {
	if e.listener == nil {
		return
	}
	for _, ev := range events {
		e.listener(ev)
	}
}

// Append creates a new turn under parentID. When the parent is the current
// leaf, the displayed path extends to the new turn.
func (e *Engine) Append(ctx context.Context, parentID string, sender treeModels.Sender, text string) (*treeModels.Turn, error) {
	var events []StreamEvent
	defer func() { e.emit(events) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	turn, err := e.mutator.Append(parentID, sender, text)
	if err != nil {
		return nil, err
	}
	if parentID == e.currentLeafID {
		e.currentLeafID = turn.ID
	}
	events = e.cancelOffPath(ctx, events)

	if err := e.saveTurn(ctx, turn.ID); err != nil {
		return nil, err
	}
	return turn, nil
}

// Edit forks at originalID: a new sibling is created carrying newText, both
// sides of the branch point get labels, and the displayed path jumps to the
// fork. Any reveal stream left behind on the abandoned branch is cancelled.
func (e *Engine) Edit(ctx context.Context, originalID, newText string) (*treeModels.Turn, error) {
	var events []StreamEvent
	defer func() { e.emit(events) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	sibling, err := e.mutator.Edit(originalID, newText)
	if err != nil {
		return nil, err
	}
	e.currentLeafID = sibling.ID
	events = e.cancelOffPath(ctx, events)

	if err := e.saveTurn(ctx, sibling.ID); err != nil {
		return nil, err
	}
	// The original may have just acquired its "Original" label.
	if err := e.updateTurn(ctx, originalID); err != nil {
		return nil, err
	}
	return sibling, nil
}

// SwitchBranch moves the displayed path to newNodeID at the given position
// and auto-extends it by first-child descent. Returns the new path view.
func (e *Engine) SwitchBranch(ctx context.Context, newNodeID string, position int) (*treeModels.PathView, error) {
	var events []StreamEvent
	defer func() { e.emit(events) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.resolver.MaterializePath(e.currentLeafID)
	if err != nil {
		return nil, err
	}
	currentIDs := make([]string, len(current))
	for i, t := range current {
		currentIDs[i] = t.ID
	}

	path, err := e.resolver.SwitchBranch(currentIDs, newNodeID, position)
	if err != nil {
		return nil, err
	}
	e.currentLeafID = path[len(path)-1].ID
	events = e.cancelOffPath(ctx, events)

	return e.buildView(path)
}

// View materializes the path to leafID (or the current leaf when leafID is
// empty) with per-position sibling groups for the branch selector.
func (e *Engine) View(leafID string) (*treeModels.PathView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if leafID == "" {
		leafID = e.currentLeafID
	}
	path, err := e.resolver.MaterializePath(leafID)
	if err != nil {
		return nil, err
	}
	return e.buildView(path)
}

// buildView attaches sibling groups to a materialized path.
// Caller holds the engine lock.
func (e *Engine) buildView(path []*treeModels.Turn) (*treeModels.PathView, error) {
	view := &treeModels.PathView{
		ConversationID: e.conversationID,
		LeafID:         path[len(path)-1].ID,
		Entries:        make([]treeModels.PathEntry, len(path)),
	}
	for i, turn := range path {
		entry := treeModels.PathEntry{Turn: turn}
		if turn.ParentID != nil {
			// The sibling group includes the turn itself, CreatedAt order.
			entry.Siblings = e.store.ChildrenOf(*turn.ParentID)
		} else {
			entry.Siblings = []*treeModels.Turn{turn}
		}
		view.Entries[i] = entry
	}
	return view, nil
}

// Turn retrieves a single turn.
func (e *Engine) Turn(turnID string) (*treeModels.Turn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Get(turnID)
}

// HasTurn reports whether this engine's tree contains turnID.
func (e *Engine) HasTurn(turnID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.store.Get(turnID)
	return err == nil
}

// Siblings returns turnID's sibling group excluding itself.
func (e *Engine) Siblings(turnID string) ([]*treeModels.Turn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.SiblingsOf(turnID)
}

// CurrentLeafID returns the leaf of the displayed path.
func (e *Engine) CurrentLeafID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentLeafID
}

// Snapshot returns every turn in CreatedAt order, for seeding and archive
// bootstraps.
func (e *Engine) Snapshot() []*treeModels.Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.All()
}

// StartReveal begins streaming fullText into turnID. A stream already active
// on another turn is cancelled first (its partial text stands).
func (e *Engine) StartReveal(ctx context.Context, turnID, fullText string) error {
	var events []StreamEvent
	defer func() { e.emit(events) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	if prior := e.scheduler.ActiveTurnID(); prior != "" && prior != turnID {
		events = e.cancelLocked(ctx, prior, events)
	}

	count, err := e.scheduler.Start(turnID, fullText)
	if err != nil {
		return err
	}
	events = append(events, StreamEvent{
		Type:       treeModels.SSEEventRevealStart,
		TurnID:     turnID,
		TokenCount: count,
	})
	if count == 0 {
		// Whitespace-only response settles immediately.
		events = append(events, StreamEvent{Type: treeModels.SSEEventRevealDone, TurnID: turnID})
		if err := e.updateTurn(ctx, turnID); err != nil {
			return err
		}
	}
	return nil
}

// Tick advances the active reveal stream by one token. A nil result means no
// stream is active. The turn is persisted when the stream settles, not per
// token.
func (e *Engine) Tick(ctx context.Context) (*TickResult, error) {
	var events []StreamEvent
	defer func() { e.emit(events) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.scheduler.Tick()
	if err != nil || result == nil {
		return result, err
	}

	events = append(events, StreamEvent{
		Type:       treeModels.SSEEventRevealDelta,
		TurnID:     result.TurnID,
		Token:      result.Token,
		Index:      result.Index,
		TokenCount: result.Total,
		Text:       result.Text,
	})
	if result.Done {
		events = append(events, StreamEvent{
			Type:   treeModels.SSEEventRevealDone,
			TurnID: result.TurnID,
			Text:   result.Text,
		})
		if err := e.updateTurn(ctx, result.TurnID); err != nil {
			return result, err
		}
	}
	return result, nil
}

// CancelReveal stops the stream on turnID, retaining partial text.
// Idempotent: cancelling a settled or unknown stream is a no-op.
func (e *Engine) CancelReveal(ctx context.Context, turnID string) error {
	var events []StreamEvent
	defer func() { e.emit(events) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.scheduler.ActiveTurnID() != turnID {
		return nil
	}
	events = e.cancelLocked(ctx, turnID, events)
	return nil
}

// RevealState reports the reveal lifecycle state of a turn.
func (e *Engine) RevealState(turnID string) treeModels.StreamState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scheduler.StateOf(turnID)
}

// cancelLocked cancels the stream on turnID and queues the cancel event.
// Caller holds the engine lock and guarantees turnID is the active stream.
func (e *Engine) cancelLocked(ctx context.Context, turnID string, events []StreamEvent) []StreamEvent {
	e.scheduler.Cancel(turnID)
	turn, err := e.store.Get(turnID)
	text := ""
	if err == nil {
		text = turn.Text
	}
	if err := e.updateTurn(ctx, turnID); err != nil {
		e.logger.Error("persist cancelled turn", "turn_id", turnID, "error", err)
	}
	return append(events, StreamEvent{
		Type:   treeModels.SSEEventRevealCancel,
		TurnID: turnID,
		Text:   text,
	})
}

// cancelOffPath cancels the active stream if the mutation that just ran
// moved the displayed path away from it. Part of the same atomic step as the
// mutation itself.
func (e *Engine) cancelOffPath(ctx context.Context, events []StreamEvent) []StreamEvent {
	active := e.scheduler.ActiveTurnID()
	if active == "" {
		return events
	}

	path, err := e.resolver.MaterializePath(e.currentLeafID)
	if err != nil {
		// A broken chain here is fatal for path resolution but must not
		// leave a stale stream running.
		e.logger.Error("path resolution during off-path check", "error", err)
		return e.cancelLocked(ctx, active, events)
	}
	for _, turn := range path {
		if turn.ID == active {
			return events
		}
	}
	return e.cancelLocked(ctx, active, events)
}

// saveTurn persists a newly created turn when an archive is configured.
func (e *Engine) saveTurn(ctx context.Context, turnID string) error {
	if e.archive == nil {
		return nil
	}
	turn, err := e.store.Get(turnID)
	if err != nil {
		return err
	}
	if err := e.archive.SaveTurn(ctx, e.conversationID, turn); err != nil {
		return fmt.Errorf("archive turn %s: %w", turnID, err)
	}
	return nil
}

// updateTurn rewrites a persisted turn's mutable fields.
func (e *Engine) updateTurn(ctx context.Context, turnID string) error {
	if e.archive == nil {
		return nil
	}
	turn, err := e.store.Get(turnID)
	if err != nil {
		return err
	}
	turn.ConversationID = e.conversationID
	if err := e.archive.UpdateTurn(ctx, turn); err != nil {
		return fmt.Errorf("archive update turn %s: %w", turnID, err)
	}
	return nil
}

// VerifyIntegrity re-checks the forest invariant across the whole tree:
// every non-root turn's parent resolves, and no turn is its own ancestor.
// Used by debug tooling; violations surface as broken chains.
func (e *Engine) VerifyIntegrity() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, turn := range e.store.All() {
		if _, err := e.resolver.MaterializePath(turn.ID); err != nil {
			return err
		}
	}
	return nil
}
