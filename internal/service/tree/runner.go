package tree

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTickInterval is the reveal cadence: one token per tick.
const DefaultTickInterval = 80 * time.Millisecond

// RevealRunner drives an engine's stream scheduler from a wall-clock ticker.
// The scheduler itself is timer-free; this is the only place real time
// enters the streaming path, so everything below it stays synchronously
// testable.
type RevealRunner struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRevealRunner creates a runner for one engine. A zero interval falls
// back to the default cadence.
func NewRevealRunner(engine *Engine, interval time.Duration, logger *slog.Logger) *RevealRunner {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &RevealRunner{
		engine:   engine,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the tick loop. Idle ticks (no active stream) are cheap, so
// the runner simply runs for the lifetime of the conversation.
func (r *RevealRunner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.engine.Tick(ctx); err != nil {
					r.logger.Error("reveal tick failed",
						"conversation_id", r.engine.ID(),
						"error", err,
					)
				}
			}
		}
	}()
}

// Stop terminates the tick loop and waits for it to exit.
func (r *RevealRunner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}
