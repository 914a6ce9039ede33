package tree

import (
	"context"
	"io"
	"log/slog"
	"testing"

	treeModels "arbor/internal/domain/models/tree"
	"arbor/internal/palette"
	"arbor/internal/repository/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPalette(t *testing.T) *palette.Palette {
	t.Helper()
	pal, err := palette.Load()
	if err != nil {
		t.Fatalf("load palette: %v", err)
	}
	return pal
}

// newTestEngine builds a memory-only engine with a root assistant turn.
func newTestEngine(t *testing.T, rootText string) *Engine {
	t.Helper()
	engine, err := NewEngine("conv-test", rootText, memory.NewMessageStore(), testPalette(t), nil, testLogger())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func rootID(t *testing.T, e *Engine) string {
	t.Helper()
	return e.Snapshot()[0].ID
}

func mustAppend(t *testing.T, e *Engine, parentID string, sender treeModels.Sender, text string) *treeModels.Turn {
	t.Helper()
	turn, err := e.Append(context.Background(), parentID, sender, text)
	if err != nil {
		t.Fatalf("append under %s: %v", parentID, err)
	}
	return turn
}

func mustEdit(t *testing.T, e *Engine, originalID, text string) *treeModels.Turn {
	t.Helper()
	turn, err := e.Edit(context.Background(), originalID, text)
	if err != nil {
		t.Fatalf("edit %s: %v", originalID, err)
	}
	return turn
}

func pathIDs(view *treeModels.PathView) []string {
	return view.TurnIDs()
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
