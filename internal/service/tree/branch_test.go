package tree

import (
	"testing"

	treeModels "arbor/internal/domain/models/tree"
)

func TestEditLabelsBothSidesOfBranchPoint(t *testing.T) {
	e := newTestEngine(t, "Hello")
	root := rootID(t, e)
	u1 := mustAppend(t, e, root, treeModels.SenderUser, "Hi")
	u2 := mustEdit(t, e, u1.ID, "Hey there")

	original, err := e.Turn(u1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if original.BranchLabel == nil || *original.BranchLabel != "Original" {
		t.Errorf("original label = %v, want Original", original.BranchLabel)
	}
	if u2.BranchLabel == nil || *u2.BranchLabel != "Branch 1" {
		t.Errorf("sibling label = %v, want Branch 1", u2.BranchLabel)
	}
	if u2.BranchColor == "" {
		t.Error("sibling has no branch color")
	}
}

func TestBranchCounterIsGlobal(t *testing.T) {
	// Forks at different branch points share one counter: branch numbers are
	// sequential across the whole conversation, never reset per fork.
	e := newTestEngine(t, "Hello")
	root := rootID(t, e)
	u1 := mustAppend(t, e, root, treeModels.SenderUser, "one")
	a1 := mustAppend(t, e, u1.ID, treeModels.SenderAssistant, "reply")
	u2 := mustAppend(t, e, a1.ID, treeModels.SenderUser, "two")

	b1 := mustEdit(t, e, u1.ID, "one edited")
	b2 := mustEdit(t, e, u2.ID, "two edited")
	b3 := mustEdit(t, e, u1.ID, "one edited again")

	for i, tc := range []struct {
		turn *treeModels.Turn
		want string
	}{
		{b1, "Branch 1"},
		{b2, "Branch 2"},
		{b3, "Branch 3"},
	} {
		if tc.turn.BranchLabel == nil || *tc.turn.BranchLabel != tc.want {
			t.Errorf("fork %d label = %v, want %s", i, tc.turn.BranchLabel, tc.want)
		}
	}
}

func TestOriginalLabeledOnlyOnce(t *testing.T) {
	e := newTestEngine(t, "Hello")
	root := rootID(t, e)
	u1 := mustAppend(t, e, root, treeModels.SenderUser, "Hi")

	mustEdit(t, e, u1.ID, "first fork")
	mustEdit(t, e, u1.ID, "second fork")

	original, err := e.Turn(u1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if original.BranchLabel == nil || *original.BranchLabel != "Original" {
		t.Errorf("original label = %v, want Original after repeated forks", original.BranchLabel)
	}
}

func TestBranchColorsWrapAroundPalette(t *testing.T) {
	pal := testPalette(t)
	size := len(pal.Colors)

	// Branch N and Branch N+size share a color; neighbors differ.
	if pal.ColorFor(1) != pal.ColorFor(1+size) {
		t.Errorf("ColorFor(1) != ColorFor(%d), palette should wrap", 1+size)
	}
	if size > 1 && pal.ColorFor(1) == pal.ColorFor(2) {
		t.Error("adjacent branches share a color")
	}
	if pal.ColorFor(0) != pal.OriginalColor {
		t.Errorf("ColorFor(0) = %s, want original color %s", pal.ColorFor(0), pal.OriginalColor)
	}
}

func TestObserveResumesCounter(t *testing.T) {
	e := newTestEngine(t, "Hello")
	label := "Branch 7"
	e.registry.Observe(&treeModels.Turn{ID: "x", BranchLabel: &label})

	root := rootID(t, e)
	u1 := mustAppend(t, e, root, treeModels.SenderUser, "Hi")
	fork := mustEdit(t, e, u1.ID, "edited")

	if fork.BranchLabel == nil || *fork.BranchLabel != "Branch 8" {
		t.Errorf("label after resume = %v, want Branch 8", fork.BranchLabel)
	}
}

func TestObserveIgnoresOriginalLabel(t *testing.T) {
	e := newTestEngine(t, "Hello")
	label := "Original"
	e.registry.Observe(&treeModels.Turn{ID: "x", BranchLabel: &label})

	root := rootID(t, e)
	u1 := mustAppend(t, e, root, treeModels.SenderUser, "Hi")
	fork := mustEdit(t, e, u1.ID, "edited")

	if fork.BranchLabel == nil || *fork.BranchLabel != "Branch 1" {
		t.Errorf("label = %v, want Branch 1", fork.BranchLabel)
	}
}
