package memory

import (
	"errors"
	"testing"

	"arbor/internal/domain"
	"arbor/internal/domain/models/tree"
)

func newTurn(id string, parentID *string, seq int64) *tree.Turn {
	return &tree.Turn{
		ID:        id,
		ParentID:  parentID,
		Sender:    tree.SenderUser,
		Text:      "text for " + id,
		CreatedAt: seq,
	}
}

func strPtr(s string) *string { return &s }

func TestInsertValidation(t *testing.T) {
	tests := []struct {
		name    string
		setup   []*tree.Turn
		insert  *tree.Turn
		wantErr error
	}{
		{
			name:   "root insert succeeds",
			insert: newTurn("root", nil, 1),
		},
		{
			name:    "duplicate id rejected",
			setup:   []*tree.Turn{newTurn("root", nil, 1)},
			insert:  newTurn("root", nil, 2),
			wantErr: domain.ErrDuplicateID,
		},
		{
			name:    "second root rejected",
			setup:   []*tree.Turn{newTurn("root", nil, 1)},
			insert:  newTurn("root2", nil, 2),
			wantErr: domain.ErrDuplicateID,
		},
		{
			name:    "dangling parent rejected",
			setup:   []*tree.Turn{newTurn("root", nil, 1)},
			insert:  newTurn("child", strPtr("ghost"), 2),
			wantErr: domain.ErrDanglingParent,
		},
		{
			name: "child of existing parent succeeds",
			setup: []*tree.Turn{
				newTurn("root", nil, 1),
			},
			insert: newTurn("child", strPtr("root"), 2),
		},
		{
			name:    "empty id rejected",
			insert:  newTurn("", nil, 1),
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMessageStore()
			for _, turn := range tt.setup {
				if err := store.Insert(turn); err != nil {
					t.Fatalf("setup insert %s: %v", turn.ID, err)
				}
			}

			err := store.Insert(tt.insert)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Insert() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Insert() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChildrenOrderedByCreatedAt(t *testing.T) {
	store := NewMessageStore()
	if err := store.Insert(newTurn("root", nil, 1)); err != nil {
		t.Fatal(err)
	}

	// Replay out of order: sorted insertion must restore CreatedAt order.
	for _, turn := range []*tree.Turn{
		newTurn("c", strPtr("root"), 4),
		newTurn("a", strPtr("root"), 2),
		newTurn("b", strPtr("root"), 3),
	} {
		if err := store.Insert(turn); err != nil {
			t.Fatalf("insert %s: %v", turn.ID, err)
		}
	}

	children := store.ChildrenOf("root")
	want := []string{"a", "b", "c"}
	if len(children) != len(want) {
		t.Fatalf("ChildrenOf() returned %d turns, want %d", len(children), len(want))
	}
	for i, id := range want {
		if children[i].ID != id {
			t.Errorf("children[%d].ID = %s, want %s", i, children[i].ID, id)
		}
	}
	for i := 1; i < len(children); i++ {
		if children[i].CreatedAt < children[i-1].CreatedAt {
			t.Errorf("children CreatedAt not non-decreasing at %d", i)
		}
	}
}

func TestSiblingsOf(t *testing.T) {
	store := NewMessageStore()
	for _, turn := range []*tree.Turn{
		newTurn("root", nil, 1),
		newTurn("a", strPtr("root"), 2),
		newTurn("b", strPtr("root"), 3),
		newTurn("c", strPtr("root"), 4),
	} {
		if err := store.Insert(turn); err != nil {
			t.Fatalf("insert %s: %v", turn.ID, err)
		}
	}

	siblings, err := store.SiblingsOf("b")
	if err != nil {
		t.Fatalf("SiblingsOf() error = %v", err)
	}
	if len(siblings) != 2 || siblings[0].ID != "a" || siblings[1].ID != "c" {
		got := make([]string, len(siblings))
		for i, s := range siblings {
			got[i] = s.ID
		}
		t.Errorf("SiblingsOf(b) = %v, want [a c]", got)
	}

	// Root has no siblings
	siblings, err = store.SiblingsOf("root")
	if err != nil {
		t.Fatalf("SiblingsOf(root) error = %v", err)
	}
	if len(siblings) != 0 {
		t.Errorf("SiblingsOf(root) = %d turns, want 0", len(siblings))
	}

	// Unknown id is an error, not an empty result
	if _, err := store.SiblingsOf("ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("SiblingsOf(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateTextAndFlags(t *testing.T) {
	store := NewMessageStore()
	if err := store.Insert(newTurn("root", nil, 1)); err != nil {
		t.Fatal(err)
	}

	if err := store.UpdateText("root", "updated"); err != nil {
		t.Fatalf("UpdateText() error = %v", err)
	}
	if err := store.SetStreaming("root", true); err != nil {
		t.Fatalf("SetStreaming() error = %v", err)
	}
	if err := store.SetBranchLabel("root", "Original", "#8b5cf6"); err != nil {
		t.Fatalf("SetBranchLabel() error = %v", err)
	}

	turn, err := store.Get("root")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Text != "updated" {
		t.Errorf("Text = %q, want %q", turn.Text, "updated")
	}
	if !turn.IsStreaming {
		t.Error("IsStreaming = false, want true")
	}
	if turn.BranchLabel == nil || *turn.BranchLabel != "Original" {
		t.Errorf("BranchLabel = %v, want Original", turn.BranchLabel)
	}
	if turn.BranchColor != "#8b5cf6" {
		t.Errorf("BranchColor = %q, want #8b5cf6", turn.BranchColor)
	}

	if err := store.UpdateText("ghost", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdateText(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestGetReturnsClones(t *testing.T) {
	store := NewMessageStore()
	if err := store.Insert(newTurn("root", nil, 1)); err != nil {
		t.Fatal(err)
	}

	turn, _ := store.Get("root")
	turn.Text = "mutated by caller"

	again, _ := store.Get("root")
	if again.Text == "mutated by caller" {
		t.Error("Get() leaked a store-owned pointer")
	}
}

func TestNextSeqResumesAfterReplay(t *testing.T) {
	store := NewMessageStore()
	if err := store.Insert(newTurn("root", nil, 1)); err != nil {
		t.Fatal(err)
	}
	if err := store.Insert(newTurn("a", strPtr("root"), 7)); err != nil {
		t.Fatal(err)
	}

	if got := store.NextSeq(); got != 8 {
		t.Errorf("NextSeq() = %d, want 8 (resume past replayed max)", got)
	}
	if got := store.NextSeq(); got != 9 {
		t.Errorf("NextSeq() = %d, want 9", got)
	}
}

func TestAllOrderedByCreatedAt(t *testing.T) {
	store := NewMessageStore()
	for _, turn := range []*tree.Turn{
		newTurn("root", nil, 1),
		newTurn("b", strPtr("root"), 3),
		newTurn("a", strPtr("root"), 2),
	} {
		if err := store.Insert(turn); err != nil {
			t.Fatal(err)
		}
	}

	all := store.All()
	want := []string{"root", "a", "b"}
	for i, id := range want {
		if all[i].ID != id {
			t.Errorf("All()[%d].ID = %s, want %s", i, all[i].ID, id)
		}
	}
}
