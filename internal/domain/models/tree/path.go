package tree

// PathEntry is one position of the rendered path: the visible turn plus its
// sibling group for the branch-selector UI. Siblings include the turn itself
// and are ordered by CreatedAt ascending.
type PathEntry struct {
	Turn     *Turn   `json:"turn"`
	Siblings []*Turn `json:"siblings,omitempty"`
}

// PathView is the rendering-port payload: the materialized root-to-leaf path
// with per-position sibling groups and branch labels/colors attached.
type PathView struct {
	ConversationID string      `json:"conversation_id"`
	LeafID         string      `json:"leaf_id"`
	Entries        []PathEntry `json:"entries"`
}

// TurnIDs returns the ids of the path in root-first order.
func (v *PathView) TurnIDs() []string {
	ids := make([]string, len(v.Entries))
	for i, e := range v.Entries {
		ids[i] = e.Turn.ID
	}
	return ids
}
