// Package responder is the engine's port to whatever produces assistant
// replies. The engine only ever consumes the returned full text; how it was
// generated (and whether the producer streamed internally) is invisible here.
package responder

import (
	"context"

	treeModels "arbor/internal/domain/models/tree"
)

// Responder produces an assistant reply for the conversation path. The path
// is the materialized root-to-leaf sequence of turns currently displayed.
type Responder interface {
	// Respond returns the full response text for the given path.
	Respond(ctx context.Context, path []*treeModels.Turn) (string, error)
}
