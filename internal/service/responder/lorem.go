package responder

import (
	"context"
	"fmt"
	"strings"

	llmprovider "github.com/haowjy/meridian-llm-go"
	"github.com/haowjy/meridian-llm-go/providers/lorem"

	treeModels "arbor/internal/domain/models/tree"
)

// LoremResponder generates placeholder replies through the library's lorem
// provider. It is the default responder for local development and tests, so
// the whole reveal pipeline is exercisable without API keys.
type LoremResponder struct {
	provider llmprovider.Provider
}

// NewLoremResponder creates a lorem-backed responder.
func NewLoremResponder() *LoremResponder {
	return &LoremResponder{provider: lorem.NewProvider()}
}

// Respond converts the path into provider messages and returns the joined
// text of the generated blocks.
func (r *LoremResponder) Respond(ctx context.Context, path []*treeModels.Turn) (string, error) {
	messages := make([]llmprovider.Message, len(path))
	for i, turn := range path {
		text := turn.Text
		messages[i] = llmprovider.Message{
			Role: string(turn.Sender),
			Blocks: []*llmprovider.Block{
				{
					BlockType:   "text",
					Sequence:    0,
					TextContent: &text,
				},
			},
		}
	}

	resp, err := r.provider.GenerateResponse(ctx, &llmprovider.GenerateRequest{
		Messages: messages,
		Model:    "lorem",
	})
	if err != nil {
		return "", fmt.Errorf("lorem provider: %w", err)
	}

	var parts []string
	for _, block := range resp.Blocks {
		if block.TextContent != nil {
			parts = append(parts, *block.TextContent)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
