package seed

import (
	"context"
	"fmt"
	"log/slog"

	loremgen "github.com/bozaro/golorem"

	treeModels "arbor/internal/domain/models/tree"
	treeSvc "arbor/internal/service/tree"
)

// TreeSeeder creates sample conversations demonstrating branching. It goes
// through the registry API rather than raw SQL so every seeded tree satisfies
// the same invariants live traffic does, and so branch labels and colors come
// out of the normal labeling path.
type TreeSeeder struct {
	registry  *treeSvc.ConversationRegistry
	generator *loremgen.Lorem
	logger    *slog.Logger
}

// NewTreeSeeder creates a new tree seeder.
func NewTreeSeeder(registry *treeSvc.ConversationRegistry, logger *slog.Logger) *TreeSeeder {
	return &TreeSeeder{
		registry:  registry,
		generator: loremgen.New(),
		logger:    logger,
	}
}

// SeedConversation builds one demo conversation:
//
//	root (assistant greeting)
//	└─ user prompt
//	   └─ assistant reply
//	      ├─ user follow-up            (original)
//	      │  └─ assistant reply
//	      ├─ user follow-up, edited    (Branch 1)
//	      │  └─ assistant reply
//	      └─ user follow-up, edited    (Branch 2)
//	         └─ assistant reply
//
// The current path ends at the last fork, matching what a user sees after
// editing a message twice.
func (s *TreeSeeder) SeedConversation(ctx context.Context, title string) (*treeModels.Conversation, error) {
	conv, err := s.registry.Create(ctx, &treeSvc.CreateConversationRequest{
		Title:    title,
		RootText: "Hello! How can I help you today?",
	})
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	engine, err := s.registry.Get(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	prompt, err := engine.Append(ctx, conv.RootID, treeModels.SenderUser, s.generator.Sentence(6, 12))
	if err != nil {
		return nil, fmt.Errorf("append prompt: %w", err)
	}
	reply, err := engine.Append(ctx, prompt.ID, treeModels.SenderAssistant, s.generator.Paragraph(2, 4))
	if err != nil {
		return nil, fmt.Errorf("append reply: %w", err)
	}

	followUp, err := engine.Append(ctx, reply.ID, treeModels.SenderUser, s.generator.Sentence(5, 10))
	if err != nil {
		return nil, fmt.Errorf("append follow-up: %w", err)
	}
	if _, err := engine.Append(ctx, followUp.ID, treeModels.SenderAssistant, s.generator.Paragraph(1, 3)); err != nil {
		return nil, fmt.Errorf("append follow-up reply: %w", err)
	}

	// Edit the follow-up twice. Each edit forks a labeled sibling and moves
	// the displayed path onto it.
	for i := 0; i < 2; i++ {
		fork, err := engine.Edit(ctx, followUp.ID, s.generator.Sentence(5, 10))
		if err != nil {
			return nil, fmt.Errorf("fork follow-up: %w", err)
		}
		if _, err := engine.Append(ctx, fork.ID, treeModels.SenderAssistant, s.generator.Paragraph(1, 3)); err != nil {
			return nil, fmt.Errorf("append fork reply: %w", err)
		}
	}

	s.logger.Info("seeded conversation",
		"conversation_id", conv.ID,
		"title", title,
		"turns", len(engine.Snapshot()),
	)
	return conv, nil
}

// SeedAll creates a small set of demo conversations.
func (s *TreeSeeder) SeedAll(ctx context.Context) error {
	titles := []string{
		"Story Analysis",
		"Trip Planning",
		"Code Review Notes",
	}
	for _, title := range titles {
		if _, err := s.SeedConversation(ctx, title); err != nil {
			return err
		}
	}
	return nil
}
