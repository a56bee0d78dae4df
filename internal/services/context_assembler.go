package services

import (
	"context"
	"fmt"
	"strings"

	"docchat-backend/internal/models"
	"docchat-backend/internal/store"

	"github.com/google/uuid"
)

const (
	// retrievalLimit bounds how many recent messages are loaded per turn.
	retrievalLimit = 20
	// embedLimit bounds how many of those are folded into the prompt text.
	embedLimit = 10
)

// ContextAssembler loads the bounded window of prior messages for a
// conversation and renders them into the text block prepended to the
// current prompt.
type ContextAssembler struct {
	messages store.MessageStore
}

func NewContextAssembler(messages store.MessageStore) *ContextAssembler {
	return &ContextAssembler{messages: messages}
}

// RecentHistory returns up to retrievalLimit of the newest messages in
// replay order (oldest of the window first).
func (a *ContextAssembler) RecentHistory(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	history, err := a.messages.ListRecentMessages(ctx, conversationID, retrievalLimit)
	if err != nil {
		return nil, fmt.Errorf("loading conversation history: %w", err)
	}
	return history, nil
}

// BuildPrompt renders history into a context block and prepends it to the
// current prompt. The final entry of history is the current user message
// and is never embedded in the block; it is the question itself.
//
// On a first turn (fewer than two messages) the raw prompt is returned
// unchanged, so a lone opening question is not wrapped in a vacuous
// "previous conversation" preamble.
func (a *ContextAssembler) BuildPrompt(history []models.Message, prompt string) string {
	if len(history) < 2 {
		return prompt
	}

	prior := history[:len(history)-1]
	if len(prior) > embedLimit {
		prior = prior[len(prior)-embedLimit:]
	}

	lines := make([]string, 0, len(prior))
	for _, m := range prior {
		lines = append(lines, fmt.Sprintf("%s: %s", roleLabel(m.Role), m.Content))
	}

	return fmt.Sprintf("Previous conversation context:\n%s\n\nCurrent question: %s",
		strings.Join(lines, "\n"), prompt)
}

func roleLabel(r models.Role) string {
	switch r {
	case models.RoleAssistant:
		return "Assistant"
	default:
		return "User"
	}
}
