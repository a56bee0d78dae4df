package services

import (
	"context"
	"fmt"
	"strings"

	"docchat-backend/internal/models"
	"docchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// conversationListLimit bounds the recency-ordered conversation listing.
const conversationListLimit = 50

// ConversationService handles conversation CRUD and message replay.
type ConversationService struct {
	store TurnStore
}

func NewConversationService(st TurnStore) *ConversationService {
	return &ConversationService{store: st}
}

// resolveOwned fetches a conversation and enforces ownership, keeping
// not-found and access-denied distinguishable.
func (s *ConversationService) resolveOwned(ctx context.Context, userID, conversationID uuid.UUID) (*models.Conversation, error) {
	conversation, err := s.store.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation.UserID != userID {
		return nil, ErrAccessDenied
	}
	return conversation, nil
}

// List returns the caller's conversations, most recently updated first.
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	conversations, err := s.store.ListConversationsByUser(ctx, userID, conversationListLimit)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	return conversations, nil
}

// Create starts an empty conversation. The placeholder title is replaced
// by the first prompt unless the caller names it here.
func (s *ConversationService) Create(ctx context.Context, userID uuid.UUID, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultConversationTitle
	}

	conversation, err := s.store.CreateConversation(ctx, store.CreateConversationParams{
		ID:     uuid.New(),
		UserID: userID,
		Title:  title,
	})
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	log.Info().Str("conversation_id", conversation.ID.String()).Str("user_id", userID.String()).Msg("conversation created")
	return conversation, nil
}

// Rename sets an explicit title on an owned conversation.
func (s *ConversationService) Rename(ctx context.Context, userID, conversationID uuid.UUID, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}

	if _, err := s.resolveOwned(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.store.UpdateConversationTitle(ctx, conversationID, title)
}

// Delete removes an owned conversation and, via the schema, its messages.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID uuid.UUID) error {
	if _, err := s.resolveOwned(ctx, userID, conversationID); err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	log.Info().Str("conversation_id", conversationID.String()).Msg("conversation deleted")
	return nil
}

// GetMessages returns the full message history of an owned conversation in
// replay order (created_at ascending, ties by insertion).
func (s *ConversationService) GetMessages(ctx context.Context, userID, conversationID uuid.UUID) ([]models.Message, error) {
	if _, err := s.resolveOwned(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return messages, nil
}
