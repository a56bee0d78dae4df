package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"docchat-backend/internal/llm"
	"docchat-backend/internal/models"
	"docchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// titleLimit is the maximum length, in runes, of an auto-derived
// conversation title.
const titleLimit = 50

// defaultConversationTitle is the placeholder for explicitly-created
// conversations; it is replaced by the first prompt.
const defaultConversationTitle = "New Chat"

// TurnStream receives the incremental output of one chat turn.
// ConversationResolved is called exactly once, before any chunk, so
// transports can communicate the (possibly newly-assigned) conversation id
// out-of-band from the text stream.
type TurnStream interface {
	ConversationResolved(conversationID uuid.UUID) error
	Chunk(text string) error
}

// TurnStore is the slice of persistence the turn pipeline needs.
type TurnStore interface {
	store.ConversationStore
	store.MessageStore
}

// TurnService owns the end-to-end lifecycle of a chat turn: resolve or
// create the conversation, persist the inbound user message, assemble
// bounded context, invoke the model, relay the stream while accumulating
// it, and persist the assistant message on clean completion.
//
// The service provides no internal mutual exclusion: concurrency across
// turns is the serving runtime's concern, and serializing edits against
// the same conversation is the caller's.
type TurnService struct {
	store      TurnStore
	generator  llm.Generator
	assembler  *ContextAssembler
	encoder    *AttachmentEncoder
	genTimeout time.Duration
}

func NewTurnService(st TurnStore, generator llm.Generator, assembler *ContextAssembler, encoder *AttachmentEncoder, genTimeout time.Duration) *TurnService {
	return &TurnService{
		store:      st,
		generator:  generator,
		assembler:  assembler,
		encoder:    encoder,
		genTimeout: genTimeout,
	}
}

// SubmitTurn runs one chat turn. On success it returns the persisted
// assistant message. A failed turn leaves the conversation and the user's
// own message intact; resubmission is the recovery path.
func (s *TurnService) SubmitTurn(ctx context.Context, userID uuid.UUID, req models.TurnRequest, stream TurnStream) (*models.Message, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt cannot be empty", ErrValidation)
	}
	// Attachment validation is a hard gate: it runs before any state is
	// created, unlike encoding failures which only degrade the turn.
	if req.Attachment != nil {
		if err := s.encoder.Validate(req.Attachment); err != nil {
			return nil, err
		}
	}

	conversation, err := s.resolveConversation(ctx, userID, req.ConversationID, prompt)
	if err != nil {
		return nil, err
	}

	var attachmentPart *llm.Part
	var attached *models.AttachedFile
	if req.Attachment != nil {
		part, descriptor, encErr := s.encoder.Encode(ctx, userID, conversation.ID, req.Attachment)
		attached = descriptor
		if encErr != nil {
			// Recoverable degradation: the model gets a textual mention of
			// the file instead of its content, and the turn continues.
			log.Warn().Str("conversation_id", conversation.ID.String()).Err(encErr).
				Msg("attachment encoding failed, continuing without content")
			mention := llm.TextPart(fmt.Sprintf("(The user attached a file named %q of type %s, but its content could not be processed.)",
				req.Attachment.FileName, req.Attachment.MediaType))
			attachmentPart = &mention
		} else {
			attachmentPart = &part
		}
	}

	// The user message becomes durable before any call to the generation
	// endpoint, so a dropped stream never loses the user's input.
	userMessage, err := s.store.CreateMessage(ctx, store.CreateMessageParams{
		ID:             uuid.New(),
		ConversationID: conversation.ID,
		Role:           models.RoleUser,
		Content:        prompt,
		AttachedFile:   attached,
	})
	if err != nil {
		return nil, fmt.Errorf("persisting user message: %w", err)
	}

	history, err := s.assembler.RecentHistory(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}

	if len(history) == 1 && conversation.Title == defaultConversationTitle {
		// First exchange in an explicitly-created conversation: confirm
		// the title from the prompt.
		if _, err := s.store.UpdateConversationTitle(ctx, conversation.ID, deriveTitle(prompt)); err != nil {
			log.Warn().Str("conversation_id", conversation.ID.String()).Err(err).Msg("confirming conversation title failed")
		}
	}

	parts := []llm.Part{}
	if attachmentPart != nil {
		parts = append(parts, *attachmentPart)
	}
	parts = append(parts, llm.TextPart(s.assembler.BuildPrompt(history, prompt)))

	assistant, err := s.generateAndPersist(ctx, conversation.ID, parts, stream)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("conversation_id", conversation.ID.String()).
		Str("user_message_id", userMessage.ID.String()).
		Str("assistant_message_id", assistant.ID.String()).
		Msg("turn completed")
	return assistant, nil
}

// EditAndRegenerate rewrites a previously-sent user message in place,
// discards everything after it, and re-runs the generation pipeline from
// that point. Replaying the same edit twice converges to the same state.
func (s *TurnService) EditAndRegenerate(ctx context.Context, userID, messageID uuid.UUID, newContent string, stream TurnStream) (*models.Message, error) {
	content := strings.TrimSpace(newContent)
	if content == "" {
		return nil, fmt.Errorf("%w: edit content cannot be empty", ErrValidation)
	}

	message, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	conversation, err := s.store.GetConversationByID(ctx, message.ConversationID)
	if err != nil {
		return nil, err
	}
	if conversation.UserID != userID {
		return nil, ErrAccessDenied
	}
	if message.Role != models.RoleUser {
		return nil, ErrAssistantImmutable
	}

	// In-place update: created_at and seq are preserved, which is what
	// keeps "everything after it" well-defined.
	updated, err := s.store.UpdateMessageContent(ctx, message.ID, content)
	if err != nil {
		return nil, fmt.Errorf("updating message content: %w", err)
	}

	deleted, err := s.store.DeleteMessagesAfter(ctx, conversation.ID, updated.CreatedAt, updated.Seq)
	if err != nil {
		return nil, fmt.Errorf("truncating conversation after edit: %w", err)
	}
	log.Info().
		Str("conversation_id", conversation.ID.String()).
		Str("message_id", updated.ID.String()).
		Int64("deleted", deleted).
		Msg("conversation truncated for regeneration")

	history, err := s.assembler.RecentHistory(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}
	// History now ends with the edited message; BuildPrompt treats it as
	// the current question and embeds only what precedes it.
	parts := []llm.Part{llm.TextPart(s.assembler.BuildPrompt(history, updated.Content))}

	return s.generateAndPersist(ctx, conversation.ID, parts, stream)
}

// resolveConversation looks up an existing conversation constrained to the
// caller, or creates a new one titled from the prompt.
func (s *TurnService) resolveConversation(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, prompt string) (*models.Conversation, error) {
	if conversationID != nil {
		conversation, err := s.store.GetConversationByID(ctx, *conversationID)
		if err != nil {
			return nil, err
		}
		if conversation.UserID != userID {
			return nil, ErrAccessDenied
		}
		return conversation, nil
	}

	conversation, err := s.store.CreateConversation(ctx, store.CreateConversationParams{
		ID:     uuid.New(),
		UserID: userID,
		Title:  deriveTitle(prompt),
	})
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	log.Info().Str("conversation_id", conversation.ID.String()).Msg("conversation created for new turn")
	return conversation, nil
}

// generateAndPersist invokes the model, relays chunks to the stream while
// accumulating them, and persists the assistant message only after a clean
// end-of-stream. Mid-stream errors terminate the turn with nothing saved.
func (s *TurnService) generateAndPersist(ctx context.Context, conversationID uuid.UUID, parts []llm.Part, stream TurnStream) (*models.Message, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.genTimeout)
	defer cancel()

	chunks, err := s.generator.Stream(genCtx, parts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamGeneration, err)
	}

	if err := stream.ConversationResolved(conversationID); err != nil {
		return nil, fmt.Errorf("notifying caller of conversation id: %w", err)
	}

	var accumulated strings.Builder
	relayBroken := false
	for chunk := range chunks {
		if chunk.Err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamGeneration, chunk.Err)
		}
		accumulated.WriteString(chunk.Text)
		if relayBroken {
			continue
		}
		if err := stream.Chunk(chunk.Text); err != nil {
			// The caller went away. The model call runs to completion on
			// the provider side either way; keep accumulating so a clean
			// end-of-stream can still be persisted.
			log.Warn().Str("conversation_id", conversationID.String()).Err(err).Msg("chunk relay failed, caller disconnected")
			relayBroken = true
		}
	}

	if accumulated.Len() == 0 {
		return nil, fmt.Errorf("%w: model returned no content", ErrUpstreamGeneration)
	}

	assistant, err := s.store.CreateMessage(ctx, store.CreateMessageParams{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        accumulated.String(),
	})
	if err != nil {
		// The user already saw the streamed text; losing the write is a
		// distinct condition from a failed turn.
		log.Error().Str("conversation_id", conversationID.String()).Err(err).Msg("assistant response streamed but persistence failed")
		return nil, fmt.Errorf("%w: %v", ErrResponseNotSaved, err)
	}
	return assistant, nil
}

// deriveTitle truncates the prompt to titleLimit runes, appending an
// ellipsis when shortened.
func deriveTitle(prompt string) string {
	if utf8.RuneCountInString(prompt) <= titleLimit {
		return prompt
	}
	runes := []rune(prompt)
	return string(runes[:titleLimit]) + "..."
}
