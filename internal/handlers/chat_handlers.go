package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"docchat-backend/internal/models"
	"docchat-backend/internal/services"
	"docchat-backend/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// maxMultipartMemory bounds in-memory multipart parsing; larger parts
// spill to disk.
const maxMultipartMemory = 16 << 20

// Trailer values marking how a streamed turn ended. A stream that ends
// without X-Turn-Status: completed must be treated as failed by callers.
const (
	turnStatusTrailer    = "X-Turn-Status"
	turnStatusCompleted  = "completed"
	turnStatusFailed     = "failed"
	turnStatusNotSaved   = "response-not-saved"
	conversationIDHeader = "X-Conversation-Id"
)

// ChatHandlers handles chat turns, message replay, and edit-regeneration.
type ChatHandlers struct {
	turnService         *services.TurnService
	conversationService *services.ConversationService
}

func NewChatHandlers(turnService *services.TurnService, conversationService *services.ConversationService) *ChatHandlers {
	return &ChatHandlers{
		turnService:         turnService,
		conversationService: conversationService,
	}
}

// turnStreamWriter adapts an http.ResponseWriter into a services.TurnStream.
// The conversation id travels as a response header, out-of-band from the
// chunked text body.
type turnStreamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newTurnStreamWriter(w http.ResponseWriter) *turnStreamWriter {
	flusher, _ := w.(http.Flusher)
	return &turnStreamWriter{w: w, flusher: flusher}
}

func (t *turnStreamWriter) ConversationResolved(conversationID uuid.UUID) error {
	t.w.Header().Set(conversationIDHeader, conversationID.String())
	t.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	t.w.Header().Set("Trailer", turnStatusTrailer)
	t.w.WriteHeader(http.StatusOK)
	t.started = true
	if t.flusher != nil {
		t.flusher.Flush()
	}
	return nil
}

func (t *turnStreamWriter) Chunk(text string) error {
	if _, err := io.WriteString(t.w, text); err != nil {
		return err
	}
	if t.flusher != nil {
		t.flusher.Flush()
	}
	return nil
}

func (t *turnStreamWriter) finish(err error) {
	if !t.started {
		// Nothing streamed yet; a regular JSON error response is still
		// possible.
		if err != nil {
			respondServiceError(t.w, err)
		}
		return
	}
	switch {
	case err == nil:
		t.w.Header().Set(turnStatusTrailer, turnStatusCompleted)
	case errors.Is(err, services.ErrResponseNotSaved):
		t.w.Header().Set(turnStatusTrailer, turnStatusNotSaved)
	default:
		t.w.Header().Set(turnStatusTrailer, turnStatusFailed)
	}
	if t.flusher != nil {
		t.flusher.Flush()
	}
}

// HandleSubmitTurn accepts a chat turn as JSON (text-only) or multipart
// form data (optionally with a file) and streams the assistant response.
func (h *ChatHandlers) HandleSubmitTurn(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	req, err := parseTurnRequest(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	stream := newTurnStreamWriter(w)
	_, err = h.turnService.SubmitTurn(r.Context(), userID, *req, stream)
	if err != nil {
		log.Warn().Str("user_id", userID.String()).Err(err).Msg("turn failed")
	}
	stream.finish(err)
}

// HandleEditMessage rewrites a user message, truncates everything after
// it, and streams the regenerated assistant response.
func (h *ChatHandlers) HandleEditMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	messageID, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid message ID")
		return
	}

	var req models.EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	stream := newTurnStreamWriter(w)
	_, err = h.turnService.EditAndRegenerate(r.Context(), userID, messageID, req.Content, stream)
	if err != nil {
		log.Warn().Str("message_id", messageID.String()).Err(err).Msg("edit-regeneration failed")
	}
	stream.finish(err)
}

// HandleGetConversationMessages returns a conversation's messages in
// replay order.
func (h *ChatHandlers) HandleGetConversationMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	messages, err := h.conversationService.GetMessages(r.Context(), userID, conversationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	responses := make([]models.MessageResponse, 0, len(messages))
	for i := range messages {
		responses = append(responses, models.NewMessageResponse(&messages[i]))
	}
	httputil.RespondJSON(w, http.StatusOK, responses)
}

// parseTurnRequest resolves the request body into the single TurnRequest
// variant: multipart form data may carry an attachment, JSON is text-only.
func parseTurnRequest(r *http.Request) (*models.TurnRequest, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, fmt.Errorf("invalid multipart form: %v", err)
		}

		req := &models.TurnRequest{Prompt: r.FormValue("prompt")}
		if raw := r.FormValue("conversation_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid conversation_id")
			}
			req.ConversationID = &id
		}

		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()
			data, readErr := io.ReadAll(file)
			if readErr != nil {
				return nil, fmt.Errorf("reading uploaded file: %v", readErr)
			}
			req.Attachment = &models.AttachmentInput{
				FileName:  header.Filename,
				MediaType: header.Header.Get("Content-Type"),
				Data:      data,
			}
		} else if !errors.Is(err, http.ErrMissingFile) {
			return nil, fmt.Errorf("invalid file field: %v", err)
		}
		return req, nil
	}

	var body struct {
		Prompt         string     `json:"prompt"`
		ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid request body")
	}
	return &models.TurnRequest{
		Prompt:         body.Prompt,
		ConversationID: body.ConversationID,
	}, nil
}
