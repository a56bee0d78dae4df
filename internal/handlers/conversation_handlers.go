package handlers

import (
	"encoding/json"
	"net/http"

	"docchat-backend/internal/models"
	"docchat-backend/internal/services"
	"docchat-backend/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ConversationHandlers handles conversation listing and CRUD.
type ConversationHandlers struct {
	conversationService *services.ConversationService
}

func NewConversationHandlers(conversationService *services.ConversationService) *ConversationHandlers {
	return &ConversationHandlers{conversationService: conversationService}
}

// HandleListConversations returns the caller's conversations ordered by
// most recent activity.
func (h *ConversationHandlers) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	conversations, err := h.conversationService.List(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	responses := make([]models.ConversationResponse, 0, len(conversations))
	for i := range conversations {
		responses = append(responses, models.NewConversationResponse(&conversations[i]))
	}
	httputil.RespondJSON(w, http.StatusOK, responses)
}

// HandleCreateConversation creates an empty conversation up front, for
// clients that want an id before the first turn.
func (h *ConversationHandlers) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req models.CreateConversationRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	conversation, err := h.conversationService.Create(r.Context(), userID, req.Title)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, models.NewConversationResponse(conversation))
}

// HandleRenameConversation sets an explicit title on a conversation.
func (h *ConversationHandlers) HandleRenameConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req models.RenameConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID == uuid.Nil {
		httputil.RespondError(w, http.StatusBadRequest, "Conversation ID is required")
		return
	}

	conversation, err := h.conversationService.Rename(r.Context(), userID, req.ID, req.Title)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.NewConversationResponse(conversation))
}

// HandleDeleteConversation removes a conversation and its messages.
func (h *ConversationHandlers) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	if err := h.conversationService.Delete(r.Context(), userID, conversationID); err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
