package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"docchat-backend/internal/models"
	"docchat-backend/internal/services"
	"docchat-backend/pkg/httputil"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FileHandlers handles standalone file uploads and the internal
// processing webhook.
type FileHandlers struct {
	fileService   *services.FileService
	webhookSecret string
}

func NewFileHandlers(fileService *services.FileService, webhookSecret string) *FileHandlers {
	return &FileHandlers{fileService: fileService, webhookSecret: webhookSecret}
}

// HandleUploadFile stores an uploaded document and queues it for text
// extraction.
func (h *FileHandlers) HandleUploadFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "File field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Could not read uploaded file")
		return
	}

	var conversationID *uuid.UUID
	if raw := r.FormValue("conversation_id"); raw != "" {
		id, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation_id")
			return
		}
		conversationID = &id
	}

	upload, err := h.fileService.Upload(r.Context(), userID, conversationID, &models.AttachmentInput{
		FileName:  header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Data:      data,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, models.NewFileUploadResponse(upload))
}

// HandleListFiles returns the caller's uploads, optionally filtered by
// conversation.
func (h *FileHandlers) HandleListFiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var conversationID *uuid.UUID
	if raw := r.URL.Query().Get("conversation_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation_id")
			return
		}
		conversationID = &id
	}

	uploads, err := h.fileService.List(r.Context(), userID, conversationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	responses := make([]models.FileUploadResponse, 0, len(uploads))
	for i := range uploads {
		responses = append(responses, models.NewFileUploadResponse(&uploads[i]))
	}
	httputil.RespondJSON(w, http.StatusOK, responses)
}

// HandleProcessFileWebhook runs text extraction for a previously uploaded
// file. Authenticated by a shared secret rather than a user token.
func (h *FileHandlers) HandleProcessFileWebhook(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" || token != h.webhookSecret {
		httputil.RespondError(w, http.StatusUnauthorized, "Invalid webhook token")
		return
	}

	var req models.ProcessFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileID == uuid.Nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.fileService.ProcessFile(r.Context(), req.FileID); err != nil {
		log.Error().Str("file_id", req.FileID.String()).Err(err).Msg("file processing failed")
		respondServiceError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}
