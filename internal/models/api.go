package models

import (
	"time"

	"github.com/google/uuid"
)

// --- Request Structs ---

// SignupRequest defines the expected body for the signup endpoint.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// LoginRequest defines the expected body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AttachmentInput carries the raw bytes of an uploaded file together with
// the client-declared name and media type.
type AttachmentInput struct {
	FileName  string
	MediaType string
	Data      []byte
}

// TurnRequest is the single input variant for one chat turn, resolved once
// at the HTTP boundary (JSON body or multipart form) and consumed
// uniformly by the service layer. Attachment == nil means a text-only
// turn; ConversationID == nil means "start a new conversation".
type TurnRequest struct {
	ConversationID *uuid.UUID
	Prompt         string
	Attachment     *AttachmentInput
}

// CreateConversationRequest defines the body for explicit conversation
// creation.
type CreateConversationRequest struct {
	Title string `json:"title,omitempty"`
}

// RenameConversationRequest defines the body for renaming a conversation.
type RenameConversationRequest struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// EditMessageRequest defines the body for editing a user message before
// regeneration.
type EditMessageRequest struct {
	Content string `json:"content"`
}

// ProcessFileRequest is the body of the internal file-processing webhook.
type ProcessFileRequest struct {
	FileID uuid.UUID `json:"file_id"`
}

// --- Response Structs ---

// UserResponse defines the user information returned by the API.
// Never includes the password hash.
type UserResponse struct {
	ID      uuid.UUID `json:"id"`
	Email   string    `json:"email"`
	Name    string    `json:"name,omitempty"`
	Picture string    `json:"picture,omitempty"`
}

// AuthResponse defines the response body for successful authentication.
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ConversationResponse defines the data returned for a conversation.
type ConversationResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageResponse defines the data returned for a single message.
type MessageResponse struct {
	ID             uuid.UUID     `json:"id"`
	ConversationID uuid.UUID     `json:"conversation_id"`
	Role           Role          `json:"role"`
	Content        string        `json:"content"`
	AttachedFile   *AttachedFile `json:"attached_file,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// FileUploadResponse defines the data returned for an uploaded file.
type FileUploadResponse struct {
	ID               uuid.UUID        `json:"id"`
	ConversationID   *uuid.UUID       `json:"conversation_id,omitempty"`
	FileName         string           `json:"file_name"`
	FileType         string           `json:"file_type"`
	FileURL          string           `json:"file_url"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	CreatedAt        time.Time        `json:"created_at"`
}

// NewConversationResponse maps a DB conversation to its API shape.
func NewConversationResponse(c *Conversation) ConversationResponse {
	return ConversationResponse{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// NewMessageResponse maps a DB message to its API shape.
func NewMessageResponse(m *Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		AttachedFile:   m.AttachedFile,
		CreatedAt:      m.CreatedAt,
	}
}

// NewFileUploadResponse maps a DB file-upload record to its API shape.
func NewFileUploadResponse(f *FileUpload) FileUploadResponse {
	return FileUploadResponse{
		ID:               f.ID,
		ConversationID:   f.ConversationID,
		FileName:         f.FileName,
		FileType:         f.FileType,
		FileURL:          f.FileURL,
		ProcessingStatus: f.ProcessingStatus,
		CreatedAt:        f.CreatedAt,
	}
}
