package store

import (
	"context"
	"errors"
	"time"

	"docchat-backend/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// CreateConversationParams contains parameters for creating a conversation.
type CreateConversationParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Title  string
}

// CreateMessageParams contains parameters for creating a message.
// CreatedAt and Seq are assigned by the database.
type CreateMessageParams struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           models.Role
	Content        string
	AttachedFile   *models.AttachedFile
}

// CreateFileUploadParams contains parameters for creating a file-upload
// metadata record. Status starts at pending.
type CreateFileUploadParams struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	ConversationID *uuid.UUID
	FileName       string
	FileType       string
	FileURL        string
}

// UserStore defines user persistence operations.
type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserBySubject(ctx context.Context, subjectID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// ConversationStore defines conversation persistence operations.
// Lookups are by id only; ownership checks live in the service layer so
// not-found and access-denied stay distinguishable.
type ConversationStore interface {
	CreateConversation(ctx context.Context, arg CreateConversationParams) (*models.Conversation, error)
	GetConversationByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListConversationsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Conversation, error)
	UpdateConversationTitle(ctx context.Context, id uuid.UUID, title string) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, id uuid.UUID) error
}

// MessageStore defines message persistence operations.
//
// CreateMessage also advances the owning conversation's updated_at, so a
// single call keeps recency ordering correct. ListRecentMessages returns
// the newest limit messages in ascending (replay) order.
type MessageStore interface {
	CreateMessage(ctx context.Context, arg CreateMessageParams) (*models.Message, error)
	GetMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error)
	UpdateMessageContent(ctx context.Context, id uuid.UUID, content string) (*models.Message, error)
	DeleteMessagesAfter(ctx context.Context, conversationID uuid.UUID, after time.Time, afterSeq int64) (int64, error)
}

// FileStore defines file-upload metadata operations. Status updates that
// would move the state machine backwards are rejected.
type FileStore interface {
	CreateFileUpload(ctx context.Context, arg CreateFileUploadParams) (*models.FileUpload, error)
	GetFileUploadByID(ctx context.Context, id uuid.UUID) (*models.FileUpload, error)
	ListFileUploadsByUser(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) ([]models.FileUpload, error)
	UpdateFileUploadStatus(ctx context.Context, id uuid.UUID, status models.ProcessingStatus) error
	SetFileUploadExtractedText(ctx context.Context, id uuid.UUID, text string) error
}

// Store defines the full interface for database operations. This allows
// for mocking in tests and potential DB backend switching.
type Store interface {
	UserStore
	ConversationStore
	MessageStore
	FileStore
}
