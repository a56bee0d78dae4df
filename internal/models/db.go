package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message. Only the two values below are
// valid; the messages table enforces the same constraint.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ProcessingStatus is the file-extraction state machine. Transitions only
// move forward (pending -> processing -> completed|failed); failed is
// terminal and the caller must resubmit the file. Completed means the
// file's content was consumed: either extracted_text is stored, or the
// format has no extractor and the raw bytes go to the model inline. A
// record left in processing (extraction timed out mid-turn) is retryable
// through the processing webhook.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// User represents a user in the database. Users are provisioned lazily on
// the first authenticated request carrying an unknown subject id, and are
// never deleted by this service.
type User struct {
	ID             uuid.UUID `db:"id"`
	SubjectID      string    `db:"subject_id"` // identity-provider subject, unique
	Email          string    `db:"email"`
	Name           string    `db:"name"`
	Picture        string    `db:"picture"`
	HashedPassword string    `db:"hashed_password"` // empty for externally-provisioned users
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Conversation represents a chat thread owned by a single user.
// UpdatedAt advances whenever a message is added so listings can be
// ordered by recency.
type Conversation struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Title     string    `db:"title"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// AttachedFile describes a file attached to a user message.
type AttachedFile struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Message represents a single message in a conversation.
//
// CreatedAt is the ordering key for conversation replay; Seq is a
// database-assigned monotonic counter that breaks ties when two rows land
// on the same clock tick, so replay order always equals insertion order.
type Message struct {
	ID             uuid.UUID     `db:"id"`
	ConversationID uuid.UUID     `db:"conversation_id"`
	Seq            int64         `db:"seq"`
	Role           Role          `db:"role"`
	Content        string        `db:"content"`
	AttachedFile   *AttachedFile `db:"-"` // flattened into file_* columns
	CreatedAt      time.Time     `db:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}

// FileUpload records metadata for an uploaded file. ExtractedText stays
// nil until background processing completes.
type FileUpload struct {
	ID               uuid.UUID        `db:"id"`
	UserID           uuid.UUID        `db:"user_id"`
	ConversationID   *uuid.UUID       `db:"conversation_id"` // optional scope
	FileName         string           `db:"file_name"`
	FileType         string           `db:"file_type"`
	FileURL          string           `db:"file_url"`
	ExtractedText    *string          `db:"extracted_text"`
	ProcessingStatus ProcessingStatus `db:"processing_status"`
	CreatedAt        time.Time        `db:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at"`
}

// CanTransitionTo reports whether moving the processing status to next is a
// legal forward transition.
func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusCompleted || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		// completed and failed are terminal
		return false
	}
}
