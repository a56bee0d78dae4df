package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docchat-backend/internal/models"
	"docchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const messageColumns = `id, conversation_id, seq, role, content, file_name, file_type, file_size, file_url, created_at, updated_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	m := &models.Message{}
	var fileName, fileType, fileURL *string
	var fileSize *int64
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.Seq,
		&m.Role,
		&m.Content,
		&fileName,
		&fileType,
		&fileSize,
		&fileURL,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error scanning message: %w", err)
	}
	if fileName != nil {
		m.AttachedFile = &models.AttachedFile{Name: *fileName}
		if fileType != nil {
			m.AttachedFile.Type = *fileType
		}
		if fileSize != nil {
			m.AttachedFile.Size = *fileSize
		}
		if fileURL != nil {
			m.AttachedFile.URL = *fileURL
		}
	}
	return m, nil
}

const createMessage = `-- name: CreateMessage :one
INSERT INTO messages (id, conversation_id, role, content, file_name, file_type, file_size, file_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, conversation_id, seq, role, content, file_name, file_type, file_size, file_url, created_at, updated_at;
`

// CreateMessage inserts a message and advances the conversation's
// updated_at in the same transaction, so recency ordering can never drift
// from message activity.
func (s *PostgresStore) CreateMessage(ctx context.Context, arg store.CreateMessageParams) (*models.Message, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("database error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var fileName, fileType, fileURL *string
	var fileSize *int64
	if af := arg.AttachedFile; af != nil {
		fileName = &af.Name
		if af.Type != "" {
			fileType = &af.Type
		}
		if af.Size > 0 {
			fileSize = &af.Size
		}
		if af.URL != "" {
			fileURL = &af.URL
		}
	}

	row := tx.QueryRow(ctx, createMessage,
		arg.ID,
		arg.ConversationID,
		arg.Role,
		arg.Content,
		fileName,
		fileType,
		fileSize,
		fileURL,
	)
	m, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE conversations SET updated_at = clock_timestamp() WHERE id = $1`,
		arg.ConversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("touching conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("database error committing message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) GetMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	return scanMessage(s.db.QueryRow(ctx, query, id))
}

func (s *PostgresStore) listMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error listing messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error iterating messages: %w", err)
	}
	return messages, nil
}

// ListMessages returns every message in the conversation in replay order:
// created_at ascending with seq as the tie-break.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, seq ASC`
	return s.listMessages(ctx, query, conversationID)
}

// ListRecentMessages returns the newest limit messages, still in replay
// order (oldest of the window first).
func (s *PostgresStore) ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM (
			SELECT ` + messageColumns + `
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, seq DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, seq ASC`
	return s.listMessages(ctx, query, conversationID, limit)
}

const updateMessageContent = `-- name: UpdateMessageContent :one
UPDATE messages
SET content = $2, updated_at = clock_timestamp()
WHERE id = $1
RETURNING id, conversation_id, seq, role, content, file_name, file_type, file_size, file_url, created_at, updated_at;
`

// UpdateMessageContent rewrites a message's content in place. created_at
// and seq are deliberately untouched so the message keeps its position in
// replay order.
func (s *PostgresStore) UpdateMessageContent(ctx context.Context, id uuid.UUID, content string) (*models.Message, error) {
	return scanMessage(s.db.QueryRow(ctx, updateMessageContent, id, content))
}

// DeleteMessagesAfter removes every message in the conversation strictly
// after the given (created_at, seq) position and returns how many rows
// were deleted.
func (s *PostgresStore) DeleteMessagesAfter(ctx context.Context, conversationID uuid.UUID, after time.Time, afterSeq int64) (int64, error) {
	query := `
		DELETE FROM messages
		WHERE conversation_id = $1
		  AND (created_at > $2 OR (created_at = $2 AND seq > $3))`

	tag, err := s.db.Exec(ctx, query, conversationID, after, afterSeq)
	if err != nil {
		return 0, fmt.Errorf("database error deleting messages: %w", err)
	}
	return tag.RowsAffected(), nil
}
