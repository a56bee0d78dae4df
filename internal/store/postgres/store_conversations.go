package postgres

import (
	"context"
	"errors"
	"fmt"

	"docchat-backend/internal/models"
	"docchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const conversationColumns = `id, user_id, title, created_at, updated_at`

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error scanning conversation: %w", err)
	}
	return c, nil
}

const createConversation = `-- name: CreateConversation :one
INSERT INTO conversations (id, user_id, title)
VALUES ($1, $2, $3)
RETURNING id, user_id, title, created_at, updated_at;
`

func (s *PostgresStore) CreateConversation(ctx context.Context, arg store.CreateConversationParams) (*models.Conversation, error) {
	row := s.db.QueryRow(ctx, createConversation, arg.ID, arg.UserID, arg.Title)
	c, err := scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) GetConversationByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(s.db.QueryRow(ctx, query, id))
}

// ListConversationsByUser returns the user's conversations, most recently
// updated first.
func (s *PostgresStore) ListConversationsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("database error listing conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("database error scanning conversation row: %w", err)
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error iterating conversations: %w", err)
	}
	return conversations, nil
}

const updateConversationTitle = `-- name: UpdateConversationTitle :one
UPDATE conversations
SET title = $2, updated_at = clock_timestamp()
WHERE id = $1
RETURNING id, user_id, title, created_at, updated_at;
`

func (s *PostgresStore) UpdateConversationTitle(ctx context.Context, id uuid.UUID, title string) (*models.Conversation, error) {
	return scanConversation(s.db.QueryRow(ctx, updateConversationTitle, id, title))
}

// DeleteConversation removes a conversation; messages cascade via FK.
func (s *PostgresStore) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("database error deleting conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
