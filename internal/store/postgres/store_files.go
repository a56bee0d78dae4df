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

const fileUploadColumns = `id, user_id, conversation_id, file_name, file_type, file_url, extracted_text, processing_status, created_at, updated_at`

func scanFileUpload(row pgx.Row) (*models.FileUpload, error) {
	f := &models.FileUpload{}
	err := row.Scan(
		&f.ID,
		&f.UserID,
		&f.ConversationID,
		&f.FileName,
		&f.FileType,
		&f.FileURL,
		&f.ExtractedText,
		&f.ProcessingStatus,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error scanning file upload: %w", err)
	}
	return f, nil
}

const createFileUpload = `-- name: CreateFileUpload :one
INSERT INTO file_uploads (id, user_id, conversation_id, file_name, file_type, file_url, processing_status)
VALUES ($1, $2, $3, $4, $5, $6, 'pending')
RETURNING id, user_id, conversation_id, file_name, file_type, file_url, extracted_text, processing_status, created_at, updated_at;
`

func (s *PostgresStore) CreateFileUpload(ctx context.Context, arg store.CreateFileUploadParams) (*models.FileUpload, error) {
	row := s.db.QueryRow(ctx, createFileUpload,
		arg.ID,
		arg.UserID,
		arg.ConversationID,
		arg.FileName,
		arg.FileType,
		arg.FileURL,
	)
	f, err := scanFileUpload(row)
	if err != nil {
		return nil, fmt.Errorf("creating file upload: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) GetFileUploadByID(ctx context.Context, id uuid.UUID) (*models.FileUpload, error) {
	query := `SELECT ` + fileUploadColumns + ` FROM file_uploads WHERE id = $1`
	return scanFileUpload(s.db.QueryRow(ctx, query, id))
}

// ListFileUploadsByUser returns the user's uploads newest first,
// optionally scoped to one conversation.
func (s *PostgresStore) ListFileUploadsByUser(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) ([]models.FileUpload, error) {
	query := `
		SELECT ` + fileUploadColumns + `
		FROM file_uploads
		WHERE user_id = $1 AND ($2::uuid IS NULL OR conversation_id = $2)
		ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("database error listing file uploads: %w", err)
	}
	defer rows.Close()

	uploads := []models.FileUpload{}
	for rows.Next() {
		f, err := scanFileUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error iterating file uploads: %w", err)
	}
	return uploads, nil
}

// statusRank orders the processing state machine; updates may only move to
// a strictly higher rank.
const statusRankCase = `
	CASE processing_status
		WHEN 'pending' THEN 0
		WHEN 'processing' THEN 1
		WHEN 'completed' THEN 2
		WHEN 'failed' THEN 2
	END`

// UpdateFileUploadStatus advances the processing status. Re-applying the
// current status is an idempotent no-op (duplicate webhook deliveries); a
// regression (e.g. completed -> processing) matches no row and returns
// ErrNotFound.
func (s *PostgresStore) UpdateFileUploadStatus(ctx context.Context, id uuid.UUID, status models.ProcessingStatus) error {
	query := `
		UPDATE file_uploads
		SET processing_status = $2, updated_at = clock_timestamp()
		WHERE id = $1 AND (processing_status = $2::text OR ` + statusRankCase + ` <
			CASE $2::text
				WHEN 'pending' THEN 0
				WHEN 'processing' THEN 1
				WHEN 'completed' THEN 2
				WHEN 'failed' THEN 2
			END)`

	tag, err := s.db.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("database error updating file status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetFileUploadExtractedText(ctx context.Context, id uuid.UUID, text string) error {
	query := `
		UPDATE file_uploads
		SET extracted_text = $2, updated_at = clock_timestamp()
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, id, text)
	if err != nil {
		return fmt.Errorf("database error setting extracted text: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
