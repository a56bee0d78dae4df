package postgres

import (
	"context"
	"errors"
	"fmt"

	"docchat-backend/internal/models"
	"docchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, subject_id, email, name, picture, hashed_password, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.SubjectID,
		&user.Email,
		&user.Name,
		&user.Picture,
		&user.HashedPassword,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error scanning user: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by their internal id.
// Returns store.ErrNotFound if the user does not exist.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.db.QueryRow(ctx, query, id))
}

// GetUserBySubject retrieves a user by their identity-provider subject id.
func (s *PostgresStore) GetUserBySubject(ctx context.Context, subjectID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE subject_id = $1`
	return scanUser(s.db.QueryRow(ctx, query, subjectID))
}

// GetUserByEmail retrieves a user by their email address.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(s.db.QueryRow(ctx, query, email))
}

// CreateUser inserts a new user record into the database.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, subject_id, email, name, picture, hashed_password)
		VALUES ($1, $2, $3, $4, $5, $6)`
	// created_at and updated_at have database defaults

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.SubjectID,
		user.Email,
		user.Name,
		user.Picture,
		user.HashedPassword,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// 23505 is unique_violation (duplicate subject_id)
			log.Error().Str("subject_id", user.SubjectID).Str("pg_code", pgErr.Code).
				Str("pg_message", pgErr.Message).Msg("CreateUser insert failed")
		} else {
			log.Error().Str("subject_id", user.SubjectID).Err(err).Msg("CreateUser insert failed")
		}
		return fmt.Errorf("database error creating user: %w", err)
	}

	log.Debug().Str("user_id", user.ID.String()).Str("subject_id", user.SubjectID).Msg("user created")
	return nil
}
