package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docchat-backend/internal/auth"
	"docchat-backend/internal/config"
	"docchat-backend/internal/models"
	"docchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Custom errors for auth service
var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrHashingPassword    = errors.New("failed to hash password")
	ErrCreatingToken      = errors.New("failed to create access token")
)

// localSubjectPrefix marks users provisioned through this service's own
// signup flow rather than an external identity provider.
const localSubjectPrefix = "local|"

type AuthService struct {
	store store.UserStore
	cfg   *config.Config
}

func NewAuthService(s store.UserStore, cfg *config.Config) *AuthService {
	return &AuthService{
		store: s,
		cfg:   cfg,
	}
}

// Signup creates a new user with a locally-issued subject id.
func (s *AuthService) Signup(ctx context.Context, email, password, name string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password cannot be empty", ErrValidation)
	}

	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Error().Str("email", email).Err(err).Msg("checking user existence failed")
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, ErrHashingPassword
	}

	id := uuid.New()
	user := &models.User{
		ID:             id,
		SubjectID:      localSubjectPrefix + id.String(),
		Email:          email,
		Name:           strings.TrimSpace(name),
		HashedPassword: hashedPassword,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user failed: %w", err)
	}

	log.Info().Str("user_id", user.ID.String()).Str("email", email).Msg("user signed up")
	return user, nil
}

// Login verifies user credentials and returns an access token and user info.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Don't reveal whether the user exists
			return "", nil, ErrInvalidCredentials
		}
		log.Error().Str("email", email).Err(err).Msg("retrieving user during login failed")
		return "", nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.HashedPassword) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.NewAccessToken(user.SubjectID, user.Email, user.Name, s.cfg.JWTSecret, s.cfg.TokenExpiration)
	if err != nil {
		return "", nil, ErrCreatingToken
	}

	log.Info().Str("user_id", user.ID.String()).Msg("user logged in")
	return token, user, nil
}

// EnsureUser resolves a verified token subject to a user record, creating
// one lazily on first contact. Tokens minted by an external identity
// provider hit the create path; a concurrent create racing on the unique
// subject constraint falls back to a re-fetch.
func (s *AuthService) EnsureUser(ctx context.Context, claims *auth.CustomClaims) (*models.User, error) {
	subject := claims.Subject
	if subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrValidation)
	}

	user, err := s.store.GetUserBySubject(ctx, subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve subject: %w", err)
	}

	user = &models.User{
		ID:        uuid.New(),
		SubjectID: subject,
		Email:     claims.Email,
		Name:      claims.Name,
		Picture:   claims.Picture,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		// Another request may have provisioned the same subject first.
		if existing, fetchErr := s.store.GetUserBySubject(ctx, subject); fetchErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("provisioning user failed: %w", err)
	}

	log.Info().Str("user_id", user.ID.String()).Str("subject", subject).Msg("user provisioned on first request")
	return user, nil
}
