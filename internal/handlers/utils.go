package handlers

import (
	"errors"
	"net/http"

	"docchat-backend/internal/auth"
	"docchat-backend/internal/services"
	"docchat-backend/internal/store"
	"docchat-backend/pkg/httputil"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// requireUserID extracts the authenticated user id from the request
// context, writing a 401 if it is absent.
func requireUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	return userID, true
}

// respondServiceError maps service-layer sentinel errors onto HTTP
// statuses. Anything unmapped is an internal error.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrUnsupportedMediaType):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrAccessDenied),
		errors.Is(err, services.ErrAssistantImmutable):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrUpstreamGeneration):
		httputil.RespondError(w, http.StatusBadGateway, "generation failed")
	default:
		log.Error().Err(err).Msg("unhandled service error")
		httputil.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
