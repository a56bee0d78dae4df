package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"docchat-backend/internal/auth"
	"docchat-backend/internal/services"
	"docchat-backend/pkg/httputil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// --- JWT Middleware ---

// JwtAuthMiddleware verifies the JWT from the Authorization header,
// resolves (lazily creating) the user record for the token subject, and
// injects the internal user id into the request context.
func JwtAuthMiddleware(jwtSecret string, authService *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				httputil.RespondError(w, http.StatusUnauthorized, "Malformed Authorization header (Expected: Bearer <token>)")
				return
			}

			claims := &auth.CustomClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(jwtSecret), nil
			})

			if err != nil {
				log.Debug().Err(err).Msg("token parse failed")
				if errors.Is(err, jwt.ErrTokenExpired) {
					httputil.RespondError(w, http.StatusUnauthorized, "Token has expired")
				} else if errors.Is(err, jwt.ErrTokenMalformed) {
					httputil.RespondError(w, http.StatusUnauthorized, "Malformed token")
				} else {
					httputil.RespondError(w, http.StatusUnauthorized, "Invalid token")
				}
				return
			}

			if !token.Valid || claims.Subject == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "Invalid token claims")
				return
			}

			// First request for a subject provisions the user record.
			user, err := authService.EnsureUser(r.Context(), claims)
			if err != nil {
				log.Error().Str("subject", claims.Subject).Err(err).Msg("resolving token subject failed")
				httputil.RespondError(w, http.StatusInternalServerError, "Could not resolve user")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), user.ID)))
		})
	}
}
