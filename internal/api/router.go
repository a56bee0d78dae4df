package api

import (
	"net/http"
	"time"

	"docchat-backend/internal/config"
	"docchat-backend/internal/handlers"
	"docchat-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterDependencies holds everything the router setup needs: handlers,
// the auth service for the JWT middleware, and configuration.
type RouterDependencies struct {
	AuthHandler         *handlers.AuthHandler
	ChatHandler         *handlers.ChatHandlers
	ConversationHandler *handlers.ConversationHandlers
	FileHandler         *handlers.FileHandlers
	AuthService         *services.AuthService
	UploadDir           string
	Config              *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Streaming turns can outlive the default request timeout; the turn
	// service applies its own generation deadline.
	r.Use(middleware.Timeout(5 * time.Minute))

	// --- CORS Configuration ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173", "https://*.vercel.app"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Conversation-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/v1/auth", func(r chi.Router) {
		if deps.AuthHandler == nil {
			panic("AuthHandler dependency is nil in router setup")
		}
		r.Post("/signup", deps.AuthHandler.HandleSignup)
		r.Post("/login", deps.AuthHandler.HandleLogin)
	})

	// Internal processing webhook, secured by a shared secret inside the
	// handler rather than a user token.
	if deps.FileHandler != nil {
		r.Post("/webhooks/process-file", deps.FileHandler.HandleProcessFileWebhook)
	}

	// Locally stored uploads are served straight from disk.
	if deps.UploadDir != "" {
		fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.UploadDir)))
		r.Get("/uploads/*", fileServer.ServeHTTP)
	}

	// --- Authenticated Routes (JWT Required) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JwtAuthMiddleware(deps.Config.JWTSecret, deps.AuthService))

		if deps.ChatHandler != nil {
			r.Post("/chat", deps.ChatHandler.HandleSubmitTurn)
			r.Get("/chat/{conversationID}", deps.ChatHandler.HandleGetConversationMessages)
			r.Put("/messages/{messageID}", deps.ChatHandler.HandleEditMessage)
		}

		if deps.ConversationHandler != nil {
			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", deps.ConversationHandler.HandleListConversations)
				r.Post("/", deps.ConversationHandler.HandleCreateConversation)
				r.Patch("/", deps.ConversationHandler.HandleRenameConversation)
				r.Delete("/{conversationID}", deps.ConversationHandler.HandleDeleteConversation)
			})
		}

		if deps.FileHandler != nil {
			r.Route("/files", func(r chi.Router) {
				r.Post("/", deps.FileHandler.HandleUploadFile)
				r.Get("/", deps.FileHandler.HandleListFiles)
			})
		}
	})

	return r
}
