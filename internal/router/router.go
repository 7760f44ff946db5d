package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"memodesk-backend/internal/handlers"
	"memodesk-backend/internal/middleware"
	"memodesk-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	limiter *middleware.RateLimiter,
	fileHandler *handlers.FileHandler,
	chatHandler *handlers.ChatHandler,
	markdownHandler *handlers.MarkdownHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// WebSocket authenticates with ?token=
	r.Get("/api/v1/ws", wsHub.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {

		// ──── Files ────
		r.Route("/files", func(r chi.Router) {
			r.Get("/*", fileHandler.Serve) // Public, pathnames are unguessable

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Use(limiter.Middleware)
				r.Post("/upload", fileHandler.Upload)
			})
		})

		// ──── Chat ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(limiter.Middleware)

			r.Post("/chat", chatHandler.Stream)
			r.Post("/chat/model", chatHandler.SaveModel)
			r.Get("/chat/{id}/messages", chatHandler.Messages)
			r.Patch("/chat/{id}/visibility", chatHandler.UpdateVisibility)
			r.Delete("/messages/{id}/trailing", chatHandler.DeleteTrailing)
			r.Get("/chats", chatHandler.List)
			r.Get("/models", chatHandler.Models)
			r.Post("/markdown", markdownHandler.Render)
		})
	})

	return r
}
