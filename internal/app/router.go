package app

import (
	"net/http"

	"taskBoard/internal/config"
	"taskBoard/internal/handlers"
	"taskBoard/internal/middleware"
	"taskBoard/internal/push"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func NewRouter(h *handlers.TaskHandler, hub *push.Hub, verifier middleware.TokenVerifier, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CorsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", cfg.Auth.Header},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: len(cfg.Server.CorsOrigins) > 0,
		MaxAge:           300,
	}))
	if cfg.Server.RateLimit > 0 {
		r.Use(middleware.RateLimit(cfg.Server.RateLimit))
	}
	r.Use(middleware.Authenticate(verifier, cfg.Auth.Header))

	r.Get("/health", h.HealthCheck)
	r.Get("/identities", h.ListIdentities)
	r.Get("/ws", hub.ServeWS)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.GetActiveTasks)           // GET /tasks?status=&subteam=&q=
		r.Get("/all", h.GetAllTasks)           // GET /tasks/all
		r.Get("/archived", h.GetArchivedTasks) // GET /tasks/archived
		r.Get("/board", h.GetBoard)            // GET /tasks/board
		r.Get("/{id}", h.GetTaskByID)          // GET /tasks/{id}

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)

			r.Post("/", h.PostTask)         // POST /tasks
			r.Post("/batch", h.BatchUpdate) // POST /tasks/batch
			r.Put("/{id}", h.UpdateTask)    // PUT /tasks/{id}
			r.Delete("/{id}", h.DeleteTask) // DELETE /tasks/{id}

			r.Post("/{id}/toggle", h.ToggleTask)       // POST /tasks/{id}/toggle
			r.Post("/{id}/archive", h.ArchiveTask)     // POST /tasks/{id}/archive
			r.Post("/{id}/unarchive", h.UnarchiveTask) // POST /tasks/{id}/unarchive
			r.Post("/{id}/claim", h.ClaimTask)         // POST /tasks/{id}/claim
		})
	})

	return r
}
