package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/dmfonseca/go-task-hub/internal/api/admin"
	"github.com/dmfonseca/go-task-hub/internal/api/auth"
	"github.com/dmfonseca/go-task-hub/internal/api/task"
	"github.com/dmfonseca/go-task-hub/internal/api/user"
)

// Config contains the dependencies needed for the router setup.
type Config struct {
	AuthHandler  *auth.AuthHandler
	TaskHandler  *task.TaskHandler
	UserHandler  *user.UserHandler
	AdminHandler *admin.AdminHandler

	// AuthenticateMiddleware resolves the Bearer token into an identity.
	AuthenticateMiddleware func(http.Handler) http.Handler
	// RequireAdmin composes after authentication on the /admin subtree.
	RequireAdmin func(http.Handler) http.Handler

	// AuthRequestsPerMinute rate-limits the public auth endpoints per client
	// IP. Zero disables the limiter.
	AuthRequestsPerMinute int
}

// SetupRouter wires the API surface. Server-wide middleware (request ID,
// logging, recoverer) is applied by the caller before mounting.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// Public auth routes. Credential guessing is throttled per IP; the
		// per-account throttle lives in the service.
		r.Group(func(r chi.Router) {
			if cfg.AuthRequestsPerMinute > 0 {
				r.Use(httprate.LimitByIP(cfg.AuthRequestsPerMinute, time.Minute))
			}
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/refresh", cfg.AuthHandler.RefreshSession)
		})

		// Everything below requires a valid access token.
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)

			r.Post("/auth/logout", cfg.AuthHandler.Logout)
			r.Get("/auth/me", cfg.AuthHandler.Me)
			r.Put("/auth/update-password", cfg.AuthHandler.UpdatePassword)

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", cfg.TaskHandler.ListTasks)
				r.Post("/", cfg.TaskHandler.CreateTask)
				r.Get("/stats", cfg.TaskHandler.TaskStats)
				r.Route("/{taskID}", func(r chi.Router) {
					r.Get("/", cfg.TaskHandler.GetTask)
					r.Put("/", cfg.TaskHandler.UpdateTask)
					r.Delete("/", cfg.TaskHandler.DeleteTask)
					r.Patch("/archive", cfg.TaskHandler.ToggleArchive)
				})
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/profile", cfg.UserHandler.GetProfile)
				r.Put("/profile", cfg.UserHandler.UpdateProfile)
				r.Delete("/profile", cfg.UserHandler.DeactivateAccount)
			})
		})

		// Admin oversight.
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)
			r.Use(cfg.RequireAdmin)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/stats", cfg.AdminHandler.PlatformStats)
				r.Route("/users", func(r chi.Router) {
					r.Get("/", cfg.AdminHandler.ListUsers)
					r.Route("/{userID}", func(r chi.Router) {
						r.Get("/", cfg.AdminHandler.GetUser)
						r.Patch("/", cfg.AdminHandler.UpdateUser)
						r.Delete("/", cfg.AdminHandler.DeleteUser)
					})
				})
			})
		})
	})

	return r
}
