package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gameshelf/api/internal/account"
	"github.com/gameshelf/api/internal/auth"
	"github.com/gameshelf/api/internal/config"
	"github.com/gameshelf/api/internal/httputil"
	"github.com/gameshelf/api/internal/logging"
)

// NewRouter creates and configures the HTTP router. The oauthHandler may be
// nil when Google credentials are not configured; its routes are then not
// mounted at all.
func NewRouter(
	cfg *config.Config,
	authHandler *auth.Handler,
	oauthHandler *auth.OAuthHandler,
	authMiddleware *auth.Middleware,
	accountHandler *account.Handler,
	logger *logging.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	// Global middleware
	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Compress(5))

	r.Get("/health", handleHealth)

	// Uploaded profile pictures are public
	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.Upload.Dir)))
	r.Get("/uploads/*", func(w http.ResponseWriter, r *http.Request) {
		fileServer.ServeHTTP(w, r)
	})

	r.Route("/api", func(r chi.Router) {
		// Auth routes (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Post("/request-reset", authHandler.RequestReset)
			r.Post("/reset/{token}", authHandler.ResetPassword)

			if oauthHandler != nil {
				r.Get("/google/login", oauthHandler.GoogleLogin)
				r.Get("/google/callback", oauthHandler.GoogleCallback)
			}
		})

		// Protected routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)

			r.Get("/settings", accountHandler.GetSettings)
			r.Put("/settings", accountHandler.UpdateSettings)

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", accountHandler.Me)
				r.Put("/profile", accountHandler.UpdateProfile)
				r.Post("/profile-picture", accountHandler.UploadProfilePicture)
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", accountHandler.GetWishlist)
				r.Post("/", accountHandler.AddToWishlist)
				r.Delete("/{gameID}", accountHandler.RemoveFromWishlist)
			})
		})
	})

	return r
}

// handleHealth is a simple health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
