package http

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/amoret/amoret/internal/auth"
	"github.com/amoret/amoret/internal/config"
	"github.com/amoret/amoret/internal/httputil"
	"github.com/amoret/amoret/internal/logging"
	"github.com/amoret/amoret/internal/nonce"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, userHandler *auth.Handler, gates *auth.Middleware, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "x-token", "x-user-id"},
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

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		log.Println("Swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	r.Route("/v1/users", func(r chi.Router) {
		// Public routes
		r.Post("/signup", userHandler.Signup)
		r.Post("/login", userHandler.Login)
		r.Post("/resend/verify/email", userHandler.ResendVerification)
		r.Post("/forget/password", userHandler.ForgetPassword)

		// Action-token gated routes
		r.With(gates.RequireNonce(nonce.VerifyEmail)).
			Post("/verify/email", userHandler.VerifyEmail)
		r.With(gates.RequireNonce(nonce.VerifyForget)).
			Post("/reset/password", userHandler.ResetPassword)
		r.With(gates.RequireNonce(nonce.VerifyReview)).
			Get("/review", userHandler.Review)

		// Session gated routes
		r.Group(func(r chi.Router) {
			r.Use(gates.RequireLogin)
			r.Post("/logout", userHandler.Logout)
			r.Get("/{userId}", userHandler.GetProfile)
			r.Put("/{userId}/unlock", userHandler.Unlock)
			r.Patch("/{userId}/password", userHandler.ChangePassword)

			// Entitlement gated
			r.With(gates.RequirePaidAccess).
				Put("/{userId}/preferences", userHandler.UpdatePreferences)
		})
	})

	return r
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
