// @title Ciguard API
// @version 1.0.0
// @description Role-based permission decision engine for CI servers
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/swaggo/swag"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ciguard/ciguard/internal/adminsource"
	"github.com/ciguard/ciguard/internal/audit"
	"github.com/ciguard/ciguard/internal/authconfig"
	"github.com/ciguard/ciguard/internal/decision"
	"github.com/ciguard/ciguard/internal/permission"
	"github.com/ciguard/ciguard/internal/token"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	decisionService *decision.Service
	configService   *authconfig.Service
	tokenService    *token.Service
	adminRepo       adminsource.Repository
	catalog         *permission.Catalog
	auditLogger     audit.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	decisionService *decision.Service,
	configService *authconfig.Service,
	tokenService *token.Service,
	adminRepo adminsource.Repository,
	catalog *permission.Catalog,
	auditLogger audit.Logger,
) *Handler {
	return &Handler{
		decisionService: decisionService,
		configService:   configService,
		tokenService:    tokenService,
		adminRepo:       adminRepo,
		catalog:         catalog,
		auditLogger:     auditLogger,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// OpenAPI document for generated clients
	r.Get("/swagger/doc.json", h.SwaggerDoc)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Session minting authenticates with the raw API token in the
		// request body, not a bearer header.
		r.Post("/sessions", h.CreateSession)

		// Decision plane. Admin credentials may ask decision questions;
		// decision credentials may not administer.
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAudience(token.AudienceDecision, token.AudienceAdmin))
			r.Post("/decisions", h.Decide)
			r.Get("/permissions", h.ListPermissions)
		})

		// Admin plane (FAIL-CLOSED)
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAudience(token.AudienceAdmin))

			r.Get("/acl", h.GetACL)
			r.Put("/acl", h.ReplaceACL)
			r.Get("/acl/history", h.ACLHistory)

			r.Get("/external-admins", h.ListExternalAdmins)

			r.Route("/tokens", func(r chi.Router) {
				r.Post("/", h.CreateToken)
				r.Get("/", h.ListTokens)
				r.Get("/{tokenID}", h.GetToken)
				r.Delete("/{tokenID}", h.RevokeToken)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "ciguard",
	})
}

// SwaggerDoc serves the committed OpenAPI document.
func (h *Handler) SwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "openapi document unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
