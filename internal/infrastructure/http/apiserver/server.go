// Package apiserver provides the JSON API HTTP server
package apiserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/application/user"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/config"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/http/handlers"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/monitoring"
	"github.com/alchemorsel/pantrychef/internal/ports/inbound"
)

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// Dependencies are the services the API exposes
type Dependencies struct {
	Actions      inbound.Actions
	Library      inbound.Library
	Accounts     *user.AccountService
	Sessions     middleware.SessionResolver
	Metrics      *monitoring.Metrics
	HealthChecks map[string]HealthCheck
}

// Server represents the JSON API HTTP server
type Server struct {
	config *config.Config
	logger *zap.Logger
	deps   Dependencies
	router *chi.Mux
	server *http.Server
}

// NewServer creates a new API server instance
func NewServer(cfg *config.Config, log *zap.Logger, deps Dependencies) *Server {
	s := &Server{
		config: cfg,
		logger: log.Named("api-server"),
		deps:   deps,
	}

	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Address(),
		Handler:      otelhttp.NewHandler(s.router, "pantrychef-api"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// Handler returns the instrumented router
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RealIP(s.config.Server.TrustedProxies))
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.Middleware)
	}
	r.Use(middleware.Security())
	r.Use(middleware.CORS(s.config.Server.AllowedOrigins))

	r.Get(s.config.Monitoring.HealthCheckPath, s.handleHealthCheck)
	if s.deps.Metrics != nil && s.config.Monitoring.EnableMetrics {
		r.Method(http.MethodGet, s.config.Monitoring.MetricsPath, s.deps.Metrics.Handler())
	}

	r.Route("/api/v1", s.setupAPIV1Routes)
	return r
}

func (s *Server) setupAPIV1Routes(r chi.Router) {
	actionsH := handlers.NewActionsHandlers(s.deps.Actions, inbound.Limits{
		MinIngredients: s.config.Generation.MinIngredients,
		MaxPhotoBytes:  s.config.Generation.MaxPhotoBytes,
	}, s.logger)
	authH := handlers.NewAuthHandlers(s.deps.Accounts, s.config.Server.AllowedOrigins, s.logger)
	accountH := handlers.NewAccountHandlers(s.deps.Accounts, s.logger)
	libraryH := handlers.NewLibraryHandlers(s.deps.Library, s.logger)
	if s.deps.Metrics != nil {
		libraryH.OnHistoryFailure(s.deps.Metrics.RecordHistoryFailure)
	}

	authenticate := middleware.AuthenticateAPI(s.deps.Sessions, false)

	r.Get("/openapi.yaml", ServeOpenAPISpec)

	// the websocket outlives the request timeout
	r.With(middleware.AuthenticateAPI(s.deps.Sessions, true)).Get("/auth/session/stream", authH.SessionStream)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(s.config.Server.RequestTimeout))
		r.Use(chimiddleware.RequestSize(s.config.Server.MaxBodyBytes))
		r.Use(middleware.JSONOnly())

		r.Get("/limits", actionsH.Limits)

		r.Route("/actions", func(r chi.Router) {
			if s.config.RateLimit.Enable {
				r.Use(middleware.RateLimit(s.config.RateLimit.RequestsPerMin, s.config.RateLimit.BurstSize))
			}
			r.Post("/detect-ingredients", actionsH.DetectIngredients)
			r.Post("/generate-recipes", actionsH.GenerateRecipes)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authH.SignUp)
			r.Post("/login", authH.Login)
			r.Get("/providers/{provider}/url", authH.ProviderURL)
			r.Post("/providers/{provider}/callback", authH.ProviderCallback)
			r.With(middleware.OptionalAuth(s.deps.Sessions)).Get("/session", authH.Session)
			r.With(authenticate).Post("/logout", authH.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/account/profile", accountH.GetProfile)
			r.Put("/account/profile", accountH.UpdateProfile)
			r.Put("/account/password", accountH.UpdatePassword)

			r.Get("/favorites", libraryH.Favorites)
			r.Post("/favorites/toggle", libraryH.ToggleFavorite)

			r.Get("/history", libraryH.History)
			r.Post("/history", libraryH.RecordHistory)
		})
	})
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := healthResponse{
		Status:    "healthy",
		Service:   s.config.App.Name,
		Version:   s.config.App.Version,
		Timestamp: time.Now().Unix(),
	}
	status := http.StatusOK

	if len(s.deps.HealthChecks) > 0 {
		response.Checks = make(map[string]string, len(s.deps.HealthChecks))
		for name, check := range s.deps.HealthChecks {
			if err := check(ctx); err != nil {
				s.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
				response.Checks[name] = "unhealthy"
				response.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			response.Checks[name] = "healthy"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
