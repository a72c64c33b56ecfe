package router

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/leca/cardvault/internal/api"
	"github.com/leca/cardvault/internal/collection"
	"github.com/leca/cardvault/internal/config"
	"github.com/leca/cardvault/internal/handler"
	"github.com/leca/cardvault/internal/imageproc"
	"github.com/leca/cardvault/internal/session"
)

// Deps are the services the HTTP API is built on.
type Deps struct {
	Cards      *collection.Service
	Sessions   *session.Manager
	Compressor *imageproc.Compressor
	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server holds the application dependencies and HTTP router.
type Server struct {
	Deps   Deps
	Config *config.Config
	Router chi.Router
}

// New creates a new Server with a fully configured chi router.
func New(deps Deps, cfg *config.Config) *Server {
	s := &Server{Deps: deps, Config: cfg}

	h := &handler.Handler{
		Cards:      deps.Cards,
		Sessions:   deps.Sessions,
		Compressor: deps.Compressor,
		Config:     cfg,
		Logger:     deps.Logger,
	}

	r := chi.NewRouter()

	// CORS before other middleware so preflight OPTIONS is answered.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.Health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	limiter := api.NewRateLimiter(cfg.AuthRatePerSec, cfg.AuthRateBurst)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter.ByIP)
			r.Post("/auth/register", h.Register)
			r.Post("/auth/login", h.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(api.AuthMiddleware(deps.Sessions))

			r.Get("/me", h.Me)

			r.Get("/users", h.ListUsers)
			r.Get("/users/overview", h.Overview)
			r.Get("/users/{user_id}", h.GetUser)
			r.Get("/users/{user_id}/cards", h.UserCards)

			r.Get("/cards", h.ListCards)
			r.Get("/cards/suggestions", h.CardSuggestions)
			r.Post("/cards", h.CreateCard)
			r.Patch("/cards/{card_id}", h.UpdateCard)
			r.Post("/cards/{card_id}/favorite", h.ToggleFavorite)
			r.Delete("/cards/{card_id}", h.DeleteCard)

			r.Post("/images/compress", h.CompressImage)
		})
	})

	s.Router = r
	return s
}

// Health returns a simple health-check response.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		slog.Error("health: encode response", "error", err)
	}
}
