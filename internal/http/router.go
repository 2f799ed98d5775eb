package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Pinger reports whether the cart store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	MaxRequestBodySize int64
	AllowedOrigins     []string
	Logger             *slog.Logger
	// Store backs the readiness probe; nil makes /ready always succeed.
	Store Pinger
}

// NewRouter serves the cart API under /cart and under /api/cart.
func NewRouter(h *CartHandler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware(logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", HeaderXRequestID},
			ExposedHeaders: []string{HeaderXRequestID},
			MaxAge:         300,
		}))
	}
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", readinessHandler(cfg.Store))

	cartRoutes := func(r chi.Router) {
		r.Post("/merge", h.MergeGuestToUser)
		r.Route("/{kind}/{id}", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Put("/", h.ReplaceCart)
			r.Delete("/", h.DeleteCart)
			r.Post("/items", h.AddItem)
			r.Put("/items", h.UpdateItem)
			r.Delete("/items", h.RemoveItem)
			r.Delete("/clear", h.ClearCart)
		})
	}
	r.Route("/cart", cartRoutes)
	r.Route("/api/cart", cartRoutes)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r
}

func readinessHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				respondError(w, http.StatusServiceUnavailable, "store_unavailable", "cart store unreachable")
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
