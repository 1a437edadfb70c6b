package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"client_go/internal/chat"
	"client_go/internal/config"
	"client_go/internal/domain"
)

// Client is the part of the chat client the debug surface drives.
type Client interface {
	Snapshot() chat.Snapshot
	Window(conversationID int64) (chat.WindowView, error)
	Open(ctx context.Context, conversationID int64) error
	Send(ctx context.Context, content string) (*domain.Message, error)
	Scrolled(ctx context.Context, top int) error
	Resize(height, width int)
}

// NewRouter constructs the local debug router: health, metrics, state
// inspection and a few commands for driving the client by hand.
func NewRouter(cfg *config.Config, client Client) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/debug", func(r chi.Router) {
		r.Get("/state", handleState(client))
		r.Post("/viewport", handleResize(client))
		r.Post("/scroll", handleScroll(client))
		r.Post("/messages", handleSend(client))
		r.Route("/conversations/{conversationID}", func(r chi.Router) {
			r.Post("/open", handleOpen(client))
			r.Get("/window", handleWindow(client))
		})
	})

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
