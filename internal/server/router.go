package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmartinezh97/reviewrelay/internal/config"
	"github.com/dmartinezh97/reviewrelay/internal/server/handler"
)

// NewRouter creates and configures the HTTP router with middleware, the
// health check, and the two webhook endpoints.
func NewRouter(cfg *config.Config, wh *handler.WebhookHandler, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true,"version":"` + cfg.AppVersion + `","profile":"` + cfg.BridgeProfile + `"}`))
	})

	r.Post("/webhooks/gitea", wh.HandleGitea)
	r.Post("/webhooks/github", wh.HandleGitHub)

	return r
}
