package api

import (
	"context"
	"log/slog"
	"net/http"

	"gif-api/internal/auth"
	"gif-api/internal/gifs"
	"gif-api/internal/observability/logging"
	"gif-api/internal/observability/metrics"
	"gif-api/internal/storage"
)

// Pinger is implemented by dependencies that can report their availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Store       storage.Repository
	Gifs        *gifs.Service
	Sessions    *auth.SessionManager
	Admin       auth.AdminCredentials
	RateLimiter Pinger
	Metrics     *metrics.Recorder
	Logger      *slog.Logger
}

func NewHandler(store storage.Repository, sessions *auth.SessionManager, admin auth.AdminCredentials) *Handler {
	if sessions == nil {
		sessions = auth.NewSessionManager(auth.DefaultSessionTTL)
	}
	return &Handler{
		Store:    store,
		Gifs:     gifs.NewService(store),
		Sessions: sessions,
		Admin:    admin,
	}
}

func (h *Handler) sessionManager() *auth.SessionManager {
	if h.Sessions == nil {
		h.Sessions = auth.NewSessionManager(auth.DefaultSessionTTL)
	}
	return h.Sessions
}

func (h *Handler) gifService() *gifs.Service {
	if h.Gifs == nil {
		h.Gifs = gifs.NewService(h.Store)
	}
	return h.Gifs
}

func (h *Handler) recorder() *metrics.Recorder {
	if h.Metrics == nil {
		return metrics.Default()
	}
	return h.Metrics
}

func (h *Handler) logger(r *http.Request) *slog.Logger {
	return logging.FromRequest(r, h.Logger)
}
