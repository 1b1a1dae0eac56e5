package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gif-api/internal/api"
	"gif-api/internal/observability/logging"
	"gif-api/internal/observability/metrics"
	"gif-api/web"
)

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type Config struct {
	Addr      string
	TLS       TLSConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Security  SecurityConfig
	// TrustProxyHeaders makes client IP resolution honour X-Forwarded-For.
	TrustProxyHeaders bool
	Logger            *slog.Logger
	Metrics           *metrics.Recorder
}

type Server struct {
	httpServer  *http.Server
	router      http.Handler
	logger      *slog.Logger
	rateLimiter *rateLimiter
	tlsCertFile string
	tlsKeyFile  string
}

func New(handler *api.Handler, cfg Config) (*Server, error) {
	if handler == nil {
		return nil, errors.New("api handler is required")
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}
	if handler.Metrics == nil {
		handler.Metrics = recorder
	}
	if handler.Logger == nil {
		handler.Logger = cfg.Logger
	}

	policy, err := newCORSPolicy(cfg.CORS)
	if err != nil {
		return nil, fmt.Errorf("configure cors: %w", err)
	}

	staticFS, err := web.Static()
	if err != nil {
		return nil, fmt.Errorf("load web assets: %w", err)
	}
	index, err := fs.ReadFile(staticFS, "index.html")
	if err != nil {
		return nil, fmt.Errorf("read web index: %w", err)
	}

	rl := newRateLimiter(cfg.RateLimit)
	if handler.RateLimiter == nil {
		handler.RateLimiter = rl
	}

	router := chi.NewRouter()
	router.Use(requestIDMiddleware(cfg.Logger))
	router.Use(logging.RequestLogger(logging.RequestLoggerConfig{Logger: cfg.Logger}))
	router.Use(middleware.Recoverer)
	router.Use(metrics.HTTPMiddleware(recorder))
	router.Use(securityHeadersMiddleware(cfg.Security))
	router.Use(corsMiddleware(policy, cfg.Logger))
	router.Use(rateLimitMiddleware(rl))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMiddlewareError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMiddlewareError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
	})

	router.Get("/health", handler.Health)
	router.Method(http.MethodGet, "/metrics", recorder.Handler())

	router.Route("/auth", func(r chi.Router) {
		r.With(loginRateLimit(rl, cfg.Logger, cfg.TrustProxyHeaders, recorder)).Post("/login", handler.Login)
		r.Post("/logout", handler.Logout)
		r.Get("/verify", handler.Verify)
	})

	router.Route("/gifs", func(r chi.Router) {
		r.Get("/", handler.ListGifs)
		r.With(handler.RequireToken).Post("/", handler.CreateGif)
		r.Get("/{id}", handler.GetGif)
		r.With(handler.RequireToken).Patch("/{id}", handler.PatchGif)
		r.With(handler.RequireToken).Delete("/{id}", handler.DeleteGif)
	})

	router.With(handler.RequireToken).Get("/admin/gifs", handler.AdminGifs)

	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
	router.Handle("/static/*", fileServer)
	router.Get("/", indexHandler(index))
	router.Head("/", indexHandler(index))

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	srv := &Server{
		httpServer:  httpServer,
		router:      router,
		logger:      cfg.Logger,
		rateLimiter: rl,
		tlsCertFile: strings.TrimSpace(cfg.TLS.CertFile),
		tlsKeyFile:  strings.TrimSpace(cfg.TLS.KeyFile),
	}

	if srv.tlsCertFile != "" && srv.tlsKeyFile != "" {
		httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return srv, nil
}

// Handler exposes the routed middleware chain.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer returns the configured *http.Server for serverutil.Run.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// TLS reports the certificate pair the server was configured with.
func (s *Server) TLS() TLSConfig {
	return TLSConfig{CertFile: s.tlsCertFile, KeyFile: s.tlsKeyFile}
}

func (s *Server) Start() error {
	if s.httpServer == nil {
		return fmt.Errorf("http server is not configured")
	}

	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		return s.httpServer.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile)
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP server and releases the rate limiter's Redis client.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	if s.httpServer != nil {
		shutdownErr = s.httpServer.Shutdown(ctx)
	}
	return errors.Join(shutdownErr, s.Close())
}

// Close releases resources held outside the HTTP server.
func (s *Server) Close() error {
	if err := s.rateLimiter.Close(); err != nil {
		return fmt.Errorf("close rate limiter: %w", err)
	}
	return nil
}

func indexHandler(index []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write(index)
	}
}
