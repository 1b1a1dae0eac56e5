package server

import (
	"context"
	"log/slog"
	"net/http"

	"gif-api/internal/observability/logging"
)

// loggingWithRequest returns a logger annotated with the request ID, path and
// resolved client IP so middleware logs share keys with handler logs.
func loggingWithRequest(base *slog.Logger, trustProxy bool, r *http.Request) *slog.Logger {
	if base == nil || r == nil {
		return nil
	}
	return loggerWithRequestContext(r.Context(), base).With(
		"path", r.URL.Path,
		"remote_ip", clientIP(r, trustProxy),
	)
}

func loggerWithRequestContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if ctxLogger := logging.LoggerFromContext(ctx); ctxLogger != nil {
		return ctxLogger
	}
	return logging.WithContext(ctx, logger)
}
