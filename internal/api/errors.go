package api

import (
	"errors"
	"net/http"

	"gif-api/internal/gifs"
)

// RequestError is an error that already knows its HTTP status.
type RequestError struct {
	Status  int
	Message string
}

func (e RequestError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

const unauthorizedMessage = "Unauthorized"

// writeServiceError maps classified gif errors onto their status codes.
// Anything unclassified is logged and reported as a 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var gifErr *gifs.Error
	if errors.As(err, &gifErr) {
		status := statusForKind(gifErr.Kind)
		body := map[string]interface{}{"error": gifErr.Error()}
		if gifErr.Suggestions != nil {
			body["suggestions"] = gifErr.Suggestions
		}
		writeJSON(w, status, body)
		return
	}
	var reqErr RequestError
	if errors.As(err, &reqErr) {
		writeError(w, reqErr.Status, reqErr)
		return
	}
	h.logger(r).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, err)
}

func statusForKind(kind gifs.Kind) int {
	switch kind {
	case gifs.KindInvalidRequest:
		return http.StatusBadRequest
	case gifs.KindNotFound:
		return http.StatusNotFound
	case gifs.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
