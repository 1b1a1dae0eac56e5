package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"gif-api/internal/auth"
)

// TokenHeader carries the session token on guarded requests.
const TokenHeader = "X-Auth-Token"

// ExtractToken returns the trimmed session token from the request header.
func ExtractToken(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(TokenHeader))
}

// RequireToken rejects requests without a valid session token before next
// runs. Store failures surface as 500 rather than 401.
func (h *Handler) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, errors.New(unauthorizedMessage))
			return
		}
		ok, err := h.sessionManager().Validate(r.Context(), token)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, errors.New(unauthorizedMessage))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type verifyResponse struct {
	OK        bool      `json:"ok"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch err := h.Admin.Verify(req.Password); {
	case errors.Is(err, auth.ErrAdminNotConfigured):
		h.logger(r).Error("login attempted without a configured admin password")
		writeError(w, http.StatusInternalServerError, errors.New("server not configured: admin password missing"))
		return
	case err != nil:
		h.recorder().ObserveAuthEvent("login_failure")
		writeError(w, http.StatusUnauthorized, errors.New("invalid password"))
		return
	}

	token, expiresAt, err := h.sessionManager().Create(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.recorder().ObserveAuthEvent("login_success")
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, ExpiresAt: expiresAt})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := ExtractToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing token"))
		return
	}
	if err := h.sessionManager().Revoke(r.Context(), token); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.recorder().ObserveAuthEvent("logout")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	token := ExtractToken(r)
	sessions := h.sessionManager()
	ok, err := sessions.Validate(r.Context(), token)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New(unauthorizedMessage))
		return
	}
	expiresAt, found, err := sessions.Expiry(r.Context(), token)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusUnauthorized, errors.New(unauthorizedMessage))
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{OK: true, ExpiresAt: expiresAt})
}
