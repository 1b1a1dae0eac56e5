package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"gif-api/internal/api"
	"gif-api/internal/auth"
	"gif-api/internal/database"
	"gif-api/internal/observability/metrics"
	"gif-api/internal/storage"
)

func newTestHandler(t *testing.T) *api.Handler {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "gifs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	store := storage.NewSQLiteRepository(db)
	t.Cleanup(func() { store.Close(context.Background()) })
	return api.NewHandler(store, auth.NewSessionManager(time.Hour), auth.AdminCredentials{Password: "secret"})
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	srv, err := New(newTestHandler(t), cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, srv *Server) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if payload.Token == "" {
		t.Fatal("expected token in login response")
	}
	return payload.Token
}

func TestNewReturnsErrorWhenHandlerNil(t *testing.T) {
	t.Parallel()

	srv, err := New(nil, Config{})
	if err == nil {
		t.Fatalf("expected error when handler is nil, got server: %#v", srv)
	}
}

func TestNewRejectsMalformedCORSOrigin(t *testing.T) {
	t.Parallel()

	if _, err := New(newTestHandler(t), Config{CORS: CORSConfig{AllowedOrigins: []string{"::bad"}}}); err == nil {
		t.Fatal("expected malformed origin to fail server construction")
	}
}

func TestGifLifecycleThroughRouter(t *testing.T) {
	srv := newTestServer(t, Config{})

	body := `{"url":"https://media.example.com/wave.gif","title":"Wave","tags":["hello"],"anime":"Frieren","characters":["Fern"]}`
	unauth := httptest.NewRequest(http.MethodPost, "/gifs", strings.NewReader(body))
	unauth.Header.Set("Content-Type", "application/json")
	if rec := serve(srv, unauth); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	} else if !strings.Contains(rec.Body.String(), `"Unauthorized"`) {
		t.Fatalf("unexpected unauthorized body: %s", rec.Body.String())
	}

	token := login(t, srv)

	create := httptest.NewRequest(http.MethodPost, "/gifs", strings.NewReader(body))
	create.Header.Set("Content-Type", "application/json")
	create.Header.Set(api.TokenHeader, token)
	rec := serve(srv, create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/gifs?anime=frieren", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing by anime, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "wave.gif") {
		t.Fatalf("expected created gif in listing, got %s", rec.Body.String())
	}

	patch := httptest.NewRequest(http.MethodPatch, "/gifs/"+strconv.FormatInt(created.ID, 10), strings.NewReader(`{"title":"Big wave"}`))
	patch.Header.Set("Content-Type", "application/json")
	patch.Header.Set(api.TokenHeader, token)
	if rec := serve(srv, patch); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on patch, got %d: %s", rec.Code, rec.Body.String())
	}

	del := httptest.NewRequest(http.MethodDelete, "/gifs/"+strconv.FormatInt(created.ID, 10), nil)
	del.Header.Set(api.TokenHeader, token)
	if rec := serve(srv, del); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", rec.Code)
	}

	if rec := serve(srv, httptest.NewRequest(http.MethodGet, "/gifs/"+strconv.FormatInt(created.ID, 10), nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestAdminRouteRequiresToken(t *testing.T) {
	srv := newTestServer(t, Config{})

	if rec := serve(srv, httptest.NewRequest(http.MethodGet, "/admin/gifs", nil)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for admin listing without token, got %d", rec.Code)
	}

	token := login(t, srv)
	req := httptest.NewRequest(http.MethodGet, "/admin/gifs?limit=5", nil)
	req.Header.Set(api.TokenHeader, token)
	rec := serve(srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin listing, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	srv := newTestServer(t, Config{})
	token := login(t, srv)

	logout := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logout.Header.Set(api.TokenHeader, token)
	if rec := serve(srv, logout); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on logout, got %d", rec.Code)
	}

	verify := httptest.NewRequest(http.MethodGet, "/auth/verify", nil)
	verify.Header.Set(api.TokenHeader, token)
	if rec := serve(srv, verify); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 verifying a revoked token, got %d", rec.Code)
	}
}

func TestRouterSetsRequestIDAndSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, Config{})

	for _, path := range []string{"/", "/health"} {
		rec := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}
		if rec.Header().Get(requestIDHeader) == "" {
			t.Fatalf("%s: expected request id header", path)
		}
		assertDefaultSecurityHeaders(t, rec.Result())
	}
}

func TestIndexServesEmbeddedPage(t *testing.T) {
	srv := newTestServer(t, Config{})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html content type, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "/static/app.js") {
		t.Fatalf("expected index to reference app script, got %s", rec.Body.String())
	}

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected static asset, got %d", rec.Code)
	}

	rec = serve(srv, httptest.NewRequest(http.MethodHead, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("expected empty 200 for HEAD, got %d with %d bytes", rec.Code, rec.Body.Len())
	}
}

func TestHealthReportsComponents(t *testing.T) {
	srv := newTestServer(t, Config{})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	var payload struct {
		Status     string `json:"status"`
		Components []struct {
			Component string `json:"component"`
			Status    string `json:"status"`
		} `json:"components"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("expected ok status, got %q", payload.Status)
	}
	seen := map[string]bool{}
	for _, c := range payload.Components {
		seen[c.Component] = true
	}
	for _, name := range []string{"datastore", "sessions", "rate_limiter"} {
		if !seen[name] {
			t.Fatalf("expected %s component in %+v", name, payload.Components)
		}
	}
}

func TestMetricsEndpointReportsTraffic(t *testing.T) {
	recorder := metrics.New()
	srv := newTestServer(t, Config{Metrics: recorder})

	serve(srv, httptest.NewRequest(http.MethodGet, "/gifs?tag=none", nil))

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"gifapi_http_requests_total", `gifapi_gif_lookups_total{mode="random_by_filter"`} {
		if !bytes.Contains(body, []byte(want)) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}

func TestUnknownRouteReturnsJSON(t *testing.T) {
	srv := newTestServer(t, Config{})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode 404 body: %v (%s)", err, rec.Body.String())
	}
	if payload["error"] != "not found" {
		t.Fatalf("unexpected 404 body: %v", payload)
	}
}

func TestRouterAppliesCORSPolicy(t *testing.T) {
	srv := newTestServer(t, Config{CORS: CORSConfig{AllowedOrigins: []string{"https://ui.example.com"}}})

	req := httptest.NewRequest(http.MethodGet, "/gifs?list=tags", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	rec := serve(srv, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ui.example.com" {
		t.Fatalf("expected allow origin header, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/gifs?list=tags", nil)
	req.Header.Set("Origin", "https://other.example.com")
	if rec := serve(srv, req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign origin, got %d", rec.Code)
	}
}

func TestLoginRateLimitReturnsRetryAfter(t *testing.T) {
	srv := newTestServer(t, Config{RateLimit: RateLimitConfig{LoginLimit: 1, LoginWindow: time.Minute}})

	attempt := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.7:4000"
		return serve(srv, req)
	}

	if rec := attempt(); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected first attempt to reach the handler, got %d", rec.Code)
	}
	rec := attempt()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on second attempt, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestShutdownStopsServer(t *testing.T) {
	srv := newTestServer(t, Config{Addr: "127.0.0.1:0"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}
	if err := srv.Start(); err != http.ErrServerClosed {
		t.Fatalf("expected ErrServerClosed after shutdown, got %v", err)
	}
}
