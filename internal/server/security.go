package server

import (
	"net/http"
	"strconv"
)

const (
	defaultFrameOptions       = "DENY"
	defaultReferrerPolicy     = "no-referrer"
	defaultPermissionsPolicy  = "camera=(), microphone=(), geolocation=()"
	defaultContentTypeOptions = "nosniff"
)

// defaultContentSecurityPolicy lets the bundled index page render gifs from
// any https host while keeping scripts and styles same-origin.
const defaultContentSecurityPolicy = "default-src 'self'; " +
	"connect-src 'self'; " +
	"img-src 'self' data: https: http:; " +
	"script-src 'self'; " +
	"style-src 'self'; " +
	"object-src 'none'; " +
	"base-uri 'self'; " +
	"frame-ancestors 'none'; " +
	"form-action 'self'"

// SecurityConfig controls the hardening headers set on every response.
// Zero-valued fields fall back to the defaults above.
type SecurityConfig struct {
	ContentSecurityPolicy string
	FrameOptions          string
	ReferrerPolicy        string
	PermissionsPolicy     string
	ContentTypeOptions    string
	// HSTSMaxAge enables Strict-Transport-Security on TLS requests when positive.
	HSTSMaxAge int
}

func (cfg SecurityConfig) withDefaults() SecurityConfig {
	if cfg.ContentSecurityPolicy == "" {
		cfg.ContentSecurityPolicy = defaultContentSecurityPolicy
	}
	if cfg.FrameOptions == "" {
		cfg.FrameOptions = defaultFrameOptions
	}
	if cfg.ReferrerPolicy == "" {
		cfg.ReferrerPolicy = defaultReferrerPolicy
	}
	if cfg.PermissionsPolicy == "" {
		cfg.PermissionsPolicy = defaultPermissionsPolicy
	}
	if cfg.ContentTypeOptions == "" {
		cfg.ContentTypeOptions = defaultContentTypeOptions
	}
	return cfg
}

func securityHeadersMiddleware(cfg SecurityConfig) func(http.Handler) http.Handler {
	effective := cfg.withDefaults()
	headers := map[string]string{
		"Content-Security-Policy": effective.ContentSecurityPolicy,
		"X-Frame-Options":         effective.FrameOptions,
		"X-Content-Type-Options":  effective.ContentTypeOptions,
		"Referrer-Policy":         effective.ReferrerPolicy,
		"Permissions-Policy":      effective.PermissionsPolicy,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for name, value := range headers {
				w.Header().Set(name, value)
			}
			if effective.HSTSMaxAge > 0 && r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age="+strconv.Itoa(effective.HSTSMaxAge))
			}
			next.ServeHTTP(w, r)
		})
	}
}
