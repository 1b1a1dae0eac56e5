// Package api hosts the HTTP handlers that front the gif REST API.
//
// Handler coordinates request parsing and response shaping while delegating
// query resolution and writes to gifs.Service and persistence to the
// storage.Repository injected at construction time. Token issuance and
// validation go through auth.SessionManager; the package does not reach for
// globals and expects callers to supply configured dependencies.
//
// Routing, CORS, request ids, rate limiting and request logging live in
// internal/server. RequireToken is exported so the router can guard the
// mutating and admin routes.
package api
