// Package server hosts the gif API and its bundled index page from a single
// HTTP server.
//
// New builds a chi router with one middleware chain: request ids, request
// logging, panic recovery, metrics, security headers, CORS and global rate
// limiting. Login additionally passes a per-client limiter that can share its
// window through Redis, and mutating gif routes pass api.RequireToken.
package server
