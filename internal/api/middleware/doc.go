// Package middleware provides the gin middleware shared by every route:
// CORS for the browser dashboard and per-client or global rate limiting.
package middleware
