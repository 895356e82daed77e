package quire

import "net/http"

// Role is a caller's RBAC role, mirrored here so extensions need not import
// internal packages.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
	RoleReader  Role = "reader"
)

// RouteRegistrar registers additional routes on the shared HTTP mux.
// Extra routes share the mux, auth chain and OTEL instrumentation with the
// built-in analytics routes. It is called once during New.
type RouteRegistrar func(mux *http.ServeMux, auth AuthHelper)

// AuthHelper provides RBAC middleware for use in a RouteRegistrar.
type AuthHelper interface {
	RequireRole(role Role) func(http.Handler) http.Handler
}

// Middleware wraps the root HTTP handler.
// Applied outermost (before routing), so it sees every request including /health.
type Middleware func(http.Handler) http.Handler
