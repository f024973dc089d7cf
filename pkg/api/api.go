// Package api defines the public API endpoints and content-type
// constants for the chrontext engine's HTTP surface, when it runs as a
// service rather than as the CLI. Adapted from the teacher's
// pkg/api/api.go, which named the SQL-gateway's table/engine/auth
// endpoints; here the surface is the query/explain/doctor operations
// spec.md §6 and SPEC_FULL.md §1.4 describe.
package api

// Version is the public API version.
const Version = "0.1.0"

// API endpoints.
const (
	EndpointQuery        = "/api/v1/query"
	EndpointQueryExplain = "/api/v1/query/explain"
	EndpointDoctor       = "/api/v1/doctor"
	EndpointHealth       = "/health"
	EndpointReady        = "/ready"
)

// HTTP headers.
const (
	HeaderContentType = "Content-Type"
	HeaderRequestID   = "X-Request-ID"
	HeaderQueryID     = "X-Query-ID"
)

// Content types.
const (
	ContentTypeJSON = "application/json"
)
