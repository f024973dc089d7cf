// Package models provides the shared request/response types for the
// chrontext CLI and engine API. Adapted from the teacher's
// pkg/models/models.go, which carried the SQL-gateway's TableDefinition/
// QueryRequest{SQL string} shapes; here a request carries an already
// rewritten algebra.Pattern rather than raw SQL text, since chrontext has
// no surface-syntax parser (spec.md §1 Non-goals).
package models

import (
	"time"

	"github.com/chrontext/chrontext/internal/algebra"
)

// QueryRequest is the engine API/CLI request for executing a query.
// Pattern is the fully parsed graph-query algebra tree; chrontext never
// re-parses a surface syntax, so callers (or a future SPARQL front end)
// are responsible for producing it.
type QueryRequest struct {
	Pattern *algebra.Pattern `json:"pattern"`
}

// QueryResponse is the API/CLI response for a query execution.
type QueryResponse struct {
	QueryID               string              `json:"query_id"`
	Columns               []string            `json:"columns"`
	Rows                  []map[string]string `json:"rows"`
	RowCount              int                 `json:"row_count"`
	StaticQueryCount      int                 `json:"static_query_count"`
	VirtualizedQueryCount int                 `json:"virtualized_query_count"`
	BackendsUsed          []string            `json:"backends_used"`
	Duration              string              `json:"duration"`
}

// ExplainResponse is the API/CLI response for query explanation: the
// decomposed static query plus the extracted virtualized-query tree,
// mirroring the teacher's federation Explain output shape.
type ExplainResponse struct {
	StaticPattern string       `json:"static_pattern"`
	VQCount       int          `json:"vq_count"`
	VQs           []VQSummary  `json:"vqs"`
}

// VQSummary is one extracted virtualized query, summarized for display.
type VQSummary struct {
	Resource   string   `json:"resource,omitempty"`
	Kind       string   `json:"kind"`
	Backend    string   `json:"backend,omitempty"`
	Identifiers []string `json:"identifiers,omitempty"`
	HasFilter  bool     `json:"has_filter"`
	HasGroupBy bool     `json:"has_group_by"`
}

// DoctorReport is the response for the doctor subcommand's diagnostics.
type DoctorReport struct {
	Checks []DiagnosticCheck `json:"checks"`
	Passed bool              `json:"passed"`
}

// DiagnosticCheck is one doctor check's result, adapted from the
// teacher's internal/cli.DiagnosticCheck shape.
type DiagnosticCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ErrorResponse is the API/CLI response for a failed request.
type ErrorResponse struct {
	Error      string `json:"error"`
	Reason     string `json:"reason,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Code       int    `json:"code"`
}

// VersionInfo is version information for the version subcommand.
type VersionInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildDate string    `json:"build_date"`
	GoVersion string    `json:"go_version"`
	OS        string    `json:"os"`
	Arch      string    `json:"arch"`
	Built     time.Time `json:"built,omitempty"`
}
