// Package observability provides structured logging for the chrontext
// engine. Every query must emit: query id, the resources touched, the
// static/virtualized query counts, the backends engaged, execution time,
// and the error (if any).
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// QueryLogEntry contains all required fields for query logging.
type QueryLogEntry struct {
	// QueryID is the unique identifier for this query. Required.
	QueryID string

	// Resources are the virtualization resources touched by the query's
	// virtualized queries. May be empty for purely static queries.
	Resources []string

	// PlannerDecision is a brief description of the rewrite/prepare
	// decomposition applied (e.g. which BGPs were pushed down).
	PlannerDecision string

	// StaticQueryCount is the number of context-store round trips the
	// combiner issued (normally 1; Exists sub-plans add more).
	StaticQueryCount int

	// VirtualizedQueryCount is the number of VirtualizedQuery executions
	// the combiner issued against the backends.
	VirtualizedQueryCount int

	// BackendsUsed lists the distinct virtualized-database backends the
	// query's VQs were executed against, e.g. ["bigquery", "duckdb"].
	BackendsUsed []string

	// ExecutionTime is how long the query took end to end. Non-negative.
	ExecutionTime time.Duration

	// Outcome is the result status: "success", "error".
	Outcome string

	// Error contains the error message if the query failed.
	Error string
}

// Validate checks that all required fields are present.
func (e *QueryLogEntry) Validate() error {
	if e.QueryID == "" {
		return fmt.Errorf("observability: query_id is required")
	}
	if e.ExecutionTime < 0 {
		return fmt.Errorf("observability: execution_time cannot be negative")
	}
	return nil
}

// QueryLogger is the interface for query logging.
type QueryLogger interface {
	LogQuery(ctx context.Context, entry QueryLogEntry) error
	GetAuditSummary() *AuditSummary
}

// AuditSummary represents aggregated audit statistics.
type AuditSummary struct {
	SuccessCount      int                `json:"success_count"`
	ErrorCount        int                `json:"error_count"`
	TopErrors         []RejectionReasonStat `json:"top_errors"`
	TopBackendsUsed   []TableQueryStat      `json:"top_backends_used"`
}

// RejectionReasonStat represents an error-message frequency stat.
type RejectionReasonStat struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// TableQueryStat represents a backend-usage frequency stat.
type TableQueryStat struct {
	Table string `json:"table"`
	Count int    `json:"count"`
}

// jsonLogOutput is the structured format for JSON logs.
type jsonLogOutput struct {
	Timestamp             string   `json:"timestamp"`
	Level                 string   `json:"level"`
	QueryID               string   `json:"query_id"`
	Resources             []string `json:"resources"`
	PlannerDecision       string   `json:"planner_decision,omitempty"`
	StaticQueryCount      int      `json:"static_query_count"`
	VirtualizedQueryCount int      `json:"virtualized_query_count"`
	BackendsUsed          []string `json:"backends_used"`
	ExecutionTimeMs       int64    `json:"execution_time_ms"`
	Outcome               string   `json:"outcome,omitempty"`
	Error                 string   `json:"error,omitempty"`
}

// JSONLogger implements QueryLogger with JSON output.
type JSONLogger struct {
	writer  io.Writer
	entries []QueryLogEntry
	mu      sync.RWMutex
}

// NewJSONLogger creates a new JSON logger writing to the given writer.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{
		writer:  w,
		entries: make([]QueryLogEntry, 0),
	}
}

func toOutput(entry QueryLogEntry) jsonLogOutput {
	level := "info"
	if entry.Error != "" {
		level = "error"
	}
	out := jsonLogOutput{
		Timestamp:             time.Now().UTC().Format(time.RFC3339),
		Level:                 level,
		QueryID:               entry.QueryID,
		Resources:             entry.Resources,
		PlannerDecision:       entry.PlannerDecision,
		StaticQueryCount:      entry.StaticQueryCount,
		VirtualizedQueryCount: entry.VirtualizedQueryCount,
		BackendsUsed:          entry.BackendsUsed,
		ExecutionTimeMs:       entry.ExecutionTime.Milliseconds(),
		Outcome:               entry.Outcome,
		Error:                 entry.Error,
	}
	if out.Resources == nil {
		out.Resources = []string{}
	}
	if out.BackendsUsed == nil {
		out.BackendsUsed = []string{}
	}
	return out
}

// LogQuery logs a query execution event as JSON.
func (l *JSONLogger) LogQuery(ctx context.Context, entry QueryLogEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(toOutput(entry))
	if err != nil {
		return fmt.Errorf("observability: failed to marshal log: %w", err)
	}
	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("observability: failed to write log: %w", err)
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	return nil
}

// GetAuditSummary returns aggregated audit statistics.
func (l *JSONLogger) GetAuditSummary() *AuditSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	summary := &AuditSummary{
		TopErrors:       []RejectionReasonStat{},
		TopBackendsUsed: []TableQueryStat{},
	}

	errorCounts := make(map[string]int)
	backendCounts := make(map[string]int)

	for _, entry := range l.entries {
		if entry.Error == "" {
			summary.SuccessCount++
		} else {
			summary.ErrorCount++
			errorCounts[entry.Error]++
		}
		for _, backend := range entry.BackendsUsed {
			backendCounts[backend]++
		}
	}

	for reason, count := range errorCounts {
		summary.TopErrors = append(summary.TopErrors, RejectionReasonStat{Reason: reason, Count: count})
	}
	sort.Slice(summary.TopErrors, func(i, j int) bool {
		return summary.TopErrors[i].Count > summary.TopErrors[j].Count
	})
	if len(summary.TopErrors) > 5 {
		summary.TopErrors = summary.TopErrors[:5]
	}

	for backend, count := range backendCounts {
		summary.TopBackendsUsed = append(summary.TopBackendsUsed, TableQueryStat{Table: backend, Count: count})
	}
	sort.Slice(summary.TopBackendsUsed, func(i, j int) bool {
		return summary.TopBackendsUsed[i].Count > summary.TopBackendsUsed[j].Count
	})
	if len(summary.TopBackendsUsed) > 5 {
		summary.TopBackendsUsed = summary.TopBackendsUsed[:5]
	}

	return summary
}

// NoopLogger is a logger that discards all logs.
type NoopLogger struct{}

func NewNoopLogger() *NoopLogger { return &NoopLogger{} }

func (l *NoopLogger) LogQuery(ctx context.Context, entry QueryLogEntry) error { return nil }

func (l *NoopLogger) GetAuditSummary() *AuditSummary {
	return &AuditSummary{TopErrors: []RejectionReasonStat{}, TopBackendsUsed: []TableQueryStat{}}
}

// PersistentLogger implements QueryLogger with PostgreSQL persistence,
// so audit entries survive an engine restart.
type PersistentLogger struct {
	db     *sql.DB
	mu     sync.RWMutex
	writer io.Writer
}

// NewPersistentLogger creates a logger that persists audit entries to PostgreSQL.
func NewPersistentLogger(db *sql.DB) (*PersistentLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("observability: database connection is required for persistent logging")
	}
	return &PersistentLogger{db: db}, nil
}

// NewPersistentLoggerWithWriter creates a logger that persists to both DB and a writer.
func NewPersistentLoggerWithWriter(db *sql.DB, w io.Writer) (*PersistentLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("observability: database connection is required for persistent logging")
	}
	return &PersistentLogger{db: db, writer: w}, nil
}

// LogQuery persists a query log entry to PostgreSQL.
func (l *PersistentLogger) LogQuery(ctx context.Context, entry QueryLogEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	resourcesJSON, err := json.Marshal(entry.Resources)
	if err != nil {
		resourcesJSON = []byte("[]")
	}
	backendsJSON, err := json.Marshal(entry.BackendsUsed)
	if err != nil {
		backendsJSON = []byte("[]")
	}

	query := `
		INSERT INTO audit_logs (
			query_id, resources_json, planner_decision, static_query_count,
			virtualized_query_count, backends_json, execution_time_ms,
			outcome, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = l.db.ExecContext(ctx, query,
		entry.QueryID,
		resourcesJSON,
		nullableString(entry.PlannerDecision),
		entry.StaticQueryCount,
		entry.VirtualizedQueryCount,
		backendsJSON,
		entry.ExecutionTime.Milliseconds(),
		nullableString(entry.Outcome),
		nullableString(entry.Error),
	)
	if err != nil {
		return fmt.Errorf("observability: failed to persist audit log: %w", err)
	}

	if l.writer != nil {
		if data, err := json.Marshal(toOutput(entry)); err == nil {
			l.writer.Write(data)
			l.writer.Write([]byte("\n"))
		}
	}

	return nil
}

// GetAuditSummary returns aggregated audit statistics from the database.
func (l *PersistentLogger) GetAuditSummary() *AuditSummary {
	summary := &AuditSummary{
		TopErrors:       []RejectionReasonStat{},
		TopBackendsUsed: []TableQueryStat{},
	}

	ctx := context.Background()

	row := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_logs WHERE error_message IS NULL OR error_message = ''
	`)
	row.Scan(&summary.SuccessCount)

	row = l.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_logs WHERE error_message IS NOT NULL AND error_message != ''
	`)
	row.Scan(&summary.ErrorCount)

	rows, err := l.db.QueryContext(ctx, `
		SELECT error_message, COUNT(*) as cnt
		FROM audit_logs
		WHERE error_message IS NOT NULL AND error_message != ''
		GROUP BY error_message
		ORDER BY cnt DESC
		LIMIT 5
	`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var reason string
			var count int
			if rows.Scan(&reason, &count) == nil {
				summary.TopErrors = append(summary.TopErrors, RejectionReasonStat{Reason: reason, Count: count})
			}
		}
	}

	rows, err = l.db.QueryContext(ctx, `
		SELECT backend, COUNT(*) as cnt
		FROM audit_logs, jsonb_array_elements_text(backends_json) as backend
		GROUP BY backend
		ORDER BY cnt DESC
		LIMIT 5
	`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var backend string
			var count int
			if rows.Scan(&backend, &count) == nil {
				summary.TopBackendsUsed = append(summary.TopBackendsUsed, TableQueryStat{Table: backend, Count: count})
			}
		}
	}

	return summary
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
