package vdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/dataframe"
	"github.com/chrontext/chrontext/internal/prepare"
	"github.com/chrontext/chrontext/internal/qcontext"
)

func vic(name string) *qcontext.VariableInContext {
	v := qcontext.NewVariableInContext(qcontext.NewVariable(name), qcontext.Root())
	return &v
}

// Registry must round trip every registered backend by name and report
// every registered name back via Names.
func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	a := NewMemoryAdapter("duckdb", prepare.Capabilities{})
	reg.Register(a)
	got, ok := reg.Get("duckdb")
	if !ok || got.Name() != "duckdb" {
		t.Fatalf("expected to find the registered duckdb backend, got ok=%v got=%v", ok, got)
	}
	if _, ok := reg.Get("nonexistent"); ok {
		t.Error("expected an unregistered name to not be found")
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "duckdb" {
		t.Errorf("expected Names() to report [duckdb], got %v", names)
	}
}

func basicQuery(resource string, ids []string) *algebra.VirtualizedQuery {
	b := algebra.NewEmptyBasicVirtualizedQuery()
	r := resource
	b.Resource = &r
	b.IDs = ids
	idVar := qcontext.NewVariable("id")
	b.IdentifierVariable = &idVar
	b.ValueVariable = vic("value")
	b.TimestampVariable = vic("time")
	return algebra.NewBasic(b)
}

// MemoryAdapter.Query must restrict to the requested identifiers and sort
// the resulting rows ascending by timestamp.
func TestMemoryAdapter_Query_FiltersIDsAndSortsByTime(t *testing.T) {
	a := NewMemoryAdapter("mem", prepare.Capabilities{})
	lit := func(v string) dataframe.Value { return dataframe.NewLiteralValue(v, "http://www.w3.org/2001/XMLSchema#dateTime", "") }
	a.Seed("weather-1", []MemoryPoint{
		{Identifier: "sensor-a", Value: dataframe.NewLiteralValue("1", "http://www.w3.org/2001/XMLSchema#integer", ""), Timestamp: lit("2024-01-01T02:00:00Z")},
		{Identifier: "sensor-a", Value: dataframe.NewLiteralValue("2", "http://www.w3.org/2001/XMLSchema#integer", ""), Timestamp: lit("2024-01-01T01:00:00Z")},
		{Identifier: "sensor-b", Value: dataframe.NewLiteralValue("3", "http://www.w3.org/2001/XMLSchema#integer", ""), Timestamp: lit("2024-01-01T00:00:00Z")},
	})

	sm, err := a.Query(context.Background(), basicQuery("weather-1", []string{"sensor-a"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sm.Rows) != 2 {
		t.Fatalf("expected only sensor-a's 2 rows, got %d", len(sm.Rows))
	}
	if sm.Rows[0]["value"].Lexical != "2" || sm.Rows[1]["value"].Lexical != "1" {
		t.Errorf("expected rows sorted ascending by timestamp, got %+v", sm.Rows)
	}
}

// Retrying must retry a transient error up to MaxAttempts and ultimately
// succeed once the inner adapter stops failing.
func TestRetrying_RetriesTransientFailureThenSucceeds(t *testing.T) {
	calls := 0
	inner := &countingAdapter{
		queryFunc: func(ctx context.Context, vq *algebra.VirtualizedQuery) (*dataframe.SolutionMappings, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("connection reset")
			}
			return dataframe.NewSolutionMappings(nil), nil
		},
	}
	r := NewRetrying(inner, RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, BackoffMultiplier: 2})
	_, err := r.Query(context.Background(), basicQuery("x", nil))
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls)
	}
}

// Retrying must never retry a TimeseriesValidationError — a schema
// mismatch a retry cannot fix.
func TestRetrying_NeverRetriesValidationError(t *testing.T) {
	calls := 0
	inner := &countingAdapter{
		queryFunc: func(ctx context.Context, vq *algebra.VirtualizedQuery) (*dataframe.SolutionMappings, error) {
			calls++
			return nil, &algebra.TimeseriesValidationError{MissingColumns: []string{"value"}}
		},
	}
	r := NewRetrying(inner, DefaultRetryConfig())
	_, err := r.Query(context.Background(), basicQuery("x", nil))
	if err == nil {
		t.Fatal("expected an error to propagate")
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 attempt (no retry) for a validation error, got %d", calls)
	}
}

type countingAdapter struct {
	queryFunc func(ctx context.Context, vq *algebra.VirtualizedQuery) (*dataframe.SolutionMappings, error)
}

func (c *countingAdapter) Name() string                          { return "counting" }
func (c *countingAdapter) PushdownSettings() prepare.Capabilities { return prepare.Capabilities{} }
func (c *countingAdapter) Ping(ctx context.Context) error         { return nil }
func (c *countingAdapter) Close() error                           { return nil }
func (c *countingAdapter) Query(ctx context.Context, vq *algebra.VirtualizedQuery) (*dataframe.SolutionMappings, error) {
	return c.queryFunc(ctx, vq)
}
