package sqltranslate

import (
	"strings"
	"testing"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/qcontext"
)

func vic(name string) *qcontext.VariableInContext {
	v := qcontext.NewVariableInContext(qcontext.NewVariable(name), qcontext.Root())
	return &v
}

func dateTimeLit(s string) algebra.Expression {
	return algebra.Expression{Kind: algebra.ExprLiteral, Literal: &algebra.Literal{
		Value: s, Datatype: "http://www.w3.org/2001/XMLSchema#dateTime",
	}}
}

func varExpr(name string) algebra.Expression {
	return algebra.Expression{Kind: algebra.ExprVariable, Variable: &qcontext.Variable{Name: name}}
}

// A basic VQ against a partitioned table, filtered by a timestamp range,
// must emit both the translated comparison and a year/month/day pruning
// clause ANDed in alongside it (spec.md §8 scenario 4).
func TestTranslateBasic_PartitionPruning(t *testing.T) {
	resource := "weather-station-1"
	table := Table{
		Resource: resource, Schema: "public", Name: "readings",
		ValueColumn: "value", TimestampColumn: "ts", IdentifierColumn: "sensor_id",
		YearColumn: "yr", MonthColumn: "mo", DayColumn: "dy",
	}
	tr := New(DialectPostgres, map[string]Table{resource: table}, true)

	bvq := &algebra.BasicVirtualizedQuery{
		Resource:          &resource,
		ValueVariable:     vic("value"),
		TimestampVariable: vic("time"),
	}

	lo := algebra.Expression{Kind: algebra.ExprGreaterOrEqual, Left: ptr(varExpr("time")), Right: ptr(dateTimeLit("2024-01-01T00:00:00Z"))}
	hi := algebra.Expression{Kind: algebra.ExprLess, Left: ptr(varExpr("time")), Right: ptr(dateTimeLit("2024-02-01T00:00:00Z"))}
	filter := algebra.Expression{Kind: algebra.ExprAnd, Left: &lo, Right: &hi}

	built, err := tr.TranslateBasic(bvq, &filter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(built.SQL, `FROM "public"."readings"`) {
		t.Errorf("expected qualified FROM clause, got %q", built.SQL)
	}
	if !strings.Contains(built.SQL, `"yr"`) || !strings.Contains(built.SQL, `"mo"`) || !strings.Contains(built.SQL, `"dy"`) {
		t.Errorf("expected partition columns in WHERE clause, got %q", built.SQL)
	}
	if !strings.Contains(built.SQL, `"ts"`) {
		t.Errorf("expected the original timestamp comparison to survive alongside pruning, got %q", built.SQL)
	}
}

// Without PartitionSupport, no pruning clause is added even when the
// table declares partition columns and the filter has a timestamp range.
func TestTranslateBasic_NoPartitionSupport(t *testing.T) {
	resource := "weather-station-1"
	table := Table{
		Resource: resource, Name: "readings", ValueColumn: "value",
		TimestampColumn: "ts", YearColumn: "yr", MonthColumn: "mo", DayColumn: "dy",
	}
	tr := New(DialectDuckDB, map[string]Table{resource: table}, false)

	bvq := &algebra.BasicVirtualizedQuery{Resource: &resource, ValueVariable: vic("value"), TimestampVariable: vic("time")}
	filter := algebra.Expression{Kind: algebra.ExprGreaterOrEqual, Left: ptr(varExpr("time")), Right: ptr(dateTimeLit("2024-01-01T00:00:00Z"))}

	built, err := tr.TranslateBasic(bvq, &filter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(built.SQL, `"yr"`) {
		t.Errorf("expected no partition clause without PartitionSupport, got %q", built.SQL)
	}
}

// An unknown resource (not in the table map) must error rather than
// build a SQL statement against a nonexistent table.
func TestTranslateBasic_UnknownResourceErrors(t *testing.T) {
	resource := "unknown-resource"
	tr := New(DialectPostgres, map[string]Table{}, false)
	bvq := &algebra.BasicVirtualizedQuery{Resource: &resource, ValueVariable: vic("value")}
	if _, err := tr.TranslateBasic(bvq, nil); err == nil {
		t.Fatal("expected an error for an unknown resource")
	}
}

func ptr(e algebra.Expression) *algebra.Expression { return &e }
