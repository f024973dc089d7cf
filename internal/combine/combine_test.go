package combine

import (
	"context"
	"fmt"
	"testing"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/dataframe"
	"github.com/chrontext/chrontext/internal/exprrewrite"
	"github.com/chrontext/chrontext/internal/prepare"
	"github.com/chrontext/chrontext/internal/preprocess"
	"github.com/chrontext/chrontext/internal/qcontext"
	"github.com/chrontext/chrontext/internal/vdb"
)

// funcContextStore adapts a plain function to contextstore.ContextStore,
// so each test can seed exactly the static rows its scenario needs.
type funcContextStore struct {
	query func(ctx context.Context, sparql string) (*dataframe.SolutionMappings, error)
}

func (f *funcContextStore) Query(ctx context.Context, sparql string) (*dataframe.SolutionMappings, error) {
	return f.query(ctx, sparql)
}

// fakeBackend is a minimal in-memory vdb.VirtualizedDatabase double.
// queried records every VirtualizedQuery it was asked to run, so tests
// can assert a Filter was (or wasn't) pushed down into it.
type fakeBackend struct {
	name    string
	caps    prepare.Capabilities
	rows    map[string][]dataframe.Row // by resource
	queried []*algebra.VirtualizedQuery
}

func (f *fakeBackend) Name() string                          { return f.name }
func (f *fakeBackend) PushdownSettings() prepare.Capabilities { return f.caps }
func (f *fakeBackend) Ping(ctx context.Context) error         { return nil }
func (f *fakeBackend) Close() error                           { return nil }

func (f *fakeBackend) Query(ctx context.Context, vq *algebra.VirtualizedQuery) (*dataframe.SolutionMappings, error) {
	f.queried = append(f.queried, vq)
	basic := unwrapBasic(vq)
	if basic == nil || basic.Resource == nil {
		return nil, fmt.Errorf("fakeBackend: no resolvable resource on query")
	}
	rows := f.rows[*basic.Resource]
	types := map[string]dataframe.RDFNodeTypeSet{}
	for _, row := range rows {
		for c := range row {
			types[c] = dataframe.RDFNodeTypeSet{Literal: true}
		}
	}
	out := make([]dataframe.Row, len(rows))
	copy(out, rows)
	return &dataframe.SolutionMappings{Rows: out, RDFNodeTypes: types}, nil
}

// unwrapBasic peels Filtered/ExpressionAs/Sliced wrapper layers down to
// the leaf Basic query, mirroring vdb/duckdb.go's unwrapToBasic.
func unwrapBasic(vq *algebra.VirtualizedQuery) *algebra.BasicVirtualizedQuery {
	for vq != nil {
		switch vq.Kind {
		case algebra.VQBasic:
			return vq.Basic
		case algebra.VQFiltered:
			vq = vq.FilteredInner
		case algebra.VQExpressionAs:
			vq = vq.ExpressionAsInner
		case algebra.VQSliced:
			vq = vq.SlicedInner
		default:
			return nil
		}
	}
	return nil
}

func vic(name string) *qcontext.VariableInContext {
	v := qcontext.NewVariableInContext(qcontext.NewVariable(name), qcontext.Root())
	return &v
}

func staticResourceVQ(resource, identifierCol, valueCol, timeCol string) *algebra.BasicVirtualizedQuery {
	r := resource
	bvq := algebra.NewEmptyBasicVirtualizedQuery()
	bvq.Resource = &r
	if identifierCol != "" {
		v := qcontext.NewVariable(identifierCol)
		bvq.IdentifierVariable = &v
	}
	bvq.ValueVariable = vic(valueCol)
	bvq.TimestampVariable = vic(timeCol)
	return &bvq
}

func newCombiner(store *funcContextStore, backend *fakeBackend, resourceBackends map[string]string) *Combiner {
	reg := vdb.NewRegistry()
	reg.Register(backend)
	return New(store, reg, resourceBackends)
}

func litRow(pairs ...string) dataframe.Row {
	row := dataframe.Row{}
	for i := 0; i+1 < len(pairs); i += 2 {
		row[pairs[i]] = dataframe.NewLiteralValue(pairs[i+1], "http://www.w3.org/2001/XMLSchema#string", "")
	}
	return row
}

// A BGP with both static triples and one attached VQ must join the VQ's
// rows onto every matching static row, per spec.md §4.6.
func TestExecuteBGP_JoinsStaticAndVirtualized(t *testing.T) {
	store := &funcContextStore{
		query: func(ctx context.Context, sparql string) (*dataframe.SolutionMappings, error) {
			return &dataframe.SolutionMappings{
				Rows: []dataframe.Row{litRow("station", "oslo-1")},
				RDFNodeTypes: map[string]dataframe.RDFNodeTypeSet{
					"station": {Literal: true},
				},
			}, nil
		},
	}
	backend := &fakeBackend{
		name: "duckdb",
		caps: prepare.Capabilities{},
		rows: map[string][]dataframe.Row{
			"weather-1": {
				litRow("value", "21.5", "time", "2024-01-01T00:00:00Z"),
				litRow("value", "22.0", "time", "2024-01-01T01:00:00Z"),
			},
		},
	}
	c := newCombiner(store, backend, map[string]string{"weather-1": "duckdb"})

	pat := &algebra.Pattern{
		Kind:           algebra.PatternBGP,
		TriplePatterns: []algebra.TriplePattern{{Subject: algebra.NewVariableTerm(qcontext.NewVariable("station")), Predicate: "https://example.org/name", Object: algebra.NewLiteralTerm(algebra.Literal{Value: "placeholder"})}},
		VQs:            []*algebra.BasicVirtualizedQuery{staticResourceVQ("weather-1", "", "value", "time")},
	}

	sm, err := c.execute(context.Background(), pat, qcontext.Root(), exprrewrite.New(preprocess.NewVariableConstraints()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sm.Rows) != 2 {
		t.Fatalf("expected 2 joined rows, got %d", len(sm.Rows))
	}
	for _, row := range sm.Rows {
		if row["station"].Lexical != "oslo-1" {
			t.Errorf("expected the static column to be attached to every VQ row, got %+v", row)
		}
	}
}

// A VQ whose resource is bound by a variable (not statically known) must
// be resolved from the static rows already bound, and split into one
// backend round trip per distinct resource.
func TestExecuteBGP_DynamicResourceSplitsPerResource(t *testing.T) {
	store := &funcContextStore{
		query: func(ctx context.Context, sparql string) (*dataframe.SolutionMappings, error) {
			return &dataframe.SolutionMappings{
				Rows: []dataframe.Row{
					litRow("resource", "site-a"),
					litRow("resource", "site-b"),
				},
				RDFNodeTypes: map[string]dataframe.RDFNodeTypeSet{"resource": {Literal: true}},
			}, nil
		},
	}
	backend := &fakeBackend{
		name: "duckdb",
		caps: prepare.Capabilities{},
		rows: map[string][]dataframe.Row{
			"site-a": {litRow("value", "1", "time", "t1", "resource", "site-a")},
			"site-b": {litRow("value", "2", "time", "t2", "resource", "site-b")},
		},
	}
	c := newCombiner(store, backend, map[string]string{"site-a": "duckdb", "site-b": "duckdb"})

	bvq := algebra.NewEmptyBasicVirtualizedQuery()
	rv := qcontext.NewVariable("resource")
	bvq.ResourceVariable = &rv
	bvq.ValueVariable = vic("value")
	bvq.TimestampVariable = vic("time")

	pat := &algebra.Pattern{
		Kind:           algebra.PatternBGP,
		TriplePatterns: []algebra.TriplePattern{{Subject: algebra.NewVariableTerm(qcontext.NewVariable("x")), Predicate: "p", Object: algebra.NewVariableTerm(qcontext.NewVariable("resource"))}},
		VQs:            []*algebra.BasicVirtualizedQuery{&bvq},
	}

	sm, err := c.execute(context.Background(), pat, qcontext.Root(), exprrewrite.New(preprocess.NewVariableConstraints()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.queried) != 2 {
		t.Fatalf("expected one backend round trip per distinct resource, got %d", len(backend.queried))
	}
	if len(sm.Rows) != 2 {
		t.Fatalf("expected 2 rows total across both resources, got %d", len(sm.Rows))
	}
}

// tryFoldFilter must push the filter into the backend when it declares
// PushdownValueConditions, and must NOT call the backend at all in a way
// that bypasses residual evaluation when it doesn't.
func TestFilter_FoldsWhenBackendSupportsIt(t *testing.T) {
	store := &funcContextStore{query: func(ctx context.Context, sparql string) (*dataframe.SolutionMappings, error) {
		t.Fatal("context store should not be queried for a fully virtualized, statically-resourced BGP")
		return nil, nil
	}}
	backend := &fakeBackend{
		name: "trino",
		caps: prepare.Capabilities{prepare.PushdownValueConditions: true},
		rows: map[string][]dataframe.Row{
			"sensor-1": {litRow("value", "99", "time", "t1")},
		},
	}
	c := newCombiner(store, backend, map[string]string{"sensor-1": "trino"})

	inner := &algebra.Pattern{Kind: algebra.PatternBGP, VQs: []*algebra.BasicVirtualizedQuery{staticResourceVQ("sensor-1", "", "value", "time")}}
	filterExpr := algebra.Expression{
		Kind:  algebra.ExprGreater,
		Left:  &algebra.Expression{Kind: algebra.ExprVariable, Variable: &qcontext.Variable{Name: "value"}},
		Right: &algebra.Expression{Kind: algebra.ExprLiteral, Literal: &algebra.Literal{Value: "10", Datatype: "http://www.w3.org/2001/XMLSchema#integer"}},
	}
	pat := &algebra.Pattern{Kind: algebra.PatternFilter, FilterExpression: &filterExpr, Inner: inner}

	sm, err := c.execute(context.Background(), pat, qcontext.Root(), exprrewrite.New(preprocess.NewVariableConstraints()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.queried) != 1 {
		t.Fatalf("expected exactly one folded backend call, got %d", len(backend.queried))
	}
	if len(sm.Rows) != 1 {
		t.Fatalf("expected the backend's single pre-filtered row to pass through, got %d", len(sm.Rows))
	}
}

// When the backend does not declare PushdownValueConditions, the filter
// must still be applied correctly, just residually after materializing.
func TestFilter_FallsBackToResidualEvaluation(t *testing.T) {
	store := &funcContextStore{query: func(ctx context.Context, sparql string) (*dataframe.SolutionMappings, error) {
		return oneEmptyRowTable(), nil
	}}
	backend := &fakeBackend{
		name: "postgres",
		caps: prepare.Capabilities{}, // no PushdownValueConditions
		rows: map[string][]dataframe.Row{
			"sensor-1": {
				litRow("value", "5", "time", "t1"),
				litRow("value", "50", "time", "t2"),
			},
		},
	}
	c := newCombiner(store, backend, map[string]string{"sensor-1": "postgres"})

	inner := &algebra.Pattern{Kind: algebra.PatternBGP, VQs: []*algebra.BasicVirtualizedQuery{staticResourceVQ("sensor-1", "", "value", "time")}}
	filterExpr := algebra.Expression{
		Kind:  algebra.ExprGreater,
		Left:  &algebra.Expression{Kind: algebra.ExprVariable, Variable: &qcontext.Variable{Name: "value"}},
		Right: &algebra.Expression{Kind: algebra.ExprLiteral, Literal: &algebra.Literal{Value: "10", Datatype: "http://www.w3.org/2001/XMLSchema#integer"}},
	}
	pat := &algebra.Pattern{Kind: algebra.PatternFilter, FilterExpression: &filterExpr, Inner: inner}

	sm, err := c.execute(context.Background(), pat, qcontext.Root(), exprrewrite.New(preprocess.NewVariableConstraints()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sm.Rows) != 1 {
		t.Fatalf("expected exactly the one row with value > 10 to survive, got %d", len(sm.Rows))
	}
	if sm.Rows[0]["value"].Lexical != "50" {
		t.Errorf("expected the surviving row to have value 50, got %+v", sm.Rows[0])
	}
}

// GROUP BY buckets rows and computes COUNT/AVG per bucket.
func TestGroupAndAggregate(t *testing.T) {
	sm := &dataframe.SolutionMappings{
		Rows: []dataframe.Row{
			litRow("station", "a", "value", "10"),
			litRow("station", "a", "value", "20"),
			litRow("station", "b", "value", "100"),
		},
		RDFNodeTypes: map[string]dataframe.RDFNodeTypeSet{
			"station": {Literal: true},
			"value":   {Literal: true},
		},
	}
	aggs := []algebra.GroupAggregateBinding{
		{Variable: qcontext.NewVariable("cnt"), Aggregate: algebra.AggregateExpression{Op: algebra.AggCount, Expr: &algebra.Expression{Kind: algebra.ExprVariable, Variable: &qcontext.Variable{Name: "value"}}}},
		{Variable: qcontext.NewVariable("avg"), Aggregate: algebra.AggregateExpression{Op: algebra.AggAvg, Expr: &algebra.Expression{Kind: algebra.ExprVariable, Variable: &qcontext.Variable{Name: "value"}}}},
	}

	out, err := groupAndAggregate(sm, []qcontext.Variable{qcontext.NewVariable("station")}, aggs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(out.Rows))
	}
	byStation := map[string]dataframe.Row{}
	for _, row := range out.Rows {
		byStation[row["station"].Lexical] = row
	}
	if byStation["a"]["cnt"].Lexical != "2" {
		t.Errorf("expected station a's count to be 2, got %+v", byStation["a"]["cnt"])
	}
	if byStation["a"]["avg"].Lexical != "15" {
		t.Errorf("expected station a's average to be 15, got %+v", byStation["a"]["avg"])
	}
}

// OPTIONAL (LeftJoin) must keep every left row even when the right side
// has no match, padding the right-only columns as unbound.
func TestLeftJoinTables_UnmatchedLeftRowSurvives(t *testing.T) {
	left := &dataframe.SolutionMappings{
		Rows:         []dataframe.Row{litRow("id", "1"), litRow("id", "2")},
		RDFNodeTypes: map[string]dataframe.RDFNodeTypeSet{"id": {Literal: true}},
	}
	right := &dataframe.SolutionMappings{
		Rows:         []dataframe.Row{litRow("id", "1", "extra", "yes")},
		RDFNodeTypes: map[string]dataframe.RDFNodeTypeSet{"id": {Literal: true}, "extra": {Literal: true}},
	}
	out := leftJoinTables(left, right, nil)
	if len(out.Rows) != 2 {
		t.Fatalf("expected both left rows to survive, got %d", len(out.Rows))
	}
	var sawUnmatched bool
	for _, row := range out.Rows {
		if row["id"].Lexical == "2" {
			sawUnmatched = true
			if row["extra"].IsBound() {
				t.Errorf("expected the unmatched row's 'extra' column to be unbound, got %+v", row["extra"])
			}
		}
	}
	if !sawUnmatched {
		t.Fatal("expected to find the unmatched id=2 row")
	}
}

// MINUS removes every left row matching some right row on shared columns.
func TestMinusTables(t *testing.T) {
	left := &dataframe.SolutionMappings{
		Rows:         []dataframe.Row{litRow("id", "1"), litRow("id", "2")},
		RDFNodeTypes: map[string]dataframe.RDFNodeTypeSet{"id": {Literal: true}},
	}
	right := &dataframe.SolutionMappings{
		Rows:         []dataframe.Row{litRow("id", "2")},
		RDFNodeTypes: map[string]dataframe.RDFNodeTypeSet{"id": {Literal: true}},
	}
	minusTables(left, right)
	if len(left.Rows) != 1 || left.Rows[0]["id"].Lexical != "1" {
		t.Fatalf("expected only id=1 to survive MINUS, got %+v", left.Rows)
	}
}

// FILTER(EXISTS{...}) must keep only outer rows for which the Exists
// sub-pattern produces at least one row agreeing on every shared variable,
// and FILTER(NOT EXISTS{...}) must keep exactly the complement
// (spec.md §8 scenario 6).
func TestFilter_ExistsCorrelatesOnSharedVariable(t *testing.T) {
	var calls int
	store := &funcContextStore{
		query: func(ctx context.Context, sparql string) (*dataframe.SolutionMappings, error) {
			calls++
			if calls == 1 {
				return &dataframe.SolutionMappings{
					Rows: []dataframe.Row{litRow("station", "a"), litRow("station", "b")},
					RDFNodeTypes: map[string]dataframe.RDFNodeTypeSet{
						"station": {Literal: true},
					},
				}, nil
			}
			return &dataframe.SolutionMappings{
				Rows: []dataframe.Row{litRow("station", "a")},
				RDFNodeTypes: map[string]dataframe.RDFNodeTypeSet{
					"station": {Literal: true},
				},
			}, nil
		},
	}
	backend := &fakeBackend{name: "duckdb", caps: prepare.Capabilities{}}
	c := newCombiner(store, backend, map[string]string{})

	outer := &algebra.Pattern{
		Kind:           algebra.PatternBGP,
		TriplePatterns: []algebra.TriplePattern{{Subject: algebra.NewVariableTerm(qcontext.NewVariable("station")), Predicate: "https://example.org/name", Object: algebra.NewVariableTerm(qcontext.NewVariable("name"))}},
	}
	existsPattern := &algebra.Pattern{
		Kind:           algebra.PatternBGP,
		TriplePatterns: []algebra.TriplePattern{{Subject: algebra.NewVariableTerm(qcontext.NewVariable("station")), Predicate: "https://example.org/hasAlarm", Object: algebra.NewVariableTerm(qcontext.NewVariable("alarm"))}},
	}
	filterExpr := algebra.Expression{Kind: algebra.ExprExists, ExistsPattern: existsPattern}
	pat := &algebra.Pattern{Kind: algebra.PatternFilter, FilterExpression: &filterExpr, Inner: outer}

	sm, err := c.execute(context.Background(), pat, qcontext.Root(), exprrewrite.New(preprocess.NewVariableConstraints()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sm.Rows) != 1 || sm.Rows[0]["station"].Lexical != "a" {
		t.Fatalf("expected only station=a to survive EXISTS, got %+v", sm.Rows)
	}

	calls = 0
	notExpr := algebra.Expression{Kind: algebra.ExprNot, Inner: &filterExpr}
	notPat := &algebra.Pattern{Kind: algebra.PatternFilter, FilterExpression: &notExpr, Inner: outer}
	sm, err = c.execute(context.Background(), notPat, qcontext.Root(), exprrewrite.New(preprocess.NewVariableConstraints()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sm.Rows) != 1 || sm.Rows[0]["station"].Lexical != "b" {
		t.Fatalf("expected only station=b to survive NOT EXISTS, got %+v", sm.Rows)
	}
}

// AggCustom must be explicitly rejected, not silently ignored.
func TestAggregate_CustomIsUnsupported(t *testing.T) {
	_, err := aggregate(algebra.AggregateExpression{Op: algebra.AggCustom, CustomIRI: "https://example.org/weirdAgg"}, nil)
	if err == nil {
		t.Fatal("expected an error for a custom aggregate function")
	}
}
