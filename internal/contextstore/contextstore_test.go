package contextstore

import (
	"context"
	"strings"
	"testing"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/dataframe"
	"github.com/chrontext/chrontext/internal/qcontext"
)

// MemoryContextStore must ignore the query text and return a clone of
// the seeded mappings, not the original (callers must be free to mutate
// what they get back without corrupting the fixture).
func TestMemoryContextStore_Query_ReturnsClonedFixture(t *testing.T) {
	seed := &dataframe.SolutionMappings{
		Rows:         []dataframe.Row{{"station": dataframe.NewLiteralValue("a", "http://www.w3.org/2001/XMLSchema#string", "")}},
		RDFNodeTypes: map[string]dataframe.RDFNodeTypeSet{"station": {Literal: true}},
	}
	store := NewMemoryContextStore(seed)

	sm, err := store.Query(context.Background(), "SELECT * WHERE { ?station a ?x }")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sm.Rows) != 1 || sm.Rows[0]["station"].Lexical != "a" {
		t.Fatalf("expected the seeded row regardless of query text, got %+v", sm.Rows)
	}

	sm.Rows[0]["station"] = dataframe.NewLiteralValue("mutated", "http://www.w3.org/2001/XMLSchema#string", "")
	again, err := store.Query(context.Background(), "irrelevant")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Rows[0]["station"].Lexical != "a" {
		t.Error("expected mutating a returned clone to not affect the seeded fixture")
	}
}

// Query must respect context cancellation instead of ignoring it along
// with the query text.
func TestMemoryContextStore_Query_RespectsCancellation(t *testing.T) {
	store := NewMemoryContextStore(dataframe.NewSolutionMappings(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Query(ctx, "SELECT * WHERE { ?s ?p ?o }"); err == nil {
		t.Fatal("expected a cancelled context to produce an error")
	}
}

// ToSPARQL renders a BGP/Filter/Extend pattern into SELECT * WHERE text
// with the triple pattern, FILTER, and BIND clauses all present.
func TestToSPARQL_RendersBGPFilterAndExtend(t *testing.T) {
	station := qcontext.NewVariable("station")
	name := qcontext.NewVariable("name")
	bgp := &algebra.Pattern{
		Kind: algebra.PatternBGP,
		TriplePatterns: []algebra.TriplePattern{
			{Subject: algebra.NewVariableTerm(station), Predicate: "https://example.org/hasName", Object: algebra.NewVariableTerm(name)},
		},
	}
	nameExpr := algebra.Expression{Kind: algebra.ExprVariable, Variable: &name}
	filterExpr := algebra.Expression{Kind: algebra.ExprBound, Inner: &nameExpr}
	filtered := &algebra.Pattern{Kind: algebra.PatternFilter, Inner: bgp, FilterExpression: &filterExpr}

	upper := qcontext.NewVariable("upper")
	extended := &algebra.Pattern{
		Kind:             algebra.PatternExtend,
		Inner:            filtered,
		ExtendVariable:   &upper,
		ExtendExpression: &nameExpr,
	}

	out := ToSPARQL(extended)
	if !strings.HasPrefix(out, "SELECT * WHERE {\n") {
		t.Fatalf("expected a SELECT * WHERE preamble, got %q", out)
	}
	if !strings.Contains(out, "?station <https://example.org/hasName> ?name .") {
		t.Errorf("expected the triple pattern rendered with angle-bracketed predicate, got %q", out)
	}
	if !strings.Contains(out, "FILTER(BOUND(?name))") {
		t.Errorf("expected a FILTER clause for the Bound expression, got %q", out)
	}
	if !strings.Contains(out, "BIND(?name AS ?upper)") {
		t.Errorf("expected a BIND clause for the Extend, got %q", out)
	}
	if !strings.HasSuffix(out, "}") {
		t.Errorf("expected the query to close with a trailing brace, got %q", out)
	}
}

// ToSPARQL must render Union branches bracketed and joined by UNION.
func TestToSPARQL_RendersUnion(t *testing.T) {
	s := qcontext.NewVariable("s")
	left := &algebra.Pattern{Kind: algebra.PatternBGP, TriplePatterns: []algebra.TriplePattern{
		{Subject: algebra.NewVariableTerm(s), Predicate: "https://example.org/a", Object: algebra.NewIRITerm("https://example.org/x")},
	}}
	right := &algebra.Pattern{Kind: algebra.PatternBGP, TriplePatterns: []algebra.TriplePattern{
		{Subject: algebra.NewVariableTerm(s), Predicate: "https://example.org/b", Object: algebra.NewIRITerm("https://example.org/y")},
	}}
	union := &algebra.Pattern{Kind: algebra.PatternUnion, Left: left, Right: right}

	out := ToSPARQL(union)
	if !strings.Contains(out, "} UNION {") {
		t.Errorf("expected a UNION join between the two branches, got %q", out)
	}
	if !strings.Contains(out, "<https://example.org/a>") || !strings.Contains(out, "<https://example.org/b>") {
		t.Errorf("expected both branches' predicates present, got %q", out)
	}
}

// termSPARQL (exercised via writePattern) must render literals with
// their datatype suffix and blank nodes with the _: prefix.
func TestToSPARQL_RendersLiteralDatatypeAndBlankNode(t *testing.T) {
	s := qcontext.NewVariable("s")
	pat := &algebra.Pattern{
		Kind: algebra.PatternBGP,
		TriplePatterns: []algebra.TriplePattern{
			{Subject: algebra.NewVariableTerm(s), Predicate: "https://example.org/count", Object: algebra.NewLiteralTerm(algebra.Literal{Value: "3", Datatype: "http://www.w3.org/2001/XMLSchema#integer"})},
			{Subject: algebra.NewBlankTerm("b0"), Predicate: "https://example.org/knows", Object: algebra.NewVariableTerm(s)},
		},
	}
	out := ToSPARQL(pat)
	if !strings.Contains(out, `"3"^^<http://www.w3.org/2001/XMLSchema#integer>`) {
		t.Errorf("expected a datatype-suffixed literal, got %q", out)
	}
	if !strings.Contains(out, "_:b0 <https://example.org/knows> ?s .") {
		t.Errorf("expected a blank-node subject rendered with the _: prefix, got %q", out)
	}
}

// exprSPARQL must render comparison and arithmetic operators with their
// SPARQL infix syntax.
func TestExprSPARQL_ComparisonAndArithmetic(t *testing.T) {
	x := algebra.Expression{Kind: algebra.ExprVariable, Variable: &qcontext.Variable{Name: "x"}}
	y := algebra.Expression{Kind: algebra.ExprVariable, Variable: &qcontext.Variable{Name: "y"}}
	greater := algebra.Expression{Kind: algebra.ExprGreater, Left: &x, Right: &y}
	if got := exprSPARQL(greater); got != "(?x > ?y)" {
		t.Errorf("expected %q, got %q", "(?x > ?y)", got)
	}
	sum := algebra.Expression{Kind: algebra.ExprAdd, Left: &x, Right: &y}
	notExpr := algebra.Expression{Kind: algebra.ExprNot, Inner: &sum}
	if got := exprSPARQL(notExpr); got != "!((?x + ?y))" {
		t.Errorf("expected %q, got %q", "!((?x + ?y))", got)
	}
}
