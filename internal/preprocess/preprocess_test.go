package preprocess

import (
	"testing"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/qcontext"
)

// Two triples sharing the same blank node id must be renamed to the
// same fresh variable, and distinct blank ids must get distinct names.
func TestPreprocessor_RenamesBlankNodesConsistently(t *testing.T) {
	p := NewPreprocessor()
	pat := &algebra.Pattern{
		Kind: algebra.PatternBGP,
		TriplePatterns: []algebra.TriplePattern{
			{Subject: algebra.NewBlankTerm("b0"), Predicate: "https://example.org/p1", Object: algebra.NewBlankTerm("b1")},
			{Subject: algebra.NewBlankTerm("b0"), Predicate: "https://example.org/p2", Object: algebra.NewIRITerm("https://example.org/x")},
		},
	}
	renamed, _, err := p.Run(pat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := renamed.TriplePatterns[0].Subject
	second := renamed.TriplePatterns[1].Subject
	if !first.IsVariable() || !second.IsVariable() {
		t.Fatal("expected blank nodes to be renamed to variables")
	}
	if first.Variable.Name != second.Variable.Name {
		t.Errorf("expected the same blank id to rename to the same variable, got %q vs %q", first.Variable.Name, second.Variable.Name)
	}
	otherBlank := renamed.TriplePatterns[0].Object
	if otherBlank.Variable.Name == first.Variable.Name {
		t.Error("expected a distinct blank id to rename to a distinct variable")
	}
}

// A triple using hasDataPoint marks its object variable External; since
// hasDataPoint is not a first-level predicate, its subject is marked
// External too.
func TestPreprocessor_InfersExternalConstraintFromVirtualPredicate(t *testing.T) {
	p := NewPreprocessor()
	sVar := qcontext.NewVariable("ts")
	oVar := qcontext.NewVariable("val")
	pat := &algebra.Pattern{
		Kind: algebra.PatternBGP,
		TriplePatterns: []algebra.TriplePattern{
			{Subject: algebra.NewVariableTerm(sVar), Predicate: PredHasDataPoint, Object: algebra.NewVariableTerm(oVar)},
		},
	}
	_, constraints, err := p.Run(pat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !constraints.IsExternalAt(oVar, qcontext.Root()) {
		t.Error("expected the hasDataPoint object variable to be marked External")
	}
	if !constraints.IsExternalAt(sVar, qcontext.Root()) {
		t.Error("expected the hasDataPoint subject variable to be marked External (not first-level)")
	}
}

// hasTimeseries is first-level: its subject stays context-store-bound
// (not External), only its object gets the External constraint.
func TestPreprocessor_FirstLevelPredicateLeavesSubjectUnconstrained(t *testing.T) {
	p := NewPreprocessor()
	sVar := qcontext.NewVariable("entity")
	oVar := qcontext.NewVariable("ts")
	pat := &algebra.Pattern{
		Kind: algebra.PatternBGP,
		TriplePatterns: []algebra.TriplePattern{
			{Subject: algebra.NewVariableTerm(sVar), Predicate: PredHasTimeseries, Object: algebra.NewVariableTerm(oVar)},
		},
	}
	_, constraints, err := p.Run(pat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if constraints.IsExternalAt(sVar, qcontext.Root()) {
		t.Error("expected hasTimeseries's subject to remain unconstrained (first-level predicate)")
	}
	if !constraints.IsExternalAt(oVar, qcontext.Root()) {
		t.Error("expected hasTimeseries's object to be marked External")
	}
}

// A regular, non-virtualization predicate must not constrain either side.
func TestPreprocessor_OrdinaryPredicateInfersNoConstraint(t *testing.T) {
	p := NewPreprocessor()
	sVar := qcontext.NewVariable("s")
	oVar := qcontext.NewVariable("o")
	pat := &algebra.Pattern{
		Kind: algebra.PatternBGP,
		TriplePatterns: []algebra.TriplePattern{
			{Subject: algebra.NewVariableTerm(sVar), Predicate: "https://example.org/plainPredicate", Object: algebra.NewVariableTerm(oVar)},
		},
	}
	_, constraints, err := p.Run(pat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if constraints.IsExternalAt(sVar, qcontext.Root()) || constraints.IsExternalAt(oVar, qcontext.Root()) {
		t.Error("expected an ordinary predicate to leave both sides unconstrained")
	}
}
