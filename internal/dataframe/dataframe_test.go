package dataframe

import (
	"testing"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/qcontext"
)

func lit(value, datatype string) Value {
	return NewLiteralValue(value, datatype, "")
}

const xsdInt = "http://www.w3.org/2001/XMLSchema#integer"

// SPARQL three-valued AND/OR/NOT: unknown propagates except where the
// other operand alone already decides the result (false absorbs AND,
// true absorbs OR).
func TestTri_ThreeValuedLogic(t *testing.T) {
	if got := TriTrue.And(TriUnknown); got != TriUnknown {
		t.Errorf("true AND unknown = %v, want Unknown", got)
	}
	if got := TriFalse.And(TriUnknown); got != TriFalse {
		t.Errorf("false AND unknown = %v, want False", got)
	}
	if got := TriTrue.Or(TriUnknown); got != TriTrue {
		t.Errorf("true OR unknown = %v, want True", got)
	}
	if got := TriFalse.Or(TriUnknown); got != TriUnknown {
		t.Errorf("false OR unknown = %v, want Unknown", got)
	}
	if got := TriUnknown.Not(); got != TriUnknown {
		t.Errorf("NOT unknown = %v, want Unknown", got)
	}
	if TriUnknown.Bool() {
		t.Error("expected Bool() to treat Unknown as false for FILTER purposes")
	}
}

// SameTermAs is exact term identity: differing datatypes or lexical
// forms never compare equal, even when the numeric value matches.
func TestValue_SameTermAs(t *testing.T) {
	a := lit("1", xsdInt)
	b := lit("1", xsdInt)
	c := lit("1", "http://www.w3.org/2001/XMLSchema#decimal")
	if !a.SameTermAs(b) {
		t.Error("expected identical literals to be sameTerm")
	}
	if a.SameTermAs(c) {
		t.Error("expected differing datatypes to not be sameTerm")
	}
	if a.SameTermAs(Unbound) {
		t.Error("expected a bound value to never be sameTerm with Unbound")
	}
}

// Compare falls back through numeric, then temporal, then lexical
// ordering, and reports not-ok when nothing applies.
func TestValue_Compare(t *testing.T) {
	if cmp, ok := lit("5", xsdInt).Compare(lit("10", xsdInt)); !ok || cmp >= 0 {
		t.Errorf("expected 5 < 10 numerically, got cmp=%d ok=%v", cmp, ok)
	}
	iri := NewIRIValue("https://example.org/a")
	if _, ok := iri.Compare(lit("5", xsdInt)); ok {
		t.Error("expected an IRI vs. numeric literal comparison to be not-ok")
	}
}

func exprVar(name string) algebra.Expression {
	return algebra.Expression{Kind: algebra.ExprVariable, Variable: &qcontext.Variable{Name: name}}
}

func TestEval_Arithmetic(t *testing.T) {
	row := Row{"x": lit("3", xsdInt), "y": lit("4", xsdInt)}
	x, y := exprVar("x"), exprVar("y")
	v, err := Eval(algebra.Expression{Kind: algebra.ExprAdd, Left: &x, Right: &y}, row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Lexical != "7" {
		t.Errorf("expected 3+4=7, got %q", v.Lexical)
	}
}

func TestEval_ExistsIsRejected(t *testing.T) {
	_, err := Eval(algebra.Expression{Kind: algebra.ExprExists, ExistsPattern: &algebra.Pattern{Kind: algebra.PatternBGP}}, Row{})
	if err == nil {
		t.Fatal("expected dataframe.Eval to reject a bare Exists expression")
	}
}

func TestEval_DivisionByZero(t *testing.T) {
	row := Row{"x": lit("1", xsdInt), "y": lit("0", xsdInt)}
	x, y := exprVar("x"), exprVar("y")
	if _, err := Eval(algebra.Expression{Kind: algebra.ExprDivide, Left: &x, Right: &y}, row); err == nil {
		t.Fatal("expected an error dividing by zero")
	}
}

// InnerJoin must match rows on every shared column and merge in the
// other table's non-shared columns.
func TestSolutionMappings_InnerJoin(t *testing.T) {
	left := &SolutionMappings{
		Rows:         []Row{{"id": lit("1", xsdInt)}, {"id": lit("2", xsdInt)}},
		RDFNodeTypes: map[string]RDFNodeTypeSet{"id": {Literal: true}},
	}
	right := &SolutionMappings{
		Rows:         []Row{{"id": lit("1", xsdInt), "value": lit("99", xsdInt)}},
		RDFNodeTypes: map[string]RDFNodeTypeSet{"id": {Literal: true}, "value": {Literal: true}},
	}
	left.InnerJoin(right)
	if len(left.Rows) != 1 {
		t.Fatalf("expected only the matching id=1 row to survive, got %d rows", len(left.Rows))
	}
	if left.Rows[0]["value"].Lexical != "99" {
		t.Errorf("expected the joined value column to be attached, got %+v", left.Rows[0])
	}
}

// JoinAttach with a zero-row other must keep every left row, padding its
// columns as unbound instead of discarding the left rows entirely.
func TestSolutionMappings_JoinAttach_EmptyOtherPadsUnbound(t *testing.T) {
	left := &SolutionMappings{
		Rows:         []Row{{"id": lit("1", xsdInt)}},
		RDFNodeTypes: map[string]RDFNodeTypeSet{"id": {Literal: true}},
	}
	empty := &SolutionMappings{RDFNodeTypes: map[string]RDFNodeTypeSet{"value": {Literal: true}}}
	left.JoinAttach(empty)
	if len(left.Rows) != 1 {
		t.Fatalf("expected the left row to survive attaching an empty table, got %d", len(left.Rows))
	}
	if left.Rows[0]["value"].IsBound() {
		t.Error("expected the attached empty column to be unbound")
	}
}

// Sort must order ascending by default and push unbound values last.
func TestSolutionMappings_Sort(t *testing.T) {
	sm := &SolutionMappings{
		Rows: []Row{
			{"v": lit("3", xsdInt)},
			{"v": Unbound},
			{"v": lit("1", xsdInt)},
		},
	}
	sm.Sort([]string{"v"}, nil)
	if sm.Rows[0]["v"].Lexical != "1" || sm.Rows[1]["v"].Lexical != "3" {
		t.Fatalf("expected ascending numeric order with unbound last, got %+v", sm.Rows)
	}
	if sm.Rows[2]["v"].IsBound() {
		t.Error("expected the unbound row to sort last")
	}
}

// Slice must cap to the offset/limit window, clamping to the table height.
func TestSolutionMappings_Slice(t *testing.T) {
	sm := &SolutionMappings{Rows: []Row{{"v": lit("1", xsdInt)}, {"v": lit("2", xsdInt)}, {"v": lit("3", xsdInt)}}}
	sm.Slice(1, 1)
	if len(sm.Rows) != 1 || sm.Rows[0]["v"].Lexical != "2" {
		t.Fatalf("expected exactly the middle row, got %+v", sm.Rows)
	}
}

