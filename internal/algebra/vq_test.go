package algebra

import (
	"testing"

	"github.com/chrontext/chrontext/internal/qcontext"
)

func vic(name string) *qcontext.VariableInContext {
	v := qcontext.NewVariableInContext(qcontext.NewVariable(name), qcontext.Root())
	return &v
}

func basicVQ(resource, value, timestamp string) BasicVirtualizedQuery {
	b := NewEmptyBasicVirtualizedQuery()
	r := resource
	b.Resource = &r
	b.ValueVariable = vic(value)
	b.TimestampVariable = vic(timestamp)
	return b
}

// A Filtered/Sliced/ExpressionAs wrapper chain must still surface the
// leaf Basic's identifiers and value/timestamp variables — wrapping a VQ
// must never hide what it wraps.
func TestVirtualizedQuery_WrappersForwardToLeaf(t *testing.T) {
	b := basicVQ("weather-1", "value", "time")
	b.IDs = []string{"sensor-a", "sensor-b"}
	vq := NewBasic(b)
	wrapped := NewSliced(NewExpressionAs(NewFiltered(vq, Expression{Kind: ExprBound}), qcontext.NewVariable("doubled"), Expression{Kind: ExprVariable, Variable: &qcontext.Variable{Name: "value"}}), 10)

	if !wrapped.HasIdentifiers() {
		t.Error("expected HasIdentifiers to forward through Sliced/ExpressionAs/Filtered to the leaf's IDs")
	}
	if got := wrapped.GetIDs(); len(got) != 2 || got[0] != "sensor-a" {
		t.Errorf("expected the leaf's IDs to surface through every wrapper, got %v", got)
	}
	tv := wrapped.GetTimestampVariables()
	if len(tv) != 1 || tv[0].Variable.Name != "time" {
		t.Errorf("expected the leaf's timestamp variable to surface, got %+v", tv)
	}
	vv := wrapped.GetValueVariables()
	if len(vv) != 1 || vv[0].Variable.Name != "value" {
		t.Errorf("expected the leaf's value variable to surface, got %+v", vv)
	}
}

// ExpectedColumns on a bare Basic VQ must carry exactly its value and
// timestamp columns (no identifier column, since none was set).
func TestVirtualizedQuery_ExpectedColumns_Basic(t *testing.T) {
	vq := NewBasic(basicVQ("weather-1", "value", "time"))
	cols := vq.ExpectedColumns()
	if len(cols) != 2 {
		t.Fatalf("expected exactly 2 expected columns, got %d (%v)", len(cols), cols)
	}
	if _, ok := cols["value"]; !ok {
		t.Error("expected 'value' in ExpectedColumns")
	}
	if _, ok := cols["time"]; !ok {
		t.Error("expected 'time' in ExpectedColumns")
	}
}

// Validate must report every column missing from the supplied result and
// every extra column the result carries beyond what's expected.
func TestVirtualizedQuery_Validate_ReportsMismatch(t *testing.T) {
	vq := NewBasic(basicVQ("weather-1", "value", "time"))
	err := vq.Validate([]string{"value", "unexpected"})
	if err == nil {
		t.Fatal("expected Validate to reject a column mismatch")
	}
	ve, ok := err.(*TimeseriesValidationError)
	if !ok {
		t.Fatalf("expected a *TimeseriesValidationError, got %T", err)
	}
	if len(ve.MissingColumns) != 1 || ve.MissingColumns[0] != "time" {
		t.Errorf("expected 'time' reported missing, got %v", ve.MissingColumns)
	}
	if len(ve.ExtraColumns) != 1 || ve.ExtraColumns[0] != "unexpected" {
		t.Errorf("expected 'unexpected' reported extra, got %v", ve.ExtraColumns)
	}
	if err := vq.Validate([]string{"value", "time"}); err != nil {
		t.Errorf("expected an exact column match to validate cleanly, got %v", err)
	}
}

// InnerSynchronized must union the value variables and resource
// variables of every branch it wraps.
func TestVirtualizedQuery_InnerSynchronized_UnionsBranches(t *testing.T) {
	left := NewBasic(basicVQ("a", "valA", "timeA"))
	rb := basicVQ("b", "valB", "timeB")
	rv := qcontext.NewVariable("resourceVar")
	rb.ResourceVariable = &rv
	right := NewBasic(rb)
	sync := NewInnerSynchronized([]*VirtualizedQuery{left, right}, []Synchronizer{{Kind: SynchronizerIdentity, Column: "time"}})

	vv := sync.GetValueVariables()
	if len(vv) != 2 {
		t.Fatalf("expected both branches' value variables, got %v", vv)
	}
	resVars := sync.GetResourceVariables()
	if len(resVars) != 1 || resVars[0].Name != "resourceVar" {
		t.Errorf("expected only the right branch's resource variable, got %v", resVars)
	}
}

// A GroupedBasic VQ's ExpectedColumns drops the identifier column (it's
// folded into the group-index mapping instead) and adds the synthetic
// group column.
func TestVirtualizedQuery_GroupedBasic_DropsIdentifierAddsGroupColumn(t *testing.T) {
	b := basicVQ("weather-1", "value", "time")
	idVar := qcontext.NewVariable("sensor")
	b.IdentifierVariable = &idVar
	mapping := GroupIndexMapping{
		IdentifierColumn: "sensor", GroupColumn: "grp",
		Rows: []GroupIndexRow{{Identifier: "sensor-a", GroupIndex: 0}, {Identifier: "sensor-b", GroupIndex: 1}},
	}
	vq := NewGroupedBasic(b, mapping, "grp")
	if vq.GetGroupByColumn() != "grp" {
		t.Errorf("expected the group-by column to surface, got %q", vq.GetGroupByColumn())
	}
	if m := vq.GetGroupByMapping(); m == nil || m.Height() != 2 {
		t.Fatalf("expected the group-index mapping to surface with height 2, got %+v", m)
	}
	cols := vq.ExpectedColumns()
	if _, ok := cols["sensor"]; ok {
		t.Error("expected the identifier column to be dropped from a GroupedBasic's expected columns")
	}
	if _, ok := cols["grp"]; !ok {
		t.Error("expected the synthetic group column to be present")
	}
}
