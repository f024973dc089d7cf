// Package algebra's vq.go defines the VirtualizedQuery sum type: the
// pushed-down sub-query tree the preparer builds and the combiner
// executes against a virtualized database.
//
// Grounded on _examples/original_source/lib/virtualized_query/src/lib.rs.
package algebra

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chrontext/chrontext/internal/qcontext"
)

// VQKind discriminates the VirtualizedQuery sum type.
type VQKind int

const (
	VQBasic VQKind = iota
	VQGroupedBasic
	VQFiltered
	VQInnerSynchronized
	VQExpressionAs
	VQGrouped
	VQSliced
)

// SynchronizerKind identifies the join key a set of InnerSynchronized
// VQs are aligned on. Identity is the only variant the original
// implements; the extension point is documented, not expanded.
type SynchronizerKind int

const (
	SynchronizerIdentity SynchronizerKind = iota
)

// Synchronizer names the column two or more VQs under InnerSynchronized
// are kept row-aligned by.
type Synchronizer struct {
	Kind   SynchronizerKind
	Column string
}

// BasicVirtualizedQuery is a single leaf virtualized query: fetch one
// resource's data points, optionally restricted to a set of ids.
type BasicVirtualizedQuery struct {
	IdentifierVariable *qcontext.Variable
	TimeseriesVariable *qcontext.VariableInContext
	DataPointVariable  *qcontext.VariableInContext
	ValueVariable      *qcontext.VariableInContext
	ResourceVariable   *qcontext.Variable
	Resource           *string
	TimestampVariable  *qcontext.VariableInContext
	IDs                []string
}

// NewEmptyBasicVirtualizedQuery returns a BasicVirtualizedQuery with
// every field unset, ready to be filled in incrementally.
func NewEmptyBasicVirtualizedQuery() BasicVirtualizedQuery {
	return BasicVirtualizedQuery{}
}

// expectedColumns is the set of dataframe column names a result for this
// basic VQ must carry exactly.
func (b BasicVirtualizedQuery) expectedColumns() map[string]struct{} {
	cols := map[string]struct{}{}
	if b.IdentifierVariable != nil {
		cols[b.IdentifierVariable.Name] = struct{}{}
	}
	if b.ValueVariable != nil {
		cols[b.ValueVariable.Variable.Name] = struct{}{}
	}
	if b.TimestampVariable != nil {
		cols[b.TimestampVariable.Variable.Name] = struct{}{}
	}
	return cols
}

// TimeseriesValidationError reports a mismatch between a VQ's expected
// columns and the columns a backend result actually carried.
type TimeseriesValidationError struct {
	MissingColumns []string
	ExtraColumns   []string
}

func (e *TimeseriesValidationError) Error() string {
	return fmt.Sprintf("Missing columns: %s, Extra columns: %s",
		strings.Join(e.MissingColumns, ","), strings.Join(e.ExtraColumns, ","))
}

// GroupedVirtualizedQuery wraps a VQ with a GROUP BY / aggregate list
// pushed down to the backend.
type GroupedVirtualizedQuery struct {
	Context      qcontext.Context
	VQ           *VirtualizedQuery
	By           []qcontext.Variable
	Aggregations []GroupAggregateBinding
}

// VirtualizedQuery is the pushed-down sub-query sum type. Exactly one
// field group is populated according to Kind.
type VirtualizedQuery struct {
	Kind VQKind

	// Basic
	Basic *BasicVirtualizedQuery

	// GroupedBasic: a basic VQ plus an identifier -> group-index mapping
	// dataframe (folds many same-group-by BVQs into one backend round trip)
	GroupedBasicInner  *BasicVirtualizedQuery
	GroupedBasicMap    GroupIndexMapping
	GroupedBasicColumn string

	// Filtered
	FilteredInner      *VirtualizedQuery
	FilteredExpression *Expression

	// InnerSynchronized
	SynchronizedInners       []*VirtualizedQuery
	SynchronizedSynchronizers []Synchronizer

	// ExpressionAs: bind Expression as Variable over Inner's result columns
	ExpressionAsInner      *VirtualizedQuery
	ExpressionAsVariable   qcontext.Variable
	ExpressionAsExpression *Expression

	// Grouped
	Grouped *GroupedVirtualizedQuery

	// Sliced (original calls this Limited)
	SlicedInner *VirtualizedQuery
	SlicedLimit uint64
}

// GroupIndexMapping is a minimal two-column dataframe stand-in: an
// identifier column paired with the synthetic group-index column a
// GroupedBasic VQ groups on. Grounded on SPEC_FULL.md §3's
// "GroupedBasic grouping-column folding" feature.
type GroupIndexMapping struct {
	IdentifierColumn string
	GroupColumn      string
	Rows             []GroupIndexRow
}

type GroupIndexRow struct {
	Identifier string
	GroupIndex int
}

func (m GroupIndexMapping) Height() int { return len(m.Rows) }

// NewBasic wraps a leaf basic virtualized query.
func NewBasic(b BasicVirtualizedQuery) *VirtualizedQuery {
	return &VirtualizedQuery{Kind: VQBasic, Basic: &b}
}

// NewGroupedBasic folds many same-group-by basic VQs into one, backed by
// an identifier->group-index mapping instead of one round trip per id.
func NewGroupedBasic(b BasicVirtualizedQuery, mapping GroupIndexMapping, column string) *VirtualizedQuery {
	return &VirtualizedQuery{Kind: VQGroupedBasic, GroupedBasicInner: &b, GroupedBasicMap: mapping, GroupedBasicColumn: column}
}

// NewFiltered restricts inner's result rows by expression.
func NewFiltered(inner *VirtualizedQuery, expr Expression) *VirtualizedQuery {
	return &VirtualizedQuery{Kind: VQFiltered, FilteredInner: inner, FilteredExpression: &expr}
}

// NewInnerSynchronized aligns several VQs on shared synchronizer columns.
func NewInnerSynchronized(inners []*VirtualizedQuery, synchronizers []Synchronizer) *VirtualizedQuery {
	return &VirtualizedQuery{Kind: VQInnerSynchronized, SynchronizedInners: inners, SynchronizedSynchronizers: synchronizers}
}

// NewExpressionAs binds expr as variable over inner's result dataframe.
func NewExpressionAs(inner *VirtualizedQuery, v qcontext.Variable, expr Expression) *VirtualizedQuery {
	return &VirtualizedQuery{Kind: VQExpressionAs, ExpressionAsInner: inner, ExpressionAsVariable: v, ExpressionAsExpression: &expr}
}

// NewGrouped pushes a GROUP BY / aggregate list down onto a VQ.
func NewGrouped(g GroupedVirtualizedQuery) *VirtualizedQuery {
	return &VirtualizedQuery{Kind: VQGrouped, Grouped: &g}
}

// NewSliced caps inner's result to the first limit rows.
func NewSliced(inner *VirtualizedQuery, limit uint64) *VirtualizedQuery {
	return &VirtualizedQuery{Kind: VQSliced, SlicedInner: inner, SlicedLimit: limit}
}

// HasIdentifiers reports whether this VQ (or any VQ it wraps) was
// narrowed to a known, non-empty set of identifiers.
func (vq *VirtualizedQuery) HasIdentifiers() bool {
	switch vq.Kind {
	case VQBasic:
		return len(vq.Basic.IDs) > 0
	case VQGroupedBasic:
		return vq.GroupedBasicMap.Height() > 0
	case VQFiltered:
		return vq.FilteredInner.HasIdentifiers()
	case VQInnerSynchronized:
		for _, inner := range vq.SynchronizedInners {
			if inner.HasIdentifiers() {
				return true
			}
		}
		return false
	case VQExpressionAs:
		return vq.ExpressionAsInner.HasIdentifiers()
	case VQGrouped:
		return vq.Grouped.VQ.HasIdentifiers()
	case VQSliced:
		return vq.SlicedInner.HasIdentifiers()
	}
	return false
}

// Validate reports whether columns (a backend result's column names)
// matches this VQ's ExpectedColumns exactly.
func (vq *VirtualizedQuery) Validate(columns []string) error {
	expected := vq.ExpectedColumns()
	have := map[string]struct{}{}
	for _, c := range columns {
		have[c] = struct{}{}
	}
	if setsEqual(expected, have) {
		return nil
	}
	return &TimeseriesValidationError{
		MissingColumns: setDifference(expected, have),
		ExtraColumns:   setDifference(have, expected),
	}
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func setDifference(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// ExpectedColumns is the set of dataframe columns a result for this VQ
// must carry exactly.
func (vq *VirtualizedQuery) ExpectedColumns() map[string]struct{} {
	switch vq.Kind {
	case VQBasic:
		return vq.Basic.expectedColumns()
	case VQFiltered:
		return vq.FilteredInner.ExpectedColumns()
	case VQInnerSynchronized:
		out := map[string]struct{}{}
		for _, inner := range vq.SynchronizedInners {
			for c := range inner.ExpectedColumns() {
				out[c] = struct{}{}
			}
		}
		return out
	case VQGrouped:
		out := map[string]struct{}{}
		for _, agg := range vq.Grouped.Aggregations {
			out[agg.Variable.Name] = struct{}{}
		}
		tsfuncs := vq.Grouped.VQ.GetTimeseriesFunctions(vq.Grouped.Context)
		for _, b := range vq.Grouped.By {
			for _, tf := range tsfuncs {
				if b.Name == tf.Variable.Name {
					out[tf.Variable.Name] = struct{}{}
					break
				}
			}
		}
		if col := vq.GetGroupByColumn(); col != "" {
			out[col] = struct{}{}
		}
		return out
	case VQGroupedBasic:
		out := vq.GroupedBasicInner.expectedColumns()
		out[vq.GroupedBasicColumn] = struct{}{}
		if vq.GroupedBasicInner.IdentifierVariable != nil {
			delete(out, vq.GroupedBasicInner.IdentifierVariable.Name)
		}
		return out
	case VQExpressionAs:
		return vq.ExpressionAsInner.ExpectedColumns()
	case VQSliced:
		return vq.SlicedInner.ExpectedColumns()
	}
	return nil
}

// HasEquivalentValueVariable reports whether this VQ exposes a value
// variable equivalent to variable at ctx.
func (vq *VirtualizedQuery) HasEquivalentValueVariable(variable qcontext.Variable, ctx qcontext.Context) bool {
	for _, vv := range vq.GetValueVariables() {
		if vv.Equivalent(variable, ctx) {
			return true
		}
	}
	return false
}

// GetIDs collects the identifier restriction across every Basic/GroupedBasic
// leaf reachable from vq.
func (vq *VirtualizedQuery) GetIDs() []string {
	switch vq.Kind {
	case VQBasic:
		return vq.Basic.IDs
	case VQGroupedBasic:
		return vq.GroupedBasicInner.IDs
	case VQFiltered:
		return vq.FilteredInner.GetIDs()
	case VQInnerSynchronized:
		var out []string
		for _, inner := range vq.SynchronizedInners {
			out = append(out, inner.GetIDs()...)
		}
		return out
	case VQGrouped:
		return vq.Grouped.VQ.GetIDs()
	case VQExpressionAs:
		return vq.ExpressionAsInner.GetIDs()
	case VQSliced:
		return vq.SlicedInner.GetIDs()
	}
	return nil
}

// GetValueVariables collects the value-column variables reachable from vq.
func (vq *VirtualizedQuery) GetValueVariables() []qcontext.VariableInContext {
	switch vq.Kind {
	case VQBasic:
		if vq.Basic.ValueVariable != nil {
			return []qcontext.VariableInContext{*vq.Basic.ValueVariable}
		}
		return nil
	case VQGroupedBasic:
		if vq.GroupedBasicInner.ValueVariable != nil {
			return []qcontext.VariableInContext{*vq.GroupedBasicInner.ValueVariable}
		}
		return nil
	case VQFiltered:
		return vq.FilteredInner.GetValueVariables()
	case VQInnerSynchronized:
		var out []qcontext.VariableInContext
		for _, inner := range vq.SynchronizedInners {
			out = append(out, inner.GetValueVariables()...)
		}
		return out
	case VQGrouped:
		return vq.Grouped.VQ.GetValueVariables()
	case VQExpressionAs:
		return vq.ExpressionAsInner.GetValueVariables()
	case VQSliced:
		return vq.SlicedInner.GetValueVariables()
	}
	return nil
}

// GetIdentifierVariables collects the identifier-column variables
// reachable from vq.
func (vq *VirtualizedQuery) GetIdentifierVariables() []qcontext.Variable {
	switch vq.Kind {
	case VQBasic:
		if vq.Basic.IdentifierVariable != nil {
			return []qcontext.Variable{*vq.Basic.IdentifierVariable}
		}
		return nil
	case VQGroupedBasic:
		if vq.GroupedBasicInner.IdentifierVariable != nil {
			return []qcontext.Variable{*vq.GroupedBasicInner.IdentifierVariable}
		}
		return nil
	case VQFiltered:
		return vq.FilteredInner.GetIdentifierVariables()
	case VQInnerSynchronized:
		var out []qcontext.Variable
		for _, inner := range vq.SynchronizedInners {
			out = append(out, inner.GetIdentifierVariables()...)
		}
		return out
	case VQGrouped:
		return vq.Grouped.VQ.GetIdentifierVariables()
	case VQExpressionAs:
		return vq.ExpressionAsInner.GetIdentifierVariables()
	case VQSliced:
		return vq.SlicedInner.GetIdentifierVariables()
	}
	return nil
}

// GetResourceVariables collects the resource-column variables reachable
// from vq.
func (vq *VirtualizedQuery) GetResourceVariables() []qcontext.Variable {
	switch vq.Kind {
	case VQBasic:
		if vq.Basic.ResourceVariable != nil {
			return []qcontext.Variable{*vq.Basic.ResourceVariable}
		}
		return nil
	case VQGroupedBasic:
		if vq.GroupedBasicInner.ResourceVariable != nil {
			return []qcontext.Variable{*vq.GroupedBasicInner.ResourceVariable}
		}
		return nil
	case VQFiltered:
		return vq.FilteredInner.GetResourceVariables()
	case VQInnerSynchronized:
		var out []qcontext.Variable
		for _, inner := range vq.SynchronizedInners {
			out = append(out, inner.GetResourceVariables()...)
		}
		return out
	case VQGrouped:
		return vq.Grouped.VQ.GetResourceVariables()
	case VQExpressionAs:
		return vq.ExpressionAsInner.GetResourceVariables()
	case VQSliced:
		return vq.SlicedInner.GetResourceVariables()
	}
	return nil
}

// HasEquivalentTimestampVariable reports whether this VQ exposes a
// timestamp variable equivalent to variable at ctx.
func (vq *VirtualizedQuery) HasEquivalentTimestampVariable(variable qcontext.Variable, ctx qcontext.Context) bool {
	for _, ts := range vq.GetTimestampVariables() {
		if ts.Equivalent(variable, ctx) {
			return true
		}
	}
	return false
}

// GetTimestampVariables collects the timestamp-column variables
// reachable from vq.
func (vq *VirtualizedQuery) GetTimestampVariables() []qcontext.VariableInContext {
	switch vq.Kind {
	case VQBasic:
		if vq.Basic.TimestampVariable != nil {
			return []qcontext.VariableInContext{*vq.Basic.TimestampVariable}
		}
		return nil
	case VQGroupedBasic:
		if vq.GroupedBasicInner.TimestampVariable != nil {
			return []qcontext.VariableInContext{*vq.GroupedBasicInner.TimestampVariable}
		}
		return nil
	case VQFiltered:
		return vq.FilteredInner.GetTimestampVariables()
	case VQInnerSynchronized:
		var out []qcontext.VariableInContext
		for _, inner := range vq.SynchronizedInners {
			out = append(out, inner.GetTimestampVariables()...)
		}
		return out
	case VQGrouped:
		return vq.Grouped.VQ.GetTimestampVariables()
	case VQExpressionAs:
		return vq.ExpressionAsInner.GetTimestampVariables()
	case VQSliced:
		return vq.SlicedInner.GetTimestampVariables()
	}
	return nil
}

// GetGroupByColumn returns the synthetic grouping-index column name a
// GroupedBasic VQ was folded onto, if any VQ in this tree carries one.
func (vq *VirtualizedQuery) GetGroupByColumn() string {
	switch vq.Kind {
	case VQGroupedBasic:
		return vq.GroupedBasicColumn
	case VQFiltered:
		return vq.FilteredInner.GetGroupByColumn()
	case VQInnerSynchronized:
		var col string
		for _, inner := range vq.SynchronizedInners {
			if c := inner.GetGroupByColumn(); c != "" {
				col = c
			}
		}
		return col
	case VQExpressionAs:
		return vq.ExpressionAsInner.GetGroupByColumn()
	case VQGrouped:
		return vq.Grouped.VQ.GetGroupByColumn()
	case VQSliced:
		return vq.SlicedInner.GetGroupByColumn()
	}
	return ""
}

// GetGroupByMapping returns the identifier->group-index mapping a
// GroupedBasic VQ carries, if any VQ in this tree carries one.
func (vq *VirtualizedQuery) GetGroupByMapping() *GroupIndexMapping {
	switch vq.Kind {
	case VQGroupedBasic:
		return &vq.GroupedBasicMap
	case VQFiltered:
		return vq.FilteredInner.GetGroupByMapping()
	case VQInnerSynchronized:
		var mapping *GroupIndexMapping
		for _, inner := range vq.SynchronizedInners {
			if m := inner.GetGroupByMapping(); m != nil {
				mapping = m
			}
		}
		return mapping
	case VQExpressionAs:
		return vq.ExpressionAsInner.GetGroupByMapping()
	case VQGrouped:
		return vq.Grouped.VQ.GetGroupByMapping()
	case VQSliced:
		return vq.SlicedInner.GetGroupByMapping()
	}
	return nil
}

// TimeseriesFunction is one ExpressionAs binding whose expression uses
// only timestamp variables of vq — a function of time, not of value.
type TimeseriesFunction struct {
	Variable   qcontext.Variable
	Expression Expression
}

// GetTimeseriesFunctions collects ExpressionAs bindings in this tree
// that are pure functions of vq's own timestamp variables, evaluated
// under ctx.
func (vq *VirtualizedQuery) GetTimeseriesFunctions(ctx qcontext.Context) []TimeseriesFunction {
	switch vq.Kind {
	case VQBasic, VQGroupedBasic:
		return nil
	case VQFiltered:
		return vq.FilteredInner.GetTimeseriesFunctions(ctx)
	case VQInnerSynchronized:
		var out []TimeseriesFunction
		for _, inner := range vq.SynchronizedInners {
			out = append(out, inner.GetTimeseriesFunctions(ctx)...)
		}
		return out
	case VQExpressionAs:
		var out []TimeseriesFunction
		used := FindAllUsedVariablesInExpression(*vq.ExpressionAsExpression)
		existsTimestampVar := false
		allAreTimestampVar := len(used) > 0
		for _, v := range used {
			if vq.ExpressionAsInner.HasEquivalentTimestampVariable(v, ctx) {
				existsTimestampVar = true
			} else {
				allAreTimestampVar = false
				break
			}
		}
		if existsTimestampVar && allAreTimestampVar {
			out = append(out, TimeseriesFunction{Variable: vq.ExpressionAsVariable, Expression: *vq.ExpressionAsExpression})
		}
		out = append(out, vq.ExpressionAsInner.GetTimeseriesFunctions(ctx)...)
		return out
	case VQGrouped:
		return vq.Grouped.VQ.GetTimeseriesFunctions(ctx)
	case VQSliced:
		return vq.SlicedInner.GetTimeseriesFunctions(ctx)
	}
	return nil
}
