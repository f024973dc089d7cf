// Package prepare implements the preparer (spec.md §4.4): folds the
// rewriter's per-context BasicVirtualizedQuery leaves, together with the
// graph-query operators stacked above them, into a VirtualizedQuery tree
// shaped to match what each backend can actually accept.
package prepare

import (
	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/exprrewrite"
	"github.com/chrontext/chrontext/internal/qcontext"
)

// PushdownSetting names one capability a virtualized backend may declare
// support for. Grounded on the teacher's engine capability flags
// (internal/adapters' per-engine CanPush predicates), generalized to the
// VQ layer's fixed vocabulary (spec.md §4.4).
type PushdownSetting int

const (
	PushdownGroupBy PushdownSetting = iota
	PushdownValueConditions
	PushdownOrdering
	PushdownAggregation
	PushdownLimit
)

// Capabilities is the set of pushdown settings a backend declares.
type Capabilities map[PushdownSetting]bool

func (c Capabilities) Supports(s PushdownSetting) bool { return c[s] }

// Preparer folds algebra operators above a BasicVirtualizedQuery into the
// richest VirtualizedQuery shape the target backend's capabilities allow.
type Preparer struct {
	caps     Capabilities
	rewriter *exprrewrite.Rewriter
}

func New(caps Capabilities, rewriter *exprrewrite.Rewriter) *Preparer {
	return &Preparer{caps: caps, rewriter: rewriter}
}

// PrepareResult is what remains above the VQ after pushdown: the folded
// VQ itself, plus any operators that could not be pushed and must still
// run in the combiner.
type PrepareResult struct {
	VQ       *algebra.VirtualizedQuery
	Residual *algebra.Pattern // nil if everything was pushed
}

// FoldFilter attempts to push a Filter{Inner: VQ, Expr} down as a
// Filtered VQ layer. Falls back to leaving the filter as residual when
// the expression cannot be rewritten without changing its truth value
// (exprrewrite returns a ChangeType other than NoChange) or when the
// backend doesn't declare PushdownValueConditions.
func (p *Preparer) FoldFilter(inner *algebra.VirtualizedQuery, expr algebra.Expression, ctx qcontext.Context, residual *algebra.Pattern) PrepareResult {
	if !p.caps.Supports(PushdownValueConditions) {
		return PrepareResult{VQ: inner, Residual: wrapFilter(residual, expr)}
	}
	rewritten, change, _ := p.rewriter.TryRewriteExpression(expr, ctx, exprrewrite.DirectionConstrained)
	if rewritten == nil || change != exprrewrite.ChangeNoChange {
		return PrepareResult{VQ: inner, Residual: wrapFilter(residual, expr)}
	}
	filtered := algebra.NewFiltered(inner, *rewritten)
	return PrepareResult{VQ: filtered, Residual: residual}
}

// FoldExtend pushes an Extend as an ExpressionAs VQ layer, when the
// expression contains no Exists (which only the combiner can evaluate).
func (p *Preparer) FoldExtend(inner *algebra.VirtualizedQuery, v qcontext.Variable, expr algebra.Expression, residual *algebra.Pattern) PrepareResult {
	if containsExists(expr) {
		return PrepareResult{VQ: inner, Residual: residual}
	}
	expressionAs := algebra.NewExpressionAs(inner, v, expr)
	return PrepareResult{VQ: expressionAs, Residual: residual}
}

// FoldGroup pushes a Group as a Grouped VQ layer if the backend declares
// both GroupBy and Aggregation support; otherwise the grouping stays in
// the residual for the combiner to execute over materialized rows.
func (p *Preparer) FoldGroup(inner *algebra.VirtualizedQuery, ctx qcontext.Context, by []qcontext.Variable, aggs []algebra.GroupAggregateBinding, residual *algebra.Pattern) PrepareResult {
	if !p.caps.Supports(PushdownGroupBy) || !p.caps.Supports(PushdownAggregation) {
		return PrepareResult{VQ: inner, Residual: residual}
	}
	grouped := algebra.NewGrouped(algebra.GroupedVirtualizedQuery{Context: ctx, VQ: inner, By: by, Aggregations: aggs})
	return PrepareResult{VQ: grouped, Residual: residual}
}

// FoldSlice pushes a Slice as a Sliced VQ layer only when the backend
// supports limit pushdown and the slice has no offset. A Sliced layer
// carries a limit only, so a slice with an offset always stays residual.
func (p *Preparer) FoldSlice(inner *algebra.VirtualizedQuery, offset uint64, limit uint64, residual *algebra.Pattern) PrepareResult {
	if !p.caps.Supports(PushdownLimit) {
		return PrepareResult{VQ: inner, Residual: residual}
	}
	if offset > 0 {
		return PrepareResult{VQ: inner, Residual: residual}
	}
	sliced := algebra.NewSliced(inner, limit)
	return PrepareResult{VQ: sliced, Residual: residual}
}

// FoldGroupedBasic folds an ungrouped Basic VQ directly into GroupedBasic
// form using a precomputed identifier->group-index mapping — the
// single-resource fast path (spec.md §3's GroupedBasic), skipping the
// generic Grouped wrapper's per-row materialization.
func (p *Preparer) FoldGroupedBasic(basic algebra.BasicVirtualizedQuery, mapping algebra.GroupIndexMapping, column string) (*algebra.VirtualizedQuery, bool) {
	if !p.caps.Supports(PushdownGroupBy) || !p.caps.Supports(PushdownAggregation) {
		return nil, false
	}
	return algebra.NewGroupedBasic(basic, mapping, column), true
}

// FoldInnerSynchronized combines VQs that share an identifier grain into
// a single synchronized pushdown, avoiding a combiner-side join when
// every side exposes an equivalent timestamp column at ctx. The sides'
// backends are not compared.
func (p *Preparer) FoldInnerSynchronized(inners []*algebra.VirtualizedQuery, ts qcontext.Variable, ctx qcontext.Context) (*algebra.VirtualizedQuery, bool) {
	for _, inner := range inners {
		if !inner.HasEquivalentTimestampVariable(ts, ctx) {
			return nil, false
		}
	}
	syncs := make([]algebra.Synchronizer, len(inners))
	for i := range inners {
		syncs[i] = algebra.Synchronizer{Kind: algebra.SynchronizerIdentity, Column: ts.Name}
	}
	return algebra.NewInnerSynchronized(inners, syncs), true
}

func wrapFilter(inner *algebra.Pattern, expr algebra.Expression) *algebra.Pattern {
	e := expr
	return &algebra.Pattern{Kind: algebra.PatternFilter, Inner: inner, FilterExpression: &e}
}

func containsExists(expr algebra.Expression) bool {
	if expr.Kind == algebra.ExprExists {
		return true
	}
	if expr.Left != nil && containsExists(*expr.Left) {
		return true
	}
	if expr.Right != nil && containsExists(*expr.Right) {
		return true
	}
	if expr.Inner != nil && containsExists(*expr.Inner) {
		return true
	}
	for _, a := range expr.Args {
		if containsExists(a) {
			return true
		}
	}
	for _, a := range expr.CoalesceArgs {
		if containsExists(a) {
			return true
		}
	}
	for _, a := range expr.InAlternatives {
		if containsExists(a) {
			return true
		}
	}
	return false
}

// DefaultCapabilities returns the pushdown settings a given backend kind
// declares, per spec.md §6.2 and the domain stack wiring in SPEC_FULL.md.
func DefaultCapabilities(backend string) Capabilities {
	switch backend {
	case "bigquery", "postgres", "snowflake", "trino", "databricks", "duckdb":
		return Capabilities{
			PushdownGroupBy:         true,
			PushdownValueConditions: true,
			PushdownOrdering:        true,
			PushdownAggregation:     true,
			PushdownLimit:           true,
		}
	case "opcua":
		// OPC-UA HistoryRead groups by a processing interval; the OPC-UA
		// adapter applies no pushed value conditions, ordering or limit.
		return Capabilities{
			PushdownGroupBy: true,
		}
	default:
		return Capabilities{}
	}
}
