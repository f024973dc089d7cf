// Package rewrite implements the second pipeline stage (spec.md §4.3):
// splitting a preprocessed pattern into a graph-only residual query plus
// the leaf BasicVirtualizedQuery descriptions the prepare/vdb stages
// later push down and execute.
//
// Grounded on the teacher's internal/federation/decomposer.go shape (a
// single tree walk producing a reduced plan plus a side list of
// extracted sub-operations), reworked from cost-based table decomposition
// into chrontext's fixed virtual-predicate recognition. Unlike the
// teacher's decomposer, which hoists extracted sub-operations into a
// side list the planner reassembles later, this rewriter keeps each
// BasicVirtualizedQuery attached to the exact BGP node it was extracted
// from (Pattern.VQs), since the combiner needs the static and virtualized
// halves of one BGP joined before any ancestor Filter/Extend/Group can
// evaluate expressions that reference the virtualized columns.
package rewrite

import (
	"fmt"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/chronerrors"
	"github.com/chrontext/chrontext/internal/preprocess"
	"github.com/chrontext/chrontext/internal/qcontext"
)

// Result is one subtree's rewritten pattern. Pattern is never nil;
// a fully virtualized BGP rewrites to a Pattern with zero TriplePatterns
// and a non-empty VQs list rather than disappearing.
type Result struct {
	Pattern *algebra.Pattern
}

// Rewriter splits virtual-predicate triples out of a preprocessed
// pattern. Constraints are stored but not consulted; the split is
// driven by the triples' predicates alone (spec.md §6.4).
type Rewriter struct {
	constraints *preprocess.VariableConstraints
}

func New(constraints *preprocess.VariableConstraints) *Rewriter {
	return &Rewriter{constraints: constraints}
}

// Rewrite walks pat, extracting every virtualized sub-pattern it finds.
func (r *Rewriter) Rewrite(pat *algebra.Pattern, ctx qcontext.Context) (*Result, error) {
	if pat == nil {
		return &Result{Pattern: &algebra.Pattern{Kind: algebra.PatternBGP}}, nil
	}

	switch pat.Kind {
	case algebra.PatternBGP:
		return r.rewriteBGP(pat.TriplePatterns, ctx)

	case algebra.PatternJoin, algebra.PatternUnion, algebra.PatternMinus:
		left, err := r.Rewrite(pat.Left, ctx.ExtensionWith(leftEntry(pat.Kind)))
		if err != nil {
			return nil, err
		}
		right, err := r.Rewrite(pat.Right, ctx.ExtensionWith(rightEntry(pat.Kind)))
		if err != nil {
			return nil, err
		}
		out := *pat
		out.Left, out.Right = left.Pattern, right.Pattern
		return &Result{Pattern: &out}, nil

	case algebra.PatternLeftJoin:
		left, err := r.Rewrite(pat.Left, ctx.ExtensionWith(qcontext.LeftJoinLeftSide))
		if err != nil {
			return nil, err
		}
		right, err := r.Rewrite(pat.Right, ctx.ExtensionWith(qcontext.LeftJoinRightSide))
		if err != nil {
			return nil, err
		}
		out := *pat
		out.Left, out.Right = left.Pattern, right.Pattern
		return &Result{Pattern: &out}, nil

	case algebra.PatternFilter:
		inner, err := r.Rewrite(pat.Inner, ctx.ExtensionWith(qcontext.FilterInner))
		if err != nil {
			return nil, err
		}
		out := *pat
		out.Inner = inner.Pattern
		return &Result{Pattern: &out}, nil

	case algebra.PatternExtend:
		inner, err := r.Rewrite(pat.Inner, ctx.ExtensionWith(qcontext.ExtendInner))
		if err != nil {
			return nil, err
		}
		out := *pat
		out.Inner = inner.Pattern
		return &Result{Pattern: &out}, nil

	case algebra.PatternGroup:
		inner, err := r.Rewrite(pat.Inner, ctx.ExtensionWith(qcontext.GroupInner))
		if err != nil {
			return nil, err
		}
		out := *pat
		out.Inner = inner.Pattern
		return &Result{Pattern: &out}, nil

	case algebra.PatternOrderBy, algebra.PatternProject, algebra.PatternDistinct,
		algebra.PatternReduced, algebra.PatternSlice, algebra.PatternGraph:
		inner, err := r.Rewrite(pat.Inner, ctx.ExtensionWith(innerEntry(pat.Kind)))
		if err != nil {
			return nil, err
		}
		out := *pat
		out.Inner = inner.Pattern
		return &Result{Pattern: &out}, nil

	case algebra.PatternService:
		inner, err := r.Rewrite(pat.ServiceInner, ctx.ExtensionWith(qcontext.ServiceInner))
		if err != nil {
			return nil, err
		}
		out := *pat
		out.ServiceInner = inner.Pattern
		return &Result{Pattern: &out}, nil

	case algebra.PatternPath, algebra.PatternValues:
		return &Result{Pattern: pat}, nil
	}

	return &Result{Pattern: pat}, nil
}

// seriesGroup accumulates the virtual-predicate triples belonging to one
// timeseries node (the shared subject of hasDataPoint/hasExternalId/
// hasDatatype/hasResource, and object of hasTimeseries).
type seriesGroup struct {
	ts         algebra.Term
	dataPoint  *algebra.Term
	value      *algebra.Term
	timestamp  *algebra.Term
	identifier *algebra.Term // hasExternalId object
	resource   *algebra.Term // hasResource object
}

// rewriteBGP partitions a BGP's triples into static (graph-resolvable)
// triples, which stay, and the hasDataPoint/hasValue/hasTimestamp triples
// for each distinct timeseries node, which are extracted into one
// BasicVirtualizedQuery apiece. hasTimeseries/hasResource/hasExternalId/
// hasDatatype triples are real graph facts (spec.md §6.4) and are kept in
// the residual static pattern as well as consulted to populate the VQ's
// identifier/resource fields, since the combiner later joins the static
// and virtualized result sets by the shared identifier variable name.
func (r *Rewriter) rewriteBGP(triples []algebra.TriplePattern, ctx qcontext.Context) (*Result, error) {
	var static []algebra.TriplePattern
	groups := map[string]*seriesGroup{}
	var order []string

	groupFor := func(key string, t algebra.Term) *seriesGroup {
		g, ok := groups[key]
		if !ok {
			g = &seriesGroup{ts: t}
			groups[key] = g
			order = append(order, key)
		}
		return g
	}

	for _, tp := range triples {
		switch tp.Predicate {
		case preprocess.PredHasTimeseries:
			static = append(static, tp)
			groupFor(termKey(tp.Object), tp.Object)

		case preprocess.PredHasDataPoint:
			g := groupFor(termKey(tp.Subject), tp.Subject)
			obj := tp.Object
			g.dataPoint = &obj

		case preprocess.PredHasValue:
			// Subject is the data point; find its owning group by scanning
			// groups whose dataPoint matches (a BGP rarely has more than one
			// series, so this is a short linear scan in practice).
			g := groupWithDataPoint(groups, order, tp.Subject)
			if g == nil {
				return nil, chronerrors.NewTimeseriesQueryTypeNotSupported("hasValue triple with no matching hasDataPoint triple in the same basic graph pattern")
			}
			obj := tp.Object
			g.value = &obj

		case preprocess.PredHasTimestamp:
			g := groupWithDataPoint(groups, order, tp.Subject)
			if g == nil {
				return nil, chronerrors.NewTimeseriesQueryTypeNotSupported("hasTimestamp triple with no matching hasDataPoint triple in the same basic graph pattern")
			}
			obj := tp.Object
			g.timestamp = &obj

		case preprocess.PredHasExternalID:
			static = append(static, tp)
			g := groupFor(termKey(tp.Subject), tp.Subject)
			obj := tp.Object
			g.identifier = &obj

		case preprocess.PredHasResource:
			static = append(static, tp)
			g := groupFor(termKey(tp.Subject), tp.Subject)
			obj := tp.Object
			g.resource = &obj

		case preprocess.PredHasDatatype:
			static = append(static, tp)

		default:
			static = append(static, tp)
		}
	}

	var vqs []*algebra.BasicVirtualizedQuery
	for _, key := range order {
		g := groups[key]
		if g.dataPoint == nil && g.value == nil && g.timestamp == nil {
			// A timeseries node that only ever appears via hasResource/
			// hasExternalId/hasTimeseries (no hasDataPoint) has nothing to
			// virtualize; it's pure graph metadata, already kept in static.
			continue
		}
		vq, err := buildBasicVQ(g, ctx)
		if err != nil {
			return nil, err
		}
		vqs = append(vqs, vq)
	}

	return &Result{Pattern: &algebra.Pattern{Kind: algebra.PatternBGP, TriplePatterns: static, VQs: vqs}}, nil
}

func groupWithDataPoint(groups map[string]*seriesGroup, order []string, dp algebra.Term) *seriesGroup {
	for _, key := range order {
		g := groups[key]
		if g.dataPoint != nil && termKey(*g.dataPoint) == termKey(dp) {
			return g
		}
	}
	return nil
}

func termKey(t algebra.Term) string {
	switch {
	case t.IsVariable():
		return "v:" + t.Variable.Name
	case t.IsBlank():
		return "b:" + t.Blank
	case t.Literal != nil:
		return "l:" + t.Literal.Value + "^" + t.Literal.Datatype
	default:
		return "i:" + t.IRI
	}
}

// buildBasicVQ converts one seriesGroup into a BasicVirtualizedQuery.
// Variable terms become the corresponding VariableInContext/Variable
// field; literal terms are folded into Resource/IDs directly since
// they're statically known at rewrite time.
func buildBasicVQ(g *seriesGroup, ctx qcontext.Context) (*algebra.BasicVirtualizedQuery, error) {
	vq := algebra.NewEmptyBasicVirtualizedQuery()

	if g.ts.IsVariable() {
		vic := qcontext.NewVariableInContext(*g.ts.Variable, ctx)
		vq.TimeseriesVariable = &vic
	}
	if g.dataPoint != nil && g.dataPoint.IsVariable() {
		vic := qcontext.NewVariableInContext(*g.dataPoint.Variable, ctx)
		vq.DataPointVariable = &vic
	}
	if g.value == nil {
		return nil, chronerrors.NewTimeseriesQueryTypeNotSupported("timeseries node has hasDataPoint but no hasValue triple")
	}
	if !g.value.IsVariable() {
		return nil, chronerrors.NewTimeseriesQueryTypeNotSupported("hasValue object must be a variable")
	}
	valueVIC := qcontext.NewVariableInContext(*g.value.Variable, ctx)
	vq.ValueVariable = &valueVIC

	if g.timestamp == nil {
		return nil, chronerrors.NewTimeseriesQueryTypeNotSupported("timeseries node has hasDataPoint but no hasTimestamp triple")
	}
	if !g.timestamp.IsVariable() {
		return nil, chronerrors.NewTimeseriesQueryTypeNotSupported("hasTimestamp object must be a variable")
	}
	tsVIC := qcontext.NewVariableInContext(*g.timestamp.Variable, ctx)
	vq.TimestampVariable = &tsVIC

	if g.identifier != nil {
		if g.identifier.IsVariable() {
			v := *g.identifier.Variable
			vq.IdentifierVariable = &v
		} else if g.identifier.Literal != nil {
			vq.IDs = []string{g.identifier.Literal.Value}
		}
	}

	if g.resource != nil {
		if g.resource.IsVariable() {
			v := *g.resource.Variable
			vq.ResourceVariable = &v
		} else if g.resource.Literal != nil {
			resource := g.resource.Literal.Value
			vq.Resource = &resource
		}
	}

	if vq.Resource == nil && vq.ResourceVariable == nil {
		return nil, chronerrors.NewMissingResource(fmt.Sprintf("timeseries node %s", termKey(g.ts)))
	}
	return &vq, nil
}

func leftEntry(kind algebra.PatternKind) qcontext.PathEntry {
	switch kind {
	case algebra.PatternUnion:
		return qcontext.UnionLeftSide
	case algebra.PatternMinus:
		return qcontext.MinusLeftSide
	}
	return qcontext.JoinLeftSide
}

func rightEntry(kind algebra.PatternKind) qcontext.PathEntry {
	switch kind {
	case algebra.PatternUnion:
		return qcontext.UnionRightSide
	case algebra.PatternMinus:
		return qcontext.MinusRightSide
	}
	return qcontext.JoinRightSide
}

func innerEntry(kind algebra.PatternKind) qcontext.PathEntry {
	switch kind {
	case algebra.PatternOrderBy:
		return qcontext.OrderByInner
	case algebra.PatternProject:
		return qcontext.ProjectInner
	case algebra.PatternDistinct:
		return qcontext.DistinctInner
	case algebra.PatternReduced:
		return qcontext.ReducedInner
	case algebra.PatternSlice:
		return qcontext.SliceInner
	case algebra.PatternGraph:
		return qcontext.GraphInner
	}
	return qcontext.ProjectInner
}
