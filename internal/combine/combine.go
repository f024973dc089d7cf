// Package combine implements the fourth and final pipeline stage
// (spec.md §4.6-§4.7): running the residual static query against the
// context store, the extracted virtualized queries against their
// backends, and joining the two result sets back together, then
// evaluating whatever graph-algebra operators (Filter/Extend/Group/
// OrderBy/Slice/...) sit above the basic graph patterns.
//
// Grounded on the teacher's internal/federation.Executor, which drives
// the same "resolve sub-plans against their engines, then stitch results
// back into the caller's row stream" shape for table federation; here
// the two result sets are a SPARQL selection and a batch of timeseries
// reads instead of two SQL sub-queries.
package combine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/chronerrors"
	"github.com/chrontext/chrontext/internal/contextstore"
	"github.com/chrontext/chrontext/internal/dataframe"
	"github.com/chrontext/chrontext/internal/exprrewrite"
	"github.com/chrontext/chrontext/internal/prepare"
	"github.com/chrontext/chrontext/internal/preprocess"
	"github.com/chrontext/chrontext/internal/qcontext"
	"github.com/chrontext/chrontext/internal/rewrite"
	"github.com/chrontext/chrontext/internal/vdb"
)

// Combiner ties the whole pipeline together for one incoming query.
type Combiner struct {
	store            contextstore.ContextStore
	registry         *vdb.Registry
	resourceBackends map[string]string
}

func New(store contextstore.ContextStore, registry *vdb.Registry, resourceBackends map[string]string) *Combiner {
	return &Combiner{store: store, registry: registry, resourceBackends: resourceBackends}
}

// Execute runs the full pipeline over a parsed query pattern and returns
// the joined, fully materialized solution mappings.
func (c *Combiner) Execute(ctx context.Context, pattern *algebra.Pattern) (*dataframe.SolutionMappings, error) {
	renamed, constraints, err := preprocess.NewPreprocessor().Run(pattern)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	rewriter := rewrite.New(constraints)
	rewritten, err := rewriter.Rewrite(renamed, qcontext.Root())
	if err != nil {
		return nil, fmt.Errorf("rewrite: %w", err)
	}

	er := exprrewrite.New(constraints)
	return c.execute(ctx, rewritten.Pattern, qcontext.Root(), er)
}

func (c *Combiner) execute(ctx context.Context, pat *algebra.Pattern, qctx qcontext.Context, er *exprrewrite.Rewriter) (*dataframe.SolutionMappings, error) {
	if pat == nil {
		return oneEmptyRowTable(), nil
	}

	switch pat.Kind {
	case algebra.PatternBGP:
		return c.executeBGP(ctx, pat)

	case algebra.PatternPath:
		sparql := contextstore.ToSPARQL(pat)
		return c.store.Query(ctx, sparql)

	case algebra.PatternJoin:
		left, err := c.execute(ctx, pat.Left, qctx.ExtensionWith(qcontext.JoinLeftSide), er)
		if err != nil {
			return nil, err
		}
		right, err := c.execute(ctx, pat.Right, qctx.ExtensionWith(qcontext.JoinRightSide), er)
		if err != nil {
			return nil, err
		}
		left.InnerJoin(right)
		return left, nil

	case algebra.PatternUnion:
		left, err := c.execute(ctx, pat.Left, qctx.ExtensionWith(qcontext.UnionLeftSide), er)
		if err != nil {
			return nil, err
		}
		right, err := c.execute(ctx, pat.Right, qctx.ExtensionWith(qcontext.UnionRightSide), er)
		if err != nil {
			return nil, err
		}
		return unionTables(left, right), nil

	case algebra.PatternMinus:
		left, err := c.execute(ctx, pat.Left, qctx.ExtensionWith(qcontext.MinusLeftSide), er)
		if err != nil {
			return nil, err
		}
		right, err := c.execute(ctx, pat.Right, qctx.ExtensionWith(qcontext.MinusRightSide), er)
		if err != nil {
			return nil, err
		}
		minusTables(left, right)
		return left, nil

	case algebra.PatternLeftJoin:
		left, err := c.execute(ctx, pat.Left, qctx.ExtensionWith(qcontext.LeftJoinLeftSide), er)
		if err != nil {
			return nil, err
		}
		right, err := c.execute(ctx, pat.Right, qctx.ExtensionWith(qcontext.LeftJoinRightSide), er)
		if err != nil {
			return nil, err
		}
		return leftJoinTables(left, right, pat.LeftJoinExpression), nil

	case algebra.PatternFilter:
		if folded, ok, err := c.tryFoldFilter(ctx, pat, qctx, er); err != nil {
			return nil, err
		} else if ok {
			return folded, nil
		}
		sm, err := c.execute(ctx, pat.Inner, qctx.ExtensionWith(qcontext.FilterInner), er)
		if err != nil {
			return nil, err
		}
		if pat.FilterExpression != nil {
			expr := *pat.FilterExpression
			existsResults, err := c.resolveExistsSubplans(ctx, expr, qctx.ExtensionWith(qcontext.FilterExpression), er)
			if err != nil {
				return nil, err
			}
			var filterErr error
			sm.Filter(func(row dataframe.Row) bool {
				tri, err := evalFilterExpr(expr, row, existsResults)
				if err != nil {
					filterErr = err
					return false
				}
				return tri.Bool()
			})
			if filterErr != nil {
				return nil, filterErr
			}
		}
		return sm, nil

	case algebra.PatternExtend:
		sm, err := c.execute(ctx, pat.Inner, qctx.ExtensionWith(qcontext.ExtendInner), er)
		if err != nil {
			return nil, err
		}
		if pat.ExtendExpression != nil && pat.ExtendVariable != nil {
			expr := *pat.ExtendExpression
			name := pat.ExtendVariable.Name
			existsResults, err := c.resolveExistsSubplans(ctx, expr, qctx.ExtensionWith(qcontext.ExtendExpression), er)
			if err != nil {
				return nil, err
			}
			sm.WithColumn(name, dataframe.RDFNodeTypeSet{IRI: true, Blank: true, Literal: true}, func(row dataframe.Row) dataframe.Value {
				return evalExtendExpr(expr, row, existsResults)
			})
		}
		return sm, nil

	case algebra.PatternGroup:
		sm, err := c.execute(ctx, pat.Inner, qctx.ExtensionWith(qcontext.GroupInner), er)
		if err != nil {
			return nil, err
		}
		return groupAndAggregate(sm, pat.GroupVariables, pat.GroupAggregates)

	case algebra.PatternOrderBy:
		sm, err := c.execute(ctx, pat.Inner, qctx.ExtensionWith(qcontext.OrderByInner), er)
		if err != nil {
			return nil, err
		}
		orderBy(sm, pat.OrderExpressions)
		return sm, nil

	case algebra.PatternProject:
		sm, err := c.execute(ctx, pat.Inner, qctx.ExtensionWith(qcontext.ProjectInner), er)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(pat.ProjectVariables))
		for i, v := range pat.ProjectVariables {
			names[i] = v.Name
		}
		sm.Project(names)
		return sm, nil

	case algebra.PatternDistinct, algebra.PatternReduced:
		sm, err := c.execute(ctx, pat.Inner, qctx.ExtensionWith(innerEntry(pat.Kind)), er)
		if err != nil {
			return nil, err
		}
		dedupe(sm)
		return sm, nil

	case algebra.PatternSlice:
		sm, err := c.execute(ctx, pat.Inner, qctx.ExtensionWith(qcontext.SliceInner), er)
		if err != nil {
			return nil, err
		}
		limit := uint64(0)
		if pat.SliceLength != nil {
			limit = *pat.SliceLength
		}
		sm.Slice(pat.SliceOffset, limit)
		return sm, nil

	case algebra.PatternGraph:
		return c.execute(ctx, pat.Inner, qctx.ExtensionWith(qcontext.GraphInner), er)

	case algebra.PatternService:
		return c.execute(ctx, pat.ServiceInner, qctx.ExtensionWith(qcontext.ServiceInner), er)

	case algebra.PatternValues:
		return valuesTable(pat), nil
	}

	return oneEmptyRowTable(), nil
}

// evalFilterExpr evaluates a Filter expression against one row, the same
// way dataframe.Eval does, except it special-cases the boolean connectives
// so an Exists nested anywhere inside an And/Or/Not is resolved against
// existsResults instead of making dataframe.Eval reject it outright.
func evalFilterExpr(expr algebra.Expression, row dataframe.Row, existsResults map[*algebra.Pattern]*dataframe.SolutionMappings) (dataframe.Tri, error) {
	switch expr.Kind {
	case algebra.ExprAnd:
		l, lerr := evalFilterExpr(*expr.Left, row, existsResults)
		if lerr != nil {
			l = dataframe.TriUnknown
		}
		r, rerr := evalFilterExpr(*expr.Right, row, existsResults)
		if rerr != nil {
			r = dataframe.TriUnknown
		}
		return l.And(r), nil
	case algebra.ExprOr:
		l, lerr := evalFilterExpr(*expr.Left, row, existsResults)
		if lerr != nil {
			l = dataframe.TriUnknown
		}
		r, rerr := evalFilterExpr(*expr.Right, row, existsResults)
		if rerr != nil {
			r = dataframe.TriUnknown
		}
		return l.Or(r), nil
	case algebra.ExprNot:
		inner, err := evalFilterExpr(*expr.Inner, row, existsResults)
		if err != nil {
			return dataframe.TriUnknown, err
		}
		return inner.Not(), nil
	case algebra.ExprExists:
		sm := existsResults[expr.ExistsPattern]
		if sm == nil {
			return dataframe.TriFalse, nil
		}
		for _, candidate := range sm.Rows {
			if rowsCompatible(row, candidate) {
				return dataframe.TriTrue, nil
			}
		}
		return dataframe.TriFalse, nil
	default:
		v, err := dataframe.Eval(expr, row)
		if err != nil {
			return dataframe.TriUnknown, err
		}
		if !v.IsBound() {
			return dataframe.TriUnknown, nil
		}
		if v.Lexical == "true" {
			return dataframe.TriTrue, nil
		}
		return dataframe.TriFalse, nil
	}
}

// evalExtendExpr evaluates a BIND(... AS ?x) expression against one row,
// the same way dataframe.Eval does, except an Exists that is the whole
// expression or is reached only through And/Or/Not resolves against
// existsResults. An Exists under any other operator is left to
// dataframe.Eval, whose error makes the value unbound. A
// failed sub-evaluation yields an unbound value rather than aborting the
// whole row, matching dataframe.Eval's own WithColumn callback contract.
func evalExtendExpr(expr algebra.Expression, row dataframe.Row, existsResults map[*algebra.Pattern]*dataframe.SolutionMappings) dataframe.Value {
	if !exprContainsExists(expr) {
		v, err := dataframe.Eval(expr, row)
		if err != nil {
			return dataframe.Unbound
		}
		return v
	}
	tri, err := evalFilterExpr(expr, row, existsResults)
	if err != nil {
		return dataframe.Unbound
	}
	switch tri {
	case dataframe.TriTrue:
		return dataframe.NewLiteralValue("true", "http://www.w3.org/2001/XMLSchema#boolean", "")
	case dataframe.TriFalse:
		return dataframe.NewLiteralValue("false", "http://www.w3.org/2001/XMLSchema#boolean", "")
	default:
		return dataframe.Unbound
	}
}

// exprContainsExists reports whether expr is, or contains, an Exists node
// among the boolean connectives evalExtendExpr special-cases. BIND
// expressions built from anything else are left to dataframe.Eval as
// before.
func exprContainsExists(expr algebra.Expression) bool {
	switch expr.Kind {
	case algebra.ExprExists:
		return true
	case algebra.ExprAnd, algebra.ExprOr:
		return exprContainsExists(*expr.Left) || exprContainsExists(*expr.Right)
	case algebra.ExprNot:
		return exprContainsExists(*expr.Inner)
	default:
		return false
	}
}

// rowsCompatible reports whether a and b agree on every variable they
// share, the row-level correlation check an Exists{} subplan needs: a
// shared variable must be bound to the same term on both sides, while a
// column present on only one side imposes no constraint (spec.md §4.7).
func rowsCompatible(a, b dataframe.Row) bool {
	for col, av := range a {
		bv, ok := b[col]
		if !ok || !av.IsBound() || !bv.IsBound() {
			continue
		}
		if !av.SameTermAs(bv) {
			return false
		}
	}
	return true
}

// resolveExistsSubplans runs every distinct Exists{} sub-pattern reachable
// from expr exactly once (it does not depend on the outer row, since the
// preprocessor/rewriter never descend into ExistsPattern — it passes
// through to the combiner as a plain, uncorrelated pattern) and returns
// the result keyed by pattern identity, so evalFilterExpr can check
// per-row compatibility without re-executing the subplan per row.
func (c *Combiner) resolveExistsSubplans(ctx context.Context, expr algebra.Expression, qctx qcontext.Context, er *exprrewrite.Rewriter) (map[*algebra.Pattern]*dataframe.SolutionMappings, error) {
	results := map[*algebra.Pattern]*dataframe.SolutionMappings{}
	var walk func(e algebra.Expression) error
	walk = func(e algebra.Expression) error {
		if e.Kind == algebra.ExprExists && e.ExistsPattern != nil {
			if _, ok := results[e.ExistsPattern]; ok {
				return nil
			}
			sm, err := c.execute(ctx, e.ExistsPattern, qctx.ExtensionWith(qcontext.Exists), er)
			if err != nil {
				return err
			}
			results[e.ExistsPattern] = sm
			return nil
		}
		if e.Left != nil {
			if err := walk(*e.Left); err != nil {
				return err
			}
		}
		if e.Right != nil {
			if err := walk(*e.Right); err != nil {
				return err
			}
		}
		if e.Inner != nil {
			if err := walk(*e.Inner); err != nil {
				return err
			}
		}
		for _, a := range e.Args {
			if err := walk(a); err != nil {
				return err
			}
		}
		for _, a := range e.CoalesceArgs {
			if err := walk(a); err != nil {
				return err
			}
		}
		for _, a := range e.InAlternatives {
			if err := walk(a); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(expr); err != nil {
		return nil, err
	}
	return results, nil
}

func innerEntry(kind algebra.PatternKind) qcontext.PathEntry {
	if kind == algebra.PatternReduced {
		return qcontext.ReducedInner
	}
	return qcontext.DistinctInner
}

// tryFoldFilter attempts the common, fully-grounded pushdown shortcut:
// a Filter sitting directly over a BGP that dissolved entirely into one
// virtualized query with a statically-known resource. When the target
// backend declares PushdownValueConditions and the expression survives
// exprrewrite unchanged, the filter runs inside the backend instead of
// after a combiner-side materialization.
func (c *Combiner) tryFoldFilter(ctx context.Context, pat *algebra.Pattern, qctx qcontext.Context, er *exprrewrite.Rewriter) (*dataframe.SolutionMappings, bool, error) {
	if pat.FilterExpression == nil || pat.Inner == nil {
		return nil, false, nil
	}
	inner := pat.Inner
	if inner.Kind != algebra.PatternBGP || len(inner.TriplePatterns) != 0 || len(inner.VQs) != 1 {
		return nil, false, nil
	}
	bvq := inner.VQs[0]
	if bvq.Resource == nil {
		return nil, false, nil
	}
	backend, ok := c.registry.Get(c.resourceBackends[*bvq.Resource])
	if !ok {
		return nil, false, nil
	}
	preparer := prepare.New(backend.PushdownSettings(), er)
	result := preparer.FoldFilter(algebra.NewBasic(*bvq), *pat.FilterExpression, qctx.ExtensionWith(qcontext.FilterExpression), nil)
	if result.Residual != nil {
		return nil, false, nil
	}
	sm, err := backend.Query(ctx, result.VQ)
	if err != nil {
		return nil, false, chronerrors.NewVirtualizedDatabaseError(backend.Name(), err)
	}
	return sm, true, nil
}

// executeBGP resolves a (possibly empty) set of static triples through
// the context store and joins in each accompanying virtualized query's
// result, per spec.md §4.6.
func (c *Combiner) executeBGP(ctx context.Context, pat *algebra.Pattern) (*dataframe.SolutionMappings, error) {
	var staticSM *dataframe.SolutionMappings
	if len(pat.TriplePatterns) > 0 {
		sparql := contextstore.ToSPARQL(&algebra.Pattern{Kind: algebra.PatternBGP, TriplePatterns: pat.TriplePatterns})
		sm, err := c.store.Query(ctx, sparql)
		if err != nil {
			return nil, err
		}
		staticSM = sm
	}
	if len(pat.VQs) == 0 {
		if staticSM == nil {
			return oneEmptyRowTable(), nil
		}
		return staticSM, nil
	}

	result := staticSM
	for _, bvq := range pat.VQs {
		vqSM, err := c.executeBasicVQ(ctx, bvq, staticSM)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = vqSM
		} else {
			result.JoinAttach(vqSM)
		}
	}
	return result, nil
}

// executeBasicVQ resolves one BasicVirtualizedQuery's resource (and, if
// dynamic, its identifiers) against the static rows already bound,
// splits it into one concrete round trip per distinct resource, and
// concatenates the results.
func (c *Combiner) executeBasicVQ(ctx context.Context, bvq *algebra.BasicVirtualizedQuery, staticSM *dataframe.SolutionMappings) (*dataframe.SolutionMappings, error) {
	resources, err := c.resolveResources(bvq, staticSM)
	if err != nil {
		return nil, err
	}

	var combined *dataframe.SolutionMappings
	for _, resource := range resources {
		ids := resolveIDs(bvq, staticSM, resource)
		concrete := *bvq
		r := resource
		concrete.Resource = &r
		concrete.IDs = ids

		backendName, ok := c.resourceBackends[resource]
		if !ok {
			return nil, chronerrors.NewVirtualizedDatabaseError(resource, fmt.Errorf("no backend configured for resource %q", resource))
		}
		backend, ok := c.registry.Get(backendName)
		if !ok {
			return nil, chronerrors.NewVirtualizedDatabaseError(backendName, fmt.Errorf("backend %q is not registered", backendName))
		}

		sm, err := backend.Query(ctx, algebra.NewBasic(concrete))
		if err != nil {
			return nil, chronerrors.NewVirtualizedDatabaseError(backendName, err)
		}
		if combined == nil {
			combined = sm
		} else {
			combined = unionTables(combined, sm)
		}
	}
	if combined == nil {
		combined = oneEmptyRowTable()
	}
	return combined, nil
}

func (c *Combiner) resolveResources(bvq *algebra.BasicVirtualizedQuery, staticSM *dataframe.SolutionMappings) ([]string, error) {
	if bvq.Resource != nil {
		return []string{*bvq.Resource}, nil
	}
	if bvq.ResourceVariable == nil {
		return nil, chronerrors.NewMissingResource("resource")
	}
	if staticSM == nil {
		return nil, chronerrors.NewMissingResource(bvq.ResourceVariable.Name)
	}
	seen := map[string]struct{}{}
	var out []string
	for _, row := range staticSM.Rows {
		v, ok := row[bvq.ResourceVariable.Name]
		if !ok || !v.IsBound() {
			continue
		}
		key := valueString(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	if len(out) == 0 {
		return nil, chronerrors.NewMissingResource(bvq.ResourceVariable.Name)
	}
	return out, nil
}

func resolveIDs(bvq *algebra.BasicVirtualizedQuery, staticSM *dataframe.SolutionMappings, resource string) []string {
	if len(bvq.IDs) > 0 {
		return bvq.IDs
	}
	if bvq.IdentifierVariable == nil || staticSM == nil {
		return nil
	}
	seen := map[string]struct{}{}
	var ids []string
	for _, row := range staticSM.Rows {
		if bvq.ResourceVariable != nil {
			rv, ok := row[bvq.ResourceVariable.Name]
			if !ok || valueString(rv) != resource {
				continue
			}
		}
		idVal, ok := row[bvq.IdentifierVariable.Name]
		if !ok || !idVal.IsBound() {
			continue
		}
		id := valueString(idVal)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func valueString(v dataframe.Value) string {
	if v.IRI != "" {
		return v.IRI
	}
	if v.Blank != "" {
		return v.Blank
	}
	return v.Lexical
}

func oneEmptyRowTable() *dataframe.SolutionMappings {
	sm := dataframe.NewSolutionMappings(map[string]dataframe.RDFNodeTypeSet{})
	sm.Rows = []dataframe.Row{{}}
	return sm
}

func unionTables(a, b *dataframe.SolutionMappings) *dataframe.SolutionMappings {
	types := map[string]dataframe.RDFNodeTypeSet{}
	for c, t := range a.RDFNodeTypes {
		types[c] = types[c].Merge(t)
	}
	for c, t := range b.RDFNodeTypes {
		types[c] = types[c].Merge(t)
	}
	rows := make([]dataframe.Row, 0, len(a.Rows)+len(b.Rows))
	for _, row := range a.Rows {
		rows = append(rows, padRow(row, types))
	}
	for _, row := range b.Rows {
		rows = append(rows, padRow(row, types))
	}
	return &dataframe.SolutionMappings{Rows: rows, RDFNodeTypes: types}
}

func padRow(row dataframe.Row, types map[string]dataframe.RDFNodeTypeSet) dataframe.Row {
	out := row.Clone()
	for c := range types {
		if _, ok := out[c]; !ok {
			out[c] = dataframe.Unbound
		}
	}
	return out
}

// minusTables removes every row of a that matches some row of b on all
// columns they share (SPARQL MINUS, §18.5 of the SPARQL 1.1 spec).
func minusTables(a, b *dataframe.SolutionMappings) {
	shared := make([]string, 0)
	for c := range a.RDFNodeTypes {
		if _, ok := b.RDFNodeTypes[c]; ok {
			shared = append(shared, c)
		}
	}
	if len(shared) == 0 {
		return
	}
	blocked := map[string]struct{}{}
	for _, row := range b.Rows {
		blocked[rowKey(row, shared)] = struct{}{}
	}
	a.Filter(func(row dataframe.Row) bool {
		_, ok := blocked[rowKey(row, shared)]
		return !ok
	})
}

// leftJoinTables implements SPARQL OPTIONAL: every left row that has no
// matching right row (after applying the optional filter expression, if
// any) survives with the right side's columns left unbound.
func leftJoinTables(left, right *dataframe.SolutionMappings, filter *algebra.Expression) *dataframe.SolutionMappings {
	types := map[string]dataframe.RDFNodeTypeSet{}
	for c, t := range left.RDFNodeTypes {
		types[c] = types[c].Merge(t)
	}
	for c, t := range right.RDFNodeTypes {
		types[c] = types[c].Merge(t)
	}

	shared := make([]string, 0)
	for c := range left.RDFNodeTypes {
		if _, ok := right.RDFNodeTypes[c]; ok {
			shared = append(shared, c)
		}
	}
	build := map[string][]dataframe.Row{}
	for _, row := range right.Rows {
		key := rowKey(row, shared)
		build[key] = append(build[key], row)
	}

	var out []dataframe.Row
	for _, lrow := range left.Rows {
		matches := build[rowKey(lrow, shared)]
		matched := false
		for _, rrow := range matches {
			merged := lrow.Clone()
			for k, v := range rrow {
				merged[k] = v
			}
			if filter != nil {
				v, err := dataframe.Eval(*filter, merged)
				if err != nil || !v.IsBound() || v.Lexical != "true" {
					continue
				}
			}
			out = append(out, padRow(merged, types))
			matched = true
		}
		if !matched {
			out = append(out, padRow(lrow, types))
		}
	}
	return &dataframe.SolutionMappings{Rows: out, RDFNodeTypes: types}
}

func rowKey(row dataframe.Row, cols []string) string {
	var b strings.Builder
	for _, c := range cols {
		v := row[c]
		fmt.Fprintf(&b, "|%d|%s|", v.NodeType, valueString(v))
	}
	return b.String()
}

func dedupe(sm *dataframe.SolutionMappings) {
	cols := sm.Columns()
	sort.Strings(cols)
	seen := map[string]struct{}{}
	sm.Filter(func(row dataframe.Row) bool {
		key := rowKey(row, cols)
		if _, ok := seen[key]; ok {
			return false
		}
		seen[key] = struct{}{}
		return true
	})
}

func orderBy(sm *dataframe.SolutionMappings, exprs []algebra.OrderExpression) {
	if len(exprs) == 0 {
		return
	}
	tmpCols := make([]string, len(exprs))
	desc := make([]bool, len(exprs))
	for i, oe := range exprs {
		name := fmt.Sprintf("__order_%d", i)
		tmpCols[i] = name
		desc[i] = oe.Descending
		expr := oe.Expr
		sm.WithColumn(name, dataframe.RDFNodeTypeSet{IRI: true, Blank: true, Literal: true}, func(row dataframe.Row) dataframe.Value {
			v, err := dataframe.Eval(expr, row)
			if err != nil {
				return dataframe.Unbound
			}
			return v
		})
	}
	sm.Sort(tmpCols, desc)
	for _, c := range tmpCols {
		delete(sm.RDFNodeTypes, c)
	}
	for i, row := range sm.Rows {
		for _, c := range tmpCols {
			delete(row, c)
		}
		sm.Rows[i] = row
	}
}

func valuesTable(pat *algebra.Pattern) *dataframe.SolutionMappings {
	types := map[string]dataframe.RDFNodeTypeSet{}
	for _, v := range pat.ValuesVariables {
		types[v.Name] = dataframe.RDFNodeTypeSet{}
	}
	var rows []dataframe.Row
	for _, binding := range pat.ValuesBindings {
		row := dataframe.Row{}
		for i, v := range pat.ValuesVariables {
			if i >= len(binding) || binding[i] == nil {
				row[v.Name] = dataframe.Unbound
				continue
			}
			val, set := termValue(*binding[i])
			row[v.Name] = val
			types[v.Name] = types[v.Name].Merge(set)
		}
		rows = append(rows, row)
	}
	return &dataframe.SolutionMappings{Rows: rows, RDFNodeTypes: types}
}

func termValue(t algebra.Term) (dataframe.Value, dataframe.RDFNodeTypeSet) {
	switch {
	case t.IsBlank():
		return dataframe.NewBlankValue(t.Blank), dataframe.RDFNodeTypeSet{Blank: true}
	case t.Literal != nil:
		return dataframe.NewLiteralValue(t.Literal.Value, t.Literal.Datatype, t.Literal.Lang), dataframe.RDFNodeTypeSet{Literal: true}
	default:
		return dataframe.NewIRIValue(t.IRI), dataframe.RDFNodeTypeSet{IRI: true}
	}
}

// groupAndAggregate buckets rows by the Group operator's by-variables and
// computes each aggregate target over every bucket. Grounded on the
// teacher's internal/federation aggregation pushdown fallback, which
// buckets in memory the same way when an engine can't group natively.
func groupAndAggregate(sm *dataframe.SolutionMappings, by []qcontext.Variable, aggs []algebra.GroupAggregateBinding) (*dataframe.SolutionMappings, error) {
	byNames := make([]string, len(by))
	for i, v := range by {
		byNames[i] = v.Name
	}

	buckets := map[string][]dataframe.Row{}
	var order []string
	for _, row := range sm.Rows {
		key := rowKey(row, byNames)
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], row)
	}
	if len(order) == 0 && len(sm.Rows) == 0 {
		// GROUP BY with no rows at all still yields one group for bare
		// aggregates like COUNT(*), matching SPARQL's empty-input rule.
		buckets[""] = nil
		order = []string{""}
	}

	types := map[string]dataframe.RDFNodeTypeSet{}
	for _, name := range byNames {
		types[name] = sm.RDFNodeTypes[name]
	}
	for _, binding := range aggs {
		types[binding.Variable.Name] = dataframe.RDFNodeTypeSet{Literal: true}
	}

	var out []dataframe.Row
	for _, key := range order {
		rows := buckets[key]
		row := dataframe.Row{}
		if len(rows) > 0 {
			for _, name := range byNames {
				row[name] = rows[0][name]
			}
		} else {
			for _, name := range byNames {
				row[name] = dataframe.Unbound
			}
		}
		for _, binding := range aggs {
			v, err := aggregate(binding.Aggregate, rows)
			if err != nil {
				return nil, err
			}
			row[binding.Variable.Name] = v
		}
		out = append(out, row)
	}
	return &dataframe.SolutionMappings{Rows: out, RDFNodeTypes: types}, nil
}

func aggregate(agg algebra.AggregateExpression, rows []dataframe.Row) (dataframe.Value, error) {
	values := func() ([]dataframe.Value, error) {
		var vals []dataframe.Value
		seen := map[string]struct{}{}
		for _, row := range rows {
			var v dataframe.Value
			if agg.Expr == nil {
				v = dataframe.NewLiteralValue("*", "", "")
			} else {
				var err error
				v, err = dataframe.Eval(*agg.Expr, row)
				if err != nil {
					return nil, err
				}
				if !v.IsBound() {
					continue
				}
			}
			if agg.Distinct {
				key := valueString(v)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			vals = append(vals, v)
		}
		return vals, nil
	}

	switch agg.Op {
	case algebra.AggCount:
		vals, err := values()
		if err != nil {
			return dataframe.Value{}, err
		}
		return dataframe.NewLiteralValue(fmt.Sprintf("%d", len(vals)), "http://www.w3.org/2001/XMLSchema#integer", ""), nil

	case algebra.AggSum, algebra.AggAvg, algebra.AggMin, algebra.AggMax:
		vals, err := values()
		if err != nil {
			return dataframe.Value{}, err
		}
		return numericAggregate(agg.Op, vals), nil

	case algebra.AggSample:
		vals, err := values()
		if err != nil {
			return dataframe.Value{}, err
		}
		if len(vals) == 0 {
			return dataframe.Unbound, nil
		}
		return vals[0], nil

	case algebra.AggGroupConcat:
		vals, err := values()
		if err != nil {
			return dataframe.Value{}, err
		}
		sep := agg.Separator
		if sep == "" {
			sep = " "
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = v.Lexical
		}
		return dataframe.NewLiteralValue(strings.Join(parts, sep), "http://www.w3.org/2001/XMLSchema#string", ""), nil

	default:
		return dataframe.Value{}, chronerrors.NewTimeseriesQueryTypeNotSupported("custom aggregate functions are not supported by the combiner")
	}
}

func numericAggregate(op algebra.AggregateOp, vals []dataframe.Value) dataframe.Value {
	if len(vals) == 0 {
		if op == algebra.AggSum {
			return dataframe.NewLiteralValue("0", "http://www.w3.org/2001/XMLSchema#integer", "")
		}
		return dataframe.Unbound
	}
	sum := 0.0
	count := 0
	min, max := 0.0, 0.0
	for i, v := range vals {
		f, ok := v.AsFloat()
		if !ok {
			continue
		}
		if i == 0 || f < min {
			min = f
		}
		if i == 0 || f > max {
			max = f
		}
		sum += f
		count++
	}
	switch op {
	case algebra.AggSum:
		return dataframe.NewLiteralValue(formatNumber(sum), "http://www.w3.org/2001/XMLSchema#double", "")
	case algebra.AggAvg:
		if count == 0 {
			return dataframe.Unbound
		}
		return dataframe.NewLiteralValue(formatNumber(sum/float64(count)), "http://www.w3.org/2001/XMLSchema#double", "")
	case algebra.AggMin:
		return dataframe.NewLiteralValue(formatNumber(min), "http://www.w3.org/2001/XMLSchema#double", "")
	case algebra.AggMax:
		return dataframe.NewLiteralValue(formatNumber(max), "http://www.w3.org/2001/XMLSchema#double", "")
	}
	return dataframe.Unbound
}

func formatNumber(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}
