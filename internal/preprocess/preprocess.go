// Package preprocess implements the first pipeline stage: blank-node
// renaming and variable-constraint inference (spec.md §4.2).
package preprocess

import (
	"fmt"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/qcontext"
)

// Virtualization predicate IRIs the preprocessor and rewriter recognize
// (spec.md §6.4), all under the chrontext namespace.
const (
	PredHasTimeseries = "https://github.com/DataTreehouse/chrontext#hasTimeseries"
	PredHasDataPoint  = "https://github.com/DataTreehouse/chrontext#hasDataPoint"
	PredHasValue      = "https://github.com/DataTreehouse/chrontext#hasValue"
	PredHasTimestamp  = "https://github.com/DataTreehouse/chrontext#hasTimestamp"
	PredHasExternalID = "https://github.com/DataTreehouse/chrontext#hasExternalId"
	PredHasDatatype   = "https://github.com/DataTreehouse/chrontext#hasDatatype"
	PredHasResource   = "https://github.com/DataTreehouse/chrontext#hasResource"
)

// virtualPredicateIRIs is the full set of virtualization predicates.
var virtualPredicateIRIs = map[string]struct{}{
	PredHasTimeseries: {},
	PredHasDataPoint:  {},
	PredHasValue:      {},
	PredHasTimestamp:  {},
	PredHasExternalID: {},
	PredHasDatatype:   {},
	PredHasResource:   {},
}

// firstLevelVirtualPredicateIRIs are the predicates whose subject is
// still context-store-bound (the entity the timeseries hangs off of),
// unlike hasDataPoint/hasValue/hasTimestamp whose subject is itself
// externally derived.
var firstLevelVirtualPredicateIRIs = map[string]struct{}{
	PredHasTimeseries: {},
	PredHasResource:   {},
}

func isVirtualPredicate(iri string) bool {
	_, ok := virtualPredicateIRIs[iri]
	return ok
}

func isFirstLevelVirtualPredicate(iri string) bool {
	_, ok := firstLevelVirtualPredicateIRIs[iri]
	return ok
}

// ConstraintKind classifies how a variable receives its binding.
type ConstraintKind int

const (
	ConstraintNone ConstraintKind = iota
	ConstraintExternal
	ConstraintExternallyDerived
)

// constraintKey identifies one (variable, context) pair in the map.
type constraintKey struct {
	variable string
	context  string
}

// VariableConstraints maps (Variable, Context) to its constraint kind.
// Grounded on original_source's VariableConstraints (preprocessing.rs,
// not kept verbatim — this is a from-scratch Go port of its semantics).
type VariableConstraints struct {
	m map[constraintKey]ConstraintKind
}

func NewVariableConstraints() *VariableConstraints {
	return &VariableConstraints{m: map[constraintKey]ConstraintKind{}}
}

func (c *VariableConstraints) Set(v qcontext.Variable, ctx qcontext.Context, kind ConstraintKind) {
	c.m[constraintKey{v.Name, ctx.AsStr()}] = kind
}

func (c *VariableConstraints) Get(v qcontext.Variable, ctx qcontext.Context) ConstraintKind {
	return c.m[constraintKey{v.Name, ctx.AsStr()}]
}

// IsExternalAt reports whether v was marked External/ExternallyDerived
// at exactly ctx (the common case the rewriter uses: check a variable's
// own binding context).
func (c *VariableConstraints) IsExternalAt(v qcontext.Variable, ctx qcontext.Context) bool {
	kind := c.Get(v, ctx)
	return kind == ConstraintExternal || kind == ConstraintExternallyDerived
}

// Preprocessor renames blank nodes and infers variable constraints.
type Preprocessor struct {
	blankCounter int
	blankNames   map[string]qcontext.Variable
}

func NewPreprocessor() *Preprocessor {
	return &Preprocessor{blankNames: map[string]qcontext.Variable{}}
}

// Run walks pattern and returns a copy with blanks renamed to variables,
// plus the inferred constraints; the input pattern is left unchanged. Expressions are never reordered or dropped (spec.md §4.2).
func (p *Preprocessor) Run(pattern *algebra.Pattern) (*algebra.Pattern, *VariableConstraints, error) {
	constraints := NewVariableConstraints()
	ctx := qcontext.Root()
	renamed, err := p.walkPattern(pattern, ctx, constraints)
	if err != nil {
		return nil, nil, err
	}
	return renamed, constraints, nil
}

func (p *Preprocessor) renameBlank(id string) qcontext.Variable {
	if v, ok := p.blankNames[id]; ok {
		return v
	}
	v := qcontext.NewVariable(fmt.Sprintf("blank_replacement_%d", p.blankCounter))
	p.blankCounter++
	p.blankNames[id] = v
	return v
}

func (p *Preprocessor) renameTerm(t algebra.Term) algebra.Term {
	if t.IsBlank() {
		v := p.renameBlank(t.Blank)
		return algebra.NewVariableTerm(v)
	}
	return t
}

func (p *Preprocessor) walkPattern(pat *algebra.Pattern, ctx qcontext.Context, constraints *VariableConstraints) (*algebra.Pattern, error) {
	if pat == nil {
		return nil, nil
	}
	out := *pat

	switch pat.Kind {
	case algebra.PatternBGP:
		triples := make([]algebra.TriplePattern, len(pat.TriplePatterns))
		for i, tp := range pat.TriplePatterns {
			triples[i] = algebra.TriplePattern{
				Subject:   p.renameTerm(tp.Subject),
				Predicate: tp.Predicate,
				Object:    p.renameTerm(tp.Object),
			}
		}
		out.TriplePatterns = triples
		p.inferBGPConstraints(triples, ctx, constraints)

	case algebra.PatternPath:
		if pat.PathPattern != nil {
			pp := *pat.PathPattern
			pp.Subject = p.renameTerm(pp.Subject)
			pp.Object = p.renameTerm(pp.Object)
			out.PathPattern = &pp
		}

	case algebra.PatternJoin, algebra.PatternUnion, algebra.PatternMinus:
		left, err := p.walkPattern(pat.Left, ctx.ExtensionWith(leftEntry(pat.Kind)), constraints)
		if err != nil {
			return nil, err
		}
		right, err := p.walkPattern(pat.Right, ctx.ExtensionWith(rightEntry(pat.Kind)), constraints)
		if err != nil {
			return nil, err
		}
		out.Left, out.Right = left, right

	case algebra.PatternLeftJoin:
		left, err := p.walkPattern(pat.Left, ctx.ExtensionWith(qcontext.LeftJoinLeftSide), constraints)
		if err != nil {
			return nil, err
		}
		right, err := p.walkPattern(pat.Right, ctx.ExtensionWith(qcontext.LeftJoinRightSide), constraints)
		if err != nil {
			return nil, err
		}
		out.Left, out.Right = left, right

	case algebra.PatternFilter:
		inner, err := p.walkPattern(pat.Inner, ctx.ExtensionWith(qcontext.FilterInner), constraints)
		if err != nil {
			return nil, err
		}
		out.Inner = inner

	case algebra.PatternExtend:
		inner, err := p.walkPattern(pat.Inner, ctx.ExtensionWith(qcontext.ExtendInner), constraints)
		if err != nil {
			return nil, err
		}
		out.Inner = inner
		if pat.ExtendExpression != nil && pat.ExtendVariable != nil {
			exprCtx := ctx.ExtensionWith(qcontext.ExtendExpression)
			used := algebra.FindAllUsedVariablesInExpression(*pat.ExtendExpression)
			for _, v := range used {
				if constraints.IsExternalAt(v, exprCtx) || constraints.isExternalAnywhereNamed(v) {
					constraints.Set(*pat.ExtendVariable, ctx, ConstraintExternallyDerived)
					break
				}
			}
		}

	case algebra.PatternGroup:
		inner, err := p.walkPattern(pat.Inner, ctx.ExtensionWith(qcontext.GroupInner), constraints)
		if err != nil {
			return nil, err
		}
		out.Inner = inner
		for i, gab := range pat.GroupAggregates {
			aggCtx := ctx.ExtensionWith(qcontext.GroupAggregation(int16(i)))
			if gab.Aggregate.Expr != nil {
				used := algebra.FindAllUsedVariablesInExpression(*gab.Aggregate.Expr)
				for _, v := range used {
					if constraints.isExternalAnywhereNamed(v) {
						constraints.Set(gab.Variable, aggCtx, ConstraintExternallyDerived)
						break
					}
				}
			}
		}

	case algebra.PatternOrderBy, algebra.PatternProject, algebra.PatternDistinct,
		algebra.PatternReduced, algebra.PatternSlice, algebra.PatternGraph:
		inner, err := p.walkPattern(pat.Inner, ctx.ExtensionWith(innerEntry(pat.Kind)), constraints)
		if err != nil {
			return nil, err
		}
		out.Inner = inner

	case algebra.PatternService:
		// Service is assumed static; pass through unchanged per spec.md §4.3.

	case algebra.PatternValues:
		// Pass through; VALUES bindings are never blank nodes in practice.
	}

	return &out, nil
}

// isExternalAnywhereNamed is a conservative helper used while walking:
// the full in-scope relation needs both endpoints' paths, which are not
// always available mid-walk, so constraint lookups during preprocessing
// check by variable name across every context recorded so far. The
// rewriter (§4.3) performs the precise context-scoped check once the
// full tree is available.
func (c *VariableConstraints) isExternalAnywhereNamed(v qcontext.Variable) bool {
	for key, kind := range c.m {
		if key.variable == v.Name && (kind == ConstraintExternal || kind == ConstraintExternallyDerived) {
			return true
		}
	}
	return false
}

func (p *Preprocessor) inferBGPConstraints(triples []algebra.TriplePattern, ctx qcontext.Context, constraints *VariableConstraints) {
	for _, tp := range triples {
		if !isVirtualPredicate(tp.Predicate) {
			continue
		}
		if tp.Object.IsVariable() {
			constraints.Set(*tp.Object.Variable, ctx, ConstraintExternal)
		}
		if !isFirstLevelVirtualPredicate(tp.Predicate) && tp.Subject.IsVariable() {
			constraints.Set(*tp.Subject.Variable, ctx, ConstraintExternal)
		}
	}
}

func leftEntry(kind algebra.PatternKind) qcontext.PathEntry {
	switch kind {
	case algebra.PatternJoin:
		return qcontext.JoinLeftSide
	case algebra.PatternUnion:
		return qcontext.UnionLeftSide
	case algebra.PatternMinus:
		return qcontext.MinusLeftSide
	}
	return qcontext.JoinLeftSide
}

func rightEntry(kind algebra.PatternKind) qcontext.PathEntry {
	switch kind {
	case algebra.PatternJoin:
		return qcontext.JoinRightSide
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
