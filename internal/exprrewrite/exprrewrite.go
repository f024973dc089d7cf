// Package exprrewrite implements the expression rewriter (spec.md §4.5):
// given an expression that mixes static and externally-bound variables,
// produce the best graph-query-side approximation of it along with how
// that approximation's truth value relates to the original.
package exprrewrite

import (
	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/preprocess"
	"github.com/chrontext/chrontext/internal/qcontext"
)

// Direction is which way the approximation is allowed to drift: a filter
// kept in the static query may only ever admit a superset (Relaxed) or
// subset (Constrained) of the original solutions, never silently change
// nothing when it in fact could not be evaluated (NoChange is reserved
// for expressions that carry no external variables at all and can be
// evaluated exactly as written).
type Direction int

const (
	DirectionRelaxed Direction = iota
	DirectionConstrained
)

// ChangeType records how the rewritten expression compares to its input.
type ChangeType int

const (
	ChangeNoChange ChangeType = iota
	ChangeRelaxed
	ChangeConstrained
)

func (c ChangeType) flip() ChangeType {
	switch c {
	case ChangeRelaxed:
		return ChangeConstrained
	case ChangeConstrained:
		return ChangeRelaxed
	default:
		return ChangeNoChange
	}
}

// Rewriter decides, per-variable, whether a value is available at
// graph-query evaluation time (constraints come from the preprocessor).
type Rewriter struct {
	constraints *preprocess.VariableConstraints
}

func New(constraints *preprocess.VariableConstraints) *Rewriter {
	return &Rewriter{constraints: constraints}
}

func (r *Rewriter) isExternal(v qcontext.Variable, ctx qcontext.Context) bool {
	return r.constraints.IsExternalAt(v, ctx)
}

// TryRewriteExpression attempts to approximate expr for evaluation in the
// graph-query side, given the allowed drift direction. It returns the
// rewritten expression (nil if no approximation at all is possible), the
// ChangeType describing the approximation's relationship to expr, and
// lostValue: true if evaluating the rewritten expression can no longer
// reconstruct the original expression's concrete value (only the
// filtering behavior survives).
func (r *Rewriter) TryRewriteExpression(expr algebra.Expression, ctx qcontext.Context, dir Direction) (*algebra.Expression, ChangeType, bool) {
	used := algebra.FindAllUsedVariablesInExpression(expr)
	hasExternal := false
	for _, v := range used {
		if r.isExternal(v, ctx) {
			hasExternal = true
			break
		}
	}
	if !hasExternal {
		return &expr, ChangeNoChange, false
	}

	switch expr.Kind {
	case algebra.ExprAnd:
		return r.rewriteBoolComposite(expr, ctx, dir, true)
	case algebra.ExprOr:
		return r.rewriteBoolComposite(expr, ctx, dir, false)
	case algebra.ExprNot:
		inner, change, lost := r.TryRewriteExpression(*expr.Inner, ctx, flipDirection(dir))
		if inner == nil {
			return nil, ChangeNoChange, true
		}
		notExpr := algebra.Expression{Kind: algebra.ExprNot, Inner: inner}
		return &notExpr, change.flip(), lost

	case algebra.ExprIn:
		return r.rewriteIn(expr, ctx, dir)

	case algebra.ExprEqual, algebra.ExprSameTerm, algebra.ExprGreater, algebra.ExprGreaterOrEqual,
		algebra.ExprLess, algebra.ExprLessOrEqual,
		algebra.ExprAdd, algebra.ExprSubtract, algebra.ExprMultiply, algebra.ExprDivide:
		return r.requireBothNoChange(expr, ctx)

	case algebra.ExprIf:
		return r.requireAllNoChange(expr, ctx, []*algebra.Expression{expr.Left, expr.Right, expr.Inner})

	case algebra.ExprCoalesce:
		ptrs := make([]*algebra.Expression, len(expr.CoalesceArgs))
		for i := range expr.CoalesceArgs {
			ptrs[i] = &expr.CoalesceArgs[i]
		}
		return r.requireAllNoChange(expr, ctx, ptrs)

	case algebra.ExprFunctionCall:
		ptrs := make([]*algebra.Expression, len(expr.Args))
		for i := range expr.Args {
			ptrs[i] = &expr.Args[i]
		}
		return r.requireAllNoChange(expr, ctx, ptrs)

	case algebra.ExprBound:
		// Bound(?external) cannot be rewritten without knowledge of the VQ
		// result; conservatively drop it.
		return nil, ChangeNoChange, true

	case algebra.ExprExists:
		// Exists subplans are handled by the combiner directly (spec.md §4.7),
		// never approximated here.
		return nil, ChangeNoChange, true

	default:
		return nil, ChangeNoChange, true
	}
}

func flipDirection(dir Direction) Direction {
	if dir == DirectionRelaxed {
		return DirectionConstrained
	}
	return DirectionRelaxed
}

// rewriteBoolComposite implements And/Or composition: And keeps both
// sides only if each side survives in a way that composes to the same
// overall drift (And = intersection: both sides relaxed keeps it
// relaxed; one constrained makes the whole expression drop that side's
// guarantee unless both are constrained). Or is the dual.
func (r *Rewriter) rewriteBoolComposite(expr algebra.Expression, ctx qcontext.Context, dir Direction, isAnd bool) (*algebra.Expression, ChangeType, bool) {
	left, lc, lLost := r.TryRewriteExpression(*expr.Left, ctx, dir)
	right, rc, rLost := r.TryRewriteExpression(*expr.Right, ctx, dir)

	// Dropping a conjunct admits more solutions; dropping a disjunct fewer.
	kind, dropped := algebra.ExprAnd, ChangeRelaxed
	if !isAnd {
		kind, dropped = algebra.ExprOr, ChangeConstrained
	}

	switch {
	case left != nil && right != nil:
		out := algebra.Expression{Kind: kind, Left: left, Right: right}
		return &out, combineChange(lc, rc, isAnd), lLost || rLost
	case left != nil && right == nil:
		if isAnd && dir == DirectionConstrained {
			return nil, ChangeNoChange, true
		}
		if !isAnd && dir == DirectionRelaxed {
			return nil, ChangeNoChange, true
		}
		return left, dropped, true
	case right != nil:
		if isAnd && dir == DirectionConstrained {
			return nil, ChangeNoChange, true
		}
		if !isAnd && dir == DirectionRelaxed {
			return nil, ChangeNoChange, true
		}
		return right, dropped, true
	default:
		return nil, ChangeNoChange, true
	}
}

func combineChange(a, b ChangeType, isAnd bool) ChangeType {
	if a == ChangeNoChange && b == ChangeNoChange {
		return ChangeNoChange
	}
	if a == b {
		return a
	}
	if isAnd {
		return ChangeConstrained
	}
	return ChangeRelaxed
}

// rewriteIn accepts a Constrained approximation if at least one RHS
// alternative survives unchanged: membership in a subset of the original
// alternatives is still a valid (tighter) filter.
func (r *Rewriter) rewriteIn(expr algebra.Expression, ctx qcontext.Context, dir Direction) (*algebra.Expression, ChangeType, bool) {
	left, lc, lLost := r.TryRewriteExpression(*expr.Left, ctx, dir)
	if left == nil || lc != ChangeNoChange {
		return nil, ChangeNoChange, true
	}
	var kept []algebra.Expression
	anyLost := lLost
	for _, alt := range expr.InAlternatives {
		rewritten, c, lost := r.TryRewriteExpression(alt, ctx, dir)
		if rewritten != nil && c == ChangeNoChange {
			kept = append(kept, *rewritten)
			anyLost = anyLost || lost
		}
	}
	if len(kept) == 0 {
		return nil, ChangeNoChange, true
	}
	out := algebra.Expression{Kind: algebra.ExprIn, Left: left, InAlternatives: kept}
	change := ChangeNoChange
	if len(kept) < len(expr.InAlternatives) {
		change = ChangeConstrained
	}
	return &out, change, anyLost || change != ChangeNoChange
}

// requireBothNoChange handles comparisons and arithmetic: both operands
// must be evaluable without approximation, since the comparison's truth
// value otherwise cannot be related to the original by a single
// ChangeType.
func (r *Rewriter) requireBothNoChange(expr algebra.Expression, ctx qcontext.Context) (*algebra.Expression, ChangeType, bool) {
	left, lc, _ := r.TryRewriteExpression(*expr.Left, ctx, DirectionRelaxed)
	right, rc, _ := r.TryRewriteExpression(*expr.Right, ctx, DirectionRelaxed)
	if left == nil || right == nil || lc != ChangeNoChange || rc != ChangeNoChange {
		return nil, ChangeNoChange, true
	}
	out := expr
	out.Left, out.Right = left, right
	return &out, ChangeNoChange, false
}

func (r *Rewriter) requireAllNoChange(expr algebra.Expression, ctx qcontext.Context, parts []*algebra.Expression) (*algebra.Expression, ChangeType, bool) {
	for _, p := range parts {
		if p == nil {
			continue
		}
		rewritten, c, _ := r.TryRewriteExpression(*p, ctx, DirectionRelaxed)
		if rewritten == nil || c != ChangeNoChange {
			return nil, ChangeNoChange, true
		}
		*p = *rewritten
	}
	return &expr, ChangeNoChange, false
}
