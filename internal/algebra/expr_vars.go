package algebra

import "github.com/chrontext/chrontext/internal/qcontext"

// FindAllUsedVariablesInExpression walks expr and returns every distinct
// variable it references. Grounded on query_processing::find_query_variables
// (original_source), used by the preparer to decide whether an
// ExpressionAs binding is a pure function of a VQ's own columns.
func FindAllUsedVariablesInExpression(expr Expression) []qcontext.Variable {
	seen := map[string]qcontext.Variable{}
	collectUsedVariables(expr, seen)
	out := make([]qcontext.Variable, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	return out
}

func collectUsedVariables(expr Expression, seen map[string]qcontext.Variable) {
	if expr.Variable != nil {
		seen[expr.Variable.Name] = *expr.Variable
	}
	if expr.Left != nil {
		collectUsedVariables(*expr.Left, seen)
	}
	if expr.Right != nil {
		collectUsedVariables(*expr.Right, seen)
	}
	if expr.Inner != nil {
		collectUsedVariables(*expr.Inner, seen)
	}
	for _, alt := range expr.InAlternatives {
		collectUsedVariables(alt, seen)
	}
	for _, c := range expr.CoalesceArgs {
		collectUsedVariables(c, seen)
	}
	for _, a := range expr.Args {
		collectUsedVariables(a, seen)
	}
	if expr.ExistsPattern != nil {
		collectUsedVariablesInPattern(*expr.ExistsPattern, seen)
	}
}

func collectUsedVariablesInPattern(p Pattern, seen map[string]qcontext.Variable) {
	for _, tp := range p.TriplePatterns {
		collectUsedVariablesInTerm(tp.Subject, seen)
		collectUsedVariablesInTerm(tp.Object, seen)
	}
	if p.PathPattern != nil {
		collectUsedVariablesInTerm(p.PathPattern.Subject, seen)
		collectUsedVariablesInTerm(p.PathPattern.Object, seen)
	}
	if p.Left != nil {
		collectUsedVariablesInPattern(*p.Left, seen)
	}
	if p.Right != nil {
		collectUsedVariablesInPattern(*p.Right, seen)
	}
	if p.Inner != nil {
		collectUsedVariablesInPattern(*p.Inner, seen)
	}
	if p.LeftJoinExpression != nil {
		collectUsedVariables(*p.LeftJoinExpression, seen)
	}
	if p.FilterExpression != nil {
		collectUsedVariables(*p.FilterExpression, seen)
	}
	if p.ExtendExpression != nil {
		collectUsedVariables(*p.ExtendExpression, seen)
	}
	for _, oe := range p.OrderExpressions {
		collectUsedVariables(oe.Expr, seen)
	}
	for _, gab := range p.GroupAggregates {
		if gab.Aggregate.Expr != nil {
			collectUsedVariables(*gab.Aggregate.Expr, seen)
		}
	}
	if p.ServiceInner != nil {
		collectUsedVariablesInPattern(*p.ServiceInner, seen)
	}
}

func collectUsedVariablesInTerm(t Term, seen map[string]qcontext.Variable) {
	if t.Variable != nil {
		seen[t.Variable.Name] = *t.Variable
	}
}
