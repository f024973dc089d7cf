package contextstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chrontext/chrontext/internal/algebra"
)

// ToSPARQL renders a residual (virtualization-predicate-free) Pattern as
// a SELECT * query text, for submission to an HTTP context store. Only
// the pattern shapes the rewrite stage can actually produce appear here;
// it is not a general SPARQL 1.1 algebra serializer.
func ToSPARQL(pat *algebra.Pattern) string {
	var b strings.Builder
	b.WriteString("SELECT * WHERE {\n")
	writePattern(&b, pat, 1)
	b.WriteString("}")
	return b.String()
}

func indent(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
}

func writePattern(b *strings.Builder, pat *algebra.Pattern, depth int) {
	if pat == nil {
		return
	}
	switch pat.Kind {
	case algebra.PatternBGP:
		for _, tp := range pat.TriplePatterns {
			indent(b, depth)
			fmt.Fprintf(b, "%s %s %s .\n", termSPARQL(tp.Subject), predicateSPARQL(tp.Predicate), termSPARQL(tp.Object))
		}

	case algebra.PatternPath:
		if pat.PathPattern != nil {
			indent(b, depth)
			fmt.Fprintf(b, "%s %s %s .\n", termSPARQL(pat.PathPattern.Subject), pat.PathPattern.Path, termSPARQL(pat.PathPattern.Object))
		}

	case algebra.PatternJoin:
		writePattern(b, pat.Left, depth)
		writePattern(b, pat.Right, depth)

	case algebra.PatternUnion:
		indent(b, depth)
		b.WriteString("{\n")
		writePattern(b, pat.Left, depth+1)
		indent(b, depth)
		b.WriteString("} UNION {\n")
		writePattern(b, pat.Right, depth+1)
		indent(b, depth)
		b.WriteString("}\n")

	case algebra.PatternMinus:
		writePattern(b, pat.Left, depth)
		indent(b, depth)
		b.WriteString("MINUS {\n")
		writePattern(b, pat.Right, depth+1)
		indent(b, depth)
		b.WriteString("}\n")

	case algebra.PatternLeftJoin:
		writePattern(b, pat.Left, depth)
		indent(b, depth)
		b.WriteString("OPTIONAL {\n")
		writePattern(b, pat.Right, depth+1)
		if pat.LeftJoinExpression != nil {
			indent(b, depth+1)
			fmt.Fprintf(b, "FILTER(%s)\n", exprSPARQL(*pat.LeftJoinExpression))
		}
		indent(b, depth)
		b.WriteString("}\n")

	case algebra.PatternFilter:
		writePattern(b, pat.Inner, depth)
		if pat.FilterExpression != nil {
			indent(b, depth)
			fmt.Fprintf(b, "FILTER(%s)\n", exprSPARQL(*pat.FilterExpression))
		}

	case algebra.PatternExtend:
		writePattern(b, pat.Inner, depth)
		if pat.ExtendExpression != nil && pat.ExtendVariable != nil {
			indent(b, depth)
			fmt.Fprintf(b, "BIND(%s AS ?%s)\n", exprSPARQL(*pat.ExtendExpression), pat.ExtendVariable.Name)
		}

	case algebra.PatternGraph:
		indent(b, depth)
		fmt.Fprintf(b, "GRAPH %s {\n", termSPARQL(pat.GraphName))
		writePattern(b, pat.Inner, depth+1)
		indent(b, depth)
		b.WriteString("}\n")

	case algebra.PatternOrderBy, algebra.PatternProject, algebra.PatternDistinct,
		algebra.PatternReduced, algebra.PatternSlice, algebra.PatternGroup:
		writePattern(b, pat.Inner, depth)

	case algebra.PatternService:
		indent(b, depth)
		fmt.Fprintf(b, "SERVICE %s {\n", termSPARQL(pat.ServiceName))
		writePattern(b, pat.ServiceInner, depth+1)
		indent(b, depth)
		b.WriteString("}\n")

	case algebra.PatternValues:
		indent(b, depth)
		b.WriteString("VALUES (")
		for _, v := range pat.ValuesVariables {
			fmt.Fprintf(b, "?%s ", v.Name)
		}
		b.WriteString(") {\n")
		for _, row := range pat.ValuesBindings {
			indent(b, depth+1)
			b.WriteString("(")
			for _, t := range row {
				if t == nil {
					b.WriteString("UNDEF ")
				} else {
					fmt.Fprintf(b, "%s ", termSPARQL(*t))
				}
			}
			b.WriteString(")\n")
		}
		indent(b, depth)
		b.WriteString("}\n")
	}
}

func predicateSPARQL(iri string) string {
	return "<" + iri + ">"
}

func termSPARQL(t algebra.Term) string {
	switch {
	case t.IsVariable():
		return "?" + t.Variable.Name
	case t.IsBlank():
		return "_:" + t.Blank
	case t.Literal != nil:
		lit := strconv.Quote(t.Literal.Value)
		if t.Literal.Lang != "" {
			return lit + "@" + t.Literal.Lang
		}
		if t.Literal.Datatype != "" {
			return lit + "^^<" + t.Literal.Datatype + ">"
		}
		return lit
	default:
		return "<" + t.IRI + ">"
	}
}

// exprSPARQL renders an expression tree as SPARQL filter syntax. Only
// the operators the combiner can leave un-pushed (spec.md §4.8) need a
// textual form here; FunctionCall/Custom IRIs serialize as their IRI
// applied like a function, matching SPARQL's extension-function syntax.
func exprSPARQL(e algebra.Expression) string {
	switch e.Kind {
	case algebra.ExprNamedNode:
		return "<" + e.NamedNode + ">"
	case algebra.ExprLiteral:
		return termSPARQL(algebra.NewLiteralTerm(*e.Literal))
	case algebra.ExprVariable:
		return "?" + e.Variable.Name
	case algebra.ExprAnd:
		return fmt.Sprintf("(%s && %s)", exprSPARQL(*e.Left), exprSPARQL(*e.Right))
	case algebra.ExprOr:
		return fmt.Sprintf("(%s || %s)", exprSPARQL(*e.Left), exprSPARQL(*e.Right))
	case algebra.ExprNot:
		return fmt.Sprintf("!(%s)", exprSPARQL(*e.Inner))
	case algebra.ExprEqual:
		return fmt.Sprintf("(%s = %s)", exprSPARQL(*e.Left), exprSPARQL(*e.Right))
	case algebra.ExprSameTerm:
		return fmt.Sprintf("sameTerm(%s, %s)", exprSPARQL(*e.Left), exprSPARQL(*e.Right))
	case algebra.ExprGreater:
		return fmt.Sprintf("(%s > %s)", exprSPARQL(*e.Left), exprSPARQL(*e.Right))
	case algebra.ExprGreaterOrEqual:
		return fmt.Sprintf("(%s >= %s)", exprSPARQL(*e.Left), exprSPARQL(*e.Right))
	case algebra.ExprLess:
		return fmt.Sprintf("(%s < %s)", exprSPARQL(*e.Left), exprSPARQL(*e.Right))
	case algebra.ExprLessOrEqual:
		return fmt.Sprintf("(%s <= %s)", exprSPARQL(*e.Left), exprSPARQL(*e.Right))
	case algebra.ExprIn:
		parts := make([]string, len(e.InAlternatives))
		for i, alt := range e.InAlternatives {
			parts[i] = exprSPARQL(alt)
		}
		return fmt.Sprintf("(%s IN (%s))", exprSPARQL(*e.Left), strings.Join(parts, ", "))
	case algebra.ExprAdd:
		return fmt.Sprintf("(%s + %s)", exprSPARQL(*e.Left), exprSPARQL(*e.Right))
	case algebra.ExprSubtract:
		return fmt.Sprintf("(%s - %s)", exprSPARQL(*e.Left), exprSPARQL(*e.Right))
	case algebra.ExprMultiply:
		return fmt.Sprintf("(%s * %s)", exprSPARQL(*e.Left), exprSPARQL(*e.Right))
	case algebra.ExprDivide:
		return fmt.Sprintf("(%s / %s)", exprSPARQL(*e.Left), exprSPARQL(*e.Right))
	case algebra.ExprUnaryPlus:
		return fmt.Sprintf("+(%s)", exprSPARQL(*e.Inner))
	case algebra.ExprUnaryMinus:
		return fmt.Sprintf("-(%s)", exprSPARQL(*e.Inner))
	case algebra.ExprIf:
		return fmt.Sprintf("IF(%s, %s, %s)", exprSPARQL(*e.Inner), exprSPARQL(*e.Left), exprSPARQL(*e.Right))
	case algebra.ExprCoalesce:
		parts := make([]string, len(e.CoalesceArgs))
		for i, a := range e.CoalesceArgs {
			parts[i] = exprSPARQL(a)
		}
		return fmt.Sprintf("COALESCE(%s)", strings.Join(parts, ", "))
	case algebra.ExprBound:
		return fmt.Sprintf("BOUND(%s)", exprSPARQL(*e.Inner))
	case algebra.ExprExists:
		return "EXISTS { }"
	case algebra.ExprFunctionCall:
		parts := make([]string, len(e.Args))
		for i, a := range e.Args {
			parts[i] = exprSPARQL(a)
		}
		name := e.CustomIRI
		if name == "" {
			name = fmt.Sprintf("<builtin-%d>", e.Function)
		} else {
			name = "<" + name + ">"
		}
		return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
	}
	return ""
}
