package sqltranslate

import (
	"fmt"
	"strings"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/chronerrors"
)

// ExpressionTransformer lowers an algebra.Expression (restricted to the
// operators the rewriter could push all the way down to a VQ filter)
// into a parameterized SQL boolean clause. Grounded on the original's
// SPARQLToSQLExpressionTransformer (expression_rewrite.rs).
type ExpressionTransformer struct {
	dialect          Dialect
	table            Table
	placeholderStart *int
	args             []any

	// ValueVar/TimestampVar/IdentifierVar are the SPARQL variable names
	// bound to this table's value/timestamp/identifier columns, so a
	// Variable expression node can be mapped back to its physical column.
	ValueVar      string
	TimestampVar  string
	IdentifierVar string
}

func (e *ExpressionTransformer) quote(ident string) string {
	if e.dialect == DialectBigQuery {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}

func (e *ExpressionTransformer) next() string {
	i := *e.placeholderStart
	*e.placeholderStart++
	if e.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// Translate converts expr into a SQL clause plus its positional args.
func (e *ExpressionTransformer) Translate(expr algebra.Expression) (string, []any, error) {
	e.args = nil
	clause, err := e.walk(expr)
	if err != nil {
		return "", nil, err
	}
	return clause, e.args, nil
}

func (e *ExpressionTransformer) columnFor(name string) string {
	switch name {
	case e.ValueVar:
		return e.quote(e.table.ValueColumn)
	case e.TimestampVar:
		return e.quote(e.table.TimestampColumn)
	case e.IdentifierVar:
		return e.quote(e.table.IdentifierColumn)
	default:
		return e.quote(name)
	}
}

func (e *ExpressionTransformer) walk(expr algebra.Expression) (string, error) {
	switch expr.Kind {
	case algebra.ExprAnd:
		l, err := e.walk(*expr.Left)
		if err != nil {
			return "", err
		}
		r, err := e.walk(*expr.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s AND %s)", l, r), nil

	case algebra.ExprOr:
		l, err := e.walk(*expr.Left)
		if err != nil {
			return "", err
		}
		r, err := e.walk(*expr.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s OR %s)", l, r), nil

	case algebra.ExprNot:
		inner, err := e.walk(*expr.Inner)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT (%s)", inner), nil

	case algebra.ExprVariable:
		return e.columnFor(expr.Variable.Name), nil

	case algebra.ExprLiteral:
		ph := e.next()
		v, err := literalGoValue(*expr.Literal)
		if err != nil {
			return "", err
		}
		e.args = append(e.args, v)
		return ph, nil

	case algebra.ExprEqual:
		return e.binOp(expr, "=")
	case algebra.ExprSameTerm:
		return "", chronerrors.NewDatatypeNotSupported("literal", "SameTerm")
	case algebra.ExprGreater:
		return e.binOp(expr, ">")
	case algebra.ExprGreaterOrEqual:
		return e.binOp(expr, ">=")
	case algebra.ExprLess:
		return e.binOp(expr, "<")
	case algebra.ExprLessOrEqual:
		return e.binOp(expr, "<=")
	case algebra.ExprAdd:
		return e.binOp(expr, "+")
	case algebra.ExprSubtract:
		return e.binOp(expr, "-")
	case algebra.ExprMultiply:
		return e.binOp(expr, "*")
	case algebra.ExprDivide:
		return e.binOp(expr, "/")

	case algebra.ExprIn:
		left, err := e.walk(*expr.Left)
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(expr.InAlternatives))
		for _, alt := range expr.InAlternatives {
			if alt.Kind != algebra.ExprLiteral {
				return "", chronerrors.NewDatatypeNotSupported("non-literal", "IN")
			}
			s, err := e.walk(alt)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return fmt.Sprintf("%s IN (%s)", left, strings.Join(parts, ", ")), nil

	default:
		return "", fmt.Errorf("sqltranslate: expression kind %d not supported in pushed-down filters", expr.Kind)
	}
}

func (e *ExpressionTransformer) binOp(expr algebra.Expression, op string) (string, error) {
	l, err := e.walk(*expr.Left)
	if err != nil {
		return "", err
	}
	r, err := e.walk(*expr.Right)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s %s)", l, op, r), nil
}

// literalGoValue converts a typed RDF literal into the Go value its
// native SQL driver expects, per the datatype table in the original's
// sparql_expression_to_sql_expression match arm.
func literalGoValue(l algebra.Literal) (any, error) {
	switch l.Datatype {
	case "http://www.w3.org/2001/XMLSchema#boolean":
		return l.Value == "true", nil
	case "http://www.w3.org/2001/XMLSchema#double", "http://www.w3.org/2001/XMLSchema#decimal", "http://www.w3.org/2001/XMLSchema#float":
		var f float64
		if _, err := fmt.Sscanf(l.Value, "%g", &f); err != nil {
			return nil, chronerrors.NewUnknownDatatype(l.Datatype)
		}
		return f, nil
	case "http://www.w3.org/2001/XMLSchema#integer", "http://www.w3.org/2001/XMLSchema#long",
		"http://www.w3.org/2001/XMLSchema#int", "http://www.w3.org/2001/XMLSchema#unsignedInt",
		"http://www.w3.org/2001/XMLSchema#unsignedLong":
		var i int64
		if _, err := fmt.Sscanf(l.Value, "%d", &i); err != nil {
			return nil, chronerrors.NewUnknownDatatype(l.Datatype)
		}
		return i, nil
	case "http://www.w3.org/2001/XMLSchema#string":
		return l.Value, nil
	case "http://www.w3.org/2001/XMLSchema#dateTime":
		return l.Value, nil
	default:
		return nil, chronerrors.NewUnknownDatatype(l.Datatype)
	}
}
