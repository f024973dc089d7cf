package dataframe

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/chronerrors"
)

// Eval re-interprets an algebra.Expression the rewriter could not push
// down, evaluating it against one row of a SolutionMappings table.
// Grounded on the expression-evaluation shape of
// _examples/original_source's timeseries_sql_rewrite/expression_rewrite.rs,
// transplanted from "emit SQL" to "evaluate directly" since this is the
// local re-evaluation fallback path (spec.md §4.8), not pushdown.
func Eval(expr algebra.Expression, row Row) (Value, error) {
	switch expr.Kind {
	case algebra.ExprNamedNode:
		return NewIRIValue(expr.NamedNode), nil
	case algebra.ExprLiteral:
		return NewLiteralValue(expr.Literal.Value, expr.Literal.Datatype, expr.Literal.Lang), nil
	case algebra.ExprVariable:
		return row[expr.Variable.Name], nil
	case algebra.ExprAnd:
		return evalBoolOp(expr, row, Tri.And)
	case algebra.ExprOr:
		return evalBoolOp(expr, row, Tri.Or)
	case algebra.ExprNot:
		inner, err := evalTri(*expr.Inner, row)
		if err != nil {
			return Unbound, err
		}
		return triValue(inner.Not()), nil
	case algebra.ExprEqual:
		return evalCompare(expr, row, func(cmp int) bool { return cmp == 0 }, true)
	case algebra.ExprSameTerm:
		l, err := Eval(*expr.Left, row)
		if err != nil {
			return Unbound, err
		}
		r, err := Eval(*expr.Right, row)
		if err != nil {
			return Unbound, err
		}
		for _, v := range []Value{l, r} {
			if v.NodeType == algebra.NodeTypeLiteral {
				return Unbound, chronerrors.NewDatatypeNotSupported(v.Datatype, "SameTerm")
			}
		}
		return triValue(triFromBool(l.SameTermAs(r))), nil
	case algebra.ExprGreater:
		return evalCompare(expr, row, func(cmp int) bool { return cmp > 0 }, false)
	case algebra.ExprGreaterOrEqual:
		return evalCompare(expr, row, func(cmp int) bool { return cmp >= 0 }, false)
	case algebra.ExprLess:
		return evalCompare(expr, row, func(cmp int) bool { return cmp < 0 }, false)
	case algebra.ExprLessOrEqual:
		return evalCompare(expr, row, func(cmp int) bool { return cmp <= 0 }, false)
	case algebra.ExprIn:
		left, err := Eval(*expr.Left, row)
		if err != nil {
			return Unbound, err
		}
		found := TriFalse
		for _, alt := range expr.InAlternatives {
			v, err := Eval(alt, row)
			if err != nil {
				continue
			}
			if left.SameTermAs(v) {
				found = TriTrue
				break
			}
		}
		return triValue(found), nil
	case algebra.ExprAdd, algebra.ExprSubtract, algebra.ExprMultiply, algebra.ExprDivide:
		return evalArith(expr, row)
	case algebra.ExprUnaryPlus:
		return Eval(*expr.Inner, row)
	case algebra.ExprUnaryMinus:
		v, err := Eval(*expr.Inner, row)
		if err != nil {
			return Unbound, err
		}
		f, ok := v.AsFloat()
		if !ok {
			return Unbound, fmt.Errorf("dataframe: unary minus on non-numeric value")
		}
		return NewLiteralValue(formatFloat(-f), v.Datatype, ""), nil
	case algebra.ExprIf:
		cond, err := evalTri(*expr.Inner, row)
		if err != nil {
			return Unbound, err
		}
		if cond.Bool() {
			return Eval(*expr.Left, row)
		}
		return Eval(*expr.Right, row)
	case algebra.ExprCoalesce:
		for _, arg := range expr.CoalesceArgs {
			v, err := Eval(arg, row)
			if err == nil && v.IsBound() {
				return v, nil
			}
		}
		return Unbound, nil
	case algebra.ExprBound:
		v, _ := Eval(*expr.Inner, row)
		return triValue(triFromBool(v.IsBound())), nil
	case algebra.ExprFunctionCall:
		return evalFunctionCall(expr, row)
	case algebra.ExprExists:
		return Unbound, fmt.Errorf("dataframe: Exists must be rewritten into a row-id join before evaluation")
	}
	return Unbound, fmt.Errorf("dataframe: unhandled expression kind %d", expr.Kind)
}

func triValue(t Tri) Value {
	switch t {
	case TriTrue:
		return NewLiteralValue("true", "http://www.w3.org/2001/XMLSchema#boolean", "")
	case TriFalse:
		return NewLiteralValue("false", "http://www.w3.org/2001/XMLSchema#boolean", "")
	default:
		return Unbound
	}
}

func evalTri(expr algebra.Expression, row Row) (Tri, error) {
	v, err := Eval(expr, row)
	if err != nil {
		return TriUnknown, err
	}
	if !v.IsBound() {
		return TriUnknown, nil
	}
	return triFromBool(v.Lexical == "true" || v.Lexical == "1"), nil
}

func evalBoolOp(expr algebra.Expression, row Row, op func(Tri, Tri) Tri) (Value, error) {
	l, lerr := evalTri(*expr.Left, row)
	if lerr != nil {
		l = TriUnknown
	}
	r, rerr := evalTri(*expr.Right, row)
	if rerr != nil {
		r = TriUnknown
	}
	return triValue(op(l, r)), nil
}

func evalCompare(expr algebra.Expression, row Row, pred func(int) bool, equalityOp bool) (Value, error) {
	l, err := Eval(*expr.Left, row)
	if err != nil {
		return Unbound, err
	}
	r, err := Eval(*expr.Right, row)
	if err != nil {
		return Unbound, err
	}
	if !l.IsBound() || !r.IsBound() {
		return Unbound, nil
	}
	cmp, ok := l.Compare(r)
	if !ok {
		if equalityOp {
			return triValue(triFromBool(l.SameTermAs(r))), nil
		}
		return Unbound, nil
	}
	return triValue(triFromBool(pred(cmp))), nil
}

func evalArith(expr algebra.Expression, row Row) (Value, error) {
	l, err := Eval(*expr.Left, row)
	if err != nil {
		return Unbound, err
	}
	r, err := Eval(*expr.Right, row)
	if err != nil {
		return Unbound, err
	}
	lf, ok1 := l.AsFloat()
	rf, ok2 := r.AsFloat()
	if !ok1 || !ok2 {
		return Unbound, fmt.Errorf("dataframe: arithmetic on non-numeric operand")
	}
	var result float64
	switch expr.Kind {
	case algebra.ExprAdd:
		result = lf + rf
	case algebra.ExprSubtract:
		result = lf - rf
	case algebra.ExprMultiply:
		result = lf * rf
	case algebra.ExprDivide:
		if rf == 0 {
			return Unbound, fmt.Errorf("dataframe: division by zero")
		}
		result = lf / rf
	}
	return NewLiteralValue(formatFloat(result), "http://www.w3.org/2001/XMLSchema#decimal", ""), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// evalFunctionCall handles the built-in function table plus the custom
// chrontext:* function IRIs (spec.md §4.8), grounded on the Custom(...)
// arm of expression_rewrite.rs's sparql_expression_to_sql_expression.
func evalFunctionCall(expr algebra.Expression, row Row) (Value, error) {
	if expr.Function == algebra.FuncCustom {
		return evalCustomFunction(expr, row)
	}

	args := make([]Value, len(expr.Args))
	for i, a := range expr.Args {
		v, err := Eval(a, row)
		if err != nil {
			return Unbound, err
		}
		args[i] = v
	}
	if len(args) == 0 {
		return Unbound, fmt.Errorf("dataframe: function call with no arguments")
	}

	switch expr.Function {
	case algebra.FuncYear, algebra.FuncMonth, algebra.FuncDay, algebra.FuncHours, algebra.FuncMinutes, algebra.FuncSeconds:
		t, ok := args[0].AsTime()
		if !ok {
			return Unbound, fmt.Errorf("dataframe: date part function on non-dateTime value")
		}
		var n int
		switch expr.Function {
		case algebra.FuncYear:
			n = t.Year()
		case algebra.FuncMonth:
			n = int(t.Month())
		case algebra.FuncDay:
			n = t.Day()
		case algebra.FuncHours:
			n = t.Hour()
		case algebra.FuncMinutes:
			n = t.Minute()
		case algebra.FuncSeconds:
			n = t.Second()
		}
		return NewLiteralValue(strconv.Itoa(n), "http://www.w3.org/2001/XMLSchema#integer", ""), nil
	case algebra.FuncAbs:
		f, ok := args[0].AsFloat()
		if !ok {
			return Unbound, fmt.Errorf("dataframe: abs on non-numeric value")
		}
		if f < 0 {
			f = -f
		}
		return NewLiteralValue(formatFloat(f), args[0].Datatype, ""), nil
	case algebra.FuncCeil, algebra.FuncFloor, algebra.FuncRound:
		f, ok := args[0].AsFloat()
		if !ok {
			return Unbound, fmt.Errorf("dataframe: rounding function on non-numeric value")
		}
		var n float64
		switch expr.Function {
		case algebra.FuncCeil:
			n = ceil(f)
		case algebra.FuncFloor:
			n = floor(f)
		case algebra.FuncRound:
			n = floor(f + 0.5)
		}
		return NewLiteralValue(formatFloat(n), "http://www.w3.org/2001/XMLSchema#integer", ""), nil
	case algebra.FuncConcat:
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(a.Lexical)
		}
		return NewLiteralValue(sb.String(), "http://www.w3.org/2001/XMLSchema#string", ""), nil
	}
	return Unbound, fmt.Errorf("dataframe: unsupported built-in function %d", expr.Function)
}

// evalCustomFunction handles the chrontext:* custom function IRIs used
// to bridge nanosecond-precision timestamps and SQL DATETIME columns.
func evalCustomFunction(expr algebra.Expression, row Row) (Value, error) {
	if expr.CustomIRI == algebra.CustomModulus {
		if len(expr.Args) != 2 {
			return Unbound, fmt.Errorf("dataframe: %s expects exactly two arguments", algebra.CustomModulus)
		}
		l, err := Eval(expr.Args[0], row)
		if err != nil {
			return Unbound, err
		}
		r, err := Eval(expr.Args[1], row)
		if err != nil {
			return Unbound, err
		}
		lf, ok1 := l.AsFloat()
		rf, ok2 := r.AsFloat()
		if !ok1 || !ok2 || rf == 0 {
			return Unbound, fmt.Errorf("dataframe: %s on non-numeric operand or zero divisor", algebra.CustomModulus)
		}
		mod := lf - floor(lf/rf)*rf
		return NewLiteralValue(formatFloat(mod), "http://www.w3.org/2001/XMLSchema#integer", ""), nil
	}

	if len(expr.Args) != 1 && !(expr.CustomIRI == algebra.CustomFloorDateTimeToSecondsInterval && len(expr.Args) == 2) {
		return Unbound, fmt.Errorf("dataframe: custom function %s expects exactly one argument", expr.CustomIRI)
	}
	v, err := Eval(expr.Args[0], row)
	if err != nil {
		return Unbound, err
	}

	switch expr.CustomIRI {
	case algebra.CustomDateTimeAsSeconds, algebra.CustomDateTimeAsNanos:
		t, ok := v.AsTime()
		if !ok {
			return Unbound, fmt.Errorf("dataframe: %s on non-dateTime value", expr.CustomIRI)
		}
		unit := int64(time.Second)
		if expr.CustomIRI == algebra.CustomDateTimeAsNanos {
			unit = 1
		}
		n := t.UnixNano() / unit
		return NewLiteralValue(strconv.FormatInt(n, 10), "http://www.w3.org/2001/XMLSchema#integer", ""), nil
	case algebra.CustomSecondsAsDateTime, algebra.CustomNanosAsDateTime:
		n, ok := v.AsFloat()
		if !ok {
			return Unbound, fmt.Errorf("dataframe: %s on non-numeric value", expr.CustomIRI)
		}
		var t time.Time
		if expr.CustomIRI == algebra.CustomSecondsAsDateTime {
			t = time.Unix(int64(n), 0).UTC()
		} else {
			t = time.Unix(0, int64(n)).UTC()
		}
		return NewLiteralValue(t.Format(time.RFC3339Nano), "http://www.w3.org/2001/XMLSchema#dateTime", ""), nil
	case algebra.CustomFloorDateTimeToSecondsInterval:
		t, ok := v.AsTime()
		if !ok {
			return Unbound, fmt.Errorf("dataframe: %s on non-dateTime value", algebra.CustomFloorDateTimeToSecondsInterval)
		}
		if len(expr.Args) < 2 {
			return Unbound, fmt.Errorf("dataframe: %s expects an interval argument", algebra.CustomFloorDateTimeToSecondsInterval)
		}
		iv, err := Eval(expr.Args[1], row)
		if err != nil {
			return Unbound, err
		}
		n, ok := iv.AsFloat()
		if !ok || n <= 0 {
			return Unbound, fmt.Errorf("dataframe: %s expects a positive numeric interval", algebra.CustomFloorDateTimeToSecondsInterval)
		}
		floored := int64(floor(float64(t.Unix())/n) * n)
		return NewLiteralValue(time.Unix(floored, 0).UTC().Format(time.RFC3339Nano), "http://www.w3.org/2001/XMLSchema#dateTime", ""), nil
	}
	return Unbound, fmt.Errorf("dataframe: unrecognized custom function %s", expr.CustomIRI)
}

func floor(f float64) float64 {
	i := int64(f)
	if f < 0 && float64(i) != f {
		i--
	}
	return float64(i)
}

func ceil(f float64) float64 {
	i := int64(f)
	if f > 0 && float64(i) != f {
		i++
	}
	return float64(i)
}
