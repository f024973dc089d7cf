package sqltranslate

import (
	"fmt"
	"time"

	"github.com/chrontext/chrontext/internal/algebra"
)

// extractTimestampBounds walks filter looking for comparisons against a
// dateTime literal and returns the tightest [lo, hi] bound it can derive.
// A bound side is zero-valued when the filter doesn't constrain it.
// Grounded on the original's partition-pruning entry point
// (add_partitioned_timestamp_conditions), simplified to the single-sided
// and range-AND cases spec.md §8 scenario 4 exercises.
func extractTimestampBounds(filter algebra.Expression) (lo, hi time.Time, ok bool) {
	switch filter.Kind {
	case algebra.ExprAnd:
		lLo, lHi, lOk := extractTimestampBounds(*filter.Left)
		rLo, rHi, rOk := extractTimestampBounds(*filter.Right)
		if !lOk && !rOk {
			return time.Time{}, time.Time{}, false
		}
		lo, hi = mergeBounds(lLo, lHi, lOk, rLo, rHi, rOk)
		return lo, hi, true

	case algebra.ExprLessOrEqual, algebra.ExprLess:
		if t, isLit := literalTime(*filter.Right); isLit {
			return time.Time{}, t, true
		}
	case algebra.ExprGreaterOrEqual, algebra.ExprGreater:
		if t, isLit := literalTime(*filter.Right); isLit {
			return t, time.Time{}, true
		}
	}
	return time.Time{}, time.Time{}, false
}

func mergeBounds(lLo, lHi time.Time, lOk bool, rLo, rHi time.Time, rOk bool) (lo, hi time.Time) {
	if lOk && !lLo.IsZero() {
		lo = lLo
	}
	if rOk && !rLo.IsZero() && (lo.IsZero() || rLo.After(lo)) {
		lo = rLo
	}
	if lOk && !lHi.IsZero() {
		hi = lHi
	}
	if rOk && !rHi.IsZero() && (hi.IsZero() || rHi.Before(hi)) {
		hi = rHi
	}
	return
}

func literalTime(expr algebra.Expression) (time.Time, bool) {
	if expr.Kind != algebra.ExprLiteral || expr.Literal == nil {
		return time.Time{}, false
	}
	if expr.Literal.Datatype != "http://www.w3.org/2001/XMLSchema#dateTime" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, expr.Literal.Value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// buildPartitionedTimestampConditions builds the year/month/day partition
// pruning clause for the range [lo, hi], inclusive of both end days. An
// unset bound (the zero time) is treated as unconstrained on that side.
func buildPartitionedTimestampConditions(t *Transformer, table Table, lo, hi time.Time) string {
	var clauses []string
	if !lo.IsZero() {
		clauses = append(clauses, lowerBoundClause(t, table, lo))
	}
	if !hi.IsZero() {
		clauses = append(clauses, upperBoundClause(t, table, hi))
	}
	if len(clauses) == 0 {
		return ""
	}
	out := clauses[0]
	for _, c := range clauses[1:] {
		out = fmt.Sprintf("(%s AND %s)", out, c)
	}
	return out
}

// lowerBoundClause builds "partition columns place this row at or after lo",
// i.e. year > Y OR (year = Y AND (month > M OR (month = M AND day >= D))).
func lowerBoundClause(t *Transformer, table Table, lo time.Time) string {
	y, m, d := lo.Year(), int(lo.Month()), lo.Day()
	yearCol, monthCol, dayCol := t.quote(table.YearColumn), t.quote(table.MonthColumn), t.quote(table.DayColumn)
	dayPart := fmt.Sprintf("(%s = %d AND %s >= %d)", monthCol, m, dayCol, d)
	monthPart := fmt.Sprintf("(%s > %d OR %s)", monthCol, m, dayPart)
	return fmt.Sprintf("(%s > %d OR (%s = %d AND %s))", yearCol, y, yearCol, y, monthPart)
}

// upperBoundClause is the mirror image for "at or before hi".
func upperBoundClause(t *Transformer, table Table, hi time.Time) string {
	y, m, d := hi.Year(), int(hi.Month()), hi.Day()
	yearCol, monthCol, dayCol := t.quote(table.YearColumn), t.quote(table.MonthColumn), t.quote(table.DayColumn)
	dayPart := fmt.Sprintf("(%s = %d AND %s <= %d)", monthCol, m, dayCol, d)
	monthPart := fmt.Sprintf("(%s < %d OR %s)", monthCol, m, dayPart)
	return fmt.Sprintf("(%s < %d OR (%s = %d AND %s))", yearCol, y, yearCol, y, monthPart)
}
