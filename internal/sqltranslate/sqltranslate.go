// Package sqltranslate lowers a VirtualizedQuery into dialect-specific
// SQL text for the warehouse backends (BigQuery, Postgres, Snowflake,
// Trino, Databricks, DuckDB). Grounded on the teacher's internal/sql
// package's string/regex-based rewriting idiom, since none of the
// example repos pull in a SQL query-builder library.
package sqltranslate

import (
	"fmt"
	"strings"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/chronerrors"
	"github.com/chrontext/chrontext/internal/dataframe"
)

// Dialect names the SQL quoting/placeholder conventions of a backend.
type Dialect int

const (
	DialectDuckDB Dialect = iota
	DialectPostgres
	DialectBigQuery
	DialectSnowflake
	DialectTrino
	DialectDatabricks
)

// Table describes the physical home of one resource's time series.
// Grounded on the original's TimeseriesTable (timeseries_sql_rewrite.rs).
type Table struct {
	Resource         string
	Schema           string
	Name             string
	ValueColumn      string
	TimestampColumn  string
	IdentifierColumn string
	YearColumn       string
	MonthColumn      string
	DayColumn        string
}

// Transformer lowers a BasicVirtualizedQuery (and the filters/expressions
// folded onto it) into one SELECT statement against its Table.
type Transformer struct {
	Dialect         Dialect
	Tables          map[string]Table // keyed by resource IRI
	PartitionSupport bool
}

func New(dialect Dialect, tables map[string]Table, partitionSupport bool) *Transformer {
	return &Transformer{Dialect: dialect, Tables: tables, PartitionSupport: partitionSupport}
}

func (t *Transformer) quote(ident string) string {
	switch t.Dialect {
	case DialectBigQuery:
		return "`" + ident + "`"
	default:
		return `"` + ident + `"`
	}
}

func (t *Transformer) placeholder(i int) string {
	switch t.Dialect {
	case DialectPostgres:
		return fmt.Sprintf("$%d", i)
	case DialectDuckDB, DialectBigQuery, DialectSnowflake, DialectTrino, DialectDatabricks:
		return "?"
	default:
		return "?"
	}
}

// Built is the result of lowering one VQ subtree: the SQL text, its
// positional arguments, and the column aliases the resulting row set
// exposes (so the caller can map driver columns back onto dataframe.Value).
type Built struct {
	SQL     string
	Args    []any
	Columns []string // aliases in select order; [identifier?, value, timestamp]
}

// TranslateBasic lowers a leaf BasicVirtualizedQuery into a SELECT
// statement, applying partition pruning when both the table declares
// partition columns and the query carries a timestamp upper/lower bound
// filter (spec.md §8 scenario 4).
func (t *Transformer) TranslateBasic(b *algebra.BasicVirtualizedQuery, filter *algebra.Expression) (*Built, error) {
	if b.Resource == nil {
		return nil, chronerrors.NewMissingResource("resource")
	}
	table, ok := t.Tables[*b.Resource]
	if !ok {
		alts := make([]string, 0, len(t.Tables))
		for r := range t.Tables {
			alts = append(alts, r)
		}
		return nil, fmt.Errorf("sqltranslate: resource %q not found among %v", *b.Resource, alts)
	}

	var cols []string
	var selectParts []string
	if b.IdentifierVariable != nil {
		selectParts = append(selectParts, t.quote(table.IdentifierColumn)+" AS "+t.quote(b.IdentifierVariable.Name))
		cols = append(cols, b.IdentifierVariable.Name)
	}
	if b.ValueVariable != nil {
		selectParts = append(selectParts, t.quote(table.ValueColumn)+" AS "+t.quote(b.ValueVariable.Variable.Name))
		cols = append(cols, b.ValueVariable.Variable.Name)
	}
	if b.TimestampVariable != nil {
		selectParts = append(selectParts, t.quote(table.TimestampColumn)+" AS "+t.quote(b.TimestampVariable.Variable.Name))
		cols = append(cols, b.TimestampVariable.Variable.Name)
	}

	fromName := t.quote(table.Name)
	if table.Schema != "" {
		fromName = t.quote(table.Schema) + "." + fromName
	}

	var where []string
	var args []any
	argN := 1

	if len(b.IDs) > 0 {
		placeholders := make([]string, len(b.IDs))
		for i, id := range b.IDs {
			placeholders[i] = t.placeholder(argN)
			args = append(args, id)
			argN++
		}
		where = append(where, fmt.Sprintf("%s IN (%s)", t.quote(table.IdentifierColumn), strings.Join(placeholders, ", ")))
	}

	if filter != nil {
		exprTransformer := &ExpressionTransformer{dialect: t.Dialect, table: table, placeholderStart: &argN}
		if b.ValueVariable != nil {
			exprTransformer.ValueVar = b.ValueVariable.Variable.Name
		}
		if b.TimestampVariable != nil {
			exprTransformer.TimestampVar = b.TimestampVariable.Variable.Name
		}
		if b.IdentifierVariable != nil {
			exprTransformer.IdentifierVar = b.IdentifierVariable.Name
		}
		clause, fargs, err := exprTransformer.Translate(*filter)
		if err != nil {
			return nil, err
		}
		where = append(where, clause)
		args = append(args, fargs...)

		if t.PartitionSupport && table.YearColumn != "" {
			if lo, hi, ok := extractTimestampBounds(*filter); ok {
				partitionClause := buildPartitionedTimestampConditions(t, table, lo, hi)
				if partitionClause != "" {
					where = append(where, partitionClause)
				}
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selectParts, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(fromName)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}

	return &Built{SQL: sb.String(), Args: args, Columns: cols}, nil
}

// RowsToSolutionMappings converts driver-returned rows into a
// SolutionMappings table, typing each column per the VQ's variable kinds.
func RowsToSolutionMappings(columns []string, rows [][]any, datatypes map[string]string) (*dataframe.SolutionMappings, error) {
	types := map[string]dataframe.RDFNodeTypeSet{}
	for _, c := range columns {
		types[c] = dataframe.RDFNodeTypeSet{Literal: true}
	}
	sm := dataframe.NewSolutionMappings(types)
	for _, row := range rows {
		r := dataframe.Row{}
		for i, c := range columns {
			if i >= len(row) || row[i] == nil {
				r[c] = dataframe.Unbound
				continue
			}
			dt := datatypes[c]
			r[c] = dataframe.NewLiteralValue(fmt.Sprintf("%v", row[i]), dt, "")
		}
		sm.Rows = append(sm.Rows, r)
	}
	return sm, nil
}
