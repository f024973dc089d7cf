package vdb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/chronerrors"
	"github.com/chrontext/chrontext/internal/dataframe"
	"github.com/chrontext/chrontext/internal/prepare"
	"github.com/chrontext/chrontext/internal/sqltranslate"
)

// DuckDBAdapter is the default in-process virtualized database: local
// Parquet/CSV-backed time-series tables queried through DuckDB. Adapted
// from the teacher's internal/adapters/duckdb.Adapter.
type DuckDBAdapter struct {
	mu     sync.RWMutex
	db     *sql.DB
	tables map[string]sqltranslate.Table
	closed bool
}

// Config configures the DuckDB virtualized database.
type Config struct {
	DatabasePath string
	Tables       map[string]sqltranslate.Table
}

func NewDuckDBAdapter(cfg Config) (*DuckDBAdapter, error) {
	path := cfg.DatabasePath
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("duckdb", err)
	}
	return &DuckDBAdapter{db: db, tables: cfg.Tables}, nil
}

func (a *DuckDBAdapter) Name() string { return "duckdb" }

func (a *DuckDBAdapter) PushdownSettings() prepare.Capabilities {
	return prepare.DefaultCapabilities("duckdb")
}

func (a *DuckDBAdapter) Ping(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return fmt.Errorf("duckdb: adapter is closed")
	}
	return a.db.PingContext(ctx)
}

func (a *DuckDBAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return a.db.Close()
}

// Query executes vq by lowering its Basic leaf to SQL and running it
// against the local DuckDB database. Filtered layers become the WHERE
// clause; ExpressionAs and Sliced layers are stripped without being
// lowered, so their expression and limit are not applied here; any other
// VQ kind (Grouped, GroupedBasic, InnerSynchronized) is rejected with an
// error.
func (a *DuckDBAdapter) Query(ctx context.Context, vq *algebra.VirtualizedQuery) (*dataframe.SolutionMappings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	basic, filter, err := unwrapToBasic(vq)
	if err != nil {
		return nil, err
	}

	transformer := sqltranslate.New(sqltranslate.DialectDuckDB, a.tables, true)
	built, err := transformer.TranslateBasic(basic, filter)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("duckdb", err)
	}

	rows, err := a.db.QueryContext(ctx, built.SQL, built.Args...)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("duckdb", err)
	}
	defer rows.Close()

	out, err := scanRows(rows, built.Columns)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("duckdb", err)
	}

	cols := make([]string, 0, len(out.RDFNodeTypes))
	for c := range out.RDFNodeTypes {
		cols = append(cols, c)
	}
	if err := vq.Validate(cols); err != nil {
		return nil, err
	}
	return out, nil
}

// unwrapToBasic strips Filtered/ExpressionAs/Sliced wrappers down to the
// leaf BasicVirtualizedQuery, collecting any filter expression found
// along the way (only one filter layer is expected per VQ in practice;
// a second Filtered layer is ANDed in).
func unwrapToBasic(vq *algebra.VirtualizedQuery) (*algebra.BasicVirtualizedQuery, *algebra.Expression, error) {
	var filter *algebra.Expression
	cur := vq
	for {
		switch cur.Kind {
		case algebra.VQBasic:
			return cur.Basic, filter, nil
		case algebra.VQFiltered:
			if filter == nil {
				filter = cur.FilteredExpression
			} else {
				e := algebra.Expression{Kind: algebra.ExprAnd, Left: filter, Right: cur.FilteredExpression}
				filter = &e
			}
			cur = cur.FilteredInner
		case algebra.VQExpressionAs:
			cur = cur.ExpressionAsInner
		case algebra.VQSliced:
			cur = cur.SlicedInner
		default:
			return nil, nil, fmt.Errorf("vdb: cannot lower VQ kind %d to a single basic query", cur.Kind)
		}
	}
}

func scanRows(rows *sql.Rows, columns []string) (*dataframe.SolutionMappings, error) {
	types := map[string]dataframe.RDFNodeTypeSet{}
	for _, c := range columns {
		types[c] = dataframe.RDFNodeTypeSet{Literal: true}
	}
	sm := dataframe.NewSolutionMappings(types)

	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := dataframe.Row{}
		for i, c := range columns {
			if vals[i] == nil {
				row[c] = dataframe.Unbound
				continue
			}
			row[c] = dataframe.NewLiteralValue(fmt.Sprintf("%v", vals[i]), "", "")
		}
		sm.Rows = append(sm.Rows, row)
	}
	return sm, rows.Err()
}
