package vdb

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/chronerrors"
	"github.com/chrontext/chrontext/internal/dataframe"
	"github.com/chrontext/chrontext/internal/prepare"
	"github.com/chrontext/chrontext/internal/sqltranslate"
)

// PostgresAdapter queries time-series tables stored in PostgreSQL.
type PostgresAdapter struct {
	db     *sql.DB
	tables map[string]sqltranslate.Table
}

func NewPostgresAdapter(dsn string, tables map[string]sqltranslate.Table) (*PostgresAdapter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("postgres", err)
	}
	return &PostgresAdapter{db: db, tables: tables}, nil
}

func (a *PostgresAdapter) Name() string { return "postgres" }

func (a *PostgresAdapter) PushdownSettings() prepare.Capabilities {
	return prepare.DefaultCapabilities("postgres")
}

func (a *PostgresAdapter) Ping(ctx context.Context) error { return a.db.PingContext(ctx) }
func (a *PostgresAdapter) Close() error                   { return a.db.Close() }

func (a *PostgresAdapter) Query(ctx context.Context, vq *algebra.VirtualizedQuery) (*dataframe.SolutionMappings, error) {
	basic, filter, err := unwrapToBasic(vq)
	if err != nil {
		return nil, err
	}
	transformer := sqltranslate.New(sqltranslate.DialectPostgres, a.tables, true)
	built, err := transformer.TranslateBasic(basic, filter)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("postgres", err)
	}
	rows, err := a.db.QueryContext(ctx, built.SQL, built.Args...)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("postgres", err)
	}
	defer rows.Close()
	out, err := scanRows(rows, built.Columns)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("postgres", err)
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
