package vdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/trinodb/trino-go-client/trino"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/chronerrors"
	"github.com/chrontext/chrontext/internal/dataframe"
	"github.com/chrontext/chrontext/internal/prepare"
	"github.com/chrontext/chrontext/internal/sqltranslate"
)

// TrinoAdapter queries time-series tables through a Trino coordinator,
// letting a single VQ fan out across whatever catalogs Trino federates.
type TrinoAdapter struct {
	db     *sql.DB
	tables map[string]sqltranslate.Table
}

func NewTrinoAdapter(host string, port int, catalog string, tables map[string]sqltranslate.Table) (*TrinoAdapter, error) {
	dsn := fmt.Sprintf("http://trino@%s:%d?catalog=%s", host, port, catalog)
	db, err := sql.Open("trino", dsn)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("trino", err)
	}
	return &TrinoAdapter{db: db, tables: tables}, nil
}

func (a *TrinoAdapter) Name() string { return "trino" }

func (a *TrinoAdapter) PushdownSettings() prepare.Capabilities {
	return prepare.DefaultCapabilities("trino")
}

func (a *TrinoAdapter) Ping(ctx context.Context) error { return a.db.PingContext(ctx) }
func (a *TrinoAdapter) Close() error                   { return a.db.Close() }

func (a *TrinoAdapter) Query(ctx context.Context, vq *algebra.VirtualizedQuery) (*dataframe.SolutionMappings, error) {
	basic, filter, err := unwrapToBasic(vq)
	if err != nil {
		return nil, err
	}
	transformer := sqltranslate.New(sqltranslate.DialectTrino, a.tables, false)
	built, err := transformer.TranslateBasic(basic, filter)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("trino", err)
	}
	rows, err := a.db.QueryContext(ctx, built.SQL, built.Args...)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("trino", err)
	}
	defer rows.Close()
	out, err := scanRows(rows, built.Columns)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("trino", err)
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
