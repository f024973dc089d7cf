package vdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/databricks/databricks-sql-go"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/chronerrors"
	"github.com/chrontext/chrontext/internal/dataframe"
	"github.com/chrontext/chrontext/internal/prepare"
	"github.com/chrontext/chrontext/internal/sqltranslate"
)

// DatabricksAdapter queries time-series Delta tables through a
// Databricks SQL warehouse. Not part of the teacher's stack; pulled in
// because spec.md's domain stack wiring names Databricks as a supported
// virtualization backend and the teacher's other warehouse adapters all
// follow this same database/sql shape.
type DatabricksAdapter struct {
	db     *sql.DB
	tables map[string]sqltranslate.Table
}

func NewDatabricksAdapter(workspaceURL, httpPath, accessToken string, tables map[string]sqltranslate.Table) (*DatabricksAdapter, error) {
	dsn := fmt.Sprintf("token:%s@%s:443%s", accessToken, workspaceURL, httpPath)
	db, err := sql.Open("databricks", dsn)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("databricks", err)
	}
	return &DatabricksAdapter{db: db, tables: tables}, nil
}

func (a *DatabricksAdapter) Name() string { return "databricks" }

func (a *DatabricksAdapter) PushdownSettings() prepare.Capabilities {
	return prepare.DefaultCapabilities("databricks")
}

func (a *DatabricksAdapter) Ping(ctx context.Context) error { return a.db.PingContext(ctx) }
func (a *DatabricksAdapter) Close() error                   { return a.db.Close() }

func (a *DatabricksAdapter) Query(ctx context.Context, vq *algebra.VirtualizedQuery) (*dataframe.SolutionMappings, error) {
	basic, filter, err := unwrapToBasic(vq)
	if err != nil {
		return nil, err
	}
	transformer := sqltranslate.New(sqltranslate.DialectDatabricks, a.tables, true)
	built, err := transformer.TranslateBasic(basic, filter)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("databricks", err)
	}
	rows, err := a.db.QueryContext(ctx, built.SQL, built.Args...)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("databricks", err)
	}
	defer rows.Close()
	out, err := scanRows(rows, built.Columns)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("databricks", err)
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
