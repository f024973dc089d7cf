package vdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/snowflakedb/gosnowflake"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/chronerrors"
	"github.com/chrontext/chrontext/internal/dataframe"
	"github.com/chrontext/chrontext/internal/prepare"
	"github.com/chrontext/chrontext/internal/sqltranslate"
)

// SnowflakeAdapter queries time-series tables stored in Snowflake.
type SnowflakeAdapter struct {
	db     *sql.DB
	tables map[string]sqltranslate.Table
}

// SnowflakeConfig mirrors the connection fields gosnowflake.Config
// exposes; built into a DSN via gosnowflake.DSN.
type SnowflakeConfig struct {
	Account   string
	User      string
	Password  string
	Warehouse string
	Database  string
	Schema    string
}

func NewSnowflakeAdapter(cfg SnowflakeConfig, tables map[string]sqltranslate.Table) (*SnowflakeAdapter, error) {
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s?warehouse=%s", cfg.User, cfg.Password, cfg.Account, cfg.Database, cfg.Schema, cfg.Warehouse)
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("snowflake", err)
	}
	return &SnowflakeAdapter{db: db, tables: tables}, nil
}

func (a *SnowflakeAdapter) Name() string { return "snowflake" }

func (a *SnowflakeAdapter) PushdownSettings() prepare.Capabilities {
	return prepare.DefaultCapabilities("snowflake")
}

func (a *SnowflakeAdapter) Ping(ctx context.Context) error { return a.db.PingContext(ctx) }
func (a *SnowflakeAdapter) Close() error                   { return a.db.Close() }

func (a *SnowflakeAdapter) Query(ctx context.Context, vq *algebra.VirtualizedQuery) (*dataframe.SolutionMappings, error) {
	basic, filter, err := unwrapToBasic(vq)
	if err != nil {
		return nil, err
	}
	transformer := sqltranslate.New(sqltranslate.DialectSnowflake, a.tables, true)
	built, err := transformer.TranslateBasic(basic, filter)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("snowflake", err)
	}
	rows, err := a.db.QueryContext(ctx, built.SQL, built.Args...)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("snowflake", err)
	}
	defer rows.Close()
	out, err := scanRows(rows, built.Columns)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("snowflake", err)
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
