package vdb

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/chronerrors"
	"github.com/chrontext/chrontext/internal/dataframe"
	"github.com/chrontext/chrontext/internal/prepare"
	"github.com/chrontext/chrontext/internal/sqltranslate"
)

// BigQueryAdapter queries time-series tables stored in Google BigQuery,
// grounded on the teacher's internal/adapters/bigquery.Adapter.
type BigQueryAdapter struct {
	client *bigquery.Client
	tables map[string]sqltranslate.Table
}

func NewBigQueryAdapter(ctx context.Context, projectID string, tables map[string]sqltranslate.Table) (*BigQueryAdapter, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("bigquery", err)
	}
	return &BigQueryAdapter{client: client, tables: tables}, nil
}

func (a *BigQueryAdapter) Name() string { return "bigquery" }

func (a *BigQueryAdapter) PushdownSettings() prepare.Capabilities {
	return prepare.DefaultCapabilities("bigquery")
}

func (a *BigQueryAdapter) Ping(ctx context.Context) error {
	q := a.client.Query("SELECT 1")
	it, err := q.Read(ctx)
	if err != nil {
		return chronerrors.NewVirtualizedDatabaseError("bigquery", err)
	}
	var row []bigquery.Value
	return it.Next(&row)
}

func (a *BigQueryAdapter) Close() error { return a.client.Close() }

func (a *BigQueryAdapter) Query(ctx context.Context, vq *algebra.VirtualizedQuery) (*dataframe.SolutionMappings, error) {
	basic, filter, err := unwrapToBasic(vq)
	if err != nil {
		return nil, err
	}
	transformer := sqltranslate.New(sqltranslate.DialectBigQuery, a.tables, true)
	built, err := transformer.TranslateBasic(basic, filter)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("bigquery", err)
	}

	q := a.client.Query(built.SQL)
	q.Parameters = make([]bigquery.QueryParameter, len(built.Args))
	for i, arg := range built.Args {
		q.Parameters[i] = bigquery.QueryParameter{Value: arg}
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, chronerrors.NewVirtualizedDatabaseError("bigquery", err)
	}

	types := map[string]dataframe.RDFNodeTypeSet{}
	for _, c := range built.Columns {
		types[c] = dataframe.RDFNodeTypeSet{Literal: true}
	}
	sm := dataframe.NewSolutionMappings(types)
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, chronerrors.NewVirtualizedDatabaseError("bigquery", err)
		}
		row := dataframe.Row{}
		for i, c := range built.Columns {
			if i >= len(values) || values[i] == nil {
				row[c] = dataframe.Unbound
				continue
			}
			row[c] = dataframe.NewLiteralValue(fmt.Sprintf("%v", values[i]), "", "")
		}
		sm.Rows = append(sm.Rows, row)
	}

	cols := make([]string, 0, len(sm.RDFNodeTypes))
	for c := range sm.RDFNodeTypes {
		cols = append(cols, c)
	}
	if err := vq.Validate(cols); err != nil {
		return nil, err
	}
	return sm, nil
}
