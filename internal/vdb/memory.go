package vdb

import (
	"context"
	"sort"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/dataframe"
	"github.com/chrontext/chrontext/internal/prepare"
)

// MemoryAdapter is a fixture-backed VirtualizedDatabase used in tests in
// place of a real warehouse connection. Resources map directly to a
// fixed table of (identifier, value, timestamp) rows; Query applies the
// same Basic/Filtered/ExpressionAs/Sliced unwrapping the SQL adapters
// use, but evaluates the filter expression in-process with dataframe.Eval
// instead of lowering it to a dialect string.
type MemoryAdapter struct {
	name   string
	caps   prepare.Capabilities
	tables map[string][]MemoryPoint
}

// MemoryPoint is one (identifier, value, timestamp) fact for a resource.
type MemoryPoint struct {
	Identifier string
	Value      dataframe.Value
	Timestamp  dataframe.Value
}

func NewMemoryAdapter(name string, caps prepare.Capabilities) *MemoryAdapter {
	return &MemoryAdapter{name: name, caps: caps, tables: map[string][]MemoryPoint{}}
}

// Seed registers the fixture rows backing a resource.
func (a *MemoryAdapter) Seed(resource string, points []MemoryPoint) {
	a.tables[resource] = points
}

func (a *MemoryAdapter) Name() string                            { return a.name }
func (a *MemoryAdapter) PushdownSettings() prepare.Capabilities   { return a.caps }
func (a *MemoryAdapter) Ping(ctx context.Context) error           { return ctx.Err() }
func (a *MemoryAdapter) Close() error                             { return nil }

func (a *MemoryAdapter) Query(ctx context.Context, vq *algebra.VirtualizedQuery) (*dataframe.SolutionMappings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	basic, filter, err := unwrapToBasic(vq)
	if err != nil {
		return nil, err
	}

	types := map[string]dataframe.RDFNodeTypeSet{}
	if basic.IdentifierVariable != nil {
		types[basic.IdentifierVariable.Name] = dataframe.RDFNodeTypeSet{IRI: true}
	}
	if basic.ValueVariable != nil {
		types[basic.ValueVariable.Variable.Name] = dataframe.RDFNodeTypeSet{Literal: true}
	}
	if basic.TimestampVariable != nil {
		types[basic.TimestampVariable.Variable.Name] = dataframe.RDFNodeTypeSet{Literal: true}
	}
	sm := dataframe.NewSolutionMappings(types)

	ids := basic.IDs
	if basic.Resource == nil {
		return sm, nil
	}
	points := a.tables[*basic.Resource]
	idSet := map[string]bool{}
	for _, id := range ids {
		idSet[id] = true
	}

	for _, p := range points {
		if len(idSet) > 0 && !idSet[p.Identifier] {
			continue
		}
		row := dataframe.Row{}
		if basic.IdentifierVariable != nil {
			row[basic.IdentifierVariable.Name] = dataframe.NewIRIValue(p.Identifier)
		}
		if basic.ValueVariable != nil {
			row[basic.ValueVariable.Variable.Name] = p.Value
		}
		if basic.TimestampVariable != nil {
			row[basic.TimestampVariable.Variable.Name] = p.Timestamp
		}
		if filter != nil {
			v, err := dataframe.Eval(*filter, row)
			if err != nil {
				return nil, err
			}
			if v.Lexical != "true" {
				continue
			}
		}
		sm.Rows = append(sm.Rows, row)
	}

	sort.SliceStable(sm.Rows, func(i, j int) bool {
		if basic.TimestampVariable == nil {
			return false
		}
		name := basic.TimestampVariable.Variable.Name
		cmp, ok := sm.Rows[i][name].Compare(sm.Rows[j][name])
		return ok && cmp < 0
	})

	cols := make([]string, 0, len(sm.RDFNodeTypes))
	for c := range sm.RDFNodeTypes {
		cols = append(cols, c)
	}
	if err := vq.Validate(cols); err != nil {
		return nil, err
	}
	return sm, nil
}
