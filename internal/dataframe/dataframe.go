package dataframe

import (
	"context"
	"fmt"
	"sync"
)

// Row is a single solution mapping: column name -> bound value (or
// Unbound). Adapted from the teacher's federation.Row, which carried
// arbitrary interface{} cells; here cells are typed RDF term Values so
// the evaluator can apply SPARQL operator semantics directly.
type Row map[string]Value

func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// SolutionMappings is the materialized dataframe the combiner builds by
// executing the static query and joining in each VirtualizedQuery's
// result. The RDFNodeTypes side table tracks each column's term kind,
// since SolutionMappings.Rows alone cannot distinguish "unbound" from
// "bound to an IRI" once the column holds a mix of literal datatypes.
type SolutionMappings struct {
	Rows         []Row
	RDFNodeTypes map[string]RDFNodeTypeSet
}

// RDFNodeTypeSet records which RDF term kinds a column may hold. A
// column pushed through an Extend/ExpressionAs may end up Multiple if
// different rows bind different kinds (e.g. a Coalesce of an IRI and a
// literal default).
type RDFNodeTypeSet struct {
	IRI     bool
	Blank   bool
	Literal bool
}

func (s RDFNodeTypeSet) Merge(o RDFNodeTypeSet) RDFNodeTypeSet {
	return RDFNodeTypeSet{IRI: s.IRI || o.IRI, Blank: s.Blank || o.Blank, Literal: s.Literal || o.Literal}
}

// NewSolutionMappings builds an empty table with the given column types.
func NewSolutionMappings(types map[string]RDFNodeTypeSet) *SolutionMappings {
	return &SolutionMappings{RDFNodeTypes: types}
}

// Columns lists the table's column names in no particular order.
func (sm *SolutionMappings) Columns() []string {
	cols := make([]string, 0, len(sm.RDFNodeTypes))
	for c := range sm.RDFNodeTypes {
		cols = append(cols, c)
	}
	return cols
}

func (sm *SolutionMappings) Height() int { return len(sm.Rows) }

// WithColumn adds or overwrites a column, computed per row by f.
func (sm *SolutionMappings) WithColumn(name string, types RDFNodeTypeSet, f func(Row) Value) {
	for i, row := range sm.Rows {
		row[name] = f(row)
		sm.Rows[i] = row
	}
	if sm.RDFNodeTypes == nil {
		sm.RDFNodeTypes = map[string]RDFNodeTypeSet{}
	}
	sm.RDFNodeTypes[name] = types
}

// Filter keeps only rows where keep returns true.
func (sm *SolutionMappings) Filter(keep func(Row) bool) {
	out := sm.Rows[:0]
	for _, row := range sm.Rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	sm.Rows = out
}

// Project keeps only the named columns.
func (sm *SolutionMappings) Project(columns []string) {
	keep := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		keep[c] = struct{}{}
	}
	for i, row := range sm.Rows {
		narrowed := make(Row, len(columns))
		for c := range keep {
			narrowed[c] = row[c]
		}
		sm.Rows[i] = narrowed
	}
	types := make(map[string]RDFNodeTypeSet, len(columns))
	for c := range keep {
		types[c] = sm.RDFNodeTypes[c]
	}
	sm.RDFNodeTypes = types
}

// Slice caps the table to at most limit rows, starting at offset.
func (sm *SolutionMappings) Slice(offset, limit uint64) {
	start := int(offset)
	if start > len(sm.Rows) {
		start = len(sm.Rows)
	}
	end := len(sm.Rows)
	if limit > 0 && start+int(limit) < end {
		end = start + int(limit)
	}
	sm.Rows = sm.Rows[start:end]
}

// Sort orders rows by the given columns; desc[i] reverses column i.
// Unbound values sort after bound ones in either direction; two bound
// values that Compare cannot order count as equal on that column.
func (sm *SolutionMappings) Sort(columns []string, desc []bool) {
	rows := sm.Rows
	less := func(i, j int) bool {
		for k, col := range columns {
			a, b := rows[i][col], rows[j][col]
			cmp, ok := a.Compare(b)
			if !ok {
				if a.IsBound() != b.IsBound() {
					return a.IsBound()
				}
				continue
			}
			if cmp == 0 {
				continue
			}
			if desc != nil && k < len(desc) && desc[k] {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	}
	insertionSort(rows, less)
}

func insertionSort(rows []Row, less func(i, j int) bool) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

// InnerJoin joins sm with other on the columns they share, keeping only
// matching rows. Grounded on the teacher's hashJoinStream build/probe
// shape (internal/federation/join.go), adapted to operate over RDF term
// Values instead of raw interface{} cells.
func (sm *SolutionMappings) InnerJoin(other *SolutionMappings) {
	shared := sharedColumns(sm, other)

	build := map[string][]Row{}
	for _, row := range other.Rows {
		key := joinKey(row, shared)
		build[key] = append(build[key], row)
	}

	var out []Row
	for _, row := range sm.Rows {
		key := joinKey(row, shared)
		for _, match := range build[key] {
			merged := row.Clone()
			for k, v := range match {
				merged[k] = v
			}
			out = append(out, merged)
		}
	}
	sm.Rows = out
	for c, t := range other.RDFNodeTypes {
		sm.RDFNodeTypes[c] = sm.RDFNodeTypes[c].Merge(t)
	}
}

// JoinAttach joins a VirtualizedQuery's result into sm. Per spec.md §4.6,
// when other has zero rows the join degrades to attaching all-null
// columns to every row of sm rather than discarding them, so an
// identifier that genuinely has no data points still appears once.
func (sm *SolutionMappings) JoinAttach(other *SolutionMappings) {
	if other.Height() == 0 {
		for i, row := range sm.Rows {
			for c := range other.RDFNodeTypes {
				row[c] = Unbound
			}
			sm.Rows[i] = row
		}
		for c, t := range other.RDFNodeTypes {
			if sm.RDFNodeTypes == nil {
				sm.RDFNodeTypes = map[string]RDFNodeTypeSet{}
			}
			sm.RDFNodeTypes[c] = sm.RDFNodeTypes[c].Merge(t)
		}
		return
	}
	sm.InnerJoin(other)
}

func sharedColumns(a, b *SolutionMappings) []string {
	var shared []string
	for c := range a.RDFNodeTypes {
		if _, ok := b.RDFNodeTypes[c]; ok {
			shared = append(shared, c)
		}
	}
	return shared
}

func joinKey(row Row, cols []string) string {
	s := ""
	for _, c := range cols {
		v := row[c]
		s += fmt.Sprintf("|%d|%s|%s|%s", v.NodeType, v.IRI, v.Blank, v.Lexical)
	}
	return s
}

// Clone performs a value-level deep copy of the table (rows only; the
// type side table is copied by reference since it is immutable after
// column operations complete).
func (sm *SolutionMappings) Clone() *SolutionMappings {
	rows := make([]Row, len(sm.Rows))
	for i, row := range sm.Rows {
		rows[i] = row.Clone()
	}
	types := make(map[string]RDFNodeTypeSet, len(sm.RDFNodeTypes))
	for k, v := range sm.RDFNodeTypes {
		types[k] = v
	}
	return &SolutionMappings{Rows: rows, RDFNodeTypes: types}
}

// Collector accumulates rows pushed concurrently by parallel VQ
// executions before they're joined back into the main table, mirroring
// the teacher's MemoryResultStore/ResultStore pairing.
type Collector struct {
	mu   sync.Mutex
	rows []Row
}

func (c *Collector) Append(row Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, row)
}

func (c *Collector) Drain(ctx context.Context) []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := c.rows
	c.rows = nil
	return rows
}
