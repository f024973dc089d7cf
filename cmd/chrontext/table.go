package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/dataframe"
)

// printSolutionMappings renders a SolutionMappings table as an aligned,
// tab-separated table, adapted from the teacher's internal/cli/table.go
// tabwriter-based renderer.
func printSolutionMappings(sm *dataframe.SolutionMappings) {
	cols := sm.Columns()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	for i, col := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, col)
	}
	fmt.Fprintln(w)

	for _, row := range sm.Rows {
		for i, col := range cols {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprint(w, formatValue(row[col]))
		}
		fmt.Fprintln(w)
	}
}

func formatValue(v dataframe.Value) string {
	if !v.IsBound() {
		return ""
	}
	switch v.NodeType {
	case algebra.NodeTypeIRI:
		return "<" + v.IRI + ">"
	case algebra.NodeTypeBlank:
		return "_:" + v.Blank
	default:
		return v.Lexical
	}
}

func toStringRows(sm *dataframe.SolutionMappings) []map[string]string {
	cols := sm.Columns()
	rows := make([]map[string]string, 0, len(sm.Rows))
	for _, row := range sm.Rows {
		m := make(map[string]string, len(cols))
		for _, col := range cols {
			m[col] = formatValue(row[col])
		}
		rows = append(rows, m)
	}
	return rows
}
