package models

import (
	"fmt"
	"slices"
)

// Table is a spreadsheet held in memory. Cells are nil, string or float64.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NewTable pads every row to the column count. Repeated column names are suffixed
// ("Note", "Note.1") so every column is addressable by name.
func NewTable(columns []string, rows [][]any) *Table {
	columns = DedupeColumns(columns)
	for i, row := range rows {
		if len(row) < len(columns) {
			padded := make([]any, len(columns))
			copy(padded, row)
			rows[i] = padded
		}
	}
	return &Table{Columns: columns, Rows: rows}
}

// DedupeColumns returns names with each repeat renamed to name.N, using the smallest N
// that clashes with no other column.
func DedupeColumns(names []string) []string {
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[n] = true
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		if !seen[n] {
			seen[n] = true
			out[i] = n
			continue
		}
		for k := 1; ; k++ {
			candidate := fmt.Sprintf("%s.%d", n, k)
			if !taken[candidate] {
				taken[candidate] = true
				out[i] = candidate
				break
			}
		}
	}
	return out
}

func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns -1 when the column is not present.
func (t *Table) ColumnIndex(name string) int {
	return slices.Index(t.Columns, name)
}

func (t *Table) Get(row, col int) any {
	return t.Rows[row][col]
}

func (t *Table) Set(row, col int, v any) {
	t.Rows[row][col] = v
}

// Present returns the names that exist in the table header, in the order given.
func (t *Table) Present(names []string) []string {
	var out []string
	for _, name := range names {
		if t.ColumnIndex(name) >= 0 && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// SameShape reports whether o has the same row count and the same columns, counting repeats.
func (t *Table) SameShape(o *Table) bool {
	if o == nil || len(t.Rows) != len(o.Rows) || len(t.Columns) != len(o.Columns) {
		return false
	}
	counts := make(map[string]int, len(t.Columns))
	for _, c := range t.Columns {
		counts[c]++
	}
	for _, c := range o.Columns {
		if counts[c] == 0 {
			return false
		}
		counts[c]--
	}
	return true
}

// Reorder returns a copy of t with columns arranged as order. order must be a permutation of
// t.Columns; repeated names are matched in their order of appearance.
func (t *Table) Reorder(order []string) *Table {
	positions := make(map[string][]int, len(t.Columns))
	for i, name := range t.Columns {
		positions[name] = append(positions[name], i)
	}
	idx := make([]int, len(order))
	for i, name := range order {
		idx[i] = -1
		if p := positions[name]; len(p) > 0 {
			idx[i] = p[0]
			positions[name] = p[1:]
		}
	}
	rows := make([][]any, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]any, len(order))
		for i, j := range idx {
			if j >= 0 && j < len(row) {
				out[i] = row[j]
			}
		}
		rows[r] = out
	}
	return &Table{Columns: slices.Clone(order), Rows: rows}
}
