package models

import (
	"reflect"
	"testing"
)

func TestNewTablePadsShortRows(t *testing.T) {
	tb := NewTable([]string{"a", "b", "c"}, [][]any{{"x"}, {"y", 1.0, "z"}})
	if len(tb.Rows[0]) != 3 || tb.Rows[0][1] != nil {
		t.Errorf("row 0 = %#v", tb.Rows[0])
	}
	if tb.Len() != 2 {
		t.Errorf("Len = %d", tb.Len())
	}
}

func TestPresent(t *testing.T) {
	tb := NewTable([]string{"ID", "Uses", "Benefits"}, nil)
	got := tb.Present([]string{"Introduction", "Benefits", "Uses", "Benefits"})
	if want := []string{"Benefits", "Uses"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Present = %v, want %v", got, want)
	}
	if got := tb.Present([]string{"Nope"}); len(got) != 0 {
		t.Errorf("Present = %v, want empty", got)
	}
}

func TestSameShape(t *testing.T) {
	base := NewTable([]string{"a", "b"}, [][]any{{1.0, "x"}})
	tests := []struct {
		name  string
		other *Table
		want  bool
	}{
		{"nil", nil, false},
		{"identical", NewTable([]string{"a", "b"}, [][]any{{1.0, "x"}}), true},
		{"reordered columns", base.Reorder([]string{"b", "a"}), true},
		{"extra row", NewTable([]string{"a", "b"}, [][]any{{}, {}}), false},
		{"renamed column", NewTable([]string{"a", "c"}, [][]any{{}}), false},
		{"extra column", NewTable([]string{"a", "b", "c"}, [][]any{{}}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.SameShape(tt.other); got != tt.want {
				t.Errorf("SameShape = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReorder(t *testing.T) {
	tb := NewTable([]string{"a", "b"}, [][]any{{1.0, "x"}, {2.0, nil}})
	r := tb.Reorder([]string{"b", "a"})
	want := [][]any{{"x", 1.0}, {nil, 2.0}}
	if !reflect.DeepEqual(r.Rows, want) {
		t.Errorf("Reorder rows = %v, want %v", r.Rows, want)
	}

	r.Set(0, 0, "changed")
	if tb.Get(0, 1) != "x" {
		t.Errorf("Reorder shares rows with the original")
	}
	if tb.ColumnIndex("b") != 1 || tb.ColumnIndex("z") != -1 {
		t.Errorf("ColumnIndex wrong")
	}
}

func TestDedupeColumns(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"unique", []string{"Uses", "Note"}, []string{"Uses", "Note"}},
		{"pair", []string{"Uses", "Note", "Note"}, []string{"Uses", "Note", "Note.1"}},
		{"triple", []string{"Note", "Note", "Note"}, []string{"Note", "Note.1", "Note.2"}},
		{"suffix already used", []string{"Note", "Note", "Note.1"}, []string{"Note", "Note.2", "Note.1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DedupeColumns(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DedupeColumns(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewTableRenamesRepeatedColumns(t *testing.T) {
	tb := NewTable([]string{"Uses", "Note", "Note"}, [][]any{{"u", "first", "second"}})
	if tb.Get(0, tb.ColumnIndex("Note")) != "first" || tb.Get(0, tb.ColumnIndex("Note.1")) != "second" {
		t.Errorf("columns = %v, row = %v", tb.Columns, tb.Rows[0])
	}
}

func TestSameShapeCountsRepeatedColumns(t *testing.T) {
	repeated := &Table{Columns: []string{"Uses", "Note", "Note"}, Rows: [][]any{{}}}
	extra := &Table{Columns: []string{"Uses", "Note", "Extra"}, Rows: [][]any{{}}}
	if repeated.SameShape(extra) || extra.SameShape(repeated) {
		t.Error("columns with different multiplicity must not match")
	}
}

func TestReorderKeepsRepeatedColumnsApart(t *testing.T) {
	tb := &Table{Columns: []string{"Note", "Uses", "Note"}, Rows: [][]any{{"first", "u", "second"}}}
	got := tb.Reorder([]string{"Uses", "Note", "Note"})
	if want := []any{"u", "first", "second"}; !reflect.DeepEqual(got.Rows[0], want) {
		t.Errorf("row = %v, want %v", got.Rows[0], want)
	}
}
