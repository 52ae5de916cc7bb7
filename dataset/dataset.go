package dataset

import (
	"fmt"
	"math"
	"sort"
	"time"
)

type (
	// Column is one schema entry: name, declared type (lowercase, e.g.
	// "character varying" or "string"), and nullability.
	Column struct {
		Name     string
		Type     string
		Nullable bool
	}

	// Row holds cell values in the same order as the Dataset columns. A nil
	// cell is NULL.
	Row []any

	// Dataset is an ordered sequence of rows sharing one schema, produced by
	// reading a relational table or decoding a columnar file. Raw row order
	// is not semantic, comparisons sort first.
	Dataset struct {
		Columns []Column
		Rows    []Row
	}
)

// FloatTolerance is the absolute tolerance for float64 cell equality.
// Everything else compares exact.
const FloatTolerance = 1e-6

func New(cols []Column) *Dataset {
	return &Dataset{Columns: cols}
}

func (d *Dataset) AppendRow(row Row) {
	d.Rows = append(d.Rows, row)
}

func (d *Dataset) Len() int {
	return len(d.Rows)
}

func (d *Dataset) Empty() bool {
	return len(d.Rows) == 0
}

func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at (rowIdx, column name).
func (d *Dataset) Cell(rowIdx int, name string) (any, error) {
	ci := d.ColumnIndex(name)
	if ci == -1 {
		return nil, fmt.Errorf("no column %q in dataset", name)
	}
	return d.Rows[rowIdx][ci], nil
}

// FilterEq returns the rows whose named column equals value, keeping the
// schema.
func (d *Dataset) FilterEq(name string, value any) (*Dataset, error) {
	ci := d.ColumnIndex(name)
	if ci == -1 {
		return nil, fmt.Errorf("no column %q in dataset", name)
	}
	out := New(d.Columns)
	for _, row := range d.Rows {
		if CellsEqual(row[ci], value) {
			out.AppendRow(row)
		}
	}
	return out, nil
}

// Sorted returns a copy of the dataset sorted by the given columns, in
// order. Row provenance is discarded. Falls back to every column of the
// dataset when by is empty; with duplicate rows and no natural key that
// fallback can mis-order, callers that know the key should pass it.
func (d *Dataset) Sorted(by []string) (*Dataset, error) {
	if len(by) == 0 {
		by = d.ColumnNames()
	}
	idxs := make([]int, len(by))
	for i, name := range by {
		ci := d.ColumnIndex(name)
		if ci == -1 {
			return nil, fmt.Errorf("no sort column %q in dataset", name)
		}
		idxs[i] = ci
	}

	out := New(d.Columns)
	out.Rows = make([]Row, len(d.Rows))
	copy(out.Rows, d.Rows)

	sort.SliceStable(out.Rows, func(a, b int) bool {
		for _, ci := range idxs {
			c := CompareCells(out.Rows[a][ci], out.Rows[b][ci])
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	return out, nil
}

// CellsEqual reports value equality for two cells. Two NULLs are equal,
// float64 compares within FloatTolerance, everything else compares exact.
func CellsEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		if _, isInt := a.(int64); isInt {
			if _, alsoInt := b.(int64); alsoInt {
				return a == b
			}
		}
		return math.Abs(af-bf) <= FloatTolerance
	}
	return a == b
}

// CompareCells gives a total order over cells, used for sorting and range
// checks: NULLs first, then numerics, temporals by instant, everything else
// by string form.
func CompareCells(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	at, aIsTime := a.(time.Time)
	bt, bIsTime := b.(time.Time)
	if aIsTime && bIsTime {
		switch {
		case at.Before(bt):
			return -1
		case at.After(bt):
			return 1
		default:
			return 0
		}
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as := cellString(a)
	bs := cellString(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func cellString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
