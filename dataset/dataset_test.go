package dataset

import "testing"

func labResultCols() []Column {
	return []Column{
		{Name: "result_id", Type: "character varying", Nullable: false},
		{Name: "result_value", Type: "double precision", Nullable: true},
		{Name: "reviewing_physician", Type: "character varying", Nullable: true},
	}
}

func TestSortedByKey(t *testing.T) {
	d := New(labResultCols())
	d.AppendRow(Row{"LR3", 95.0, "Lab Tech 3"})
	d.AppendRow(Row{"LR1", 85.5, "Lab Tech 1"})
	d.AppendRow(Row{"LR2", nil, "Lab Tech 2"})

	sorted, err := d.Sorted([]string{"result_id"})
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"LR1", "LR2", "LR3"} {
		got, _ := sorted.Cell(i, "result_id")
		if got != want {
			t.Fatalf("row %d: expected %s, got %v", i, want, got)
		}
	}
	// original order untouched
	got, _ := d.Cell(0, "result_id")
	if got != "LR3" {
		t.Fatal("Sorted must not mutate the receiver")
	}
}

func TestSortedAllColumnsFallback(t *testing.T) {
	d := New(labResultCols())
	d.AppendRow(Row{"LR1", 90.0, "B"})
	d.AppendRow(Row{"LR1", 85.5, "A"})

	sorted, err := d.Sorted(nil)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := sorted.Cell(0, "result_value")
	if got != 85.5 {
		t.Fatalf("fallback sort should order by every column, got %v first", got)
	}
}

func TestSortedUnknownColumn(t *testing.T) {
	d := New(labResultCols())
	if _, err := d.Sorted([]string{"nope"}); err == nil {
		t.Fatal("expected error for unknown sort column")
	}
}

func TestSortedNullsFirst(t *testing.T) {
	d := New(labResultCols())
	d.AppendRow(Row{"LR1", 85.5, "A"})
	d.AppendRow(Row{"LR2", nil, "B"})

	sorted, err := d.Sorted([]string{"result_value"})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := sorted.Cell(0, "result_value")
	if got != nil {
		t.Fatalf("NULL should sort first, got %v", got)
	}
}

func TestFilterEq(t *testing.T) {
	d := New(labResultCols())
	d.AppendRow(Row{"LR1", 85.5, "A"})
	d.AppendRow(Row{"LR2", 90.2, "B"})

	filtered, err := d.FilterEq("result_id", "LR2")
	if err != nil {
		t.Fatal(err)
	}
	if filtered.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", filtered.Len())
	}

	empty, err := d.FilterEq("result_id", "LR9")
	if err != nil {
		t.Fatal(err)
	}
	if !empty.Empty() {
		t.Fatal("expected empty dataset")
	}
}

func TestCellsEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"both null", nil, nil, true},
		{"null vs value", nil, "x", false},
		{"strings", "Dr. Smith", "Dr. Smith", true},
		{"strings differ", "Dr. Smith", "Dr. Jones", false},
		{"floats within tolerance", 85.5, 85.5000004, true},
		{"floats beyond tolerance", 85.5, 85.51, false},
		{"ints exact", int64(3), int64(3), true},
		{"ints differ", int64(3), int64(4), false},
		{"int vs float", int64(3), 3.0000001, true},
	}
	for _, tt := range tests {
		if got := CellsEqual(tt.a, tt.b); got != tt.want {
			t.Fatalf("%s: CellsEqual(%v, %v) = %v, want %v", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}
