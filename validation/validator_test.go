package validation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/medata/medrecords/dataset"
)

func pgLabResults() *dataset.Dataset {
	d := dataset.New([]dataset.Column{
		{Name: "result_id", Type: "character varying"},
		{Name: "result_value", Type: "double precision", Nullable: true},
		{Name: "reviewing_physician", Type: "character varying", Nullable: true},
	})
	d.AppendRow(dataset.Row{"LR1", 85.5, "Dr. Smith"})
	d.AppendRow(dataset.Row{"LR2", nil, nil})
	return d
}

func parquetLabResults() *dataset.Dataset {
	d := dataset.New([]dataset.Column{
		{Name: "result_id", Type: "string"},
		{Name: "result_value", Type: "double", Nullable: true},
		{Name: "reviewing_physician", Type: "string", Nullable: true},
	})
	// deliberately out of order relative to the relational read
	d.AppendRow(dataset.Row{"LR2", nil, nil})
	d.AppendRow(dataset.Row{"LR1", 85.5, "Dr. Smith"})
	return d
}

func assertValidationError(t *testing.T, err error, wantSubstrings ...string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected a validation error")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	for _, want := range wantSubstrings {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q should contain %q", err.Error(), want)
		}
	}
}

func TestDatasetEqualityIgnoresRowOrder(t *testing.T) {
	err := ValidateDatasetEquality(pgLabResults(), parquetLabResults(), EqualityOpts{
		SortBy:     []string{"result_id"},
		CheckDtype: true,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDatasetEqualityAllColumnsFallback(t *testing.T) {
	err := ValidateDatasetEquality(pgLabResults(), parquetLabResults(), EqualityOpts{CheckDtype: false})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDatasetEqualityValueMismatchNamesColumn(t *testing.T) {
	expected := parquetLabResults()
	expected.Rows[1][2] = "Dr. Jones"

	err := ValidateDatasetEquality(pgLabResults(), expected, EqualityOpts{SortBy: []string{"result_id"}})
	assertValidationError(t, err, "reviewing_physician", "mismatched values")
}

func TestDatasetEqualityEnumeratesEveryColumn(t *testing.T) {
	expected := parquetLabResults()
	expected.Rows[1][1] = 99.9
	expected.Rows[1][2] = "Dr. Jones"

	err := ValidateDatasetEquality(pgLabResults(), expected, EqualityOpts{SortBy: []string{"result_id"}})
	assertValidationError(t, err, "result_value", "reviewing_physician")
}

func TestDatasetEqualityDtypeMismatch(t *testing.T) {
	expected := parquetLabResults()
	expected.Columns[1].Type = "string"

	err := ValidateDatasetEquality(pgLabResults(), expected, EqualityOpts{
		SortBy:      []string{"result_id"},
		CheckDtype:  true,
		Description: "lab_results",
	})
	assertValidationError(t, err, "dtypes are not equal", "result_value", "lab_results")
}

func TestDatasetEqualityCompatibleDtypesPass(t *testing.T) {
	// "string" vs "date" style looseness: declared types differ but are
	// compatible, which is not a dtype failure
	actual := dataset.New([]dataset.Column{{Name: "performed_date", Type: "string"}})
	actual.AppendRow(dataset.Row{"2024-03-14"})
	expected := dataset.New([]dataset.Column{{Name: "performed_date", Type: "date"}})
	expected.AppendRow(dataset.Row{"2024-03-14"})

	if err := ValidateDatasetEquality(actual, expected, EqualityOpts{CheckDtype: true}); err != nil {
		t.Fatal(err)
	}
}

func TestDatasetEqualityColumnSetMismatch(t *testing.T) {
	expected := dataset.New([]dataset.Column{
		{Name: "result_id", Type: "string"},
		{Name: "result_value", Type: "double"},
	})
	expected.AppendRow(dataset.Row{"LR1", 85.5})
	expected.AppendRow(dataset.Row{"LR2", nil})

	err := ValidateDatasetEquality(pgLabResults(), expected, EqualityOpts{SortBy: []string{"result_id"}})
	assertValidationError(t, err, "columns are not equal", "reviewing_physician")
}

func TestDatasetEqualityRowCountMismatch(t *testing.T) {
	expected := parquetLabResults()
	expected.Rows = expected.Rows[:1]

	err := ValidateDatasetEquality(pgLabResults(), expected, EqualityOpts{SortBy: []string{"result_id"}})
	assertValidationError(t, err, "Expected 1 rows, got 2")
}

func TestDatasetEqualityFloatTolerance(t *testing.T) {
	expected := parquetLabResults()
	expected.Rows[1][1] = 85.5000009

	if err := ValidateDatasetEquality(pgLabResults(), expected, EqualityOpts{SortBy: []string{"result_id"}}); err != nil {
		t.Fatalf("values within 1e-6 should compare equal: %v", err)
	}
}

func TestRecordExists(t *testing.T) {
	d := pgLabResults()
	filtered, err := d.FilterEq("result_id", "LR1")
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateRecordExists(filtered, "LR1", "lab_results", ""); err != nil {
		t.Fatal(err)
	}

	missing, _ := d.FilterEq("result_id", "LR9")
	err = ValidateRecordExists(missing, "LR9", "lab_results", "post-export check")
	assertValidationError(t, err, "LR9", "lab_results", "not found")
}

func TestRecordNotExists(t *testing.T) {
	d := pgLabResults()
	missing, _ := d.FilterEq("result_id", "LR9")
	if err := ValidateRecordNotExists(missing, "LR9", "lab_results", ""); err != nil {
		t.Fatal(err)
	}

	present, _ := d.FilterEq("result_id", "LR1")
	err := ValidateRecordNotExists(present, "LR1", "lab_results", "")
	assertValidationError(t, err, "LR1", "exists when it should not")
}

func TestRecordCount(t *testing.T) {
	if err := ValidateRecordCount(2, 2, ""); err != nil {
		t.Fatal(err)
	}
	err := ValidateRecordCount(1, 2, "lab_results rows")
	assertValidationError(t, err, "Expected 2, got 1", "lab_results rows")
}

func TestValidateRange(t *testing.T) {
	if err := ValidateRange(85.5, 70.0, 100.0, "result_value"); err != nil {
		t.Fatal(err)
	}
	// inclusive on both ends
	if err := ValidateRange(70.0, 70.0, 100.0, "result_value"); err != nil {
		t.Fatal(err)
	}
	if err := ValidateRange(100.0, 70.0, 100.0, "result_value"); err != nil {
		t.Fatal(err)
	}
	assertValidationError(t, ValidateRange(101.0, 70.0, 100.0, "result_value"), "out of range", "result_value")

	lo := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	hi := lo.AddDate(0, 0, 7)
	if err := ValidateRange(lo.AddDate(0, 0, 3), lo, hi, "performed_date"); err != nil {
		t.Fatal(err)
	}
	assertValidationError(t, ValidateRange(hi.AddDate(0, 0, 1), lo, hi, "performed_date"), "performed_date")
}

func TestValidateValueEquality(t *testing.T) {
	if err := ValidateValueEquality("Dr. Smith", "Dr. Smith", "reviewing_physician"); err != nil {
		t.Fatal(err)
	}
	assertValidationError(t, ValidateValueEquality(90.2, 85.5, "result_value"), "result_value", "85.5")
}

func TestValidateRequiredFields(t *testing.T) {
	data := map[string]any{"result_id": "LR1", "test_id": "LT1"}
	if err := ValidateRequiredFields(data, []string{"result_id", "test_id"}); err != nil {
		t.Fatal(err)
	}
	err := ValidateRequiredFields(data, []string{"result_id", "result_value", "performed_date"})
	assertValidationError(t, err, "result_value", "performed_date")
}

func TestValidatePattern(t *testing.T) {
	if err := ValidatePattern("LR123", `^LR\d+$`, "result_id"); err != nil {
		t.Fatal(err)
	}
	assertValidationError(t, ValidatePattern("XX123", `^LR\d+$`, "result_id"), "Pattern mismatch", "result_id")

	if err := ValidatePattern("LR1", `[`, "result_id"); err == nil {
		t.Fatal("expected error for an invalid pattern")
	}
}

func TestValidateType(t *testing.T) {
	if err := ValidateType(85.5, "float64", "result_value"); err != nil {
		t.Fatal(err)
	}
	if err := ValidateType("Final", "string", "result_status"); err != nil {
		t.Fatal(err)
	}
	assertValidationError(t, ValidateType(int64(85), "float64", "result_value"), "Invalid type", "result_value", "int64")
}
