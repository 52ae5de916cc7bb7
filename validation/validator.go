package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/medata/medrecords/dataset"
)

type (
	// EqualityOpts controls the dataset comparison policy.
	EqualityOpts struct {
		// SortBy lists the columns to align both datasets on before
		// comparing. When empty, every column of the actual dataset is used
		// in its existing order. That fallback mis-orders tables holding
		// duplicate rows with no natural key, pass the key when you know it.
		SortBy []string
		// CheckDtype compares declared column types before values. Types
		// pass when equal or compatible per IsCompatibleType in either
		// orientation.
		CheckDtype bool
		// Description gives context in error messages.
		Description string
	}
)

// ValidateDatasetEquality checks that two datasets represent the same
// entity set under the given policy. On failure the error names every
// mismatching column, not just the first.
func ValidateDatasetEquality(actual, expected *dataset.Dataset, opts EqualityOpts) error {
	context := ""
	if opts.Description != "" {
		context = " for " + opts.Description
	}

	if err := validateColumnSets(actual, expected, context); err != nil {
		return err
	}

	sortBy := opts.SortBy
	if len(sortBy) == 0 {
		sortBy = actual.ColumnNames()
	}
	actualSorted, err := actual.Sorted(sortBy)
	if err != nil {
		return fmt.Errorf("error sorting actual dataset: %w", err)
	}
	expectedSorted, err := expected.Sorted(sortBy)
	if err != nil {
		return fmt.Errorf("error sorting expected dataset: %w", err)
	}

	if opts.CheckDtype {
		var differences []string
		for _, col := range actualSorted.Columns {
			ei := expectedSorted.ColumnIndex(col.Name)
			expectedCol := expectedSorted.Columns[ei]
			if col.Type == expectedCol.Type {
				continue
			}
			if IsCompatibleType(col.Type, expectedCol.Type) || IsCompatibleType(expectedCol.Type, col.Type) {
				continue
			}
			differences = append(differences, fmt.Sprintf("Column '%s' has mismatched types: Expected %s, got %s", col.Name, expectedCol.Type, col.Type))
		}
		if len(differences) > 0 {
			return newValidationError(fmt.Sprintf("Dataset dtypes are not equal%s. Differences found: %s", context, strings.Join(differences, ", ")))
		}
	}

	if actualSorted.Len() != expectedSorted.Len() {
		return newValidationError(fmt.Sprintf("Datasets are not equal%s: Expected %d rows, got %d", context, expectedSorted.Len(), actualSorted.Len()))
	}

	var differences []string
	for _, col := range actualSorted.Columns {
		ai := actualSorted.ColumnIndex(col.Name)
		ei := expectedSorted.ColumnIndex(col.Name)
		for r := range actualSorted.Rows {
			if !dataset.CellsEqual(actualSorted.Rows[r][ai], expectedSorted.Rows[r][ei]) {
				differences = append(differences, fmt.Sprintf("Column '%s' has mismatched values", col.Name))
				break
			}
		}
	}
	if len(differences) > 0 {
		return newValidationError(fmt.Sprintf("Datasets are not equal%s. Differences found: %s", context, strings.Join(differences, ", ")))
	}

	return nil
}

// validateColumnSets fails fast on a structural mismatch, an extra or
// missing column makes value comparison meaningless.
func validateColumnSets(actual, expected *dataset.Dataset, context string) error {
	var missing, extra []string
	for _, col := range actual.Columns {
		if expected.ColumnIndex(col.Name) == -1 {
			extra = append(extra, col.Name)
		}
	}
	for _, col := range expected.Columns {
		if actual.ColumnIndex(col.Name) == -1 {
			missing = append(missing, col.Name)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing columns: %s", strings.Join(missing, ", ")))
	}
	if len(extra) > 0 {
		parts = append(parts, fmt.Sprintf("extra columns: %s", strings.Join(extra, ", ")))
	}
	return newValidationError(fmt.Sprintf("Dataset columns are not equal%s: %s", context, strings.Join(parts, "; ")))
}

// ValidateRecordExists fails when the dataset, pre-filtered to rows
// matching identifier, is empty.
func ValidateRecordExists(record *dataset.Dataset, identifier, tableName, context string) error {
	if record.Empty() {
		return newValidationError(fmt.Sprintf("Record%s%s with identifier '%s' not found", tableContext(tableName), forContext(context), identifier))
	}
	return nil
}

// ValidateRecordNotExists fails when that filtered dataset is non-empty.
func ValidateRecordNotExists(record *dataset.Dataset, identifier, tableName, context string) error {
	if !record.Empty() {
		return newValidationError(fmt.Sprintf("Record%s%s with identifier '%s' exists when it should not", tableContext(tableName), forContext(context), identifier))
	}
	return nil
}

// ValidateRecordCount fails on any inequality, comparison is exact.
func ValidateRecordCount(actualCount, expectedCount int, context string) error {
	if actualCount != expectedCount {
		return newValidationError(fmt.Sprintf("Record count mismatch%s: Expected %d, got %d", forContext(context), expectedCount, actualCount))
	}
	return nil
}

// ValidateRange fails unless min <= value <= max, inclusive on both ends.
// Applies to any values orderable by dataset.CompareCells, numeric and
// temporal included.
func ValidateRange(value, min, max any, fieldName string) error {
	if dataset.CompareCells(value, min) < 0 || dataset.CompareCells(value, max) > 0 {
		return newValidationError(fmt.Sprintf("Value out of range for %s: Expected between %v and %v, got %v", fieldName, min, max, value))
	}
	return nil
}

// ValidateValueEquality fails when two scalar values differ under cell
// equality semantics.
func ValidateValueEquality(actual, expected any, fieldName string) error {
	if !dataset.CellsEqual(actual, expected) {
		return newValidationError(fmt.Sprintf("Value mismatch for %s: Expected '%v', got '%v'", fieldName, expected, actual))
	}
	return nil
}

// ValidatePattern fails unless the string matches the regular expression.
func ValidatePattern(actual, pattern, fieldName string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern for %s: %w", fieldName, err)
	}
	if !re.MatchString(actual) {
		return newValidationError(fmt.Sprintf("Pattern mismatch for %s: Expected match for '%s', got '%s'", fieldName, pattern, actual))
	}
	return nil
}

// ValidateType fails when a value's dynamic type differs from the expected
// type name, e.g. "string", "float64", "int64".
func ValidateType(value any, expectedType, fieldName string) error {
	actualType := fmt.Sprintf("%T", value)
	if actualType != expectedType {
		return newValidationError(fmt.Sprintf("Invalid type for %s: Expected %s, got %s", fieldName, expectedType, actualType))
	}
	return nil
}

// ValidateRequiredFields fails when any required field is absent from data.
func ValidateRequiredFields(data map[string]any, requiredFields []string) error {
	var missing []string
	for _, field := range requiredFields {
		if _, ok := data[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return newValidationError(fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", ")))
	}
	return nil
}

func tableContext(tableName string) string {
	if tableName == "" {
		return ""
	}
	return " in " + tableName
}

func forContext(context string) string {
	if context == "" {
		return ""
	}
	return " for " + context
}
