package validation

import "strings"

var stringRelationalTypes = []string{"character varying", "text", "varchar"}

var doubleRelationalTypes = []string{"double precision", "float8", "real"}

var intRelationalTypes = []string{"integer", "int"}

// IsCompatibleType reports whether a columnar field type is an acceptable
// representation of a relational column type. Both arguments are lowercase
// declared type names, e.g. ("double", "double precision") or
// ("string", "character varying"). Rules check in priority order, first
// match wins, an unmapped relational type is incompatible (false), not an
// error.
//
// Dates, times and timestamps deliberately accept a string encoding:
// export pipelines stringify them, and that is a degraded-but-acceptable
// representation rather than a mismatch.
func IsCompatibleType(columnarType, relationalType string) bool {
	columnarType = strings.ToLower(columnarType)
	relationalType = strings.ToLower(relationalType)

	if contains(stringRelationalTypes, relationalType) {
		return strings.Contains(columnarType, "string")
	}

	if contains(doubleRelationalTypes, relationalType) {
		return strings.Contains(columnarType, "double") || strings.Contains(columnarType, "float")
	}

	if contains(intRelationalTypes, relationalType) {
		return strings.Contains(columnarType, "int")
	}

	if relationalType == "date" {
		return strings.Contains(columnarType, "date") || strings.Contains(columnarType, "timestamp") || strings.Contains(columnarType, "string")
	}

	if relationalType == "time without time zone" {
		return strings.Contains(columnarType, "time") || strings.Contains(columnarType, "string")
	}

	if strings.Contains(relationalType, "timestamp") {
		return strings.Contains(columnarType, "timestamp") || strings.Contains(columnarType, "string")
	}

	return false
}

func contains(s []string, str string) bool {
	for _, v := range s {
		if v == str {
			return true
		}
	}
	return false
}
