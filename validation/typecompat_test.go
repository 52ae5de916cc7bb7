package validation

import "testing"

func TestIsCompatibleType(t *testing.T) {
	tests := []struct {
		columnar   string
		relational string
		want       bool
	}{
		{"string", "character varying", true},
		{"large_string", "text", true},
		{"string", "varchar", true},
		{"double", "character varying", false},

		{"double", "double precision", true},
		{"float64", "double precision", true},
		{"float32", "real", true},
		{"double", "float8", true},
		{"string", "double precision", false},
		{"string", "integer", false},

		{"int64", "integer", true},
		{"int32", "int", true},
		{"uint8", "integer", true},
		{"double", "integer", false},

		{"date32[day]", "date", true},
		{"timestamp[us]", "date", true},
		{"string", "date", true},
		{"double", "date", false},

		{"time64[us]", "time without time zone", true},
		{"string", "time without time zone", true},
		{"date32[day]", "time without time zone", false},

		{"timestamp[us]", "timestamp without time zone", true},
		{"string", "timestamp with time zone", true},
		{"date32[day]", "timestamp without time zone", false},

		// unmapped relational types are a hard mismatch, not an error
		{"string", "jsonb", false},
		{"bool", "boolean", false},
	}
	for _, tt := range tests {
		if got := IsCompatibleType(tt.columnar, tt.relational); got != tt.want {
			t.Fatalf("IsCompatibleType(%q, %q) = %v, want %v", tt.columnar, tt.relational, got, tt.want)
		}
	}
}

func TestIsCompatibleTypeCaseInsensitive(t *testing.T) {
	if !IsCompatibleType("String", "Character Varying") {
		t.Fatal("type names should compare lowercase")
	}
}
