package pg

import (
	"testing"
	"time"

	"github.com/jackc/pgtype"
)

func TestNormalizeCell(t *testing.T) {
	day := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	stamp := time.Date(2024, 3, 14, 12, 30, 0, 0, time.UTC)
	noon := int64(12 * time.Hour / time.Microsecond)

	tests := []struct {
		name     string
		in       any
		declared string
		want     any
	}{
		{"null", nil, "character varying", nil},
		{"string", "Dr. Smith", "character varying", "Dr. Smith"},
		{"double", 85.5, "double precision", 85.5},
		{"int32 widened", int32(7), "integer", int64(7)},
		{"date to string", day, "date", "2024-03-14"},
		{"timestamp to rfc3339", stamp, "timestamp without time zone", "2024-03-14T12:30:00Z"},
		{"time from pgtype", pgtype.Time{Microseconds: noon, Status: pgtype.Present}, "time without time zone", "12:00:00"},
		{"time from microseconds", noon, "time without time zone", "12:00:00"},
		{"generic time.Time", stamp, "", "2024-03-14T12:30:00Z"},
	}
	for _, tt := range tests {
		if got := NormalizeCell(tt.in, tt.declared); got != tt.want {
			t.Fatalf("%s: NormalizeCell(%v, %q) = %v, want %v", tt.name, tt.in, tt.declared, got, tt.want)
		}
	}
}

func TestClockString(t *testing.T) {
	if got := clockString(0); got != "00:00:00" {
		t.Fatalf("expected midnight, got %s", got)
	}
	if got := clockString(int64((23*time.Hour + 59*time.Minute + 59*time.Second) / time.Microsecond)); got != "23:59:59" {
		t.Fatalf("expected 23:59:59, got %s", got)
	}
}
