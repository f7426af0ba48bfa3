package util

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFormatFixed2(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: "0.00"},
		{name: "int", in: 45, want: "45.00"},
		{name: "int64", in: int64(12), want: "12.00"},
		{name: "float", in: 45.5, want: "45.50"},
		{name: "float rounds", in: 25.256, want: "25.26"},
		{name: "string", in: "33.3", want: "33.30"},
		{name: "string with spaces", in: " 7 ", want: "7.00"},
		{name: "json number", in: json.Number("12.5"), want: "12.50"},
		{name: "garbage string", in: "fast", want: "0.00"},
		{name: "empty string", in: "", want: "0.00"},
		{name: "negative", in: -4.2, want: "0.00"},
		{name: "nan", in: math.NaN(), want: "0.00"},
		{name: "bool", in: true, want: "0.00"},
		{name: "huge exponent", in: "1e400000000", want: "0.00"},
		{name: "tiny exponent", in: "1e-400000000", want: "0.00"},
		{name: "above magnitude bound", in: "1e12", want: "0.00"},
		{name: "huge float", in: 1e300, want: "0.00"},
		{name: "at magnitude bound", in: "1e9", want: "1000000000.00"},
		{name: "small exponent", in: "2.5e1", want: "25.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatFixed2(tt.in); got != tt.want {
				t.Errorf("FormatFixed2(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFixed(t *testing.T) {
	if got := ParseFixed("12.50"); got != 12.5 {
		t.Errorf("ParseFixed = %v, want 12.5", got)
	}
	if got := ParseFixed("--"); got != 0 {
		t.Errorf("ParseFixed garbage = %v, want 0", got)
	}
	if got := ParseFixed("1e400000000"); got != 0 {
		t.Errorf("ParseFixed huge exponent = %v, want 0", got)
	}
}

func TestHumanizeCode(t *testing.T) {
	tests := map[string]string{
		"foo_bar_baz":   "Foo Bar Baz",
		"gate_opened":   "Gate Opened",
		"already Split": "Already Split",
		"":              "",
	}
	for in, want := range tests {
		if got := HumanizeCode(in); got != want {
			t.Errorf("HumanizeCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHashAlertKeyStable(t *testing.T) {
	a := HashAlertKey("alerts", "Weather Advisory", "2024-01-01 10:00:00", "Heavy rain")
	b := HashAlertKey("ALERTS", " weather advisory ", "2024-01-01 10:00:00", "heavy rain")
	if a != b {
		t.Fatalf("expected case/space-insensitive hash, got %s vs %s", a, b)
	}
	if a == HashAlertKey("complaints", "Weather Advisory", "2024-01-01 10:00:00", "Heavy rain") {
		t.Fatalf("expected source to change the hash")
	}
}
