package core

import "testing"

func TestParseDecimalToCentavos(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"1500", 150000, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCentavos(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseSignedDecimalToCentavos(t *testing.T) {
	got, err := ParseSignedDecimalToCentavos("-12.34")
	if err != nil || got != -1234 {
		t.Fatalf("expected -1234, got %d (err=%v)", got, err)
	}
	got, err = ParseSignedDecimalToCentavos("12.34")
	if err != nil || got != 1234 {
		t.Fatalf("expected 1234, got %d (err=%v)", got, err)
	}
	if _, err := ParseSignedDecimalToCentavos("-0"); err == nil {
		t.Fatalf("expected error for -0")
	}
}

func TestFormatPesos(t *testing.T) {
	cases := []struct {
		in  int64
		out string
	}{
		{0, "$0.00"},
		{5, "$0.05"},
		{150, "$1.50"},
		{50000, "$500.00"},
		{123456789, "$1,234,567.89"},
		{-1234, "-$12.34"},
	}
	for _, tc := range cases {
		if got := FormatPesos(tc.in); got != tc.out {
			t.Fatalf("FormatPesos(%d) = %q, want %q", tc.in, got, tc.out)
		}
	}
}
