package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr error
	}{
		{name: "integer", input: "12", want: 12},
		{name: "dot separator", input: "12.34", want: 12.34},
		{name: "comma separator", input: "12,34", want: 12.34},
		{name: "single decimal", input: "5.5", want: 5.5},
		{name: "leading separator", input: ".75", want: 0.75},
		{name: "whitespace trimmed", input: " 8.20 ", want: 8.2},
		{name: "third decimal rounds down", input: "12.344", want: 12.34},
		{name: "third decimal rounds up", input: "12.345", want: 12.35},
		{name: "max amount", input: "999999", want: 999999},
		{name: "empty", input: "", wantErr: ErrInvalidAmount},
		{name: "zero", input: "0", wantErr: ErrInvalidAmount},
		{name: "zero with decimals", input: "0.00", wantErr: ErrInvalidAmount},
		{name: "negative rejected", input: "-5", wantErr: ErrInvalidAmount},
		{name: "plus sign rejected", input: "+5", wantErr: ErrInvalidAmount},
		{name: "letters", input: "abc", wantErr: ErrInvalidAmount},
		{name: "two separators", input: "1.2.3", wantErr: ErrInvalidAmount},
		{name: "too large", input: "1000000", wantErr: ErrAmountTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseAmount(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "0.00"},
		{12.34, "12.34"},
		{5.5, "5.50"},
		{-30, "-30.00"},
		{-0.005, "-0.01"},
		{0.004, "0.00"},
		{999999, "999999.00"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.amount); got != tt.want {
			t.Errorf("FormatAmount(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}
