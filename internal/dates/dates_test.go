package dates

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"day first slash", "03/01/2026", time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)},
		{"day first dash", "03-01-2026", time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)},
		{"no leading zeros", "3/1/2026", time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)},
		{"two digit year", "03/01/26", time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)},
		{"end of year", "31/12/2025", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)},
		{"surrounding whitespace", " 15/06/2025 ", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if !ok {
				t.Fatalf("ParseDate(%q) ok = false, want true", tt.input)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDate_DayFirst(t *testing.T) {
	// 03/01 must be January 3rd, never March 1st.
	got, ok := ParseDate("03/01/2026")
	if !ok {
		t.Fatal("ParseDate(03/01/2026) failed")
	}
	if got.Month() != time.January || got.Day() != 3 {
		t.Errorf("ParseDate(03/01/2026) = %v, want January 3rd", got)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"garbage", "not a date"},
		{"month out of range", "01/13/2026"},
		{"day out of range", "32/01/2026"},
		{"iso format", "2026-01-03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := ParseDate(tt.input); ok {
				t.Errorf("ParseDate(%q) = %v, ok = true, want failure", tt.input, got)
			}
		})
	}
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	if got := FormatDate(d); got != "03/01/2026" {
		t.Errorf("FormatDate() = %q, want %q", got, "03/01/2026")
	}
	if got := FormatDate(time.Time{}); got != "" {
		t.Errorf("FormatDate(zero) = %q, want empty", got)
	}
}

func TestISO(t *testing.T) {
	d := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	if got := ISO(d); got != "2026-01-03" {
		t.Errorf("ISO() = %q, want %q", got, "2026-01-03")
	}
}
