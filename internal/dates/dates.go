// Package dates parses and formats Brazilian day-first dates.
package dates

import (
	"strings"
	"time"
)

// Accepted layouts, tried in order. Brazilian statements are day-first:
// "03/01/2026" is January 3rd, never March 1st.
var layouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2/1/06",
	"2-1-06",
}

// ParseDate parses D/M/YYYY and D-M-YYYY dates (including 2-digit-year
// variants). Returns ok=false on failure; it never panics.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders a date in DD/MM/YYYY.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

// ISO renders a date in YYYY-MM-DD, the form used in signatures and the
// export file.
func ISO(t time.Time) string {
	return t.Format("2006-01-02")
}
