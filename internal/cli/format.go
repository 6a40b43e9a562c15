// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatCount formats a client count with human-readable suffixes.
// e.g., 1234 -> "1.2K", 1234567 -> "1.2M"
func FormatCount(n int64) string {
	abs := n
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(n)/1_000_000_000)
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case abs >= 10_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return FormatNumber(n)
	}
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// FormatFloat rounds a fitted value to the nearest integer and formats it.
func FormatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return FormatNumber(int64(math.Round(v)))
}

// FormatDelta formats the change from previous to current with a sign.
func FormatDelta(current, previous int64) string {
	delta := current - previous
	if delta >= 0 {
		return "+" + FormatNumber(delta)
	}
	return FormatNumber(delta)
}

// FormatPercentChange formats the relative change from previous to current.
// A zero previous value has no meaningful ratio and yields "".
func FormatPercentChange(current, previous int64) string {
	if previous == 0 {
		return ""
	}
	pct := float64(current-previous) / float64(previous) * 100
	return fmt.Sprintf("%+.1f%%", pct)
}

// FormatMonth turns "2024-01" into "Jan 2024". Unparseable labels pass through.
func FormatMonth(yearMonth string) string {
	t, err := time.Parse("2006-01", yearMonth)
	if err != nil {
		return yearMonth
	}
	return t.Format("Jan 2006")
}

// FormatMonthShort turns "2024-01" into "Jan 24".
func FormatMonthShort(yearMonth string) string {
	t, err := time.Parse("2006-01", yearMonth)
	if err != nil {
		return yearMonth
	}
	return t.Format("Jan 06")
}
