// Package util holds small formatting helpers shared by the open/close
// commands' human-readable summaries, adapted from the teacher's own
// dashboard-wide number formatters (internal/util/format.go).
package util

import "fmt"

// FormatNumber formats an int64 with a K/M suffix for readability.
// Examples: 500 -> "500", 1500 -> "1.5K", 1500000 -> "1.5M".
func FormatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// FormatTokensInt formats an int64 token count with a K/M suffix,
// matching FormatNumber's thresholds under the name the open command's
// summary line uses.
func FormatTokensInt(n int64) string {
	return FormatNumber(n)
}
