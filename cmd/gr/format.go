package main

import "time"

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// firstLine returns the text up to the first newline.
func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

// formatTime renders a timestamp for table output.
func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// orDash substitutes "-" for an empty string in table cells.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
