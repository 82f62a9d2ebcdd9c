package cmd

import (
	"strings"

	"github.com/fatih/color"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
)

func formatStatusWithColor(status string) string {
	switch strings.ToLower(status) {
	case "valid", "ok", "success", "delivered":
		return colorSuccess(status)
	case "warning", "skipped":
		return colorWarn(status)
	case "expired", "error", "failed":
		return colorError(status)
	default:
		return status
	}
}

// formatGrade colors A/B green, C/D yellow and F red.
func formatGrade(grade string) string {
	switch {
	case grade == "":
		return "-"
	case strings.HasPrefix(grade, "A"), strings.HasPrefix(grade, "B"):
		return colorSuccess(grade)
	case strings.HasPrefix(grade, "F"):
		return colorError(grade)
	default:
		return colorWarn(grade)
	}
}
