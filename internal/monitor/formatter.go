package monitor

import (
	"fmt"
	"time"
)

// FormatTimeAgo formats elapsed time as "Ns ago", "Nm ago", "Nh ago" or "Nd ago".
func FormatTimeAgo(elapsed time.Duration) string {
	seconds := int64(elapsed / time.Second)
	if seconds < 0 {
		seconds = 0
	}

	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds ago", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm ago", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%dh ago", seconds/3600)
	default:
		return fmt.Sprintf("%dd ago", seconds/86400)
	}
}

// FormatClock formats a timestamp as a wall-clock time "15:04:05".
func FormatClock(t time.Time) string {
	return t.Format("15:04:05")
}

// FormatRate formats a rate value as "X.X events/min"
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.1f events/min", rate)
}

// FormatLatency formats latency in milliseconds as "X.Xms" or "X.Xs"
func FormatLatency(latencyMS float64) string {
	if latencyMS < 1000 {
		return fmt.Sprintf("%.1fms", latencyMS)
	}
	return fmt.Sprintf("%.1fs", latencyMS/1000)
}

// FormatPercentage formats a percentage (0-100) as "X.X%"
func FormatPercentage(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}

// FormatDuration formats duration in seconds to "Xh Ym", "Xm Ys" or "Xs"
func FormatDuration(seconds int64) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
