package audio

import (
	"fmt"
	"time"
)

const (
	kilobyte = 1024
	megabyte = 1024 * kilobyte
	gigabyte = 1024 * megabyte
)

// FormatSize renders a byte count for log lines, e.g. "512 B" or "1.5 MB".
func FormatSize(bytes int64) string {
	switch {
	case bytes >= gigabyte:
		return fmt.Sprintf("%.1f GB", float64(bytes)/gigabyte)
	case bytes >= megabyte:
		return fmt.Sprintf("%.1f MB", float64(bytes)/megabyte)
	case bytes >= kilobyte:
		return fmt.Sprintf("%.1f KB", float64(bytes)/kilobyte)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatElapsed renders a conversion duration, e.g. "45.2s", "5m 30.5s" or "1h 15m".
func FormatElapsed(elapsed time.Duration) string {
	seconds := elapsed.Seconds()

	switch {
	case elapsed < time.Minute:
		return fmt.Sprintf("%.1fs", seconds)
	case elapsed < time.Hour:
		minutes := int(elapsed / time.Minute)

		return fmt.Sprintf("%dm %.1fs", minutes, seconds-float64(minutes*60))
	default:
		hours := int(elapsed / time.Hour)
		minutes := int((elapsed % time.Hour) / time.Minute)

		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
}
