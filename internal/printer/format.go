package printer

import (
	"fmt"
	"time"
)

var agoUnits = []struct {
	size time.Duration
	name string
}{
	{24 * time.Hour, "day"},
	{time.Hour, "hour"},
	{time.Minute, "minute"},
	{time.Second, "second"},
}

// TimeAgo returns a human readable relative time in UTC, e.g. "3 hours ago (UTC)".
func TimeAgo(t time.Time) string {
	return timeAgo(time.Now(), t)
}

func timeAgo(now, t time.Time) string {
	diff := now.UTC().Sub(t.UTC())
	if diff < 0 {
		return "in the future (UTC)"
	}

	for _, u := range agoUnits {
		n := int(diff / u.size)
		if n == 0 && u.size != time.Second {
			continue
		}
		if n == 1 {
			return fmt.Sprintf("1 %s ago (UTC)", u.name)
		}
		return fmt.Sprintf("%d %ss ago (UTC)", n, u.name)
	}

	return ""
}

// FormatTimestamp returns t as "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// FormatBytes returns a human readable size, e.g. "512 B" or "1.5 KB".
func FormatBytes(bytes int) string {
	const kb, mb = 1024, 1024 * 1024

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/kb)
	case bytes < 0:
		return "0 B"
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
