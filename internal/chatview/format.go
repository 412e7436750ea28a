package chatview

import (
	"strconv"
	"time"
)

// FormatUnread renders a badge count.
func FormatUnread(n int) string {
	if n > 99 {
		return "99+"
	}
	return strconv.Itoa(n)
}

func TimeAgo(t, now time.Time) string {
	d := now.Sub(t)

	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return strconv.Itoa(int(d/time.Minute)) + "m ago"
	case d < 24*time.Hour:
		return strconv.Itoa(int(d/time.Hour)) + "h ago"
	default:
		return strconv.Itoa(int(d/(24*time.Hour))) + "d ago"
	}
}
