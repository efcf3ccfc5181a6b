package lead

import (
	"fmt"
	"math"
	"time"
)

var relativeUnits = []struct {
	name string
	size time.Duration
}{
	{"day", 24 * time.Hour},
	{"hour", time.Hour},
	{"minute", time.Minute},
}

// RelativeTime formats createdAt (Unix ms) relative to now, using the largest
// unit among day, hour and minute that fits.
func RelativeTime(createdAt int64, now time.Time) string {
	diff := float64(createdAt - now.UnixMilli())
	for _, u := range relativeUnits {
		ms := float64(u.size.Milliseconds())
		if math.Abs(diff) < ms && u.name != "minute" {
			continue
		}
		value := int64(math.Floor(diff/ms + 0.5))
		return formatRelative(value, u.name)
	}
	return "just now"
}

func formatRelative(value int64, unit string) string {
	switch {
	case value == 0:
		return "just now"
	case unit == "day" && value == -1:
		return "yesterday"
	case unit == "day" && value == 1:
		return "tomorrow"
	}

	n := value
	if n < 0 {
		n = -n
	}
	plural := unit
	if n != 1 {
		plural += "s"
	}
	if value < 0 {
		return fmt.Sprintf("%d %s ago", n, plural)
	}
	return fmt.Sprintf("in %d %s", n, plural)
}

// CreatedTime converts a Unix millisecond timestamp into a time.Time.
func CreatedTime(createdAt int64) time.Time {
	return time.UnixMilli(createdAt)
}
