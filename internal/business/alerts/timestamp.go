package alerts

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

// AbsoluteLayout renders timestamps older than a week.
const AbsoluteLayout = "Jan 2, 2006"

// ParseTimestamp reads producer timestamp text: the zero-padded wall-clock layout in
// loc, RFC 3339, or epoch milliseconds.
func ParseTimestamp(text string, loc *time.Location) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(model.TimestampLayout, text, loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t, true
	}
	if ms, err := strconv.ParseInt(text, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}

// Humanize turns a timestamp into a relative label. Text that cannot be parsed is
// returned unchanged.
func Humanize(text string, now time.Time, loc *time.Location) string {
	t, ok := ParseTimestamp(text, loc)
	if !ok {
		return text
	}
	return HumanizeTime(t, now, loc)
}

// HumanizeTime is Humanize for an already parsed instant.
func HumanizeTime(t, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%d mins ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(d/(24*time.Hour)))
	default:
		return t.In(loc).Format(AbsoluteLayout)
	}
}
