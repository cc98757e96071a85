package domain

import (
	"strings"
	"time"
)

// dateLayouts are the formats MoySklad attribute values show up in,
// most specific first.
var dateLayouts = []string{
	"02.01.2006 15:04",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a MoySklad date attribute value.
// Returns the zero time when no layout matches.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// DaysUntil returns whole days from now to t, truncating toward zero the way
// the alerting buckets expect: 23h left is 0 days, 1h past due is -1 day.
func DaysUntil(t, now time.Time) int {
	d := t.Sub(now)
	days := int(d / (24 * time.Hour))
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return days
}
