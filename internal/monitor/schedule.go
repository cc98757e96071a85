package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule decides when the next checking cycle starts.
//
// Supported forms:
//   - Interval duration: "720m", "2h30m"
//   - Cron (crontab.guru-style): "0 9 * * *", "@hourly", "@every 55m"
type Schedule struct {
	every time.Duration
	cron  cron.Schedule
	src   string
}

func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("monitor.schedule required")
	}

	// Any whitespace or a leading '@' means cron territory.
	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		sched, err := cron.ParseStandard(s)
		if err != nil {
			return Schedule{}, fmt.Errorf("monitor.schedule: invalid cron %q: %w", s, err)
		}
		return Schedule{cron: sched, src: s}, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return Schedule{}, fmt.Errorf("monitor.schedule: invalid interval %q: %w", s, err)
	}
	if d <= 0 {
		return Schedule{}, fmt.Errorf("monitor.schedule: interval must be > 0")
	}
	return Schedule{every: d, src: s}, nil
}

// Next returns the start of the cycle following one that began at cycleStart.
// For intervals this is cycleStart+every, so a slow cycle eats into the wait
// instead of drifting the schedule.
func (s Schedule) Next(cycleStart time.Time) time.Time {
	if s.cron != nil {
		return s.cron.Next(cycleStart)
	}
	return cycleStart.Add(s.every)
}

func (s Schedule) IsZero() bool { return s.cron == nil && s.every == 0 }

func (s Schedule) String() string { return s.src }
