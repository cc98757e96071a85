package domain

import (
	"testing"
	"time"
)

func TestParseDateLayouts(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"15.03.2026 09:30", time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)},
		{"2026-03-15 09:30:00", time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)},
		{"2026-03-15 09:30:00.123456", time.Date(2026, 3, 15, 9, 30, 0, 123456000, time.UTC)},
		{"2026-03-15", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"  2026-03-15  ", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		got := ParseDate(c.in)
		if !got.Equal(c.want) {
			t.Errorf("ParseDate(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseDateInvalid(t *testing.T) {
	for _, in := range []string{"", "not a date", "15/03/2026", "2026-13-40"} {
		if got := ParseDate(in); !got.IsZero() {
			t.Errorf("ParseDate(%q) = %v, want zero", in, got)
		}
	}
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		at   time.Time
		want int
	}{
		{now.Add(23 * time.Hour), 0},
		{now.Add(24 * time.Hour), 1},
		{now.Add(25 * time.Hour), 1},
		{now.Add(7 * 24 * time.Hour), 7},
		{now, 0},
		{now.Add(-time.Hour), -1},
		{now.Add(-24 * time.Hour), -1},
		{now.Add(-25 * time.Hour), -2},
	}
	for _, c := range cases {
		if got := DaysUntil(c.at, now); got != c.want {
			t.Errorf("DaysUntil(%v) = %d, want %d", c.at.Sub(now), got, c.want)
		}
	}
}
