package monitor

import (
	"testing"
	"time"
)

func TestParseScheduleInterval(t *testing.T) {
	s, err := ParseSchedule("12h")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	start := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	// A slow cycle eats into the wait: next fires relative to cycle start.
	if got, want := s.Next(start), start.Add(12*time.Hour); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
	if s.String() != "12h" {
		t.Fatalf("String = %q", s.String())
	}
}

func TestParseScheduleCron(t *testing.T) {
	s, err := ParseSchedule("0 9 * * *")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	start := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	want := time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)
	if got := s.Next(start); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestParseScheduleDescriptor(t *testing.T) {
	if _, err := ParseSchedule("@every 30m"); err != nil {
		t.Fatalf("descriptor rejected: %v", err)
	}
	if _, err := ParseSchedule("@daily"); err != nil {
		t.Fatalf("descriptor rejected: %v", err)
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	for _, raw := range []string{"", "0h", "-5m", "banana", "* * *"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Errorf("ParseSchedule(%q) accepted", raw)
		}
	}
}
