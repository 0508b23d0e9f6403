// Package schedule derives per-barber availability grids from backend data.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Granularity is the fixed time quantum all interval math is expressed in.
const Granularity = 15 * time.Minute

// GranularityMinutes is Granularity expressed in minutes.
const GranularityMinutes = 15

// Slots generates ordered "HH:MM" labels covering [start, end) at the fixed
// 15-minute granularity. A window where start >= end yields no slots.
func Slots(start, end string) []string {
	startMin, err := parseClock(start)
	if err != nil {
		return nil
	}
	endMin, err := parseClock(end)
	if err != nil {
		return nil
	}

	var labels []string
	for cur := startMin; cur < endMin; cur += GranularityMinutes {
		labels = append(labels, formatClock(cur))
	}
	return labels
}

// SlotInstant combines a calendar day with a slot label into an absolute
// instant in the day's location.
func SlotInstant(day time.Time, label string) (time.Time, error) {
	min, err := parseClock(label)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), min/60, min%60, 0, 0, day.Location()), nil
}

func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid time format: %s", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour: %w", err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute: %w", err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time out of range: %s", s)
	}
	return hour*60 + minute, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
