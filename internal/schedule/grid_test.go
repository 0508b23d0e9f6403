package schedule

import (
	"testing"
	"time"
)

func mondayWindow() []VisibleDay {
	return Window(time.Date(2026, 3, 9, 0, 0, 0, 0, time.Local), 5)
}

func at(day VisibleDay, label string) time.Time {
	instant, _ := SlotInstant(day.Time, label)
	return instant
}

func TestBuildGridTotality(t *testing.T) {
	days := mondayWindow()
	hours := map[time.Weekday]WorkingWindow{
		time.Monday:    {Start: "09:00", End: "18:00"},
		time.Tuesday:   {Start: "09:00", End: "18:00"},
		time.Wednesday: {Start: "10:00", End: "14:00"},
		// Thursday and Friday closed.
	}

	grid := BuildGrid(GridInput{Days: days, Hours: hours})

	for _, day := range days {
		labels := grid.SlotLabels(day.Date)
		if _, open := hours[day.Weekday]; !open {
			if len(labels) != 0 {
				t.Errorf("%s: closed day generated %d slots", day.Date, len(labels))
			}
			continue
		}
		if len(labels) == 0 {
			t.Errorf("%s: open day generated no slots", day.Date)
		}
		for _, label := range labels {
			status := grid.Status(day.Date, label)
			if status != StatusAvailable {
				t.Errorf("%s %s: expected available with no inputs, got %s", day.Date, label, status)
			}
		}
	}

	// Cells outside the generated grid render blocked.
	if got := grid.Status(days[3].Date, "09:00"); got != StatusBusy {
		t.Errorf("closed day cell: expected busy, got %s", got)
	}
	if got := grid.Status(days[0].Date, "23:45"); got != StatusBusy {
		t.Errorf("out-of-window cell: expected busy, got %s", got)
	}
}

func TestBuildGridAppointmentOverlap(t *testing.T) {
	days := mondayWindow()
	monday := days[0]
	hours := map[time.Weekday]WorkingWindow{time.Monday: {Start: "09:00", End: "10:00"}}

	grid := BuildGrid(GridInput{
		Days:  days,
		Hours: hours,
		Appointments: []Appointment{
			{ID: "a1", Start: at(monday, "09:15"), End: at(monday, "09:45")},
		},
	})

	tests := []struct {
		label    string
		expected SlotStatus
	}{
		{"09:00", StatusAvailable},
		{"09:15", StatusBooked},
		{"09:30", StatusBooked},
		{"09:45", StatusAvailable}, // end is exclusive
	}
	for _, tt := range tests {
		if got := grid.Status(monday.Date, tt.label); got != tt.expected {
			t.Errorf("%s: expected %s, got %s", tt.label, tt.expected, got)
		}
	}

	if id := grid.AppointmentID(monday.Date, "09:30"); id != "a1" {
		t.Errorf("expected appointment a1 at 09:30, got %q", id)
	}
	if id := grid.AppointmentID(monday.Date, "09:00"); id != "" {
		t.Errorf("expected no appointment at 09:00, got %q", id)
	}
}

func TestBuildGridPendingStatus(t *testing.T) {
	days := mondayWindow()
	monday := days[0]
	hours := map[time.Weekday]WorkingWindow{time.Monday: {Start: "09:00", End: "10:00"}}

	grid := BuildGrid(GridInput{
		Days:  days,
		Hours: hours,
		Appointments: []Appointment{
			{ID: "p1", Start: at(monday, "09:00"), End: at(monday, "09:30"), Pending: true},
		},
	})

	if got := grid.Status(monday.Date, "09:15"); got != StatusPending {
		t.Errorf("expected pending, got %s", got)
	}
}

func TestBuildGridBusyPrecedence(t *testing.T) {
	days := mondayWindow()
	monday := days[0]
	hours := map[time.Weekday]WorkingWindow{time.Monday: {Start: "09:00", End: "10:00"}}

	// A booked appointment and a busy interval cover the same slot; blocking
	// wins.
	grid := BuildGrid(GridInput{
		Days:  days,
		Hours: hours,
		Appointments: []Appointment{
			{ID: "a1", Start: at(monday, "09:00"), End: at(monday, "09:30")},
		},
		Busy: []BusyInterval{
			{ID: "bs1", Start: at(monday, "09:00"), End: at(monday, "09:30")},
		},
	})

	if got := grid.Status(monday.Date, "09:00"); got != StatusBusy {
		t.Errorf("expected busy to dominate booked, got %s", got)
	}
	if got := grid.Status(monday.Date, "09:15"); got != StatusBusy {
		t.Errorf("expected busy to dominate booked, got %s", got)
	}
	// The appointment and the interval stay reachable for admin actions.
	if id := grid.AppointmentID(monday.Date, "09:00"); id != "a1" {
		t.Errorf("expected appointment preserved under busy cell, got %q", id)
	}
	if id := grid.BusyID(monday.Date, "09:00"); id != "bs1" {
		t.Errorf("expected busy interval id on the cell, got %q", id)
	}
}

func TestBuildGridHoliday(t *testing.T) {
	days := mondayWindow()
	monday := days[0]
	hours := map[time.Weekday]WorkingWindow{time.Monday: {Start: "09:00", End: "11:00"}}

	grid := BuildGrid(GridInput{
		Days:  days,
		Hours: hours,
		Appointments: []Appointment{
			{ID: "a1", Start: at(monday, "09:00"), End: at(monday, "09:30")},
		},
		Holidays: map[string]struct{}{monday.Date: {}},
	})

	for _, label := range grid.SlotLabels(monday.Date) {
		if got := grid.Status(monday.Date, label); got != StatusBusy {
			t.Errorf("%s: holiday slot expected busy, got %s", label, got)
			break
		}
	}
	if id := grid.BusyID(monday.Date, "09:00"); id != "" {
		t.Errorf("holiday cell carries no busy interval, got %q", id)
	}
}

func TestBuildGridUnalignedInterval(t *testing.T) {
	days := mondayWindow()
	monday := days[0]
	hours := map[time.Weekday]WorkingWindow{time.Monday: {Start: "09:00", End: "10:00"}}

	// 09:10-09:35 is not slot aligned; it must still occupy the 09:15 and
	// 09:30 cells it contains, and 09:00 via interval containment.
	start := monday.Time.Add(9*time.Hour + 10*time.Minute)
	end := monday.Time.Add(9*time.Hour + 35*time.Minute)
	grid := BuildGrid(GridInput{
		Days:         days,
		Hours:        hours,
		Appointments: []Appointment{{ID: "a1", Start: start, End: end}},
	})

	if got := grid.Status(monday.Date, "09:15"); got != StatusBooked {
		t.Errorf("09:15: expected booked, got %s", got)
	}
	if got := grid.Status(monday.Date, "09:30"); got != StatusBooked {
		t.Errorf("09:30: expected booked, got %s", got)
	}
	if got := grid.Status(monday.Date, "09:45"); got != StatusAvailable {
		t.Errorf("09:45: expected available, got %s", got)
	}
	if got := grid.Status(monday.Date, "09:00"); got != StatusAvailable {
		t.Errorf("09:00: slot instant precedes the interval, expected available, got %s", got)
	}
}
