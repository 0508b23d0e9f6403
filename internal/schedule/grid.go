package schedule

import "time"

// SlotStatus is the resolved state of a single grid cell.
type SlotStatus int

const (
	StatusAvailable SlotStatus = iota
	StatusPending
	StatusBooked
	StatusBusy
)

func (s SlotStatus) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusPending:
		return "pending"
	case StatusBooked:
		return "booked"
	case StatusBusy:
		return "busy"
	}
	return "unknown"
}

// WorkingWindow is a barber's open/close times for one weekday.
type WorkingWindow struct {
	Start string // "HH:MM"
	End   string // "HH:MM"
}

// Appointment is a booked or pending reservation interval.
type Appointment struct {
	ID      string
	Start   time.Time
	End     time.Time
	Pending bool
}

// BusyInterval is an admin-entered block that occupies time without being an
// appointment.
type BusyInterval struct {
	ID    string
	Start time.Time
	End   time.Time
}

// GridInput collects everything a rebuild consumes. Missing categories are
// represented as empty, never nil-checked individually.
type GridInput struct {
	Days         []VisibleDay
	Hours        map[time.Weekday]WorkingWindow
	Appointments []Appointment
	Busy         []BusyInterval
	Holidays     map[string]struct{} // YYYY-MM-DD
}

type cell struct {
	status        SlotStatus
	appointmentID string
	busyID        string
}

// Grid is the day×slot→status projection. It is rebuilt from scratch on every
// input change and never patched in place.
type Grid struct {
	days  []VisibleDay
	slots map[string][]string // date -> ordered labels
	cells map[string]map[string]cell
}

// BuildGrid resolves exactly one status per generated (day, slot) pair.
// Precedence: busy interval / holiday > pending or booked appointment >
// available. Days without a working window contribute no slots.
func BuildGrid(in GridInput) *Grid {
	g := &Grid{
		days:  in.Days,
		slots: make(map[string][]string, len(in.Days)),
		cells: make(map[string]map[string]cell, len(in.Days)),
	}

	for _, day := range in.Days {
		win, ok := in.Hours[day.Weekday]
		if !ok {
			continue
		}
		labels := Slots(win.Start, win.End)
		if len(labels) == 0 {
			continue
		}
		g.slots[day.Date] = labels

		_, holiday := in.Holidays[day.Date]

		row := make(map[string]cell, len(labels))
		for _, label := range labels {
			instant, err := SlotInstant(day.Time, label)
			if err != nil {
				continue
			}

			c := cell{status: StatusAvailable}
			for i := range in.Appointments {
				a := &in.Appointments[i]
				if !instant.Before(a.Start) && instant.Before(a.End) {
					c.appointmentID = a.ID
					if a.Pending {
						c.status = StatusPending
					} else {
						c.status = StatusBooked
					}
					break
				}
			}

			if id, ok := busyAt(instant, in.Busy); ok {
				c.status = StatusBusy
				c.busyID = id
			} else if holiday {
				c.status = StatusBusy
			}
			row[label] = c
		}
		g.cells[day.Date] = row
	}
	return g
}

func busyAt(instant time.Time, busy []BusyInterval) (string, bool) {
	for i := range busy {
		if !instant.Before(busy[i].Start) && instant.Before(busy[i].End) {
			return busy[i].ID, true
		}
	}
	return "", false
}

// Days returns the visible days the grid was built for.
func (g *Grid) Days() []VisibleDay {
	return g.days
}

// SlotLabels returns the ordered slot labels generated for a date. Empty for
// days without a working window.
func (g *Grid) SlotLabels(date string) []string {
	return g.slots[date]
}

// Status resolves one cell. Slots outside the generated grid report busy, so
// a day without working hours renders fully blocked.
func (g *Grid) Status(date, label string) SlotStatus {
	row, ok := g.cells[date]
	if !ok {
		return StatusBusy
	}
	c, ok := row[label]
	if !ok {
		return StatusBusy
	}
	return c.status
}

// AppointmentID returns the appointment occupying a cell, if any.
func (g *Grid) AppointmentID(date, label string) string {
	if row, ok := g.cells[date]; ok {
		return row[label].appointmentID
	}
	return ""
}

// BusyID returns the busy interval occupying a cell. Empty for cells blocked
// by a holiday rather than an interval.
func (g *Grid) BusyID(date, label string) string {
	if row, ok := g.cells[date]; ok {
		return row[label].busyID
	}
	return ""
}
