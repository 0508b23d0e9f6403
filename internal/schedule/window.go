package schedule

import "time"

// VisibleDay is one column of the calendar: the weekday keys working-hours
// lookups, the date string keys appointment/busy/holiday lookups.
type VisibleDay struct {
	Time    time.Time
	Date    string // YYYY-MM-DD
	Weekday time.Weekday
}

// Label returns the heading shown to users, e.g. "Mon 09.03".
func (d VisibleDay) Label() string {
	return d.Weekday.String()[:3] + " " + d.Time.Format("02.01")
}

// Window returns n consecutive calendar days starting at pivot. Date
// arithmetic is whole calendar days in pivot's location.
func Window(pivot time.Time, n int) []VisibleDay {
	days := make([]VisibleDay, 0, n)
	for i := 0; i < n; i++ {
		d := pivot.AddDate(0, 0, i)
		d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
		days = append(days, VisibleDay{
			Time:    d,
			Date:    d.Format("2006-01-02"),
			Weekday: d.Weekday(),
		})
	}
	return days
}
