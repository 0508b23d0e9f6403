package schedule

import (
	"context"
	"sync"
	"time"
)

// Source is the read side of the booking backend.
type Source interface {
	ListAppointments(ctx context.Context, barberID, date string) ([]Appointment, error)
	ListWorkingHours(ctx context.Context, barberID string) (map[time.Weekday]WorkingWindow, error)
	ListBusySlots(ctx context.Context, barberID, date string) ([]BusyInterval, error)
	ListHolidays(ctx context.Context, barberID string) ([]string, error)
}

// Snapshot is one consistent refresh of a barber's calendar. The grid inside
// is built only after every fetch of the refresh has finished, never from a
// partial result set.
type Snapshot struct {
	Generation uint64
	BarberID   string
	Days       []VisibleDay
	Grid       *Grid

	// Warnings names the data categories that failed and were degraded to
	// empty. The grid stays total either way.
	Warnings []string

	view string
}

// Loader fetches all calendar inputs for a refresh and rebuilds the grid.
// Each refresh carries a generation number scoped to the caller's view key;
// a snapshot stays current until the SAME view refreshes again, so one
// chat's refresh never invalidates another chat's calendar.
type Loader struct {
	source Source

	mu   sync.Mutex
	gens map[string]uint64
}

func NewLoader(source Source) *Loader {
	return &Loader{
		source: source,
		gens:   make(map[string]uint64),
	}
}

// Current reports whether a snapshot is still the latest refresh of its view.
func (l *Loader) Current(s *Snapshot) bool {
	if s == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return s.Generation == l.gens[s.view]
}

// Load runs one refresh for a view: appointments and busy intervals per
// visible day, working hours, and holidays are fetched as independent
// concurrent requests and joined before the grid is rebuilt. A failed
// category degrades to empty and is reported through Snapshot.Warnings.
func (l *Loader) Load(ctx context.Context, view, barberID string, pivot time.Time, days int) *Snapshot {
	l.mu.Lock()
	l.gens[view]++
	gen := l.gens[view]
	l.mu.Unlock()

	snap := &Snapshot{
		Generation: gen,
		BarberID:   barberID,
		Days:       Window(pivot, days),
		view:       view,
	}

	var (
		mu           sync.Mutex
		wg           sync.WaitGroup
		appointments []Appointment
		busy         []BusyInterval
		hours        map[time.Weekday]WorkingWindow
		holidays     []string

		apptFailed, busyFailed, hoursFailed, holidayFailed bool
	)

	for _, day := range snap.Days {
		wg.Add(2)
		go func(date string) {
			defer wg.Done()
			list, err := l.source.ListAppointments(ctx, barberID, date)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				apptFailed = true
				return
			}
			appointments = append(appointments, list...)
		}(day.Date)

		go func(date string) {
			defer wg.Done()
			list, err := l.source.ListBusySlots(ctx, barberID, date)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				busyFailed = true
				return
			}
			busy = append(busy, list...)
		}(day.Date)
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		wh, err := l.source.ListWorkingHours(ctx, barberID)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			hoursFailed = true
			return
		}
		hours = wh
	}()
	go func() {
		defer wg.Done()
		dates, err := l.source.ListHolidays(ctx, barberID)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			holidayFailed = true
			return
		}
		holidays = dates
	}()

	wg.Wait()

	// A partially fetched category is all-or-nothing: mixing days from a
	// half-failed fan-out would present an inconsistent calendar.
	if apptFailed {
		appointments = nil
		snap.Warnings = append(snap.Warnings, "appointments unavailable")
	}
	if busyFailed {
		busy = nil
		snap.Warnings = append(snap.Warnings, "busy intervals unavailable")
	}
	if hoursFailed {
		hours = nil
		snap.Warnings = append(snap.Warnings, "working hours unavailable")
	}
	if holidayFailed {
		holidays = nil
		snap.Warnings = append(snap.Warnings, "holidays unavailable")
	}

	holidaySet := make(map[string]struct{}, len(holidays))
	for _, d := range holidays {
		holidaySet[d] = struct{}{}
	}

	snap.Grid = BuildGrid(GridInput{
		Days:         snap.Days,
		Hours:        hours,
		Appointments: appointments,
		Busy:         busy,
		Holidays:     holidaySet,
	})
	return snap
}
