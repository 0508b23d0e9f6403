package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barberbot/internal/schedule"
)

type calendarSource struct {
	appointments map[string][]schedule.Appointment
	busy         map[string][]schedule.BusyInterval
	hours        map[time.Weekday]schedule.WorkingWindow
	holidays     []string
}

func (s *calendarSource) ListAppointments(_ context.Context, _, date string) ([]schedule.Appointment, error) {
	return s.appointments[date], nil
}

func (s *calendarSource) ListWorkingHours(context.Context, string) (map[time.Weekday]schedule.WorkingWindow, error) {
	return s.hours, nil
}

func (s *calendarSource) ListBusySlots(_ context.Context, _, date string) ([]schedule.BusyInterval, error) {
	return s.busy[date], nil
}

func (s *calendarSource) ListHolidays(context.Context, string) ([]string, error) {
	return s.holidays, nil
}

// monday is a fixed pivot so weekday-based windows are deterministic.
var monday = time.Date(2026, 3, 9, 12, 0, 0, 0, time.Local)

func weekdaySnapshot(t *testing.T, src *calendarSource, days int) *schedule.Snapshot {
	t.Helper()
	loader := schedule.NewLoader(src)
	return loader.Load(context.Background(), "test/b1", "b1", monday, days)
}

func TestDateKeyboardDimsClosedDays(t *testing.T) {
	src := &calendarSource{
		hours: map[time.Weekday]schedule.WorkingWindow{
			time.Monday: {Start: "09:00", End: "10:00"},
		},
	}
	snap := weekdaySnapshot(t, src, 2)

	kb := DateKeyboard(snap)
	require.Len(t, kb.InlineKeyboard, 3, "two days plus back row")

	mondayBtn := kb.InlineKeyboard[0][0]
	assert.Equal(t, "date:2026-03-09", *mondayBtn.CallbackData)

	tuesdayBtn := kb.InlineKeyboard[1][0]
	assert.Equal(t, "noop", *tuesdayBtn.CallbackData, "closed day is not selectable")
	assert.Contains(t, tuesdayBtn.Text, iconDimmed)
}

func TestGridKeyboardClickabilityPolicy(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2026, 3, 9, h, m, 0, 0, time.Local)
	}
	src := &calendarSource{
		hours: map[time.Weekday]schedule.WorkingWindow{
			time.Monday: {Start: "09:00", End: "10:30"},
		},
		appointments: map[string][]schedule.Appointment{
			"2026-03-09": {
				{ID: "a1", Start: at(9, 15), End: at(9, 30), Pending: false},
				{ID: "a2", Start: at(9, 30), End: at(9, 45), Pending: true},
			},
		},
		busy: map[string][]schedule.BusyInterval{
			"2026-03-09": {{ID: "x", Start: at(10, 0), End: at(10, 15)}},
		},
	}
	snap := weekdaySnapshot(t, src, 1)

	kb := GridKeyboard(snap, "2026-03-09", nil)
	buttons := map[string]string{}
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			buttons[btn.Text] = *btn.CallbackData
		}
	}

	assert.Equal(t, "slot:09:00", buttons["09:00"])
	assert.Equal(t, "noop", buttons[iconBooked+" 09:15"])
	assert.Equal(t, "noop", buttons[iconPending+" 09:30"])
	assert.Equal(t, "noop", buttons[iconBusy+" 10:00"])
	assert.Equal(t, "slot:10:15", buttons["10:15"])
}

func TestGridKeyboardDurationFilterDims(t *testing.T) {
	src := &calendarSource{
		hours: map[time.Weekday]schedule.WorkingWindow{
			time.Monday: {Start: "09:00", End: "09:30"},
		},
	}
	snap := weekdaySnapshot(t, src, 1)

	// Only 09:00 fits a 30-minute service ending at close.
	filter := schedule.FilterResult{
		"2026-03-09": {"09:00": struct{}{}},
	}
	kb := GridKeyboard(snap, "2026-03-09", filter)

	buttons := map[string]string{}
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			buttons[btn.Text] = *btn.CallbackData
		}
	}
	assert.Equal(t, "slot:09:00", buttons["09:00"])
	assert.Equal(t, "noop", buttons[iconDimmed+" 09:15"], "free slot too short for the service")
}

func TestAdminGridKeyboardEveryCellActs(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2026, 3, 9, h, m, 0, 0, time.Local)
	}
	src := &calendarSource{
		hours: map[time.Weekday]schedule.WorkingWindow{
			time.Monday: {Start: "09:00", End: "09:45"},
		},
		appointments: map[string][]schedule.Appointment{
			"2026-03-09": {{ID: "a1", Start: at(9, 0), End: at(9, 15), Pending: true}},
		},
		busy: map[string][]schedule.BusyInterval{
			"2026-03-09": {{ID: "bs1", Start: at(9, 30), End: at(9, 45)}},
		},
	}
	snap := weekdaySnapshot(t, src, 1)

	kb := AdminGridKeyboard(snap, "2026-03-09")
	buttons := map[string]string{}
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			buttons[btn.Text] = *btn.CallbackData
		}
	}

	assert.Equal(t, "adm:view:a1", buttons[iconPending+" 09:00"])
	assert.Equal(t, "adm:free:2026-03-09:09:15", buttons["09:15"], "free slots open the book-or-block menu")
	assert.Equal(t, "unblk:bs1", buttons[iconBusy+" 09:30"], "busy intervals offer removal")
}

func TestAdminGridKeyboardHolidayCellsStayDead(t *testing.T) {
	src := &calendarSource{
		hours: map[time.Weekday]schedule.WorkingWindow{
			time.Monday: {Start: "09:00", End: "09:30"},
		},
		holidays: []string{"2026-03-09"},
	}
	snap := weekdaySnapshot(t, src, 1)

	kb := AdminGridKeyboard(snap, "2026-03-09")
	require.Greater(t, len(kb.InlineKeyboard), 2, "header, slot cells, back row")
	for _, row := range kb.InlineKeyboard[1 : len(kb.InlineKeyboard)-1] {
		for _, btn := range row {
			assert.Equal(t, "noop", *btn.CallbackData, "no interval to act on for %s", btn.Text)
		}
	}
}
