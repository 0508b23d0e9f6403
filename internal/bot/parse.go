package bot

import (
	"fmt"
	"strings"
	"time"

	"barberbot/internal/backend"
)

// normalizePhone strips formatting and keeps a leading plus. Accepts 7 to 15
// digits.
func normalizePhone(input string) (string, bool) {
	input = strings.TrimSpace(input)
	plus := strings.HasPrefix(input, "+")
	digits := filterDigits(input)
	if len(digits) < 7 || len(digits) > 15 {
		return "", false
	}
	if plus {
		return "+" + digits, true
	}
	return digits, true
}

func filterDigits(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// parseBlockRange parses "YYYY-MM-DD HH:MM HH:MM [reason]" into a busy slot
// request for the given barber.
func parseBlockRange(barberID, text string) (backend.CreateBusySlotRequest, error) {
	fields := strings.Fields(text)
	if len(fields) < 3 {
		return backend.CreateBusySlotRequest{}, fmt.Errorf("expected date, start and end")
	}

	date, startClock, endClock := fields[0], fields[1], fields[2]
	if _, err := time.ParseInLocation("2006-01-02", date, time.Local); err != nil {
		return backend.CreateBusySlotRequest{}, fmt.Errorf("invalid date %s", date)
	}
	start, err := time.ParseInLocation("15:04", startClock, time.Local)
	if err != nil {
		return backend.CreateBusySlotRequest{}, fmt.Errorf("invalid start %s", startClock)
	}
	end, err := time.ParseInLocation("15:04", endClock, time.Local)
	if err != nil {
		return backend.CreateBusySlotRequest{}, fmt.Errorf("invalid end %s", endClock)
	}
	if !end.After(start) {
		return backend.CreateBusySlotRequest{}, fmt.Errorf("end must be after start")
	}

	return backend.CreateBusySlotRequest{
		BarberID:  barberID,
		StartTime: date + "T" + startClock + ":00",
		EndTime:   date + "T" + endClock + ":00",
		Reason:    strings.Join(fields[3:], " "),
	}, nil
}

// parseHolidayMark recognizes "YYYY-MM-DD off", the whole-day form of the
// block dialog.
func parseHolidayMark(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) != 2 || !strings.EqualFold(fields[1], "off") {
		return "", false
	}
	if _, err := time.ParseInLocation("2006-01-02", fields[0], time.Local); err != nil {
		return "", false
	}
	return fields[0], true
}

// splitCell splits a "YYYY-MM-DD:HH:MM" callback payload into its date and
// slot label. The date carries no colons, so the first one is the boundary.
func splitCell(cell string) (date, label string, ok bool) {
	date, label, ok = strings.Cut(cell, ":")
	if !ok || len(date) != 10 || label == "" {
		return "", "", false
	}
	return date, label, true
}

var weekdayNames = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// parseScheduleText parses "Mon 09:00 18:00; Sat 10:00 14:00" into weekly
// windows. The word "clear" yields an empty schedule.
func parseScheduleText(text string) ([]backend.WorkingHour, error) {
	text = strings.TrimSpace(text)
	if strings.EqualFold(text, "clear") {
		return nil, nil
	}

	var days []backend.WorkingHour
	seen := make(map[int]bool)
	for _, entry := range strings.Split(text, ";") {
		fields := strings.Fields(entry)
		if len(fields) != 3 {
			return nil, fmt.Errorf("expected 'Day HH:MM HH:MM', got %q", strings.TrimSpace(entry))
		}

		day, ok := weekdayNames[strings.ToLower(fields[0])[:min(3, len(fields[0]))]]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", fields[0])
		}
		if seen[day] {
			return nil, fmt.Errorf("duplicate weekday %q", fields[0])
		}
		seen[day] = true

		for _, clock := range fields[1:] {
			if _, err := time.ParseInLocation("15:04", clock, time.Local); err != nil {
				return nil, fmt.Errorf("invalid time %q", clock)
			}
		}
		days = append(days, backend.WorkingHour{Day: day, Start: fields[1], End: fields[2]})
	}
	return days, nil
}
