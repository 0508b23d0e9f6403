// Package backend is the HTTP client for the barbershop booking API. The
// backend owns all domain data; this client only reads and writes it.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"barberbot/internal/schedule"
)

// TokenSource supplies the bearer credential for a single request. Keeping it
// a callback avoids any ambient process-wide token state.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource for a fixed credential.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend: http %d", e.StatusCode)
}

// Client calls the barbershop booking backend.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client for baseURL with per-request credentials.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache configures optional Redis caching for slow-changing GET
// endpoints (barbers, working hours, holidays).
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// ListBarbers returns all barbers available for booking.
func (c *Client) ListBarbers(ctx context.Context) ([]Barber, error) {
	endpoint := c.baseURL + "/api/Barber/get-barber"
	var barbers []Barber

	if c.readCache(ctx, "barbers", &barbers) {
		return barbers, nil
	}
	if err := c.doGet(ctx, endpoint, &barbers); err != nil {
		return nil, err
	}
	c.writeCache(ctx, "barbers", barbers)
	return barbers, nil
}

// ListAppointments fetches appointments of a barber for one date (YYYY-MM-DD)
// converted to the schedule's interval model.
func (c *Client) ListAppointments(ctx context.Context, barberID, date string) ([]schedule.Appointment, error) {
	endpoint := fmt.Sprintf("%s/api/Appointment/appointments?barberId=%s&date=%s",
		c.baseURL, url.QueryEscape(barberID), url.QueryEscape(date+"T00:00:00"))

	var wire []Appointment
	if err := c.doGet(ctx, endpoint, &wire); err != nil {
		return nil, err
	}

	out := make([]schedule.Appointment, 0, len(wire))
	for _, a := range wire {
		start, err := parseWireTime(a.StartTime)
		if err != nil {
			continue
		}
		end, err := parseWireTime(a.EndTime)
		if err != nil {
			continue
		}
		out = append(out, schedule.Appointment{
			ID:      a.ID,
			Start:   start,
			End:     end,
			Pending: strings.EqualFold(a.Status, "pending"),
		})
	}
	return out, nil
}

// ListAppointmentsRaw fetches appointments with their wire fields intact, for
// listings that need client name and service type.
func (c *Client) ListAppointmentsRaw(ctx context.Context, barberID, date string) ([]Appointment, error) {
	endpoint := fmt.Sprintf("%s/api/Appointment/appointments?barberId=%s&date=%s",
		c.baseURL, url.QueryEscape(barberID), url.QueryEscape(date+"T00:00:00"))
	var wire []Appointment
	if err := c.doGet(ctx, endpoint, &wire); err != nil {
		return nil, err
	}
	return wire, nil
}

// ListWorkingHours returns the weekly working windows of a barber keyed by
// weekday. Weekdays the barber does not work are absent from the map.
func (c *Client) ListWorkingHours(ctx context.Context, barberID string) (map[time.Weekday]schedule.WorkingWindow, error) {
	endpoint := fmt.Sprintf("%s/api/Appointment/working-hours?barberId=%s",
		c.baseURL, url.QueryEscape(barberID))
	cacheKey := "working-hours:" + barberID

	var wire []WorkingHour
	if !c.readCache(ctx, cacheKey, &wire) {
		if err := c.doGet(ctx, endpoint, &wire); err != nil {
			return nil, err
		}
		c.writeCache(ctx, cacheKey, wire)
	}

	hours := make(map[time.Weekday]schedule.WorkingWindow, len(wire))
	for _, wh := range wire {
		if wh.Day < 0 || wh.Day > 6 || wh.Start == "" || wh.End == "" {
			continue
		}
		hours[time.Weekday(wh.Day)] = schedule.WorkingWindow{Start: wh.Start, End: wh.End}
	}
	return hours, nil
}

// ListBusySlots fetches admin-entered blocks of a barber for one date.
func (c *Client) ListBusySlots(ctx context.Context, barberID, date string) ([]schedule.BusyInterval, error) {
	endpoint := fmt.Sprintf("%s/api/Appointment/busyslots?barberId=%s&date=%s",
		c.baseURL, url.QueryEscape(barberID), url.QueryEscape(date))

	var wire []BusySlot
	if err := c.doGet(ctx, endpoint, &wire); err != nil {
		return nil, err
	}

	out := make([]schedule.BusyInterval, 0, len(wire))
	for _, b := range wire {
		start, err := parseWireTime(b.StartTime)
		if err != nil {
			continue
		}
		end, err := parseWireTime(b.EndTime)
		if err != nil || end.Year() <= 1 {
			continue
		}
		out = append(out, schedule.BusyInterval{ID: b.ID, Start: start, End: end})
	}
	return out, nil
}

// ListHolidays returns full-day exclusion dates (YYYY-MM-DD) for a barber.
func (c *Client) ListHolidays(ctx context.Context, barberID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/api/Appointment/holiday?barberId=%s",
		c.baseURL, url.QueryEscape(barberID))
	cacheKey := "holidays:" + barberID

	var dates []string
	if c.readCache(ctx, cacheKey, &dates) {
		return dates, nil
	}
	if err := c.doGet(ctx, endpoint, &dates); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, dates)
	return dates, nil
}

// ListAvailableSlots returns the server-computed per-slot availability flags
// used by the duration filter.
func (c *Client) ListAvailableSlots(ctx context.Context, barberID string, serviceType, days int) (map[string][]schedule.SlotFlag, error) {
	endpoint := fmt.Sprintf("%s/api/Appointment/available-slots?barberId=%s&serviceType=%d&days=%d",
		c.baseURL, url.QueryEscape(barberID), serviceType, days)

	var wire map[string][]AvailableSlot
	if err := c.doGet(ctx, endpoint, &wire); err != nil {
		return nil, err
	}

	out := make(map[string][]schedule.SlotFlag, len(wire))
	for date, slots := range wire {
		day, err := parseWireTime(date)
		if err != nil {
			continue
		}
		flags := make([]schedule.SlotFlag, 0, len(slots))
		for _, s := range slots {
			t, err := parseWireTime(s.Time)
			if err != nil {
				continue
			}
			flags = append(flags, schedule.SlotFlag{Label: t.Format("15:04"), Available: s.IsAvailable})
		}
		out[day.Format("2006-01-02")] = flags
	}
	return out, nil
}

// CreateAppointment books a slot for the calling customer.
func (c *Client) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (*Appointment, error) {
	endpoint := c.baseURL + "/api/Appointment/create"
	var created Appointment
	if err := c.doJSON(ctx, http.MethodPost, endpoint, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateManualAppointment books a slot on behalf of a walk-in client.
func (c *Client) CreateManualAppointment(ctx context.Context, req ManualAppointmentRequest) (*Appointment, error) {
	endpoint := c.baseURL + "/api/Admin/manual"
	var created Appointment
	if err := c.doJSON(ctx, http.MethodPost, endpoint, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetAppointmentDetails fetches one appointment with client contact fields.
func (c *Client) GetAppointmentDetails(ctx context.Context, id string) (*AppointmentDetails, error) {
	endpoint := fmt.Sprintf("%s/api/Admin/appointment/%s", c.baseURL, url.PathEscape(id))
	var details AppointmentDetails
	if err := c.doGet(ctx, endpoint, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// ApproveAppointment transitions a pending appointment to booked.
func (c *Client) ApproveAppointment(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/api/Admin/appointment/%s/approve", c.baseURL, url.PathEscape(id))
	return c.doJSON(ctx, http.MethodPut, endpoint, nil, nil)
}

// RejectAppointment transitions a pending appointment to cancelled.
func (c *Client) RejectAppointment(ctx context.Context, id, reason string) error {
	endpoint := fmt.Sprintf("%s/api/Admin/appointment/%s/reject", c.baseURL, url.PathEscape(id))
	return c.doJSON(ctx, http.MethodPut, endpoint, reasonBody{Reason: reason}, nil)
}

// CancelAppointment transitions a booked appointment to cancelled.
func (c *Client) CancelAppointment(ctx context.Context, id, reason string) error {
	endpoint := fmt.Sprintf("%s/api/Admin/appointment/%s/cancel", c.baseURL, url.PathEscape(id))
	return c.doJSON(ctx, http.MethodPut, endpoint, reasonBody{Reason: reason}, nil)
}

// CreateBusySlot blocks out a time range for a barber.
func (c *Client) CreateBusySlot(ctx context.Context, req CreateBusySlotRequest) error {
	endpoint := c.baseURL + "/api/Admin/busyslot"
	return c.doJSON(ctx, http.MethodPost, endpoint, req, nil)
}

// DeleteBusySlot removes a previously created block.
func (c *Client) DeleteBusySlot(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/api/Admin/busyslot/%s", c.baseURL, url.PathEscape(id))
	return c.doJSON(ctx, http.MethodDelete, endpoint, nil, nil)
}

// CreateHoliday marks a whole day (YYYY-MM-DD) off for a barber.
func (c *Client) CreateHoliday(ctx context.Context, barberID, date string) error {
	endpoint := c.baseURL + "/api/Admin/holiday"
	body := struct {
		BarberID string `json:"barberId"`
		Date     string `json:"date"`
	}{BarberID: barberID, Date: date}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, nil); err != nil {
		return err
	}
	c.invalidate(ctx, "holidays:"+barberID)
	return nil
}

// GetAdminWorkingHours returns the raw weekly schedule rows for management.
func (c *Client) GetAdminWorkingHours(ctx context.Context, barberID string) ([]WorkingHour, error) {
	endpoint := fmt.Sprintf("%s/api/Admin/get-working-hours?barberId=%s",
		c.baseURL, url.QueryEscape(barberID))
	var wire []WorkingHour
	if err := c.doGet(ctx, endpoint, &wire); err != nil {
		return nil, err
	}
	return wire, nil
}

// AddWorkingHours creates or replaces weekly working windows for a barber.
func (c *Client) AddWorkingHours(ctx context.Context, barberID string, days []WorkingHour) error {
	endpoint := c.baseURL + "/api/Admin/add-working-hours"
	body := struct {
		BarberID string        `json:"barberId"`
		Days     []WorkingHour `json:"days"`
	}{BarberID: barberID, Days: days}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, nil); err != nil {
		return err
	}
	c.invalidate(ctx, "working-hours:"+barberID)
	return nil
}

// DeleteWorkingHours removes every weekly window of a barber.
func (c *Client) DeleteWorkingHours(ctx context.Context, barberID string) error {
	endpoint := fmt.Sprintf("%s/api/Admin/working-hours/by-barber/%s", c.baseURL, url.PathEscape(barberID))
	if err := c.doJSON(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return err
	}
	c.invalidate(ctx, "working-hours:"+barberID)
	return nil
}

// HealthCheck reports whether the backend answers at all.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

type reasonBody struct {
	Reason string `json:"reason"`
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, "barberbot:"+key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, "barberbot:"+key, data, c.cacheTTL).Err()
}

func (c *Client) invalidate(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, "barberbot:"+key).Err()
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = strings.NewReader(string(data))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.tokens != nil {
		token, err := c.tokens(req.Context())
		if err != nil {
			return fmt.Errorf("credential: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body) == nil {
			apiErr.Message = body.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// parseWireTime accepts the backend's local ISO timestamps, with or without
// zone offset, and bare dates.
func parseWireTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		"2006-01-02T15:04:05",
		time.RFC3339,
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp: %s", s)
}
