package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]Barber{{ID: "b1", FullName: "Ivan"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticToken("secret-token"))
	barbers, err := client.ListBarbers(context.Background())
	require.NoError(t, err)
	require.Len(t, barbers, 1)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "Ivan", barbers[0].FullName)
}

func TestListAppointmentsConvertsWire(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "b1", r.URL.Query().Get("barberId"))
		assert.Equal(t, "2026-03-09T00:00:00", r.URL.Query().Get("date"))
		json.NewEncoder(w).Encode([]Appointment{
			{ID: "a1", StartTime: "2026-03-09T09:00:00", EndTime: "2026-03-09T09:30:00", Status: "Pending"},
			{ID: "a2", StartTime: "2026-03-09T10:00:00", EndTime: "2026-03-09T10:15:00", Status: "Booked"},
			{ID: "bad", StartTime: "not a time", EndTime: "2026-03-09T11:00:00", Status: "Booked"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	appts, err := client.ListAppointments(context.Background(), "b1", "2026-03-09")
	require.NoError(t, err)
	require.Len(t, appts, 2, "malformed rows are skipped")

	assert.True(t, appts[0].Pending)
	assert.False(t, appts[1].Pending)
	assert.Equal(t, 9, appts[0].Start.Hour())
	assert.Equal(t, 30, appts[0].End.Minute())
}

func TestListWorkingHoursMapsWeekdays(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]WorkingHour{
			{Day: 1, Start: "09:00", End: "18:00"},
			{Day: 6, Start: "10:00", End: "14:00"},
			{Day: 9, Start: "09:00", End: "18:00"},
			{Day: 2, Start: "", End: ""},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	hours, err := client.ListWorkingHours(context.Background(), "b1")
	require.NoError(t, err)

	assert.Len(t, hours, 2)
	assert.Equal(t, "09:00", hours[time.Monday].Start)
	assert.Equal(t, "14:00", hours[time.Saturday].End)
	_, sunday := hours[time.Sunday]
	assert.False(t, sunday)
}

func TestAPIErrorCarriesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"message": "slot already taken"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	_, err := client.CreateAppointment(context.Background(), CreateAppointmentRequest{
		BarberID:    "b1",
		StartTime:   "2026-03-09T09:00:00",
		ServiceType: ServiceHaircut,
	})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "slot already taken")
}

func TestRejectAppointmentSendsReason(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPut, r.Method)
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	err := client.RejectAppointment(context.Background(), "a1", "barber unavailable")
	require.NoError(t, err)
	assert.Equal(t, "/api/Admin/appointment/a1/reject", gotPath)
	assert.Equal(t, "barber unavailable", gotBody["reason"])
}

func TestCreateManualAppointmentBody(t *testing.T) {
	var got ManualAppointmentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/Admin/manual", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(Appointment{ID: "new", Status: "Booked"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	created, err := client.CreateManualAppointment(context.Background(), ManualAppointmentRequest{
		BarberID:    "b1",
		StartTime:   "2026-03-09T09:00:00",
		ServiceType: ServiceHaircutBeard,
		FullName:    "Walk In",
		PhoneNumber: "+15550100",
	})
	require.NoError(t, err)
	assert.Equal(t, "new", created.ID)
	assert.Equal(t, "Walk In", got.FullName)
	assert.Equal(t, ServiceHaircutBeard, got.ServiceType)
}

func TestListAvailableSlots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("serviceType"))
		assert.Equal(t, "5", r.URL.Query().Get("days"))
		json.NewEncoder(w).Encode(map[string][]AvailableSlot{
			"2026-03-09T00:00:00": {
				{Time: "2026-03-09T09:00:00", IsAvailable: true},
				{Time: "2026-03-09T09:15:00", IsAvailable: false},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	flags, err := client.ListAvailableSlots(context.Background(), "b1", ServiceBeard, 5)
	require.NoError(t, err)

	day := flags["2026-03-09"]
	require.Len(t, day, 2)
	assert.Equal(t, "09:00", day[0].Label)
	assert.True(t, day[0].Available)
	assert.False(t, day[1].Available)
}

func TestRedisCacheServesAndInvalidates(t *testing.T) {
	hits := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits[r.URL.Path]++
		switch r.URL.Path {
		case "/api/Barber/get-barber":
			json.NewEncoder(w).Encode([]Barber{{ID: "b1", FullName: "Ivan"}})
		case "/api/Appointment/holiday":
			json.NewEncoder(w).Encode([]string{"2026-03-09"})
		case "/api/Admin/holiday":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	client := NewClient(server.URL, nil)
	client.UseRedisCache(rdb, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		barbers, err := client.ListBarbers(ctx)
		require.NoError(t, err)
		require.Len(t, barbers, 1)
	}
	assert.Equal(t, 1, hits["/api/Barber/get-barber"], "second read served from cache")

	for i := 0; i < 2; i++ {
		dates, err := client.ListHolidays(ctx, "b1")
		require.NoError(t, err)
		require.Equal(t, []string{"2026-03-09"}, dates)
	}
	assert.Equal(t, 1, hits["/api/Appointment/holiday"])

	// Writes drop the cached entry so the next read sees the new day off.
	require.NoError(t, client.CreateHoliday(ctx, "b1", "2026-03-10"))
	_, err := client.ListHolidays(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 2, hits["/api/Appointment/holiday"])
}

func TestServiceDuration(t *testing.T) {
	cases := []struct {
		serviceType int
		want        int
	}{
		{ServiceHaircut, 30},
		{ServiceBeard, 15},
		{ServiceHaircutBeard, 45},
	}
	for _, tc := range cases {
		got, err := ServiceDuration(tc.serviceType)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := ServiceDuration(7)
	assert.Error(t, err)
}
