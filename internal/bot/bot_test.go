package bot

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barberbot/internal/backend"
	"barberbot/internal/export"
	"barberbot/internal/schedule"
	"barberbot/internal/store"
)

type mockTelegram struct {
	sent []tgbotapi.Chattable
}

func (m *mockTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.sent = append(m.sent, c)
	return tgbotapi.Message{}, nil
}

func (m *mockTelegram) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

func (m *mockTelegram) SelfUser() tgbotapi.User {
	return tgbotapi.User{UserName: "barberbot_test"}
}

func (m *mockTelegram) lastMessage() tgbotapi.MessageConfig {
	for i := len(m.sent) - 1; i >= 0; i-- {
		if msg, ok := m.sent[i].(tgbotapi.MessageConfig); ok {
			return msg
		}
	}
	return tgbotapi.MessageConfig{}
}

type fakeBackend struct {
	created []backend.CreateAppointmentRequest
	fail    error
}

func (f *fakeBackend) ListBarbers(context.Context) ([]backend.Barber, error) {
	return []backend.Barber{{ID: "b1", FullName: "Ivan"}}, nil
}

func (f *fakeBackend) ListAvailableSlots(context.Context, string, int, int) (map[string][]schedule.SlotFlag, error) {
	return nil, assertError{}
}

func (f *fakeBackend) ListBusySlots(context.Context, string, string) ([]schedule.BusyInterval, error) {
	return nil, nil
}

func (f *fakeBackend) CreateAppointment(_ context.Context, req backend.CreateAppointmentRequest) (*backend.Appointment, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.created = append(f.created, req)
	return &backend.Appointment{ID: "new-1", Status: "Pending"}, nil
}

func (f *fakeBackend) GetAppointmentDetails(context.Context, string) (*backend.AppointmentDetails, error) {
	return &backend.AppointmentDetails{Appointment: backend.Appointment{ID: "new-1", Status: "Pending"}}, nil
}

// assertError forces the duration filter to fall back to grid-derived flags.
type assertError struct{}

func (assertError) Error() string { return "unavailable" }

type fakeAdmin struct {
	approved  []string
	rejected  map[string]string
	unblocked []string
	holidays  []string
	confirmed []backend.Appointment
	manual    []backend.ManualAppointmentRequest
	blocked   []backend.CreateBusySlotRequest
}

func (f *fakeAdmin) ListPending(context.Context, string, []string) ([]backend.Appointment, error) {
	return nil, nil
}

func (f *fakeAdmin) ListConfirmed(context.Context, string, []string) ([]backend.Appointment, error) {
	return f.confirmed, nil
}

func (f *fakeAdmin) Approve(_ context.Context, _ int64, id string) error {
	f.approved = append(f.approved, id)
	return nil
}

func (f *fakeAdmin) Reject(_ context.Context, _ int64, id, reason string) error {
	if f.rejected == nil {
		f.rejected = make(map[string]string)
	}
	f.rejected[id] = reason
	return nil
}

func (f *fakeAdmin) Cancel(context.Context, int64, string, string) error { return nil }

func (f *fakeAdmin) ManualEntry(_ context.Context, _ int64, req backend.ManualAppointmentRequest) (*backend.Appointment, error) {
	f.manual = append(f.manual, req)
	return &backend.Appointment{ID: "manual-1"}, nil
}

func (f *fakeAdmin) BlockTime(_ context.Context, _ int64, req backend.CreateBusySlotRequest) error {
	f.blocked = append(f.blocked, req)
	return nil
}

func (f *fakeAdmin) UnblockTime(_ context.Context, _ int64, busySlotID string) error {
	f.unblocked = append(f.unblocked, busySlotID)
	return nil
}

func (f *fakeAdmin) MarkHoliday(_ context.Context, _ int64, barberID, date string) error {
	f.holidays = append(f.holidays, barberID+" "+date)
	return nil
}

func (f *fakeAdmin) WeeklySchedule(context.Context, string) ([]backend.WorkingHour, error) {
	return nil, nil
}

func (f *fakeAdmin) SetWeeklySchedule(context.Context, int64, string, []backend.WorkingHour) error {
	return nil
}

func allWeekHours() map[time.Weekday]schedule.WorkingWindow {
	hours := make(map[time.Weekday]schedule.WorkingWindow)
	for d := time.Sunday; d <= time.Saturday; d++ {
		hours[d] = schedule.WorkingWindow{Start: "09:00", End: "18:00"}
	}
	return hours
}

func testBot(t *testing.T) (*Bot, *mockTelegram, *fakeBackend, *fakeAdmin) {
	t.Helper()
	tg := &mockTelegram{}
	api := &fakeBackend{}
	adminSvc := &fakeAdmin{}
	db, err := store.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	loader := schedule.NewLoader(&calendarSource{hours: allWeekHours()})
	logger := zerolog.Nop()

	b, err := NewWithTelegramClient(tg, api, loader, db, nil, &logger)
	require.NoError(t, err)
	b.SetAdminService(adminSvc)
	return b, tg, api, adminSvc
}

func callback(chatID, userID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID},
		Data:    data,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	}
}

func TestCustomerBookingFlow(t *testing.T) {
	b, tg, api, _ := testBot(t)
	ctx := context.Background()

	b.startBooking(ctx, 42, false)
	require.NotNil(t, b.sessions.Get(42))

	b.handleCallback(ctx, callback(42, 42, "barber:b1"))
	b.handleCallback(ctx, callback(42, 42, "svc:2"))

	session := b.sessions.Get(42)
	require.NotNil(t, session)
	assert.Equal(t, 2, session.Data.ServiceType)

	view := b.getView(42)
	require.NotNil(t, view, "date keyboard rendered from a snapshot")
	date := view.snap.Days[0].Date

	b.handleCallback(ctx, callback(42, 42, "date:"+date))
	b.handleCallback(ctx, callback(42, 42, "slot:09:00"))

	// First booking: no contact number on record yet, so the bot asks.
	assert.Contains(t, tg.lastMessage().Text, "phone number")
	b.handleMessage(ctx, &tgbotapi.Message{
		From: &tgbotapi.User{ID: 42},
		Chat: &tgbotapi.Chat{ID: 42},
		Text: "+1 555 010-0200",
	})

	user, err := b.db.GetUser(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "+15550100200", user.Phone)

	b.handleCallback(ctx, callback(42, 42, "confirm"))

	require.Len(t, api.created, 1)
	assert.Equal(t, "b1", api.created[0].BarberID)
	assert.Equal(t, date+"T09:00:00", api.created[0].StartTime)
	assert.Equal(t, 2, api.created[0].ServiceType)

	assert.Nil(t, b.sessions.Get(42), "session closed after booking")
	assert.Contains(t, tg.lastMessage().Text, "Request sent")

	link, err := b.db.GetAppointmentLink(ctx, "new-1")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, int64(42), link.ChatID)
}

func TestSlotTapOnTakenSlotRePrompts(t *testing.T) {
	b, tg, api, _ := testBot(t)
	ctx := context.Background()

	src := &calendarSource{
		hours:        allWeekHours(),
		appointments: map[string][]schedule.Appointment{},
	}
	b.loader = schedule.NewLoader(src)

	b.startBooking(ctx, 42, false)
	b.handleCallback(ctx, callback(42, 42, "barber:b1"))
	b.handleCallback(ctx, callback(42, 42, "svc:2"))

	view := b.getView(42)
	date := view.snap.Days[0].Date
	day, _ := time.ParseInLocation("2006-01-02", date, time.Local)

	// The slot gets taken after the grid was rendered, and a refresh for the
	// same chat supersedes the rendered snapshot.
	src.appointments[date] = []schedule.Appointment{{
		ID:    "taken",
		Start: day.Add(9 * time.Hour),
		End:   day.Add(9*time.Hour + 15*time.Minute),
	}}
	b.loader.Load(ctx, viewKey(42, "b1"), "b1", day, customerWindowDays)

	b.handleCallback(ctx, callback(42, 42, "date:"+date))
	b.handleCallback(ctx, callback(42, 42, "slot:09:00"))

	assert.Empty(t, api.created)
	assert.Contains(t, tg.lastMessage().Text, "Choose a date",
		"stale snapshot forces a re-render")
}

func TestAdminApproveCallback(t *testing.T) {
	b, tg, _, adminSvc := testBot(t)
	ctx := context.Background()
	require.NoError(t, b.db.SetAdmin(ctx, 7, true))

	b.handleCallback(ctx, callback(7, 7, "adm:approve:a1"))

	assert.Equal(t, []string{"a1"}, adminSvc.approved)
	assert.Contains(t, tg.lastMessage().Text, "approved")
}

func TestAdminRejectNeedsReasonText(t *testing.T) {
	b, _, _, adminSvc := testBot(t)
	ctx := context.Background()
	require.NoError(t, b.db.SetAdmin(ctx, 7, true))

	b.handleCallback(ctx, callback(7, 7, "adm:reject:a1"))
	assert.Empty(t, adminSvc.rejected, "reject waits for a reason")

	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: 7},
		Text: "barber is sick",
	}
	b.handleMessage(ctx, msg)

	assert.Equal(t, "barber is sick", adminSvc.rejected["a1"])
}

func TestAdminBlockDialogMarksDayOff(t *testing.T) {
	b, _, _, adminSvc := testBot(t)
	ctx := context.Background()
	require.NoError(t, b.db.SetAdmin(ctx, 7, true))

	b.handleCallback(ctx, callback(7, 7, "blk:b1"))
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: 7},
		Text: "2026-03-09 off",
	}
	b.handleMessage(ctx, msg)

	assert.Equal(t, []string{"b1 2026-03-09"}, adminSvc.holidays)
}

func TestAdminUnblockCallback(t *testing.T) {
	b, tg, _, adminSvc := testBot(t)
	ctx := context.Background()
	require.NoError(t, b.db.SetAdmin(ctx, 7, true))

	b.handleCallback(ctx, callback(7, 7, "unblk:bs1"))

	assert.Equal(t, []string{"bs1"}, adminSvc.unblocked)
	assert.Contains(t, tg.lastMessage().Text, "removed")
}

func TestNonAdminCannotUseAdminCallbacks(t *testing.T) {
	b, _, _, adminSvc := testBot(t)

	b.handleCallback(context.Background(), callback(42, 42, "adm:approve:a1"))
	assert.Empty(t, adminSvc.approved)
}

func TestAdminBooksFreeGridCell(t *testing.T) {
	b, tg, _, adminSvc := testBot(t)
	ctx := context.Background()
	require.NoError(t, b.db.SetAdmin(ctx, 7, true))

	b.handleCallback(ctx, callback(7, 7, "cal:b1"))
	view := b.getView(7)
	require.NotNil(t, view)
	require.True(t, view.admin)
	date := view.snap.Days[0].Date

	b.handleCallback(ctx, callback(7, 7, "adm:free:"+date+":09:00"))
	assert.Contains(t, tg.lastMessage().Text, "09:00")

	b.handleCallback(ctx, callback(7, 7, "adm:book:"+date+":09:00"))
	session := b.sessions.Get(7)
	require.NotNil(t, session)
	assert.True(t, session.Data.Manual)
	assert.Equal(t, "09:00", session.Data.Slot)

	b.handleCallback(ctx, callback(7, 7, "svc:1"))
	assert.Contains(t, tg.lastMessage().Text, "full name")

	say := func(text string) {
		b.handleMessage(ctx, &tgbotapi.Message{
			From: &tgbotapi.User{ID: 7},
			Chat: &tgbotapi.Chat{ID: 7},
			Text: text,
		})
	}
	say("Walk In")
	say("+1 555 010 0300")
	b.handleCallback(ctx, callback(7, 7, "confirm"))

	require.Len(t, adminSvc.manual, 1)
	assert.Equal(t, "b1", adminSvc.manual[0].BarberID)
	assert.Equal(t, date+"T09:00:00", adminSvc.manual[0].StartTime)
	assert.Equal(t, "Walk In", adminSvc.manual[0].FullName)
	assert.Equal(t, "+15550100300", adminSvc.manual[0].PhoneNumber)
}

func TestAdminBlocksGridCell(t *testing.T) {
	b, tg, _, adminSvc := testBot(t)
	ctx := context.Background()
	require.NoError(t, b.db.SetAdmin(ctx, 7, true))

	b.handleCallback(ctx, callback(7, 7, "cal:b1"))
	view := b.getView(7)
	require.NotNil(t, view)
	date := view.snap.Days[0].Date

	b.handleCallback(ctx, callback(7, 7, "adm:blkslot:"+date+":09:00"))

	require.Len(t, adminSvc.blocked, 1)
	assert.Equal(t, "b1", adminSvc.blocked[0].BarberID)
	assert.Equal(t, date+"T09:00:00", adminSvc.blocked[0].StartTime)
	assert.Equal(t, date+"T09:15:00", adminSvc.blocked[0].EndTime)
	assert.Contains(t, tg.lastMessage().Text, "blocked")
}

func TestConfirmedListOffersCancel(t *testing.T) {
	b, tg, _, adminSvc := testBot(t)
	ctx := context.Background()
	require.NoError(t, b.db.SetAdmin(ctx, 7, true))
	adminSvc.confirmed = []backend.Appointment{{
		ID:           "c1",
		StartTime:    "2026-03-09T10:00:00",
		Status:       "Booked",
		ServiceType:  1,
		UserFullName: "Ann",
	}}

	b.handleMessage(ctx, &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: 7},
		Text: "✅ Confirmed",
	})

	var cancelData string
	for _, c := range tg.sent {
		msg, ok := c.(tgbotapi.MessageConfig)
		if !ok {
			continue
		}
		markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		if !ok {
			continue
		}
		for _, row := range markup.InlineKeyboard {
			for _, btn := range row {
				if btn.CallbackData != nil && *btn.CallbackData == "adm:cancel:c1" {
					cancelData = *btn.CallbackData
				}
			}
		}
	}
	assert.Equal(t, "adm:cancel:c1", cancelData)
}

func TestExportCaptionCountsActions(t *testing.T) {
	b, tg, _, _ := testBot(t)
	ctx := context.Background()
	require.NoError(t, b.db.SetAdmin(ctx, 7, true))
	b.exporter = export.NewExporter(b.db)

	require.NoError(t, b.db.RecordAction(ctx, 7, store.ActionApprove, "a1", ""))
	require.NoError(t, b.db.RecordAction(ctx, 7, store.ActionCancel, "a2", "shop closed"))

	b.handleExport(ctx, 7)

	var doc tgbotapi.DocumentConfig
	found := false
	for _, c := range tg.sent {
		if d, ok := c.(tgbotapi.DocumentConfig); ok {
			doc = d
			found = true
		}
	}
	require.True(t, found, "export sends a document")
	assert.Contains(t, doc.Caption, "2 admin actions")
}
