// Package bot is the Telegram front-end of the barbershop booking system:
// the customer booking dialog, the availability grid rendering and the admin
// management flows.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"barberbot/internal/backend"
	"barberbot/internal/booking"
	"barberbot/internal/export"
	"barberbot/internal/metrics"
	"barberbot/internal/schedule"
	"barberbot/internal/store"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

type backendAPI interface {
	ListBarbers(ctx context.Context) ([]backend.Barber, error)
	ListAvailableSlots(ctx context.Context, barberID string, serviceType, days int) (map[string][]schedule.SlotFlag, error)
	ListBusySlots(ctx context.Context, barberID, date string) ([]schedule.BusyInterval, error)
	CreateAppointment(ctx context.Context, req backend.CreateAppointmentRequest) (*backend.Appointment, error)
	GetAppointmentDetails(ctx context.Context, id string) (*backend.AppointmentDetails, error)
}

type adminService interface {
	ListPending(ctx context.Context, barberID string, dates []string) ([]backend.Appointment, error)
	ListConfirmed(ctx context.Context, barberID string, dates []string) ([]backend.Appointment, error)
	Approve(ctx context.Context, actorID int64, appointmentID string) error
	Reject(ctx context.Context, actorID int64, appointmentID, reason string) error
	Cancel(ctx context.Context, actorID int64, appointmentID, reason string) error
	ManualEntry(ctx context.Context, actorID int64, req backend.ManualAppointmentRequest) (*backend.Appointment, error)
	BlockTime(ctx context.Context, actorID int64, req backend.CreateBusySlotRequest) error
	UnblockTime(ctx context.Context, actorID int64, busySlotID string) error
	MarkHoliday(ctx context.Context, actorID int64, barberID, date string) error
	WeeklySchedule(ctx context.Context, barberID string) ([]backend.WorkingHour, error)
	SetWeeklySchedule(ctx context.Context, actorID int64, barberID string, days []backend.WorkingHour) error
}

// Visible booking window sizes.
const (
	customerWindowDays = 5
	adminWindowDays    = 7
)

// gridView is the snapshot a chat is currently looking at.
type gridView struct {
	snap   *schedule.Snapshot
	filter schedule.FilterResult
	admin  bool
}

// Bot is the Telegram bot for the barbershop flow.
type Bot struct {
	tg       telegramClient
	api      backendAPI
	loader   *schedule.Loader
	admin    adminService
	db       *store.DB
	exporter *export.Exporter
	sessions *booking.SessionStore
	fsm      *booking.FSM
	inputs   *inputStore
	logger   *zerolog.Logger

	viewsMu sync.Mutex
	views   map[int64]*gridView
}

// New creates a bot over a live Telegram connection.
func New(
	token string,
	api *backend.Client,
	loader *schedule.Loader,
	db *store.DB,
	exporter *export.Exporter,
	logger *zerolog.Logger,
) (*Bot, error) {
	tgAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newBot(&realTelegramClient{api: tgAPI}, api, loader, db, exporter, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(
	tg telegramClient,
	api backendAPI,
	loader *schedule.Loader,
	db *store.DB,
	exporter *export.Exporter,
	logger *zerolog.Logger,
) (*Bot, error) {
	return newBot(tg, api, loader, db, exporter, logger)
}

func newBot(
	tg telegramClient,
	api backendAPI,
	loader *schedule.Loader,
	db *store.DB,
	exporter *export.Exporter,
	logger *zerolog.Logger,
) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	return &Bot{
		tg:       tg,
		api:      api,
		loader:   loader,
		db:       db,
		exporter: exporter,
		sessions: booking.NewSessionStore(30 * time.Minute),
		fsm:      booking.NewFSM(),
		inputs:   newInputStore(),
		logger:   logger,
		views:    make(map[int64]*gridView),
	}, nil
}

// SetAdminService wires the admin operations. Done post-construction because
// the admin service notifies customers through the bot itself.
func (b *Bot) SetAdminService(svc adminService) {
	b.admin = svc
}

// SendMessage sends a plain text message to a chat.
func (b *Bot) SendMessage(_ context.Context, chatID int64, message string) error {
	_, err := b.tg.Send(tgbotapi.NewMessage(chatID, message))
	return err
}

var (
	mainMenu = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🗓 Book appointment"),
			tgbotapi.NewKeyboardButton("📌 My appointments"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("ℹ️ Help"),
		),
	)

	adminMenu = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("📥 Pending"),
			tgbotapi.NewKeyboardButton("✅ Confirmed"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🗓 Calendar"),
			tgbotapi.NewKeyboardButton("➕ Manual entry"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🚫 Block time"),
			tgbotapi.NewKeyboardButton("📅 Working hours"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("📊 Export"),
		),
	)
)

func (b *Bot) sendMainMenu(ctx context.Context, chatID, userID int64) {
	msg := tgbotapi.NewMessage(chatID, "Choose an action:")
	if b.isAdmin(ctx, userID) {
		msg.ReplyMarkup = adminMenu
	} else {
		msg.ReplyMarkup = mainMenu
	}
	_, _ = b.tg.Send(msg)
}

func (b *Bot) isAdmin(ctx context.Context, userID int64) bool {
	if b.db == nil {
		return false
	}
	ok, err := b.db.IsAdmin(ctx, userID)
	return err == nil && ok
}

// Start begins polling updates and routes them until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("barbershop bot authorized")

	cleanup := time.NewTicker(10 * time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			if removed := b.sessions.Cleanup(); removed > 0 {
				b.logger.Debug().Int("removed", removed).Msg("expired booking sessions dropped")
			}
		case update := <-updates:
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			updateCtx := l.WithContext(ctx)
			b.handleUpdate(updateCtx, &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil {
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Str("text", update.Message.Text).
			Msg("handling message")
		b.handleMessage(ctx, update.Message)
		return
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if b.db != nil {
		_ = b.db.UpsertUser(ctx, userID, msg.From.UserName, strings.TrimSpace(msg.From.FirstName+" "+msg.From.LastName))
	}

	switch {
	case strings.HasPrefix(text, "/start"):
		b.sessions.Delete(chatID)
		b.inputs.clear(chatID)
		b.sendMainMenu(ctx, chatID, userID)
		return
	case text == "🗓 Book appointment" || strings.HasPrefix(text, "/book"):
		b.startBooking(ctx, chatID, false)
		return
	case text == "📌 My appointments" || strings.HasPrefix(text, "/my_appointments"):
		b.handleMyAppointments(ctx, chatID)
		return
	case text == "ℹ️ Help" || strings.HasPrefix(text, "/help"):
		b.reply(chatID, "Commands: /book — book an appointment, /my_appointments — your bookings, /cancel — abort the current dialog")
		return
	case strings.HasPrefix(text, "/cancel"):
		b.sessions.Delete(chatID)
		b.inputs.clear(chatID)
		b.reply(chatID, "Cancelled.")
		b.sendMainMenu(ctx, chatID, userID)
		return
	case text == "📥 Pending" && b.isAdmin(ctx, userID):
		b.handlePendingList(ctx, chatID)
		return
	case text == "✅ Confirmed" && b.isAdmin(ctx, userID):
		b.handleConfirmedList(ctx, chatID)
		return
	case text == "🗓 Calendar" && b.isAdmin(ctx, userID):
		b.sendBarberPicker(ctx, chatID, "cal")
		return
	case text == "➕ Manual entry" && b.isAdmin(ctx, userID):
		b.startBooking(ctx, chatID, true)
		return
	case text == "🚫 Block time" && b.isAdmin(ctx, userID):
		b.sendBarberPicker(ctx, chatID, "blk")
		return
	case text == "📅 Working hours" && b.isAdmin(ctx, userID):
		b.sendBarberPicker(ctx, chatID, "sch")
		return
	case text == "📊 Export" && b.isAdmin(ctx, userID):
		b.handleExport(ctx, chatID)
		return
	}

	if b.handleAwaitedInput(ctx, chatID, userID, text) {
		return
	}
	b.handleDialogText(ctx, chatID, userID, text)
}

// handleAwaitedInput consumes text the bot asked an admin for. Returns true
// when the message was handled.
func (b *Bot) handleAwaitedInput(ctx context.Context, chatID, userID int64, text string) bool {
	pending := b.inputs.take(chatID)
	if pending.Kind == awaitNone {
		return false
	}

	switch pending.Kind {
	case awaitRejectReason:
		if err := b.admin.Reject(ctx, userID, pending.AppointmentID, text); err != nil {
			b.reply(chatID, "Could not reject: "+err.Error())
			return true
		}
		metrics.IncAdminDecision("rejected")
		b.reply(chatID, "Appointment rejected, the customer has been notified.")
	case awaitCancelReason:
		if err := b.admin.Cancel(ctx, userID, pending.AppointmentID, text); err != nil {
			b.reply(chatID, "Could not cancel: "+err.Error())
			return true
		}
		metrics.IncAdminDecision("cancelled")
		b.reply(chatID, "Appointment cancelled, the customer has been notified.")
	case awaitBlockRange:
		if date, ok := parseHolidayMark(text); ok {
			if err := b.admin.MarkHoliday(ctx, userID, pending.BarberID, date); err != nil {
				b.reply(chatID, "Could not mark the day off: "+err.Error())
				return true
			}
			b.reply(chatID, "Day marked as off.")
			return true
		}
		req, err := parseBlockRange(pending.BarberID, text)
		if err != nil {
			b.inputs.set(chatID, pending)
			b.reply(chatID, "Format: YYYY-MM-DD HH:MM HH:MM [reason] to block a range, or YYYY-MM-DD off for a whole day")
			return true
		}
		if err := b.admin.BlockTime(ctx, userID, req); err != nil {
			b.reply(chatID, "Could not block time: "+err.Error())
			return true
		}
		b.reply(chatID, "Time blocked.")
	case awaitSchedule:
		days, err := parseScheduleText(text)
		if err != nil {
			b.inputs.set(chatID, pending)
			b.reply(chatID, "Format: Mon 09:00 18:00; Tue 09:00 18:00 — or 'clear' to remove all windows")
			return true
		}
		if err := b.admin.SetWeeklySchedule(ctx, userID, pending.BarberID, days); err != nil {
			b.reply(chatID, "Could not update working hours: "+err.Error())
			return true
		}
		b.reply(chatID, "Working hours updated.")
	default:
		return false
	}
	return true
}

// handleDialogText feeds plain text into the booking dialog: client contact
// details on manual entry, or the customer's own phone number the first time
// they book.
func (b *Bot) handleDialogText(ctx context.Context, chatID, userID int64, text string) {
	session := b.sessions.Get(chatID)
	if session == nil {
		return
	}

	switch session.GetState() {
	case booking.StateAskClientName:
		if strings.TrimSpace(text) == "" {
			b.reply(chatID, "Please send the client's name.")
			return
		}
		session.Data.ClientName = strings.TrimSpace(text)
		b.fsm.Transition(session, booking.StateAskClientPhone)
		b.reply(chatID, "Client's phone number:")
	case booking.StateAskClientPhone:
		phone, ok := normalizePhone(text)
		if !ok {
			b.reply(chatID, "That doesn't look like a phone number. Example: +1 555 010-0200")
			return
		}
		if session.Data.Manual {
			session.Data.ClientPhone = phone
		} else if b.db != nil {
			_ = b.db.SetPhone(ctx, userID, phone)
		}
		b.fsm.Transition(session, booking.StateConfirm)
		b.sendConfirm(chatID, session)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil {
		return
	}
	data := cq.Data
	_ = b.answerCallback(cq.ID)
	if data == "noop" {
		return
	}

	userID := cq.From.ID
	chatID := cq.Message.Chat.ID

	switch {
	case strings.HasPrefix(data, "barber:"):
		b.handleBarberCallback(ctx, chatID, strings.TrimPrefix(data, "barber:"))
	case strings.HasPrefix(data, "svc:"):
		b.handleServiceCallback(ctx, chatID, strings.TrimPrefix(data, "svc:"))
	case strings.HasPrefix(data, "date:"):
		b.handleDateCallback(ctx, chatID, strings.TrimPrefix(data, "date:"))
	case strings.HasPrefix(data, "slot:"):
		b.handleSlotCallback(ctx, chatID, userID, strings.TrimPrefix(data, "slot:"))
	case strings.HasPrefix(data, "back:"):
		b.handleBack(ctx, chatID, strings.TrimPrefix(data, "back:"))
	case data == "confirm":
		b.handleConfirmCallback(ctx, chatID, userID)
	case data == "cancel":
		b.sessions.Delete(chatID)
		b.reply(chatID, "Cancelled. /book to start over.")
	case strings.HasPrefix(data, "adm:") && b.isAdmin(ctx, userID):
		b.handleAdminCallback(ctx, chatID, userID, strings.TrimPrefix(data, "adm:"))
	case strings.HasPrefix(data, "cal:") && b.isAdmin(ctx, userID):
		b.handleAdminCalendar(ctx, chatID, strings.TrimPrefix(data, "cal:"))
	case strings.HasPrefix(data, "blk:") && b.isAdmin(ctx, userID):
		b.handleBlockMenu(ctx, chatID, strings.TrimPrefix(data, "blk:"))
	case strings.HasPrefix(data, "unblk:") && b.isAdmin(ctx, userID):
		if err := b.admin.UnblockTime(ctx, userID, strings.TrimPrefix(data, "unblk:")); err != nil {
			b.reply(chatID, "Could not remove the block: "+err.Error())
			return
		}
		b.reply(chatID, "Block removed.")
	case strings.HasPrefix(data, "sch:") && b.isAdmin(ctx, userID):
		b.handleScheduleEdit(ctx, chatID, strings.TrimPrefix(data, "sch:"))
	}
}

func (b *Bot) startBooking(ctx context.Context, chatID int64, manual bool) {
	b.sessions.Start(chatID, manual)
	b.sendBarberPicker(ctx, chatID, "barber")
}

// sendBarberPicker shows the barber list with the given callback prefix, so
// the same keyboard serves booking, calendar, block and schedule flows.
func (b *Bot) sendBarberPicker(ctx context.Context, chatID int64, prefix string) {
	barbers, err := b.api.ListBarbers(ctx)
	if err != nil {
		metrics.IncBackendError("barbers")
		zerolog.Ctx(ctx).Error().Err(err).Msg("list barbers failed")
		b.reply(chatID, "Could not load the barber list, please try again later.")
		return
	}
	if len(barbers) == 0 {
		b.reply(chatID, "No barbers are available right now.")
		return
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(barbers))
	for _, barber := range barbers {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(barber.FullName, prefix+":"+barber.ID),
		})
	}
	msg := tgbotapi.NewMessage(chatID, "Choose a barber:")
	msg.ReplyMarkup = tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	_, _ = b.tg.Send(msg)
}

func (b *Bot) handleBarberCallback(ctx context.Context, chatID int64, barberID string) {
	session := b.sessions.Get(chatID)
	if session == nil {
		b.reply(chatID, "The dialog has expired, start over with /book")
		return
	}
	session.Data.BarberID = barberID
	session.Data.BarberName = b.barberName(ctx, barberID)
	b.fsm.Transition(session, booking.StateChooseService)
	b.sendServices(chatID)
}

func (b *Bot) barberName(ctx context.Context, barberID string) string {
	barbers, err := b.api.ListBarbers(ctx)
	if err != nil {
		return barberID
	}
	for _, barber := range barbers {
		if barber.ID == barberID {
			return barber.FullName
		}
	}
	return barberID
}

func (b *Bot) sendServices(chatID int64) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 4)
	for _, svc := range []int{backend.ServiceHaircut, backend.ServiceBeard, backend.ServiceHaircutBeard} {
		mins, _ := backend.ServiceDuration(svc)
		label := fmt.Sprintf("%s (%d min)", backend.ServiceName(svc), mins)
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("svc:%d", svc)),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back:barber"),
	})

	msg := tgbotapi.NewMessage(chatID, "Choose a service:")
	msg.ReplyMarkup = tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	_, _ = b.tg.Send(msg)
}

func (b *Bot) handleServiceCallback(ctx context.Context, chatID int64, svcStr string) {
	session := b.sessions.Get(chatID)
	if session == nil {
		b.reply(chatID, "The dialog has expired, start over with /book")
		return
	}
	var serviceType int
	if _, err := fmt.Sscanf(svcStr, "%d", &serviceType); err != nil {
		return
	}
	if _, err := backend.ServiceDuration(serviceType); err != nil {
		return
	}
	session.Data.ServiceType = serviceType

	// An admin booking a specific grid cell already has the slot; only the
	// client details remain.
	if session.Data.Manual && session.Data.Slot != "" {
		b.fsm.Transition(session, booking.StateAskClientName)
		b.reply(chatID, "Client's full name:")
		return
	}

	b.fsm.Transition(session, booking.StateChooseDate)
	b.sendDates(ctx, chatID, session)
}

// sendDates refreshes the availability snapshot and shows the date picker.
func (b *Bot) sendDates(ctx context.Context, chatID int64, session *booking.Session) {
	days := customerWindowDays
	if session.Data.Manual {
		days = adminWindowDays
	}

	snap := b.loader.Load(ctx, viewKey(chatID, session.Data.BarberID), session.Data.BarberID, time.Now(), days)
	metrics.IncGridRefresh()
	for range snap.Warnings {
		metrics.IncBackendError("snapshot")
	}

	filter := b.durationFilter(ctx, session, snap, days)
	b.setView(chatID, &gridView{snap: snap, filter: filter})

	text := "Choose a date:"
	if len(snap.Warnings) > 0 {
		text = "⚠️ Some data could not be loaded (" + strings.Join(snap.Warnings, ", ") + "). Showing what we have.\n\n" + text
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = DateKeyboard(snap)
	_, _ = b.tg.Send(msg)
}

// durationFilter computes which free slots can host the chosen service. The
// backend's availability endpoint is authoritative; if it fails, flags are
// derived from the grid we already have.
func (b *Bot) durationFilter(ctx context.Context, session *booking.Session, snap *schedule.Snapshot, days int) schedule.FilterResult {
	duration, err := backend.ServiceDuration(session.Data.ServiceType)
	if err != nil {
		return nil
	}

	flags, err := b.api.ListAvailableSlots(ctx, session.Data.BarberID, session.Data.ServiceType, days)
	if err != nil {
		metrics.IncBackendError("available_slots")
		zerolog.Ctx(ctx).Warn().Err(err).Msg("available-slots failed, deriving flags from grid")
		flags = gridFlags(snap)
	}

	filter, err := schedule.FilterByDuration(flags, duration)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("duration filter failed")
		return nil
	}
	return filter
}

// gridFlags derives per-slot availability flags from a snapshot.
func gridFlags(snap *schedule.Snapshot) map[string][]schedule.SlotFlag {
	flags := make(map[string][]schedule.SlotFlag, len(snap.Days))
	for _, day := range snap.Days {
		labels := snap.Grid.SlotLabels(day.Date)
		if len(labels) == 0 {
			continue
		}
		dayFlags := make([]schedule.SlotFlag, 0, len(labels))
		for _, label := range labels {
			dayFlags = append(dayFlags, schedule.SlotFlag{
				Label:     label,
				Available: snap.Grid.Status(day.Date, label) == schedule.StatusAvailable,
			})
		}
		flags[day.Date] = dayFlags
	}
	return flags
}

func (b *Bot) handleDateCallback(ctx context.Context, chatID int64, date string) {
	view := b.getView(chatID)
	if view == nil {
		b.reply(chatID, "The calendar has expired, start over with /book")
		return
	}

	if view.admin {
		msg := tgbotapi.NewMessage(chatID, "Schedule for "+date+":")
		msg.ReplyMarkup = AdminGridKeyboard(view.snap, date)
		_, _ = b.tg.Send(msg)
		return
	}

	session := b.sessions.Get(chatID)
	if session == nil {
		b.reply(chatID, "The dialog has expired, start over with /book")
		return
	}
	session.Data.Date = date
	b.fsm.Transition(session, booking.StateChooseSlot)

	msg := tgbotapi.NewMessage(chatID, "Choose a time:")
	msg.ReplyMarkup = GridKeyboard(view.snap, date, view.filter)
	_, _ = b.tg.Send(msg)
}

func (b *Bot) handleSlotCallback(ctx context.Context, chatID, userID int64, label string) {
	session := b.sessions.Get(chatID)
	view := b.getView(chatID)
	if session == nil || view == nil || session.Data.Date == "" {
		b.reply(chatID, "The dialog has expired, start over with /book")
		return
	}

	// The grid may have changed since it was rendered.
	if !b.loader.Current(view.snap) {
		metrics.IncStaleSnapshot()
		b.reply(chatID, "The schedule changed, here is the current one.")
		b.sendDates(ctx, chatID, session)
		return
	}
	if view.snap.Grid.Status(session.Data.Date, label) != schedule.StatusAvailable {
		b.reply(chatID, "That time is taken. Pick another slot.")
		return
	}
	if view.filter != nil && !view.filter.Contains(session.Data.Date, label) {
		b.reply(chatID, "The chosen service does not fit there. Pick another slot.")
		return
	}

	day, err := time.ParseInLocation("2006-01-02", session.Data.Date, time.Local)
	if err != nil {
		b.reply(chatID, "Invalid date.")
		return
	}
	start, err := schedule.SlotInstant(day, label)
	if err != nil {
		b.reply(chatID, "Invalid slot.")
		return
	}

	session.Data.Slot = label
	session.Data.StartTime = start

	next := booking.AfterSlot(session.Data.Manual)
	if next == booking.StateConfirm && !b.hasPhone(ctx, userID) {
		next = booking.StateAskClientPhone
	}
	b.fsm.Transition(session, next)
	switch next {
	case booking.StateAskClientName:
		b.reply(chatID, "Client's full name:")
	case booking.StateAskClientPhone:
		b.reply(chatID, "Your phone number, so the barber can reach you:")
	default:
		b.sendConfirm(chatID, session)
	}
}

// hasPhone reports whether the customer already left a contact number. Bots
// running without local storage never ask.
func (b *Bot) hasPhone(ctx context.Context, userID int64) bool {
	if b.db == nil {
		return true
	}
	user, err := b.db.GetUser(ctx, userID)
	if err != nil || user == nil {
		return false
	}
	return user.Phone != ""
}

func (b *Bot) sendConfirm(chatID int64, session *booking.Session) {
	mins, _ := backend.ServiceDuration(session.Data.ServiceType)
	text := fmt.Sprintf("Please confirm:\n\n💈 %s\n✂️ %s (%d min)\n📅 %s at %s",
		session.Data.BarberName,
		backend.ServiceName(session.Data.ServiceType), mins,
		session.Data.Date, session.Data.Slot)
	if session.Data.Manual {
		text += fmt.Sprintf("\n👤 %s, %s", session.Data.ClientName, session.Data.ClientPhone)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", "confirm"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel"),
		),
	)
	_, _ = b.tg.Send(msg)
}

func (b *Bot) handleConfirmCallback(ctx context.Context, chatID, userID int64) {
	session := b.sessions.Get(chatID)
	if session == nil || session.GetState() != booking.StateConfirm {
		b.reply(chatID, "The dialog has expired, start over with /book")
		return
	}

	startWire := session.Data.StartTime.Format("2006-01-02T15:04:05")
	if session.Data.Manual {
		_, err := b.admin.ManualEntry(ctx, userID, backend.ManualAppointmentRequest{
			BarberID:    session.Data.BarberID,
			StartTime:   startWire,
			ServiceType: session.Data.ServiceType,
			Notes:       session.Data.Notes,
			FullName:    session.Data.ClientName,
			PhoneNumber: session.Data.ClientPhone,
		})
		if err != nil {
			b.replyBookingError(ctx, chatID, session, err)
			return
		}
		metrics.IncAppointmentCreated("manual")
		b.fsm.Transition(session, booking.StateComplete)
		b.sessions.Delete(chatID)
		b.reply(chatID, "Appointment created for "+session.Data.ClientName+".")
		return
	}

	created, err := b.api.CreateAppointment(ctx, backend.CreateAppointmentRequest{
		BarberID:    session.Data.BarberID,
		StartTime:   startWire,
		ServiceType: session.Data.ServiceType,
		Notes:       session.Data.Notes,
	})
	if err != nil {
		b.replyBookingError(ctx, chatID, session, err)
		return
	}

	if b.db != nil {
		_ = b.db.LinkAppointment(ctx, store.AppointmentLink{
			AppointmentID: created.ID,
			ChatID:        chatID,
			BarberID:      session.Data.BarberID,
			StartsAt:      session.Data.StartTime,
			ServiceType:   session.Data.ServiceType,
		})
	}
	metrics.IncAppointmentCreated("customer")
	b.notifyAdmins(ctx, fmt.Sprintf("🔔 New pending appointment: %s at %s %s",
		session.Data.BarberName, session.Data.Date, session.Data.Slot))

	b.fsm.Transition(session, booking.StateComplete)
	b.sessions.Delete(chatID)
	b.reply(chatID, "✅ Request sent! You'll get a message once the barber confirms.")
}

// replyBookingError surfaces backend rejections (taken slot, validation) and
// re-renders the grid so the user picks again.
func (b *Bot) replyBookingError(ctx context.Context, chatID int64, session *booking.Session, err error) {
	metrics.IncBackendError("create_appointment")
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		b.reply(chatID, "Could not book: "+apiErr.Message)
	} else {
		zerolog.Ctx(ctx).Error().Err(err).Msg("create appointment failed")
		b.reply(chatID, "Could not book the appointment, please try again.")
	}
	b.fsm.Transition(session, booking.StateChooseSlot)
	b.sendDates(ctx, chatID, session)
}

func (b *Bot) handleBack(ctx context.Context, chatID int64, step string) {
	session := b.sessions.Get(chatID)
	switch step {
	case "barber":
		if session != nil {
			b.fsm.Transition(session, booking.StateChooseBarber)
		}
		b.sendBarberPicker(ctx, chatID, "barber")
	case "service":
		if session != nil {
			b.fsm.Transition(session, booking.StateChooseService)
		}
		b.sendServices(chatID)
	case "date":
		if session != nil {
			b.fsm.Transition(session, booking.StateChooseDate)
			b.sendDates(ctx, chatID, session)
			return
		}
		if view := b.getView(chatID); view != nil && view.admin {
			msg := tgbotapi.NewMessage(chatID, "Choose a date:")
			msg.ReplyMarkup = DateKeyboard(view.snap)
			_, _ = b.tg.Send(msg)
		}
	}
}

func (b *Bot) handleMyAppointments(ctx context.Context, chatID int64) {
	if b.db == nil {
		return
	}
	links, err := b.db.ListChatAppointments(ctx, chatID)
	if err != nil || len(links) == 0 {
		b.reply(chatID, "You have no appointments booked through me.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Your appointments:\n")
	for _, link := range links {
		status := ""
		if details, err := b.api.GetAppointmentDetails(ctx, link.AppointmentID); err == nil {
			status = " — " + details.Status
		}
		fmt.Fprintf(&sb, "\n📅 %s, %s%s",
			link.StartsAt.Format("02.01.2006 15:04"),
			backend.ServiceName(link.ServiceType), status)
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) handlePendingList(ctx context.Context, chatID int64) {
	barbers, err := b.api.ListBarbers(ctx)
	if err != nil {
		metrics.IncBackendError("barbers")
		b.reply(chatID, "Could not load the barber list.")
		return
	}

	window := schedule.Window(time.Now(), adminWindowDays)
	dates := make([]string, 0, len(window))
	for _, day := range window {
		dates = append(dates, day.Date)
	}

	total := 0
	for _, barber := range barbers {
		pending, err := b.admin.ListPending(ctx, barber.ID, dates)
		if err != nil {
			metrics.IncBackendError("pending")
			zerolog.Ctx(ctx).Error().Err(err).Str("barber_id", barber.ID).Msg("pending list failed")
			continue
		}
		for _, appt := range pending {
			total++
			text := fmt.Sprintf("🕐 %s\n💈 %s\n✂️ %s\n👤 %s",
				formatWire(appt.StartTime), barber.FullName,
				backend.ServiceName(appt.ServiceType), appt.UserFullName)
			msg := tgbotapi.NewMessage(chatID, text)
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "adm:approve:"+appt.ID),
					tgbotapi.NewInlineKeyboardButtonData("❌ Reject", "adm:reject:"+appt.ID),
				),
			)
			_, _ = b.tg.Send(msg)
		}
	}
	if total == 0 {
		b.reply(chatID, "No pending appointments.")
	}
}

func (b *Bot) handleConfirmedList(ctx context.Context, chatID int64) {
	barbers, err := b.api.ListBarbers(ctx)
	if err != nil {
		metrics.IncBackendError("barbers")
		b.reply(chatID, "Could not load the barber list.")
		return
	}

	window := schedule.Window(time.Now(), adminWindowDays)
	dates := make([]string, 0, len(window))
	for _, day := range window {
		dates = append(dates, day.Date)
	}

	total := 0
	for _, barber := range barbers {
		confirmed, err := b.admin.ListConfirmed(ctx, barber.ID, dates)
		if err != nil {
			metrics.IncBackendError("confirmed")
			zerolog.Ctx(ctx).Error().Err(err).Str("barber_id", barber.ID).Msg("confirmed list failed")
			continue
		}
		for _, appt := range confirmed {
			total++
			text := fmt.Sprintf("🕐 %s\n💈 %s\n✂️ %s\n👤 %s",
				formatWire(appt.StartTime), barber.FullName,
				backend.ServiceName(appt.ServiceType), appt.UserFullName)
			msg := tgbotapi.NewMessage(chatID, text)
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData("🗑 Cancel", "adm:cancel:"+appt.ID),
				),
			)
			_, _ = b.tg.Send(msg)
		}
	}
	if total == 0 {
		b.reply(chatID, "No confirmed appointments in the next week.")
	}
}

func (b *Bot) handleAdminCallback(ctx context.Context, chatID, userID int64, data string) {
	switch {
	case strings.HasPrefix(data, "approve:"):
		id := strings.TrimPrefix(data, "approve:")
		if err := b.admin.Approve(ctx, userID, id); err != nil {
			b.reply(chatID, "Could not approve: "+err.Error())
			return
		}
		metrics.IncAdminDecision("approved")
		b.reply(chatID, "Appointment approved, the customer has been notified.")
	case strings.HasPrefix(data, "reject:"):
		b.inputs.set(chatID, pendingInput{Kind: awaitRejectReason, AppointmentID: strings.TrimPrefix(data, "reject:")})
		b.reply(chatID, "Send the rejection reason:")
	case strings.HasPrefix(data, "cancel:"):
		b.inputs.set(chatID, pendingInput{Kind: awaitCancelReason, AppointmentID: strings.TrimPrefix(data, "cancel:")})
		b.reply(chatID, "Send the cancellation reason:")
	case strings.HasPrefix(data, "view:"):
		b.handleAdminView(ctx, chatID, strings.TrimPrefix(data, "view:"))
	case strings.HasPrefix(data, "free:"):
		b.sendFreeSlotActions(chatID, strings.TrimPrefix(data, "free:"))
	case strings.HasPrefix(data, "book:"):
		b.handleAdminBookSlot(ctx, chatID, strings.TrimPrefix(data, "book:"))
	case strings.HasPrefix(data, "blkslot:"):
		b.handleAdminBlockSlot(ctx, chatID, userID, strings.TrimPrefix(data, "blkslot:"))
	}
}

// sendFreeSlotActions offers what an admin can do with an empty grid cell.
func (b *Bot) sendFreeSlotActions(chatID int64, cell string) {
	date, label, ok := splitCell(cell)
	if !ok {
		return
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("%s at %s:", date, label))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Book a client", "adm:book:"+cell),
			tgbotapi.NewInlineKeyboardButtonData("🚫 Block it", "adm:blkslot:"+cell),
		),
	)
	_, _ = b.tg.Send(msg)
}

// handleAdminBookSlot starts a manual booking anchored to a grid cell: barber,
// date and time are already known, so the dialog goes straight to the service
// and client details.
func (b *Bot) handleAdminBookSlot(ctx context.Context, chatID int64, cell string) {
	view := b.getView(chatID)
	if view == nil || !view.admin {
		b.reply(chatID, "The calendar has expired, open it again.")
		return
	}
	date, label, ok := splitCell(cell)
	if !ok {
		return
	}
	day, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return
	}
	start, err := schedule.SlotInstant(day, label)
	if err != nil {
		return
	}

	session := b.sessions.Start(chatID, true)
	session.Data.BarberID = view.snap.BarberID
	session.Data.BarberName = b.barberName(ctx, view.snap.BarberID)
	session.Data.Date = date
	session.Data.Slot = label
	session.Data.StartTime = start
	b.fsm.Transition(session, booking.StateChooseService)
	b.sendServices(chatID)
}

// handleAdminBlockSlot blocks a single grid cell.
func (b *Bot) handleAdminBlockSlot(ctx context.Context, chatID, userID int64, cell string) {
	view := b.getView(chatID)
	if view == nil || !view.admin {
		b.reply(chatID, "The calendar has expired, open it again.")
		return
	}
	date, label, ok := splitCell(cell)
	if !ok {
		return
	}
	day, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return
	}
	start, err := schedule.SlotInstant(day, label)
	if err != nil {
		return
	}

	req := backend.CreateBusySlotRequest{
		BarberID:  view.snap.BarberID,
		StartTime: start.Format("2006-01-02T15:04:05"),
		EndTime:   start.Add(schedule.Granularity).Format("2006-01-02T15:04:05"),
	}
	if err := b.admin.BlockTime(ctx, userID, req); err != nil {
		b.reply(chatID, "Could not block the slot: "+err.Error())
		return
	}
	b.reply(chatID, "Slot blocked.")
}

func (b *Bot) handleAdminView(ctx context.Context, chatID int64, appointmentID string) {
	details, err := b.api.GetAppointmentDetails(ctx, appointmentID)
	if err != nil {
		metrics.IncBackendError("appointment_details")
		b.reply(chatID, "Could not load the appointment.")
		return
	}

	text := fmt.Sprintf("🕐 %s\n✂️ %s\n👤 %s\n📞 %s\nStatus: %s",
		formatWire(details.StartTime),
		backend.ServiceName(details.ServiceType),
		details.UserFullName, details.PhoneNumber, details.Status)
	msg := tgbotapi.NewMessage(chatID, text)

	var row []tgbotapi.InlineKeyboardButton
	if strings.EqualFold(details.Status, "pending") {
		row = append(row,
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "adm:approve:"+details.ID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", "adm:reject:"+details.ID))
	} else if !strings.EqualFold(details.Status, "cancelled") {
		row = append(row,
			tgbotapi.NewInlineKeyboardButtonData("🗑 Cancel", "adm:cancel:"+details.ID))
	}
	if len(row) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	}
	_, _ = b.tg.Send(msg)
}

func (b *Bot) handleAdminCalendar(ctx context.Context, chatID int64, barberID string) {
	snap := b.loader.Load(ctx, viewKey(chatID, barberID), barberID, time.Now(), adminWindowDays)
	metrics.IncGridRefresh()
	b.setView(chatID, &gridView{snap: snap, admin: true})

	text := "Choose a date:"
	if len(snap.Warnings) > 0 {
		text = "⚠️ Some data could not be loaded (" + strings.Join(snap.Warnings, ", ") + ").\n\n" + text
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = DateKeyboard(snap)
	_, _ = b.tg.Send(msg)
}

// handleBlockMenu lists the barber's current blocks for removal and asks for
// a new range or a whole-day mark.
func (b *Bot) handleBlockMenu(ctx context.Context, chatID int64, barberID string) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, day := range schedule.Window(time.Now(), adminWindowDays) {
		busy, err := b.api.ListBusySlots(ctx, barberID, day.Date)
		if err != nil {
			metrics.IncBackendError("busy_slots")
			continue
		}
		for _, interval := range busy {
			label := fmt.Sprintf("🗑 %s %s-%s", day.Date,
				interval.Start.Format("15:04"), interval.End.Format("15:04"))
			rows = append(rows, []tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData(label, "unblk:"+interval.ID),
			})
		}
	}

	b.inputs.set(chatID, pendingInput{Kind: awaitBlockRange, BarberID: barberID})
	text := "Send the range to block: YYYY-MM-DD HH:MM HH:MM [reason] — or 'YYYY-MM-DD off' to mark the whole day off."
	if len(rows) == 0 {
		b.reply(chatID, text)
		return
	}
	msg := tgbotapi.NewMessage(chatID, "Current blocks (tap to remove):\n\n"+text)
	msg.ReplyMarkup = tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	_, _ = b.tg.Send(msg)
}

func (b *Bot) handleScheduleEdit(ctx context.Context, chatID int64, barberID string) {
	current, err := b.admin.WeeklySchedule(ctx, barberID)
	if err != nil {
		b.reply(chatID, "Could not load working hours.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Current working hours:\n")
	if len(current) == 0 {
		sb.WriteString("\n(none)")
	}
	for _, wh := range current {
		fmt.Fprintf(&sb, "\n%s %s-%s", time.Weekday(wh.Day).String()[:3], wh.Start, wh.End)
	}
	sb.WriteString("\n\nSend the new schedule as 'Mon 09:00 18:00; Sat 10:00 14:00', or 'clear' to remove all windows.")

	b.inputs.set(chatID, pendingInput{Kind: awaitSchedule, BarberID: barberID})
	b.reply(chatID, sb.String())
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	if b.exporter == nil {
		return
	}
	buf, err := b.exporter.Export(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("export failed")
		b.reply(chatID, "Could not build the report.")
		return
	}

	now := time.Now()
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  export.Filename(now.Year(), int(now.Month())),
		Bytes: buf.Bytes(),
	})
	if b.db != nil {
		if actions, err := b.db.ListActions(ctx, now.AddDate(0, -1, 0)); err == nil {
			doc.Caption = fmt.Sprintf("%d admin actions in the last month", len(actions))
		}
	}
	_, _ = b.tg.Send(doc)
}

func (b *Bot) notifyAdmins(ctx context.Context, text string) {
	if b.db == nil {
		return
	}
	admins, err := b.db.ListAdmins(ctx)
	if err != nil {
		return
	}
	for _, adminID := range admins {
		_, _ = b.tg.Send(tgbotapi.NewMessage(adminID, text))
	}
}

func (b *Bot) reply(chatID int64, text string) {
	_, _ = b.tg.Send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) answerCallback(id string) error {
	_, err := b.tg.Request(tgbotapi.NewCallback(id, ""))
	return err
}

// viewKey scopes snapshot generations to one chat looking at one barber, so
// refreshes elsewhere never stale this chat's calendar.
func viewKey(chatID int64, barberID string) string {
	return fmt.Sprintf("%d/%s", chatID, barberID)
}

func (b *Bot) setView(chatID int64, view *gridView) {
	b.viewsMu.Lock()
	defer b.viewsMu.Unlock()
	b.views[chatID] = view
}

func (b *Bot) getView(chatID int64) *gridView {
	b.viewsMu.Lock()
	defer b.viewsMu.Unlock()
	return b.views[chatID]
}

func formatWire(wire string) string {
	t, err := time.ParseInLocation("2006-01-02T15:04:05", wire, time.Local)
	if err != nil {
		return wire
	}
	return t.Format("02.01.2006 15:04")
}
