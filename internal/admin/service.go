// Package admin implements admin-side appointment management: approving,
// rejecting and cancelling bookings, blocking out time, manual entries and
// weekly schedule edits.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"barberbot/internal/backend"
	"barberbot/internal/schedule"
	"barberbot/internal/store"
)

// AppointmentAPI is the slice of the backend client the admin service uses.
type AppointmentAPI interface {
	ListAppointmentsRaw(ctx context.Context, barberID, date string) ([]backend.Appointment, error)
	GetAppointmentDetails(ctx context.Context, id string) (*backend.AppointmentDetails, error)
	ApproveAppointment(ctx context.Context, id string) error
	RejectAppointment(ctx context.Context, id, reason string) error
	CancelAppointment(ctx context.Context, id, reason string) error
	CreateManualAppointment(ctx context.Context, req backend.ManualAppointmentRequest) (*backend.Appointment, error)
	CreateBusySlot(ctx context.Context, req backend.CreateBusySlotRequest) error
	DeleteBusySlot(ctx context.Context, id string) error
	CreateHoliday(ctx context.Context, barberID, date string) error
	GetAdminWorkingHours(ctx context.Context, barberID string) ([]backend.WorkingHour, error)
	AddWorkingHours(ctx context.Context, barberID string, days []backend.WorkingHour) error
	DeleteWorkingHours(ctx context.Context, barberID string) error
}

// NotificationSender sends messages to chats.
type NotificationSender interface {
	SendMessage(ctx context.Context, chatID int64, message string) error
}

// LocalStore is the slice of the sqlite store the admin service uses.
type LocalStore interface {
	GetAppointmentLink(ctx context.Context, appointmentID string) (*store.AppointmentLink, error)
	DeleteAppointmentLink(ctx context.Context, appointmentID string) error
	RecordAction(ctx context.Context, actorID int64, action, appointmentID, reason string) error
}

// Service provides admin operations.
type Service struct {
	api           AppointmentAPI
	notifications NotificationSender
	local         LocalStore
}

// NewService creates an admin service.
func NewService(api AppointmentAPI, notifications NotificationSender, local LocalStore) *Service {
	return &Service{
		api:           api,
		notifications: notifications,
		local:         local,
	}
}

func isPending(status string) bool {
	return strings.EqualFold(status, "pending")
}

func isCancelled(status string) bool {
	return strings.EqualFold(status, "cancelled") || strings.EqualFold(status, "canceled")
}

func isBooked(status string) bool {
	return strings.EqualFold(status, "booked") || strings.EqualFold(status, "confirmed")
}

// ListPending returns pending appointments of a barber across the given
// dates, in chronological order of the input dates.
func (s *Service) ListPending(ctx context.Context, barberID string, dates []string) ([]backend.Appointment, error) {
	var pending []backend.Appointment
	for _, date := range dates {
		appts, err := s.api.ListAppointmentsRaw(ctx, barberID, date)
		if err != nil {
			return nil, fmt.Errorf("list appointments for %s: %w", date, err)
		}
		for _, a := range appts {
			if isPending(a.Status) {
				pending = append(pending, a)
			}
		}
	}
	return pending, nil
}

// ListConfirmed returns confirmed appointments of a barber across the given
// dates, in chronological order of the input dates.
func (s *Service) ListConfirmed(ctx context.Context, barberID string, dates []string) ([]backend.Appointment, error) {
	var confirmed []backend.Appointment
	for _, date := range dates {
		appts, err := s.api.ListAppointmentsRaw(ctx, barberID, date)
		if err != nil {
			return nil, fmt.Errorf("list appointments for %s: %w", date, err)
		}
		for _, a := range appts {
			if isBooked(a.Status) {
				confirmed = append(confirmed, a)
			}
		}
	}
	return confirmed, nil
}

// Approve confirms a pending appointment and notifies the customer.
func (s *Service) Approve(ctx context.Context, actorID int64, appointmentID string) error {
	details, err := s.api.GetAppointmentDetails(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("get appointment: %w", err)
	}
	if !isPending(details.Status) {
		return fmt.Errorf("cannot approve appointment with status %s", details.Status)
	}

	if err := s.api.ApproveAppointment(ctx, appointmentID); err != nil {
		return fmt.Errorf("approve: %w", err)
	}

	if s.local != nil {
		_ = s.local.RecordAction(ctx, actorID, store.ActionApprove, appointmentID, "")
	}
	s.notifyCustomer(ctx, appointmentID,
		fmt.Sprintf("✅ Your appointment is confirmed!\n\n📅 %s", formatWhen(details.StartTime)))
	return nil
}

// Reject declines a pending appointment. A non-empty reason is required and
// is forwarded to the customer.
func (s *Service) Reject(ctx context.Context, actorID int64, appointmentID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("rejection requires a reason")
	}

	details, err := s.api.GetAppointmentDetails(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("get appointment: %w", err)
	}
	if !isPending(details.Status) {
		return fmt.Errorf("cannot reject appointment with status %s", details.Status)
	}

	if err := s.api.RejectAppointment(ctx, appointmentID, reason); err != nil {
		return fmt.Errorf("reject: %w", err)
	}

	if s.local != nil {
		_ = s.local.RecordAction(ctx, actorID, store.ActionReject, appointmentID, reason)
		_ = s.local.DeleteAppointmentLink(ctx, appointmentID)
	}
	s.notifyCustomer(ctx, appointmentID,
		fmt.Sprintf("❌ Your appointment on %s was declined.\n\n📝 Reason: %s",
			formatWhen(details.StartTime), reason))
	return nil
}

// Cancel cancels a pending or confirmed appointment with a required reason.
func (s *Service) Cancel(ctx context.Context, actorID int64, appointmentID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("cancellation requires a reason")
	}

	details, err := s.api.GetAppointmentDetails(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("get appointment: %w", err)
	}
	if isCancelled(details.Status) {
		return fmt.Errorf("appointment already cancelled")
	}

	if err := s.api.CancelAppointment(ctx, appointmentID, reason); err != nil {
		return fmt.Errorf("cancel: %w", err)
	}

	if s.local != nil {
		_ = s.local.RecordAction(ctx, actorID, store.ActionCancel, appointmentID, reason)
		_ = s.local.DeleteAppointmentLink(ctx, appointmentID)
	}
	s.notifyCustomer(ctx, appointmentID,
		fmt.Sprintf("❌ Your appointment on %s was cancelled.\n\n📝 Reason: %s",
			formatWhen(details.StartTime), reason))
	return nil
}

// ManualEntry books a slot on behalf of a walk-in client.
func (s *Service) ManualEntry(ctx context.Context, actorID int64, req backend.ManualAppointmentRequest) (*backend.Appointment, error) {
	if strings.TrimSpace(req.FullName) == "" {
		return nil, fmt.Errorf("manual entry requires a client name")
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		return nil, fmt.Errorf("manual entry requires a phone number")
	}
	if _, err := backend.ServiceDuration(req.ServiceType); err != nil {
		return nil, err
	}

	created, err := s.api.CreateManualAppointment(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create manual appointment: %w", err)
	}
	if s.local != nil {
		_ = s.local.RecordAction(ctx, actorID, store.ActionManualEntry, created.ID, req.FullName)
	}
	return created, nil
}

// BlockTime creates a busy interval for a barber. The range must be a
// positive span on one day.
func (s *Service) BlockTime(ctx context.Context, actorID int64, req backend.CreateBusySlotRequest) error {
	start, err := time.ParseInLocation("2006-01-02T15:04:05", req.StartTime, time.Local)
	if err != nil {
		return fmt.Errorf("invalid start time: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02T15:04:05", req.EndTime, time.Local)
	if err != nil {
		return fmt.Errorf("invalid end time: %w", err)
	}
	if !end.After(start) {
		return fmt.Errorf("end must be after start")
	}

	if err := s.api.CreateBusySlot(ctx, req); err != nil {
		return fmt.Errorf("create busy slot: %w", err)
	}
	if s.local != nil {
		_ = s.local.RecordAction(ctx, actorID, store.ActionBlockTime, "",
			fmt.Sprintf("%s %s-%s", req.BarberID, req.StartTime, req.EndTime))
	}
	return nil
}

// UnblockTime removes a busy interval.
func (s *Service) UnblockTime(ctx context.Context, actorID int64, busySlotID string) error {
	if err := s.api.DeleteBusySlot(ctx, busySlotID); err != nil {
		return fmt.Errorf("delete busy slot: %w", err)
	}
	if s.local != nil {
		_ = s.local.RecordAction(ctx, actorID, store.ActionUnblockTime, "", busySlotID)
	}
	return nil
}

// MarkHoliday marks a whole day off for a barber.
func (s *Service) MarkHoliday(ctx context.Context, actorID int64, barberID, date string) error {
	if _, err := time.ParseInLocation("2006-01-02", date, time.Local); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}

	if err := s.api.CreateHoliday(ctx, barberID, date); err != nil {
		return fmt.Errorf("create holiday: %w", err)
	}
	if s.local != nil {
		_ = s.local.RecordAction(ctx, actorID, store.ActionMarkHoliday, "", barberID+" "+date)
	}
	return nil
}

// WeeklySchedule returns the working windows of a barber for editing.
func (s *Service) WeeklySchedule(ctx context.Context, barberID string) ([]backend.WorkingHour, error) {
	return s.api.GetAdminWorkingHours(ctx, barberID)
}

// SetWeeklySchedule replaces the working windows of a barber. Every window
// must be a valid positive clock range.
func (s *Service) SetWeeklySchedule(ctx context.Context, actorID int64, barberID string, days []backend.WorkingHour) error {
	for _, d := range days {
		if d.Day < 0 || d.Day > 6 {
			return fmt.Errorf("invalid weekday %d", d.Day)
		}
		if len(schedule.Slots(d.Start, d.End)) == 0 {
			return fmt.Errorf("invalid window %s-%s for day %d", d.Start, d.End, d.Day)
		}
	}

	if err := s.api.DeleteWorkingHours(ctx, barberID); err != nil {
		return fmt.Errorf("clear working hours: %w", err)
	}
	if len(days) > 0 {
		if err := s.api.AddWorkingHours(ctx, barberID, days); err != nil {
			return fmt.Errorf("add working hours: %w", err)
		}
	}
	if s.local != nil {
		_ = s.local.RecordAction(ctx, actorID, store.ActionEditSchedule, "", barberID)
	}
	return nil
}

// notifyCustomer messages the chat that booked the appointment, when known.
// Bookings made outside the bot have no link and are skipped silently.
func (s *Service) notifyCustomer(ctx context.Context, appointmentID, message string) {
	if s.notifications == nil || s.local == nil {
		return
	}
	link, err := s.local.GetAppointmentLink(ctx, appointmentID)
	if err != nil || link == nil {
		return
	}
	_ = s.notifications.SendMessage(ctx, link.ChatID, message)
}

func formatWhen(wire string) string {
	t, err := time.ParseInLocation("2006-01-02T15:04:05", wire, time.Local)
	if err != nil {
		return wire
	}
	return t.Format("02.01.2006 15:04")
}
