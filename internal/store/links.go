package store

import (
	"context"
	"database/sql"
	"time"
)

// AppointmentLink ties a backend appointment to the chat that booked it.
type AppointmentLink struct {
	AppointmentID string
	ChatID        int64
	BarberID      string
	StartsAt      time.Time
	ServiceType   int
	CreatedAt     time.Time
}

// LinkAppointment remembers which chat created an appointment.
func (db *DB) LinkAppointment(ctx context.Context, link AppointmentLink) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO appointment_links
			(appointment_id, chat_id, barber_id, starts_at, service_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		link.AppointmentID, link.ChatID, link.BarberID, link.StartsAt,
		link.ServiceType, time.Now())
	return err
}

// GetAppointmentLink returns the link for an appointment, or nil if the
// booking was made outside the bot.
func (db *DB) GetAppointmentLink(ctx context.Context, appointmentID string) (*AppointmentLink, error) {
	row := db.QueryRowContext(ctx, `
		SELECT appointment_id, chat_id, barber_id, starts_at, service_type, created_at
		FROM appointment_links
		WHERE appointment_id = ?`, appointmentID)

	var l AppointmentLink
	err := row.Scan(&l.AppointmentID, &l.ChatID, &l.BarberID, &l.StartsAt,
		&l.ServiceType, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListChatAppointments returns appointments a chat booked, newest first.
func (db *DB) ListChatAppointments(ctx context.Context, chatID int64) ([]AppointmentLink, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT appointment_id, chat_id, barber_id, starts_at, service_type, created_at
		FROM appointment_links
		WHERE chat_id = ?
		ORDER BY starts_at DESC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []AppointmentLink
	for rows.Next() {
		var l AppointmentLink
		if err := rows.Scan(&l.AppointmentID, &l.ChatID, &l.BarberID, &l.StartsAt,
			&l.ServiceType, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// ListAppointmentsStartingBetween returns links whose appointment starts in
// [from, to), used for reminders.
func (db *DB) ListAppointmentsStartingBetween(ctx context.Context, from, to time.Time) ([]AppointmentLink, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT appointment_id, chat_id, barber_id, starts_at, service_type, created_at
		FROM appointment_links
		WHERE starts_at >= ? AND starts_at < ?
		ORDER BY starts_at ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []AppointmentLink
	for rows.Next() {
		var l AppointmentLink
		if err := rows.Scan(&l.AppointmentID, &l.ChatID, &l.BarberID, &l.StartsAt,
			&l.ServiceType, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// DeleteAppointmentLink removes a link once the appointment is terminal.
func (db *DB) DeleteAppointmentLink(ctx context.Context, appointmentID string) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM appointment_links WHERE appointment_id = ?", appointmentID)
	return err
}
