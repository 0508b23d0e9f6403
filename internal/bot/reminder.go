package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"barberbot/internal/backend"
	"barberbot/internal/store"
)

// StartReminders schedules daily reminders for next-day appointments booked
// through the bot.
func (b *Bot) StartReminders(ctx context.Context) {
	if b == nil || b.db == nil {
		return
	}

	go func() {
		// First wait until next 09:00 local time, then tick every 24h.
		wait := timeUntilNextHour(9)
		timer := time.NewTimer(wait)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				b.sendTomorrowReminders(ctx)
				timer.Reset(24 * time.Hour)
			}
		}
	}()
}

func (b *Bot) sendTomorrowReminders(ctx context.Context) {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local).AddDate(0, 0, 1)
	to := from.AddDate(0, 0, 1)

	links, err := b.db.ListAppointmentsStartingBetween(ctx, from, to)
	if err != nil {
		b.logger.Error().Err(err).Msg("reminder: list appointments")
		return
	}

	for _, link := range links {
		// The appointment may have been rejected or cancelled since.
		details, err := b.api.GetAppointmentDetails(ctx, link.AppointmentID)
		if err != nil {
			b.logger.Warn().Err(err).Str("appointment_id", link.AppointmentID).Msg("reminder: load details")
			continue
		}
		if strings.EqualFold(details.Status, "cancelled") || strings.EqualFold(details.Status, "canceled") {
			continue
		}

		msg := tgbotapi.NewMessage(link.ChatID, formatReminder(link, details.Status))
		if _, err := b.tg.Send(msg); err != nil {
			b.logger.Warn().Err(err).Int64("chat_id", link.ChatID).Msg("reminder: send")
		}
	}
}

func formatReminder(link store.AppointmentLink, status string) string {
	text := fmt.Sprintf("⏰ Reminder: tomorrow at %s — %s.",
		link.StartsAt.Format("15:04"), backend.ServiceName(link.ServiceType))
	if strings.EqualFold(status, "pending") {
		text += " The barber has not confirmed it yet."
	}
	return text
}

func timeUntilNextHour(hour int) time.Duration {
	now := time.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
