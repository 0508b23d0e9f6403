package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"barberbot/internal/schedule"
)

// Status icons shown on non-selectable slot buttons.
const (
	iconPending = "🕐"
	iconBooked  = "❌"
	iconBusy    = "⛔"
	iconDimmed  = "·"
)

// DateKeyboard builds the day picker over the visible window. Days without a
// working window and holidays are shown dimmed and are not selectable.
func DateKeyboard(snap *schedule.Snapshot) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(snap.Days)+1)
	for _, day := range snap.Days {
		label := day.Label()
		data := "date:" + day.Date
		if len(snap.Grid.SlotLabels(day.Date)) == 0 {
			label = iconDimmed + " " + label
			data = "noop"
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, data),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back:service"),
	})
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// GridKeyboard renders one day of the availability grid as an inline
// keyboard. Only free slots that also fit the requested service duration are
// selectable; every other cell is a dead button carrying its status icon.
// Passing a nil filter disables the duration overlay.
func GridKeyboard(snap *schedule.Snapshot, date string, filter schedule.FilterResult) tgbotapi.InlineKeyboardMarkup {
	labels := snap.Grid.SlotLabels(date)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0)
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData(date, "noop"),
	})

	var currentRow []tgbotapi.InlineKeyboardButton
	for _, label := range labels {
		currentRow = append(currentRow, slotButton(snap, date, label, filter))
		if len(currentRow) == 4 {
			rows = append(rows, currentRow)
			currentRow = nil
		}
	}
	if len(currentRow) > 0 {
		rows = append(rows, currentRow)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back:date"),
	})
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func slotButton(snap *schedule.Snapshot, date, label string, filter schedule.FilterResult) tgbotapi.InlineKeyboardButton {
	switch snap.Grid.Status(date, label) {
	case schedule.StatusPending:
		return tgbotapi.NewInlineKeyboardButtonData(iconPending+" "+label, "noop")
	case schedule.StatusBooked:
		return tgbotapi.NewInlineKeyboardButtonData(iconBooked+" "+label, "noop")
	case schedule.StatusBusy:
		return tgbotapi.NewInlineKeyboardButtonData(iconBusy+" "+label, "noop")
	}

	// Free, but the requested service may not fit here.
	if filter != nil && !filter.Contains(date, label) {
		return tgbotapi.NewInlineKeyboardButtonData(iconDimmed+" "+label, "noop")
	}
	return tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("slot:%s", label))
}

// AdminGridKeyboard renders the grid for admins, where every cell acts:
// occupied cells link to the appointment behind them, busy intervals offer
// removal, and free cells open the book-or-block menu. Only holiday cells,
// which have no interval to act on, stay dead.
func AdminGridKeyboard(snap *schedule.Snapshot, date string) tgbotapi.InlineKeyboardMarkup {
	labels := snap.Grid.SlotLabels(date)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0)
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData(date, "noop"),
	})

	var currentRow []tgbotapi.InlineKeyboardButton
	for _, label := range labels {
		var btn tgbotapi.InlineKeyboardButton
		status := snap.Grid.Status(date, label)
		apptID := snap.Grid.AppointmentID(date, label)
		busyID := snap.Grid.BusyID(date, label)
		switch {
		case status == schedule.StatusPending && apptID != "":
			btn = tgbotapi.NewInlineKeyboardButtonData(iconPending+" "+label, "adm:view:"+apptID)
		case status == schedule.StatusBooked && apptID != "":
			btn = tgbotapi.NewInlineKeyboardButtonData(iconBooked+" "+label, "adm:view:"+apptID)
		case status == schedule.StatusBusy && busyID != "":
			btn = tgbotapi.NewInlineKeyboardButtonData(iconBusy+" "+label, "unblk:"+busyID)
		case status == schedule.StatusBusy:
			btn = tgbotapi.NewInlineKeyboardButtonData(iconBusy+" "+label, "noop")
		default:
			btn = tgbotapi.NewInlineKeyboardButtonData(label, "adm:free:"+date+":"+label)
		}
		currentRow = append(currentRow, btn)
		if len(currentRow) == 4 {
			rows = append(rows, currentRow)
			currentRow = nil
		}
	}
	if len(currentRow) > 0 {
		rows = append(rows, currentRow)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back:date"),
	})
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
