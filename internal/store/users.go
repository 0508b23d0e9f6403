package store

import (
	"context"
	"database/sql"
	"time"
)

// User is a bot user record.
type User struct {
	ID         int64
	TelegramID int64
	Username   string
	FullName   string
	Phone      string
	IsAdmin    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UpsertUser records a user seen in an update, keeping name and username
// current. Admin status is never changed here.
func (db *DB) UpsertUser(ctx context.Context, telegramID int64, username, fullName string) error {
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, username, full_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			username = excluded.username,
			full_name = excluded.full_name,
			updated_at = excluded.updated_at`,
		telegramID, username, fullName, now, now)
	return err
}

// GetUser returns a user by telegram ID, or nil when unknown.
func (db *DB) GetUser(ctx context.Context, telegramID int64) (*User, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, telegram_id, username, full_name, COALESCE(phone, ''), is_admin,
		       created_at, updated_at
		FROM users
		WHERE telegram_id = ?`, telegramID)

	var u User
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FullName, &u.Phone,
		&u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// IsAdmin reports whether a telegram user has the admin role.
func (db *DB) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	var isAdmin bool
	err := db.QueryRowContext(ctx,
		"SELECT is_admin FROM users WHERE telegram_id = ?", telegramID,
	).Scan(&isAdmin)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return isAdmin, nil
}

// SetAdmin grants or revokes the admin role.
func (db *DB) SetAdmin(ctx context.Context, telegramID int64, isAdmin bool) error {
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			is_admin = excluded.is_admin,
			updated_at = excluded.updated_at`,
		telegramID, isAdmin, now, now)
	return err
}

// SetPhone stores the phone number a user shared with the bot.
func (db *DB) SetPhone(ctx context.Context, telegramID int64, phone string) error {
	_, err := db.ExecContext(ctx,
		"UPDATE users SET phone = ?, updated_at = ? WHERE telegram_id = ?",
		phone, time.Now(), telegramID)
	return err
}

// ListAdmins returns chat IDs of every admin, for broadcast notifications.
func (db *DB) ListAdmins(ctx context.Context) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT telegram_id FROM users WHERE is_admin = 1")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
