package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Admin actions recorded in the audit log.
const (
	ActionApprove      = "approve"
	ActionReject       = "reject"
	ActionCancel       = "cancel"
	ActionBlockTime    = "block_time"
	ActionUnblockTime  = "unblock_time"
	ActionManualEntry  = "manual_entry"
	ActionMarkHoliday  = "mark_holiday"
	ActionEditSchedule = "edit_schedule"
)

// AuditEntry is one recorded admin decision.
type AuditEntry struct {
	ID            int64
	ActorID       int64
	Action        string
	AppointmentID string
	Reason        string
	CreatedAt     time.Time
}

// RecordAction appends an admin decision to the audit log.
func (db *DB) RecordAction(ctx context.Context, actorID int64, action, appointmentID, reason string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO audit_log (actor_id, action, appointment_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		actorID, action, appointmentID, reason, time.Now())
	return err
}

// ListActions returns audit entries since a point in time, oldest first.
func (db *DB) ListActions(ctx context.Context, since time.Time) ([]AuditEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, actor_id, action, COALESCE(appointment_id, ''), COALESCE(reason, ''), created_at
		FROM audit_log
		WHERE created_at >= ?
		ORDER BY created_at ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.AppointmentID,
			&e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ExportTableNames lists tables included in report exports.
var ExportTableNames = []string{
	"users",
	"appointment_links",
	"audit_log",
}

// GetTableNames returns the tables to export.
func (db *DB) GetTableNames(ctx context.Context) ([]string, error) {
	return ExportTableNames, nil
}

// GetTableData returns all rows of a table as maps, with column order.
func (db *DB) GetTableData(ctx context.Context, tableName string) ([]map[string]interface{}, []string, error) {
	validTable := false
	for _, t := range ExportTableNames {
		if t == tableName {
			validTable = true
			break
		}
	}
	if !validTable {
		return nil, nil, fmt.Errorf("invalid table name: %s", tableName)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return nil, nil, err
	}

	var columns []string
	for rows.Next() {
		var cid, notNull, pk int
		var name, typeName string
		var dfltValue sql.NullString
		if err := rows.Scan(&cid, &name, &typeName, &notNull, &dfltValue, &pk); err != nil {
			rows.Close()
			return nil, nil, err
		}
		columns = append(columns, name)
	}
	rows.Close()

	if len(columns) == 0 {
		return nil, nil, fmt.Errorf("table %s has no columns", tableName)
	}

	dataRows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", tableName))
	if err != nil {
		return nil, nil, err
	}
	defer dataRows.Close()

	var data []map[string]interface{}
	for dataRows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := dataRows.Scan(valuePtrs...); err != nil {
			return nil, nil, err
		}
		row := make(map[string]interface{})
		for i, col := range columns {
			row[col] = values[i]
		}
		data = append(data, row)
	}
	return data, columns, dataRows.Err()
}
