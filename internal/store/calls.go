package store

import (
	"fmt"
	"time"
)

// RecordCall journals a procedure call before it is sent.
func (db *DB) RecordCall(callID, procedure, argsJSON string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO calls (call_id, procedure, args, status, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', ?, ?)`,
		callID, procedure, argsJSON, now, now)
	if err != nil {
		return fmt.Errorf("record call %s: %w", procedure, err)
	}
	return nil
}

// MarkCallOK marks a pending call as succeeded. A call already settled is
// left as it is.
func (db *DB) MarkCallOK(callID string) error {
	_, err := db.Exec(`UPDATE calls SET status = 'ok', updated_at = ? WHERE call_id = ? AND status = 'pending'`,
		time.Now().UnixMilli(), callID)
	return err
}

// MarkCallFailed marks a pending call as failed with errMsg. A call already
// settled is left as it is.
func (db *DB) MarkCallFailed(callID, errMsg string) error {
	_, err := db.Exec(`UPDATE calls SET status = 'failed', error_message = ?, updated_at = ? WHERE call_id = ? AND status = 'pending'`,
		errMsg, time.Now().UnixMilli(), callID)
	return err
}

// RecentCalls returns the newest journaled calls first.
func (db *DB) RecentCalls(limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, call_id, procedure, args, status, error_message, created_at, updated_at
		FROM calls ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var calls []Call
	for rows.Next() {
		var c Call
		if err := rows.Scan(&c.ID, &c.CallID, &c.Procedure, &c.Args, &c.Status, &c.ErrorMessage, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// StaleCalls returns calls still pending that were journaled before cutoff,
// oldest first.
func (db *DB) StaleCalls(cutoff time.Time) ([]Call, error) {
	rows, err := db.Query(`
		SELECT id, call_id, procedure, args, status, error_message, created_at, updated_at
		FROM calls WHERE status = 'pending' AND created_at < ? ORDER BY created_at, id`,
		cutoff.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var calls []Call
	for rows.Next() {
		var c Call
		if err := rows.Scan(&c.ID, &c.CallID, &c.Procedure, &c.Args, &c.Status, &c.ErrorMessage, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}
