package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AddBacklog stores an entry for re-offering until expiresAt. Adding the
// same url again keeps the later expiry.
func (t *Tx) AddBacklog(item BacklogItem) error {
	var fields any
	if len(item.Fields) > 0 {
		data, err := json.Marshal(item.Fields)
		if err != nil {
			return fmt.Errorf("encode backlog fields for %q: %w", item.Title, err)
		}
		fields = string(data)
	}
	_, err := t.exec(`INSERT INTO backlog (task, url, title, fields_json, added_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(task, url) DO UPDATE SET
			title = excluded.title,
			fields_json = excluded.fields_json,
			expires_at = MAX(backlog.expires_at, excluded.expires_at)`,
		item.Task, item.URL, item.Title, fields, t.stamp(), formatTime(item.ExpiresAt))
	return persistenceError("add backlog", err)
}

// Backlog returns the unexpired items of a task in insertion order.
func (t *Tx) Backlog(task string, now time.Time) ([]BacklogItem, error) {
	rows, err := t.query(`SELECT task, url, title, fields_json, added_at, expires_at FROM backlog
		WHERE task = ? AND expires_at > ? ORDER BY added_at, url`, task, formatTime(now))
	if err != nil {
		return nil, persistenceError("backlog", err)
	}
	defer rows.Close()
	var out []BacklogItem
	for rows.Next() {
		var (
			item    BacklogItem
			fields  sql.NullString
			added   string
			expires string
		)
		if err := rows.Scan(&item.Task, &item.URL, &item.Title, &fields, &added, &expires); err != nil {
			return nil, persistenceError("backlog", err)
		}
		if fields.Valid && fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &item.Fields); err != nil {
				return nil, fmt.Errorf("decode backlog fields for %q: %w", item.Title, err)
			}
		}
		item.AddedAt, _ = parseTimeString(added)
		item.ExpiresAt, _ = parseTimeString(expires)
		out = append(out, item)
	}
	return out, persistenceError("backlog", rows.Err())
}

// PurgeBacklog deletes expired items of a task and reports how many went.
func (t *Tx) PurgeBacklog(task string, now time.Time) (int64, error) {
	res, err := t.exec("DELETE FROM backlog WHERE task = ? AND expires_at <= ?", task, formatTime(now))
	if err != nil {
		return 0, persistenceError("purge backlog", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteBacklog removes one item.
func (t *Tx) DeleteBacklog(task, url string) error {
	_, err := t.exec("DELETE FROM backlog WHERE task = ? AND url = ?", task, url)
	return persistenceError("delete backlog", err)
}
