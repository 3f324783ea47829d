package history

import (
	"time"
)

// TimeframeWait returns the wait record of an identifier, or nil.
func (t *Tx) TimeframeWait(seriesID int64, identifier string) (*TimeframeWait, error) {
	var (
		w        = TimeframeWait{SeriesID: seriesID, Identifier: identifier}
		seen     string
		deadline string
	)
	err := t.queryRow("SELECT first_seen_at, target, deadline FROM timeframe_waits WHERE series_id = ? AND identifier = ?",
		seriesID, identifier).Scan(&seen, &w.Target, &deadline)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("timeframe wait", err)
	}
	w.FirstSeen, _ = parseTimeString(seen)
	w.Deadline, _ = parseTimeString(deadline)
	return &w, nil
}

// StartTimeframeWait creates the wait record for an identifier unless one
// exists, and returns the stored record. An existing deadline is never moved.
func (t *Tx) StartTimeframeWait(seriesID int64, identifier, target string, firstSeen time.Time, wait time.Duration) (*TimeframeWait, error) {
	_, err := t.exec(`INSERT INTO timeframe_waits (series_id, identifier, first_seen_at, target, deadline) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(series_id, identifier) DO NOTHING`,
		seriesID, identifier, formatTime(firstSeen), target, formatTime(firstSeen.Add(wait)))
	if err != nil {
		return nil, persistenceError("start timeframe wait", err)
	}
	return t.TimeframeWait(seriesID, identifier)
}

// DeleteTimeframeWait removes the wait record of an identifier.
func (t *Tx) DeleteTimeframeWait(seriesID int64, identifier string) error {
	_, err := t.exec("DELETE FROM timeframe_waits WHERE series_id = ? AND identifier = ?", seriesID, identifier)
	return persistenceError("delete timeframe wait", err)
}

// TimeframeWaits lists the pending waits of a series ordered by deadline.
func (t *Tx) TimeframeWaits(seriesID int64) ([]TimeframeWait, error) {
	rows, err := t.query("SELECT identifier, first_seen_at, target, deadline FROM timeframe_waits WHERE series_id = ? ORDER BY deadline", seriesID)
	if err != nil {
		return nil, persistenceError("timeframe waits", err)
	}
	defer rows.Close()
	var out []TimeframeWait
	for rows.Next() {
		w := TimeframeWait{SeriesID: seriesID}
		var seen, deadline string
		if err := rows.Scan(&w.Identifier, &seen, &w.Target, &deadline); err != nil {
			return nil, persistenceError("timeframe waits", err)
		}
		w.FirstSeen, _ = parseTimeString(seen)
		w.Deadline, _ = parseTimeString(deadline)
		out = append(out, w)
	}
	return out, persistenceError("timeframe waits", rows.Err())
}
