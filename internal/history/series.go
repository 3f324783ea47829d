package history

import (
	"database/sql"
	"fmt"
	"strings"

	"curator/internal/episode"
)

const seriesColumns = "id, name, begin_kind, begin_identifier, created_at"

func scanSeries(scanner interface{ Scan(dest ...any) error }) (*Series, error) {
	var (
		s         Series
		beginKind sql.NullString
		beginKey  sql.NullString
		created   string
	)
	if err := scanner.Scan(&s.ID, &s.Name, &beginKind, &beginKey, &created); err != nil {
		return nil, err
	}
	s.CreatedAt, _ = parseTimeString(created)
	if beginKind.Valid && beginKey.Valid {
		kind, err := episode.ParseKind(beginKind.String)
		if err != nil {
			return nil, fmt.Errorf("series %q begin: %w", s.Name, err)
		}
		id, err := episode.Restore(kind, beginKey.String)
		if err != nil {
			return nil, fmt.Errorf("series %q begin: %w", s.Name, err)
		}
		s.Begin = &id
	}
	return &s, nil
}

// SeriesByName looks a series up by its normalized name. It returns nil
// when the series is unknown.
func (t *Tx) SeriesByName(name string) (*Series, error) {
	row := t.queryRow("SELECT "+seriesColumns+" FROM series WHERE name_key = ?", episode.NameKey(name))
	s, err := scanSeries(row)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("series by name", err)
	}
	return s, nil
}

// EnsureSeries returns the series record, creating it on first use.
func (t *Tx) EnsureSeries(name string) (*Series, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("series name must not be empty")
	}
	if _, err := t.exec(
		"INSERT INTO series (name, name_key, created_at) VALUES (?, ?, ?) ON CONFLICT(name_key) DO NOTHING",
		name, episode.NameKey(name), t.stamp(),
	); err != nil {
		return nil, persistenceError("ensure series", err)
	}
	s, err := t.SeriesByName(name)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, persistenceError("ensure series", fmt.Errorf("series %q vanished after insert", name))
	}
	return s, nil
}

// SetBegin stores the identifier before which candidates are rejected. A
// nil identifier clears it.
func (t *Tx) SetBegin(seriesID int64, id *episode.Identifier) error {
	var kind, key any
	if id != nil {
		kind, key = id.Kind.String(), id.Key()
	}
	_, err := t.exec("UPDATE series SET begin_kind = ?, begin_identifier = ? WHERE id = ?", kind, key, seriesID)
	return persistenceError("set begin", err)
}

// ForgetSeries removes a series and everything recorded for it.
func (t *Tx) ForgetSeries(name string) (bool, error) {
	res, err := t.exec("DELETE FROM series WHERE name_key = ?", episode.NameKey(name))
	if err != nil {
		return false, persistenceError("forget series", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ForgetEpisode removes one episode of a series with its releases and any
// pending timeframe wait.
func (t *Tx) ForgetEpisode(name, key string) (bool, error) {
	s, err := t.SeriesByName(name)
	if err != nil || s == nil {
		return false, err
	}
	if _, err := t.exec("DELETE FROM timeframe_waits WHERE series_id = ? AND identifier = ?", s.ID, key); err != nil {
		return false, persistenceError("forget episode", err)
	}
	res, err := t.exec("DELETE FROM episodes WHERE series_id = ? AND identifier = ?", s.ID, key)
	if err != nil {
		return false, persistenceError("forget episode", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListSeries returns every known series with its episode count and latest
// download, ordered by name.
func (t *Tx) ListSeries() ([]SeriesSummary, error) {
	rows, err := t.query("SELECT " + seriesColumns + " FROM series ORDER BY name_key")
	if err != nil {
		return nil, persistenceError("list series", err)
	}
	var all []*Series
	for rows.Next() {
		s, err := scanSeries(rows)
		if err != nil {
			_ = rows.Close()
			return nil, persistenceError("list series", err)
		}
		all = append(all, s)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, persistenceError("list series", err)
	}
	_ = rows.Close()

	out := make([]SeriesSummary, 0, len(all))
	for _, s := range all {
		summary := SeriesSummary{Series: *s}
		if err := t.queryRow("SELECT COUNT(1) FROM episodes WHERE series_id = ?", s.ID).Scan(&summary.Episodes); err != nil {
			return nil, persistenceError("count episodes", err)
		}
		ep, rel, err := t.latestDownload(s.ID)
		if err != nil {
			return nil, err
		}
		summary.LatestDownloaded, summary.LatestRelease = ep, rel
		out = append(out, summary)
	}
	return out, nil
}

// TrackedKind returns the identifier kind a series is locked to for a task.
func (t *Tx) TrackedKind(seriesID int64, task string) (episode.Kind, bool, error) {
	var raw sql.NullString
	err := t.queryRow("SELECT identified_by FROM series_tasks WHERE series_id = ? AND task = ?", seriesID, task).Scan(&raw)
	if notFound(err) || (err == nil && !raw.Valid) {
		return episode.KindNone, false, nil
	}
	if err != nil {
		return episode.KindNone, false, persistenceError("tracked kind", err)
	}
	kind, err := episode.ParseKind(raw.String)
	if err != nil {
		return episode.KindNone, false, persistenceError("tracked kind", err)
	}
	return kind, kind != episode.KindNone, nil
}

// TrackSeries records that a task follows a series. A non-none kind locks
// the series to that identification scheme for the task.
func (t *Tx) TrackSeries(seriesID int64, task string, kind episode.Kind) error {
	var value any
	if kind != episode.KindNone {
		value = kind.String()
	}
	_, err := t.exec(`INSERT INTO series_tasks (series_id, task, identified_by, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(series_id, task) DO UPDATE SET
			identified_by = COALESCE(excluded.identified_by, series_tasks.identified_by),
			updated_at = excluded.updated_at`,
		seriesID, task, value, t.stamp())
	return persistenceError("track series", err)
}

// MarkSeasonComplete records that a season pack covering season was taken.
func (t *Tx) MarkSeasonComplete(seriesID int64, season int, packTitle string) error {
	_, err := t.exec(`INSERT INTO season_markers (series_id, season, complete, pack_title, updated_at) VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(series_id, season) DO UPDATE SET complete = 1, pack_title = excluded.pack_title, updated_at = excluded.updated_at`,
		seriesID, season, nullableString(packTitle), t.stamp())
	return persistenceError("mark season complete", err)
}

// SeasonMarkers returns the season markers of a series ordered by season.
func (t *Tx) SeasonMarkers(seriesID int64) ([]SeasonMarker, error) {
	rows, err := t.query("SELECT season, complete, pack_title FROM season_markers WHERE series_id = ? ORDER BY season", seriesID)
	if err != nil {
		return nil, persistenceError("season markers", err)
	}
	defer rows.Close()
	var out []SeasonMarker
	for rows.Next() {
		m := SeasonMarker{SeriesID: seriesID}
		var complete int
		var title sql.NullString
		if err := rows.Scan(&m.Season, &complete, &title); err != nil {
			return nil, persistenceError("season markers", err)
		}
		m.Complete = complete != 0
		m.PackTitle = title.String
		out = append(out, m)
	}
	return out, persistenceError("season markers", rows.Err())
}

// CompleteSeasons returns the seasons marked complete.
func (t *Tx) CompleteSeasons(seriesID int64) (map[int]bool, error) {
	markers, err := t.SeasonMarkers(seriesID)
	if err != nil {
		return nil, err
	}
	out := make(map[int]bool, len(markers))
	for _, m := range markers {
		if m.Complete {
			out[m.Season] = true
		}
	}
	return out, nil
}
