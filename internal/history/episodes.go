package history

import (
	"database/sql"
	"fmt"

	"curator/internal/episode"
	"curator/internal/quality"
)

const episodeColumns = "e.id, e.series_id, e.kind, e.identifier, e.first_seen_at"

const releaseColumns = "r.id, r.episode_id, r.title, r.quality, r.proper_count, r.downloaded, r.downloaded_proper_count, r.downloaded_run_id, r.downloaded_at, r.first_seen_at"

func scanEpisode(scanner interface{ Scan(dest ...any) error }) (*Episode, error) {
	var (
		ep      Episode
		kindRaw string
		key     string
		seen    string
	)
	if err := scanner.Scan(&ep.ID, &ep.SeriesID, &kindRaw, &key, &seen); err != nil {
		return nil, err
	}
	kind, err := episode.ParseKind(kindRaw)
	if err != nil {
		return nil, err
	}
	if ep.Identifier, err = episode.Restore(kind, key); err != nil {
		return nil, err
	}
	ep.FirstSeen, _ = parseTimeString(seen)
	return &ep, nil
}

func scanRelease(scanner interface{ Scan(dest ...any) error }) (*Release, error) {
	var (
		rel        Release
		downloaded int
		runID      sql.NullString
		dlAt       sql.NullString
		seen       string
	)
	if err := scanner.Scan(&rel.ID, &rel.EpisodeID, &rel.Title, &rel.Quality, &rel.ProperCount,
		&downloaded, &rel.DownloadedProperCount, &runID, &dlAt, &seen); err != nil {
		return nil, err
	}
	rel.Downloaded = downloaded != 0
	rel.DownloadedRunID = runID.String
	rel.DownloadedAt = parseNullTime(dlAt)
	rel.FirstSeen, _ = parseTimeString(seen)
	return &rel, nil
}

// EnsureEpisode returns the episode for an identifier, creating it the first
// time it is seen. first_seen_at is never updated afterwards.
func (t *Tx) EnsureEpisode(seriesID int64, id episode.Identifier) (*Episode, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("ensure episode: invalid identifier")
	}
	_, err := t.exec(`INSERT INTO episodes (series_id, kind, identifier, season, number, sequence, season_pack, first_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(series_id, kind, identifier) DO NOTHING`,
		seriesID, id.Kind.String(), id.Key(), id.Season, id.Number, id.Sequence, boolToInt(id.SeasonPack), t.stamp())
	if err != nil {
		return nil, persistenceError("ensure episode", err)
	}
	ep, err := t.Episode(seriesID, id)
	if err != nil {
		return nil, err
	}
	if ep == nil {
		return nil, persistenceError("ensure episode", fmt.Errorf("episode %s vanished after insert", id.Key()))
	}
	return ep, nil
}

// Episode looks up one episode. It returns nil when unknown.
func (t *Tx) Episode(seriesID int64, id episode.Identifier) (*Episode, error) {
	row := t.queryRow("SELECT "+episodeColumns+" FROM episodes e WHERE e.series_id = ? AND e.kind = ? AND e.identifier = ?",
		seriesID, id.Kind.String(), id.Key())
	ep, err := scanEpisode(row)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("episode", err)
	}
	return ep, nil
}

func (t *Tx) collectEpisodes(operation, query string, args ...any) ([]Episode, error) {
	rows, err := t.query(query, args...)
	if err != nil {
		return nil, persistenceError(operation, err)
	}
	defer rows.Close()
	var out []Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, persistenceError(operation, err)
		}
		out = append(out, *ep)
	}
	return out, persistenceError(operation, rows.Err())
}

// Episodes returns every episode of a series, most recently seen first.
func (t *Tx) Episodes(seriesID int64) ([]Episode, error) {
	return t.collectEpisodes("episodes",
		"SELECT "+episodeColumns+" FROM episodes e WHERE e.series_id = ? ORDER BY e.first_seen_at DESC, e.id DESC", seriesID)
}

// RecentEpisodes returns up to limit non-special episodes, most recently
// seen first.
func (t *Tx) RecentEpisodes(seriesID int64, limit int) ([]Episode, error) {
	return t.collectEpisodes("recent episodes",
		"SELECT "+episodeColumns+" FROM episodes e WHERE e.series_id = ? AND e.kind <> ? AND NOT (e.kind = ? AND e.season = 0 AND e.season_pack = 0) ORDER BY e.first_seen_at DESC, e.id DESC LIMIT ?",
		seriesID, episode.KindSpecial.String(), episode.KindEpisode.String(), limit)
}

// SeasonEpisodeCount counts the distinct single episodes seen for a season.
func (t *Tx) SeasonEpisodeCount(seriesID int64, season int) (int, error) {
	var n int
	err := t.queryRow("SELECT COUNT(1) FROM episodes WHERE series_id = ? AND kind = ? AND season = ? AND season_pack = 0",
		seriesID, episode.KindEpisode.String(), season).Scan(&n)
	return n, persistenceError("season episode count", err)
}

// LatestDownloaded returns the furthest downloaded episode of the given kind:
// highest season and number for episodes (season packs excluded), highest
// sequence, or latest date. It returns nil when nothing was downloaded.
func (t *Tx) LatestDownloaded(seriesID int64, kind episode.Kind) (*Episode, error) {
	var order string
	switch kind {
	case episode.KindEpisode:
		order = "e.season_pack = 0 ORDER BY e.season DESC, e.number DESC"
	case episode.KindSequence:
		order = "1 = 1 ORDER BY e.sequence DESC"
	case episode.KindDate:
		order = "1 = 1 ORDER BY e.identifier DESC"
	default:
		return nil, nil
	}
	row := t.queryRow(`SELECT `+episodeColumns+` FROM episodes e
		WHERE e.series_id = ? AND e.kind = ? AND EXISTS (SELECT 1 FROM releases r WHERE r.episode_id = e.id AND r.downloaded = 1)
		AND `+order+` LIMIT 1`, seriesID, kind.String())
	ep, err := scanEpisode(row)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("latest downloaded", err)
	}
	return ep, nil
}

func (t *Tx) latestDownload(seriesID int64) (*Episode, *Release, error) {
	row := t.queryRow(`SELECT `+releaseColumns+` FROM releases r JOIN episodes e ON e.id = r.episode_id
		WHERE e.series_id = ? AND r.downloaded = 1 ORDER BY r.downloaded_at DESC, r.id DESC LIMIT 1`, seriesID)
	rel, err := scanRelease(row)
	if notFound(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, persistenceError("latest download", err)
	}
	ep, err := scanEpisode(t.queryRow("SELECT "+episodeColumns+" FROM episodes e WHERE e.id = ?", rel.EpisodeID))
	if err != nil {
		return nil, nil, persistenceError("latest download", err)
	}
	return ep, rel, nil
}

// UpsertRelease records a release of an episode. A second sighting of the
// same quality raises the stored proper count instead of adding a row.
func (t *Tx) UpsertRelease(episodeID int64, title string, q quality.Quality, properCount int) (*Release, error) {
	_, err := t.exec(`INSERT INTO releases (episode_id, title, quality, proper_count, first_seen_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(episode_id, quality) DO UPDATE SET
			proper_count = MAX(releases.proper_count, excluded.proper_count),
			title = CASE WHEN excluded.proper_count > releases.proper_count THEN excluded.title ELSE releases.title END`,
		episodeID, title, q.String(), properCount, t.stamp())
	if err != nil {
		return nil, persistenceError("upsert release", err)
	}
	rel, err := scanRelease(t.queryRow("SELECT "+releaseColumns+" FROM releases r WHERE r.episode_id = ? AND r.quality = ?", episodeID, q.String()))
	if err != nil {
		return nil, persistenceError("upsert release", err)
	}
	return rel, nil
}

// Releases returns the releases of an episode in insertion order.
func (t *Tx) Releases(episodeID int64) ([]Release, error) {
	rows, err := t.query("SELECT "+releaseColumns+" FROM releases r WHERE r.episode_id = ? ORDER BY r.id", episodeID)
	if err != nil {
		return nil, persistenceError("releases", err)
	}
	defer rows.Close()
	var out []Release
	for rows.Next() {
		rel, err := scanRelease(rows)
		if err != nil {
			return nil, persistenceError("releases", err)
		}
		out = append(out, *rel)
	}
	return out, persistenceError("releases", rows.Err())
}

// DownloadedReleases returns only the releases marked downloaded.
func (t *Tx) DownloadedReleases(episodeID int64) ([]Release, error) {
	all, err := t.Releases(episodeID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, rel := range all {
		if rel.Downloaded {
			out = append(out, rel)
		}
	}
	return out, nil
}

// MarkDownloaded flags a release as taken by a task run.
func (t *Tx) MarkDownloaded(releaseID int64, properCount int, runID string) error {
	res, err := t.exec(`UPDATE releases SET downloaded = 1, downloaded_proper_count = ?, downloaded_run_id = ?, downloaded_at = ?,
		proper_count = MAX(proper_count, ?) WHERE id = ?`,
		properCount, nullableString(runID), t.stamp(), properCount, releaseID)
	if err != nil {
		return persistenceError("mark downloaded", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return persistenceError("mark downloaded", fmt.Errorf("release %d not found", releaseID))
	}
	return nil
}
