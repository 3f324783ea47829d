package history

import (
	"time"

	"curator/internal/episode"
	"curator/internal/quality"
)

// Series is a persisted series record.
type Series struct {
	ID        int64
	Name      string
	Begin     *episode.Identifier
	CreatedAt time.Time
}

// Episode is one identifier seen for a series. FirstSeen is written once.
type Episode struct {
	ID         int64
	SeriesID   int64
	Identifier episode.Identifier
	FirstSeen  time.Time
}

// Release is one quality variant of an episode. ProperCount is the highest
// proper count seen; DownloadedProperCount is the one actually taken.
type Release struct {
	ID                    int64
	EpisodeID             int64
	Title                 string
	Quality               string
	ProperCount           int
	Downloaded            bool
	DownloadedProperCount int
	DownloadedRunID       string
	DownloadedAt          time.Time
	FirstSeen             time.Time
}

// ParsedQuality rebuilds the release quality against the given tables.
func (r Release) ParsedQuality(tables *quality.Tables) quality.Quality {
	if tables == nil {
		tables = quality.Default()
	}
	return tables.FromString(r.Quality)
}

// SeasonMarker records season-pack completion.
type SeasonMarker struct {
	SeriesID  int64
	Season    int
	Complete  bool
	PackTitle string
}

// TimeframeWait is an identifier waiting for its target quality.
type TimeframeWait struct {
	SeriesID   int64
	Identifier string
	FirstSeen  time.Time
	Target     string
	Deadline   time.Time
}

// BacklogItem is an entry handed off for re-offering on a later run.
type BacklogItem struct {
	Task      string
	URL       string
	Title     string
	Fields    map[string]any
	AddedAt   time.Time
	ExpiresAt time.Time
}

// SeriesSummary is the listing view of one series.
type SeriesSummary struct {
	Series
	Episodes         int
	LatestDownloaded *Episode
	LatestRelease    *Release
}
