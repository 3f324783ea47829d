package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"curator/internal/episode"
	"curator/internal/history"
	"curator/internal/quality"
	"curator/internal/taskerr"
	"curator/internal/testsupport"
)

func mustID(t *testing.T, text string) episode.Identifier {
	t.Helper()
	id, err := episode.ParseIdentifier(text)
	if err != nil {
		t.Fatalf("ParseIdentifier(%q): %v", text, err)
	}
	return id
}

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustUpdate(t, store, func(tx *history.Tx) error {
		_, err := tx.EnsureSeries("Show")
		return err
	})
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	testsupport.MustUpdate(t, reopened, func(tx *history.Tx) error {
		s, err := tx.SeriesByName("show")
		if err != nil {
			return err
		}
		if s == nil || s.Name != "Show" {
			t.Fatalf("expected persisted series, got %#v", s)
		}
		return nil
	})
}

func TestEnsureSeriesIsKeyedByNormalizedName(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.MustUpdate(t, store, func(tx *history.Tx) error {
		a, err := tx.EnsureSeries("The Show")
		if err != nil {
			return err
		}
		b, err := tx.EnsureSeries("the.show")
		if err != nil {
			return err
		}
		if a.ID != b.ID {
			t.Fatalf("expected same series for equivalent names, got %d and %d", a.ID, b.ID)
		}
		return nil
	})
}

func TestEpisodeFirstSeenIsWrittenOnce(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	clock := testsupport.NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	store.SetClock(clock.Now)

	var first *history.Episode
	testsupport.MustUpdate(t, store, func(tx *history.Tx) error {
		s, err := tx.EnsureSeries("Show")
		if err != nil {
			return err
		}
		first, err = tx.EnsureEpisode(s.ID, mustID(t, "S01E02"))
		return err
	})
	clock.Advance(48 * time.Hour)
	testsupport.MustUpdate(t, store, func(tx *history.Tx) error {
		s, err := tx.EnsureSeries("Show")
		if err != nil {
			return err
		}
		again, err := tx.EnsureEpisode(s.ID, mustID(t, "S01E02"))
		if err != nil {
			return err
		}
		if again.ID != first.ID || !again.FirstSeen.Equal(first.FirstSeen) {
			t.Fatalf("expected unchanged episode, got %#v vs %#v", again, first)
		}
		return nil
	})
}

func TestReleaseUpsertKeepsOneRowPerQuality(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	q := quality.Parse("720p hdtv")
	testsupport.MustUpdate(t, store, func(tx *history.Tx) error {
		s, err := tx.EnsureSeries("Show")
		if err != nil {
			return err
		}
		ep, err := tx.EnsureEpisode(s.ID, mustID(t, "S01E01"))
		if err != nil {
			return err
		}
		if _, err := tx.UpsertRelease(ep.ID, "Show.S01E01.720p.HDTV", q, 0); err != nil {
			return err
		}
		rel, err := tx.UpsertRelease(ep.ID, "Show.S01E01.PROPER.720p.HDTV", q, 1)
		if err != nil {
			return err
		}
		if err := tx.MarkDownloaded(rel.ID, 1, "run-1"); err != nil {
			return err
		}
		if _, err := tx.UpsertRelease(ep.ID, "Show.S01E01.720p.HDTV", q, 0); err != nil {
			return err
		}

		releases, err := tx.Releases(ep.ID)
		if err != nil {
			return err
		}
		if len(releases) != 1 {
			t.Fatalf("expected one release row, got %d", len(releases))
		}
		got := releases[0]
		if got.ProperCount != 1 || !got.Downloaded || got.DownloadedProperCount != 1 || got.DownloadedRunID != "run-1" {
			t.Fatalf("unexpected release: %#v", got)
		}
		if got.Title != "Show.S01E01.PROPER.720p.HDTV" {
			t.Fatalf("expected proper title to be kept, got %q", got.Title)
		}
		if !got.ParsedQuality(nil).Equal(q) {
			t.Fatalf("quality did not round trip: %s", got.Quality)
		}
		return nil
	})
}

func TestLatestDownloadedIgnoresPacksAndUndownloaded(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.MustUpdate(t, store, func(tx *history.Tx) error {
		s, err := tx.EnsureSeries("Show")
		if err != nil {
			return err
		}
		for _, key := range []string{"S02E10", "S02E03", "S03", "S04E01"} {
			ep, err := tx.EnsureEpisode(s.ID, mustID(t, key))
			if err != nil {
				return err
			}
			rel, err := tx.UpsertRelease(ep.ID, "Show."+key, quality.Parse("720p"), 0)
			if err != nil {
				return err
			}
			if key != "S04E01" {
				if err := tx.MarkDownloaded(rel.ID, 0, "run"); err != nil {
					return err
				}
			}
		}
		latest, err := tx.LatestDownloaded(s.ID, episode.KindEpisode)
		if err != nil {
			return err
		}
		if latest == nil || latest.Identifier.Key() != "S02E10" {
			t.Fatalf("expected S02E10, got %#v", latest)
		}
		none, err := tx.LatestDownloaded(s.ID, episode.KindSequence)
		if err != nil {
			return err
		}
		if none != nil {
			t.Fatalf("expected no sequence download, got %#v", none)
		}
		count, err := tx.SeasonEpisodeCount(s.ID, 2)
		if err != nil {
			return err
		}
		if count != 2 {
			t.Fatalf("expected 2 season 2 episodes, got %d", count)
		}
		return nil
	})
}

func TestRecentEpisodesSkipSpecials(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	clock := testsupport.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	store.SetClock(clock.Now)
	testsupport.MustUpdate(t, store, func(tx *history.Tx) error {
		s, err := tx.EnsureSeries("Show")
		if err != nil {
			return err
		}
		ids := []episode.Identifier{
			mustID(t, "S01E01"),
			{Kind: episode.KindSpecial, ID: "behind.the.scenes"},
			mustID(t, "S00E01"),
			mustID(t, "2024-01-05"),
		}
		for _, id := range ids {
			clock.Advance(time.Hour)
			if _, err := tx.EnsureEpisode(s.ID, id); err != nil {
				return err
			}
		}
		recent, err := tx.RecentEpisodes(s.ID, 5)
		if err != nil {
			return err
		}
		if len(recent) != 2 || recent[0].Identifier.Kind != episode.KindDate || recent[1].Identifier.Key() != "S01E01" {
			t.Fatalf("unexpected recent episodes: %#v", recent)
		}
		return nil
	})
}

func TestTrackingAndSeasonMarkers(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.MustUpdate(t, store, func(tx *history.Tx) error {
		s, err := tx.EnsureSeries("Show")
		if err != nil {
			return err
		}
		if err := tx.TrackSeries(s.ID, "tv", episode.KindNone); err != nil {
			return err
		}
		if _, locked, err := tx.TrackedKind(s.ID, "tv"); err != nil || locked {
			t.Fatalf("expected unlocked tracking, locked=%v err=%v", locked, err)
		}
		if err := tx.TrackSeries(s.ID, "tv", episode.KindDate); err != nil {
			return err
		}
		if err := tx.TrackSeries(s.ID, "tv", episode.KindNone); err != nil {
			return err
		}
		kind, locked, err := tx.TrackedKind(s.ID, "tv")
		if err != nil || !locked || kind != episode.KindDate {
			t.Fatalf("expected date lock to survive, got %v %v %v", kind, locked, err)
		}

		if err := tx.MarkSeasonComplete(s.ID, 1, "Show.S01.1080p"); err != nil {
			return err
		}
		complete, err := tx.CompleteSeasons(s.ID)
		if err != nil {
			return err
		}
		if !complete[1] || complete[2] {
			t.Fatalf("unexpected complete seasons: %v", complete)
		}
		return nil
	})
}

func TestTimeframeWaitDeadlineIsStable(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	testsupport.MustUpdate(t, store, func(tx *history.Tx) error {
		s, err := tx.EnsureSeries("Show")
		if err != nil {
			return err
		}
		w, err := tx.StartTimeframeWait(s.ID, "S01E01", "1080p", start, 12*time.Hour)
		if err != nil {
			return err
		}
		if !w.Deadline.Equal(start.Add(12 * time.Hour)) {
			t.Fatalf("unexpected deadline: %v", w.Deadline)
		}
		again, err := tx.StartTimeframeWait(s.ID, "S01E01", "1080p", start.Add(6*time.Hour), 12*time.Hour)
		if err != nil {
			return err
		}
		if !again.Deadline.Equal(w.Deadline) {
			t.Fatalf("deadline moved: %v -> %v", w.Deadline, again.Deadline)
		}
		if err := tx.DeleteTimeframeWait(s.ID, "S01E01"); err != nil {
			return err
		}
		gone, err := tx.TimeframeWait(s.ID, "S01E01")
		if err != nil {
			return err
		}
		if gone != nil {
			t.Fatalf("expected wait to be deleted, got %#v", gone)
		}
		return nil
	})
}

func TestBacklogExpiry(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	testsupport.MustUpdate(t, store, func(tx *history.Tx) error {
		items := []history.BacklogItem{
			{Task: "tv", URL: "u1", Title: "A", Fields: map[string]any{"series_name": "Show"}, ExpiresAt: now.Add(time.Hour)},
			{Task: "tv", URL: "u2", Title: "B", ExpiresAt: now.Add(-time.Minute)},
			{Task: "movies", URL: "u3", Title: "C", ExpiresAt: now.Add(time.Hour)},
		}
		for _, item := range items {
			if err := tx.AddBacklog(item); err != nil {
				return err
			}
		}
		if err := tx.AddBacklog(history.BacklogItem{Task: "tv", URL: "u1", Title: "A", ExpiresAt: now.Add(time.Minute)}); err != nil {
			return err
		}

		live, err := tx.Backlog("tv", now)
		if err != nil {
			return err
		}
		if len(live) != 1 || live[0].URL != "u1" || !live[0].ExpiresAt.Equal(now.Add(time.Hour)) {
			t.Fatalf("unexpected live backlog: %#v", live)
		}
		purged, err := tx.PurgeBacklog("tv", now)
		if err != nil {
			return err
		}
		if purged != 1 {
			t.Fatalf("expected one purged row, got %d", purged)
		}
		return tx.DeleteBacklog("tv", "u1")
	})
}

func TestRollbackDiscardsWrites(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	boom := errors.New("boom")
	err := store.Update(context.Background(), func(tx *history.Tx) error {
		if _, err := tx.EnsureSeries("Gone"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	testsupport.MustUpdate(t, store, func(tx *history.Tx) error {
		s, err := tx.SeriesByName("Gone")
		if err != nil {
			return err
		}
		if s != nil {
			t.Fatal("expected rolled back series to be absent")
		}
		return nil
	})
}

func TestClosedScopeReportsPersistenceError(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	tx, err := store.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	_, err = tx.EnsureSeries("Late")
	if !errors.Is(err, taskerr.ErrPersistence) {
		t.Fatalf("expected persistence error after commit, got %v", err)
	}
}

func TestForgetAndConfigHash(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.MustUpdate(t, store, func(tx *history.Tx) error {
		s, err := tx.EnsureSeries("Show")
		if err != nil {
			return err
		}
		begin := mustID(t, "S02E01")
		if err := tx.SetBegin(s.ID, &begin); err != nil {
			return err
		}
		for _, key := range []string{"S02E01", "S02E02"} {
			if _, err := tx.EnsureEpisode(s.ID, mustID(t, key)); err != nil {
				return err
			}
		}
		removed, err := tx.ForgetEpisode("Show", "S02E01")
		if err != nil || !removed {
			t.Fatalf("expected episode removal, got %v %v", removed, err)
		}
		list, err := tx.ListSeries()
		if err != nil {
			return err
		}
		if len(list) != 1 || list[0].Episodes != 1 || list[0].Begin == nil || list[0].Begin.Key() != "S02E01" {
			t.Fatalf("unexpected listing: %#v", list)
		}
		removed, err = tx.ForgetSeries("show")
		if err != nil || !removed {
			t.Fatalf("expected series removal, got %v %v", removed, err)
		}

		if _, ok, err := tx.ConfigHash("tv"); err != nil || ok {
			t.Fatalf("expected no hash, got ok=%v err=%v", ok, err)
		}
		if err := tx.SetConfigHash("tv", "abc"); err != nil {
			return err
		}
		if err := tx.SetConfigHash("tv", "def"); err != nil {
			return err
		}
		hash, ok, err := tx.ConfigHash("tv")
		if err != nil || !ok || hash != "def" {
			t.Fatalf("unexpected hash %q ok=%v err=%v", hash, ok, err)
		}
		return nil
	})
}
