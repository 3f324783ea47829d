package series_test

import (
	"context"
	"log/slog"
	"slices"
	"testing"
	"time"

	"curator/internal/backlog"
	"curator/internal/config"
	"curator/internal/entry"
	"curator/internal/episode"
	"curator/internal/history"
	"curator/internal/logging"
	"curator/internal/plugin"
	"curator/internal/quality"
	"curator/internal/series"
	"curator/internal/task"
	"curator/internal/testsupport"
)

// feed offers a fixed list of titles and records the decision of every
// entry at output, per pass.
type feed struct {
	titles []string
	passes []map[string]decision
}

type decision struct {
	state  entry.State
	reason string
}

func (f *feed) OnInput(_ context.Context, _ plugin.Task, _ any) ([]*entry.Entry, error) {
	out := make([]*entry.Entry, 0, len(f.titles))
	for _, title := range f.titles {
		out = append(out, entry.New(title, "http://feed/"+title))
	}
	return out, nil
}

func (f *feed) OnOutput(_ context.Context, task plugin.Task, _ any) error {
	seen := make(map[string]decision)
	for _, e := range task.Entries().All() {
		seen[e.Title()] = decision{state: e.State(), reason: e.Reason()}
	}
	f.passes = append(f.passes, seen)
	return nil
}

type harness struct {
	cfg   *config.Config
	store *history.Store
	clock *testsupport.Clock
	ring  *logging.Ring
	// extra registers additional plugins for every run.
	extra func(reg *plugin.Registry)
}

var start = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, seriesCfg map[string]any) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithTask("tv", 0, map[string]any{
		"feed":   true,
		"series": seriesCfg,
	}))
	cfg.Backlog.GraceDuration = time.Hour
	h := &harness{
		cfg:   cfg,
		store: testsupport.MustOpenStore(t, cfg),
		clock: testsupport.NewClock(start),
		ring:  logging.NewRing(128),
	}
	h.store.SetClock(h.clock.Now)
	return h
}

// run executes the task once with the given titles and returns the
// decisions of every pass.
func (h *harness) run(t *testing.T, titles ...string) []map[string]decision {
	t.Helper()
	f := &feed{titles: titles}
	reg := plugin.NewRegistry()
	if err := backlog.Register(reg); err != nil {
		t.Fatalf("register backlog: %v", err)
	}
	if err := series.Register(reg); err != nil {
		t.Fatalf("register series: %v", err)
	}
	reg.MustRegister("feed", f)
	if h.extra != nil {
		h.extra(reg)
	}

	tk, err := task.New("tv", task.Options{
		Config:   h.cfg,
		Registry: reg,
		Store:    h.store,
		Logger:   slog.New(h.ring.Handler()),
		Ring:     h.ring,
		Now:      h.clock.Now,
	})
	if err != nil {
		t.Fatalf("task.New: %v", err)
	}
	if err := tk.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(f.passes) == 0 {
		t.Fatal("output never ran")
	}
	return f.passes
}

func expect(t *testing.T, pass map[string]decision, title string, state entry.State, reason string) {
	t.Helper()
	got, ok := pass[title]
	if !ok {
		t.Fatalf("%s was not offered", title)
	}
	if got.state != state || (reason != "" && got.reason != reason) {
		t.Fatalf("%s: got %s (%q), want %s (%q)", title, got.state, got.reason, state, reason)
	}
}

func shows(names ...string) []any {
	out := make([]any, 0, len(names))
	for _, name := range names {
		out = append(out, map[string]any{"name": name})
	}
	return out
}

// seedDownload records an episode as downloaded outside a task run.
func (h *harness) seedDownload(t *testing.T, show, id, title string) {
	t.Helper()
	ident, err := episode.ParseIdentifier(id)
	if err != nil {
		t.Fatalf("ParseIdentifier(%q): %v", id, err)
	}
	testsupport.MustUpdate(t, h.store, func(tx *history.Tx) error {
		s, err := tx.EnsureSeries(show)
		if err != nil {
			return err
		}
		ep, err := tx.EnsureEpisode(s.ID, ident)
		if err != nil {
			return err
		}
		rel, err := tx.UpsertRelease(ep.ID, title, quality.Default().Parse(title), 0)
		if err != nil {
			return err
		}
		return tx.MarkDownloaded(rel.ID, 0, "seed")
	})
}

func TestQualityRequirementThenDownloadedOnNextRun(t *testing.T) {
	h := newHarness(t, map[string]any{"quality": "720p", "shows": shows("Show")})

	first := h.run(t, "Show.S01E02.720p", "Show.S01E02.HDTV")[0]
	expect(t, first, "Show.S01E02.720p", entry.Accepted, "best available quality")
	expect(t, first, "Show.S01E02.HDTV", entry.Rejected, "quality not wanted")

	h.clock.Advance(time.Hour)
	second := h.run(t, "Show.S01E02.720p", "Show.S01E02.HDTV")[0]
	expect(t, second, "Show.S01E02.720p", entry.Rejected, "quality downloaded")
	expect(t, second, "Show.S01E02.HDTV", entry.Rejected, "quality downloaded")
}

func TestProperIsAnUpgradeInPlace(t *testing.T) {
	h := newHarness(t, map[string]any{"shows": shows("Show")})

	expect(t, h.run(t, "Show.S01E01.720p")[0], "Show.S01E01.720p", entry.Accepted, "")
	h.clock.Advance(time.Hour)
	expect(t, h.run(t, "Show.S01E01.720p.PROPER")[0], "Show.S01E01.720p.PROPER", entry.Accepted, "proper upgrade")
	h.clock.Advance(time.Hour)
	expect(t, h.run(t, "Show.S01E01.720p")[0], "Show.S01E01.720p", entry.Rejected, "quality downloaded")

	testsupport.MustUpdate(t, h.store, func(tx *history.Tx) error {
		s, err := tx.SeriesByName("Show")
		if err != nil {
			return err
		}
		ep, err := tx.Episode(s.ID, episode.Identifier{Kind: episode.KindEpisode, Season: 1, Number: 1, Count: 1})
		if err != nil {
			return err
		}
		rels, err := tx.Releases(ep.ID)
		if err != nil {
			return err
		}
		if len(rels) != 1 {
			t.Fatalf("expected one release row, got %d", len(rels))
		}
		if !rels[0].Downloaded || rels[0].DownloadedProperCount != 1 {
			t.Fatalf("unexpected release %+v", rels[0])
		}
		return nil
	})
}

func TestPropersCanBeDisabled(t *testing.T) {
	h := newHarness(t, map[string]any{"propers": false, "shows": shows("Show")})
	h.run(t, "Show.S01E01.720p")
	h.clock.Advance(time.Hour)
	expect(t, h.run(t, "Show.S01E01.720p.REPACK")[0], "Show.S01E01.720p.REPACK", entry.Rejected, "propers not allowed")
}

func TestUpgradeUntilTarget(t *testing.T) {
	h := newHarness(t, map[string]any{"upgrade": true, "target": "1080p", "shows": shows("Show")})

	expect(t, h.run(t, "Show.S01E01.HDTV")[0], "Show.S01E01.HDTV", entry.Accepted, "")
	h.clock.Advance(time.Hour)
	expect(t, h.run(t, "Show.S01E01.1080p.WEBDL")[0], "Show.S01E01.1080p.WEBDL", entry.Accepted, "quality upgrade")
	h.clock.Advance(time.Hour)
	expect(t, h.run(t, "Show.S01E01.2160p.BluRay")[0], "Show.S01E01.2160p.BluRay", entry.Rejected, "target quality already downloaded")
}

func TestNoUpgradeWithoutOptIn(t *testing.T) {
	h := newHarness(t, map[string]any{"shows": shows("Show")})
	h.run(t, "Show.S01E01.HDTV")
	h.clock.Advance(time.Hour)
	expect(t, h.run(t, "Show.S01E01.1080p")[0], "Show.S01E01.1080p", entry.Rejected, "episode already downloaded")
}

func TestBestCandidateWinsWithinBatch(t *testing.T) {
	h := newHarness(t, map[string]any{"shows": shows("Show")})
	pass := h.run(t, "Show.S01E03.720p", "Show.S01E03.1080p", "Show.S01E03E04.1080p", "Show.S01E03.1080p.PROPER")[0]
	expect(t, pass, "Show.S01E03.1080p.PROPER", entry.Accepted, "best available quality")
	expect(t, pass, "Show.S01E03.1080p", entry.Rejected, "lower quality than accepted")
	expect(t, pass, "Show.S01E03E04.1080p", entry.Rejected, "lower quality than accepted")
	expect(t, pass, "Show.S01E03.720p", entry.Rejected, "lower quality than accepted")
}

func TestDoubleEpisodePreferredAtEqualQuality(t *testing.T) {
	h := newHarness(t, map[string]any{"shows": shows("Show")})
	pass := h.run(t, "Show.S01E05.720p", "Show.S01E05E06.720p")[0]
	expect(t, pass, "Show.S01E05E06.720p", entry.Accepted, "")
	expect(t, pass, "Show.S01E05.720p", entry.Rejected, "lower quality than accepted")

	h.clock.Advance(time.Hour)
	expect(t, h.run(t, "Show.S01E06.720p")[0], "Show.S01E06.720p", entry.Rejected, "quality downloaded")
}

func TestSingleCoveredByDoubleInSameBatch(t *testing.T) {
	h := newHarness(t, map[string]any{"shows": shows("Show")})
	pass := h.run(t, "Show.S01E06.720p", "Show.S01E05E06.720p", "Show.S01E07.720p")[0]
	expect(t, pass, "Show.S01E05E06.720p", entry.Accepted, "best available quality")
	expect(t, pass, "Show.S01E06.720p", entry.Rejected, "episode accepted in another release")
	expect(t, pass, "Show.S01E07.720p", entry.Accepted, "")
}

func TestBetterSingleKeepsItsEpisodeFromDouble(t *testing.T) {
	h := newHarness(t, map[string]any{"shows": shows("Show")})
	pass := h.run(t, "Show.S01E05.1080p", "Show.S01E05E06.720p", "Show.S01E06.720p")[0]
	expect(t, pass, "Show.S01E05.1080p", entry.Accepted, "")
	expect(t, pass, "Show.S01E05E06.720p", entry.Rejected, "lower quality than accepted")
	expect(t, pass, "Show.S01E06.720p", entry.Accepted, "")
}

// picker accepts the listed titles before the series plugin filters.
type picker struct{ titles []string }

func (p picker) OnFilter(_ context.Context, task plugin.Task, _ any) error {
	for _, e := range task.Entries().Undecided() {
		if slices.Contains(p.titles, e.Title()) {
			if err := e.Accept("picked", entry.By("picker")); err != nil {
				return err
			}
		}
	}
	return nil
}

func TestSupersededIncumbentIsNotLearned(t *testing.T) {
	h := newHarness(t, map[string]any{"shows": shows("Show")})
	h.extra = func(reg *plugin.Registry) {
		reg.MustRegister("picker", picker{titles: []string{"Show.S01E01.HDTV"}},
			plugin.Builtin(), plugin.Priority(plugin.PhaseFilter, 200))
	}
	pass := h.run(t, "Show.S01E01.HDTV", "Show.S01E01.1080p")[0]
	expect(t, pass, "Show.S01E01.HDTV", entry.Accepted, "picked")
	expect(t, pass, "Show.S01E01.1080p", entry.Accepted, "quality upgrade")

	testsupport.MustUpdate(t, h.store, func(tx *history.Tx) error {
		s, err := tx.SeriesByName("Show")
		if err != nil {
			return err
		}
		ep, err := tx.Episode(s.ID, episode.Identifier{Kind: episode.KindEpisode, Season: 1, Number: 1, Count: 1})
		if err != nil {
			return err
		}
		rels, err := tx.Releases(ep.ID)
		if err != nil {
			return err
		}
		for _, rel := range rels {
			if rel.Downloaded != (rel.Title == "Show.S01E01.1080p") {
				t.Fatalf("unexpected download state %+v", rel)
			}
		}
		return nil
	})
}

func TestAdvancementGraceBoundary(t *testing.T) {
	h := newHarness(t, map[string]any{"advancement_grace": 2, "shows": shows("Show")})
	h.seedDownload(t, "Show", "S02E10", "Show.S02E10.720p")

	passes := h.run(t, "Show.S02E07.720p", "Show.S02E08.720p", "Show.S01E12.720p", "Show.S04E01.720p")
	first := passes[0]
	expect(t, first, "Show.S02E07.720p", entry.Rejected, "too far in the past")
	expect(t, first, "Show.S02E08.720p", entry.Accepted, "")
	expect(t, first, "Show.S01E12.720p", entry.Rejected, "too far in the past")
	expect(t, first, "Show.S04E01.720p", entry.Rejected, "too far in the future")

	if len(passes) != 2 {
		t.Fatalf("expected one rerun after accepting with future rejections, got %d passes", len(passes))
	}
	expect(t, passes[1], "Show.S04E01.720p", entry.Rejected, "too far in the future")
	expect(t, passes[1], "Show.S02E08.720p", entry.Rejected, "quality downloaded")
}

func TestRerunLetsNextSeasonThrough(t *testing.T) {
	h := newHarness(t, map[string]any{"shows": shows("Show")})
	h.seedDownload(t, "Show", "S01E05", "Show.S01E05.720p")

	passes := h.run(t, "Show.S02E01.720p", "Show.S03E01.720p")
	if len(passes) != 2 {
		t.Fatalf("expected 2 passes, got %d", len(passes))
	}
	expect(t, passes[0], "Show.S02E01.720p", entry.Accepted, "")
	expect(t, passes[0], "Show.S03E01.720p", entry.Rejected, "too far in the future")
	expect(t, passes[1], "Show.S03E01.720p", entry.Accepted, "")
}

func TestBackfillAllowsOlderEpisodes(t *testing.T) {
	h := newHarness(t, map[string]any{"tracking": "backfill", "season_packs": true, "shows": shows("Show")})
	h.seedDownload(t, "Show", "S02E10", "Show.S02E10.720p")

	pass := h.run(t, "Show.S01E03.720p", "Show.S02E01.720p")[0]
	expect(t, pass, "Show.S01E03.720p", entry.Accepted, "")
	expect(t, pass, "Show.S02E01.720p", entry.Accepted, "")
}

func TestTrackingOffSkipsAdvancement(t *testing.T) {
	h := newHarness(t, map[string]any{"tracking": "off", "shows": shows("Show")})
	h.seedDownload(t, "Show", "S02E10", "Show.S02E10.720p")
	pass := h.run(t, "Show.S01E01.720p", "Show.S09E01.720p")[0]
	expect(t, pass, "Show.S01E01.720p", entry.Accepted, "")
	expect(t, pass, "Show.S09E01.720p", entry.Accepted, "")
}

func TestSeasonPackExclusivity(t *testing.T) {
	h := newHarness(t, map[string]any{"season_packs": true, "shows": shows("Show")})

	expect(t, h.run(t, "Show.S01.720p")[0], "Show.S01.720p", entry.Accepted, "")
	h.clock.Advance(time.Hour)
	pass := h.run(t, "Show.S01E03.720p", "Show.S02E01.720p")[0]
	expect(t, pass, "Show.S01E03.720p", entry.Rejected, "season complete")
	expect(t, pass, "Show.S02E01.720p", entry.Accepted, "")

	testsupport.MustUpdate(t, h.store, func(tx *history.Tx) error {
		s, err := tx.SeriesByName("Show")
		if err != nil {
			return err
		}
		markers, err := tx.SeasonMarkers(s.ID)
		if err != nil {
			return err
		}
		if len(markers) != 1 || markers[0].Season != 1 || markers[0].PackTitle != "Show.S01.720p" {
			t.Fatalf("unexpected markers %+v", markers)
		}
		return nil
	})
}

func TestSeasonPackCountsTowardsAdvancement(t *testing.T) {
	h := newHarness(t, map[string]any{"season_packs": true, "shows": shows("Show")})

	expect(t, h.run(t, "Show.S01.720p")[0], "Show.S01.720p", entry.Accepted, "")
	h.clock.Advance(time.Hour)
	pass := h.run(t, "Show.S03E01.720p", "Show.S02E01.720p")[0]
	expect(t, pass, "Show.S03E01.720p", entry.Rejected, "too far in the future")
	expect(t, pass, "Show.S02E01.720p", entry.Accepted, "")
}

func TestPackInBatchShutsOutItsSeason(t *testing.T) {
	h := newHarness(t, map[string]any{"season_packs": true, "shows": shows("Show")})
	pass := h.run(t, "Show.S01E02.720p", "Show.S01.720p")[0]
	expect(t, pass, "Show.S01.720p", entry.Accepted, "")
	expect(t, pass, "Show.S01E02.720p", entry.Rejected, "season complete")
}

func TestSeasonPackThreshold(t *testing.T) {
	h := newHarness(t, map[string]any{"season_packs": true, "season_pack_threshold": 2, "shows": shows("Show")})

	pass := h.run(t, "Show.S03E01.720p", "Show.S03.1080p")[0]
	expect(t, pass, "Show.S03.1080p", entry.Rejected, "season pack before enough episodes were seen")
	expect(t, pass, "Show.S03E01.720p", entry.Accepted, "")

	h.clock.Advance(time.Hour)
	pass = h.run(t, "Show.S03E02.720p", "Show.S03.1080p")[0]
	expect(t, pass, "Show.S03.1080p", entry.Accepted, "")
	expect(t, pass, "Show.S03E02.720p", entry.Rejected, "season complete")
}

func TestTimeframeExpiryBoundary(t *testing.T) {
	h := newHarness(t, map[string]any{"timeframe": "12h", "target": "1080p", "shows": shows("Show")})
	const low, lower = "Show.S01E01.720p", "Show.S01E01.HDTV"

	pass := h.run(t, low, lower)[0]
	expect(t, pass, low, entry.Rejected, "waiting")
	expect(t, pass, lower, entry.Rejected, "waiting")

	h.clock.Set(start.Add(12*time.Hour - time.Second))
	pass = h.run(t, low)[0]
	expect(t, pass, low, entry.Rejected, "waiting")

	h.clock.Set(start.Add(12 * time.Hour))
	pass = h.run(t, low)[0]
	expect(t, pass, low, entry.Accepted, "timeframe expired")
	// The backlog re-offers the HDTV release held at the first run.
	expect(t, pass, lower, entry.Rejected, "wrong quality")

	testsupport.MustUpdate(t, h.store, func(tx *history.Tx) error {
		s, err := tx.SeriesByName("Show")
		if err != nil {
			return err
		}
		wait, err := tx.TimeframeWait(s.ID, "S01E01")
		if err != nil {
			return err
		}
		if wait != nil {
			t.Fatalf("wait record should be removed, got %+v", wait)
		}
		items, err := tx.Backlog("tv", h.clock.Now())
		if err != nil {
			return err
		}
		if len(items) != 1 || items[0].Title != lower {
			t.Fatalf("expected only the rejected release in the backlog, got %+v", items)
		}
		return nil
	})
}

func TestTimeframeAcceptsTargetImmediately(t *testing.T) {
	h := newHarness(t, map[string]any{"timeframe": "2 days", "target": "1080p", "shows": shows("Show")})
	pass := h.run(t, "Show.S01E02.720p", "Show.S01E02.1080p")[0]
	expect(t, pass, "Show.S01E02.1080p", entry.Accepted, "target quality reached")
	expect(t, pass, "Show.S01E02.720p", entry.Rejected, "lower quality than accepted")
}

func TestWaitingEntriesAreHandedToBacklog(t *testing.T) {
	h := newHarness(t, map[string]any{"timeframe": "6h", "target": "1080p", "shows": shows("Show")})
	h.run(t, "Show.S01E04.720p")

	testsupport.MustUpdate(t, h.store, func(tx *history.Tx) error {
		items, err := tx.Backlog("tv", h.clock.Now())
		if err != nil {
			return err
		}
		if len(items) != 1 {
			t.Fatalf("expected one backlog item, got %d", len(items))
		}
		// hold of 6h plus one hour of grace
		if want := start.Add(7 * time.Hour); !items[0].ExpiresAt.Equal(want) {
			t.Fatalf("expires %v, want %v", items[0].ExpiresAt, want)
		}
		if items[0].Fields[series.FieldID] != "S01E04" {
			t.Fatalf("backlog fields not stored: %v", items[0].Fields)
		}
		return nil
	})

	// The feed no longer lists the release; the backlog offers it after the
	// deadline and the learn phase clears the row.
	h.clock.Set(start.Add(6 * time.Hour))
	pass := h.run(t)[0]
	expect(t, pass, "Show.S01E04.720p", entry.Accepted, "timeframe expired")
	testsupport.MustUpdate(t, h.store, func(tx *history.Tx) error {
		items, err := tx.Backlog("tv", h.clock.Now())
		if err != nil {
			return err
		}
		if len(items) != 0 {
			t.Fatalf("accepted entry should leave the backlog, got %+v", items)
		}
		return nil
	})
}

func TestIdentifiedByLocksAfterAgreeingEpisodes(t *testing.T) {
	h := newHarness(t, map[string]any{"shows": shows("Show")})
	testsupport.MustUpdate(t, h.store, func(tx *history.Tx) error {
		s, err := tx.EnsureSeries("Show")
		if err != nil {
			return err
		}
		for n := 1; n <= 3; n++ {
			h.clock.Advance(time.Minute)
			if _, err := tx.EnsureEpisode(s.ID, episode.Identifier{Kind: episode.KindEpisode, Season: 1, Number: n, Count: 1}); err != nil {
				return err
			}
		}
		return nil
	})

	pass := h.run(t, "Show.2024.01.15.720p", "Show.S01E04.720p", "Show.Christmas.Special.720p")[0]
	expect(t, pass, "Show.2024.01.15.720p", entry.Rejected, "identified by ep")
	expect(t, pass, "Show.S01E04.720p", entry.Accepted, "")
	expect(t, pass, "Show.Christmas.Special.720p", entry.Accepted, "")

	testsupport.MustUpdate(t, h.store, func(tx *history.Tx) error {
		s, err := tx.SeriesByName("Show")
		if err != nil {
			return err
		}
		kind, ok, err := tx.TrackedKind(s.ID, "tv")
		if err != nil {
			return err
		}
		if !ok || kind != episode.KindEpisode {
			t.Fatalf("expected lock on ep, got %v %v", kind, ok)
		}
		return nil
	})
}

func TestNoLockBelowThreshold(t *testing.T) {
	h := newHarness(t, map[string]any{"lock_threshold": 3, "shows": shows("Show")})
	h.seedDownload(t, "Show", "S01E01", "Show.S01E01.720p")
	pass := h.run(t, "Show.2024.01.15.720p")[0]
	expect(t, pass, "Show.2024.01.15.720p", entry.Accepted, "")
}

func TestBeginRejectsEarlierEpisodes(t *testing.T) {
	h := newHarness(t, map[string]any{"shows": []any{map[string]any{"name": "Show", "begin": "S02E05"}}})
	pass := h.run(t, "Show.S02E04.720p", "Show.S02E05.720p", "Show.S01E09.720p")[0]
	expect(t, pass, "Show.S02E04.720p", entry.Rejected, "before begin")
	expect(t, pass, "Show.S01E09.720p", entry.Rejected, "before begin")
	expect(t, pass, "Show.S02E05.720p", entry.Accepted, "")
}

func TestShowOverridesSharedSettings(t *testing.T) {
	h := newHarness(t, map[string]any{
		"quality": "1080p",
		"shows": []any{
			map[string]any{"name": "Show"},
			map[string]any{"name": "Other Show", "quality": "720p"},
		},
	})
	pass := h.run(t, "Show.S01E01.720p", "Other.Show.S01E01.720p")[0]
	expect(t, pass, "Show.S01E01.720p", entry.Rejected, "quality not wanted")
	expect(t, pass, "Other.Show.S01E01.720p", entry.Accepted, "")
}

func TestShowsMatchLongestNameFirst(t *testing.T) {
	shows, err := series.Compile(map[string]any{"shows": []any{"Show"}}, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	show, res, ok := shows.Match("Show.S01E02E03.720p.PROPER")
	if !ok || show.Name != "Show" {
		t.Fatalf("expected match, got %v %v", show, ok)
	}
	if res.Identifier.String() != "S01E02-E03" || res.ProperCount != 1 {
		t.Fatalf("unexpected parse %+v", res)
	}
}

func TestCompileRejectsBadSections(t *testing.T) {
	cases := map[string]any{
		"not a table":          []any{"Show"},
		"no shows":             map[string]any{"quality": "720p"},
		"unknown key":          map[string]any{"shows": []any{map[string]any{"name": "Show", "qualty": "720p"}}},
		"bad requirement":      map[string]any{"quality": "720q", "shows": []any{"Show"}},
		"timeframe no target":  map[string]any{"timeframe": "1d", "shows": []any{"Show"}},
		"bad tracking":         map[string]any{"tracking": "sometimes", "shows": []any{"Show"}},
		"name at top level":    map[string]any{"name": "Show", "shows": []any{"Show"}},
		"duplicate show":       map[string]any{"shows": []any{"Show", "show"}},
		"threshold too high":   map[string]any{"lock_window": 2, "lock_threshold": 3, "shows": []any{"Show"}},
		"bad begin":            map[string]any{"shows": []any{map[string]any{"name": "Show", "begin": "2024-13-45"}}},
		"special identified":   map[string]any{"identified_by": "special", "shows": []any{"Show"}},
		"negative grace":       map[string]any{"advancement_grace": -1, "shows": []any{"Show"}},
		"unusable series name": map[string]any{"shows": []any{"..."}},
	}
	for name, raw := range cases {
		if err := series.Validate(raw); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if err := series.Validate(map[string]any{"shows": []any{"Show", map[string]any{"name": "Other"}}}); err != nil {
		t.Fatalf("valid section rejected: %v", err)
	}
}

func TestMissingBacklogIsDependencyError(t *testing.T) {
	reg := plugin.NewRegistry()
	if err := series.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reg.Resolve("tv", map[string]any{"series": map[string]any{"shows": []any{"Show"}}}); err == nil {
		t.Fatal("expected missing backlog to fail resolution")
	}
}
