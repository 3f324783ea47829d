package series

import (
	"context"
	"time"

	"curator/internal/entry"
	"curator/internal/episode"
	"curator/internal/history"
	"curator/internal/logging"
	"curator/internal/plugin"
	"curator/internal/taskerr"
)

// Name is the registered plugin name.
const Name = "series"

// Entry fields written during metainfo.
const (
	FieldName        = "series_name"
	FieldID          = "series_id"
	FieldIdentifier  = "series_identifier"
	FieldKind        = "series_kind"
	FieldSeason      = "series_season"
	FieldEpisode     = "series_episode"
	FieldEpisodes    = "series_episodes"
	FieldDate        = "series_date"
	FieldSequence    = "series_sequence"
	FieldSeasonPack  = "series_season_pack"
	FieldProperCount = "series_proper_count"
	FieldSpecial     = "series_special"
	FieldQuality     = "series_quality"
)

// FieldSupersededBy is set on an entry accepted by another plugin when the
// series plugin accepted a better release of the same episode. Accepted
// states are final, so the entry stays accepted but is not recorded as a
// download.
const FieldSupersededBy = "series_superseded_by"

// Plugin is the episode decision engine. It parses titles during metainfo,
// decides entries during filter, and records downloads during learn. It
// keeps no state between invocations; everything persistent lives in the
// history store.
type Plugin struct{}

// Register adds the series plugin to reg. It depends on a component tagged
// "backlog" for timeframe hand-offs.
func Register(reg *plugin.Registry) error {
	return reg.Register(Name, &Plugin{},
		plugin.Schema(Validate),
		plugin.Requires("backlog"),
	)
}

func (p *Plugin) shows(task plugin.Task, cfg any) (Shows, error) {
	shows, err := Compile(cfg, task.Config().QualityTables())
	if err != nil {
		return nil, taskerr.Wrap(taskerr.ErrConfiguration, Name, "compile", "", err)
	}
	return shows, nil
}

// OnMetainfo annotates every entry that belongs to a configured show.
func (p *Plugin) OnMetainfo(_ context.Context, task plugin.Task, cfg any) error {
	shows, err := p.shows(task, cfg)
	if err != nil {
		return err
	}
	matched := 0
	for _, e := range task.Entries().Entries() {
		show, res, ok := shows.Match(e.Title())
		if !ok {
			continue
		}
		if err := annotate(e, show, res); err != nil {
			return taskerr.Wrap(taskerr.ErrComponent, Name, "metainfo", e.Title(), err)
		}
		matched++
	}
	task.Logger().Debug("series metainfo", logging.Int("matched", matched))
	return nil
}

type field struct {
	key   string
	value any
}

func annotate(e *entry.Entry, show *Show, res episode.Result) error {
	id := res.Identifier
	fields := []field{
		{FieldName, show.Name},
		{FieldID, id.Key()},
		{FieldIdentifier, id.String()},
		{FieldKind, id.Kind.String()},
		{FieldProperCount, res.ProperCount},
		{FieldSpecial, res.Special},
		{FieldQuality, res.Quality.String()},
	}
	switch id.Kind {
	case episode.KindEpisode:
		fields = append(fields,
			field{FieldSeason, id.Season},
			field{FieldEpisode, id.Number},
			field{FieldEpisodes, id.Episodes()},
			field{FieldSeasonPack, id.SeasonPack},
		)
	case episode.KindDate:
		fields = append(fields, field{FieldDate, id.Date.Format(time.DateOnly)})
	case episode.KindSequence:
		fields = append(fields, field{FieldSequence, id.Sequence})
	}
	for _, f := range fields {
		if err := e.Set(f.key, f.value); err != nil {
			return err
		}
	}
	return nil
}

// OnFilter decides every candidate of every configured show.
func (p *Plugin) OnFilter(ctx context.Context, task plugin.Task, cfg any) error {
	shows, err := p.shows(task, cfg)
	if err != nil {
		return err
	}
	byShow := make(map[*Show][]*candidate)
	for _, e := range task.Entries().Entries() {
		c, ok := newCandidate(shows, e)
		if !ok {
			continue
		}
		byShow[c.show] = append(byShow[c.show], c)
	}
	if len(byShow) == 0 {
		return nil
	}
	tx, err := task.Session()
	if err != nil {
		return err
	}
	for _, show := range shows {
		cands := byShow[show]
		if len(cands) == 0 {
			continue
		}
		d := &decider{ctx: ctx, task: task, tx: tx, show: show, now: task.Now()}
		if err := d.run(cands); err != nil {
			return err
		}
	}
	return nil
}

// OnLearn records the accepted releases as downloaded. When the pass both
// accepted entries and rejected others as too far ahead it asks for a rerun,
// since the new position may let those through.
func (p *Plugin) OnLearn(_ context.Context, task plugin.Task, cfg any) error {
	shows, err := p.shows(task, cfg)
	if err != nil {
		return err
	}
	var learned, ahead int
	var tx *history.Tx
	for _, e := range task.Entries().All() {
		if e.Rejected() && e.DecidedBy() == Name && e.Reason() == reasonFuture {
			ahead++
			continue
		}
		if !e.Accepted() || e.Has(FieldSupersededBy) {
			continue
		}
		c, ok := newCandidate(shows, e)
		if !ok {
			continue
		}
		if tx == nil {
			if tx, err = task.Session(); err != nil {
				return err
			}
		}
		if err := learn(tx, task, c); err != nil {
			return err
		}
		learned++
	}
	if learned > 0 {
		task.Logger().Info("series downloads recorded",
			logging.String(logging.FieldEventType, "series_learned"),
			logging.Int("count", learned),
		)
	}
	if learned > 0 && ahead > 0 {
		task.RequestRerun("series position advanced")
	}
	return nil
}

func learn(tx *history.Tx, task plugin.Task, c *candidate) error {
	s, err := tx.EnsureSeries(c.show.Name)
	if err != nil {
		return err
	}
	if err := tx.TrackSeries(s.ID, task.Name(), episode.KindNone); err != nil {
		return err
	}
	id := c.res.Identifier
	for _, part := range parts(id) {
		ep, err := tx.EnsureEpisode(s.ID, part)
		if err != nil {
			return err
		}
		rel, err := tx.UpsertRelease(ep.ID, c.entry.Title(), c.res.Quality, c.res.ProperCount)
		if err != nil {
			return err
		}
		if err := tx.MarkDownloaded(rel.ID, c.res.ProperCount, task.RunID()); err != nil {
			return err
		}
	}
	if id.Kind == episode.KindEpisode && id.SeasonPack {
		if err := tx.MarkSeasonComplete(s.ID, id.Season, c.entry.Title()); err != nil {
			return err
		}
	}
	if err := tx.DeleteTimeframeWait(s.ID, id.Key()); err != nil {
		return err
	}
	task.Logger().Debug("release recorded",
		logging.String(logging.FieldSeries, c.show.Name),
		logging.String(logging.FieldEpisode, id.String()),
		logging.String("quality", c.res.Quality.String()),
		logging.Int("proper_count", c.res.ProperCount),
	)
	return nil
}

// parts splits a multi-episode identifier into the episodes it covers.
func parts(id episode.Identifier) []episode.Identifier {
	if id.Kind != episode.KindEpisode || id.SeasonPack || id.Episodes() == 1 {
		return []episode.Identifier{id}
	}
	out := make([]episode.Identifier, 0, id.Episodes())
	for i := range id.Episodes() {
		part := id
		part.Number = id.Number + i
		part.Count = 1
		out = append(out, part)
	}
	return out
}
