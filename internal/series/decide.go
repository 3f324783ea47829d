package series

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"curator/internal/entry"
	"curator/internal/episode"
	"curator/internal/history"
	"curator/internal/logging"
	"curator/internal/plugin"
	"curator/internal/quality"
)

// Rejection and acceptance reasons.
const (
	reasonPast           = "too far in the past"
	reasonFuture         = "too far in the future"
	reasonBegin          = "before begin"
	reasonSeasonComplete = "season complete"
	reasonPackThreshold  = "season pack before enough episodes were seen"
	reasonNotWanted      = "quality not wanted"
	reasonDownloaded     = "quality downloaded"
	reasonEpisodeDone    = "episode already downloaded"
	reasonTargetDone     = "target quality already downloaded"
	reasonNoPropers      = "propers not allowed"
	reasonLower          = "lower quality than accepted"
	reasonWaiting        = "waiting"
	reasonWrongQuality   = "wrong quality"
	reasonCovered        = "episode accepted in another release"

	reasonProper   = "proper upgrade"
	reasonUpgrade  = "quality upgrade"
	reasonBest     = "best available quality"
	reasonTarget   = "target quality reached"
	reasonDeadline = "timeframe expired"
)

type candidate struct {
	entry *entry.Entry
	show  *Show
	res   episode.Result

	episode *history.Episode
	// downloaded holds the releases of the episode already taken.
	downloaded []history.Release
	proper     bool
}

func newCandidate(shows Shows, e *entry.Entry) (*candidate, bool) {
	name := e.String(FieldName)
	if name == "" {
		return nil, false
	}
	show, ok := shows.ByName(name)
	if !ok {
		return nil, false
	}
	res := show.Parse(e.Title())
	if !res.Valid {
		return nil, false
	}
	return &candidate{entry: e, show: show, res: res}, true
}

func (c *candidate) key() string { return c.res.Identifier.Key() }

func (c *candidate) special() bool {
	return c.res.Special || c.res.Identifier.Kind == episode.KindSpecial
}

func (c *candidate) pack() bool {
	id := c.res.Identifier
	return id.Kind == episode.KindEpisode && id.SeasonPack
}

// rank orders candidates by quality, then proper count, then the number of
// episodes they contain.
func rank(a, b *candidate) int {
	if c := quality.Compare(a.res.Quality, b.res.Quality); c != 0 {
		return c
	}
	if c := cmp.Compare(a.res.ProperCount, b.res.ProperCount); c != 0 {
		return c
	}
	return cmp.Compare(a.res.Identifier.Episodes(), b.res.Identifier.Episodes())
}

// decider evaluates the candidates of one show within one filter invocation.
type decider struct {
	ctx  context.Context
	task plugin.Task
	tx   *history.Tx
	show *Show
	now  time.Time

	series   *history.Series
	begin    *episode.Identifier
	locked   episode.Kind
	latest   map[episode.Kind]*history.Episode
	complete map[int]bool
	// taken maps episode keys accepted in this run to the group key that
	// accepted them.
	taken map[string]string

	// err holds the first store failure hit while checking candidates.
	err error
}

func (d *decider) run(cands []*candidate) error {
	if err := d.load(); err != nil {
		return err
	}
	if err := d.record(cands); err != nil {
		return err
	}

	// Packs go first so a pack accepted in this batch shuts out the single
	// episodes of its season.
	var packs, singles []*candidate
	for _, c := range cands {
		if c.pack() {
			packs = append(packs, c)
		} else {
			singles = append(singles, c)
		}
	}
	for _, batch := range [][]*candidate{packs, singles} {
		if err := d.decide(batch); err != nil {
			return err
		}
	}
	return nil
}

func (d *decider) load() error {
	var err error
	if d.series, err = d.tx.EnsureSeries(d.show.Name); err != nil {
		return err
	}
	d.begin = d.show.begin
	if d.begin == nil {
		d.begin = d.series.Begin
	}
	if d.locked, err = d.lockKind(); err != nil {
		return err
	}
	d.latest = make(map[episode.Kind]*history.Episode, 2)
	for _, kind := range []episode.Kind{episode.KindEpisode, episode.KindSequence} {
		ep, err := d.tx.LatestDownloaded(d.series.ID, kind)
		if err != nil {
			return err
		}
		d.latest[kind] = ep
	}
	d.taken = make(map[string]string)
	d.complete, err = d.tx.CompleteSeasons(d.series.ID)
	return err
}

// lockKind returns the identifier kind the series is locked to for this
// task, establishing the lock once enough recent episodes agree.
func (d *decider) lockKind() (episode.Kind, error) {
	if d.show.forced != episode.KindNone {
		return episode.KindNone, nil
	}
	kind, ok, err := d.tx.TrackedKind(d.series.ID, d.task.Name())
	if err != nil || ok {
		return kind, err
	}
	recent, err := d.tx.RecentEpisodes(d.series.ID, d.show.lockWindow)
	if err != nil {
		return episode.KindNone, err
	}
	counts := make(map[episode.Kind]int)
	for _, ep := range recent {
		counts[ep.Identifier.Kind]++
	}
	for _, kind := range []episode.Kind{episode.KindEpisode, episode.KindDate, episode.KindSequence, episode.KindID} {
		if counts[kind] < d.show.lockMin {
			continue
		}
		if err := d.tx.TrackSeries(d.series.ID, d.task.Name(), kind); err != nil {
			return episode.KindNone, err
		}
		d.task.Logger().Info("series identification locked",
			logging.String(logging.FieldEventType, "series_locked"),
			logging.String(logging.FieldSeries, d.show.Name),
			logging.String("identified_by", kind.String()),
			logging.Int("agreeing", counts[kind]),
		)
		return kind, nil
	}
	return episode.KindNone, nil
}

// record stores the sighting of every candidate and loads the releases
// already downloaded for its episode.
func (d *decider) record(cands []*candidate) error {
	for _, c := range cands {
		ep, err := d.tx.EnsureEpisode(d.series.ID, c.res.Identifier)
		if err != nil {
			return err
		}
		c.episode = ep
		if c.entry.Accepted() {
			continue
		}
		if _, err := d.tx.UpsertRelease(ep.ID, c.entry.Title(), c.res.Quality, c.res.ProperCount); err != nil {
			return err
		}
		if c.downloaded, err = d.tx.DownloadedReleases(ep.ID); err != nil {
			return err
		}
	}
	return nil
}

func (d *decider) decide(batch []*candidate) error {
	groups := make(map[string][]*candidate)
	incumbents := make(map[string][]*candidate)
	var keys []string
	for _, c := range batch {
		key := c.key()
		if c.entry.Accepted() {
			incumbents[key] = append(incumbents[key], c)
			continue
		}
		reason := d.check(c)
		if d.err != nil {
			return d.err
		}
		if reason != "" {
			d.reject(c, reason)
			continue
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], c)
	}
	for _, inc := range incumbents {
		for _, c := range inc {
			d.cover(c)
		}
	}
	// Groups holding a multi-episode release go first so the episodes it
	// covers are settled before their single releases are considered.
	slices.SortStableFunc(keys, func(a, b string) int {
		return cmp.Compare(maxEpisodes(groups[b]), maxEpisodes(groups[a]))
	})
	for _, key := range keys {
		var group []*candidate
		for _, c := range groups[key] {
			if d.covered(c) {
				d.reject(c, reasonCovered)
				continue
			}
			group = append(group, c)
		}
		if len(group) == 0 {
			continue
		}
		slices.SortStableFunc(group, func(a, b *candidate) int { return rank(b, a) })
		if err := d.choose(group, incumbents[key]); err != nil {
			return err
		}
	}
	return nil
}

func maxEpisodes(group []*candidate) int {
	n := 0
	for _, c := range group {
		n = max(n, c.res.Identifier.Episodes())
	}
	return n
}

// cover marks every episode of an accepted candidate as taken by its group.
func (d *decider) cover(c *candidate) {
	for _, part := range parts(c.res.Identifier) {
		d.taken[part.Key()] = c.key()
	}
}

// covered reports whether an episode of c was already accepted under
// another group in this run.
func (d *decider) covered(c *candidate) bool {
	for _, part := range parts(c.res.Identifier) {
		if owner, ok := d.taken[part.Key()]; ok && owner != c.key() {
			return true
		}
	}
	return false
}

// check runs the per-candidate rules in order and returns the first
// rejection reason, or "" when the candidate stays eligible.
func (d *decider) check(c *candidate) string {
	for _, rule := range []func(*candidate) string{
		d.checkLock,
		d.checkBegin,
		d.checkSeason,
		d.checkAdvancement,
		d.checkDownloaded,
		d.checkQuality,
	} {
		if reason := rule(c); reason != "" {
			return reason
		}
	}
	return ""
}

func (d *decider) checkLock(c *candidate) string {
	if d.locked == episode.KindNone || c.special() || c.res.Identifier.Kind == d.locked {
		return ""
	}
	return "identified by " + d.locked.String()
}

func (d *decider) checkBegin(c *candidate) string {
	if d.begin == nil || c.special() {
		return ""
	}
	id, begin := c.res.Identifier, *d.begin
	if id.Kind != begin.Kind {
		return ""
	}
	if id.Kind == episode.KindEpisode && (id.SeasonPack || begin.SeasonPack) {
		if id.Season < begin.Season {
			return reasonBegin
		}
		return ""
	}
	if result, ok := episode.Compare(id, begin); ok && result < 0 {
		return reasonBegin
	}
	return ""
}

func (d *decider) checkSeason(c *candidate) string {
	if c.special() || c.res.Identifier.Kind != episode.KindEpisode || d.show.tracking == TrackingOff {
		return ""
	}
	id := c.res.Identifier
	if id.SeasonPack {
		if d.show.packMin == 0 {
			return ""
		}
		seen, err := d.tx.SeasonEpisodeCount(d.series.ID, id.Season)
		if err != nil {
			d.err = err
			return ""
		}
		if seen < d.show.packMin {
			return reasonPackThreshold
		}
		return ""
	}
	if d.show.tracking == TrackingBackfill {
		return ""
	}
	for season := range d.complete {
		if season >= id.Season {
			return reasonSeasonComplete
		}
	}
	return ""
}

func (d *decider) checkAdvancement(c *candidate) string {
	if c.special() || d.show.tracking == TrackingOff {
		return ""
	}
	id := c.res.Identifier
	if id.Kind == episode.KindEpisode {
		if season, ok := d.latestSeason(); ok && id.Season > season+1 {
			return reasonFuture
		}
	}
	latest := d.latest[id.Kind]
	if latest == nil {
		return ""
	}
	last := latest.Identifier
	backfill := d.show.tracking == TrackingBackfill
	switch id.Kind {
	case episode.KindEpisode:
		if backfill || id.SeasonPack {
			return ""
		}
		if id.Season < last.Season {
			return reasonPast
		}
		if id.Season == last.Season && last.Number-id.Number > d.show.grace {
			return reasonPast
		}
	case episode.KindSequence:
		if !backfill && last.Sequence-id.Sequence > d.show.grace {
			return reasonPast
		}
	}
	return ""
}

// latestSeason is the highest season reached by a single download or a
// complete season pack.
func (d *decider) latestSeason() (int, bool) {
	season, ok := 0, false
	if ep := d.latest[episode.KindEpisode]; ep != nil {
		season, ok = ep.Identifier.Season, true
	}
	for s := range d.complete {
		if !ok || s > season {
			season, ok = s, true
		}
	}
	return season, ok
}

// checkDownloaded compares the candidate with the releases already taken
// for its episode. A proper of a downloaded quality is an upgrade in place.
func (d *decider) checkDownloaded(c *candidate) string {
	if len(c.downloaded) == 0 {
		return ""
	}
	tables := d.task.Config().QualityTables()
	best := quality.Unknown
	for _, rel := range c.downloaded {
		q := rel.ParsedQuality(tables)
		if q.Equal(c.res.Quality) && c.res.ProperCount > rel.DownloadedProperCount {
			if !d.show.propers {
				return reasonNoPropers
			}
			c.proper = true
			return ""
		}
		if best.Less(q) {
			best = q
		}
	}
	if !best.Less(c.res.Quality) {
		return reasonDownloaded
	}
	if !d.show.upgrade {
		return reasonEpisodeDone
	}
	if d.show.target != nil && d.show.target.ReachedBy(best) {
		return reasonTargetDone
	}
	return ""
}

func (d *decider) checkQuality(c *candidate) string {
	if c.proper || d.show.wants(c.res.Quality) {
		return ""
	}
	return reasonNotWanted
}

// choose accepts at most one candidate of a group sharing one identifier.
// group is ordered best first.
func (d *decider) choose(group, incumbents []*candidate) error {
	if len(incumbents) > 0 {
		best := slices.MaxFunc(incumbents, rank)
		winner := group[0]
		if quality.Compare(winner.res.Quality, best.res.Quality) > 0 ||
			(winner.res.Quality.Equal(best.res.Quality) && winner.res.ProperCount > best.res.ProperCount) {
			d.accept(winner, reasonUpgrade)
			d.rejectRest(group[1:], reasonLower)
			d.supersede(incumbents, winner)
			return nil
		}
		d.rejectRest(group, reasonLower)
		return nil
	}

	winner := group[0]
	switch {
	case winner.proper:
		d.accept(winner, reasonProper)
	case len(winner.downloaded) > 0:
		d.accept(winner, reasonUpgrade)
	case d.show.timeframe > 0:
		return d.chooseTimeframe(group)
	default:
		d.accept(winner, reasonBest)
	}
	d.rejectRest(group[1:], reasonLower)
	return nil
}

// chooseTimeframe holds out for the target quality until the identifier's
// deadline, handing waiting candidates to the backlog.
func (d *decider) chooseTimeframe(group []*candidate) error {
	key := group[0].key()
	wait, err := d.tx.StartTimeframeWait(d.series.ID, key, d.show.target.String(), d.now, d.show.timeframe)
	if err != nil {
		return err
	}

	if !d.now.Before(wait.Deadline) {
		d.accept(group[0], reasonDeadline)
		d.rejectRest(group[1:], reasonWrongQuality)
		return d.tx.DeleteTimeframeWait(d.series.ID, key)
	}

	for i, c := range group {
		if !d.show.target.ReachedBy(c.res.Quality) {
			continue
		}
		d.accept(c, reasonTarget)
		rest := slices.Concat(group[:i], group[i+1:])
		d.rejectRest(rest, reasonLower)
		return d.tx.DeleteTimeframeWait(d.series.ID, key)
	}

	hold := wait.Deadline.Sub(d.now)
	backlog := d.backlogger()
	for _, c := range group {
		d.reject(c, reasonWaiting, entry.WithMeta("deadline", wait.Deadline))
		if backlog == nil {
			continue
		}
		if err := backlog.AddBacklog(d.ctx, d.task, c.entry, hold); err != nil {
			return err
		}
	}
	d.task.Logger().Info("waiting for target quality",
		logging.String(logging.FieldEventType, "timeframe_wait"),
		logging.String(logging.FieldSeries, d.show.Name),
		logging.String(logging.FieldEpisode, key),
		logging.String("target", d.show.target.String()),
		logging.String("deadline", wait.Deadline.Format(time.RFC3339)),
		logging.Int("candidates", len(group)),
	)
	return nil
}

func (d *decider) backlogger() plugin.Backlogger {
	for _, info := range d.task.Registry().ByInterface("backlog") {
		if b, ok := info.Component.(plugin.Backlogger); ok {
			return b
		}
	}
	return nil
}

func (d *decider) accept(c *candidate, reason string) {
	if err := c.entry.Accept(reason, entry.By(Name)); err != nil {
		d.task.Logger().Warn("series accept skipped", logging.Error(err))
		return
	}
	if c.pack() {
		d.complete[c.res.Identifier.Season] = true
	}
	d.cover(c)
	d.task.Logger().Info("series decision", d.decisionArgs(c, "accepted", reason)...)
}

// supersede flags incumbents replaced by winner so learn skips them.
func (d *decider) supersede(incumbents []*candidate, winner *candidate) {
	if !winner.entry.Accepted() {
		return
	}
	for _, inc := range incumbents {
		if err := inc.entry.Set(FieldSupersededBy, winner.entry.Title()); err != nil {
			d.task.Logger().Warn("series supersede skipped", logging.Error(err))
			continue
		}
		logging.WarnWithContext(d.task.Logger(), "accepted entry superseded", "series_superseded",
			logging.String(logging.FieldTitle, inc.entry.Title()),
			logging.String("by", winner.entry.Title()),
			logging.String(logging.FieldErrorHint, "both entries stay accepted; only the better one is recorded"),
		)
	}
}

func (d *decider) reject(c *candidate, reason string, opts ...entry.Option) {
	opts = append(opts, entry.By(Name))
	if err := c.entry.Reject(reason, opts...); err != nil {
		d.task.Logger().Warn("series reject skipped", logging.Error(err))
		return
	}
	d.task.Logger().Debug("series decision", d.decisionArgs(c, "rejected", reason)...)
}

func (d *decider) rejectRest(cands []*candidate, reason string) {
	for _, c := range cands {
		d.reject(c, reason)
	}
}

func (d *decider) decisionArgs(c *candidate, result, reason string) []any {
	attrs := append(logging.DecisionAttrs("series", result, reason),
		logging.String(logging.FieldTitle, c.entry.Title()),
		logging.String(logging.FieldSeries, d.show.Name),
		logging.String(logging.FieldEpisode, c.res.Identifier.String()),
		logging.String("quality", c.res.Quality.String()),
	)
	if c.res.ProperCount > 0 {
		attrs = append(attrs, logging.String("proper", fmt.Sprintf("x%d", c.res.ProperCount)))
	}
	return logging.Args(attrs...)
}
