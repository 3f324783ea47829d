package backlog_test

import (
	"context"
	"testing"
	"time"

	"curator/internal/backlog"
	"curator/internal/entry"
	"curator/internal/history"
	"curator/internal/logging"
	"curator/internal/plugin"
	"curator/internal/task"
	"curator/internal/testsupport"
)

// holder offers titles, then either accepts everything or rejects it and
// parks it in the backlog.
type holder struct {
	titles []string
	accept bool
	hold   time.Duration
	seen   []*entry.Entry
}

func (h *holder) OnInput(_ context.Context, _ plugin.Task, _ any) ([]*entry.Entry, error) {
	out := make([]*entry.Entry, 0, len(h.titles))
	for _, title := range h.titles {
		e := entry.New(title, "http://feed/"+title)
		_ = e.Set("size", 700)
		_ = e.Set("note", "first seen")
		out = append(out, e)
	}
	return out, nil
}

func (h *holder) OnFilter(ctx context.Context, task plugin.Task, _ any) error {
	h.seen = task.Entries().All()
	bl := task.Registry().ByInterface("backlog")[0].Component.(plugin.Backlogger)
	for _, e := range task.Entries().Undecided() {
		if h.accept {
			if err := e.Accept("ready"); err != nil {
				return err
			}
			continue
		}
		if err := e.Reject("not yet"); err != nil {
			return err
		}
		if err := bl.AddBacklog(ctx, task, e, h.hold); err != nil {
			return err
		}
	}
	return nil
}

type harness struct {
	store *history.Store
	clock *testsupport.Clock
	run   func(t *testing.T, h *holder)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithTask("tv", 0, map[string]any{"holder": true}))
	cfg.Backlog.GraceDuration = time.Hour
	store := testsupport.MustOpenStore(t, cfg)
	clock := testsupport.NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	store.SetClock(clock.Now)
	return &harness{
		store: store,
		clock: clock,
		run: func(t *testing.T, h *holder) {
			t.Helper()
			reg := plugin.NewRegistry()
			if err := backlog.Register(reg); err != nil {
				t.Fatalf("register: %v", err)
			}
			reg.MustRegister("holder", h)
			tk, err := task.New("tv", task.Options{
				Config:   cfg,
				Registry: reg,
				Store:    store,
				Logger:   logging.NewNop(),
				Now:      clock.Now,
			})
			if err != nil {
				t.Fatalf("task.New: %v", err)
			}
			if err := tk.Execute(context.Background()); err != nil {
				t.Fatalf("Execute: %v", err)
			}
		},
	}
}

func (h *harness) items(t *testing.T) []history.BacklogItem {
	t.Helper()
	var items []history.BacklogItem
	testsupport.MustUpdate(t, h.store, func(tx *history.Tx) error {
		var err error
		items, err = tx.Backlog("tv", time.Time{})
		return err
	})
	return items
}

func TestBacklogReoffersUntilAccepted(t *testing.T) {
	h := newHarness(t)
	start := h.clock.Now()

	h.run(t, &holder{titles: []string{"Show.S01E01"}, hold: 2 * time.Hour})
	items := h.items(t)
	if len(items) != 1 {
		t.Fatalf("backlog has %d items, want 1", len(items))
	}
	if want := start.Add(3 * time.Hour); !items[0].ExpiresAt.Equal(want) {
		t.Fatalf("expires at %s, want %s", items[0].ExpiresAt, want)
	}

	h.clock.Advance(time.Hour)
	second := &holder{hold: 2 * time.Hour}
	h.run(t, second)
	if len(second.seen) != 1 {
		t.Fatalf("second run saw %d entries, want 1", len(second.seen))
	}
	e := second.seen[0]
	if e.Title() != "Show.S01E01" || e.URL() != "http://feed/Show.S01E01" {
		t.Fatalf("reoffered %s <%s>", e.Title(), e.URL())
	}
	if !e.Bool(backlog.FieldReoffered) || e.Int("size") != 700 || e.String("note") != "first seen" {
		t.Fatalf("fields not restored: %v", e.Snapshot())
	}
	items = h.items(t)
	if want := start.Add(4 * time.Hour); len(items) != 1 || !items[0].ExpiresAt.Equal(want) {
		t.Fatalf("expiry not extended to %s: %+v", want, items)
	}

	h.clock.Advance(time.Hour)
	h.run(t, &holder{accept: true})
	if items := h.items(t); len(items) != 0 {
		t.Fatalf("accepted entry still in backlog: %+v", items)
	}
}

func TestBacklogExpires(t *testing.T) {
	h := newHarness(t)
	h.run(t, &holder{titles: []string{"Show.S01E01"}, hold: 30 * time.Minute})

	h.clock.Advance(90 * time.Minute)
	late := &holder{accept: true}
	h.run(t, late)
	if len(late.seen) != 0 {
		t.Fatalf("expired item reoffered: %d entries", len(late.seen))
	}
	if items := h.items(t); len(items) != 0 {
		t.Fatalf("expired item not purged: %+v", items)
	}
}

func TestBacklogCopyShadowsFeedDuplicate(t *testing.T) {
	h := newHarness(t)
	h.run(t, &holder{titles: []string{"Show.S01E01"}, hold: time.Hour})

	h.clock.Advance(10 * time.Minute)
	again := &holder{titles: []string{"Show.S01E01"}, accept: true}
	h.run(t, again)
	if len(again.seen) != 1 {
		t.Fatalf("saw %d entries, want the duplicate url collapsed to 1", len(again.seen))
	}
	if !again.seen[0].Bool(backlog.FieldReoffered) {
		t.Fatal("backlog copy should be kept since it is read first")
	}
	if items := h.items(t); len(items) != 0 {
		t.Fatalf("accepted entry still in backlog: %+v", items)
	}
}
