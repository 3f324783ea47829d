// Package backlog keeps entries that a decision postponed and offers them
// again on later runs of the same task.
//
// The plugin is builtin and tagged with the "backlog" interface. Components
// hand entries over through plugin.Backlogger; each stored entry carries an
// expiry of the requested hold plus the configured grace. During input the
// plugin purges expired rows and re-offers the rest. A row is removed once
// its entry is accepted.
package backlog

import (
	"context"
	"time"

	"curator/internal/entry"
	"curator/internal/history"
	"curator/internal/logging"
	"curator/internal/plugin"
)

// Name is the registered plugin name and the interface tag it provides.
const Name = "backlog"

// FieldReoffered marks entries produced from the backlog.
const FieldReoffered = "backlog_reoffered"

// Plugin is the builtin backlog.
type Plugin struct{}

var _ plugin.Backlogger = (*Plugin)(nil)

// Register adds the backlog as a builtin. It reads entries early in input so
// feeds see their own copies deduplicated against it.
func Register(reg *plugin.Registry) error {
	return reg.Register(Name, &Plugin{},
		plugin.Builtin(),
		plugin.Interfaces(Name),
		plugin.Priority(plugin.PhaseInput, 200),
		plugin.Priority(plugin.PhaseLearn, 50),
	)
}

// AddBacklog stores e for the task until hold plus the configured grace
// has passed.
func (p *Plugin) AddBacklog(_ context.Context, task plugin.Task, e *entry.Entry, hold time.Duration) error {
	tx, err := task.Session()
	if err != nil {
		return err
	}
	if hold < 0 {
		hold = 0
	}
	expires := task.Now().Add(hold + task.Config().Backlog.GraceDuration)
	item := history.BacklogItem{
		Task:      task.Name(),
		URL:       e.URL(),
		Title:     e.Title(),
		Fields:    storable(e),
		ExpiresAt: expires,
	}
	if err := tx.AddBacklog(item); err != nil {
		return err
	}
	task.Logger().Debug("entry added to backlog",
		logging.String(logging.FieldTitle, e.Title()),
		logging.Duration("hold", hold),
		logging.String("expires", expires.Format(time.RFC3339)),
	)
	return nil
}

// storable keeps the scalar fields that survive a JSON round trip.
func storable(e *entry.Entry) map[string]any {
	out := make(map[string]any)
	for key, value := range e.Snapshot() {
		if key == entry.FieldTitle || key == entry.FieldURL || key == FieldReoffered {
			continue
		}
		switch value.(type) {
		case string, bool, int, int64, float64:
			out[key] = value
		}
	}
	return out
}

// OnInput purges expired rows and re-offers the remaining ones.
func (p *Plugin) OnInput(_ context.Context, task plugin.Task, _ any) ([]*entry.Entry, error) {
	tx, err := task.Session()
	if err != nil {
		return nil, err
	}
	now := task.Now()
	purged, err := tx.PurgeBacklog(task.Name(), now)
	if err != nil {
		return nil, err
	}
	items, err := tx.Backlog(task.Name(), now)
	if err != nil {
		return nil, err
	}
	entries := make([]*entry.Entry, 0, len(items))
	for _, item := range items {
		e := entry.New(item.Title, item.URL)
		for key, value := range item.Fields {
			if err := e.Set(key, value); err != nil {
				task.Logger().Debug("backlog field skipped", logging.String("field", key), logging.Error(err))
			}
		}
		if err := e.Set(FieldReoffered, true); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if purged > 0 || len(entries) > 0 {
		task.Logger().Info("backlog read",
			logging.String(logging.FieldEventType, "backlog_input"),
			logging.Int("reoffered", len(entries)),
			logging.Int64("expired", purged),
		)
	}
	return entries, nil
}

// OnLearn drops the rows of accepted entries.
func (p *Plugin) OnLearn(_ context.Context, task plugin.Task, _ any) error {
	accepted := task.Entries().Accepted()
	if len(accepted) == 0 {
		return nil
	}
	tx, err := task.Session()
	if err != nil {
		return err
	}
	for _, e := range accepted {
		if err := tx.DeleteBacklog(task.Name(), e.URL()); err != nil {
			return err
		}
	}
	return nil
}
