package daemon

import (
	"context"
	"time"

	"curator/internal/logging"
)

func (d *Daemon) loop(ctx context.Context) {
	defer d.wg.Done()

	d.tick()

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

// tick submits every scheduled task that is due and not already queued or
// running. A task is due on the first tick after start and then once per
// schedule interval, measured from its previous submission.
func (d *Daemon) tick() {
	now := d.now()
	for _, name := range d.due(now) {
		job, err := d.Submit(name)
		if err != nil {
			logging.WarnWithContext(d.logger, "scheduled task not submitted", "schedule_submit_failed",
				logging.String(logging.FieldTask, name),
				logging.Error(err),
			)
			continue
		}
		d.logger.Debug("scheduled task submitted",
			logging.String(logging.FieldTask, name),
			logging.String("job_id", job.Info().ID),
		)
	}
}

func (d *Daemon) due(now time.Time) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queue == nil {
		return nil
	}
	busy := make(map[string]bool)
	if info, ok := d.queue.Running(); ok {
		busy[info.Name] = true
	}
	for _, info := range d.queue.Pending() {
		busy[info.Name] = true
	}

	var out []string
	for _, name := range d.cfg.TaskNames() {
		t := d.cfg.Tasks[name]
		if t.Disabled || t.ScheduleInterval <= 0 || busy[name] {
			continue
		}
		if next, ok := d.next[name]; ok && now.Before(next) {
			continue
		}
		d.next[name] = now.Add(t.ScheduleInterval)
		out = append(out, name)
	}
	return out
}
