package task

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"curator/internal/history"
	"curator/internal/logging"
	"curator/internal/taskerr"
)

// effectiveConfig is the hashed view of a task: everything that changes
// what the pipeline would decide.
type effectiveConfig struct {
	Priority  int            `json:"priority"`
	MaxReruns int            `json:"max_reruns"`
	Plugins   map[string]any `json:"plugins"`
}

// ConfigHash returns the SHA-256 of the canonical JSON encoding of the
// task's effective configuration. Map keys are encoded sorted, so equal
// configurations hash equally regardless of file order.
func (t *Task) ConfigHash() (string, error) {
	data, err := json.Marshal(effectiveConfig{
		Priority:  t.taskCfg.Priority,
		MaxReruns: t.maxReruns,
		Plugins:   t.plugins,
	})
	if err != nil {
		return "", fmt.Errorf("encode task config: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// checkConfigHash compares the effective configuration to the hash stored
// by the last completed run and sets the changed flag on mismatch or
// absence.
func (t *Task) checkConfigHash(ctx context.Context) error {
	hash, err := t.ConfigHash()
	if err != nil {
		return taskerr.Wrap(taskerr.ErrConfiguration, "task", "config hash", "", err)
	}
	t.configHash = hash
	if t.store == nil {
		t.configChanged = true
		return nil
	}
	var stored string
	var found bool
	err = t.store.Update(ctx, func(tx *history.Tx) error {
		var err error
		stored, found, err = tx.ConfigHash(t.name)
		return err
	})
	if err != nil {
		return err
	}
	t.configChanged = !found || stored != hash
	if t.configChanged {
		logging.WithContext(ctx, t.base).Info("task configuration changed since last run",
			logging.String(logging.FieldEventType, "config_changed"),
			logging.Bool("first_run", !found),
		)
	}
	return nil
}

func (t *Task) saveConfigHash(ctx context.Context) error {
	if t.store == nil || t.configHash == "" || !t.configChanged {
		return nil
	}
	return t.store.Update(ctx, func(tx *history.Tx) error {
		return tx.SetConfigHash(t.name, t.configHash)
	})
}
