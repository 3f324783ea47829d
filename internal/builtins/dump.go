package builtins

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"curator/internal/entry"
	"curator/internal/logging"
	"curator/internal/plugin"
)

// DumpConfig selects what the dump output prints.
type DumpConfig struct {
	// Fields lists entry fields to include. Empty prints every resolved field.
	Fields []string `toml:"fields"`
	// States limits the dump to entries in these states.
	States []string `toml:"states"`
}

// Validate checks the state names.
func (c *DumpConfig) Validate() error {
	for _, s := range c.States {
		switch s {
		case "accepted", "rejected", "failed", "undecided":
		default:
			return fmt.Errorf("unknown state %q", s)
		}
	}
	return nil
}

// Dump logs every entry with its decision.
type Dump struct{}

func (Dump) OnOutput(_ context.Context, task plugin.Task, raw any) error {
	cfg, err := decode[DumpConfig](NameDump, raw)
	if err != nil {
		return err
	}
	for _, e := range task.Entries().All() {
		state := e.State().String()
		if len(cfg.States) > 0 && !slices.Contains(cfg.States, state) {
			continue
		}
		attrs := []logging.Attr{
			logging.String(logging.FieldTitle, e.Title()),
			logging.String("url", e.URL()),
			logging.String("state", state),
		}
		if e.Reason() != "" {
			attrs = append(attrs, logging.String("reason", e.Reason()), logging.String("decided_by", e.DecidedBy()))
		}
		if len(cfg.Fields) == 0 {
			fields := e.Snapshot()
			keys := slices.Sorted(maps.Keys(fields))
			for _, key := range keys {
				if key == entry.FieldTitle || key == entry.FieldURL {
					continue
				}
				attrs = append(attrs, logging.Any(key, fields[key]))
			}
		} else {
			for _, key := range cfg.Fields {
				if value, ok := e.Get(key); ok {
					attrs = append(attrs, logging.Any(key, value))
				}
			}
		}
		task.Logger().Info("entry", logging.Args(attrs...)...)
	}
	return nil
}
