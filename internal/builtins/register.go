// Package builtins holds the small components every installation ships
// with: a configurable mock input, quality and release metainfo, simple
// filters and an entry dump for debugging pipelines.
package builtins

import (
	"fmt"

	"curator/internal/backlog"
	"curator/internal/config"
	"curator/internal/plugin"
	"curator/internal/series"
	"curator/internal/taskerr"
)

// Registered component names.
const (
	NameMock         = "mock"
	NameQuality      = "quality"
	NameRelease      = "release"
	NameAcceptAll    = "accept_all"
	NameRejectRegexp = "reject_regexp"
	NameDump         = "dump"
)

// Register adds the builtin components to reg.
func Register(reg *plugin.Registry) error {
	steps := []struct {
		name      string
		component any
		opts      []plugin.Option
	}{
		{NameMock, Mock{}, []plugin.Option{plugin.Decoded[MockConfig]()}},
		{NameQuality, Quality{}, []plugin.Option{plugin.Builtin(), plugin.Priority(plugin.PhaseMetainfo, 200)}},
		{NameRelease, Release{}, []plugin.Option{plugin.Priority(plugin.PhaseMetainfo, 150), plugin.Schema(noOptions)}},
		{NameAcceptAll, AcceptAll{}, []plugin.Option{plugin.Priority(plugin.PhaseFilter, -255), plugin.Schema(noOptions)}},
		{NameRejectRegexp, RejectRegexp{}, []plugin.Option{plugin.Priority(plugin.PhaseFilter, 100), plugin.Decoded[RejectRegexpConfig]()}},
		{NameDump, Dump{}, []plugin.Option{plugin.Priority(plugin.PhaseOutput, -255), plugin.Decoded[DumpConfig]()}},
	}
	for _, step := range steps {
		if err := reg.Register(step.name, step.component, step.opts...); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry with every shipped component registered.
func NewRegistry() (*plugin.Registry, error) {
	reg := plugin.NewRegistry()
	for _, register := range []func(*plugin.Registry) error{backlog.Register, series.Register, Register} {
		if err := register(reg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// noOptions accepts only an enabling value: nil, true or an empty table.
func noOptions(raw any) error {
	switch v := raw.(type) {
	case nil:
		return nil
	case map[string]any:
		if len(v) == 0 {
			return nil
		}
	}
	return fmt.Errorf("takes no options, got %v", raw)
}

func decode[T any](name string, raw any) (T, error) {
	v, err := config.DecodeSection[T](raw)
	if err != nil {
		return v, taskerr.Wrap(taskerr.ErrConfiguration, name, "decode", "", err)
	}
	return v, nil
}
