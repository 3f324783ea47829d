package config

import (
	"bytes"
	"fmt"
	"maps"

	"github.com/pelletier/go-toml/v2"
)

type section[T any] struct {
	V T `toml:"v"`
}

// DecodeSection decodes a raw plugin subtree into T by re-encoding it as
// TOML. Unknown keys are rejected. A nil subtree yields the zero value.
func DecodeSection[T any](raw any) (T, error) {
	var out section[T]
	if raw == nil {
		return out.V, nil
	}
	data, err := toml.Marshal(map[string]any{"v": raw})
	if err != nil {
		return out.V, fmt.Errorf("encode section: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out.V, fmt.Errorf("decode section: %w", err)
	}
	return out.V, nil
}

// CloneSection deep copies a raw subtree of maps, slices and scalars so a
// consumer can mutate its copy without affecting the loaded config.
func CloneSection(raw any) any {
	switch v := raw.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = CloneSection(value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = CloneSection(value)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(v))
		for i, value := range v {
			out[i] = CloneSection(value).(map[string]any)
		}
		return out
	case []string:
		return append([]string(nil), v...)
	case map[string]string:
		return maps.Clone(v)
	default:
		return v
	}
}
