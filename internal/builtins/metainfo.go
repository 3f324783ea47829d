package builtins

import (
	"context"
	"strconv"
	"strings"

	"github.com/moistari/rls"

	"curator/internal/entry"
	"curator/internal/plugin"
)

// Fields written by the metainfo builtins.
const (
	FieldQuality           = "quality"
	FieldReleaseGroup      = "release_group"
	FieldReleaseSource     = "release_source"
	FieldReleaseResolution = "release_resolution"
	FieldReleaseCodec      = "release_codec"
	FieldReleaseAudio      = "release_audio"
	FieldReleaseChannels   = "release_channels"
	FieldReleaseOther      = "release_other"
	FieldReleaseType       = "release_type"
	FieldReleaseYear       = "release_year"
)

// Quality attaches a lazily parsed "quality" field to every entry. Parsing
// only happens when something reads the field.
type Quality struct{}

func (Quality) OnMetainfo(_ context.Context, task plugin.Task, _ any) error {
	tables := task.Config().QualityTables()
	for _, e := range task.Entries().Entries() {
		if e.Has(FieldQuality) {
			continue
		}
		err := e.SetLazy(FieldQuality, func(e *entry.Entry) (any, error) {
			return tables.Parse(strings.ToLower(e.Title())).String(), nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Attribute is one recognised release attribute.
type Attribute struct {
	Field string
	Value string
}

// ParseRelease returns the scene release attributes rls recognises in
// title, in a fixed field order. Unrecognised attributes are omitted.
func ParseRelease(title string) []Attribute {
	r := rls.ParseString(title)
	var out []Attribute
	add := func(field, value string) {
		if value != "" {
			out = append(out, Attribute{Field: field, Value: value})
		}
	}
	add(FieldReleaseType, r.Type.String())
	add(FieldReleaseGroup, r.Group)
	add(FieldReleaseSource, r.Source)
	add(FieldReleaseResolution, r.Resolution)
	add(FieldReleaseCodec, strings.Join(r.Codec, " "))
	add(FieldReleaseAudio, strings.Join(r.Audio, " "))
	add(FieldReleaseChannels, r.Channels)
	add(FieldReleaseOther, strings.Join(r.Other, " "))
	if r.Year != 0 {
		add(FieldReleaseYear, strconv.Itoa(r.Year))
	}
	return out
}

// Release annotates entries with the scene release attributes recognised by
// rls.
type Release struct{}

func (Release) OnMetainfo(_ context.Context, task plugin.Task, _ any) error {
	for _, e := range task.Entries().Entries() {
		for _, attr := range ParseRelease(e.Title()) {
			var value any = attr.Value
			if attr.Field == FieldReleaseYear {
				value, _ = strconv.Atoi(attr.Value)
			}
			if err := e.Set(attr.Field, value); err != nil {
				return err
			}
		}
	}
	return nil
}
