package builtins

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"curator/internal/entry"
	"curator/internal/plugin"
	"curator/internal/taskerr"
)

// MockConfig lists the entries the mock input produces.
//
//	[tasks.tv.plugins.mock]
//	titles = ["Show.S01E01.720p"]
//	entries = [{ title = "Show.S01E02.720p", url = "http://example/2", fields = { size = 700 } }]
type MockConfig struct {
	Titles  []string    `toml:"titles"`
	Entries []MockEntry `toml:"entries"`
}

// MockEntry is one fully specified mock entry.
type MockEntry struct {
	Title  string         `toml:"title"`
	URL    string         `toml:"url"`
	Fields map[string]any `toml:"fields"`
}

// Validate requires at least one entry and a title on each.
func (c *MockConfig) Validate() error {
	if len(c.Titles) == 0 && len(c.Entries) == 0 {
		return errors.New("mock needs titles or entries")
	}
	for i, e := range c.Entries {
		if strings.TrimSpace(e.Title) == "" {
			return fmt.Errorf("mock entry %d has no title", i)
		}
	}
	return nil
}

// Mock produces entries straight from configuration. It stands in for a
// feed while tuning filters.
type Mock struct{}

func (Mock) OnInput(_ context.Context, task plugin.Task, raw any) ([]*entry.Entry, error) {
	cfg, err := decode[MockConfig](NameMock, raw)
	if err != nil {
		return nil, err
	}
	out := make([]*entry.Entry, 0, len(cfg.Titles)+len(cfg.Entries))
	for _, title := range cfg.Titles {
		out = append(out, entry.New(title, mockURL(task.Name(), title)))
	}
	for _, spec := range cfg.Entries {
		link := spec.URL
		if link == "" {
			link = mockURL(task.Name(), spec.Title)
		}
		e := entry.New(spec.Title, link)
		for key, value := range spec.Fields {
			if err := e.Set(key, value); err != nil {
				return nil, taskerr.Wrap(taskerr.ErrConfiguration, NameMock, "input", spec.Title, err)
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func mockURL(task, title string) string {
	return "mock://" + url.PathEscape(task) + "/" + url.PathEscape(title)
}
