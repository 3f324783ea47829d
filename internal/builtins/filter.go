package builtins

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"curator/internal/entry"
	"curator/internal/plugin"
)

// AcceptAll accepts every undecided entry.
type AcceptAll struct{}

func (AcceptAll) OnFilter(_ context.Context, task plugin.Task, _ any) error {
	for _, e := range task.Entries().Undecided() {
		if err := e.Accept("accept_all", entry.By(NameAcceptAll)); err != nil {
			return err
		}
	}
	return nil
}

// RejectRegexpConfig configures reject_regexp. Patterns are matched case
// insensitively against each listed field, the title by default.
type RejectRegexpConfig struct {
	Regexps []string `toml:"regexps"`
	Fields  []string `toml:"fields"`
}

// Validate compiles every pattern.
func (c *RejectRegexpConfig) Validate() error {
	if len(c.Regexps) == 0 {
		return errors.New("reject_regexp needs at least one pattern")
	}
	_, err := c.compile()
	return err
}

func (c *RejectRegexpConfig) compile() ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(c.Regexps))
	for _, pattern := range c.Regexps {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// RejectRegexp rejects undecided entries whose fields match any configured
// pattern.
type RejectRegexp struct{}

func (RejectRegexp) OnFilter(_ context.Context, task plugin.Task, raw any) error {
	cfg, err := decode[RejectRegexpConfig](NameRejectRegexp, raw)
	if err != nil {
		return err
	}
	patterns, err := cfg.compile()
	if err != nil {
		return err
	}
	fields := cfg.Fields
	if len(fields) == 0 {
		fields = []string{entry.FieldTitle}
	}
	for _, e := range task.Entries().Undecided() {
		if reason, ok := matchAny(e, fields, patterns); ok {
			if err := e.Reject(reason, entry.By(NameRejectRegexp)); err != nil {
				return err
			}
		}
	}
	return nil
}

func matchAny(e *entry.Entry, fields []string, patterns []*regexp.Regexp) (string, bool) {
	for _, key := range fields {
		value, ok := e.Get(key)
		if !ok {
			continue
		}
		text := fmt.Sprint(value)
		for _, re := range patterns {
			if re.MatchString(text) {
				return fmt.Sprintf("%s matched %s", key, re.String()[len("(?i)"):]), true
			}
		}
	}
	return "", false
}
