package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	humanDuration = regexp.MustCompile(`^(\d+)\s*(minute|hour|day|week)s?$`)
	unitDuration  = regexp.MustCompile(`(\d+(?:\.\d+)?)([dw])`)
)

// ParseDuration accepts Go durations ("90m", "1h30m"), day and week units
// ("2d", "1w12h"), and human phrases such as "3 days".
func ParseDuration(text string) (time.Duration, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if m := humanDuration.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("duration %q: %w", text, err)
		}
		unit := map[string]time.Duration{
			"minute": time.Minute,
			"hour":   time.Hour,
			"day":    24 * time.Hour,
			"week":   7 * 24 * time.Hour,
		}[m[2]]
		return time.Duration(n) * unit, nil
	}

	var extra time.Duration
	var convErr error
	rest := unitDuration.ReplaceAllStringFunc(text, func(part string) string {
		m := unitDuration.FindStringSubmatch(part)
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			convErr = err
			return ""
		}
		unit := 24 * time.Hour
		if m[2] == "w" {
			unit *= 7
		}
		extra += time.Duration(n * float64(unit))
		return ""
	})
	if convErr != nil {
		return 0, fmt.Errorf("duration %q: %w", text, convErr)
	}
	if rest == "" {
		if extra <= 0 {
			return 0, fmt.Errorf("duration %q must be positive", text)
		}
		return extra, nil
	}
	d, err := time.ParseDuration(rest)
	if err != nil {
		return 0, fmt.Errorf("duration %q: %w", text, err)
	}
	if d+extra <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", text)
	}
	return d + extra, nil
}
