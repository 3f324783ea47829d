package quality

import (
	"fmt"
	"slices"
	"strings"
)

type componentReq struct {
	min, max int
	allowed  []int
	excluded []int
}

func (r *componentReq) constrained() bool {
	return r.min > 0 || r.max > 0 || len(r.allowed) > 0
}

func (r *componentReq) allows(rank int) bool {
	if slices.Contains(r.excluded, rank) {
		return false
	}
	if len(r.allowed) > 0 && !slices.Contains(r.allowed, rank) {
		return false
	}
	if r.min > 0 && rank < r.min {
		return false
	}
	if r.max > 0 && rank > r.max {
		return false
	}
	return true
}

func (r *componentReq) floor() int {
	switch {
	case len(r.allowed) > 0:
		return slices.Min(r.allowed)
	case r.min > 0:
		return r.min
	default:
		return 0
	}
}

// Requirement is a parsed quality requirement such as "720p+ webdl|bluray !h265".
//
// Token forms: `name` exact, `name+` minimum, `name-` maximum, `a-b`
// inclusive range, `a|b` allow set, `!name` exclusion, `any` no constraint.
// All tokens must hold for a quality to be allowed.
type Requirement struct {
	text  string
	parts [componentCount]componentReq
}

// Any is the requirement that allows every quality.
var Any = Requirement{text: "any"}

// ParseRequirement parses a requirement using the default tables.
func ParseRequirement(text string) (Requirement, error) {
	return Default().ParseRequirement(text)
}

// ParseRequirement parses a requirement against these tables.
func (t *Tables) ParseRequirement(text string) (Requirement, error) {
	req := Requirement{text: strings.TrimSpace(text)}
	if req.text == "" {
		req.text = "any"
		return req, nil
	}
	for _, token := range strings.Fields(strings.ToLower(req.text)) {
		if err := t.applyToken(&req, token); err != nil {
			return Requirement{}, fmt.Errorf("quality requirement %q: %w", text, err)
		}
	}
	return req, nil
}

func (t *Tables) applyToken(req *Requirement, token string) error {
	switch {
	case token == "any":
		return nil
	case strings.HasPrefix(token, "!"):
		lvl, err := t.mustLookup(strings.TrimPrefix(token, "!"))
		if err != nil {
			return err
		}
		part := &req.parts[lvl.Component]
		part.excluded = append(part.excluded, lvl.Rank)
	case strings.Contains(token, "|"):
		var comp Component = -1
		part := componentReq{}
		for _, name := range strings.Split(token, "|") {
			lvl, err := t.mustLookup(name)
			if err != nil {
				return err
			}
			if comp >= 0 && lvl.Component != comp {
				return fmt.Errorf("set %q mixes %s and %s", token, comp, lvl.Component)
			}
			comp = lvl.Component
			part.allowed = append(part.allowed, lvl.Rank)
		}
		req.parts[comp].allowed = part.allowed
	case strings.HasSuffix(token, "+"):
		lvl, err := t.mustLookup(strings.TrimSuffix(token, "+"))
		if err != nil {
			return err
		}
		req.parts[lvl.Component].min = lvl.Rank
	default:
		if lvl, ok := t.Lookup(token); ok {
			req.parts[lvl.Component].min = lvl.Rank
			req.parts[lvl.Component].max = lvl.Rank
			return nil
		}
		if strings.HasSuffix(token, "-") {
			lvl, err := t.mustLookup(strings.TrimSuffix(token, "-"))
			if err != nil {
				return err
			}
			req.parts[lvl.Component].max = lvl.Rank
			return nil
		}
		lo, hi, found := strings.Cut(token, "-")
		if !found {
			return fmt.Errorf("unknown quality %q", token)
		}
		low, err := t.mustLookup(lo)
		if err != nil {
			return err
		}
		high, err := t.mustLookup(hi)
		if err != nil {
			return err
		}
		if low.Component != high.Component {
			return fmt.Errorf("range %q mixes %s and %s", token, low.Component, high.Component)
		}
		if low.Rank > high.Rank {
			low, high = high, low
		}
		req.parts[low.Component].min = low.Rank
		req.parts[low.Component].max = high.Rank
	}
	return nil
}

func (t *Tables) mustLookup(name string) (Level, error) {
	lvl, ok := t.Lookup(name)
	if !ok {
		return Level{}, fmt.Errorf("unknown quality %q", name)
	}
	return lvl, nil
}

// Allows reports whether q satisfies every token of the requirement.
// A component constrained by a minimum, exact value, or set must be known;
// a component limited only by a maximum or exclusion accepts unknown values.
func (r Requirement) Allows(q Quality) bool {
	for c := range componentCount {
		part := &r.parts[c]
		rank := q.level(Component(c)).Rank
		if rank == 0 {
			if part.min > 0 || len(part.allowed) > 0 {
				return false
			}
			continue
		}
		if !part.allows(rank) {
			return false
		}
	}
	return true
}

// ReachedBy reports whether q is at or above the lowest acceptable value of
// every constrained component. Used to decide when upgrading can stop: a
// release better than the target still counts as reaching it.
func (r Requirement) ReachedBy(q Quality) bool {
	for c := range componentCount {
		part := &r.parts[c]
		if floor := part.floor(); floor > 0 && q.level(Component(c)).Rank < floor {
			return false
		}
	}
	return true
}

// IsAny reports whether the requirement places no constraint at all.
func (r Requirement) IsAny() bool {
	for c := range componentCount {
		if r.parts[c].constrained() || len(r.parts[c].excluded) > 0 {
			return false
		}
	}
	return true
}

func (r Requirement) String() string {
	if r.text == "" {
		return "any"
	}
	return r.text
}

// Requirements is an allow list: a quality passes when any member allows it.
type Requirements []Requirement

// Allows reports whether any requirement allows q. An empty list allows all.
func (rs Requirements) Allows(q Quality) bool {
	if len(rs) == 0 {
		return true
	}
	for _, r := range rs {
		if r.Allows(q) {
			return true
		}
	}
	return false
}

// ParseRequirements parses each text into one allow-list member.
func (t *Tables) ParseRequirements(texts []string) (Requirements, error) {
	out := make(Requirements, 0, len(texts))
	for _, text := range texts {
		req, err := t.ParseRequirement(text)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}
