package entry

// Container holds the entries of one pass in insertion order.
type Container struct {
	task    string
	entries []*Entry
	byURL   map[string]*Entry
}

// NewContainer returns an empty container for the named task.
func NewContainer(task string) *Container {
	return &Container{task: task, byURL: make(map[string]*Entry)}
}

// Add appends entries, attaching each to the owning task. Entries whose url
// is already present are skipped; the number added is returned.
func (c *Container) Add(entries ...*Entry) int {
	added := 0
	for _, e := range entries {
		if e == nil {
			continue
		}
		if e.url != "" {
			if _, dup := c.byURL[e.url]; dup {
				continue
			}
			c.byURL[e.url] = e
		}
		e.Attach(c.task)
		c.entries = append(c.entries, e)
		added++
	}
	return added
}

// Len returns the total number of entries regardless of state.
func (c *Container) Len() int { return len(c.entries) }

// ByURL looks up an entry by url.
func (c *Container) ByURL(url string) (*Entry, bool) {
	e, ok := c.byURL[url]
	return e, ok
}

// All returns every entry.
func (c *Container) All() []*Entry { return append([]*Entry(nil), c.entries...) }

// Accepted returns accepted entries.
func (c *Container) Accepted() []*Entry { return c.filter(func(s State) bool { return s == Accepted }) }

// Rejected returns rejected entries.
func (c *Container) Rejected() []*Entry { return c.filter(func(s State) bool { return s == Rejected }) }

// Failed returns failed entries.
func (c *Container) Failed() []*Entry { return c.filter(func(s State) bool { return s == Failed }) }

// Undecided returns entries without a decision.
func (c *Container) Undecided() []*Entry { return c.filter(func(s State) bool { return s == Undecided }) }

// Entries returns accepted and undecided entries, the set later phases act on.
func (c *Container) Entries() []*Entry {
	return c.filter(func(s State) bool { return s == Accepted || s == Undecided })
}

func (c *Container) filter(keep func(State) bool) []*Entry {
	var out []*Entry
	for _, e := range c.entries {
		if keep(e.State()) {
			out = append(out, e)
		}
	}
	return out
}

// Counts summarizes the container by state.
type Counts struct {
	Total     int
	Accepted  int
	Rejected  int
	Failed    int
	Undecided int
}

// Counts returns per-state totals.
func (c *Container) Counts() Counts {
	counts := Counts{Total: len(c.entries)}
	for _, e := range c.entries {
		switch e.State() {
		case Accepted:
			counts.Accepted++
		case Rejected:
			counts.Rejected++
		case Failed:
			counts.Failed++
		default:
			counts.Undecided++
		}
	}
	return counts
}

// Complete fires on_complete for every entry in insertion order.
func (c *Container) Complete() {
	for _, e := range c.entries {
		e.Complete()
	}
}
