package entry_test

import (
	"testing"

	"curator/internal/entry"
)

func TestContainerViews(t *testing.T) {
	c := entry.NewContainer("tv")
	a := entry.New("a", "u/a")
	r := entry.New("r", "u/r")
	f := entry.New("f", "u/f")
	u := entry.New("u", "u/u")
	if added := c.Add(a, r, f, u, entry.New("dup", "u/a")); added != 4 {
		t.Fatalf("added = %d, want 4", added)
	}
	_ = a.Accept("ok")
	_ = r.Reject("no")
	_ = f.Fail("err")

	check := func(name string, got []*entry.Entry, want ...*entry.Entry) {
		t.Helper()
		if len(got) != len(want) {
			t.Fatalf("%s: got %d entries, want %d", name, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s[%d] = %q, want %q", name, i, got[i].Title(), want[i].Title())
			}
		}
	}
	check("accepted", c.Accepted(), a)
	check("rejected", c.Rejected(), r)
	check("failed", c.Failed(), f)
	check("undecided", c.Undecided(), u)
	check("entries", c.Entries(), a, u)

	counts := c.Counts()
	if counts.Total != 4 || counts.Accepted != 1 || counts.Undecided != 1 {
		t.Fatalf("counts = %+v", counts)
	}
	if a.Task() != "tv" {
		t.Fatalf("entry not attached to task, got %q", a.Task())
	}
}

func TestContainerCompleteFiresEachEntry(t *testing.T) {
	c := entry.NewContainer("tv")
	var order []string
	for _, title := range []string{"one", "two"} {
		e := entry.New(title, "u/"+title)
		e.On(entry.OnComplete, func(e *entry.Entry, _ string, _ map[string]any) { order = append(order, e.Title()) })
		c.Add(e)
	}
	c.Complete()
	c.Complete()
	if len(order) != 2 || order[0] != "one" || order[1] != "two" {
		t.Fatalf("complete order = %v", order)
	}
}
