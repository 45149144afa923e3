package watch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegisterAndFireDeliversToMatchingOwner(t *testing.T) {
	r := New(nil)
	woken := false
	owner := Owner{DomID: 2, Wake: func() { woken = true }}

	existed := r.Register("/local/domain/2/example", "tok", owner, false)
	if existed {
		t.Fatal("first Register should report existed=false")
	}

	r.Fire("/local/domain/2/example", 1 /* mutator: some other domain */)

	if !woken {
		t.Error("Fire should invoke the matching owner's Wake callback")
	}
	events := r.DrainFor(2)
	if len(events) != 1 || events[0].Path != "/local/domain/2/example" {
		t.Errorf("DrainFor(2) = %+v, want one pending event for the written path", events)
	}
}

func TestFireExcludesMutator(t *testing.T) {
	r := New(nil)
	woken := false
	owner := Owner{DomID: 1, Wake: func() { woken = true }}
	r.Register("/a", "tok", owner, false)

	// The same domain that performed the mutation must not be notified.
	r.Fire("/a", 1)

	if woken {
		t.Error("Fire should not wake the mutating domain's own watch")
	}
	if events := r.DrainFor(1); len(events) != 0 {
		t.Errorf("DrainFor(1) after self-mutation = %+v, want none", events)
	}
}

func TestFirePrefixMatch(t *testing.T) {
	r := New(nil)
	var fired []string
	owner := Owner{DomID: 5, Wake: func() {}}
	r.Register("/a/b", "tok", owner, false)

	r.Fire("/a/b/c/d", 0)
	events := r.DrainFor(5)
	for _, e := range events {
		fired = append(fired, e.Path)
	}
	if diff := cmp.Diff([]string{"/a/b/c/d"}, fired); diff != "" {
		t.Errorf("prefix-matched Fire mismatch (-want +got):\n%s", diff)
	}

	r.Fire("/a/bc", 0)
	if events := r.DrainFor(5); len(events) != 1 {
		t.Errorf("byte-prefix match should treat /a/bc as matching /a/b, got %v", events)
	}
}

func TestUnwatchRemovesOnlyMatchingEntry(t *testing.T) {
	r := New(nil)
	owner := Owner{DomID: 1, Wake: func() {}}
	r.Register("/a", "tok1", owner, false)
	r.Register("/a", "tok2", owner, false)

	r.Unwatch(1, "/a", "tok1")

	woken := 0
	r.watchMu.Lock()
	n := len(r.entries)
	r.watchMu.Unlock()
	if n != 1 {
		t.Fatalf("after Unwatch, %d entries remain, want 1", n)
	}
	_ = woken
}

func TestResetAllDropsEverything(t *testing.T) {
	r := New(nil)
	r.Register("/a", "tok", Owner{DomID: 1, Wake: func() {}}, false)
	r.Register("/b", "tok", Owner{DomID: 2, Wake: func() {}}, false)

	r.ResetAll()

	r.watchMu.Lock()
	n := len(r.entries)
	r.watchMu.Unlock()
	if n != 0 {
		t.Errorf("ResetAll left %d entries, want 0", n)
	}
}

func TestPurgeDomainRemovesOnlyItsWatches(t *testing.T) {
	r := New(nil)
	r.Register("/a", "tok", Owner{DomID: 1, Wake: func() {}}, false)
	r.Register("/b", "tok", Owner{DomID: 2, Wake: func() {}}, false)

	r.PurgeDomain(1)

	matches := r.MatchesFor(1, "/a")
	if len(matches) != 0 {
		t.Error("PurgeDomain(1) should remove domain 1's watches")
	}
	if matches := r.MatchesFor(2, "/b"); len(matches) != 1 {
		t.Error("PurgeDomain(1) should leave domain 2's watches untouched")
	}
}

func TestPurgePendingRemovesOnlyTargetDomain(t *testing.T) {
	r := New(nil)
	r.Register("/a", "tok", Owner{DomID: 1, Wake: func() {}}, false)
	r.Register("/a", "tok2", Owner{DomID: 2, Wake: func() {}}, false)

	r.Fire("/a", 0)
	r.PurgePending(1)

	if events := r.DrainFor(1); len(events) != 0 {
		t.Error("PurgePending(1) should drop domain 1's pending events")
	}
	if events := r.DrainFor(2); len(events) != 1 {
		t.Error("PurgePending(1) should leave domain 2's pending events intact")
	}
}

func TestFireSynthetic(t *testing.T) {
	r := New(nil)
	woken := false
	r.FireSynthetic("/a", 9, func() { woken = true })

	if !woken {
		t.Error("FireSynthetic should invoke the wake callback")
	}
	events := r.DrainFor(9)
	if len(events) != 1 || events[0].Path != "/a" {
		t.Errorf("FireSynthetic pending event = %+v", events)
	}
}

func TestRegisterRefreshesExisting(t *testing.T) {
	r := New(nil)
	owner := Owner{DomID: 1, Wake: func() {}}
	r.Register("/a", "tok", owner, false)
	existed := r.Register("/a", "tok", owner, true)
	if !existed {
		t.Error("re-registering the same (path, token) should report existed=true")
	}

	matches := r.MatchesFor(1, "/a")
	if len(matches) != 1 || !matches[0].Relative {
		t.Error("re-registering should update the Relative flag on the existing entry")
	}
}
