// File: internal/watch/registry.go
// Package watch implements the XenStore watch registry and deferred
// event fan-out of spec §4.5: subscriptions keyed by (path, token),
// matched by byte-prefix against mutated paths, delivered through a
// global pending-event queue drained by each target domain's worker.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The global eapache/queue.Queue (the teacher's own declared but never
// imported dependency) backs the pending-event FIFO here — see
// DESIGN.md for the full grounding note.
package watch

import (
	"strings"
	"sync"

	"github.com/eapache/queue"
	"go.uber.org/zap"
)

// Owner identifies the domain that registered a watch, carrying the
// minimal hooks the registry needs: a stable id for matching/cleanup
// and a non-blocking wake callback standing in for posting the
// domain's semaphore (spec §5's "never hold a mutex while blocking on
// the semaphore" rule — Wake must itself never block).
type Owner struct {
	DomID uint16
	Wake  func()
}

// Entry is one registered watch.
type Entry struct {
	PrefixKey string
	Token     string
	Owner     Owner
	Relative  bool
}

// PendingEvent is one fired-but-undelivered watch notification.
type PendingEvent struct {
	Path         string
	TargetDomain uint16
}

// Registry is the process-wide watch list plus pending-event queue,
// each guarded by its own mutex per spec §5 (watch -> pending-event
// nesting order, never the reverse).
type Registry struct {
	watchMu sync.Mutex
	entries []*Entry

	pendingMu sync.Mutex
	pending   *queue.Queue

	log *zap.SugaredLogger
}

// New builds an empty registry. log may be nil.
func New(log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registry{pending: queue.New(), log: log}
}

// Register installs or refreshes a watch per spec §4.5: if an entry
// already exists for (path, token), globally, its Relative flag is
// updated and true is returned for "already existed". Otherwise a new
// entry is appended.
func (r *Registry) Register(path, token string, owner Owner, relative bool) (existed bool) {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	for _, e := range r.entries {
		if e.PrefixKey == path && e.Token == token {
			e.Relative = relative
			return true
		}
	}
	r.entries = append(r.entries, &Entry{
		PrefixKey: path,
		Token:     token,
		Owner:     owner,
		Relative:  relative,
	})
	return false
}

// Unwatch removes the (path, token) watch owned by domid, if present.
func (r *Registry) Unwatch(domid uint16, path, token string) {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	for i, e := range r.entries {
		if e.Owner.DomID == domid && e.PrefixKey == path && e.Token == token {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// ResetAll drops every watch globally, per spec §4.4 RESET_WATCHES
// (flagged in spec §9 as likely overbroad, but implemented as
// specified).
func (r *Registry) ResetAll() {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	r.entries = nil
}

// PurgeDomain removes every watch owned by domid, the domain-stop
// cleanup of spec §4.5/§4.6.
func (r *Registry) PurgeDomain(domid uint16) {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.Owner.DomID != domid {
			kept = append(kept, e)
		}
	}
	r.entries = kept
}

// matchingOwnersLocked returns the distinct owners (by domid) of every
// entry whose PrefixKey is a byte-prefix of p, excluding mutator.
func (r *Registry) matchingOwnersLocked(p string, mutator uint16) []Owner {
	seen := make(map[uint16]bool)
	var owners []Owner
	for _, e := range r.entries {
		if e.Owner.DomID == mutator {
			continue
		}
		if !strings.HasPrefix(p, e.PrefixKey) {
			continue
		}
		if seen[e.Owner.DomID] {
			continue
		}
		seen[e.Owner.DomID] = true
		owners = append(owners, e.Owner)
	}
	return owners
}

// Fire is called after any tree mutation at absolute path p by domain
// mutator (0 for the in-process public library surface). Each distinct
// domain owning a watch whose PrefixKey is a byte-prefix of p, other
// than mutator, gets one pending event enqueued and its worker woken;
// draining then emits one WATCH_EVENT per matching watch, per spec §4.5.
func (r *Registry) Fire(p string, mutator uint16) {
	r.watchMu.Lock()
	owners := r.matchingOwnersLocked(p, mutator)
	r.watchMu.Unlock()

	if len(owners) == 0 {
		return
	}

	r.pendingMu.Lock()
	for _, o := range owners {
		r.pending.Add(PendingEvent{Path: p, TargetDomain: o.DomID})
	}
	r.pendingMu.Unlock()

	for _, o := range owners {
		r.log.Debugw("watch fan-out", "path", p, "target_domain", o.DomID)
		if o.Wake != nil {
			o.Wake()
		}
	}
}

// FireSynthetic enqueues a single synthetic event for a newly-watched
// path that already exists, per spec §4.4 WATCH handler.
func (r *Registry) FireSynthetic(p string, target uint16, wake func()) {
	r.pendingMu.Lock()
	r.pending.Add(PendingEvent{Path: p, TargetDomain: target})
	r.pendingMu.Unlock()
	if wake != nil {
		wake()
	}
}

// DrainFor removes every pending event targeted at domid, preserving
// the order in which mutations appended them, per spec §4.5 "Draining"
// and §5's within-domain ordering guarantee.
func (r *Registry) DrainFor(domid uint16) []PendingEvent {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()

	var mine []PendingEvent
	var requeue []PendingEvent
	for r.pending.Length() > 0 {
		ev := r.pending.Remove().(PendingEvent)
		if ev.TargetDomain == domid {
			mine = append(mine, ev)
		} else {
			requeue = append(requeue, ev)
		}
	}
	for _, ev := range requeue {
		r.pending.Add(ev)
	}
	return mine
}

// PurgePending removes every pending event targeting domid without
// returning them, the other half of domain-stop cleanup.
func (r *Registry) PurgePending(domid uint16) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()

	var requeue []PendingEvent
	for r.pending.Length() > 0 {
		ev := r.pending.Remove().(PendingEvent)
		if ev.TargetDomain != domid {
			requeue = append(requeue, ev)
		}
	}
	for _, ev := range requeue {
		r.pending.Add(ev)
	}
}

// MatchesFor returns every watch owned by domid whose PrefixKey is a
// byte-prefix of path, for emitting one WATCH_EVENT per match during
// draining (spec §4.5).
func (r *Registry) MatchesFor(domid uint16, path string) []*Entry {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	var out []*Entry
	for _, e := range r.entries {
		if e.Owner.DomID == domid && strings.HasPrefix(path, e.PrefixKey) {
			out = append(out, e)
		}
	}
	return out
}
