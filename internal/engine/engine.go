// File: internal/engine/engine.go
// Package engine is the single "xenstore engine" value of spec §9
// Design Notes: it owns the tree, watch registry, and worker-stack
// allocator, hides those singletons behind itself, drives the domain
// worker lifecycle, and exposes the public in-process library surface
// of spec §6.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Grounded on the teacher's facade.HioloadWS: one struct gathering
// every subsystem behind a small, documented public API.
package engine

import (
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/xenstore-go/internal/config"
	"github.com/momentics/xenstore-go/internal/control"
	"github.com/momentics/xenstore-go/internal/domain"
	"github.com/momentics/xenstore-go/internal/slotpool"
	"github.com/momentics/xenstore-go/internal/store"
	"github.com/momentics/xenstore-go/internal/watch"
	"github.com/momentics/xenstore-go/internal/xserr"
)

// Engine ties the tree, watch registry, and slot pool into the single
// value every domain worker is started with.
type Engine struct {
	cfg *config.Config
	log *zap.SugaredLogger

	tree    *store.Tree
	watches *watch.Registry
	slots   *slotpool.Pool

	metrics *control.MetricsRegistry
	debug   *control.Debug

	mu      sync.Mutex
	domains map[uint16]*domain.Context
}

// New builds an Engine from cfg. log may be nil, in which case a no-op
// logger is used.
func New(cfg *config.Config, log *zap.SugaredLogger) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	tree := store.New()
	return &Engine{
		cfg:     cfg,
		log:     log,
		tree:    tree,
		watches: watch.New(log),
		slots:   slotpool.New(),
		metrics: control.NewMetricsRegistry(),
		debug:   control.NewDebug(tree),
		domains: make(map[uint16]*domain.Context),
	}
}

// Metrics exposes the engine's runtime counters.
func (e *Engine) Metrics() *control.MetricsRegistry { return e.metrics }

// Debug exposes the engine's operator-facing introspection probe.
func (e *Engine) Debug() *control.Debug { return e.debug }

// StartDomain brings a domain worker from Idle to Running, per spec
// §4.6, handing it references to the engine's shared tree and watch
// registry.
func (e *Engine) StartDomain(domid, remoteDomID uint16, remotePort uint32, evt domain.EventChannel, mem domain.MemoryMap, hyper domain.Hypercall) (*domain.Context, error) {
	deps := domain.Deps{
		Tree:    e.tree,
		Watches: e.watches,
		EvtChan: evt,
		MemMap:  mem,
		Hyper:   hyper,
		Log:     e.log,
	}
	ctx, err := domain.Start(domid, remoteDomID, remotePort, e.slots.Acquire, deps)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.domains[domid] = ctx
	e.mu.Unlock()

	e.metrics.Incr("domains.active", 1)
	e.log.Infow("domain started", "domid", domid)
	return ctx, nil
}

// DomainSpec is one domain's bring-up parameters, for batch start.
type DomainSpec struct {
	DomID       uint16
	RemoteDomID uint16
	RemotePort  uint32
	EvtChan     domain.EventChannel
	MemMap      domain.MemoryMap
	Hyper       domain.Hypercall
}

// StartDomains brings up a batch of domains concurrently, as happens
// when xenstored attaches to every already-running guest on restart.
// It returns once every bring-up attempt has finished; failures on
// independent domains don't block the others from starting, and the
// first error is the one returned.
func (e *Engine) StartDomains(specs []DomainSpec) error {
	var g errgroup.Group
	for _, s := range specs {
		s := s
		g.Go(func() error {
			_, err := e.StartDomain(s.DomID, s.RemoteDomID, s.RemotePort, s.EvtChan, s.MemMap, s.Hyper)
			return err
		})
	}
	return g.Wait()
}

// StopDomain transitions a running domain to Stopped, purging its
// watch and pending-event state, per spec §4.6.
func (e *Engine) StopDomain(domid uint16) error {
	e.mu.Lock()
	ctx, ok := e.domains[domid]
	delete(e.domains, domid)
	e.mu.Unlock()

	if !ok {
		return xserr.ErrNotFound
	}

	err := ctx.Stop(e.slots.Release)
	e.metrics.Incr("domains.active", -1)
	e.log.Infow("domain stopped", "domid", domid, "error", err)
	return err
}

// --- Public in-process library surface, spec §6 (caller-domid 0) ---

// Write is a convenience write that also fires watchers.
func (e *Engine) Write(path string, value []byte) error {
	if err := e.tree.Write(path, value); err != nil {
		return err
	}
	e.watches.Fire(path, 0)
	e.metrics.Incr("store.writes", 1)
	return nil
}

// Read copies a value into buf, truncating at len(buf), returning the
// number of bytes copied.
func (e *Engine) Read(path string, buf []byte) (int, error) {
	value, exists, _ := e.tree.Read(path)
	if !exists {
		return 0, xserr.ErrNotFound
	}
	return copy(buf, value), nil
}

// ReadInteger reads a value and decodes it as a decimal integer.
func (e *Engine) ReadInteger(path string) (int, error) {
	value, exists, hasValue := e.tree.Read(path)
	if !exists || !hasValue {
		return 0, xserr.ErrNotFound
	}
	v, err := strconv.Atoi(strings.TrimRight(string(value), "\x00"))
	if err != nil {
		return 0, xserr.New(xserr.CodeEINVAL, "value is not a decimal integer")
	}
	return v, nil
}

// Rm removes a path and fires watchers.
func (e *Engine) Rm(path string) error {
	if err := e.tree.Remove(path); err != nil {
		return err
	}
	e.watches.Fire(path, 0)
	e.metrics.Incr("store.removes", 1)
	return nil
}
