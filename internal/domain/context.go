// File: internal/domain/context.go
// Package domain implements the per-domain worker lifecycle of spec
// §4.6/§4.7: mapping and event-channel setup, the message loop, and
// teardown with watch/pending-event purge.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The stopping-flag/stoppedCh cooperative-shutdown-with-confirmation
// shape is grounded on the teacher's core/concurrency/executor.go
// worker type.
package domain

import (
	"sync/atomic"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/momentics/xenstore-go/internal/ring"
	"github.com/momentics/xenstore-go/internal/store"
	"github.com/momentics/xenstore-go/internal/watch"
)

// Deps bundles the engine-owned shared state a domain worker needs.
type Deps struct {
	Tree    *store.Tree
	Watches *watch.Registry
	EvtChan EventChannel
	MemMap  MemoryMap
	Hyper   Hypercall
	Log     *zap.SugaredLogger
}

// Context is a single connected domain's state, per spec §3.
type Context struct {
	domid uint16

	remoteDomID uint16
	remoteEvtchn uint32
	localEvtchn  uint32

	page      *ring.AllocatedPage
	transport *ring.Transport

	wake chan struct{} // binary semaphore: buffered chan of capacity 1

	stopping  atomic.Bool
	stoppedCh chan struct{}

	slot int

	txnCounter    uint64
	currentTxnID  uint64
	pendingTxnEnd bool
	pendingReqID  uint32

	deps Deps
	log  *zap.SugaredLogger
}

// DomID returns the connected domain's id. Implements dispatch.DomainHandle.
func (c *Context) DomID() uint16 { return c.domid }

// Wake posts the domain's wake semaphore without blocking, safe to
// call from an event-channel callback per spec §5.
func (c *Context) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// TxnActive reports whether a transaction is currently open.
func (c *Context) TxnActive() bool { return c.currentTxnID != 0 }

// BeginTxn starts a transaction, failing if one is already active, per
// spec §4.4 TRANSACTION_START.
func (c *Context) BeginTxn() (id uint64, ok bool) {
	if c.currentTxnID != 0 {
		return 0, false
	}
	c.txnCounter++
	c.currentTxnID = c.txnCounter
	return c.currentTxnID, true
}

// EndTxn clears transaction state, per spec §4.4 TRANSACTION_END.
func (c *Context) EndTxn() {
	c.currentTxnID = 0
}

// Start brings a domain from Idle to Running: maps its ring page,
// publishes server features and connection state (ring.NewPage already
// does this), binds the event channel, publishes it via hypercall,
// reserves a worker-stack slot, and spawns the worker goroutine.
//
// Failures release partial resources in reverse order, per spec §4.6.
func Start(domid, remoteDomID uint16, remotePort uint32, acquireSlot func() (int, bool), deps Deps) (*Context, error) {
	page, err := deps.MemMap.Map(domid, 0)
	if err != nil {
		return nil, err
	}

	c := &Context{
		domid:        domid,
		remoteDomID:  remoteDomID,
		remoteEvtchn: remotePort,
		page:         page,
		wake:         make(chan struct{}, 1),
		stoppedCh:    make(chan struct{}),
		deps:         deps,
		log:          deps.Log,
	}
	c.transport = ring.NewTransport(page.Page, ring.NotifierFunc(func() {
		_ = deps.EvtChan.Notify(c.localEvtchn)
	}))

	localPort, err := deps.EvtChan.Bind(remoteDomID, remotePort, c.Wake)
	if err != nil {
		_ = deps.MemMap.Unmap(page)
		return nil, err
	}
	c.localEvtchn = localPort

	if err := deps.Hyper.PublishEventChannel(domid, localPort); err != nil {
		_ = deps.EvtChan.Unbind(localPort)
		_ = deps.MemMap.Unmap(page)
		return nil, err
	}

	slot, ok := acquireSlot()
	if !ok {
		_ = deps.EvtChan.Unbind(localPort)
		_ = deps.MemMap.Unmap(page)
		return nil, errTooManyDomains
	}
	c.slot = slot

	go c.run()
	return c, nil
}

// Stop transitions Running -> Stopping -> Stopped: sets the stop flag,
// posts the semaphore, joins the worker, then purges watch state and
// tears down the event channel, slot, and mapping, aggregating any
// teardown errors.
func (c *Context) Stop(releaseSlot func(int)) error {
	c.stopping.Store(true)
	c.Wake()
	<-c.stoppedCh

	c.deps.Watches.PurgeDomain(c.domid)
	c.deps.Watches.PurgePending(c.domid)
	releaseSlot(c.slot)

	var errs *multierror.Error
	if err := c.deps.EvtChan.Unbind(c.localEvtchn); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := c.deps.EvtChan.Close(c.localEvtchn); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := c.deps.MemMap.Unmap(c.page); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// newReconnectBackoff is consulted when the ring reports a reconnecting
// peer, so the worker doesn't busy-spin while the guest re-establishes
// its side of the connection. Default exponential parameters are used;
// the worker loop bounds any single wait with NextBackOff()'s own cap.
func newReconnectBackoff() *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff()
}

var errTooManyDomains = errTooManyDomainsType{}

type errTooManyDomainsType struct{}

func (errTooManyDomainsType) Error() string { return "domain: worker-stack slots exhausted" }
