// File: internal/simhost/simhost.go
// Package simhost is an in-process stand-in for the hypervisor-side
// collaborators spec §1 places out of scope (event channels, grant
// mapping, and the domain-introduction hypercall), built entirely on
// ring.Alloc and ring.Peer. It lets the CLI demo and integration tests
// drive a real domain.Context end to end with no actual hypervisor.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Grounded on the teacher's fake/transport.go: a mutex-guarded fake
// satisfying the same interfaces real collaborators would, predictable
// and fully in-memory.
package simhost

import (
	"fmt"
	"sync"

	"github.com/momentics/xenstore-go/internal/ring"
)

type binding struct {
	remoteDomID uint16
	callback    func()
}

// Host implements domain.EventChannel, domain.MemoryMap, and
// domain.Hypercall against an in-memory table of loopback pages.
type Host struct {
	mu       sync.Mutex
	nextPort uint32
	bindings map[uint32]*binding
	pages    map[uint16]*ring.AllocatedPage
}

// New builds an empty simulated host.
func New() *Host {
	return &Host{
		nextPort: 1,
		bindings: make(map[uint32]*binding),
		pages:    make(map[uint16]*ring.AllocatedPage),
	}
}

// Bind implements domain.EventChannel.Bind, allocating a fresh local
// port number and remembering callback for later Notify calls.
func (h *Host) Bind(remoteDomID uint16, remotePort uint32, callback func()) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	port := h.nextPort
	h.nextPort++
	h.bindings[port] = &binding{remoteDomID: remoteDomID, callback: callback}
	return port, nil
}

// Notify implements domain.EventChannel.Notify by invoking the
// callback registered at Bind time for localPort.
func (h *Host) Notify(localPort uint32) error {
	h.mu.Lock()
	b, ok := h.bindings[localPort]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("simhost: notify on unknown port %d", localPort)
	}
	if b.callback != nil {
		b.callback()
	}
	return nil
}

// Unbind implements domain.EventChannel.Unbind.
func (h *Host) Unbind(localPort uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.bindings, localPort)
	return nil
}

// Close implements domain.EventChannel.Close; ports carry no separate
// OS handle in the simulator, so this is a no-op beyond Unbind.
func (h *Host) Close(localPort uint32) error { return nil }

// Map implements domain.MemoryMap.Map, allocating a fresh loopback
// page and remembering it so Peer can later hand out the guest side.
func (h *Host) Map(domid uint16, pfnOffset uint64) (*ring.AllocatedPage, error) {
	page, err := ring.Alloc()
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.pages[domid] = page
	h.mu.Unlock()
	return page, nil
}

// Unmap implements domain.MemoryMap.Unmap.
func (h *Host) Unmap(page *ring.AllocatedPage) error {
	return page.Close()
}

// PublishEventChannel implements domain.Hypercall as a no-op that
// records nothing; the simulator has no xenbus to publish into.
func (h *Host) PublishEventChannel(domid uint16, port uint32) error {
	return nil
}

// Peer returns the guest-side handle for domid's mapped page, for
// driving request traffic into a running domain worker. workerNotify
// is invoked after each request is written, mirroring the event-channel
// wake a real guest's hypervisor delivery would cause; draining a reply
// does not invoke it.
func (h *Host) Peer(domid uint16, workerNotify ring.Notifier) (*ring.Peer, error) {
	h.mu.Lock()
	page, ok := h.pages[domid]
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("simhost: domain %d has no mapped page", domid)
	}
	return ring.NewPeer(page.Page, workerNotify), nil
}
