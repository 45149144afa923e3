// File: internal/domain/hostiface.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Interfaces for the hypervisor-side collaborators spec §1 places out
// of scope: the event-channel primitive, the grant-mapping primitive,
// and the hypercall that publishes a guest's store event-channel
// parameter. The core only ever consumes these; it never implements
// them.
package domain

import "github.com/momentics/xenstore-go/internal/ring"

// EventChannel abstracts bind/notify/unbind/close for a single
// domain's event channel, per spec §1(i).
type EventChannel interface {
	Bind(remoteDomID uint16, remotePort uint32, callback func()) (localPort uint32, err error)
	Notify(localPort uint32) error
	Unbind(localPort uint32) error
	Close(localPort uint32) error
}

// MemoryMap abstracts mapping and unmapping a foreign domain's grant
// page, per spec §1(ii).
type MemoryMap interface {
	Map(domid uint16, pfnOffset uint64) (*ring.AllocatedPage, error)
	Unmap(page *ring.AllocatedPage) error
}

// Hypercall abstracts publishing the store event-channel parameter for
// a guest, per spec §1(iii).
type Hypercall interface {
	PublishEventChannel(domid uint16, port uint32) error
}
