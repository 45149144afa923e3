// File: internal/ring/page.go
// Package ring implements the shared-memory ring transport between a
// XenStore worker and its peer domain: the split req/rsp byte rings,
// producer/consumer index bookkeeping, and notification hookup.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Index fields are plain uint32s accessed exclusively through
// sync/atomic, mirroring the atomic head/tail discipline of the
// teacher's pool/ring.go and core/concurrency/ring.go ring buffers.
package ring

import "sync/atomic"

// Size is the platform ring size in bytes, fixed at the well-known
// XenStore XENSTORE_RING_SIZE. Must be a power of two.
const Size = 1024

// mask isolates the low log2(Size) bits of a free-running index.
const mask = Size - 1

// ServerFeatureReconnection is bit 0 of server_features.
const ServerFeatureReconnection = 1 << 0

// Connection status values for the connection word.
const (
	ConnConnected    = 0
	ConnReconnecting = 1
)

// rawPage is the exact on-page layout shared with the peer domain,
// little-endian, as described in spec §6:
//
//	offset 0             req[Size]
//	offset Size          rsp[Size]
//	+ req_cons, req_prod, rsp_cons, rsp_prod uint32
//	+ server_features uint32
//	+ connection uint32
type rawPage struct {
	Req  [Size]byte
	Rsp  [Size]byte

	ReqCons uint32
	ReqProd uint32
	RspCons uint32
	RspProd uint32

	ServerFeatures uint32
	Connection     uint32
}

// Page is a worker-side view over a mapped rawPage.
type Page struct {
	raw *rawPage
}

// NewPage wraps a freshly mapped page, setting its connection word to
// connected and publishing the reconnection feature bit, per spec §4.6
// "Starting". The ring indices are left as found.
func NewPage(raw *rawPage) *Page {
	p := &Page{raw: raw}
	atomic.StoreUint32(&raw.ServerFeatures, ServerFeatureReconnection)
	atomic.StoreUint32(&raw.Connection, ConnConnected)
	return p
}

func (p *Page) reqCons() uint32 { return atomic.LoadUint32(&p.raw.ReqCons) }
func (p *Page) reqProd() uint32 { return atomic.LoadUint32(&p.raw.ReqProd) }
func (p *Page) rspCons() uint32 { return atomic.LoadUint32(&p.raw.RspCons) }
func (p *Page) rspProd() uint32 { return atomic.LoadUint32(&p.raw.RspProd) }

// ReqPending reports whether the request ring has unread bytes.
func (p *Page) ReqPending() bool {
	return p.reqProd() != p.reqCons()
}

// Connection returns the current connection status word.
func (p *Page) Connection() uint32 {
	return atomic.LoadUint32(&p.raw.Connection)
}

// IndicesOK reports whether prod-cons is within the ring's capacity,
// per spec §4.1 indices_ok.
func IndicesOK(cons, prod uint32) bool {
	return prod-cons <= Size
}

// ResetReplySide zeroes both reply indices, the self-heal action spec
// §4.1/§7 prescribes when the reply ring's indices are found corrupt.
func (p *Page) ResetReplySide() {
	atomic.StoreUint32(&p.raw.RspCons, 0)
	atomic.StoreUint32(&p.raw.RspProd, 0)
}
