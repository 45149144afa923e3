// File: internal/ring/loopback.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Loopback provides an in-process stand-in for a real domain peer,
// used by tests and by internal/simhost to drive a domain worker's ring
// without a real hypervisor event channel or grant mapping.
package ring

import "sync/atomic"

// Peer is the "other side" of a Page: it writes into req (as a guest
// would) and reads from rsp (as a guest would), the mirror image of
// what Transport does for the worker side.
type Peer struct {
	page     *Page
	notifier Notifier
}

// NewPeer builds a Peer sharing the same underlying page as a worker's Transport.
func NewPeer(page *Page, notifier Notifier) *Peer {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Peer{page: page, notifier: notifier}
}

// WriteRequest appends buf to the req ring, notifying the worker once done.
func (p *Peer) WriteRequest(buf []byte) {
	raw := p.page.raw
	written := 0
	for written < len(buf) {
		cons := p.page.reqCons()
		prod := p.page.reqProd()
		free := uint32(Size) - (prod - cons)
		if free == 0 {
			continue
		}
		remain := uint32(len(buf) - written)
		n := free
		if n > remain {
			n = remain
		}
		start := prod & mask
		end := start + n
		if end <= Size {
			copy(raw.Req[start:end], buf[written:written+int(n)])
		} else {
			first := Size - start
			copy(raw.Req[start:Size], buf[written:written+int(first)])
			copy(raw.Req[:n-first], buf[written+int(first):written+int(n)])
		}
		atomic.StoreUint32(&raw.ReqProd, prod+n)
		written += int(n)
	}
	p.notifier.Notify()
}

// ReadReply copies up to len(buf) bytes from the rsp ring, returning
// the count read (0 if empty, mirroring Transport.Read's semantics).
func (p *Peer) ReadReply(buf []byte) int {
	raw := p.page.raw
	prod := p.page.rspProd()
	cons := p.page.rspCons()
	if prod == cons {
		return 0
	}
	avail := prod - cons
	n := uint32(len(buf))
	if n > avail {
		n = avail
	}
	start := cons & mask
	end := start + n
	if end <= Size {
		copy(buf[:n], raw.Rsp[start:end])
	} else {
		first := Size - start
		copy(buf[:first], raw.Rsp[start:Size])
		copy(buf[first:n], raw.Rsp[:n-first])
	}
	atomic.StoreUint32(&raw.RspCons, cons+n)
	return int(n)
}

// NewLoopback allocates a single page and returns both a worker-side
// Transport and a guest-side Peer sharing it. notifyWorker is invoked
// after each WriteRequest (the callback a real event-channel
// bind(..., callback, ctx) would deliver to the worker); draining reply
// bytes does not invoke it. notifyPeer is the Transport's notifier.
// Either may be nil for a one-directional test harness.
func NewLoopback(notifyWorker, notifyPeer Notifier) (*Transport, *Peer) {
	raw := &rawPage{}
	page := NewPage(raw)

	t := NewTransport(page, notifyPeer)
	p := NewPeer(page, notifyWorker)
	return t, p
}
