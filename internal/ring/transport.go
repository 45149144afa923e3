// File: internal/ring/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package ring

import (
	"runtime"
	"sync/atomic"
)

// Notifier abstracts the event-channel notify(local_port) primitive,
// which is out of scope per spec §1(i) — the core only ever needs to
// invoke it, never implement it.
type Notifier interface {
	Notify()
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func()

func (f NotifierFunc) Notify() { f() }

// noopNotifier is used where no peer is attached yet.
type noopNotifier struct{}

func (noopNotifier) Notify() {}

// Transport is the worker-side handle for reading requests from and
// writing replies to a single domain's Page. A Transport is used by
// exactly one worker goroutine at a time, matching the "exclusive
// worker access to its own ring" assumption of spec §4.1.
type Transport struct {
	page     *Page
	notifier Notifier
}

// NewTransport builds a Transport over page, notifying peer via notifier.
func NewTransport(page *Page, notifier Notifier) *Transport {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Transport{page: page, notifier: notifier}
}

// Page exposes the underlying shared page, e.g. for Connection() checks.
func (t *Transport) Page() *Page { return t.page }

// Read copies up to len(buf) bytes from req[cons..prod) into buf,
// advancing cons. If no data is available it nudges the peer and
// returns 0, per spec §4.1. A single call may return fewer bytes than
// requested; callers loop until satisfied.
func (t *Transport) Read(buf []byte) int {
	raw := t.page.raw
	prod := t.page.reqProd()
	cons := t.page.reqCons()

	if prod == cons {
		t.notifier.Notify()
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
		copy(buf[:n], raw.Req[start:end])
	} else {
		first := Size - start
		copy(buf[:first], raw.Req[start:Size])
		copy(buf[first:n], raw.Req[:n-first])
	}

	atomic.StoreUint32(&raw.ReqCons, cons+n)
	return int(n)
}

// Write copies buf into rsp[prod..), advancing prod, looping while
// space is limited, per spec §4.1. It does not notify; callers notify
// after each completed logical reply.
func (t *Transport) Write(buf []byte) {
	raw := t.page.raw
	written := 0
	for written < len(buf) {
		cons := t.page.rspCons()
		prod := t.page.rspProd()
		free := uint32(Size) - (prod - cons)
		if free == 0 {
			// Peer hasn't drained yet; yield rather than pegging a core,
			// matching the backoff-free spin the real ring uses under the
			// hypervisor's own scheduler.
			t.notifier.Notify()
			runtime.Gosched()
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
			copy(raw.Rsp[start:end], buf[written:written+int(n)])
		} else {
			first := Size - start
			copy(raw.Rsp[start:Size], buf[written:written+int(first)])
			copy(raw.Rsp[:n-first], buf[written+int(first):written+int(n)])
		}

		atomic.StoreUint32(&raw.RspProd, prod+n)
		written += int(n)
	}
}

// Notify signals the peer's event channel.
func (t *Transport) Notify() {
	t.notifier.Notify()
}

// CheckReplyIndices self-heals the reply side per spec §4.1/§7: if an
// integrity check finds prod-cons > Size it resets both indices to
// zero rather than deadlocking the connection.
func (t *Transport) CheckReplyIndices() {
	cons := t.page.rspCons()
	prod := t.page.rspProd()
	if !IndicesOK(cons, prod) {
		t.page.ResetReplySide()
	}
}
