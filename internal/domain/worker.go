// File: internal/domain/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The worker loop of spec §4.7, grounded on the teacher's
// core/concurrency/eventloop.go batched-wake idiom (block on a channel,
// drain available work, repeat) and core/concurrency/executor.go's
// stopping-flag/stoppedCh confirmation handshake.
package domain

import (
	"time"

	"github.com/momentics/xenstore-go/internal/dispatch"
	"github.com/momentics/xenstore-go/internal/ring"
	"github.com/momentics/xenstore-go/internal/store"
	"github.com/momentics/xenstore-go/internal/wire"
)

func (c *Context) run() {
	defer close(c.stoppedCh)

	reconnectBO := newReconnectBackoff()

	for {
		if c.stopping.Load() {
			return
		}

		if c.pendingTxnEnd {
			wire.WriteMessage(c.transport, wire.Header{
				Type:  uint32(dispatch.OpTransactionEnd),
				ReqID: c.pendingReqID,
			}, nil)
			c.pendingTxnEnd = false
			c.EndTxn()
		}

		if !c.TxnActive() {
			c.drainWatchEvents()
		}

		if c.stopping.Load() {
			return
		}

		if c.transport.Page().Connection() != ring.ConnConnected {
			d := reconnectBO.NextBackOff()
			if d < 0 {
				reconnectBO.Reset()
				d = time.Millisecond
			}
			select {
			case <-c.wake:
			case <-time.After(d):
			}
			continue
		}
		reconnectBO.Reset()

		if !c.transport.Page().ReqPending() {
			<-c.wake
			if c.stopping.Load() {
				return
			}
		}

		msg, ok, err := wire.ReadMessage(c.transport)
		if err != nil {
			// Frame reader detected an oversized payload (§4.2/§7
			// E2BIG); nothing sane to decode, so move on rather than
			// wedging the worker.
			continue
		}
		if !ok {
			// Spurious wake (e.g. a watch-event wake from another
			// writer) with no request actually present.
			continue
		}

		c.transport.CheckReplyIndices()

		if msg.Header.Type == uint32(dispatch.OpTransactionEnd) {
			c.pendingTxnEnd = true
			c.pendingReqID = msg.Header.ReqID
			continue
		}

		hctx := &dispatch.HandlerCtx{
			Msg: dispatch.Header{
				Type:  msg.Header.Type,
				ReqID: msg.Header.ReqID,
				TxID:  msg.Header.TxID,
			},
			Payload: msg.Payload,
			Domain:  c,
			Tree:    c.deps.Tree,
			Watch:   c.deps.Watches,
		}
		reply := dispatch.Dispatch(dispatch.Opcode(msg.Header.Type), hctx)

		wire.WriteMessage(c.transport, wire.Header{
			Type:  reply.Type,
			ReqID: msg.Header.ReqID,
			TxID:  msg.Header.TxID,
		}, reply.Payload)
	}
}

// drainWatchEvents walks the pending queue for this domain and emits
// one WATCH_EVENT reply per matching watch, per spec §4.5 "Draining".
func (c *Context) drainWatchEvents() {
	events := c.deps.Watches.DrainFor(c.domid)
	for _, ev := range events {
		matches := c.deps.Watches.MatchesFor(c.domid, ev.Path)
		for _, m := range matches {
			reported := ev.Path
			if m.Relative {
				reported = store.StripDomainPrefix(reported, c.domid)
			}
			payload := append([]byte(reported), 0)
			payload = append(payload, m.Token...)
			payload = append(payload, 0)
			wire.WriteMessage(c.transport, wire.Header{
				Type: uint32(dispatch.OpWatchEvent),
			}, payload)
		}
	}
}
