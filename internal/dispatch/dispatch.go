// File: internal/dispatch/dispatch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package dispatch

import (
	"strconv"
	"strings"

	"github.com/momentics/xenstore-go/internal/store"
	"github.com/momentics/xenstore-go/internal/watch"
	"github.com/momentics/xenstore-go/internal/xserr"
)

// DomainHandle is the minimal view of a domain worker's state a
// handler needs. It exists so this package never imports internal/domain,
// breaking what would otherwise be a domain<->dispatch import cycle
// (domain needs Dispatch, dispatch needs the calling domain's state).
type DomainHandle interface {
	DomID() uint16
	Wake()
	TxnActive() bool
	BeginTxn() (id uint64, ok bool)
	EndTxn()
}

// HandlerCtx carries everything one handler invocation needs.
type HandlerCtx struct {
	Msg     Header
	Payload []byte

	Domain DomainHandle
	Tree   *store.Tree
	Watch  *watch.Registry
}

// Header is the subset of wire.Header the dispatcher consumes, kept
// local so this package doesn't need to import internal/wire.
type Header struct {
	Type  uint32
	ReqID uint32
	TxID  uint32
}

// Reply is a handler's result: a message type and payload to send back.
type Reply struct {
	Type    uint32
	Payload []byte
}

// Handler processes one decoded request and produces a reply.
type Handler func(ctx *HandlerCtx) (Reply, error)

var table [numOpcodes]Handler

func init() {
	table[OpControl] = handleControl
	table[OpDirectory] = handleDirectory
	table[OpRead] = handleRead
	table[OpGetPerms] = handleGetPerms
	table[OpSetPerms] = handleSetPerms
	table[OpWatch] = handleWatch
	table[OpUnwatch] = handleUnwatch
	table[OpTransactionStart] = handleTransactionStart
	table[OpTransactionEnd] = handleTransactionEnd
	table[OpGetDomainPath] = handleGetDomainPath
	table[OpWrite] = handleWrite
	table[OpMkdir] = handleMkdir
	table[OpRm] = handleRm
	table[OpResetWatches] = handleResetWatches
}

// errorReply builds an ERROR reply with a NUL-terminated XSD string
// payload, per spec §6/§7.
func errorReply(err error) Reply {
	xe := xserr.AsXSError(err)
	return Reply{Type: uint32(OpError), Payload: append([]byte(xe.WireString()), 0)}
}

// Dispatch looks up opcode in the static table and invokes its
// handler; unlisted opcodes reply ENOSYS, per spec §4.4.
func Dispatch(opcode Opcode, ctx *HandlerCtx) Reply {
	var h Handler
	if int(opcode) >= 0 && int(opcode) < numOpcodes {
		h = table[opcode]
	}
	if h == nil {
		return errorReply(xserr.ErrNoSys)
	}
	reply, err := h(ctx)
	if err != nil {
		return errorReply(err)
	}
	if reply.Type == 0 {
		reply.Type = ctx.Msg.Type
	}
	return reply
}

// splitPathValue parses a payload into a NUL-terminated path prefix
// and whatever trailing bytes follow (value or token), per spec §4.4
// "Payload parsing".
func splitPathValue(payload []byte) (path string, rest []byte, err error) {
	idx := -1
	for i, b := range payload {
		if b == 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", nil, xserr.ErrInvalid
	}
	return string(payload[:idx]), payload[idx+1:], nil
}

func reply(payload []byte) (Reply, error) {
	return Reply{Payload: payload}, nil
}

func okReply() (Reply, error) {
	return reply([]byte("OK\x00"))
}

func handleControl(ctx *HandlerCtx) (Reply, error) {
	return reply([]byte("OK\x00"))
}

func handleDirectory(ctx *HandlerCtx) (Reply, error) {
	path, err := pathOnly(ctx)
	if err != nil {
		return Reply{}, err
	}
	names := ctx.Tree.Directory(path)
	var buf []byte
	for _, n := range names {
		buf = append(buf, n...)
		buf = append(buf, 0)
	}
	return reply(buf)
}

func handleRead(ctx *HandlerCtx) (Reply, error) {
	path, err := pathOnly(ctx)
	if err != nil {
		return Reply{}, err
	}
	value, exists, _ := ctx.Tree.Read(path)
	if !exists {
		return Reply{}, xserr.ErrNotFound
	}
	return reply(value)
}

func handleGetPerms(ctx *HandlerCtx) (Reply, error) {
	return Reply{}, xserr.ErrNoSys
}

func handleSetPerms(ctx *HandlerCtx) (Reply, error) {
	return okReply()
}

func handleWatch(ctx *HandlerCtx) (Reply, error) {
	path, token, err := pathAndToken(ctx)
	if err != nil {
		return Reply{}, err
	}
	relative := len(ctx.Payload) > 0 && ctx.Payload[0] != '/'
	owner := watch.Owner{DomID: ctx.Domain.DomID(), Wake: ctx.Domain.Wake}
	ctx.Watch.Register(path, token, owner, relative)
	if _, exists, _ := ctx.Tree.Read(path); exists {
		ctx.Watch.FireSynthetic(path, ctx.Domain.DomID(), ctx.Domain.Wake)
	}
	return okReply()
}

func handleUnwatch(ctx *HandlerCtx) (Reply, error) {
	path, token, err := pathAndToken(ctx)
	if err != nil {
		return Reply{}, err
	}
	ctx.Watch.Unwatch(ctx.Domain.DomID(), path, token)
	return reply(nil)
}

func handleTransactionStart(ctx *HandlerCtx) (Reply, error) {
	id, ok := ctx.Domain.BeginTxn()
	if !ok {
		return Reply{}, xserr.ErrBusy
	}
	return reply([]byte(strconv.FormatUint(id, 10) + "\x00"))
}

func handleTransactionEnd(ctx *HandlerCtx) (Reply, error) {
	// The actual reply is deferred to the worker's next loop iteration
	// per spec §4.4/§4.7; BeginTxn/EndTxn bookkeeping happens there too.
	// This handler is present for completeness of the opcode table but
	// is not reachable: the worker intercepts TRANSACTION_END before
	// dispatch (see internal/domain's worker loop).
	ctx.Domain.EndTxn()
	return reply(nil)
}

func handleGetDomainPath(ctx *HandlerCtx) (Reply, error) {
	return reply(append([]byte(store.DomainPath(parseDomID(ctx.Payload))), 0))
}

func parseDomID(payload []byte) uint16 {
	s := strings.TrimRight(string(payload), "\x00")
	v, _ := strconv.ParseUint(s, 10, 16)
	return uint16(v)
}

func handleWrite(ctx *HandlerCtx) (Reply, error) {
	path, value, err := pathAndRest(ctx)
	if err != nil {
		return Reply{}, err
	}
	if err := ctx.Tree.Write(path, value); err != nil {
		return Reply{}, err
	}
	ctx.Watch.Fire(path, ctx.Domain.DomID())
	return okReply()
}

func handleMkdir(ctx *HandlerCtx) (Reply, error) {
	path, err := pathOnly(ctx)
	if err != nil {
		return Reply{}, err
	}
	if err := ctx.Tree.Write(path, nil); err != nil {
		return Reply{}, err
	}
	ctx.Watch.Fire(path, ctx.Domain.DomID())
	return okReply()
}

func handleRm(ctx *HandlerCtx) (Reply, error) {
	path, err := pathOnly(ctx)
	if err != nil {
		return Reply{}, err
	}
	if err := ctx.Tree.Remove(path); err != nil {
		// spec §9: the real source emits no reply at all when the
		// remove fails; spec.md prescribes always replying, so unlike
		// the source we still surface an ENOENT here. The success case
		// below always replies, with an empty payload.
		return Reply{}, err
	}
	ctx.Watch.Fire(path, ctx.Domain.DomID())
	return reply(nil)
}

func handleResetWatches(ctx *HandlerCtx) (Reply, error) {
	ctx.Watch.ResetAll()
	return okReply()
}

func pathOnly(ctx *HandlerCtx) (string, error) {
	raw, _, err := splitPathValue(ctx.Payload)
	if err != nil {
		return "", err
	}
	return store.ConstructPath(raw, ctx.Domain.DomID())
}

func pathAndRest(ctx *HandlerCtx) (string, []byte, error) {
	rawPath, rest, err := splitPathValue(ctx.Payload)
	if err != nil {
		return "", nil, err
	}
	path, err := store.ConstructPath(rawPath, ctx.Domain.DomID())
	if err != nil {
		return "", nil, err
	}
	return path, rest, nil
}

// pathAndToken is pathAndRest specialized for WATCH/UNWATCH, whose
// payload is two NUL-terminated strings ("path\0token\0"): unlike a
// WRITE value, the token carries its own trailing NUL that must be
// stripped rather than treated as token data.
func pathAndToken(ctx *HandlerCtx) (string, string, error) {
	path, rest, err := pathAndRest(ctx)
	if err != nil {
		return "", "", err
	}
	return path, strings.TrimSuffix(string(rest), "\x00"), nil
}
