package dispatch

import (
	"testing"

	"github.com/momentics/xenstore-go/internal/store"
	"github.com/momentics/xenstore-go/internal/watch"
)

type fakeDomain struct {
	domid   uint16
	woken   int
	txnID   uint64
	txnOpen bool
}

func (f *fakeDomain) DomID() uint16 { return f.domid }
func (f *fakeDomain) Wake()         { f.woken++ }
func (f *fakeDomain) TxnActive() bool { return f.txnOpen }
func (f *fakeDomain) BeginTxn() (uint64, bool) {
	if f.txnOpen {
		return 0, false
	}
	f.txnID++
	f.txnOpen = true
	return f.txnID, true
}
func (f *fakeDomain) EndTxn() { f.txnOpen = false }

func newCtx(domid uint16, msgType uint32, payload []byte) (*HandlerCtx, *fakeDomain, *store.Tree, *watch.Registry) {
	tree := store.New()
	reg := watch.New(nil)
	dom := &fakeDomain{domid: domid}
	ctx := &HandlerCtx{
		Msg:     Header{Type: msgType, ReqID: 1},
		Payload: payload,
		Domain:  dom,
		Tree:    tree,
		Watch:   reg,
	}
	return ctx, dom, tree, reg
}

func nulJoin(parts ...string) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
		out = append(out, 0)
	}
	return out
}

func TestWriteThenRead(t *testing.T) {
	writeCtx, _, tree, reg := newCtx(1, uint32(OpWrite), append([]byte("/local/domain/1/example\x00"), []byte("hello")...))
	reply := Dispatch(OpWrite, writeCtx)
	if reply.Type == uint32(OpError) {
		t.Fatalf("WRITE returned an error reply: %q", reply.Payload)
	}
	if string(reply.Payload) != "OK\x00" {
		t.Errorf("WRITE reply payload = %q, want OK\\0", reply.Payload)
	}

	readCtx := &HandlerCtx{
		Msg:     Header{Type: uint32(OpRead)},
		Payload: []byte("/local/domain/1/example\x00"),
		Domain:  &fakeDomain{domid: 1},
		Tree:    tree,
		Watch:   reg,
	}
	reply = Dispatch(OpRead, readCtx)
	if string(reply.Payload) != "hello" {
		t.Errorf("READ reply = %q, want %q", reply.Payload, "hello")
	}
}

func TestReadMissingPathReturnsErrorReply(t *testing.T) {
	ctx, _, _, _ := newCtx(1, uint32(OpRead), []byte("/local/domain/1/missing\x00"))
	reply := Dispatch(OpRead, ctx)
	if reply.Type != uint32(OpError) {
		t.Fatalf("expected an ERROR reply, got type %d payload %q", reply.Type, reply.Payload)
	}
	if string(reply.Payload) != "ENOENT\x00" {
		t.Errorf("error payload = %q, want ENOENT\\0", reply.Payload)
	}
}

func TestDirectoryListing(t *testing.T) {
	ctx, _, tree, _ := newCtx(1, uint32(OpDirectory), nil)
	tree.Write("/local/domain/1/a", nil)
	tree.Write("/local/domain/1/b", nil)

	ctx.Payload = []byte("/local/domain/1\x00")
	reply := Dispatch(OpDirectory, ctx)

	want := "a\x00b\x00"
	if string(reply.Payload) != want {
		t.Errorf("DIRECTORY reply = %q, want %q", reply.Payload, want)
	}
}

func TestRmSuccessAlwaysEmptyReply(t *testing.T) {
	ctx, _, tree, _ := newCtx(1, uint32(OpRm), []byte("/local/domain/1/a\x00"))
	tree.Write("/local/domain/1/a", []byte("v"))

	reply := Dispatch(OpRm, ctx)
	if reply.Type != uint32(OpRm) {
		t.Errorf("RM success reply type = %d, want %d", reply.Type, OpRm)
	}
	if len(reply.Payload) != 0 {
		t.Errorf("RM success reply payload = %q, want empty", reply.Payload)
	}
}

func TestRmMissingPathErrors(t *testing.T) {
	ctx, _, _, _ := newCtx(1, uint32(OpRm), []byte("/local/domain/1/nope\x00"))
	reply := Dispatch(OpRm, ctx)
	if reply.Type != uint32(OpError) {
		t.Errorf("RM of a missing path should produce an ERROR reply, got type %d", reply.Type)
	}
}

func TestWatchTokenHasNoEmbeddedNul(t *testing.T) {
	ctx, dom, _, reg := newCtx(1, uint32(OpWatch), nulJoin("/local/domain/1/a", "my-token"))
	Dispatch(OpWatch, ctx)

	matches := reg.MatchesFor(dom.domid, "/local/domain/1/a")
	if len(matches) != 1 {
		t.Fatalf("expected one registered watch, got %d", len(matches))
	}
	if matches[0].Token != "my-token" {
		t.Errorf("watch token = %q, want %q with no embedded NUL", matches[0].Token, "my-token")
	}
}

func TestWatchSyntheticFireForExistingPath(t *testing.T) {
	ctx, dom, tree, reg := newCtx(1, uint32(OpWatch), nulJoin("/local/domain/1/a", "tok"))
	tree.Write("/local/domain/1/a", []byte("already-there"))

	Dispatch(OpWatch, ctx)

	events := reg.DrainFor(dom.domid)
	if len(events) != 1 {
		t.Errorf("WATCH on an existing path should enqueue a synthetic event, got %d", len(events))
	}
}

func TestUnwatchRemovesRegisteredWatch(t *testing.T) {
	ctx, dom, _, reg := newCtx(1, uint32(OpWatch), nulJoin("/a", "tok"))
	Dispatch(OpWatch, ctx)

	unwatchCtx := &HandlerCtx{
		Msg:     Header{Type: uint32(OpUnwatch)},
		Payload: nulJoin("/a", "tok"),
		Domain:  dom,
		Tree:    ctx.Tree,
		Watch:   reg,
	}
	Dispatch(OpUnwatch, unwatchCtx)

	if matches := reg.MatchesFor(dom.domid, "/a"); len(matches) != 0 {
		t.Errorf("UNWATCH should remove the watch, %d remain", len(matches))
	}
}

func TestTransactionStartRejectsNested(t *testing.T) {
	ctx, _, _, _ := newCtx(1, uint32(OpTransactionStart), nil)
	first := Dispatch(OpTransactionStart, ctx)
	if first.Type == uint32(OpError) {
		t.Fatalf("first TRANSACTION_START should succeed, got error %q", first.Payload)
	}

	second := Dispatch(OpTransactionStart, ctx)
	if second.Type != uint32(OpError) {
		t.Error("a second TRANSACTION_START while one is open should fail")
	}
}

func TestGetDomainPath(t *testing.T) {
	ctx, _, _, _ := newCtx(0, uint32(OpGetDomainPath), []byte("7\x00"))
	reply := Dispatch(OpGetDomainPath, ctx)
	if string(reply.Payload) != "/local/domain/7\x00" {
		t.Errorf("GET_DOMAIN_PATH reply = %q, want %q", reply.Payload, "/local/domain/7\x00")
	}
}

func TestUnknownOpcodeReturnsENOSYS(t *testing.T) {
	ctx, _, _, _ := newCtx(1, 255, nil)
	reply := Dispatch(Opcode(255), ctx)
	if reply.Type != uint32(OpError) || string(reply.Payload) != "ENOSYS\x00" {
		t.Errorf("unknown opcode reply = type %d payload %q, want ERROR/ENOSYS", reply.Type, reply.Payload)
	}
}

func TestWriteRejectsPayloadWithoutNul(t *testing.T) {
	ctx, _, _, _ := newCtx(1, uint32(OpWrite), []byte("no-nul-here"))
	reply := Dispatch(OpWrite, ctx)
	if reply.Type != uint32(OpError) || string(reply.Payload) != "EINVAL\x00" {
		t.Errorf("malformed WRITE reply = type %d payload %q, want ERROR/EINVAL", reply.Type, reply.Payload)
	}
}
