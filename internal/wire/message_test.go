package wire

import (
	"testing"

	"github.com/momentics/xenstore-go/internal/ring"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	transport, peer := ring.NewLoopback(nil, nil)

	hdr := Header{Type: 11, ReqID: 42, TxID: 0}
	payload := []byte("/local/domain/1/example\x00value")
	peer.WriteRequest(Encode(hdr, payload))

	msg, ok, err := ReadMessage(transport)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !ok {
		t.Fatal("ReadMessage returned ok=false for a complete frame")
	}
	if msg.Header.Type != hdr.Type || msg.Header.ReqID != hdr.ReqID {
		t.Errorf("header mismatch: got %+v, want type/reqid %d/%d", msg.Header, hdr.Type, hdr.ReqID)
	}
	if string(msg.Payload) != string(payload) {
		t.Errorf("payload mismatch: got %q, want %q", msg.Payload, payload)
	}
}

func TestReadMessageSpuriousWake(t *testing.T) {
	transport, _ := ring.NewLoopback(nil, nil)

	_, ok, err := ReadMessage(transport)
	if err != nil {
		t.Fatalf("ReadMessage on empty ring returned error: %v", err)
	}
	if ok {
		t.Error("ReadMessage on empty ring should report ok=false")
	}
}

func TestReadMessageOversizedPayload(t *testing.T) {
	transport, peer := ring.NewLoopback(nil, nil)

	hdr := Header{Type: 11}
	hdrBuf := hdr.encode()
	// Hand-craft an oversized length field, larger than any ring can carry.
	hdrBuf[12] = 0xff
	hdrBuf[13] = 0xff
	hdrBuf[14] = 0xff
	hdrBuf[15] = 0x7f
	peer.WriteRequest(hdrBuf)

	_, _, err := ReadMessage(transport)
	if err == nil {
		t.Fatal("ReadMessage should reject a header claiming an oversized payload")
	}
}

func TestEncodeDecode(t *testing.T) {
	hdr := Header{Type: 2, ReqID: 7, TxID: 3}
	payload := []byte("payload-bytes")
	buf := Encode(hdr, payload)

	msg, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Header != (Header{Type: 2, ReqID: 7, TxID: 3, Len: uint32(len(payload))}) {
		t.Errorf("Decode header mismatch: %+v", msg.Header)
	}
	if string(msg.Payload) != string(payload) {
		t.Errorf("Decode payload mismatch: got %q, want %q", msg.Payload, payload)
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Error("Decode should reject a buffer shorter than the header")
	}
}
