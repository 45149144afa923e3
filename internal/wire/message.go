// File: internal/wire/message.go
// Package wire implements the XenStore message framer: reassembling a
// fixed header plus variable payload from the ring transport into a
// single in-memory message, and serializing replies back out.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Encode/decode shape follows the teacher's core/protocol/frame_codec.go
// (explicit size-limit checks, encoding/binary for the wire format);
// the exact field order is cross-checked against the real XenStore Go
// client (unikraft-kraftkit's machine/xen package: Op, ReqID, TxID,
// Length, little-endian).
package wire

import (
	"encoding/binary"

	"github.com/momentics/xenstore-go/internal/ring"
	"github.com/momentics/xenstore-go/internal/xserr"
)

// HeaderSize is the fixed wire header length in bytes.
const HeaderSize = 16

// MaxPayload is the largest payload length a single ring can carry.
const MaxPayload = ring.Size - HeaderSize

// Header is the fixed 16-byte XenStore message header.
type Header struct {
	Type  uint32
	ReqID uint32
	TxID  uint32
	Len   uint32
}

// Message is a fully reassembled request or reply.
type Message struct {
	Header  Header
	Payload []byte
}

func (h Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Type)
	binary.LittleEndian.PutUint32(buf[4:8], h.ReqID)
	binary.LittleEndian.PutUint32(buf[8:12], h.TxID)
	binary.LittleEndian.PutUint32(buf[12:16], h.Len)
	return buf
}

func decodeHeader(buf []byte) Header {
	return Header{
		Type:  binary.LittleEndian.Uint32(buf[0:4]),
		ReqID: binary.LittleEndian.Uint32(buf[4:8]),
		TxID:  binary.LittleEndian.Uint32(buf[8:12]),
		Len:   binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// reader is the minimal ring.Transport surface the framer needs.
type reader interface {
	Read(buf []byte) int
}

// writer is the minimal ring.Transport surface the framer needs to reply.
type writer interface {
	Write(buf []byte)
	Notify()
}

// ReadMessage reassembles one message from t, per spec §4.2: the
// header is read in a loop until fully assembled; a zero-byte partial
// read during header assembly means a spurious wake (e.g. a watch-event
// wake unrelated to this domain's ring) and is reported via ok=false
// with a nil error so the caller's loop can simply continue.
func ReadMessage(t reader) (msg *Message, ok bool, err error) {
	hdrBuf := make([]byte, HeaderSize)
	got := 0
	for got < HeaderSize {
		n := t.Read(hdrBuf[got:])
		if n == 0 {
			if got == 0 {
				return nil, false, nil
			}
			continue
		}
		got += n
	}

	hdr := decodeHeader(hdrBuf)
	if hdr.Len > MaxPayload {
		return nil, false, xserr.ErrTooBig
	}

	payload := make([]byte, hdr.Len)
	got = 0
	for got < int(hdr.Len) {
		n := t.Read(payload[got:])
		if n == 0 {
			continue
		}
		got += n
	}

	return &Message{Header: hdr, Payload: payload}, true, nil
}

// WriteMessage emits header then payload, notifying the peer after
// each, per spec §4.2.
func WriteMessage(t writer, hdr Header, payload []byte) {
	hdr.Len = uint32(len(payload))
	t.Write(hdr.encode())
	t.Notify()
	if len(payload) > 0 {
		t.Write(payload)
	}
	t.Notify()
}

// Encode serializes hdr and payload into a single wire frame. Unlike
// WriteMessage it performs no ring I/O; it exists for guest-side
// callers (e.g. the loopback demo harness) that hold a whole frame in
// memory before handing it to a ring.Peer.
func Encode(hdr Header, payload []byte) []byte {
	hdr.Len = uint32(len(payload))
	return append(hdr.encode(), payload...)
}

// Decode parses a single complete frame previously assembled from
// buf, the mirror of Encode.
func Decode(buf []byte) (*Message, error) {
	if len(buf) < HeaderSize {
		return nil, xserr.New(xserr.CodeEINVAL, "short frame")
	}
	hdr := decodeHeader(buf[:HeaderSize])
	if int(hdr.Len) > len(buf)-HeaderSize {
		return nil, xserr.New(xserr.CodeEINVAL, "truncated frame")
	}
	payload := make([]byte, hdr.Len)
	copy(payload, buf[HeaderSize:HeaderSize+int(hdr.Len)])
	return &Message{Header: hdr, Payload: payload}, nil
}
