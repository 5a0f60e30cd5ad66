/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package tlv is a reference implementation of codec.Codec (spec section
// 4.2). It frames the fixed wire.Message schema as a sequence of
// (tag, length, value) triplets and serializes each Body kind's Parameters
// with CBOR, the way the teacher's encoding/mux package already reaches for
// CBOR to frame sub-messages on a shared stream. Production deployments are
// expected to supply their own codec.Codec backed by a generated ASN.1
// stack; this package exists for tests and local development.
package tlv

import (
	"encoding/binary"
	"sync"

	libcbr "github.com/fxamacker/cbor/v2"

	liberr "github.com/mink-run/gdt/errors"
	codecpkg "github.com/mink-run/gdt/codec"
	"github.com/mink-run/gdt/wire"
)

const (
	flagEncInfo byte = 1 << iota
	flagHopInfo
	flagStatus
)

type session struct {
	scratch []byte
}

type tlvCodec struct {
	maxSize int

	mu   sync.Mutex
	sess map[codecpkg.SessionId]*session
}

// New constructs a reference TLV codec that refuses to encode messages
// larger than maxSize bytes (see pool.DefaultRawBufferSize).
func New(maxSize int) codecpkg.Codec {
	return &tlvCodec{
		maxSize: maxSize,
		sess:    make(map[codecpkg.SessionId]*session),
	}
}

func (c *tlvCodec) MaxMessageSize() int {
	return c.maxSize
}

func (c *tlvCodec) scratchFor(id codecpkg.SessionId) *session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sess[id]
	if !ok {
		s = &session{}
		c.sess[id] = s
	}
	return s
}

func putString(buf *[]byte, s string) {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(s)))
	*buf = append(*buf, l[:]...)
	*buf = append(*buf, s...)
}

func getString(raw []byte, off int) (string, int, liberr.Error) {
	if off+2 > len(raw) {
		return "", off, codecpkg.ErrorTruncated.Error(nil)
	}
	l := int(binary.BigEndian.Uint16(raw[off:]))
	off += 2
	if off+l > len(raw) {
		return "", off, codecpkg.ErrorTruncated.Error(nil)
	}
	return string(raw[off : off+l]), off + l, nil
}

func putBytes(buf *[]byte, b []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(b)))
	*buf = append(*buf, l[:]...)
	*buf = append(*buf, b...)
}

func getBytes(raw []byte, off int) ([]byte, int, liberr.Error) {
	if off+4 > len(raw) {
		return nil, off, codecpkg.ErrorTruncated.Error(nil)
	}
	l := int(binary.BigEndian.Uint32(raw[off:]))
	off += 4
	if l < 0 || off+l > len(raw) {
		return nil, off, codecpkg.ErrorTruncated.Error(nil)
	}
	return raw[off : off+l], off + l, nil
}

func (c *tlvCodec) Encode(msg *wire.Message, buf []byte, sessionID codecpkg.SessionId, memSwitch bool) (int, liberr.Error) {
	_ = c.scratchFor(sessionID)
	_ = memSwitch

	var out = make([]byte, 0, 256)

	out = append(out, msg.Header.Version)
	putString(&out, msg.Header.Source.Type)
	putString(&out, msg.Header.Source.Id)
	putString(&out, msg.Header.Destination.Type)
	putString(&out, msg.Header.Destination.Id)
	out = append(out, msg.Header.UUID[:]...)

	var seq [4]byte
	binary.BigEndian.PutUint32(seq[:], msg.Header.SequenceNum)
	out = append(out, seq[:]...)
	out = append(out, byte(msg.Header.SequenceFlg))

	var flags byte
	if msg.Header.EncInfo != nil {
		flags |= flagEncInfo
	}
	if msg.Header.Hop != nil {
		flags |= flagHopInfo
	}
	if msg.Header.Status != nil {
		flags |= flagStatus
	}
	out = append(out, flags)

	if flags&flagEncInfo != 0 {
		putBytes(&out, msg.Header.EncInfo)
	}
	if flags&flagHopInfo != 0 {
		out = append(out, msg.Header.Hop.Current, msg.Header.Hop.Max)
	}
	if flags&flagStatus != 0 {
		out = append(out, byte(*msg.Header.Status))
	}

	if msg.Body == nil {
		out = append(out, byte(wire.BodyNone))
	} else {
		out = append(out, byte(msg.Body.Kind))
		body, err := libcbr.Marshal(msg.Body)
		if err != nil {
			return 0, codecpkg.ErrorMalformed.Error(err)
		}
		putBytes(&out, body)
	}

	if len(out) > c.maxSize || len(out) > len(buf) {
		return 0, codecpkg.ErrorOverflow.Error(nil)
	}

	n := copy(buf, out)
	return n, nil
}

func (c *tlvCodec) Decode(raw []byte, out *wire.Message, sessionID codecpkg.SessionId) liberr.Error {
	_ = c.scratchFor(sessionID)

	if len(raw) > c.maxSize {
		return codecpkg.ErrorOverflow.Error(nil)
	}
	if len(raw) < 1+2+2+2+2+16+4+1+1 {
		return codecpkg.ErrorTruncated.Error(nil)
	}

	off := 0
	out.Header.Version = raw[off]
	off++

	var e liberr.Error
	if out.Header.Source.Type, off, e = getString(raw, off); e != nil {
		return e
	}
	if out.Header.Source.Id, off, e = getString(raw, off); e != nil {
		return e
	}
	if out.Header.Destination.Type, off, e = getString(raw, off); e != nil {
		return e
	}
	if out.Header.Destination.Id, off, e = getString(raw, off); e != nil {
		return e
	}

	if off+16 > len(raw) {
		return codecpkg.ErrorTruncated.Error(nil)
	}
	copy(out.Header.UUID[:], raw[off:off+16])
	off += 16

	if off+4 > len(raw) {
		return codecpkg.ErrorTruncated.Error(nil)
	}
	out.Header.SequenceNum = binary.BigEndian.Uint32(raw[off:])
	off += 4

	if off+1 > len(raw) {
		return codecpkg.ErrorTruncated.Error(nil)
	}
	out.Header.SequenceFlg = wire.SequenceFlag(raw[off])
	off++

	if off+1 > len(raw) {
		return codecpkg.ErrorTruncated.Error(nil)
	}
	flags := raw[off]
	off++

	out.Header.EncInfo = nil
	out.Header.Hop = nil
	out.Header.Status = nil

	if flags&flagEncInfo != 0 {
		var b []byte
		if b, off, e = getBytes(raw, off); e != nil {
			return e
		}
		out.Header.EncInfo = b
	}
	if flags&flagHopInfo != 0 {
		if off+2 > len(raw) {
			return codecpkg.ErrorTruncated.Error(nil)
		}
		out.Header.Hop = &wire.HopInfo{Current: raw[off], Max: raw[off+1]}
		off += 2
	}
	if flags&flagStatus != 0 {
		if off+1 > len(raw) {
			return codecpkg.ErrorTruncated.Error(nil)
		}
		st := wire.ErrorStatus(raw[off])
		out.Header.Status = &st
		off++
	}

	if off+1 > len(raw) {
		return codecpkg.ErrorTruncated.Error(nil)
	}
	kind := wire.BodyKind(raw[off])
	off++

	if kind == wire.BodyNone {
		out.Body = nil
		return nil
	}

	var payload []byte
	if payload, off, e = getBytes(raw, off); e != nil {
		return e
	}

	body := &wire.Body{}
	if err := libcbr.Unmarshal(payload, body); err != nil {
		return codecpkg.ErrorMalformed.Error(err)
	}
	body.Kind = kind
	out.Body = body

	return nil
}
