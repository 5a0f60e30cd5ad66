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

// Package codec declares the TLV codec adapter interface consumed by the
// core (spec section 4.2, component C2). The codec itself is treated as an
// external collaborator by spec.md; this package only fixes the shape the
// core calls through. Package codec/tlv provides a reference implementation
// used by tests and local development.
package codec

import (
	liberr "github.com/mink-run/gdt/errors"
	"github.com/mink-run/gdt/wire"
)

// SessionId identifies one concurrent "session" of codec scratch state, so
// a single Codec instance can be shared read-only across goroutines while
// each caller's decode/encode scratch (e.g. already-linked node buffers
// under mem_switch) stays isolated per session (spec section 4.2).
type SessionId uint64

// Codec adapts the wire.Message struct tree to and from bytes.
type Codec interface {
	// Decode parses raw bytes produced by a peer's Encode into out.
	// Variable-length fields are sliced directly from raw rather than
	// copied into scratch buffers, so Decode takes no pool argument; the
	// caller owns raw for as long as out is in use. sessionID scopes
	// reusable decode state across concurrent callers.
	Decode(raw []byte, out *wire.Message, session SessionId) liberr.Error

	// Encode serializes msg into buf, returning the number of bytes
	// written. memSwitch hints that already-linked node value buffers may
	// be referenced directly instead of copied (spec section 4.2); the
	// reference codec honors it on a best-effort basis only.
	Encode(msg *wire.Message, buf []byte, session SessionId, memSwitch bool) (int, liberr.Error)

	// MaxMessageSize returns the fixed raw buffer size B the codec will
	// refuse to exceed (spec section 4.1).
	MaxMessageSize() int
}
