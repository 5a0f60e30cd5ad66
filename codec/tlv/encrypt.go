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

package tlv

import (
	codecpkg "github.com/mink-run/gdt/codec"
	"github.com/mink-run/gdt/crypt"
	liberr "github.com/mink-run/gdt/errors"
	"github.com/mink-run/gdt/wire"
)

// encryptedCodec wraps the reference TLV codec with AES-256-GCM
// confidentiality over the fully-framed message, using the teacher's crypt
// package. It fills the wire schema's optional encryption-info header
// field (spec section 6) with a one-byte marker so a peer without the
// matching key sees a recognizably sealed message rather than a framing
// error. The inner codec still owns TLV layout; this type only adds a
// seal/open pass around the bytes that actually cross the wire.
type encryptedCodec struct {
	inner codecpkg.Codec
	seal  crypt.Crypt
}

// NewEncrypted wraps a maxSize-bounded TLV codec with AES-256-GCM sealing
// keyed by key/nonce. Use crypt.GenKey/crypt.GenNonce to mint a pair, or
// crypt.GetHexKey/crypt.GetHexNonce to load one from configuration. Both
// ends of an association must share the same key and nonce.
func NewEncrypted(maxSize int, key [32]byte, nonce [12]byte) (codecpkg.Codec, liberr.Error) {
	seal, err := crypt.New(key, nonce)
	if err != nil {
		return nil, codecpkg.ErrorMalformed.Error(err)
	}
	return &encryptedCodec{inner: New(maxSize), seal: seal}, nil
}

func (e *encryptedCodec) MaxMessageSize() int {
	return e.inner.MaxMessageSize()
}

func (e *encryptedCodec) Encode(msg *wire.Message, buf []byte, session codecpkg.SessionId, memSwitch bool) (int, liberr.Error) {
	if msg.Header.EncInfo == nil {
		msg.Header.EncInfo = []byte{1}
	}

	scratch := make([]byte, e.inner.MaxMessageSize())
	n, err := e.inner.Encode(msg, scratch, session, memSwitch)
	if err != nil {
		return 0, err
	}

	sealed := e.seal.Encode(scratch[:n])
	if len(sealed) > len(buf) {
		return 0, codecpkg.ErrorOverflow.Error(nil)
	}
	return copy(buf, sealed), nil
}

func (e *encryptedCodec) Decode(raw []byte, out *wire.Message, session codecpkg.SessionId) liberr.Error {
	plain, err := e.seal.Decode(raw)
	if err != nil {
		return codecpkg.ErrorMalformed.Error(err)
	}
	return e.inner.Decode(plain, out, session)
}
