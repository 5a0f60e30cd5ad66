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

package tlv_test

import (
	"github.com/mink-run/gdt/codec"
	"github.com/mink-run/gdt/codec/tlv"
	"github.com/mink-run/gdt/crypt"
	"github.com/mink-run/gdt/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("encryptedCodec", func() {
	var (
		key   [32]byte
		nonce [12]byte
	)

	BeforeEach(func() {
		k, err := crypt.GenKey()
		Expect(err).To(BeNil())
		key = k

		n, err := crypt.GenNonce()
		Expect(err).To(BeNil())
		nonce = n
	})

	It("round-trips a message sealed under AES-GCM and tags encryption-info", func() {
		c, cerr := tlv.NewEncrypted(4096, key, nonce)
		Expect(cerr).To(BeNil())

		msg := wire.Message{
			Header: wire.Header{
				Version:     wire.Version,
				Source:      wire.Endpoint{Type: "gdtd", Id: "a"},
				Destination: wire.Endpoint{Type: "gdtd", Id: "b"},
				UUID:        [16]byte{1, 2, 3},
				SequenceNum: 7,
				SequenceFlg: wire.SeqStateless,
			},
		}

		buf := make([]byte, c.MaxMessageSize())
		n, err := c.Encode(&msg, buf, 1, false)
		Expect(err).To(BeNil())
		Expect(msg.Header.EncInfo).To(Equal([]byte{1}))

		var out wire.Message
		Expect(c.Decode(buf[:n], &out, 1)).To(BeNil())
		Expect(out.Header.Source).To(Equal(msg.Header.Source))
		Expect(out.Header.UUID).To(Equal(msg.Header.UUID))
		Expect(out.Header.EncInfo).To(Equal([]byte{1}))
	})

	It("refuses to decode with the wrong key", func() {
		c, cerr := tlv.NewEncrypted(4096, key, nonce)
		Expect(cerr).To(BeNil())

		wrongKey, err := crypt.GenKey()
		Expect(err).To(BeNil())
		other, cerr := tlv.NewEncrypted(4096, wrongKey, nonce)
		Expect(cerr).To(BeNil())

		msg := wire.Message{
			Header: wire.Header{
				Version:     wire.Version,
				Source:      wire.Endpoint{Type: "gdtd", Id: "a"},
				Destination: wire.Endpoint{Type: "gdtd", Id: "b"},
				SequenceFlg: wire.SeqStateless,
			},
		}

		buf := make([]byte, c.MaxMessageSize())
		n, err2 := c.Encode(&msg, buf, 1, false)
		Expect(err2).To(BeNil())

		var out wire.Message
		Expect(other.Decode(buf[:n], &out, 1)).ToNot(BeNil())
	})
})
