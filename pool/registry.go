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

package pool

// DefaultRawBufferSize is the fixed raw buffer size B (spec section 4.1):
// large enough for any peer MTU. The reference codec (codec/tlv) fails to
// encode a message that would exceed this size.
const DefaultRawBufferSize = 32 * 1024

// Registry bundles the four pools one Client constructs at startup: stream,
// message, payload, raw-buffer. Capacity of all four equals MaxStreams, the
// client's maximum concurrent stream count.
type Registry struct {
	MaxStreams uint
	RawBuffers Pool[[]byte]
}

// NewRegistry allocates the raw-buffer pool for a client with the given
// maximum concurrent stream count and buffer size. Stream, message and
// payload pools are constructed by their owning packages (package stream,
// package client) since their element types are defined there; Registry
// only owns the byte-buffer pool shared by the codec.
func NewRegistry(maxStreams uint, bufSize int) *Registry {
	if bufSize <= 0 {
		bufSize = DefaultRawBufferSize
	}

	return &Registry{
		MaxStreams: maxStreams,
		RawBuffers: New[[]byte](maxStreams, func() []byte {
			return make([]byte, bufSize)
		}, func(b []byte) []byte {
			for i := range b {
				b[i] = 0
			}
			return b
		}),
	}
}
