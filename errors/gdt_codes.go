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

package errors

import "fmt"

// GDT wire-level error codes. These mirror the ErrorStatus enum fixed by the
// wire schema (wire.ErrorStatus) one-for-one, so a protocol failure and its
// Go error value carry the same numeric code end to end (spec section 7).
const (
	GdtOutOfSequence CodeError = iota + 50
	GdtUnknownSequence
	GdtUnsupportedVersion
	GdtTimeout
	GdtUnknownRoute
	GdtRoutingNotSupported
	GdtMaxHopsExceeded
)

func init() {
	if ExistInMapMessage(GdtOutOfSequence) {
		panic(fmt.Errorf("error code collision with package gdt/errors wire codes"))
	}
	RegisterIdFctMessage(GdtOutOfSequence, gdtWireMessage)
}

func gdtWireMessage(code CodeError) (message string) {
	switch code {
	case GdtOutOfSequence:
		return "sequence number does not match stream expectation"
	case GdtUnknownSequence:
		return "sequence fragment received for unknown stream uuid"
	case GdtUnsupportedVersion:
		return "header version is not supported by this peer"
	case GdtTimeout:
		return "stream exceeded its per-client timeout"
	case GdtUnknownRoute:
		return "no route found for destination endpoint"
	case GdtRoutingNotSupported:
		return "routing is disabled on this client"
	case GdtMaxHopsExceeded:
		return "hop counter exceeded its maximum before reaching destination"
	}
	return NullMessage
}
