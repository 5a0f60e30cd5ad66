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

package statemachine

import (
	"fmt"

	liberr "github.com/mink-run/gdt/errors"
)

const (
	ErrorUnsupportedVersion liberr.CodeError = iota + liberr.MinPkgStateMachine
	ErrorUnknownRoute
	ErrorMaxHopsExceeded
	ErrorOutOfSequence
	ErrorUnknownSequence
)

func init() {
	if liberr.ExistInMapMessage(ErrorUnsupportedVersion) {
		panic(fmt.Errorf("error code collision with package gdt/statemachine"))
	}
	liberr.RegisterIdFctMessage(ErrorUnsupportedVersion, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorUnsupportedVersion:
		return "message header carries an unsupported protocol version"
	case ErrorUnknownRoute:
		return "no candidate route for the message destination"
	case ErrorMaxHopsExceeded:
		return "hop counter exceeded the configured maximum"
	case ErrorOutOfSequence:
		return "sequence number did not match the stream's expected next value"
	case ErrorUnknownSequence:
		return "no stream tracked for this UUID"
	}
	return liberr.NullMessage
}
