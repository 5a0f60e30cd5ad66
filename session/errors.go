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

package session

import (
	"fmt"

	liberr "github.com/mink-run/gdt/errors"
)

const (
	ErrorNoCandidate liberr.CodeError = iota + liberr.MinPkgSession
	ErrorRegistrationTimeout
	ErrorAlreadyRegistered
	ErrorListenFailed
	ErrorDialFailed
)

func init() {
	if liberr.ExistInMapMessage(ErrorNoCandidate) {
		panic(fmt.Errorf("error code collision with package gdt/session"))
	}
	liberr.RegisterIdFctMessage(ErrorNoCandidate, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorNoCandidate:
		return "no registered client matches the requested endpoint"
	case ErrorRegistrationTimeout:
		return "registration watchdog expired before both peers exchanged identity"
	case ErrorAlreadyRegistered:
		return "client is already marked registered"
	case ErrorListenFailed:
		return "session failed to open the inbound listener"
	case ErrorDialFailed:
		return "session failed to dial the outbound peer"
	}
	return liberr.NullMessage
}
