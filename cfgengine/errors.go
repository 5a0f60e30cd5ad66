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

package cfgengine

import (
	"fmt"

	liberr "github.com/mink-run/gdt/errors"
)

const (
	ErrorNoRevision liberr.CodeError = iota + liberr.MinPkgCfgEngine
	ErrorRevisionParse
	ErrorNotTemplate
	ErrorTransactionHeld
	ErrorAmbiguousToken
)

func init() {
	if liberr.ExistInMapMessage(ErrorNoRevision) {
		panic(fmt.Errorf("error code collision with package gdt/cfgengine"))
	}
	liberr.RegisterIdFctMessage(ErrorNoRevision, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorNoRevision:
		return "no rollback revision at the requested index"
	case ErrorRevisionParse:
		return "rollback revision file could not be parsed"
	case ErrorNotTemplate:
		return "cannot delete a non-template block"
	case ErrorTransactionHeld:
		return "working tree transaction is held by another user"
	case ErrorAmbiguousToken:
		return "token matches more than one candidate"
	}
	return liberr.NullMessage
}
