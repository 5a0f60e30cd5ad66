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

package cfgrpc

import (
	"fmt"

	liberr "github.com/mink-run/gdt/errors"
)

// AppError is the RPC-glue-level error taxonomy carried inside a
// CFG_RESULT's error-line parameters (spec section 4.11's Glossary entry
// "AppError"), distinct from the wire ErrorStatus enum: these never
// become protocol-level failures, only per-token strings in the result.
const (
	ErrorUnknownUser liberr.CodeError = iota + liberr.MinPkgCfgRpc
	ErrorTransactionOwned
	ErrorInvalidPattern
	ErrorUnknownItem
	ErrorNotTemplate
	ErrorNoActiveTransaction
)

func init() {
	if liberr.ExistInMapMessage(ErrorUnknownUser) {
		panic(fmt.Errorf("error code collision with package gdt/cfgrpc"))
	}
	liberr.RegisterIdFctMessage(ErrorUnknownUser, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorUnknownUser:
		return "unknown auth-id, not logged in"
	case ErrorTransactionOwned:
		return "transaction started by other user"
	case ErrorInvalidPattern:
		return "value rejected by pattern"
	case ErrorUnknownItem:
		return "unknown configuration item"
	case ErrorNotTemplate:
		return "cannot delete a non-template block"
	case ErrorNoActiveTransaction:
		return "no active transaction to commit"
	}
	return liberr.NullMessage
}
