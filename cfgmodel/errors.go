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

package cfgmodel

import (
	"fmt"

	liberr "github.com/mink-run/gdt/errors"
)

const (
	ErrorNodeNotFound liberr.CodeError = iota + liberr.MinPkgCfgModel
	ErrorPatternInvalid
	ErrorValueRejected
	ErrorPathEmpty
)

func init() {
	if liberr.ExistInMapMessage(ErrorNodeNotFound) {
		panic(fmt.Errorf("error code collision with package gdt/cfgmodel"))
	}
	liberr.RegisterIdFctMessage(ErrorNodeNotFound, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorNodeNotFound:
		return "no node matches the given path"
	case ErrorPatternInvalid:
		return "node pattern could not be compiled or resolved"
	case ErrorValueRejected:
		return "value does not satisfy the node's pattern"
	case ErrorPathEmpty:
		return "path tokenizes to zero path segments"
	}
	return liberr.NullMessage
}
