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
	"strings"

	liberr "github.com/mink-run/gdt/errors"
)

// Lookup resolves p against n, tokenizing by whitespace and treating "^"
// as "go to parent" (spec section 4.9). When create is true, missing
// BLOCKs along the path are created, and the final token is created as
// lastKind if absent; markNew flags any node created this way.
func (n *Node) Lookup(p string, create bool, lastKind Kind, markNew bool) (*Node, liberr.Error) {
	tokens := strings.Fields(p)
	if len(tokens) == 0 {
		return nil, ErrorPathEmpty.Error(nil)
	}

	cur := n
	for i, tok := range tokens {
		if tok == "^" {
			if cur.Parent == nil {
				return nil, ErrorNodeNotFound.Error(nil)
			}
			cur = cur.Parent
			continue
		}

		next := cur.firstNonTemplateChild(tok)
		if next == nil {
			if !create {
				return nil, ErrorNodeNotFound.Error(nil)
			}
			kind := KindBlock
			if i == len(tokens)-1 {
				kind = lastKind
			}
			next = cur.NewChild(tok, kind)
			next.IsNew = markNew
		}
		cur = next
	}

	return cur, nil
}
