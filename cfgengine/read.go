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
	"context"
	"strings"

	"github.com/mink-run/gdt/cfgmodel"
	liberr "github.com/mink-run/gdt/errors"
)

// Read resolves tokens against cur by exact-match path lookup (spec
// section 4.11's GET: "validate the requested path ... flatten the
// subtree"), unlike AutoComplete's TAB/ENTER prefix matching. An empty
// token list resolves to cur itself.
func (e *Engine) Read(ctx context.Context, cur *cfgmodel.Node, tokens []string) ([]*cfgmodel.Node, liberr.Error) {
	ctx = e.mu.Lock(ctx)
	defer e.mu.Unlock(ctx)

	node := cur
	if len(tokens) > 0 {
		var err liberr.Error
		node, err = cur.Lookup(strings.Join(tokens, " "), false, cfgmodel.KindBlock, false)
		if err != nil {
			return nil, err
		}
	}

	return flatten(node, nil), nil
}

// flatten walks n's subtree in document order, skipping template nodes
// (spec section 4.11's "flatten the subtree").
func flatten(n *cfgmodel.Node, acc []*cfgmodel.Node) []*cfgmodel.Node {
	if !n.IsTemplate {
		acc = append(acc, n)
	}
	for _, c := range n.Children {
		acc = flatten(c, acc)
	}
	return acc
}
