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
	"path/filepath"
	"strings"

	"github.com/mink-run/gdt/cfgmodel"
)

// Mode selects TAB-suggest versus ENTER-apply semantics for AutoComplete.
type Mode uint8

const (
	ModeTab Mode = iota
	ModeEnter
)

// AutoCompleteResult carries the outcome of one AutoComplete call (spec
// section 4.10): the nodes matched so far, any newly created
// template-based nodes (attached immediately on ENTER, held for later
// attachment on TAB), and one error string per input token.
type AutoCompleteResult struct {
	Nodes     []*cfgmodel.Node
	NewNodes  []*cfgmodel.Node
	Errors    []string
	HelpText  string
}

// AutoComplete walks the definition tree from cur matching tokens
// prefix-wise (spec section 4.10). `?` requests context help for the
// current position; a token prefixed `!` disables prefix matching and
// creates a new template-based node; a token starting with `/` is
// completed against the filesystem instead of the tree.
func (e *Engine) AutoComplete(ctx context.Context, cur *cfgmodel.Node, tokens []string, mode Mode) *AutoCompleteResult {
	ctx = e.mu.Lock(ctx)
	defer e.mu.Unlock(ctx)

	res := &AutoCompleteResult{}
	node := cur

	for _, tok := range tokens {
		switch {
		case tok == "?":
			res.HelpText = contextHelp(node)
			res.Errors = append(res.Errors, "")
			continue

		case strings.HasPrefix(tok, "!"):
			name := strings.TrimPrefix(tok, "!")
			tpl := node.Template()
			if tpl == nil {
				res.Errors = append(res.Errors, "no template at this position")
				continue
			}
			child := node.NewChild(name, tpl.Kind)
			child.Pattern = tpl.Pattern
			if mode == ModeEnter {
				res.Nodes = append(res.Nodes, child)
			} else {
				res.NewNodes = append(res.NewNodes, child)
			}
			res.Errors = append(res.Errors, "")
			node = child
			continue

		case strings.HasPrefix(tok, "/"):
			if matches, _ := filepath.Glob(tok + "*"); len(matches) == 0 {
				res.Errors = append(res.Errors, "no matching path")
				continue
			}
			res.Errors = append(res.Errors, "")
			continue
		}

		match, ambiguous := matchPrefix(node, tok)
		if match == nil {
			errMsg := "no match"
			if ambiguous {
				errMsg = "ambiguous token"
			}
			res.Errors = append(res.Errors, errMsg)
			continue
		}

		if match.Kind == cfgmodel.KindItem && match.Pattern != "" {
			if verr := match.Validate(tok); verr != nil && mode == ModeEnter {
				res.Errors = append(res.Errors, "invalid value")
				continue
			}
		}

		res.Nodes = append(res.Nodes, match)
		res.Errors = append(res.Errors, "")
		node = match
	}

	return res
}

// matchPrefix finds a single full match by name among node's children; on
// ambiguity (more than one prefix match, no full match) it reports
// ambiguous=true with a nil node rather than guessing.
func matchPrefix(node *cfgmodel.Node, tok string) (match *cfgmodel.Node, ambiguous bool) {
	var prefixMatches []*cfgmodel.Node
	for _, c := range node.Children {
		if c.IsTemplate {
			continue
		}
		if c.Name == tok {
			return c, false
		}
		if strings.HasPrefix(c.Name, tok) {
			prefixMatches = append(prefixMatches, c)
		}
	}
	if len(prefixMatches) == 1 {
		return prefixMatches[0], false
	}
	return nil, len(prefixMatches) > 1
}

func contextHelp(node *cfgmodel.Node) string {
	var names []string
	for _, c := range node.Children {
		if !c.IsTemplate {
			names = append(names, c.Name)
		}
	}
	return strings.Join(names, " ")
}
