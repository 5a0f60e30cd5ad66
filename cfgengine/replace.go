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
	"fmt"
	"strings"

	"github.com/mink-run/gdt/cfgmodel"
	liberr "github.com/mink-run/gdt/errors"
)

// revNode is the parsed textual form of one rollback/replacement file
// line: two-space indentation encodes depth, first field is the name, the
// remainder (if any) is the ITEM value.
type revNode struct {
	name     string
	value    string
	children []*revNode
}

// renderNode writes n's children in the textual .pmcfg layout consumed by
// parseRevision; ROOT itself is not emitted.
func renderNode(sb *strings.Builder, n *cfgmodel.Node, depth int) {
	for _, c := range n.Children {
		fmt.Fprintf(sb, "%s%s", strings.Repeat("  ", depth), c.Name)
		if c.Kind == cfgmodel.KindItem || c.Kind == cfgmodel.KindParam {
			fmt.Fprintf(sb, " %s", c.Value)
		}
		sb.WriteByte('\n')
		renderNode(sb, c, depth+1)
	}
}

func parseRevision(text string) (*revNode, error) {
	root := &revNode{name: "ROOT"}
	stack := []*revNode{root}
	depths := []int{-1}

	for _, line := range strings.Split(text, "\n") {
		if line == "" || strings.HasPrefix(strings.TrimSpace(line), "// @desc") {
			continue
		}

		trimmed := strings.TrimLeft(line, " ")
		depth := (len(line) - len(trimmed)) / 2
		fields := strings.Fields(trimmed)
		if len(fields) == 0 {
			continue
		}

		n := &revNode{name: fields[0]}
		if len(fields) > 1 {
			n.value = strings.Join(fields[1:], " ")
		}

		for len(depths) > 0 && depths[len(depths)-1] >= depth {
			stack = stack[:len(stack)-1]
			depths = depths[:len(depths)-1]
		}
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, n)

		stack = append(stack, n)
		depths = append(depths, depth)
	}

	return root, nil
}

// ReplacePrepareMerge implements spec section 4.10's replace-prepare +
// merge operation: everything under scope is marked DELETED, then text's
// parsed contents are walked; matching paths are revived MODIFIED with
// new values, unmatched new entries become new template instances, and
// pattern-carrying items are validated. Siblings of template nodes are
// sorted once the merge completes.
func (e *Engine) ReplacePrepareMerge(ctx context.Context, scope *cfgmodel.Node, text string) liberr.Error {
	ctx = e.mu.Lock(ctx)
	defer e.mu.Unlock(ctx)

	replacement, err := parseRevision(text)
	if err != nil {
		return ErrorRevisionParse.Error(err)
	}
	return e.mergeReplace(scope, replacement)
}

func (e *Engine) mergeReplace(scope *cfgmodel.Node, replacement *revNode) liberr.Error {
	markDeleted(scope)

	for _, rn := range replacement.children {
		if err := mergeOne(scope, rn); err != nil {
			return err
		}
	}

	scope.Sort()
	return nil
}

func markDeleted(n *cfgmodel.Node) {
	for _, c := range n.Children {
		c.State = cfgmodel.StateDeleted
		markDeleted(c)
	}
}

func mergeOne(parent *cfgmodel.Node, rn *revNode) liberr.Error {
	existing := parent.FindChild(rn.name)
	if existing == nil {
		tpl := parent.Template()
		kind := cfgmodel.KindBlock
		if tpl != nil {
			kind = tpl.Kind
		} else if rn.value != "" || len(rn.children) == 0 {
			kind = cfgmodel.KindItem
		}
		existing = parent.NewChild(rn.name, kind)
		existing.IsNew = true
	}

	existing.State = cfgmodel.StateModified
	existing.NewValue = rn.value
	if existing.Pattern != "" {
		if err := existing.Validate(rn.value); err != nil {
			return err
		}
	}

	for _, childRn := range rn.children {
		if err := mergeOne(existing, childRn); err != nil {
			return err
		}
	}
	return nil
}
