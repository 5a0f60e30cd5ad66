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

// Package cfgmodel is the hierarchical configuration tree of spec section
// 4.9 (component C7): typed nodes with templates, commit/discard states,
// and pattern-validated leaf values. Value coercion between the tree's
// typed representation and the wire octet-string form uses
// mitchellh/mapstructure (SPEC_FULL.md section 4.9 ADD), the way
// config/components/* decode viper maps into typed component structs.
package cfgmodel

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Kind is the node-kind enum of spec section 4.1 (BLOCK / ITEM / PARAM / CMD).
type Kind uint8

const (
	KindBlock Kind = iota
	KindItem
	KindParam
	KindCmd
)

// State is the commit-lifecycle state of a node.
type State uint8

const (
	StateReady State = iota
	StateModified
	StateDeleted
)

// OnChange is a node's change handler, grouped by its return value
// (handler identity) when the engine batches children for one commit call
// (spec section 4.10).
type OnChange func(n *Node, changed []*Node) error

// Node is one tree element.
type Node struct {
	mu sync.RWMutex

	Name        string
	Description string
	TypeTag     string
	Kind        Kind
	State       State

	Value    string
	NewValue string

	IsTemplate       bool
	IsEmpty          bool
	IsNew            bool
	OnChangeExecuted bool

	Pattern string

	Parent   *Node
	Children []*Node
	SortNode string // name of the child whose value supplies the sort key

	OnChange OnChange
}

// NewRoot creates the ROOT block node (spec section 4.9).
func NewRoot() *Node {
	return &Node{Name: "ROOT", Kind: KindBlock}
}

// NewChild appends and returns a fresh child of kind k under n.
func (n *Node) NewChild(name string, k Kind) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()

	c := &Node{Name: name, Kind: k, Parent: n, IsNew: true, State: StateReady}
	n.Children = append(n.Children, c)
	return c
}

// FindChild is the exported form of firstNonTemplateChild, used by
// package cfgengine's merge logic to test whether a path segment already
// exists before creating a new node for it.
func (n *Node) FindChild(name string) *Node {
	return n.firstNonTemplateChild(name)
}

// firstNonTemplateChild finds the first non-template child named name
// (spec section 4.9: "matching the first non-template child whose name
// equals each token").
func (n *Node) firstNonTemplateChild(name string) *Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, c := range n.Children {
		if !c.IsTemplate && c.Name == name {
			return c
		}
	}
	return nil
}

// Path returns n's full path from ROOT, space-joined the way Lookup
// tokenizes one (spec section 4.9).
func (n *Node) Path() string {
	var parts []string
	for cur := n; cur != nil && cur.Parent != nil; cur = cur.Parent {
		parts = append([]string{cur.Name}, parts...)
	}
	return strings.Join(parts, " ")
}

// Template returns n's template child, if any (always the first child,
// spec Glossary "Template node").
func (n *Node) Template() *Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if len(n.Children) > 0 && n.Children[0].IsTemplate {
		return n.Children[0]
	}
	return nil
}

// Sort reorders n's BLOCK children per the sort rule (spec section 4.10):
// by their sort-key child's integer value, ties/missing falling back to
// lexicographic name order; nodes flagged IsEmpty are left in place.
func (n *Node) Sort() {
	n.mu.Lock()
	defer n.mu.Unlock()

	movable := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if !c.IsEmpty && !c.IsTemplate {
			movable = append(movable, c)
		}
	}

	sort.SliceStable(movable, func(i, j int) bool {
		ki, oki := movable[i].sortKey()
		kj, okj := movable[j].sortKey()
		if oki && okj && ki != kj {
			return ki < kj
		}
		if oki != okj {
			return oki
		}
		return movable[i].Name < movable[j].Name
	})

	idx := 0
	for i, c := range n.Children {
		if c.IsEmpty || c.IsTemplate {
			continue
		}
		n.Children[i] = movable[idx]
		idx++
	}
}

func (n *Node) sortKey() (int, bool) {
	for _, c := range n.Children {
		if c.Name == "sort_node" {
			v, err := strconv.Atoi(c.Value)
			return v, err == nil
		}
	}
	return 0, false
}
