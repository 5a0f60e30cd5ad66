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
	"reflect"

	"github.com/mink-run/gdt/cfgmodel"
	liberr "github.com/mink-run/gdt/errors"
)

// uintptrKey identifies an OnChange handler by its function pointer, since
// Go func values are not comparable: this is how dispatchPass groups
// children "by handler identity" per spec section 4.10.
type uintptrKey uintptr

func fnKey(fn cfgmodel.OnChange) uintptrKey {
	return uintptrKey(reflect.ValueOf(fn).Pointer())
}

// Commit runs the two-pass commit of spec section 4.10: MODIFY/DELETE
// handlers first, then ADD handlers, each called once per handler
// identity with the set of changed children it owns. It writes a rollback
// revision before applying anything, fires notification-ready
// subscriptions after, and rewrites the running configuration file.
func (e *Engine) Commit(ctx context.Context, description string) liberr.Error {
	ctx = e.mu.Lock(ctx)
	defer e.mu.Unlock(ctx)

	if err := e.writeRollback(description); err != nil {
		return err
	}

	changed := e.flattenChanged(e.Root, nil)

	if err := e.dispatchPass(changed, cfgmodel.StateModified, cfgmodel.StateDeleted); err != nil {
		return err
	}
	if err := e.dispatchPass(changed, -1); err != nil { // ADD pass: IsNew nodes
		return err
	}

	e.applyCommitStates(e.Root)

	if e.subs != nil {
		e.subs.NotifyAll(changed)
	}

	return e.writeRunningConfig()
}

// flattenChanged walks the tree collecting every node whose State is not
// READY or that is newly created (spec section 4.10's "flattens the
// MODIFIED/DELETED subtree").
func (e *Engine) flattenChanged(n *cfgmodel.Node, acc []*cfgmodel.Node) []*cfgmodel.Node {
	if n.State != cfgmodel.StateReady || n.IsNew {
		acc = append(acc, n)
	}
	for _, c := range n.Children {
		acc = e.flattenChanged(c, acc)
	}
	return acc
}

// dispatchPass groups changed nodes by their OnChange handler identity and
// invokes each handler once. states selects MODIFIED/DELETED for the
// first pass; passing -1 selects the ADD pass (IsNew nodes) instead.
func (e *Engine) dispatchPass(changed []*cfgmodel.Node, states ...cfgmodel.State) liberr.Error {
	addPass := len(states) == 1 && int(states[0]) < 0

	groups := map[uintptrKey][]*cfgmodel.Node{}
	var order []uintptrKey
	for _, n := range changed {
		if n.OnChange == nil {
			continue
		}
		if addPass {
			if !n.IsNew {
				continue
			}
		} else if !stateIn(n.State, states) {
			continue
		}

		key := fnKey(n.OnChange)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], n)
	}

	for _, key := range order {
		members := groups[key]
		if err := members[0].OnChange(members[0], members); err != nil {
			return ErrorTransactionHeld.Error(err)
		}
	}
	return nil
}

func stateIn(s cfgmodel.State, states []cfgmodel.State) bool {
	for _, want := range states {
		if s == want {
			return true
		}
	}
	return false
}

// applyCommitStates performs the post-dispatch state transition of spec
// section 4.10: MODIFIED items absorb new_value into value, DELETED
// BLOCKs are pruned, DELETED ITEMs retain empty values, everything resets
// to READY.
func (e *Engine) applyCommitStates(n *cfgmodel.Node) {
	kept := n.Children[:0]
	for _, c := range n.Children {
		switch c.State {
		case cfgmodel.StateDeleted:
			if c.Kind == cfgmodel.KindBlock {
				continue // pruned
			}
			c.Value = ""
		case cfgmodel.StateModified:
			c.Value = c.NewValue
		}
		c.NewValue = ""
		c.State = cfgmodel.StateReady
		c.IsNew = false
		c.OnChangeExecuted = true
		e.applyCommitStates(c)
		kept = append(kept, c)
	}
	n.Children = kept
}

// Discard reverts every pending change in the tree (spec section 4.10):
// new BLOCKs are removed, MODIFIED/DELETED nodes revert to READY with
// new_value restored from value.
func (e *Engine) Discard(ctx context.Context) {
	ctx = e.mu.Lock(ctx)
	defer e.mu.Unlock(ctx)
	e.discard(e.Root)
}

func (e *Engine) discard(n *cfgmodel.Node) {
	kept := n.Children[:0]
	for _, c := range n.Children {
		if c.IsNew && c.Kind == cfgmodel.KindBlock {
			continue
		}
		if c.State == cfgmodel.StateModified || c.State == cfgmodel.StateDeleted {
			c.State = cfgmodel.StateReady
			c.NewValue = c.Value
		}
		e.discard(c)
		kept = append(kept, c)
	}
	n.Children = kept
}
