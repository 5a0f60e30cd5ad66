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
	"sync"

	"github.com/mink-run/gdt/client"
	"github.com/mink-run/gdt/wire"
)

// Policy selects among candidate routes sharing a destination type (spec
// section 4.6).
type Policy uint8

const (
	PolicyFirstMatch Policy = iota
	PolicyWeightedRoundRobin
)

// Membership is the A5 collaborator backing PolicyWeightedRoundRobin: a
// per-peer advertised capacity, read from the raft-replicated membership
// directory instead of a static table (SPEC_FULL.md section 4.6 ADD).
// Implemented by package membership.
type Membership interface {
	Weight(ep wire.Endpoint) int
}

// Router holds the set of registered clients of one Session and answers
// routing queries (spec section 4.6, component C6). Unregistered clients
// are invisible to routing (spec section 4.7).
type Router struct {
	mu      sync.RWMutex
	clients map[wire.Endpoint]*client.Client

	policy     Policy
	membership Membership
	rrCursor   map[string]int
}

func NewRouter(policy Policy, m Membership) *Router {
	return &Router{
		clients:    make(map[wire.Endpoint]*client.Client),
		policy:     policy,
		membership: m,
		rrCursor:   make(map[string]int),
	}
}

// Add installs c as the route for ep, keyed by its registered (type, id).
func (r *Router) Add(ep wire.Endpoint, c *client.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[ep] = c
}

func (r *Router) Remove(ep wire.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, ep)
}

// Candidates gathers every registered client whose peer type matches dst
// (spec section 4.6 (iii)/(iv)): used both for "*" fan-out and as the
// input set to the routing policy.
func (r *Router) Candidates(dst wire.Endpoint) []*client.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*client.Client
	for ep, c := range r.clients {
		if !c.IsRegistered() {
			continue
		}
		if ep.Type != dst.Type {
			continue
		}
		if dst.Id != "" && dst.Id != "*" && ep.Id != dst.Id {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Route resolves dst to exactly one candidate per the installed policy
// (spec section 4.6 (v)). The chosen candidate's reference counter is
// incremented while held; callers decrement it once forwarding completes.
func (r *Router) Route(dst wire.Endpoint) (*client.Client, bool) {
	candidates := r.Candidates(dst)
	if len(candidates) == 0 {
		return nil, false
	}

	var chosen *client.Client
	switch r.policy {
	case PolicyWeightedRoundRobin:
		chosen = r.pickWeighted(dst, candidates)
	default:
		chosen = candidates[0]
	}

	chosen.IncRef()
	return chosen, true
}

// Release decrements the reference counter taken by Route, once forwarding
// to the chosen candidate has completed (spec section 4.6).
func Release(c *client.Client) { c.DecRef() }

func (r *Router) pickWeighted(dst wire.Endpoint, candidates []*client.Client) *client.Client {
	if r.membership == nil || len(candidates) == 1 {
		return candidates[0]
	}

	total := 0
	weights := make([]int, len(candidates))
	for i, c := range candidates {
		w := r.membership.Weight(c.Peer)
		if w <= 0 {
			w = 1
		}
		weights[i] = w
		total += w
	}

	r.mu.Lock()
	cursor := r.rrCursor[dst.String()]
	r.rrCursor[dst.String()] = (cursor + 1) % total
	r.mu.Unlock()

	acc := 0
	for i, w := range weights {
		acc += w
		if cursor < acc {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}
