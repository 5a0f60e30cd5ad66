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
	"context"
	"sync"
	"time"

	"github.com/mink-run/gdt/client"
	"github.com/mink-run/gdt/codec"
	liberr "github.com/mink-run/gdt/errors"
	"github.com/mink-run/gdt/pool"
	"github.com/mink-run/gdt/transport"
	"github.com/mink-run/gdt/wire"
)

// DefaultMaxStreams bounds a client's concurrent stream table and its
// pooled raw-buffer/payload allocators (component C1, spec section 4.1)
// when a Session is not given an explicit MaxStreams.
const DefaultMaxStreams = 1024

// Session is the C6 collaborator of spec section 3/4.6: it owns the
// listener socket, the set of live clients, and this process's daemon
// identity, and drives both halves of registration (spec section 4.7) as
// clients are accepted or dialed. Router is shared with whatever
// client.Dispatcher (package statemachine's Machine, in practice) the
// caller wires in, so routing decisions made during inbound dispatch and
// during this Session's own outbound Connect agree on one table.
type Session struct {
	Self       wire.Endpoint
	IsRouter   bool
	Transport  transport.Transport
	Codec      codec.Codec
	Router     *Router
	Dispatcher client.Dispatcher

	PollInterval      time.Duration
	StreamTimeout     time.Duration
	HeartbeatInterval time.Duration

	// MaxStreams and RawBufferSize size the pool.Registry (component C1)
	// built for every client this Session accepts or dials. Zero means
	// DefaultMaxStreams / pool.DefaultRawBufferSize.
	MaxStreams    uint
	RawBufferSize int

	mu       sync.Mutex
	listener transport.Listener
	clients  []*client.Client
	wg       sync.WaitGroup
}

// New builds a Session. Router and Dispatcher are typically constructed
// together by the caller (a statemachine.Machine sharing this same Router)
// before either is passed in, since Session and the dispatcher it drives
// cannot import each other (package statemachine already imports session).
func New(self wire.Endpoint, isRouter bool, tr transport.Transport, cdc codec.Codec, router *Router, dispatcher client.Dispatcher) *Session {
	return &Session{
		Self:       self,
		IsRouter:   isRouter,
		Transport:  tr,
		Codec:      cdc,
		Router:     router,
		Dispatcher: dispatcher,
	}
}

func (s *Session) role() client.Role {
	if s.IsRouter {
		return client.RoleRouter
	}
	return client.RoleLeaf
}

// newRegistry allocates the pooled allocators (component C1) for one
// client, sized from this Session's MaxStreams/RawBufferSize.
func (s *Session) newRegistry() *pool.Registry {
	max := s.MaxStreams
	if max == 0 {
		max = DefaultMaxStreams
	}
	return pool.NewRegistry(max, s.RawBufferSize)
}

// Listen opens the inbound listener and starts the accept loop in the
// background; each accepted Association becomes one inbound client.Client,
// registered into Router once the peer's REGISTER-REQUEST arrives (spec
// section 4.7).
func (s *Session) Listen(ctx context.Context, bind string) liberr.Error {
	l, err := s.Transport.Listen(ctx, bind)
	if err != nil {
		return ErrorListenFailed.Error(err)
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(ctx, l)
	return nil
}

// Addr returns the bound listener address, once Listen has succeeded.
func (s *Session) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr()
}

func (s *Session) acceptLoop(ctx context.Context, l transport.Listener) {
	defer s.wg.Done()
	for {
		assoc, err := l.Accept(ctx)
		if err != nil {
			return
		}

		c := client.New(client.Config{
			Role:              s.role(),
			Direction:         client.DirectionInbound,
			Self:              s.Self,
			Codec:             s.Codec,
			Dispatcher:        s.Dispatcher,
			PollInterval:      s.PollInterval,
			StreamTimeout:     s.StreamTimeout,
			HeartbeatInterval: s.HeartbeatInterval,
			Registry:          s.newRegistry(),
		})
		c.Attach(assoc)
		s.track(c)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = c.Start(ctx)
		}()
	}
}

// Connect dials an outbound association to addr, starts its workers, and
// drives the outbound half of registration (spec section 4.7). On success
// the client is installed in Router keyed by peer; on registration timeout
// the client is still returned, started but unregistered, so the caller
// can decide whether to tear it down or leave it for a later retry.
func (s *Session) Connect(ctx context.Context, peer wire.Endpoint, addr string) (*client.Client, liberr.Error) {
	assoc, err := s.Transport.Dial(ctx, addr)
	if err != nil {
		return nil, ErrorDialFailed.Error(err)
	}

	c := client.New(client.Config{
		Role:              s.role(),
		Direction:         client.DirectionOutbound,
		Self:              s.Self,
		Peer:              peer,
		LocalBind:         addr,
		Transport:         s.Transport,
		Codec:             s.Codec,
		Dispatcher:        s.Dispatcher,
		PollInterval:      s.PollInterval,
		StreamTimeout:     s.StreamTimeout,
		HeartbeatInterval: s.HeartbeatInterval,
		Registry:          s.newRegistry(),
	})
	c.Attach(assoc)
	s.track(c)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = c.Start(ctx)
	}()

	if rerr := Register(ctx, c, s.Self, s.IsRouter); rerr != nil {
		return c, rerr
	}

	if s.Router != nil {
		s.Router.Add(peer, c)
	}
	return c, nil
}

func (s *Session) track(c *client.Client) {
	s.mu.Lock()
	s.clients = append(s.clients, c)
	s.mu.Unlock()
}

// Clients returns a snapshot of every client this Session has accepted or
// dialed, regardless of registration state.
func (s *Session) Clients() []*client.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*client.Client, len(s.clients))
	copy(out, s.clients)
	return out
}

// Shutdown stops every tracked client and closes the listener, then waits
// for the accept loop and all worker goroutines to return (spec section 5's
// refcount-drain note is honored by the caller continuing to hold a
// reference until its own forwarding completes; Shutdown itself only tears
// down workers).
func (s *Session) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	clients := make([]*client.Client, len(s.clients))
	copy(clients, s.clients)
	l := s.listener
	s.mu.Unlock()

	for _, c := range clients {
		_ = c.Stop(ctx)
	}
	if l != nil {
		_ = l.Close()
	}
	s.wg.Wait()
	return nil
}
