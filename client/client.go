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

// Package client models one transport association (spec section 4.4,
// component C4): four cooperating workers (ingress, egress, timeout,
// heartbeat) each supervised by runner/startStop, two egress queues,
// pooled allocators and a stream table. Workers run under
// golang.org/x/sync/errgroup so one worker's fatal error cancels its
// siblings cleanly, the way the teacher reaches for errgroup wherever a
// group of goroutines shares a lifetime.
package client

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mink-run/gdt/codec"
	liberr "github.com/mink-run/gdt/errors"
	"github.com/mink-run/gdt/pool"
	"github.com/mink-run/gdt/runner/startStop"
	"github.com/mink-run/gdt/stream"
	"github.com/mink-run/gdt/transport"
	"github.com/mink-run/gdt/wire"
)

// Role distinguishes a router client (forwards between other clients) from
// a leaf client (terminates traffic locally).
type Role uint8

const (
	RoleLeaf Role = iota
	RoleRouter
)

// Direction distinguishes an outbound (dialed) client from an inbound
// (accepted) one; only outbound clients reconnect on failure (spec
// section 4.4).
type Direction uint8

const (
	DirectionOutbound Direction = iota
	DirectionInbound
)

const (
	// DefaultPollInterval is P, the ingress poll interval (spec section 4.4).
	DefaultPollInterval = 5 * time.Second
	// DefaultStreamTimeout is T, the per-stream expiry floor (spec section 4.4).
	DefaultStreamTimeout = 1 * time.Second
)

// Dispatcher feeds a decoded message to the state machine when it routes
// to this daemon (spec section 4.4/4.5). Implemented by package
// statemachine; kept as an interface here to avoid an import cycle.
type Dispatcher interface {
	Dispatch(ctx context.Context, c *Client, msg *wire.Message)
}

// EventSink is the interface package cfgrpc's EventSink satisfies
// structurally; kept here rather than imported so client stays ignorant
// of the config-RPC layer (spec section 4.11 ADD's observability mirror).
type EventSink interface {
	Emit(kind string, peer wire.Endpoint)
}

// Client is one transport association.
type Client struct {
	Role        Role
	Direction   Direction
	Self        wire.Endpoint
	Peer        wire.Endpoint
	LocalBind   string

	assoc     transport.Association
	transport transport.Transport
	codec     codec.Codec

	Streams *stream.Table
	Stats   *Stats

	registered bool
	active     bool
	refCount   int32

	pollInterval      time.Duration
	streamTimeout     time.Duration
	heartbeatInterval time.Duration

	extQueue chan *outgoing
	intQueue chan *outgoing

	ingress     startStop.StartStop
	egress      startStop.StartStop
	timeout     startStop.StartStop
	heartbeat   startStop.StartStop
	reconnWatch startStop.StartStop

	heartbeatMu      sync.Mutex
	heartbeatPending *stream.Stream

	// OnHeartbeatReceived and OnHeartbeatMissed fire from the heartbeat
	// worker's goroutine (spec section 4.8); OnHeartbeatCleanup runs once,
	// from Stop, after the last outstanding heartbeat has resolved or timed
	// out.
	OnHeartbeatReceived func()
	OnHeartbeatMissed   func()
	OnHeartbeatCleanup  func()

	dispatcher   Dispatcher
	Events       EventSink
	expireNow    chan struct{}
	reconnectReq chan struct{}

	lastActivity time.Time
	registry     *pool.Registry
	sessionID    codec.SessionId

	registerMu  sync.Mutex
	registerSem *semaphore.Weighted
	registerMsg *wire.RegistrationMessage
}

type outgoing struct {
	dest wire.Endpoint
	msg  *wire.Message
	sub  transport.SubStream
}

// Config bundles the construction-time dependencies of a Client.
type Config struct {
	Role              Role
	Direction         Direction
	Self              wire.Endpoint
	Peer              wire.Endpoint
	LocalBind         string
	Transport         transport.Transport
	Codec             codec.Codec
	Dispatcher        Dispatcher
	Events            EventSink
	PollInterval      time.Duration
	StreamTimeout     time.Duration
	HeartbeatInterval time.Duration
	QueueDepth        int
	Registry          *pool.Registry

	OnHeartbeatReceived func()
	OnHeartbeatMissed   func()
	OnHeartbeatCleanup  func()
}

func New(cfg Config) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = DefaultStreamTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 256
	}

	streams := stream.NewTable()
	if cfg.Registry != nil && cfg.Registry.MaxStreams > 0 {
		streams = stream.NewTableWithCapacity(cfg.Registry.MaxStreams)
	}

	c := &Client{
		Role:                cfg.Role,
		Direction:           cfg.Direction,
		Self:                cfg.Self,
		Peer:                cfg.Peer,
		LocalBind:           cfg.LocalBind,
		transport:           cfg.Transport,
		codec:               cfg.Codec,
		dispatcher:          cfg.Dispatcher,
		Events:              cfg.Events,
		Streams:             streams,
		Stats:               NewStats(),
		pollInterval:        cfg.PollInterval,
		streamTimeout:       cfg.StreamTimeout,
		heartbeatInterval:   cfg.HeartbeatInterval,
		extQueue:            make(chan *outgoing, cfg.QueueDepth),
		intQueue:            make(chan *outgoing, cfg.QueueDepth),
		expireNow:           make(chan struct{}, 1),
		reconnectReq:        make(chan struct{}, 1),
		lastActivity:        time.Now(),
		registry:            cfg.Registry,
		OnHeartbeatReceived: cfg.OnHeartbeatReceived,
		OnHeartbeatMissed:   cfg.OnHeartbeatMissed,
		OnHeartbeatCleanup:  cfg.OnHeartbeatCleanup,
	}

	c.ingress = startStop.New(c.runIngress, c.stopIngress)
	c.egress = startStop.New(c.runEgress, c.stopEgress)
	c.timeout = startStop.New(c.runTimeout, c.stopTimeout)
	c.heartbeat = startStop.New(c.runHeartbeat, c.stopHeartbeat)
	c.reconnWatch = startStop.New(c.runReconnectWatch, c.stopReconnectWatch)

	return c
}

// Start launches the five workers under one errgroup so a fatal worker
// error tears down its siblings (spec section 4.4/4.8).
func (c *Client) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.ingress.Start(gctx) })
	g.Go(func() error { return c.egress.Start(gctx) })
	g.Go(func() error { return c.timeout.Start(gctx) })
	g.Go(func() error { return c.heartbeat.Start(gctx) })
	g.Go(func() error { return c.reconnWatch.Start(gctx) })
	return g.Wait()
}

func (c *Client) Stop(ctx context.Context) error {
	_ = c.ingress.Stop(ctx)
	_ = c.egress.Stop(ctx)
	_ = c.timeout.Stop(ctx)
	_ = c.heartbeat.Stop(ctx)
	_ = c.reconnWatch.Stop(ctx)
	return nil
}

// QueueExternal satisfies stream.Egress: user-initiated sends go on the
// external queue, drained only after the internal (protocol-generated)
// queue is empty (spec section 4.4).
func (c *Client) QueueExternal(dest wire.Endpoint, msg *wire.Message) liberr.Error {
	select {
	case c.extQueue <- &outgoing{dest: dest, msg: msg}:
		return nil
	default:
		return ErrorQueueFull.Error(nil)
	}
}

// QueueInternal is used by the state machine for protocol-generated
// replies (ACKs, CFG_RESULT, etc).
func (c *Client) QueueInternal(dest wire.Endpoint, msg *wire.Message) liberr.Error {
	select {
	case c.intQueue <- &outgoing{dest: dest, msg: msg}:
		return nil
	default:
		return ErrorQueueFull.Error(nil)
	}
}

// PeekInternal non-blockingly pops the next protocol-generated reply queued
// on the internal egress queue. Exercised by statemachine's tests to
// assert on ACK contents without running the egress worker.
func (c *Client) PeekInternal() (*wire.Message, bool) {
	select {
	case out := <-c.intQueue:
		return out.msg, true
	default:
		return nil, false
	}
}

func (c *Client) IsActive() bool      { return c.active }
func (c *Client) IsRegistered() bool  { return c.registered }
func (c *Client) SetRegistered(v bool) { c.registered = v }

func (c *Client) IncRef() { c.refCount++ }
func (c *Client) DecRef() { c.refCount-- }
func (c *Client) RefCount() int32 { return c.refCount }

func (c *Client) LastActivity() time.Time { return c.lastActivity }

func (c *Client) touch() { c.lastActivity = time.Now() }

// RequestExpireNow sets the timeout worker's expire-now flag (spec section
// 4.4): called by ingress on transport error or timeout.
func (c *Client) RequestExpireNow() {
	select {
	case c.expireNow <- struct{}{}:
	default:
	}
}

// Attach installs an already-established transport Association, marking the
// client active. Package session uses this for both an inbound Accept and
// the first outbound Dial; subsequent redials go through reconnect instead
// (spec section 4.4).
func (c *Client) Attach(assoc transport.Association) {
	c.assoc = assoc
	c.active = true
	c.touch()
}

// ArmRegistration prepares the client to wait for the peer's
// REGISTER-RESULT: package session's Register acquires the returned
// semaphore a second time, which blocks until CompleteRegistration releases
// it from the ingress dispatcher's goroutine (spec section 4.7).
func (c *Client) ArmRegistration() *semaphore.Weighted {
	sem := semaphore.NewWeighted(1)
	_ = sem.Acquire(context.Background(), 1)
	c.registerMu.Lock()
	c.registerSem = sem
	c.registerMu.Unlock()
	return sem
}

// CompleteRegistration releases a pending ArmRegistration wait with the
// peer's REGISTER-RESULT payload. Called from statemachine's dispatch on
// receipt of a RegisterResult; a nil registerSem (no Register in flight, or
// a duplicate reply) is a silent no-op.
func (c *Client) CompleteRegistration(msg *wire.RegistrationMessage) {
	c.registerMu.Lock()
	sem := c.registerSem
	c.registerSem = nil
	c.registerMsg = msg
	c.registerMu.Unlock()
	if sem != nil {
		sem.Release(1)
	}
}

// RegistrationResult returns the peer's REGISTER-RESULT payload recorded by
// the most recent CompleteRegistration, if any.
func (c *Client) RegistrationResult() *wire.RegistrationMessage {
	c.registerMu.Lock()
	defer c.registerMu.Unlock()
	return c.registerMsg
}

// RequestReconnectForTest exposes requestReconnect to external test
// packages, which cannot reach the unexported association-loss path that
// normally triggers it (runIngress observing transport.EventAssociationLost).
func (c *Client) RequestReconnectForTest() { c.requestReconnect() }

func (c *Client) requestReconnect() {
	if c.Direction != DirectionOutbound {
		c.active = false
		return
	}
	select {
	case c.reconnectReq <- struct{}{}:
	default:
	}
}
