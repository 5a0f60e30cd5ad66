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

// Package statemachine implements the per-message dispatch table of spec
// section 4.5 (component C5): given a decoded wire.Message arriving on a
// client.Client, validate its header and sequence flag, create or look up
// the tracked stream.Stream, fire the matching callback, and queue a reply
// fragment when the flag calls for one. It is the client.Dispatcher the
// ingress worker calls into for every datagram that routes to this daemon.
package statemachine

import (
	"context"

	"github.com/mink-run/gdt/client"
	liberr "github.com/mink-run/gdt/errors"
	"github.com/mink-run/gdt/session"
	"github.com/mink-run/gdt/stream"
	"github.com/mink-run/gdt/wire"
)

// ConfigHandler is the interface package cfgrpc's Handler satisfies
// structurally; kept here as an interface rather than an import so
// statemachine stays domain-agnostic about what a stream's body carries
// (spec section 4.5/4.11).
type ConfigHandler interface {
	OnMessage(ctx context.Context, reply func(dest wire.Endpoint, msg *wire.Message), src *wire.Message)
}

// Machine is the concrete client.Dispatcher. Router is optional: a leaf
// client with no router does self/foreign matching only against its own
// endpoint. Config is optional: when set, a BodyConfig START message is
// handled synchronously as a single call/reply instead of being tracked as
// a multi-fragment stream, matching the CLI request/response shape of
// LOGIN/LOGOUT/GET/AC/SET/REPLICATE (spec section 4.11).
// EventSink is the interface package cfgrpc's EventSink satisfies
// structurally (spec section 4.11 ADD); Events is optional.
type EventSink interface {
	Emit(kind string, peer wire.Endpoint)
}

type Machine struct {
	Router *session.Router
	Self   wire.Endpoint
	Config ConfigHandler
	Events EventSink
}

func New(self wire.Endpoint, router *session.Router) *Machine {
	return &Machine{Router: router, Self: self}
}

// Dispatch implements client.Dispatcher.
func (m *Machine) Dispatch(ctx context.Context, c *client.Client, msg *wire.Message) {
	if msg.Header.Version != wire.Version {
		m.reject(c, msg, wire.StatusUnsupportedVers, liberr.GdtUnsupportedVersion)
		return
	}

	if !m.isSelf(msg.Header.Destination) {
		m.forward(ctx, c, msg)
		return
	}

	switch msg.Header.SequenceFlg {
	case wire.SeqHeartbeat:
		m.onHeartbeat(c, msg)
	case wire.SeqStateless:
		if msg.Body != nil && msg.Body.Kind == wire.BodyRegistration {
			m.onRegistration(c, msg)
			return
		}
		m.onStateless(c, msg, true)
	case wire.SeqStatelessNoReply:
		m.onStateless(c, msg, false)
	case wire.SeqStart:
		m.onStart(ctx, c, msg)
	case wire.SeqContinue:
		m.onContinue(c, msg)
	case wire.SeqContinueWait:
		m.onContinueWait(c, msg)
	case wire.SeqEnd:
		m.onEnd(c, msg)
	case wire.SeqStreamComplete:
		m.onStreamComplete(c, msg)
	}
}

// resolveSide finds which side of a stream the incoming sequence number
// matches: s itself, or (for a loopback pair) its linked partner (spec
// section 4.5's "validate seq# against the chosen side, for loopback
// alternate the last_linked_side"). Returns nil on no match.
func resolveSide(s *stream.Stream, seqNum uint32) *stream.Stream {
	if s.SequenceNum() == seqNum {
		return s
	}
	if linked := s.Linked(); linked != nil && linked.SequenceNum() == seqNum {
		return linked
	}
	return nil
}

func (m *Machine) isSelf(dst wire.Endpoint) bool {
	return dst.Type == "" || dst.Type == m.Self.Type && (dst.Id == "" || dst.Id == m.Self.Id)
}

// forward hands a message whose destination is not this daemon to the
// routing table (spec section 4.6): exact match, or "*" wildcard fan-out
// for STATELESS_NO_REPLY only. Hop counter is bumped and checked against
// MaxHops before relay.
func (m *Machine) forward(ctx context.Context, c *client.Client, msg *wire.Message) {
	if m.Router == nil {
		m.reject(c, msg, wire.StatusRoutingNotSupport, liberr.GdtRoutingNotSupported)
		return
	}

	if msg.Header.Hop == nil {
		h := wire.NewHopInfo()
		msg.Header.Hop = &h
	}
	msg.Header.Hop.Current++
	if msg.Header.Hop.Current > msg.Header.Hop.Max {
		m.reject(c, msg, wire.StatusMaxHopsExceeded, liberr.GdtMaxHopsExceeded)
		return
	}

	if msg.Header.Destination.Id == "*" {
		if msg.Header.SequenceFlg != wire.SeqStatelessNoReply {
			m.reject(c, msg, wire.StatusUnknownRoute, liberr.GdtRoutingNotSupported)
			return
		}
		for _, target := range m.Router.Candidates(msg.Header.Destination) {
			_ = target.QueueExternal(msg.Header.Destination, msg)
		}
		return
	}

	target, ok := m.Router.Route(msg.Header.Destination)
	if !ok {
		m.reject(c, msg, wire.StatusUnknownRoute, liberr.GdtUnknownRoute)
		return
	}
	_ = target.QueueExternal(msg.Header.Destination, msg)
	session.Release(target)
}

func (m *Machine) reject(c *client.Client, msg *wire.Message, status wire.ErrorStatus, code liberr.CodeError) {
	c.Stats.StreamErrors.Add(1)
	reply := &wire.Message{
		Header: wire.Header{
			Version:     wire.Version,
			Source:      m.Self,
			Destination: msg.Header.Source,
			UUID:        msg.Header.UUID,
			SequenceFlg: wire.SeqStatelessNoReply,
			Status:      &status,
		},
	}
	_ = c.QueueInternal(msg.Header.Source, reply)
	_ = code
}

// onHeartbeat matches an inbound HEARTBEAT against the client's own
// outstanding heartbeat stream, if any (spec section 4.5/4.8): a sequence
// match delivers heartbeat-received, a mismatch delivers heartbeat-missed,
// and either way the stream is released. A HEARTBEAT with no match and no
// status is a bare keepalive probe from the peer, answered with a
// HEARTBEAT ACK.
func (m *Machine) onHeartbeat(c *client.Client, msg *wire.Message) {
	if s, ok := c.Streams.Get(msg.Header.UUID); ok {
		if msg.Header.SequenceNum == s.SequenceNum() {
			s.Fire(stream.EventHeartbeatReceived, msg)
		} else {
			s.Fire(stream.EventHeartbeatMissed, msg)
		}
		c.Streams.Remove(msg.Header.UUID)
		return
	}

	if msg.Header.Status == nil {
		ack := &wire.Message{
			Header: wire.Header{
				Version:     wire.Version,
				Source:      m.Self,
				Destination: msg.Header.Source,
				UUID:        msg.Header.UUID,
				SequenceFlg: wire.SeqHeartbeat,
			},
		}
		_ = c.QueueInternal(msg.Header.Source, ack)
	}
}

// onRegistration drives the inbound half of the REGISTER-REQUEST /
// REGISTER-RESULT handshake (spec section 4.7): a request is answered with
// this daemon's own identity via session.CompleteInbound and the sender is
// registered into the routing table; a result releases the matching
// outbound session.Register wait and records the peer's identity.
func (m *Machine) onRegistration(c *client.Client, msg *wire.Message) {
	reg := msg.Body.Registration
	if reg == nil {
		return
	}

	switch reg.Action {
	case wire.RegisterRequest:
		isRouter := c.Role == client.RoleRouter
		if err := session.CompleteInbound(c, m.Self, isRouter, reg); err == nil && m.Router != nil {
			m.Router.Add(c.Peer, c)
		}
	case wire.RegisterResult:
		c.Peer = wire.Endpoint{Type: reg.DaemonType, Id: reg.DaemonId}
		c.SetRegistered(true)
		c.CompleteRegistration(reg)
		if m.Router != nil {
			m.Router.Add(c.Peer, c)
		}
	}
}

// onStateless delivers the datagram event to any stream already tracking
// this UUID (the sender's own bookkeeping for a STATELESS it issued, spec
// section 4.4's send_datagram). STATELESS additionally counts the
// datagram and answers with a STATELESS_NO_REPLY acknowledgment;
// STATELESS_NO_REPLY only delivers the event (spec section 4.5).
func (m *Machine) onStateless(c *client.Client, msg *wire.Message, reply bool) {
	s, tracked := c.Streams.Get(msg.Header.UUID)

	if reply {
		c.Stats.Datagrams.Add(1)
	}
	if tracked {
		s.Fire(stream.EventDatagram, msg)
	}

	if !reply {
		if tracked {
			c.Streams.Remove(msg.Header.UUID)
		}
		return
	}

	ack := &wire.Message{
		Header: wire.Header{
			Version:     wire.Version,
			Source:      m.Self,
			Destination: msg.Header.Source,
			UUID:        msg.Header.UUID,
			SequenceFlg: wire.SeqStatelessNoReply,
		},
	}
	_ = c.QueueInternal(msg.Header.Source, ack)
	if tracked {
		c.Streams.Remove(msg.Header.UUID)
	}
}

// onStart validates the START fragment's sequence number, allocates the
// REMOTE side of the exchange (or, on a UUID collision with an unlinked
// LOCAL stream, a linked REMOTE loopback partner per scenario S6), fires
// stream-new, and emits the CONTINUE acknowledgment. A BodyConfig payload
// is handled synchronously by Config instead, with no Stream ever tracked
// for it (spec section 4.11's config RPCs are single call/reply exchanges,
// not long-running streams).
func (m *Machine) onStart(ctx context.Context, c *client.Client, msg *wire.Message) {
	if msg.Body != nil && msg.Body.Kind == wire.BodyConfig && m.Config != nil {
		m.Config.OnMessage(ctx, func(dest wire.Endpoint, out *wire.Message) {
			_ = c.QueueExternal(dest, out)
		}, msg)
		return
	}

	if msg.Header.SequenceNum != 1 {
		m.outOfSequence(c, msg)
		return
	}

	s := stream.NewRemote(c, msg.Header.UUID, msg.Header.Source, msg.Header.SequenceNum)

	if existing, exists := c.Streams.Get(msg.Header.UUID); exists {
		if existing.Initiator() != stream.SideLocal || existing.Linked() != nil {
			m.outOfSequence(c, msg)
			return
		}
		existing.Link(s)
		c.Stats.Loopback.Add(1)
	} else if !c.Streams.Put(s) {
		// Stream table at capacity (component C1, spec section 4.1): drop
		// the exchange rather than track it unbounded.
		c.Stats.StreamErrors.Add(1)
		return
	}

	c.Stats.Streams.Add(1)
	s.Fire(stream.EventNew, msg)
	if m.Events != nil {
		m.Events.Emit("stream-new", msg.Header.Source)
	}
	m.ackContinue(c, s, msg)
}

// onContinue validates the sequence number against the chosen side of the
// tracked stream (s itself, or its loopback partner), fires stream-next,
// then emits the CONTINUE/CONTINUE_WAIT acknowledgment; any mismatch is
// err_out_of_sequence and tears the stream down (spec section 4.5).
func (m *Machine) onContinue(c *client.Client, msg *wire.Message) {
	s, ok := c.Streams.Get(msg.Header.UUID)
	if !ok {
		m.unknownSequence(c, msg)
		return
	}
	side := resolveSide(s, msg.Header.SequenceNum)
	if side == nil {
		m.outOfSequence(c, msg)
		return
	}
	side.Fire(stream.EventNext, msg)
	m.ackContinue(c, side, msg)
}

// onContinueWait validates the sequence number like onContinue but takes
// no other action: the peer still owes the next CONTINUE (spec section
// 4.5).
func (m *Machine) onContinueWait(c *client.Client, msg *wire.Message) {
	s, ok := c.Streams.Get(msg.Header.UUID)
	if !ok {
		m.unknownSequence(c, msg)
		return
	}
	side := resolveSide(s, msg.Header.SequenceNum)
	if side == nil {
		m.outOfSequence(c, msg)
		return
	}
	side.Touch()
}

// ackContinue queues the CONTINUE acknowledgment for a just-handled
// START/CONTINUE fragment, switching to CONTINUE_WAIT when the fired
// handler called stream.Stream.WaitSequence, then advances the stream's
// sequence counter in lock-step with the reply (spec section 4.5).
func (m *Machine) ackContinue(c *client.Client, s *stream.Stream, msg *wire.Message) {
	flag := wire.SeqContinue
	if s.SequenceFlag() == wire.SeqContinueWait {
		flag = wire.SeqContinueWait
	}
	ack := &wire.Message{
		Header: wire.Header{
			Version:     wire.Version,
			Source:      m.Self,
			Destination: msg.Header.Source,
			UUID:        msg.Header.UUID,
			SequenceFlg: flag,
			SequenceNum: s.SequenceNum(),
		},
	}
	_ = c.QueueInternal(msg.Header.Source, ack)
	s.Advance()
}

// onEnd validates sequence like onContinue, fires stream-end, emits the
// STREAM_COMPLETE reply, then removes the stream (spec section 4.5).
func (m *Machine) onEnd(c *client.Client, msg *wire.Message) {
	s, ok := c.Streams.Get(msg.Header.UUID)
	if !ok {
		m.unknownSequence(c, msg)
		return
	}
	side := resolveSide(s, msg.Header.SequenceNum)
	if side == nil {
		m.outOfSequence(c, msg)
		return
	}
	side.Fire(stream.EventComplete, msg)

	complete := &wire.Message{
		Header: wire.Header{
			Version:     wire.Version,
			Source:      m.Self,
			Destination: msg.Header.Source,
			UUID:        msg.Header.UUID,
			SequenceFlg: wire.SeqStreamComplete,
		},
	}
	_ = c.QueueInternal(msg.Header.Source, complete)

	c.Streams.Remove(msg.Header.UUID)
	if m.Events != nil {
		m.Events.Emit("stream-end", msg.Header.Source)
	}
}

// onStreamComplete fires stream-complete on both sides of a loopback pair
// and removes the stream; it carries no sequence number to validate.
func (m *Machine) onStreamComplete(c *client.Client, msg *wire.Message) {
	s, ok := c.Streams.Get(msg.Header.UUID)
	if !ok {
		return
	}
	s.Fire(stream.EventComplete, msg)
	if linked := s.Linked(); linked != nil {
		linked.Fire(stream.EventComplete, msg)
	}
	c.Streams.Remove(msg.Header.UUID)
	if m.Events != nil {
		m.Events.Emit("stream-end", msg.Header.Source)
	}
}

func (m *Machine) outOfSequence(c *client.Client, msg *wire.Message) {
	c.Stats.StreamErrors.Add(1)
	c.Streams.Remove(msg.Header.UUID)
	m.reject(c, msg, wire.StatusOutOfSequence, liberr.GdtOutOfSequence)
}

func (m *Machine) unknownSequence(c *client.Client, msg *wire.Message) {
	c.Stats.StreamErrors.Add(1)
	m.reject(c, msg, wire.StatusUnknownSequence, liberr.GdtUnknownSequence)
}
