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

// Package stream models one logical GDT request/reply or long-running
// exchange (spec section 4.3, component C3): a 16-byte UUID, a monotonic
// sequence counter and flag, a callback set, and an optional loopback link
// to a peer Stream sharing the same UUID. UUIDs are minted with
// hashicorp/go-uuid, the way the teacher reaches for it wherever a random
// correlation id is needed.
package stream

import (
	"sync"
	"time"

	libuid "github.com/hashicorp/go-uuid"

	liberr "github.com/mink-run/gdt/errors"
	"github.com/mink-run/gdt/wire"
)

// Side identifies which end of a Stream's cooperative ACK protocol a local
// instance represents.
type Side uint8

const (
	SideLocal Side = iota
	SideRemote
)

// Event names the callback hooks a Stream's owner may register (spec
// section 4.3/4.5): stream-new, stream-next, stream-timeout,
// payload-sent, stream-complete.
type Event string

const (
	EventNew               Event = "stream-new"
	EventNext              Event = "stream-next"
	EventTimeout           Event = "stream-timeout"
	EventSent              Event = "payload-sent"
	EventComplete          Event = "stream-complete"
	EventDatagram          Event = "datagram"
	EventHeartbeatReceived Event = "heartbeat-received"
	EventHeartbeatMissed   Event = "heartbeat-missed"
)

// Callback receives the Stream and the just-decoded message (nil for
// payload-sent/stream-timeout, which carry no fresh body).
type Callback func(s *Stream, msg *wire.Message)

// Egress is the minimal surface Send needs from its owning client: queue
// one encoded fragment for transmission. Implemented by package client.
type Egress interface {
	QueueExternal(dest wire.Endpoint, msg *wire.Message) liberr.Error
}

// Stream is one tracked exchange. All exported methods are safe for
// concurrent use; mutation is guarded by an internal mutex since ingress,
// egress and timeout workers may touch the same Stream concurrently.
type Stream struct {
	mu sync.Mutex

	uuid        [16]byte
	destination wire.Endpoint
	initiator   Side

	seqNum uint32
	seqFlg wire.SequenceFlag

	replyReceived bool
	lastActivity  time.Time
	expired       bool

	params  wire.Parameters
	payload []byte
	pending *wire.Message

	linked *Stream

	callbacks map[Event]Callback

	egress Egress
}

// New assigns a fresh UUID, sets state START with sequence number 1 and
// initiator LOCAL. It does not register the Stream in any table; callers
// (package client, package session) own the active-streams map keyed by
// UUID (spec section 4.3/4.4).
func New(egress Egress, dest wire.Endpoint, onSent, onReply Callback) (*Stream, liberr.Error) {
	raw, err := libuid.GenerateRandomBytes(16)
	if err != nil {
		return nil, ErrorUUIDGeneration.Error(err)
	}

	s := &Stream{
		destination: dest,
		initiator:   SideLocal,
		seqNum:      1,
		seqFlg:      wire.SeqStart,
		egress:      egress,
		callbacks:   make(map[Event]Callback, 4),
		lastActivity: time.Now(),
	}
	copy(s.uuid[:], raw)

	if onSent != nil {
		s.callbacks[EventSent] = onSent
	}
	if onReply != nil {
		s.callbacks[EventNext] = onReply
	}

	return s, nil
}

// NewRemote allocates the REMOTE side of an exchange observed by ingress
// (spec section 4.5, START handling): same UUID as the peer's message,
// initiator REMOTE, expected sequence number one greater than the one just
// received.
func NewRemote(egress Egress, uuid [16]byte, src wire.Endpoint, seqNum uint32) *Stream {
	return &Stream{
		uuid:         uuid,
		destination:  src,
		initiator:    SideRemote,
		seqNum:       seqNum,
		seqFlg:       wire.SeqStart,
		egress:       egress,
		callbacks:    make(map[Event]Callback, 4),
		lastActivity: time.Now(),
	}
}

func (s *Stream) UUID() [16]byte { return s.uuid }

func (s *Stream) Destination() wire.Endpoint { return s.destination }

func (s *Stream) Initiator() Side { return s.initiator }

// SequenceFlag returns the flag that will be stamped on the next outgoing
// fragment.
func (s *Stream) SequenceFlag() wire.SequenceFlag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqFlg
}

func (s *Stream) SequenceNum() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqNum
}

func (s *Stream) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Stream) touch() {
	s.lastActivity = time.Now()
}

// Touch is the package-external hook for CONTINUE_WAIT (spec section 4.5):
// update activity without advancing the sequence counter or firing a
// callback.
func (s *Stream) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
}

// terminal reports whether seqFlg already reached END or STREAM_COMPLETE,
// after which no further outgoing fragment may be produced.
func (s *Stream) terminal() bool {
	return s.seqFlg == wire.SeqEnd || s.seqFlg == wire.SeqStreamComplete
}

// ContinueSequence arms the next fragment with CONTINUE.
func (s *Stream) ContinueSequence() liberr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return ErrorAlreadyEnded.Error(nil)
	}
	s.seqFlg = wire.SeqContinue
	return nil
}

// WaitSequence arms the next fragment with CONTINUE_WAIT, used by a
// handler that needs more time before it can produce a reply fragment.
func (s *Stream) WaitSequence() liberr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return ErrorAlreadyEnded.Error(nil)
	}
	s.seqFlg = wire.SeqContinueWait
	return nil
}

// EndSequence arms the next fragment with END, the stream's terminal
// fragment.
func (s *Stream) EndSequence() liberr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return ErrorAlreadyEnded.Error(nil)
	}
	s.seqFlg = wire.SeqEnd
	return nil
}

// SetCallback registers fn for event, replacing any previous registration.
func (s *Stream) SetCallback(event Event, fn Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[event] = fn
}

// ClearCallbacks removes every registered callback.
func (s *Stream) ClearCallbacks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = make(map[Event]Callback, 4)
}

// RemoveCallback removes the callback registered for event, if any.
func (s *Stream) RemoveCallback(event Event) liberr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.callbacks[event]; !ok {
		return ErrorNoCallback.Error(nil)
	}
	delete(s.callbacks, event)
	return nil
}

// fire invokes the callback registered for event, if any, outside the
// stream's own lock.
func (s *Stream) fire(event Event, msg *wire.Message) {
	s.mu.Lock()
	fn, ok := s.callbacks[event]
	s.mu.Unlock()
	if ok && fn != nil {
		fn(s, msg)
	}
}

// Fire is the package-external hook used by the state machine and timeout
// worker to dispatch a lifecycle event to this stream's callbacks.
func (s *Stream) Fire(event Event, msg *wire.Message) {
	s.fire(event, msg)
}

// SetParams replaces the stream's parameter bag, used to stage the body of
// the next outgoing fragment.
func (s *Stream) SetParams(p wire.Parameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
}

// SetPayload stages the single in-flight payload buffer (spec section
// 4.3: "one payload in flight per stream at a time").
func (s *Stream) SetPayload(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = p
}

// Link attaches peer as this stream's loopback partner (spec section
// 4.3/S6): one LOCAL stream linked to one REMOTE stream sharing the UUID.
func (s *Stream) Link(peer *Stream) {
	s.mu.Lock()
	s.linked = peer
	s.mu.Unlock()

	peer.mu.Lock()
	peer.linked = s
	peer.mu.Unlock()
}

// Linked returns this stream's loopback partner, if any.
func (s *Stream) Linked() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linked
}

// MarkExpired flags the stream as expired; the timeout worker removes it
// from the active-streams table and returns it to the pool after firing
// stream-timeout on it and its linked partner, if any (spec section 4.4).
func (s *Stream) MarkExpired() {
	s.mu.Lock()
	s.expired = true
	s.mu.Unlock()
}

func (s *Stream) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}

// advance bumps the expected sequence number by one, toggling
// replyReceived so both cooperative-ACK sides stay in lock-step (spec
// section 4.3).
func (s *Stream) advance() {
	s.seqNum++
	s.replyReceived = !s.replyReceived
	s.touch()
}

// Advance is the package-external hook the state machine calls once a
// fragment has been acknowledged.
func (s *Stream) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
}

// Send encodes one fragment from the stream's current message contents
// (params, plus body when includeBody is set) stamped with this stream's
// UUID/sequence/flag, and queues it on the owning client's external egress
// queue (spec section 4.3).
func (s *Stream) Send(includeBody bool, body *wire.Body) liberr.Error {
	s.mu.Lock()
	if s.egress == nil {
		s.mu.Unlock()
		return ErrorClosed.Error(nil)
	}

	msg := &wire.Message{
		Header: wire.Header{
			Version:     wire.Version,
			Destination: s.destination,
			UUID:        s.uuid,
			SequenceNum: s.seqNum,
			SequenceFlg: s.seqFlg,
		},
	}
	if includeBody {
		msg.Body = body
	}
	dest := s.destination
	s.pending = msg
	s.mu.Unlock()

	return s.egress.QueueExternal(dest, msg)
}
