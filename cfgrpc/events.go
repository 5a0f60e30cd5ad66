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

package cfgrpc

import (
	"fmt"
	"sync/atomic"

	nats "github.com/nats-io/nats.go"

	"github.com/mink-run/gdt/wire"
)

// Stream lifecycle kinds mirrored onto NATS (SPEC_FULL.md section 4.11
// ADD). stream-new/stream-timeout/client-reconnected pass through the
// stream package's own event names; stream-end renames stream.EventComplete
// for the external-facing subject, since "complete" and "end" name the
// same moment from two different audiences.
const (
	EventStreamNew         = "stream-new"
	EventStreamEnd         = "stream-end"
	EventStreamTimeout     = "stream-timeout"
	EventClientReconnected = "client-reconnected"
)

// EventSink best-effort mirrors GDT stream lifecycle callbacks onto a
// nats.go subject for cluster-wide observability consumers outside the
// mesh (spec section 4.11 ADD): publish is fire-and-forget over a bounded
// internal queue, never on the hot path of the RPC glue itself. A full
// queue drops the oldest pending event and counts it, rather than
// blocking the caller.
type EventSink struct {
	nc     *nats.Conn
	daemon wire.Endpoint
	queue  chan event

	dropped atomic.Uint64
}

type event struct {
	kind string
	peer wire.Endpoint
}

// NewEventSink starts the background publisher. nc may be nil, in which
// case Emit is a no-op (NATS mirroring is optional).
func NewEventSink(nc *nats.Conn, daemon wire.Endpoint, queueDepth int) *EventSink {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	s := &EventSink{nc: nc, daemon: daemon, queue: make(chan event, queueDepth)}
	if nc != nil {
		go s.run()
	}
	return s
}

// Emit enqueues kind/peer for publication, dropping the oldest queued
// event (and counting it) if the queue is full.
func (s *EventSink) Emit(kind string, peer wire.Endpoint) {
	if s == nil || s.nc == nil {
		return
	}
	e := event{kind: kind, peer: peer}
	select {
	case s.queue <- e:
		return
	default:
	}

	select {
	case <-s.queue:
		s.dropped.Add(1)
	default:
	}
	select {
	case s.queue <- e:
	default:
	}
}

func (s *EventSink) run() {
	subject := fmt.Sprintf("gdt.events.%s.%s", s.daemon.Type, s.daemon.Id)
	for e := range s.queue {
		payload := fmt.Sprintf(`{"kind":%q,"peer":%q}`, e.kind, e.peer.String())
		_ = s.nc.Publish(subject, []byte(payload))
	}
}

// Dropped reports how many queued events were discarded for a full queue.
func (s *EventSink) Dropped() uint64 {
	if s == nil {
		return 0
	}
	return s.dropped.Load()
}
