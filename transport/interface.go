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

// Package transport declares the reliable, ordered, multi-homing-capable
// datagram transport the core consumes (spec section 1/6): an external
// collaborator, assumed present. Package transport/reftransport supplies a
// TCP-based reference implementation used by tests and local development.
package transport

import (
	"context"
	"time"
)

// SubStream is a named transport sub-stream id (spec section 6); an
// Association multiplexes up to MaxSubStreams of these (16 by default).
type SubStream uint8

// EventKind discriminates a transport notification.
type EventKind uint8

const (
	EventData EventKind = iota
	EventShutdown
	EventAssociationLost
)

// Event is one notification surfaced on Association.Notify().
type Event struct {
	Kind EventKind
	Sub  SubStream
	Data []byte
}

// Association is one live transport connection to a peer, multiplexing
// named sub-streams (spec section 6). Both client-dialed (outbound) and
// listener-accepted (inbound) associations implement it identically.
type Association interface {
	// Send writes raw bytes on the given sub-stream.
	Send(ctx context.Context, sub SubStream, raw []byte) error
	// Poll blocks up to timeout for the next Event, or returns
	// context.DeadlineExceeded-wrapped nil data on a plain poll timeout
	// (spec section 4.4: ingress polls with interval P).
	Poll(ctx context.Context, timeout time.Duration) (Event, error)
	// Notify returns a channel surfacing shutdown and association-change
	// events asynchronously, in addition to Poll.
	Notify() <-chan Event
	// RemoteAddr identifies the peer for logging/diagnostics.
	RemoteAddr() string
	// Close tears the association down.
	Close() error
}

// Dialer creates outbound Associations (spec section 4.4 reconnect).
type Dialer interface {
	Dial(ctx context.Context, addr string) (Association, error)
}

// Listener accepts inbound Associations.
type Listener interface {
	Accept(ctx context.Context) (Association, error)
	Addr() string
	Close() error
}

// Transport is the full collaborator surface: dial outbound, listen
// inbound.
type Transport interface {
	Dialer
	Listen(ctx context.Context, bind string) (Listener, error)
}
