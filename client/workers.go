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

package client

import (
	"context"
	"time"

	"github.com/mink-run/gdt/duration"
	liberr "github.com/mink-run/gdt/errors"
	"github.com/mink-run/gdt/stream"
	"github.com/mink-run/gdt/transport"
	"github.com/mink-run/gdt/wire"
)

// runIngress polls the transport with interval P. On each packet it
// updates statistics, checks the protocol version, and — when the
// message routes to this daemon — feeds the state machine. On transport
// error or an association-lost event it expires all active streams and,
// for outbound clients, queues a reconnect (spec section 4.4).
func (c *Client) runIngress(ctx context.Context) error {
	c.active = true

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if c.assoc == nil {
			time.Sleep(c.pollInterval)
			continue
		}

		ev, err := c.assoc.Poll(ctx, c.pollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// plain poll timeout (context.DeadlineExceeded): nothing arrived
			// within P, loop again.
			continue
		}

		switch ev.Kind {
		case transport.EventShutdown, transport.EventAssociationLost:
			c.Stats.SocketErrors.Add(1)
			c.RequestExpireNow()
			c.requestReconnect()
			continue
		case transport.EventData:
			c.handleIngressData(ctx, ev.Data)
		}
	}
}

func (c *Client) handleIngressData(ctx context.Context, raw []byte) {
	c.Stats.Bytes.Add(uint64(len(raw)))
	c.Stats.Packets.Add(1)
	c.touch()

	var msg wire.Message
	if err := c.codec.Decode(raw, &msg, c.sessionID); err != nil {
		c.Stats.StreamErrors.Add(1)
		return
	}

	if msg.Header.Version != wire.Version {
		c.Stats.StreamErrors.Add(1)
		return
	}

	if c.dispatcher != nil {
		c.dispatcher.Dispatch(ctx, c, &msg)
	}
}

// runEgress drains the internal queue first (protocol-generated replies),
// then the external queue (user sends), transmitting each payload on its
// transport sub-stream id (spec section 4.4).
func (c *Client) runEgress(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case out := <-c.intQueue:
			c.sendOne(ctx, out)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return nil
		case out := <-c.intQueue:
			c.sendOne(ctx, out)
		case out := <-c.extQueue:
			c.sendOne(ctx, out)
		case <-time.After(c.egressIdle()):
		}
	}
}

// egressIdle mirrors spec section 4.4's suspension-point note: 1ns when a
// stream is active and a packet arrived within the last second, otherwise
// 1ms, so an idle client does not spin.
func (c *Client) egressIdle() time.Duration {
	if time.Since(c.lastActivity) < time.Second && c.hasActiveStream() {
		return time.Nanosecond
	}
	return time.Millisecond
}

func (c *Client) hasActiveStream() bool {
	found := false
	c.Streams.Range(func(_ *stream.Stream) bool {
		found = true
		return false
	})
	return found
}

// sendOne draws its scratch encode buffer from the client's raw-buffer
// pool (component C1, spec section 4.1) when one was configured, rather
// than heap-allocating one per send: a flooding sender hits pool exhaustion
// instead of growing memory unboundedly. Clients built without a Registry
// (most unit tests) fall back to a one-off allocation.
func (c *Client) sendOne(ctx context.Context, out *outgoing) {
	if c.assoc == nil {
		c.requestReconnect()
		return
	}

	buf, slot, pooled, perr := c.acquireRawBuffer()
	if perr != nil {
		c.Stats.StreamErrors.Add(1)
		return
	}
	if pooled {
		defer c.registry.RawBuffers.Release(slot)
	}

	n, err := c.codec.Encode(out.msg, buf, c.sessionID, false)
	if err != nil {
		c.Stats.StreamErrors.Add(1)
		return
	}

	if sendErr := c.assoc.Send(ctx, out.sub, buf[:n]); sendErr != nil {
		c.Stats.SocketErrors.Add(1)
		c.requestReconnect()
		return
	}

	if s, ok := c.Streams.Get(out.msg.Header.UUID); ok {
		s.Fire("payload-sent", nil)
	}
}

// acquireRawBuffer returns a scratch buffer sized to the codec's max
// message size, drawn from the registry's pooled raw buffers when one is
// configured. pooled reports whether the caller must Release the slot.
func (c *Client) acquireRawBuffer() (buf []byte, slot uint, pooled bool, err liberr.Error) {
	if c.registry == nil || c.registry.RawBuffers == nil {
		return make([]byte, c.codec.MaxMessageSize()), 0, false, nil
	}

	buf, slot, err = c.registry.RawBuffers.Acquire()
	if err != nil {
		return nil, 0, false, err
	}
	if len(buf) < c.codec.MaxMessageSize() {
		return nil, 0, false, ErrorBufferTooSmall.Error(nil)
	}
	return buf, slot, true, nil
}

// runTimeout checks the expire-now flag every second; when set, it
// iterates active streams, marks those older than T as expired, fires
// stream-timeout on each (and its linked stream, if any), then removes
// and returns them to the pool (spec section 4.4).
func (c *Client) runTimeout(ctx context.Context) error {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.sweepExpired()
		case <-c.expireNow:
			c.sweepExpired()
		}
	}
}

func (c *Client) sweepExpired() {
	threshold := c.streamTimeout

	var expired [][16]byte
	c.Streams.Range(func(s *stream.Stream) bool {
		if time.Since(s.LastActivity()) > threshold {
			expired = append(expired, s.UUID())
		}
		return true
	})

	for _, id := range expired {
		s, ok := c.Streams.Get(id)
		if !ok {
			continue
		}
		s.MarkExpired()
		s.Fire("stream-timeout", nil)
		if linked := s.Linked(); linked != nil {
			linked.Fire("stream-timeout", nil)
		}
		c.Streams.Remove(id)
		c.Stats.Timeouts.Add(1)
		if c.Events != nil {
			c.Events.Emit("stream-timeout", s.Destination())
		}
	}
}

// reconnect tears the socket down and loops redialing with period P until
// success or shutdown (spec section 4.4). Only meaningful for outbound
// clients; called from runReconnectWatch on a reconnectReq signal.
func (c *Client) reconnect(ctx context.Context, addr string) error {
	if c.Direction != DirectionOutbound || c.transport == nil {
		return ErrorNoTransport.Error(nil)
	}

	if c.assoc != nil {
		_ = c.assoc.Close()
		c.assoc = nil
	}

	if c.Events != nil {
		c.Events.Emit("client-reconnecting", c.Peer)
	}

	backoff := duration.Duration(c.pollInterval)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		assoc, err := c.transport.Dial(ctx, addr)
		if err == nil {
			c.assoc = assoc
			c.active = true
			if c.Events != nil {
				c.Events.Emit("client-reconnected", c.Peer)
			}
			return nil
		}

		c.Stats.SocketErrors.Add(1)
		time.Sleep(backoff.Time())
	}
}

// runReconnectWatch waits for requestReconnect's signal and redials using
// the address the client was originally constructed with (spec section
// 4.4). It is a no-op for inbound clients, which requestReconnect never
// signals in the first place.
func (c *Client) runReconnectWatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.reconnectReq:
			_ = c.reconnect(ctx, c.LocalBind)
		}
	}
}

func (c *Client) stopIngress(_ context.Context) error {
	c.active = false
	if c.assoc != nil {
		return c.assoc.Close()
	}
	return nil
}

func (c *Client) stopEgress(_ context.Context) error { return nil }

func (c *Client) stopTimeout(_ context.Context) error { return nil }

func (c *Client) stopReconnectWatch(_ context.Context) error { return nil }
