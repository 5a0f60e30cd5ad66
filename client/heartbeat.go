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

	"github.com/mink-run/gdt/stream"
	"github.com/mink-run/gdt/wire"
)

// DefaultHeartbeatInterval is the keepalive period used when a Config
// leaves HeartbeatInterval unset (spec section 4.8).
const DefaultHeartbeatInterval = 30 * time.Second

// runHeartbeat is the fourth per-client worker (spec section 4.8): every
// HeartbeatInterval, if the previous heartbeat slot is ready (no reply
// outstanding), it opens a HEARTBEAT-flagged exchange tracked as an
// ordinary Stream so the existing timeout worker's stream-timeout sweep
// doubles as the miss detector. A heartbeat never overlaps itself — a
// tick that finds the slot still busy is a no-op, the same way the
// teacher's component workers skip a poll cycle rather than pile up
// concurrent work.
func (c *Client) runHeartbeat(ctx context.Context) error {
	interval := c.heartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Heartbeat()
		}
	}
}

func (c *Client) stopHeartbeat(ctx context.Context) error {
	deadline := time.Now().Add(c.streamTimeout)
	for c.heartbeatOutstanding() {
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			break
		case <-time.After(time.Millisecond):
		}
	}
	c.heartbeatMu.Lock()
	c.heartbeatPending = nil
	c.heartbeatMu.Unlock()

	if c.OnHeartbeatCleanup != nil {
		c.OnHeartbeatCleanup()
	}
	return nil
}

func (c *Client) heartbeatOutstanding() bool {
	c.heartbeatMu.Lock()
	defer c.heartbeatMu.Unlock()
	return c.heartbeatPending != nil
}

// Heartbeat opens one HEARTBEAT exchange, tracked as a Stream purely for
// UUID/sequence correlation so runTimeout's sweep fires stream-timeout on
// a peer that never answers (spec section 4.5/4.8). Exported so ops
// tooling and tests can trigger an out-of-band probe; the heartbeat
// worker itself calls it once per tick.
func (c *Client) Heartbeat() {
	c.heartbeatMu.Lock()
	if c.heartbeatPending != nil {
		c.heartbeatMu.Unlock()
		return
	}

	s, err := stream.New(c, c.Peer, nil, nil)
	if err != nil {
		c.heartbeatMu.Unlock()
		return
	}
	s.SetCallback(stream.EventHeartbeatReceived, c.onHeartbeatReceived)
	s.SetCallback(stream.EventHeartbeatMissed, c.onHeartbeatMissed)
	s.SetCallback(stream.EventTimeout, c.onHeartbeatMissed)

	c.heartbeatPending = s
	c.heartbeatMu.Unlock()

	if !c.Streams.Put(s) {
		c.Stats.StreamErrors.Add(1)
		c.clearHeartbeat(s)
		return
	}

	msg := &wire.Message{
		Header: wire.Header{
			Version:     wire.Version,
			Source:      c.selfEndpoint(),
			Destination: c.Peer,
			UUID:        s.UUID(),
			SequenceNum: s.SequenceNum(),
			SequenceFlg: wire.SeqHeartbeat,
		},
	}

	if qerr := c.QueueInternal(c.Peer, msg); qerr != nil {
		c.clearHeartbeat(s)
		return
	}
	c.Stats.HeartbeatSent.Add(1)
}

// onHeartbeatReceived and onHeartbeatMissed are registered on the tracked
// heartbeat Stream and fired by the state machine's onHeartbeat (on a
// sequence match or mismatch) or by runTimeout's stream-timeout sweep (on
// silence). Either way the slot goes back to ready.
func (c *Client) onHeartbeatReceived(s *stream.Stream, _ *wire.Message) {
	c.Stats.HeartbeatReceived.Add(1)
	c.clearHeartbeat(s)
	if c.OnHeartbeatReceived != nil {
		c.OnHeartbeatReceived()
	}
}

func (c *Client) onHeartbeatMissed(s *stream.Stream, _ *wire.Message) {
	c.Stats.HeartbeatMissed.Add(1)
	c.clearHeartbeat(s)
	if c.OnHeartbeatMissed != nil {
		c.OnHeartbeatMissed()
	}
}

func (c *Client) clearHeartbeat(s *stream.Stream) {
	c.heartbeatMu.Lock()
	if c.heartbeatPending == s {
		c.heartbeatPending = nil
	}
	c.heartbeatMu.Unlock()
}

func (c *Client) selfEndpoint() wire.Endpoint {
	return c.Self
}
