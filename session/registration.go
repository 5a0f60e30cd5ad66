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
	"time"

	"github.com/mink-run/gdt/client"
	liberr "github.com/mink-run/gdt/errors"
	"github.com/mink-run/gdt/wire"
)

// RegistrationWatchdog is the 10-second deadline of spec section 4.7,
// implemented with context.WithTimeout plus a semaphore release rather
// than a raw channel (SPEC_FULL.md section 4.7 ADD), the way the teacher's
// own blocking-handshake helpers gate completion with golang.org/x/sync.
const RegistrationWatchdog = 10 * time.Second

// Register drives the outbound side of the handshake: send REGISTER-REQUEST
// carrying this daemon's identity, then block on the semaphore armed by
// client.Client.ArmRegistration until statemachine's dispatch observes the
// peer's REGISTER-RESULT on the ingress goroutine and releases it via
// CompleteRegistration, or the watchdog expires.
func Register(ctx context.Context, c *client.Client, self wire.Endpoint, isRouter bool) liberr.Error {
	sem := c.ArmRegistration()

	req := &wire.Message{
		Header: wire.Header{
			Version:     wire.Version,
			Source:      self,
			Destination: c.Peer,
			SequenceFlg: wire.SeqStateless,
		},
		Body: &wire.Body{
			Kind: wire.BodyRegistration,
			Registration: &wire.RegistrationMessage{
				Action:     wire.RegisterRequest,
				DaemonType: self.Type,
				DaemonId:   self.Id,
				IsRouter:   isRouter,
			},
		},
	}
	if err := c.QueueInternal(c.Peer, req); err != nil {
		return err
	}

	deadline, cancel := context.WithTimeout(ctx, RegistrationWatchdog)
	defer cancel()

	if err := sem.Acquire(deadline, 1); err != nil {
		return ErrorRegistrationTimeout.Error(err)
	}
	sem.Release(1)
	return nil
}

// CompleteInbound answers an inbound REGISTER-REQUEST with this daemon's
// own REGISTER-RESULT and marks c registered once identity has been
// exchanged in both directions (spec section 4.7).
func CompleteInbound(c *client.Client, self wire.Endpoint, isRouter bool, peerMsg *wire.RegistrationMessage) liberr.Error {
	if peerMsg == nil || peerMsg.DaemonType == "" || peerMsg.DaemonId == "" {
		return nil
	}

	c.Peer = wire.Endpoint{Type: peerMsg.DaemonType, Id: peerMsg.DaemonId}
	c.SetRegistered(true)

	result := &wire.Message{
		Header: wire.Header{
			Version:     wire.Version,
			Source:      self,
			Destination: c.Peer,
			SequenceFlg: wire.SeqStateless,
		},
		Body: &wire.Body{
			Kind: wire.BodyRegistration,
			Registration: &wire.RegistrationMessage{
				Action:     wire.RegisterResult,
				DaemonType: self.Type,
				DaemonId:   self.Id,
				IsRouter:   isRouter,
			},
		},
	}
	return c.QueueInternal(c.Peer, result)
}
