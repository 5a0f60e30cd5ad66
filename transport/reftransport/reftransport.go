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

// Package reftransport is a TCP-based reference implementation of
// transport.Transport. Each Association multiplexes its sub-streams over
// one TCP connection using the teacher's encoding/mux package: a
// mux.Multiplexer channel per outgoing sub-stream, a mux.DeMultiplexer
// channel per incoming one. Production deployments are expected to supply
// their own transport.Transport backed by the real multi-homing transport
// (spec section 1, external collaborator); this package exists for tests
// and local development.
package reftransport

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	encmux "github.com/mink-run/gdt/encoding/mux"
	"github.com/mink-run/gdt/transport"
	"github.com/mink-run/gdt/wire"
)

const delim = '\n'

type association struct {
	conn net.Conn
	mux  encmux.Multiplexer

	mu   sync.Mutex
	outs map[transport.SubStream]io.Writer

	events chan transport.Event
	closed chan struct{}
	once   sync.Once
}

func newAssociation(conn net.Conn) *association {
	a := &association{
		conn:   conn,
		mux:    encmux.NewMultiplexer(conn, delim),
		outs:   make(map[transport.SubStream]io.Writer),
		events: make(chan transport.Event, 64),
		closed: make(chan struct{}),
	}

	demux := encmux.NewDeMultiplexer(conn, delim, 64*1024)
	for i := 0; i < wire.DefaultMaxSubStreams; i++ {
		demux.NewChannel(rune(i), &channelWriter{sub: transport.SubStream(i), events: a.events})
	}

	go func() {
		_ = demux.Copy()
		a.once.Do(func() {
			close(a.closed)
			a.events <- transport.Event{Kind: transport.EventAssociationLost}
		})
	}()

	return a
}

// channelWriter adapts one demultiplexed sub-stream into transport.Event
// deliveries; each Write call from the demux corresponds to exactly one
// mux.Multiplexer.Write call on the peer side (spec section 6: one
// encoded GDT message per transport send).
type channelWriter struct {
	sub    transport.SubStream
	events chan transport.Event
}

func (c *channelWriter) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	c.events <- transport.Event{Kind: transport.EventData, Sub: c.sub, Data: cp}
	return len(p), nil
}

func (a *association) Send(ctx context.Context, sub transport.SubStream, raw []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	a.mu.Lock()
	w, ok := a.outs[sub]
	if !ok {
		w = a.mux.NewChannel(rune(sub))
		a.outs[sub] = w
	}
	a.mu.Unlock()

	_, err := w.Write(raw)
	return err
}

func (a *association) Poll(ctx context.Context, timeout time.Duration) (transport.Event, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return transport.Event{}, ctx.Err()
	case <-t.C:
		return transport.Event{}, context.DeadlineExceeded
	case ev := <-a.events:
		return ev, nil
	}
}

func (a *association) Notify() <-chan transport.Event {
	return a.events
}

func (a *association) RemoteAddr() string {
	return a.conn.RemoteAddr().String()
}

func (a *association) Close() error {
	a.once.Do(func() {
		close(a.closed)
	})
	return a.conn.Close()
}

type dialer struct{}

// New constructs a TCP-based reference transport.Transport.
func New() transport.Transport {
	return &dialer{}
}

func (d *dialer) Dial(ctx context.Context, addr string) (transport.Association, error) {
	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return newAssociation(conn), nil
}

func (d *dialer) Listen(ctx context.Context, bind string) (transport.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", bind)
	if err != nil {
		return nil, err
	}
	return &listener{ln: ln}, nil
}

type listener struct {
	ln net.Listener
}

func (l *listener) Accept(ctx context.Context) (transport.Association, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, e := l.ln.Accept()
		ch <- result{c, e}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return newAssociation(r.conn), nil
	}
}

func (l *listener) Addr() string {
	return l.ln.Addr().String()
}

func (l *listener) Close() error {
	return l.ln.Close()
}
