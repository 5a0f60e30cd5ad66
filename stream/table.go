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

package stream

import (
	"github.com/mink-run/gdt/atomic"
	"github.com/mink-run/gdt/pool"
)

// Table is a client's active-streams map, keyed by UUID (spec section
// 4.4). Concurrency-safe: ingress, egress and timeout workers all touch it.
//
// When constructed with a positive capacity (NewTableWithCapacity), Table
// draws an admission slot from a fixed-size pool.Pool for every Put,
// enforcing component C1's bounded-stream-table contract (spec section
// 4.1): past that many concurrent streams, Put refuses admission instead
// of growing the map without limit, and the caller is expected to count a
// stream-alloc-error and drop the exchange.
type Table struct {
	m      atomic.MapTyped[[16]byte, *Stream]
	slots  pool.Pool[struct{}]
	bySlot atomic.MapTyped[[16]byte, uint]
}

// NewTable returns an unbounded Table, matching the teacher's map-only
// active-streams table. Production clients should prefer
// NewTableWithCapacity so the stream count is actually gated.
func NewTable() *Table {
	return &Table{m: atomic.NewMapTyped[[16]byte, *Stream]()}
}

// NewTableWithCapacity returns a Table that admits at most maxStreams
// concurrent entries, backed by the same pool.Pool component C1 uses for
// the raw-buffer and payload pools.
func NewTableWithCapacity(maxStreams uint) *Table {
	if maxStreams == 0 {
		return NewTable()
	}

	return &Table{
		m: atomic.NewMapTyped[[16]byte, *Stream](),
		slots: pool.New[struct{}](maxStreams, func() struct{} { return struct{}{} }, nil),
		bySlot: atomic.NewMapTyped[[16]byte, uint](),
	}
}

func (t *Table) Get(uuid [16]byte) (*Stream, bool) {
	return t.m.Load(uuid)
}

// Put admits s into the table, returning false without storing it if the
// table is at capacity. An unbounded Table (NewTable) always admits.
func (t *Table) Put(s *Stream) bool {
	if t.slots == nil {
		t.m.Store(s.UUID(), s)
		return true
	}

	_, slot, err := t.slots.Acquire()
	if err != nil {
		return false
	}

	t.bySlot.Store(s.UUID(), slot)
	t.m.Store(s.UUID(), s)
	return true
}

func (t *Table) Remove(uuid [16]byte) {
	t.m.Delete(uuid)

	if t.slots == nil {
		return
	}
	if slot, ok := t.bySlot.Load(uuid); ok {
		t.bySlot.Delete(uuid)
		_ = t.slots.Release(slot)
	}
}

// Range iterates every tracked stream in unspecified order. Used by the
// timeout worker to find expired streams.
func (t *Table) Range(fn func(s *Stream) bool) {
	t.m.Range(func(_ [16]byte, s *Stream) bool {
		return fn(s)
	})
}
