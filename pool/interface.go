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

// Package pool implements fixed-capacity object pools (spec section 4.1,
// component C1): one pool each for streams, messages, payloads and raw
// buffers, sized to the client's maximum concurrent stream count at
// construction time. Allocation never blocks; exhaustion returns
// ErrorExhausted so the caller can record a stream-alloc-error statistic
// and abandon the current operation rather than stall a worker loop.
package pool

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
	liberr "github.com/mink-run/gdt/errors"
)

// Pool is a fixed-capacity, non-blocking object pool of T. Slots are
// tracked by a bitset free-list rather than a channel, so Acquire/Release
// never allocate past construction and Len/Cap are O(1).
type Pool[T any] interface {
	// Acquire claims a free slot and returns its value and index. The zero
	// value of T is returned with ErrorExhausted if no slot is free.
	Acquire() (val T, slot uint, err liberr.Error)

	// Release returns a previously acquired slot to the pool, resetting its
	// value to the pool's reset function (if any).
	Release(slot uint) liberr.Error

	// Get returns the current value stored at slot without releasing it.
	Get(slot uint) (val T, ok bool)

	// Len returns the number of slots currently in use.
	Len() uint

	// Cap returns the fixed capacity of the pool.
	Cap() uint
}

// New constructs a Pool of fixed capacity cap, using newFn to construct the
// backing value for each slot up front (objects are reused across
// Acquire/Release, never reallocated) and resetFn (optional) to clear a
// value's state before it is handed out again.
func New[T any](capacity uint, newFn func() T, resetFn func(T) T) Pool[T] {
	p := &pool[T]{
		free: bitset.New(capacity),
		cap:  capacity,
		val:  make([]T, capacity),
		rst:  resetFn,
	}

	p.free.FlipRange(0, capacity)

	for i := uint(0); i < capacity; i++ {
		p.val[i] = newFn()
	}

	return p
}

type pool[T any] struct {
	mu   sync.Mutex
	free *bitset.BitSet
	cap  uint
	val  []T
	rst  func(T) T
}

func (p *pool[T]) Acquire() (T, uint, liberr.Error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.free.NextSet(0)
	if !ok {
		var zero T
		return zero, 0, ErrorExhausted.Error(nil)
	}

	p.free.Clear(slot)
	return p.val[slot], slot, nil
}

func (p *pool[T]) Release(slot uint) liberr.Error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if slot >= p.cap {
		return ErrorInvalidSlot.Error(nil)
	}

	if p.rst != nil {
		p.val[slot] = p.rst(p.val[slot])
	}

	p.free.Set(slot)
	return nil
}

func (p *pool[T]) Get(slot uint) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if slot >= p.cap || p.free.Test(slot) {
		var zero T
		return zero, false
	}
	return p.val[slot], true
}

func (p *pool[T]) Len() uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cap - p.free.Count()
}

func (p *pool[T]) Cap() uint {
	return p.cap
}
