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

package cfgengine

import (
	"context"
	"sync"
)

// reentryKey is the context key a RecursiveMutex stamps on the context it
// hands back from Lock, carrying the calling goroutine's reentry token.
type reentryKey struct{}

// RecursiveMutex serializes access to one Engine's tree (spec section 5:
// "each config instance is serialized via a single per-config recursive
// mutex"). Go has neither a native recursive mutex nor goroutine-local
// storage, so reentrancy is tracked explicitly: Lock hands back a
// context.Context carrying a unique token; a nested Lock call presenting
// that same context (or a descendant of it) recognizes its own token and
// skips blocking, rather than deadlocking against itself the way a second
// sync.Mutex.Lock from the same goroutine would.
type RecursiveMutex struct {
	sem  chan struct{}
	meta sync.Mutex
	tok  *int
	depth int
}

func NewRecursiveMutex() *RecursiveMutex {
	m := &RecursiveMutex{sem: make(chan struct{}, 1)}
	m.sem <- struct{}{}
	return m
}

// Lock acquires the mutex, or recognizes a reentrant call carried in ctx,
// and returns the context to pass to any nested call and to Unlock.
func (m *RecursiveMutex) Lock(ctx context.Context) context.Context {
	if tok, ok := ctx.Value(reentryKey{}).(*int); ok {
		m.meta.Lock()
		if m.tok == tok {
			m.depth++
			m.meta.Unlock()
			return ctx
		}
		m.meta.Unlock()
	}

	<-m.sem
	tok := new(int)
	m.meta.Lock()
	m.tok = tok
	m.depth = 1
	m.meta.Unlock()
	return context.WithValue(ctx, reentryKey{}, tok)
}

// Unlock releases one level of nesting; the underlying lock is released
// to the next waiter only once the outermost Lock's Unlock runs.
func (m *RecursiveMutex) Unlock(ctx context.Context) {
	tok, _ := ctx.Value(reentryKey{}).(*int)

	m.meta.Lock()
	if tok == nil || m.tok != tok {
		m.meta.Unlock()
		return
	}
	m.depth--
	release := m.depth == 0
	if release {
		m.tok = nil
	}
	m.meta.Unlock()

	if release {
		m.sem <- struct{}{}
	}
}
