/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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
 */

package aggregator

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// weightedSemaphore bounds the number of concurrent async callback
// invocations run() hands off to goroutines. Weighted with n=0 behaves as
// an always-full gate (every NewWorkerTry fails), matching a disabled
// async callback.
type weightedSemaphore struct {
	ctx context.Context
	w   *semaphore.Weighted
	n   int64
}

func newSemaphore(ctx context.Context, max int, _ bool) *weightedSemaphore {
	return &weightedSemaphore{
		ctx: ctx,
		w:   semaphore.NewWeighted(int64(max)),
		n:   int64(max),
	}
}

func (s *weightedSemaphore) NewWorkerTry() bool {
	if s.n < 1 {
		return false
	}
	return s.w.TryAcquire(1)
}

func (s *weightedSemaphore) DeferWorker() {
	s.w.Release(1)
}

func (s *weightedSemaphore) DeferMain() {
	_ = s.w.Acquire(s.ctx, s.n)
}
