/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package startStop wraps a paired start/stop function as one supervised
// goroutine: Start launches it asynchronously and returns immediately; the
// goroutine runs start until its context is cancelled or it exits on its
// own, then always runs the matching stop for cleanup. Used throughout the
// module (package client's three workers, package cfgengine's file
// watcher) instead of hand-rolled goroutine/channel bookkeeping at each
// call site.
package startStop

import (
	"context"
	"time"
)

// Func is a supervised lifecycle function: start blocks until ctx is
// cancelled (or returns early on its own); stop performs cleanup once
// start has returned.
type Func func(ctx context.Context) error

// StartStop supervises one start/stop function pair.
type StartStop interface {
	// Start launches start asynchronously under a context derived from ctx
	// and returns immediately. Calling Start while already running cancels
	// the previous instance first.
	Start(ctx context.Context) error
	// Stop cancels the running instance's context, if any, and returns
	// immediately; the paired stop function runs asynchronously as part of
	// the supervised goroutine's own cleanup.
	Stop(ctx context.Context) error
	// Restart is Stop followed by Start.
	Restart(ctx context.Context) error

	// IsRunning reports whether the supervised goroutine is currently
	// between start and its matching stop.
	IsRunning() bool
	// Uptime returns the duration since the current run started, or zero
	// when not running.
	Uptime() time.Duration

	// ErrorsLast returns the most recent error recorded by start or stop
	// during the current run, or nil.
	ErrorsLast() error
	// ErrorsList returns every error recorded during the current run.
	ErrorsList() []error
}

// New constructs a StartStop for the given function pair. Either may be
// nil; invoking a nil function records an "invalid start/stop function"
// error instead of panicking.
func New(start, stop Func) StartStop {
	return &runner{
		startFn: start,
		stopFn:  stop,
	}
}
