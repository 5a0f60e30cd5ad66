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

	"github.com/fsnotify/fsnotify"

	"github.com/mink-run/gdt/runner/startStop"
)

// Watch mirrors externally-written changes to the running configuration
// file and the commit-log directory back into a callback (SPEC_FULL.md
// section 4.10 ADD), the way the pack's fsnotify-based config watchers
// reload on Write/Create events. It is supervised with the same
// runner/startStop pattern as the client's ingress/egress/timeout loops.
type Watch struct {
	e  *Engine
	fn func(event string, path string)

	loop startStop.StartStop
	fsw  *fsnotify.Watcher
}

// NewWatch builds a Watch for e; onEvent is called with a coarse event
// name ("running-config" or "commit-log") and the changed path whenever
// fsnotify reports a write or create.
func NewWatch(e *Engine, onEvent func(event, path string)) *Watch {
	w := &Watch{e: e, fn: onEvent}
	w.loop = startStop.New(w.run, w.stop)
	return w
}

func (w *Watch) Start(ctx context.Context) error {
	return w.loop.Start(ctx)
}

func (w *Watch) Stop(ctx context.Context) error {
	return w.loop.Stop(ctx)
}

func (w *Watch) run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw

	if w.e.runningConfPath != "" {
		_ = fsw.Add(w.e.runningConfPath)
	}
	if w.e.commitLogDir != "" {
		_ = fsw.Add(w.e.commitLogDir)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				name := "commit-log"
				if ev.Name == w.e.runningConfPath {
					name = "running-config"
				}
				if w.fn != nil {
					w.fn(name, ev.Name)
				}
			case _, ok := <-fsw.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return nil
}

func (w *Watch) stop(ctx context.Context) error {
	if w.fsw == nil {
		return nil
	}
	return w.fsw.Close()
}
