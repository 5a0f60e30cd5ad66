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

// Package cfgengine implements the configuration engine of spec section
// 4.10 (component C8): auto-complete, two-pass commit, discard, rollback,
// replace-prepare+merge, the sort and notification-ready rules, and the
// save & rollback file layout, all serialized by one RecursiveMutex per
// Engine instance (spec section 5).
package cfgengine

import (
	"path/filepath"
	"strconv"

	"github.com/mink-run/gdt/cfgmodel"
)

// Engine owns one configuration tree and its commit-log directory.
type Engine struct {
	Root *cfgmodel.Node
	mu   *RecursiveMutex

	commitLogDir    string
	runningConfPath string

	subs *SubscriptionStore
}

// Config bundles Engine construction parameters.
type Config struct {
	CommitLogDir    string
	RunningConfPath string
	Subscriptions   *SubscriptionStore
}

func New(cfg Config) *Engine {
	if cfg.CommitLogDir == "" {
		cfg.CommitLogDir = "./commit-log"
	}
	return &Engine{
		Root:            cfgmodel.NewRoot(),
		mu:              NewRecursiveMutex(),
		commitLogDir:    cfg.CommitLogDir,
		runningConfPath: cfg.RunningConfPath,
		subs:            cfg.Subscriptions,
	}
}

// Subscriptions exposes the engine's notification subscriber store so
// package cfgrpc can register watches from GET and drain pending
// deliveries after a commit (spec section 4.11's GET: "optionally
// register the calling user as a notification subscriber").
func (e *Engine) Subscriptions() *SubscriptionStore {
	return e.subs
}

func (e *Engine) rollbackPath(index int) string {
	return filepath.Join(e.commitLogDir, rollbackName(index))
}

func rollbackName(index int) string {
	return ".rollback." + strconv.Itoa(index) + ".pmcfg"
}
