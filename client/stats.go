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
	"sync/atomic"

	libatm "github.com/mink-run/gdt/atomic"
)

// Stats holds the per-client counters of spec section 3, plus the
// trap-style named counters of SPEC_FULL.md section 3 (grounded on
// original_source/src/include/gdt_stats.h's GDTStatsSession/TrapId).
type Stats struct {
	Bytes        atomic.Uint64
	Packets      atomic.Uint64
	Datagrams    atomic.Uint64
	Streams      atomic.Uint64
	StreamErrors atomic.Uint64
	Timeouts     atomic.Uint64
	SocketErrors atomic.Uint64
	Loopback     atomic.Uint64

	HeartbeatSent     atomic.Uint64
	HeartbeatReceived atomic.Uint64
	HeartbeatMissed   atomic.Uint64

	custom libatm.MapTyped[string, *atomic.Uint64]
}

func NewStats() *Stats {
	return &Stats{
		custom: libatm.NewMapTyped[string, *atomic.Uint64](),
	}
}

// Custom returns the named trap-style counter, creating it on first use.
// Plugin code registers arbitrary counters by name (e.g. "auth_failures")
// without the core needing to know about them up front.
func (s *Stats) Custom(name string) *atomic.Uint64 {
	if v, ok := s.custom.Load(name); ok {
		return v
	}
	v, _ := s.custom.LoadOrStore(name, new(atomic.Uint64))
	return v
}

// CustomNames returns every trap-style counter name created so far, for
// stats-poll export to package metrics.
func (s *Stats) CustomNames() []string {
	var names []string
	s.custom.Range(func(k string, _ *atomic.Uint64) bool {
		names = append(names, k)
		return true
	})
	return names
}
