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

// Package membership is the A5 collaborator SPEC_FULL.md section 4.6 adds
// to routing: a raft-replicated directory of (daemon-type, daemon-id) ->
// advertised capacity, backing session.Router's weighted-round-robin
// policy. It adapts the teacher's cluster package (a thin dragonboat/v3
// wrapper, see cluster/interface.go) by providing the
// statemachine.IStateMachine the teacher's Cluster.StartCluster expects,
// specialized to this one small directory instead of a general-purpose
// on-disk state machine.
package membership

import (
	"encoding/json"
	"io"
	"sync"

	sm "github.com/lni/dragonboat/v3/statemachine"

	"github.com/mink-run/gdt/wire"
)

// CommandKind discriminates a raft-proposed Directory mutation.
type CommandKind uint8

const (
	CmdAdvertise CommandKind = iota
	CmdWithdraw
)

// Command is the []byte payload dragonboat's SyncPropose carries, JSON
// encoded for readability in cluster snapshots/logs — the teacher's own
// cluster package leaves wire format to the caller.
type Command struct {
	Kind     CommandKind
	Type     string
	Id       string
	Capacity int
}

// entry is the replicated record for one peer.
type entry struct {
	Capacity int `json:"capacity"`
}

// Directory is the dragonboat IStateMachine implementation: Update applies
// a Command, Lookup answers a wire.Endpoint capacity query, snapshots are
// the full peer map JSON-encoded.
type Directory struct {
	mu   sync.RWMutex
	byEp map[wire.Endpoint]entry
}

// New satisfies dragonboat's sm.CreateStateMachineFunc signature
// (clusterID/nodeID are unused: one Directory instance per raft group).
func New(_ uint64, _ uint64) sm.IStateMachine {
	return &Directory{byEp: make(map[wire.Endpoint]entry)}
}

func (d *Directory) Update(e sm.Entry) (sm.Result, error) {
	var cmd Command
	if err := json.Unmarshal(e.Cmd, &cmd); err != nil {
		return sm.Result{}, ErrorDecodeCommand.Error(err)
	}

	ep := wire.Endpoint{Type: cmd.Type, Id: cmd.Id}

	d.mu.Lock()
	switch cmd.Kind {
	case CmdAdvertise:
		d.byEp[ep] = entry{Capacity: cmd.Capacity}
	case CmdWithdraw:
		delete(d.byEp, ep)
	}
	d.mu.Unlock()

	return sm.Result{Value: uint64(len(d.byEp))}, nil
}

// Lookup answers a wire.Endpoint query with its advertised capacity (0 if
// absent), used by Weight below and directly by dragonboat's
// NodeHost.SyncRead in the owning membership.Client.
func (d *Directory) Lookup(query interface{}) (interface{}, error) {
	ep, _ := query.(wire.Endpoint)
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byEp[ep].Capacity, nil
}

func (d *Directory) SaveSnapshot(w io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := json.NewEncoder(w).Encode(d.byEp); err != nil {
		return ErrorEncodeSnapshot.Error(err)
	}
	return nil
}

func (d *Directory) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byEp = make(map[wire.Endpoint]entry)
	if err := json.NewDecoder(r).Decode(&d.byEp); err != nil && err != io.EOF {
		return ErrorDecodeSnapshot.Error(err)
	}
	return nil
}

func (d *Directory) Close() error { return nil }
