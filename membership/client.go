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

package membership

import (
	"context"
	"encoding/json"
	"time"

	dgbclt "github.com/lni/dragonboat/v3"
	"github.com/lni/dragonboat/v3/client"

	liberr "github.com/mink-run/gdt/errors"
	"github.com/mink-run/gdt/wire"
)

// RequestTimeout bounds every SyncPropose/SyncRead this package issues.
const RequestTimeout = 3 * time.Second

// Client wraps one raft group's NodeHost handle and satisfies
// session.Membership without session importing dragonboat directly (the
// core messaging packages stay free of the cluster dependency; only
// membership and cmd wire it in).
type Client struct {
	host      *dgbclt.NodeHost
	clusterID uint64
	sess      *client.Session
}

func NewClient(host *dgbclt.NodeHost, clusterID uint64) *Client {
	return &Client{host: host, clusterID: clusterID, sess: host.GetNoOPSession(clusterID)}
}

// Advertise proposes this daemon's capacity into the replicated directory
// (SPEC_FULL.md section 4.6 ADD).
func (c *Client) Advertise(ctx context.Context, ep wire.Endpoint, capacity int) liberr.Error {
	cmd := Command{Kind: CmdAdvertise, Type: ep.Type, Id: ep.Id, Capacity: capacity}
	return c.propose(ctx, cmd)
}

func (c *Client) Withdraw(ctx context.Context, ep wire.Endpoint) liberr.Error {
	cmd := Command{Kind: CmdWithdraw, Type: ep.Type, Id: ep.Id}
	return c.propose(ctx, cmd)
}

func (c *Client) propose(ctx context.Context, cmd Command) liberr.Error {
	raw, err := json.Marshal(cmd)
	if err != nil {
		return ErrorDecodeCommand.Error(err)
	}
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()
	if _, err := c.host.SyncPropose(ctx, c.sess, raw); err != nil {
		return ErrorDecodeCommand.Error(err)
	}
	return nil
}

// Weight satisfies session.Membership: a linearizable read of ep's
// advertised capacity, 0 (treated as weight 1 by the caller) when absent
// or on read error.
func (c *Client) Weight(ep wire.Endpoint) int {
	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	defer cancel()

	v, err := c.host.SyncRead(ctx, c.clusterID, ep)
	if err != nil {
		return 0
	}
	capacity, _ := v.(int)
	return capacity
}
