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

// Subscription durability in this package follows the teacher's nutsdb
// component (config/components/nutsdb): subscriptions are persisted to an
// embedded nutsdb store keyed by user, so a daemon restart does not lose
// a standing watch (SPEC_FULL.md section 4.10 ADD).
package cfgengine

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/nutsdb/nutsdb"

	"github.com/mink-run/gdt/cfgmodel"
	liberr "github.com/mink-run/gdt/errors"
)

const subscriptionBucket = "gdt_cfg_subscriptions"

// Subscription is one user's standing watch on a configuration subtree
// (spec section 4.10's notification-ready rule): Path is the watched
// node's full path, Pending accumulates node descriptions since the last
// drain.
type Subscription struct {
	User    string
	Path    string
	Pending []string
}

// SubscriptionStore tracks subscriptions and mirrors them into an embedded
// nutsdb database keyed by user, so they survive a daemon restart.
type SubscriptionStore struct {
	mu   sync.Mutex
	subs map[string]*Subscription

	db *nutsdb.DB
}

// NewSubscriptionStore returns an in-memory subscription store with no
// nutsdb-backed persistence, for tests and daemons that accept losing
// standing watches across a restart.
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{subs: map[string]*Subscription{}}
}

// OpenSubscriptionStore opens (creating if absent) the nutsdb database at
// dir and restores any previously persisted subscriptions.
func OpenSubscriptionStore(dir string) (*SubscriptionStore, liberr.Error) {
	opt := nutsdb.DefaultOptions
	opt.Dir = dir
	db, err := nutsdb.Open(opt)
	if err != nil {
		return nil, ErrorNoRevision.Error(err)
	}

	s := &SubscriptionStore{subs: map[string]*Subscription{}, db: db}

	_ = db.View(func(tx *nutsdb.Tx) error {
		entries, derr := tx.GetAll(subscriptionBucket)
		if derr != nil {
			return nil
		}
		for _, e := range entries {
			var sub Subscription
			if json.Unmarshal(e.Value, &sub) == nil {
				s.subs[sub.User] = &sub
			}
		}
		return nil
	})

	return s, nil
}

// Subscribe registers user's watch on path, persisting it to nutsdb.
func (s *SubscriptionStore) Subscribe(user, path string) liberr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &Subscription{User: user, Path: path}
	s.subs[user] = sub
	return s.persist(sub)
}

// Unsubscribe removes user's watch.
func (s *SubscriptionStore) Unsubscribe(user string) liberr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subs, user)
	if s.db == nil {
		return nil
	}
	if err := s.db.Update(func(tx *nutsdb.Tx) error {
		return tx.Delete(subscriptionBucket, []byte(user))
	}); err != nil {
		return ErrorNoRevision.Error(err)
	}
	return nil
}

// NotifyAll fires every subscription whose watched path is an ancestor (or
// exact match) of a changed node's path, appending that node's description
// to the subscription's pending list (spec section 4.10's notification-
// ready rule: "each subscription is fired once to each subscribed user
// after commit completes").
func (s *SubscriptionStore) NotifyAll(changed []*cfgmodel.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fired := map[string]bool{}
	for _, n := range changed {
		path := n.Path()
		for user, sub := range s.subs {
			if fired[user] {
				continue
			}
			if pathIsAncestor(sub.Path, path) {
				sub.Pending = append(sub.Pending, n.Description)
			}
		}
	}

	for _, sub := range s.subs {
		if len(sub.Pending) > 0 {
			_ = s.persist(sub)
		}
	}
}

// Users lists every user with a standing subscription, for callers that
// need to drain all of them after a commit.
func (s *SubscriptionStore) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]string, 0, len(s.subs))
	for user := range s.subs {
		users = append(users, user)
	}
	return users
}

// Drain returns and clears user's pending notifications.
func (s *SubscriptionStore) Drain(user string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[user]
	if !ok {
		return nil
	}
	pending := sub.Pending
	sub.Pending = nil
	_ = s.persist(sub)
	return pending
}

func (s *SubscriptionStore) persist(sub *Subscription) liberr.Error {
	if s.db == nil {
		return nil
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return ErrorNoRevision.Error(err)
	}
	if err := s.db.Update(func(tx *nutsdb.Tx) error {
		return tx.Put(subscriptionBucket, []byte(sub.User), raw, 0)
	}); err != nil {
		return ErrorNoRevision.Error(err)
	}
	return nil
}

func pathIsAncestor(watched, path string) bool {
	if watched == "" {
		return true
	}
	return path == watched || strings.HasPrefix(path, watched+" ")
}
