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

package cfgrpc

import (
	"sync"
	"time"

	"github.com/mink-run/gdt/cfgmodel"
	"github.com/mink-run/gdt/wire"
)

// UserSession is one logged-in CLI user's working state (spec section
// 4.11/4.2's "per-user config state"): the node their path currently
// points at, and the timestamp of their last action. Endpoint is the
// stream source the user logged in from, used to route subscription
// notifications back to them (spec section 4.10's notification-ready
// rule).
type UserSession struct {
	AuthId     string
	Working    *cfgmodel.Node
	LastAction time.Time
	Endpoint   wire.Endpoint
}

// SessionStore tracks logged-in users and the single process-wide
// transaction owner (spec section 4.2: "at most one user may hold an
// active transaction; ... Transaction owner is process-wide").
type SessionStore struct {
	mu       sync.Mutex
	users    map[string]*UserSession
	txOwner  string
	hasOwner bool
}

func NewSessionStore() *SessionStore {
	return &SessionStore{users: map[string]*UserSession{}}
}

// Login inserts a working-node entry keyed by authId (spec section
// 4.11's LOGIN).
func (s *SessionStore) Login(authId string, root *cfgmodel.Node) *UserSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &UserSession{AuthId: authId, Working: root, LastAction: time.Now()}
	s.users[authId] = u
	return u
}

// Logout removes authId's working-node entry; if authId owned the
// transaction, the caller is responsible for discarding it first (spec
// section 4.11's LOGOUT).
func (s *SessionStore) Logout(authId string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, authId)
	if s.hasOwner && s.txOwner == authId {
		s.hasOwner = false
		s.txOwner = ""
	}
}

// SetEndpoint records the stream source a logged-in user is reachable
// at, used later to route notification pushes (spec section 4.10).
func (s *SessionStore) SetEndpoint(authId string, ep wire.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[authId]; ok {
		u.Endpoint = ep
	}
}

func (s *SessionStore) Get(authId string) (*UserSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[authId]
	return u, ok
}

// TryStartTransaction claims process-wide transaction ownership for
// authId, refusing if another user already holds it.
func (s *SessionStore) TryStartTransaction(authId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasOwner && s.txOwner != authId {
		return false
	}
	s.hasOwner = true
	s.txOwner = authId
	return true
}

// EndTransaction releases ownership, regardless of who holds it (commit
// and discard both end the transaction window, spec Glossary
// "Transaction").
func (s *SessionStore) EndTransaction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasOwner = false
	s.txOwner = ""
}

func (s *SessionStore) TransactionOwner() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txOwner, s.hasOwner
}
