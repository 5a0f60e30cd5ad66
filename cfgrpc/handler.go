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

// Package cfgrpc maps GDT streams onto configuration operations (spec
// section 4.11, component C9): LOGIN/LOGOUT insert and remove per-user
// working-node entries, AC/SET drive the auto-complete engine in TAB or
// ENTER mode and open a transaction on any destructive change, GET reads
// without mutating, and REPLICATE behaves as a silent SET forwarded to
// every peer in the daemon's cfg_daemons parameter.
package cfgrpc

import (
	"context"
	"strconv"
	"strings"

	"github.com/mink-run/gdt/cfgengine"
	"github.com/mink-run/gdt/cfgmodel"
	"github.com/mink-run/gdt/session"
	"github.com/mink-run/gdt/wire"
)

// Handler owns one configuration engine, its logged-in users, and the
// optional peer set to mirror REPLICATE actions to.
type Handler struct {
	Engine   *cfgengine.Engine
	Sessions *SessionStore
	Router   *session.Router
	Daemon   wire.Endpoint
	Events   *EventSink

	// CfgDaemons returns the current cfg_daemons target list (daemon
	// parameter 2), populated from the membership directory (A5) or a
	// static config value.
	CfgDaemons func() []wire.Endpoint
}

func NewHandler(engine *cfgengine.Engine) *Handler {
	return &Handler{Engine: engine, Sessions: NewSessionStore()}
}

// OnMessage is the glue a stream's callback or the state machine's
// dispatch (spec section 4.5) calls for an inbound BodyConfig message: it
// runs Handle and queues the CFG_RESULT reply back to the sender.
func (h *Handler) OnMessage(ctx context.Context, reply func(dest wire.Endpoint, msg *wire.Message), src *wire.Message) {
	if src.Body == nil || src.Body.Kind != wire.BodyConfig || src.Body.Config == nil {
		return
	}

	if src.Body.Config.Action == wire.UserLogin {
		authId := firstParamString(src.Body.Config.Parameters, wire.ParamAuthId)
		defer h.Sessions.SetEndpoint(authId, src.Header.Source)
	}

	resp := h.Handle(ctx, src.Body.Config)
	if resp == nil || reply == nil {
		return
	}

	reply(src.Header.Source, &wire.Message{
		Header: wire.Header{
			Version:     wire.Version,
			Source:      src.Header.Destination,
			Destination: src.Header.Source,
			UUID:        src.Header.UUID,
			SequenceFlg: wire.SeqEnd,
		},
		Body: &wire.Body{Kind: wire.BodyConfig, Config: resp},
	})
}

// Handle dispatches one inbound ConfigMessage and returns the CFG_RESULT
// to send back (spec section 4.11).
func (h *Handler) Handle(ctx context.Context, msg *wire.ConfigMessage) *wire.ConfigMessage {
	authId := firstParamString(msg.Parameters, wire.ParamAuthId)

	switch msg.Action {
	case wire.UserLogin:
		return h.handleLogin(authId)
	case wire.UserLogout:
		return h.handleLogout(authId)
	case wire.CfgGet:
		return h.handleRead(authId, msg)
	case wire.CfgAc:
		return h.handleEdit(ctx, authId, msg, cfgengine.ModeTab, false)
	case wire.CfgSet:
		return h.handleEdit(ctx, authId, msg, cfgengine.ModeEnter, false)
	case wire.CfgReplicate:
		resp := h.handleEdit(ctx, authId, msg, cfgengine.ModeEnter, true)
		h.forwardReplicate(ctx, msg)
		return resp
	default:
		return result(nil)
	}
}

func (h *Handler) handleLogin(authId string) *wire.ConfigMessage {
	h.Sessions.Login(authId, h.Engine.Root)
	return result(nil)
}

func (h *Handler) handleLogout(authId string) *wire.ConfigMessage {
	if owner, ok := h.Sessions.TransactionOwner(); ok && owner == authId {
		h.Engine.Discard(context.Background())
		h.Sessions.EndTransaction()
	}
	h.Sessions.Logout(authId)
	return result(nil)
}

// handleRead answers GET (spec section 4.11): it resolves the requested
// path by exact match (never AutoComplete's TAB/ENTER prefix matching),
// optionally registers the caller as a notification subscriber on that
// path, and streams back the resolved subtree flattened to (path, value,
// kind) triples.
func (h *Handler) handleRead(authId string, msg *wire.ConfigMessage) *wire.ConfigMessage {
	u, ok := h.Sessions.Get(authId)
	if !ok {
		return result([]wire.Parameter{errorParam(ErrorUnknownUser.GetMessage())})
	}

	tokens := tokensOf(msg.Parameters)
	nodes, err := h.Engine.Read(context.Background(), u.Working, tokens)
	if err != nil {
		return buildReadResult(nil, tokens, err.Error())
	}

	if subs := h.Engine.Subscriptions(); subs != nil {
		_ = subs.Subscribe(authId, strings.Join(tokens, " "))
	}

	return buildReadResult(nodes, tokens, "")
}

func (h *Handler) handleEdit(ctx context.Context, authId string, msg *wire.ConfigMessage, mode cfgengine.Mode, silent bool) *wire.ConfigMessage {
	u, ok := h.Sessions.Get(authId)
	if !ok {
		return result([]wire.Parameter{errorParam(ErrorUnknownUser.GetMessage())})
	}

	tokens := tokensOf(msg.Parameters)

	if mode == cfgengine.ModeEnter && len(tokens) > 0 {
		switch tokens[0] {
		case "commit":
			return h.handleCommit(ctx, authId, tokens[1:])
		case "discard":
			return h.handleDiscard(authId)
		}
	}

	res := h.Engine.AutoComplete(ctx, u.Working, tokens, mode)
	u.Working = lastNode(res, u.Working)

	if mode == cfgengine.ModeEnter && destructive(res) {
		if !h.Sessions.TryStartTransaction(authId) {
			return result([]wire.Parameter{errorParam(ErrorTransactionOwned.GetMessage())})
		}
	}

	if !silent {
		return buildResult(res, tokens)
	}
	return result(nil)
}

// handleCommit implements the "commit [description...]" command (the
// original mink-config cmd_tree's commit node, carrying an optional
// description parameter): it runs Engine.Commit, releases the process-
// wide transaction, and delivers any pending subscription notifications
// (spec section 4.10's notification-ready rule).
func (h *Handler) handleCommit(ctx context.Context, authId string, descTokens []string) *wire.ConfigMessage {
	if owner, held := h.Sessions.TransactionOwner(); held && owner != authId {
		return result([]wire.Parameter{errorParam(ErrorTransactionOwned.GetMessage())})
	}

	if err := h.Engine.Commit(ctx, strings.Join(descTokens, " ")); err != nil {
		return result([]wire.Parameter{errorParam(err.Error())})
	}
	h.Sessions.EndTransaction()
	h.notifySubscribers()

	return result(nil)
}

// handleDiscard implements the "discard" command: it reverts every
// pending change and releases the transaction (spec section 4.10's
// Discard, spec Glossary "Transaction": "ended by commit, discard, or
// logout").
func (h *Handler) handleDiscard(authId string) *wire.ConfigMessage {
	if owner, held := h.Sessions.TransactionOwner(); !held || owner != authId {
		return result([]wire.Parameter{errorParam(ErrorNoActiveTransaction.GetMessage())})
	}

	h.Engine.Discard(context.Background())
	h.Sessions.EndTransaction()
	return result(nil)
}

// notifySubscribers drains every subscriber's pending notifications and
// delivers each as a BodyNotify message over the route used to reach
// that user's daemon (spec section 4.10: "each subscription is fired
// once to each subscribed user after commit completes").
func (h *Handler) notifySubscribers() {
	subs := h.Engine.Subscriptions()
	if subs == nil || h.Router == nil {
		return
	}

	for _, user := range subs.Users() {
		pending := subs.Drain(user)
		if len(pending) == 0 {
			continue
		}

		u, ok := h.Sessions.Get(user)
		if !ok {
			continue
		}
		target, ok := h.Router.Route(u.Endpoint)
		if !ok {
			continue
		}

		var params wire.Parameters
		for _, desc := range pending {
			params = append(params, wire.Parameter{Id: wire.ParamCfgItemPath, Value: [][]byte{[]byte(desc)}})
		}

		_ = target.QueueExternal(u.Endpoint, &wire.Message{
			Header: wire.Header{Version: wire.Version, Destination: u.Endpoint, SequenceFlg: wire.SeqStatelessNoReply},
			Body:   &wire.Body{Kind: wire.BodyNotify, Notify: &wire.NotifyMessage{Type: wire.NotifyBatch, Parameters: params}},
		})
		session.Release(target)
	}
}

func (h *Handler) forwardReplicate(ctx context.Context, msg *wire.ConfigMessage) {
	if h.CfgDaemons == nil || h.Router == nil {
		return
	}
	for _, peer := range h.CfgDaemons() {
		target, ok := h.Router.Route(peer)
		if !ok {
			continue
		}
		_ = target.QueueExternal(peer, &wire.Message{
			Header: wire.Header{Version: wire.Version, Destination: peer, SequenceFlg: wire.SeqStatelessNoReply},
			Body:   &wire.Body{Kind: wire.BodyConfig, Config: msg},
		})
		session.Release(target)
	}
}

func destructive(res *cfgengine.AutoCompleteResult) bool {
	return len(res.NewNodes) > 0 || nodesModified(res.Nodes)
}

func nodesModified(nodes []*cfgmodel.Node) bool {
	for _, n := range nodes {
		if n.State != cfgmodel.StateReady || n.IsNew {
			return true
		}
	}
	return false
}

func lastNode(res *cfgengine.AutoCompleteResult, fallback *cfgmodel.Node) *cfgmodel.Node {
	if len(res.Nodes) == 0 {
		return fallback
	}
	return res.Nodes[len(res.Nodes)-1]
}

func buildResult(res *cfgengine.AutoCompleteResult, tokens []string) *wire.ConfigMessage {
	var params wire.Parameters
	params.Set(wire.ParamCliPath, []byte(strings.Join(tokens, " ")))

	count := 0
	for _, n := range res.Nodes {
		params = append(params,
			wire.Parameter{Id: wire.ParamCfgItemPath, Value: [][]byte{[]byte(n.Name)}},
			wire.Parameter{Id: wire.ParamItemValue, Value: [][]byte{[]byte(n.Value)}},
			wire.Parameter{Id: wire.ParamItemNodeType, Value: [][]byte{{byte(n.Kind)}}},
			wire.Parameter{Id: wire.ParamItemNodeState, Value: [][]byte{{byte(n.State)}}},
		)
		count++
	}
	params.Set(wire.ParamItemCount, []byte(strconv.Itoa(count)))

	errCount := 0
	for _, e := range res.Errors {
		if e == "" {
			continue
		}
		params = append(params, wire.Parameter{Id: wire.ParamAcErrorText, Value: [][]byte{[]byte(e)}})
		errCount++
	}
	params.Set(wire.ParamErrorCount, []byte(strconv.Itoa(errCount)))

	return &wire.ConfigMessage{Action: wire.CfgResult, Parameters: params}
}

// buildReadResult builds a GET's CFG_RESULT: the CLI path echoed back,
// then one (path, value, kind) triple per flattened node (spec section
// 4.11's GET: "stream each node back as (path, value, kind)").
func buildReadResult(nodes []*cfgmodel.Node, tokens []string, errMsg string) *wire.ConfigMessage {
	var params wire.Parameters
	params.Set(wire.ParamCliPath, []byte(strings.Join(tokens, " ")))

	count := 0
	for _, n := range nodes {
		params = append(params,
			wire.Parameter{Id: wire.ParamCfgItemPath, Value: [][]byte{[]byte(n.Path())}},
			wire.Parameter{Id: wire.ParamItemValue, Value: [][]byte{[]byte(n.Value)}},
			wire.Parameter{Id: wire.ParamItemNodeType, Value: [][]byte{{byte(n.Kind)}}},
		)
		count++
	}
	params.Set(wire.ParamItemCount, []byte(strconv.Itoa(count)))

	errCount := 0
	if errMsg != "" {
		params = append(params, wire.Parameter{Id: wire.ParamAcErrorText, Value: [][]byte{[]byte(errMsg)}})
		errCount = 1
	}
	params.Set(wire.ParamErrorCount, []byte(strconv.Itoa(errCount)))

	return &wire.ConfigMessage{Action: wire.CfgResult, Parameters: params}
}

func tokensOf(params wire.Parameters) []string {
	raw, ok := params.Get(wire.ParamAcInputLine)
	if !ok {
		return nil
	}
	tokens := make([]string, 0, len(raw))
	for _, b := range raw {
		tokens = append(tokens, string(b))
	}
	return tokens
}

func firstParamString(params wire.Parameters, id uint32) string {
	v, ok := params.First(id)
	if !ok {
		return ""
	}
	return string(v)
}

func errorParam(message string) wire.Parameter {
	return wire.Parameter{Id: wire.ParamAcErrorText, Value: [][]byte{[]byte(message)}}
}

func result(params []wire.Parameter) *wire.ConfigMessage {
	return &wire.ConfigMessage{Action: wire.CfgResult, Parameters: wire.Parameters(params)}
}
