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

// Package wire defines the fixed GDT wire message schema (spec section 6):
// a Header SEQUENCE with a mandatory set of fields and an optional Body CHOICE
// over thirteen message kinds. The schema itself is not renegotiable; codec
// implementations (package codec) translate between this struct tree and
// bytes on the wire.
package wire

import "fmt"

// ProtocolTag is the fixed 32-bit protocol identifier carried in transport
// receive metadata, agreed out of band with the transport library.
const ProtocolTag = "GDT"

// Version is the current protocol version this module speaks. A mismatch on
// a received Header.Version yields ErrUnsupportedVersion.
const Version uint8 = 1

// MaxHops is the default hard cap on HopInfo.Current before a router-relay
// fails a forwarded message with ErrMaxHopsExceeded (spec open question (c):
// an implementation may expose this as a config parameter without changing
// semantics).
const MaxHops uint8 = 10

// DefaultMaxSubStreams is the default number of named transport sub-streams
// a single Association multiplexes (spec section 6).
const DefaultMaxSubStreams = 16

// SequenceFlag enumerates the per-stream sequence protocol state, matching
// the uint8 enum fixed by spec section 6 (values 0-7).
type SequenceFlag uint8

const (
	SeqStart SequenceFlag = iota
	SeqContinue
	SeqEnd
	SeqStatelessNoReply
	SeqStateless
	SeqStreamComplete
	SeqContinueWait
	SeqHeartbeat
)

func (f SequenceFlag) String() string {
	switch f {
	case SeqStart:
		return "START"
	case SeqContinue:
		return "CONTINUE"
	case SeqEnd:
		return "END"
	case SeqStatelessNoReply:
		return "STATELESS_NO_REPLY"
	case SeqStateless:
		return "STATELESS"
	case SeqStreamComplete:
		return "STREAM_COMPLETE"
	case SeqContinueWait:
		return "CONTINUE_WAIT"
	case SeqHeartbeat:
		return "HEARTBEAT"
	default:
		return fmt.Sprintf("SequenceFlag(%d)", uint8(f))
	}
}

// ErrorStatus is the uint8 status enum carried in an optional Header field
// and mirrored, for protocol-level failures, by liberr.CodeError values in
// the errors package (see errors/gdt_codes.go).
type ErrorStatus uint8

const (
	StatusOK                ErrorStatus = 0
	StatusOutOfSequence     ErrorStatus = 1
	StatusUnknownSequence   ErrorStatus = 2
	StatusUnsupportedVers   ErrorStatus = 3
	StatusTimeout           ErrorStatus = 4
	StatusUnknownRoute      ErrorStatus = 5
	StatusRoutingNotSupport ErrorStatus = 6
	StatusMaxHopsExceeded   ErrorStatus = 7
	StatusUnknown           ErrorStatus = 255
)

// Endpoint names a peer by (daemon-type, daemon-id); Id is optional and
// empty means wildcard addressing ("*" is the explicit fan-out wildcard,
// see session.Route).
type Endpoint struct {
	Type string
	Id   string
}

func (e Endpoint) String() string {
	if e.Id == "" {
		return e.Type
	}
	return e.Type + "/" + e.Id
}

// HopInfo bounds router-relay forwarding (spec section 4.5/4.6).
type HopInfo struct {
	Current uint8
	Max     uint8
}

func NewHopInfo() HopInfo {
	return HopInfo{Current: 0, Max: MaxHops}
}

// Header is the mandatory SEQUENCE of every GDT message.
type Header struct {
	Version     uint8
	Source      Endpoint
	Destination Endpoint
	UUID        [16]byte
	SequenceNum uint32
	SequenceFlg SequenceFlag
	EncInfo     []byte // optional, opaque to the core
	Hop         *HopInfo
	Status      *ErrorStatus
}

// BodyKind discriminates the Body CHOICE.
type BodyKind uint8

const (
	BodyNone BodyKind = iota
	BodyEncryptedData
	BodyPacketFwd
	BodyFilter
	BodyDataRetention
	BodyConfig
	BodyStats
	BodyAuth
	BodyRegistration
	BodyNotify
	BodyData
	BodyRouting
	BodyService
	BodyState
)

// Parameter is one (id, value) pair; value is a list of octet-strings per
// spec section 6 (`SEQUENCE OF OCTET-STRING`).
type Parameter struct {
	Id    uint32
	Value [][]byte
}

// Parameters is an ordered bag of Parameter, keyed by well-known id (see
// the ParamXxx constants below) and used across every Body kind.
type Parameters []Parameter

func (p Parameters) Get(id uint32) ([][]byte, bool) {
	for _, v := range p {
		if v.Id == id {
			return v.Value, true
		}
	}
	return nil, false
}

func (p Parameters) First(id uint32) ([]byte, bool) {
	if v, ok := p.Get(id); ok && len(v) > 0 {
		return v[0], true
	}
	return nil, false
}

func (p *Parameters) Set(id uint32, value ...[]byte) {
	for i := range *p {
		if (*p)[i].Id == id {
			(*p)[i].Value = value
			return
		}
	}
	*p = append(*p, Parameter{Id: id, Value: value})
}

// Body carries exactly one populated message kind, selected by Kind.
type Body struct {
	Kind BodyKind

	EncryptedData []byte
	Config        *ConfigMessage
	Registration  *RegistrationMessage
	Notify        *NotifyMessage
	Data          []byte
	Routing       *RoutingMessage
	State         *StateMessage
	Stats         *StatsMessage
	// PacketFwd, Filter, DataRetention, Auth, Service are out of scope for
	// the core (spec section 1); placeholders kept for codec completeness.
	Raw Parameters
}

// Message is the full GDT wire message: Header plus an optional Body.
type Message struct {
	Header Header
	Body   *Body
}

// RegistrationAction discriminates a RegistrationMessage (spec section 4.7).
type RegistrationAction uint8

const (
	RegisterRequest RegistrationAction = iota
	RegisterResult
)

type RegistrationMessage struct {
	Action     RegistrationAction
	DaemonType string
	DaemonId   string
	IsRouter   bool
}

// ConfigAction is the six-value config action enum (spec section 6).
type ConfigAction uint8

const (
	CfgGet ConfigAction = iota
	CfgSet
	CfgReplicate
	CfgAc
	CfgResult
	UserLogin
	UserLogout
)

type ConfigMessage struct {
	Action     ConfigAction
	Parameters Parameters
}

// NotifyMessageType discriminates a NotifyMessage.
type NotifyMessageType uint8

const (
	NotifyBatch NotifyMessageType = iota
)

type NotifyMessage struct {
	Type       NotifyMessageType
	Parameters Parameters
}

// RoutingMessage carries routing-table updates for the weighted-round-robin
// policy (spec section 4.6), out of scope for manual construction by users
// but part of the fixed wire schema.
type RoutingMessage struct {
	Parameters Parameters
}

// StateAction mirrors the original implementation's StateMessage (see
// original_source/src/include/gdt_def.h): a generic state update envelope
// used by heartbeat and stats plumbing.
type StateAction uint8

const (
	StateUpdate StateAction = iota
)

type StateMessage struct {
	StreamMachineId []byte
	Action          StateAction
	Parameters      Parameters
}

// StatsMessage carries the per-client/per-session counters of spec section 3
// plus the trap-style named counters documented in SPEC_FULL.md section 3.
type StatsMessage struct {
	Parameters Parameters
}

// Well-known parameter ids (spec section 6). The full catalog in the
// original schema has 200+ entries; only those the core consumes directly
// are named here. Callers may carry additional, unknown ids through
// Parameters unchanged.
const (
	ParamDaemonType    uint32 = 6000
	ParamDaemonId      uint32 = 6001
	ParamAuthId        uint32 = 6002
	ParamCfgItemPath   uint32 = 7415
	ParamItemValue     uint32 = 7406
	ParamItemNodeType  uint32 = 7408
	ParamItemNodeState uint32 = 7405
	ParamItemCount     uint32 = 7417
	ParamAcInputLine   uint32 = 7402
	ParamCliPath       uint32 = 7411
	ParamCfgMode       uint32 = 7409
	ParamAcErrorText   uint32 = 7410
	ParamErrorCount    uint32 = 7413
	ParamLineCount     uint32 = 7414
	ParamReplicateLine uint32 = 7418
)
