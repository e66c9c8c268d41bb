// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// SessionState is the position of a session in the call-flow graph
type SessionState string

const (
	StateRinging            SessionState = "ringing"
	StateConnectingOutbound SessionState = "connecting-outbound-leg"
	StateAwaitingGather     SessionState = "awaiting-gather-response"
	StateBridged            SessionState = "bridged"
	StateAwaitingRecording  SessionState = "awaiting-recording-ready"
	StatePlaybackMenu       SessionState = "playback-menu"
	StateTerminated         SessionState = "terminated"
)

func (s SessionState) IsTerminal() bool {
	switch s {
	case StateTerminated:
		return true
	case StateRinging, StateConnectingOutbound, StateAwaitingGather,
		StateBridged, StateAwaitingRecording, StatePlaybackMenu:
		return false
	default:
		panic(fmt.Sprintf("unknown session state: %s", s))
	}
}

// TerminationReason records why a session reached the terminal state
type TerminationReason string

const (
	ReasonCompleted    TerminationReason = "completed"
	ReasonCallerHangup TerminationReason = "caller_hangup"
	ReasonTimeout      TerminationReason = "timeout"
	ReasonError        TerminationReason = "error"
)

// Flow selects which branch of the call-flow graph a session follows
type Flow string

const (
	FlowBridge    Flow = "bridge"
	FlowVoicemail Flow = "voicemail"
)

// LegRole distinguishes the sides of a two-party call
type LegRole string

const (
	RoleCaller LegRole = "A"
	RoleCallee LegRole = "B"
)

// EventType is the canonical kind of an inbound provider callback
type EventType string

const (
	EventInbound            EventType = "inbound"
	EventAnswer             EventType = "answer"
	EventDigitsGathered     EventType = "digits-gathered"
	EventDisconnected       EventType = "disconnected"
	EventRecordingAvailable EventType = "recording-available"
	EventStatusUpdate       EventType = "status-update"
)

// IsCreate reports whether an event of this type may create a new session.
// Any other type arriving for an unknown correlation key is an anomaly no-op.
func (t EventType) IsCreate() bool {
	return t == EventInbound
}

// CallEvent is the canonical form of one provider callback
type CallEvent struct {
	Type            EventType `json:"type"`
	LegID           string    `json:"leg_id"`
	From            string    `json:"from,omitempty"`
	To              string    `json:"to,omitempty"`
	Tag             string    `json:"tag,omitempty"`
	Digits          string    `json:"digits,omitempty"`
	Cause           string    `json:"cause,omitempty"`
	RecordingID     string    `json:"recording_id,omitempty"`
	RecordingStatus string    `json:"recording_status,omitempty"`
	At              time.Time `json:"at"`
}

// CallSession is one logical end-user interaction, possibly spanning
// multiple provider call legs. It is owned by the session store and must
// only be mutated under the store's per-key lock.
type CallSession struct {
	ID           string             `json:"id"`
	Key          string             `json:"key"`
	Flow         Flow               `json:"flow"`
	State        SessionState       `json:"state"`
	Reason       TerminationReason  `json:"reason,omitempty"`
	Legs         map[LegRole]string `json:"legs"`
	From         string             `json:"from,omitempty"`
	To           string             `json:"to,omitempty"`
	Tag          string             `json:"tag,omitempty"`
	RecordingID  string             `json:"recording_id,omitempty"`
	RecordingURL string             `json:"recording_url,omitempty"`
	LegDown      bool               `json:"leg_down,omitempty"`
	Retries      int                `json:"retries,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	Timeline     []Event            `json:"timeline,omitempty"`
}

// VoicemailKey is the correlation key for the voicemail session of a
// caller leg. It is distinct from the leg's own key so the voicemail
// interaction never collides with a bridge session on the same leg.
func VoicemailKey(legID string) string {
	return "vm:" + legID
}

// NewCallSession creates a session in the initial state for a correlation key
func NewCallSession(key string, flow Flow, now time.Time) *CallSession {
	return &CallSession{
		ID:        NewSessionID(),
		Key:       key,
		Flow:      flow,
		State:     StateRinging,
		Legs:      make(map[LegRole]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Terminal reports whether the session has reached a terminal state
func (s *CallSession) Terminal() bool {
	return s.State.IsTerminal()
}

// Leg returns the provider leg identifier bound to a role
func (s *CallSession) Leg(role LegRole) (string, bool) {
	id, ok := s.Legs[role]
	return id, ok
}

// Clone returns a deep copy so snapshots never alias store-owned state
func (s *CallSession) Clone() *CallSession {
	cp := *s
	cp.Legs = make(map[LegRole]string, len(s.Legs))
	for role, id := range s.Legs {
		cp.Legs[role] = id
	}
	cp.Timeline = append([]Event(nil), s.Timeline...)
	return &cp
}

// Event is a timeline entry attached to a session for correlation
type Event struct {
	Time   time.Time      `json:"time"`
	Type   string         `json:"type"`
	Detail map[string]any `json:"detail"`
}

// NewEvent creates a new timeline event
func NewEvent(t time.Time, eventType string, detail map[string]any) Event {
	if detail == nil {
		detail = make(map[string]any)
	}
	return Event{
		Time:   t,
		Type:   eventType,
		Detail: detail,
	}
}

var sessionCounter uint64

// NewSessionID generates a new session identifier (CS prefix, 34 chars
// total) with an atomic counter component for determinism in logs.
func NewSessionID() string {
	counter := atomic.AddUint64(&sessionCounter, 1)
	b := make([]byte, 7)
	rand.Read(b)
	return fmt.Sprintf("CS%018x%s", counter, hex.EncodeToString(b)[:14])
}
