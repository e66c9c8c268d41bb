// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package model

import (
	"strings"
	"testing"
	"time"
)

func TestNewSessionIDFormat(t *testing.T) {
	id := NewSessionID()
	if !strings.HasPrefix(id, "CS") {
		t.Errorf("ID %q missing CS prefix", id)
	}
	if len(id) != 34 {
		t.Errorf("ID length = %d, want 34", len(id))
	}
}

func TestNewSessionIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewSessionID()
		if seen[id] {
			t.Fatalf("Duplicate ID %q", id)
		}
		seen[id] = true
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []SessionState{
		StateRinging, StateConnectingOutbound, StateAwaitingGather,
		StateBridged, StateAwaitingRecording, StatePlaybackMenu,
	} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if !StateTerminated.IsTerminal() {
		t.Error("terminated should be terminal")
	}
}

func TestIsTerminalPanicsOnUnknownState(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for unknown state")
		}
	}()
	SessionState("limbo").IsTerminal()
}

func TestEventTypeIsCreate(t *testing.T) {
	if !EventInbound.IsCreate() {
		t.Error("inbound must be create-capable")
	}
	for _, et := range []EventType{
		EventAnswer, EventDigitsGathered, EventDisconnected,
		EventRecordingAvailable, EventStatusUpdate,
	} {
		if et.IsCreate() {
			t.Errorf("%s must not be create-capable", et)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := NewCallSession("k1", FlowBridge, now)
	sess.Legs[RoleCaller] = "a-1"
	sess.Timeline = append(sess.Timeline, NewEvent(now, "leg.placed", nil))

	cp := sess.Clone()
	cp.State = StateBridged
	cp.Legs[RoleCaller] = "tampered"
	cp.Timeline = append(cp.Timeline, NewEvent(now, "extra", nil))

	if sess.State != StateRinging {
		t.Error("Clone shares state")
	}
	if sess.Legs[RoleCaller] != "a-1" {
		t.Error("Clone shares legs map")
	}
	if len(sess.Timeline) != 1 {
		t.Error("Clone shares timeline")
	}
}

func TestVoicemailKey(t *testing.T) {
	if VoicemailKey("c-1") != "vm:c-1" {
		t.Errorf("VoicemailKey = %q", VoicemailKey("c-1"))
	}
	if VoicemailKey("c-1") == "c-1" {
		t.Error("Voicemail key must differ from the leg key")
	}
}
