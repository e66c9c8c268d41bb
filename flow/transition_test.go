// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package flow_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/sprucehealth/callflow/bxml"
	"github.com/sprucehealth/callflow/flow"
	"github.com/sprucehealth/callflow/model"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() flow.Config {
	cfg := flow.DefaultConfig()
	cfg.ForwardTo = "+15559990000"
	cfg.ApplicationID = "app-1"
	cfg.AnswerURL = "http://cb/callbacks/outbound/answer"
	cfg.DisconnectURL = "http://cb/callbacks/disconnect"
	cfg.GatherURL = "http://cb/callbacks/outbound/gather"
	cfg.VoicemailURL = "http://cb/callbacks/voicemail"
	cfg.RecordingAvailableURL = "http://cb/callbacks/recording"
	cfg.PlaybackMenuURL = "http://cb/callbacks/voicemail"
	cfg.RecordingMediaBase = "http://provider/accounts/a-1"
	return cfg
}

func inboundEvent(legID string) model.CallEvent {
	return model.CallEvent{
		Type:  model.EventInbound,
		LegID: legID,
		From:  "+15551230001",
		To:    "+15551230002",
		At:    t0,
	}
}

// newBridgeSession advances a fresh session through the inbound event
// and returns it in the connecting state.
func newBridgeSession(t *testing.T, cfg flow.Config) *model.CallSession {
	t.Helper()
	sess := model.NewCallSession("a-leg-1", model.FlowBridge, t0)
	res := flow.Transition(cfg, sess, inboundEvent("a-leg-1"))
	if !res.Changed {
		t.Fatal("Expected inbound event to advance the session")
	}
	return sess
}

func answeredSession(t *testing.T, cfg flow.Config) *model.CallSession {
	t.Helper()
	sess := newBridgeSession(t, cfg)
	res := flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventAnswer, LegID: "b-leg-1", Tag: "a-leg-1", At: t0.Add(3 * time.Second),
	})
	if sess.State != model.StateAwaitingGather {
		t.Fatalf("Expected awaiting-gather after answer, got %s", sess.State)
	}
	if len(res.Actions) != 1 {
		t.Fatalf("Expected 1 action after answer, got %d", len(res.Actions))
	}
	return sess
}

func markupOf(t *testing.T, a flow.Action) []bxml.Verb {
	t.Helper()
	m, ok := a.(*flow.RespondWithMarkup)
	if !ok {
		t.Fatalf("Expected *RespondWithMarkup, got %T", a)
	}
	return m.Verbs
}

func TestInboundStartsOutboundLeg(t *testing.T) {
	cfg := testConfig()
	sess := model.NewCallSession("a-leg-1", model.FlowBridge, t0)

	res := flow.Transition(cfg, sess, inboundEvent("a-leg-1"))

	if sess.State != model.StateConnectingOutbound {
		t.Errorf("State = %s, want connecting-outbound-leg", sess.State)
	}
	if sess.Legs[model.RoleCaller] != "a-leg-1" {
		t.Errorf("Caller leg = %q, want a-leg-1", sess.Legs[model.RoleCaller])
	}
	if len(res.Actions) != 2 {
		t.Fatalf("Expected 2 actions, got %d", len(res.Actions))
	}

	verbs := markupOf(t, res.Actions[0])
	want := []bxml.Verb{
		&bxml.Speak{Text: "Connecting your call, please wait", Voice: "julie"},
		&bxml.Ring{Duration: 20 * time.Second},
		&bxml.Redirect{URL: cfg.VoicemailURL},
	}
	if !reflect.DeepEqual(verbs, want) {
		t.Errorf("Markup mismatch.\nGot:  %#v\nWant: %#v", verbs, want)
	}

	place, ok := res.Actions[1].(*flow.PlaceOutboundCall)
	if !ok {
		t.Fatalf("Expected *PlaceOutboundCall, got %T", res.Actions[1])
	}
	if place.Params.To != cfg.ForwardTo {
		t.Errorf("To = %q, want %q", place.Params.To, cfg.ForwardTo)
	}
	if place.Params.From != "+15551230001" {
		t.Errorf("From = %q, want caller number", place.Params.From)
	}
	if place.Params.Tag != "a-leg-1" {
		t.Errorf("Tag = %q, want session key", place.Params.Tag)
	}
	if place.Params.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", place.Params.Timeout)
	}
}

func TestAnswerPromptsCalleeGather(t *testing.T) {
	cfg := testConfig()
	sess := newBridgeSession(t, cfg)

	res := flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventAnswer, LegID: "b-leg-1", Tag: "a-leg-1", At: t0.Add(3 * time.Second),
	})

	if sess.State != model.StateAwaitingGather {
		t.Errorf("State = %s, want awaiting-gather-response", sess.State)
	}
	if sess.Legs[model.RoleCallee] != "b-leg-1" {
		t.Errorf("Callee leg = %q, want b-leg-1", sess.Legs[model.RoleCallee])
	}

	verbs := markupOf(t, res.Actions[0])
	gather, ok := verbs[0].(*bxml.Gather)
	if !ok {
		t.Fatalf("Expected *Gather, got %T", verbs[0])
	}
	if gather.MaxDigits != 1 {
		t.Errorf("MaxDigits = %d, want 1", gather.MaxDigits)
	}
	if gather.FirstDigitTimeout != 10*time.Second {
		t.Errorf("FirstDigitTimeout = %v, want 10s", gather.FirstDigitTimeout)
	}
	if gather.Tag != "a-leg-1" {
		t.Errorf("Tag = %q, want session key", gather.Tag)
	}
	speak, ok := gather.Prompt[0].(*bxml.Speak)
	if !ok || speak.Voice != "kate" {
		t.Errorf("Expected kate-voiced prompt, got %#v", gather.Prompt[0])
	}
}

func TestAcceptDigitBridgesLegs(t *testing.T) {
	cfg := testConfig()
	sess := answeredSession(t, cfg)

	res := flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventDigitsGathered, LegID: "b-leg-1", Tag: "a-leg-1", Digits: "1", At: t0.Add(6 * time.Second),
	})

	if sess.State != model.StateBridged {
		t.Errorf("State = %s, want bridged", sess.State)
	}
	verbs := markupOf(t, res.Actions[0])
	want := []bxml.Verb{
		&bxml.Speak{Text: "The bridge will start now", Voice: "julie"},
		&bxml.Bridge{CallID: "a-leg-1"},
	}
	if !reflect.DeepEqual(verbs, want) {
		t.Errorf("Markup mismatch.\nGot:  %#v\nWant: %#v", verbs, want)
	}
}

func TestDeclineDigitSendsCallerToVoicemail(t *testing.T) {
	cfg := testConfig()
	sess := answeredSession(t, cfg)

	res := flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventDigitsGathered, LegID: "b-leg-1", Tag: "a-leg-1", Digits: "2", At: t0.Add(6 * time.Second),
	})

	if sess.State != model.StateTerminated {
		t.Errorf("State = %s, want terminated", sess.State)
	}
	if sess.Reason != model.ReasonCallerHangup {
		t.Errorf("Reason = %s, want caller_hangup", sess.Reason)
	}
	if len(res.Actions) != 2 {
		t.Fatalf("Expected 2 actions, got %d", len(res.Actions))
	}

	verbs := markupOf(t, res.Actions[0])
	if _, ok := verbs[len(verbs)-1].(*bxml.Hangup); !ok {
		t.Errorf("Expected trailing Hangup, got %#v", verbs)
	}

	modify, ok := res.Actions[1].(*flow.ModifyCall)
	if !ok {
		t.Fatalf("Expected *ModifyCall, got %T", res.Actions[1])
	}
	if modify.LegID != "a-leg-1" {
		t.Errorf("ModifyCall leg = %q, want caller leg", modify.LegID)
	}
	if modify.Params.RedirectURL != cfg.VoicemailURL {
		t.Errorf("RedirectURL = %q, want voicemail", modify.Params.RedirectURL)
	}
}

func TestEmptyGatherIsDecline(t *testing.T) {
	cfg := testConfig()
	sess := answeredSession(t, cfg)

	flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventDigitsGathered, LegID: "b-leg-1", Tag: "a-leg-1", At: t0.Add(16 * time.Second),
	})

	if sess.State != model.StateTerminated {
		t.Errorf("State = %s, want terminated on empty gather", sess.State)
	}
}

func TestOutboundTimeoutFallsBackToVoicemail(t *testing.T) {
	cfg := testConfig()
	sess := newBridgeSession(t, cfg)

	res := flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventDisconnected, LegID: "b-leg-1", Tag: "a-leg-1", Cause: "timeout", At: t0.Add(15 * time.Second),
	})

	if sess.State != model.StateTerminated {
		t.Errorf("State = %s, want terminated", sess.State)
	}
	if sess.Reason != model.ReasonTimeout {
		t.Errorf("Reason = %s, want timeout", sess.Reason)
	}
	if len(res.Actions) != 1 {
		t.Fatalf("Expected 1 action, got %d", len(res.Actions))
	}
	if _, ok := res.Actions[0].(*flow.ModifyCall); !ok {
		t.Errorf("Expected *ModifyCall, got %T", res.Actions[0])
	}
}

func TestBridgedDisconnectCompletes(t *testing.T) {
	cfg := testConfig()
	sess := answeredSession(t, cfg)
	flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventDigitsGathered, LegID: "b-leg-1", Tag: "a-leg-1", Digits: "1", At: t0.Add(6 * time.Second),
	})

	res := flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventDisconnected, LegID: "a-leg-1", At: t0.Add(90 * time.Second),
	})

	if sess.State != model.StateTerminated {
		t.Errorf("State = %s, want terminated", sess.State)
	}
	if sess.Reason != model.ReasonCompleted {
		t.Errorf("Reason = %s, want completed", sess.Reason)
	}
	if len(res.Actions) != 0 {
		t.Errorf("Expected no actions, got %d", len(res.Actions))
	}
}

func TestStatusUpdateChangesNothing(t *testing.T) {
	cfg := testConfig()
	sess := answeredSession(t, cfg)
	before := sess.Clone()

	res := flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventStatusUpdate, LegID: "a-leg-1", At: t0.Add(7 * time.Second),
	})

	if res.Changed || len(res.Actions) != 0 {
		t.Errorf("Status update must be a no-op, got %+v", res)
	}
	if !reflect.DeepEqual(sess, before) {
		t.Errorf("Session mutated by status update")
	}
}

func TestTerminalSessionsIgnoreAllEvents(t *testing.T) {
	cfg := testConfig()
	sess := answeredSession(t, cfg)
	flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventDisconnected, LegID: "a-leg-1", Tag: "a-leg-1", At: t0.Add(8 * time.Second),
	})
	if sess.State != model.StateTerminated {
		t.Fatalf("Setup: expected terminated, got %s", sess.State)
	}
	before := sess.Clone()

	events := []model.CallEvent{
		{Type: model.EventInbound, LegID: "a-leg-1", At: t0.Add(9 * time.Second)},
		{Type: model.EventAnswer, LegID: "b-leg-2", Tag: "a-leg-1", At: t0.Add(9 * time.Second)},
		{Type: model.EventDigitsGathered, LegID: "b-leg-1", Tag: "a-leg-1", Digits: "1", At: t0.Add(9 * time.Second)},
		{Type: model.EventDisconnected, LegID: "a-leg-1", At: t0.Add(9 * time.Second)},
	}
	for _, ev := range events {
		res := flow.Transition(cfg, sess, ev)
		if res.Changed || len(res.Actions) != 0 {
			t.Errorf("Terminal session reacted to %s", ev.Type)
		}
	}
	if !reflect.DeepEqual(sess, before) {
		t.Errorf("Terminal session mutated")
	}
}

func TestUnexpectedEventIsNoOp(t *testing.T) {
	cfg := testConfig()
	sess := newBridgeSession(t, cfg)
	before := sess.Clone()

	// Digits cannot arrive before the callee answered
	res := flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventDigitsGathered, LegID: "b-leg-1", Tag: "a-leg-1", Digits: "1", At: t0.Add(time.Second),
	})

	if res.Changed || len(res.Actions) != 0 {
		t.Errorf("Unexpected event must be a no-op, got %+v", res)
	}
	if !reflect.DeepEqual(sess, before) {
		t.Errorf("Session mutated by out-of-order event")
	}
}

// Voicemail flow

func newVoicemailSession(t *testing.T, cfg flow.Config) (*model.CallSession, flow.Result) {
	t.Helper()
	sess := model.NewCallSession(model.VoicemailKey("a-leg-1"), model.FlowVoicemail, t0)
	res := flow.Transition(cfg, sess, inboundEvent("a-leg-1"))
	if sess.State != model.StateAwaitingRecording {
		t.Fatalf("Expected awaiting-recording-ready, got %s", sess.State)
	}
	return sess, res
}

func TestVoicemailInboundStartsRecording(t *testing.T) {
	cfg := testConfig()
	_, res := newVoicemailSession(t, cfg)

	verbs := markupOf(t, res.Actions[0])
	speak, ok := verbs[0].(*bxml.Speak)
	if !ok {
		t.Fatalf("Expected *Speak, got %T", verbs[0])
	}
	if speak.Text != "The person you are trying to reach is not available, please leave a message at the tone" {
		t.Errorf("Unexpected greeting %q", speak.Text)
	}

	record, ok := verbs[len(verbs)-1].(*bxml.Record)
	if !ok {
		t.Fatalf("Expected trailing *Record, got %T", verbs[len(verbs)-1])
	}
	if record.AvailableURL != cfg.RecordingAvailableURL {
		t.Errorf("AvailableURL = %q", record.AvailableURL)
	}
	if record.MaxDuration != 30*time.Second {
		t.Errorf("MaxDuration = %v, want 30s", record.MaxDuration)
	}
}

func TestRecordingCompleteOpensPlaybackMenu(t *testing.T) {
	cfg := testConfig()
	sess, _ := newVoicemailSession(t, cfg)

	res := flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventRecordingAvailable, LegID: "a-leg-1",
		RecordingID: "r-1", RecordingStatus: "complete", At: t0.Add(20 * time.Second),
	})

	if sess.State != model.StatePlaybackMenu {
		t.Errorf("State = %s, want playback-menu", sess.State)
	}
	if sess.RecordingID != "r-1" {
		t.Errorf("RecordingID = %q, want r-1", sess.RecordingID)
	}
	if len(res.Actions) != 2 {
		t.Fatalf("Expected fetch and modify actions, got %d", len(res.Actions))
	}
	fetch, ok := res.Actions[0].(*flow.FetchRecording)
	if !ok {
		t.Fatalf("Expected *FetchRecording, got %T", res.Actions[0])
	}
	if fetch.CallID != "a-leg-1" || fetch.RecordingID != "r-1" {
		t.Errorf("Fetch = %+v", fetch)
	}
	modify, ok := res.Actions[1].(*flow.ModifyCall)
	if !ok {
		t.Fatalf("Expected *ModifyCall, got %T", res.Actions[1])
	}
	if modify.Params.RedirectURL != cfg.PlaybackMenuURL {
		t.Errorf("RedirectURL = %q, want playback menu", modify.Params.RedirectURL)
	}
}

func TestRecordingIncompleteIsIgnored(t *testing.T) {
	cfg := testConfig()
	sess, _ := newVoicemailSession(t, cfg)

	res := flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventRecordingAvailable, LegID: "a-leg-1",
		RecordingID: "r-1", RecordingStatus: "processing", At: t0.Add(20 * time.Second),
	})

	if res.Changed || len(res.Actions) != 0 {
		t.Errorf("Incomplete recording must be a no-op, got %+v", res)
	}
	if sess.State != model.StateAwaitingRecording {
		t.Errorf("State = %s, want awaiting-recording-ready", sess.State)
	}
}

func TestHangupDuringRecordingStillFetches(t *testing.T) {
	cfg := testConfig()
	sess, _ := newVoicemailSession(t, cfg)

	flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventDisconnected, LegID: "a-leg-1", At: t0.Add(10 * time.Second),
	})
	if !sess.LegDown {
		t.Fatal("Expected LegDown after disconnect during recording")
	}
	if sess.State != model.StateAwaitingRecording {
		t.Fatalf("State = %s, recording must still be awaited", sess.State)
	}

	res := flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventRecordingAvailable, LegID: "a-leg-1",
		RecordingID: "r-1", RecordingStatus: "complete", At: t0.Add(25 * time.Second),
	})

	if sess.State != model.StateTerminated {
		t.Errorf("State = %s, want terminated", sess.State)
	}
	if sess.Reason != model.ReasonCompleted {
		t.Errorf("Reason = %s, want completed", sess.Reason)
	}
	if len(res.Actions) != 1 {
		t.Fatalf("Expected only the fetch action, got %d", len(res.Actions))
	}
	if _, ok := res.Actions[0].(*flow.FetchRecording); !ok {
		t.Errorf("Expected *FetchRecording, got %T", res.Actions[0])
	}
}

func playbackSession(t *testing.T, cfg flow.Config) *model.CallSession {
	t.Helper()
	sess, _ := newVoicemailSession(t, cfg)
	flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventRecordingAvailable, LegID: "a-leg-1",
		RecordingID: "r-1", RecordingStatus: "complete", At: t0.Add(20 * time.Second),
	})
	return sess
}

func TestPlaybackMenuServesGather(t *testing.T) {
	cfg := testConfig()
	sess := playbackSession(t, cfg)

	res := flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventInbound, LegID: "a-leg-1", At: t0.Add(21 * time.Second),
	})

	if res.Changed {
		t.Error("Serving the menu must not change state")
	}
	verbs := markupOf(t, res.Actions[0])
	gather, ok := verbs[0].(*bxml.Gather)
	if !ok {
		t.Fatalf("Expected *Gather, got %T", verbs[0])
	}
	if gather.Tag != sess.Key {
		t.Errorf("Tag = %q, want session key", gather.Tag)
	}
}

func TestPlaybackReplayDigit(t *testing.T) {
	cfg := testConfig()
	sess := playbackSession(t, cfg)

	res := flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventDigitsGathered, LegID: "a-leg-1", Tag: sess.Key, Digits: "1", At: t0.Add(30 * time.Second),
	})

	if sess.State != model.StatePlaybackMenu {
		t.Errorf("State = %s, want playback-menu", sess.State)
	}
	verbs := markupOf(t, res.Actions[0])
	play, ok := verbs[0].(*bxml.PlayAudio)
	if !ok {
		t.Fatalf("Expected *PlayAudio, got %T", verbs[0])
	}
	if play.URL != sess.RecordingURL {
		t.Errorf("Play URL = %q, want %q", play.URL, sess.RecordingURL)
	}
	if _, ok := verbs[1].(*bxml.Gather); !ok {
		t.Errorf("Expected re-prompt Gather, got %T", verbs[1])
	}
}

func TestPlaybackOtherDigitHangsUp(t *testing.T) {
	cfg := testConfig()
	sess := playbackSession(t, cfg)

	res := flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventDigitsGathered, LegID: "a-leg-1", Tag: sess.Key, Digits: "5", At: t0.Add(30 * time.Second),
	})

	if sess.State != model.StateTerminated {
		t.Errorf("State = %s, want terminated", sess.State)
	}
	verbs := markupOf(t, res.Actions[0])
	if _, ok := verbs[0].(*bxml.Hangup); !ok {
		t.Errorf("Expected Hangup, got %#v", verbs)
	}
}

func TestPlaybackDisconnectTerminates(t *testing.T) {
	cfg := testConfig()
	sess := playbackSession(t, cfg)

	res := flow.Transition(cfg, sess, model.CallEvent{
		Type: model.EventDisconnected, LegID: "a-leg-1", At: t0.Add(40 * time.Second),
	})

	if sess.State != model.StateTerminated {
		t.Errorf("State = %s, want terminated", sess.State)
	}
	if len(res.Actions) != 0 {
		t.Errorf("Expected no actions, got %d", len(res.Actions))
	}
}
