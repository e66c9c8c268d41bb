// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

package flow

import (
	"github.com/sprucehealth/callflow/bxml"
	"github.com/sprucehealth/callflow/model"
	"github.com/sprucehealth/callflow/provider"
)

// Spoken prompts, one voice per side of the call
const (
	promptConnecting   = "Connecting your call, please wait"
	promptScreenCall   = "Please press 1 to accept the call, or any other button to send to voicemail"
	promptBridgeStart  = "The bridge will start now"
	promptToVoicemail  = "We will send the caller to voicemail"
	promptLeaveMessage = "The person you are trying to reach is not available, please leave a message at the tone"
	promptHearRecord   = "Your recording is now available. If you'd like to hear your recording, press 1, otherwise please hang up"
	promptHearAgain    = "Press 1 to hear your recording again, otherwise please hang up"

	voiceCaller = "julie"
	voiceCallee = "kate"
)

// Result is the outcome of one transition
type Result struct {
	// Actions to execute, in order
	Actions []Action
	// Changed reports whether the session was mutated; an unchanged
	// result with no actions is a deliberate no-op
	Changed bool
}

// Transition advances a session by one event. It mutates sess in place
// and must be called under the session store's per-key lock. Terminal
// sessions never change: events arriving after termination produce an
// empty result for the orchestrator to log and discard.
func Transition(cfg Config, sess *model.CallSession, ev model.CallEvent) Result {
	if sess.Terminal() {
		return Result{}
	}
	// Status updates are telemetry only, in every state
	if ev.Type == model.EventStatusUpdate {
		return Result{}
	}

	switch sess.State {
	case model.StateRinging:
		return fromRinging(cfg, sess, ev)
	case model.StateConnectingOutbound:
		return fromConnectingOutbound(cfg, sess, ev)
	case model.StateAwaitingGather:
		return fromAwaitingGather(cfg, sess, ev)
	case model.StateBridged:
		return fromBridged(sess, ev)
	case model.StateAwaitingRecording:
		return fromAwaitingRecording(cfg, sess, ev)
	case model.StatePlaybackMenu:
		return fromPlaybackMenu(cfg, sess, ev)
	}
	return Result{}
}

func fromRinging(cfg Config, sess *model.CallSession, ev model.CallEvent) Result {
	if ev.Type != model.EventInbound {
		return Result{}
	}

	sess.Legs[model.RoleCaller] = ev.LegID
	sess.From = ev.From
	sess.To = ev.To
	sess.UpdatedAt = ev.At

	if sess.Flow == model.FlowVoicemail {
		sess.State = model.StateAwaitingRecording
		verbs := []bxml.Verb{
			&bxml.Speak{Text: promptLeaveMessage, Voice: voiceCaller},
		}
		if cfg.BeepURL != "" {
			verbs = append(verbs, &bxml.PlayAudio{URL: cfg.BeepURL})
		}
		verbs = append(verbs, &bxml.Record{
			AvailableURL:      cfg.RecordingAvailableURL,
			MaxDuration:       cfg.RecordMaxDuration,
			TerminatingDigits: cfg.TerminatingDigits,
		})
		return Result{
			Changed: true,
			Actions: []Action{&RespondWithMarkup{Verbs: verbs}},
		}
	}

	sess.State = model.StateConnectingOutbound
	return Result{
		Changed: true,
		Actions: []Action{
			&RespondWithMarkup{Verbs: []bxml.Verb{
				&bxml.Speak{Text: promptConnecting, Voice: voiceCaller},
				&bxml.Ring{Duration: cfg.RingDuration},
				// Safety net: if the outbound leg never takes over,
				// the caller falls through to voicemail
				&bxml.Redirect{URL: cfg.VoicemailURL},
			}},
			&PlaceOutboundCall{Params: provider.PlaceCallParams{
				From:          ev.From,
				To:            cfg.ForwardTo,
				ApplicationID: cfg.ApplicationID,
				AnswerURL:     cfg.AnswerURL,
				DisconnectURL: cfg.DisconnectURL,
				Tag:           sess.Key,
				Timeout:       cfg.OutboundTimeout,
			}},
		},
	}
}

func fromConnectingOutbound(cfg Config, sess *model.CallSession, ev model.CallEvent) Result {
	switch ev.Type {
	case model.EventAnswer:
		sess.Legs[model.RoleCallee] = ev.LegID
		sess.State = model.StateAwaitingGather
		sess.UpdatedAt = ev.At
		return Result{
			Changed: true,
			Actions: []Action{
				&RespondWithMarkup{Verbs: []bxml.Verb{
					&bxml.Gather{
						URL:               cfg.GatherURL,
						MaxDigits:         1,
						FirstDigitTimeout: cfg.GatherTimeout,
						TerminatingDigits: cfg.TerminatingDigits,
						Tag:               sess.Key,
						Prompt: []bxml.Verb{
							&bxml.Speak{Text: promptScreenCall, Voice: voiceCallee},
						},
					},
				}},
			},
		}

	case model.EventDisconnected:
		reason := model.ReasonCallerHangup
		if ev.Cause == "timeout" {
			reason = model.ReasonTimeout
		}
		terminate(sess, reason, ev)
		return Result{
			Changed: true,
			Actions: []Action{redirectToVoicemail(cfg, sess)},
		}
	}
	return Result{}
}

func fromAwaitingGather(cfg Config, sess *model.CallSession, ev model.CallEvent) Result {
	switch ev.Type {
	case model.EventDigitsGathered:
		sess.UpdatedAt = ev.At
		if ev.Digits == cfg.AcceptDigit {
			sess.State = model.StateBridged
			return Result{
				Changed: true,
				Actions: []Action{
					&RespondWithMarkup{Verbs: []bxml.Verb{
						&bxml.Speak{Text: promptBridgeStart, Voice: voiceCaller},
						&bxml.Bridge{CallID: sess.Legs[model.RoleCaller]},
					}},
				},
			}
		}
		// Any other digit string, including none, declines the call
		terminate(sess, model.ReasonCallerHangup, ev)
		return Result{
			Changed: true,
			Actions: []Action{
				&RespondWithMarkup{Verbs: []bxml.Verb{
					&bxml.Speak{Text: promptToVoicemail, Voice: voiceCaller},
					&bxml.Hangup{},
				}},
				redirectToVoicemail(cfg, sess),
			},
		}

	case model.EventDisconnected:
		terminate(sess, model.ReasonCallerHangup, ev)
		return Result{
			Changed: true,
			Actions: []Action{redirectToVoicemail(cfg, sess)},
		}
	}
	return Result{}
}

func fromBridged(sess *model.CallSession, ev model.CallEvent) Result {
	if ev.Type != model.EventDisconnected {
		return Result{}
	}
	terminate(sess, model.ReasonCompleted, ev)
	return Result{Changed: true}
}

func fromAwaitingRecording(cfg Config, sess *model.CallSession, ev model.CallEvent) Result {
	switch ev.Type {
	case model.EventDisconnected:
		// The leg is gone but the provider will still deliver the
		// recording-available callback
		sess.LegDown = true
		sess.UpdatedAt = ev.At
		return Result{Changed: true}

	case model.EventRecordingAvailable:
		if ev.RecordingStatus != "complete" {
			return Result{}
		}
		sess.RecordingID = ev.RecordingID
		sess.RecordingURL = cfg.RecordingMediaURL(sess.Legs[model.RoleCaller], ev.RecordingID)
		sess.UpdatedAt = ev.At

		fetch := &FetchRecording{
			CallID:      sess.Legs[model.RoleCaller],
			RecordingID: ev.RecordingID,
		}
		if sess.LegDown {
			terminate(sess, model.ReasonCompleted, ev)
			return Result{Changed: true, Actions: []Action{fetch}}
		}
		sess.State = model.StatePlaybackMenu
		return Result{
			Changed: true,
			Actions: []Action{
				fetch,
				&ModifyCall{
					LegID: sess.Legs[model.RoleCaller],
					Params: provider.ModifyCallParams{
						RedirectURL: cfg.PlaybackMenuURL,
						State:       "active",
					},
				},
			},
		}
	}
	return Result{}
}

func fromPlaybackMenu(cfg Config, sess *model.CallSession, ev model.CallEvent) Result {
	switch ev.Type {
	case model.EventInbound:
		// The redirected leg fetching the menu document
		return Result{
			Actions: []Action{
				&RespondWithMarkup{Verbs: []bxml.Verb{
					playbackGather(cfg, sess, promptHearRecord),
				}},
			},
		}

	case model.EventDigitsGathered:
		sess.UpdatedAt = ev.At
		if ev.Digits == cfg.AcceptDigit {
			return Result{
				Changed: true,
				Actions: []Action{
					&RespondWithMarkup{Verbs: []bxml.Verb{
						&bxml.PlayAudio{URL: sess.RecordingURL},
						playbackGather(cfg, sess, promptHearAgain),
					}},
				},
			}
		}
		terminate(sess, model.ReasonCompleted, ev)
		return Result{
			Changed: true,
			Actions: []Action{
				&RespondWithMarkup{Verbs: []bxml.Verb{&bxml.Hangup{}}},
			},
		}

	case model.EventDisconnected:
		terminate(sess, model.ReasonCallerHangup, ev)
		return Result{Changed: true}
	}
	return Result{}
}

func playbackGather(cfg Config, sess *model.CallSession, prompt string) *bxml.Gather {
	return &bxml.Gather{
		URL:               cfg.GatherURL,
		MaxDigits:         1,
		FirstDigitTimeout: cfg.PlaybackTimeout,
		Tag:               sess.Key,
		Prompt: []bxml.Verb{
			&bxml.Speak{Text: prompt, Voice: voiceCaller},
		},
	}
}

func redirectToVoicemail(cfg Config, sess *model.CallSession) Action {
	return &ModifyCall{
		LegID: sess.Legs[model.RoleCaller],
		Params: provider.ModifyCallParams{
			RedirectURL: cfg.VoicemailURL,
			State:       "active",
		},
	}
}

func terminate(sess *model.CallSession, reason model.TerminationReason, ev model.CallEvent) {
	sess.State = model.StateTerminated
	sess.Reason = reason
	sess.UpdatedAt = ev.At
	sess.Timeline = append(sess.Timeline, model.NewEvent(ev.At, "session.terminated", map[string]any{
		"reason": string(reason),
		"cause":  ev.Cause,
	}))
}
