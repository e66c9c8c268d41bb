// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

// Package event converts raw provider callback payloads into canonical
// call events.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sprucehealth/callflow/model"
)

// ErrMalformedEvent reports a payload missing its required fields
var ErrMalformedEvent = errors.New("malformed event")

// rawPayload mirrors the provider's callback body. Field presence varies
// by event type; only eventType and callId are required.
type rawPayload struct {
	EventType   string `json:"eventType"`
	CallID      string `json:"callId"`
	From        string `json:"from"`
	To          string `json:"to"`
	Tag         string `json:"tag"`
	Digits      string `json:"digits"`
	Cause       string `json:"cause"`
	RecordingID string `json:"recordingId"`
	Status      string `json:"status"`
	EventTime   string `json:"eventTime"`
}

// Normalize converts a raw callback body into a canonical CallEvent.
// It is side-effect-free; now supplies the fallback timestamp for
// payloads without an eventTime.
func Normalize(raw []byte, now time.Time) (model.CallEvent, error) {
	var p rawPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.CallEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if p.EventType == "" {
		return model.CallEvent{}, fmt.Errorf("%w: missing eventType", ErrMalformedEvent)
	}
	if p.CallID == "" {
		return model.CallEvent{}, fmt.Errorf("%w: missing callId", ErrMalformedEvent)
	}

	at := now
	if p.EventTime != "" {
		if t, err := time.Parse(time.RFC3339, p.EventTime); err == nil {
			at = t
		}
	}

	return model.CallEvent{
		Type:            eventTypeOf(p.EventType),
		LegID:           p.CallID,
		From:            p.From,
		To:              p.To,
		Tag:             p.Tag,
		Digits:          p.Digits,
		Cause:           p.Cause,
		RecordingID:     p.RecordingID,
		RecordingStatus: p.Status,
		At:              at,
	}, nil
}

// eventTypeOf maps provider event type strings to canonical types.
// "initiate" and "redirect" both begin a markup-driven interaction on a
// leg, so both normalize to the create-capable inbound type. Anything
// unrecognized is treated as a status update (telemetry only).
func eventTypeOf(s string) model.EventType {
	switch s {
	case "initiate", "redirect":
		return model.EventInbound
	case "answer":
		return model.EventAnswer
	case "gather":
		return model.EventDigitsGathered
	case "disconnect":
		return model.EventDisconnected
	case "recordingAvailable":
		return model.EventRecordingAvailable
	default:
		return model.EventStatusUpdate
	}
}
