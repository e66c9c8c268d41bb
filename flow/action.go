// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

// Package flow holds the call-flow state machine: a pure transition
// function from (session, event) to a new state and a list of actions
// for the executor. It performs no I/O.
package flow

import (
	"github.com/sprucehealth/callflow/bxml"
	"github.com/sprucehealth/callflow/provider"
)

// Action is one instruction produced by a transition. Actions are
// immutable once produced.
type Action interface {
	isAction()
}

// RespondWithMarkup answers the triggering event with a markup document
type RespondWithMarkup struct {
	Verbs []bxml.Verb
}

func (RespondWithMarkup) isAction() {}

// PlaceOutboundCall dials a new leg through the provider
type PlaceOutboundCall struct {
	Params provider.PlaceCallParams
}

func (PlaceOutboundCall) isAction() {}

// ModifyCall redirects an existing leg to new markup
type ModifyCall struct {
	LegID  string
	Params provider.ModifyCallParams
}

func (ModifyCall) isAction() {}

// FetchRecording downloads recording media to the recording sink
type FetchRecording struct {
	CallID      string
	RecordingID string
}

func (FetchRecording) isAction() {}
