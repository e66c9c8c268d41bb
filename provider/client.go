// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

// Package provider is the narrow interface to the external telephony
// platform. The engine treats it as an opaque capability with two
// failure modes: unavailable (network, 5xx) and rejected (4xx).
package provider

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrUnavailable reports a transport failure or provider-side outage
var ErrUnavailable = errors.New("provider unavailable")

// ErrRejected reports a request the provider refused
var ErrRejected = errors.New("provider rejected request")

// PlaceCallParams are the parameters for creating an outbound call leg
type PlaceCallParams struct {
	From          string        `json:"from"`
	To            string        `json:"to"`
	ApplicationID string        `json:"applicationId"`
	AnswerURL     string        `json:"answerUrl"`
	DisconnectURL string        `json:"disconnectUrl,omitempty"`
	Tag           string        `json:"tag,omitempty"`
	Timeout       time.Duration `json:"-"`
}

// ModifyCallParams redirect an in-progress leg to new markup
type ModifyCallParams struct {
	RedirectURL string `json:"redirectUrl"`
	State       string `json:"state"`
}

// Client defines the provider operations the engine depends on
type Client interface {
	PlaceCall(ctx context.Context, params PlaceCallParams) (legID string, err error)
	ModifyCall(ctx context.Context, legID string, params ModifyCallParams) error
	FetchRecording(ctx context.Context, callID, recordingID string) (io.ReadCloser, error)
}
