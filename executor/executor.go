// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

// Package executor carries out the side effects the state machine
// decides on. Provider failures surface as ActionFailed values for the
// orchestrator to log; they never propagate to the event source.
package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sprucehealth/callflow/bxml"
	"github.com/sprucehealth/callflow/flow"
	"github.com/sprucehealth/callflow/model"
	"github.com/sprucehealth/callflow/provider"
)

// ActionFailed wraps the failure of a single action.
type ActionFailed struct {
	Action flow.Action
	Cause  error
}

func (e *ActionFailed) Error() string {
	return fmt.Sprintf("executing %T: %v", e.Action, e.Cause)
}

func (e *ActionFailed) Unwrap() error { return e.Cause }

// RecordingSink stores fetched recording media.
type RecordingSink interface {
	Save(ctx context.Context, recordingID string, media io.Reader) error
}

// Result carries the outputs of a successful action. Markup is set for
// RespondWithMarkup; LegID for PlaceOutboundCall.
type Result struct {
	Markup string
	LegID  string
}

type Executor struct {
	client provider.Client
	sink   RecordingSink
	log    *slog.Logger
}

func New(client provider.Client, sink RecordingSink, log *slog.Logger) *Executor {
	return &Executor{client: client, sink: sink, log: log}
}

// Execute performs one action for the given session. All errors are
// returned as *ActionFailed.
func (x *Executor) Execute(ctx context.Context, sess *model.CallSession, action flow.Action) (Result, error) {
	switch a := action.(type) {
	case *flow.RespondWithMarkup:
		body, err := bxml.Serialize(a.Verbs)
		if err != nil {
			return Result{}, &ActionFailed{Action: a, Cause: err}
		}
		return Result{Markup: body}, nil

	case *flow.PlaceOutboundCall:
		legID, err := x.client.PlaceCall(ctx, a.Params)
		if err != nil {
			return Result{}, &ActionFailed{Action: a, Cause: err}
		}
		x.log.InfoContext(ctx, "placed outbound call",
			"session", sess.ID, "leg", legID, "to", a.Params.To)
		return Result{LegID: legID}, nil

	case *flow.ModifyCall:
		if a.LegID == "" {
			return Result{}, &ActionFailed{Action: a, Cause: fmt.Errorf("no leg to modify")}
		}
		if err := x.client.ModifyCall(ctx, a.LegID, a.Params); err != nil {
			return Result{}, &ActionFailed{Action: a, Cause: err}
		}
		return Result{}, nil

	case *flow.FetchRecording:
		// Media can lag the availability callback; retry once
		err := x.fetchRecording(ctx, a)
		if err != nil {
			err = x.fetchRecording(ctx, a)
		}
		if err != nil {
			return Result{}, &ActionFailed{Action: a, Cause: err}
		}
		x.log.InfoContext(ctx, "stored recording",
			"session", sess.ID, "recording", a.RecordingID)
		return Result{}, nil
	}
	return Result{}, &ActionFailed{Action: action, Cause: fmt.Errorf("unknown action %T", action)}
}

func (x *Executor) fetchRecording(ctx context.Context, a *flow.FetchRecording) error {
	media, err := x.client.FetchRecording(ctx, a.CallID, a.RecordingID)
	if err != nil {
		return err
	}
	defer media.Close()
	return x.sink.Save(ctx, a.RecordingID, media)
}
