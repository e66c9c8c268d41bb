// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

// Package orchestrator drives one provider event through the pipeline:
// normalize, resolve the session, transition under the store lock,
// execute the resulting actions, reply.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sprucehealth/callflow/event"
	"github.com/sprucehealth/callflow/executor"
	"github.com/sprucehealth/callflow/flow"
	"github.com/sprucehealth/callflow/metrics"
	"github.com/sprucehealth/callflow/model"
	"github.com/sprucehealth/callflow/provider"
	"github.com/sprucehealth/callflow/simclock"
	"github.com/sprucehealth/callflow/store"
)

// Reply is what goes back to the provider. An empty Markup means the
// event had no document to return.
type Reply struct {
	Markup string
}

type Orchestrator struct {
	cfg   flow.Config
	store store.Store
	exec  *executor.Executor
	log   *slog.Logger
	met   *metrics.Metrics
	clock simclock.Clock
}

func New(cfg flow.Config, st store.Store, client provider.Client, sink executor.RecordingSink, log *slog.Logger, met *metrics.Metrics, clock simclock.Clock) *Orchestrator {
	return &Orchestrator{
		cfg:   cfg,
		store: st,
		exec:  executor.New(client, sink, log),
		log:   log,
		met:   met,
		clock: clock,
	}
}

// HandleEvent processes one raw provider callback. flowHint selects the
// flow for sessions this event may create; it is ignored for events
// that only address existing sessions. The only error returned is a
// malformed payload; everything else is absorbed and logged so the
// provider is never told to fail the call.
func (o *Orchestrator) HandleEvent(ctx context.Context, flowHint model.Flow, payload []byte) (*Reply, error) {
	ev, err := event.Normalize(payload, o.clock.Now())
	if err != nil {
		o.met.Anomalies.WithLabelValues("malformed").Inc()
		return nil, err
	}

	start := o.clock.Now()
	defer func() {
		o.met.HandleDuration.WithLabelValues(string(ev.Type)).Observe(o.clock.Now().Sub(start).Seconds())
	}()
	o.met.EventsTotal.WithLabelValues(string(ev.Type)).Inc()

	log := o.log.With(
		"trace", uuid.NewString(),
		"event", string(ev.Type),
		"leg", ev.LegID,
	)

	key := o.resolveKey(ctx, flowHint, ev)
	log = log.With("session_key", key)

	// One retry if the session is evicted between resolve and update
	reply, err := o.dispatch(ctx, log, flowHint, key, ev)
	if errors.Is(err, store.ErrStaleSession) {
		log.WarnContext(ctx, "session went stale, retrying")
		reply, err = o.dispatch(ctx, log, flowHint, key, ev)
	}
	if err != nil {
		if errors.Is(err, store.ErrStaleSession) {
			o.met.Anomalies.WithLabelValues("stale-session").Inc()
			log.WarnContext(ctx, "session stale after retry, dropping event")
			return &Reply{}, nil
		}
		log.ErrorContext(ctx, "event handling failed", "error", err)
		return &Reply{}, nil
	}
	return reply, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, log *slog.Logger, flowHint model.Flow, key string, ev model.CallEvent) (*Reply, error) {
	sess, err := o.resolve(ctx, log, flowHint, key, ev)
	if err != nil || sess == nil {
		return &Reply{}, err
	}
	if sess.Terminal() {
		o.met.Anomalies.WithLabelValues("terminal-session").Inc()
		log.InfoContext(ctx, "event for terminated session ignored",
			"session", sess.ID, "reason", string(sess.Reason))
		return &Reply{}, nil
	}

	var res flow.Result
	updated, err := o.store.Update(ctx, key, func(s *model.CallSession) error {
		res = flow.Transition(o.cfg, s, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Changed {
		log.InfoContext(ctx, "session advanced",
			"session", updated.ID, "state", string(updated.State))
		if updated.Terminal() {
			o.met.Terminations.WithLabelValues(string(updated.Reason)).Inc()
		}
	}

	return o.execute(ctx, log, key, updated, res.Actions), nil
}

// resolve returns the session for key, creating it when the event type
// allows creation. A nil session with nil error means the event had no
// session to address and was dropped as an anomaly.
func (o *Orchestrator) resolve(ctx context.Context, log *slog.Logger, flowHint model.Flow, key string, ev model.CallEvent) (*model.CallSession, error) {
	if ev.Type.IsCreate() {
		sess, created, err := o.store.GetOrCreate(ctx, key, func() *model.CallSession {
			return model.NewCallSession(key, flowHint, o.clock.Now())
		})
		if err != nil {
			return nil, err
		}
		if created {
			o.met.SessionsCreated.WithLabelValues(string(sess.Flow)).Inc()
			log.InfoContext(ctx, "session created", "session", sess.ID, "flow", string(sess.Flow))
		}
		return sess, nil
	}

	sess, err := o.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			o.met.Anomalies.WithLabelValues("unknown-session").Inc()
			log.WarnContext(ctx, "event for unknown session ignored")
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

// resolveKey maps an event to its session key. Create-capable events
// key by their own leg; B-leg callbacks carry the session key in the
// tag; untagged events prefer an active voicemail session for the leg.
func (o *Orchestrator) resolveKey(ctx context.Context, flowHint model.Flow, ev model.CallEvent) string {
	if ev.Type.IsCreate() {
		if flowHint == model.FlowVoicemail {
			return model.VoicemailKey(ev.LegID)
		}
		return ev.LegID
	}
	if ev.Tag != "" {
		return ev.Tag
	}
	vmKey := model.VoicemailKey(ev.LegID)
	if s, err := o.store.Get(ctx, vmKey); err == nil && !s.Terminal() {
		return vmKey
	}
	return ev.LegID
}

// execute runs the transition's actions in order. Failures are logged
// and counted; the reply to the provider is built from whatever markup
// succeeded.
func (o *Orchestrator) execute(ctx context.Context, log *slog.Logger, key string, sess *model.CallSession, actions []flow.Action) *Reply {
	reply := &Reply{}
	for _, action := range actions {
		res, err := o.exec.Execute(ctx, sess, action)
		if err != nil {
			o.met.ActionFailures.WithLabelValues(actionName(action)).Inc()
			log.ErrorContext(ctx, "action failed", "action", actionName(action), "error", err)
			o.recordFailure(ctx, log, key, action)
			continue
		}
		switch action.(type) {
		case *flow.RespondWithMarkup:
			reply.Markup = res.Markup
		case *flow.PlaceOutboundCall:
			o.recordPlacedLeg(ctx, log, key, res.LegID)
		}
	}
	return reply
}

// recordPlacedLeg notes the outbound leg on the session timeline. If
// the session terminated while the call was being placed, the result is
// logged and discarded.
func (o *Orchestrator) recordPlacedLeg(ctx context.Context, log *slog.Logger, key, legID string) {
	_, err := o.store.Update(ctx, key, func(s *model.CallSession) error {
		if s.Terminal() {
			return errTerminalDiscard
		}
		s.Timeline = append(s.Timeline, model.NewEvent(o.clock.Now(), "leg.placed", map[string]any{
			"leg": legID,
		}))
		return nil
	})
	if errors.Is(err, errTerminalDiscard) {
		log.InfoContext(ctx, "discarding placed leg for terminated session", "leg", legID)
		return
	}
	if err != nil {
		log.WarnContext(ctx, "recording placed leg", "error", err)
	}
}

// recordFailure terminates the session with an error reason when the
// failed action leaves the call with no path forward. A failed outbound
// placement is excluded: the caller-side document already redirects to
// voicemail when no leg bridges in.
func (o *Orchestrator) recordFailure(ctx context.Context, log *slog.Logger, key string, action flow.Action) {
	if _, ok := action.(*flow.PlaceOutboundCall); ok {
		return
	}
	updated, err := o.store.Update(ctx, key, func(s *model.CallSession) error {
		if s.Terminal() {
			return errTerminalDiscard
		}
		s.State = model.StateTerminated
		s.Reason = model.ReasonError
		s.UpdatedAt = o.clock.Now()
		s.Timeline = append(s.Timeline, model.NewEvent(o.clock.Now(), "session.terminated", map[string]any{
			"reason": string(model.ReasonError),
			"action": actionName(action),
		}))
		return nil
	})
	if err != nil {
		if !errors.Is(err, errTerminalDiscard) {
			log.WarnContext(ctx, "marking session failed", "error", err)
		}
		return
	}
	o.met.Terminations.WithLabelValues(string(model.ReasonError)).Inc()
	log.InfoContext(ctx, "session terminated after action failure", "session", updated.ID)
}

var errTerminalDiscard = errors.New("session already terminal")

func actionName(a flow.Action) string {
	switch a.(type) {
	case *flow.RespondWithMarkup:
		return "respond-markup"
	case *flow.PlaceOutboundCall:
		return "place-call"
	case *flow.ModifyCall:
		return "modify-call"
	case *flow.FetchRecording:
		return "fetch-recording"
	}
	return "unknown"
}
