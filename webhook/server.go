// SPDX-License-Identifier: GPL-3.0-or-later

// Copyright (c) 2025 Spruce Health

// Package webhook exposes the HTTP surface the telephony provider
// calls back into.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sprucehealth/callflow/event"
	"github.com/sprucehealth/callflow/model"
	"github.com/sprucehealth/callflow/orchestrator"
	"github.com/sprucehealth/callflow/store"
)

const maxBodyBytes = 1 << 20

// EventHandler processes one raw provider callback.
type EventHandler interface {
	HandleEvent(ctx context.Context, flowHint model.Flow, payload []byte) (*orchestrator.Reply, error)
}

// SessionReader exposes sessions for operator inspection.
type SessionReader interface {
	Get(ctx context.Context, key string) (*model.CallSession, error)
}

// NewRouter builds the callback router. Every callback responds 200
// with an XML document when the flow has one to return, 204 otherwise,
// and 400 only for payloads that cannot be understood at all.
func NewRouter(h EventHandler, sessions SessionReader, log *slog.Logger, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/callbacks/inbound", handle(h, log, model.FlowBridge))
	r.Post("/callbacks/outbound/answer", handle(h, log, model.FlowBridge))
	r.Post("/callbacks/outbound/gather", handle(h, log, model.FlowBridge))
	r.Post("/callbacks/disconnect", handle(h, log, model.FlowBridge))
	r.Post("/callbacks/voicemail", handle(h, log, model.FlowVoicemail))
	r.Post("/callbacks/recording", handle(h, log, model.FlowVoicemail))
	r.Post("/callbacks/status", handle(h, log, model.FlowBridge))

	r.Get("/sessions/{key}", handleSessionLookup(sessions))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return r
}

// handleSessionLookup serves session snapshots as JSON for debugging
// live deployments.
func handleSessionLookup(sessions SessionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		sess, err := sessions.Get(r.Context(), key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "session not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sess)
	}
}

func handle(h EventHandler, log *slog.Logger, flowHint model.Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "reading body", http.StatusBadRequest)
			return
		}

		reply, err := h.HandleEvent(r.Context(), flowHint, body)
		if err != nil {
			if errors.Is(err, event.ErrMalformedEvent) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			log.ErrorContext(r.Context(), "callback handling failed", "error", err)
			// The provider retries on 5xx; the event was absorbed, so
			// acknowledge it
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if reply.Markup == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, reply.Markup)
	}
}
